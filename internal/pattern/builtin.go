package pattern

// Builtin returns the stock pattern set covering credential attacks,
// persistence, lateral movement, exfiltration, and ICS/OT process
// manipulation chains. Deployments can replace it with a YAML file via
// config; the builtin set always validates.
func Builtin() []Definition {
	return []Definition{
		{
			Name:        "brute_force_success",
			Description: "Brute force attack succeeded - attacker gained access",
			Stages: []Stage{
				{Name: "failed_logins", Pattern: `(failed|unsuccessful|invalid).*login|authentication.*fail`, MinCount: 3},
				{Name: "successful_login", Pattern: `(successful|accepted).*login|authentication.*success`, MinCount: 1, MaxGapMinutes: 10},
			},
			Severity:    80,
			Techniques:  []string{"T1110", "T1078"},
			AttackStage: "Mid-Stage",
		},
		{
			Name:        "persistence_established",
			Description: "Attacker established persistence via new account",
			Stages: []Stage{
				{Name: "initial_access", Pattern: `(successful|accepted).*login`, MinCount: 1},
				{Name: "account_creation", Pattern: `(user|account).*(created|added|new)|backdoor.*user`, MinCount: 1, MaxGapMinutes: 30},
			},
			Severity:    85,
			Techniques:  []string{"T1078", "T1136"},
			AttackStage: "Late-Stage",
		},
		{
			Name:        "privilege_escalation_chain",
			Description: "Attacker escalated privileges after initial access",
			Stages: []Stage{
				{Name: "initial_access", Pattern: `(successful|accepted).*login`, MinCount: 1},
				{Name: "privilege_escalation", Pattern: `privilege.*(grant|escalat)|admin.*added|sudo.*grant`, MinCount: 1, MaxGapMinutes: 30},
			},
			Severity:    88,
			Techniques:  []string{"T1078", "T1068", "T1098"},
			AttackStage: "Late-Stage",
		},
		{
			Name:        "ot_safety_bypass",
			Description: "CRITICAL: Safety systems compromised in OT environment",
			Stages: []Stage{
				{Name: "config_change", Pattern: `(config|parameter).*(change|modif)`, MinCount: 1},
				{Name: "safety_bypass", Pattern: `(alarm|safety).*(suppress|override|disable|bypass)|interlock.*bypass`, MinCount: 1, MaxGapMinutes: 30},
			},
			Severity:    95,
			Techniques:  []string{"T0836", "T0878"},
			AttackStage: "Impact",
		},
		{
			Name:        "plc_compromise",
			Description: "CRITICAL: PLC control compromised - physical process at risk",
			Stages: []Stage{
				{Name: "plc_programming", Pattern: `plc.*(write|program|upload|download)|ladder.*logic|firmware.*update`, MinCount: 1},
				{Name: "setpoint_modification", Pattern: `setpoint.*(change|modif)|parameter.*(force|alter)`, MinCount: 1, MaxGapMinutes: 30},
			},
			Severity:    95,
			Techniques:  []string{"T0843", "T0836"},
			AttackStage: "Impact",
		},
		{
			Name:        "complete_ot_breach",
			Description: "CRITICAL: Complete OT/SCADA compromise with physical impact",
			Stages: []Stage{
				{Name: "brute_force", Pattern: `(failed|unsuccessful).*login`, MinCount: 3},
				{Name: "successful_access", Pattern: `(successful|accepted).*login`, MinCount: 1, MaxGapMinutes: 10},
				{Name: "persistence", Pattern: `(user|account).*(created|added)`, MinCount: 1, MaxGapMinutes: 30},
				{Name: "plc_access", Pattern: `plc.*(upload|program|write)|config.*download`, MinCount: 1, MaxGapMinutes: 60},
				{Name: "safety_suppression", Pattern: `(alarm|safety).*(suppress|disable)`, MinCount: 1, MaxGapMinutes: 60},
				{Name: "process_manipulation", Pattern: `setpoint.*change|parameter.*(force|modif)|emergency.*shutdown`, MinCount: 1, MaxGapMinutes: 60},
			},
			Severity:    100,
			Techniques:  []string{"T1110", "T1078", "T1136", "T0843", "T0878", "T0836"},
			AttackStage: "Impact",
		},
		{
			Name:        "lateral_movement_detected",
			Description: "Attacker moving laterally across network",
			Stages: []Stage{
				{Name: "initial_access", Pattern: `(successful|accepted).*login`, MinCount: 1},
				{Name: "lateral_movement", Pattern: `(rdp|smb|ssh|remote).*(connect|access|login)`, MinCount: 2, MaxGapMinutes: 60},
			},
			Severity:    82,
			Techniques:  []string{"T1078", "T1021"},
			AttackStage: "Mid-Stage",
		},
		{
			Name:        "data_exfiltration",
			Description: "Data exfiltration detected after compromise",
			Stages: []Stage{
				{Name: "initial_access", Pattern: `(successful|accepted).*login`, MinCount: 1},
				{Name: "exfiltration", Pattern: `(data|file).*(transfer|upload|exfil|send)`, MinCount: 1, MaxGapMinutes: 120},
			},
			Severity:    90,
			Techniques:  []string{"T1078", "T1041"},
			AttackStage: "Impact",
		},
		{
			Name:        "command_and_control",
			Description: "Attacker establishing command and control communication",
			Stages: []Stage{
				{Name: "initial_access", Pattern: `(successful|accepted).*login|initial.access`, MinCount: 1},
				{Name: "c2_traffic", Pattern: `(outbound.connection|beacon|c2|domain.lookup).*(ip|domain|port)`, MinCount: 2, MaxGapMinutes: 60},
			},
			Severity:    85,
			Techniques:  []string{"T1071", "T1105", "T1095"},
			AttackStage: "Mid-Stage",
		},
		{
			Name:        "defense_evasion",
			Description: "Attacker attempting to cover tracks",
			Stages: []Stage{
				{Name: "initial_access", Pattern: `(successful|accepted).*login`, MinCount: 1},
				{Name: "evasion", Pattern: `(log|audit).*(clear|delete|wipe|disable)|antivirus.*(disable|stop)`, MinCount: 1, MaxGapMinutes: 60},
			},
			Severity:    87,
			Techniques:  []string{"T1078", "T1070", "T1562"},
			AttackStage: "Late-Stage",
		},
	}
}
