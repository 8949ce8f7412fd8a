// ---------------------------------------------------------------------------
// mitre.go — declarative mapping of log message text to ATT&CK techniques
// (enterprise + ICS), plus technique detail lookup.
// ---------------------------------------------------------------------------

package mitre

import (
	"regexp"
	"sort"
	"strings"
)

// Technique describes one ATT&CK technique.
type Technique struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Tactic string `json:"tactic"`
	URL    string `json:"url"`
}

type mapping struct {
	re *regexp.Regexp
	t  Technique
}

func rule(expr, id, name, tactic string) mapping {
	return mapping{
		re: regexp.MustCompile(`(?i)` + expr),
		t:  Technique{ID: id, Name: name, Tactic: tactic},
	}
}

// Ordered so the enterprise credential/access rules run before the noisier
// ICS catch-alls.
var mappings = []mapping{
	// Authentication & access
	rule(`(failed|unsuccessful|invalid).*login`, "T1110", "Brute Force", "Credential Access"),
	rule(`authentication.*fail`, "T1110", "Brute Force", "Credential Access"),
	rule(`(successful|accepted).*login`, "T1078", "Valid Accounts", "Initial Access"),
	rule(`(user|account).*(created|added|new)`, "T1136", "Create Account", "Persistence"),
	rule(`backdoor.*(account|user)`, "T1136", "Create Account", "Persistence"),
	rule(`privilege.*escalat`, "T1068", "Exploitation for Privilege Escalation", "Privilege Escalation"),

	// Lateral movement
	rule(`(rdp|remote desktop).*connect`, "T1021.001", "Remote Desktop Protocol", "Lateral Movement"),
	rule(`(smb|cifs|samba).*access`, "T1021.002", "SMB/Windows Admin Shares", "Lateral Movement"),

	// Persistence
	rule(`(service|daemon).*(created|installed|added)`, "T1543", "Create or Modify System Process", "Persistence"),
	rule(`scheduled.*task.*created`, "T1053", "Scheduled Task/Job", "Persistence"),

	// Impact
	rule(`(service|process).*(stop|kill|terminate)`, "T1489", "Service Stop", "Impact"),
	rule(`(shutdown|reboot|restart)`, "T1529", "System Shutdown/Reboot", "Impact"),
	rule(`(delete|remove|wipe).*file`, "T1485", "Data Destruction", "Impact"),
	rule(`encrypt.*file`, "T1486", "Data Encrypted for Impact", "Impact"),

	// ICS / OT
	rule(`plc.*(write|program|upload|download)`, "T0843", "Program Download", "Execution (ICS)"),
	rule(`(ladder|logic).*modif`, "T0843", "Program Download", "Execution (ICS)"),
	rule(`(alarm|alert).*(disable|suppress|silence|mute)`, "T0878", "Alarm Suppression", "Inhibit Response Function (ICS)"),
	rule(`(setpoint|parameter).*(change|modif|alter|force)`, "T0836", "Modify Parameter", "Impair Process Control (ICS)"),
	rule(`(safety|interlock).*(bypass|override|disable)`, "T0878", "Alarm Suppression", "Inhibit Response Function (ICS)"),
	rule(`(scada|hmi|dcs).*(access|login|connect)`, "T0886", "Remote Services", "Lateral Movement (ICS)"),
	rule(`(controller|plc|rtu).*(command|control)`, "T0855", "Unauthorized Command Message", "Impair Process Control (ICS)"),
	rule(`firmware.*(upload|download|modif|flash)`, "T0857", "System Firmware", "Inhibit Response Function (ICS)"),
	rule(`(pressure|temperature|flow|level).*(exceed|critical|dangerous|overflow|limit)`, "T0836", "Modify Parameter", "Impair Process Control (ICS)"),
	rule(`(reactor|turbine|generator|pump|valve).*(shutdown|stop|fail|trip)`, "T0816", "Device Restart/Shutdown", "Impact (ICS)"),
	rule(`(manual|auto).*(mode|control).*switch`, "T0838", "Modify Control Logic", "Impair Process Control (ICS)"),
	rule(`(historian|data.*log).*(modif|tamper|delete)`, "T0870", "Detect Program State", "Discovery (ICS)"),
	rule(`(engineering.*station|workstation).*(access|compromise)`, "T0883", "Internet Accessible Device", "Initial Access (ICS)"),
	rule(`(default.*credential|default.*password)`, "T0812", "Default Credentials", "Initial Access (ICS)"),
	rule(`(modbus|dnp3|iec.*104|profinet|opcua).*(inject|manipulate|spoof)`, "T0855", "Unauthorized Command Message", "Impair Process Control (ICS)"),
	rule(`(emergency.*shutdown|e-?stop|scram).*(fail|block|disable)`, "T0816", "Device Restart/Shutdown", "Impact (ICS)"),
	rule(`(sensor|transducer|transmitter).*(spoof|manipulate|false)`, "T0832", "Manipulation of View", "Impact (ICS)"),
	rule(`(hmi.*screen|operator.*display).*(modify|manipulate|fake)`, "T0832", "Manipulation of View", "Impact (ICS)"),

	// Exfiltration
	rule(`(data|file|document).*(transfer|exfil|upload|send)`, "T1041", "Exfiltration Over C2 Channel", "Exfiltration"),

	// Defense evasion
	rule(`(log|audit).*(clear|delete|wipe|disable)`, "T1070", "Indicator Removal", "Defense Evasion"),
	rule(`(antivirus|firewall|security).*(disable|stop|bypass)`, "T1562", "Impair Defenses", "Defense Evasion"),

	// Discovery
	rule(`(scan|enumerate|discover|reconnaissance)`, "T0840", "Network Connection Enumeration", "Discovery (ICS)"),
	rule(`(network|port).*scan`, "T1046", "Network Service Scanning", "Discovery"),

	// Initial access
	rule(`(exploit|vulnerability|cve-)`, "T1190", "Exploit Public-Facing Application", "Initial Access"),
	rule(`phish.*email`, "T1566", "Phishing", "Initial Access"),

	// Command and control
	rule(`(c2|command.*control|beacon|callback)`, "T1071", "Application Layer Protocol", "Command and Control"),
}

// MapMessage returns the techniques whose text patterns match the message,
// deduplicated by technique ID, in table order.
func MapMessage(message string) []Technique {
	var out []Technique
	seen := make(map[string]bool)
	for _, m := range mappings {
		if !m.re.MatchString(message) {
			continue
		}
		if seen[m.t.ID] {
			continue
		}
		seen[m.t.ID] = true
		t := m.t
		t.URL = techniqueURL(t.ID)
		out = append(out, t)
	}
	return out
}

// MapMessageIDs returns just the technique IDs matching the message.
func MapMessageIDs(message string) []string {
	techs := MapMessage(message)
	ids := make([]string, 0, len(techs))
	for _, t := range techs {
		ids = append(ids, t.ID)
	}
	return ids
}

// Lookup returns details for a technique ID. Unknown IDs return a stub with
// the ID preserved, so callers can always render something.
func Lookup(id string) Technique {
	for _, m := range mappings {
		if m.t.ID == id {
			t := m.t
			t.URL = techniqueURL(id)
			return t
		}
	}
	return Technique{ID: id, Name: "Unknown", Tactic: "Unknown", URL: techniqueURL(id)}
}

// AllTechniques returns every technique in the mapping table, deduplicated
// and sorted by ID.
func AllTechniques() []Technique {
	seen := make(map[string]Technique)
	for _, m := range mappings {
		if _, ok := seen[m.t.ID]; !ok {
			t := m.t
			t.URL = techniqueURL(t.ID)
			seen[t.ID] = t
		}
	}
	out := make([]Technique, 0, len(seen))
	for _, t := range seen {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func techniqueURL(id string) string {
	return "https://attack.mitre.org/techniques/" + strings.ReplaceAll(id, ".", "/") + "/"
}
