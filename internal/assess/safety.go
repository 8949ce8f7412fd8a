package assess

// SafetyImpact describes the process-safety consequences of the observed
// techniques in an ICS/OT environment.
type SafetyImpact struct {
	Level              string             `json:"safety_impact_level"`
	IdentifiedImpacts  []TechniqueImpact  `json:"identified_impacts"`
	PhysicalDamageRisk bool               `json:"physical_damage_risk"`
	PersonnelRisk      bool               `json:"personnel_safety_risk"`
}

// TechniqueImpact pairs a technique with its safety consequence.
type TechniqueImpact struct {
	Technique string `json:"technique"`
	Impact    string `json:"impact"`
}

type safetyEntry struct {
	level       string
	explanation string
}

// Static per-technique safety consequences. Levels never depend on context:
// the same technique always carries the same consequence text and level.
var safetyCritical = map[string]safetyEntry{
	"T0878": {"CRITICAL", "Alarm Suppression - operators cannot see dangerous conditions"},
	"T0836": {"CRITICAL", "Modify Parameter - process outside safe parameters"},
	"T0880": {"CRITICAL", "Loss of Safety - safety systems triggered"},
	"T0816": {"HIGH", "Device Restart/Shutdown - production stoppage"},
	"T0843": {"HIGH", "Program Download - control logic compromised"},
	"T0832": {"MEDIUM", "Manipulation of View - false sensor readings"},
}

var levelRank = map[string]int{
	"None":     0,
	"MEDIUM":   1,
	"HIGH":     2,
	"CRITICAL": 3,
}

// AssessSafety evaluates the safety consequences of the given techniques.
// The overall level is the maximum per-technique level; physical damage risk
// follows from a HIGH or CRITICAL level, personnel risk from alarm
// suppression or loss of safety specifically.
func AssessSafety(techniques []string) SafetyImpact {
	impact := SafetyImpact{Level: "None"}
	seen := make(map[string]bool)

	for _, id := range techniques {
		entry, ok := safetyCritical[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		impact.IdentifiedImpacts = append(impact.IdentifiedImpacts, TechniqueImpact{
			Technique: id,
			Impact:    entry.explanation,
		})
		if levelRank[entry.level] > levelRank[impact.Level] {
			impact.Level = entry.level
		}
	}

	impact.PhysicalDamageRisk = impact.Level == "CRITICAL" || impact.Level == "HIGH"
	impact.PersonnelRisk = seen["T0880"] || seen["T0878"]
	return impact
}
