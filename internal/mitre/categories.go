package mitre

// Technique category sets used by risk scoring and attack-stage
// classification. Membership is by base technique ID: sub-technique IDs
// (T1021.001) are reduced to their parent before lookup.

var validatedAccess = map[string]bool{
	"T1078": true,
}

var persistence = map[string]bool{
	"T1136": true,
	"T1053": true,
	"T1543": true,
	"T1098": true,
	"T0839": true,
}

var safetySystem = map[string]bool{
	"T0878": true,
	"T0836": true,
}

var physicalImpact = map[string]bool{
	"T1489": true,
	"T1486": true,
	"T0880": true,
	"T0813": true,
	"T0831": true,
	"T0816": true,
	"T0836": true,
	"T0878": true,
}

var initialAccess = map[string]bool{
	"T1110": true,
	"T1078": true,
	"T1190": true,
	"T1566": true,
	"T1046": true,
	"T1021": true,
	"T1068": true,
	"T0886": true,
	"T0812": true,
	"T0840": true,
	"T0883": true,
}

// BaseID strips any sub-technique suffix: T1021.001 becomes T1021.
func BaseID(id string) string {
	for i := 0; i < len(id); i++ {
		if id[i] == '.' {
			return id[:i]
		}
	}
	return id
}

// IsValidatedAccess reports whether the technique indicates the attacker
// obtained working credentials or validated access.
func IsValidatedAccess(id string) bool { return validatedAccess[BaseID(id)] }

// IsPersistence reports whether the technique establishes persistence.
func IsPersistence(id string) bool { return persistence[BaseID(id)] }

// IsSafetySystem reports whether the technique targets a safety or
// protection system.
func IsSafetySystem(id string) bool { return safetySystem[BaseID(id)] }

// IsPhysicalImpact reports whether the technique indicates impact on
// physical processes or destructive action.
func IsPhysicalImpact(id string) bool { return physicalImpact[BaseID(id)] }

// IsInitialAccess reports whether the technique belongs to the access or
// movement phase of an intrusion.
func IsInitialAccess(id string) bool { return initialAccess[BaseID(id)] }

// IsICS reports whether the technique is an ICS/OT technique (T0xxx).
func IsICS(id string) bool {
	b := BaseID(id)
	return len(b) >= 2 && b[0] == 'T' && b[1] == '0'
}
