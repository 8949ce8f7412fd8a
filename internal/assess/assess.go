// ---------------------------------------------------------------------------
// assess.go — risk scoring and attack-stage classification over detected
// attack sequences and their technique set.
// ---------------------------------------------------------------------------

package assess

import (
	"github.com/logsentinel-project/logsentinel/internal/correlate"
	"github.com/logsentinel-project/logsentinel/internal/mitre"
)

// Attack progression stages, from least to most advanced.
const (
	StageInitial   = "Initial"
	StageMidStage  = "Mid-Stage"
	StageLateStage = "Late-Stage"
	StageImpact    = "Impact"
)

// Risk levels derived from the severity score.
const (
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// Score computes the 0-100 severity score. The base is the highest severity
// among detected sequences; fixed bonuses reward signs of a progressed
// attack. No matched sequences scores zero regardless of how many techniques
// the mapper attributed to individual events.
func Score(seqs []correlate.MatchedSequence, techniques []string, otEnvironment bool) int {
	if len(seqs) == 0 {
		return 0
	}
	distinct := distinctTechniques(seqs, techniques)

	score := 0
	for _, s := range seqs {
		if s.Severity > score {
			score = s.Severity
		}
	}

	if anyTechnique(distinct, mitre.IsValidatedAccess) {
		score += 30
	}

	bonus := len(distinct) * 5
	if bonus > 25 {
		bonus = 25
	}
	score += bonus

	if anyTechnique(distinct, mitre.IsPersistence) {
		score += 15
	}
	if anyTechnique(distinct, mitre.IsSafetySystem) {
		score += 20
	}
	if anyTechnique(distinct, mitre.IsPhysicalImpact) {
		score += 25
	}
	if otEnvironment {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

// Classify determines the attack progression stage from the combined
// technique set. Rules apply in priority order; the first match wins.
// No matched sequences means no evidenced progression, so the stage stays
// Initial even when event-level techniques were attributed.
func Classify(seqs []correlate.MatchedSequence, techniques []string) string {
	if len(seqs) == 0 {
		return StageInitial
	}
	distinct := distinctTechniques(seqs, techniques)

	if anyTechnique(distinct, mitre.IsPhysicalImpact) {
		return StageImpact
	}
	if anyTechnique(distinct, mitre.IsPersistence) {
		if len(distinct) > 3 {
			return StageLateStage
		}
		return StageMidStage
	}
	if anyTechnique(distinct, mitre.IsInitialAccess) {
		return StageMidStage
	}
	return StageInitial
}

// RiskLevel maps a severity score onto the four-level risk scale.
func RiskLevel(score int) string {
	switch {
	case score >= 90:
		return RiskCritical
	case score >= 70:
		return RiskHigh
	case score >= 50:
		return RiskMedium
	default:
		return RiskLow
	}
}

// distinctTechniques merges sequence techniques with independently mapped
// techniques, deduplicated in first-seen order.
func distinctTechniques(seqs []correlate.MatchedSequence, techniques []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, s := range seqs {
		for _, t := range s.Techniques {
			add(t)
		}
	}
	for _, t := range techniques {
		add(t)
	}
	return out
}

func anyTechnique(ids []string, pred func(string) bool) bool {
	for _, id := range ids {
		if pred(id) {
			return true
		}
	}
	return false
}
