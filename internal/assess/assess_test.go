package assess

import (
	"testing"

	"github.com/logsentinel-project/logsentinel/internal/correlate"
)

func seq(name string, severity int, techniques ...string) correlate.MatchedSequence {
	return correlate.MatchedSequence{Name: name, Severity: severity, Techniques: techniques}
}

func TestScoreEmptyIsZero(t *testing.T) {
	if got := Score(nil, nil, true); got != 0 {
		t.Errorf("empty inputs must score 0, got %d", got)
	}
}

func TestScoreNoSequencesIgnoresMappedTechniques(t *testing.T) {
	// Event-level technique attributions alone do not evidence an attack.
	if got := Score(nil, []string{"T1078", "T1110", "T1136"}, true); got != 0 {
		t.Errorf("no matched sequences must score 0, got %d", got)
	}
}

func TestScoreBruteForceSuccess(t *testing.T) {
	seqs := []correlate.MatchedSequence{seq("brute_force_success", 80, "T1110", "T1078")}
	// 80 base + 30 validated access + 10 technique bonus + 10 OT = 100 capped...
	// 80+30 = 110 already exceeds; result clamps to 100.
	if got := Score(seqs, nil, true); got != 100 {
		t.Errorf("got %d, want 100", got)
	}
}

func TestScoreNoValidatedAccess(t *testing.T) {
	seqs := []correlate.MatchedSequence{seq("recon_only", 40, "T1046")}
	// 40 base + 5 technique bonus + 10 OT = 55.
	if got := Score(seqs, nil, true); got != 55 {
		t.Errorf("got %d, want 55", got)
	}
}

func TestScoreTechniqueBonusCapped(t *testing.T) {
	techs := []string{"T1046", "T1190", "T1566", "T0840", "T1070", "T1562", "T1041"}
	seqs := []correlate.MatchedSequence{seq("many", 10)}
	// 10 base + min(7*5, 25) = 35, no OT.
	if got := Score(seqs, techs, false); got != 35 {
		t.Errorf("got %d, want 35", got)
	}
}

func TestScoreClampedAt100(t *testing.T) {
	seqs := []correlate.MatchedSequence{
		seq("complete_ot_breach", 100, "T1110", "T1078", "T1136", "T0843", "T0878", "T0836"),
	}
	if got := Score(seqs, nil, true); got != 100 {
		t.Errorf("got %d, want 100", got)
	}
}

func TestScoreOTEnvironmentBonus(t *testing.T) {
	seqs := []correlate.MatchedSequence{seq("recon_only", 40, "T1046")}
	withOT := Score(seqs, nil, true)
	withoutOT := Score(seqs, nil, false)
	if withOT-withoutOT != 10 {
		t.Errorf("OT bonus should add 10: %d vs %d", withOT, withoutOT)
	}
}

func TestScoreDeterministic(t *testing.T) {
	seqs := []correlate.MatchedSequence{seq("persistence_established", 85, "T1078", "T1136")}
	first := Score(seqs, []string{"T1110"}, true)
	for i := 0; i < 5; i++ {
		if got := Score(seqs, []string{"T1110"}, true); got != first {
			t.Fatalf("score not deterministic: %d vs %d", got, first)
		}
	}
}

func TestClassifyImpactWins(t *testing.T) {
	// Impact techniques take priority over everything else.
	seqs := []correlate.MatchedSequence{seq("breach", 80, "T1110")}
	got := Classify(seqs, []string{"T1136", "T0836"})
	if got != StageImpact {
		t.Errorf("got %s, want %s", got, StageImpact)
	}
}

func TestClassifyPersistenceFewTechniques(t *testing.T) {
	seqs := []correlate.MatchedSequence{seq("persistence_established", 85, "T1136")}
	if got := Classify(seqs, nil); got != StageMidStage {
		t.Errorf("got %s, want %s", got, StageMidStage)
	}
}

func TestClassifyPersistenceManyTechniques(t *testing.T) {
	seqs := []correlate.MatchedSequence{seq("persistence_established", 85, "T1136")}
	got := Classify(seqs, []string{"T1110", "T1078", "T1046"})
	if got != StageLateStage {
		t.Errorf("got %s, want %s", got, StageLateStage)
	}
}

func TestClassifyAccessOnly(t *testing.T) {
	seqs := []correlate.MatchedSequence{seq("brute_force_success", 80, "T1110")}
	if got := Classify(seqs, nil); got != StageMidStage {
		t.Errorf("got %s, want %s", got, StageMidStage)
	}
}

func TestClassifyNothingObserved(t *testing.T) {
	if got := Classify(nil, nil); got != StageInitial {
		t.Errorf("got %s, want %s", got, StageInitial)
	}
	seqs := []correlate.MatchedSequence{seq("quiet", 10, "T1071")}
	if got := Classify(seqs, nil); got != StageInitial {
		t.Errorf("unrecognized technique category should stay Initial, got %s", got)
	}
}

func TestClassifyNoSequencesStaysInitial(t *testing.T) {
	// Without a matched sequence there is no evidenced progression, no
	// matter what the mapper attributed to individual events.
	got := Classify(nil, []string{"T1078", "T1136", "T0836"})
	if got != StageInitial {
		t.Errorf("got %s, want %s", got, StageInitial)
	}
}

func TestClassifyUsesSequenceTechniques(t *testing.T) {
	seqs := []correlate.MatchedSequence{seq("ot_safety_bypass", 95, "T0836", "T0878")}
	if got := Classify(seqs, nil); got != StageImpact {
		t.Errorf("got %s, want %s", got, StageImpact)
	}
}

func TestRiskLevelThresholds(t *testing.T) {
	cases := []struct {
		score int
		want  string
	}{
		{0, RiskLow},
		{49, RiskLow},
		{50, RiskMedium},
		{69, RiskMedium},
		{70, RiskHigh},
		{89, RiskHigh},
		{90, RiskCritical},
		{100, RiskCritical},
	}
	for _, c := range cases {
		if got := RiskLevel(c.score); got != c.want {
			t.Errorf("RiskLevel(%d) = %s, want %s", c.score, got, c.want)
		}
	}
}

func TestAssessSafetyNone(t *testing.T) {
	impact := AssessSafety([]string{"T1110", "T1078"})
	if impact.Level != "None" {
		t.Errorf("level = %s, want None", impact.Level)
	}
	if impact.PhysicalDamageRisk || impact.PersonnelRisk {
		t.Error("no safety techniques means no physical or personnel risk")
	}
}

func TestAssessSafetyCritical(t *testing.T) {
	impact := AssessSafety([]string{"T0878", "T0843"})
	if impact.Level != "CRITICAL" {
		t.Errorf("level = %s, want CRITICAL", impact.Level)
	}
	if !impact.PhysicalDamageRisk {
		t.Error("CRITICAL level implies physical damage risk")
	}
	if !impact.PersonnelRisk {
		t.Error("alarm suppression implies personnel risk")
	}
	if len(impact.IdentifiedImpacts) != 2 {
		t.Errorf("expected 2 identified impacts, got %d", len(impact.IdentifiedImpacts))
	}
}

func TestAssessSafetyHighWithoutPersonnelRisk(t *testing.T) {
	impact := AssessSafety([]string{"T0843"})
	if impact.Level != "HIGH" {
		t.Errorf("level = %s, want HIGH", impact.Level)
	}
	if !impact.PhysicalDamageRisk {
		t.Error("HIGH level implies physical damage risk")
	}
	if impact.PersonnelRisk {
		t.Error("program download alone does not imply personnel risk")
	}
}

func TestAssessSafetyMediumNoDamageRisk(t *testing.T) {
	impact := AssessSafety([]string{"T0832"})
	if impact.Level != "MEDIUM" {
		t.Errorf("level = %s, want MEDIUM", impact.Level)
	}
	if impact.PhysicalDamageRisk {
		t.Error("MEDIUM level does not imply physical damage risk")
	}
}

func TestAssessSafetyExplanationsAreStatic(t *testing.T) {
	a := AssessSafety([]string{"T0836"})
	b := AssessSafety([]string{"T0836", "T1110"})
	if len(a.IdentifiedImpacts) != 1 || len(b.IdentifiedImpacts) != 1 {
		t.Fatal("expected one identified impact each")
	}
	if a.IdentifiedImpacts[0].Impact != b.IdentifiedImpacts[0].Impact {
		t.Error("explanation text must not vary with context")
	}
}

func TestAssessSafetyDeduplicates(t *testing.T) {
	impact := AssessSafety([]string{"T0878", "T0878"})
	if len(impact.IdentifiedImpacts) != 1 {
		t.Errorf("duplicate techniques should appear once, got %d", len(impact.IdentifiedImpacts))
	}
}
