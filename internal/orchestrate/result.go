package orchestrate

import (
	"time"

	"github.com/logsentinel-project/logsentinel/internal/assess"
	"github.com/logsentinel-project/logsentinel/internal/core"
	"github.com/logsentinel-project/logsentinel/internal/correlate"
	"github.com/logsentinel-project/logsentinel/internal/mitre"
)

// Request is one analysis request. Events must be normalized and in
// chronological order; requests share no state with each other.
type Request struct {
	ID            string       `json:"id"`
	Task          string       `json:"task"`
	Events        []core.Event `json:"events"`
	OTEnvironment bool         `json:"ot_environment"`
}

// Result is the complete outcome of one analysis request.
type Result struct {
	RequestID      string    `json:"request_id"`
	Task           string    `json:"task"`
	GeneratedAt    time.Time `json:"generated_at"`
	State          State     `json:"state"`
	EventsAnalyzed int       `json:"events_analyzed"`

	RiskScore       int    `json:"risk_score"`
	RiskLevel       string `json:"risk_level"`
	AttackStage     string `json:"attack_stage"`
	AttackSucceeded bool   `json:"attack_succeeded"`
	Confidence      string `json:"confidence"`

	Sequences    []correlate.MatchedSequence `json:"sequences,omitempty"`
	Techniques   []mitre.Technique           `json:"techniques,omitempty"`
	SafetyImpact *assess.SafetyImpact        `json:"safety_impact,omitempty"`

	Timeline        []TimelineEntry  `json:"timeline,omitempty"`
	IOCs            IOCs             `json:"iocs"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`

	Summary   string `json:"summary"`
	Generated bool   `json:"generated"`

	FollowupsRun   int          `json:"followups_run"`
	DegradedStages []string     `json:"degraded_stages,omitempty"`
	Trail          []Transition `json:"trail,omitempty"`
}

// TimelineEntry is one row of the chronological attack timeline.
type TimelineEntry struct {
	Time       time.Time `json:"time"`
	Severity   string    `json:"severity"`
	Message    string    `json:"message"`
	Source     string    `json:"source"`
	Techniques []string  `json:"techniques,omitempty"`
}

// IOCs collects the indicators of compromise extracted from matched events.
type IOCs struct {
	SourceIPs       []string `json:"source_ips,omitempty"`
	CreatedAccounts []string `json:"created_accounts,omitempty"`
	Assets          []string `json:"assets,omitempty"`
	FailedLogins    int      `json:"failed_logins"`
	ConfigChanges   int      `json:"config_changes"`
}

// Recommendation tiers.
const (
	TierImmediate = "IMMEDIATE"
	TierShortTerm = "SHORT-TERM"
	TierLongTerm  = "LONG-TERM"
)

// Recommendation is one recommended action with its urgency tier.
type Recommendation struct {
	Tier   string `json:"tier"`
	Action string `json:"action"`
}

// Degraded reports whether any stage ran degraded.
func (r *Result) Degraded() bool {
	return len(r.DegradedStages) > 0
}
