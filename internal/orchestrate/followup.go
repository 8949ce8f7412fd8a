// ---------------------------------------------------------------------------
// followup.go — plans bounded follow-up investigations from stage findings.
// At most maxFollowups descriptors per stage; follow-ups never trigger
// further follow-ups.
// ---------------------------------------------------------------------------

package orchestrate

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/logsentinel-project/logsentinel/internal/core"
)

// Followup kinds.
const (
	FollowupCredentialFailure = "credential_failure"
	FollowupSafetyConfig      = "safety_config"
)

// Followup describes one follow-up investigation: a set of retrieval
// queries tied to the finding that triggered it.
type Followup struct {
	Kind      string    `json:"kind"`
	Source    string    `json:"source"`
	Queries   []string  `json:"queries"`
	Triggered time.Time `json:"triggered"`
}

var (
	reCredFailure  = regexp.MustCompile(`(?i)(failed|unsuccessful|invalid).*login|authentication.*fail`)
	reSafetyChange = regexp.MustCompile(`(?i)(config|parameter|setpoint).*(change|modif|alter|force)|(alarm|safety|interlock).*(suppress|override|disable|bypass)`)
	reIPv4         = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
)

// TriggerEngine plans follow-ups from a stage's events.
type TriggerEngine struct {
	maxFollowups int
	window       time.Duration
}

// NewTriggerEngine creates an engine with the given descriptor cap and
// activity window.
func NewTriggerEngine(maxFollowups int, window time.Duration) *TriggerEngine {
	if maxFollowups <= 0 {
		maxFollowups = 10
	}
	if window <= 0 {
		window = time.Hour
	}
	return &TriggerEngine{maxFollowups: maxFollowups, window: window}
}

// Plan inspects the events and returns at most the configured number of
// follow-up descriptors. Credential failures yield one descriptor per
// distinct source, most recent sources first; safety or configuration
// changes yield one additional descriptor. Overflow is truncated silently.
func (e *TriggerEngine) Plan(events []core.Event) []Followup {
	var plans []Followup

	// Rule 1: per-source credential failure trace.
	lastFailure := make(map[string]time.Time)
	for _, ev := range events {
		if !reCredFailure.MatchString(ev.Message) {
			continue
		}
		src := failureSource(ev)
		if src == "" {
			continue
		}
		if ev.Timestamp.After(lastFailure[src]) {
			lastFailure[src] = ev.Timestamp
		}
	}

	sources := make([]string, 0, len(lastFailure))
	for src := range lastFailure {
		sources = append(sources, src)
	}
	sort.Slice(sources, func(i, j int) bool {
		ti, tj := lastFailure[sources[i]], lastFailure[sources[j]]
		if ti.Equal(tj) {
			return sources[i] < sources[j]
		}
		return ti.After(tj)
	})

	winMinutes := int(e.window.Minutes())
	for _, src := range sources {
		plans = append(plans, Followup{
			Kind:      FollowupCredentialFailure,
			Source:    src,
			Triggered: lastFailure[src],
			Queries: []string{
				fmt.Sprintf("successful login from %s within 10 minutes", src),
				"user created OR account created OR account added",
				"privilege granted OR admin added OR sudo",
				fmt.Sprintf("activity from %s within %d minutes", src, winMinutes),
			},
		})
	}

	// Rule 2: safety or configuration change trace.
	for _, ev := range events {
		if reSafetyChange.MatchString(ev.Message) {
			plans = append(plans, Followup{
				Kind:      FollowupSafetyConfig,
				Source:    ev.Source,
				Triggered: ev.Timestamp,
				Queries: []string{
					"safety system OR interlock OR alarm suppress",
					"setpoint change OR parameter modify OR limit exceed",
				},
			})
			break
		}
	}

	if len(plans) > e.maxFollowups {
		plans = plans[:e.maxFollowups]
	}
	return plans
}

// failureSource extracts the origin of a credential failure: the first IP
// in the message if present, otherwise the event source.
func failureSource(ev core.Event) string {
	if ip := reIPv4.FindString(ev.Message); ip != "" {
		return ip
	}
	return ev.Source
}
