// ---------------------------------------------------------------------------
// correlate.go — matches multi-stage attack patterns against a chronological
// event set. Each pattern is evaluated independently; within a pattern, each
// stage collects every matching event in its time window, the last collected
// event becomes the anchor for the next stage's window.
// ---------------------------------------------------------------------------

package correlate

import (
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/logsentinel-project/logsentinel/internal/core"
	"github.com/logsentinel-project/logsentinel/internal/pattern"
)

// MatchedSequence is one detected attack pattern instance.
type MatchedSequence struct {
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	Events          []core.Event `json:"events"`
	Severity        int          `json:"severity"`
	Techniques      []string     `json:"techniques"`
	AttackStage     string       `json:"attack_stage"`
	TimeSpanMinutes float64      `json:"time_span_minutes"`
}

// Start returns the timestamp of the sequence's first event.
func (m *MatchedSequence) Start() time.Time {
	if len(m.Events) == 0 {
		return time.Time{}
	}
	return m.Events[0].Timestamp
}

// Matcher evaluates a pattern library against event sets. It holds no
// per-request state and is safe for concurrent use.
type Matcher struct {
	lib    *pattern.Library
	logger zerolog.Logger
}

// NewMatcher creates a Matcher over a validated library.
func NewMatcher(lib *pattern.Library, logger zerolog.Logger) *Matcher {
	return &Matcher{
		lib:    lib,
		logger: logger.With().Str("component", "correlator").Logger(),
	}
}

// Match evaluates every pattern against the events and returns the detected
// sequences sorted by severity descending, ties broken by earliest start.
// Events must be in chronological order; results are deterministic for a
// given input.
func (m *Matcher) Match(events []core.Event) []MatchedSequence {
	if len(events) == 0 {
		return nil
	}

	var detected []MatchedSequence
	for i := range m.lib.All() {
		def := &m.lib.All()[i]
		if seq, ok := matchPattern(events, def); ok {
			detected = append(detected, seq)
			m.logger.Info().
				Str("pattern", def.Name).
				Int("severity", def.Severity).
				Int("events", len(seq.Events)).
				Msg("attack sequence detected")
		}
	}

	sort.SliceStable(detected, func(i, j int) bool {
		if detected[i].Severity != detected[j].Severity {
			return detected[i].Severity > detected[j].Severity
		}
		return detected[i].Start().Before(detected[j].Start())
	})
	return detected
}

// matchPattern runs one pattern over the events. The first stage scans the
// whole set; each later stage scans only events strictly after the previous
// stage's anchor and no later than anchor + max gap (inclusive).
func matchPattern(events []core.Event, def *pattern.Definition) (MatchedSequence, bool) {
	var collected []core.Event
	var anchor time.Time

	for i := range def.Stages {
		st := &def.Stages[i]

		var stageEvents []core.Event
		if i == 0 {
			for _, ev := range events {
				if st.Matches(ev.Message) {
					stageEvents = append(stageEvents, ev)
				}
			}
		} else {
			deadline := anchor.Add(st.MaxGap())
			for _, ev := range events {
				if !ev.Timestamp.After(anchor) {
					continue
				}
				if ev.Timestamp.After(deadline) {
					continue
				}
				if st.Matches(ev.Message) {
					stageEvents = append(stageEvents, ev)
				}
			}
		}

		if len(stageEvents) < st.MinCount {
			return MatchedSequence{}, false
		}
		collected = append(collected, stageEvents...)
		anchor = stageEvents[len(stageEvents)-1].Timestamp
	}

	span := 0.0
	if len(collected) >= 2 {
		first, last := collected[0].Timestamp, collected[0].Timestamp
		for _, ev := range collected {
			if ev.Timestamp.Before(first) {
				first = ev.Timestamp
			}
			if ev.Timestamp.After(last) {
				last = ev.Timestamp
			}
		}
		span = last.Sub(first).Minutes()
	}

	return MatchedSequence{
		Name:            def.Name,
		Description:     def.Description,
		Events:          collected,
		Severity:        def.Severity,
		Techniques:      def.Techniques,
		AttackStage:     def.AttackStage,
		TimeSpanMinutes: span,
	}, true
}

// Techniques returns the distinct technique IDs across all sequences, in
// first-seen order.
func Techniques(seqs []MatchedSequence) []string {
	var out []string
	seen := make(map[string]bool)
	for _, s := range seqs {
		for _, t := range s.Techniques {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
