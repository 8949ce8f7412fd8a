// ---------------------------------------------------------------------------
// pattern.go — multi-stage attack pattern definitions. A pattern is an
// ordered list of stages; each stage names a message regex, a minimum event
// count, and (for every stage after the first) the maximum gap in minutes
// from the previous stage's anchor event.
// ---------------------------------------------------------------------------

package pattern

import (
	"fmt"
	"regexp"
	"time"
)

// Stage is one step of a multi-stage pattern.
type Stage struct {
	Name          string `yaml:"name" json:"name"`
	Pattern       string `yaml:"pattern" json:"pattern"`
	MinCount      int    `yaml:"min_count" json:"min_count"`
	MaxGapMinutes int    `yaml:"max_gap_minutes,omitempty" json:"max_gap_minutes,omitempty"`

	re *regexp.Regexp
}

// Matches reports whether the stage's regex matches the message.
func (s *Stage) Matches(message string) bool {
	return s.re != nil && s.re.MatchString(message)
}

// MaxGap returns the stage's maximum gap as a duration.
func (s *Stage) MaxGap() time.Duration {
	return time.Duration(s.MaxGapMinutes) * time.Minute
}

// Definition is one named attack pattern.
type Definition struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Stages      []Stage  `yaml:"sequence" json:"sequence"`
	Severity    int      `yaml:"severity" json:"severity"`
	Techniques  []string `yaml:"techniques" json:"techniques"`
	AttackStage string   `yaml:"attack_stage" json:"attack_stage"`
}

// compile validates the definition and compiles its stage regexes. It
// returns the first problem found; validation is all-or-nothing at the
// library level.
func (d *Definition) compile() error {
	if d.Name == "" {
		return fmt.Errorf("pattern has no name")
	}
	if len(d.Stages) == 0 {
		return fmt.Errorf("no stages defined")
	}
	for i := range d.Stages {
		st := &d.Stages[i]
		if st.Pattern == "" {
			return fmt.Errorf("stage %d (%s) has no pattern", i, st.Name)
		}
		re, err := regexp.Compile(`(?i)` + st.Pattern)
		if err != nil {
			return fmt.Errorf("stage %d (%s): bad regex: %v", i, st.Name, err)
		}
		st.re = re
		if st.MinCount <= 0 {
			st.MinCount = 1
		}
		if i > 0 && st.MaxGapMinutes <= 0 {
			return fmt.Errorf("stage %d (%s) requires a positive max_gap_minutes", i, st.Name)
		}
	}
	if d.Severity < 0 || d.Severity > 100 {
		return fmt.Errorf("severity %d out of range [0,100]", d.Severity)
	}
	return nil
}
