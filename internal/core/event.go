package core

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Severity represents the severity level of an event or analysis finding.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityLow:
		return "LOW"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseSeverity(str)
	return nil
}

// ParseSeverity maps common log level strings onto a Severity. Unknown
// levels map to INFO rather than failing, since raw logs carry anything.
func ParseSeverity(level string) Severity {
	switch normalizeLevel(level) {
	case "CRITICAL", "CRIT", "FATAL", "EMERG", "ALERT":
		return SeverityCritical
	case "HIGH", "ERROR", "ERR":
		return SeverityHigh
	case "MEDIUM", "WARNING", "WARN":
		return SeverityMedium
	case "LOW", "NOTICE":
		return SeverityLow
	default:
		return SeverityInfo
	}
}

func normalizeLevel(level string) string {
	b := make([]byte, 0, len(level))
	for i := 0; i < len(level); i++ {
		c := level[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		if c == ' ' || c == '\t' {
			continue
		}
		b = append(b, c)
	}
	return string(b)
}

// Event is a normalized log record flowing through analysis. Techniques
// holds the attack technique identifiers already attributed to the event;
// an event with no techniques is ordinary operational noise.
type Event struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Severity   Severity          `json:"severity"`
	Source     string            `json:"source"`
	Message    string            `json:"message"`
	Techniques []string          `json:"techniques,omitempty"`
	Attrs      map[string]string `json:"attrs,omitempty"`
}

// NewEvent creates an Event with a generated ID.
func NewEvent(ts time.Time, severity Severity, source, message string) Event {
	return Event{
		ID:        uuid.New().String(),
		Timestamp: ts.UTC(),
		Severity:  severity,
		Source:    source,
		Message:   message,
	}
}

// HasTechnique reports whether the event is attributed to the given
// technique identifier.
func (e Event) HasTechnique(id string) bool {
	for _, t := range e.Techniques {
		if t == id {
			return true
		}
	}
	return false
}

// Marshal serializes the event to JSON.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes an Event from JSON.
func UnmarshalEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// SortEvents orders events chronologically, breaking timestamp ties by ID
// so repeated runs over the same input produce the same order.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].ID < events[j].ID
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
}
