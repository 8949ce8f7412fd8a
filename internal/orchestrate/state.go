package orchestrate

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the orchestration lifecycle state of one analysis request.
type State int

const (
	StateReceived State = iota
	StateRouting
	StateTriage
	StateHunt
	StateMapping
	StateSynthesizing
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateRouting:
		return "routing"
	case StateTriage:
		return "triage"
	case StateHunt:
		return "hunt"
	case StateMapping:
		return "mapping"
	case StateSynthesizing:
		return "synthesizing"
	case StateComplete:
		return "complete"
	default:
		return "unknown"
	}
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseState(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseState maps a serialized state name back onto a State.
func ParseState(name string) (State, error) {
	switch name {
	case "received":
		return StateReceived, nil
	case "routing":
		return StateRouting, nil
	case "triage":
		return StateTriage, nil
	case "hunt":
		return StateHunt, nil
	case "mapping":
		return StateMapping, nil
	case "synthesizing":
		return StateSynthesizing, nil
	case "complete":
		return StateComplete, nil
	default:
		return StateReceived, fmt.Errorf("unknown state %q", name)
	}
}

// Legal transitions. Analysis stages may hand off to each other in any
// order, but nothing skips synthesizing and nothing leaves complete.
var transitions = map[State][]State{
	StateReceived:     {StateRouting},
	StateRouting:      {StateTriage, StateHunt, StateMapping, StateSynthesizing},
	StateTriage:       {StateTriage, StateHunt, StateMapping, StateSynthesizing},
	StateHunt:         {StateTriage, StateHunt, StateMapping, StateSynthesizing},
	StateMapping:      {StateTriage, StateHunt, StateMapping, StateSynthesizing},
	StateSynthesizing: {StateComplete},
	StateComplete:     {},
}

// lifecycle tracks one request's progress through the state machine and
// records the transition trail for the result.
type lifecycle struct {
	current State
	trail   []Transition
}

// Transition is one recorded state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
}

func newLifecycle() *lifecycle {
	return &lifecycle{current: StateReceived}
}

// advance moves to the next state, enforcing the transition table. An
// illegal transition is a programming error.
func (l *lifecycle) advance(to State) error {
	for _, legal := range transitions[l.current] {
		if legal == to {
			l.trail = append(l.trail, Transition{From: l.current, To: to, At: time.Now().UTC()})
			l.current = to
			return nil
		}
	}
	return fmt.Errorf("illegal state transition %s -> %s", l.current, to)
}
