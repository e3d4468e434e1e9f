package chat

import "fmt"

// State is a step of a streaming turn.
type State int

const (
	StateInit State = iota
	StateValidating
	StateStreaming
	StateCompleted
	StateTimedOut
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateValidating:
		return "validating"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateErrored:
		return "errored"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateTimedOut || s == StateErrored
}

var transitions = map[State][]State{
	StateInit:       {StateValidating},
	StateValidating: {StateStreaming},
	StateStreaming:  {StateCompleted, StateTimedOut, StateErrored},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type turn struct {
	state State
}

// to advances the turn. Illegal transitions indicate a bug in the relay loop.
func (t *turn) to(next State) {
	if !CanTransition(t.state, next) {
		panic(fmt.Sprintf("chat: illegal transition %s -> %s", t.state, next))
	}
	t.state = next
}
