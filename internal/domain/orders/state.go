package orders

// State is the lifecycle position of an order.
//
// Transitions only move forward:
//
//	Opened -> Closed      (Close)
//	Closed -> Finished    (Finish, FinishDirect)
type State string

const (
	StateOpened   State = "opened"
	StateClosed   State = "closed"
	StateFinished State = "finished"
)

// Transition names an operation that advances an order's state.
type Transition string

const (
	TransitionClose        Transition = "close"
	TransitionFinish       Transition = "finish"
	TransitionFinishDirect Transition = "finish_direct"
)

var transitions = map[Transition]struct{ from, to State }{
	TransitionClose:        {from: StateOpened, to: StateClosed},
	TransitionFinish:       {from: StateClosed, to: StateFinished},
	TransitionFinishDirect: {from: StateClosed, to: StateFinished},
}

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	switch s {
	case StateOpened, StateClosed, StateFinished:
		return true
	}
	return false
}

// CanApply reports whether t may run from s.
func (s State) CanApply(t Transition) bool {
	rule, ok := transitions[t]
	return ok && rule.from == s
}

// Target returns the state t leads to.
func (t Transition) Target() State {
	return transitions[t].to
}
