package fsm

// Status constants used by the purchase attempt state machine.
const (
	StatusIdle       = "idle"
	StatusSelected   = "selected"
	StatusConfirmed  = "confirmed"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
)

var transitions = map[string]map[string]struct{}{
	StatusIdle: {StatusSelected: {}},
	StatusSelected: {
		StatusConfirmed: {},
		StatusIdle:      {}, // abandon before any side effect
	},
	StatusConfirmed: {
		StatusProcessing: {},
		StatusIdle:       {}, // abandon before any side effect
	},
	// Once processing starts the attempt runs to a terminal state; billing
	// calls cannot be aborted safely mid-flight.
	StatusProcessing: {
		StatusSucceeded: {},
		StatusFailed:    {},
	},
	StatusSucceeded: {StatusIdle: {}},
	StatusFailed:    {StatusIdle: {}},
}

// CanTransition returns whether an attempt may move from one status to another.
func CanTransition(from, to string) bool {
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// IsTerminal reports whether the status ends an attempt.
func IsTerminal(status string) bool {
	return status == StatusSucceeded || status == StatusFailed
}
