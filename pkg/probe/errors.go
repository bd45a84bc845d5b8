package probe

import "fmt"

// State is a state of the probe state machine.
type State int

const (
	// StateDisconnected is the state before dialing and after closing.
	StateDisconnected State = iota
	// StateConnected is the state after dialing, before the command is sent.
	StateConnected
	// StateAwaitingStatus is the state after sending the command.
	StateAwaitingStatus
	// StateSuccess is the state after an OK status.
	StateSuccess
	// StateFailure is the state after any other status.
	StateFailure
)

var stateNames = []string{"disconnected", "connected", "awaiting-status", "success", "failure"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// ProtocolError terminates a probe. State is the state the probe was in when
// the error occurred.
type ProtocolError struct {
	State State
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("probe failed in state %s: %v", e.State, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}
