package hub

// State is a viewer connection's lifecycle state.
//
//	Connecting -> Open -> Closed
//	                   -> Errored
//
// Connecting may also end directly in Closed or Errored when the handshake
// does not complete. Closed and Errored are terminal; a reconnecting viewer
// gets a new Conn with a new identity.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateErrored
}

// CanTransition reports whether moving from s to next is allowed.
func (s State) CanTransition(next State) bool {
	switch s {
	case StateConnecting:
		return next == StateOpen || next == StateClosed || next == StateErrored
	case StateOpen:
		return next == StateClosed || next == StateErrored
	default:
		return false
	}
}
