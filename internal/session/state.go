package session

import "fmt"

// State is the coarse lifecycle of a session. Transitions only move forward:
//
//	Booting -> Running -> ShuttingDown -> Stopped
//	Booting -> Stopped                      (launch failed)
type State int

const (
	Booting State = iota
	Running
	ShuttingDown
	Stopped
)

func (s State) String() string {
	switch s {
	case Booting:
		return "booting"
	case Running:
		return "running"
	case ShuttingDown:
		return "shutting_down"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// RunMode decides whether a successful command ends the session.
type RunMode int

const (
	// SingleCommand ends the session when the command returns.
	SingleCommand RunMode = iota
	// UntilStopped keeps the node up after the command succeeds, until an
	// interrupt or the node's own exit.
	UntilStopped
)

func (m RunMode) String() string {
	switch m {
	case SingleCommand:
		return "single_command"
	case UntilStopped:
		return "until_stopped"
	default:
		return fmt.Sprintf("RunMode(%d)", int(m))
	}
}
