package session

import (
	"errors"
	"fmt"
)

// Each failure a session can end with matches exactly one of these via errors.Is.
var (
	ErrAlreadyRunning   = errors.New("node already running")
	ErrRunStatus        = errors.New("failed to access run status")
	ErrBind             = errors.New("failed to bind control listener")
	ErrStorageInit      = errors.New("failed to initialize storage")
	ErrIdentity         = errors.New("failed to acquire identity")
	ErrRequestToken     = errors.New("failed to resolve request token")
	ErrNodeConstruction = errors.New("failed to construct node")
	ErrCommand          = errors.New("command failed")
	ErrNodeRuntime      = errors.New("node terminated with error")
)

// AlreadyRunningError names the port of the node recorded as running.
type AlreadyRunningError struct {
	Port uint16
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("node already running on port %d", e.Port)
}

func (e *AlreadyRunningError) Is(target error) bool {
	return target == ErrAlreadyRunning
}

// CommandError is the failure of the caller's command, including a panic.
type CommandError struct {
	Err   error
	Panic any
}

func (e *CommandError) Error() string {
	return "command failed: " + e.Err.Error()
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func (e *CommandError) Is(target error) bool {
	return target == ErrCommand
}

func wrap(kind, err error) error {
	return fmt.Errorf("%w: %w", kind, err)
}

func nodeErr(err error) error {
	if err == nil {
		return nil
	}
	return wrap(ErrNodeRuntime, err)
}
