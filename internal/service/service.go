// Package service runs nodeagent in the foreground or as a system service and
// turns stop requests (signals, service control) into context cancellation.
package service

import (
	"context"
	"errors"
)

// Name is the service and event source name.
const Name = "nodeagent"

// ErrForcedExit is returned when a second stop signal arrives before the run function returned.
var ErrForcedExit = errors.New("forced exit on second signal")

// Service defines the interface for platform-specific service management.
type Service interface {
	// Run starts the service. It blocks until the service is stopped.
	Run(ctx context.Context) error

	// Stop requests the service to stop.
	Stop() error

	// IsService returns true if running as a system service.
	IsService() bool
}

// RunFunc is the work the service runs. ctx is cancelled when a stop is requested.
type RunFunc func(ctx context.Context) error

// NotifyShutdown returns a channel that is closed on SIGINT/SIGTERM or when
// ctx is cancelled. The channel stays closed, so it can be polled any number
// of times. Call stop to release the signal handler.
func NotifyShutdown(ctx context.Context) (<-chan struct{}, context.CancelFunc) {
	sigCtx, stop := notifyContext(ctx)
	return sigCtx.Done(), stop
}
