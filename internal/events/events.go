// Package events publishes session lifecycle transitions to a configurable sink.
package events

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"nodeagent/internal/logger"
)

// Event is one lifecycle transition of a session.
type Event struct {
	SessionID string    `json:"session_id"`
	Hostname  string    `json:"hostname,omitempty"`
	NodeID    string    `json:"node_id,omitempty"`
	State     string    `json:"state"`
	Port      uint16    `json:"port,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Sink delivers events.
type Sink interface {
	Emit(ctx context.Context, e Event) error
	Close() error
}

// NopSink drops every event.
type NopSink struct{}

func (NopSink) Emit(context.Context, Event) error { return nil }
func (NopSink) Close() error                      { return nil }

// Recorder stamps events with a session id, hostname and time before handing
// them to a sink. Sink failures are logged, never returned.
type Recorder struct {
	sink      Sink
	clock     clock.Clock
	sessionID string
	hostname  string
}

// NewRecorder starts a new session id. A nil sink drops events; a nil clock uses wall time.
func NewRecorder(sink Sink, clk clock.Clock, hostname string) *Recorder {
	if sink == nil {
		sink = NopSink{}
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Recorder{
		sink:      sink,
		clock:     clk,
		sessionID: uuid.NewString(),
		hostname:  hostname,
	}
}

// SessionID identifies every event of this recorder.
func (r *Recorder) SessionID() string {
	return r.sessionID
}

// Record emits e.
func (r *Recorder) Record(ctx context.Context, e Event) {
	e.SessionID = r.sessionID
	e.Hostname = r.hostname
	e.Time = r.clock.Now().UTC()

	if err := r.sink.Emit(ctx, e); err != nil {
		log := logger.WithComponent("events")
		log.Warn().Err(err).Str("state", e.State).Msg("failed to publish lifecycle event")
	}
}
