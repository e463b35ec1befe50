package session

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"nodeagent/internal/events"
	"nodeagent/internal/logger"
	"nodeagent/internal/metrics"
	"nodeagent/internal/service"
)

// InterruptFunc returns a channel that is closed, and stays closed, when the
// session should stop. stop releases whatever it watches.
type InterruptFunc func(ctx context.Context) (interrupt <-chan struct{}, stop context.CancelFunc)

// Orchestrator runs whole sessions: launch, race, cleanup.
type Orchestrator struct {
	Launcher *Launcher
	// Events receives every state transition. Nil drops them.
	Events *events.Recorder
	// MetricsAddr, when set, serves process metrics for the session's lifetime.
	MetricsAddr     string
	MetricsInterval time.Duration
	Clock           clock.Clock
	// Interrupt defaults to service.NotifyShutdown (SIGINT/SIGTERM or ctx cancel).
	Interrupt InterruptFunc
}

// Run launches a node, runs cmd against it in mode and returns the session's
// single outcome: nil, the launch failure, or the winning race branch's error.
// The run status is cleared exactly once on the way out, after everything
// else, on every path including launch failures. Cleanup failures are logged only.
func (o *Orchestrator) Run(ctx context.Context, cfg StartConfig, mode RunMode, cmd Command) (err error) {
	log := logger.WithComponent("session")

	notify := o.Interrupt
	if notify == nil {
		notify = service.NotifyShutdown
	}
	interrupt, stopInterrupt := notify(ctx)
	defer stopInterrupt()

	rec := o.Events
	if rec == nil {
		rec = events.NewRecorder(nil, o.Clock, "")
	}
	log = log.With().Str("session_id", rec.SessionID()).Logger()

	var (
		port   uint16
		nodeID string
	)
	transition := func(s State, cause error) {
		e := events.Event{NodeID: nodeID, State: s.String(), Port: port, Mode: mode.String()}
		if cause != nil {
			e.Error = cause.Error()
		}
		log.Debug().Str("state", s.String()).Msg("session state")
		rec.Record(context.WithoutCancel(ctx), e)
	}

	transition(Booting, nil)
	defer func() {
		if cerr := o.Launcher.Store.Clear(context.WithoutCancel(ctx)); cerr != nil {
			log.Error().Err(cerr).Msg("failed to clear run status")
		}
		transition(Stopped, err)
	}()

	if o.MetricsAddr != "" {
		ms, merr := metrics.Start(ctx, o.MetricsAddr, o.Clock, o.MetricsInterval)
		if merr != nil {
			log.Warn().Err(merr).Msg("metrics server not started")
		} else {
			defer ms.Stop()
		}
	}

	h, err := o.Launcher.Launch(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("launch failed")
		return err
	}
	port, nodeID = h.Port, h.Node.ID()

	welcome(log, h, cfg, mode)
	transition(Running, nil)

	branch, err := Race(interrupt, h, mode, cmd, func(b Branch) {
		log.Info().Str("trigger", b.String()).Msg("session ending")
		transition(ShuttingDown, nil)
	})

	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Str("trigger", branch.String()).Msg("session ended")
	return err
}

func welcome(log zerolog.Logger, h *Handle, cfg StartConfig, mode RunMode) {
	ev := log.Info().
		Str("node_id", h.Node.ID()).
		Uint16("control_port", h.Port).
		Str("bind_addr", cfg.BindAddr).
		Str("mode", mode.String())
	if h.Port != cfg.RPCPort {
		ev = ev.Uint16("requested_port", cfg.RPCPort)
	}
	ev.Msg("node running")
}
