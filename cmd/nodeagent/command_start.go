package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"nodeagent/internal/logger"
	"nodeagent/internal/runstatus"
	"nodeagent/internal/service"
	"nodeagent/internal/session"
)

func newStartCmd(g *globalFlags) *cobra.Command {
	var (
		addr         string
		rpcPort      uint16
		requestToken string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run a node until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(g)
			if err != nil {
				service.ReportStartupError(service.Name, err)
				return err
			}
			defer e.close()

			flags := cmd.Flags()
			if flags.Changed("addr") {
				e.cfg.BindAddr = addr
			}
			if flags.Changed("rpc-port") {
				e.cfg.RPCPort = int(rpcPort)
			}
			if flags.Changed("request-token") {
				e.cfg.RequestToken = requestToken
			}
			if err := e.cfg.Validate(); err != nil {
				return e.startupFailed(err)
			}

			startCfg, err := e.startConfig()
			if err != nil {
				return e.startupFailed(err)
			}
			orch, err := e.orchestrator()
			if err != nil {
				return e.startupFailed(err)
			}
			e.watchLogging(g.loggingPath)

			log := logger.WithComponent("main")
			log.Info().
				Str("version", version).
				Str("config", g.configPath).
				Str("data_dir", e.dataDir).
				Msg("starting nodeagent")

			service.RemoveStartupErrorFile(e.startupErrorDir())
			svc := service.NewService(func(ctx context.Context) error {
				return orch.Run(ctx, startCfg, session.UntilStopped, nil)
			})
			if err := runUntilStopped(cmd.Context(), svc, e.store); err != nil {
				if isLaunchFailure(err) {
					return e.startupFailed(err)
				}
				return err
			}

			log.Info().Msg("nodeagent stopped")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&addr, "addr", "", "data-plane bind address (default from config, 0.0.0.0:11204)")
	f.Uint16Var(&rpcPort, "rpc-port", 4919, "preferred local control port")
	f.StringVar(&requestToken, "request-token", "", `require this base32 token on data-plane requests, or "random"`)
	return cmd
}

// runUntilStopped runs svc. When a second signal abandons the session while
// it is still stopping, the process exits before the session's own cleanup,
// so the run status is cleared here instead.
func runUntilStopped(ctx context.Context, svc service.Service, store runstatus.Store) error {
	err := svc.Run(ctx)
	if errors.Is(err, service.ErrForcedExit) {
		log := logger.WithComponent("main")
		if cerr := store.Clear(context.Background()); cerr != nil {
			log.Error().Err(cerr).Msg("failed to clear run status after forced exit")
		} else {
			log.Warn().Msg("run status cleared after forced exit")
		}
	}
	return err
}

// isLaunchFailure reports whether err happened before the node was serving.
func isLaunchFailure(err error) bool {
	for _, kind := range []error{
		session.ErrAlreadyRunning,
		session.ErrRunStatus,
		session.ErrStorageInit,
		session.ErrIdentity,
		session.ErrRequestToken,
		session.ErrBind,
		session.ErrNodeConstruction,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// startupFailed reports err through the platform channel and the startup
// error file, then returns it unchanged.
func (e *env) startupFailed(err error) error {
	service.ReportStartupError(service.Name, err)
	if path := service.WriteStartupErrorFile(e.startupErrorDir(), err); path != "" {
		log := logger.WithComponent("main")
		log.Error().Err(err).Str("report", path).Msg("startup failed")
	}
	return err
}
