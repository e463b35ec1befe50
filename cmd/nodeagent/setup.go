package main

import (
	"fmt"
	"path/filepath"
	"sync"

	"nodeagent/internal/auth"
	"nodeagent/internal/config"
	"nodeagent/internal/datadir"
	"nodeagent/internal/events"
	"nodeagent/internal/logger"
	"nodeagent/internal/network"
	"nodeagent/internal/node"
	"nodeagent/internal/runstatus"
	"nodeagent/internal/session"
)

// env is everything a subcommand needs, built once from flags and files.
type env struct {
	cfg      *config.Config
	logging  *logger.Config
	dataDir  string
	hostname string
	store    runstatus.Store

	cleanups []func()
}

// setup loads configuration, initializes logging and opens the run-status store.
func setup(g *globalFlags) (*env, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.dataDir != "" {
		cfg.DataDir = g.dataDir
	}

	lc, err := config.LoadLogging(g.loggingPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(*lc); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	dataDir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, err
	}

	e := &env{
		cfg:      cfg,
		logging:  lc,
		dataDir:  dataDir,
		hostname: config.GetHostname(),
	}
	e.store = e.openStore()
	return e, nil
}

func (e *env) openStore() runstatus.Store {
	var store runstatus.Store = runstatus.NewFileStore(e.dataDir)
	if !e.cfg.StatusMirror.Enabled {
		return store
	}

	log := logger.WithComponent("main")
	px := network.Proxy{Host: e.cfg.SOCKSProxy.Host, Port: e.cfg.SOCKSProxy.Port}
	dialFunc := px.DialFunc()
	if px.Enabled() {
		log.Info().
			Str("socks_host", e.cfg.SOCKSProxy.Host).
			Int("socks_port", e.cfg.SOCKSProxy.Port).
			Msg("SOCKS proxy configured")
	}
	mirror := runstatus.NewRedisMirror(store, e.cfg.StatusMirror, e.hostname, dialFunc)
	log.Info().Str("address", e.cfg.StatusMirror.Address).Str("key", mirror.Key()).Msg("mirroring run status to Redis")
	e.cleanups = append(e.cleanups, func() {
		if err := mirror.Close(); err != nil {
			log.Error().Err(err).Msg("error closing status mirror")
		}
	})
	return mirror
}

// close runs cleanups in reverse order.
func (e *env) close() {
	for i := len(e.cleanups) - 1; i >= 0; i-- {
		e.cleanups[i]()
	}
}

// startConfig turns the merged configuration into a launch request.
func (e *env) startConfig() (session.StartConfig, error) {
	token, err := auth.ParseTokenOption(e.cfg.RequestToken)
	if err != nil {
		return session.StartConfig{}, fmt.Errorf("invalid request token: %w", err)
	}
	relay, err := node.ParseRelayMode(e.cfg.Relay.Mode, e.cfg.Relay.URLs)
	if err != nil {
		return session.StartConfig{}, err
	}
	return session.StartConfig{
		BindAddr: e.cfg.BindAddr,
		RPCPort:  uint16(e.cfg.RPCPort),
		Token:    token,
		Relay:    relay,
	}, nil
}

// orchestrator wires the launcher, the event sink and the metrics server.
func (e *env) orchestrator() (*session.Orchestrator, error) {
	layout := datadir.New(e.dataDir)
	identityPath := layout.IdentityFile()
	if e.cfg.EphemeralIdentity {
		identityPath = ""
	}

	sink, err := events.NewSink(e.cfg.Events, e.cfg.SOCKSProxy)
	if err != nil {
		return nil, fmt.Errorf("failed to create event sink: %w", err)
	}
	log := logger.WithComponent("main")
	e.cleanups = append(e.cleanups, func() {
		if err := sink.Close(); err != nil {
			log.Error().Err(err).Msg("error closing event sink")
		}
	})

	return &session.Orchestrator{
		Launcher: &session.Launcher{
			Store:           e.store,
			Layout:          layout,
			IdentityPath:    identityPath,
			ShutdownTimeout: e.cfg.ShutdownTimeout,
		},
		Events:      events.NewRecorder(sink, nil, e.hostname),
		MetricsAddr: e.cfg.MetricsAddr,
	}, nil
}

// watchLogging hot-reloads the logging file while a session runs. A missing
// path or a watcher failure only disables reloading.
func (e *env) watchLogging(path string) {
	if path == "" {
		return
	}
	log := logger.WithComponent("main")
	var mu sync.Mutex

	w, err := config.NewLoggingWatcher(path, func(lc *logger.Config) {
		mu.Lock()
		defer mu.Unlock()
		if err := logger.Init(*lc); err != nil {
			log.Error().Err(err).Msg("failed to apply logging configuration")
			return
		}
		log.Info().Msg("logging configuration updated")
	})
	if err != nil {
		log.Warn().Err(err).Msg("failed to create logging watcher, hot reload disabled")
		return
	}
	if err := w.Start(); err != nil {
		log.Warn().Err(err).Msg("failed to start logging watcher")
		return
	}
	e.cleanups = append(e.cleanups, func() {
		if err := w.Stop(); err != nil {
			log.Error().Err(err).Msg("error stopping logging watcher")
		}
	})
}

// startupErrorDir is where a failed launch leaves its report.
func (e *env) startupErrorDir() string {
	return filepath.Join(e.dataDir, "log")
}
