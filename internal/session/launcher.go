// Package session supervises one node from launch to cleanup: it refuses to
// start over a live record, boots the node, races interrupt, command and node
// exit, and always clears the persisted run status.
package session

import (
	"context"
	"net"
	"time"

	"nodeagent/internal/auth"
	"nodeagent/internal/datadir"
	"nodeagent/internal/identity"
	"nodeagent/internal/logger"
	"nodeagent/internal/network"
	"nodeagent/internal/node"
	"nodeagent/internal/runstatus"
)

// StartConfig is the immutable input of a launch.
type StartConfig struct {
	BindAddr string
	RPCPort  uint16
	Token    auth.TokenPolicy
	Relay    node.RelayMode
}

// Node is the part of a running node the supervisor relies on.
type Node interface {
	ID() string
	Shutdown()
	Done() <-chan struct{}
	Err() error
}

// Handle is what a successful launch hands to the orchestrator.
type Handle struct {
	Node   Node
	Client *node.Client
	Port   uint16
}

// SpawnFunc constructs and starts a node.
type SpawnFunc func(ctx context.Context, opts node.Options) (Node, *node.Client, error)

// BindFunc binds the control listener and reports the port actually bound.
type BindFunc func(ctx context.Context, port uint16) (net.Listener, uint16, error)

// SpawnNode is the SpawnFunc for the real node.
func SpawnNode(ctx context.Context, opts node.Options) (Node, *node.Client, error) {
	n, err := node.Spawn(ctx, opts)
	if err != nil {
		return nil, nil, err
	}
	return n, n.Client(), nil
}

// Launcher runs the startup sequence against one data directory.
type Launcher struct {
	Store  runstatus.Store
	Layout datadir.Layout
	// IdentityPath is where the secret key lives; empty means ephemeral.
	IdentityPath    string
	ShutdownTimeout time.Duration

	// Bind and Spawn default to network.BindControl and SpawnNode.
	Bind  BindFunc
	Spawn SpawnFunc
}

// Launch performs, in order: the already-running check, storage setup,
// identity, request token, control bind plus status store, and node
// construction. Each step fails with its own kind: ErrRunStatus when the
// record cannot be read or written, ErrStorageInit, ErrIdentity,
// ErrRequestToken, ErrBind and ErrNodeConstruction. A failure after the
// status was stored leaves the record for the caller to clear.
func (l *Launcher) Launch(ctx context.Context, cfg StartConfig) (*Handle, error) {
	log := logger.WithComponent("launcher")

	status, err := l.Store.Load(ctx)
	if err != nil {
		return nil, wrap(ErrRunStatus, err)
	}
	if status.Running {
		return nil, &AlreadyRunningError{Port: status.Port}
	}

	if err := l.Layout.Ensure(); err != nil {
		return nil, wrap(ErrStorageInit, err)
	}

	id, err := identity.Acquire(l.IdentityPath)
	if err != nil {
		return nil, wrap(ErrIdentity, err)
	}

	token, err := cfg.Token.Resolve()
	if err != nil {
		return nil, wrap(ErrRequestToken, err)
	}
	if cfg.Token.Kind == auth.TokenRandom {
		log.Info().Str("request_token", token.String()).Msg("generated request token")
	}

	bind := l.Bind
	if bind == nil {
		bind = network.BindControl
	}
	ln, port, err := bind(ctx, cfg.RPCPort)
	if err != nil {
		return nil, wrap(ErrBind, err)
	}
	if err := l.Store.Store(ctx, port); err != nil {
		ln.Close()
		return nil, wrap(ErrRunStatus, err)
	}
	log.Debug().Uint16("port", port).Msg("control port recorded")

	spawn := l.Spawn
	if spawn == nil {
		spawn = SpawnNode
	}
	n, client, err := spawn(ctx, node.Options{
		BindAddr:        cfg.BindAddr,
		Relay:           cfg.Relay,
		Token:           token,
		PeersPath:       l.Layout.PeersFile(),
		Control:         ln,
		Identity:        id,
		ShutdownTimeout: l.ShutdownTimeout,
	})
	if err != nil {
		ln.Close()
		return nil, wrap(ErrNodeConstruction, err)
	}

	return &Handle{Node: n, Client: client, Port: port}, nil
}
