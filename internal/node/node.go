// Package node is the long-running networked node supervised by a session.
// It serves a gRPC control plane on the listener handed to it and an
// HTTP/websocket data plane on its bind address.
package node

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"nodeagent/internal/identity"
	"nodeagent/internal/logger"
	"nodeagent/internal/network"
)

// Node is a running node. It stops when Shutdown is called, when a remote
// control client asks it to, or when either plane fails.
type Node struct {
	opts      Options
	id        *identity.Identity
	log       zerolog.Logger
	startedAt time.Time

	grpcServer *grpc.Server
	health     *health.Server
	httpServer *http.Server
	dataLn     net.Listener
	data       *dataPlane
	peers      *peerSet
	client     *Client

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
	done         chan struct{}
	err          error
}

// Spawn builds and starts a node. ctx only bounds construction; the node
// keeps running until it is shut down. On failure the control listener is closed.
func Spawn(ctx context.Context, opts Options) (*Node, error) {
	if err := opts.validate(); err != nil {
		if opts.Control != nil {
			opts.Control.Close()
		}
		return nil, err
	}

	n, err := build(ctx, opts)
	if err != nil {
		opts.Control.Close()
		return nil, err
	}
	n.start()
	return n, nil
}

func build(ctx context.Context, opts Options) (*Node, error) {
	peers, err := loadPeers(opts.PeersPath)
	if err != nil {
		return nil, err
	}

	var lc net.ListenConfig
	dataLn, err := lc.Listen(ctx, "tcp", opts.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind data plane %s: %w", opts.BindAddr, err)
	}

	client, err := NewClient(opts.Control.Addr().String())
	if err != nil {
		dataLn.Close()
		return nil, err
	}

	n := &Node{
		opts:       opts,
		id:         opts.Identity,
		log:        logger.WithComponent("node"),
		startedAt:  time.Now(),
		health:     health.NewServer(),
		dataLn:     dataLn,
		peers:      peers,
		client:     client,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}

	n.grpcServer = grpc.NewServer()
	healthpb.RegisterHealthServer(n.grpcServer, n.health)
	n.grpcServer.RegisterService(&controlServiceDesc, &controlService{node: n})

	n.data = newDataPlane(n.ID(), n.Status, peers, opts.Token, n.log)
	n.httpServer = &http.Server{
		Handler:           n.data.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return n, nil
}

func (n *Node) start() {
	controlErr := make(chan error, 1)
	dataErr := make(chan error, 1)

	go func() {
		if err := n.grpcServer.Serve(n.opts.Control); err != nil {
			controlErr <- err
		}
	}()
	go func() {
		if err := n.httpServer.Serve(n.dataLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			dataErr <- err
		}
	}()

	n.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	n.log.Info().
		Str("node_id", n.ID()).
		Str("control", n.opts.Control.Addr().String()).
		Str("data", n.dataLn.Addr().String()).
		Str("relay", n.opts.Relay.String()).
		Int("known_peers", n.peers.len()).
		Msg("node started")

	go n.supervise(controlErr, dataErr)
}

func (n *Node) supervise(controlErr, dataErr <-chan error) {
	var err error
	select {
	case <-n.shutdownCh:
	case e := <-controlErr:
		err = fmt.Errorf("control plane stopped: %w", e)
	case e := <-dataErr:
		err = fmt.Errorf("data plane stopped: %w", e)
	}
	if err != nil {
		n.log.Error().Err(err).Msg("node terminating")
	}
	n.stop()
	n.err = err
	close(n.done)
}

// stop tears down both planes within ShutdownTimeout and persists peers.
func (n *Node) stop() {
	n.health.Shutdown()
	n.data.closeAll()

	ctx, cancel := context.WithTimeout(context.Background(), n.opts.ShutdownTimeout)
	defer cancel()

	if err := n.httpServer.Shutdown(ctx); err != nil {
		n.log.Warn().Err(err).Msg("data plane did not stop gracefully")
		n.httpServer.Close()
	}

	stopped := make(chan struct{})
	go func() {
		n.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		n.log.Warn().Msg("control plane did not stop gracefully, forcing")
		n.grpcServer.Stop()
		<-stopped
	}

	if err := n.peers.save(); err != nil {
		n.log.Warn().Err(err).Str("path", n.opts.PeersPath).Msg("failed to save peers")
	}
	if err := n.client.Close(); err != nil {
		n.log.Debug().Err(err).Msg("failed to close local control client")
	}
	n.log.Info().Dur("uptime", time.Since(n.startedAt)).Msg("node stopped")
}

// Shutdown asks the node to stop. It does not wait; use Done for that.
// Calling it more than once is harmless.
func (n *Node) Shutdown() {
	n.shutdownOnce.Do(func() { close(n.shutdownCh) })
}

// Done is closed once the node has released all its resources.
func (n *Node) Done() <-chan struct{} {
	return n.done
}

// Err is the reason the node terminated. It is nil after a requested
// shutdown and only meaningful once Done is closed.
func (n *Node) Err() error {
	select {
	case <-n.done:
		return n.err
	default:
		return nil
	}
}

// Client returns a control client connected to this node.
func (n *Node) Client() *Client {
	return n.client
}

// ID is the node's public identifier.
func (n *Node) ID() string {
	return n.id.ID()
}

// DataAddr is the bound data-plane address.
func (n *Node) DataAddr() net.Addr {
	return n.dataLn.Addr()
}

// ControlPort is the port of the control listener.
func (n *Node) ControlPort() uint16 {
	return network.ListenerPort(n.opts.Control)
}

// Status describes the node as of now.
func (n *Node) Status() Status {
	return Status{
		NodeID:      n.ID(),
		ControlPort: n.ControlPort(),
		DataAddrs:   network.AdvertisedAddrs(n.DataAddr()),
		Relay:       n.opts.Relay.String(),
		Peers:       n.peers.len(),
		Uptime:      time.Since(n.startedAt),
	}
}
