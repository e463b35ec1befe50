package runstatus

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"nodeagent/internal/config"
	"nodeagent/internal/logger"
)

const mirrorTimeout = 3 * time.Second

// RedisMirror decorates a Store and publishes the running port to Redis under
// <KeyPrefix>:<hostname>, so fleet tooling can see which hosts have a live node.
// The wrapped store stays authoritative: Redis failures are logged and never
// change a result.
type RedisMirror struct {
	inner  Store
	client *redis.Client
	key    string
}

var _ Store = (*RedisMirror)(nil)

// NewRedisMirror wraps inner. dialFunc is optional (e.g. a SOCKS5 dialer).
func NewRedisMirror(inner Store, cfg config.StatusMirrorConfig, hostname string,
	dialFunc func(network, addr string) (net.Conn, error)) *RedisMirror {

	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if dialFunc != nil {
		opts.Dialer = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialFunc(network, addr)
		}
	}

	return &RedisMirror{
		inner:  inner,
		client: redis.NewClient(opts),
		key:    fmt.Sprintf("%s:%s", cfg.KeyPrefix, hostname),
	}
}

// Key returns the Redis key the mirror writes.
func (m *RedisMirror) Key() string {
	return m.key
}

// Load reads the wrapped store only.
func (m *RedisMirror) Load(ctx context.Context) (Status, error) {
	return m.inner.Load(ctx)
}

// Store writes the wrapped store, then mirrors the port.
func (m *RedisMirror) Store(ctx context.Context, port uint16) error {
	if err := m.inner.Store(ctx, port); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, mirrorTimeout)
	defer cancel()
	if err := m.client.Set(ctx, m.key, port, 0).Err(); err != nil {
		log := logger.WithComponent("status-mirror")
		log.Warn().Err(err).Str("key", m.key).Msg("failed to mirror run status to Redis")
	}
	return nil
}

// Clear clears the wrapped store, then removes the mirrored key.
func (m *RedisMirror) Clear(ctx context.Context) error {
	err := m.inner.Clear(ctx)

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()
	if delErr := m.client.Del(ctx, m.key).Err(); delErr != nil {
		log := logger.WithComponent("status-mirror")
		log.Warn().Err(delErr).Str("key", m.key).Msg("failed to remove mirrored run status")
	}
	return err
}

// Close releases the Redis connection pool.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
