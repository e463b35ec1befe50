package session

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nodeagent/internal/datadir"
	"nodeagent/internal/logger"
	"nodeagent/internal/node"
	"nodeagent/internal/runstatus"
)

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

// memStore is a runstatus.Store that counts calls and keeps a history of states.
type memStore struct {
	mu       sync.Mutex
	status   runstatus.Status
	loads    int
	stores   int
	clears   int
	loadErr  error
	storeErr error
	clearErr error
}

func (m *memStore) Load(ctx context.Context) (runstatus.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	if m.loadErr != nil {
		return runstatus.Stopped, m.loadErr
	}
	return m.status, nil
}

func (m *memStore) Store(ctx context.Context, port uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stores++
	if m.storeErr != nil {
		return m.storeErr
	}
	m.status = runstatus.Running(port)
	return nil
}

func (m *memStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clears++
	if m.clearErr != nil {
		return m.clearErr
	}
	m.status = runstatus.Stopped
	return nil
}

func (m *memStore) snapshot() (runstatus.Status, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status, m.stores, m.clears
}

// fakeNode terminates when shut down or when fail is called.
type fakeNode struct {
	id          string
	ln          net.Listener
	shutdownErr error

	shutdowns atomic.Int32
	once      sync.Once
	done      chan struct{}
	err       error
}

func newFakeNode(ln net.Listener) *fakeNode {
	return &fakeNode{id: "fake-node", ln: ln, done: make(chan struct{})}
}

func (f *fakeNode) ID() string { return f.id }

func (f *fakeNode) Shutdown() {
	f.shutdowns.Add(1)
	f.terminate(f.shutdownErr)
}

func (f *fakeNode) fail(err error) { f.terminate(err) }

func (f *fakeNode) terminate(err error) {
	f.once.Do(func() {
		f.err = err
		if f.ln != nil {
			f.ln.Close()
		}
		close(f.done)
	})
}

func (f *fakeNode) Done() <-chan struct{} { return f.done }

func (f *fakeNode) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// fakeSpawner records the node it built.
type fakeSpawner struct {
	mu    sync.Mutex
	calls int
	node  *fakeNode
	opts  node.Options
	err   error
	setup func(*fakeNode)
}

func (s *fakeSpawner) spawn(ctx context.Context, opts node.Options) (Node, *node.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.opts = opts
	if s.err != nil {
		return nil, nil, s.err
	}
	s.node = newFakeNode(opts.Control)
	if s.setup != nil {
		s.setup(s.node)
	}
	return s.node, nil, nil
}

func (s *fakeSpawner) built() *fakeNode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.node
}

// countingBind wraps a BindFunc and counts calls.
type countingBind struct {
	calls atomic.Int32
	bind  BindFunc
}

func (c *countingBind) fn(ctx context.Context, port uint16) (net.Listener, uint16, error) {
	c.calls.Add(1)
	return c.bind(ctx, port)
}

func newTestLauncher(t *testing.T, store runstatus.Store, sp *fakeSpawner) *Launcher {
	t.Helper()
	return &Launcher{
		Store:  store,
		Layout: datadir.New(t.TempDir()),
		Spawn:  sp.spawn,
	}
}

// manualInterrupt is an InterruptFunc whose channel the test closes.
type manualInterrupt struct {
	ch   chan struct{}
	once sync.Once
}

func newManualInterrupt() *manualInterrupt {
	return &manualInterrupt{ch: make(chan struct{})}
}

func (m *manualInterrupt) fn(ctx context.Context) (<-chan struct{}, context.CancelFunc) {
	return m.ch, func() {}
}

func (m *manualInterrupt) fire() {
	m.once.Do(func() { close(m.ch) })
}

func runAsync(o *Orchestrator, cfg StartConfig, mode RunMode, cmd Command) <-chan error {
	out := make(chan error, 1)
	go func() { out <- o.Run(context.Background(), cfg, mode, cmd) }()
	return out
}

func waitResult(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("session did not end")
		return nil
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

var errBoom = errors.New("boom")
