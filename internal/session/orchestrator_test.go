package session

import (
	"context"
	"errors"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"nodeagent/internal/datadir"
	"nodeagent/internal/events"
	"nodeagent/internal/network"
	"nodeagent/internal/node"
	"nodeagent/internal/runstatus"
)

// captureSink keeps every event and, for the final one, how often the store was cleared.
type captureSink struct {
	mu             sync.Mutex
	events         []events.Event
	store          *memStore
	clearsAtFinish int
}

func (s *captureSink) Emit(_ context.Context, e events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	if e.State == Stopped.String() && s.store != nil {
		_, _, s.clearsAtFinish = s.store.snapshot()
	}
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) states() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.State
	}
	return out
}

func (s *captureSink) last() events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[len(s.events)-1]
}

type orchestratorFixture struct {
	store     *memStore
	spawner   *fakeSpawner
	sink      *captureSink
	interrupt *manualInterrupt
	orch      *Orchestrator
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		store:     &memStore{},
		spawner:   &fakeSpawner{},
		interrupt: newManualInterrupt(),
	}
	f.sink = &captureSink{store: f.store}
	f.orch = &Orchestrator{
		Launcher:  newTestLauncher(t, f.store, f.spawner),
		Events:    events.NewRecorder(f.sink, nil, "test-host"),
		Interrupt: f.interrupt.fn,
	}
	return f
}

func (f *orchestratorFixture) assertCleared(t *testing.T, want int) {
	t.Helper()
	status, _, clears := f.store.snapshot()
	if clears != want {
		t.Errorf("clears = %d, want %d", clears, want)
	}
	if want > 0 && status.Running {
		t.Errorf("status = %v after session end", status)
	}
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if f.sink.clearsAtFinish != want {
		t.Errorf("stopped event saw %d clears, want %d", f.sink.clearsAtFinish, want)
	}
}

func assertStates(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("states = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("states = %v, want %v", got, want)
		}
	}
}

func TestRun_SingleCommandSuccess(t *testing.T) {
	probe, err := net.Listen("tcp", network.ControlTarget(4919))
	if err != nil {
		t.Skip("port 4919 busy on this host")
	}
	probe.Close()

	f := newOrchestratorFixture(t)
	var during runstatus.Status
	cmd := func(ctx context.Context, _ *node.Client) error {
		during, _, _ = f.store.snapshot()
		return nil
	}

	err = f.orch.Run(context.Background(), StartConfig{BindAddr: "127.0.0.1:0", RPCPort: 4919}, SingleCommand, cmd)
	if err != nil {
		t.Fatalf("Run = %v", err)
	}
	if during != runstatus.Running(4919) {
		t.Errorf("status during command = %v, want running(4919)", during)
	}
	if n := f.spawner.built().shutdowns.Load(); n != 1 {
		t.Errorf("node shut down %d times", n)
	}
	f.assertCleared(t, 1)
	assertStates(t, f.sink.states(), "booting", "running", "shutting_down", "stopped")

	last := f.sink.last()
	if last.Port != 4919 || last.NodeID != "fake-node" || last.Mode != "single_command" || last.Error != "" {
		t.Errorf("unexpected final event %+v", last)
	}
	if last.Hostname != "test-host" || last.SessionID == "" {
		t.Errorf("event not stamped: %+v", last)
	}
}

func TestRun_AlreadyRunningStillClearsOnce(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.store.status = runstatus.Running(4919)

	err := f.orch.Run(context.Background(), StartConfig{BindAddr: "127.0.0.1:0", RPCPort: 4919}, SingleCommand, nil)
	var are *AlreadyRunningError
	if !errors.As(err, &are) || are.Port != 4919 {
		t.Fatalf("Run = %v, want AlreadyRunning(4919)", err)
	}
	if _, stores, _ := f.store.snapshot(); stores != 0 {
		t.Errorf("stores = %d, want 0", stores)
	}
	if f.spawner.calls != 0 {
		t.Error("node spawned")
	}
	f.assertCleared(t, 1)
	assertStates(t, f.sink.states(), "booting", "stopped")
	if f.sink.last().Error == "" {
		t.Error("stopped event carries no error")
	}
}

func TestRun_LaunchFailuresClearOnce(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, f *orchestratorFixture)
		want  error
	}{
		{
			name: "bind",
			setup: func(t *testing.T, f *orchestratorFixture) {
				f.orch.Launcher.Bind = network.ControlBinder{Host: "192.0.2.1"}.Bind
			},
			want: ErrBind,
		},
		{
			name: "spawn",
			setup: func(t *testing.T, f *orchestratorFixture) {
				f.spawner.err = errBoom
			},
			want: ErrNodeConstruction,
		},
		{
			name: "identity",
			setup: func(t *testing.T, f *orchestratorFixture) {
				f.orch.Launcher.IdentityPath = t.TempDir()
			},
			want: ErrIdentity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOrchestratorFixture(t)
			tt.setup(t, f)

			err := f.orch.Run(context.Background(), StartConfig{BindAddr: "127.0.0.1:0"}, SingleCommand, nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Run = %v, want %v", err, tt.want)
			}
			f.assertCleared(t, 1)
			assertStates(t, f.sink.states(), "booting", "stopped")
		})
	}
}

func TestRun_UntilStoppedWaitsForInterrupt(t *testing.T) {
	f := newOrchestratorFixture(t)
	ran := make(chan struct{})
	cmd := func(ctx context.Context, _ *node.Client) error {
		close(ran)
		return nil
	}

	result := runAsync(f.orch, StartConfig{BindAddr: "127.0.0.1:0"}, UntilStopped, cmd)
	<-ran

	select {
	case err := <-result:
		t.Fatalf("session ended before interrupt: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
	if status, _, _ := f.store.snapshot(); !status.Running {
		t.Errorf("status = %v while node is up", status)
	}

	f.interrupt.fire()
	if err := waitResult(t, result); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if n := f.spawner.built().shutdowns.Load(); n != 1 {
		t.Errorf("node shut down %d times", n)
	}
	f.assertCleared(t, 1)
	assertStates(t, f.sink.states(), "booting", "running", "shutting_down", "stopped")
}

func TestRun_InterruptAbandonsCommand(t *testing.T) {
	f := newOrchestratorFixture(t)
	started := make(chan struct{})
	cancelled := make(chan struct{})
	cmd := func(ctx context.Context, _ *node.Client) error {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}

	result := runAsync(f.orch, StartConfig{BindAddr: "127.0.0.1:0"}, SingleCommand, cmd)
	<-started
	f.interrupt.fire()

	if err := waitResult(t, result); err != nil {
		t.Fatalf("Run = %v, want nil after interrupt", err)
	}
	select {
	case <-cancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("command context not cancelled")
	}
	if n := f.spawner.built().shutdowns.Load(); n != 1 {
		t.Errorf("node shut down %d times", n)
	}
	f.assertCleared(t, 1)
}

func TestRun_NodeFailureEndsSession(t *testing.T) {
	f := newOrchestratorFixture(t)
	ran := make(chan struct{})
	cmd := func(ctx context.Context, _ *node.Client) error {
		close(ran)
		return nil
	}

	result := runAsync(f.orch, StartConfig{BindAddr: "127.0.0.1:0"}, UntilStopped, cmd)
	<-ran
	f.spawner.built().fail(errBoom)

	err := waitResult(t, result)
	if !errors.Is(err, ErrNodeRuntime) || !errors.Is(err, errBoom) {
		t.Fatalf("Run = %v, want node runtime error wrapping boom", err)
	}
	if n := f.spawner.built().shutdowns.Load(); n != 0 {
		t.Errorf("exited node was shut down %d times", n)
	}
	f.assertCleared(t, 1)
	if f.sink.last().Error == "" {
		t.Error("stopped event carries no error")
	}
}

func TestRun_CommandErrorReturned(t *testing.T) {
	f := newOrchestratorFixture(t)
	cmd := func(ctx context.Context, _ *node.Client) error { return errBoom }

	err := f.orch.Run(context.Background(), StartConfig{BindAddr: "127.0.0.1:0"}, SingleCommand, cmd)
	if !errors.Is(err, ErrCommand) || !errors.Is(err, errBoom) {
		t.Fatalf("Run = %v, want command error wrapping boom", err)
	}
	if n := f.spawner.built().shutdowns.Load(); n != 1 {
		t.Errorf("node shut down %d times", n)
	}
	f.assertCleared(t, 1)
}

func TestRun_CommandErrorBeatsShutdownError(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.spawner.setup = func(n *fakeNode) { n.shutdownErr = errors.New("stuck") }
	cmd := func(ctx context.Context, _ *node.Client) error { return errBoom }

	err := f.orch.Run(context.Background(), StartConfig{BindAddr: "127.0.0.1:0"}, SingleCommand, cmd)
	if !errors.Is(err, errBoom) {
		t.Fatalf("Run = %v, want the command's error", err)
	}
}

func TestRun_ClearFailureIsNotReturned(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.store.clearErr = errors.New("read-only filesystem")

	if err := f.orch.Run(context.Background(), StartConfig{BindAddr: "127.0.0.1:0"}, SingleCommand, nil); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}
	if _, _, clears := f.store.snapshot(); clears != 1 {
		t.Errorf("clears = %d, want 1", clears)
	}
}

func TestRun_ParentContextCancelInterrupts(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.orch.Interrupt = nil
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	cmd := func(ctx context.Context, _ *node.Client) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	result := make(chan error, 1)
	go func() { result <- f.orch.Run(ctx, StartConfig{BindAddr: "127.0.0.1:0"}, SingleCommand, cmd) }()
	<-started
	cancel()

	if err := waitResult(t, result); err != nil {
		t.Fatalf("Run = %v", err)
	}
	f.assertCleared(t, 1)
}

func TestRun_EndToEnd(t *testing.T) {
	root := t.TempDir()
	store := runstatus.NewFileStore(root)
	layout := datadir.New(root)
	interrupt := newManualInterrupt()

	orch := &Orchestrator{
		Launcher: &Launcher{
			Store:           store,
			Layout:          layout,
			IdentityPath:    filepath.Join(root, datadir.IdentityFileName),
			ShutdownTimeout: 2 * time.Second,
		},
		Interrupt: interrupt.fn,
	}

	var (
		st     *node.Status
		during runstatus.Status
	)
	cmd := func(ctx context.Context, c *node.Client) error {
		var err error
		if during, err = store.Load(ctx); err != nil {
			return err
		}
		st, err = c.Status(ctx)
		return err
	}

	if err := orch.Run(context.Background(), StartConfig{BindAddr: "127.0.0.1:0", RPCPort: 0}, SingleCommand, cmd); err != nil {
		t.Fatalf("Run = %v", err)
	}
	if !during.Running || st == nil || st.ControlPort != during.Port {
		t.Fatalf("status during command %v, node status %+v", during, st)
	}
	if len(st.NodeID) != 52 {
		t.Errorf("node id %q", st.NodeID)
	}

	after, err := store.Load(context.Background())
	if err != nil || after.Running {
		t.Errorf("status after run = %v, %v", after, err)
	}
	ln, err := net.Listen("tcp", network.ControlTarget(during.Port))
	if err != nil {
		t.Errorf("control port %d not released: %v", during.Port, err)
	} else {
		ln.Close()
	}
}
