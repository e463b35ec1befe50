package node

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"nodeagent/internal/identity"
	"nodeagent/internal/logger"
	"nodeagent/internal/network"
)

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

func spawnTestNode(t *testing.T, peersPath string) *Node {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	id, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}
	n, err := Spawn(context.Background(), Options{
		BindAddr:        "127.0.0.1:0",
		PeersPath:       peersPath,
		Control:         ln,
		Identity:        id,
		ShutdownTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	t.Cleanup(func() {
		n.Shutdown()
		<-n.Done()
	})
	return n
}

func waitDone(t *testing.T, n *Node) {
	t.Helper()
	select {
	case <-n.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("node did not stop")
	}
}

func TestSpawn_StatusOverControlPlane(t *testing.T) {
	n := spawnTestNode(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := n.Client().Status(ctx)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if st.NodeID != n.ID() {
		t.Errorf("NodeID = %q, want %q", st.NodeID, n.ID())
	}
	if st.ControlPort != n.ControlPort() {
		t.Errorf("ControlPort = %d, want %d", st.ControlPort, n.ControlPort())
	}
	if len(st.DataAddrs) == 0 {
		t.Error("expected at least one data address")
	}
	if st.Relay != "default" {
		t.Errorf("Relay = %q", st.Relay)
	}
}

func TestSpawn_HealthServing(t *testing.T) {
	n := spawnTestNode(t, "")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got, err := n.Client().Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("Health = %v, want SERVING", got)
	}
}

func TestShutdown_OverControlPlane(t *testing.T) {
	n := spawnTestNode(t, "")

	c, err := Dial(n.ControlPort())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown RPC failed: %v", err)
	}

	waitDone(t, n)
	if n.Err() != nil {
		t.Errorf("requested shutdown ended with error: %v", n.Err())
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	n := spawnTestNode(t, "")
	n.Shutdown()
	n.Shutdown()
	waitDone(t, n)
	if n.Err() != nil {
		t.Errorf("unexpected error: %v", n.Err())
	}
}

func TestNode_ErrBeforeDoneIsNil(t *testing.T) {
	n := spawnTestNode(t, "")
	if n.Err() != nil {
		t.Errorf("Err before Done = %v", n.Err())
	}
}

func TestNode_ControlListenerFailureTerminates(t *testing.T) {
	n := spawnTestNode(t, "")

	n.opts.Control.Close()

	waitDone(t, n)
	if n.Err() == nil {
		t.Fatal("expected node runtime error")
	}
}

func TestNode_PeersSavedOnShutdown(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")
	n := spawnTestNode(t, path)
	n.peers.add("peer-a", time.Now().UTC())

	n.Shutdown()
	waitDone(t, n)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("peers file not written: %v", err)
	}
	var peers []Peer
	if err := json.Unmarshal(data, &peers); err != nil {
		t.Fatal(err)
	}
	if len(peers) != 1 || peers[0].ID != "peer-a" {
		t.Errorf("saved peers = %+v", peers)
	}
}

func TestNode_DataPlaneStatus(t *testing.T) {
	n := spawnTestNode(t, "")

	resp, err := http.Get("http://" + n.DataAddr().String() + "/v1/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var st Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.NodeID != n.ID() {
		t.Errorf("NodeID = %q", st.NodeID)
	}
}

func TestSpawn_FailureClosesControlListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := network.ListenerPort(ln)
	id, _ := identity.Generate()

	_, err = Spawn(context.Background(), Options{
		BindAddr: "not-an-address",
		Control:  ln,
		Identity: id,
	})
	if err == nil {
		t.Fatal("expected Spawn to fail")
	}

	// The port must be free again.
	again, err := net.Listen("tcp", network.ControlTarget(port))
	if err != nil {
		t.Fatalf("control port still held: %v", err)
	}
	again.Close()
}

func TestSpawn_RequiresListenerAndIdentity(t *testing.T) {
	if _, err := Spawn(context.Background(), Options{BindAddr: "127.0.0.1:0"}); err == nil {
		t.Error("expected error without control listener")
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Spawn(context.Background(), Options{BindAddr: "127.0.0.1:0", Control: ln}); err == nil {
		t.Error("expected error without identity")
	}
}

func TestParseRelayMode(t *testing.T) {
	tests := []struct {
		mode    string
		urls    []string
		want    RelayKind
		wantErr bool
	}{
		{mode: "", want: RelayDefault},
		{mode: "default", want: RelayDefault},
		{mode: "Disabled", want: RelayDisabled},
		{mode: "custom", urls: []string{"https://relay.example"}, want: RelayCustom},
		{mode: "custom", wantErr: true},
		{mode: "bogus", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseRelayMode(tt.mode, tt.urls)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseRelayMode(%q) expected error", tt.mode)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRelayMode(%q) error: %v", tt.mode, err)
			continue
		}
		if got.Kind != tt.want {
			t.Errorf("ParseRelayMode(%q) = %v, want kind %v", tt.mode, got, tt.want)
		}
	}
}
