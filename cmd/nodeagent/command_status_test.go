package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nodeagent/internal/config"
	"nodeagent/internal/identity"
	"nodeagent/internal/network"
	"nodeagent/internal/node"
	"nodeagent/internal/runstatus"
)

// quietArgs returns flags pointing at a data dir and a logging file that
// disables logging, so the command does not write to the console.
func quietArgs(t *testing.T, dataDir string, extra ...string) []string {
	t.Helper()
	t.Setenv(config.EnvDataDir, "")
	dir := t.TempDir()
	logging := filepath.Join(dir, "logging.json")
	if err := os.WriteFile(logging, []byte(`{"Level":"disabled","Console":false}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := filepath.Join(dir, "config.json")
	if err := os.WriteFile(cfg, []byte(`{"BindAddr":"127.0.0.1:0"}`), 0644); err != nil {
		t.Fatal(err)
	}
	return append(extra, "--data-dir", dataDir, "--logging", logging, "--config", cfg)
}

func runRoot(t *testing.T, args []string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatusCmd_StartKeepsLiveRecord(t *testing.T) {
	ln, port, err := network.BindControl(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	id, err := identity.Generate()
	if err != nil {
		t.Fatal(err)
	}
	n, err := node.Spawn(context.Background(), node.Options{BindAddr: "127.0.0.1:0", Control: ln, Identity: id})
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		n.Shutdown()
		<-n.Done()
	}()

	dataDir := t.TempDir()
	store := runstatus.NewFileStore(dataDir)
	if err := store.Store(context.Background(), port); err != nil {
		t.Fatal(err)
	}

	out, err := runRoot(t, quietArgs(t, dataDir, "status", "--start"))
	if err != nil {
		t.Fatalf("status --start: %v", err)
	}
	if !strings.Contains(out, n.ID()) {
		t.Errorf("output does not describe the live node:\n%s", out)
	}

	if rs, _ := store.Load(context.Background()); rs != runstatus.Running(port) {
		t.Errorf("status = %v, want running(%d)", rs, port)
	}
	select {
	case <-n.Done():
		t.Error("live node was shut down")
	default:
	}
}

func TestStatusCmd_StartBootsTemporaryNode(t *testing.T) {
	dataDir := t.TempDir()

	out, err := runRoot(t, quietArgs(t, dataDir, "status", "--start"))
	if err != nil {
		t.Fatalf("status --start: %v", err)
	}
	if !strings.Contains(out, "Node ID") {
		t.Errorf("no status printed:\n%s", out)
	}
	if rs, _ := runstatus.NewFileStore(dataDir).Load(context.Background()); rs.Running {
		t.Errorf("status = %v after temporary node", rs)
	}
}
