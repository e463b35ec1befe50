package node

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadPeers_MissingFileIsEmpty(t *testing.T) {
	ps, err := loadPeers(filepath.Join(t.TempDir(), "peers.json"))
	if err != nil {
		t.Fatalf("loadPeers failed: %v", err)
	}
	if ps.len() != 0 {
		t.Errorf("expected empty set, got %d", ps.len())
	}
}

func TestLoadPeers_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")
	if err := os.WriteFile(path, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadPeers(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestPeerSet_SaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "peers.json")
	ps, _ := loadPeers(path)
	seen := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	ps.add("b", seen)
	ps.add("a", seen)

	if err := ps.save(); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	back, err := loadPeers(path)
	if err != nil {
		t.Fatal(err)
	}
	list := back.list()
	if len(list) != 2 || list[0].ID != "a" || list[1].ID != "b" {
		t.Fatalf("reloaded peers = %+v", list)
	}
	if !list[0].LastSeen.Equal(seen) {
		t.Errorf("LastSeen = %v, want %v", list[0].LastSeen, seen)
	}
}
