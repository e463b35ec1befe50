package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Peer is a remote node that connected to the data plane.
type Peer struct {
	ID       string    `json:"id"`
	LastSeen time.Time `json:"last_seen"`
}

// peerSet is the in-memory peer table backed by a JSON file.
type peerSet struct {
	path string

	mu    sync.Mutex
	peers map[string]time.Time
}

// loadPeers reads path. A missing file yields an empty set.
func loadPeers(path string) (*peerSet, error) {
	ps := &peerSet{path: path, peers: make(map[string]time.Time)}
	if path == "" {
		return ps, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ps, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read peers file: %w", err)
	}

	var list []Peer
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse peers file %s: %w", path, err)
	}
	for _, p := range list {
		if p.ID != "" {
			ps.peers[p.ID] = p.LastSeen
		}
	}
	return ps, nil
}

func (ps *peerSet) add(id string, seen time.Time) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.peers[id] = seen
}

func (ps *peerSet) len() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.peers)
}

func (ps *peerSet) list() []Peer {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	out := make([]Peer, 0, len(ps.peers))
	for id, seen := range ps.peers {
		out = append(out, Peer{ID: id, LastSeen: seen})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// save writes the table atomically. It is a no-op without a path.
func (ps *peerSet) save() error {
	if ps.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(ps.list(), "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(ps.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".peers-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), ps.path)
}
