// Package datadir lays out the directories a node needs under its data root.
package datadir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// PeersFileName holds the peers seen during the last session.
	PeersFileName = "peers.json"
	// IdentityFileName holds the node's secret key when it is persistent.
	IdentityFileName = "keypair.pem"
)

// Layout names every path under a data root.
type Layout struct {
	Root string
}

// New returns the layout rooted at root.
func New(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) BlobsComplete() string { return filepath.Join(l.Root, "blobs", "complete") }
func (l Layout) BlobsPartial() string  { return filepath.Join(l.Root, "blobs", "partial") }
func (l Layout) BlobsMeta() string     { return filepath.Join(l.Root, "blobs", "meta") }
func (l Layout) Docs() string          { return filepath.Join(l.Root, "docs") }
func (l Layout) PeersFile() string     { return filepath.Join(l.Root, PeersFileName) }
func (l Layout) IdentityFile() string  { return filepath.Join(l.Root, IdentityFileName) }

// Ensure creates every required directory. It is idempotent.
func (l Layout) Ensure() error {
	if l.Root == "" {
		return fmt.Errorf("data directory is not set")
	}
	dirs := []string{
		l.BlobsComplete(),
		l.BlobsPartial(),
		l.BlobsMeta(),
		l.Docs(),
		filepath.Dir(l.PeersFile()),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
