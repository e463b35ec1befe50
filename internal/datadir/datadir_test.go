package datadir

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLayout_EnsureCreatesDirectories(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	l := New(root)

	if err := l.Ensure(); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	for _, dir := range []string{l.BlobsComplete(), l.BlobsPartial(), l.BlobsMeta(), l.Docs()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected %s to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestLayout_EnsureIsIdempotent(t *testing.T) {
	l := New(t.TempDir())
	for i := 0; i < 2; i++ {
		if err := l.Ensure(); err != nil {
			t.Fatalf("Ensure #%d failed: %v", i+1, err)
		}
	}
}

func TestLayout_EnsureFailsWhenRootIsAFile(t *testing.T) {
	root := filepath.Join(t.TempDir(), "occupied")
	if err := os.WriteFile(root, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := New(root).Ensure(); err == nil {
		t.Fatal("expected error when data root is a regular file")
	}
}

func TestLayout_EmptyRoot(t *testing.T) {
	if err := New("").Ensure(); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestLayout_Paths(t *testing.T) {
	l := New("/data")
	if got := l.PeersFile(); got != filepath.Join("/data", "peers.json") {
		t.Errorf("PeersFile = %q", got)
	}
	if got := l.IdentityFile(); got != filepath.Join("/data", "keypair.pem") {
		t.Errorf("IdentityFile = %q", got)
	}
}
