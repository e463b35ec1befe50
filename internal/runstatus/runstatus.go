// Package runstatus persists whether a node is running for a data directory,
// and on which control port.
package runstatus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"nodeagent/internal/logger"
)

// FileName is the record's name inside the data directory.
const FileName = "rpc.lock"

// Status is either Stopped or Running on a control port.
type Status struct {
	Running bool
	Port    uint16
}

// Stopped is the zero Status: no node is recorded as running.
var Stopped = Status{}

// Running returns the status of a node listening on port.
func Running(port uint16) Status {
	return Status{Running: true, Port: port}
}

func (s Status) String() string {
	if !s.Running {
		return "stopped"
	}
	return "running(" + strconv.Itoa(int(s.Port)) + ")"
}

// Store is the persisted run-status record. Implementations overwrite atomically
// and treat clearing an absent record as success.
type Store interface {
	Load(ctx context.Context) (Status, error)
	Store(ctx context.Context, port uint16) error
	Clear(ctx context.Context) error
}

// FileStore keeps the record as a two byte little-endian port in <dir>/rpc.lock.
type FileStore struct {
	dir  string
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore returns a store for the data directory dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir, path: filepath.Join(dir, FileName)}
}

// Path returns the record's file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the record. A missing file, or one that does not hold exactly a
// non-zero port, reads as Stopped without error.
func (s *FileStore) Load(_ context.Context) (Status, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Stopped, nil
	}
	if err != nil {
		return Stopped, fmt.Errorf("failed to read run status %s: %w", s.path, err)
	}
	if len(data) != 2 {
		log := logger.WithComponent("runstatus")
		log.Debug().Str("path", s.path).Int("size", len(data)).Msg("ignoring unparsable run status")
		return Stopped, nil
	}
	port := binary.LittleEndian.Uint16(data)
	if port == 0 {
		return Stopped, nil
	}
	return Running(port), nil
}

// Store records Running(port), replacing any previous record via rename.
func (s *FileStore) Store(_ context.Context, port uint16) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.dir, err)
	}

	tmp, err := os.CreateTemp(s.dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create run status temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], port)
	if _, err := tmp.Write(buf[:]); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write run status: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync run status: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close run status: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace run status: %w", err)
	}
	return nil
}

// Clear removes the record. An absent record is not an error.
func (s *FileStore) Clear(_ context.Context) error {
	err := os.Remove(s.path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to clear run status: %w", err)
}
