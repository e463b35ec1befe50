package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"nodeagent/internal/config"
	"nodeagent/internal/logger"
)

// FileSink appends events as JSON lines to a rotated file.
type FileSink struct {
	writer *lumberjack.Logger
	mu     sync.Mutex
	closed bool
}

// NewFileSink creates the file's directory and opens the sink.
func NewFileSink(cfg config.EventFileConfig) (*FileSink, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("events file path is empty")
	}
	dir := filepath.Dir(cfg.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create events directory: %w", err)
		}
	}

	log := logger.WithComponent("events-file")
	log.Debug().Str("file_path", cfg.FilePath).Msg("event file sink opened")

	return &FileSink{
		writer: &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		},
	}, nil
}

// Emit writes e as one line.
func (s *FileSink) Emit(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("sink is closed")
	}
	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// Close closes the file. Calling it twice is a no-op.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}
