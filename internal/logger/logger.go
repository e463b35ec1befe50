// Package logger provides the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// EnvLogLevel overrides Config.Level when set.
const EnvLogLevel = "NODEAGENT_LOG_LEVEL"

// asyncWriter keeps a slow terminal from stalling the session goroutines.
// Writes are queued for a background goroutine; when the queue is full they are dropped.
type asyncWriter struct {
	ch     chan []byte
	w      io.Writer
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

func newAsyncWriter(w io.Writer, bufSize int) *asyncWriter {
	aw := &asyncWriter{
		ch:   make(chan []byte, bufSize),
		w:    w,
		done: make(chan struct{}),
	}
	go aw.drain()
	return aw
}

func (aw *asyncWriter) Write(p []byte) (int, error) {
	aw.mu.RLock()
	defer aw.mu.RUnlock()
	if aw.closed {
		return len(p), nil
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	select {
	case aw.ch <- cp:
	default:
	}
	return len(p), nil
}

func (aw *asyncWriter) drain() {
	defer close(aw.done)
	for p := range aw.ch {
		_, _ = aw.w.Write(p)
	}
}

func (aw *asyncWriter) Close() {
	aw.once.Do(func() {
		aw.mu.Lock()
		aw.closed = true
		aw.mu.Unlock()
		close(aw.ch)
		<-aw.done
	})
}

// Config holds the logger configuration.
type Config struct {
	Level      string `json:"Level" toml:"Level"`
	FilePath   string `json:"FilePath" toml:"FilePath"`
	Format     string `json:"Format" toml:"Format"` // "json" (default) or "fixed"
	MaxSizeMB  int    `json:"MaxSizeMB" toml:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups" toml:"MaxBackups"`
	MaxAgeDays int    `json:"MaxAgeDays" toml:"MaxAgeDays"`
	Compress   bool   `json:"Compress" toml:"Compress"`
	Console    bool   `json:"Console" toml:"Console"`
}

// DefaultConfig returns the logging defaults used when no Logging.json is present.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		FilePath:   "",
		Format:     "json",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
		Console:    true,
	}
}

var (
	mu               sync.RWMutex
	globalLogger     = zerolog.New(os.Stderr).With().Timestamp().Logger()
	prevFileWriter   io.Closer
	prevConsoleAsync *asyncWriter
)

// Init (re)configures the global logger. It is safe to call again on hot reload;
// writers from the previous call are closed first.
func Init(cfg Config) error {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Level = v
	}
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	mu.Lock()
	defer mu.Unlock()

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	closeWritersLocked()

	var writers []io.Writer

	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		prevFileWriter = fileWriter
		if strings.EqualFold(cfg.Format, "fixed") {
			writers = append(writers, NewFixedFormatWriter(fileWriter))
		} else {
			writers = append(writers, fileWriter)
		}
	}

	if cfg.Console {
		consoleWriter := zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339,
		}
		aw := newAsyncWriter(consoleWriter, 1000)
		prevConsoleAsync = aw
		writers = append(writers, aw)
	}

	var output io.Writer
	switch len(writers) {
	case 0:
		output = os.Stderr
	case 1:
		output = writers[0]
	default:
		output = zerolog.MultiLevelWriter(writers...)
	}

	globalLogger = zerolog.New(output).With().Timestamp().Logger()
	return nil
}

// Close flushes the console queue and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	closeWritersLocked()
	globalLogger = zerolog.New(os.Stderr).With().Timestamp().Logger()
}

func closeWritersLocked() {
	if prevFileWriter != nil {
		_ = prevFileWriter.Close()
		prevFileWriter = nil
	}
	if prevConsoleAsync != nil {
		prevConsoleAsync.Close()
		prevConsoleAsync = nil
	}
}

// Logger returns a copy of the global logger.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// WithComponent returns a logger with component field.
func WithComponent(component string) zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger.With().Str("component", component).Logger()
}
