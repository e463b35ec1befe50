package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"nodeagent/internal/logger"
)

// FileWatcher calls onChange whenever a single file is written or recreated.
// The parent directory is watched so editors that replace the file are seen too.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func()

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewFileWatcher creates a watcher for path.
func NewFileWatcher(path string, onChange func()) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{
		path:     path,
		watcher:  w,
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Calling it twice is a no-op.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return nil
	}

	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return err
	}
	fw.running = true

	log := logger.WithComponent("file-watcher")
	log.Info().Str("path", fw.path).Msg("watching file")

	fw.wg.Add(1)
	go fw.watch()
	return nil
}

// Stop stops watching and waits for the event loop to exit.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return fw.watcher.Close()
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.stopCh)
	err := fw.watcher.Close()
	fw.wg.Wait()
	return err
}

// IsRunning reports whether the watcher is active.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

func (fw *FileWatcher) watch() {
	defer fw.wg.Done()
	log := logger.WithComponent("file-watcher")
	filename := filepath.Base(fw.path)

	for {
		select {
		case <-fw.stopCh:
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				log.Info().
					Str("path", fw.path).
					Str("event", event.Op.String()).
					Msg("file changed, reloading")
				if fw.onChange != nil {
					fw.onChange()
				}
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("path", fw.path).Msg("file watcher error")
		}
	}
}

// NewLoggingWatcher reloads the logging config from path on change and hands it to callback.
// Unparseable edits are logged and skipped.
func NewLoggingWatcher(path string, callback func(*logger.Config)) (*FileWatcher, error) {
	return NewFileWatcher(path, func() {
		lc, err := LoadLogging(path)
		if err != nil {
			log := logger.WithComponent("logging-watcher")
			log.Error().Err(err).Msg("failed to reload logging configuration")
			return
		}
		if callback != nil {
			callback(lc)
		}
	})
}
