package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StartupErrorFileName is written next to the run status when a session fails to start.
const StartupErrorFileName = "startup-error.log"

// WriteStartupErrorFile records why the last session could not start. The file
// is overwritten so only the most recent failure is kept. It returns the path
// written, or "" when the file could not be created.
func WriteStartupErrorFile(dir string, err error) string {
	if mkErr := os.MkdirAll(dir, 0755); mkErr != nil {
		return ""
	}

	path := filepath.Join(dir, StartupErrorFileName)
	f, ferr := os.Create(path)
	if ferr != nil {
		return ""
	}
	defer f.Close()

	ts := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] STARTUP ERROR (pid %d)\n%v\n", ts, os.Getpid(), err)
	return path
}

// RemoveStartupErrorFile deletes a stale error file after a successful start.
func RemoveStartupErrorFile(dir string) {
	_ = os.Remove(filepath.Join(dir, StartupErrorFileName))
}
