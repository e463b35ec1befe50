// Package main is the entry point for the nodeagent command.
package main

import (
	"errors"
	"fmt"
	"os"

	"nodeagent/internal/session"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	root := NewRootCmd()

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 when another session already owns the data directory, 1 otherwise.
func exitCode(err error) int {
	if errors.Is(err, session.ErrAlreadyRunning) {
		return 2
	}
	return 1
}
