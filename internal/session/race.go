package session

import (
	"context"
	"fmt"

	"nodeagent/internal/node"
)

// Command is the caller's work, run against the node once it is up. ctx is
// cancelled when the session no longer wants its result.
type Command func(ctx context.Context, c *node.Client) error

// Branch names the source that ended a race.
type Branch int

const (
	BranchInterrupt Branch = iota
	BranchCommand
	BranchNode
)

func (b Branch) String() string {
	switch b {
	case BranchInterrupt:
		return "interrupt"
	case BranchCommand:
		return "command"
	case BranchNode:
		return "node"
	default:
		return fmt.Sprintf("Branch(%d)", int(b))
	}
}

// Race runs cmd beside the node in h and returns when the first of interrupt,
// command completion or node exit happens. When several are ready at once the
// winner is chosen in that order.
//
//   - interrupt: cancel cmd, shut the node down, wait for it, return its error
//   - command:   shut the node down, wait for it, return the command's error
//   - node:      cancel cmd, return the node's error
//
// resolved, if set, is called with the winner before any shutdown work starts.
// The command goroutine is cancelled, not joined.
func Race(interrupt <-chan struct{}, h *Handle, mode RunMode, cmd Command, resolved func(Branch)) (Branch, error) {
	cmdCtx, cancelCmd := context.WithCancel(context.Background())
	defer cancelCmd()

	results := startCommand(cmdCtx, h.Client, mode, cmd)

	branch, cmdErr := pick(interrupt, results, h.Node.Done())
	if resolved != nil {
		resolved(branch)
	}

	switch branch {
	case BranchInterrupt:
		cancelCmd()
		h.Node.Shutdown()
		<-h.Node.Done()
		return branch, nodeErr(h.Node.Err())
	case BranchCommand:
		h.Node.Shutdown()
		<-h.Node.Done()
		return branch, cmdErr
	default:
		cancelCmd()
		return branch, nodeErr(h.Node.Err())
	}
}

// pick blocks until a source is ready and returns the highest-priority ready
// one. select chooses randomly among ready cases, so the sources are re-checked
// in priority order after waking up.
func pick(interrupt <-chan struct{}, results <-chan error, nodeDone <-chan struct{}) (Branch, error) {
	var (
		cmdErr  error
		cmdDone bool
	)
	select {
	case <-interrupt:
	case cmdErr = <-results:
		cmdDone = true
	case <-nodeDone:
	}

	if ready(interrupt) {
		return BranchInterrupt, nil
	}
	if cmdDone {
		return BranchCommand, cmdErr
	}
	select {
	case cmdErr = <-results:
		return BranchCommand, cmdErr
	default:
		return BranchNode, nil
	}
}

func ready(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// startCommand runs cmd in its own goroutine. Under UntilStopped a successful
// command never reports; it parks until ctx is cancelled.
func startCommand(ctx context.Context, c *node.Client, mode RunMode, cmd Command) <-chan error {
	results := make(chan error, 1)
	go func() {
		err := runCommand(ctx, c, cmd)
		if err == nil && mode == UntilStopped {
			<-ctx.Done()
			return
		}
		results <- err
	}()
	return results
}

func runCommand(ctx context.Context, c *node.Client, cmd Command) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &CommandError{Err: fmt.Errorf("panic: %v", r), Panic: r}
		}
	}()
	if cmd == nil {
		return nil
	}
	if err := cmd(ctx, c); err != nil {
		return &CommandError{Err: err}
	}
	return nil
}
