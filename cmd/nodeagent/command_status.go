package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"nodeagent/internal/node"
	"nodeagent/internal/session"
)

func newStatusCmd(g *globalFlags) *cobra.Command {
	var start bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of the local node",
		Long: "Show the status of the node running for the data directory. With --start and\n" +
			"no node running, a temporary node is booted, queried and shut down again.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(g)
			if err != nil {
				return err
			}
			defer e.close()

			return showStatus(cmd.Context(), e, start, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&start, "start", false, "boot a temporary node when none is running")
	return cmd
}

// showStatus queries the recorded node. A temporary node is only booted when
// the record says none is running, so a live node's record is never touched.
func showStatus(ctx context.Context, e *env, start bool, out io.Writer) error {
	loadCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	rs, err := e.store.Load(loadCtx)
	cancel()
	if err != nil {
		return err
	}

	if !rs.Running {
		if start {
			return statusWithTemporaryNode(ctx, e, out)
		}
		_, _ = fmt.Fprintln(os.Stderr, "No node is running. Start one with `nodeagent start` or pass --start.")
		return nil
	}

	ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := node.Dial(rs.Port)
	if err != nil {
		return err
	}
	defer client.Close()

	st, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("node on control port %d is not answering: %w", rs.Port, err)
	}
	printStatus(out, st)
	return nil
}

func statusWithTemporaryNode(ctx context.Context, e *env, out io.Writer) error {
	if err := e.cfg.Validate(); err != nil {
		return err
	}
	startCfg, err := e.startConfig()
	if err != nil {
		return err
	}
	orch, err := e.orchestrator()
	if err != nil {
		return err
	}

	return orch.Run(ctx, startCfg, session.SingleCommand, func(ctx context.Context, c *node.Client) error {
		st, err := c.Status(ctx)
		if err != nil {
			return err
		}
		printStatus(out, st)
		return nil
	})
}
