package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"nodeagent/internal/node"
)

func newStopCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Ask the local node to shut down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(g)
			if err != nil {
				return err
			}
			defer e.close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
			defer cancel()

			rs, err := e.store.Load(ctx)
			if err != nil {
				return err
			}
			if !rs.Running {
				_, _ = fmt.Fprintln(os.Stderr, "No node is running.")
				return nil
			}

			client, err := node.Dial(rs.Port)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Shutdown(ctx); err != nil {
				return fmt.Errorf("failed to stop node on control port %d: %w", rs.Port, err)
			}
			fmt.Printf("Shutdown requested for node on control port %d.\n", rs.Port)
			return nil
		},
	}
	return cmd
}
