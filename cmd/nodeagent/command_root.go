package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath  string
	loggingPath string
	dataDir     string
}

func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "nodeagent",
		Short:         "Run and control a local node",
		Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "path to the configuration file (.json or .toml)")
	pf.StringVar(&g.loggingPath, "logging", "", "path to the logging configuration file")
	pf.StringVar(&g.dataDir, "data-dir", "", "data directory (overrides the config file)")

	root.AddCommand(newStartCmd(g))
	root.AddCommand(newStatusCmd(g))
	root.AddCommand(newStopCmd(g))

	return root
}
