package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

const appName = "tsg-officer"

// appVersion is captured by NewRootCmd for the serve banner.
var appVersion = "dev"

// NewRootCmd builds the CLI command tree.
func NewRootCmd(version, buildTime string) *cobra.Command {
	appVersion = version

	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Compliance intake workflow engine",
		Long: `tsg-officer runs compliance intake cases: it collects a submission,
classifies it, evaluates a rule checklist, asks follow-up questions one
at a time, captures a process diagram when required, and records the
reviewer's decision with a full audit trail.

Cases suspend whenever a human answer is needed and are checkpointed so
they can resume later, on this process or another one.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newStartCmd(&configPath, &logLevel),
		newAnswerCmd(&configPath, &logLevel),
		newStatusCmd(&configPath, &logLevel),
		newExportCmd(&configPath, &logLevel),
		newServeCmd(&configPath, &logLevel),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("%s version %s (build: %s)\n", appName, version, buildTime)
			},
		},
	)

	return cmd
}
