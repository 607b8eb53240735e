// Command notesd serves the notes continuation API and runs continuations,
// coverage checks and structure analysis from the command line.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configPath string
	output     string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "notesd",
		Short: "Continue truncated study notes until they are complete",
		Long: `notesd extends study notes that a completion service cut off before the end.

It runs as an HTTP service (notesd serve) or locally against files:

  notesd continue --notes notes.md --source lecture.txt
  notesd coverage --notes notes.md --source lecture.txt -o yaml
  notesd analyze --notes notes.md

Configuration is read from --config and NOTESD_* environment variables.`,
		Version:      fmt.Sprintf("%s (commit %s, built %s)", version, gitCommit, buildDate),
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config file")
	cmd.PersistentFlags().StringVarP(&opts.output, "output", "o", formatJSON, "output format: json or yaml")

	cmd.AddCommand(
		newServeCmd(opts),
		newContinueCmd(opts),
		newCoverageCmd(opts),
		newAnalyzeCmd(opts),
		newHealthCmd(opts),
		newVersionCmd(opts),
	)
	return cmd
}

type versionInfo struct {
	Version   string `json:"version" yaml:"version"`
	GitCommit string `json:"gitCommit" yaml:"gitCommit"`
	BuildDate string `json:"buildDate" yaml:"buildDate"`
}

func newVersionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return render(cmd.OutOrStdout(), opts.output, versionInfo{
				Version:   version,
				GitCommit: gitCommit,
				BuildDate: buildDate,
			})
		},
	}
}
