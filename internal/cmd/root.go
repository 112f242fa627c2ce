// Package cmd wires the planforge CLI: one command per pipeline stage,
// with exit codes that scripts can branch on (0 success, 1 missing
// upstream artifact, 2 validation FAIL, 3 lock contention).
package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

var (
	flagWorkspace string
	flagLogLevel  string
	flagLogFormat string
)

var rootCmd = &cobra.Command{
	Use:   "planforge",
	Short: "Layered planning pipeline for software ideas",
	Long: `planforge turns a concept summary into epics, features, tasks and
scheduled work packages, one validated layer at a time.

Every layer is stored as a versioned front-matter document with an
append-only run history and provenance log. A validation gate certifies
each layer against its parent before anything downstream consumes it,
and the scheduler guarantees a task never lands in two work packages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// ExecuteContext runs the root command under the given context.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagWorkspace, "workspace", "", "workspace directory (default .planforge)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text or json")
}
