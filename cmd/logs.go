package cmd

import (
	"context"
	"fmt"

	"github.com/quantum-exegol/quantum-exegol/internal/container"
	"github.com/quantum-exegol/quantum-exegol/internal/manager"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs [container]",
	Short: "Show container logs",
	Long: `Show the output of a container.

Examples:
  quantum-exegol logs
  quantum-exegol logs lab --tail 50
  quantum-exegol logs lab -f`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogs,
}

var (
	logsFollow     bool
	logsTail       int
	logsTimestamps bool
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 100, "Number of lines to show from the end, 0 for all")
	logsCmd.Flags().BoolVar(&logsTimestamps, "timestamps", false, "Show timestamps")
}

func runLogs(cmd *cobra.Command, args []string) error {
	name := manager.DefaultContainerName
	if len(args) > 0 {
		name = args[0]
	}
	if logsTail < 0 {
		return fmt.Errorf("--tail must not be negative")
	}

	return withManager(cmd, true, func(ctx context.Context, m *manager.Manager) error {
		return m.Logs(ctx, name, container.LogOptions{
			Follow:     logsFollow,
			Tail:       logsTail,
			Timestamps: logsTimestamps,
		}, cmd.OutOrStdout(), cmd.ErrOrStderr())
	})
}
