package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/quantum-exegol/quantum-exegol/internal/manager"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop [containers...]",
	Short: "Stop security environments",
	Long: `Stop one or more containers. Without arguments the default container
is stopped.

With --snapshot the container state is first committed to a timestamped
image named <container>-snapshot:<YYYYMMDD-HHMMSS>.

Examples:
  quantum-exegol stop
  quantum-exegol stop lab --snapshot
  quantum-exegol stop --all --force`,
	RunE: runStop,
}

var (
	stopAll      bool
	stopForce    bool
	stopTimeout  time.Duration
	stopSnapshot bool
)

func init() {
	rootCmd.AddCommand(stopCmd)

	stopCmd.Flags().BoolVar(&stopAll, "all", false, "Stop all running quantum-exegol containers")
	stopCmd.Flags().BoolVar(&stopForce, "force", false, "Kill immediately instead of waiting for the timeout")
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", manager.DefaultStopTimeout, "Timeout before force stop")
	stopCmd.Flags().BoolVar(&stopSnapshot, "snapshot", false, "Commit container state to a snapshot image first")
}

func runStop(cmd *cobra.Command, args []string) error {
	return withManager(cmd, true, func(ctx context.Context, m *manager.Manager) error {
		names, err := stopTargets(ctx, m, args)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No containers to stop")
			return nil
		}

		timeout := stopTimeout
		if stopForce {
			timeout = 0
		}

		var failed int
		for _, name := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "  Stopping %s...\n", name)
			ref, err := m.Stop(ctx, name, timeout, stopSnapshot)
			if ref != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "    Snapshot saved: %s\n", color.CyanString(ref))
			}
			if err != nil {
				PrintError("Failed to stop %s: %v", name, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "    %s stopped\n", color.GreenString(name))
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d container(s) failed to stop", failed, len(names))
		}
		return nil
	})
}

func stopTargets(ctx context.Context, m *manager.Manager, args []string) ([]string, error) {
	if !stopAll {
		if len(args) == 0 {
			return []string{manager.DefaultContainerName}, nil
		}
		return args, nil
	}

	running, err := m.List(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	names := make([]string, 0, len(running))
	for _, c := range running {
		names = append(names, c.Name)
	}
	return names, nil
}

var restartCmd = &cobra.Command{
	Use:   "restart [name]",
	Short: "Restart a security environment",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := manager.DefaultContainerName
		if len(args) > 0 {
			name = args[0]
		}
		return withManager(cmd, true, func(ctx context.Context, m *manager.Manager) error {
			if err := m.Restart(ctx, name, restartTimeout); err != nil {
				return fmt.Errorf("failed to restart %s: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Restarted %s\n", checkMark(), color.CyanString(name))
			return nil
		})
	},
}

var restartTimeout time.Duration

var removeCmd = &cobra.Command{
	Use:     "remove <containers...>",
	Aliases: []string{"rm"},
	Short:   "Remove security environments",
	Long: `Remove one or more containers. Running containers need --force.

Examples:
  quantum-exegol remove lab
  quantum-exegol rm --force lab old-lab`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRemove,
}

var removeForce bool

func init() {
	rootCmd.AddCommand(restartCmd, removeCmd)

	restartCmd.Flags().DurationVar(&restartTimeout, "timeout", manager.DefaultStopTimeout, "Timeout before force stop")
	removeCmd.Flags().BoolVarP(&removeForce, "force", "f", false, "Remove running containers")
}

func runRemove(cmd *cobra.Command, args []string) error {
	return withManager(cmd, true, func(ctx context.Context, m *manager.Manager) error {
		var failed int
		for _, name := range args {
			if err := m.Remove(ctx, name, removeForce); err != nil {
				PrintError("Failed to remove %s: %v", name, err)
				failed++
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Removed %s\n", checkMark(), name)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d container(s) could not be removed", failed, len(args))
		}
		return nil
	})
}
