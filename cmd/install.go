package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/quantum-exegol/quantum-exegol/internal/manager"
	"github.com/quantum-exegol/quantum-exegol/internal/notification"
	"github.com/spf13/cobra"
)

var installCmd = &cobra.Command{
	Use:   "install [image]",
	Short: "Pull a security image",
	Long: `Pull a security image from its registry.

Without an argument the configured default_image is installed.

Examples:
  quantum-exegol install
  quantum-exegol install --tag nightly
  quantum-exegol install kalilinux/kali-rolling --notify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInstall,
}

var (
	installTag    string
	installNotify bool
)

func init() {
	rootCmd.AddCommand(installCmd)

	installCmd.Flags().StringVarP(&installTag, "tag", "t", "", "Image tag (default: the reference's tag or latest)")
	installCmd.Flags().BoolVar(&installNotify, "notify", false, "Send a desktop notification when done")
}

func runInstall(cmd *cobra.Command, args []string) error {
	var name string
	if len(args) > 0 {
		name = args[0]
	}

	return withManager(cmd, true, func(ctx context.Context, m *manager.Manager) error {
		ref, err := m.Install(ctx, name, installTag, cmd.OutOrStdout())
		notifyResult(installNotify, "install", err)
		if err != nil {
			return fmt.Errorf("failed to install image: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%s Image installed: %s\n", checkMark(), color.CyanString(ref))
		return nil
	})
}

// notifyResult sends a desktop notification about an operation when enabled.
// Notification failures are only logged.
func notifyResult(enabled bool, operation string, opErr error) {
	n := notification.NewBeeepNotifier(enabled)
	if err := notification.Result(n, operation, opErr); err != nil {
		log.WithError(err).Debug("desktop notification failed")
	}
}
