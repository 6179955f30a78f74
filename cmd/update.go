package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/quantum-exegol/quantum-exegol/internal/manager"
	"github.com/spf13/cobra"
)

var updateCmd = &cobra.Command{
	Use:   "update [image]",
	Short: "Pull the latest version of installed images",
	Long: `Pull an image again to pick up upstream changes.

Without an argument the default image and every other local tag of its
repository are updated.

Examples:
  quantum-exegol update
  quantum-exegol update quantum/security:nightly`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpdate,
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall [image]",
	Short: "Remove a security image",
	Long: `Remove a local image. Without an argument the configured default_image
is removed. Images used by containers need --force.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUninstall,
}

var uninstallForce bool

func init() {
	rootCmd.AddCommand(updateCmd, uninstallCmd)

	uninstallCmd.Flags().BoolVarP(&uninstallForce, "force", "f", false, "Remove the image even if containers use it")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	var ref string
	if len(args) > 0 {
		ref = args[0]
	}

	return withManager(cmd, true, func(ctx context.Context, m *manager.Manager) error {
		updated, err := m.Update(ctx, ref, cmd.OutOrStdout())
		for _, r := range updated {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Updated %s\n", checkMark(), color.CyanString(r))
		}
		if err != nil {
			return fmt.Errorf("failed to update images: %w", err)
		}
		return nil
	})
}

func runUninstall(cmd *cobra.Command, args []string) error {
	var name string
	if len(args) > 0 {
		name = args[0]
	}

	return withManager(cmd, true, func(ctx context.Context, m *manager.Manager) error {
		ref, err := m.Uninstall(ctx, name, uninstallForce)
		if err != nil {
			return fmt.Errorf("failed to remove image: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Removed image %s\n", checkMark(), color.CyanString(ref))
		return nil
	})
}
