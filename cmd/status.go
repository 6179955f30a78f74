package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/quantum-exegol/quantum-exegol/internal/manager"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and container engine status",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration and check the container engine",
	Long: `Write the configuration file, creating it with defaults when missing,
then check that the container engine configured by docker_socket answers.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

var statusFormat string

func init() {
	rootCmd.AddCommand(statusCmd, initCmd)

	statusCmd.Flags().StringVar(&statusFormat, "format", formatTable, "Output format: table, json, yaml")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := validateFormat(statusFormat); err != nil {
		return err
	}

	return withManager(cmd, false, func(ctx context.Context, m *manager.Manager) error {
		st, err := m.Status(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statusFormat != formatTable {
			return writeStructured(out, statusFormat, st)
		}

		fmt.Fprintf(out, "Config:        %s\n", st.ConfigPath)
		fmt.Fprintf(out, "Image:         %s\n", st.Config.DefaultImage)
		fmt.Fprintf(out, "Workspace:     %s\n", st.Config.Workspace)
		fmt.Fprintf(out, "Docker socket: %s\n", st.Config.DockerSocket)
		if st.RuntimeAvailable {
			fmt.Fprintf(out, "Engine:        %s (%s)\n", color.GreenString("available"), st.RuntimeVersion)
			fmt.Fprintf(out, "Images:        %d\n", st.Images)
			fmt.Fprintf(out, "Running:       %d\n", len(st.RunningContainers))
			for _, c := range st.RunningContainers {
				fmt.Fprintf(out, "  - %s (%s)\n", c.Name, c.Image)
			}
		} else {
			fmt.Fprintf(out, "Engine:        %s\n", color.RedString("unreachable"))
		}
		for _, p := range st.ConfigProblems {
			fmt.Fprintf(out, "%s %s\n", color.YellowString("Warning:"), p)
		}
		return nil
	})
}

func runInit(cmd *cobra.Command, args []string) error {
	return withManager(cmd, false, func(ctx context.Context, m *manager.Manager) error {
		cfg, err := m.Init(ctx)
		if cfg == nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration written to %s\n", checkMark(), store.Path())
		if err != nil {
			return fmt.Errorf("container engine check failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Container engine reachable at %s\n", checkMark(), cfg.DockerSocket)
		return nil
	})
}
