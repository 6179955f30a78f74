package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/quantum-exegol/quantum-exegol/internal/container"
	"github.com/quantum-exegol/quantum-exegol/internal/manager"
	"github.com/spf13/cobra"
)

var psCmd = &cobra.Command{
	Use:     "ps",
	Aliases: []string{"list"},
	Short:   "List quantum-exegol containers",
	Long:    `List the containers created by quantum-exegol. By default shows only running containers.`,
	Args:    cobra.NoArgs,
	RunE:    runPs,
}

var (
	psAll    bool
	psQuiet  bool
	psFormat string
)

func init() {
	rootCmd.AddCommand(psCmd)

	psCmd.Flags().BoolVarP(&psAll, "all", "a", false, "Show all containers including stopped")
	psCmd.Flags().BoolVarP(&psQuiet, "quiet", "q", false, "Only display container names")
	psCmd.Flags().StringVar(&psFormat, "format", formatTable, "Output format: table, json, yaml")
}

func runPs(cmd *cobra.Command, args []string) error {
	if err := validateFormat(psFormat); err != nil {
		return err
	}

	return withManager(cmd, true, func(ctx context.Context, m *manager.Manager) error {
		containers, err := m.List(ctx, psAll)
		if err != nil {
			return fmt.Errorf("failed to list containers: %w", err)
		}

		out := cmd.OutOrStdout()
		if psQuiet {
			for _, c := range containers {
				fmt.Fprintln(out, c.Name)
			}
			return nil
		}
		if psFormat != formatTable {
			if containers == nil {
				containers = []container.Container{}
			}
			return writeStructured(out, psFormat, containers)
		}

		if len(containers) == 0 {
			fmt.Fprintln(out, "No quantum-exegol containers found")
			return nil
		}

		now := time.Now()
		table := newTable(out, []string{"NAME", "STATE", "STATUS", "PORTS", "CREATED", "IMAGE"})
		for _, c := range containers {
			ports := make([]string, 0, len(c.Ports))
			for _, p := range c.Ports {
				ports = append(ports, p.String())
			}
			portCol := strings.Join(ports, ", ")
			if portCol == "" {
				portCol = "-"
			}
			table.Append([]string{
				c.Name,
				formatState(c.State),
				c.Status,
				portCol,
				container.FormatAge(c.Created, now),
				c.Image,
			})
		}
		table.Render()
		return nil
	})
}
