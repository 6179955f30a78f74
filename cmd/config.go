package cmd

import (
	"fmt"
	"strings"

	"github.com/quantum-exegol/quantum-exegol/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and change the configuration",
	Long: `Show and change the quantum-exegol configuration file.

Keys: ` + strings.Join(config.Keys(), ", ") + `

Examples:
  quantum-exegol config show
  quantum-exegol config get default_image
  quantum-exegol config set gpu_enabled true
  quantum-exegol config path`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), store.Path())
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:       "get <key>",
	Short:     "Print one configuration value",
	Args:      cobra.ExactArgs(1),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := store.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Change one configuration value",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := store.Update(args[0], args[1]); err != nil {
			return err
		}
		value, err := store.Get(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", checkMark(), args[0], value)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Reset the configuration file to defaults",
	Long: `Overwrite the configuration file with the default values, discarding
every customised key. The top-level init command keeps an existing file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := store.Init(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration reset to defaults at %s\n", checkMark(), store.Path())
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		problems := store.Load().Validate()
		if len(problems) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Configuration is valid\n", checkMark())
			return nil
		}
		for _, p := range problems {
			fmt.Fprintf(cmd.OutOrStdout(), "  - %v\n", p)
		}
		return fmt.Errorf("configuration has %d problem(s)", len(problems))
	},
}

var configShowFormat string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configPathCmd, configGetCmd, configSetCmd, configInitCmd, configValidateCmd)

	configShowCmd.Flags().StringVar(&configShowFormat, "format", formatTable, "Output format: table, json, yaml")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	if err := validateFormat(configShowFormat); err != nil {
		return err
	}
	cfg := store.Load()

	if configShowFormat != formatTable {
		return writeStructured(cmd.OutOrStdout(), configShowFormat, cfg)
	}

	table := newTable(cmd.OutOrStdout(), []string{"KEY", "VALUE"})
	for _, key := range config.Keys() {
		value, err := cfg.Get(key)
		if err != nil {
			return err
		}
		table.Append([]string{key, value})
	}
	table.Render()
	return nil
}
