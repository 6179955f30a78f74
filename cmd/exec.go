package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/quantum-exegol/quantum-exegol/internal/container"
	"github.com/quantum-exegol/quantum-exegol/internal/manager"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var execCmd = &cobra.Command{
	Use:   "exec <container> [command] [args...]",
	Short: "Execute a command in a container",
	Long: `Execute a command inside a running container.

Without a command the configured default_shell is run. Use -it for an
interactive session.

Examples:
  quantum-exegol exec -it lab
  quantum-exegol exec lab nmap -sV 10.0.0.1
  quantum-exegol exec -u root lab apt update`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

// exitCodeError carries a non-zero exit code of a command run in a container
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("command exited with code %d", e.code)
}

var (
	execInteractive bool
	execTTY         bool
	execUser        string
	execWorkDir     string
	execEnv         []string
)

func init() {
	rootCmd.AddCommand(execCmd)

	execCmd.Flags().SetInterspersed(false)
	execCmd.Flags().BoolVarP(&execInteractive, "interactive", "i", false, "Keep STDIN open")
	execCmd.Flags().BoolVarP(&execTTY, "tty", "t", false, "Allocate pseudo-TTY")
	execCmd.Flags().StringVarP(&execUser, "user", "u", "", "User to run as")
	execCmd.Flags().StringVarP(&execWorkDir, "workdir", "w", "", "Working directory inside container")
	execCmd.Flags().StringArrayVarP(&execEnv, "env", "e", nil, "Set an environment variable, KEY=VALUE")
}

func runExec(cmd *cobra.Command, args []string) error {
	name, command := args[0], args[1:]

	return withManager(cmd, true, func(ctx context.Context, m *manager.Manager) error {
		if !execInteractive && !execTTY && execUser == "" && execWorkDir == "" && len(execEnv) == 0 && len(command) > 0 {
			out, code, err := m.ExecCapture(ctx, name, command)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			if code != 0 {
				return exitCodeError{code: code}
			}
			return nil
		}

		opts := container.ExecOptions{
			Interactive: execInteractive,
			TTY:         execTTY,
			User:        execUser,
			WorkDir:     execWorkDir,
			Env:         execEnv,
			Stdout:      cmd.OutOrStdout(),
			Stderr:      cmd.ErrOrStderr(),
		}
		if execInteractive {
			opts.Stdin = cmd.InOrStdin()
		}

		if execTTY && term.IsTerminal(int(os.Stdin.Fd())) {
			state, err := term.MakeRaw(int(os.Stdin.Fd()))
			if err != nil {
				return fmt.Errorf("failed to set terminal raw mode: %w", err)
			}
			defer term.Restore(int(os.Stdin.Fd()), state)
		}

		code, err := m.Exec(ctx, name, command, opts)
		if err != nil {
			return err
		}
		if code != 0 {
			return exitCodeError{code: code}
		}
		return nil
	})
}
