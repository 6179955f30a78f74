package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/quantum-exegol/quantum-exegol/internal/config"
	"github.com/quantum-exegol/quantum-exegol/internal/container"
	"github.com/quantum-exegol/quantum-exegol/internal/manager"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	store *config.Store
	log   = logrus.New()

	// runtimeFactory opens the container runtime for a docker_socket value
	runtimeFactory = func(socket string) (container.Runtime, error) {
		return container.NewDockerRuntime(socket)
	}
)

var rootCmd = &cobra.Command{
	Use:   "quantum-exegol",
	Short: "Manage containerized security environments",
	Long: `quantum-exegol runs security tooling inside Docker containers.

It provides:
  - Image install, update, build and removal
  - Persistent containers with the host workspace mounted at /workspace
  - Snapshots of container state on stop
  - A per-user JSON configuration file`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		initLogging(cmd.ErrOrStderr())
		initStore()
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		PrintError("%v", err)
	}
	return err
}

// ExitCode maps an error returned by Execute to a process exit code
func ExitCode(err error) int {
	var ec exitCodeError
	if errors.As(err, &ec) {
		return ec.code
	}
	return 1
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("config-dir", "", "configuration directory (default: platform config dir)")

	viper.BindPFlag("logging.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("config_dir", rootCmd.PersistentFlags().Lookup("config-dir"))

	viper.SetEnvPrefix("QEXEGOL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

func initLogging(out io.Writer) {
	log.SetOutput(out)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if GetVerbose() {
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetLevel(logrus.InfoLevel)
	}
}

func initStore() {
	p := config.HostPlatform()
	if dir := viper.GetString("config_dir"); dir != "" {
		p.ConfigDir = dir
	}
	store = config.NewStore(p, log)
	log.WithField("path", store.Path()).Debug("using config file")
}

// withManager opens the runtime from the configured socket, builds a manager
// and closes the runtime once fn returns. With requireEngine set an
// unreachable engine is an error.
func withManager(cmd *cobra.Command, requireEngine bool, fn func(ctx context.Context, m *manager.Manager) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := store.Load()
	rt, err := runtimeFactory(cfg.DockerSocket)
	if err != nil {
		return fmt.Errorf("failed to create container runtime: %w", err)
	}
	defer rt.Close()

	if requireEngine {
		if err := container.Check(ctx, rt); err != nil {
			return fmt.Errorf("%w (docker_socket: %s)", err, cfg.DockerSocket)
		}
	}
	PrintVerbose("Using runtime: %s", rt.Name())

	return fn(ctx, manager.New(store, rt, log))
}

// GetVerbose returns whether verbose mode is enabled
func GetVerbose() bool {
	return viper.GetBool("logging.verbose")
}

// PrintVerbose prints a message if verbose mode is enabled
func PrintVerbose(format string, args ...interface{}) {
	if GetVerbose() {
		fmt.Fprintf(rootCmd.OutOrStdout(), format+"\n", args...)
	}
}

// PrintError prints an error message to stderr
func PrintError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}
