package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/quantum-exegol/quantum-exegol/internal/config"
	"github.com/quantum-exegol/quantum-exegol/internal/container"
	"github.com/quantum-exegol/quantum-exegol/internal/manager"
	"github.com/spf13/cobra"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a security image from a Dockerfile",
	Long: `Build an image from a Dockerfile.

Without --file the Dockerfile is looked up in build/, the current
directory, the config directory and next to the executable.

Examples:
  quantum-exegol build                              # Tag as default_image
  quantum-exegol build --no-cache
  quantum-exegol build --tag quantum/security:custom --file ./Dockerfile
  quantum-exegol build --build-arg TOOLS=full --notify`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

var (
	buildNoCache bool
	buildPull    bool
	buildTag     string
	buildFile    string
	buildContext string
	buildArgs    []string
	buildNotify  bool
)

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().BoolVar(&buildNoCache, "no-cache", false, "Build without using cache")
	buildCmd.Flags().BoolVar(&buildPull, "pull", false, "Always pull the base image")
	buildCmd.Flags().StringVar(&buildTag, "tag", "", "Image tag (default: default_image)")
	buildCmd.Flags().StringVarP(&buildFile, "file", "f", "", "Path to the Dockerfile")
	buildCmd.Flags().StringVar(&buildContext, "context", "", "Build context directory (default: the Dockerfile's directory)")
	buildCmd.Flags().StringArrayVar(&buildArgs, "build-arg", nil, "Build-time variable, KEY=VALUE")
	buildCmd.Flags().BoolVar(&buildNotify, "notify", false, "Send a desktop notification when done")
}

func runBuild(cmd *cobra.Command, args []string) error {
	dockerfilePath := buildFile
	if dockerfilePath == "" {
		var err error
		dockerfilePath, err = findDockerfile(store.Platform().ConfigDir)
		if err != nil {
			return err
		}
	}
	PrintVerbose("Using Dockerfile: %s", dockerfilePath)

	buildArgMap, err := parseBuildArgs(buildArgs)
	if err != nil {
		return err
	}

	return withManager(cmd, true, func(ctx context.Context, m *manager.Manager) error {
		ref, err := m.Build(ctx, buildTag, container.BuildOptions{
			NoCache:    buildNoCache,
			Pull:       buildPull,
			BuildArgs:  buildArgMap,
			Dockerfile: dockerfilePath,
			Context:    buildContext,
			Output:     cmd.OutOrStdout(),
		})
		notifyResult(buildNotify, "build", err)
		if err != nil {
			return fmt.Errorf("failed to build image: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "\n%s Image built successfully: %s\n", checkMark(), color.CyanString(ref))
		return nil
	})
}

func parseBuildArgs(args []string) (map[string]string, error) {
	if len(args) == 0 {
		return nil, nil
	}
	result := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid build arg %q: expected KEY=VALUE", arg)
		}
		result[key] = value
	}
	return result, nil
}

func findDockerfile(configDir string) (string, error) {
	searchPaths := []string{
		filepath.Join("build", "Dockerfile"),
		"Dockerfile",
		filepath.Join(configDir, config.AppName, "Dockerfile"),
	}

	if execPath, err := os.Executable(); err == nil {
		searchPaths = append(searchPaths,
			filepath.Join(filepath.Dir(execPath), "build", "Dockerfile"),
			filepath.Join(filepath.Dir(execPath), "Dockerfile"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err != nil {
				return path, nil
			}
			return absPath, nil
		}
	}

	return "", fmt.Errorf("Dockerfile not found. Searched in:\n  %s\n\nUse --file or create one at build/Dockerfile",
		strings.Join(searchPaths, "\n  "))
}
