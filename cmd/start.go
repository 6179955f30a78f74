package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/quantum-exegol/quantum-exegol/internal/container"
	"github.com/quantum-exegol/quantum-exegol/internal/manager"
	"github.com/spf13/cobra"
)

const (
	autoPortBase = 20000
	autoPortMax  = 20999
)

var startCmd = &cobra.Command{
	Use:   "start [name]",
	Short: "Start a security environment",
	Long: `Start a security environment, creating it if it does not exist.

New containers run default_shell from the configured image with the
workspace mounted at /workspace. An existing container is started as is.

Examples:
  quantum-exegol start
  quantum-exegol start lab --image kalilinux/kali-rolling
  quantum-exegol start lab -p 8080:80 -p 4444:4444/udp
  quantum-exegol start lab --auto-port 80`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStart,
}

var (
	startImage    string
	startPorts    []string
	startAutoPort []int
	startEnv      []string
)

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringVar(&startImage, "image", "", "Image to create the container from (default: default_image)")
	startCmd.Flags().StringArrayVarP(&startPorts, "publish", "p", nil, "Publish a port, host:container[/proto]")
	startCmd.Flags().IntSliceVar(&startAutoPort, "auto-port", nil, "Publish a container port on the first free host port")
	startCmd.Flags().StringArrayVarP(&startEnv, "env", "e", nil, "Set an environment variable, KEY=VALUE")
}

func runStart(cmd *cobra.Command, args []string) error {
	name := manager.DefaultContainerName
	if len(args) > 0 {
		name = args[0]
	}

	ports, err := startPortMappings()
	if err != nil {
		return err
	}

	return withManager(cmd, true, func(ctx context.Context, m *manager.Manager) error {
		res, err := m.Start(ctx, manager.StartRequest{
			Name:  name,
			Image: startImage,
			Ports: ports,
			Env:   startEnv,
			Out:   cmd.OutOrStdout(),
		})
		if err != nil {
			return fmt.Errorf("failed to start %s: %w", name, err)
		}

		out := cmd.OutOrStdout()
		switch {
		case res.Created:
			fmt.Fprintf(out, "%s Created and started %s from %s\n", checkMark(), color.CyanString(name), res.Container.Image)
		case res.Started:
			fmt.Fprintf(out, "%s Started %s\n", checkMark(), color.CyanString(name))
		default:
			fmt.Fprintf(out, "%s is already running\n", color.CyanString(name))
		}
		for _, p := range res.Container.Ports {
			fmt.Fprintf(out, "  Port: %s\n", p)
		}
		fmt.Fprintf(out, "\nOpen a shell with: quantum-exegol exec -it %s\n", name)
		return nil
	})
}

func startPortMappings() ([]container.PortMapping, error) {
	var ports []container.PortMapping
	for _, value := range startPorts {
		p, err := container.ParsePortMapping(value)
		if err != nil {
			return nil, err
		}
		ports = append(ports, p)
	}

	used := make(map[int]bool)
	for _, p := range ports {
		used[p.HostPort] = true
	}
	base := autoPortBase
	for _, containerPort := range startAutoPort {
		hostPort, err := container.FindAvailablePort(base, autoPortMax)
		for err == nil && used[hostPort] {
			hostPort, err = container.FindAvailablePort(hostPort+1, autoPortMax)
		}
		if err != nil {
			return nil, err
		}
		used[hostPort] = true
		base = hostPort + 1
		PrintVerbose("Allocated host port %d for container port %d", hostPort, containerPort)
		ports = append(ports, container.PortMapping{HostPort: hostPort, ContainerPort: containerPort, Protocol: "tcp"})
	}
	return ports, nil
}
