package container

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// ParsePortMapping parses "host:container[/proto]" or "port[/proto]"
func ParsePortMapping(value string) (PortMapping, error) {
	protocol := "tcp"
	ports := value
	if i := strings.LastIndex(value, "/"); i >= 0 {
		ports, protocol = value[:i], strings.ToLower(value[i+1:])
	}
	if protocol != "tcp" && protocol != "udp" && protocol != "sctp" {
		return PortMapping{}, fmt.Errorf("invalid port mapping %q: unknown protocol %q", value, protocol)
	}

	hostPart, containerPart, found := strings.Cut(ports, ":")
	if !found {
		containerPart = hostPart
	}

	hostPort, err := parsePort(hostPart)
	if err != nil {
		return PortMapping{}, fmt.Errorf("invalid port mapping %q: %w", value, err)
	}
	containerPort, err := parsePort(containerPart)
	if err != nil {
		return PortMapping{}, fmt.Errorf("invalid port mapping %q: %w", value, err)
	}

	return PortMapping{HostPort: hostPort, ContainerPort: containerPort, Protocol: protocol}, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("port %q is not a number", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range", port)
	}
	return port, nil
}

// String renders the mapping the way it is parsed, e.g. "2222->22/tcp"
func (p PortMapping) String() string {
	if p.HostPort == 0 {
		return fmt.Sprintf("%d/%s", p.ContainerPort, p.Protocol)
	}
	return fmt.Sprintf("%d->%d/%s", p.HostPort, p.ContainerPort, p.Protocol)
}

// isPortAvailable checks if a TCP port can be bound on the host
func isPortAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// FindAvailablePort finds an available port starting from basePort
func FindAvailablePort(basePort, maxPort int) (int, error) {
	for port := basePort; port <= maxPort; port++ {
		if isPortAvailable(port) {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available ports in range %d-%d", basePort, maxPort)
}
