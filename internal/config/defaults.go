package config

import (
	"path/filepath"
	"runtime"

	"github.com/adrg/xdg"
)

const (
	// AppName is the subfolder used under the platform config and data dirs
	AppName = "quantum-exegol"

	workspaceDirName = "quantum-workspace"

	windowsDockerSocket = "npipe:////./pipe/docker_engine"
	unixDockerSocket    = "/var/run/docker.sock"
)

// Platform identifies the host the default policy computes for
type Platform struct {
	OS        string // runtime.GOOS value
	HomeDir   string
	DataDir   string // platform local-data directory
	ConfigDir string // platform config directory
}

// HostPlatform resolves the running host's platform. Directories the OS
// cannot provide fall back to the current directory.
func HostPlatform() Platform {
	return Platform{
		OS:        runtime.GOOS,
		HomeDir:   orCurrentDir(xdg.Home),
		DataDir:   orCurrentDir(xdg.DataHome),
		ConfigDir: orCurrentDir(xdg.ConfigHome),
	}
}

func orCurrentDir(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

// Default returns the default configuration for the given platform
func Default(p Platform) *Config {
	return &Config{
		DockerSocket: defaultDockerSocket(p.OS),
		DefaultImage: "quantum/security:latest",
		DataDir:      filepath.Join(orCurrentDir(p.DataDir), AppName),
		AutoUpdate:   true,
		DefaultShell: "/bin/bash",
		Workspace:    filepath.Join(orCurrentDir(p.HomeDir), workspaceDirName),
		GPUEnabled:   false,
		NetworkMode:  "bridge",
	}
}

func defaultDockerSocket(goos string) string {
	if goos == "windows" {
		return windowsDockerSocket
	}
	return unixDockerSocket
}
