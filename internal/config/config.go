package config

import (
	"fmt"
	"strconv"

	"github.com/distribution/reference"
)

// Config holds all user-tunable settings for quantum-exegol
type Config struct {
	DockerSocket string `json:"docker_socket" yaml:"docker_socket" mapstructure:"docker_socket"`
	DefaultImage string `json:"default_image" yaml:"default_image" mapstructure:"default_image"`
	DataDir      string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	AutoUpdate   bool   `json:"auto_update" yaml:"auto_update" mapstructure:"auto_update"`
	DefaultShell string `json:"default_shell" yaml:"default_shell" mapstructure:"default_shell"`
	Workspace    string `json:"workspace" yaml:"workspace" mapstructure:"workspace"`
	GPUEnabled   bool   `json:"gpu_enabled" yaml:"gpu_enabled" mapstructure:"gpu_enabled"`
	NetworkMode  string `json:"network_mode" yaml:"network_mode" mapstructure:"network_mode"`
}

// Config keys, as they appear in config.json
const (
	KeyDockerSocket = "docker_socket"
	KeyDefaultImage = "default_image"
	KeyDataDir      = "data_dir"
	KeyAutoUpdate   = "auto_update"
	KeyDefaultShell = "default_shell"
	KeyWorkspace    = "workspace"
	KeyGPUEnabled   = "gpu_enabled"
	KeyNetworkMode  = "network_mode"
)

var keys = []string{
	KeyDockerSocket,
	KeyDefaultImage,
	KeyDataDir,
	KeyAutoUpdate,
	KeyDefaultShell,
	KeyWorkspace,
	KeyGPUEnabled,
	KeyNetworkMode,
}

// Keys returns the config field names in file order
func Keys() []string {
	out := make([]string, len(keys))
	copy(out, keys)
	return out
}

// IsKey reports whether key names a config field. Matching is case-sensitive.
func IsKey(key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a single field rendered as a string
func (c *Config) Get(key string) (string, error) {
	switch key {
	case KeyDockerSocket:
		return c.DockerSocket, nil
	case KeyDefaultImage:
		return c.DefaultImage, nil
	case KeyDataDir:
		return c.DataDir, nil
	case KeyAutoUpdate:
		return strconv.FormatBool(c.AutoUpdate), nil
	case KeyDefaultShell:
		return c.DefaultShell, nil
	case KeyWorkspace:
		return c.Workspace, nil
	case KeyGPUEnabled:
		return strconv.FormatBool(c.GPUEnabled), nil
	case KeyNetworkMode:
		return c.NetworkMode, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
}

// set assigns one field from its string form. Boolean fields only understand
// "true" and "false"; anything else lands on the field's fallback and parsed
// is reported false.
func (c *Config) set(key, value string) (parsed bool, err error) {
	switch key {
	case KeyDockerSocket:
		c.DockerSocket = value
	case KeyDefaultImage:
		c.DefaultImage = value
	case KeyDataDir:
		c.DataDir = value
	case KeyAutoUpdate:
		c.AutoUpdate, parsed = parseBool(value, true)
		return parsed, nil
	case KeyDefaultShell:
		c.DefaultShell = value
	case KeyWorkspace:
		c.Workspace = value
	case KeyGPUEnabled:
		c.GPUEnabled, parsed = parseBool(value, false)
		return parsed, nil
	case KeyNetworkMode:
		c.NetworkMode = value
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return true, nil
}

func parseBool(value string, fallback bool) (bool, bool) {
	switch value {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return fallback, false
}

// Validate reports settings that will not work when launching containers.
// The store never calls it; load, save and update accept any value.
func (c *Config) Validate() []error {
	var problems []error

	if c.DefaultImage == "" {
		problems = append(problems, fmt.Errorf("%s must not be empty", KeyDefaultImage))
	} else if _, err := reference.ParseNormalizedNamed(c.DefaultImage); err != nil {
		problems = append(problems, fmt.Errorf("%s %q is not a valid image reference: %w", KeyDefaultImage, c.DefaultImage, err))
	}
	if c.DataDir == "" {
		problems = append(problems, fmt.Errorf("%s must not be empty", KeyDataDir))
	}
	if c.DockerSocket == "" {
		problems = append(problems, fmt.Errorf("%s must not be empty", KeyDockerSocket))
	}

	return problems
}
