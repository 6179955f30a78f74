package container

import (
	"context"
	"io"
	"time"
)

// Labels stamped on every container quantum-exegol creates
const (
	LabelManaged = "quantum-exegol.managed"
	LabelImage   = "quantum-exegol.image"
)

// Container represents a running or stopped container
type Container struct {
	ID      string            `json:"id" yaml:"id"`
	Name    string            `json:"name" yaml:"name"`
	Image   string            `json:"image" yaml:"image"`
	State   string            `json:"state" yaml:"state"`   // running, exited, created, ...
	Status  string            `json:"status" yaml:"status"` // human readable, e.g. "Up 2 hours"
	Created time.Time         `json:"created" yaml:"created"`
	Ports   []PortMapping     `json:"ports,omitempty" yaml:"ports,omitempty"`
	Labels  map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
	TTY     bool              `json:"-" yaml:"-"`
}

// Running reports whether the container is up
func (c Container) Running() bool {
	return c.State == "running"
}

// Image is a locally stored image
type Image struct {
	ID         string    `json:"id" yaml:"id"`
	Repository string    `json:"repository" yaml:"repository"`
	Tag        string    `json:"tag" yaml:"tag"`
	Size       int64     `json:"size" yaml:"size"`
	Created    time.Time `json:"created" yaml:"created"`
}

// Ref returns repository:tag
func (i Image) Ref() string {
	return i.Repository + ":" + i.Tag
}

// ContainerOptions holds options for creating a container
type ContainerOptions struct {
	Name        string
	Image       string
	Cmd         []string
	Env         []string
	WorkDir     string
	Ports       []PortMapping
	Volumes     []VolumeMount
	Labels      map[string]string
	NetworkMode string
	GPU         bool
	TTY         bool
	OpenStdin   bool
}

// PortMapping represents a port mapping between host and container
type PortMapping struct {
	HostPort      int    `json:"host_port" yaml:"host_port"`
	ContainerPort int    `json:"container_port" yaml:"container_port"`
	Protocol      string `json:"protocol" yaml:"protocol"` // tcp, udp
}

// VolumeMount represents a bind mount
type VolumeMount struct {
	HostPath      string
	ContainerPath string
	ReadOnly      bool
}

// ContainerFilter holds filters for listing containers
type ContainerFilter struct {
	All    bool              // include stopped containers
	Name   string            // substring match on the name
	Labels map[string]string // all must match
}

// LogOptions holds options for container logs
type LogOptions struct {
	Follow     bool
	Tail       int // 0 or less means all lines
	Timestamps bool
	Since      time.Time
}

// ExecOptions holds options for executing a command in a container
type ExecOptions struct {
	Interactive bool
	TTY         bool
	User        string
	WorkDir     string
	Env         []string
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
}

// BuildOptions holds options for building an image
type BuildOptions struct {
	NoCache    bool
	Pull       bool
	BuildArgs  map[string]string
	Dockerfile string // path to the Dockerfile
	Context    string // build context directory, defaults to the Dockerfile's directory
	Output     io.Writer
}

// Runtime defines the interface for container runtime operations
type Runtime interface {
	// Name returns the runtime name
	Name() string

	// Ping checks that the engine answers
	Ping(ctx context.Context) error

	// ServerVersion returns the engine version string
	ServerVersion(ctx context.Context) (string, error)

	// CreateContainer creates a new container and returns its ID
	CreateContainer(ctx context.Context, opts ContainerOptions) (string, error)

	// StartContainer starts a container
	StartContainer(ctx context.Context, id string) error

	// StopContainer stops a container, killing it after timeout
	StopContainer(ctx context.Context, id string, timeout time.Duration) error

	// RestartContainer stops then starts a container
	RestartContainer(ctx context.Context, id string, timeout time.Duration) error

	// RemoveContainer removes a container
	RemoveContainer(ctx context.Context, id string, force bool) error

	// ListContainers lists containers matching the filter
	ListContainers(ctx context.Context, filter ContainerFilter) ([]Container, error)

	// GetContainer gets a specific container by ID or name
	GetContainer(ctx context.Context, idOrName string) (*Container, error)

	// ContainerLogs copies container logs to stdout and stderr
	ContainerLogs(ctx context.Context, id string, opts LogOptions, stdout, stderr io.Writer) error

	// Exec runs a command in a running container and returns its exit code
	Exec(ctx context.Context, id string, cmd []string, opts ExecOptions) (int, error)

	// CommitContainer commits container state to an image
	CommitContainer(ctx context.Context, id string, imageName string) error

	// BuildImage builds an image from a Dockerfile
	BuildImage(ctx context.Context, tag string, opts BuildOptions) error

	// PullImage pulls an image from a registry, writing progress to out
	PullImage(ctx context.Context, ref string, out io.Writer) error

	// ImageExists checks if an image exists locally
	ImageExists(ctx context.Context, ref string) (bool, error)

	// ListImages lists local images whose reference starts with prefix
	ListImages(ctx context.Context, prefix string) ([]Image, error)

	// RemoveImage removes a local image
	RemoveImage(ctx context.Context, ref string, force bool) error

	// Close releases the client
	Close() error
}
