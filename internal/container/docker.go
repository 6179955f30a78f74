package container

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types"
	containerTypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"golang.org/x/term"
)

// DockerRuntime implements Runtime using the Docker Engine API
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime creates a client for the engine listening on socket.
// An empty socket falls back to DOCKER_HOST and the client defaults.
func NewDockerRuntime(socket string) (*DockerRuntime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if socket != "" {
		opts = append(opts, client.WithHost(DockerHost(socket)))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerRuntime{client: cli}, nil
}

// DockerHost turns a configured socket into a daemon host URI. Bare paths
// become unix sockets, Windows pipe paths become npipe URIs.
func DockerHost(socket string) string {
	switch {
	case strings.Contains(socket, "://"):
		return socket
	case strings.HasPrefix(socket, `\\.\pipe\`), strings.HasPrefix(socket, "//./pipe/"):
		return "npipe://" + strings.ReplaceAll(socket, `\`, "/")
	default:
		return "unix://" + socket
	}
}

// Name returns the runtime name
func (d *DockerRuntime) Name() string {
	return "docker"
}

// Ping checks that the daemon answers
func (d *DockerRuntime) Ping(ctx context.Context) error {
	if _, err := d.client.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrRuntimeUnavailable, err)
	}
	return nil
}

// ServerVersion returns the daemon version
func (d *DockerRuntime) ServerVersion(ctx context.Context) (string, error) {
	v, err := d.client.ServerVersion(ctx)
	if err != nil {
		return "", wrapErr(err, "failed to get server version")
	}
	return v.Version, nil
}

// CreateContainer creates a new container
func (d *DockerRuntime) CreateContainer(ctx context.Context, opts ContainerOptions) (string, error) {
	exposedPorts := nat.PortSet{}
	portBindings := nat.PortMap{}

	for _, p := range opts.Ports {
		protocol := p.Protocol
		if protocol == "" {
			protocol = "tcp"
		}
		containerPort := nat.Port(fmt.Sprintf("%d/%s", p.ContainerPort, protocol))
		exposedPorts[containerPort] = struct{}{}
		portBindings[containerPort] = append(portBindings[containerPort], nat.PortBinding{
			HostIP:   "0.0.0.0",
			HostPort: strconv.Itoa(p.HostPort),
		})
	}

	var mounts []mount.Mount
	for _, v := range opts.Volumes {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   v.HostPath,
			Target:   v.ContainerPath,
			ReadOnly: v.ReadOnly,
		})
	}

	containerConfig := &containerTypes.Config{
		Image:        opts.Image,
		Env:          opts.Env,
		WorkingDir:   opts.WorkDir,
		Cmd:          opts.Cmd,
		Labels:       opts.Labels,
		ExposedPorts: exposedPorts,
		Tty:          opts.TTY,
		OpenStdin:    opts.OpenStdin,
	}

	hostConfig := &containerTypes.HostConfig{
		PortBindings: portBindings,
		Mounts:       mounts,
		NetworkMode:  containerTypes.NetworkMode(opts.NetworkMode),
	}
	if opts.GPU {
		hostConfig.DeviceRequests = []containerTypes.DeviceRequest{{
			Driver:       "nvidia",
			Count:        -1,
			Capabilities: [][]string{{"gpu"}},
		}}
	}

	resp, err := d.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, opts.Name)
	if err != nil {
		return "", wrapErr(err, "failed to create container %s", opts.Name)
	}

	return resp.ID, nil
}

// StartContainer starts a container
func (d *DockerRuntime) StartContainer(ctx context.Context, id string) error {
	if err := d.client.ContainerStart(ctx, id, containerTypes.StartOptions{}); err != nil {
		return wrapErr(err, "failed to start container %s", id)
	}
	return nil
}

// StopContainer stops a container
func (d *DockerRuntime) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	timeoutSeconds := int(timeout.Seconds())
	if err := d.client.ContainerStop(ctx, id, containerTypes.StopOptions{Timeout: &timeoutSeconds}); err != nil {
		return wrapErr(err, "failed to stop container %s", id)
	}
	return nil
}

// RestartContainer restarts a container
func (d *DockerRuntime) RestartContainer(ctx context.Context, id string, timeout time.Duration) error {
	timeoutSeconds := int(timeout.Seconds())
	if err := d.client.ContainerRestart(ctx, id, containerTypes.StopOptions{Timeout: &timeoutSeconds}); err != nil {
		return wrapErr(err, "failed to restart container %s", id)
	}
	return nil
}

// RemoveContainer removes a container
func (d *DockerRuntime) RemoveContainer(ctx context.Context, id string, force bool) error {
	if err := d.client.ContainerRemove(ctx, id, containerTypes.RemoveOptions{Force: force}); err != nil {
		return wrapErr(err, "failed to remove container %s", id)
	}
	return nil
}

// ListContainers lists containers matching the filter
func (d *DockerRuntime) ListContainers(ctx context.Context, filter ContainerFilter) ([]Container, error) {
	args := filters.NewArgs()
	if filter.Name != "" {
		args.Add("name", filter.Name)
	}
	for k, v := range filter.Labels {
		args.Add("label", fmt.Sprintf("%s=%s", k, v))
	}

	containers, err := d.client.ContainerList(ctx, containerTypes.ListOptions{
		All:     filter.All,
		Filters: args,
	})
	if err != nil {
		return nil, wrapErr(err, "failed to list containers")
	}

	var result []Container
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}

		var ports []PortMapping
		for _, p := range c.Ports {
			ports = append(ports, PortMapping{
				HostPort:      int(p.PublicPort),
				ContainerPort: int(p.PrivatePort),
				Protocol:      p.Type,
			})
		}

		result = append(result, Container{
			ID:      shortID(c.ID),
			Name:    name,
			Image:   c.Image,
			State:   c.State,
			Status:  c.Status,
			Created: time.Unix(c.Created, 0),
			Ports:   ports,
			Labels:  c.Labels,
		})
	}

	return result, nil
}

// GetContainer gets a specific container by ID or name
func (d *DockerRuntime) GetContainer(ctx context.Context, idOrName string) (*Container, error) {
	info, err := d.client.ContainerInspect(ctx, idOrName)
	if err != nil {
		return nil, wrapErr(err, "failed to inspect container %s", idOrName)
	}

	c := &Container{
		ID:   shortID(info.ID),
		Name: strings.TrimPrefix(info.Name, "/"),
	}
	c.Created, _ = time.Parse(time.RFC3339Nano, info.Created)

	if info.State != nil {
		c.State = info.State.Status
		c.Status = info.State.Status
	}
	if info.Config != nil {
		c.Image = info.Config.Image
		c.Labels = info.Config.Labels
		c.TTY = info.Config.Tty
	}
	if info.NetworkSettings != nil {
		for containerPort, bindings := range info.NetworkSettings.Ports {
			for _, binding := range bindings {
				hostPort, _ := strconv.Atoi(binding.HostPort)
				c.Ports = append(c.Ports, PortMapping{
					HostPort:      hostPort,
					ContainerPort: containerPort.Int(),
					Protocol:      containerPort.Proto(),
				})
			}
		}
	}

	return c, nil
}

// ContainerLogs copies container logs to stdout and stderr
func (d *DockerRuntime) ContainerLogs(ctx context.Context, id string, opts LogOptions, stdout, stderr io.Writer) error {
	c, err := d.GetContainer(ctx, id)
	if err != nil {
		return err
	}

	options := containerTypes.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Follow:     opts.Follow,
		Timestamps: opts.Timestamps,
		Tail:       "all",
	}
	if opts.Tail > 0 {
		options.Tail = strconv.Itoa(opts.Tail)
	}
	if !opts.Since.IsZero() {
		options.Since = opts.Since.Format(time.RFC3339)
	}

	logs, err := d.client.ContainerLogs(ctx, id, options)
	if err != nil {
		return wrapErr(err, "failed to get logs for %s", id)
	}
	defer logs.Close()

	// TTY containers produce a raw stream, others are multiplexed
	if c.TTY {
		_, err = io.Copy(stdout, logs)
	} else {
		_, err = stdcopy.StdCopy(stdout, stderr, logs)
	}
	if err != nil {
		return fmt.Errorf("error reading logs: %w", err)
	}
	return nil
}

// Exec executes a command in a container and returns its exit code
func (d *DockerRuntime) Exec(ctx context.Context, id string, cmd []string, opts ExecOptions) (int, error) {
	execConfig := types.ExecConfig{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
		AttachStdin:  opts.Interactive,
		Tty:          opts.TTY,
		User:         opts.User,
		WorkingDir:   opts.WorkDir,
		Env:          opts.Env,
	}

	resp, err := d.client.ContainerExecCreate(ctx, id, execConfig)
	if err != nil {
		return -1, wrapErr(err, "failed to create exec in %s", id)
	}

	attachResp, err := d.client.ContainerExecAttach(ctx, resp.ID, types.ExecStartCheck{
		Tty: opts.TTY,
	})
	if err != nil {
		return -1, wrapErr(err, "failed to attach to exec in %s", id)
	}
	defer attachResp.Close()

	if opts.Interactive && opts.Stdin != nil {
		go func() {
			io.Copy(attachResp.Conn, opts.Stdin)
			attachResp.CloseWrite()
		}()
	}

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	if opts.TTY {
		_, err = io.Copy(stdout, attachResp.Reader)
	} else {
		_, err = stdcopy.StdCopy(stdout, stderr, attachResp.Reader)
	}
	if err != nil {
		return -1, fmt.Errorf("failed to read exec output: %w", err)
	}

	inspect, err := d.client.ContainerExecInspect(ctx, resp.ID)
	if err != nil {
		return -1, wrapErr(err, "failed to inspect exec in %s", id)
	}

	return inspect.ExitCode, nil
}

// CommitContainer commits container state to an image
func (d *DockerRuntime) CommitContainer(ctx context.Context, id string, imageName string) error {
	_, err := d.client.ContainerCommit(ctx, id, containerTypes.CommitOptions{
		Reference: imageName,
	})
	if err != nil {
		return wrapErr(err, "failed to commit container %s", id)
	}

	return nil
}

// BuildImage builds an image from a Dockerfile
func (d *DockerRuntime) BuildImage(ctx context.Context, tag string, opts BuildOptions) error {
	contextDir := opts.Context
	if contextDir == "" {
		contextDir = filepath.Dir(opts.Dockerfile)
	}

	buildContext, err := createBuildContext(contextDir, opts.Dockerfile)
	if err != nil {
		return fmt.Errorf("failed to create build context: %w", err)
	}

	buildOptions := types.ImageBuildOptions{
		Tags:        []string{tag},
		Dockerfile:  filepath.Base(opts.Dockerfile),
		NoCache:     opts.NoCache,
		PullParent:  opts.Pull,
		Remove:      true,
		ForceRemove: true,
		BuildArgs:   make(map[string]*string),
	}

	for k, v := range opts.BuildArgs {
		val := v
		buildOptions.BuildArgs[k] = &val
	}

	resp, err := d.client.ImageBuild(ctx, buildContext, buildOptions)
	if err != nil {
		return wrapErr(err, "failed to build image %s", tag)
	}
	defer resp.Body.Close()

	if err := displayStream(resp.Body, opts.Output); err != nil {
		return fmt.Errorf("failed to build image %s: %w", tag, err)
	}

	return nil
}

// PullImage pulls an image from a registry
func (d *DockerRuntime) PullImage(ctx context.Context, ref string, out io.Writer) error {
	resp, err := d.client.ImagePull(ctx, ref, types.ImagePullOptions{})
	if err != nil {
		return wrapErr(err, "failed to pull image %s", ref)
	}
	defer resp.Close()

	if err := displayStream(resp, out); err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}

	return nil
}

// ImageExists checks if an image exists locally
func (d *DockerRuntime) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := d.client.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, wrapErr(err, "failed to inspect image %s", ref)
	}

	return true, nil
}

// ListImages lists images whose repo:tag starts with prefix
func (d *DockerRuntime) ListImages(ctx context.Context, prefix string) ([]Image, error) {
	images, err := d.client.ImageList(ctx, types.ImageListOptions{})
	if err != nil {
		return nil, wrapErr(err, "failed to list images")
	}

	var result []Image
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == "<none>:<none>" || !strings.HasPrefix(tag, prefix) {
				continue
			}
			repo, t := splitRepoTag(tag)
			result = append(result, Image{
				ID:         shortID(strings.TrimPrefix(img.ID, "sha256:")),
				Repository: repo,
				Tag:        t,
				Size:       img.Size,
				Created:    time.Unix(img.Created, 0),
			})
		}
	}

	return result, nil
}

// RemoveImage removes a local image
func (d *DockerRuntime) RemoveImage(ctx context.Context, ref string, force bool) error {
	_, err := d.client.ImageRemove(ctx, ref, types.ImageRemoveOptions{
		Force:         force,
		PruneChildren: true,
	})
	if err != nil {
		return wrapErr(err, "failed to remove image %s", ref)
	}
	return nil
}

// Close releases the client connection
func (d *DockerRuntime) Close() error {
	return d.client.Close()
}

// displayStream renders a daemon JSON progress stream. Errors reported
// inside the stream are returned.
func displayStream(in io.Reader, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	var fd uintptr
	isTerminal := false
	if f, ok := out.(*os.File); ok {
		fd = f.Fd()
		isTerminal = term.IsTerminal(int(fd))
	}

	return jsonmessage.DisplayJSONMessagesStream(in, out, fd, isTerminal, nil)
}

// wrapErr adds context to a daemon error and tags it with ErrNotFound or
// ErrRuntimeUnavailable when it is one of those.
func wrapErr(err error, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	switch {
	case client.IsErrNotFound(err):
		return fmt.Errorf("%s: %w: %w", msg, ErrNotFound, err)
	case client.IsErrConnectionFailed(err):
		return fmt.Errorf("%s: %w: %w", msg, ErrRuntimeUnavailable, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
