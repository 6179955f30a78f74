// Package manager drives security environments: containers created from the
// configured image, the workspace mounted into them, and the images they run.
package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantum-exegol/quantum-exegol/internal/config"
	"github.com/quantum-exegol/quantum-exegol/internal/container"
	"github.com/quantum-exegol/quantum-exegol/internal/snapshot"
)

const (
	// DefaultContainerName is used when no name is given
	DefaultContainerName = "quantum-container"

	// WorkspaceMount is where the host workspace appears inside containers
	WorkspaceMount = "/workspace"

	// DefaultStopTimeout is how long a container gets to exit before it is killed
	DefaultStopTimeout = 10 * time.Second
)

// Manager ties the config store to a container runtime
type Manager struct {
	store *config.Store
	rt    container.Runtime
	log   logrus.FieldLogger
	now   func() time.Time
}

// New creates a manager. The runtime is owned by the caller.
func New(store *config.Store, rt container.Runtime, log logrus.FieldLogger) *Manager {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Manager{store: store, rt: rt, log: log, now: time.Now}
}

// Config returns the current configuration
func (m *Manager) Config() *config.Config {
	return m.store.Load()
}

// Init loads the config, writes it back so the file exists, and checks that
// the container engine answers.
func (m *Manager) Init(ctx context.Context) (*config.Config, error) {
	cfg := m.store.Load()
	if err := m.store.Save(cfg); err != nil {
		return nil, err
	}

	if err := m.rt.Ping(ctx); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Status is a snapshot of the installation
type Status struct {
	Config            *config.Config        `json:"config" yaml:"config"`
	ConfigPath        string                `json:"config_path" yaml:"config_path"`
	ConfigProblems    []string              `json:"config_problems,omitempty" yaml:"config_problems,omitempty"`
	RuntimeAvailable  bool                  `json:"runtime_available" yaml:"runtime_available"`
	RuntimeVersion    string                `json:"runtime_version,omitempty" yaml:"runtime_version,omitempty"`
	RunningContainers []container.Container `json:"running_containers" yaml:"running_containers"`
	Images            int                   `json:"images" yaml:"images"`
}

// Status collects config and engine state. An unreachable engine is reported
// in the result, not as an error.
func (m *Manager) Status(ctx context.Context) (*Status, error) {
	cfg := m.store.Load()
	st := &Status{
		Config:     cfg,
		ConfigPath: m.store.Path(),
	}
	for _, p := range cfg.Validate() {
		st.ConfigProblems = append(st.ConfigProblems, p.Error())
	}

	if !container.IsAvailable(ctx, m.rt) {
		return st, nil
	}
	st.RuntimeAvailable = true

	version, err := m.rt.ServerVersion(ctx)
	if err != nil {
		m.log.WithError(err).Debug("could not read engine version")
	}
	st.RuntimeVersion = version

	running, err := m.List(ctx, false)
	if err != nil {
		return nil, err
	}
	st.RunningContainers = running

	images, err := m.rt.ListImages(ctx, "")
	if err != nil {
		return nil, err
	}
	st.Images = len(images)

	return st, nil
}

// EnsureImage makes sure ref is available locally, pulling it when missing
// or when forcePull is set.
func (m *Manager) EnsureImage(ctx context.Context, ref string, forcePull bool, out io.Writer) (pulled bool, err error) {
	if !forcePull {
		exists, err := m.rt.ImageExists(ctx, ref)
		if err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	m.log.WithField("image", ref).Debug("pulling image")
	if err := m.rt.PullImage(ctx, ref, out); err != nil {
		return false, err
	}
	return true, nil
}

// Install pulls an image. An empty name installs the configured default image.
func (m *Manager) Install(ctx context.Context, name, tag string, out io.Writer) (string, error) {
	ref, err := m.resolveImage(name, tag)
	if err != nil {
		return "", err
	}
	if err := m.rt.PullImage(ctx, ref, out); err != nil {
		return "", err
	}
	return ref, nil
}

// StartRequest describes the environment to start
type StartRequest struct {
	Name  string
	Image string // defaults to the configured image
	Ports []container.PortMapping
	Env   []string
	Out   io.Writer // pull progress
}

// StartResult reports what Start did
type StartResult struct {
	Container *container.Container
	Created   bool
	Pulled    bool
	Started   bool
}

// Start starts the named environment, creating it from the image when it
// does not exist yet.
func (m *Manager) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	name := req.Name
	if name == "" {
		name = DefaultContainerName
	}
	if err := container.ValidateName(name); err != nil {
		return nil, err
	}

	existing, err := m.rt.GetContainer(ctx, name)
	switch {
	case err == nil:
		if req.Image != "" && !sameImage(existing.Image, req.Image) {
			m.log.WithFields(logrus.Fields{"container": name, "image": existing.Image}).
				Warn("container exists with a different image, starting it as is")
		}
		res := &StartResult{Container: existing}
		if !existing.Running() {
			if err := m.rt.StartContainer(ctx, name); err != nil {
				return nil, err
			}
			res.Started = true
		}
		return res, m.refresh(ctx, name, res)
	case !errors.Is(err, container.ErrNotFound):
		return nil, err
	}

	cfg := m.store.Load()
	ref, err := m.resolveImage(req.Image, "")
	if err != nil {
		return nil, err
	}

	pulled, err := m.EnsureImage(ctx, ref, cfg.AutoUpdate, req.Out)
	if err != nil {
		return nil, err
	}

	for _, dir := range []string{cfg.Workspace, cfg.DataDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	opts := container.ContainerOptions{
		Name:    name,
		Image:   ref,
		Cmd:     []string{cfg.DefaultShell},
		Env:     req.Env,
		WorkDir: WorkspaceMount,
		Ports:   req.Ports,
		Volumes: []container.VolumeMount{
			{HostPath: cfg.Workspace, ContainerPath: WorkspaceMount},
		},
		Labels: map[string]string{
			container.LabelManaged: "true",
			container.LabelImage:   ref,
		},
		NetworkMode: cfg.NetworkMode,
		GPU:         cfg.GPUEnabled,
		TTY:         true,
		OpenStdin:   true,
	}

	m.log.WithFields(logrus.Fields{"container": name, "image": ref}).Debug("creating container")
	if _, err := m.rt.CreateContainer(ctx, opts); err != nil {
		return nil, err
	}
	if err := m.rt.StartContainer(ctx, name); err != nil {
		return nil, err
	}

	res := &StartResult{Created: true, Pulled: pulled, Started: true}
	return res, m.refresh(ctx, name, res)
}

func (m *Manager) refresh(ctx context.Context, name string, res *StartResult) error {
	c, err := m.rt.GetContainer(ctx, name)
	if err != nil {
		return err
	}
	res.Container = c
	return nil
}

// Stop stops a container, optionally committing it to a snapshot image first.
// It returns the snapshot reference when one was taken.
func (m *Manager) Stop(ctx context.Context, name string, timeout time.Duration, takeSnapshot bool) (string, error) {
	c, err := m.rt.GetContainer(ctx, orDefaultName(name))
	if err != nil {
		return "", err
	}

	var ref string
	if takeSnapshot {
		ref = snapshot.Name(c.Name, m.now())
		if err := m.rt.CommitContainer(ctx, c.ID, ref); err != nil {
			return "", fmt.Errorf("failed to snapshot %s: %w", c.Name, err)
		}
	}

	if !c.Running() {
		m.log.WithField("container", c.Name).Debug("container already stopped")
		return ref, nil
	}
	if err := m.rt.StopContainer(ctx, c.ID, timeout); err != nil {
		return ref, err
	}
	return ref, nil
}

// Restart restarts a container
func (m *Manager) Restart(ctx context.Context, name string, timeout time.Duration) error {
	return m.rt.RestartContainer(ctx, orDefaultName(name), timeout)
}

// Remove removes a container
func (m *Manager) Remove(ctx context.Context, name string, force bool) error {
	if err := container.ValidateName(name); err != nil {
		return err
	}
	return m.rt.RemoveContainer(ctx, name, force)
}

// Uninstall removes an image. An empty name removes the configured default image.
func (m *Manager) Uninstall(ctx context.Context, name string, force bool) (string, error) {
	ref, err := m.resolveImage(name, "")
	if err != nil {
		return "", err
	}
	if err := m.rt.RemoveImage(ctx, ref, force); err != nil {
		return "", err
	}
	return ref, nil
}

// Update pulls ref again. With an empty ref it refreshes the default image
// and every other local tag of the default image's repository.
func (m *Manager) Update(ctx context.Context, ref string, out io.Writer) ([]string, error) {
	var refs []string
	if ref != "" {
		normalized, err := m.resolveImage(ref, "")
		if err != nil {
			return nil, err
		}
		refs = []string{normalized}
	} else {
		var err error
		refs, err = m.updateCandidates(ctx)
		if err != nil {
			return nil, err
		}
	}

	var updated []string
	for _, r := range refs {
		if err := m.rt.PullImage(ctx, r, out); err != nil {
			return updated, err
		}
		updated = append(updated, r)
	}
	return updated, nil
}

func (m *Manager) updateCandidates(ctx context.Context) ([]string, error) {
	def, err := m.resolveImage("", "")
	if err != nil {
		return nil, err
	}
	repo, _, err := container.ParseImageRef(def)
	if err != nil {
		return nil, err
	}

	images, err := m.rt.ListImages(ctx, repo+":")
	if err != nil {
		return nil, err
	}

	refs := []string{def}
	for _, img := range images {
		if r := img.Ref(); r != def && img.Repository == repo {
			refs = append(refs, r)
		}
	}
	return refs, nil
}

// List returns managed containers, running ones only unless all is set
func (m *Manager) List(ctx context.Context, all bool) ([]container.Container, error) {
	return m.rt.ListContainers(ctx, container.ContainerFilter{
		All:    all,
		Labels: map[string]string{container.LabelManaged: "true"},
	})
}

// Images lists local images whose reference starts with prefix
func (m *Manager) Images(ctx context.Context, prefix string) ([]container.Image, error) {
	return m.rt.ListImages(ctx, prefix)
}

// Exec runs a command in a running container
func (m *Manager) Exec(ctx context.Context, name string, cmd []string, opts container.ExecOptions) (int, error) {
	c, err := m.rt.GetContainer(ctx, orDefaultName(name))
	if err != nil {
		return -1, err
	}
	if !c.Running() {
		return -1, fmt.Errorf("%s (state: %s): %w", c.Name, c.State, container.ErrNotRunning)
	}
	if len(cmd) == 0 {
		cmd = []string{m.store.Load().DefaultShell}
	}
	return m.rt.Exec(ctx, c.ID, cmd, opts)
}

// Logs writes the last tail lines of a container's output
func (m *Manager) Logs(ctx context.Context, name string, opts container.LogOptions, stdout, stderr io.Writer) error {
	return m.rt.ContainerLogs(ctx, orDefaultName(name), opts, stdout, stderr)
}

// Build builds an image from a Dockerfile
func (m *Manager) Build(ctx context.Context, tag string, opts container.BuildOptions) (string, error) {
	ref, err := m.resolveImage(tag, "")
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(opts.Dockerfile); err != nil {
		return "", fmt.Errorf("dockerfile not found: %w", err)
	}
	if err := m.rt.BuildImage(ctx, ref, opts); err != nil {
		return "", err
	}
	return ref, nil
}

// resolveImage normalizes name[:tag], defaulting to the configured image
func (m *Manager) resolveImage(name, tag string) (string, error) {
	if name == "" {
		name = m.store.Load().DefaultImage
		if tag != "" {
			repo, _, err := container.ParseImageRef(name)
			if err != nil {
				return "", err
			}
			name = repo
		}
	}
	return container.NormalizeImageRef(name, tag)
}

func orDefaultName(name string) string {
	if name == "" {
		return DefaultContainerName
	}
	return name
}

func sameImage(a, b string) bool {
	na, errA := container.NormalizeImageRef(a, "")
	nb, errB := container.NormalizeImageRef(b, "")
	if errA != nil || errB != nil {
		return strings.EqualFold(a, b)
	}
	return na == nb
}

// Snapshots lists snapshot images. A non-empty name limits the result to
// that container's snapshots.
func (m *Manager) Snapshots(ctx context.Context, name string) ([]container.Image, error) {
	prefix := ""
	if name != "" {
		prefix = snapshot.Repository(name) + ":"
	}
	images, err := m.rt.ListImages(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var result []container.Image
	for _, img := range images {
		if _, _, ok := snapshot.Parse(img.Ref()); ok {
			result = append(result, img)
		}
	}
	return result, nil
}

// ExecCapture runs a command in a running container and returns its
// combined output with the exit code
func (m *Manager) ExecCapture(ctx context.Context, name string, cmd []string) (string, int, error) {
	c, err := m.rt.GetContainer(ctx, orDefaultName(name))
	if err != nil {
		return "", -1, err
	}
	if !c.Running() {
		return "", -1, fmt.Errorf("%s (state: %s): %w", c.Name, c.State, container.ErrNotRunning)
	}
	return container.CaptureExec(ctx, m.rt, c.ID, cmd)
}
