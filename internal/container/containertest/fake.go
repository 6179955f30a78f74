// Package containertest provides an in-memory container.Runtime for tests.
package containertest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/quantum-exegol/quantum-exegol/internal/container"
)

// Fake is an in-memory container.Runtime
type Fake struct {
	mu sync.Mutex

	containers map[string]*container.Container // by name
	options    map[string]container.ContainerOptions
	images     map[string]container.Image // by repo:tag

	// Unavailable makes every call fail as if the daemon were down
	Unavailable bool
	// PullErr is returned by PullImage when set
	PullErr error
	// ExecOutput and ExecCode are what Exec produces
	ExecOutput string
	ExecCode   int
	// LogOutput is written by ContainerLogs
	LogOutput string

	Pulls   []string
	Commits []string
	Execs   [][]string
	Builds  []string

	nextID int
	closed bool
}

// New returns an empty fake runtime
func New() *Fake {
	return &Fake{
		containers: make(map[string]*container.Container),
		options:    make(map[string]container.ContainerOptions),
		images:     make(map[string]container.Image),
	}
}

// AddImage registers a local image
func (f *Fake) AddImage(ref string, size int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addImageLocked(ref, size)
}

func (f *Fake) addImageLocked(ref string, size int64) {
	repo, tag, err := container.ParseImageRef(ref)
	if err != nil {
		panic(err)
	}
	f.nextID++
	f.images[repo+":"+tag] = container.Image{
		ID:         fmt.Sprintf("img%09d", f.nextID),
		Repository: repo,
		Tag:        tag,
		Size:       size,
		Created:    time.Unix(1700000000, 0),
	}
}

// AddContainer registers an existing container
func (f *Fake) AddContainer(c container.Container) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == "" {
		f.nextID++
		c.ID = fmt.Sprintf("c%011d", f.nextID)
	}
	f.containers[c.Name] = &c
}

// Options returns the options a container was created with
func (f *Fake) Options(name string) (container.ContainerOptions, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	opts, ok := f.options[name]
	return opts, ok
}

// Closed reports whether Close was called
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *Fake) check() error {
	if f.Unavailable {
		return fmt.Errorf("fake: %w", container.ErrRuntimeUnavailable)
	}
	return nil
}

func (f *Fake) lookup(idOrName string) (*container.Container, error) {
	if c, ok := f.containers[idOrName]; ok {
		return c, nil
	}
	for _, c := range f.containers {
		if c.ID == idOrName {
			return c, nil
		}
	}
	return nil, fmt.Errorf("container %s: %w", idOrName, container.ErrNotFound)
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.check()
}

func (f *Fake) ServerVersion(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return "", err
	}
	return "25.0.6-fake", nil
}

func (f *Fake) CreateContainer(ctx context.Context, opts container.ContainerOptions) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return "", err
	}
	if _, exists := f.containers[opts.Name]; exists {
		return "", fmt.Errorf("container name %s already in use", opts.Name)
	}
	repo, tag, err := container.ParseImageRef(opts.Image)
	if err != nil {
		return "", err
	}
	if _, ok := f.images[repo+":"+tag]; !ok {
		return "", fmt.Errorf("image %s: %w", opts.Image, container.ErrNotFound)
	}

	f.nextID++
	c := &container.Container{
		ID:      fmt.Sprintf("c%011d", f.nextID),
		Name:    opts.Name,
		Image:   opts.Image,
		State:   "created",
		Status:  "Created",
		Created: time.Now(),
		Ports:   opts.Ports,
		Labels:  opts.Labels,
		TTY:     opts.TTY,
	}
	f.containers[opts.Name] = c
	f.options[opts.Name] = opts
	return c.ID, nil
}

func (f *Fake) StartContainer(ctx context.Context, id string) error {
	return f.setState(id, "running", "Up Less than a second")
}

func (f *Fake) StopContainer(ctx context.Context, id string, timeout time.Duration) error {
	return f.setState(id, "exited", "Exited (0) Less than a second ago")
}

func (f *Fake) RestartContainer(ctx context.Context, id string, timeout time.Duration) error {
	return f.setState(id, "running", "Up Less than a second")
}

func (f *Fake) setState(id, state, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	c, err := f.lookup(id)
	if err != nil {
		return err
	}
	c.State, c.Status = state, status
	return nil
}

func (f *Fake) RemoveContainer(ctx context.Context, id string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	c, err := f.lookup(id)
	if err != nil {
		return err
	}
	if c.Running() && !force {
		return fmt.Errorf("cannot remove running container %s, stop it first or use force", c.Name)
	}
	delete(f.containers, c.Name)
	delete(f.options, c.Name)
	return nil
}

func (f *Fake) ListContainers(ctx context.Context, filter container.ContainerFilter) ([]container.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return nil, err
	}

	var result []container.Container
	for _, c := range f.containers {
		if !filter.All && !c.Running() {
			continue
		}
		if filter.Name != "" && !strings.Contains(c.Name, filter.Name) {
			continue
		}
		match := true
		for k, v := range filter.Labels {
			if c.Labels[k] != v {
				match = false
				break
			}
		}
		if match {
			result = append(result, *c)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (f *Fake) GetContainer(ctx context.Context, idOrName string) (*container.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return nil, err
	}
	c, err := f.lookup(idOrName)
	if err != nil {
		return nil, err
	}
	cp := *c
	return &cp, nil
}

func (f *Fake) ContainerLogs(ctx context.Context, id string, opts container.LogOptions, stdout, stderr io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	if _, err := f.lookup(id); err != nil {
		return err
	}

	lines := strings.SplitAfter(f.LogOutput, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if opts.Tail > 0 && opts.Tail < len(lines) {
		lines = lines[len(lines)-opts.Tail:]
	}
	_, err := io.WriteString(stdout, strings.Join(lines, ""))
	return err
}

func (f *Fake) Exec(ctx context.Context, id string, cmd []string, opts container.ExecOptions) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return -1, err
	}
	c, err := f.lookup(id)
	if err != nil {
		return -1, err
	}
	if !c.Running() {
		return -1, fmt.Errorf("container %s: %w", c.Name, container.ErrNotRunning)
	}
	f.Execs = append(f.Execs, cmd)
	if opts.Stdout != nil {
		io.WriteString(opts.Stdout, f.ExecOutput)
	}
	return f.ExecCode, nil
}

func (f *Fake) CommitContainer(ctx context.Context, id string, imageName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	if _, err := f.lookup(id); err != nil {
		return err
	}
	f.Commits = append(f.Commits, imageName)
	f.addImageLocked(imageName, 0)
	return nil
}

func (f *Fake) BuildImage(ctx context.Context, tag string, opts container.BuildOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	f.Builds = append(f.Builds, tag)
	f.addImageLocked(tag, 1024)
	return nil
}

func (f *Fake) PullImage(ctx context.Context, ref string, out io.Writer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	if f.PullErr != nil {
		return f.PullErr
	}
	f.Pulls = append(f.Pulls, ref)
	f.addImageLocked(ref, 2<<30)
	if out != nil {
		fmt.Fprintf(out, "Pulled %s\n", ref)
	}
	return nil
}

func (f *Fake) ImageExists(ctx context.Context, ref string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return false, err
	}
	repo, tag, err := container.ParseImageRef(ref)
	if err != nil {
		return false, err
	}
	_, ok := f.images[repo+":"+tag]
	return ok, nil
}

func (f *Fake) ListImages(ctx context.Context, prefix string) ([]container.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return nil, err
	}
	var result []container.Image
	for ref, img := range f.images {
		if strings.HasPrefix(ref, prefix) {
			result = append(result, img)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Ref() < result[j].Ref() })
	return result, nil
}

func (f *Fake) RemoveImage(ctx context.Context, ref string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(); err != nil {
		return err
	}
	repo, tag, err := container.ParseImageRef(ref)
	if err != nil {
		return err
	}
	key := repo + ":" + tag
	if _, ok := f.images[key]; !ok {
		return fmt.Errorf("image %s: %w", ref, container.ErrNotFound)
	}
	if !force {
		for _, c := range f.containers {
			if c.Image == ref || c.Image == key {
				return fmt.Errorf("image %s is in use by container %s", ref, c.Name)
			}
		}
	}
	delete(f.images, key)
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var _ container.Runtime = (*Fake)(nil)
