package manager

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantum-exegol/quantum-exegol/internal/config"
	"github.com/quantum-exegol/quantum-exegol/internal/container"
	"github.com/quantum-exegol/quantum-exegol/internal/container/containertest"
)

const defaultImage = "quantum/security:latest"

func newTestManager(t *testing.T) (*Manager, *containertest.Fake, *config.Store) {
	t.Helper()
	root := t.TempDir()
	store := config.NewStore(config.Platform{
		OS:        "linux",
		HomeDir:   filepath.Join(root, "home"),
		DataDir:   filepath.Join(root, "data"),
		ConfigDir: filepath.Join(root, "config"),
	}, nil)

	rt := containertest.New()
	m := New(store, rt, nil)
	m.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC) }
	return m, rt, store
}

func TestInit(t *testing.T) {
	m, _, store := newTestManager(t)

	cfg, err := m.Init(context.Background())
	require.NoError(t, err)
	assert.Equal(t, defaultImage, cfg.DefaultImage)
	assert.FileExists(t, store.Path())
}

func TestInitEngineDown(t *testing.T) {
	m, rt, store := newTestManager(t)
	rt.Unavailable = true

	cfg, err := m.Init(context.Background())
	assert.ErrorIs(t, err, container.ErrRuntimeUnavailable)
	assert.NotNil(t, cfg)
	assert.FileExists(t, store.Path(), "config is written even when the engine is down")
}

func TestStatus(t *testing.T) {
	m, rt, _ := newTestManager(t)
	ctx := context.Background()
	rt.AddImage(defaultImage, 100)
	rt.AddContainer(container.Container{
		Name:   "lab",
		State:  "running",
		Labels: map[string]string{container.LabelManaged: "true"},
	})
	rt.AddContainer(container.Container{Name: "other", State: "running"})

	st, err := m.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.RuntimeAvailable)
	assert.Equal(t, "25.0.6-fake", st.RuntimeVersion)
	assert.Equal(t, 1, st.Images)
	require.Len(t, st.RunningContainers, 1)
	assert.Equal(t, "lab", st.RunningContainers[0].Name)
	assert.Empty(t, st.ConfigProblems)
}

func TestStatusEngineDown(t *testing.T) {
	m, rt, store := newTestManager(t)
	rt.Unavailable = true

	st, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.RuntimeAvailable)
	assert.Equal(t, store.Path(), st.ConfigPath)
}

func TestStatusReportsConfigProblems(t *testing.T) {
	m, _, store := newTestManager(t)
	require.NoError(t, store.Update(config.KeyDefaultImage, "Not A Ref"))

	st, err := m.Status(context.Background())
	require.NoError(t, err)
	assert.Len(t, st.ConfigProblems, 1)
}

func TestEnsureImage(t *testing.T) {
	m, rt, _ := newTestManager(t)
	ctx := context.Background()

	pulled, err := m.EnsureImage(ctx, defaultImage, false, nil)
	require.NoError(t, err)
	assert.True(t, pulled)

	pulled, err = m.EnsureImage(ctx, defaultImage, false, nil)
	require.NoError(t, err)
	assert.False(t, pulled, "present image is not pulled again")

	pulled, err = m.EnsureImage(ctx, defaultImage, true, nil)
	require.NoError(t, err)
	assert.True(t, pulled)
	assert.Equal(t, []string{defaultImage, defaultImage}, rt.Pulls)
}

func TestInstall(t *testing.T) {
	m, rt, _ := newTestManager(t)
	ctx := context.Background()
	var out bytes.Buffer

	ref, err := m.Install(ctx, "", "", &out)
	require.NoError(t, err)
	assert.Equal(t, defaultImage, ref)
	assert.Contains(t, out.String(), "Pulled quantum/security:latest")

	ref, err = m.Install(ctx, "", "nightly", nil)
	require.NoError(t, err)
	assert.Equal(t, "quantum/security:nightly", ref)

	ref, err = m.Install(ctx, "kalilinux/kali-rolling", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "kalilinux/kali-rolling:latest", ref)

	assert.Len(t, rt.Pulls, 3)
}

func TestInstallPullFailure(t *testing.T) {
	m, rt, _ := newTestManager(t)
	rt.PullErr = errors.New("manifest unknown")

	_, err := m.Install(context.Background(), "", "", nil)
	assert.EqualError(t, err, "manifest unknown")
}

func TestStartCreatesContainer(t *testing.T) {
	m, rt, store := newTestManager(t)
	ctx := context.Background()
	require.NoError(t, store.Update(config.KeyGPUEnabled, "true"))
	require.NoError(t, store.Update(config.KeyNetworkMode, "host"))
	cfg := store.Load()

	res, err := m.Start(ctx, StartRequest{
		Name:  "lab",
		Ports: []container.PortMapping{{HostPort: 8080, ContainerPort: 80, Protocol: "tcp"}},
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Started)
	assert.True(t, res.Pulled, "auto_update pulls on create")
	assert.True(t, res.Container.Running())

	opts, ok := rt.Options("lab")
	require.True(t, ok)
	assert.Equal(t, defaultImage, opts.Image)
	assert.Equal(t, []string{"/bin/bash"}, opts.Cmd)
	assert.True(t, opts.TTY)
	assert.True(t, opts.OpenStdin)
	assert.True(t, opts.GPU)
	assert.Equal(t, "host", opts.NetworkMode)
	assert.Equal(t, WorkspaceMount, opts.WorkDir)
	assert.Equal(t, []container.VolumeMount{{HostPath: cfg.Workspace, ContainerPath: WorkspaceMount}}, opts.Volumes)
	assert.Equal(t, "true", opts.Labels[container.LabelManaged])
	assert.Equal(t, defaultImage, opts.Labels[container.LabelImage])
	assert.Len(t, opts.Ports, 1)

	assert.DirExists(t, cfg.Workspace)
	assert.DirExists(t, cfg.DataDir)
}

func TestStartDefaultName(t *testing.T) {
	m, _, _ := newTestManager(t)

	res, err := m.Start(context.Background(), StartRequest{})
	require.NoError(t, err)
	assert.Equal(t, DefaultContainerName, res.Container.Name)
}

func TestStartSkipsPullWithoutAutoUpdate(t *testing.T) {
	m, rt, store := newTestManager(t)
	require.NoError(t, store.Update(config.KeyAutoUpdate, "false"))
	rt.AddImage(defaultImage, 100)

	res, err := m.Start(context.Background(), StartRequest{Name: "lab"})
	require.NoError(t, err)
	assert.False(t, res.Pulled)
	assert.Empty(t, rt.Pulls)
}

func TestStartPullsMissingImageWithoutAutoUpdate(t *testing.T) {
	m, rt, store := newTestManager(t)
	require.NoError(t, store.Update(config.KeyAutoUpdate, "false"))

	res, err := m.Start(context.Background(), StartRequest{Name: "lab", Image: "kalilinux/kali-rolling"})
	require.NoError(t, err)
	assert.True(t, res.Pulled)
	assert.Equal(t, []string{"kalilinux/kali-rolling:latest"}, rt.Pulls)
}

func TestStartExistingContainer(t *testing.T) {
	m, rt, _ := newTestManager(t)
	ctx := context.Background()
	rt.AddImage(defaultImage, 100)
	rt.AddContainer(container.Container{Name: "lab", Image: defaultImage, State: "exited"})

	res, err := m.Start(ctx, StartRequest{Name: "lab"})
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.True(t, res.Started)
	assert.True(t, res.Container.Running())
	assert.Empty(t, rt.Pulls)

	res, err = m.Start(ctx, StartRequest{Name: "lab"})
	require.NoError(t, err)
	assert.False(t, res.Started, "running container is left alone")
}

func TestStartRejectsInvalidName(t *testing.T) {
	m, rt, _ := newTestManager(t)

	_, err := m.Start(context.Background(), StartRequest{Name: "bad name"})
	assert.Error(t, err)
	assert.Empty(t, rt.Pulls)
}

func TestStartEngineDown(t *testing.T) {
	m, rt, _ := newTestManager(t)
	rt.Unavailable = true

	_, err := m.Start(context.Background(), StartRequest{Name: "lab"})
	assert.ErrorIs(t, err, container.ErrRuntimeUnavailable)
}

func TestStop(t *testing.T) {
	m, rt, _ := newTestManager(t)
	ctx := context.Background()
	rt.AddContainer(container.Container{Name: "lab", State: "running"})

	ref, err := m.Stop(ctx, "lab", DefaultStopTimeout, false)
	require.NoError(t, err)
	assert.Empty(t, ref)
	assert.Empty(t, rt.Commits)

	c, err := rt.GetContainer(ctx, "lab")
	require.NoError(t, err)
	assert.False(t, c.Running())

	// stopping again is not an error
	_, err = m.Stop(ctx, "lab", DefaultStopTimeout, false)
	assert.NoError(t, err)
}

func TestStopWithSnapshot(t *testing.T) {
	m, rt, _ := newTestManager(t)
	ctx := context.Background()
	rt.AddContainer(container.Container{Name: "lab", State: "running"})

	ref, err := m.Stop(ctx, "lab", DefaultStopTimeout, true)
	require.NoError(t, err)
	assert.Equal(t, "lab-snapshot:20240309-140507", ref)
	assert.Equal(t, []string{ref}, rt.Commits)

	snaps, err := m.Snapshots(ctx, "lab")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, ref, snaps[0].Ref())
}

func TestStopMissingContainer(t *testing.T) {
	m, _, _ := newTestManager(t)

	_, err := m.Stop(context.Background(), "ghost", DefaultStopTimeout, false)
	assert.ErrorIs(t, err, container.ErrNotFound)
}

func TestRestart(t *testing.T) {
	m, rt, _ := newTestManager(t)
	ctx := context.Background()
	rt.AddContainer(container.Container{Name: DefaultContainerName, State: "exited"})

	require.NoError(t, m.Restart(ctx, "", DefaultStopTimeout))
	c, err := rt.GetContainer(ctx, DefaultContainerName)
	require.NoError(t, err)
	assert.True(t, c.Running())
}

func TestRemove(t *testing.T) {
	m, rt, _ := newTestManager(t)
	ctx := context.Background()
	rt.AddContainer(container.Container{Name: "lab", State: "running"})

	assert.Error(t, m.Remove(ctx, "lab", false), "running container needs force")
	require.NoError(t, m.Remove(ctx, "lab", true))

	_, err := rt.GetContainer(ctx, "lab")
	assert.ErrorIs(t, err, container.ErrNotFound)
	assert.ErrorIs(t, m.Remove(ctx, "lab", false), container.ErrNotFound)
}

func TestUninstall(t *testing.T) {
	m, rt, _ := newTestManager(t)
	ctx := context.Background()
	rt.AddImage(defaultImage, 100)

	ref, err := m.Uninstall(ctx, "", false)
	require.NoError(t, err)
	assert.Equal(t, defaultImage, ref)

	exists, err := rt.ImageExists(ctx, defaultImage)
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = m.Uninstall(ctx, "", false)
	assert.ErrorIs(t, err, container.ErrNotFound)
}

func TestUpdateDefaultRepository(t *testing.T) {
	m, rt, _ := newTestManager(t)
	rt.AddImage("quantum/security:nightly", 100)
	rt.AddImage("quantum/security-extra:latest", 100)
	rt.AddImage("ubuntu:22.04", 100)

	updated, err := m.Update(context.Background(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{defaultImage, "quantum/security:nightly"}, updated)
	assert.Equal(t, updated, rt.Pulls)
}

func TestUpdateSingleRef(t *testing.T) {
	m, rt, _ := newTestManager(t)

	updated, err := m.Update(context.Background(), "ubuntu", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"ubuntu:latest"}, updated)
	assert.Equal(t, updated, rt.Pulls)
}

func TestUpdateStopsAtFirstFailure(t *testing.T) {
	m, rt, _ := newTestManager(t)
	rt.PullErr = errors.New("registry down")

	updated, err := m.Update(context.Background(), "", nil)
	assert.Error(t, err)
	assert.Empty(t, updated)
}

func TestList(t *testing.T) {
	m, rt, _ := newTestManager(t)
	ctx := context.Background()
	managed := map[string]string{container.LabelManaged: "true"}
	rt.AddContainer(container.Container{Name: "a", State: "running", Labels: managed})
	rt.AddContainer(container.Container{Name: "b", State: "exited", Labels: managed})
	rt.AddContainer(container.Container{Name: "c", State: "running"})

	running, err := m.List(ctx, false)
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "a", running[0].Name)

	all, err := m.List(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestImages(t *testing.T) {
	m, rt, _ := newTestManager(t)
	rt.AddImage(defaultImage, 100)
	rt.AddImage("ubuntu:22.04", 100)

	images, err := m.Images(context.Background(), "quantum/")
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, defaultImage, images[0].Ref())
}

func TestExec(t *testing.T) {
	m, rt, _ := newTestManager(t)
	ctx := context.Background()
	rt.AddContainer(container.Container{Name: "lab", State: "running"})
	rt.ExecCode = 3

	code, err := m.Exec(ctx, "lab", nil, container.ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, code)
	assert.Equal(t, [][]string{{"/bin/bash"}}, rt.Execs, "defaults to the configured shell")

	_, err = m.Exec(ctx, "lab", []string{"id"}, container.ExecOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, rt.Execs[1])
}

func TestExecStoppedContainer(t *testing.T) {
	m, rt, _ := newTestManager(t)
	rt.AddContainer(container.Container{Name: "lab", State: "exited"})

	_, err := m.Exec(context.Background(), "lab", []string{"id"}, container.ExecOptions{})
	assert.ErrorIs(t, err, container.ErrNotRunning)
	assert.Empty(t, rt.Execs)
}

func TestLogs(t *testing.T) {
	m, rt, _ := newTestManager(t)
	rt.AddContainer(container.Container{Name: "lab", State: "running"})
	rt.LogOutput = "one\ntwo\nthree\n"

	var out bytes.Buffer
	require.NoError(t, m.Logs(context.Background(), "lab", container.LogOptions{Tail: 2}, &out, &out))
	assert.Equal(t, "two\nthree\n", out.String())
}

func TestBuild(t *testing.T) {
	m, rt, _ := newTestManager(t)
	ctx := context.Background()

	dir := t.TempDir()
	dockerfile := filepath.Join(dir, "Dockerfile")
	require.NoError(t, os.WriteFile(dockerfile, []byte("FROM scratch\n"), 0o644))

	ref, err := m.Build(ctx, "", container.BuildOptions{Dockerfile: dockerfile})
	require.NoError(t, err)
	assert.Equal(t, defaultImage, ref)
	assert.Equal(t, []string{defaultImage}, rt.Builds)

	_, err = m.Build(ctx, "custom/tools:dev", container.BuildOptions{Dockerfile: filepath.Join(dir, "missing")})
	assert.Error(t, err)
	assert.Len(t, rt.Builds, 1)
}

func TestExecCapture(t *testing.T) {
	m, rt, _ := newTestManager(t)
	rt.AddContainer(container.Container{Name: "lab", State: "running"})
	rt.ExecOutput = "kali\n"
	rt.ExecCode = 1

	out, code, err := m.ExecCapture(context.Background(), "lab", []string{"hostname"})
	require.NoError(t, err)
	assert.Equal(t, "kali\n", out)
	assert.Equal(t, 1, code)
}
