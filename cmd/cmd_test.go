package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantum-exegol/quantum-exegol/internal/config"
	"github.com/quantum-exegol/quantum-exegol/internal/container"
	"github.com/quantum-exegol/quantum-exegol/internal/container/containertest"
)

// cli runs commands against one config directory and a fake runtime
type cli struct {
	t   *testing.T
	dir string
	rt  *containertest.Fake
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	c := &cli{t: t, dir: t.TempDir(), rt: containertest.New()}

	orig := runtimeFactory
	runtimeFactory = func(socket string) (container.Runtime, error) { return c.rt, nil }
	t.Cleanup(func() { runtimeFactory = orig })

	// keep containers and data out of the real home directory
	_, err := c.run("config", "set", "workspace", filepath.Join(c.dir, "workspace"))
	require.NoError(t, err)
	_, err = c.run("config", "set", "data_dir", filepath.Join(c.dir, "data"))
	require.NoError(t, err)
	return c
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config-dir", c.dir}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default, since cobra keeps flag
// values between executions of the same command tree
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			sv.Replace(nil)
		} else {
			f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestConfigSetGet(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("config", "set", "network_mode", "host")
	require.NoError(t, err)
	assert.Contains(t, out, "network_mode = host")

	out, err = c.run("config", "get", "network_mode")
	require.NoError(t, err)
	assert.Equal(t, "host\n", out)
}

func TestConfigSetUnknownKey(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("config", "set", "colour", "blue")
	assert.ErrorIs(t, err, config.ErrUnknownKey)
	assert.Equal(t, 1, ExitCode(err))
}

func TestConfigSetBooleanFallback(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("config", "set", "auto_update", "yes")
	require.NoError(t, err)
	assert.Contains(t, out, "auto_update = true")
}

func TestConfigPath(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("config", "path")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(c.dir, config.AppName, "config.json")+"\n", out)
}

func TestConfigShowJSON(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("config", "show", "--format", "json")
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Len(t, doc, len(config.Keys()))
	assert.Equal(t, "quantum/security:latest", doc["default_image"])
}

func TestConfigShowTable(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("config", "show")
	require.NoError(t, err)
	for _, key := range config.Keys() {
		assert.Contains(t, out, key)
	}
}

func TestConfigShowRejectsUnknownFormat(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("config", "show", "--format", "xml")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "valid")

	_, err = c.run("config", "set", "default_image", "Not A Ref")
	require.NoError(t, err)
	_, err = c.run("config", "validate")
	assert.Error(t, err)
}

func TestInstallAndImages(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("install", "--tag", "nightly")
	require.NoError(t, err)
	assert.Contains(t, out, "quantum/security:nightly")
	assert.Equal(t, []string{"quantum/security:nightly"}, c.rt.Pulls)

	c.rt.AddImage("ubuntu:22.04", 10)

	out, err = c.run("images")
	require.NoError(t, err)
	assert.Contains(t, out, "nightly")
	assert.NotContains(t, out, "ubuntu")

	out, err = c.run("images", "--all", "--format", "json")
	require.NoError(t, err)
	var images []container.Image
	require.NoError(t, json.Unmarshal([]byte(out), &images))
	assert.Len(t, images, 2)
}

func TestStartPsStop(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("start", "lab", "-p", "8080:80")
	require.NoError(t, err)
	assert.Contains(t, out, "Created and started")
	assert.Contains(t, out, "8080->80/tcp")

	opts, ok := c.rt.Options("lab")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(c.dir, "workspace"), opts.Volumes[0].HostPath)

	out, err = c.run("ps", "--format", "json")
	require.NoError(t, err)
	var listed []container.Container
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "lab", listed[0].Name)

	out, err = c.run("stop", "lab", "--snapshot")
	require.NoError(t, err)
	assert.Contains(t, out, "lab-snapshot:")
	require.Len(t, c.rt.Commits, 1)

	out, err = c.run("ps", "-q")
	require.NoError(t, err)
	assert.Empty(t, out)

	out, err = c.run("ps", "-a", "-q")
	require.NoError(t, err)
	assert.Equal(t, "lab\n", out)
}

func TestStopMissingContainer(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("stop", "ghost")
	assert.Error(t, err)
}

func TestExecCapturesOutputAndExitCode(t *testing.T) {
	c := newCLI(t)
	c.rt.AddContainer(container.Container{Name: "lab", State: "running"})
	c.rt.ExecOutput = "root\n"

	out, err := c.run("exec", "lab", "whoami")
	require.NoError(t, err)
	assert.Equal(t, "root\n", out)

	c.rt.ExecCode = 2
	_, err = c.run("exec", "lab", "false")
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
}

func TestLogsTail(t *testing.T) {
	c := newCLI(t)
	c.rt.AddContainer(container.Container{Name: "lab", State: "running"})
	c.rt.LogOutput = "a\nb\nc\n"

	out, err := c.run("logs", "lab", "--tail", "1")
	require.NoError(t, err)
	assert.Equal(t, "c\n", out)
}

func TestStatusEngineDown(t *testing.T) {
	c := newCLI(t)
	c.rt.Unavailable = true

	out, err := c.run("status")
	require.NoError(t, err)
	assert.Contains(t, out, "unreachable")

	_, err = c.run("ps")
	assert.ErrorIs(t, err, container.ErrRuntimeUnavailable)
}

func TestInitWritesConfig(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("init")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written")
	assert.FileExists(t, filepath.Join(c.dir, config.AppName, "config.json"))
}

func TestVersion(t *testing.T) {
	c := newCLI(t)

	out, err := c.run("version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "quantum-exegol dev"))
}

func TestParseBuildArgs(t *testing.T) {
	args, err := parseBuildArgs([]string{"A=1", "B=x=y", "C="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "x=y", "C": ""}, args)

	_, err = parseBuildArgs([]string{"=1"})
	assert.Error(t, err)
	_, err = parseBuildArgs([]string{"novalue"})
	assert.Error(t, err)
}

func TestConfigInitResetsToDefaults(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("config", "set", "network_mode", "host")
	require.NoError(t, err)

	out, err := c.run("config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "reset to defaults")

	out, err = c.run("config", "get", "network_mode")
	require.NoError(t, err)
	assert.Equal(t, "bridge\n", out)
}

func TestInitKeepsExistingConfig(t *testing.T) {
	c := newCLI(t)

	_, err := c.run("config", "set", "network_mode", "host")
	require.NoError(t, err)
	_, err = c.run("init")
	require.NoError(t, err)

	out, err := c.run("config", "get", "network_mode")
	require.NoError(t, err)
	assert.Equal(t, "host\n", out)
}
