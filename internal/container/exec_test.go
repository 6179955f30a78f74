package container_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantum-exegol/quantum-exegol/internal/container"
	"github.com/quantum-exegol/quantum-exegol/internal/container/containertest"
)

func TestCaptureExec(t *testing.T) {
	rt := containertest.New()
	rt.AddContainer(container.Container{Name: "qe", State: "running"})
	rt.ExecOutput = "uid=0(root)\n"
	rt.ExecCode = 0

	out, code, err := container.CaptureExec(context.Background(), rt, "qe", []string{"id"})
	require.NoError(t, err)
	assert.Equal(t, "uid=0(root)\n", out)
	assert.Equal(t, 0, code)
	assert.Equal(t, [][]string{{"id"}}, rt.Execs)
}

func TestCaptureExec_StoppedContainer(t *testing.T) {
	rt := containertest.New()
	rt.AddContainer(container.Container{Name: "qe", State: "exited"})

	_, _, err := container.CaptureExec(context.Background(), rt, "qe", []string{"id"})
	assert.ErrorIs(t, err, container.ErrNotRunning)
}
