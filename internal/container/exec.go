package container

import (
	"bytes"
	"context"
)

// CaptureExec runs cmd in a container and returns its combined output and
// exit code
func CaptureExec(ctx context.Context, rt Runtime, id string, cmd []string) (string, int, error) {
	var out bytes.Buffer
	code, err := rt.Exec(ctx, id, cmd, ExecOptions{Stdout: &out, Stderr: &out})
	return out.String(), code, err
}
