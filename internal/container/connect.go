package container

import (
	"context"
	"time"
)

// pingTimeout bounds the connectivity probe
const pingTimeout = 5 * time.Second

// Check pings the engine, giving up after the probe timeout
func Check(ctx context.Context, rt Runtime) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return rt.Ping(pingCtx)
}

// IsAvailable reports whether the engine answers within the probe timeout
func IsAvailable(ctx context.Context, rt Runtime) bool {
	return Check(ctx, rt) == nil
}
