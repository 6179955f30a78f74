package container

import "errors"

// RuntimeError represents a container runtime error
type RuntimeError struct {
	message string
}

func (e RuntimeError) Error() string {
	return e.message
}

// ErrRuntimeUnavailable is returned when the container engine cannot be reached
var ErrRuntimeUnavailable = RuntimeError{message: "container engine is not reachable"}

// ErrNotFound is wrapped by runtime errors about missing containers or images
var ErrNotFound = errors.New("not found")

// ErrNotRunning is returned when an operation needs a running container
var ErrNotRunning = errors.New("container is not running")
