// Package snapshot names the images committed from stopped containers.
package snapshot

import (
	"strings"
	"time"
)

const (
	// Suffix is appended to the container name to form the repository
	Suffix = "-snapshot"

	// TagLayout is the time layout used for snapshot tags
	TagLayout = "20060102-150405"
)

// Repository returns the snapshot repository for a container
func Repository(containerName string) string {
	return strings.ToLower(containerName) + Suffix
}

// Name returns the snapshot image reference for a container taken at t.
// Format: {container}-snapshot:{YYYYMMDD-HHMMSS}
func Name(containerName string, t time.Time) string {
	return Repository(containerName) + ":" + t.UTC().Format(TagLayout)
}

// Parse splits a snapshot reference into the container name and the time
// it was taken. ok is false for references that are not snapshots.
func Parse(ref string) (containerName string, taken time.Time, ok bool) {
	repo, tag, found := strings.Cut(ref, ":")
	if !found || !strings.HasSuffix(repo, Suffix) {
		return "", time.Time{}, false
	}

	taken, err := time.Parse(TagLayout, tag)
	if err != nil {
		return "", time.Time{}, false
	}

	containerName = strings.TrimSuffix(repo, Suffix)
	if containerName == "" {
		return "", time.Time{}, false
	}
	return containerName, taken, true
}
