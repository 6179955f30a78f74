package container

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/distribution/reference"
)

const maxNameLength = 64

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateName checks a container name: non-empty, at most 64 characters,
// letters, digits, '-' and '_' only
func ValidateName(name string) error {
	if name == "" {
		return errors.New("container name cannot be empty")
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("container name too long (max %d characters)", maxNameLength)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("container name %q contains invalid characters", name)
	}
	return nil
}

// ParseImageRef splits an image reference into its familiar repository and
// tag. A reference without a tag gets "latest"; a digest-only reference
// returns an empty tag.
func ParseImageRef(ref string) (repository, tag string, err error) {
	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return "", "", fmt.Errorf("invalid image reference %q: %w", ref, err)
	}
	named = reference.TagNameOnly(named)

	repository = reference.FamiliarName(named)
	if tagged, ok := named.(reference.Tagged); ok {
		tag = tagged.Tag()
	}
	return repository, tag, nil
}

// NormalizeImageRef joins name and an optional tag and returns the familiar
// form, e.g. "quantum/security" becomes "quantum/security:latest"
func NormalizeImageRef(name, tag string) (string, error) {
	ref := name
	if tag != "" {
		ref = name + ":" + tag
	}

	named, err := reference.ParseNormalizedNamed(ref)
	if err != nil {
		return "", fmt.Errorf("invalid image reference %q: %w", ref, err)
	}
	return reference.FamiliarString(reference.TagNameOnly(named)), nil
}

// splitRepoTag splits "repo:tag" as reported by the daemon. The registry
// port in "host:5000/repo" is not a tag.
func splitRepoTag(s string) (string, string) {
	i := strings.LastIndex(s, ":")
	if i > strings.LastIndex(s, "/") {
		return s[:i], s[i+1:]
	}
	return s, ""
}
