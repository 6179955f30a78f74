package container

import (
	"archive/tar"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// createBuildContext tars the context directory. The Dockerfile is always
// placed at the archive root, even when it lives outside the context.
func createBuildContext(contextDir, dockerfilePath string) (io.Reader, error) {
	buf := new(bytes.Buffer)
	tw := tar.NewWriter(buf)

	dockerfileContent, err := os.ReadFile(dockerfilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read Dockerfile: %w", err)
	}

	dockerfileName := filepath.Base(dockerfilePath)
	if err := writeTarEntry(tw, dockerfileName, 0o644, dockerfileContent); err != nil {
		return nil, err
	}

	absDockerfile, _ := filepath.Abs(dockerfilePath)

	if contextDir != "" {
		err := filepath.Walk(contextDir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.Mode().IsRegular() {
				return nil
			}

			relPath, err := filepath.Rel(contextDir, path)
			if err != nil {
				return err
			}
			if abs, _ := filepath.Abs(path); abs == absDockerfile || relPath == dockerfileName {
				return nil
			}

			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			return writeTarEntry(tw, filepath.ToSlash(relPath), int64(info.Mode().Perm()), content)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to add context files: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeTarEntry(tw *tar.Writer, name string, mode int64, content []byte) error {
	hdr := &tar.Header{
		Name: name,
		Mode: mode,
		Size: int64(len(content)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}
