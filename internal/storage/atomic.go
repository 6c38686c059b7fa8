// Package storage handles durable writes of generated assets: atomic local
// files and directories, and an optional S3-compatible mirror.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes the output of write to path via a temp file in the
// same directory followed by a rename, so readers never see a partial file.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}

// ReplaceDir populates a fresh temp directory next to target using fill and
// then swaps it into place. An existing target is moved aside first and
// removed only after the new directory is in place, so target always holds
// either the complete old contents or the complete new ones.
func ReplaceDir(target string, fill func(dir string) error) error {
	parent := filepath.Dir(target)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", parent, err)
	}

	staging, err := os.MkdirTemp(parent, "."+filepath.Base(target)+".staging-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := fill(staging); err != nil {
		return err
	}
	if err := os.Chmod(staging, 0755); err != nil {
		return fmt.Errorf("chmod %s: %w", staging, err)
	}

	var backup string
	if _, err := os.Stat(target); err == nil {
		backup = staging + ".old"
		if err := os.Rename(target, backup); err != nil {
			return fmt.Errorf("move aside %s: %w", target, err)
		}
	}

	if err := os.Rename(staging, target); err != nil {
		if backup != "" {
			_ = os.Rename(backup, target)
		}
		return fmt.Errorf("rename into %s: %w", target, err)
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			return fmt.Errorf("remove previous %s: %w", backup, err)
		}
	}
	return nil
}
