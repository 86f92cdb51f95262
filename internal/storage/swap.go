package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// StagingDir returns the directory a build writes to before it replaces target.
// It is a sibling of target so the final rename stays on one filesystem.
func StagingDir(target, buildID string) string {
	return filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".staging-"+buildID)
}

// ReplaceDir publishes a fully written staging directory at target.
//
// An existing target is first renamed aside, then staging is renamed into
// place and the old directory is removed. Readers never observe a partially
// written index, though target is briefly absent between the two renames.
// If the second rename fails the old index is restored.
func ReplaceDir(staging, target string) error {
	if _, err := os.Stat(staging); err != nil {
		return fmt.Errorf("staging directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}

	previous := ""
	if _, err := os.Stat(target); err == nil {
		previous = filepath.Join(filepath.Dir(target), "."+filepath.Base(target)+".previous-"+filepath.Base(staging))
		if err := os.Rename(target, previous); err != nil {
			return fmt.Errorf("failed to move current index aside: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if err := os.Rename(staging, target); err != nil {
		if previous != "" {
			_ = os.Rename(previous, target)
		}
		return fmt.Errorf("failed to publish index: %w", err)
	}

	if previous != "" {
		if err := os.RemoveAll(previous); err != nil {
			return fmt.Errorf("index published, failed to remove previous copy: %w", err)
		}
	}
	return nil
}
