package emulator

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// createLink points link at target, creating link's directory if needed. An
// existing symlink is replaced; any other file in the way is an error.
func createLink(link, target string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrLink, err)
	}
	fi, err := os.Lstat(link)
	switch {
	case err == nil && fi.Mode()&fs.ModeSymlink == 0:
		return fmt.Errorf("%w: %s exists and is not a symlink", ErrLink, link)
	case err == nil:
		if err := os.Remove(link); err != nil {
			return fmt.Errorf("%w: %w", ErrLink, err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", ErrLink, err)
	}
	if err := os.Symlink(target, link); err != nil {
		return fmt.Errorf("%w: %w", ErrLink, err)
	}
	return nil
}

// removeLink deletes link if it still points at target.
func removeLink(link, target string) error {
	dest, err := os.Readlink(link)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if dest != target {
		return nil
	}
	return os.Remove(link)
}
