package fileutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteStream copies r into dst through a temporary sibling file and renames
// it into place, so a failed copy never leaves a truncated dst behind. When
// size is non-negative the number of bytes written must match it.
func WriteStream(dst string, r io.Reader, mode os.FileMode, size int64) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	written, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if size >= 0 && written != size {
		cleanup()
		return fmt.Errorf("copy size mismatch: expected %d bytes, wrote %d bytes", size, written)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, dst); err != nil {
		cleanup()
		return err
	}
	return nil
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	return WriteStream(dst, in, mode, info.Size())
}

// CopyNoClobber copies src to dst unless dst already exists. It reports
// whether a copy happened.
func CopyNoClobber(src, dst string, mode os.FileMode) (bool, error) {
	if _, err := os.Lstat(dst); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := CopyFileMode(src, dst, mode); err != nil {
		return false, err
	}
	return true, nil
}
