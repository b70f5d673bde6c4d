package preflight

import (
	"archive/zip"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"

	"ignite/internal/config"
	"ignite/internal/deps"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.W_OK|unix.X_OK, "read/write ok")
}

// CheckDirectoryReadable verifies that the directory exists and can be listed.
func CheckDirectoryReadable(name, path string) Result {
	return checkDirectory(name, path, unix.R_OK|unix.X_OK, "readable")
}

func checkDirectory(name, path string, mode uint32, okDetail string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, mode); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%s)", path, okDetail)}
}

// CheckBundle verifies that the bundle opens as a zip archive and counts the
// entries under lib/ and in total.
func CheckBundle(path string) Result {
	const name = "Bundle"
	reader, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	defer reader.Close()

	libs := 0
	for _, file := range reader.File {
		if strings.HasPrefix(file.Name, "lib/") && !file.FileInfo().IsDir() {
			libs++
		}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d entries, %d native)", path, len(reader.File), libs)}
}

// CheckEngine reports whether the extraction engine binary can be found.
func CheckEngine(cfg *config.Config) Result {
	status := deps.ResolveEngine(cfg.Engine.Command, cfg.RuntimeDir())
	if !status.Available {
		return Result{Name: status.Name, Detail: status.Detail}
	}
	return Result{Name: status.Name, Passed: true, Detail: status.Command}
}

// CheckLock reports whether another process currently holds the bootstrap lock.
func CheckLock(path string) Result {
	const name = "Bootstrap lock"
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: "free"}
	}
	lock := flock.New(path)
	locked, err := lock.TryRLock()
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("check failed: %v", err)}
	}
	if !locked {
		return Result{Name: name, Detail: "held by another process"}
	}
	_ = lock.Unlock()
	return Result{Name: name, Passed: true, Detail: "free"}
}
