//go:build !(darwin || freebsd || linux || netbsd)

package nativelib

import (
	"fmt"
	"runtime"
)

// DlopenLoader is unavailable on this platform; every load fails.
type DlopenLoader struct{}

func (DlopenLoader) Open(path string) (uintptr, error) {
	return 0, fmt.Errorf("dynamic loading not supported on %s", runtime.GOOS)
}
