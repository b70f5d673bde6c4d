//go:build darwin || freebsd || linux || netbsd

package nativelib

import "github.com/ebitengine/purego"

// DlopenLoader loads libraries with dlopen, resolving all symbols up front
// and exporting them to libraries loaded later.
type DlopenLoader struct{}

func (DlopenLoader) Open(path string) (uintptr, error) {
	return purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
}
