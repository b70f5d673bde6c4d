//go:build !(darwin || freebsd || linux || netbsd || openbsd)

package nativelib

func machineName() string { return "" }
