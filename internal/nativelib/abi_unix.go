//go:build darwin || freebsd || linux || netbsd || openbsd

package nativelib

import "golang.org/x/sys/unix"

func machineName() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	return unix.ByteSliceToString(uts.Machine[:])
}
