package nativelib

import (
	"runtime"
	"strings"
)

// ABI is the platform library directory name inside the bundle's lib/ tree.
type ABI string

const (
	ABIArm64  ABI = "arm64-v8a"
	ABIArmV7  ABI = "armeabi-v7a"
	ABIX86_64 ABI = "x86_64"
	ABIX86    ABI = "x86"
)

// ResolveABI picks the ABI from an explicit override, the kernel's machine
// name, or the Go architecture, in that order. Unknown values fall back to arm64.
func ResolveABI(override string) ABI {
	if abi, ok := parseABI(override); ok {
		return abi
	}
	if abi, ok := fromMachine(machineName()); ok {
		return abi
	}
	if abi, ok := fromMachine(runtime.GOARCH); ok {
		return abi
	}
	return ABIArm64
}

// MinLibraryBytes is the smallest size a real shared library for this ABI
// plausibly has. Smaller files are treated as truncated extractions.
func (a ABI) MinLibraryBytes() int64 {
	switch a {
	case ABIArmV7, ABIX86:
		return 8 * 1024
	default:
		return 16 * 1024
	}
}

func parseABI(value string) (ABI, bool) {
	switch ABI(strings.ToLower(strings.TrimSpace(value))) {
	case ABIArm64:
		return ABIArm64, true
	case ABIArmV7:
		return ABIArmV7, true
	case ABIX86_64:
		return ABIX86_64, true
	case ABIX86:
		return ABIX86, true
	}
	return "", false
}

func fromMachine(machine string) (ABI, bool) {
	switch strings.ToLower(strings.TrimSpace(machine)) {
	case "aarch64", "arm64", "armv8", "armv8l64":
		return ABIArm64, true
	case "armv7l", "armv8l", "armv7", "arm":
		return ABIArmV7, true
	case "x86_64", "amd64":
		return ABIX86_64, true
	case "i386", "i486", "i586", "i686", "386", "x86":
		return ABIX86, true
	}
	return "", false
}
