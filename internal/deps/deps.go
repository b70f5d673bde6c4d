package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Requirement defines an external binary the bootstrap relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// SearchDirs are consulted in order before PATH.
	SearchDirs []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(req))
	}
	return results
}

// ResolveEngine reports the extraction engine binary that will be executed.
//
// The embedded runtime may ship its own copy of the engine under
// <runtimeDir>/bin; that copy wins over anything on PATH so the engine runs
// against the interpreter it was packaged with.
func ResolveEngine(command, runtimeDir string) Status {
	req := Requirement{
		Name:        "Extraction engine",
		Command:     command,
		Description: "Driven during bootstrap and verified with a version check",
	}
	if strings.TrimSpace(runtimeDir) != "" {
		req.SearchDirs = []string{filepath.Join(runtimeDir, "bin")}
	}
	return check(req)
}

func check(req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}

	if filepath.IsAbs(cmd) {
		if info, err := os.Stat(cmd); err == nil && isExecutable(info) {
			status.Available = true
			return status
		}
		status.Detail = fmt.Sprintf("binary %q not executable", cmd)
		return status
	}

	for _, dir := range req.SearchDirs {
		candidate := filepath.Join(dir, executableName(cmd))
		if info, err := os.Stat(candidate); err == nil && isExecutable(info) {
			status.Command = candidate
			status.Available = true
			return status
		}
	}

	resolved, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	if len(req.SearchDirs) > 0 {
		status.Command = resolved
	}
	status.Available = true
	return status
}

func executableName(name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		return name + ".exe"
	}
	return name
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
