package engine

import (
	"context"
	"os"
	"strings"
)

// Environment locates the materialized support files the engine needs.
type Environment struct {
	NativeDir  string
	RuntimeDir string
	DataDir    string
}

// Vars returns the process environment with the library search path and
// interpreter home pointed at the extracted directories.
func (e Environment) Vars() []string {
	base := os.Environ()
	vars := make([]string, 0, len(base)+2)
	for _, kv := range base {
		if strings.HasPrefix(kv, "LD_LIBRARY_PATH=") || strings.HasPrefix(kv, "PYTHONHOME=") {
			continue
		}
		vars = append(vars, kv)
	}
	if e.NativeDir != "" {
		path := e.NativeDir
		if existing := os.Getenv("LD_LIBRARY_PATH"); existing != "" {
			path += string(os.PathListSeparator) + existing
		}
		vars = append(vars, "LD_LIBRARY_PATH="+path)
	}
	if e.RuntimeDir != "" {
		vars = append(vars, "PYTHONHOME="+e.RuntimeDir)
	}
	return vars
}

// Engine is the primary initialization contract every engine offers.
type Engine interface {
	Initialize(ctx context.Context, env Environment) error
	Version(ctx context.Context) (string, error)
}

// RuntimeDirInitializer initializes from the runtime directory alone.
type RuntimeDirInitializer interface {
	InitializeWithRuntime(ctx context.Context, runtimeDir string) error
}

// ContextInitializer initializes with nothing but a context.
type ContextInitializer interface {
	InitializeContext(ctx context.Context) error
}

// EnvironmentDirInitializer initializes from explicit environment variables
// and a working directory.
type EnvironmentDirInitializer interface {
	InitializeWithEnvironment(ctx context.Context, env []string, dir string) error
}

// NoArgInitializer initializes with built-in defaults.
type NoArgInitializer interface {
	InitializeDefault() error
}

// Factory builds a new engine instance.
type Factory func() (Engine, error)
