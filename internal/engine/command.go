package engine

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"ignite/internal/config"
	"ignite/internal/deps"
	"ignite/internal/faults"
)

// Command runs an external engine binary. Initialization resolves the binary
// and runs it with --version under the prepared environment; later calls
// reuse the same binary, variables and working directory.
type Command struct {
	command string
	timeout time.Duration

	mu      sync.Mutex
	binary  string
	vars    []string
	dir     string
	version string
}

// NewCommand returns an uninitialized Command engine.
func NewCommand(command string, timeout time.Duration) *Command {
	return &Command{command: command, timeout: timeout}
}

// CommandFactory builds Command engines from configuration.
func CommandFactory(cfg *config.Config) Factory {
	return func() (Engine, error) {
		command := strings.TrimSpace(cfg.Engine.Command)
		if command == "" {
			return nil, errors.New("engine command not configured")
		}
		return NewCommand(command, cfg.EngineTimeout()), nil
	}
}

func (c *Command) Initialize(ctx context.Context, env Environment) error {
	return c.start(ctx, env.RuntimeDir, env.Vars(), env.DataDir)
}

func (c *Command) InitializeWithRuntime(ctx context.Context, runtimeDir string) error {
	return c.start(ctx, runtimeDir, Environment{RuntimeDir: runtimeDir}.Vars(), "")
}

func (c *Command) InitializeWithEnvironment(ctx context.Context, vars []string, dir string) error {
	return c.start(ctx, "", vars, dir)
}

func (c *Command) InitializeDefault() error {
	return c.start(context.Background(), "", os.Environ(), "")
}

func (c *Command) Version(ctx context.Context) (string, error) {
	c.mu.Lock()
	binary, vars, dir := c.binary, c.vars, c.dir
	c.mu.Unlock()
	if binary == "" {
		return "", errors.New("engine not started")
	}
	return c.queryVersion(ctx, binary, vars, dir)
}

func (c *Command) start(ctx context.Context, runtimeDir string, vars []string, dir string) error {
	status := deps.ResolveEngine(c.command, runtimeDir)
	if !status.Available {
		return fmt.Errorf("engine binary not found: %s", status.Detail)
	}
	if dir != "" {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			dir = ""
		}
	}
	version, err := c.queryVersion(ctx, status.Command, vars, dir)
	if err != nil {
		return err
	}
	if !versionPattern.MatchString(version) {
		return faults.ExtractionEngineError(
			fmt.Sprintf("incompatible engine: unexpected version output %q", version), nil,
		).NotRecoverable()
	}

	c.mu.Lock()
	c.binary, c.vars, c.dir, c.version = status.Command, vars, dir, version
	c.mu.Unlock()
	return nil
}

func (c *Command) queryVersion(ctx context.Context, binary string, vars []string, dir string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, binary, "--version") //nolint:gosec
	cmd.Env = vars
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("engine version check timed out after %s", c.timeout)
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return "", fmt.Errorf("engine version check: %w: %s", err, msg)
		}
		return "", fmt.Errorf("engine version check: %w", err)
	}
	return firstLine(out), nil
}

func firstLine(out []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line
		}
	}
	return ""
}
