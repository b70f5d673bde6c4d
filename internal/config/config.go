package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the writable data root, the bundle archive and log locations.
type Paths struct {
	DataDir string `toml:"data_dir"`
	Bundle  string `toml:"bundle"`
	LogDir  string `toml:"log_dir"`
}

// Native contains configuration for platform shared library extraction and loading.
type Native struct {
	DirName             string   `toml:"dir_name"`
	ABI                 string   `toml:"abi"`
	RequiredFragments   []string `toml:"required_fragments"`
	DependencyLibraries []string `toml:"dependency_libraries"`
	CompressedSuffixes  []string `toml:"compressed_suffixes"`
	MinLibraryBytes     int64    `toml:"min_library_bytes"`
}

// Runtime contains configuration for the embedded interpreter environment.
type Runtime struct {
	DirName          string   `toml:"dir_name"`
	NameFragments    []string `toml:"name_fragments"`
	AllowedFragments []string `toml:"allowed_fragments"`
	RequiredPatterns []string `toml:"required_patterns"`
	LibraryArchive   string   `toml:"library_archive"`
}

// Engine contains configuration for the third-party extraction engine.
type Engine struct {
	Command        string `toml:"command"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Bootstrap contains retry, recovery and timing knobs for the orchestrator.
type Bootstrap struct {
	MaxRetries     int  `toml:"max_retries"`
	ActionBudget   int  `toml:"action_budget"`
	SettleDelayMS  int  `toml:"settle_delay_ms"`
	TimeoutSeconds int  `toml:"timeout_seconds"`
	Journal        bool `toml:"journal"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format             string            `toml:"format"`
	Level              string            `toml:"level"`
	RetentionDays      int               `toml:"retention_days"`
	ComponentOverrides map[string]string `toml:"component_overrides"`
}

// Config encapsulates all configuration values for ignite.
//
// Configuration sections by subsystem:
//   - Paths: data root, bundle archive, logs
//   - Native: shared library extraction filters and load order
//   - Runtime: embedded interpreter support files
//   - Engine: extraction engine command and version check timeout
//   - Bootstrap: retry budget, recovery budget, settle delay, journal
//   - Logging: log format, level, retention and per-component overrides
type Config struct {
	Paths     Paths     `toml:"paths"`
	Native    Native    `toml:"native"`
	Runtime   Runtime   `toml:"runtime"`
	Engine    Engine    `toml:"engine"`
	Bootstrap Bootstrap `toml:"bootstrap"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("ignite.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data root and log directory. The native and
// runtime subdirectories are owned by their managers and created on demand.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// NativeDir returns the private directory native libraries are extracted into.
func (c *Config) NativeDir() string {
	return filepath.Join(c.Paths.DataDir, c.Native.DirName)
}

// RuntimeDir returns the private directory of the embedded runtime.
func (c *Config) RuntimeDir() string {
	return filepath.Join(c.Paths.DataDir, c.Runtime.DirName)
}

// JournalPath returns the SQLite database holding bootstrap attempt history.
func (c *Config) JournalPath() string {
	return filepath.Join(c.Paths.DataDir, "bootstrap.db")
}

// LockPath returns the advisory lock file guarding extraction.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, ".bootstrap.lock")
}

// LogPath returns the main log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "ignite.log")
}

// SettleDelay is the pause after native libraries are loaded.
func (c *Config) SettleDelay() time.Duration {
	return time.Duration(c.Bootstrap.SettleDelayMS) * time.Millisecond
}

// BootstrapTimeout bounds a whole initialize call made from the CLI.
func (c *Config) BootstrapTimeout() time.Duration {
	return time.Duration(c.Bootstrap.TimeoutSeconds) * time.Second
}

// EngineTimeout bounds a single engine command invocation.
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
