package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNative(); err != nil {
		return err
	}
	if err := c.validateRuntime(); err != nil {
		return err
	}
	if err := c.validateBootstrap(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.Bundle) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("paths.bundle is required. Set IGNITE_BUNDLE env var or edit %s (create with 'ignite config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateNative() error {
	if err := validateDirName("native.dir_name", c.Native.DirName); err != nil {
		return err
	}
	switch c.Native.ABI {
	case "", "arm64-v8a", "armeabi-v7a", "x86_64", "x86":
	default:
		return fmt.Errorf("native.abi %q is not one of arm64-v8a, armeabi-v7a, x86_64, x86", c.Native.ABI)
	}
	if len(c.Native.RequiredFragments) == 0 {
		return errors.New("native.required_fragments must include at least one fragment")
	}
	return nil
}

func (c *Config) validateRuntime() error {
	if err := validateDirName("runtime.dir_name", c.Runtime.DirName); err != nil {
		return err
	}
	if c.Runtime.DirName == c.Native.DirName {
		return errors.New("runtime.dir_name must differ from native.dir_name")
	}
	if len(c.Runtime.NameFragments) == 0 {
		return errors.New("runtime.name_fragments must include at least one fragment")
	}
	if len(c.Runtime.AllowedFragments) == 0 {
		return errors.New("runtime.allowed_fragments must include at least one fragment")
	}
	for _, pattern := range c.Runtime.RequiredPatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return fmt.Errorf("runtime.required_patterns: invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func (c *Config) validateBootstrap() error {
	if err := ensurePositiveMap(map[string]int{
		"bootstrap.max_retries":     c.Bootstrap.MaxRetries,
		"bootstrap.action_budget":   c.Bootstrap.ActionBudget,
		"bootstrap.timeout_seconds": c.Bootstrap.TimeoutSeconds,
		"engine.timeout_seconds":    c.Engine.TimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Bootstrap.SettleDelayMS < 0 {
		return errors.New("bootstrap.settle_delay_ms must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	for component, level := range c.Logging.ComponentOverrides {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.component_overrides.%s: unsupported level %q", component, level)
		}
	}
	return nil
}

// validateDirName rejects names that would escape the data root.
func validateDirName(key, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s must be set", key)
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%s must be a single directory name, got %q", key, name)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
