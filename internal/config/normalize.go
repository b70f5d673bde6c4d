package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNative()
	c.normalizeRuntime()
	c.normalizeEngine()
	c.normalizeBootstrap()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if value, ok := os.LookupEnv("IGNITE_BUNDLE"); ok && strings.TrimSpace(value) != "" {
		c.Paths.Bundle = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.Bundle) == "" {
		c.Paths.Bundle = defaultBundlePath
	}
	if c.Paths.Bundle, err = expandPath(c.Paths.Bundle); err != nil {
		return fmt.Errorf("paths.bundle: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNative() {
	c.Native.DirName = strings.TrimSpace(c.Native.DirName)
	if c.Native.DirName == "" {
		c.Native.DirName = defaultNativeDirName
	}
	c.Native.ABI = strings.ToLower(strings.TrimSpace(c.Native.ABI))
	c.Native.RequiredFragments = cleanList(c.Native.RequiredFragments)
	c.Native.DependencyLibraries = cleanList(c.Native.DependencyLibraries)
	c.Native.CompressedSuffixes = cleanList(c.Native.CompressedSuffixes)
	if len(c.Native.CompressedSuffixes) == 0 {
		c.Native.CompressedSuffixes = []string{defaultCompressedSuffixSO, defaultCompressedSuffixZip}
	}
	if c.Native.MinLibraryBytes < 0 {
		c.Native.MinLibraryBytes = 0
	}
}

func (c *Config) normalizeRuntime() {
	c.Runtime.DirName = strings.TrimSpace(c.Runtime.DirName)
	if c.Runtime.DirName == "" {
		c.Runtime.DirName = defaultRuntimeDirName
	}
	c.Runtime.NameFragments = cleanList(c.Runtime.NameFragments)
	c.Runtime.AllowedFragments = cleanList(c.Runtime.AllowedFragments)
	c.Runtime.RequiredPatterns = cleanList(c.Runtime.RequiredPatterns)
	c.Runtime.LibraryArchive = strings.TrimSpace(c.Runtime.LibraryArchive)
}

func (c *Config) normalizeEngine() {
	c.Engine.Command = strings.TrimSpace(c.Engine.Command)
	if c.Engine.Command == "" {
		c.Engine.Command = defaultEngineCommand
	}
	if c.Engine.TimeoutSeconds <= 0 {
		c.Engine.TimeoutSeconds = defaultEngineTimeout
	}
}

func (c *Config) normalizeBootstrap() {
	if c.Bootstrap.SettleDelayMS < 0 {
		c.Bootstrap.SettleDelayMS = 0
	}
	if c.Bootstrap.TimeoutSeconds <= 0 {
		c.Bootstrap.TimeoutSeconds = defaultBootstrapTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if len(c.Logging.ComponentOverrides) > 0 {
		overrides := make(map[string]string, len(c.Logging.ComponentOverrides))
		for component, level := range c.Logging.ComponentOverrides {
			component = strings.ToLower(strings.TrimSpace(component))
			level = strings.ToLower(strings.TrimSpace(level))
			if component == "" || level == "" {
				continue
			}
			overrides[component] = level
		}
		c.Logging.ComponentOverrides = overrides
	}
}

// cleanList trims entries and drops blanks and duplicates while keeping order.
func cleanList(values []string) []string {
	if len(values) == 0 {
		return values
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
