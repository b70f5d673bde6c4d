// Package config loads, normalizes, and validates ignite configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the IGNITE_BUNDLE environment
// fallback for the bundle archive location. The Config type centralizes the
// directory layout (data root, native library and runtime subdirectories),
// the extraction filters, and the retry and recovery budgets the bootstrap
// orchestrator runs with.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
