package runtimeenv

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"ignite/internal/archive"
	"ignite/internal/config"
	"ignite/internal/faults"
	"ignite/internal/logging"
	"ignite/internal/preflight"
	"ignite/internal/stage"
)

const componentName = "runtime_environment"

// Setup step names reported in stage.SetupResult.
const (
	StepEnsureDirectory = "ensure_directory"
	StepExtractFiles    = "extract_files"
	StepVerify          = "verify"
)

// Manager owns the runtime directory. It has no retry logic of its own.
type Manager struct {
	dir              string
	nameFragments    []string
	allowedFragments []string
	requiredPatterns []string
	libraryArchive   string

	extractor  *archive.Extractor
	classifier *faults.Classifier
	logger     *slog.Logger
}

// New builds a Manager from the runtime section of cfg.
func New(cfg *config.Config, extractor *archive.Extractor, classifier *faults.Classifier, logger *slog.Logger) *Manager {
	return &Manager{
		dir:              cfg.RuntimeDir(),
		nameFragments:    slices.Clone(cfg.Runtime.NameFragments),
		allowedFragments: slices.Clone(cfg.Runtime.AllowedFragments),
		requiredPatterns: slices.Clone(cfg.Runtime.RequiredPatterns),
		libraryArchive:   cfg.Runtime.LibraryArchive,
		extractor:        extractor,
		classifier:       classifier,
		logger:           logging.ForComponent(logger, cfg, "runtimeenv"),
	}
}

// Name identifies the component in health reports.
func (m *Manager) Name() string { return componentName }

// Dir returns the runtime directory.
func (m *Manager) Dir() string { return m.dir }

// EnsureDirectoryExists creates the runtime directory if needed.
func (m *Manager) EnsureDirectoryExists() bool {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		m.logger.Debug("runtime directory create failed", logging.Error(err))
		return false
	}
	return true
}

// ShouldExtract reports whether the directory is missing, empty or holds no
// file named after the runtime.
func (m *Manager) ShouldExtract() bool {
	entries, err := os.ReadDir(m.dir)
	if err != nil || len(entries) == 0 {
		return true
	}
	for _, entry := range entries {
		if !entry.IsDir() && containsAny(entry.Name(), m.nameFragments) {
			return false
		}
	}
	return true
}

// ExtractFiles copies runtime support files from anywhere in the bundle.
// An entry qualifies when its name contains a runtime name fragment and one
// of the allowed fragments.
func (m *Manager) ExtractFiles(ctx context.Context) stage.ExtractionResult {
	match := func(e archive.Entry) bool {
		return containsAny(e.Name, m.nameFragments) && containsAny(e.Base(), m.allowedFragments)
	}
	res := m.extractor.ExtractFromArchive(ctx, "", m.dir, match)
	switch {
	case !res.Success:
		var cause error
		if res.Err != nil {
			cause = res.Err
		}
		res.Err = faults.RuntimeEnvironmentError("failed to extract runtime files", cause)
		m.classifier.LogError(ctx, res.Err)
	case len(res.ExtractedFiles) == 0:
		res.Outcome = stage.OutcomeFailure
		res.Success = false
		res.Err = faults.RuntimeEnvironmentError("runtime files missing from bundle", nil)
		m.classifier.LogError(ctx, res.Err)
	}
	logging.WithContext(ctx, m.logger).Info("runtime files extracted",
		logging.String(logging.FieldEventType, "runtime_extracted"),
		logging.String("outcome", string(res.Outcome)),
		logging.Int("extracted", len(res.ExtractedFiles)),
		logging.Int("failed", len(res.FailedFiles)),
	)
	return res
}

// Verify checks the directory is present and readable and that every
// required pattern matches at least one file. The bundled runtime library
// archive satisfies all patterns on its own.
func (m *Manager) Verify(ctx context.Context) stage.VerificationResult {
	result := stage.VerificationResult{Details: map[string]string{"directory": m.dir}}

	access := preflight.CheckDirectoryReadable("runtime directory", m.dir)
	if !access.Passed {
		result.FailedItems = append(result.FailedItems, "directory")
		result.Details["directory"] = access.Detail
		result.Err = faults.RuntimeEnvironmentError("runtime directory not readable", nil)
		m.classifier.LogError(ctx, result.Err)
		return result
	}
	result.VerifiedItems = append(result.VerifiedItems, "directory")

	if m.libraryArchive != "" {
		if info, err := os.Stat(filepath.Join(m.dir, m.libraryArchive)); err == nil && info.Size() > 0 {
			result.VerifiedItems = append(result.VerifiedItems, m.libraryArchive)
			result.Details["library_archive"] = "present"
			result.Success = true
			return result
		}
	}

	for _, pattern := range m.requiredPatterns {
		matches, err := filepath.Glob(filepath.Join(m.dir, pattern))
		if err != nil || len(matches) == 0 {
			result.FailedItems = append(result.FailedItems, pattern)
			result.Details[pattern] = "no match"
			continue
		}
		result.VerifiedItems = append(result.VerifiedItems, pattern)
		result.Details[pattern] = filepath.Base(matches[0])
	}

	result.Success = len(result.FailedItems) == 0
	if !result.Success {
		result.Err = faults.RuntimeEnvironmentError(
			fmt.Sprintf("required runtime files missing: %s", strings.Join(result.FailedItems, ", ")), nil)
		m.classifier.LogError(ctx, result.Err)
	}
	return result
}

// Setup runs ensure directory, extract (only when needed) and verify.
func (m *Manager) Setup(ctx context.Context) stage.SetupResult {
	result := stage.SetupResult{SetupPath: m.dir}

	if !m.EnsureDirectoryExists() {
		result.FailedSteps = append(result.FailedSteps, StepEnsureDirectory)
		result.Err = faults.RuntimeEnvironmentError("cannot create runtime directory", nil)
		m.classifier.LogError(ctx, result.Err)
		return result
	}
	result.SetupSteps = append(result.SetupSteps, StepEnsureDirectory)

	if m.ShouldExtract() {
		res := m.ExtractFiles(ctx)
		if !res.Success {
			result.FailedSteps = append(result.FailedSteps, StepExtractFiles)
			result.Err = res.Err
			return result
		}
		result.SetupSteps = append(result.SetupSteps, StepExtractFiles)
	}

	verify := m.Verify(ctx)
	if !verify.Success {
		result.FailedSteps = append(result.FailedSteps, StepVerify)
		result.Err = verify.Err
		return result
	}
	result.SetupSteps = append(result.SetupSteps, StepVerify)
	result.Success = len(result.FailedSteps) == 0
	return result
}

// Confirm runs Setup when the runtime files are not in place yet.
func (m *Manager) Confirm(ctx context.Context) error {
	if !m.ShouldExtract() {
		if verify := m.Verify(ctx); verify.Success {
			return nil
		}
	}
	if res := m.Setup(ctx); !res.Success {
		return res.Err
	}
	return nil
}

// HealthCheck reports whether the runtime verifies.
func (m *Manager) HealthCheck(ctx context.Context) stage.Health {
	if m.ShouldExtract() {
		return stage.Unhealthy(componentName, "not extracted")
	}
	verify := m.Verify(ctx)
	if !verify.Success {
		return stage.Unhealthy(componentName, verify.Err.Message)
	}
	health := stage.Healthy(componentName)
	health.Detail = fmt.Sprintf("%d items verified", len(verify.VerifiedItems))
	return health
}

func containsAny(name string, fragments []string) bool {
	for _, fragment := range fragments {
		if fragment != "" && strings.Contains(name, fragment) {
			return true
		}
	}
	return false
}
