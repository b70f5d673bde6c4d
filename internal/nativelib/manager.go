package nativelib

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"

	"ignite/internal/archive"
	"ignite/internal/config"
	"ignite/internal/faults"
	"ignite/internal/fileutil"
	"ignite/internal/logging"
	"ignite/internal/stage"
)

const componentName = "native_libraries"

// Manager extracts, loads and verifies the platform shared libraries. It
// reports every failure through its result values and never retries.
type Manager struct {
	dir                string
	abi                ABI
	fragments          []string
	dependencies       []string
	compressedSuffixes []string
	minBytes           int64

	extractor  *archive.Extractor
	loader     Loader
	classifier *faults.Classifier
	logger     *slog.Logger

	mu     sync.Mutex
	loaded map[string]uintptr
}

// Option customizes a Manager.
type Option func(*Manager)

// WithLoader replaces the dlopen loader.
func WithLoader(loader Loader) Option {
	return func(m *Manager) {
		if loader != nil {
			m.loader = loader
		}
	}
}

// WithABI pins the ABI instead of detecting it.
func WithABI(abi ABI) Option {
	return func(m *Manager) {
		m.abi = abi
	}
}

// New builds a Manager from the native section of cfg.
func New(cfg *config.Config, extractor *archive.Extractor, classifier *faults.Classifier, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		dir:                cfg.NativeDir(),
		fragments:          slices.Clone(cfg.Native.RequiredFragments),
		dependencies:       slices.Clone(cfg.Native.DependencyLibraries),
		compressedSuffixes: slices.Clone(cfg.Native.CompressedSuffixes),
		minBytes:           cfg.Native.MinLibraryBytes,
		extractor:          extractor,
		loader:             DlopenLoader{},
		classifier:         classifier,
		logger:             logging.ForComponent(logger, cfg, "nativelib"),
		loaded:             make(map[string]uintptr),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.abi == "" {
		m.abi = ResolveABI(cfg.Native.ABI)
	}
	if m.minBytes <= 0 {
		m.minBytes = m.abi.MinLibraryBytes()
	}
	return m
}

// Name identifies the component in health reports.
func (m *Manager) Name() string { return componentName }

// Dir returns the extraction directory.
func (m *Manager) Dir() string { return m.dir }

// ABI returns the resolved ABI.
func (m *Manager) ABI() ABI { return m.abi }

// ShouldExtract reports whether the extraction directory is missing, holds
// compressed libraries that were never expanded, lacks every required
// library, or lacks any file of plausible size.
func (m *Manager) ShouldExtract() bool {
	files, err := m.rootFiles()
	if err != nil {
		return true
	}
	hasRequired := false
	hasPlausible := false
	for _, file := range files {
		name := file.Name()
		if stem, ok := m.compressedStem(name); ok && !m.expanded(stem) {
			return true
		}
		if containsFragment(name, m.fragments) {
			hasRequired = true
		}
		if file.Size() >= m.minBytes {
			hasPlausible = true
		}
	}
	return !hasRequired || !hasPlausible
}

// Extract copies the libraries for the resolved ABI out of the bundle,
// expands nested compressed libraries under usr/lib and promotes the shared
// objects found there to the top of the extraction directory.
func (m *Manager) Extract(ctx context.Context) stage.ExtractionResult {
	logger := logging.WithContext(ctx, m.logger)
	prefix := "lib/" + string(m.abi) + "/"
	match := func(e archive.Entry) bool {
		base := e.Base()
		return containsFragment(base, m.fragments) || slices.Contains(m.dependencies, base)
	}

	outer := m.extractor.ExtractFromArchive(ctx, prefix, m.dir, match)
	var lastErr error
	if outer.Err != nil {
		lastErr = outer.Err
	}
	if !outer.Success {
		return m.failExtraction(ctx, "failed to extract native libraries", lastErr)
	}

	extracted := slices.Clone(outer.ExtractedFiles)
	failed := slices.Clone(outer.FailedFiles)

	for _, file := range outer.ExtractedFiles {
		stem, ok := m.compressedStem(filepath.Base(file))
		if !ok {
			continue
		}
		nested := m.extractor.ExtractNestedArchive(ctx, file, m.expandedDir(stem))
		failed = append(failed, nested.FailedFiles...)
		if nested.Err != nil {
			lastErr = nested.Err
		}
		if nested.Outcome == stage.OutcomeFailure && len(nested.FailedFiles) == 0 {
			failed = append(failed, file)
		}
	}

	promoted, promoteFailed, err := m.promoteDependencies()
	extracted = append(extracted, promoted...)
	failed = append(failed, promoteFailed...)
	if err != nil {
		lastErr = err
	}

	if len(extracted) == 0 {
		return m.failExtraction(ctx, fmt.Sprintf("native libraries for %s missing from bundle; nothing to extract", m.abi), lastErr)
	}

	var ferr *faults.Error
	if len(failed) > 0 {
		ferr = faults.NativeLibraryError(fmt.Sprintf("extracted %d native files with %d failures", len(extracted), len(failed)), lastErr)
	}
	result := stage.NewExtractionResult(m.dir, extracted, failed, ferr)
	if ferr != nil {
		m.classifier.LogError(ctx, ferr)
	}
	logger.Info("native libraries extracted",
		logging.String(logging.FieldEventType, "native_extracted"),
		logging.String("abi", string(m.abi)),
		logging.String("outcome", string(result.Outcome)),
		logging.Int("extracted", len(extracted)),
		logging.Int("failed", len(failed)),
	)
	return result
}

// Load maps every extracted shared library into the process, dependency
// libraries first. Compressed files are skipped. Libraries loaded by an
// earlier call are reused.
func (m *Manager) Load(ctx context.Context) stage.LoadResult {
	logger := logging.WithContext(ctx, m.logger)
	result := stage.LoadResult{LibraryPath: m.dir}

	files, err := m.rootFiles()
	if err != nil {
		result.Err = faults.NativeLibraryError("native library directory missing", err)
		m.classifier.LogError(ctx, result.Err)
		return result
	}

	var deps, mains []string
	for _, file := range files {
		name := file.Name()
		if _, ok := m.compressedStem(name); ok {
			logger.Debug("skipping compressed library",
				logging.String("library", name),
				logging.String("reason", "expanded under usr/lib"),
			)
			continue
		}
		if !isSharedObject(name) {
			continue
		}
		if slices.Contains(m.dependencies, name) {
			deps = append(deps, name)
		} else {
			mains = append(mains, name)
		}
	}
	// dependency order follows configuration order
	sort.SliceStable(deps, func(i, j int) bool {
		return slices.Index(m.dependencies, deps[i]) < slices.Index(m.dependencies, deps[j])
	})
	sort.Strings(mains)

	m.mu.Lock()
	defer m.mu.Unlock()
	var lastErr error
	for _, name := range append(deps, mains...) {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}
		path := filepath.Join(m.dir, name)
		if _, ok := m.loaded[path]; ok {
			result.LoadedLibraries = append(result.LoadedLibraries, name)
			continue
		}
		handle, err := m.loader.Open(path)
		if err != nil {
			result.FailedLibraries = append(result.FailedLibraries, name)
			lastErr = err
			logger.Debug("library load failed",
				logging.String("library", name),
				logging.Error(err),
			)
			continue
		}
		m.loaded[path] = handle
		result.LoadedLibraries = append(result.LoadedLibraries, name)
	}

	result.Success = len(result.LoadedLibraries) > 0
	switch {
	case !result.Success:
		result.Err = faults.NativeLibraryError("no native libraries could be loaded", lastErr)
	case len(result.FailedLibraries) > 0:
		result.Err = faults.NativeLibraryError(fmt.Sprintf("failed to load %d native libraries", len(result.FailedLibraries)), lastErr)
	}
	if result.Err != nil {
		m.classifier.LogError(ctx, result.Err)
	}
	logger.Info("native libraries loaded",
		logging.String(logging.FieldEventType, "native_loaded"),
		logging.Int("loaded", len(result.LoadedLibraries)),
		logging.Int("failed", len(result.FailedLibraries)),
	)
	return result
}

// Verify checks the extraction directory holds readable, non-empty files
// including at least one required library.
func (m *Manager) Verify(ctx context.Context) stage.VerificationResult {
	result := stage.VerificationResult{Details: map[string]string{
		"abi":       string(m.abi),
		"directory": m.dir,
	}}

	files, err := m.rootFiles()
	if err != nil {
		result.Err = faults.NativeLibraryError("native library directory missing", err)
		m.classifier.LogError(ctx, result.Err)
		return result
	}

	matched := false
	for _, file := range files {
		name := file.Name()
		if file.Size() == 0 {
			result.FailedItems = append(result.FailedItems, name)
			result.Details[name] = "empty file"
			continue
		}
		if err := readable(filepath.Join(m.dir, name)); err != nil {
			result.FailedItems = append(result.FailedItems, name)
			result.Details[name] = "unreadable: " + err.Error()
			continue
		}
		result.VerifiedItems = append(result.VerifiedItems, name)
		if containsFragment(name, m.fragments) {
			matched = true
		}
	}

	result.Success = len(result.VerifiedItems) > 0 && matched
	if !result.Success {
		result.Err = faults.NativeLibraryError("required native libraries missing after extraction", nil)
		m.classifier.LogError(ctx, result.Err)
	}
	return result
}

// Confirm extracts when needed and loads when nothing is loaded yet.
func (m *Manager) Confirm(ctx context.Context) error {
	if m.ShouldExtract() {
		if res := m.Extract(ctx); !res.Success {
			return res.Err
		}
	}
	if len(m.Loaded()) > 0 {
		return nil
	}
	if res := m.Load(ctx); !res.Success {
		return res.Err
	}
	return nil
}

// Loaded returns the paths of libraries mapped into the process.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	paths := make([]string, 0, len(m.loaded))
	for path := range m.loaded {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// HealthCheck summarizes extraction and load state.
func (m *Manager) HealthCheck(context.Context) stage.Health {
	if _, err := os.Stat(m.dir); err != nil {
		return stage.Unhealthy(componentName, "not extracted")
	}
	if m.ShouldExtract() {
		return stage.Unhealthy(componentName, "extraction incomplete")
	}
	loaded := len(m.Loaded())
	if loaded == 0 {
		return stage.Unhealthy(componentName, fmt.Sprintf("extracted for %s, not loaded", m.abi))
	}
	health := stage.Healthy(componentName)
	health.Detail = fmt.Sprintf("%d libraries loaded (%s)", loaded, m.abi)
	return health
}

func (m *Manager) failExtraction(ctx context.Context, message string, cause error) stage.ExtractionResult {
	if cause == nil {
		cause = errNoLibraries
	}
	ferr := faults.NativeLibraryError(message, cause)
	m.classifier.LogError(ctx, ferr)
	return stage.FailedExtraction(m.dir, ferr)
}

var errNoLibraries = errors.New("no matching entries")

// promoteDependencies copies shared objects found under usr/lib to the
// extraction root. Existing root files are never replaced.
func (m *Manager) promoteDependencies() (promoted, failed []string, lastErr error) {
	root := filepath.Join(m.dir, "usr", "lib")
	if _, err := os.Stat(root); err != nil {
		return nil, nil, nil
	}
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			lastErr = err
			return nil
		}
		if d.IsDir() || !isSharedObject(d.Name()) {
			return nil
		}
		dst := filepath.Join(m.dir, d.Name())
		copied, err := fileutil.CopyNoClobber(path, dst, 0o755)
		if err != nil {
			failed = append(failed, path)
			lastErr = err
			return nil
		}
		if copied {
			promoted = append(promoted, dst)
		}
		return nil
	})
	if walkErr != nil {
		lastErr = walkErr
	}
	return promoted, failed, lastErr
}

func (m *Manager) rootFiles() ([]fs.FileInfo, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, err
	}
	files := make([]fs.FileInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, info)
	}
	return files, nil
}

// compressedStem maps libfoo.zip.so to foo.
func (m *Manager) compressedStem(name string) (string, bool) {
	for _, suffix := range m.compressedSuffixes {
		if strings.HasSuffix(name, suffix) && len(name) > len(suffix) {
			return strings.TrimPrefix(strings.TrimSuffix(name, suffix), "lib"), true
		}
	}
	return "", false
}

func (m *Manager) expandedDir(stem string) string {
	return filepath.Join(m.dir, "usr", "lib", stem)
}

func (m *Manager) expanded(stem string) bool {
	entries, err := os.ReadDir(m.expandedDir(stem))
	return err == nil && len(entries) > 0
}

func containsFragment(name string, fragments []string) bool {
	for _, fragment := range fragments {
		if fragment != "" && strings.Contains(name, fragment) {
			return true
		}
	}
	return false
}

// isSharedObject matches libfoo.so and versioned names like libfoo.so.3.
func isSharedObject(name string) bool {
	if strings.HasSuffix(name, ".so") {
		return true
	}
	idx := strings.LastIndex(name, ".so.")
	if idx < 0 {
		return false
	}
	for _, part := range strings.Split(name[idx+len(".so."):], ".") {
		if part == "" || strings.Trim(part, "0123456789") != "" {
			return false
		}
	}
	return true
}

func readable(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var buf [1]byte
	_, err = f.Read(buf[:])
	return err
}
