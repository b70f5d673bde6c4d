package runtimeenv_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ignite/internal/archive"
	"ignite/internal/config"
	"ignite/internal/faults"
	"ignite/internal/runtimeenv"
	"ignite/internal/testsupport"
)

func newManager(cfg *config.Config) (*runtimeenv.Manager, *faults.Classifier) {
	classifier := faults.NewClassifier(faults.Names{NativeDir: cfg.Native.DirName, RuntimeDir: cfg.Runtime.DirName}, nil)
	return runtimeenv.New(cfg, archive.New(cfg.Paths.Bundle, nil), classifier, nil), classifier
}

func runtimeBundle() map[string][]byte {
	return map[string][]byte{
		"assets/python/libpython3.11.so":    []byte("lib"),
		"assets/python/python3.11.zip":      []byte("stdlib"),
		"assets/python/site/python_boot.py": []byte("print()"),
		"assets/python/README.md":           []byte("docs"),
		"assets/other/helper.zip":           []byte("nope"),
	}
}

func TestShouldExtract(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m, _ := newManager(cfg)

	if !m.ShouldExtract() {
		t.Fatal("expected extraction for missing directory")
	}
	if !m.EnsureDirectoryExists() || !m.EnsureDirectoryExists() {
		t.Fatal("EnsureDirectoryExists should be idempotent")
	}
	if !m.ShouldExtract() {
		t.Fatal("expected extraction for empty directory")
	}
	testsupport.WriteFile(t, filepath.Join(m.Dir(), "notes.txt"), 4)
	if !m.ShouldExtract() {
		t.Fatal("expected extraction without runtime-named files")
	}
	testsupport.WriteFile(t, filepath.Join(m.Dir(), "python3.11.zip"), 4)
	if m.ShouldExtract() {
		t.Fatal("expected no extraction once runtime files exist")
	}
}

func TestExtractFilesRequiresNameAndAllowedFragment(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBundle(runtimeBundle()))
	m, _ := newManager(cfg)

	res := m.ExtractFiles(context.Background())
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	entries, err := os.ReadDir(m.Dir())
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if got := strings.Join(names, ","); got != "libpython3.11.so,python3.11.zip,python_boot.py" {
		t.Fatalf("unexpected runtime files: %s", got)
	}
}

func TestExtractFilesWithoutMatchesFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBundle(map[string][]byte{"assets/other.txt": []byte("x")}))
	m, classifier := newManager(cfg)

	res := m.ExtractFiles(context.Background())
	if res.Success {
		t.Fatal("expected failure when the bundle has no runtime files")
	}
	action, ok := classifier.SuggestRecoveryAction(res.Err)
	if !ok || action.Kind != faults.ActionReExtractFiles || action.TargetPattern != "python" {
		t.Fatalf("expected re-extract of runtime files, got %v", action)
	}
}

func TestVerifyPatterns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m, _ := newManager(cfg)
	m.EnsureDirectoryExists()
	testsupport.WriteFile(t, filepath.Join(m.Dir(), "libpython3.11.so"), 4)

	res := m.Verify(context.Background())
	if res.Success {
		t.Fatal("expected failure with the stdlib archive missing")
	}
	if len(res.FailedItems) != 1 || res.FailedItems[0] != "*python*.zip*" {
		t.Fatalf("unexpected failed items: %v", res.FailedItems)
	}

	testsupport.WriteFile(t, filepath.Join(m.Dir(), "python3.11.zip"), 4)
	res = m.Verify(context.Background())
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Details["libpython*"] != "libpython3.11.so" {
		t.Fatalf("expected match detail, got %v", res.Details)
	}
}

func TestVerifyLibraryArchiveSatisfiesPatterns(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m, _ := newManager(cfg)
	testsupport.WriteFile(t, filepath.Join(m.Dir(), cfg.Runtime.LibraryArchive), 16)

	res := m.Verify(context.Background())
	if !res.Success {
		t.Fatalf("expected bundled runtime archive to satisfy verification, got %+v", res)
	}
}

func TestSetupSteps(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBundle(runtimeBundle()))
	m, _ := newManager(cfg)

	res := m.Setup(context.Background())
	if !res.Success {
		t.Fatalf("expected setup success, got %+v", res)
	}
	if got := strings.Join(res.SetupSteps, ","); got != "ensure_directory,extract_files,verify" {
		t.Fatalf("unexpected steps: %s", got)
	}

	again := m.Setup(context.Background())
	if got := strings.Join(again.SetupSteps, ","); got != "ensure_directory,verify" {
		t.Fatalf("extraction should be skipped on second setup, got %s", got)
	}
	if len(again.FailedSteps) != 0 || !again.Success {
		t.Fatalf("unexpected second setup result: %+v", again)
	}
}

func TestSetupDirectoryFailureSuggestsRecreate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m, classifier := newManager(cfg)
	testsupport.WriteFile(t, cfg.RuntimeDir(), 4)

	res := m.Setup(context.Background())
	if res.Success {
		t.Fatal("expected setup failure when the runtime path is a file")
	}
	if len(res.FailedSteps) != 1 || res.FailedSteps[0] != runtimeenv.StepEnsureDirectory {
		t.Fatalf("unexpected failed steps: %v", res.FailedSteps)
	}
	if res.Err == nil || res.Err.Kind != faults.RuntimeEnvironment || !strings.Contains(res.Err.Message, "directory") {
		t.Fatalf("expected runtime directory error, got %v", res.Err)
	}
	action, ok := classifier.SuggestRecoveryAction(res.Err)
	if !ok || action.Kind != faults.ActionRecreateDirectories {
		t.Fatalf("expected recreate directories, got %v", action)
	}
	if len(action.Directories) != 1 || action.Directories[0] != cfg.Runtime.DirName {
		t.Fatalf("expected runtime dir name, got %v", action.Directories)
	}
}

func TestConfirmAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBundle(runtimeBundle()))
	m, _ := newManager(cfg)
	ctx := context.Background()

	if h := m.HealthCheck(ctx); h.Ready {
		t.Fatalf("expected unhealthy before setup, got %+v", h)
	}
	if err := m.Confirm(ctx); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if h := m.HealthCheck(ctx); !h.Ready {
		t.Fatalf("expected healthy runtime, got %+v", h)
	}
}
