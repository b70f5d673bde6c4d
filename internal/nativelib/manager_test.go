package nativelib_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"ignite/internal/archive"
	"ignite/internal/config"
	"ignite/internal/faults"
	"ignite/internal/nativelib"
	"ignite/internal/stage"
	"ignite/internal/testsupport"
)

const libSize = 16 * 1024

type fakeLoader struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakeLoader) Open(path string) (uintptr, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := filepath.Base(path)
	f.calls = append(f.calls, name)
	if f.fail[name] {
		return 0, errors.New("dlopen failed: " + name)
	}
	return uintptr(len(f.calls)), nil
}

func newManager(t *testing.T, cfg *config.Config, loader nativelib.Loader) *nativelib.Manager {
	t.Helper()
	extractor := archive.New(cfg.Paths.Bundle, nil)
	classifier := faults.NewClassifier(faults.Names{NativeDir: cfg.Native.DirName, RuntimeDir: cfg.Runtime.DirName}, nil)
	return nativelib.New(cfg, extractor, classifier, nil, nativelib.WithLoader(loader))
}

func standardBundle() map[string][]byte {
	return map[string][]byte{
		"lib/arm64-v8a/libpython.so":      testsupport.Payload(libSize),
		"lib/arm64-v8a/libffmpeg.so":      testsupport.Payload(libSize),
		"lib/arm64-v8a/libc++_shared.so":  testsupport.Payload(4096),
		"lib/arm64-v8a/libunrelated.so":   testsupport.Payload(libSize),
		"lib/armeabi-v7a/libpython.so":    testsupport.Payload(8),
		"assets/python/lib/stdlib.zip":    []byte("zip"),
		"lib/arm64-v8a/libaria2c.so":      testsupport.Payload(libSize),
		"lib/arm64-v8a/README.txt":        []byte("docs"),
		"lib/arm64-v8a/libpython.so.sha1": []byte("sum"),
	}
}

func TestShouldExtractIdempotenceBoundary(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBundle(standardBundle()))
	m := newManager(t, cfg, &fakeLoader{})
	ctx := context.Background()

	if !m.ShouldExtract() {
		t.Fatal("expected extraction to be needed for a missing directory")
	}
	if err := os.MkdirAll(m.Dir(), 0o755); err != nil {
		t.Fatal(err)
	}
	if !m.ShouldExtract() {
		t.Fatal("expected extraction to be needed for an empty directory")
	}

	res := m.Extract(ctx)
	if res.Outcome != stage.OutcomeSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if load := m.Load(ctx); !load.Success {
		t.Fatalf("expected load success, got %+v", load)
	}
	if verify := m.Verify(ctx); !verify.Success {
		t.Fatalf("expected verify success, got %+v", verify)
	}
	if m.ShouldExtract() {
		t.Fatal("expected no extraction needed after extract, load and verify")
	}
}

func TestExtractFiltersByABIAndFragments(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBundle(standardBundle()))
	m := newManager(t, cfg, &fakeLoader{})

	res := m.Extract(context.Background())
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
	got := strings.Join(names, ",")
	want := "libaria2c.so,libc++_shared.so,libffmpeg.so,libpython.so,libpython.so.sha1"
	if got != want {
		t.Fatalf("unexpected files:\n got %s\nwant %s", got, want)
	}
	info, err := os.Stat(filepath.Join(m.Dir(), "libpython.so"))
	if err != nil || info.Size() != libSize {
		t.Fatalf("expected arm64 libpython, got %v err=%v", info, err)
	}
}

func TestExtractPartialSuccessStillSucceeds(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBundle(map[string][]byte{
		"lib/arm64-v8a/libpython.so": testsupport.Payload(libSize),
		"lib/arm64-v8a/libffmpeg.so": testsupport.Payload(libSize),
		"lib/arm64-v8a/libaria2c.so": testsupport.Payload(libSize),
	}))
	m := newManager(t, cfg, &fakeLoader{})
	testsupport.WriteFile(t, filepath.Join(m.Dir(), "libaria2c.so", "blocker"), 1)

	res := m.Extract(context.Background())
	if res.Outcome != stage.OutcomePartialSuccess {
		t.Fatalf("expected partial success, got %s", res.Outcome)
	}
	if !res.Success {
		t.Fatal("partial success must report success")
	}
	if len(res.ExtractedFiles) != 2 || len(res.FailedFiles) != 1 {
		t.Fatalf("expected 2 extracted / 1 failed, got %v / %v", res.ExtractedFiles, res.FailedFiles)
	}
	if res.Err == nil || res.Err.Kind != faults.NativeLibrary {
		t.Fatalf("expected native library error detail, got %v", res.Err)
	}
}

func TestExtractExpandsCompressedAndPromotesDependencies(t *testing.T) {
	nested := testsupport.ZipBytes(t, map[string][]byte{
		"usr/lib/libc++_shared.so":  testsupport.Payload(2048),
		"usr/lib/libssl.so.3":       testsupport.Payload(2048),
		"usr/lib/libpython.so":      []byte("nested copy must not win"),
		"usr/lib/python3.11/os.py":  []byte("import sys"),
		"usr/lib/python3.11/":       nil,
		"usr/share/terminfo/x/xter": []byte("t"),
	})
	cfg := testsupport.NewConfig(t, testsupport.WithBundle(map[string][]byte{
		"lib/arm64-v8a/libpython.so":     testsupport.Payload(libSize),
		"lib/arm64-v8a/libpython.zip.so": nested,
	}))
	m := newManager(t, cfg, &fakeLoader{})

	res := m.Extract(context.Background())
	if res.Outcome != stage.OutcomeSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	expanded := filepath.Join(m.Dir(), "usr", "lib", "python")
	for _, name := range []string{"libc++_shared.so", "libssl.so.3", "os.py", "xter"} {
		if _, err := os.Stat(filepath.Join(expanded, name)); err != nil {
			t.Fatalf("expected %s in expanded dir: %v", name, err)
		}
	}
	for _, name := range []string{"libc++_shared.so", "libssl.so.3"} {
		if _, err := os.Stat(filepath.Join(m.Dir(), name)); err != nil {
			t.Fatalf("expected %s promoted to root: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(m.Dir(), "os.py")); !os.IsNotExist(err) {
		t.Fatalf("non-library files must not be promoted: %v", err)
	}
	info, err := os.Stat(filepath.Join(m.Dir(), "libpython.so"))
	if err != nil || info.Size() != libSize {
		t.Fatalf("first extracted libpython must be kept, got %v err=%v", info, err)
	}
	if m.ShouldExtract() {
		t.Fatal("expanded compressed library should satisfy ShouldExtract")
	}

	if err := os.RemoveAll(expanded); err != nil {
		t.Fatal(err)
	}
	if !m.ShouldExtract() {
		t.Fatal("compressed library without expansion should require extraction")
	}
}

func TestExtractNothingMatchingFails(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBundle(map[string][]byte{
		"lib/x86/libpython.so": testsupport.Payload(libSize),
	}))
	m := newManager(t, cfg, &fakeLoader{})

	res := m.Extract(context.Background())
	if res.Success || res.Outcome != stage.OutcomeFailure {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Err == nil || res.Err.Kind != faults.NativeLibrary {
		t.Fatalf("expected native library error, got %v", res.Err)
	}
	action, ok := faults.NewClassifier(faults.Names{}, nil).SuggestRecoveryAction(res.Err)
	if !ok || action.Kind != faults.ActionReExtractFiles || action.TargetPattern != "lib/" {
		t.Fatalf("expected re-extract of lib/, got %v", action)
	}
}

func TestLoadOrdersDependenciesFirstAndSkipsCompressed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Native.DependencyLibraries = []string{"libz.so", "libc++_shared.so"}
	loader := &fakeLoader{fail: map[string]bool{"libbroken.so": true}}
	m := newManager(t, cfg, loader)

	for _, name := range []string{"libpython.so", "libbroken.so", "libc++_shared.so", "libz.so", "libpython.zip.so", "notes.txt"} {
		testsupport.WriteFile(t, filepath.Join(m.Dir(), name), 32)
	}

	res := m.Load(context.Background())
	if !res.Success {
		t.Fatalf("expected load success, got %+v", res)
	}
	if got := strings.Join(loader.calls, ","); got != "libz.so,libc++_shared.so,libbroken.so,libpython.so" {
		t.Fatalf("unexpected load order: %s", got)
	}
	if len(res.FailedLibraries) != 1 || res.FailedLibraries[0] != "libbroken.so" {
		t.Fatalf("expected libbroken.so failure, got %v", res.FailedLibraries)
	}
	if res.Err == nil {
		t.Fatal("expected batch error detail for failed library")
	}

	again := m.Load(context.Background())
	if !again.Success {
		t.Fatalf("expected repeated load to succeed, got %+v", again)
	}
	if got := strings.Join(loader.calls, ","); got != "libz.so,libc++_shared.so,libbroken.so,libpython.so,libbroken.so" {
		t.Fatalf("loaded libraries must not be reopened: %s", got)
	}
}

func TestLoadAllFailing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	loader := &fakeLoader{fail: map[string]bool{"libpython.so": true}}
	m := newManager(t, cfg, loader)
	testsupport.WriteFile(t, filepath.Join(m.Dir(), "libpython.so"), 32)

	res := m.Load(context.Background())
	if res.Success {
		t.Fatal("expected load failure")
	}
	if res.Err == nil || !strings.Contains(res.Err.Message, "load") {
		t.Fatalf("expected load error, got %v", res.Err)
	}
}

func TestVerifyFlagsEmptyFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := newManager(t, cfg, &fakeLoader{})
	testsupport.WriteFile(t, filepath.Join(m.Dir(), "libpython.so"), 64)
	if err := os.WriteFile(filepath.Join(m.Dir(), "libffmpeg.so"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	res := m.Verify(context.Background())
	if !res.Success {
		t.Fatalf("expected success with one good library, got %+v", res)
	}
	if len(res.FailedItems) != 1 || res.FailedItems[0] != "libffmpeg.so" {
		t.Fatalf("expected empty file flagged, got %v", res.FailedItems)
	}
	if res.Details["libffmpeg.so"] != "empty file" {
		t.Fatalf("expected detail for empty file, got %v", res.Details)
	}
}

func TestVerifyRequiresFragmentMatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := newManager(t, cfg, &fakeLoader{})
	testsupport.WriteFile(t, filepath.Join(m.Dir(), "libother.so"), 64)

	res := m.Verify(context.Background())
	if res.Success {
		t.Fatal("expected failure without a required library")
	}
	if res.Err == nil || res.Err.Kind != faults.NativeLibrary {
		t.Fatalf("expected native library error, got %v", res.Err)
	}
}

func TestVerifyMissingDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := newManager(t, cfg, &fakeLoader{})
	res := m.Verify(context.Background())
	if res.Success || res.Err == nil {
		t.Fatalf("expected failure for missing directory, got %+v", res)
	}
}

func TestConfirmAndHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBundle(standardBundle()))
	loader := &fakeLoader{}
	m := newManager(t, cfg, loader)
	ctx := context.Background()

	if h := m.HealthCheck(ctx); h.Ready {
		t.Fatalf("expected unhealthy before extraction, got %+v", h)
	}
	if err := m.Confirm(ctx); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	calls := len(loader.calls)
	if err := m.Confirm(ctx); err != nil {
		t.Fatalf("second Confirm: %v", err)
	}
	if len(loader.calls) != calls {
		t.Fatal("second Confirm must not reload libraries")
	}
	h := m.HealthCheck(ctx)
	if !h.Ready || !strings.Contains(h.Detail, "arm64-v8a") {
		t.Fatalf("expected healthy native libraries, got %+v", h)
	}
}

func TestResolveABI(t *testing.T) {
	tests := map[string]nativelib.ABI{
		"arm64-v8a":   nativelib.ABIArm64,
		" X86_64 ":    nativelib.ABIX86_64,
		"armeabi-v7a": nativelib.ABIArmV7,
		"x86":         nativelib.ABIX86,
	}
	for in, want := range tests {
		if got := nativelib.ResolveABI(in); got != want {
			t.Fatalf("ResolveABI(%q) = %s, want %s", in, got, want)
		}
	}
	detected := nativelib.ResolveABI("")
	switch detected {
	case nativelib.ABIArm64, nativelib.ABIArmV7, nativelib.ABIX86_64, nativelib.ABIX86:
	default:
		t.Fatalf("detected ABI outside the enumeration: %s", detected)
	}
	if nativelib.ABIX86.MinLibraryBytes() >= nativelib.ABIArm64.MinLibraryBytes() {
		t.Fatal("32-bit ABIs should accept smaller libraries")
	}
}
