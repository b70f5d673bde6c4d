package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"ignite/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckDirectoryReadable(t *testing.T) {
	if result := CheckDirectoryReadable("runtime", t.TempDir()); !result.Passed {
		t.Fatalf("expected readable temp dir, got: %s", result.Detail)
	}
}

func TestCheckBundle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.apk")
	testsupport.WriteZip(t, path, map[string][]byte{
		"lib/arm64-v8a/libpython.so": []byte("x"),
		"classes.dex":                []byte("y"),
	})
	result := CheckBundle(path)
	if !result.Passed {
		t.Fatalf("expected bundle check to pass, got: %s", result.Detail)
	}

	notZip := filepath.Join(t.TempDir(), "broken.apk")
	if err := os.WriteFile(notZip, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckBundle(notZip); result.Passed {
		t.Fatal("expected failure for non-zip bundle")
	}
	if result := CheckBundle(filepath.Join(t.TempDir(), "missing.apk")); result.Passed {
		t.Fatal("expected failure for missing bundle")
	}
}

func TestCheckLockDetectsHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".bootstrap.lock")
	if result := CheckLock(path); !result.Passed {
		t.Fatalf("expected free lock, got: %s", result.Detail)
	}

	holder := flock.New(path)
	locked, err := holder.TryLock()
	if err != nil || !locked {
		t.Fatalf("take lock: locked=%v err=%v", locked, err)
	}
	defer holder.Unlock()

	if result := CheckLock(path); result.Passed {
		t.Fatal("expected held lock to fail the check")
	}
}

func TestRunAll(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithBundle(map[string][]byte{"lib/arm64-v8a/libpython.so": []byte("x")}),
		testsupport.WithStubbedBinaries(nil),
	)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(cfg)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, got %+v", failed)
	}
	if RunAll(nil) != nil {
		t.Fatal("expected nil results for nil config")
	}
}
