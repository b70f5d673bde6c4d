package engine_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ignite/internal/engine"
	"ignite/internal/faults"
	"ignite/internal/testsupport"
)

func writeScript(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
}

func TestCommandEngineFromPath(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(map[string]string{"yt-dlp": "2024.08.06"}))
	eng, err := engine.CommandFactory(cfg)()
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	ctx := context.Background()
	if err := eng.Initialize(ctx, engine.Environment{RuntimeDir: cfg.RuntimeDir(), NativeDir: cfg.NativeDir()}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	version, err := eng.Version(ctx)
	if err != nil || version != "2024.08.06" {
		t.Fatalf("unexpected version %q err=%v", version, err)
	}
}

func TestCommandEnginePrefersRuntimeCopy(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(map[string]string{"yt-dlp": "2024.08.06"}))
	writeScript(t, filepath.Join(cfg.RuntimeDir(), "bin", "yt-dlp"), `echo "2025.01.01 $PYTHONHOME"`)

	eng := engine.NewCommand("yt-dlp", cfg.EngineTimeout())
	ctx := context.Background()
	if err := eng.Initialize(ctx, engine.Environment{RuntimeDir: cfg.RuntimeDir()}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	version, _ := eng.Version(ctx)
	if !strings.HasPrefix(version, "2025.01.01") || !strings.HasSuffix(version, cfg.RuntimeDir()) {
		t.Fatalf("expected runtime copy with PYTHONHOME exported, got %q", version)
	}
}

func TestCommandEngineIncompatibleOutput(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries(map[string]string{"yt-dlp": "usage: yt-dlp [OPTIONS]"}))
	eng := engine.NewCommand("yt-dlp", cfg.EngineTimeout())

	err := eng.Initialize(context.Background(), engine.Environment{})
	ferr := faults.As(err)
	if ferr == nil || ferr.Kind != faults.ExtractionEngine || ferr.Recoverable {
		t.Fatalf("expected non-recoverable engine error, got %v", err)
	}
}

func TestCommandEngineMissingBinary(t *testing.T) {
	eng := engine.NewCommand("ignite-engine-that-does-not-exist", 0)
	err := eng.Initialize(context.Background(), engine.Environment{RuntimeDir: t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error, got %v", err)
	}
	if _, err := eng.Version(context.Background()); err == nil {
		t.Fatal("expected Version to fail before start")
	}
}

func TestEnvironmentVars(t *testing.T) {
	t.Setenv("LD_LIBRARY_PATH", "/opt/lib")
	vars := engine.Environment{NativeDir: "/data/native_libs", RuntimeDir: "/data/python"}.Vars()
	joined := strings.Join(vars, "\n")
	if !strings.Contains(joined, "LD_LIBRARY_PATH=/data/native_libs"+string(os.PathListSeparator)+"/opt/lib") {
		t.Fatalf("expected native dir prepended to library path:\n%s", joined)
	}
	if !strings.Contains(joined, "PYTHONHOME=/data/python") {
		t.Fatalf("expected PYTHONHOME export:\n%s", joined)
	}
	if strings.Count(joined, "LD_LIBRARY_PATH=") != 1 {
		t.Fatalf("library path should appear once:\n%s", joined)
	}
}
