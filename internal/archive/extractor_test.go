package archive_test

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"ignite/internal/archive"
	"ignite/internal/faults"
	"ignite/internal/stage"
	"ignite/internal/testsupport"
)

func newBundle(t *testing.T, entries map[string][]byte) *archive.Extractor {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bundle.apk")
	testsupport.WriteZip(t, path, entries)
	return archive.New(path, nil)
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestExtractFromArchiveHonoursPrefixAndPredicate(t *testing.T) {
	x := newBundle(t, map[string][]byte{
		"lib/arm64-v8a/libpython.so":  []byte("py"),
		"lib/arm64-v8a/libffmpeg.so":  []byte("ff"),
		"lib/arm64-v8a/libother.so":   []byte("xx"),
		"lib/x86_64/libpython.so":     []byte("wrong abi"),
		"assets/python/stdlib.zip":    []byte("zip"),
		"lib/arm64-v8a/":              nil,
		"lib/arm64-v8a/sub/libpy2.so": []byte("nested"),
	})
	target := filepath.Join(t.TempDir(), "native_libs")

	match := func(e archive.Entry) bool {
		return strings.Contains(e.Name, "python") || strings.Contains(e.Name, "ffmpeg")
	}
	res := x.ExtractFromArchive(context.Background(), "lib/arm64-v8a/", target, match)
	if res.Outcome != stage.OutcomeSuccess || !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.ExtractionPath != target {
		t.Fatalf("unexpected extraction path %q", res.ExtractionPath)
	}
	got := strings.Join(listNames(t, target), ",")
	if got != "libffmpeg.so,libpython.so" {
		t.Fatalf("unexpected extracted files: %s", got)
	}
	data, err := os.ReadFile(filepath.Join(target, "libpython.so"))
	if err != nil || string(data) != "py" {
		t.Fatalf("expected arm64 payload, got %q err=%v", data, err)
	}
}

func TestExtractFromArchiveLeavesNoTraceForRejectedEntries(t *testing.T) {
	entries := map[string][]byte{
		"a/keep-1.txt": []byte("1"),
		"a/drop-1.txt": []byte("2"),
		"b/keep-2.txt": []byte("3"),
		"drop-2.bin":   []byte("4"),
	}
	predicates := map[string]archive.Predicate{
		"none":      func(archive.Entry) bool { return false },
		"keep only": func(e archive.Entry) bool { return strings.Contains(e.Name, "keep") },
		"all":       archive.All,
		"small":     func(e archive.Entry) bool { return e.Size < 1 },
	}
	for name, pred := range predicates {
		t.Run(name, func(t *testing.T) {
			x := newBundle(t, entries)
			target := t.TempDir()
			res := x.ExtractFromArchive(context.Background(), "", target, pred)
			if !res.Success {
				t.Fatalf("expected success, got %+v", res)
			}
			allowed := map[string]bool{}
			for entryName, data := range entries {
				if pred(archive.Entry{Name: entryName, Size: int64(len(data))}) {
					allowed[filepath.Base(entryName)] = true
				}
			}
			for _, file := range listNames(t, target) {
				if !allowed[file] {
					t.Fatalf("file %s does not derive from an accepted entry", file)
				}
			}
		})
	}
}

func TestExtractFromArchivePartialSuccess(t *testing.T) {
	x := newBundle(t, map[string][]byte{
		"lib/arm64-v8a/liba.so":   []byte("a"),
		"lib/arm64-v8a/libb.so":   []byte("b"),
		"lib/arm64-v8a/libbad.so": []byte("c"),
	})
	target := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(target, "libbad.so", "occupied"), 1)

	res := x.ExtractFromArchive(context.Background(), "lib/", target, archive.All)
	if res.Outcome != stage.OutcomePartialSuccess || !res.Success {
		t.Fatalf("expected partial success, got %+v", res)
	}
	if len(res.ExtractedFiles) != 2 || len(res.FailedFiles) != 1 {
		t.Fatalf("expected 2 extracted / 1 failed, got %v / %v", res.ExtractedFiles, res.FailedFiles)
	}
	if res.Err == nil || res.Err.Kind != faults.FileExtraction {
		t.Fatalf("expected file extraction error, got %v", res.Err)
	}
}

func TestExtractFromArchiveMissingBundle(t *testing.T) {
	x := archive.New(filepath.Join(t.TempDir(), "missing.apk"), nil)
	target := filepath.Join(t.TempDir(), "out")
	res := x.ExtractFromArchive(context.Background(), "", target, archive.All)
	if res.Outcome != stage.OutcomeFailure || res.Success {
		t.Fatalf("expected failure, got %+v", res)
	}
	if res.Err == nil || !strings.Contains(res.Err.Message, "archive") {
		t.Fatalf("expected archive error, got %v", res.Err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatalf("target should not be created when the archive cannot open: %v", err)
	}
}

func TestExtractFromArchiveCancelled(t *testing.T) {
	x := newBundle(t, map[string][]byte{"a.txt": []byte("a")})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := x.ExtractFromArchive(ctx, "", t.TempDir(), archive.All)
	if res.Success {
		t.Fatalf("expected cancelled extraction to fail, got %+v", res)
	}
}

func TestExtractNestedArchive(t *testing.T) {
	inner := testsupport.ZipBytes(t, map[string][]byte{
		"usr/lib/libz.so":       []byte("z"),
		"usr/lib/libssl.so.3":   []byte("ssl"),
		"usr/lib/":              nil,
		"usr/share/doc/LICENSE": []byte("text"),
	})
	dir := t.TempDir()
	nested := filepath.Join(dir, "libdeps.zip.so")
	if err := os.WriteFile(nested, inner, 0o644); err != nil {
		t.Fatal(err)
	}
	x := archive.New(filepath.Join(dir, "unused.apk"), nil)

	target := filepath.Join(dir, "usr", "lib", "deps")
	res := x.ExtractNestedArchive(context.Background(), nested, target)
	if !res.Success || len(res.ExtractedFiles) != 3 {
		t.Fatalf("expected 3 files from nested archive, got %+v", res)
	}
	if got := strings.Join(listNames(t, target), ","); got != "LICENSE,libssl.so.3,libz.so" {
		t.Fatalf("unexpected nested files: %s", got)
	}
}

func TestList(t *testing.T) {
	x := newBundle(t, map[string][]byte{
		"lib/arm64-v8a/liba.so": []byte("aaa"),
		"lib/x86/liba.so":       []byte("a"),
		"lib/arm64-v8a/":        nil,
	})
	entries, err := x.List("lib/arm64-v8a/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 || entries[0].Base() != "liba.so" || entries[0].Size != 3 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
