package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"ignite/internal/faults"
	"ignite/internal/fileutil"
	"ignite/internal/logging"
	"ignite/internal/stage"
)

// Entry describes one file inside an archive.
type Entry struct {
	Name string
	Size int64
}

// Base returns the entry's file name without its directory.
func (e Entry) Base() string {
	return path.Base(e.Name)
}

// Predicate selects archive entries for extraction.
type Predicate func(Entry) bool

// All matches every entry.
func All(Entry) bool { return true }

// Extractor copies entries out of the bundle archive. It holds no state
// besides the bundle location and is safe for concurrent use.
type Extractor struct {
	bundlePath string
	logger     *slog.Logger
}

// New returns an Extractor reading from bundlePath.
func New(bundlePath string, logger *slog.Logger) *Extractor {
	return &Extractor{bundlePath: bundlePath, logger: logging.NewComponentLogger(logger, "archive")}
}

// BundlePath returns the archive this extractor reads.
func (x *Extractor) BundlePath() string {
	return x.bundlePath
}

// ExtractFromArchive copies every bundle entry whose name starts with prefix
// and satisfies match to targetDir/basename(entry).
func (x *Extractor) ExtractFromArchive(ctx context.Context, prefix, targetDir string, match Predicate) stage.ExtractionResult {
	return x.extract(ctx, x.bundlePath, prefix, targetDir, match)
}

// ExtractNestedArchive opens an already extracted file as an archive and
// copies all of its file entries to targetDir.
func (x *Extractor) ExtractNestedArchive(ctx context.Context, archiveFile, targetDir string) stage.ExtractionResult {
	return x.extract(ctx, archiveFile, "", targetDir, All)
}

// List returns the file entries of the bundle whose names start with prefix.
func (x *Extractor) List(prefix string) ([]Entry, error) {
	reader, err := zip.OpenReader(x.bundlePath)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer reader.Close()

	var entries []Entry
	for _, file := range reader.File {
		if file.FileInfo().IsDir() || !strings.HasPrefix(file.Name, prefix) {
			continue
		}
		entries = append(entries, Entry{Name: file.Name, Size: int64(file.UncompressedSize64)})
	}
	return entries, nil
}

func (x *Extractor) extract(ctx context.Context, archivePath, prefix, targetDir string, match Predicate) stage.ExtractionResult {
	if match == nil {
		match = All
	}
	logger := logging.WithContext(ctx, x.logger)

	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		ferr := faults.FileExtractionError(fmt.Sprintf("cannot open archive %s", filepath.Base(archivePath)), err)
		logging.WarnWithContext(logger, "archive open failed", "archive_open_failed",
			logging.String("archive", archivePath),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the bundle exists and is a valid zip"),
			logging.String(logging.FieldImpact, "no files extracted"),
		)
		return stage.FailedExtraction(targetDir, ferr)
	}
	defer reader.Close()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return stage.FailedExtraction(targetDir, faults.FileExtractionError("cannot create extraction target", err))
	}

	var (
		extracted []string
		failed    []string
		lastErr   error
	)
	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return stage.FailedExtraction(targetDir, faults.FileExtractionError("extraction cancelled", err))
		}
		if file.FileInfo().IsDir() || !strings.HasPrefix(file.Name, prefix) {
			continue
		}
		entry := Entry{Name: file.Name, Size: int64(file.UncompressedSize64)}
		if !match(entry) {
			continue
		}
		base := entry.Base()
		if base == "." || base == "/" || base == ".." {
			continue
		}
		target := filepath.Join(targetDir, base)
		if err := copyEntry(file, target); err != nil {
			failed = append(failed, entry.Name)
			lastErr = err
			logger.Debug("entry copy failed",
				logging.String("entry", entry.Name),
				logging.Error(err),
			)
			continue
		}
		extracted = append(extracted, target)
	}

	var ferr *faults.Error
	if len(failed) > 0 {
		ferr = faults.FileExtractionError(fmt.Sprintf("failed to extract %d of %d entries", len(failed), len(failed)+len(extracted)), lastErr)
	}
	result := stage.NewExtractionResult(targetDir, extracted, failed, ferr)
	logger.Debug("archive extraction finished",
		logging.String(logging.FieldEventType, "archive_extracted"),
		logging.String("archive", archivePath),
		logging.String("prefix", prefix),
		logging.String("outcome", string(result.Outcome)),
		logging.Int("extracted", len(extracted)),
		logging.Int("failed", len(failed)),
	)
	return result
}

func copyEntry(file *zip.File, target string) error {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	mode := file.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	return fileutil.WriteStream(target, rc, mode, int64(file.UncompressedSize64))
}
