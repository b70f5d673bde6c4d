package bootstrap

import (
	"context"

	"ignite/internal/faults"
	"ignite/internal/journal"
	"ignite/internal/stage"
)

// NativeLibraries is the native library step.
type NativeLibraries interface {
	stage.Handler
	ShouldExtract() bool
	Extract(ctx context.Context) stage.ExtractionResult
	Load(ctx context.Context) stage.LoadResult
	Verify(ctx context.Context) stage.VerificationResult
}

// RuntimeEnvironment is the embedded runtime step.
type RuntimeEnvironment interface {
	stage.Handler
	Setup(ctx context.Context) stage.SetupResult
	ExtractFiles(ctx context.Context) stage.ExtractionResult
}

// ExtractionEngine is the engine step.
type ExtractionEngine interface {
	stage.Handler
	Initialize(ctx context.Context) *faults.Error
	Verify(ctx context.Context) bool
	Reset()
}

// Journal records attempts outside the process.
type Journal interface {
	Record(ctx context.Context, entry journal.Entry) (journal.Entry, error)
	Clear(ctx context.Context) (int64, error)
}

// Step names used for the step log field and error records.
const (
	StepNativeLibraries    = "native_libraries"
	StepRuntimeEnvironment = "runtime_environment"
	StepExtractionEngine   = "extraction_engine"
)
