package stage

import "ignite/internal/faults"

// Outcome classifies a multi-file extraction.
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomePartialSuccess Outcome = "partial_success"
	OutcomeFailure        Outcome = "failure"
)

// ExtractionResult reports files copied out of an archive. Success is true
// for both Success and PartialSuccess outcomes.
type ExtractionResult struct {
	Outcome        Outcome
	Success        bool
	ExtractedFiles []string
	FailedFiles    []string
	ExtractionPath string
	Err            *faults.Error
}

// NewExtractionResult derives the outcome from the extracted and failed sets.
// Zero extracted and zero failed counts as success: nothing needed copying.
func NewExtractionResult(path string, extracted, failed []string, err *faults.Error) ExtractionResult {
	res := ExtractionResult{
		ExtractedFiles: extracted,
		FailedFiles:    failed,
		ExtractionPath: path,
		Err:            err,
	}
	switch {
	case len(failed) == 0:
		res.Outcome = OutcomeSuccess
	case len(extracted) > 0:
		res.Outcome = OutcomePartialSuccess
	default:
		res.Outcome = OutcomeFailure
	}
	res.Success = res.Outcome != OutcomeFailure
	return res
}

// FailedExtraction reports an extraction that could not start at all.
func FailedExtraction(path string, err *faults.Error) ExtractionResult {
	return ExtractionResult{Outcome: OutcomeFailure, ExtractionPath: path, Err: err}
}

// LoadResult reports shared libraries loaded into the process.
type LoadResult struct {
	Success         bool
	LoadedLibraries []string
	FailedLibraries []string
	LibraryPath     string
	Err             *faults.Error
}

// VerificationResult reports a post-condition check over a directory.
type VerificationResult struct {
	Success       bool
	VerifiedItems []string
	FailedItems   []string
	Details       map[string]string
	Err           *faults.Error
}

// SetupResult reports the internal steps of a multi-stage setup.
type SetupResult struct {
	Success     bool
	SetupSteps  []string
	FailedSteps []string
	SetupPath   string
	Err         *faults.Error
}
