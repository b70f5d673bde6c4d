package faults

import (
	"errors"
	"fmt"
)

// Kind identifies which bootstrap component raised an Error.
type Kind string

const (
	NativeLibrary      Kind = "native_library"
	RuntimeEnvironment Kind = "runtime_environment"
	FileExtraction     Kind = "file_extraction"
	ExtractionEngine   Kind = "extraction_engine"
	Generic            Kind = "generic"
)

// Error is the initialization failure carried inside step results.
// Values are not mutated after construction.
type Error struct {
	Kind        Kind
	Message     string
	Cause       error
	Recoverable bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NativeLibraryError reports a failure extracting, loading or verifying shared libraries.
func NativeLibraryError(message string, cause error) *Error {
	return &Error{Kind: NativeLibrary, Message: message, Cause: cause, Recoverable: true}
}

// RuntimeEnvironmentError reports a failure preparing the embedded runtime.
func RuntimeEnvironmentError(message string, cause error) *Error {
	return &Error{Kind: RuntimeEnvironment, Message: message, Cause: cause, Recoverable: true}
}

// FileExtractionError reports a failure reading the bundle or writing extracted files.
func FileExtractionError(message string, cause error) *Error {
	return &Error{Kind: FileExtraction, Message: message, Cause: cause, Recoverable: true}
}

// ExtractionEngineError reports a failure initializing or probing the engine.
func ExtractionEngineError(message string, cause error) *Error {
	return &Error{Kind: ExtractionEngine, Message: message, Cause: cause, Recoverable: true}
}

// GenericError reports anything that does not belong to a component.
func GenericError(message string, cause error, recoverable bool) *Error {
	return &Error{Kind: Generic, Message: message, Cause: cause, Recoverable: recoverable}
}

// NotRecoverable returns a copy of e with the recoverable hint cleared.
func (e *Error) NotRecoverable() *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Recoverable = false
	return &clone
}

// As extracts an *Error from err's chain. Plain errors are wrapped as a
// recoverable GenericError so callers always have something to classify.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var target *Error
	if errors.As(err, &target) {
		return target
	}
	return GenericError(err.Error(), err, true)
}
