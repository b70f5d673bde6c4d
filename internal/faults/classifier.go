package faults

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"ignite/internal/logging"
)

// Names carries the directory and fragment names recovery actions refer to.
type Names struct {
	NativeDir       string
	RuntimeDir      string
	RuntimeFragment string
}

// Classifier maps errors to categories and recovery actions, and logs them.
// Categorize, SuggestRecoveryAction and IsRecoverable are pure.
type Classifier struct {
	names  Names
	logger *slog.Logger
}

// NewClassifier builds a classifier. A nil logger discards output.
func NewClassifier(names Names, logger *slog.Logger) *Classifier {
	if names.RuntimeFragment == "" {
		names.RuntimeFragment = names.RuntimeDir
	}
	return &Classifier{names: names, logger: logging.NewComponentLogger(logger, "classifier")}
}

// Categorize derives the severity category from the error kind and message.
func (c *Classifier) Categorize(err *Error) Category {
	if err == nil {
		return CategoryUnknown
	}
	msg := fold(err.Message)
	switch err.Kind {
	case NativeLibrary:
		switch {
		case containsAny(msg, "permission"):
			return CategoryUserInterventionRequired
		case containsAny(msg, "missing", "extract", "not found"):
			return CategoryRecoverable
		case containsAny(msg, "load", "link"):
			return CategoryTransient
		default:
			return CategoryRecoverable
		}
	case RuntimeEnvironment:
		switch {
		case containsAny(msg, "permission"):
			return CategoryUserInterventionRequired
		case containsAny(msg, "directory"):
			return CategoryConfiguration
		case containsAny(msg, "missing", "extract"):
			return CategoryRecoverable
		case containsAny(msg, "corrupt"):
			return CategoryCritical
		default:
			return CategoryRecoverable
		}
	case FileExtraction:
		switch {
		case containsAny(msg, "permission", "space"):
			return CategoryUserInterventionRequired
		case containsAny(msg, "archive", "corrupt", "not a valid zip"):
			return CategoryCritical
		default:
			return CategoryTransient
		}
	case ExtractionEngine:
		switch {
		case containsAny(msg, "incompatible"):
			return CategoryCritical
		case containsAny(msg, "timeout", "timed out"):
			return CategoryTransient
		case containsAny(msg, "method", "entry point"):
			return CategoryRecoverable
		default:
			return CategoryTransient
		}
	case Generic:
		switch {
		case containsAny(msg, "timeout", "timed out"):
			return CategoryTransient
		case containsAny(msg, "config"):
			return CategoryConfiguration
		case err.Recoverable:
			return CategoryTransient
		default:
			return CategoryUnknown
		}
	default:
		return CategoryUnknown
	}
}

// SuggestRecoveryAction selects the recovery action for err. The boolean is
// false when no action applies.
func (c *Classifier) SuggestRecoveryAction(err *Error) (Action, bool) {
	if err == nil {
		return Action{}, false
	}
	msg := fold(err.Message)
	switch err.Kind {
	case NativeLibrary:
		switch {
		case containsAny(msg, "permission"):
			return NoRecovery("native library directory is not accessible"), true
		case containsAny(msg, "missing", "extract", "not found"):
			return ReExtractFiles("lib/"), true
		case containsAny(msg, "load", "link"):
			return Retry(3, time.Second), true
		default:
			return ResetAndRestart(), true
		}
	case RuntimeEnvironment:
		switch {
		case containsAny(msg, "directory"):
			return RecreateDirectories(c.names.RuntimeDir), true
		case containsAny(msg, "missing", "extract"):
			return ReExtractFiles(c.names.RuntimeFragment), true
		default:
			return Retry(2, 2*time.Second), true
		}
	case FileExtraction:
		if containsAny(msg, "permission", "space") {
			return NoRecovery("storage is not writable or full"), true
		}
		return Retry(3, 1500*time.Millisecond), true
	case ExtractionEngine:
		switch {
		case containsAny(msg, "incompatible"):
			return NoRecovery("engine version is incompatible"), true
		case containsAny(msg, "method", "entry point"):
			return UseAlternativeMethod("ranked entry points"), true
		case containsAny(msg, "timeout", "timed out"):
			return Retry(3, 3*time.Second), true
		default:
			return ResetAndRestart(), true
		}
	case Generic:
		if err.Recoverable {
			return Retry(2, time.Second), true
		}
		return Action{}, false
	default:
		return Action{}, false
	}
}

// IsRecoverable reports whether err should be retried automatically.
func (c *Classifier) IsRecoverable(err *Error) bool {
	if err == nil {
		return false
	}
	switch c.Categorize(err) {
	case CategoryRecoverable, CategoryTransient, CategoryConfiguration:
		return err.Recoverable
	case CategoryCritical, CategoryUserInterventionRequired:
		return false
	default:
		return err.Recoverable
	}
}

// LogError emits a structured record for err. Critical and
// user-intervention categories log at error level, everything else warns.
func (c *Classifier) LogError(ctx context.Context, err *Error) {
	if err == nil {
		return
	}
	category := c.Categorize(err)
	action, hasAction := c.SuggestRecoveryAction(err)
	actionText := "none"
	if hasAction {
		actionText = action.String()
	}
	attrs := []logging.Attr{
		logging.String("error_kind", string(err.Kind)),
		logging.String("category", string(category)),
		logging.Bool("recoverable", c.IsRecoverable(err)),
		logging.String("suggested_action", actionText),
		logging.String("error_message", err.Message),
		logging.String(logging.FieldErrorHint, hintFor(category)),
	}
	if err.Cause != nil {
		attrs = append(attrs, logging.Error(err.Cause))
	}
	logger := logging.WithContext(ctx, c.logger)
	eventType := "initialization_error"
	switch category {
	case CategoryCritical, CategoryUserInterventionRequired:
		logging.ErrorWithContext(logger, "initialization error", eventType, attrs...)
	default:
		attrs = append(attrs, logging.String(logging.FieldImpact, "bootstrap step did not complete"))
		logging.WarnWithContext(logger, "initialization error", eventType, attrs...)
	}
}

func hintFor(category Category) string {
	switch category {
	case CategoryUserInterventionRequired:
		return "check permissions and free space on the data directory"
	case CategoryCritical:
		return "the bundle or engine is unusable; reinstall or replace it"
	case CategoryConfiguration:
		return "check paths and directory names in the config file"
	case CategoryTransient:
		return "retry; the failure is expected to clear on its own"
	case CategoryRecoverable:
		return "retry to re-run the suggested recovery action"
	default:
		return "check logs for details"
	}
}

func fold(s string) string {
	return cases.Fold().String(s)
}

// containsAny expects msg already folded; needles are ASCII lower case.
func containsAny(msg string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
