package faults

import (
	"fmt"
	"strings"
	"time"
)

// Category is the severity class derived from an Error. It is recomputed on
// every call and never stored.
type Category string

const (
	CategoryRecoverable              Category = "recoverable"
	CategoryTransient                Category = "transient"
	CategoryCritical                 Category = "critical"
	CategoryUserInterventionRequired Category = "user_intervention_required"
	CategoryConfiguration            Category = "configuration"
	CategoryUnknown                  Category = "unknown"
)

// ActionKind enumerates the recovery action variants.
type ActionKind string

const (
	ActionRetry                ActionKind = "retry"
	ActionReExtractFiles       ActionKind = "re_extract_files"
	ActionRecreateDirectories  ActionKind = "recreate_directories"
	ActionUseAlternativeMethod ActionKind = "use_alternative_method"
	ActionResetAndRestart      ActionKind = "reset_and_restart"
	ActionNoRecovery           ActionKind = "no_recovery"
)

// Action is a recovery step suggested by the Classifier. Only the fields
// belonging to Kind are populated.
type Action struct {
	Kind          ActionKind
	MaxAttempts   int
	Delay         time.Duration
	TargetPattern string
	Directories   []string
	Method        string
	Reason        string
}

func Retry(maxAttempts int, delay time.Duration) Action {
	return Action{Kind: ActionRetry, MaxAttempts: maxAttempts, Delay: delay}
}

func ReExtractFiles(pattern string) Action {
	return Action{Kind: ActionReExtractFiles, TargetPattern: pattern}
}

func RecreateDirectories(names ...string) Action {
	return Action{Kind: ActionRecreateDirectories, Directories: append([]string(nil), names...)}
}

func UseAlternativeMethod(name string) Action {
	return Action{Kind: ActionUseAlternativeMethod, Method: name}
}

func ResetAndRestart() Action {
	return Action{Kind: ActionResetAndRestart}
}

func NoRecovery(reason string) Action {
	return Action{Kind: ActionNoRecovery, Reason: reason}
}

// String renders the action for logs and the journal.
func (a Action) String() string {
	switch a.Kind {
	case ActionRetry:
		return fmt.Sprintf("retry(max=%d, delay=%s)", a.MaxAttempts, a.Delay)
	case ActionReExtractFiles:
		return fmt.Sprintf("re_extract_files(%s)", a.TargetPattern)
	case ActionRecreateDirectories:
		return fmt.Sprintf("recreate_directories(%s)", strings.Join(a.Directories, ","))
	case ActionUseAlternativeMethod:
		return fmt.Sprintf("use_alternative_method(%s)", a.Method)
	case ActionResetAndRestart:
		return "reset_and_restart"
	case ActionNoRecovery:
		return fmt.Sprintf("no_recovery(%s)", a.Reason)
	default:
		return "none"
	}
}
