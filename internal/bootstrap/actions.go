package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ignite/internal/faults"
	"ignite/internal/logging"
	"ignite/internal/stage"
)

// budgetFor returns how many times action may be applied. A retry action
// carries its own attempt count; every other kind shares the configured
// budget.
func (o *Orchestrator) budgetFor(action faults.Action) int {
	if action.Kind == faults.ActionRetry && action.MaxAttempts > 0 {
		return action.MaxAttempts
	}
	return o.actionBudget
}

// applyAction performs a recovery action ahead of a retry.
func (o *Orchestrator) applyAction(ctx context.Context, action faults.Action) error {
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("applying recovery action",
		logging.String(logging.FieldEventType, "recovery_action_applied"),
		logging.String("action", action.String()),
	)

	switch action.Kind {
	case faults.ActionRetry:
		return o.sleep(ctx, action.Delay)
	case faults.ActionReExtractFiles:
		var res stage.ExtractionResult
		if strings.HasPrefix(action.TargetPattern, "lib/") {
			res = o.native.Extract(ctx)
		} else {
			res = o.runtime.ExtractFiles(ctx)
		}
		if !res.Success {
			return res.Err
		}
		return nil
	case faults.ActionRecreateDirectories:
		for _, name := range action.Directories {
			if err := o.recreateDirectory(name); err != nil {
				return err
			}
		}
		return nil
	case faults.ActionResetAndRestart:
		// Action counts survive the rollback, so the budget still bounds
		// how often this path runs.
		o.RollbackInitialization(ctx)
		return nil
	case faults.ActionUseAlternativeMethod:
		// The engine step already walks every alternative entry point.
		return nil
	case faults.ActionNoRecovery:
		logger.Debug("no automatic recovery available", logging.String("reason", action.Reason))
		return nil
	default:
		return fmt.Errorf("unknown recovery action %q", action.Kind)
	}
}

// recreateDirectory wipes and recreates a directory directly under the data
// dir. Names that would escape it are refused.
func (o *Orchestrator) recreateDirectory(name string) error {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return fmt.Errorf("refusing to recreate directory %q", name)
	}
	if strings.TrimSpace(o.dataDir) == "" {
		return fmt.Errorf("data directory not configured")
	}
	dir := filepath.Join(o.dataDir, name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}
