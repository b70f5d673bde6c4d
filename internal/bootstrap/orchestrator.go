package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"ignite/internal/config"
	"ignite/internal/faults"
	"ignite/internal/journal"
	"ignite/internal/logging"
	"ignite/internal/stage"
)

// Trigger values stamped on attempts.
const (
	TriggerInitialize = "initialize"
	TriggerRetry      = "retry"
	TriggerForce      = "force"
	TriggerRollback   = "rollback"
)

// Orchestrator runs the bootstrap steps and owns their lifecycle state.
type Orchestrator struct {
	native     NativeLibraries
	runtime    RuntimeEnvironment
	engine     ExtractionEngine
	classifier *faults.Classifier
	logger     *slog.Logger
	dataDir    string

	maxRetries   int
	actionBudget int
	settleDelay  time.Duration
	journal      Journal
	lockPath     string
	now          func() time.Time
	sleep        func(context.Context, time.Duration) error

	// lockMu guards the cross-process lock. Attempts in this process share
	// one handle, so a forced attempt can run while a stale one still holds it.
	lockMu      sync.Mutex
	lock        *flock.Flock
	lockHolders int

	mu            sync.Mutex
	status        stage.Status
	flight        *stage.Inflight[*faults.Error]
	generation    int
	attemptID     string
	attempts      int
	retries       int
	actionCounts  map[faults.ActionKind]int
	lastError     *faults.Error
	history       []ErrorRecord
	lastStartedAt time.Time
	completedAt   time.Time
}

// New constructs an Orchestrator. Retry limits and the settle delay default
// to the [bootstrap] section of cfg.
func New(cfg *config.Config, native NativeLibraries, runtime RuntimeEnvironment, engine ExtractionEngine, classifier *faults.Classifier, logger *slog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		native:       native,
		runtime:      runtime,
		engine:       engine,
		classifier:   classifier,
		logger:       logging.ForComponent(logger, cfg, "bootstrap"),
		dataDir:      cfg.Paths.DataDir,
		maxRetries:   cfg.Bootstrap.MaxRetries,
		actionBudget: cfg.Bootstrap.ActionBudget,
		settleDelay:  cfg.SettleDelay(),
		now:          time.Now,
		sleep:        sleepContext,
		status:       stage.StatusNotStarted(),
		actionCounts: make(map[faults.ActionKind]int),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Initialize runs the steps unless they already completed. Callers arriving
// while an attempt runs wait for its result.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	o.mu.Lock()
	switch {
	case o.status.State == stage.Completed:
		o.mu.Unlock()
		return nil
	case o.flight != nil && !o.flight.Done():
		flight := o.flight
		o.mu.Unlock()
		ferr, err := flight.Wait(ctx)
		if err != nil {
			return faults.GenericError("bootstrap wait cancelled", err, true)
		}
		return asError(ferr)
	}

	attemptID := uuid.NewString()
	generation := o.generation
	flight := stage.NewInflight[*faults.Error]()
	o.flight = flight
	o.attemptID = attemptID
	o.attempts++
	o.status = stage.StatusInProgress()
	started := o.now()
	o.lastStartedAt = started
	o.mu.Unlock()

	trigger, ok := logging.TriggerFromContext(ctx)
	if !ok {
		trigger = TriggerInitialize
		ctx = logging.WithTrigger(ctx, trigger)
	}
	ctx = logging.WithAttemptID(ctx, attemptID)
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("bootstrap started", logging.String(logging.FieldEventType, "bootstrap_started"))

	steps, failedStep, ferr := o.run(ctx)
	finished := o.now()

	o.mu.Lock()
	current := generation == o.generation
	var record ErrorRecord
	if ferr != nil {
		record = o.classify(attemptID, failedStep, ferr, finished)
		if current {
			o.status = stage.StatusFailed(ferr)
			o.lastError = ferr
		}
		o.history = appendHistory(o.history, record)
	} else if current {
		o.status = stage.StatusCompleted()
		o.lastError = nil
		o.completedAt = finished
	}
	retries, attempts := o.retries, o.attempts
	o.mu.Unlock()
	flight.Finish(ferr)

	if ferr != nil {
		o.reportFailure(ctx, record, ferr, attempts, retries)
	} else {
		logger.Info("bootstrap completed",
			logging.String(logging.FieldEventType, "bootstrap_completed"),
			logging.Duration("duration", finished.Sub(started)),
			logging.Int("retries", retries),
		)
	}
	o.recordAttempt(ctx, journal.Entry{
		AttemptID:      attemptID,
		Trigger:        trigger,
		Outcome:        outcomeOf(ferr),
		ErrorKind:      string(record.Kind),
		Category:       string(record.Category),
		Action:         record.Action,
		Message:        record.Message,
		StepsCompleted: steps,
		Retries:        retries,
		StartedAt:      started,
		FinishedAt:     finished,
	})
	return asError(ferr)
}

// run executes the three steps in order and returns how many completed.
func (o *Orchestrator) run(ctx context.Context) (int, string, *faults.Error) {
	if o.lockPath != "" {
		unlock, ferr := o.acquireLock()
		if ferr != nil {
			return 0, "lock", ferr
		}
		defer unlock()
	}

	steps := []struct {
		name string
		run  func(context.Context) *faults.Error
	}{
		{StepNativeLibraries, o.runNative},
		{StepRuntimeEnvironment, o.runRuntime},
		{StepExtractionEngine, o.runEngine},
	}
	for i, step := range steps {
		stepCtx := logging.WithStep(ctx, step.name)
		if err := ctx.Err(); err != nil {
			return i, step.name, faults.GenericError("bootstrap timed out", err, true)
		}
		if ferr := step.run(stepCtx); ferr != nil {
			return i, step.name, ferr
		}
		o.logger.DebugContext(stepCtx, "bootstrap step completed")
	}
	return len(steps), "", nil
}

func (o *Orchestrator) runNative(ctx context.Context) *faults.Error {
	if o.native.ShouldExtract() {
		if res := o.native.Extract(ctx); !res.Success {
			return orGeneric(res.Err, "native library extraction failed")
		}
	}
	if res := o.native.Load(ctx); !res.Success {
		return orGeneric(res.Err, "native library load failed")
	}
	if err := o.sleep(ctx, o.settleDelay); err != nil {
		return faults.GenericError("bootstrap timed out", err, true)
	}
	if res := o.native.Verify(ctx); !res.Success {
		return orGeneric(res.Err, "native library verification failed")
	}
	return nil
}

func (o *Orchestrator) runRuntime(ctx context.Context) *faults.Error {
	if res := o.runtime.Setup(ctx); !res.Success {
		return orGeneric(res.Err, "runtime environment setup failed")
	}
	return nil
}

func (o *Orchestrator) runEngine(ctx context.Context) *faults.Error {
	if ferr := o.engine.Initialize(ctx); ferr != nil {
		return ferr
	}
	if !o.engine.Verify(ctx) {
		return faults.ExtractionEngineError("engine version check failed after initialization", nil)
	}
	return nil
}

func (o *Orchestrator) acquireLock() (func(), *faults.Error) {
	o.lockMu.Lock()
	defer o.lockMu.Unlock()
	if o.lockHolders == 0 {
		if err := os.MkdirAll(filepath.Dir(o.lockPath), 0o755); err != nil {
			return nil, faults.GenericError("cannot create bootstrap lock directory", err, true)
		}
		if o.lock == nil {
			o.lock = flock.New(o.lockPath)
		}
		ok, err := o.lock.TryLock()
		if err != nil {
			return nil, faults.GenericError("cannot acquire bootstrap lock", err, true)
		}
		if !ok {
			return nil, faults.GenericError("another process holds the bootstrap lock", nil, true)
		}
	}
	o.lockHolders++
	return o.releaseLock, nil
}

func (o *Orchestrator) releaseLock() {
	o.lockMu.Lock()
	defer o.lockMu.Unlock()
	o.lockHolders--
	if o.lockHolders == 0 {
		_ = o.lock.Unlock()
	}
}

// classify must be called with o.mu held.
func (o *Orchestrator) classify(attemptID, step string, ferr *faults.Error, at time.Time) ErrorRecord {
	record := ErrorRecord{
		AttemptID:   attemptID,
		Step:        step,
		Kind:        ferr.Kind,
		Message:     ferr.Message,
		Category:    o.classifier.Categorize(ferr),
		Recoverable: o.classifier.IsRecoverable(ferr),
		At:          at,
	}
	if action, ok := o.classifier.SuggestRecoveryAction(ferr); ok {
		record.Action = action.String()
	}
	return record
}

func (o *Orchestrator) reportFailure(ctx context.Context, record ErrorRecord, ferr *faults.Error, attempts, retries int) {
	o.classifier.LogError(ctx, ferr)
	logger := logging.WithContext(logging.WithStep(ctx, record.Step), o.logger)
	attrs := []logging.Attr{
		logging.String("error_kind", string(record.Kind)),
		logging.String("category", string(record.Category)),
		logging.Bool("recoverable", record.Recoverable),
		logging.String("suggested_action", record.Action),
		logging.Int("attempts", attempts),
		logging.Int("retries", retries),
		logging.Int("max_retries", o.maxRetries),
		logging.String(logging.FieldErrorHint, "run `ignite run` again or `ignite reinit` to start over"),
		logging.String(logging.FieldImpact, "extraction engine unavailable"),
		logging.Error(ferr),
	}
	logging.ErrorWithContext(logger, "bootstrap failed", "bootstrap_failed", attrs...)
}

func (o *Orchestrator) recordAttempt(ctx context.Context, entry journal.Entry) {
	if o.journal == nil {
		return
	}
	if _, err := o.journal.Record(ctx, entry); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, o.logger), "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the journal database or disable bootstrap.journal"),
			logging.String(logging.FieldImpact, "attempt not recorded in history"),
		)
	}
}

// RetryInitialization applies the last error's recovery action and tries
// again. Calls beyond the retry cap are rejected without touching any step.
func (o *Orchestrator) RetryInitialization(ctx context.Context) error {
	o.mu.Lock()
	if o.status.State == stage.Completed {
		o.mu.Unlock()
		return nil
	}
	if o.flight != nil && !o.flight.Done() {
		o.mu.Unlock()
		return o.Initialize(ctx)
	}
	if o.retries >= o.maxRetries {
		retries, last := o.retries, o.lastError
		o.mu.Unlock()
		ferr := faults.GenericError(fmt.Sprintf("maximum retry attempts (%d) exceeded", o.maxRetries), last, false)
		logging.ErrorWithContext(logging.WithContext(ctx, o.logger), "retry rejected", "bootstrap_retry_rejected",
			logging.Int("retries", retries),
			logging.Int("max_retries", o.maxRetries),
			logging.String(logging.FieldErrorHint, "run `ignite reinit` to reset retry counters"),
			logging.String(logging.FieldImpact, "bootstrap stays failed"),
		)
		now := o.now()
		o.recordAttempt(ctx, journal.Entry{
			AttemptID:  uuid.NewString(),
			Trigger:    TriggerRetry,
			Outcome:    journal.OutcomeRejected,
			ErrorKind:  string(ferr.Kind),
			Message:    ferr.Message,
			Retries:    retries,
			StartedAt:  now,
			FinishedAt: now,
		})
		return ferr
	}
	o.retries++
	last := o.lastError
	var (
		action faults.Action
		apply  bool
	)
	if last != nil {
		if suggested, ok := o.classifier.SuggestRecoveryAction(last); ok {
			action = suggested
			if o.actionCounts[action.Kind] < o.budgetFor(action) {
				o.actionCounts[action.Kind]++
				apply = true
			}
		}
	}
	o.mu.Unlock()

	ctx = logging.WithTrigger(ctx, TriggerRetry)
	logger := logging.WithContext(ctx, o.logger)
	if apply {
		if err := o.applyAction(ctx, action); err != nil {
			logging.WarnWithContext(logger, "recovery action failed", "recovery_action_failed",
				logging.String("action", action.String()),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "the retry proceeds without the recovery action"),
			)
		}
	} else if last != nil && action.Kind != "" {
		logger.Info("recovery action budget exhausted",
			logging.String(logging.FieldEventType, "recovery_action_skipped"),
			logging.String("action", action.String()),
			logging.Int("budget", o.budgetFor(action)),
		)
	}

	o.mu.Lock()
	if o.status.State != stage.InProgress {
		o.status = stage.StatusNotStarted()
	}
	o.mu.Unlock()
	return o.Initialize(ctx)
}

// RollbackInitialization resets the engine and the orchestrator's status and
// retry counter. Extracted files are left in place; each step decides for
// itself whether to extract again.
func (o *Orchestrator) RollbackInitialization(ctx context.Context) {
	o.engine.Reset()
	o.mu.Lock()
	o.generation++
	o.flight = nil
	o.status = stage.StatusNotStarted()
	o.retries = 0
	o.lastError = nil
	o.completedAt = time.Time{}
	o.mu.Unlock()
	logging.WithContext(ctx, o.logger).Info("bootstrap rolled back",
		logging.String(logging.FieldEventType, "bootstrap_rolled_back"),
	)
	now := o.now()
	o.recordAttempt(ctx, journal.Entry{
		AttemptID:  uuid.NewString(),
		Trigger:    TriggerRollback,
		Outcome:    journal.OutcomeRollback,
		StartedAt:  now,
		FinishedAt: now,
	})
}

// ForceReinitialization clears error history and recovery counters, rolls
// back and initializes unconditionally.
func (o *Orchestrator) ForceReinitialization(ctx context.Context) error {
	o.mu.Lock()
	o.history = nil
	o.actionCounts = make(map[faults.ActionKind]int)
	o.mu.Unlock()
	if o.journal != nil {
		if _, err := o.journal.Clear(ctx); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, o.logger), "journal clear failed", "journal_clear_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "clear it with `ignite history --clear`"),
			)
		}
	}
	o.RollbackInitialization(ctx)
	return o.Initialize(logging.WithTrigger(ctx, TriggerForce))
}

// Status returns the current lifecycle status.
func (o *Orchestrator) Status() stage.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// IsInitialized reports whether the last attempt completed.
func (o *Orchestrator) IsInitialized() bool {
	return o.Status().State == stage.Completed
}

// StatusMessage renders the status for display.
func (o *Orchestrator) StatusMessage() string {
	return o.Status().Message()
}

// History returns a copy of the recorded failures, oldest first.
func (o *Orchestrator) History() []ErrorRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ErrorRecord(nil), o.history...)
}

// Snapshot copies the orchestrator state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	snap := Snapshot{
		State:         string(o.status.State),
		Message:       o.status.Message(),
		AttemptID:     o.attemptID,
		Attempts:      o.attempts,
		Retries:       o.retries,
		MaxRetries:    o.maxRetries,
		History:       append([]ErrorRecord(nil), o.history...),
		LastStartedAt: o.lastStartedAt,
		CompletedAt:   o.completedAt,
	}
	if len(o.actionCounts) > 0 {
		snap.ActionCounts = make(map[string]int, len(o.actionCounts))
		for kind, n := range o.actionCounts {
			snap.ActionCounts[string(kind)] = n
		}
	}
	if o.lastError != nil && len(o.history) > 0 {
		last := o.history[len(o.history)-1]
		snap.LastError = &last
	}
	return snap
}

// Health reports each step's readiness in execution order.
func (o *Orchestrator) Health(ctx context.Context) []stage.Health {
	return []stage.Health{
		o.native.HealthCheck(ctx),
		o.runtime.HealthCheck(ctx),
		o.engine.HealthCheck(ctx),
	}
}

func orGeneric(ferr *faults.Error, message string) *faults.Error {
	if ferr != nil {
		return ferr
	}
	return faults.GenericError(message, nil, true)
}

func outcomeOf(ferr *faults.Error) string {
	if ferr != nil {
		return journal.OutcomeFailure
	}
	return journal.OutcomeSuccess
}

func asError(ferr *faults.Error) error {
	if ferr == nil {
		return nil
	}
	return ferr
}
