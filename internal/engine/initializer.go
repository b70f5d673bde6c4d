package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"ignite/internal/faults"
	"ignite/internal/logging"
	"ignite/internal/stage"
)

// MaxRetries bounds how many times Initialize may run again after its first
// attempt before it refuses without touching the engine.
const MaxRetries = 3

var versionPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)+`)

// Initializer brings one engine instance to a ready state. Concurrent
// callers share a single in-flight attempt and a completed initialization is
// reused until Reset.
type Initializer struct {
	factory       Factory
	env           Environment
	prerequisites []stage.Handler
	classifier    *faults.Classifier
	logger        *slog.Logger

	mu         sync.Mutex
	status     stage.Status
	engine     Engine
	method     string
	attempts   int
	retries    int
	generation int
	flight     *stage.Inflight[*faults.Error]
}

// NewInitializer constructs an Initializer. Each prerequisite is confirmed
// before the engine is touched.
func NewInitializer(factory Factory, env Environment, classifier *faults.Classifier, logger *slog.Logger, prerequisites ...stage.Handler) *Initializer {
	return &Initializer{
		factory:       factory,
		env:           env,
		prerequisites: prerequisites,
		classifier:    classifier,
		logger:        logging.NewComponentLogger(logger, "engine"),
		status:        stage.StatusNotStarted(),
	}
}

func (i *Initializer) Name() string { return "extraction_engine" }

// Initialize runs the initialization attempt, or waits for the one already
// running. A nil return means the engine is ready.
func (i *Initializer) Initialize(ctx context.Context) *faults.Error {
	i.mu.Lock()
	switch {
	case i.status.State == stage.Completed:
		i.mu.Unlock()
		return nil
	case i.flight != nil && !i.flight.Done():
		flight := i.flight
		i.mu.Unlock()
		ferr, err := flight.Wait(ctx)
		if err != nil {
			return faults.ExtractionEngineError("engine initialization wait cancelled", err)
		}
		return ferr
	}
	if i.attempts > 0 {
		if i.retries >= MaxRetries {
			i.mu.Unlock()
			ferr := faults.ExtractionEngineError(
				fmt.Sprintf("maximum engine initialization retries (%d) exceeded", MaxRetries), nil,
			).NotRecoverable()
			i.logError(ctx, ferr)
			return ferr
		}
		i.retries++
	}
	i.attempts++
	generation := i.generation
	engine := i.engine
	flight := stage.NewInflight[*faults.Error]()
	i.flight = flight
	i.status = stage.StatusInProgress()
	i.mu.Unlock()

	next, method, ferr := i.run(ctx, engine)

	i.mu.Lock()
	if generation == i.generation {
		if ferr != nil {
			i.status = stage.StatusFailed(ferr)
			i.engine = next
		} else {
			i.status = stage.StatusCompleted()
			i.engine = next
			i.method = method
		}
	}
	i.mu.Unlock()
	flight.Finish(ferr)
	return ferr
}

func (i *Initializer) run(ctx context.Context, engine Engine) (Engine, string, *faults.Error) {
	logger := logging.WithContext(ctx, i.logger)

	for _, handler := range i.prerequisites {
		if err := handler.Confirm(ctx); err != nil {
			ferr := faults.As(err)
			logger.Warn("engine prerequisite not ready",
				logging.String(logging.FieldEventType, "engine_prerequisite_failed"),
				logging.String("prerequisite", handler.Name()),
				logging.Error(err),
			)
			return engine, "", ferr
		}
	}

	if engine == nil {
		if i.factory == nil {
			return nil, "", faults.ExtractionEngineError("no engine factory configured", nil).NotRecoverable()
		}
		created, err := i.factory()
		if err != nil {
			return nil, "", faults.ExtractionEngineError("cannot create engine instance", err)
		}
		engine = created
	}

	err := engine.Initialize(ctx, i.env)
	if err == nil {
		i.logSuccess(logger, MethodPrimary)
		return engine, MethodPrimary, nil
	}
	if ferr := incompatible(err); ferr != nil {
		return engine, "", ferr
	}
	logger.Debug("primary entry point failed, trying alternatives", logging.Error(err))

	lastErr := err
	tried := []string{MethodPrimary}
	for _, alt := range alternatives {
		if cerr := ctx.Err(); cerr != nil {
			return engine, "", faults.ExtractionEngineError("engine initialization timed out", cerr)
		}
		next, ok, err := alt.run(ctx, engine, i.env, i.factory)
		if !ok {
			continue
		}
		tried = append(tried, alt.name)
		if err == nil {
			i.logSuccess(logger, alt.name)
			return next, alt.name, nil
		}
		lastErr = err
		logger.Debug("alternative entry point failed",
			logging.String("method", alt.name),
			logging.Error(err),
		)
	}

	ferr := faults.ExtractionEngineError(
		fmt.Sprintf("engine rejected every initialization strategy (tried %s)", strings.Join(tried, ", ")),
		lastErr,
	)
	i.logError(ctx, ferr)
	return engine, "", ferr
}

// incompatible short-circuits the alternatives when the engine reported that
// it cannot run at all.
func incompatible(err error) *faults.Error {
	var ferr *faults.Error
	if errors.As(err, &ferr) && ferr.Kind == faults.ExtractionEngine && !ferr.Recoverable {
		return ferr
	}
	return nil
}

func (i *Initializer) logError(ctx context.Context, ferr *faults.Error) {
	if i.classifier != nil {
		i.classifier.LogError(ctx, ferr)
	}
}

func (i *Initializer) logSuccess(logger *slog.Logger, method string) {
	logger.Info("extraction engine initialized",
		logging.String(logging.FieldEventType, "engine_initialized"),
		logging.String("method", method),
	)
}

// Verify reports whether the initialized engine answers with a well-formed
// version string.
func (i *Initializer) Verify(ctx context.Context) bool {
	version, err := i.Version(ctx)
	if err != nil {
		i.logger.Debug("engine verification failed", logging.Error(err))
		return false
	}
	return versionPattern.MatchString(version)
}

// Version returns the engine's reported version.
func (i *Initializer) Version(ctx context.Context) (string, error) {
	i.mu.Lock()
	engine := i.engine
	ready := i.status.State == stage.Completed
	i.mu.Unlock()
	if !ready || engine == nil {
		return "", errors.New("engine not initialized")
	}
	version, err := engine.Version(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(version), nil
}

// Reset discards the engine instance, the retry counter and the status. An
// attempt still running when Reset is called no longer updates state.
func (i *Initializer) Reset() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.generation++
	i.engine = nil
	i.method = ""
	i.attempts = 0
	i.retries = 0
	i.flight = nil
	i.status = stage.StatusNotStarted()
}

// ResetAndReinitialize resets and runs a fresh initialization.
func (i *Initializer) ResetAndReinitialize(ctx context.Context) *faults.Error {
	i.Reset()
	return i.Initialize(ctx)
}

// Status returns the current lifecycle status.
func (i *Initializer) Status() stage.Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.status
}

// Method names the entry point that succeeded, or "" before success.
func (i *Initializer) Method() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.method
}

// Retries returns how many retries have been consumed since the last Reset.
func (i *Initializer) Retries() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.retries
}

// Confirm initializes the engine if needed.
func (i *Initializer) Confirm(ctx context.Context) error {
	if ferr := i.Initialize(ctx); ferr != nil {
		return ferr
	}
	return nil
}

func (i *Initializer) HealthCheck(ctx context.Context) stage.Health {
	status := i.Status()
	if status.State != stage.Completed {
		return stage.Unhealthy(i.Name(), status.Message())
	}
	version, err := i.Version(ctx)
	if err != nil || !versionPattern.MatchString(version) {
		return stage.Unhealthy(i.Name(), "engine did not report a version")
	}
	health := stage.Healthy(i.Name())
	health.Detail = fmt.Sprintf("%s via %s", version, i.Method())
	return health
}
