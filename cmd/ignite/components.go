package main

import (
	"ignite/internal/archive"
	"ignite/internal/bootstrap"
	"ignite/internal/config"
	"ignite/internal/engine"
	"ignite/internal/faults"
	"ignite/internal/journal"
	"ignite/internal/logging"
	"ignite/internal/nativelib"
	"ignite/internal/runtimeenv"
)

// components is the wired bootstrap graph for one invocation.
type components struct {
	cfg          *config.Config
	classifier   *faults.Classifier
	native       *nativelib.Manager
	runtime      *runtimeenv.Manager
	engine       *engine.Initializer
	orchestrator *bootstrap.Orchestrator
	journal      *journal.Store
}

func (c *commandContext) buildComponents() (*components, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}

	classifier := faults.NewClassifier(faults.Names{
		NativeDir:  cfg.Native.DirName,
		RuntimeDir: cfg.Runtime.DirName,
	}, logger)
	extractor := archive.New(cfg.Paths.Bundle, logger)

	var nativeOpts []nativelib.Option
	if c.loader != nil {
		nativeOpts = append(nativeOpts, nativelib.WithLoader(c.loader))
	}
	native := nativelib.New(cfg, extractor, classifier, logger, nativeOpts...)
	runtime := runtimeenv.New(cfg, extractor, classifier, logger)
	env := engine.Environment{
		NativeDir:  cfg.NativeDir(),
		RuntimeDir: cfg.RuntimeDir(),
		DataDir:    cfg.Paths.DataDir,
	}
	initializer := engine.NewInitializer(engine.CommandFactory(cfg), env, classifier, logger, native, runtime)

	set := &components{
		cfg:        cfg,
		classifier: classifier,
		native:     native,
		runtime:    runtime,
		engine:     initializer,
	}

	opts := []bootstrap.Option{bootstrap.WithLockFile(cfg.LockPath())}
	if cfg.Bootstrap.Journal {
		store, err := journal.Open(cfg)
		if err != nil {
			logging.WarnWithContext(logger, "attempt journal unavailable", "journal_open_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "delete "+cfg.JournalPath()+" or set bootstrap.journal = false"),
				logging.String(logging.FieldImpact, "attempts will not be recorded"),
			)
		} else {
			set.journal = store
			opts = append(opts, bootstrap.WithJournal(store))
		}
	}
	set.orchestrator = bootstrap.New(cfg, native, runtime, initializer, classifier, logger, opts...)
	return set, nil
}

func (s *components) Close() error {
	if s == nil || s.journal == nil {
		return nil
	}
	return s.journal.Close()
}
