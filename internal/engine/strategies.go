package engine

import "context"

// Entry point names, in the order they are tried.
const (
	MethodPrimary              = "primary"
	MethodRuntimeDirectory     = "runtime_directory"
	MethodContextOnly          = "context_only"
	MethodEnvironmentDirectory = "environment_directory"
	MethodNoArgument           = "no_argument"
	MethodFreshInstance        = "fresh_instance"
)

// strategy attempts one entry point. ok is false when the engine does not
// offer it. A strategy may hand back a replacement engine.
type strategy struct {
	name string
	run  func(ctx context.Context, eng Engine, env Environment, factory Factory) (next Engine, ok bool, err error)
}

var alternatives = []strategy{
	{
		name: MethodRuntimeDirectory,
		run: func(ctx context.Context, eng Engine, env Environment, _ Factory) (Engine, bool, error) {
			init, ok := eng.(RuntimeDirInitializer)
			if !ok {
				return eng, false, nil
			}
			return eng, true, init.InitializeWithRuntime(ctx, env.RuntimeDir)
		},
	},
	{
		name: MethodContextOnly,
		run: func(ctx context.Context, eng Engine, _ Environment, _ Factory) (Engine, bool, error) {
			init, ok := eng.(ContextInitializer)
			if !ok {
				return eng, false, nil
			}
			return eng, true, init.InitializeContext(ctx)
		},
	},
	{
		name: MethodEnvironmentDirectory,
		run: func(ctx context.Context, eng Engine, env Environment, _ Factory) (Engine, bool, error) {
			init, ok := eng.(EnvironmentDirInitializer)
			if !ok {
				return eng, false, nil
			}
			return eng, true, init.InitializeWithEnvironment(ctx, env.Vars(), env.DataDir)
		},
	},
	{
		name: MethodNoArgument,
		run: func(_ context.Context, eng Engine, _ Environment, _ Factory) (Engine, bool, error) {
			init, ok := eng.(NoArgInitializer)
			if !ok {
				return eng, false, nil
			}
			return eng, true, init.InitializeDefault()
		},
	},
	{
		// A new instance carries no state from the failed attempts, so its
		// primary entry point can succeed where the old one did not.
		name: MethodFreshInstance,
		run: func(ctx context.Context, eng Engine, env Environment, factory Factory) (Engine, bool, error) {
			if factory == nil {
				return eng, false, nil
			}
			fresh, err := factory()
			if err != nil {
				return eng, true, err
			}
			if err := fresh.Initialize(ctx, env); err != nil {
				return eng, true, err
			}
			return fresh, true, nil
		},
	},
}
