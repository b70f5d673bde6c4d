package stage

import "context"

// Handler describes what the engine initializer and the CLI need from the
// native library and runtime managers.
type Handler interface {
	Name() string
	// Confirm brings the component into a usable state, extracting or
	// loading only what is missing.
	Confirm(context.Context) error
	HealthCheck(context.Context) Health
}
