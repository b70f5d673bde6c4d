// Package engine drives the extraction engine's initialization lifecycle.
//
// Engines expose one primary entry point through the Engine interface and
// may offer alternative entry points through optional capability
// interfaces. The Initializer tries the primary entry point and then each
// offered alternative in a fixed order, stopping at the first success. The
// last resort builds a fresh instance from the Factory and calls its primary
// entry point again.
//
// Command is the production Engine. It runs an external engine binary with
// the native library and runtime directories exported to its environment.
package engine
