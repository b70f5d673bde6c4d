// Package bootstrap sequences the native library, runtime environment and
// extraction engine steps into one initialization lifecycle.
//
// The Orchestrator owns the lifecycle state (NotStarted, InProgress,
// Completed, Failed). Steps run strictly in order and the first failure
// short-circuits the rest. Failures are classified, recorded in a bounded
// in-memory history and, when configured, in the attempt journal.
// RetryInitialization applies the classifier's suggested recovery action
// before trying again, subject to a global retry cap and a per-action
// budget.
package bootstrap
