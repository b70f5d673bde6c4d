package bootstrap

import (
	"time"

	"ignite/internal/faults"
)

// maxHistory bounds the in-memory error history.
const maxHistory = 50

// ErrorRecord is one classified failure.
type ErrorRecord struct {
	AttemptID   string          `json:"attempt_id" yaml:"attempt_id"`
	Step        string          `json:"step" yaml:"step"`
	Kind        faults.Kind     `json:"kind" yaml:"kind"`
	Message     string          `json:"message" yaml:"message"`
	Category    faults.Category `json:"category" yaml:"category"`
	Recoverable bool            `json:"recoverable" yaml:"recoverable"`
	Action      string          `json:"action,omitempty" yaml:"action,omitempty"`
	At          time.Time       `json:"at" yaml:"at"`
}

// Snapshot is a point-in-time copy of orchestrator state for display.
type Snapshot struct {
	State         string         `json:"state" yaml:"state"`
	Message       string         `json:"message" yaml:"message"`
	AttemptID     string         `json:"attempt_id,omitempty" yaml:"attempt_id,omitempty"`
	Attempts      int            `json:"attempts" yaml:"attempts"`
	Retries       int            `json:"retries" yaml:"retries"`
	MaxRetries    int            `json:"max_retries" yaml:"max_retries"`
	ActionCounts  map[string]int `json:"action_counts,omitempty" yaml:"action_counts,omitempty"`
	LastError     *ErrorRecord   `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	History       []ErrorRecord  `json:"history,omitempty" yaml:"history,omitempty"`
	LastStartedAt time.Time      `json:"last_started_at,omitempty" yaml:"last_started_at,omitempty"`
	CompletedAt   time.Time      `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

func appendHistory(history []ErrorRecord, record ErrorRecord) []ErrorRecord {
	history = append(history, record)
	if len(history) > maxHistory {
		history = append([]ErrorRecord(nil), history[len(history)-maxHistory:]...)
	}
	return history
}
