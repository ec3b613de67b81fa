// Package transport speaks the orchestrator's task stream: one TCP
// connection, gob-encoded frames, tasks in and results out. The protocol
// itself — who participates in a round, when, and how updates are combined —
// is the orchestrator's business.
package transport

import (
	"github.com/google/uuid"

	"flock/client"
	"flock/ml"
)

// Op names the client callback a task invokes.
type Op string

const (
	OpGetParameters Op = "get_parameters"
	OpFit           Op = "fit"
	OpEvaluate      Op = "evaluate"
)

// Hello announces the client to the orchestrator right after dialing.
type Hello struct {
	ClientID string
}

// Task is one instruction from the orchestrator.
type Task struct {
	ID         uuid.UUID
	Round      int
	Op         Op
	Parameters ml.Parameters
	Config     client.RoundConfig
}

// Result is the client's reply to a task. Err carries handler failures back
// to the orchestrator; the connection stays up.
type Result struct {
	TaskID      uuid.UUID
	ClientID    string
	Op          Op
	Round       int
	Parameters  ml.Parameters
	NumExamples int
	Loss        float64
	Metrics     map[string]float64
	Err         string
}
