// Package status exposes a small local diagnostics listener so an operator
// (or a liveness probe) can see what a client is doing without touching the
// orchestrator connection.
package status

import (
	"sync"

	"flock/transport"
)

// Tracker accumulates per-client round counters. It observes every result
// the runner sends back.
type Tracker struct {
	mu          sync.Mutex
	cid         string
	fitRounds   int
	evalRounds  int
	samplesSeen int
	lastLoss    float64
	lastErr     string
}

func NewTracker(cid string) *Tracker {
	return &Tracker{cid: cid}
}

// Observe records one task result. Safe for concurrent use.
func (t *Tracker) Observe(res transport.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch res.Op {
	case transport.OpFit:
		t.fitRounds++
		t.samplesSeen += res.NumExamples
		if loss, ok := res.Metrics["loss"]; ok {
			t.lastLoss = loss
		}
	case transport.OpEvaluate:
		t.evalRounds++
		t.lastLoss = res.Loss
	}
	t.lastErr = res.Err
}

// Report is the JSON payload served on /status.
type Report struct {
	ClientID    string  `json:"client_id"`
	FitRounds   int     `json:"fit_rounds"`
	EvalRounds  int     `json:"eval_rounds"`
	SamplesSeen int     `json:"samples_seen"`
	LastLoss    float64 `json:"last_loss"`
	LastError   string  `json:"last_error,omitempty"`
}

func (t *Tracker) Report() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Report{
		ClientID:    t.cid,
		FitRounds:   t.fitRounds,
		EvalRounds:  t.evalRounds,
		SamplesSeen: t.samplesSeen,
		LastLoss:    t.lastLoss,
		LastError:   t.lastErr,
	}
}
