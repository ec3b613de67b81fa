package util

import "time"

// Window accumulates per-epoch training stats.
type Window struct {
	samples  int
	lastLoss float32
	start    time.Time
	now      func() time.Time
}

func NewWindow() *Window {
	w := &Window{now: time.Now}
	w.start = w.now()
	return w
}

// Record adds one minibatch to the window.
func (w *Window) Record(batchSize int, loss float32) {
	w.samples += batchSize
	w.lastLoss = loss
}

// Snapshot returns the aggregated stats and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{
		Samples:  w.samples,
		LastLoss: w.lastLoss,
	}
	if elapsed := w.now().Sub(w.start).Seconds(); elapsed > 0 && w.samples > 0 {
		snap.SamplesPerSec = float64(w.samples) / elapsed
	}

	w.samples = 0
	w.lastLoss = 0
	w.start = w.now()
	return snap
}

// Snapshot represents loggable per-epoch metrics.
type Snapshot struct {
	Samples       int
	LastLoss      float32
	SamplesPerSec float64
}
