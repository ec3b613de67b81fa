package client

import (
	"fmt"
	"strconv"
)

// RoundConfig carries the per-round hyperparameters the orchestrator sends
// with each task. Adjusting these between rounds (e.g. decaying the learning
// rate) is the orchestrator's lever over local training.
type RoundConfig map[string]string

// Float returns the named value, or def when the key is absent.
func (c RoundConfig) Float(key string, def float64) (float64, error) {
	raw, ok := c[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("client: config %q: %w", key, err)
	}
	return v, nil
}

// Int returns the named value, or def when the key is absent.
func (c RoundConfig) Int(key string, def int) (int, error) {
	raw, ok := c[key]
	if !ok {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("client: config %q: %w", key, err)
	}
	return v, nil
}
