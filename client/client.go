// Package client adapts a local model and data partition to the callback
// contract a federated-learning orchestrator expects: export parameters,
// load parameters, fit, evaluate. Scheduling, client selection, and
// aggregation all live on the orchestrator side.
package client

import (
	"github.com/hashicorp/go-hclog"

	"flock/dataset"
	"flock/ml"
)

// LocalModel is what the adapter needs from the wrapped model.
// *ml.Predictor satisfies it; tests use a fake.
type LocalModel interface {
	Parameters() ml.Parameters
	SetParameters(ml.Parameters) error
	Train(part *dataset.Partition, opts ml.TrainOptions) (ml.TrainStats, error)
	Test(part *dataset.Partition) (ml.EvalStats, error)
	Save(path string) error
}

// Defaults are used for hyperparameters the orchestrator leaves out of a
// round config.
type Defaults struct {
	LearningRate float64
	Momentum     float64
	LocalEpochs  int
}

// FitResult is what a client returns from one round of local training.
type FitResult struct {
	Parameters  ml.Parameters
	NumExamples int
	Metrics     map[string]float64
}

// EvaluateResult is what a client returns from one evaluation pass.
type EvaluateResult struct {
	Loss        float64
	NumExamples int
	Metrics     map[string]float64
}

// Client is one federated-learning participant: a model plus the data
// partition it is allowed to touch.
type Client struct {
	cid        string
	model      LocalModel
	data       *dataset.Partition
	defaults   Defaults
	checkpoint string
	logger     hclog.Logger
}

// New binds a model to its data partition under the given client id.
func New(cid string, model LocalModel, data *dataset.Partition, defaults Defaults, logger hclog.Logger) *Client {
	return &Client{
		cid:      cid,
		model:    model,
		data:     data,
		defaults: defaults,
		logger:   logger.Named("client").With("cid", cid),
	}
}

// WithCheckpoint makes the client write its weights to path after every
// successful fit, so a local predict run can pick them up.
func (c *Client) WithCheckpoint(path string) *Client {
	c.checkpoint = path
	return c
}

// CID returns the client identifier assigned by the orchestrator.
func (c *Client) CID() string { return c.cid }

// GetParameters exports the current local weights.
func (c *Client) GetParameters() ml.Parameters {
	return c.model.Parameters()
}

// SetParameters loads orchestrator weights into the local model. Count or
// shape mismatches surface as errors and are not retried here.
func (c *Client) SetParameters(params ml.Parameters) error {
	return c.model.SetParameters(params)
}

// Fit loads the round's global weights, trains on the local partition with
// the round hyperparameters, and returns the updated weights together with
// the number of samples consumed.
func (c *Client) Fit(params ml.Parameters, cfg RoundConfig) (FitResult, error) {
	if err := c.model.SetParameters(params); err != nil {
		return FitResult{}, err
	}

	lr, err := cfg.Float("lr", c.defaults.LearningRate)
	if err != nil {
		return FitResult{}, err
	}
	momentum, err := cfg.Float("momentum", c.defaults.Momentum)
	if err != nil {
		return FitResult{}, err
	}
	epochs, err := cfg.Int("local_epochs", c.defaults.LocalEpochs)
	if err != nil {
		return FitResult{}, err
	}

	c.logger.Debug("starting local training", "lr", lr, "momentum", momentum, "epochs", epochs)
	stats, err := c.model.Train(c.data, ml.TrainOptions{
		LearningRate: lr,
		Momentum:     momentum,
		Epochs:       epochs,
	})
	if err != nil {
		return FitResult{}, err
	}

	if c.checkpoint != "" {
		if err := c.model.Save(c.checkpoint); err != nil {
			c.logger.Warn("checkpoint write failed", "path", c.checkpoint, "error", err)
		}
	}

	return FitResult{
		Parameters:  c.model.Parameters(),
		NumExamples: stats.Samples,
		Metrics: map[string]float64{
			"loss":            float64(stats.Loss),
			"samples_per_sec": stats.Throughput,
		},
	}, nil
}

// Evaluate loads the round's global weights and scores them on the local
// validation partition.
func (c *Client) Evaluate(params ml.Parameters, cfg RoundConfig) (EvaluateResult, error) {
	if err := c.model.SetParameters(params); err != nil {
		return EvaluateResult{}, err
	}

	stats, err := c.model.Test(c.data)
	if err != nil {
		return EvaluateResult{}, err
	}

	return EvaluateResult{
		Loss:        float64(stats.Loss),
		NumExamples: stats.Samples,
		Metrics: map[string]float64{
			"accuracy": float64(stats.Accuracy),
		},
	}, nil
}
