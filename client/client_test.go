package client

import (
	"errors"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flock/dataset"
	"flock/ml"
)

// fakeModel stands in for ml.Predictor so the adapter can be exercised
// without the tensor runtime.
type fakeModel struct {
	params    ml.Parameters
	setErr    error
	trainErr  error
	saved     string
	lastOpts  ml.TrainOptions
	setCalls  int
	trainRuns int
}

func (f *fakeModel) Parameters() ml.Parameters { return f.params }

func (f *fakeModel) SetParameters(p ml.Parameters) error {
	f.setCalls++
	return f.setErr
}

func (f *fakeModel) Train(part *dataset.Partition, opts ml.TrainOptions) (ml.TrainStats, error) {
	f.trainRuns++
	f.lastOpts = opts
	return ml.TrainStats{Samples: 440, Loss: 0.25, Throughput: 1000}, f.trainErr
}

func (f *fakeModel) Test(part *dataset.Partition) (ml.EvalStats, error) {
	return ml.EvalStats{Loss: 0.4, Accuracy: 0.91, Samples: 120}, nil
}

func (f *fakeModel) Save(path string) error {
	f.saved = path
	return nil
}

func newTestClient(model LocalModel) *Client {
	defaults := Defaults{LearningRate: 0.01, Momentum: 0.9, LocalEpochs: 1}
	return New("3", model, &dataset.Partition{Index: 3, Total: 4}, defaults, hclog.NewNullLogger())
}

func TestFitUsesRoundConfig(t *testing.T) {
	model := &fakeModel{}
	c := newTestClient(model)

	res, err := c.Fit(nil, RoundConfig{"lr": "0.05", "momentum": "0.8", "local_epochs": "3"})
	require.NoError(t, err)

	assert.Equal(t, 1, model.setCalls, "fit must load global weights before training")
	assert.Equal(t, ml.TrainOptions{LearningRate: 0.05, Momentum: 0.8, Epochs: 3}, model.lastOpts)
	assert.Equal(t, 440, res.NumExamples)
	assert.InDelta(t, 0.25, res.Metrics["loss"], 1e-6)
}

func TestFitFallsBackToDefaults(t *testing.T) {
	model := &fakeModel{}
	c := newTestClient(model)

	_, err := c.Fit(nil, RoundConfig{})
	require.NoError(t, err)
	assert.Equal(t, ml.TrainOptions{LearningRate: 0.01, Momentum: 0.9, Epochs: 1}, model.lastOpts)
}

func TestFitRejectsMalformedConfig(t *testing.T) {
	model := &fakeModel{}
	c := newTestClient(model)

	_, err := c.Fit(nil, RoundConfig{"lr": "fast"})
	require.Error(t, err)
	assert.Equal(t, 0, model.trainRuns)
}

func TestFitPropagatesSetParametersError(t *testing.T) {
	model := &fakeModel{setErr: errors.New("shape mismatch")}
	c := newTestClient(model)

	_, err := c.Fit(nil, RoundConfig{})
	require.Error(t, err)
	assert.Equal(t, 0, model.trainRuns, "training must not run on stale weights")
}

func TestFitWritesCheckpoint(t *testing.T) {
	model := &fakeModel{}
	c := newTestClient(model).WithCheckpoint("weights.gob")

	_, err := c.Fit(nil, RoundConfig{})
	require.NoError(t, err)
	assert.Equal(t, "weights.gob", model.saved)
}

func TestEvaluate(t *testing.T) {
	model := &fakeModel{}
	c := newTestClient(model)

	res, err := c.Evaluate(nil, RoundConfig{})
	require.NoError(t, err)
	assert.Equal(t, 1, model.setCalls)
	assert.InDelta(t, 0.4, res.Loss, 1e-6)
	assert.Equal(t, 120, res.NumExamples)
	assert.InDelta(t, 0.91, res.Metrics["accuracy"], 1e-6)
}

func TestRoundConfigAccessors(t *testing.T) {
	cfg := RoundConfig{"lr": "0.1", "local_epochs": "5", "bad": "x"}

	lr, err := cfg.Float("lr", 0.01)
	require.NoError(t, err)
	assert.Equal(t, 0.1, lr)

	missing, err := cfg.Float("momentum", 0.9)
	require.NoError(t, err)
	assert.Equal(t, 0.9, missing)

	epochs, err := cfg.Int("local_epochs", 1)
	require.NoError(t, err)
	assert.Equal(t, 5, epochs)

	_, err = cfg.Float("bad", 0)
	assert.Error(t, err)

	_, err = cfg.Int("bad", 0)
	assert.Error(t, err)
}

func TestClientFunc(t *testing.T) {
	parts := []*dataset.Partition{
		{Index: 0, Total: 2},
		{Index: 1, Total: 2},
	}
	fn := NewClientFunc(func() LocalModel { return &fakeModel{} }, parts,
		Defaults{LearningRate: 0.01, LocalEpochs: 1}, hclog.NewNullLogger())

	c, err := fn("1")
	require.NoError(t, err)
	assert.Equal(t, "1", c.CID())

	_, err = fn("2")
	assert.Error(t, err, "cid beyond partition count")

	_, err = fn("-1")
	assert.Error(t, err)

	_, err = fn("one")
	assert.Error(t, err)
}
