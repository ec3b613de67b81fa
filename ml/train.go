package ml

import (
	torch "github.com/wangkuiyi/gotorch"
	F "github.com/wangkuiyi/gotorch/nn/functional"

	"flock/dataset"
	"flock/util"
)

// TrainOptions are the per-round hyperparameters the orchestrator controls.
type TrainOptions struct {
	LearningRate float64
	Momentum     float64
	Epochs       int
}

// TrainStats summarizes one local training pass.
type TrainStats struct {
	Samples    int
	Loss       float32
	Throughput float64
}

// EvalStats summarizes one inference pass over the validation partition.
type EvalStats struct {
	Loss     float32
	Accuracy float32
	Samples  int
}

// Train runs local SGD over this client's share of the training archive and
// leaves the updated weights in the model. Loaders are single-pass, so each
// epoch re-creates one from the partition.
func (p *Predictor) Train(part *dataset.Partition, opts TrainOptions) (TrainStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer torch.FinishGC()

	opt := torch.SGD(opts.LearningRate, opts.Momentum, 0, 0, false)
	// The optimizer holds a native handle (plus momentum buffers once Step
	// runs); FinishGC only recycles tensors, so release it explicitly.
	defer opt.Close()
	opt.AddParameters(p.net.Parameters())

	stats := TrainStats{}
	for epoch := 0; epoch < opts.Epochs; epoch++ {
		loader, err := part.TrainLoader()
		if err != nil {
			return TrainStats{}, err
		}

		window := util.NewWindow()
		batchIdx := 0
		for loader.Scan() {
			data, label := loader.Minibatch()
			keep := part.Keep(batchIdx)
			batchIdx++
			if !keep {
				continue
			}

			n := int(data.Shape()[0])
			opt.ZeroGrad()
			pred := p.net.Forward(data.To(p.device, data.Dtype()))
			loss := F.NllLoss(pred, label.To(p.device, label.Dtype()), torch.Tensor{}, -100, "mean")
			loss.Backward()
			opt.Step()

			window.Record(n, loss.Item().(float32))
			stats.Samples += n
		}

		snap := window.Snapshot()
		stats.Loss = snap.LastLoss
		stats.Throughput = snap.SamplesPerSec
		p.logger.Info("train epoch done",
			"epoch", epoch, "loss", snap.LastLoss, "samples_per_sec", snap.SamplesPerSec)
	}
	return stats, nil
}

// Test runs inference over this client's share of the validation archive.
func (p *Predictor) Test(part *dataset.Partition) (EvalStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer torch.FinishGC()

	loader, err := part.ValLoader()
	if err != nil {
		return EvalStats{}, err
	}

	var testLoss float32
	var correct int64
	samples := 0
	batches := 0
	batchIdx := 0
	for loader.Scan() {
		data, label := loader.Minibatch()
		keep := part.Keep(batchIdx)
		batchIdx++
		if !keep {
			continue
		}

		data = data.To(p.device, data.Dtype())
		label = label.To(p.device, label.Dtype())
		output := p.net.Forward(data)
		loss := F.NllLoss(output, label, torch.Tensor{}, -100, "mean")
		pred := output.Argmax(1)
		testLoss += loss.Item().(float32)
		correct += pred.Eq(label.View(pred.Shape()...)).Sum(map[string]interface{}{"dim": 0, "keepDim": false}).Item().(int64)
		samples += int(label.Shape()[0])
		batches++
	}
	if batches == 0 {
		return EvalStats{}, nil
	}

	stats := EvalStats{
		Loss:     testLoss / float32(batches),
		Accuracy: float32(correct) / float32(samples),
		Samples:  samples,
	}
	p.logger.Info("eval done", "loss", stats.Loss, "accuracy", stats.Accuracy, "samples", samples)
	return stats, nil
}
