package ml

import (
	"sync"

	"github.com/hashicorp/go-hclog"
	torch "github.com/wangkuiyi/gotorch"
	"github.com/wangkuiyi/gotorch/nn"
	F "github.com/wangkuiyi/gotorch/nn/functional"
)

// PredictorModule is the MNIST classifier shared by every client: a
// three-layer MLP with log-softmax output, so the loss is plain NLL.
type PredictorModule struct {
	nn.Module
	FC1, FC2, FC3 *nn.LinearModule
}

func newPredictorModule() *PredictorModule {
	m := &PredictorModule{
		FC1: nn.Linear(28*28, 512, true),
		FC2: nn.Linear(512, 512, true),
		FC3: nn.Linear(512, 10, true),
	}
	m.Init(m)
	return m
}

func (m *PredictorModule) Forward(x torch.Tensor) torch.Tensor {
	x = x.View(-1, 28*28)
	x = m.FC1.Forward(x).Tanh()
	x = m.FC2.Forward(x).Tanh()
	x = m.FC3.Forward(x)
	return F.LogSoftmax(x, 1)
}

// Predictor wraps the module with its device placement. The mutex keeps
// parameter export/import and optimization steps from interleaving when the
// diagnostics listener reads while a round is running.
type Predictor struct {
	net    *PredictorModule
	device torch.Device
	logger hclog.Logger
	mu     sync.Mutex
}

// NewPredictor builds a randomly initialized model on the given device.
func NewPredictor(device torch.Device, logger hclog.Logger) *Predictor {
	net := newPredictorModule()
	net.To(device)
	return &Predictor{net: net, device: device, logger: logger}
}

// Device returns the CUDA device when one is visible, otherwise the CPU.
func Device() torch.Device {
	if torch.IsCUDAAvailable() {
		return torch.NewDevice("cuda")
	}
	return torch.NewDevice("cpu")
}
