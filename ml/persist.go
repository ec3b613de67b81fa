package ml

import (
	"encoding/gob"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	torch "github.com/wangkuiyi/gotorch"
)

// Save writes the state dict to path as a gob checkpoint. Tensors are moved
// to the CPU first so the checkpoint loads on machines without a GPU.
func (p *Predictor) Save(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ml: create checkpoint: %w", err)
	}
	defer f.Close()

	cpu := torch.NewDevice("cpu")
	p.net.To(cpu)
	err = gob.NewEncoder(f).Encode(p.net.StateDict())
	p.net.To(p.device)
	if err != nil {
		return fmt.Errorf("ml: encode checkpoint: %w", err)
	}
	return nil
}

// Load restores a gob checkpoint written by Save into a fresh model.
func Load(path string, device torch.Device, logger hclog.Logger) (*Predictor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ml: open checkpoint: %w", err)
	}
	defer f.Close()

	states := make(map[string]torch.Tensor)
	if err := gob.NewDecoder(f).Decode(&states); err != nil {
		return nil, fmt.Errorf("ml: decode checkpoint: %w", err)
	}

	p := NewPredictor(device, logger)
	if err := p.net.SetStateDict(states); err != nil {
		return nil, fmt.Errorf("ml: checkpoint does not match model: %w", err)
	}
	p.net.To(device)
	return p, nil
}
