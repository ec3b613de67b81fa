package ml

import (
	"fmt"
	"sort"

	torch "github.com/wangkuiyi/gotorch"
)

// Parameter is one named weight tensor. Parameters travel between client and
// orchestrator as an ordered list so both sides agree on layer identity
// without relying on map iteration order.
type Parameter struct {
	Name   string
	Tensor torch.Tensor
}

// Parameters mirrors the module state dict, ordered by sorted key.
type Parameters []Parameter

// Parameters exports the current weights on the CPU, ready for the wire.
func (p *Predictor) Parameters() Parameters {
	p.mu.Lock()
	defer p.mu.Unlock()

	states := p.net.StateDict()
	cpu := torch.NewDevice("cpu")
	params := make(Parameters, 0, len(states))
	for _, k := range sortedKeys(states) {
		t := states[k]
		params = append(params, Parameter{Name: k, Tensor: t.To(cpu, t.Dtype())})
	}
	return params
}

// SetParameters loads weights received from the orchestrator into the model.
// The load is strict: the parameter count, every name, and every shape must
// match the module state dict, or the round fails.
func (p *Predictor) SetParameters(params Parameters) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	states := p.net.StateDict()
	if len(params) != len(states) {
		return fmt.Errorf("ml: got %d parameters, model has %d", len(params), len(states))
	}
	incoming := make(map[string]torch.Tensor, len(params))
	for _, param := range params {
		current, ok := states[param.Name]
		if !ok {
			return fmt.Errorf("ml: unknown parameter %q", param.Name)
		}
		if !shapeEqual(param.Tensor.Shape(), current.Shape()) {
			return fmt.Errorf("ml: shape mismatch for %q: got %v, want %v",
				param.Name, param.Tensor.Shape(), current.Shape())
		}
		incoming[param.Name] = param.Tensor
	}
	if err := p.net.SetStateDict(incoming); err != nil {
		return err
	}
	p.net.To(p.device)
	return nil
}

func sortedKeys(states map[string]torch.Tensor) []string {
	keys := make([]string, 0, len(states))
	for k := range states {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func shapeEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
