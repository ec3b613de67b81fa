package ml

import (
	"fmt"

	"github.com/wangkuiyi/gotorch/vision/transforms"
	"gocv.io/x/gocv"
)

// PredictFile classifies a single grayscale image file with the current
// weights and returns the predicted class index.
func (p *Predictor) PredictFile(path string) (int64, error) {
	img := gocv.IMRead(path, gocv.IMReadGrayScale)
	if img.Empty() {
		return 0, fmt.Errorf("ml: cannot read image %q", path)
	}
	defer img.Close()

	t := transforms.ToTensor().Run(img)
	n := transforms.Normalize([]float32{0.1307}, []float32{0.3081}).Run(t)

	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.net.Forward(n.To(p.device, n.Dtype()))
	return out.Argmax().Item().(int64), nil
}
