package dataset

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	torch "github.com/wangkuiyi/gotorch"
	"github.com/wangkuiyi/gotorch/vision/imageloader"
	"github.com/wangkuiyi/gotorch/vision/transforms"
)

// loaderBufSize matches the minibatch size; the loader prefetches one batch.
const loaderBufSize = 64

var mnistMean = []float32{0.1307}
var mnistStd = []float32{0.3081}

// Partition binds one client to its share of the shared MNIST archives.
// Every client builds its loaders from the same archives with the same seed,
// so sample order is identical everywhere and minibatch ownership can be
// decided locally from the batch index alone.
type Partition struct {
	Index     int
	Total     int
	BatchSize int
	TrainTgz  string
	ValTgz    string
	Vocab     map[string]int

	// cumulative share upper bounds in (0,1]; nil means uniform round-robin
	shares []float64
	seed   int64
}

// Prepare builds one partition per client over the given train/validation
// archives. With uniform=true minibatches are dealt round-robin; otherwise
// each client receives a deterministic, seed-derived weighted share.
func Prepare(trainTgz, valTgz string, numClients, batchSize int, uniform bool, seed int64) ([]*Partition, error) {
	if numClients <= 0 {
		return nil, fmt.Errorf("dataset: numClients must be > 0, got %d", numClients)
	}
	if batchSize <= 0 {
		return nil, fmt.Errorf("dataset: batchSize must be > 0, got %d", batchSize)
	}

	vocab, err := imageloader.BuildLabelVocabularyFromTgz(trainTgz)
	if err != nil {
		return nil, fmt.Errorf("dataset: build label vocabulary: %w", err)
	}

	var shares []float64
	if !uniform {
		shares = weightedShares(numClients, seed)
	}

	parts := make([]*Partition, numClients)
	for i := 0; i < numClients; i++ {
		parts[i] = &Partition{
			Index:     i,
			Total:     numClients,
			BatchSize: batchSize,
			TrainTgz:  trainTgz,
			ValTgz:    valTgz,
			Vocab:     vocab,
			shares:    shares,
			seed:      seed,
		}
	}
	return parts, nil
}

// Keep reports whether the minibatch at batchIdx belongs to this client.
// It is a pure function of (batchIdx, client index, share table).
func (p *Partition) Keep(batchIdx int) bool {
	if p.shares == nil {
		return batchIdx%p.Total == p.Index
	}
	return assign(p.shares, batchPoint(p.seed, batchIdx)) == p.Index
}

// TrainLoader opens a fresh single-pass loader over the training archive.
func (p *Partition) TrainLoader() (*imageloader.ImageLoader, error) {
	return p.newLoader(p.TrainTgz)
}

// ValLoader opens a fresh single-pass loader over the validation archive.
func (p *Partition) ValLoader() (*imageloader.ImageLoader, error) {
	return p.newLoader(p.ValTgz)
}

func (p *Partition) newLoader(tgz string) (*imageloader.ImageLoader, error) {
	trans := transforms.Compose(
		transforms.ToTensor(),
		transforms.Normalize(mnistMean, mnistStd))
	loader, err := imageloader.New(tgz, p.Vocab, trans, p.BatchSize, loaderBufSize,
		p.seed, torch.IsCUDAAvailable(), "gray")
	if err != nil {
		return nil, fmt.Errorf("dataset: open loader for %s: %w", tgz, err)
	}
	return loader, nil
}

// weightedShares derives a cumulative share table from the seed. Weights are
// drawn from [0.5, 1.5) so no client starves, then normalized.
func weightedShares(numClients int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	weights := make([]float64, numClients)
	sum := 0.0
	for i := range weights {
		weights[i] = 0.5 + rng.Float64()
		sum += weights[i]
	}
	shares := make([]float64, numClients)
	acc := 0.0
	for i, w := range weights {
		acc += w / sum
		shares[i] = acc
	}
	shares[numClients-1] = 1.0
	return shares
}

// assign maps a point in [0,1) to the first share bucket containing it.
func assign(shares []float64, u float64) int {
	for i, upper := range shares {
		if u < upper {
			return i
		}
	}
	return len(shares) - 1
}

// batchPoint hashes (seed, batchIdx) to [0,1).
func batchPoint(seed int64, batchIdx int) float64 {
	h := fnv.New64a()
	var buf [16]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(seed >> (8 * i))
		buf[8+i] = byte(batchIdx >> (8 * i))
	}
	h.Write(buf[:])
	return float64(h.Sum64()>>11) / float64(1<<53)
}
