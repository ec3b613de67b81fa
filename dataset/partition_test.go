package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrepareRejectsBadArguments(t *testing.T) {
	_, err := Prepare("train.tar.gz", "val.tar.gz", 0, 64, true, 1)
	require.Error(t, err)

	_, err = Prepare("train.tar.gz", "val.tar.gz", 3, 0, true, 1)
	require.Error(t, err)
}

func TestKeepUniformRoundRobin(t *testing.T) {
	const numClients = 4
	parts := make([]*Partition, numClients)
	for i := range parts {
		parts[i] = &Partition{Index: i, Total: numClients}
	}

	// Every batch index is owned by exactly one client.
	for batch := 0; batch < 100; batch++ {
		owners := 0
		for _, p := range parts {
			if p.Keep(batch) {
				owners++
			}
		}
		assert.Equal(t, 1, owners, "batch %d", batch)
	}

	// Round-robin: client i owns batches congruent to i.
	assert.True(t, parts[2].Keep(2))
	assert.True(t, parts[2].Keep(6))
	assert.False(t, parts[2].Keep(3))
}

func TestKeepWeightedIsDisjointAndExhaustive(t *testing.T) {
	const numClients = 5
	const seed = 42
	shares := weightedShares(numClients, seed)

	parts := make([]*Partition, numClients)
	for i := range parts {
		parts[i] = &Partition{Index: i, Total: numClients, shares: shares, seed: seed}
	}

	counts := make([]int, numClients)
	for batch := 0; batch < 2000; batch++ {
		owners := 0
		for i, p := range parts {
			if p.Keep(batch) {
				owners++
				counts[i]++
			}
		}
		require.Equal(t, 1, owners, "batch %d", batch)
	}

	// Weights are drawn from [0.5, 1.5), so no client should starve.
	for i, c := range counts {
		assert.Greater(t, c, 0, "client %d received no batches", i)
	}
}

func TestKeepDeterministicAcrossClients(t *testing.T) {
	a := &Partition{Index: 1, Total: 3, shares: weightedShares(3, 7), seed: 7}
	b := &Partition{Index: 1, Total: 3, shares: weightedShares(3, 7), seed: 7}

	for batch := 0; batch < 500; batch++ {
		assert.Equal(t, a.Keep(batch), b.Keep(batch), "batch %d", batch)
	}
}

func TestWeightedShares(t *testing.T) {
	shares := weightedShares(4, 99)
	require.Len(t, shares, 4)

	// Strictly increasing, ending exactly at 1.
	prev := 0.0
	for _, s := range shares {
		assert.Greater(t, s, prev)
		prev = s
	}
	assert.Equal(t, 1.0, shares[3])

	// Same seed, same table.
	assert.Equal(t, shares, weightedShares(4, 99))
}

func TestBatchPointRange(t *testing.T) {
	for batch := 0; batch < 1000; batch++ {
		u := batchPoint(123, batch)
		assert.GreaterOrEqual(t, u, 0.0)
		assert.Less(t, u, 1.0)
	}
}
