package dataset

import (
	"fmt"
	"math/rand"

	"gorgonia.org/tensor"
)

// Batch is one mini-batch ready to feed into the framework.
//
// Images has shape [n, ImagePixels], Targets is the one-hot encoding of
// Labels with shape [n, NumClasses]. Labels keeps the raw class indices for
// metric computation.
type Batch struct {
	Images  *tensor.Dense
	Targets *tensor.Dense
	Labels  []int
}

// Size returns the number of samples in the batch.
func (b *Batch) Size() int {
	return len(b.Labels)
}

// Batches cuts the dataset into mini-batches of batchSize samples.
//
// With shuffle, sample order is permuted (Fisher-Yates via rng) before
// slicing; rng may be nil when shuffle is false. With dropLast, a trailing
// batch shorter than batchSize is discarded, which training wants because
// the framework graph is compiled for a fixed batch shape.
//
// Every batch copies its samples into freshly backed tensors, so batches
// never alias the dataset.
func (d *Dataset) Batches(batchSize int, shuffle bool, rng *rand.Rand, dropLast bool) ([]*Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0, got %d", batchSize)
	}
	numSamples := d.NumSamples()
	if numSamples != len(d.Labels) {
		return nil, fmt.Errorf("images and labels length mismatch: %d vs %d", numSamples, len(d.Labels))
	}
	if shuffle && rng == nil {
		return nil, fmt.Errorf("shuffle requested without a rand source")
	}

	indices := make([]int, numSamples)
	for i := range indices {
		indices[i] = i
	}
	if shuffle {
		rng.Shuffle(numSamples, func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	batches := make([]*Batch, 0, (numSamples+batchSize-1)/batchSize)
	for start := 0; start < numSamples; start += batchSize {
		end := start + batchSize
		if end > numSamples {
			if dropLast {
				break
			}
			end = numSamples
		}
		n := end - start

		imageBacking := make([]float64, n*ImagePixels)
		targetBacking := make([]float64, n*NumClasses)
		labels := make([]int, n)

		for row := 0; row < n; row++ {
			idx := indices[start+row]
			copy(imageBacking[row*ImagePixels:(row+1)*ImagePixels], d.Images[idx])
			label := d.Labels[idx]
			targetBacking[row*NumClasses+label] = 1
			labels[row] = label
		}

		batches = append(batches, &Batch{
			Images: tensor.New(
				tensor.WithShape(n, ImagePixels),
				tensor.WithBacking(imageBacking),
			),
			Targets: tensor.New(
				tensor.WithShape(n, NumClasses),
				tensor.WithBacking(targetBacking),
			),
			Labels: labels,
		})
	}
	return batches, nil
}
