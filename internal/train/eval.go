package train

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/mlnotebook/digits/internal/dataset"
	"github.com/mlnotebook/digits/internal/model"
)

// Evaluation holds the metrics of one scoring pass over a dataset.
type Evaluation struct {
	Loss      float64    // mean cross-entropy
	Accuracy  float64    // fraction of correct argmax predictions
	Confusion *mat.Dense // rows = actual class, cols = predicted class
	Samples   int
}

// Evaluate scores every sample of ds with an inference net.
//
// The net's graph is fixed to its batch size, so the final short batch is
// padded by repeating the last sample; padded rows are excluded from the
// metrics, and every real sample is counted exactly once.
func Evaluate(net *model.Net, ds *dataset.Dataset) (*Evaluation, error) {
	numSamples := ds.NumSamples()
	if numSamples == 0 {
		return nil, fmt.Errorf("cannot evaluate an empty dataset")
	}

	cfg := net.Config()
	confusion := mat.NewDense(dataset.NumClasses, dataset.NumClasses, nil)
	var lossSum float64
	correct := 0

	for start := 0; start < numSamples; start += cfg.BatchSize {
		valid := numSamples - start
		if valid > cfg.BatchSize {
			valid = cfg.BatchSize
		}

		backing := make([]float64, cfg.BatchSize*cfg.Inputs)
		for row := 0; row < cfg.BatchSize; row++ {
			idx := start + row
			if idx >= numSamples {
				idx = numSamples - 1 // pad with the last sample
			}
			copy(backing[row*cfg.Inputs:(row+1)*cfg.Inputs], ds.Images[idx])
		}
		images := tensor.New(
			tensor.WithShape(cfg.BatchSize, cfg.Inputs),
			tensor.WithBacking(backing),
		)

		probs, err := net.Predict(images)
		if err != nil {
			return nil, fmt.Errorf("predict batch at %d: %w", start, err)
		}
		data := probs.Data().([]float64)

		for row := 0; row < valid; row++ {
			label := ds.Labels[start+row]
			rowProbs := data[row*cfg.Classes : (row+1)*cfg.Classes]
			pred := argmax(rowProbs)
			if pred == label {
				correct++
			}
			confusion.Set(label, pred, confusion.At(label, pred)+1)
			lossSum += -math.Log(rowProbs[label] + model.LogEpsilon)
		}
	}

	return &Evaluation{
		Loss:      lossSum / float64(numSamples),
		Accuracy:  float64(correct) / float64(numSamples),
		Confusion: confusion,
		Samples:   numSamples,
	}, nil
}

// Report renders the evaluation for the terminal, confusion matrix included.
func (e *Evaluation) Report() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "samples:  %d\n", e.Samples)
	fmt.Fprintf(&sb, "loss:     %.4f\n", e.Loss)
	fmt.Fprintf(&sb, "accuracy: %.2f%%\n", e.Accuracy*100)
	fmt.Fprintf(&sb, "confusion matrix (rows = actual, cols = predicted):\n")
	fmt.Fprintf(&sb, "%v\n", mat.Formatted(e.Confusion, mat.Prefix(""), mat.Squeeze()))
	return sb.String()
}

func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func countCorrect(probs []float64, labels []int) int {
	classes := len(probs) / len(labels)
	correct := 0
	for i, label := range labels {
		if argmax(probs[i*classes:(i+1)*classes]) == label {
			correct++
		}
	}
	return correct
}
