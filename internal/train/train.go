// Package train owns the training loop: it feeds mini-batches through the
// model, lets the framework backpropagate, steps the SGD solver, and keeps
// per-epoch statistics.
package train

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"gonum.org/v1/gonum/stat"
	"gorgonia.org/gorgonia"

	"github.com/mlnotebook/digits/internal/config"
	"github.com/mlnotebook/digits/internal/dataset"
	"github.com/mlnotebook/digits/internal/model"
)

// EpochStats records the metrics of one pass over the training data.
type EpochStats struct {
	Epoch        int
	TrainLoss    float64 // mean cross-entropy over the epoch's batches
	TrainLossStd float64
	TrainAcc     float64
	ValLoss      float64
	ValAcc       float64
}

// History collects per-epoch statistics in order.
type History struct {
	Epochs []EpochStats
}

// Trainer wires a training net, its inference twin, and a plain SGD solver
// into the classic loop: forward, loss, backward, step.
type Trainer struct {
	// Out receives the per-epoch progress lines. Defaults to stdout.
	Out io.Writer

	cfg    config.Config
	net    *model.Net
	inf    *model.Net
	solver gorgonia.Solver
	rng    *rand.Rand
}

// New builds a trainer from the configuration. The parameter update is
// gorgonia's vanilla solver, i.e. the plain SGD rule param -= lr * grad.
func New(cfg config.Config) (*Trainer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	mcfg := model.Config{BatchSize: cfg.BatchSize, Hidden: cfg.Hidden}
	net, err := model.New(mcfg)
	if err != nil {
		return nil, fmt.Errorf("build training net: %w", err)
	}
	inf, err := model.NewInference(mcfg)
	if err != nil {
		net.Close()
		return nil, fmt.Errorf("build inference net: %w", err)
	}
	return &Trainer{
		Out:    os.Stdout,
		cfg:    cfg,
		net:    net,
		inf:    inf,
		solver: gorgonia.NewVanillaSolver(gorgonia.WithLearnRate(cfg.LearnRate)),
		rng:    rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

// Net returns the training net, e.g. for checkpointing after Run.
func (t *Trainer) Net() *model.Net {
	return t.net
}

// Close releases both nets.
func (t *Trainer) Close() error {
	err := t.net.Close()
	if cerr := t.inf.Close(); err == nil {
		err = cerr
	}
	return err
}

// Run trains for the configured number of epochs. Each epoch reshuffles the
// training data, fits every full batch, and evaluates on valSet (which may
// be empty). The returned history has one entry per epoch.
func (t *Trainer) Run(trainSet, valSet *dataset.Dataset) (*History, error) {
	history := &History{Epochs: make([]EpochStats, 0, t.cfg.Epochs)}

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		// The graph is compiled for a fixed batch shape, so the
		// trailing short batch is dropped.
		batches, err := trainSet.Batches(t.cfg.BatchSize, true, t.rng, true)
		if err != nil {
			return nil, fmt.Errorf("epoch %d: batch training data: %w", epoch, err)
		}
		if len(batches) == 0 {
			return nil, fmt.Errorf("training set too small for batch size %d", t.cfg.BatchSize)
		}

		losses := make([]float64, 0, len(batches))
		correct, seen := 0, 0
		for _, b := range batches {
			loss, err := t.net.FitBatch(b.Images, b.Targets, t.solver)
			if err != nil {
				return nil, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			losses = append(losses, loss)
			correct += countCorrect(t.net.LastProbs().Data().([]float64), b.Labels)
			seen += b.Size()
		}

		stats := EpochStats{
			Epoch:     epoch,
			TrainLoss: stat.Mean(losses, nil),
			TrainAcc:  float64(correct) / float64(seen),
		}
		if len(losses) > 1 {
			stats.TrainLossStd = stat.StdDev(losses, nil)
		}

		if valSet.NumSamples() > 0 {
			eval, err := t.Evaluate(valSet)
			if err != nil {
				return nil, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			stats.ValLoss = eval.Loss
			stats.ValAcc = eval.Accuracy
			fmt.Fprintf(t.Out, "Epoch %2d/%d: loss=%.4f (±%.4f), acc=%.2f%%, val_loss=%.4f, val_acc=%.2f%%\n",
				epoch, t.cfg.Epochs, stats.TrainLoss, stats.TrainLossStd,
				stats.TrainAcc*100, stats.ValLoss, stats.ValAcc*100)
		} else {
			fmt.Fprintf(t.Out, "Epoch %2d/%d: loss=%.4f (±%.4f), acc=%.2f%%\n",
				epoch, t.cfg.Epochs, stats.TrainLoss, stats.TrainLossStd, stats.TrainAcc*100)
		}

		history.Epochs = append(history.Epochs, stats)
	}
	return history, nil
}

// Evaluate scores ds with the current weights (copied into the inference
// twin first).
func (t *Trainer) Evaluate(ds *dataset.Dataset) (*Evaluation, error) {
	if err := t.net.CopyWeightsTo(t.inf); err != nil {
		return nil, fmt.Errorf("sync inference weights: %w", err)
	}
	return Evaluate(t.inf, ds)
}
