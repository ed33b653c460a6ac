package train_test

import (
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlnotebook/digits/internal/config"
	"github.com/mlnotebook/digits/internal/dataset"
	"github.com/mlnotebook/digits/internal/model"
	"github.com/mlnotebook/digits/internal/train"
)

func testConfig() config.Config {
	return config.Config{
		Synthetic: true,
		ValSplit:  0.2,
		BatchSize: 10,
		Epochs:    6,
		LearnRate: 0.5,
		Hidden:    32,
		Seed:      1,
	}
}

func TestRunReducesLoss(t *testing.T) {
	cfg := testConfig()
	trainer, err := train.New(cfg)
	require.NoError(t, err)
	defer trainer.Close()
	trainer.Out = io.Discard

	trainSet, valSet := dataset.Synthetic(50).Split(cfg.ValSplit)
	history, err := trainer.Run(trainSet, valSet)
	require.NoError(t, err)
	require.Len(t, history.Epochs, cfg.Epochs)

	first := history.Epochs[0]
	last := history.Epochs[len(history.Epochs)-1]
	assert.Less(t, last.TrainLoss, first.TrainLoss)
	for i, e := range history.Epochs {
		assert.Equal(t, i+1, e.Epoch)
		assert.False(t, math.IsNaN(e.TrainLoss), "epoch %d loss is NaN", e.Epoch)
		assert.GreaterOrEqual(t, e.TrainAcc, 0.0)
		assert.LessOrEqual(t, e.TrainAcc, 1.0)
		assert.GreaterOrEqual(t, e.ValAcc, 0.0)
		assert.LessOrEqual(t, e.ValAcc, 1.0)
	}
}

func TestRunProgressOutput(t *testing.T) {
	cfg := testConfig()
	cfg.Epochs = 2
	trainer, err := train.New(cfg)
	require.NoError(t, err)
	defer trainer.Close()

	var out strings.Builder
	trainer.Out = &out

	trainSet, valSet := dataset.Synthetic(50).Split(cfg.ValSplit)
	_, err = trainer.Run(trainSet, valSet)
	require.NoError(t, err)

	lines := strings.Count(out.String(), "\n")
	assert.Equal(t, cfg.Epochs, lines)
	assert.Contains(t, out.String(), "Epoch  1/2")
	assert.Contains(t, out.String(), "val_acc")
}

func TestRunWithoutValidationSet(t *testing.T) {
	cfg := testConfig()
	cfg.Epochs = 2
	cfg.ValSplit = 0
	trainer, err := train.New(cfg)
	require.NoError(t, err)
	defer trainer.Close()
	trainer.Out = io.Discard

	trainSet, valSet := dataset.Synthetic(40).Split(0)
	history, err := trainer.Run(trainSet, valSet)
	require.NoError(t, err)
	for _, e := range history.Epochs {
		assert.Zero(t, e.ValLoss)
		assert.Zero(t, e.ValAcc)
	}
}

func TestRunTrainingSetTooSmall(t *testing.T) {
	cfg := testConfig()
	trainer, err := train.New(cfg)
	require.NoError(t, err)
	defer trainer.Close()
	trainer.Out = io.Discard

	_, err = trainer.Run(dataset.Synthetic(5), dataset.Synthetic(0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Epochs = 0
	_, err := train.New(cfg)
	assert.Error(t, err)
}

func TestEvaluateMetrics(t *testing.T) {
	cfg := testConfig()
	cfg.Epochs = 10
	trainer, err := train.New(cfg)
	require.NoError(t, err)
	defer trainer.Close()
	trainer.Out = io.Discard

	trainSet, valSet := dataset.Synthetic(50).Split(cfg.ValSplit)
	_, err = trainer.Run(trainSet, valSet)
	require.NoError(t, err)

	eval, err := trainer.Evaluate(valSet)
	require.NoError(t, err)

	assert.Equal(t, valSet.NumSamples(), eval.Samples)
	assert.False(t, math.IsNaN(eval.Loss))
	assert.GreaterOrEqual(t, eval.Accuracy, 0.0)
	assert.LessOrEqual(t, eval.Accuracy, 1.0)

	// The confusion matrix must account for every sample exactly once,
	// and its diagonal must agree with the accuracy.
	total, diagonal := 0.0, 0.0
	for i := 0; i < dataset.NumClasses; i++ {
		for j := 0; j < dataset.NumClasses; j++ {
			total += eval.Confusion.At(i, j)
		}
		diagonal += eval.Confusion.At(i, i)
	}
	assert.Equal(t, float64(eval.Samples), total)
	assert.InDelta(t, eval.Accuracy, diagonal/total, 1e-12)
}

func TestEvaluatePadsShortBatch(t *testing.T) {
	net, err := model.NewInference(model.Config{BatchSize: 5, Hidden: 16})
	require.NoError(t, err)
	defer net.Close()

	// 7 samples against a batch size of 5: the second batch is padded,
	// but every sample must be scored exactly once.
	eval, err := train.Evaluate(net, dataset.Synthetic(7))
	require.NoError(t, err)
	assert.Equal(t, 7, eval.Samples)

	total := 0.0
	for i := 0; i < dataset.NumClasses; i++ {
		for j := 0; j < dataset.NumClasses; j++ {
			total += eval.Confusion.At(i, j)
		}
	}
	assert.Equal(t, 7.0, total)
}

func TestEvaluateEmptyDataset(t *testing.T) {
	net, err := model.NewInference(model.Config{BatchSize: 5})
	require.NoError(t, err)
	defer net.Close()

	_, err = train.Evaluate(net, &dataset.Dataset{})
	assert.Error(t, err)
}

func TestEvaluationReport(t *testing.T) {
	net, err := model.NewInference(model.Config{BatchSize: 5, Hidden: 16})
	require.NoError(t, err)
	defer net.Close()

	eval, err := train.Evaluate(net, dataset.Synthetic(10))
	require.NoError(t, err)

	report := eval.Report()
	assert.Contains(t, report, "accuracy")
	assert.Contains(t, report, "confusion matrix")
	assert.Contains(t, report, "samples:  10")
}
