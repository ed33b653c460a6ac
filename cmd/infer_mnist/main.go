package main

import (
	"flag"
	"fmt"
	"log"

	"gorgonia.org/tensor"

	"github.com/mlnotebook/digits/internal/config"
	"github.com/mlnotebook/digits/internal/dataset"
	"github.com/mlnotebook/digits/internal/model"
	"github.com/mlnotebook/digits/internal/train"
	"github.com/mlnotebook/digits/internal/visual"
)

func main() {
	def := config.Default()
	dataDir := flag.String("data", def.DataDir, "directory containing the MNIST IDX files")
	checkpoint := flag.String("checkpoint", def.Checkpoint, "checkpoint to load")
	batchSize := flag.Int("batch", 256, "batch size for scoring")
	hidden := flag.Int("hidden", def.Hidden, "hidden layer width the checkpoint was trained with")
	samples := flag.Int("samples", 0, "max test samples to load (0 = all)")
	show := flag.Int("show", 5, "sample predictions to display")
	flag.Parse()

	testSet, err := dataset.Load(*dataDir, false, *samples)
	if err != nil {
		log.Fatalf("Failed to load MNIST test set: %v", err)
	}
	fmt.Printf("📊 %d test samples loaded\n", testSet.NumSamples())

	net, err := model.NewInference(model.Config{BatchSize: *batchSize, Hidden: *hidden})
	if err != nil {
		log.Fatalf("Failed to build net: %v", err)
	}
	defer net.Close()
	if err := net.Load(*checkpoint); err != nil {
		log.Fatalf("Failed to load checkpoint: %v", err)
	}
	fmt.Printf("💾 Loaded checkpoint %s\n", *checkpoint)

	eval, err := train.Evaluate(net, testSet)
	if err != nil {
		log.Fatalf("Evaluation failed: %v", err)
	}
	fmt.Println("\n🎯 Test set results:")
	fmt.Print(eval.Report())

	if *show > 0 {
		showPredictions(net, testSet, *hidden, *show)
	}
}

func showPredictions(scored *model.Net, testSet *dataset.Dataset, hidden, count int) {
	if count > testSet.NumSamples() {
		count = testSet.NumSamples()
	}

	inf, err := model.NewInference(model.Config{BatchSize: count, Hidden: hidden})
	if err != nil {
		log.Fatalf("Failed to build display net: %v", err)
	}
	defer inf.Close()
	if err := scored.CopyWeightsTo(inf); err != nil {
		log.Fatalf("Failed to copy weights: %v", err)
	}

	backing := make([]float64, count*dataset.ImagePixels)
	for i := 0; i < count; i++ {
		copy(backing[i*dataset.ImagePixels:(i+1)*dataset.ImagePixels], testSet.Images[i])
	}
	images := tensor.New(
		tensor.WithShape(count, dataset.ImagePixels),
		tensor.WithBacking(backing),
	)
	probs, err := inf.Predict(images)
	if err != nil {
		log.Fatalf("Failed to predict: %v", err)
	}
	data := probs.Data().([]float64)

	fmt.Println("\n🔍 Sample predictions:")
	for i := 0; i < count; i++ {
		fmt.Println(visual.RenderPrediction(
			testSet.Images[i], dataset.ImageCols,
			data[i*dataset.NumClasses:(i+1)*dataset.NumClasses],
			testSet.Labels[i],
		))
	}
}
