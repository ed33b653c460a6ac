package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"gorgonia.org/tensor"

	"github.com/mlnotebook/digits/internal/config"
	"github.com/mlnotebook/digits/internal/dataset"
	"github.com/mlnotebook/digits/internal/model"
	"github.com/mlnotebook/digits/internal/train"
	"github.com/mlnotebook/digits/internal/visual"
)

func main() {
	def := config.Default()
	configPath := flag.String("config", "", "YAML config file (flags override its values)")
	dataDir := flag.String("data", def.DataDir, "directory containing the MNIST IDX files")
	download := flag.Bool("download", def.Download, "download missing archives from the mirror")
	synthetic := flag.Bool("synthetic", def.Synthetic, "use embedded synthetic digits instead of MNIST")
	samples := flag.Int("samples", def.MaxSamples, "max samples to load (0 = all)")
	valSplit := flag.Float64("val", def.ValSplit, "fraction of data held out for validation")
	batchSize := flag.Int("batch", def.BatchSize, "batch size")
	epochs := flag.Int("epochs", def.Epochs, "training epochs")
	lr := flag.Float64("lr", def.LearnRate, "SGD learning rate")
	hidden := flag.Int("hidden", def.Hidden, "hidden layer width")
	seed := flag.Int64("seed", def.Seed, "shuffle seed")
	checkpoint := flag.String("checkpoint", def.Checkpoint, "checkpoint output path (empty = don't save)")
	show := flag.Int("show", 3, "sample predictions to display after training")
	flag.Parse()

	cfg := def
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "data":
			cfg.DataDir = *dataDir
		case "download":
			cfg.Download = *download
		case "synthetic":
			cfg.Synthetic = *synthetic
		case "samples":
			cfg.MaxSamples = *samples
		case "val":
			cfg.ValSplit = *valSplit
		case "batch":
			cfg.BatchSize = *batchSize
		case "epochs":
			cfg.Epochs = *epochs
		case "lr":
			cfg.LearnRate = *lr
		case "hidden":
			cfg.Hidden = *hidden
		case "seed":
			cfg.Seed = *seed
		case "checkpoint":
			cfg.Checkpoint = *checkpoint
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	fmt.Println("🚀 digits - MNIST feed-forward training walkthrough")

	all := loadData(cfg)
	trainSet, valSet := all.Split(cfg.ValSplit)
	fmt.Printf("📊 %d samples loaded (train: %d, val: %d)\n",
		all.NumSamples(), trainSet.NumSamples(), valSet.NumSamples())

	fmt.Printf("🧠 Model: %d → %d → %d (ReLU hidden, softmax output)\n",
		dataset.ImagePixels, cfg.Hidden, dataset.NumClasses)
	fmt.Printf("⚙️  SGD lr=%g, batch=%d, epochs=%d\n", cfg.LearnRate, cfg.BatchSize, cfg.Epochs)

	trainer, err := train.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build trainer: %v", err)
	}
	defer trainer.Close()

	fmt.Println("🎓 Training...")
	if _, err := trainer.Run(trainSet, valSet); err != nil {
		log.Fatalf("Training failed: %v", err)
	}
	fmt.Println("✅ Training complete")

	if valSet.NumSamples() > 0 {
		eval, err := trainer.Evaluate(valSet)
		if err != nil {
			log.Fatalf("Evaluation failed: %v", err)
		}
		fmt.Println("\n🎯 Final validation results:")
		fmt.Print(eval.Report())
	}

	if cfg.Checkpoint != "" {
		if err := trainer.Net().Save(cfg.Checkpoint); err != nil {
			log.Fatalf("Failed to save checkpoint: %v", err)
		}
		fmt.Printf("💾 Checkpoint saved to %s\n", cfg.Checkpoint)
	}

	if *show > 0 && valSet.NumSamples() > 0 {
		showPredictions(trainer.Net(), valSet, cfg.Hidden, *show)
	}
}

// loadData picks the data source: embedded synthetic digits, or the IDX
// files (optionally downloaded first).
func loadData(cfg config.Config) *dataset.Dataset {
	if cfg.Synthetic {
		n := cfg.MaxSamples
		if n == 0 {
			n = 2000
		}
		fmt.Println("📊 Using synthetic digits (embedded patterns)")
		return dataset.Synthetic(n)
	}

	if cfg.Download {
		fmt.Printf("📥 Checking archives in %s\n", cfg.DataDir)
		if err := dataset.Download(cfg.DataDir); err != nil {
			log.Fatalf("Failed to download MNIST: %v", err)
		}
	}

	all, err := dataset.Load(cfg.DataDir, true, cfg.MaxSamples)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("\n❌ MNIST data files not found!")
			fmt.Println("\nEither rerun with -download, or fetch the archives yourself:")
			fmt.Printf("  1. mkdir -p %s\n", cfg.DataDir)
			fmt.Printf("  2. Download from %s\n", dataset.MirrorURL)
			fmt.Println("     - train-images-idx3-ubyte.gz")
			fmt.Println("     - train-labels-idx1-ubyte.gz")
			fmt.Println("\nOr run with -synthetic to use embedded test data.")
			os.Exit(1)
		}
		log.Fatalf("Failed to load MNIST: %v", err)
	}
	return all
}

// showPredictions renders the first few validation samples with the class
// probabilities the trained net assigns them.
func showPredictions(trained *model.Net, valSet *dataset.Dataset, hidden, count int) {
	if count > valSet.NumSamples() {
		count = valSet.NumSamples()
	}

	inf, err := model.NewInference(model.Config{BatchSize: count, Hidden: hidden})
	if err != nil {
		log.Fatalf("Failed to build display net: %v", err)
	}
	defer inf.Close()
	if err := trained.CopyWeightsTo(inf); err != nil {
		log.Fatalf("Failed to copy weights: %v", err)
	}

	backing := make([]float64, count*dataset.ImagePixels)
	for i := 0; i < count; i++ {
		copy(backing[i*dataset.ImagePixels:(i+1)*dataset.ImagePixels], valSet.Images[i])
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
			valSet.Images[i], dataset.ImageCols,
			data[i*dataset.NumClasses:(i+1)*dataset.NumClasses],
			valSet.Labels[i],
		))
	}
}
