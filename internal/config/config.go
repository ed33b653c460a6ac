// Package config holds the training configuration and its YAML loading.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all knobs of the training walkthrough. Zero values are
// filled by Default; Validate rejects anything the pipeline cannot run
// with.
type Config struct {
	DataDir    string  `yaml:"data_dir"`    // directory holding the IDX files
	Download   bool    `yaml:"download"`    // fetch missing archives from the mirror
	Synthetic  bool    `yaml:"synthetic"`   // use embedded fake digits instead of MNIST
	MaxSamples int     `yaml:"max_samples"` // cap on loaded samples, 0 = all
	ValSplit   float64 `yaml:"val_split"`   // fraction of training data held out
	BatchSize  int     `yaml:"batch_size"`
	Epochs     int     `yaml:"epochs"`
	LearnRate  float64 `yaml:"learning_rate"`
	Hidden     int     `yaml:"hidden"` // hidden layer width
	Seed       int64   `yaml:"seed"`   // shuffle seed
	Checkpoint string  `yaml:"checkpoint"`
}

// Default returns the configuration the walkthrough ships with.
func Default() Config {
	return Config{
		DataDir:    "./data",
		ValSplit:   0.2,
		BatchSize:  32,
		Epochs:     10,
		LearnRate:  0.1,
		Hidden:     128,
		Seed:       42,
		Checkpoint: "digits-mlp.ckpt",
	}
}

// Load reads a YAML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every field the pipeline depends on.
func (c Config) Validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0, got %d", c.BatchSize)
	}
	if c.LearnRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0, got %g", c.LearnRate)
	}
	if c.ValSplit < 0 || c.ValSplit >= 1 {
		return fmt.Errorf("val_split must be in [0, 1), got %g", c.ValSplit)
	}
	if c.Hidden <= 0 {
		return fmt.Errorf("hidden must be > 0, got %d", c.Hidden)
	}
	if c.MaxSamples < 0 {
		return fmt.Errorf("max_samples must be >= 0, got %d", c.MaxSamples)
	}
	if !c.Synthetic && c.DataDir == "" {
		return fmt.Errorf("data_dir must be set unless synthetic data is used")
	}
	return nil
}
