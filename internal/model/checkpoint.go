package model

import (
	"encoding/gob"
	"fmt"
	"os"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Save writes the net's learnable values to path as a gob-encoded map of
// parameter name to dense tensor. tensor.Dense brings its own gob support,
// so the checkpoint format is entirely the framework's.
func (n *Net) Save(path string) error {
	weights := make(map[string]*tensor.Dense, len(n.Learnables()))
	for _, node := range n.Learnables() {
		weights[node.Name()] = node.Value().(*tensor.Dense)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create checkpoint: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(weights); err != nil {
		f.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return f.Close()
}

// Load reads a checkpoint written by Save into the net's learnables. Every
// parameter must be present with a matching shape.
func (n *Net) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var weights map[string]*tensor.Dense
	if err := gob.NewDecoder(f).Decode(&weights); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}

	for _, node := range n.Learnables() {
		w, ok := weights[node.Name()]
		if !ok {
			return fmt.Errorf("checkpoint missing parameter %q", node.Name())
		}
		if !w.Shape().Eq(node.Shape()) {
			return fmt.Errorf("parameter %q shape %v, want %v", node.Name(), w.Shape(), node.Shape())
		}
		if err := gorgonia.Let(node, w); err != nil {
			return fmt.Errorf("restore %s: %w", node.Name(), err)
		}
	}
	return nil
}
