// Package model assembles a feed-forward digit classifier from gorgonia
// graph operations and drives its training steps.
//
// The network is the standard simple MNIST baseline:
//
//	input [batch, 784] -> Linear(784, hidden) -> ReLU -> Linear(hidden, 10) -> softmax
//
// All tensor math, automatic differentiation, and the SGD update itself
// belong to gorgonia; this package only composes the graph and sequences
// the calls: bind inputs, run forward+backward, read the loss, step the
// solver, reset the tape.
package model

import (
	"fmt"

	"gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Config describes the network dimensions.
type Config struct {
	BatchSize int // samples per graph execution (default 32)
	Inputs    int // flattened image size (default 784)
	Hidden    int // hidden layer width (default 128)
	Classes   int // output classes (default 10)
}

func (c Config) withDefaults() Config {
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.Inputs == 0 {
		c.Inputs = 784
	}
	if c.Hidden == 0 {
		c.Hidden = 128
	}
	if c.Classes == 0 {
		c.Classes = 10
	}
	return c
}

// LogEpsilon keeps log(softmax) finite when a probability underflows to
// zero. Metric code taking logs of predicted probabilities must clamp
// with the same constant so metrics agree with the training loss.
const LogEpsilon = 1e-10

// Net is a two-layer fully connected classifier on a gorgonia graph.
//
// A Net built with New carries the loss node and bound gradients and is
// meant for FitBatch; one built with NewInference carries only the forward
// graph and is meant for Predict. Weights move between the two with
// CopyWeightsTo.
type Net struct {
	cfg Config
	g   *gorgonia.ExprGraph

	x *gorgonia.Node // [batch, inputs]
	y *gorgonia.Node // [batch, classes], one-hot; nil on inference nets

	w1, b1, w2, b2 *gorgonia.Node

	probs *gorgonia.Node
	loss  *gorgonia.Node

	probsVal gorgonia.Value
	lossVal  gorgonia.Value

	vm gorgonia.VM
}

// New builds a training net: forward graph, cross-entropy loss, and
// gradients of the loss with respect to every learnable.
func New(cfg Config) (*Net, error) {
	cfg = cfg.withDefaults()
	n := &Net{cfg: cfg, g: gorgonia.NewGraph()}

	n.x = gorgonia.NewMatrix(n.g, tensor.Float64,
		gorgonia.WithShape(cfg.BatchSize, cfg.Inputs), gorgonia.WithName("x"))
	n.y = gorgonia.NewMatrix(n.g, tensor.Float64,
		gorgonia.WithShape(cfg.BatchSize, cfg.Classes), gorgonia.WithName("y"))
	n.initLearnables()

	if err := n.buildForward(); err != nil {
		return nil, err
	}
	if err := n.buildLoss(); err != nil {
		return nil, err
	}

	// Reverse-mode gradients come from the framework; nothing here
	// differentiates anything by hand.
	if _, err := gorgonia.Grad(n.loss, n.Learnables()...); err != nil {
		return nil, fmt.Errorf("request gradients: %w", err)
	}

	n.vm = gorgonia.NewTapeMachine(n.g, gorgonia.BindDualValues(n.Learnables()...))
	return n, nil
}

// NewInference builds a label-free twin of the training net: the same
// forward graph, no loss, no gradients.
func NewInference(cfg Config) (*Net, error) {
	cfg = cfg.withDefaults()
	n := &Net{cfg: cfg, g: gorgonia.NewGraph()}

	n.x = gorgonia.NewMatrix(n.g, tensor.Float64,
		gorgonia.WithShape(cfg.BatchSize, cfg.Inputs), gorgonia.WithName("x"))
	n.initLearnables()

	if err := n.buildForward(); err != nil {
		return nil, err
	}

	n.vm = gorgonia.NewTapeMachine(n.g)
	return n, nil
}

func (n *Net) initLearnables() {
	cfg := n.cfg
	n.w1 = gorgonia.NewMatrix(n.g, tensor.Float64,
		gorgonia.WithShape(cfg.Inputs, cfg.Hidden), gorgonia.WithName("w1"),
		gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	n.b1 = gorgonia.NewMatrix(n.g, tensor.Float64,
		gorgonia.WithShape(1, cfg.Hidden), gorgonia.WithName("b1"),
		gorgonia.WithInit(gorgonia.Zeroes()))
	n.w2 = gorgonia.NewMatrix(n.g, tensor.Float64,
		gorgonia.WithShape(cfg.Hidden, cfg.Classes), gorgonia.WithName("w2"),
		gorgonia.WithInit(gorgonia.GlorotN(1.0)))
	n.b2 = gorgonia.NewMatrix(n.g, tensor.Float64,
		gorgonia.WithShape(1, cfg.Classes), gorgonia.WithName("b2"),
		gorgonia.WithInit(gorgonia.Zeroes()))
}

// buildForward wires x through both affine layers and a softmax, recording
// the probability node.
func (n *Net) buildForward() error {
	h, err := gorgonia.Mul(n.x, n.w1)
	if err != nil {
		return fmt.Errorf("hidden layer matmul: %w", err)
	}
	h, err = gorgonia.BroadcastAdd(h, n.b1, nil, []byte{0})
	if err != nil {
		return fmt.Errorf("hidden layer bias: %w", err)
	}
	h, err = gorgonia.Rectify(h)
	if err != nil {
		return fmt.Errorf("hidden layer activation: %w", err)
	}

	logits, err := gorgonia.Mul(h, n.w2)
	if err != nil {
		return fmt.Errorf("output layer matmul: %w", err)
	}
	logits, err = gorgonia.BroadcastAdd(logits, n.b2, nil, []byte{0})
	if err != nil {
		return fmt.Errorf("output layer bias: %w", err)
	}

	probs, err := gorgonia.SoftMax(logits)
	if err != nil {
		return fmt.Errorf("softmax: %w", err)
	}
	n.probs = probs
	gorgonia.Read(n.probs, &n.probsVal)
	return nil
}

// buildLoss attaches mean cross-entropy between the predicted probabilities
// and the one-hot targets.
func (n *Net) buildLoss() error {
	clamped, err := gorgonia.Add(n.probs, gorgonia.NewConstant(LogEpsilon))
	if err != nil {
		return fmt.Errorf("clamp probabilities: %w", err)
	}
	logProbs, err := gorgonia.Log(clamped)
	if err != nil {
		return fmt.Errorf("log probabilities: %w", err)
	}
	weighted, err := gorgonia.HadamardProd(n.y, logProbs)
	if err != nil {
		return fmt.Errorf("select target log-probs: %w", err)
	}
	perSample, err := gorgonia.Sum(weighted, 1)
	if err != nil {
		return fmt.Errorf("per-sample loss: %w", err)
	}
	mean, err := gorgonia.Mean(perSample)
	if err != nil {
		return fmt.Errorf("mean loss: %w", err)
	}
	loss, err := gorgonia.Neg(mean)
	if err != nil {
		return fmt.Errorf("negate loss: %w", err)
	}
	n.loss = loss
	gorgonia.Read(n.loss, &n.lossVal)
	return nil
}

// Learnables returns the trainable parameters in a fixed order.
func (n *Net) Learnables() gorgonia.Nodes {
	return gorgonia.Nodes{n.w1, n.b1, n.w2, n.b2}
}

// Config returns the dimensions the net was built with.
func (n *Net) Config() Config {
	return n.cfg
}

// FitBatch runs one training step on a full batch: bind the inputs, execute
// forward and backward passes, read the scalar loss, apply the solver
// update, and rewind the tape for the next batch.
func (n *Net) FitBatch(images, targets *tensor.Dense, solver gorgonia.Solver) (float64, error) {
	if n.loss == nil {
		return 0, fmt.Errorf("FitBatch called on an inference net")
	}
	if err := n.checkBatch(images); err != nil {
		return 0, err
	}
	if err := n.checkTargets(targets); err != nil {
		return 0, err
	}
	if err := gorgonia.Let(n.x, images); err != nil {
		return 0, fmt.Errorf("bind images: %w", err)
	}
	if err := gorgonia.Let(n.y, targets); err != nil {
		return 0, fmt.Errorf("bind targets: %w", err)
	}
	if err := n.vm.RunAll(); err != nil {
		return 0, fmt.Errorf("run training graph: %w", err)
	}
	loss := n.lossVal.Data().(float64)
	if err := solver.Step(gorgonia.NodesToValueGrads(n.Learnables())); err != nil {
		return 0, fmt.Errorf("solver step: %w", err)
	}
	n.vm.Reset()
	return loss, nil
}

// Predict runs the forward pass on a batch of images and returns the class
// probabilities, shape [batch, classes]. Only valid on inference nets.
func (n *Net) Predict(images *tensor.Dense) (*tensor.Dense, error) {
	if n.loss != nil {
		return nil, fmt.Errorf("Predict called on a training net; use NewInference")
	}
	if err := n.checkBatch(images); err != nil {
		return nil, err
	}
	if err := gorgonia.Let(n.x, images); err != nil {
		return nil, fmt.Errorf("bind images: %w", err)
	}
	if err := n.vm.RunAll(); err != nil {
		return nil, fmt.Errorf("run inference graph: %w", err)
	}
	probs := n.probsVal.(*tensor.Dense).Clone().(*tensor.Dense)
	n.vm.Reset()
	return probs, nil
}

// LastProbs returns a copy of the probabilities computed by the most recent
// FitBatch, for in-training accuracy tracking.
func (n *Net) LastProbs() *tensor.Dense {
	if n.probsVal == nil {
		return nil
	}
	return n.probsVal.(*tensor.Dense).Clone().(*tensor.Dense)
}

// CopyWeightsTo copies this net's learnable values into dst. The two nets
// must share layer dimensions; batch sizes may differ.
func (n *Net) CopyWeightsTo(dst *Net) error {
	if n.cfg.Inputs != dst.cfg.Inputs || n.cfg.Hidden != dst.cfg.Hidden || n.cfg.Classes != dst.cfg.Classes {
		return fmt.Errorf("incompatible net dimensions: %+v vs %+v", n.cfg, dst.cfg)
	}
	src, dstL := n.Learnables(), dst.Learnables()
	for i, node := range src {
		clone := node.Value().(*tensor.Dense).Clone().(*tensor.Dense)
		if err := gorgonia.Let(dstL[i], clone); err != nil {
			return fmt.Errorf("copy %s: %w", node.Name(), err)
		}
	}
	return nil
}

// Close releases the underlying virtual machine.
func (n *Net) Close() error {
	return n.vm.Close()
}

func (n *Net) checkBatch(images *tensor.Dense) error {
	shape := images.Shape()
	if len(shape) != 2 || shape[0] != n.cfg.BatchSize || shape[1] != n.cfg.Inputs {
		return fmt.Errorf("batch shape %v, want [%d, %d]", shape, n.cfg.BatchSize, n.cfg.Inputs)
	}
	return nil
}

func (n *Net) checkTargets(targets *tensor.Dense) error {
	shape := targets.Shape()
	if len(shape) != 2 || shape[0] != n.cfg.BatchSize || shape[1] != n.cfg.Classes {
		return fmt.Errorf("targets shape %v, want [%d, %d]", shape, n.cfg.BatchSize, n.cfg.Classes)
	}
	return nil
}
