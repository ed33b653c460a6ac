// Package main loads a trained checkpoint and scores the MNIST test set,
// printing the accuracy, the confusion matrix, and a handful of rendered
// per-sample predictions.
package main
