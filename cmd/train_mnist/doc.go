// Package main provides the training walkthrough: it loads the MNIST
// dataset, assembles a feed-forward classifier from framework operations,
// and runs the classic loop of forward pass, cross-entropy loss, backward
// pass, and SGD update, printing loss and accuracy per epoch and a few
// rendered predictions at the end.
package main
