// Package dataset reads the MNIST handwritten-digit dataset and slices it
// into mini-batches of framework tensors.
//
// The package understands the official IDX binary files, plain or gzipped,
// and can fetch the four archives from a public mirror, verifying their
// published SHA-256 digests. Pixels are normalized to [0, 1] float64.
//
// Basic usage:
//
//	if err := dataset.Download("./data"); err != nil {
//	    log.Fatal(err)
//	}
//	train, err := dataset.Load("./data", true, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	train, val := train.Split(0.2)
//	batches, err := train.Batches(32, true, rng, true)
//
// Each Batch owns its tensors; mutating a batch never touches the Dataset
// it was cut from.
package dataset
