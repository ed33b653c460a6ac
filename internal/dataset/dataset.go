package dataset

import (
	"fmt"
	"os"
	"path/filepath"
)

// Image geometry of the MNIST files.
const (
	ImageRows   = 28
	ImageCols   = 28
	ImagePixels = ImageRows * ImageCols
	NumClasses  = 10
)

// Dataset holds labeled digit images. Images are flattened row-major to
// ImagePixels values in [0, 1]; labels are digits 0-9.
type Dataset struct {
	Images [][]float64
	Labels []int
}

// NumSamples returns the number of samples in the dataset.
func (d *Dataset) NumSamples() int {
	return len(d.Images)
}

// Load reads one MNIST split from dir.
//
// With train set, it reads train-images-idx3-ubyte and train-labels-idx1-ubyte
// (60,000 samples); otherwise the t10k pair (10,000 samples). Either the plain
// files or their .gz archives may be present. maxSamples caps the number of
// samples loaded; 0 loads everything.
func Load(dir string, train bool, maxSamples int) (*Dataset, error) {
	var imageFile, labelFile string
	if train {
		imageFile = resolve(dir, "train-images-idx3-ubyte")
		labelFile = resolve(dir, "train-labels-idx1-ubyte")
	} else {
		imageFile = resolve(dir, "t10k-images-idx3-ubyte")
		labelFile = resolve(dir, "t10k-labels-idx1-ubyte")
	}

	imagesRaw, err := readIDXImagesFile(imageFile)
	if err != nil {
		return nil, fmt.Errorf("load images: %w", err)
	}
	labelsRaw, err := readIDXLabelsFile(labelFile)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	if len(imagesRaw) != len(labelsRaw) {
		return nil, fmt.Errorf("image count (%d) != label count (%d)", len(imagesRaw), len(labelsRaw))
	}

	numSamples := len(imagesRaw)
	if maxSamples > 0 && numSamples > maxSamples {
		numSamples = maxSamples
	}

	images := make([][]float64, numSamples)
	labels := make([]int, numSamples)
	for i := 0; i < numSamples; i++ {
		if len(imagesRaw[i]) != ImagePixels {
			return nil, fmt.Errorf("image %d has %d pixels, want %d", i, len(imagesRaw[i]), ImagePixels)
		}
		images[i] = make([]float64, ImagePixels)
		for j, pixel := range imagesRaw[i] {
			// 0-255 -> 0.0-1.0
			images[i][j] = float64(pixel) / 255.0
		}
		label := int(labelsRaw[i])
		if label < 0 || label >= NumClasses {
			return nil, fmt.Errorf("label out of range [0, %d) at sample %d: %d", NumClasses, i, label)
		}
		labels[i] = label
	}

	return &Dataset{Images: images, Labels: labels}, nil
}

// Split splits the dataset into a training and a validation part.
// valRatio is the fraction that goes to validation, e.g. 0.2 for 20%.
// The training side keeps at least one sample whenever the dataset is
// non-empty, so a high ratio on a small dataset cannot empty it.
func (d *Dataset) Split(valRatio float64) (*Dataset, *Dataset) {
	splitIdx := int(float64(d.NumSamples()) * (1.0 - valRatio))
	if splitIdx == 0 && d.NumSamples() > 0 {
		splitIdx = 1
	}
	return &Dataset{
			Images: d.Images[:splitIdx],
			Labels: d.Labels[:splitIdx],
		}, &Dataset{
			Images: d.Images[splitIdx:],
			Labels: d.Labels[splitIdx:],
		}
}

// resolve prefers the plain file and falls back to its .gz archive.
func resolve(dir, name string) string {
	plain := filepath.Join(dir, name)
	if _, err := os.Stat(plain); err == nil {
		return plain
	}
	return plain + ".gz"
}
