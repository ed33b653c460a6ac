package dataset

// Synthetic builds a small fake digit dataset for running the pipeline
// without the real MNIST files.
//
// Each digit d gets a bright horizontal band whose position encodes the
// class, so the classes are trivially separable. This is NOT realistic
// handwriting, just enough signal to watch the loss fall.
func Synthetic(numSamples int) *Dataset {
	images := make([][]float64, numSamples)
	labels := make([]int, numSamples)

	for i := 0; i < numSamples; i++ {
		digit := i % NumClasses
		labels[i] = digit

		img := make([]float64, ImagePixels)
		startRow := digit * 2 // 0, 2, 4, ..., 18
		for row := startRow; row < startRow+8 && row < ImageRows; row++ {
			for col := 5; col < 23; col++ {
				img[row*ImageCols+col] = 0.8
			}
		}
		images[i] = img
	}

	return &Dataset{Images: images, Labels: labels}
}
