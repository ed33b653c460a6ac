package dataset_test

import (
	"compress/gzip"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlnotebook/digits/internal/dataset"
)

func writeIDXImages(t *testing.T, path string, magic uint32, images [][]byte, gzipped bool) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if gzipped {
		gz = gzip.NewWriter(f)
		w = gz
	}

	require.NoError(t, binary.Write(w, binary.BigEndian, magic))
	require.NoError(t, binary.Write(w, binary.BigEndian, uint32(len(images))))
	require.NoError(t, binary.Write(w, binary.BigEndian, uint32(dataset.ImageRows)))
	require.NoError(t, binary.Write(w, binary.BigEndian, uint32(dataset.ImageCols)))
	for _, img := range images {
		_, err := w.Write(img)
		require.NoError(t, err)
	}
	if gz != nil {
		require.NoError(t, gz.Close())
	}
}

func writeIDXLabels(t *testing.T, path string, magic uint32, labels []byte, gzipped bool) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if gzipped {
		gz = gzip.NewWriter(f)
		w = gz
	}

	require.NoError(t, binary.Write(w, binary.BigEndian, magic))
	require.NoError(t, binary.Write(w, binary.BigEndian, uint32(len(labels))))
	_, err = w.Write(labels)
	require.NoError(t, err)
	if gz != nil {
		require.NoError(t, gz.Close())
	}
}

func testImage(fill byte) []byte {
	img := make([]byte, dataset.ImagePixels)
	for i := range img {
		img[i] = fill
	}
	return img
}

// writeSplit writes a complete train or test pair into dir.
func writeSplit(t *testing.T, dir string, train bool, images [][]byte, labels []byte, gzipped bool) {
	t.Helper()
	prefix := "train"
	if !train {
		prefix = "t10k"
	}
	suffix := ""
	if gzipped {
		suffix = ".gz"
	}
	writeIDXImages(t, filepath.Join(dir, prefix+"-images-idx3-ubyte"+suffix), 2051, images, gzipped)
	writeIDXLabels(t, filepath.Join(dir, prefix+"-labels-idx1-ubyte"+suffix), 2049, labels, gzipped)
}

func TestLoadPlainFiles(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, true, [][]byte{testImage(0), testImage(51), testImage(255)}, []byte{7, 0, 9}, false)

	ds, err := dataset.Load(dir, true, 0)
	require.NoError(t, err)

	require.Equal(t, 3, ds.NumSamples())
	assert.Equal(t, []int{7, 0, 9}, ds.Labels)
	assert.InDelta(t, 0.0, ds.Images[0][0], 1e-12)
	assert.InDelta(t, 0.2, ds.Images[1][100], 1e-12)
	assert.InDelta(t, 1.0, ds.Images[2][783], 1e-12)
}

func TestLoadGzippedFiles(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, false, [][]byte{testImage(128)}, []byte{4}, true)

	ds, err := dataset.Load(dir, false, 0)
	require.NoError(t, err)
	require.Equal(t, 1, ds.NumSamples())
	assert.Equal(t, 4, ds.Labels[0])
	assert.InDelta(t, 128.0/255.0, ds.Images[0][0], 1e-12)
}

func TestLoadMaxSamples(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, true, [][]byte{testImage(1), testImage(2), testImage(3)}, []byte{1, 2, 3}, false)

	ds, err := dataset.Load(dir, true, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, ds.NumSamples())
	assert.Equal(t, []int{1, 2}, ds.Labels)
}

func TestLoadMissingFiles(t *testing.T) {
	_, err := dataset.Load(t.TempDir(), true, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadBadImageMagic(t *testing.T) {
	dir := t.TempDir()
	writeIDXImages(t, filepath.Join(dir, "train-images-idx3-ubyte"), 1234, [][]byte{testImage(0)}, false)
	writeIDXLabels(t, filepath.Join(dir, "train-labels-idx1-ubyte"), 2049, []byte{0}, false)

	_, err := dataset.Load(dir, true, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestLoadBadLabelMagic(t *testing.T) {
	dir := t.TempDir()
	writeIDXImages(t, filepath.Join(dir, "train-images-idx3-ubyte"), 2051, [][]byte{testImage(0)}, false)
	writeIDXLabels(t, filepath.Join(dir, "train-labels-idx1-ubyte"), 2051, []byte{0}, false)

	_, err := dataset.Load(dir, true, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "magic")
}

func TestLoadCountMismatch(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, true, [][]byte{testImage(0), testImage(1)}, []byte{0}, false)

	_, err := dataset.Load(dir, true, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label count")
}

func TestLoadLabelOutOfRange(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir, true, [][]byte{testImage(0)}, []byte{12}, false)

	_, err := dataset.Load(dir, true, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label out of range")
}

func TestLoadTruncatedImages(t *testing.T) {
	dir := t.TempDir()
	// Header claims two images, payload carries one.
	path := filepath.Join(dir, "train-images-idx3-ubyte")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, binary.Write(f, binary.BigEndian, uint32(2051)))
	require.NoError(t, binary.Write(f, binary.BigEndian, uint32(2)))
	require.NoError(t, binary.Write(f, binary.BigEndian, uint32(dataset.ImageRows)))
	require.NoError(t, binary.Write(f, binary.BigEndian, uint32(dataset.ImageCols)))
	_, err = f.Write(testImage(0))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	writeIDXLabels(t, filepath.Join(dir, "train-labels-idx1-ubyte"), 2049, []byte{0, 1}, false)

	_, err = dataset.Load(dir, true, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read image")
}
