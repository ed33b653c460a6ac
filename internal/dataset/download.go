package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MirrorURL is the base URL the four MNIST archives are fetched from.
// The original yann.lecun.com host is unreliable, so the CVDF mirror is
// the default. Overridable for tests.
var MirrorURL = "https://storage.googleapis.com/cvdf-datasets/mnist/"

// archive describes one of the official gzipped IDX files together with its
// published SHA-256 digest.
type archive struct {
	name   string
	sha256 string
}

var archives = []archive{
	{"train-images-idx3-ubyte.gz", "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609"},
	{"train-labels-idx1-ubyte.gz", "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c"},
	{"t10k-images-idx3-ubyte.gz", "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6"},
	{"t10k-labels-idx1-ubyte.gz", "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6"},
}

// Download fetches any MNIST archive missing from dir and verifies its
// SHA-256 digest. Archives are kept gzipped; Load reads them as-is. Files
// already present (plain or gzipped) are left alone.
func Download(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}
	for _, a := range archives {
		gzPath := filepath.Join(dir, a.name)
		plainPath := strings.TrimSuffix(gzPath, ".gz")
		if fileExists(plainPath) {
			continue
		}
		if !fileExists(gzPath) {
			if err := fetch(MirrorURL+a.name, gzPath); err != nil {
				return fmt.Errorf("download %s: %w", a.name, err)
			}
		}
		if err := verify(gzPath, a.sha256); err != nil {
			return fmt.Errorf("verify %s: %w", a.name, err)
		}
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fetch(url, dest string) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s for %s", resp.Status, url)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	return out.Close()
}

func verify(path, wantHex string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return err
	}
	got := hex.EncodeToString(h.Sum(nil))
	if got != wantHex {
		return fmt.Errorf("sha256 mismatch: got %s, want %s", got, wantHex)
	}
	return nil
}
