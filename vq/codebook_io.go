package vq

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/ieee0824/vqdigit/feature"
)

// WriteCodebook writes one centroid per line as space-separated reals.
func WriteCodebook(w io.Writer, cb *Codebook) error {
	bw := bufio.NewWriter(w)
	for _, c := range cb.Clusters {
		for d, x := range c.Centroid {
			if d > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// ReadCodebook parses a codebook of dim-dimensional centroids. Values are
// read as a whitespace-separated stream, so line layout is not significant;
// the number of centroids is the number of complete vectors found.
func ReadCodebook(r io.Reader, dim int) (*Codebook, error) {
	vr := feature.NewVectorReader(r, dim)
	var centroids []Vector
	for {
		v, err := vr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read codebook: %w", err)
		}
		centroids = append(centroids, v)
	}
	return NewCodebookFromCentroids(centroids)
}

// SaveCodebookFile writes cb to path.
func SaveCodebookFile(path string, cb *Codebook) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create codebook: %w", err)
	}
	if err := WriteCodebook(f, cb); err != nil {
		f.Close()
		return fmt.Errorf("write codebook: %w", err)
	}
	return f.Close()
}

// LoadCodebookFile reads a codebook from path.
func LoadCodebookFile(path string, dim int) (*Codebook, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open codebook: %w", err)
	}
	defer f.Close()
	return ReadCodebook(f, dim)
}
