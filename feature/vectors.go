// Package feature reads precomputed acoustic feature vectors and applies
// utterance-level normalization before vector quantization.
package feature

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
)

// VectorReader parses a whitespace-separated stream of reals into
// fixed-dimension frames. Line breaks carry no meaning.
type VectorReader struct {
	sc    *bufio.Scanner
	dim   int
	count int
}

// NewVectorReader returns a reader producing dim-length frames from r.
func NewVectorReader(r io.Reader, dim int) *VectorReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	sc.Split(bufio.ScanWords)
	return &VectorReader{sc: sc, dim: dim}
}

// Next returns the next frame. It returns io.EOF when the stream ends on a
// frame boundary and io.ErrUnexpectedEOF when it ends inside a frame.
func (vr *VectorReader) Next() ([]float64, error) {
	if vr.dim <= 0 {
		return nil, fmt.Errorf("feature: invalid dimension %d", vr.dim)
	}
	v := make([]float64, 0, vr.dim)
	for len(v) < vr.dim {
		if !vr.sc.Scan() {
			if err := vr.sc.Err(); err != nil {
				return nil, err
			}
			if len(v) == 0 {
				return nil, io.EOF
			}
			return nil, io.ErrUnexpectedEOF
		}
		x, err := strconv.ParseFloat(vr.sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("feature: frame %d value %d: %w", vr.count, len(v), err)
		}
		v = append(v, x)
	}
	vr.count++
	return v, nil
}

// ReadVectors reads up to limit frames (limit <= 0 means all). A trailing
// partial frame is dropped.
func ReadVectors(r io.Reader, dim, limit int) ([][]float64, error) {
	vr := NewVectorReader(r, dim)
	var frames [][]float64
	for limit <= 0 || len(frames) < limit {
		v, err := vr.Next()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		frames = append(frames, v)
	}
	return frames, nil
}

// ReadVectorsFile reads frames from a text feature file.
func ReadVectorsFile(path string, dim, limit int) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open features: %w", err)
	}
	defer f.Close()
	frames, err := ReadVectors(f, dim, limit)
	if err != nil {
		return nil, fmt.Errorf("read features %s: %w", path, err)
	}
	return frames, nil
}

// WriteVectors writes one frame per line.
func WriteVectors(w io.Writer, frames [][]float64) error {
	bw := bufio.NewWriter(w)
	for _, f := range frames {
		for d, x := range f {
			if d > 0 {
				bw.WriteByte(' ')
			}
			bw.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
