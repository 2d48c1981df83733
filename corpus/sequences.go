package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ieee0824/vqdigit/acoustic"
)

// Split names a partition of the data.
type Split string

const (
	Train Split = "train"
	Dev   Split = "dev"
)

// ReadSequences reads one space-separated symbol sequence per line. Lines
// longer than maxLen symbols are truncated (maxLen <= 0 keeps everything);
// blank lines are skipped.
func ReadSequences(r io.Reader, maxLen int) ([]acoustic.Sequence, error) {
	var out []acoustic.Sequence
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if maxLen > 0 && len(fields) > maxLen {
			fields = fields[:maxLen]
		}
		seq := make(acoustic.Sequence, len(fields))
		for i, f := range fields {
			v, err := strconv.Atoi(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			seq[i] = v
		}
		out = append(out, seq)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteSequence writes seq as one line.
func WriteSequence(w io.Writer, seq acoustic.Sequence) error {
	var sb strings.Builder
	for i, o := range seq {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strconv.Itoa(o))
	}
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

// Store keeps sequence files under Root/<label>/<split>.seq.
type Store struct {
	Root string
}

// Path returns the file holding the sequences of label in split.
func (s Store) Path(label string, split Split) string {
	return filepath.Join(s.Root, label, string(split)+".seq")
}

// Append adds sequences to the file for label and split, creating it if
// needed.
func (s Store) Append(label string, split Split, seqs ...acoustic.Sequence) error {
	path := s.Path(label, split)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	for _, seq := range seqs {
		if err := WriteSequence(bw, seq); err != nil {
			f.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads the sequences of label in split. A missing file is an error
// wrapping fs.ErrNotExist.
func (s Store) Load(label string, split Split, maxLen int) ([]acoustic.Sequence, error) {
	f, err := os.Open(s.Path(label, split))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	seqs, err := ReadSequences(f, maxLen)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name(), err)
	}
	return seqs, nil
}

// LoadAll reads split for every label. A label without a file has no
// sequences.
func (s Store) LoadAll(labels []string, split Split, maxLen int) (map[string][]acoustic.Sequence, error) {
	out := make(map[string][]acoustic.Sequence, len(labels))
	for _, l := range labels {
		seqs, err := s.Load(l, split, maxLen)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		out[l] = seqs
	}
	return out, nil
}

// Reset removes the split files of every label so a new run does not append
// to stale data.
func (s Store) Reset(labels []string, split Split) error {
	for _, l := range labels {
		if err := os.Remove(s.Path(l, split)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}
