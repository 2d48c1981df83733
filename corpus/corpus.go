// Package corpus locates labelled utterances on disk and stores their
// quantized symbol sequences grouped by label and split.
package corpus

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Utterance is one feature file with its class label.
type Utterance struct {
	Path  string
	Label string
}

// LabelFromName returns the first label, in the given order, that occurs in
// the base name of path.
func LabelFromName(path string, labels []string) (string, bool) {
	base := filepath.Base(path)
	for _, l := range labels {
		if l != "" && strings.Contains(base, l) {
			return l, true
		}
	}
	return "", false
}

// Scan lists the feature files in dir whose names carry one of labels.
// Hidden files and subdirectories are skipped; the result is sorted by file
// name.
func Scan(dir string, labels []string) ([]Utterance, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory: %w", err)
	}
	var out []Utterance
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		label, ok := LabelFromName(name, labels)
		if !ok {
			continue
		}
		out = append(out, Utterance{Path: filepath.Join(dir, name), Label: label})
	}
	return out, nil
}

// ReadManifest reads "path<TAB>label" lines. Blank lines and lines starting
// with '#' are ignored. Relative paths are resolved against base.
func ReadManifest(r io.Reader, base string) ([]Utterance, error) {
	var out []Utterance
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) != 2 || parts[0] == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("manifest line %d: want path<TAB>label", lineNo)
		}
		path := parts[0]
		if !filepath.IsAbs(path) && base != "" {
			path = filepath.Join(base, path)
		}
		out = append(out, Utterance{Path: path, Label: strings.TrimSpace(parts[1])})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadManifestFile reads a manifest, resolving relative paths against the
// manifest's directory.
func ReadManifestFile(path string) ([]Utterance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer f.Close()
	return ReadManifest(f, filepath.Dir(path))
}

// Group buckets utterances by label, keeping their relative order.
func Group(utts []Utterance) map[string][]Utterance {
	out := make(map[string][]Utterance)
	for _, u := range utts {
		out[u.Label] = append(out[u.Label], u)
	}
	return out
}
