package taxonomy

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const gzipSuffix = ".gz"

// document is the persisted form of an index. Labels and vectors are stored as
// parallel arrays so a truncated artifact is detectable by count.
type document struct {
	Version      string      `json:"version"`
	Dimension    int         `json:"dimension"`
	CreatedAt    time.Time   `json:"created_at"`
	IDs          []string    `json:"ids"`
	Labels       []string    `json:"labels"`
	Descriptions []string    `json:"descriptions,omitempty"`
	Vectors      [][]float32 `json:"vectors"`
}

// Save writes the index to path, gzip-compressed when the path ends in .gz.
// The file is written to a temporary name first and renamed into place.
func (x *Index) Save(path string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := x.Encode(tmp, strings.HasSuffix(path, gzipSuffix)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move index into place: %w", err)
	}
	return nil
}

// Encode writes the index as JSON, optionally gzip-compressed.
func (x *Index) Encode(w io.Writer, compress bool) error {
	doc := document{
		Version:      x.version.String(),
		Dimension:    x.dimension,
		CreatedAt:    time.Now().UTC(),
		IDs:          make([]string, len(x.entries)),
		Labels:       make([]string, len(x.entries)),
		Descriptions: make([]string, len(x.entries)),
		Vectors:      make([][]float32, len(x.entries)),
	}

	hasDescriptions := false
	for i, entry := range x.entries {
		doc.IDs[i] = entry.ID
		doc.Labels[i] = entry.Label
		doc.Descriptions[i] = entry.Description
		doc.Vectors[i] = entry.Vector
		hasDescriptions = hasDescriptions || entry.Description != ""
	}
	if !hasDescriptions {
		doc.Descriptions = nil
	}

	out := w
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(w)
		out = gz
	}

	if err := json.NewEncoder(out).Encode(doc); err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("compress index: %w", err)
		}
	}
	return nil
}

// Load reads an index saved by Save. Any inconsistency in the file is
// reported as a *LoadError.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "open file", Cause: err}
	}
	defer f.Close()

	return Decode(f, path)
}

// Decode reads an index from r. Gzip input is detected automatically; path is
// only used in error messages.
func Decode(r io.Reader, path string) (*Index, error) {
	br := bufio.NewReader(r)
	var reader io.Reader = br

	if magic, err := br.Peek(2); err == nil && bytes.Equal(magic, []byte{0x1f, 0x8b}) {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, &LoadError{Path: path, Message: "open gzip stream", Cause: err}
		}
		defer gz.Close()
		reader = gz
	}

	var doc document
	if err := json.NewDecoder(reader).Decode(&doc); err != nil {
		return nil, &LoadError{Path: path, Message: "decode index", Cause: err}
	}

	return fromDocument(doc, path)
}

func fromDocument(doc document, path string) (*Index, error) {
	if strings.TrimSpace(doc.Version) == "" {
		return nil, &LoadError{Path: path, Message: "version tag is missing"}
	}

	version, err := ParseVersion(doc.Version)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "invalid version tag", Cause: err}
	}

	if len(doc.Vectors) != len(doc.Labels) {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("vector count %d does not match label count %d", len(doc.Vectors), len(doc.Labels))}
	}
	if len(doc.IDs) != len(doc.Labels) {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("id count %d does not match label count %d", len(doc.IDs), len(doc.Labels))}
	}
	if len(doc.Descriptions) != 0 && len(doc.Descriptions) != len(doc.Labels) {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("description count %d does not match label count %d", len(doc.Descriptions), len(doc.Labels))}
	}

	entries := make([]Entry, len(doc.Labels))
	for i := range doc.Labels {
		entries[i] = Entry{ID: doc.IDs[i], Label: doc.Labels[i], Vector: doc.Vectors[i]}
		if len(doc.Descriptions) != 0 {
			entries[i].Description = doc.Descriptions[i]
		}
	}

	index, err := NewIndex(version, entries)
	if err != nil {
		return nil, &LoadError{Path: path, Message: "invalid entries", Cause: err}
	}

	if doc.Dimension != 0 && doc.Dimension != index.Dimension() {
		return nil, &LoadError{Path: path, Message: fmt.Sprintf("declared dimension %d does not match vectors (%d)", doc.Dimension, index.Dimension())}
	}

	return index, nil
}
