package taxonomy

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
)

const derivedIDPrefix = "label:"

//go:embed schemas/source.schema.json
var sourceSchema []byte

var (
	csvIDColumns          = []string{"concepturi", "id"}
	csvLabelColumns       = []string{"preferredlabel", "skill", "label"}
	csvDescriptionColumns = []string{"description"}
)

// SourceEntry is one canonical skill as it appears in a taxonomy source file.
type SourceEntry struct {
	ID          string `mapstructure:"id" json:"id,omitempty"`
	Label       string `mapstructure:"skill" json:"skill"`
	Description string `mapstructure:"description" json:"description,omitempty"`
}

// ReadSource reads an ESCO-style CSV file or its JSON conversion, picking the
// format by file extension.
func ReadSource(path string) ([]SourceEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &SourceError{Path: path, Message: "read file", Cause: err}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return DecodeCSV(bytes.NewReader(data), path)
	case ".json":
		return DecodeJSON(data, path)
	default:
		return nil, &SourceError{Path: path, Message: "unsupported extension, expected .csv or .json"}
	}
}

// DecodeCSV reads rows with a header containing at least a preferredLabel (or
// skill) column. conceptUri and description columns are optional.
func DecodeCSV(r io.Reader, path string) ([]SourceEntry, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, &SourceError{Path: path, Line: 1, Message: "read header", Cause: err}
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		columns[name] = i
	}

	labelCol := findColumn(columns, csvLabelColumns)
	if labelCol < 0 {
		return nil, &SourceError{Path: path, Line: 1, Message: "no preferredLabel or skill column"}
	}
	idCol := findColumn(columns, csvIDColumns)
	descCol := findColumn(columns, csvDescriptionColumns)

	var entries []SourceEntry
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				line = parseErr.Line
			}
			return nil, &SourceError{Path: path, Line: line, Message: "read row", Cause: err}
		}

		entries = append(entries, SourceEntry{
			ID:          field(record, idCol),
			Label:       field(record, labelCol),
			Description: field(record, descCol),
		})
	}

	return finalizeSource(entries, path)
}

// DecodeJSON validates data against the source schema and decodes it.
func DecodeJSON(data []byte, path string) ([]SourceEntry, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(sourceSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, &SourceError{Path: path, Message: "parse json", Cause: err}
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", e.Field(), e.Description()))
		}
		return nil, &SourceError{Path: path, Message: "schema validation failed: " + strings.Join(problems, "; ")}
	}

	var raw []map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &SourceError{Path: path, Message: "decode json", Cause: err}
	}

	var entries []SourceEntry
	if err := mapstructure.Decode(raw, &entries); err != nil {
		return nil, &SourceError{Path: path, Message: "decode entries", Cause: err}
	}

	return finalizeSource(entries, path)
}

// WriteJSON writes entries in the JSON source format.
func WriteJSON(w io.Writer, entries []SourceEntry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(entries)
}

// DerivedID returns the identifier used for entries whose source has none.
func DerivedID(label string) string {
	return derivedIDPrefix + Normalize(label)
}

func finalizeSource(entries []SourceEntry, path string) ([]SourceEntry, error) {
	out := make([]SourceEntry, 0, len(entries))
	seen := make(map[string]int, len(entries))

	for i, entry := range entries {
		entry.ID = strings.TrimSpace(entry.ID)
		entry.Label = strings.Join(strings.Fields(entry.Label), " ")
		entry.Description = strings.TrimSpace(entry.Description)

		if entry.Label == "" {
			continue
		}
		if entry.ID == "" {
			entry.ID = DerivedID(entry.Label)
		}

		if first, dup := seen[entry.ID]; dup {
			return nil, &SourceError{
				Path:    path,
				Message: fmt.Sprintf("duplicate id %q in entries %d and %d", entry.ID, first+1, i+1),
			}
		}
		seen[entry.ID] = i
		out = append(out, entry)
	}

	if len(out) == 0 {
		return nil, &SourceError{Path: path, Message: "no usable entries"}
	}

	return out, nil
}

func findColumn(columns map[string]int, names []string) int {
	for _, name := range names {
		if i, ok := columns[name]; ok {
			return i
		}
	}
	return -1
}

func field(record []string, col int) string {
	if col < 0 || col >= len(record) {
		return ""
	}
	return record[col]
}
