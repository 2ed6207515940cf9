package taxonomy

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

const versionSeparator = "@"

// Version tags an index with the taxonomy release and the embedding model
// identity its vectors were produced with.
type Version struct {
	Taxonomy string
	Model    string
}

// ParseVersion parses a tag of the form "<taxonomy>@<model>".
func ParseVersion(tag string) (Version, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return Version{}, fmt.Errorf("version tag is empty")
	}

	taxonomy, model, ok := strings.Cut(tag, versionSeparator)
	taxonomy = strings.TrimSpace(taxonomy)
	model = strings.TrimSpace(model)
	if !ok || taxonomy == "" || model == "" {
		return Version{}, fmt.Errorf("version tag %q must look like <taxonomy>%s<model>", tag, versionSeparator)
	}

	return Version{Taxonomy: taxonomy, Model: model}, nil
}

func (v Version) String() string {
	return v.Taxonomy + versionSeparator + v.Model
}

// IsZero reports whether the version carries no information.
func (v Version) IsZero() bool {
	return v.Taxonomy == "" && v.Model == ""
}

// Normalize trims, collapses inner whitespace and case-folds s. Taxonomy labels
// and query phrases go through the same function.
func Normalize(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	if len(fields) == 0 {
		return ""
	}
	return cases.Fold().String(strings.Join(fields, " "))
}
