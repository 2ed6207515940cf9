// Package taxonomy holds the versioned skill taxonomy index: canonical skill
// entries with their embedding vectors. An Index is built offline, persisted,
// loaded once and then shared read-only by every standardization and matching
// call.
package taxonomy

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spigell/skillmatch/internal/embedding"
	"github.com/spigell/skillmatch/internal/fuzzy"
)

// Entry is a canonical skill. Vector must not be modified once the entry is
// part of an Index.
type Entry struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Description string    `json:"description,omitempty"`
	Vector      []float32 `json:"-"`
}

// Scored pairs an entry with its similarity to a query vector.
type Scored struct {
	Entry      Entry
	Similarity float64
}

// Index is an immutable, ordered collection of entries. Entries are kept in
// canonical order (ascending ID); every tie-break in lookups favours the
// earlier entry.
type Index struct {
	version   Version
	dimension int
	entries   []Entry
	norms     []float64
	byID      map[string]int
	byLabel   map[string]int
	choices   *fuzzy.Choices
}

// NewIndex validates entries and builds an index. The entries slice is copied
// and sorted by ID.
func NewIndex(version Version, entries []Entry) (*Index, error) {
	if version.Taxonomy == "" || version.Model == "" {
		return nil, fmt.Errorf("index version requires taxonomy and model, got %q", version.String())
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("index has no entries")
	}

	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	idx := &Index{
		version:   version,
		dimension: len(sorted[0].Vector),
		entries:   sorted,
		norms:     make([]float64, len(sorted)),
		byID:      make(map[string]int, len(sorted)),
		byLabel:   make(map[string]int, len(sorted)),
	}

	if idx.dimension == 0 {
		return nil, fmt.Errorf("entry %q has an empty vector", sorted[0].ID)
	}

	labels := make([]string, len(sorted))
	for i, entry := range sorted {
		if strings.TrimSpace(entry.ID) == "" {
			return nil, fmt.Errorf("entry %d has an empty id", i)
		}
		if _, dup := idx.byID[entry.ID]; dup {
			return nil, fmt.Errorf("duplicate entry id %q", entry.ID)
		}
		if len(entry.Vector) != idx.dimension {
			return nil, fmt.Errorf("entry %q has dimension %d, expected %d", entry.ID, len(entry.Vector), idx.dimension)
		}

		idx.byID[entry.ID] = i
		if key := Normalize(entry.Label); key != "" {
			if _, seen := idx.byLabel[key]; !seen {
				idx.byLabel[key] = i
			}
		}
		idx.norms[i] = embedding.Norm(entry.Vector)
		labels[i] = entry.Label
	}

	idx.choices = fuzzy.NewChoices(labels)

	return idx, nil
}

func (x *Index) Version() Version { return x.version }

func (x *Index) Dimension() int { return x.dimension }

func (x *Index) Len() int { return len(x.entries) }

// Entry returns the entry at position i in canonical order.
func (x *Index) Entry(i int) Entry { return x.entries[i] }

// Lookup returns the entry with the given canonical identifier.
func (x *Index) Lookup(id string) (Entry, bool) {
	i, ok := x.byID[id]
	if !ok {
		return Entry{}, false
	}
	return x.entries[i], true
}

// LookupLabel returns the first entry whose normalized label equals the
// normalized form of label.
func (x *Index) LookupLabel(label string) (Entry, bool) {
	i, ok := x.byLabel[Normalize(label)]
	if !ok {
		return Entry{}, false
	}
	return x.entries[i], true
}

// Labels returns the canonical labels in canonical order.
func (x *Index) Labels() []string {
	labels := make([]string, len(x.entries))
	for i, entry := range x.entries {
		labels[i] = entry.Label
	}
	return labels
}

// Nearest returns up to n entries most similar to vector, best first. Entries
// with equal similarity keep canonical order.
func (x *Index) Nearest(vector []float32, n int) []Scored {
	if n <= 0 || len(vector) != x.dimension {
		return nil
	}

	norm := embedding.Norm(vector)
	top := make([]Scored, 0, n+1)
	for i, entry := range x.entries {
		sim := embedding.CosineWithNorms(embedding.Dot(vector, entry.Vector), norm, x.norms[i])
		if len(top) == n && sim <= top[n-1].Similarity {
			continue
		}

		pos := sort.Search(len(top), func(k int) bool { return top[k].Similarity < sim })
		top = append(top, Scored{})
		copy(top[pos+1:], top[pos:])
		top[pos] = Scored{Entry: entry, Similarity: sim}
		if len(top) > n {
			top = top[:n]
		}
	}

	return top
}

// Similarity returns the cosine similarity between the vectors of two entries.
func (x *Index) Similarity(idA, idB string) (float64, bool) {
	a, okA := x.byID[idA]
	b, okB := x.byID[idB]
	if !okA || !okB {
		return 0, false
	}
	dot := embedding.Dot(x.entries[a].Vector, x.entries[b].Vector)
	return embedding.CosineWithNorms(dot, x.norms[a], x.norms[b]), true
}

// BestFuzzy returns the entry whose label scores highest against phrase on the
// 0..100 fuzzy scale.
func (x *Index) BestFuzzy(phrase string) (Entry, float64, bool) {
	choice, ok := x.choices.Best(phrase)
	if !ok {
		return Entry{}, 0, false
	}
	return x.entries[choice.Index], choice.Score, true
}

// CheckModel fails with ModelMismatchError when model differs from the model
// the index vectors were produced with.
func (x *Index) CheckModel(model string) error {
	if model != x.version.Model {
		return &ModelMismatchError{IndexModel: x.version.Model, ProviderModel: model}
	}
	return nil
}
