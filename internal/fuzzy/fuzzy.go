// Package fuzzy scores string similarity on a 0..100 scale.
//
// Scores are built on the indel distance (Levenshtein with substitutions
// costing two edits) and combined the way weighted-ratio scorers do: a plain
// ratio, a token-sort ratio and, for strings of very different length, a
// scaled partial ratio. Inputs are lowercased and stripped of punctuation
// before comparison.
package fuzzy

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/adrg/strutil/metrics"
)

const (
	tokenScale        = 0.95
	partialScale      = 0.9
	longPartialScale  = 0.6
	partialLenRatio   = 1.5
	longPartialRatio  = 8.0
	perfectScore      = 100.0
	qualifierOpenRune = '('
)

var indel = &metrics.Levenshtein{
	CaseSensitive: true,
	InsertCost:    1,
	DeleteCost:    1,
	ReplaceCost:   2,
}

// Process lowercases s, replaces every rune that is not a letter or digit with
// a space and collapses whitespace.
func Process(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)

	return strings.Join(strings.Fields(mapped), " ")
}

// Ratio returns the normalized indel similarity of a and b.
func Ratio(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return perfectScore
	}

	distance := indel.Distance(a, b)
	return perfectScore * (1 - float64(distance)/float64(total))
}

// TokenSortRatio compares a and b after sorting their tokens.
func TokenSortRatio(a, b string) float64 {
	return Ratio(sortTokens(Process(a)), sortTokens(Process(b)))
}

// PartialRatio compares the shorter string against equally long windows of the
// longer one and returns the best ratio. Windows start at token boundaries of
// the longer string and at its tail.
func PartialRatio(a, b string) float64 {
	return partialRatio(Process(a), Process(b))
}

// WRatio is the weighted ratio of a and b.
func WRatio(a, b string) float64 {
	return weightedRatio(Process(a), Process(b))
}

// Score compares query with label and with label stripped of a trailing
// parenthesized qualifier, returning the better of the two weighted ratios.
func Score(query, label string) float64 {
	p := Process(query)
	return scoreProcessed(p, newChoice(label))
}

func weightedRatio(p1, p2 string) float64 {
	if p1 == "" || p2 == "" {
		return 0
	}

	l1 := utf8.RuneCountInString(p1)
	l2 := utf8.RuneCountInString(p2)
	lenRatio := float64(max(l1, l2)) / float64(min(l1, l2))

	best := Ratio(p1, p2)
	if best == perfectScore {
		return best
	}

	s1, s2 := sortTokens(p1), sortTokens(p2)

	if lenRatio < partialLenRatio {
		return max(best, Ratio(s1, s2)*tokenScale)
	}

	scale := partialScale
	if lenRatio >= longPartialRatio {
		scale = longPartialScale
	}

	best = max(best, partialRatio(p1, p2)*scale)
	best = max(best, partialRatio(s1, s2)*tokenScale*scale)

	return best
}

func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}

	if len(short) == 0 {
		return 0
	}

	if len(short) == len(long) {
		return Ratio(string(short), string(long))
	}

	needle := string(short)
	best := 0.0
	for _, start := range windowStarts(long, len(short)) {
		score := Ratio(needle, string(long[start:start+len(short)]))
		if score > best {
			best = score
			if best == perfectScore {
				break
			}
		}
	}

	return best
}

func windowStarts(long []rune, width int) []int {
	last := len(long) - width
	starts := []int{0}
	for i := 1; i <= last; i++ {
		if long[i-1] == ' ' && long[i] != ' ' {
			starts = append(starts, i)
		}
	}
	if starts[len(starts)-1] != last {
		starts = append(starts, last)
	}
	return starts
}

func sortTokens(s string) string {
	tokens := strings.Fields(s)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// head strips a trailing parenthesized qualifier, e.g. "python (computer
// programming)" becomes "python".
func head(label string) string {
	idx := strings.IndexRune(label, qualifierOpenRune)
	if idx <= 0 || !strings.HasSuffix(strings.TrimSpace(label), ")") {
		return label
	}
	return strings.TrimSpace(label[:idx])
}
