// Package ai holds the phrase extraction boundary: free text goes in, a list
// of raw skill phrases comes out. The output is untrusted and is cleaned up by
// the standardization pipeline.
package ai

import (
	"context"
	"strings"
)

// Source is the kind of document phrases are extracted from.
type Source string

const (
	SourceJob Source = "job"
	SourceCV  Source = "cv"
)

// Extractor pulls candidate skill phrases out of free text.
type Extractor interface {
	Extract(ctx context.Context, source Source, text string) ([]string, error)
	Model() string
}

// SplitPhrases splits a comma or newline separated list into phrases. List
// markers such as "-", "*" or "1." and trailing periods are removed; empty
// items are dropped.
func SplitPhrases(list string) []string {
	fields := strings.FieldsFunc(list, func(r rune) bool {
		return r == ',' || r == '\n' || r == ';'
	})

	phrases := make([]string, 0, len(fields))
	for _, field := range fields {
		phrase := strings.TrimSpace(field)
		phrase = strings.TrimLeft(phrase, "-*• \t")
		phrase = trimNumbering(phrase)
		phrase = strings.TrimSpace(strings.TrimRight(phrase, ". \t"))
		if phrase != "" {
			phrases = append(phrases, phrase)
		}
	}
	return phrases
}

func trimNumbering(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
