package utils

import "strings"

// TruncateForLog shortens the provided string to the specified limit, appending an ellipsis when truncated.
func TruncateForLog(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

// TruncateAll applies TruncateForLog to every element and drops empty results.
func TruncateAll(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := TruncateForLog(item, limit); v != "" {
			out = append(out, v)
		}
	}
	return out
}
