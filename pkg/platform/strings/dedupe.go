// Package strings provides helpers for string-like identifier slices.
package strings

import (
	"strings"
)

// Dedupe removes duplicates and blank values from ids, trimming whitespace.
// Order of first occurrence is preserved.
//
// Example:
//
//	Dedupe([]UserID{" u1 ", "u2", "u1", ""})
//	// Returns: []UserID{"u1", "u2"}
func Dedupe[T ~string](ids []T) []T {
	if len(ids) == 0 {
		return ids
	}

	seen := make(map[T]struct{}, len(ids))
	result := make([]T, 0, len(ids))

	for _, v := range ids {
		trimmed := T(strings.TrimSpace(string(v)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}
