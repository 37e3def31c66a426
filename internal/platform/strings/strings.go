// Package strings provides string and string-slice helpers
package strings

import (
	"slices"
	std "strings"
)

// IfEmpty returns def if in is empty, otherwise returns in
func IfEmpty[T any](in []T, def []T) []T {
	if len(in) == 0 {
		return def
	}
	return in
}

// MustString returns s if it has non whitespace content otherwise panics
// name is used in the panic message
func MustString(s string, name string) string {
	if std.TrimSpace(s) == "" {
		panic(name + " is required")
	}
	return s
}

// MustPrefix normalizes a route root like /sets to one leading slash and no trailing one
// panics if nothing is left after trimming
func MustPrefix(s string) string {
	s = "/" + std.Trim(std.TrimSpace(s), " /")
	if s == "/" {
		panic("root path is required")
	}
	return s
}

// SortedUnique returns a sorted copy of in without duplicates or blanks
// the result is never nil so it stores as an empty array
func SortedUnique(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if std.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// SameSet reports whether a and b hold the same members, ignoring order and duplicates
func SameSet(a, b []string) bool {
	return slices.Equal(SortedUnique(a), SortedUnique(b))
}

// Without returns in minus every occurrence of drop, preserving order
func Without(in []string, drop string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != drop {
			out = append(out, s)
		}
	}
	return out
}
