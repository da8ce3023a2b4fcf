// Package selector implements access-rule selectors: serializable typed sets
// of ids, with wildcard expansion scoped to an operator and point type.
package selector

import (
	"slices"
	"strconv"
	"strings"
)

// Value is the scalar domain a selector can hold.
type Value interface {
	~int | ~float64 | ~string
}

// Selector is a typed set of scalar values with a canonical comma-separated
// serialization.
type Selector[T Value] struct {
	values []T
}

// New creates a selector holding the given values.
func New[T Value](values ...T) Selector[T] {
	var s Selector[T]
	s.Overwrite(values)
	return s
}

// Add inserts a value; duplicates are ignored.
func (s *Selector[T]) Add(value T) {
	if slices.Contains(s.values, value) {
		return
	}
	s.values = append(s.values, value)
}

// Remove deletes a value if present.
func (s *Selector[T]) Remove(value T) {
	s.values = slices.DeleteFunc(s.values, func(v T) bool { return v == value })
}

// Overwrite replaces the whole value set.
func (s *Selector[T]) Overwrite(values []T) {
	s.values = nil
	for _, v := range values {
		s.Add(v)
	}
}

// Contains reports whether the selector holds the value.
func (s *Selector[T]) Contains(value T) bool {
	return slices.Contains(s.values, value)
}

// Values returns the value set in sorted order.
func (s *Selector[T]) Values() []T {
	out := slices.Clone(s.values)
	slices.Sort(out)
	return out
}

// Len returns the number of values held.
func (s *Selector[T]) Len() int {
	return len(s.values)
}

// Serialize renders the set as a deduplicated, sorted, comma-joined string,
// so equal sets always serialize identically.
func (s *Selector[T]) Serialize() string {
	parts := make([]string, 0, len(s.values))
	for _, v := range s.Values() {
		parts = append(parts, format(v))
	}
	return strings.Join(parts, ",")
}

// Ints parses a comma-separated list into an integer selector. Blank and
// non-numeric tokens are dropped; an empty string yields an empty set.
func Ints(raw string) Selector[int] {
	var s Selector[int]
	for _, token := range tokens(raw) {
		if v, err := strconv.Atoi(token); err == nil {
			s.Add(v)
		}
	}
	return s
}

// Floats parses a comma-separated list into a float selector, dropping
// malformed tokens.
func Floats(raw string) Selector[float64] {
	var s Selector[float64]
	for _, token := range tokens(raw) {
		if v, err := strconv.ParseFloat(token, 64); err == nil {
			s.Add(v)
		}
	}
	return s
}

// Strings parses a comma-separated list into a string selector, dropping
// blank tokens.
func Strings(raw string) Selector[string] {
	var s Selector[string]
	for _, token := range tokens(raw) {
		s.Add(token)
	}
	return s
}

func tokens(raw string) []string {
	var out []string
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		out = append(out, token)
	}
	return out
}

func format[T Value](v T) string {
	switch value := any(v).(type) {
	case int:
		return strconv.Itoa(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case string:
		return value
	default:
		return ""
	}
}
