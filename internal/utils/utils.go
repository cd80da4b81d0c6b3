// Package utils holds small helpers shared across the pre-flight packages.
package utils

// Set is a generic set of comparable values.
type Set[T comparable] map[T]struct{}

// MakeSet returns a Set with space reserved for the given number of elements.
func MakeSet[T comparable](size int) Set[T] {
	return make(Set[T], size)
}

// Has returns whether the set contains the value.
func (s Set[T]) Has(value T) bool {
	_, found := s[value]
	return found
}

// Insert adds the value to the set.
func (s Set[T]) Insert(value T) {
	s[value] = struct{}{}
}
