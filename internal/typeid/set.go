package typeid

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Set is an unordered set of comparable ids. The zero value is not usable;
// create with NewSet.
type Set[T comparable] map[T]struct{}

func NewSet[T comparable](items ...T) Set[T] {
	s := make(Set[T], len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Add adds items to the set.
func (s Set[T]) Add(items ...T) {
	for _, item := range items {
		s[item] = struct{}{}
	}
}

// Remove removes an item; reports whether it was present.
func (s Set[T]) Remove(item T) bool {
	_, ok := s[item]
	delete(s, item)
	return ok
}

func (s Set[T]) Contains(item T) bool {
	_, ok := s[item]
	return ok
}

func (s Set[T]) ContainsAll(items ...T) bool {
	for _, item := range items {
		if !s.Contains(item) {
			return false
		}
	}
	return true
}

func (s Set[T]) Len() int {
	return len(s)
}

// Items returns all items in unspecified order.
func (s Set[T]) Items() iter.Seq[T] {
	return func(yield func(T) bool) {
		for item := range s {
			if !yield(item) {
				return
			}
		}
	}
}

// Clone returns a shallow copy.
func (s Set[T]) Clone() Set[T] {
	out := make(Set[T], len(s))
	for item := range s {
		out[item] = struct{}{}
	}
	return out
}

// Union returns a new set containing items of both sets.
func (s Set[T]) Union(other Set[T]) Set[T] {
	out := s.Clone()
	for item := range other {
		out[item] = struct{}{}
	}
	return out
}

// Difference returns items in s that are not in other.
func (s Set[T]) Difference(other Set[T]) Set[T] {
	out := make(Set[T], len(s))
	for item := range s {
		if !other.Contains(item) {
			out[item] = struct{}{}
		}
	}
	return out
}

// Sorted returns the items of s ordered by their string form.
func Sorted[T interface {
	comparable
	fmt.Stringer
}](s Set[T]) []T {
	out := slices.Collect(s.Items())
	slices.SortFunc(out, func(a, b T) int {
		return strings.Compare(a.String(), b.String())
	})
	return out
}
