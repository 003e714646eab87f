// Package order sorts copies of slices by one or more keys.
package order

import "sort"

// Less reports whether left comes before right.
type Less[E any] func(left, right E) bool

type sorter[E any] struct {
	src  []E
	keys []Less[E]
}

func (s sorter[E]) Len() int {
	return len(s.src)
}

func (s sorter[E]) Swap(i, j int) {
	s.src[i], s.src[j] = s.src[j], s.src[i]
}

// Less checks each key in turn; a later key is only consulted when the
// earlier ones consider the two items equal.
func (s sorter[E]) Less(i, j int) bool {
	left, right := s.src[i], s.src[j]
	for _, lt := range s.keys {
		if lt(left, right) {
			return true
		}
		if lt(right, left) {
			return false
		}
	}
	return false
}

// By returns a sorted copy of items. Items are ordered by the first key, with
// ties broken by the next, and so on. Items that all keys consider equal keep
// their original relative order.
//
// items will not be modified.
func By[E any](items []E, keys ...Less[E]) []E {
	if len(items) == 0 || len(keys) == 0 {
		return items
	}

	s := sorter[E]{
		src:  make([]E, len(items)),
		keys: keys,
	}

	copy(s.src, items)
	sort.Stable(s)
	return s.src
}

// Desc reverses lt.
func Desc[E any](lt Less[E]) Less[E] {
	return func(left, right E) bool {
		return lt(right, left)
	}
}
