// Package rank groups search results by spectrum, ranks them within each
// group and selects synopsis or first-hits records.
package rank

import (
	"cmp"
	"slices"

	"gonum.org/v1/gonum/floats/scalar"
)

// Epsilon is the largest score difference still treated as a tie.
const Epsilon = 1e-9

// Order compares two records; a negative result sorts a before b.
type Order[T any] func(a, b T) int

// ByScore orders records by score, best first.
func ByScore[T any](score func(T) float64, higherIsBetter bool) Order[T] {
	return func(a, b T) int {
		if higherIsBetter {
			return cmp.Compare(score(b), score(a))
		}
		return cmp.Compare(score(a), score(b))
	}
}

// Then chains tie-breaking orders after o.
func (o Order[T]) Then(next ...Order[T]) Order[T] {
	return func(a, b T) int {
		if c := o(a, b); c != 0 {
			return c
		}
		for _, n := range next {
			if c := n(a, b); c != 0 {
				return c
			}
		}
		return 0
	}
}

// AssignRanks sorts group by order and numbers it from 1. The rank only
// increases when score differs from the previous record by more than
// Epsilon, so ties share a rank and ranks stay contiguous.
func AssignRanks[T any](group []T, order Order[T], score func(T) float64, set func(T, int)) {
	slices.SortStableFunc(group, order)
	r := 0
	for i, rec := range group {
		if i == 0 || !scalar.EqualWithinAbs(score(rec), score(group[i-1]), Epsilon) {
			r++
		}
		set(rec, r)
	}
}

// DeltaNorm returns |(a-b)/a|, or 0 when a is 0.
func DeltaNorm(a, b float64) float64 {
	if a == 0 {
		return 0
	}
	d := (a - b) / a
	if d < 0 {
		return -d
	}
	return d
}

// AssignDeltaNorm sorts group by order and sets, for each record, the
// normalized score gap to the next record. The last record gets 0.
func AssignDeltaNorm[T any](group []T, order Order[T], score func(T) float64, set func(T, float64)) {
	slices.SortStableFunc(group, order)
	for i, rec := range group {
		if i+1 < len(group) {
			set(rec, DeltaNorm(score(rec), score(group[i+1])))
		} else {
			set(rec, 0)
		}
	}
}

// Predicate decides whether a record passes a filter.
type Predicate[T any] func(T) bool

// AnyOf passes a record when at least one predicate passes it.
func AnyOf[T any](preds ...Predicate[T]) Predicate[T] {
	return func(rec T) bool {
		for _, p := range preds {
			if p(rec) {
				return true
			}
		}
		return false
	}
}

// AtLeast passes records whose score is >= threshold.
func AtLeast[T any](score func(T) float64, threshold float64) Predicate[T] {
	return func(rec T) bool { return score(rec) >= threshold }
}

// AtMost passes records whose score is <= threshold.
func AtMost[T any](score func(T) float64, threshold float64) Predicate[T] {
	return func(rec T) bool { return score(rec) <= threshold }
}
