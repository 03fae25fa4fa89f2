package rank

import (
	"cmp"
	"slices"
)

// Key identifies a group. Tools that group per scan leave Charge at 0.
type Key struct {
	Scan   int
	Charge int
}

// Groups buffers the records of one scan and hands them to a handler one
// key at a time. Search engines write all candidates of a spectrum
// together but may interleave charges within it, so the buffer is only
// flushed when the scan changes. Sub-groups are handed over in ascending
// charge order, each keeping the input order of its records.
type Groups[T any] struct {
	key    func(T) Key
	handle func([]T) error
	buf    []T
	scan   int
}

// NewGroups creates a grouper.
func NewGroups[T any](key func(T) Key, handle func([]T) error) *Groups[T] {
	return &Groups[T]{key: key, handle: handle}
}

// Add appends rec, first flushing the buffered scan when rec starts a new one.
func (g *Groups[T]) Add(rec T) error {
	s := g.key(rec).Scan
	if len(g.buf) > 0 && s != g.scan {
		if err := g.Flush(); err != nil {
			return err
		}
	}
	g.scan = s
	g.buf = append(g.buf, rec)
	return nil
}

// Flush hands every key of the buffered scan to the handler.
func (g *Groups[T]) Flush() error {
	if len(g.buf) == 0 {
		return nil
	}
	buf := g.buf
	g.buf = nil
	slices.SortStableFunc(buf, func(a, b T) int {
		return cmp.Compare(g.key(a).Charge, g.key(b).Charge)
	})
	for start := 0; start < len(buf); {
		k := g.key(buf[start])
		end := start + 1
		for end < len(buf) && g.key(buf[end]) == k {
			end++
		}
		if err := g.handle(buf[start:end:end]); err != nil {
			return err
		}
		start = end
	}
	return nil
}

// Discard drops the buffered group without handling it.
func (g *Groups[T]) Discard() {
	g.buf = nil
}

// FirstHits selects the best record per charge for every scan.
//
// Records are buffered while the scan stays the same. When a new scan
// arrives, or at end of input, the buffer is sorted by order and the first
// record of every distinct charge is emitted.
type FirstHits[T any] struct {
	scan    func(T) int
	charge  func(T) int
	order   Order[T]
	emit    func(T) error
	buf     []T
	prev    int
	started bool
}

// NewFirstHits creates a first-hits selector.
func NewFirstHits[T any](scan, charge func(T) int, order Order[T], emit func(T) error) *FirstHits[T] {
	return &FirstHits[T]{scan: scan, charge: charge, order: order, emit: emit}
}

// Add buffers rec, flushing the previous scan when rec starts a new one.
func (f *FirstHits[T]) Add(rec T) error {
	s := f.scan(rec)
	if f.started && s != f.prev {
		if err := f.Flush(); err != nil {
			return err
		}
	}
	f.started = true
	f.prev = s
	f.buf = append(f.buf, rec)
	return nil
}

// Flush emits the best record per charge of the buffered scan.
func (f *FirstHits[T]) Flush() error {
	if len(f.buf) == 0 {
		return nil
	}
	buf := f.buf
	f.buf = nil
	slices.SortStableFunc(buf, f.order)

	seen := make(map[int]struct{}, 2)
	for _, rec := range buf {
		c := f.charge(rec)
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		if err := f.emit(rec); err != nil {
			return err
		}
	}
	return nil
}

// Discard drops the buffered scan without emitting it.
func (f *FirstHits[T]) Discard() {
	f.buf = nil
}
