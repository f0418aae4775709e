package ecs

import (
	"iter"

	"github.com/keelforge/keel/bitset"
)

// Query composes storage masks into a filtered entity sequence: AND over
// positive masks, AND-NOT over negated ones, always intersected with the
// live-entity set so stale slots never appear. Sequences are forward-only
// and ascending by index; request a fresh one to iterate again. The
// operand storages' guards must stay held for the sequence's lifetime.
type Query struct {
	w    *World
	view bitset.Like
}

// Query starts a new query over all live entities.
func (w *World) Query() *Query {
	return &Query{w: w, view: w.pool.Live()}
}

// With narrows the query to entities present in m.
func (q *Query) With(m bitset.Like) *Query {
	q.view = bitset.And(q.view, m)
	return q
}

// Without excludes entities present in m.
func (q *Query) Without(m bitset.Like) *Query {
	q.view = bitset.AndNot(q.view, m)
	return q
}

// Entities returns a single-use ascending sequence of matching handles.
func (q *Query) Entities() iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for idx := range bitset.Iter(q.view) {
			e, ok := q.w.pool.At(idx)
			if !ok {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// Count returns the number of matching entities.
func (q *Query) Count() int {
	n := 0
	for range bitset.Iter(q.view) {
		n++
	}
	return n
}

// Each2 iterates over entities holding both A and B in ascending index
// order, driven by the intersection of the two masks.
func Each2[A, B any](sa Storage[A], sb Storage[B], fn func(Entity, *A, *B)) {
	w := sa.w
	view := bitset.And(w.pool.Live(), bitset.And(sa.Mask(), sb.Mask()))
	for idx := range bitset.Iter(view) {
		e, ok := w.pool.At(idx)
		if !ok {
			continue
		}
		fn(e, sa.GetUnchecked(idx), sb.GetUnchecked(idx))
	}
}

// Each3 iterates over entities holding A, B, and C.
func Each3[A, B, C any](sa Storage[A], sb Storage[B], sc Storage[C], fn func(Entity, *A, *B, *C)) {
	w := sa.w
	view := bitset.And(w.pool.Live(), bitset.And(sa.Mask(), bitset.And(sb.Mask(), sc.Mask())))
	for idx := range bitset.Iter(view) {
		e, ok := w.pool.At(idx)
		if !ok {
			continue
		}
		fn(e, sa.GetUnchecked(idx), sb.GetUnchecked(idx), sc.GetUnchecked(idx))
	}
}
