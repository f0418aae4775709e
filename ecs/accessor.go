package ecs

import "github.com/keelforge/keel/bitset"

// Storage is the read view over a component type's storage. Presence is
// always bitmap-driven: Get fails on an unset index rather than returning
// a zero value.
type Storage[T any] struct {
	w *World
	s store[T]
}

// Mask returns the presence bitset. Valid for query composition while the
// storage's guard is held.
func (v Storage[T]) Mask() *bitset.Set { return v.s.mask() }

// Has reports whether the live entity e currently holds a T.
func (v Storage[T]) Has(e Entity) bool {
	return v.w.pool.Alive(e) && v.s.mask().Contains(e.Index())
}

// Get returns the component for e, failing on stale handles and unset
// entities.
func (v Storage[T]) Get(e Entity) (*T, bool) {
	if !v.Has(e) {
		return nil, false
	}
	return v.s.ref(e.Index()), true
}

// GetUnchecked returns the value at a raw index without any presence
// check. The caller must have confirmed membership via the mask; this is
// the one place correctness is delegated to the caller for speed.
func (v Storage[T]) GetUnchecked(i uint32) *T { return v.s.ref(i) }

// MutStorage is the write view: everything Storage offers plus insertion
// and removal. No insertion or removal may happen on a storage that is
// currently driving an open query sequence.
type MutStorage[T any] struct {
	Storage[T]
}

// Insert sets e's component, replacing any existing value. Fails on a
// stale handle.
func (v MutStorage[T]) Insert(e Entity, val T) error {
	if !v.w.pool.Alive(e) {
		return ErrStaleHandle
	}
	v.s.insert(e.Index(), val)
	return nil
}

// Remove deletes e's component, returning the removed value if present.
func (v MutStorage[T]) Remove(e Entity) (T, bool) {
	var zero T
	if !v.w.pool.Alive(e) {
		return zero, false
	}
	return v.s.take(e.Index())
}
