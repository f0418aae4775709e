package ecs

import "github.com/keelforge/keel/bitset"

// Policy selects the backing layout for a component type's storage. The
// binding is fixed at Register time for the type's lifetime in a World.
type Policy int

const (
	// PolicyVec stores values in a slice indexed directly by entity index.
	// Best for near-universal components: O(1) access, memory proportional
	// to the highest live index.
	PolicyVec Policy = iota
	// PolicyMap stores values in a hash map. Best for rare components:
	// memory proportional to the present count.
	PolicyMap
	// PolicyDense keeps values packed in an append-only slice with an
	// index-to-slot map and swap-removal. Best for frequently iterated
	// sparse components: iteration stays cache-dense.
	PolicyDense
)

// anyStore is the uniform surface the registry needs from every storage:
// presence mask plus bulk removal on entity destroy. Typed access goes
// through the generic Storage/MutStorage views instead.
type anyStore interface {
	mask() *bitset.Set
	removeIndex(i uint32)
}

// store is the typed capability surface shared by the three policies.
// ref is unchecked: callers must have confirmed presence via the mask.
type store[T any] interface {
	anyStore
	ref(i uint32) *T
	insert(i uint32, v T)
	take(i uint32) (T, bool)
}

// ── vec ────────────────────────────────────────────────────────

type vecStore[T any] struct {
	m    bitset.Set
	data []T
}

func (s *vecStore[T]) mask() *bitset.Set { return &s.m }

func (s *vecStore[T]) ref(i uint32) *T { return &s.data[i] }

func (s *vecStore[T]) insert(i uint32, v T) {
	if int(i) >= len(s.data) {
		grown := make([]T, int(i)+1, max(int(i)+1, 2*cap(s.data)))
		copy(grown, s.data)
		s.data = grown
	}
	s.data[i] = v
	s.m.Add(i)
}

func (s *vecStore[T]) take(i uint32) (T, bool) {
	var zero T
	if !s.m.Remove(i) {
		return zero, false
	}
	v := s.data[i]
	s.data[i] = zero
	return v, true
}

func (s *vecStore[T]) removeIndex(i uint32) { s.take(i) }

// ── map ────────────────────────────────────────────────────────

// Values are boxed so refs stay valid across map growth.
type mapStore[T any] struct {
	m    bitset.Set
	data map[uint32]*T
}

func newMapStore[T any]() *mapStore[T] {
	return &mapStore[T]{data: make(map[uint32]*T, 64)}
}

func (s *mapStore[T]) mask() *bitset.Set { return &s.m }

func (s *mapStore[T]) ref(i uint32) *T { return s.data[i] }

func (s *mapStore[T]) insert(i uint32, v T) {
	s.data[i] = &v
	s.m.Add(i)
}

func (s *mapStore[T]) take(i uint32) (T, bool) {
	var zero T
	if !s.m.Remove(i) {
		return zero, false
	}
	v := *s.data[i]
	delete(s.data, i)
	return v, true
}

func (s *mapStore[T]) removeIndex(i uint32) { s.take(i) }

// ── dense ──────────────────────────────────────────────────────

type denseStore[T any] struct {
	m     bitset.Set
	vals  []T
	owner []uint32 // entity index per packed slot
	slot  []uint32 // entity index -> packed slot, valid only when masked
}

func (s *denseStore[T]) mask() *bitset.Set { return &s.m }

func (s *denseStore[T]) ref(i uint32) *T { return &s.vals[s.slot[i]] }

func (s *denseStore[T]) insert(i uint32, v T) {
	if !s.m.Add(i) {
		s.vals[s.slot[i]] = v
		return
	}
	if int(i) >= len(s.slot) {
		grown := make([]uint32, int(i)+1, max(int(i)+1, 2*cap(s.slot)))
		copy(grown, s.slot)
		s.slot = grown
	}
	s.slot[i] = uint32(len(s.vals))
	s.vals = append(s.vals, v)
	s.owner = append(s.owner, i)
}

func (s *denseStore[T]) take(i uint32) (T, bool) {
	var zero T
	if !s.m.Remove(i) {
		return zero, false
	}
	at := s.slot[i]
	last := uint32(len(s.vals) - 1)
	v := s.vals[at]
	if at != last {
		s.vals[at] = s.vals[last]
		s.owner[at] = s.owner[last]
		s.slot[s.owner[at]] = at
	}
	s.vals[last] = zero
	s.vals = s.vals[:last]
	s.owner = s.owner[:last]
	return v, true
}

func (s *denseStore[T]) removeIndex(i uint32) { s.take(i) }
