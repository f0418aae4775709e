package ecs

import "github.com/keelforge/keel/bitset"

// Entity encodes a 32-bit slot index in the lower bits and a 32-bit
// generation in the upper bits. Generations start at 1 and increment on
// destroy, so the zero Entity is never a live handle and stale references
// are always detectable.
type Entity uint64

func NewEntity(index uint32, generation uint32) Entity {
	return Entity(uint64(generation)<<32 | uint64(index))
}

func (e Entity) Index() uint32      { return uint32(e) }
func (e Entity) Generation() uint32 { return uint32(e >> 32) }
func (e Entity) IsZero() bool       { return e == 0 }

// Pool manages entity allocation with generational indices and a free list.
// It also maintains the live-entity bitset used as the raw entity operand
// in queries.
type Pool struct {
	generations []uint32
	freeList    []uint32
	nextIndex   uint32
	live        bitset.Set
}

func NewPool() *Pool {
	return &Pool{
		generations: make([]uint32, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *Pool) Create() Entity {
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		p.live.Add(idx)
		return NewEntity(idx, p.generations[idx])
	}
	idx := p.nextIndex
	p.nextIndex++
	p.generations = append(p.generations, 1)
	p.live.Add(idx)
	return NewEntity(idx, p.generations[idx])
}

func (p *Pool) Alive(e Entity) bool {
	idx := e.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.live.Contains(idx) && p.generations[idx] == e.Generation()
}

// Destroy retires the entity's slot for reuse and bumps its generation,
// invalidating every outstanding handle to it. Destroying a stale handle
// is a no-op and reports false.
func (p *Pool) Destroy(e Entity) bool {
	if !p.Alive(e) {
		return false
	}
	idx := e.Index()
	p.generations[idx]++
	p.live.Remove(idx)
	p.freeList = append(p.freeList, idx)
	return true
}

// Live returns the bitset of live entity indices.
func (p *Pool) Live() *bitset.Set { return &p.live }

// At reconstructs the current handle for a live slot index.
func (p *Pool) At(idx uint32) (Entity, bool) {
	if !p.live.Contains(idx) {
		return 0, false
	}
	return NewEntity(idx, p.generations[idx]), true
}

func (p *Pool) Count() int { return p.live.Count() }
