package bitset

import (
	"iter"
	"math/bits"
)

// Like is the read surface shared by Set and the lazy combinator views, so
// views can be combined and iterated without materializing intermediate sets.
type Like interface {
	Contains(i uint32) bool
	Word(layer int, i uint32) uint64
	Extent() uint32
}

type and struct{ a, b Like }

// And returns a lazy intersection view of a and b. Upper-layer words are
// combined with AND, so descent is pruned by the sparser operand.
func And(a, b Like) Like { return and{a, b} }

func (v and) Contains(i uint32) bool { return v.a.Contains(i) && v.b.Contains(i) }

func (v and) Word(layer int, i uint32) uint64 {
	return v.a.Word(layer, i) & v.b.Word(layer, i)
}

func (v and) Extent() uint32 { return min(v.a.Extent(), v.b.Extent()) }

type or struct{ a, b Like }

// Or returns a lazy union view of a and b.
func Or(a, b Like) Like { return or{a, b} }

func (v or) Contains(i uint32) bool { return v.a.Contains(i) || v.b.Contains(i) }

func (v or) Word(layer int, i uint32) uint64 {
	return v.a.Word(layer, i) | v.b.Word(layer, i)
}

func (v or) Extent() uint32 { return max(v.a.Extent(), v.b.Extent()) }

type andNot struct{ a, b Like }

// AndNot returns a lazy difference view (a minus b). Negation cannot prune
// the hierarchy, so upper layers come from a alone and b is applied at the
// bottom layer.
func AndNot(a, b Like) Like { return andNot{a, b} }

func (v andNot) Contains(i uint32) bool { return v.a.Contains(i) && !v.b.Contains(i) }

func (v andNot) Word(layer int, i uint32) uint64 {
	if layer == 0 {
		return v.a.Word(0, i) &^ v.b.Word(0, i)
	}
	return v.a.Word(layer, i)
}

func (v andNot) Extent() uint32 { return v.a.Extent() }

// Iter returns a single-use ascending sequence over the set indices of s.
// Request a fresh sequence to iterate again.
func Iter(s Like) iter.Seq[uint32] {
	return func(yield func(uint32) bool) {
		extent := s.Extent()
		if extent == 0 {
			return
		}
		top := (extent + layer3Span - 1) / layer3Span
		for i3 := uint32(0); i3 < top; i3++ {
			w3 := s.Word(3, i3)
			for w3 != 0 {
				i2 := i3<<6 | uint32(bits.TrailingZeros64(w3))
				w3 &= w3 - 1
				w2 := s.Word(2, i2)
				for w2 != 0 {
					i1 := i2<<6 | uint32(bits.TrailingZeros64(w2))
					w2 &= w2 - 1
					w1 := s.Word(1, i1)
					for w1 != 0 {
						i0 := i1<<6 | uint32(bits.TrailingZeros64(w1))
						w1 &= w1 - 1
						w0 := s.Word(0, i0)
						for w0 != 0 {
							idx := i0<<6 | uint32(bits.TrailingZeros64(w0))
							w0 &= w0 - 1
							if !yield(idx) {
								return
							}
						}
					}
				}
			}
		}
	}
}
