// Package bitset implements the hierarchical bitmap index that backs
// component storages. Four layers of 64-bit words: each bit in an upper
// layer records whether the corresponding word one layer down has any bit
// set, so iteration and set algebra can skip empty regions in O(1) per
// 64-index block.
package bitset

import "math/bits"

const (
	// wordBits is the width of one layer word.
	wordBits = 64
	// layer3Span is the index range covered by a single layer-3 word.
	layer3Span = 1 << 24
)

// Set is a growable four-layer hierarchical bitset over uint32 indices.
// The zero value is an empty set ready for use.
type Set struct {
	layers [4][]uint64
}

// wordIndex returns the word position of index i within the given layer.
func wordIndex(layer int, i uint32) uint32 {
	return i >> (6 * uint(layer+1))
}

// bitIndex returns the bit position of index i's summary bit at the given layer.
func bitIndex(layer int, i uint32) uint32 {
	return (i >> (6 * uint(layer))) & (wordBits - 1)
}

// Contains reports whether index i is in the set.
func (s *Set) Contains(i uint32) bool {
	w := wordIndex(0, i)
	if int(w) >= len(s.layers[0]) {
		return false
	}
	return s.layers[0][w]&(1<<bitIndex(0, i)) != 0
}

// Add inserts index i and reports whether the set changed.
func (s *Set) Add(i uint32) bool {
	s.grow(i)
	w := wordIndex(0, i)
	mask := uint64(1) << bitIndex(0, i)
	if s.layers[0][w]&mask != 0 {
		return false
	}
	s.layers[0][w] |= mask
	for layer := 1; layer < 4; layer++ {
		s.layers[layer][wordIndex(layer, i)] |= 1 << bitIndex(layer, i)
	}
	return true
}

// Remove deletes index i and reports whether the set changed. Upper-layer
// summary bits are cleared only when the whole word below empties.
func (s *Set) Remove(i uint32) bool {
	w := wordIndex(0, i)
	if int(w) >= len(s.layers[0]) {
		return false
	}
	mask := uint64(1) << bitIndex(0, i)
	if s.layers[0][w]&mask == 0 {
		return false
	}
	s.layers[0][w] &^= mask
	for layer := 0; layer < 3; layer++ {
		if s.layers[layer][wordIndex(layer, i)] != 0 {
			break
		}
		s.layers[layer+1][wordIndex(layer+1, i)] &^= 1 << bitIndex(layer+1, i)
	}
	return true
}

// Clear empties the set, keeping allocated capacity.
func (s *Set) Clear() {
	for layer := range s.layers {
		for i := range s.layers[layer] {
			s.layers[layer][i] = 0
		}
	}
}

// Count returns the number of set indices.
func (s *Set) Count() int {
	n := 0
	for _, w := range s.layers[0] {
		n += bits.OnesCount64(w)
	}
	return n
}

// IsEmpty reports whether no index is set.
func (s *Set) IsEmpty() bool {
	for _, w := range s.layers[3] {
		if w != 0 {
			return false
		}
	}
	return true
}

// Word returns the raw word at position i of the given layer, zero beyond
// the allocated range. It satisfies Like for use in combinator views.
func (s *Set) Word(layer int, i uint32) uint64 {
	if int(i) >= len(s.layers[layer]) {
		return 0
	}
	return s.layers[layer][i]
}

// Extent returns an exclusive upper bound on set indices.
func (s *Set) Extent() uint32 {
	return uint32(len(s.layers[0])) * wordBits
}

func (s *Set) grow(i uint32) {
	for layer := 0; layer < 4; layer++ {
		need := int(wordIndex(layer, i)) + 1
		if need > len(s.layers[layer]) {
			if need <= cap(s.layers[layer]) {
				s.layers[layer] = s.layers[layer][:need]
			} else {
				grown := make([]uint64, need, max(need, 2*cap(s.layers[layer])))
				copy(grown, s.layers[layer])
				s.layers[layer] = grown
			}
		}
	}
}
