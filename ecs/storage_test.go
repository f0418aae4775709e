package ecs

import (
	"math/rand"
	"testing"
)

type health struct{ HP, Max int32 }

func newStore(t *testing.T, p Policy) store[health] {
	t.Helper()
	switch p {
	case PolicyVec:
		return &vecStore[health]{}
	case PolicyMap:
		return newMapStore[health]()
	case PolicyDense:
		return &denseStore[health]{}
	}
	t.Fatalf("unknown policy %d", p)
	return nil
}

func TestStoragePolicies(t *testing.T) {
	policies := []struct {
		name string
		p    Policy
	}{
		{"vec", PolicyVec},
		{"map", PolicyMap},
		{"dense", PolicyDense},
	}

	for _, pol := range policies {
		t.Run(pol.name, func(t *testing.T) {
			s := newStore(t, pol.p)

			s.insert(3, health{HP: 10, Max: 20})
			s.insert(100, health{HP: 5, Max: 5})
			if !s.mask().Contains(3) || !s.mask().Contains(100) {
				t.Fatal("mask missing inserted indices")
			}
			if s.mask().Contains(4) {
				t.Fatal("mask contains never-inserted index")
			}

			if got := s.ref(3); got.HP != 10 {
				t.Errorf("ref(3).HP = %d, want 10", got.HP)
			}

			// Insert-or-replace on an existing index.
			s.insert(3, health{HP: 1, Max: 20})
			if got := s.ref(3); got.HP != 1 {
				t.Errorf("after replace, ref(3).HP = %d, want 1", got.HP)
			}
			if s.mask().Count() != 2 {
				t.Errorf("replace changed cardinality: %d", s.mask().Count())
			}

			// Mutation through the unchecked ref must stick.
			s.ref(100).HP = 7
			if got := s.ref(100); got.HP != 7 {
				t.Errorf("mutation through ref lost: HP = %d", got.HP)
			}

			v, ok := s.take(3)
			if !ok || v.HP != 1 {
				t.Fatalf("take(3) = %+v, %v", v, ok)
			}
			if s.mask().Contains(3) {
				t.Error("mask still contains removed index")
			}
			if _, ok := s.take(3); ok {
				t.Error("second take on same index succeeded")
			}
		})
	}
}

func TestStoragePoliciesAgainstReference(t *testing.T) {
	for _, pol := range []struct {
		name string
		p    Policy
	}{{"vec", PolicyVec}, {"map", PolicyMap}, {"dense", PolicyDense}} {
		t.Run(pol.name, func(t *testing.T) {
			s := newStore(t, pol.p)
			ref := map[uint32]health{}
			rng := rand.New(rand.NewSource(99))

			for n := 0; n < 5000; n++ {
				i := uint32(rng.Intn(512))
				if rng.Intn(3) == 0 {
					v, ok := s.take(i)
					want, wantOK := ref[i]
					if ok != wantOK || (ok && v != want) {
						t.Fatalf("take(%d) = %+v,%v want %+v,%v", i, v, ok, want, wantOK)
					}
					delete(ref, i)
				} else {
					v := health{HP: int32(rng.Intn(100)), Max: 100}
					s.insert(i, v)
					ref[i] = v
				}
			}

			if s.mask().Count() != len(ref) {
				t.Fatalf("mask count %d, want %d", s.mask().Count(), len(ref))
			}
			for i, want := range ref {
				if !s.mask().Contains(i) {
					t.Fatalf("mask missing %d", i)
				}
				if got := *s.ref(i); got != want {
					t.Fatalf("ref(%d) = %+v, want %+v", i, got, want)
				}
			}
		})
	}
}

func TestDenseStoreSwapRemoveKeepsPacking(t *testing.T) {
	s := &denseStore[health]{}
	for i := uint32(0); i < 8; i++ {
		s.insert(i*10, health{HP: int32(i)})
	}
	// Remove from the middle; the last element must be swapped in.
	s.take(30)
	if len(s.vals) != 7 || len(s.owner) != 7 {
		t.Fatalf("packed length %d/%d, want 7", len(s.vals), len(s.owner))
	}
	for at, owner := range s.owner {
		if s.slot[owner] != uint32(at) {
			t.Errorf("slot[%d] = %d, want %d", owner, s.slot[owner], at)
		}
		if s.vals[at].HP != int32(owner/10) {
			t.Errorf("vals[%d].HP = %d, want %d", at, s.vals[at].HP, owner/10)
		}
	}
}
