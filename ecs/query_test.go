package ecs

import (
	"math/rand"
	"testing"
)

type compInt struct{ V int }
type compBool struct{ V bool }

func TestJoinConcreteScenario(t *testing.T) {
	w := NewWorld()
	if err := Register[compInt](w, PolicyVec); err != nil {
		t.Fatal(err)
	}
	if err := Register[compBool](w, PolicyMap); err != nil {
		t.Fatal(err)
	}

	ints := MutStorageOf[compInt](w)
	bools := MutStorageOf[compBool](w)

	spawn := func(i int, b bool) Entity {
		e := w.Create()
		ints.Insert(e, compInt{i})
		bools.Insert(e, compBool{b})
		return e
	}
	a := spawn(4, false)
	b := spawn(9, true)
	c := spawn(-1, false)

	type row struct {
		e Entity
		i int
		b bool
	}
	gather := func() []row {
		var rows []row
		Each2(ints.Storage, bools.Storage, func(e Entity, ci *compInt, cb *compBool) {
			rows = append(rows, row{e, ci.V, cb.V})
		})
		return rows
	}

	want := []row{{a, 4, false}, {b, 9, true}, {c, -1, false}}
	got := gather()
	if len(got) != len(want) {
		t.Fatalf("join yielded %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	w.Destroy(b)
	got = gather()
	want = []row{{a, 4, false}, {c, -1, false}}
	if len(got) != len(want) {
		t.Fatalf("after destroy, join yielded %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("after destroy, row %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestJoinWithoutMatchesNaiveDifference(t *testing.T) {
	w := NewWorld()
	if err := Register[compInt](w, PolicyDense); err != nil {
		t.Fatal(err)
	}
	if err := Register[compBool](w, PolicyMap); err != nil {
		t.Fatal(err)
	}

	ints := MutStorageOf[compInt](w)
	bools := MutStorageOf[compBool](w)

	rng := rand.New(rand.NewSource(11))
	hasInt := map[Entity]bool{}
	hasBool := map[Entity]bool{}
	var all []Entity
	for n := 0; n < 800; n++ {
		e := w.Create()
		all = append(all, e)
		if rng.Intn(2) == 0 {
			ints.Insert(e, compInt{n})
			hasInt[e] = true
		}
		if rng.Intn(3) == 0 {
			bools.Insert(e, compBool{true})
			hasBool[e] = true
		}
	}
	// Destroy a random slice of entities so stale slots are in play.
	for _, e := range all {
		if rng.Intn(10) == 0 {
			w.Destroy(e)
			delete(hasInt, e)
			delete(hasBool, e)
		}
	}

	var want []Entity
	for _, e := range all {
		if w.Alive(e) && hasInt[e] && !hasBool[e] {
			want = append(want, e)
		}
	}

	var got []Entity
	q := w.Query().With(ints.Mask()).Without(bools.Mask())
	for e := range q.Entities() {
		got = append(got, e)
	}

	if len(got) != len(want) {
		t.Fatalf("query yielded %d entities, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("entity %d = %v, want %v", i, got[i], want[i])
		}
		if i > 0 && got[i-1].Index() >= got[i].Index() {
			t.Fatalf("query not ascending: %d then %d", got[i-1].Index(), got[i].Index())
		}
	}

	if q2 := w.Query().With(ints.Mask()).Without(bools.Mask()); q2.Count() != len(want) {
		t.Errorf("Count = %d, want %d", q2.Count(), len(want))
	}
}

func TestEach3(t *testing.T) {
	w := NewWorld()
	Register[compInt](w, PolicyVec)
	Register[compBool](w, PolicyMap)
	Register[position](w, PolicyDense)

	ints := MutStorageOf[compInt](w)
	bools := MutStorageOf[compBool](w)
	pos := MutStorageOf[position](w)

	full := w.Create()
	ints.Insert(full, compInt{1})
	bools.Insert(full, compBool{true})
	pos.Insert(full, position{X: 3})

	partial := w.Create()
	ints.Insert(partial, compInt{2})
	pos.Insert(partial, position{X: 4})

	n := 0
	Each3(ints.Storage, bools.Storage, pos.Storage, func(e Entity, i *compInt, b *compBool, p *position) {
		n++
		if e != full {
			t.Errorf("unexpected entity %v in 3-way join", e)
		}
	})
	if n != 1 {
		t.Errorf("3-way join yielded %d entities, want 1", n)
	}
}
