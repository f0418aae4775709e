package ecs

import (
	"errors"
	"testing"
)

type position struct{ X, Y float64 }
type velocity struct{ DX, DY float64 }
type tag struct{}

type frameCount struct{ N uint64 }

func TestRegisterTwiceIsError(t *testing.T) {
	w := NewWorld()
	if err := Register[position](w, PolicyVec); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := Register[position](w, PolicyMap)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second Register = %v, want ErrAlreadyRegistered", err)
	}
}

func TestUnregisteredAccessPanics(t *testing.T) {
	w := NewWorld()
	defer func() {
		if recover() == nil {
			t.Fatal("StorageOf on unregistered type did not panic")
		}
	}()
	StorageOf[position](w)
}

func TestGetFailsOnUnsetAndStale(t *testing.T) {
	w := NewWorld()
	if err := Register[position](w, PolicyVec); err != nil {
		t.Fatal(err)
	}

	e := w.Create()
	st, release := Write[position](w)
	defer release()

	if _, ok := st.Get(e); ok {
		t.Error("Get succeeded on an entity with no component")
	}
	if err := st.Insert(e, position{1, 2}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if v, ok := st.Get(e); !ok || v.X != 1 {
		t.Fatalf("Get = %+v, %v", v, ok)
	}

	w.Destroy(e)
	if _, ok := st.Get(e); ok {
		t.Error("Get succeeded through a stale handle")
	}
	if err := st.Insert(e, position{}); !errors.Is(err, ErrStaleHandle) {
		t.Errorf("Insert on stale handle = %v, want ErrStaleHandle", err)
	}

	// Slot reuse: the new entity must not inherit the old component.
	e2 := w.Create()
	if e2.Index() != e.Index() {
		t.Fatal("expected slot reuse")
	}
	if _, ok := st.Get(e2); ok {
		t.Error("recycled entity inherited the destroyed entity's component")
	}
}

func TestDestroyStripsAllStorages(t *testing.T) {
	w := NewWorld()
	if err := Register[position](w, PolicyVec); err != nil {
		t.Fatal(err)
	}
	if err := Register[velocity](w, PolicyDense); err != nil {
		t.Fatal(err)
	}
	if err := Register[tag](w, PolicyMap); err != nil {
		t.Fatal(err)
	}

	e := w.Create()
	MutStorageOf[position](w).Insert(e, position{})
	MutStorageOf[velocity](w).Insert(e, velocity{})
	MutStorageOf[tag](w).Insert(e, tag{})

	w.Destroy(e)
	idx := e.Index()
	if StorageOf[position](w).Mask().Contains(idx) ||
		StorageOf[velocity](w).Mask().Contains(idx) ||
		StorageOf[tag](w).Mask().Contains(idx) {
		t.Error("destroy left component data behind")
	}
}

func TestResources(t *testing.T) {
	w := NewWorld()
	if err := AddResource(w, frameCount{N: 5}); err != nil {
		t.Fatal(err)
	}
	if err := AddResource(w, frameCount{}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second AddResource = %v, want ErrAlreadyRegistered", err)
	}

	fc, release := WriteResource[frameCount](w)
	fc.N++
	release()

	got, release := ReadResource[frameCount](w)
	defer release()
	if got.N != 6 {
		t.Errorf("resource N = %d, want 6", got.N)
	}
}

func TestAcquireUnknownKey(t *testing.T) {
	w := NewWorld()
	_, err := w.Acquire(Access{Reads: []Key{ComponentKey[position]()}})
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("Acquire = %v, want ErrNotRegistered", err)
	}
}

func TestAccessConflicts(t *testing.T) {
	posR := Access{Reads: []Key{ComponentKey[position]()}}
	posW := Access{Writes: []Key{ComponentKey[position]()}}
	velW := Access{Writes: []Key{ComponentKey[velocity]()}}
	resW := Access{Writes: []Key{ResourceKey[frameCount]()}}

	tests := []struct {
		name string
		a, b Access
		want bool
	}{
		{"read read", posR, posR, false},
		{"read write", posR, posW, true},
		{"write write", posW, posW, true},
		{"disjoint writes", posW, velW, false},
		{"component vs resource key", posW, resW, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.ConflictsWith(tt.b); got != tt.want {
				t.Errorf("ConflictsWith = %v, want %v", got, tt.want)
			}
			if got := tt.b.ConflictsWith(tt.a); got != tt.want {
				t.Errorf("reverse ConflictsWith = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCommandBufferFlushOrder(t *testing.T) {
	w := NewWorld()
	if err := Register[position](w, PolicyVec); err != nil {
		t.Fatal(err)
	}

	buf := NewCommandBuffer()
	var created Entity
	buf.Create(func(w *World, e Entity) {
		created = e
		MutStorageOf[position](w).Insert(e, position{X: 1})
	})

	e := w.Create()
	QueueInsert(buf, e, position{X: 2})
	QueueInsert(buf, e, position{X: 3}) // later submission wins
	buf.Destroy(e)
	QueueRemove[position](buf, e) // stale by then, must be skipped

	if got := buf.Len(); got != 5 {
		t.Fatalf("Len = %d, want 5", got)
	}
	if err := buf.Flush(w); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if buf.Len() != 0 {
		t.Error("buffer not cleared after flush")
	}

	if !w.Alive(created) {
		t.Error("deferred create did not produce a live entity")
	}
	if v, ok := StorageOf[position](w).Get(created); !ok || v.X != 1 {
		t.Errorf("deferred create init component = %+v, %v", v, ok)
	}
	if w.Alive(e) {
		t.Error("deferred destroy did not retire the entity")
	}
}
