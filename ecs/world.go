package ecs

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/keelforge/keel/bitset"
)

// World is the top-level container and the only point of shared mutable
// state: one storage per registered component type, a set of typed
// resources, and the entity pool. All concurrent access goes through the
// per-type read/write guards; the scheduler acquires them in registration
// order for whole access sets.
type World struct {
	pool      *Pool
	stores    map[reflect.Type]*slot
	resources map[reflect.Type]*slot
	seq       int
}

// slot is one guarded registry entry, either a component storage or a
// resource. id is the global lock-ordering position.
type slot struct {
	id  int
	typ reflect.Type
	mu  sync.RWMutex
	st  anyStore // nil for resources
	val any      // *xxxStore[T] or resource *T
}

func NewWorld() *World {
	return &World{
		pool:      NewPool(),
		stores:    make(map[reflect.Type]*slot, 16),
		resources: make(map[reflect.Type]*slot, 8),
	}
}

func (w *World) Pool() *Pool { return w.pool }

// Create allocates a fresh entity immediately. Not safe to call from
// concurrently running units; use CommandBuffer.Create there instead.
func (w *World) Create() Entity { return w.pool.Create() }

func (w *World) Alive(e Entity) bool { return w.pool.Alive(e) }

// Destroy retires the entity and strips its data from every registered
// storage. A stale handle is a no-op and reports false. Not safe to call
// from concurrently running units; use CommandBuffer.Destroy there.
func (w *World) Destroy(e Entity) bool {
	if !w.pool.Destroy(e) {
		return false
	}
	idx := e.Index()
	for _, sl := range w.stores {
		sl.st.removeIndex(idx)
	}
	return true
}

// Live returns the bitset of live entity indices, the raw entity operand
// for queries.
func (w *World) Live() *bitset.Set { return w.pool.Live() }

func typeOf[T any]() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// Register binds component type T to a storage policy. Registering the
// same type twice is a setup error.
func Register[T any](w *World, p Policy) error {
	t := typeOf[T]()
	if _, dup := w.stores[t]; dup {
		return fmt.Errorf("component %s: %w", t, ErrAlreadyRegistered)
	}
	var st store[T]
	switch p {
	case PolicyVec:
		st = &vecStore[T]{}
	case PolicyMap:
		st = newMapStore[T]()
	case PolicyDense:
		st = &denseStore[T]{}
	default:
		return fmt.Errorf("component %s: unknown storage policy %d", t, p)
	}
	w.stores[t] = &slot{id: w.seq, typ: t, st: st, val: st}
	w.seq++
	return nil
}

// AddResource installs a single-slot value keyed by its type. Adding the
// same resource type twice is a setup error.
func AddResource[T any](w *World, v T) error {
	t := typeOf[T]()
	if _, dup := w.resources[t]; dup {
		return fmt.Errorf("resource %s: %w", t, ErrAlreadyRegistered)
	}
	w.resources[t] = &slot{id: w.seq, typ: t, val: &v}
	w.seq++
	return nil
}

func (w *World) storeSlot(t reflect.Type) *slot {
	sl, ok := w.stores[t]
	if !ok {
		panic(fmt.Sprintf("ecs: component %s accessed before registration", t))
	}
	return sl
}

func (w *World) resourceSlot(t reflect.Type) *slot {
	sl, ok := w.resources[t]
	if !ok {
		panic(fmt.Sprintf("ecs: resource %s accessed before registration", t))
	}
	return sl
}

// StorageOf returns the read view for T without acquiring its guard. The
// caller must already hold access, either via Read or through a scheduler
// unit whose access set covers T.
func StorageOf[T any](w *World) Storage[T] {
	sl := w.storeSlot(typeOf[T]())
	return Storage[T]{w: w, s: sl.val.(store[T])}
}

// MutStorageOf is the write counterpart of StorageOf.
func MutStorageOf[T any](w *World) MutStorage[T] {
	return MutStorage[T]{StorageOf[T](w)}
}

// ReleaseFunc releases a previously acquired guard or guard set.
type ReleaseFunc func()

// Read acquires the shared guard for T and returns its read view. Blocks
// while a writer holds the type.
func Read[T any](w *World) (Storage[T], ReleaseFunc) {
	sl := w.storeSlot(typeOf[T]())
	sl.mu.RLock()
	return Storage[T]{w: w, s: sl.val.(store[T])}, sl.mu.RUnlock
}

// Write acquires the exclusive guard for T and returns its write view.
func Write[T any](w *World) (MutStorage[T], ReleaseFunc) {
	sl := w.storeSlot(typeOf[T]())
	sl.mu.Lock()
	return MutStorage[T]{Storage[T]{w: w, s: sl.val.(store[T])}}, sl.mu.Unlock
}

// ResourceOf returns the resource value for T without acquiring its guard.
func ResourceOf[T any](w *World) *T {
	return w.resourceSlot(typeOf[T]()).val.(*T)
}

// ReadResource acquires the shared guard for resource T.
func ReadResource[T any](w *World) (*T, ReleaseFunc) {
	sl := w.resourceSlot(typeOf[T]())
	sl.mu.RLock()
	return sl.val.(*T), sl.mu.RUnlock
}

// WriteResource acquires the exclusive guard for resource T.
func WriteResource[T any](w *World) (*T, ReleaseFunc) {
	sl := w.resourceSlot(typeOf[T]())
	sl.mu.Lock()
	return sl.val.(*T), sl.mu.Unlock
}

// ── access sets ────────────────────────────────────────────────

// Key names one guarded registry entry in an access declaration.
type Key struct {
	typ      reflect.Type
	resource bool
}

func ComponentKey[T any]() Key { return Key{typ: typeOf[T]()} }
func ResourceKey[T any]() Key  { return Key{typ: typeOf[T](), resource: true} }

func (k Key) String() string {
	if k.resource {
		return "resource:" + k.typ.String()
	}
	return "component:" + k.typ.String()
}

// Access declares a unit of work's full data needs up front. Two access
// sets conflict iff they share a key where at least one side writes.
type Access struct {
	Reads  []Key
	Writes []Key
}

func (a Access) ConflictsWith(b Access) bool {
	for _, k := range a.Writes {
		if containsKey(b.Writes, k) || containsKey(b.Reads, k) {
			return true
		}
	}
	for _, k := range b.Writes {
		if containsKey(a.Reads, k) {
			return true
		}
	}
	return false
}

func containsKey(keys []Key, k Key) bool {
	for _, have := range keys {
		if have == k {
			return true
		}
	}
	return false
}

// Acquire takes the guards for the whole access set, all-or-nothing, in
// the fixed global registration order, which rules out circular waits.
// Write wins when a key appears on both sides. Blocks until every guard
// is held; the returned ReleaseFunc drops them in reverse order.
func (w *World) Acquire(a Access) (ReleaseFunc, error) {
	type pick struct {
		sl    *slot
		write bool
	}
	picks := make(map[*slot]bool, len(a.Reads)+len(a.Writes))
	resolve := func(k Key) (*slot, error) {
		var sl *slot
		var ok bool
		if k.resource {
			sl, ok = w.resources[k.typ]
		} else {
			sl, ok = w.stores[k.typ]
		}
		if !ok {
			return nil, fmt.Errorf("access %s: %w", k, ErrNotRegistered)
		}
		return sl, nil
	}
	for _, k := range a.Reads {
		sl, err := resolve(k)
		if err != nil {
			return nil, err
		}
		if _, seen := picks[sl]; !seen {
			picks[sl] = false
		}
	}
	for _, k := range a.Writes {
		sl, err := resolve(k)
		if err != nil {
			return nil, err
		}
		picks[sl] = true
	}

	ordered := make([]pick, 0, len(picks))
	for sl, write := range picks {
		ordered = append(ordered, pick{sl, write})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].sl.id < ordered[j].sl.id })

	for _, p := range ordered {
		if p.write {
			p.sl.mu.Lock()
		} else {
			p.sl.mu.RLock()
		}
	}
	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			if ordered[i].write {
				ordered[i].sl.mu.Unlock()
			} else {
				ordered[i].sl.mu.RUnlock()
			}
		}
	}, nil
}
