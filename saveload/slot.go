package saveload

import (
	"fmt"

	"github.com/keelforge/keel/ecs"
)

// MarkerResolver rewrites a marker to its live entity during decode,
// allocating on first reference.
type MarkerResolver func(Marker) (ecs.Entity, error)

// MarkerLookup maps a live entity back to its marker during encode.
type MarkerLookup func(ecs.Entity) (Marker, bool)

// RefEncoder is implemented by component types whose fields reference
// other entities: it rewrites live handles to markers before encoding.
type RefEncoder interface {
	EncodeRefs(look MarkerLookup) error
}

// RefDecoder is the decode-side counterpart: it rewrites markers back to
// live handles after the payload is decoded.
type RefDecoder interface {
	DecodeRefs(resolve MarkerResolver) error
}

// Ref is a persistable entity reference field. The live handle never hits
// the wire; only the marker does. A zero marker means no reference.
// Component types holding Refs implement RefEncoder/RefDecoder by
// delegating to Bind and Resolve.
type Ref struct {
	Entity ecs.Entity `yaml:"-" json:"-"`
	Marker Marker     `yaml:"marker" json:"marker"`
}

// Bind fills Marker from Entity for encoding. A live reference to an
// unmarked entity cannot be persisted.
func (r *Ref) Bind(look MarkerLookup) error {
	if r.Entity.IsZero() {
		r.Marker = 0
		return nil
	}
	m, ok := look(r.Entity)
	if !ok {
		return fmt.Errorf("referenced entity %d has no marker", r.Entity.Index())
	}
	r.Marker = m
	return nil
}

// Resolve fills Entity from Marker after decoding.
func (r *Ref) Resolve(resolve MarkerResolver) error {
	if r.Marker == 0 {
		r.Entity = 0
		return nil
	}
	e, err := resolve(r.Marker)
	if err != nil {
		return err
	}
	r.Entity = e
	return nil
}

// Slot adapts one component storage to the record protocol: an optional
// payload that is saved when present and, on load, either replaces or
// removes the entity's component.
type Slot interface {
	Name() string
	has(w *ecs.World, i uint32) bool
	save(w *ecs.World, i uint32, look MarkerLookup) (any, error)
	load(w *ecs.World, e ecs.Entity, raw Raw, resolve MarkerResolver) error
	clear(w *ecs.World, e ecs.Entity)
}

type compSlot[T any] struct {
	name string
}

// Comp declares the record slot for component type T under the given wire
// name. The slot list passed to Save and Load fixes the record shape.
func Comp[T any](name string) Slot {
	return compSlot[T]{name: name}
}

func (s compSlot[T]) Name() string { return s.name }

func (s compSlot[T]) has(w *ecs.World, i uint32) bool {
	return ecs.StorageOf[T](w).Mask().Contains(i)
}

func (s compSlot[T]) save(w *ecs.World, i uint32, look MarkerLookup) (any, error) {
	v := *ecs.StorageOf[T](w).GetUnchecked(i)
	if re, ok := any(&v).(RefEncoder); ok {
		if err := re.EncodeRefs(look); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (s compSlot[T]) load(w *ecs.World, e ecs.Entity, raw Raw, resolve MarkerResolver) error {
	var v T
	if err := raw.Decode(&v); err != nil {
		return err
	}
	if rd, ok := any(&v).(RefDecoder); ok {
		if err := rd.DecodeRefs(resolve); err != nil {
			return err
		}
	}
	return ecs.MutStorageOf[T](w).Insert(e, v)
}

func (s compSlot[T]) clear(w *ecs.World, e ecs.Entity) {
	ecs.MutStorageOf[T](w).Remove(e)
}
