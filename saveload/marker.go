// Package saveload persists a subset of a World's entities under
// externally stable identifiers (markers) and reconstructs them, resolving
// cross-entity references that may arrive out of order. The byte format is
// delegated to an encoder-agnostic codec boundary; see the yamlcodec
// subpackage for the YAML implementation.
package saveload

import (
	"errors"
	"fmt"

	"github.com/keelforge/keel/ecs"
)

// Marker is an externally stable entity identifier, independent of the
// live handle. Zero is reserved for "no reference".
type Marker uint64

// ErrStaleMarker marks a table entry whose entity has since been retired.
// The mapping is never silently re-created.
var ErrStaleMarker = errors.New("marker maps to retired entity")

// RegisterMarkers binds the Marker component in w. Markers are rare
// relative to total entities, so they live in a map storage.
func RegisterMarkers(w *ecs.World) error {
	return ecs.Register[Marker](w, ecs.PolicyMap)
}

// MarkerTable is the identity layer: a one-to-one mapping between markers
// and live entities. Entities without a marker are excluded from
// persistence.
type MarkerTable struct {
	entities map[Marker]ecs.Entity
	next     Marker
}

func NewMarkerTable() *MarkerTable {
	return &MarkerTable{
		entities: make(map[Marker]ecs.Entity, 64),
		next:     1,
	}
}

// Mark assigns a fresh marker to e, or returns the existing one.
// Idempotent per entity.
func (t *MarkerTable) Mark(w *ecs.World, e ecs.Entity) (Marker, error) {
	if !w.Alive(e) {
		return 0, ecs.ErrStaleHandle
	}
	st := ecs.MutStorageOf[Marker](w)
	if m, ok := st.Get(e); ok {
		return *m, nil
	}
	m := t.next
	t.next++
	st.Insert(e, m)
	t.entities[m] = e
	return m, nil
}

// Entity returns the live entity currently mapped to m, if any.
func (t *MarkerTable) Entity(w *ecs.World, m Marker) (ecs.Entity, bool) {
	e, ok := t.entities[m]
	if !ok || !w.Alive(e) {
		return 0, false
	}
	return e, true
}

// GetOrCreate returns the entity mapped to m, allocating one on first
// reference so records may point at markers whose own record has not been
// consumed yet. A mapping to a retired entity is an error, never a silent
// re-create. Idempotent within one deserialization pass.
func (t *MarkerTable) GetOrCreate(w *ecs.World, m Marker) (ecs.Entity, error) {
	if e, ok := t.entities[m]; ok {
		if !w.Alive(e) {
			return 0, fmt.Errorf("marker %d: %w", m, ErrStaleMarker)
		}
		return e, nil
	}
	e := w.Create()
	ecs.MutStorageOf[Marker](w).Insert(e, m)
	t.entities[m] = e
	if m >= t.next {
		t.next = m + 1
	}
	return e, nil
}
