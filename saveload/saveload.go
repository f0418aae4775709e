package saveload

import (
	"errors"
	"fmt"
	"io"

	"github.com/keelforge/keel/bitset"
	"github.com/keelforge/keel/ecs"
)

// Save emits one record per marked live entity, in ascending entity index
// order, with one optional payload per slot. The caller must hold (or be
// the sole owner of) the guards for the marker storage and every slot's
// storage.
func Save(w *ecs.World, t *MarkerTable, enc Encoder, slots ...Slot) error {
	markers := ecs.StorageOf[Marker](w)
	look := func(e ecs.Entity) (Marker, bool) {
		m, ok := markers.Get(e)
		if !ok {
			return 0, false
		}
		return *m, true
	}

	view := bitset.And(w.Live(), markers.Mask())
	for i := range bitset.Iter(view) {
		m := *markers.GetUnchecked(i)
		rec := EncodedRecord{Marker: m}
		for _, sl := range slots {
			if !sl.has(w, i) {
				continue
			}
			v, err := sl.save(w, i, look)
			if err != nil {
				return &ConvertError{Marker: m, Slot: sl.Name(), Err: err}
			}
			rec.Components = append(rec.Components, EncodedSlot{Name: sl.Name(), Value: v})
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode record for marker %d: %w", m, err)
		}
	}
	return nil
}

// Load streams records into w, one at a time. Each record is an
// authoritative full replacement of that entity's component set for the
// slots in scope: present payloads insert-or-replace, absent ones remove.
// Entities are resolved or created through the marker table, so a record
// may reference markers whose own records appear later in the sequence.
// A marker redefined by a later record in the same stream is
// last-write-wins. Any decode failure aborts the call; effects of prior
// records are not rolled back.
func Load(w *ecs.World, t *MarkerTable, dec Decoder, slots ...Slot) error {
	resolve := func(m Marker) (ecs.Entity, error) {
		return t.GetOrCreate(w, m)
	}
	for {
		rec, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		e, err := t.GetOrCreate(w, rec.Marker)
		if err != nil {
			return err
		}
		for _, sl := range slots {
			raw, present := rec.Components[sl.Name()]
			if !present {
				sl.clear(w, e)
				continue
			}
			if err := sl.load(w, e, raw, resolve); err != nil {
				return &ConvertError{Marker: rec.Marker, Slot: sl.Name(), Err: err}
			}
		}
	}
}
