package saveload

import "fmt"

// Raw is one undecoded component payload, decoded on demand by its slot.
type Raw interface {
	Decode(into any) error
}

// Record is the decode-side wire shape of one entity: a stable marker plus
// at most one payload per slot name. A missing name means the entity lacks
// that component.
type Record struct {
	Marker     Marker
	Components map[string]Raw
}

// EncodedRecord mirrors Record on the encode side, with concrete payloads
// in slot declaration order.
type EncodedRecord struct {
	Marker     Marker
	Components []EncodedSlot
}

type EncodedSlot struct {
	Name  string
	Value any
}

// Encoder is the structured-data collaborator's write half: a homogeneous
// sequence of records, one at a time.
type Encoder interface {
	Encode(rec EncodedRecord) error
}

// Decoder is the read half. Next returns io.EOF when the sequence ends.
// Implementations must not require the full sequence in memory.
type Decoder interface {
	Next() (Record, error)
}

// ConvertError attributes a payload decode failure to a specific component
// slot of a specific record.
type ConvertError struct {
	Marker Marker
	Slot   string
	Err    error
}

func (e *ConvertError) Error() string {
	return fmt.Sprintf("convert component %q of marker %d: %v", e.Slot, e.Marker, e.Err)
}

func (e *ConvertError) Unwrap() error { return e.Err }
