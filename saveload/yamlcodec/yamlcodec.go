// Package yamlcodec implements the saveload codec boundary over streaming
// YAML: one document per entity record, decoded one at a time, with
// per-slot payloads deferred via yaml.Node so failures carry line and
// column context.
package yamlcodec

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/keelforge/keel/saveload"
)

type document struct {
	Marker     uint64               `yaml:"marker"`
	Components map[string]yaml.Node `yaml:"components,omitempty"`
}

type Encoder struct {
	enc *yaml.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: yaml.NewEncoder(w)}
}

func (e *Encoder) Encode(rec saveload.EncodedRecord) error {
	doc := struct {
		Marker     uint64         `yaml:"marker"`
		Components map[string]any `yaml:"components,omitempty"`
	}{Marker: uint64(rec.Marker)}
	if len(rec.Components) > 0 {
		doc.Components = make(map[string]any, len(rec.Components))
		for _, s := range rec.Components {
			doc.Components[s.Name] = s.Value
		}
	}
	return e.enc.Encode(doc)
}

// Close flushes the final document. Required before reading the output.
func (e *Encoder) Close() error { return e.enc.Close() }

type Decoder struct {
	dec *yaml.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: yaml.NewDecoder(r)}
}

// Next decodes the next record document, returning io.EOF at end of
// stream.
func (d *Decoder) Next() (saveload.Record, error) {
	var doc document
	if err := d.dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return saveload.Record{}, io.EOF
		}
		return saveload.Record{}, err
	}
	rec := saveload.Record{Marker: saveload.Marker(doc.Marker)}
	if len(doc.Components) > 0 {
		rec.Components = make(map[string]saveload.Raw, len(doc.Components))
		for name, node := range doc.Components {
			n := node
			rec.Components[name] = rawNode{node: &n}
		}
	}
	return rec, nil
}

type rawNode struct {
	node *yaml.Node
}

func (r rawNode) Decode(into any) error {
	if err := r.node.Decode(into); err != nil {
		return fmt.Errorf("yaml line %d col %d: %w", r.node.Line, r.node.Column, err)
	}
	return nil
}
