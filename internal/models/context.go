package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

// ErrInvalidShape is returned when context data is neither a plain string nor
// a string-keyed mapping.
var ErrInvalidShape = errors.New("context data must be a string or a string-keyed mapping")

// ContextPair is a single topic entry of a mapping-shaped context.
type ContextPair struct {
	Key   string
	Value string
}

// ContextData holds the owner-supplied configuration of a chatbot: either an
// opaque text blob or an ordered mapping from topic key to free text. Entry
// order is preserved through JSON and BSON round trips so that the flattened
// instruction stays stable.
type ContextData struct {
	text   string
	pairs  []ContextPair
	isText bool
}

// NewTextContext builds context data from an opaque text blob.
func NewTextContext(text string) ContextData {
	return ContextData{text: text, isText: true}
}

// NewMappingContext builds context data from ordered topic entries.
func NewMappingContext(pairs ...ContextPair) ContextData {
	return ContextData{pairs: pairs}
}

// IsEmpty reports whether no context has been supplied.
func (c ContextData) IsEmpty() bool {
	if c.isText {
		return c.text == ""
	}
	return len(c.pairs) == 0
}

// IsText reports whether the source value is a plain string.
func (c ContextData) IsText() bool {
	return c.isText
}

// Pairs returns the ordered topic entries of a mapping-shaped context.
func (c ContextData) Pairs() []ContextPair {
	return c.pairs
}

// Instruction flattens the context into the string fed to the language model.
// A text blob is returned verbatim; a mapping is rendered as one
// "{key} is {value}" clause per line, in entry order.
func (c ContextData) Instruction() string {
	if c.isText {
		return c.text
	}

	var b strings.Builder
	for i, p := range c.pairs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(p.Key)
		b.WriteString(" is ")
		b.WriteString(p.Value)
	}
	return b.String()
}

// MarshalJSON writes the raw (pre-normalization) form: a JSON string or an
// object with entries in their original order.
func (c ContextData) MarshalJSON() ([]byte, error) {
	if c.isText {
		return json.Marshal(c.text)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range c.pairs {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(p.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts a JSON string or a flat object of string values,
// preserving object key order.
func (c *ContextData) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}

	switch t := tok.(type) {
	case string:
		*c = ContextData{text: t, isText: true}
		return nil
	case json.Delim:
		if t != '{' {
			return ErrInvalidShape
		}
	default:
		return ErrInvalidShape
	}

	var pairs []ContextPair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return ErrInvalidShape
		}

		valTok, err := dec.Token()
		if err != nil {
			return err
		}
		val, ok := valTok.(string)
		if !ok {
			return ErrInvalidShape
		}

		pairs = append(pairs, ContextPair{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*c = ContextData{pairs: pairs}
	return nil
}

// MarshalBSONValue stores the raw form as a BSON string or embedded document.
func (c ContextData) MarshalBSONValue() (bsontype.Type, []byte, error) {
	if c.isText {
		return bson.MarshalValue(c.text)
	}

	doc := make(bson.D, 0, len(c.pairs))
	for _, p := range c.pairs {
		doc = append(doc, bson.E{Key: p.Key, Value: p.Value})
	}
	return bson.MarshalValue(doc)
}

// UnmarshalBSONValue reads a BSON string or embedded document, preserving the
// document's element order.
func (c *ContextData) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	switch t {
	case bsontype.String:
		raw := bson.RawValue{Type: t, Value: data}
		text, ok := raw.StringValueOK()
		if !ok {
			return ErrInvalidShape
		}
		*c = ContextData{text: text, isText: true}
		return nil
	case bsontype.EmbeddedDocument:
		elems, err := bson.Raw(data).Elements()
		if err != nil {
			return fmt.Errorf("malformed context document: %w", err)
		}
		pairs := make([]ContextPair, 0, len(elems))
		for _, el := range elems {
			val, ok := el.Value().StringValueOK()
			if !ok {
				return ErrInvalidShape
			}
			pairs = append(pairs, ContextPair{Key: el.Key(), Value: val})
		}
		*c = ContextData{pairs: pairs}
		return nil
	default:
		return ErrInvalidShape
	}
}
