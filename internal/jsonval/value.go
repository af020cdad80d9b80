// Package jsonval implements an order-preserving JSON value tree.
//
// encoding/json decodes objects into map[string]any, which loses the
// original key order on every round trip. The splitting protocol needs
// byte-identical re-serialization of untouched channels (so checksums
// taken at write time still verify at read time), so this package keeps
// an explicit key ordering alongside the usual JSON value kinds.
package jsonval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

// Object is a JSON object that remembers the order keys were first set.
type Object struct {
	keys   []string
	values map[string]any
}

// NewObject returns an empty, ready-to-use Object.
func NewObject() *Object {
	return &Object{values: make(map[string]any)}
}

// Set inserts or updates key. New keys are appended to the end of the
// iteration order; updating an existing key leaves its position alone.
func (o *Object) Set(key string, value any) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

// Get returns the value stored at key, if any.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Delete removes key from the object, if present.
func (o *Object) Delete(key string) {
	if _, ok := o.values[key]; !ok {
		return
	}
	delete(o.values, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the object's keys in insertion order. The caller must
// not mutate the returned slice.
func (o *Object) Keys() []string {
	return o.keys
}

// Len returns the number of keys in the object.
func (o *Object) Len() int {
	return len(o.keys)
}

// Clone deep-copies the object, including nested Objects and arrays,
// so the result shares no mutable state with the receiver.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	clone := &Object{
		keys:   append([]string(nil), o.keys...),
		values: make(map[string]any, len(o.values)),
	}
	for k, v := range o.values {
		clone.values[k] = CloneValue(v)
	}
	return clone
}

// CloneValue deep-copies an arbitrary value from the jsonval type system
// (nil, bool, float64, string, []any, *Object).
func CloneValue(v any) any {
	switch t := v.(type) {
	case *Object:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = CloneValue(e)
		}
		return out
	default:
		return v
	}
}

// MarshalJSON implements json.Marshaler so an *Object can be passed
// directly to encoding/json (e.g. json.MarshalIndent for CLI output)
// without losing key order.
func (o *Object) MarshalJSON() ([]byte, error) {
	return Marshal(o)
}

// CycleError is returned by Marshal when a value contains a reference
// cycle, mirroring the source's JSON encoder throwing on circular
// structures.
type CycleError struct {
	Via string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("jsonval: encountered a cycle via %s", e.Via)
}

// Marshal renders v as canonical, UTF-8 JSON: object keys are emitted in
// Object's insertion order, and identical input always produces
// identical bytes. It returns a *CycleError if v contains a
// reference cycle through an Object or array.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalValue(&buf, v, map[uintptr]bool{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func marshalValue(buf *bytes.Buffer, v any, seen map[uintptr]bool) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
		return nil
	case *Object:
		if t == nil {
			buf.WriteString("null")
			return nil
		}
		ptr := reflect.ValueOf(t).Pointer()
		if seen[ptr] {
			return &CycleError{Via: "object"}
		}
		seen[ptr] = true
		defer delete(seen, ptr)

		buf.WriteByte('{')
		for i, k := range t.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("jsonval: marshal key %q: %w", k, err)
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := marshalValue(buf, t.values[k], seen); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []any:
		if len(t) > 0 {
			ptr := reflect.ValueOf(t).Pointer()
			if seen[ptr] {
				return &CycleError{Via: "array"}
			}
			seen[ptr] = true
			defer delete(seen, ptr)
		}
		buf.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalValue(buf, e, seen); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("jsonval: marshal value: %w", err)
		}
		buf.Write(b)
		return nil
	}
}

// Unmarshal parses JSON bytes into the jsonval type system, preserving
// object key order via a token-level decode (json.Unmarshal into
// map[string]any would silently discard it).
func Unmarshal(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("jsonval: decode: %w", err)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (any, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := NewObject()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("jsonval: object key is not a string: %v", keyTok)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				obj.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return nil, err
			}
			return obj, nil
		case '[':
			arr := []any{}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				arr = append(arr, val)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return nil, err
			}
			return arr, nil
		default:
			return nil, fmt.Errorf("jsonval: unexpected delimiter %v", t)
		}
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("jsonval: number %q: %w", t.String(), err)
		}
		return f, nil
	default:
		return t, nil
	}
}
