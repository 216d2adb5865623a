package feature

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"sort"
)

// Properties is an ordered property bag. Keys keep the order in which they
// were first set (document order when decoded).
type Properties struct {
	keys []string
	vals map[string]Value
}

// NewProperties builds a bag from alternating key/value pairs.
func NewProperties(kv ...any) Properties {
	var p Properties
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			continue
		}
		p.Set(k, ValueOf(kv[i+1]))
	}
	return p
}

// PropertiesFromMap builds a bag from an unordered map; keys are sorted so
// the result is deterministic.
func PropertiesFromMap(m map[string]any) Properties {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var p Properties
	for _, k := range keys {
		p.Set(k, ValueOf(m[k]))
	}
	return p
}

// Len returns the number of keys.
func (p Properties) Len() int { return len(p.keys) }

// Keys returns the keys in order. The slice must not be modified.
func (p Properties) Keys() []string { return p.keys }

// Get returns the value stored under key.
func (p Properties) Get(key string) (Value, bool) {
	v, ok := p.vals[key]
	return v, ok
}

// Value returns the value stored under key, or null.
func (p Properties) Value(key string) Value {
	return p.vals[key]
}

// Has reports whether key is present.
func (p Properties) Has(key string) bool {
	_, ok := p.vals[key]
	return ok
}

// Set stores v under key, appending key if it is new.
func (p *Properties) Set(key string, v Value) {
	if p.vals == nil {
		p.vals = make(map[string]Value)
	}
	if _, ok := p.vals[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.vals[key] = v
}

// Delete removes key.
func (p *Properties) Delete(key string) {
	if _, ok := p.vals[key]; !ok {
		return
	}
	delete(p.vals, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i:i], p.keys[i+1:]...)
			break
		}
	}
}

// All iterates key/value pairs in order.
func (p Properties) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, k := range p.keys {
			if !yield(k, p.vals[k]) {
				return
			}
		}
	}
}

// Clone returns an independent copy.
func (p Properties) Clone() Properties {
	c := Properties{
		keys: append([]string(nil), p.keys...),
		vals: make(map[string]Value, len(p.vals)),
	}
	for k, v := range p.vals {
		c.vals[k] = v
	}
	return c
}

// Map returns the bag as a plain map of Go values.
func (p Properties) Map() map[string]any {
	m := make(map[string]any, len(p.keys))
	for _, k := range p.keys {
		m[k] = p.vals[k].Interface()
	}
	return m
}

// Equal reports key-for-key equality, order included.
func (p Properties) Equal(o Properties) bool {
	if len(p.keys) != len(o.keys) {
		return false
	}
	for i, k := range p.keys {
		if o.keys[i] != k || !p.vals[k].Equal(o.vals[k]) {
			return false
		}
	}
	return true
}

// MarshalJSON writes the bag as a JSON object in key order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := p.vals[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping document order. A JSON null
// yields an empty bag.
func (p *Properties) UnmarshalJSON(data []byte) error {
	*p = Properties{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("feature: properties must be an object, got %v", tok)
	}

	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := kt.(string)
		if !ok {
			return fmt.Errorf("feature: invalid property key %v", kt)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("feature: property %q: %w", key, err)
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("feature: property %q: %w", key, err)
		}
		p.Set(key, v)
	}
	_, err = dec.Token()
	return err
}
