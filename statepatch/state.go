// Package statepatch implements the tracked state mapping S and the two
// wire encodings a patch against it may take.
package statepatch

import (
	"bytes"
	"encoding/json"
)

// State is an ordered mapping from string key to JSON-compatible value.
// Insertion order is preserved for fingerprinting; a plain Go map cannot
// provide that guarantee because its iteration order is randomized.
type State struct {
	keys   []string
	values map[string]json.RawMessage
}

// New returns an empty State.
func New() *State {
	return &State{values: make(map[string]json.RawMessage)}
}

// Keys returns the keys in insertion order. The returned slice must not be
// mutated by the caller.
func (s *State) Keys() []string {
	return s.keys
}

// Get returns a copy of the raw JSON value for key and whether it is
// present. The copy protects the tracked state from aliasing mutations by
// callers that hold on to the returned slice.
func (s *State) Get(key string) (json.RawMessage, bool) {
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	return append(json.RawMessage(nil), v...), true
}

// Set upserts key to value. Inserting a new key appends it; updating an
// existing key leaves its position unchanged.
func (s *State) Set(key string, value json.RawMessage) {
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = append(json.RawMessage(nil), value...)
}

// Delete removes key if present; deleting an absent key is a no-op.
func (s *State) Delete(key string) {
	if _, exists := s.values[key]; !exists {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of keys currently tracked.
func (s *State) Len() int {
	return len(s.keys)
}

// Clone returns a deep, independent copy of s.
func (s *State) Clone() *State {
	out := New()
	out.keys = append([]string(nil), s.keys...)
	out.values = make(map[string]json.RawMessage, len(s.values))
	for k, v := range s.values {
		out.values[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// MarshalJSON renders S as a JSON object with keys in insertion order.
func (s *State) MarshalJSON() ([]byte, error) {
	return MarshalOrdered(s.keys, s.values)
}

// MarshalOrdered renders an object whose keys appear in the given order,
// looking each value up in values. Values are written verbatim, without
// the nested-key canonicalization fingerprint.Canonical applies.
func MarshalOrdered(keys []string, values map[string]json.RawMessage) ([]byte, error) {
	buf := []byte{'{'}
	for i, k := range keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, values[k]...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// UnmarshalJSON populates S from a JSON object, preserving the source's key
// order (Go's encoding/json exposes object key order only via
// json.Decoder.Token, hence the decoder loop below rather than a plain
// Unmarshal into a map).
func (s *State) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return &json.UnmarshalTypeError{Value: "non-object", Type: nil}
	}
	s.keys = nil
	s.values = make(map[string]json.RawMessage)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		s.Set(key, raw)
	}
	_, err = dec.Token() // closing '}'
	return err
}
