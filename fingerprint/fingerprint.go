// Package fingerprint computes a deterministic digest of a tracked state
// mapping, used by both ends of the connection as an equality witness.
package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/scriptrpc/scriptrpc/statepatch"
)

// Fingerprint returns the SHA-256 hex digest of s's canonical JSON form.
// Top-level key order follows s's insertion order (not sorted) so it
// matches the server's expected ordering; keys inside nested objects are
// sorted lexicographically so structurally equal nested values always
// canonicalize identically regardless of how they were built.
func Fingerprint(s *statepatch.State) (string, error) {
	canonical, err := Canonical(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// Canonical returns s's canonical byte encoding without hashing it, useful
// for tests that want to assert on the exact bytes two implementations
// agree on.
func Canonical(s *statepatch.State) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range s.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		value, _ := s.Get(key)
		canonicalValue, err := canonicalizeValue(value)
		if err != nil {
			return nil, err
		}
		buf.Write(canonicalValue)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// canonicalizeValue re-encodes raw with object keys sorted at every nesting
// level, no insignificant whitespace, and numbers preserved in their
// original textual form (itself already a valid round-trip encoding, and
// simpler than reformatting through float64 which would lose precision for
// large integers).
func canonicalizeValue(raw json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeCanonical(buf *bytes.Buffer, v interface{}) error {
	switch actual := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(actual))
		for k := range actual {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyJSON, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyJSON)
			buf.WriteByte(':')
			if err := encodeCanonical(buf, actual[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case []interface{}:
		buf.WriteByte('[')
		for i, elem := range actual {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case json.Number:
		buf.WriteString(string(actual))
		return nil
	default:
		data, err := json.Marshal(actual)
		if err != nil {
			return err
		}
		buf.Write(data)
		return nil
	}
}
