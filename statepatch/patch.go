package statepatch

import "encoding/json"

// objectForm is the {set?, remove?} wire encoding of a patch.
type objectForm struct {
	Set    []json.RawMessage `json:"set,omitempty"`
	Remove []string          `json:"remove,omitempty"`
}

// Apply mutates s according to patch, which may be absent/null (no-op), the
// object form {set, remove}, or the array form [[k,v], ...] where a null v
// deletes k. Entries that are not 2-element [key, value] arrays are skipped.
func Apply(s *State, patch json.RawMessage) error {
	if len(patch) == 0 || string(patch) == "null" {
		return nil
	}

	trimmed := firstNonSpace(patch)
	switch trimmed {
	case '{':
		return applyObjectForm(s, patch)
	case '[':
		return applyArrayForm(s, patch)
	default:
		return nil
	}
}

func applyObjectForm(s *State, patch json.RawMessage) error {
	var obj objectForm
	if err := json.Unmarshal(patch, &obj); err != nil {
		return err
	}
	for _, entry := range obj.Set {
		key, value, ok, err := decodePair(entry)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		s.Set(key, value)
	}
	for _, key := range obj.Remove {
		s.Delete(key)
	}
	return nil
}

func applyArrayForm(s *State, patch json.RawMessage) error {
	var entries []json.RawMessage
	if err := json.Unmarshal(patch, &entries); err != nil {
		return err
	}
	for _, entry := range entries {
		key, value, ok, err := decodePair(entry)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if isJSONNull(value) {
			s.Delete(key)
		} else {
			s.Set(key, value)
		}
	}
	return nil
}

// decodePair decodes entry as a 2-element [key, value] array. ok is false
// (no error) when entry is not a well-formed 2-element array, matching the
// spec's "skip malformed entries silently" rule.
func decodePair(entry json.RawMessage) (key string, value json.RawMessage, ok bool, err error) {
	var pair []json.RawMessage
	if err = json.Unmarshal(entry, &pair); err != nil {
		return "", nil, false, nil //nolint:nilerr // malformed entries are skipped, not fatal
	}
	if len(pair) != 2 {
		return "", nil, false, nil
	}
	if err = json.Unmarshal(pair[0], &key); err != nil {
		return "", nil, false, nil
	}
	return key, pair[1], true, nil
}

func isJSONNull(raw json.RawMessage) bool {
	return string(firstNonSpaceRun(raw)) == "null"
}

func firstNonSpace(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return b
		}
	}
	return 0
}

func firstNonSpaceRun(data json.RawMessage) []byte {
	i := 0
	for i < len(data) {
		switch data[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		return data[i:]
	}
	return data[i:]
}
