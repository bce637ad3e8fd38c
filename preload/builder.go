// Package preload implements the deterministic script preload builder: the
// external collaborator Session.Ready consumes to produce its opaque ready
// payload, and the PathResolver it uses to turn a normalized key into a
// filesystem location.
package preload

import (
	"context"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// PathResolver turns a normalized entry key into a filesystem path.
// FileResolver (backed by github.com/viant/afs) is the concrete
// implementation in this package; tests may substitute a fixed map.
type PathResolver interface {
	Resolve(ctx context.Context, entryKey string) (string, error)
}

// FixtureLoader reads the YAML fixture template associated with an entry
// key and returns it decoded into a generic JSON-compatible value. Fixture
// files let a deployment seed the ready payload with canned state (user
// profile defaults, feature flags) without recompiling the preload builder.
type FixtureLoader interface {
	Load(ctx context.Context, path string) (interface{}, error)
}

// Builder implements session.PreloadBuilder: it resolves entryKey to a
// path, loads an optional YAML fixture at that path, and assembles the
// ready payload the client sends as dispatchEvent's "ready" event value.
type Builder struct {
	Resolver PathResolver
	Fixtures FixtureLoader
}

// New wires a PathResolver and FixtureLoader into a Builder.
func New(resolver PathResolver, fixtures FixtureLoader) *Builder {
	return &Builder{Resolver: resolver, Fixtures: fixtures}
}

// readyPayload is the deterministic JSON shape Build produces. Field order
// matters only insofar as json.Marshal is called once per Build call with
// the same struct, which already gives byte-stable output across calls.
type readyPayload struct {
	EntryKey    string      `json:"entryKey"`
	TimestampMs *int64      `json:"timestampMs,omitempty"`
	Fixture     interface{} `json:"fixture,omitempty"`
}

// Build resolves entryKey, loads its fixture if present, and marshals a
// readyPayload. It performs no mutation and is safe to call repeatedly with
// the same arguments for the same underlying fixture file.
func (b *Builder) Build(entryKey string, timestampMs *int64) (json.RawMessage, error) {
	path, err := b.Resolver.Resolve(context.Background(), entryKey)
	if err != nil {
		return nil, fmt.Errorf("resolve entry key %q: %w", entryKey, err)
	}

	var fixture interface{}
	if b.Fixtures != nil {
		fixture, err = b.Fixtures.Load(context.Background(), path)
		if err != nil {
			return nil, fmt.Errorf("load fixture for %q: %w", entryKey, err)
		}
	}

	payload := readyPayload{EntryKey: entryKey, TimestampMs: timestampMs, Fixture: fixture}
	return json.Marshal(payload)
}

// YAMLFixtureLoader decodes a YAML document into a generic value tree via
// gopkg.in/yaml.v3, then copies the tree through normalizeYAML. yaml.v3
// already decodes string-keyed mapping nodes into map[string]interface{},
// which encoding/json accepts downstream.
type YAMLFixtureLoader struct {
	Reader FileReader
}

// FileReader reads the full contents of path. FileResolver satisfies this
// by reading through its Service's OpenURL method.
type FileReader interface {
	ReadFile(ctx context.Context, path string) ([]byte, error)
}

func (l *YAMLFixtureLoader) Load(ctx context.Context, path string) (interface{}, error) {
	if path == "" {
		return nil, nil
	}
	data, err := l.Reader.ReadFile(ctx, path)
	if err != nil {
		return nil, err
	}
	var v interface{}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode fixture %q: %w", path, err)
	}
	return normalizeYAML(v), nil
}

// normalizeYAML recursively copies map[string]interface{} and []interface{}
// nodes. Any other value, including a mapping with non-string keys (which
// yaml.v3 decodes as map[interface{}]interface{}), is returned unchanged
// and is not converted for encoding/json.
func normalizeYAML(v interface{}) interface{} {
	switch actual := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(actual))
		for k, val := range actual {
			out[k] = normalizeYAML(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(actual))
		for i, val := range actual {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}
