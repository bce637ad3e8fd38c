package preload

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedResolver struct {
	path string
	err  error
}

func (f fixedResolver) Resolve(context.Context, string) (string, error) {
	return f.path, f.err
}

type fixedFixtureLoader struct {
	value interface{}
	err   error
}

func (f fixedFixtureLoader) Load(context.Context, string) (interface{}, error) {
	return f.value, f.err
}

func TestBuilder_BuildAssemblesReadyPayload(t *testing.T) {
	b := New(fixedResolver{path: "/scripts/main.js"}, fixedFixtureLoader{value: map[string]interface{}{"flag": true}})
	ts := int64(1700000000000)
	raw, err := b.Build("main.js", &ts)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "main.js", decoded["entryKey"])
	assert.Equal(t, float64(1700000000000), decoded["timestampMs"])
	assert.Equal(t, map[string]interface{}{"flag": true}, decoded["fixture"])
}

func TestBuilder_BuildOmitsTimestampWhenNil(t *testing.T) {
	b := New(fixedResolver{path: "/scripts/main.js"}, nil)
	raw, err := b.Build("main.js", nil)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	_, present := decoded["timestampMs"]
	assert.False(t, present)
}

func TestBuilder_DeterministicAcrossCalls(t *testing.T) {
	b := New(fixedResolver{path: "/scripts/main.js"}, fixedFixtureLoader{value: map[string]interface{}{"a": 1}})
	ts := int64(5)
	first, err := b.Build("main.js", &ts)
	require.NoError(t, err)
	second, err := b.Build("main.js", &ts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestYAMLFixtureLoader_DecodesDocument(t *testing.T) {
	loader := &YAMLFixtureLoader{Reader: fakeFileReader{data: []byte("flag: true\nname: demo\n")}}
	v, err := loader.Load(context.Background(), "fixture.yaml")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"flag": true, "name": "demo"}, v)
}

func TestYAMLFixtureLoader_EmptyPathReturnsNil(t *testing.T) {
	loader := &YAMLFixtureLoader{Reader: fakeFileReader{}}
	v, err := loader.Load(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, v)
}

type fakeFileReader struct {
	data []byte
	err  error
}

func (f fakeFileReader) ReadFile(context.Context, string) ([]byte, error) {
	return f.data, f.err
}
