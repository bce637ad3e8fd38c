package statepatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_InsertPreservesOrderUpdateDoesNot(t *testing.T) {
	s := New()
	s.Set("b", raw("1"))
	s.Set("a", raw("2"))
	s.Set("b", raw("3")) // update, must not move
	assert.Equal(t, []string{"b", "a"}, s.Keys())
}

func TestState_DeleteAbsentIsNoOp(t *testing.T) {
	s := New()
	s.Set("a", raw("1"))
	s.Delete("missing")
	assert.Equal(t, []string{"a"}, s.Keys())
}

func TestState_MarshalJSON_PreservesInsertionOrder(t *testing.T) {
	s := New()
	s.Set("z", raw("1"))
	s.Set("a", raw("2"))
	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":2}`, string(data))
}

func TestState_UnmarshalJSON_PreservesSourceOrder(t *testing.T) {
	s := New()
	err := json.Unmarshal([]byte(`{"z":1,"a":2,"m":3}`), s)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, s.Keys())
}

func TestState_Clone_IsIndependent(t *testing.T) {
	s := New()
	s.Set("a", raw("1"))
	clone := s.Clone()
	clone.Set("a", raw("2"))
	v, _ := s.Get("a")
	assert.Equal(t, "1", string(v))
}
