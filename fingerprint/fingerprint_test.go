package fingerprint

import (
	"encoding/json"
	"testing"

	"github.com/scriptrpc/scriptrpc/statepatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, pairs ...[2]string) *statepatch.State {
	t.Helper()
	s := statepatch.New()
	for _, p := range pairs {
		s.Set(p[0], json.RawMessage(p[1]))
	}
	return s
}

func TestFingerprint_EmptyMappingIsWellDefined(t *testing.T) {
	fp, err := Fingerprint(statepatch.New())
	require.NoError(t, err)
	assert.NotEmpty(t, fp)
	canon, err := Canonical(statepatch.New())
	require.NoError(t, err)
	assert.Equal(t, "{}", string(canon))
}

func TestFingerprint_EqualStructureSameOrderProducesSameFingerprint(t *testing.T) {
	a := build(t, [2]string{"a", "1"}, [2]string{"b", `"x"`})
	b := build(t, [2]string{"a", "1"}, [2]string{"b", `"x"`})
	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fpA, fpB)
}

func TestFingerprint_ReorderingTopLevelKeysChangesFingerprint(t *testing.T) {
	a := build(t, [2]string{"a", "1"}, [2]string{"b", "2"})
	b := build(t, [2]string{"b", "2"}, [2]string{"a", "1"})
	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)
	assert.NotEqual(t, fpA, fpB)
}

func TestFingerprint_NestedKeyOrderDoesNotMatter(t *testing.T) {
	a := build(t, [2]string{"obj", `{"x":1,"y":2}`})
	b := build(t, [2]string{"obj", `{"y":2,"x":1}`})
	fpA, err := Fingerprint(a)
	require.NoError(t, err)
	fpB, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fpA, fpB, "nested object key order must not affect the fingerprint")
}

func TestFingerprint_DeterministicAcrossRuns(t *testing.T) {
	s := build(t, [2]string{"a", "1"}, [2]string{"nested", `{"z":true,"a":[3,2,1]}`})
	first, err := Fingerprint(s)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		next, err := Fingerprint(s)
		require.NoError(t, err)
		assert.Equal(t, first, next)
	}
}
