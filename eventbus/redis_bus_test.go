package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamIDToSeq_PreservesOrdering(t *testing.T) {
	a, err := streamIDToSeq("1700000000000-0")
	require.NoError(t, err)
	b, err := streamIDToSeq("1700000000000-1")
	require.NoError(t, err)
	c, err := streamIDToSeq("1700000000001-0")
	require.NoError(t, err)

	assert.Less(t, a, b)
	assert.Less(t, b, c)
}

func TestStreamIDToSeq_RejectsMalformedID(t *testing.T) {
	_, err := streamIDToSeq("not-an-id")
	assert.Error(t, err)
}
