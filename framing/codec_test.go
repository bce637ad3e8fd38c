package framing

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/scriptrpc/scriptrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFrame_ReadFrame_RoundTrip(t *testing.T) {
	testCases := []struct {
		name    string
		payload []byte
	}{
		{name: "empty payload", payload: []byte{}},
		{name: "small json object", payload: []byte(`{"id":1,"method":"ping"}`)},
		{name: "unicode payload", payload: []byte(`{"msg":"héllo 世界"}`)},
	}

	for _, tc := range testCases {
		var buf bytes.Buffer
		require.NoError(t, WriteFrame(&buf, tc.payload), tc.name)
		got, err := ReadFrame(&buf)
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.payload, got, tc.name)
	}
}

func TestReadFrame_CleanEOF(t *testing.T) {
	_, err := ReadFrame(&bytes.Buffer{})
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrame_PartialHeaderIsProtocolError(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{0x00, 0x01}))
	assert.True(t, scriptrpc.IsProtocolError(err))
}

func TestReadFrame_PartialPayloadIsProtocolError(t *testing.T) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, 10)
	buf := append(header, []byte("short")...)
	_, err := ReadFrame(bytes.NewReader(buf))
	assert.True(t, scriptrpc.IsProtocolError(err))
}

func TestReadFrame_OversizedLengthIsProtocolError(t *testing.T) {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, scriptrpc.MaxFrameSize+1)
	_, err := ReadFrame(bytes.NewReader(header))
	assert.True(t, scriptrpc.IsProtocolError(err))
}

func TestWriteFrame_OversizedPayloadIsProtocolError(t *testing.T) {
	var buf bytes.Buffer
	err := WriteFrame(&buf, make([]byte, scriptrpc.MaxFrameSize+1))
	assert.True(t, scriptrpc.IsProtocolError(err))
}
