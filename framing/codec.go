// Package framing implements the length-prefixed wire format shared by the
// client and server: a 4-byte big-endian length followed by that many bytes
// of UTF-8 JSON. It performs no JSON parsing of its own.
package framing

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/scriptrpc/scriptrpc"
)

const headerSize = 4

// ReadFrame reads one length-prefixed frame from r. A clean zero-byte read
// on the header is reported as io.EOF. A partial header or partial payload
// is a *scriptrpc.ProtocolError, as is a length exceeding
// scriptrpc.MaxFrameSize.
func ReadFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, headerSize)
	n, err := io.ReadFull(r, header)
	if err != nil {
		if n == 0 && err == io.EOF {
			return nil, io.EOF
		}
		return nil, scriptrpc.NewProtocolError("truncated frame header", err)
	}

	length := binary.BigEndian.Uint32(header)
	if length > scriptrpc.MaxFrameSize {
		return nil, scriptrpc.NewProtocolError(
			fmt.Sprintf("frame length %d exceeds maximum %d", length, scriptrpc.MaxFrameSize), nil)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, scriptrpc.NewProtocolError("truncated frame payload", err)
	}
	return payload, nil
}

// WriteFrame writes payload to w as one length-prefixed frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > scriptrpc.MaxFrameSize {
		return scriptrpc.NewProtocolError(
			fmt.Sprintf("frame length %d exceeds maximum %d", len(payload), scriptrpc.MaxFrameSize), nil)
	}
	header := make([]byte, headerSize)
	binary.BigEndian.PutUint32(header, uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	return nil
}
