// Package client implements the reconnect-per-request RPC transport: every
// call opens a fresh connection, sends one frame, reads one frame, and
// closes, so the server can remain completely stateless about
// connections; session identity lives in the payload, not the socket.
package client

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/scriptrpc/scriptrpc"
	"github.com/scriptrpc/scriptrpc/framing"
)

// Client performs one RPC call per invocation of Call. It holds no
// persistent connection state between calls.
type Client struct {
	Addr    string
	Dialer  net.Dialer
	Timeout time.Duration
}

// New creates a Client targeting addr. A zero Timeout means no deadline is
// applied beyond the dialer's own.
func New(addr string) *Client {
	return &Client{Addr: addr}
}

// Call allocates a random positive id, dials a fresh TCP connection with
// TCP_NODELAY set, writes one {id, method, args} frame, reads exactly one
// response frame, and closes the connection regardless of outcome.
func (c *Client) Call(ctx context.Context, method string, args interface{}) (*scriptrpc.Response, error) {
	id, err := randomPositiveID()
	if err != nil {
		return nil, scriptrpc.NewTransportError("generate request id", err)
	}

	req, err := scriptrpc.NewRequest(id, method, args)
	if err != nil {
		return nil, scriptrpc.NewProtocolError("encode request", err)
	}

	conn, err := c.dial(ctx)
	if err != nil {
		return nil, scriptrpc.NewTransportError("connect", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else if c.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.Timeout))
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, scriptrpc.NewProtocolError("encode request", err)
	}
	if err := framing.WriteFrame(conn, payload); err != nil {
		if scriptrpc.IsProtocolError(err) {
			return nil, err
		}
		return nil, scriptrpc.NewTransportError("write", err)
	}

	frame, err := framing.ReadFrame(conn)
	if err != nil {
		if scriptrpc.IsProtocolError(err) {
			return nil, err
		}
		return nil, scriptrpc.NewTransportError("read", err)
	}

	var resp scriptrpc.Response
	if err := json.Unmarshal(frame, &resp); err != nil {
		return nil, scriptrpc.NewProtocolError("response is not a JSON object", err)
	}
	return &resp, nil
}

func (c *Client) dial(ctx context.Context) (*net.TCPConn, error) {
	conn, err := c.Dialer.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, err
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil, fmt.Errorf("unexpected connection type %T", conn)
	}
	if err := tcpConn.SetNoDelay(true); err != nil {
		_ = tcpConn.Close()
		return nil, err
	}
	return tcpConn, nil
}

func randomPositiveID() (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	id := int64(binary.BigEndian.Uint64(buf[:]) & math.MaxInt64)
	if id == 0 {
		id = 1
	}
	return id, nil
}
