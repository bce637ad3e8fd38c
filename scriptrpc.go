// Package scriptrpc defines the wire envelopes shared by the script host
// (client) and the script engine (server): requests, responses and
// asynchronous events. See the session, transport/client, transport/server,
// eventbus, statepatch and fingerprint packages for the subsystems built on
// top of these types.
package scriptrpc

import (
	"encoding/json"
	"fmt"
)

// MaxFrameSize is the largest payload a frame may carry, per the wire
// protocol. Anything larger fails the stream with a ProtocolError.
const MaxFrameSize = 32 * 1024 * 1024

// Request is the envelope a client sends for every call: {id, method, args}.
// Id is client-chosen and nonzero; the server echoes it back verbatim.
type Request struct {
	Id     int64           `json:"id"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// UnmarshalJSON accepts either an "args" or a "params" field as the
// argument carrier, per the external interface contract (both names are
// recognized for compatibility).
func (r *Request) UnmarshalJSON(data []byte) error {
	aux := struct {
		Id     int64           `json:"id"`
		Method string          `json:"method"`
		Args   json.RawMessage `json:"args"`
		Params json.RawMessage `json:"params"`
	}{}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.Id = aux.Id
	r.Method = aux.Method
	if len(aux.Args) > 0 {
		r.Args = aux.Args
	} else {
		r.Args = aux.Params
	}
	return nil
}

// Response is the envelope a server returns: {id?, ok, result?, error?}.
// Exactly one of Result or Error is meaningful when Ok is true/false
// respectively.
type Response struct {
	Id     int64           `json:"id,omitempty"`
	Ok     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Event is a server-originated message with a strictly increasing,
// gap-free sequence number within a server process lifetime.
type Event struct {
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DispatchEventArgs is the recognized field set for the dispatchEvent
// method's args object.
type DispatchEventArgs struct {
	AppScript string          `json:"appScript"`
	Event     EventInput      `json:"event"`
	StateJson string          `json:"stateJson,omitempty"`
	Patch     json.RawMessage `json:"patch,omitempty"`
}

// EventInput is the event object nested inside dispatchEvent args.
type EventInput struct {
	Type       string          `json:"type"`
	Target     string          `json:"target"`
	Value      json.RawMessage `json:"value,omitempty"`
	SessionId  *string         `json:"sessionId,omitempty"`
	SessionKey *string         `json:"sessionKey,omitempty"`
}

// DispatchEventResult is the recognized field set for a dispatchEvent
// response's result object.
type DispatchEventResult struct {
	Patch       json.RawMessage   `json:"patch,omitempty"`
	Commands    []json.RawMessage `json:"commands,omitempty"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	SessionId   *string           `json:"sessionId,omitempty"`
	SessionKey  *string           `json:"sessionKey,omitempty"`
}

// PollEventsArgs is the args object for the pollEvents method.
type PollEventsArgs struct {
	Cursor uint64 `json:"cursor"`
}

// PollEventsResult is the result object for the pollEvents method.
type PollEventsResult struct {
	Cursor uint64  `json:"cursor"`
	Events []Event `json:"events"`
}

// NewRequest allocates a Request with args marshaled from v. v may already
// be json.RawMessage or []byte, in which case it is used verbatim.
func NewRequest(id int64, method string, v interface{}) (*Request, error) {
	raw, err := asRawMessage(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args for method %q: %w", method, err)
	}
	return &Request{Id: id, Method: method, Args: raw}, nil
}

// NewResult builds a successful Response carrying v as its result.
func NewResult(id int64, v interface{}) (*Response, error) {
	raw, err := asRawMessage(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Response{Id: id, Ok: true, Result: raw}, nil
}

// NewErrorResponse builds a failed Response carrying msg as its error.
func NewErrorResponse(id int64, msg string) *Response {
	return &Response{Id: id, Ok: false, Error: msg}
}

func asRawMessage(v interface{}) (json.RawMessage, error) {
	switch actual := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return actual, nil
	case []byte:
		return actual, nil
	default:
		return json.Marshal(actual)
	}
}
