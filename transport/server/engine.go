package server

import (
	"context"
	"encoding/json"
)

// Engine is the script evaluator collaborator invoked by dispatchEvent. The
// real embedded script evaluator is out of scope (spec §1); this interface
// is the boundary a host application implements to wire one in.
type Engine interface {
	// DispatchEvent evaluates args and returns the fields the dispatchEvent
	// result carries: patch, commands, fingerprint, and optionally a
	// rotated sessionId/sessionKey. An error here is rendered by the
	// dispatcher into {ok:false, error}.
	DispatchEvent(ctx context.Context, args json.RawMessage) (EngineResult, error)
}

// EngineResult is what an Engine implementation returns.
type EngineResult struct {
	Patch       json.RawMessage
	Commands    []json.RawMessage
	Fingerprint string
	SessionId   *string
	SessionKey  *string
}
