// Package scriptengine provides a deterministic built-in fallback for the
// transport/server.Engine collaborator. The real embedded script evaluator
// is an external concern invoked by the server's dispatchEvent handler;
// Default exists so the transport can be exercised end to end before one is
// wired in, and is swappable behind the same interface.
package scriptengine

import (
	"context"
	"encoding/json"

	"github.com/scriptrpc/scriptrpc"
	"github.com/scriptrpc/scriptrpc/fingerprint"
	"github.com/scriptrpc/scriptrpc/statepatch"
	"github.com/scriptrpc/scriptrpc/transport/server"
)

// Default evaluates dispatchEvent args by applying any inbound patch or
// full-sync snapshot to a per-instance state mirror and echoing back a
// no-op patch and the post-evaluation fingerprint. It keeps no notion of
// per-session isolation: callers that need one session's state kept apart
// from another's should construct one Default per session.
type Default struct {
	state *statepatch.State
}

// NewDefault returns a Default seeded with an empty state mirror.
func NewDefault() *Default {
	return &Default{state: statepatch.New()}
}

var _ server.Engine = (*Default)(nil)

// DispatchEvent decodes args, applies its stateJson or patch field to the
// tracked mirror, and returns an empty outgoing patch (the mirror now
// equals what the client will converge to) alongside its fingerprint.
func (d *Default) DispatchEvent(_ context.Context, args json.RawMessage) (server.EngineResult, error) {
	var decoded scriptrpc.DispatchEventArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return server.EngineResult{}, err
		}
	}

	if decoded.StateJson != "" {
		var fresh statepatch.State
		if err := json.Unmarshal([]byte(decoded.StateJson), &fresh); err != nil {
			return server.EngineResult{}, err
		}
		d.state = &fresh
	} else if len(decoded.Patch) > 0 {
		if err := statepatch.Apply(d.state, decoded.Patch); err != nil {
			return server.EngineResult{}, err
		}
	}

	fp, err := fingerprint.Fingerprint(d.state)
	if err != nil {
		return server.EngineResult{}, err
	}

	return server.EngineResult{
		Patch:       json.RawMessage(`{}`),
		Commands:    []json.RawMessage{},
		Fingerprint: fp,
	}, nil
}
