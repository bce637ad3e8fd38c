// Package server implements the server-side dispatch (C7) and the
// listen/accept/worker-pool acceptor (C9).
package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/scriptrpc/scriptrpc"
	"github.com/scriptrpc/scriptrpc/eventbus"
)

// Dispatcher decodes a request, routes it by method, and encodes a
// response. It recognizes dispatchEvent, pollEvents and ping; any other
// method produces {ok:false, error:"Unknown method: <m>"}.
type Dispatcher struct {
	Engine Engine
	Bus    *eventbus.Bus
	Logger scriptrpc.LogSink
}

// NewDispatcher wires an Engine and an event Bus into a Dispatcher. logger
// may be nil, in which case diagnostics are discarded.
func NewDispatcher(engine Engine, bus *eventbus.Bus, logger scriptrpc.LogSink) *Dispatcher {
	if logger == nil {
		logger = scriptrpc.NopLogSink{}
	}
	return &Dispatcher{Engine: engine, Bus: bus, Logger: logger}
}

// Dispatch decodes req.Args, routes by req.Method, and always returns a
// non-nil Response; handler panics are recovered and rendered as
// {ok:false, error}, matching the "no exception escapes the worker loop
// except on terminal I/O failure" contract.
func (d *Dispatcher) Dispatch(ctx context.Context, req *scriptrpc.Request) (resp *scriptrpc.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.Logger.Errorf("dispatcher: recovered panic handling %q: %v", req.Method, r)
			resp = scriptrpc.NewErrorResponse(req.Id, fmt.Sprintf("%v", r))
		}
	}()

	switch req.Method {
	case scriptrpc.MethodDispatchEvent:
		return d.dispatchEvent(ctx, req)
	case scriptrpc.MethodPollEvents:
		return d.pollEvents(ctx, req)
	case scriptrpc.MethodPing:
		result, _ := scriptrpc.NewResult(req.Id, "pong")
		return result
	default:
		return scriptrpc.NewErrorResponse(req.Id, fmt.Sprintf("Unknown method: %s", req.Method))
	}
}

func (d *Dispatcher) dispatchEvent(ctx context.Context, req *scriptrpc.Request) *scriptrpc.Response {
	if d.Engine == nil {
		return scriptrpc.NewErrorResponse(req.Id, "no engine configured")
	}
	args := requestArgs(req)
	result, err := d.Engine.DispatchEvent(ctx, args)
	if err != nil {
		return scriptrpc.NewErrorResponse(req.Id, err.Error())
	}
	commands := result.Commands
	if commands == nil {
		commands = []json.RawMessage{}
	}
	payload := scriptrpc.DispatchEventResult{
		Patch:       result.Patch,
		Commands:    commands,
		Fingerprint: result.Fingerprint,
		SessionId:   result.SessionId,
		SessionKey:  result.SessionKey,
	}
	resp, err := scriptrpc.NewResult(req.Id, payload)
	if err != nil {
		return scriptrpc.NewErrorResponse(req.Id, err.Error())
	}
	return resp
}

func (d *Dispatcher) pollEvents(_ context.Context, req *scriptrpc.Request) *scriptrpc.Response {
	var args scriptrpc.PollEventsArgs
	if raw := requestArgs(req); len(raw) > 0 {
		if err := json.Unmarshal(raw, &args); err != nil {
			return scriptrpc.NewErrorResponse(req.Id, fmt.Sprintf("invalid pollEvents args: %v", err))
		}
	}
	if d.Bus == nil {
		return scriptrpc.NewErrorResponse(req.Id, "no event bus configured")
	}
	latest, events := d.Bus.Poll(args.Cursor)
	if events == nil {
		events = []scriptrpc.Event{}
	}
	resp, err := scriptrpc.NewResult(req.Id, scriptrpc.PollEventsResult{Cursor: latest, Events: events})
	if err != nil {
		return scriptrpc.NewErrorResponse(req.Id, err.Error())
	}
	return resp
}

// requestArgs returns req.Args, or nil when it is absent/null. The
// args-vs-params carrier name is already reconciled by Request.UnmarshalJSON.
func requestArgs(req *scriptrpc.Request) json.RawMessage {
	if len(req.Args) > 0 && string(req.Args) != "null" {
		return req.Args
	}
	return nil
}
