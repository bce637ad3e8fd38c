// Package session implements the client-side session and state-tracking
// engine (C5) and its background follow driver (C6): the authoritative
// local mirror of engine state, fingerprint verification against the
// server's declared value, and the one-shot full-sync/patch overrides that
// let a caller force a resync on the next dispatch.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/scriptrpc/scriptrpc"
	"github.com/scriptrpc/scriptrpc/fingerprint"
	"github.com/scriptrpc/scriptrpc/internal/pointer"
	"github.com/scriptrpc/scriptrpc/statepatch"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CommandSink receives the engine-emitted commands carried by a dispatch
// result, labeled with the event that produced them (e.g.
// "event_system_ready", "event_ui_click").
type CommandSink interface {
	HandleCommands(label string, commands []json.RawMessage)
}

// EventSink receives events delivered by the follow driver, in strictly
// ascending seq order.
type EventSink interface {
	HandleEvent(event scriptrpc.Event)
}

// PreloadBuilder produces the opaque ready payload consumed by Ready. It
// must be deterministic and side-effect free.
type PreloadBuilder interface {
	Build(entryKey string, timestampMs *int64) (json.RawMessage, error)
}

// Caller is the RPC surface a Session drives; transport/client.Client
// satisfies it.
type Caller interface {
	Call(ctx context.Context, method string, args interface{}) (*scriptrpc.Response, error)
}

// recentMismatchCacheSize bounds the dedupe cache Session uses to avoid
// logging the same fingerprint mismatch on every dispatch of a stuck
// session; it is not part of the synchronization contract itself.
const recentMismatchCacheSize = 64

// Session owns one client's view of a server-side evaluation context: the
// §3 state fields (session identifiers, patch chain, fingerprint, cursor,
// overrides) plus the three callback surfaces invoked synchronously from
// whichever activity received the data. A Session is not safe for
// concurrent use from multiple activities; serialize externally or
// instantiate one Session per activity.
type Session struct {
	Caller   Caller
	EntryKey string
	Preload  PreloadBuilder

	CommandSink CommandSink
	EventSink   EventSink
	Logger      scriptrpc.LogSink

	VerifyFingerprints bool

	mu sync.Mutex

	sessionId  *string
	sessionKey *string

	lastPatch       json.RawMessage
	lastFingerprint string

	cursor uint64

	trackedState       *statepatch.State
	trackedFingerprint string

	nextStateJson     string
	nextPatchOverride json.RawMessage

	mismatchCache *lru.Cache[string, struct{}]
}

// New builds a Session. caller is the RPC transport (typically
// transport/client.Client); entryKey and preload feed Ready's payload
// construction.
func New(caller Caller, entryKey string, preload PreloadBuilder) *Session {
	cache, _ := lru.New[string, struct{}](recentMismatchCacheSize)
	return &Session{
		Caller:        caller,
		EntryKey:      entryKey,
		Preload:       preload,
		Logger:        scriptrpc.NopLogSink{},
		trackedState:  statepatch.New(),
		mismatchCache: cache,
	}
}

// SetNextStateJson arms a one-shot full-sync override consumed by the next
// Dispatch call; Ready clears it without sending it. It takes precedence
// over SetNextPatchOverride when both are armed.
func (s *Session) SetNextStateJson(stateJson string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextStateJson = stateJson
}

// SetNextPatchOverride arms a one-shot patch override consumed by the next
// dispatch, in place of the chained lastPatch.
func (s *Session) SetNextPatchOverride(patch json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPatchOverride = patch
}

// Cursor returns the last event seq this session has observed.
func (s *Session) Cursor() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// TrackedFingerprint returns the fingerprint of the current tracked state
// mirror.
func (s *Session) TrackedFingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackedFingerprint
}

// TrackedState returns a deep copy of the tracked state mirror.
func (s *Session) TrackedState() *statepatch.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.trackedState.Clone()
}

// ResetClientSession clears every §3 field without contacting the server.
// Reserved for callers that know the server process has restarted and the
// previous session identifiers, cursor and tracked state are no longer
// meaningful.
func (s *Session) ResetClientSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.sessionId = nil
	s.sessionKey = nil
	s.lastPatch = nil
	s.lastFingerprint = ""
	s.cursor = 0
	s.trackedState = statepatch.New()
	s.trackedFingerprint, _ = fingerprint.Fingerprint(s.trackedState)
	s.nextStateJson = ""
	s.nextPatchOverride = nil
}

// Ready resets the client session (Fresh), builds the ready payload via the
// preload builder, and dispatches a {system, ready} event. timestampMs is
// forwarded to the preload builder verbatim; pass nil to omit it.
func (s *Session) Ready(ctx context.Context, timestampMs *int64) error {
	s.mu.Lock()
	s.resetLocked()
	s.mu.Unlock()

	payload, err := s.Preload.Build(s.EntryKey, timestampMs)
	if err != nil {
		return fmt.Errorf("build ready payload: %w", err)
	}
	_, err = s.dispatch(ctx, "system", "ready", payload)
	return err
}

// Dispatch sends a dispatchEvent call for (eventType, target, value) and
// applies the resulting patch to the tracked state. Commands are delivered
// to the CommandSink labeled "event_<type>_<target>".
func (s *Session) Dispatch(ctx context.Context, eventType, target string, value json.RawMessage) error {
	_, err := s.dispatch(ctx, eventType, target, value)
	return err
}

func (s *Session) dispatch(ctx context.Context, eventType, target string, value json.RawMessage) (*scriptrpc.DispatchEventResult, error) {
	s.mu.Lock()
	args := scriptrpc.DispatchEventArgs{
		AppScript: s.EntryKey,
		Event: scriptrpc.EventInput{
			Type:       eventType,
			Target:     target,
			Value:      value,
			SessionId:  s.sessionId,
			SessionKey: s.sessionKey,
		},
	}
	switch {
	case s.nextStateJson != "":
		args.StateJson = s.nextStateJson
		s.nextStateJson = ""
		s.nextPatchOverride = nil
	case s.nextPatchOverride != nil:
		args.Patch = s.nextPatchOverride
		s.nextPatchOverride = nil
	case s.lastPatch != nil:
		args.Patch = s.lastPatch
	}
	s.mu.Unlock()

	resp, err := s.Caller.Call(ctx, scriptrpc.MethodDispatchEvent, args)
	if err != nil {
		return nil, err
	}
	if !resp.Ok {
		return nil, scriptrpc.NewRpcError(scriptrpc.MethodDispatchEvent, resp.Error)
	}

	var result scriptrpc.DispatchEventResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, scriptrpc.NewProtocolError("decode dispatchEvent result", err)
	}

	s.applyResult(&result)

	label := fmt.Sprintf("event_%s_%s", eventType, target)
	if s.CommandSink != nil {
		s.CommandSink.HandleCommands(label, result.Commands)
	}
	return &result, nil
}

func (s *Session) applyResult(result *scriptrpc.DispatchEventResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if result.SessionId != nil {
		s.sessionId = pointer.Ref(*result.SessionId)
	}
	if result.SessionKey != nil && pointer.Deref(s.sessionKey) == "" {
		s.sessionKey = pointer.Ref(*result.SessionKey)
	}

	if len(result.Patch) > 0 {
		s.lastPatch = append(json.RawMessage(nil), result.Patch...)
	}
	s.lastFingerprint = result.Fingerprint

	if err := statepatch.Apply(s.trackedState, result.Patch); err != nil {
		s.Logger.Errorf("session: apply patch: %v", err)
	}
	tracked, err := fingerprint.Fingerprint(s.trackedState)
	if err != nil {
		s.Logger.Errorf("session: compute fingerprint: %v", err)
	}
	s.trackedFingerprint = tracked

	if s.VerifyFingerprints && result.Fingerprint != "" && tracked != result.Fingerprint {
		s.reportMismatchLocked(result.Fingerprint, tracked)
	}
}

func (s *Session) reportMismatchLocked(serverFingerprint, tracked string) {
	key := tracked + "|" + serverFingerprint
	if s.mismatchCache != nil {
		if _, seen := s.mismatchCache.Get(key); seen {
			return
		}
		s.mismatchCache.Add(key, struct{}{})
	}
	mismatch := &scriptrpc.FingerprintMismatch{Expected: tracked, Actual: serverFingerprint}
	s.Logger.Errorf("%v", mismatch)
}

// PollOnce calls pollEvents with the session's current cursor, advances the
// cursor to the response's cursor (never backward), and delivers each
// returned event to the EventSink in order.
func (s *Session) PollOnce(ctx context.Context) error {
	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()

	resp, err := s.Caller.Call(ctx, scriptrpc.MethodPollEvents, scriptrpc.PollEventsArgs{Cursor: cursor})
	if err != nil {
		return err
	}
	if !resp.Ok {
		return scriptrpc.NewRpcError(scriptrpc.MethodPollEvents, resp.Error)
	}

	var result scriptrpc.PollEventsResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return scriptrpc.NewProtocolError("decode pollEvents result", err)
	}

	s.mu.Lock()
	if result.Cursor > s.cursor {
		s.cursor = result.Cursor
	}
	s.mu.Unlock()

	if s.EventSink != nil {
		for _, event := range result.Events {
			s.EventSink.HandleEvent(event)
		}
	}
	return nil
}
