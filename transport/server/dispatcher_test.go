package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/scriptrpc/scriptrpc"
	"github.com/scriptrpc/scriptrpc/eventbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	result EngineResult
	err    error
}

func (f *fakeEngine) DispatchEvent(context.Context, json.RawMessage) (EngineResult, error) {
	return f.result, f.err
}

func TestDispatcher_Ping(t *testing.T) {
	d := NewDispatcher(nil, eventbus.New(10), nil)
	resp := d.Dispatch(context.Background(), &scriptrpc.Request{Id: 1, Method: "ping"})
	assert.True(t, resp.Ok)
	var result string
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "pong", result)
}

func TestDispatcher_UnknownMethod(t *testing.T) {
	d := NewDispatcher(nil, eventbus.New(10), nil)
	resp := d.Dispatch(context.Background(), &scriptrpc.Request{Id: 2, Method: "frobnicate"})
	assert.False(t, resp.Ok)
	assert.Equal(t, "Unknown method: frobnicate", resp.Error)
}

func TestDispatcher_DispatchEvent_Success(t *testing.T) {
	engine := &fakeEngine{result: EngineResult{
		Patch:       json.RawMessage(`{"set":[["a",1]]}`),
		Fingerprint: "abc123",
	}}
	d := NewDispatcher(engine, eventbus.New(10), nil)
	resp := d.Dispatch(context.Background(), &scriptrpc.Request{Id: 3, Method: scriptrpc.MethodDispatchEvent})
	require.True(t, resp.Ok)
	var result scriptrpc.DispatchEventResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, "abc123", result.Fingerprint)
	assert.JSONEq(t, `{"set":[["a",1]]}`, string(result.Patch))
	assert.NotNil(t, result.Commands)
}

func TestDispatcher_DispatchEvent_EngineErrorBecomesRpcError(t *testing.T) {
	engine := &fakeEngine{err: errors.New("evaluation failed")}
	d := NewDispatcher(engine, eventbus.New(10), nil)
	resp := d.Dispatch(context.Background(), &scriptrpc.Request{Id: 4, Method: scriptrpc.MethodDispatchEvent})
	assert.False(t, resp.Ok)
	assert.Equal(t, "evaluation failed", resp.Error)
}

func TestDispatcher_DispatchEvent_NoEngineConfigured(t *testing.T) {
	d := NewDispatcher(nil, eventbus.New(10), nil)
	resp := d.Dispatch(context.Background(), &scriptrpc.Request{Id: 5, Method: scriptrpc.MethodDispatchEvent})
	assert.False(t, resp.Ok)
}

func TestDispatcher_PollEvents(t *testing.T) {
	bus := eventbus.New(10)
	_, err := bus.Emit("heartbeat", nil)
	require.NoError(t, err)
	d := NewDispatcher(nil, bus, nil)

	args, err := json.Marshal(scriptrpc.PollEventsArgs{Cursor: 0})
	require.NoError(t, err)
	resp := d.Dispatch(context.Background(), &scriptrpc.Request{Id: 6, Method: scriptrpc.MethodPollEvents, Args: args})
	require.True(t, resp.Ok)
	var result scriptrpc.PollEventsResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	assert.Equal(t, uint64(1), result.Cursor)
	require.Len(t, result.Events, 1)
	assert.Equal(t, uint64(1), result.Events[0].Seq)
}

func TestDispatcher_RecoversHandlerPanic(t *testing.T) {
	engine := panicEngine{}
	d := NewDispatcher(engine, eventbus.New(10), nil)
	resp := d.Dispatch(context.Background(), &scriptrpc.Request{Id: 7, Method: scriptrpc.MethodDispatchEvent})
	assert.False(t, resp.Ok)
	assert.NotEmpty(t, resp.Error)
}

type panicEngine struct{}

func (panicEngine) DispatchEvent(context.Context, json.RawMessage) (EngineResult, error) {
	panic("boom")
}

func TestDispatcher_ArgsOrParamsCarrier(t *testing.T) {
	bus := eventbus.New(10)
	d := NewDispatcher(nil, bus, nil)
	var req scriptrpc.Request
	require.NoError(t, json.Unmarshal([]byte(`{"id":8,"method":"pollEvents","params":{"cursor":0}}`), &req))
	resp := d.Dispatch(context.Background(), &req)
	assert.True(t, resp.Ok)
}
