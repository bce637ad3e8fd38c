package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/scriptrpc/scriptrpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequencedCaller struct {
	mu   sync.Mutex
	seq  uint64
	fail int
}

func (c *sequencedCaller) Call(_ context.Context, method string, args interface{}) (*scriptrpc.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail > 0 {
		c.fail--
		return nil, fmt.Errorf("transient failure")
	}
	c.seq++
	result, _ := scriptrpc.NewResult(1, scriptrpc.PollEventsResult{
		Cursor: c.seq,
		Events: []scriptrpc.Event{{Seq: c.seq, Type: "heartbeat"}},
	})
	return result, nil
}

type recordingEventSink struct {
	mu     sync.Mutex
	events []scriptrpc.Event
}

func (r *recordingEventSink) HandleEvent(e scriptrpc.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEventSink) snapshot() []scriptrpc.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]scriptrpc.Event(nil), r.events...)
}

func TestFollower_DeliversEventsInAscendingOrder(t *testing.T) {
	caller := &sequencedCaller{}
	s := New(caller, "entry.js", fixedPreload{})
	sink := &recordingEventSink{}
	s.EventSink = sink

	f := NewFollower(s)
	f.StartFollow(10)
	defer f.StopFollow()

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= 3
	}, time.Second, 5*time.Millisecond)

	f.StopFollow()
	events := sink.snapshot()
	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].Seq, events[i].Seq)
	}
}

func TestFollower_BackoffOnTransientError(t *testing.T) {
	caller := &sequencedCaller{fail: 2}
	s := New(caller, "entry.js", fixedPreload{})
	sink := &recordingEventSink{}
	s.EventSink = sink
	var logged int
	s.Logger = logSinkFunc(func(string, ...interface{}) { logged++ })

	f := NewFollower(s)
	f.StartFollow(10)
	defer f.StopFollow()

	require.Eventually(t, func() bool {
		return len(sink.snapshot()) >= 1
	}, 2*time.Second, 5*time.Millisecond)

	f.StopFollow()
	assert.GreaterOrEqual(t, logged, 1)
}

func TestFollower_StopThenRestart(t *testing.T) {
	caller := &sequencedCaller{}
	s := New(caller, "entry.js", fixedPreload{})
	sink := &recordingEventSink{}
	s.EventSink = sink

	f := NewFollower(s)
	f.StartFollow(10)
	require.Eventually(t, func() bool { return len(sink.snapshot()) >= 1 }, time.Second, 5*time.Millisecond)
	f.StopFollow()
	countAfterStop := len(sink.snapshot())

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, countAfterStop, len(sink.snapshot()))

	f.StartFollow(10)
	require.Eventually(t, func() bool { return len(sink.snapshot()) > countAfterStop }, time.Second, 5*time.Millisecond)
	f.StopFollow()
}
