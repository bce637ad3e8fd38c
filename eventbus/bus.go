// Package eventbus implements the server's append-only event log: a
// monotonic sequence generator, bounded in-memory retention, and
// cursor-range polling.
package eventbus

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/scriptrpc/scriptrpc"
)

// Bus is a bounded in-memory event log. All reads and writes are
// serialized under a single mutex; the sequence counter is additionally
// atomic so LatestSeq can be read without blocking on Emit/Poll.
//
// This is a generalization of the per-connection SSE replay buffer pattern
// (append, cap at a size, drop the oldest prefix on overflow, scan forward
// from a last-seen id) into a process-wide monotonic log.
type Bus struct {
	mu            sync.Mutex
	seq           atomic.Uint64
	entries       []scriptrpc.Event
	maxEventsKept int
}

// New creates a Bus retaining at most maxEventsKept entries. A
// non-positive value falls back to scriptrpc.DefaultMaxEventsKept.
func New(maxEventsKept int) *Bus {
	if maxEventsKept <= 0 {
		maxEventsKept = scriptrpc.DefaultMaxEventsKept
	}
	return &Bus{maxEventsKept: maxEventsKept}
}

// Emit atomically allocates the next seq, appends {seq, type, payload}, and
// prunes the oldest entries if retention is exceeded.
func (b *Bus) Emit(eventType string, payload interface{}) (uint64, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	seq := b.seq.Add(1)
	b.entries = append(b.entries, scriptrpc.Event{Seq: seq, Type: eventType, Payload: raw})
	if len(b.entries) > b.maxEventsKept {
		excess := len(b.entries) - b.maxEventsKept
		b.entries = b.entries[excess:]
	}
	return seq, nil
}

// Poll returns every retained entry with seq > cursor, in order, along with
// the latest seq the caller should use as its next cursor. If cursor is
// older than the earliest retained entry, the pruned range is skipped
// silently and only the retained tail is returned; a caller that fell that far behind has no way to detect the
// gap through this call alone.
func (b *Bus) Poll(cursor uint64) (latest uint64, events []scriptrpc.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	latest = cursor
	for _, e := range b.entries {
		if e.Seq > cursor {
			events = append(events, e)
			if e.Seq > latest {
				latest = e.Seq
			}
		}
	}
	return latest, events
}

// LatestSeq returns the highest seq emitted so far, 0 if none.
func (b *Bus) LatestSeq() uint64 {
	return b.seq.Load()
}

// Len returns the number of entries currently retained.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

func marshalPayload(payload interface{}) (json.RawMessage, error) {
	switch actual := payload.(type) {
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
