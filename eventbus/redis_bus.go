package eventbus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/scriptrpc/scriptrpc"
)

// RedisBus is an optional durable event log backed by a Redis stream. Unlike
// Bus, a server restart does not reset the sequence: the stream survives the
// process, so seq keeps advancing and Poll can additionally report MinSeq,
// letting a caller detect when its cursor fell behind the trim horizon.
type RedisBus struct {
	rdb           *redis.Client
	key           string
	maxEventsKept int64
}

// NewRedisBus creates a RedisBus trimming the stream named key to
// approximately maxEventsKept entries.
func NewRedisBus(rdb *redis.Client, key string, maxEventsKept int) *RedisBus {
	if key == "" {
		key = "scriptrpc:events"
	}
	if maxEventsKept <= 0 {
		maxEventsKept = scriptrpc.DefaultMaxEventsKept
	}
	return &RedisBus{rdb: rdb, key: key, maxEventsKept: int64(maxEventsKept)}
}

// Emit appends an event to the stream and trims it to maxEventsKept,
// approximately (Redis XADD MAXLEN ~ is a best-effort trim, same spirit as
// Bus's drop-oldest-prefix policy).
func (b *RedisBus) Emit(ctx context.Context, eventType string, payload interface{}) (uint64, error) {
	raw, err := marshalPayload(payload)
	if err != nil {
		return 0, err
	}
	id, err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: b.key,
		MaxLen: b.maxEventsKept,
		Approx: true,
		Values: map[string]interface{}{
			"type":    eventType,
			"payload": string(raw),
		},
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis event bus: emit: %w", err)
	}
	return streamIDToSeq(id)
}

// Poll returns every entry with seq > cursor, in order, and the latest seq
// observed. It also reports minSeq, the earliest seq still retained, so a
// caller whose cursor fell behind the trim horizon can detect the gap,
// something the in-memory Bus cannot do.
func (b *RedisBus) Poll(ctx context.Context, cursor uint64) (latest uint64, minSeq uint64, events []scriptrpc.Event, err error) {
	entries, err := b.rdb.XRange(ctx, b.key, "-", "+").Result()
	if err != nil {
		return 0, 0, nil, fmt.Errorf("redis event bus: poll: %w", err)
	}
	latest = cursor
	for i, entry := range entries {
		seq, convErr := streamIDToSeq(entry.ID)
		if convErr != nil {
			continue
		}
		if i == 0 {
			minSeq = seq
		}
		if seq <= cursor {
			continue
		}
		eventType, _ := entry.Values["type"].(string)
		payload, _ := entry.Values["payload"].(string)
		events = append(events, scriptrpc.Event{Seq: seq, Type: eventType, Payload: json.RawMessage(payload)})
		if seq > latest {
			latest = seq
		}
	}
	return latest, minSeq, events, nil
}

// streamIDToSeq derives a monotonic seq from a Redis stream entry ID
// ("<ms>-<counter>"); since Redis guarantees strictly increasing IDs within
// a stream this comparison-friendly hash preserves ordering.
func streamIDToSeq(id string) (uint64, error) {
	var ms, counter uint64
	if _, err := fmt.Sscanf(id, "%d-%d", &ms, &counter); err != nil {
		return 0, fmt.Errorf("malformed stream id %q: %w", id, err)
	}
	return ms*1_000_000 + counter, nil
}
