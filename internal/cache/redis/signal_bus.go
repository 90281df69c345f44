package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/topiclab/topicbot/internal/domain"
)

// defaultStreamMaxLen caps signal streams; entries beyond it are trimmed
// approximately, oldest first.
const defaultStreamMaxLen = 10000

// SignalBus implements domain.SignalBus on Redis Pub/Sub (fan-out to live
// subscribers) and Streams (durable, replayable log). Pub/Sub delivery is
// best-effort; the stream is the at-least-once path.
type SignalBus struct {
	rdb    *redis.Client
	maxLen int64
}

// NewSignalBus creates a SignalBus backed by the given client.
func NewSignalBus(client *Client) *SignalBus {
	return NewSignalBusWithMaxLen(client, defaultStreamMaxLen)
}

// NewSignalBusWithMaxLen creates a SignalBus with a custom stream cap.
func NewSignalBusWithMaxLen(client *Client, maxLen int64) *SignalBus {
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &SignalBus{rdb: client.RDB(), maxLen: maxLen}
}

// Publish broadcasts a payload to all current subscribers of the channel.
func (b *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish to %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of raw payloads published to the given channel.
// The subscription is closed when ctx is cancelled.
func (b *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := b.rdb.Subscribe(ctx, channel)

	// Confirm the subscription before returning so callers do not miss
	// messages published immediately after Subscribe returns.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis: subscribe to %s: %w", channel, err)
	}

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// StreamAppend appends a payload to a capped stream.
func (b *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: b.maxLen,
		Approx: true,
		Values: map[string]any{"payload": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: append to stream %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID. Use "0" to read from
// the beginning.
func (b *SignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	if lastID == "" {
		lastID = "0"
	}
	entries, err := b.rdb.XRangeN(ctx, stream, "("+lastID, "+", int64(count)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read stream %s: %w", stream, err)
	}

	out := make([]domain.StreamMessage, 0, len(entries))
	for _, entry := range entries {
		payload, _ := entry.Values["payload"].(string)
		out = append(out, domain.StreamMessage{
			ID:      entry.ID,
			Payload: []byte(payload),
		})
	}
	return out, nil
}
