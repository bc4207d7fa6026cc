// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// bodyField is the stream entry field that carries the notification JSON.
const bodyField = "body"

// RedisStreamOptions configures a consumer-group reader.
type RedisStreamOptions struct {
	Stream   string
	Group    string
	Consumer string
	// Wait is the XREADGROUP block window.
	Wait time.Duration
	// VisibilityTimeout is how long a delivered but unacknowledged entry
	// stays with its consumer before another receive may claim it.
	VisibilityTimeout time.Duration
}

// RedisStream is a Queue over a Redis stream consumer group. Entries that are
// never acknowledged are reclaimed with XAUTOCLAIM, which is how redelivery
// works without a broker-side visibility timer.
type RedisStream struct {
	client *redis.Client
	opts   RedisStreamOptions
}

// NewRedisStream creates the consumer group (and the stream) if needed.
func NewRedisStream(ctx context.Context, client *redis.Client, opts RedisStreamOptions) (*RedisStream, error) {
	if opts.Stream == "" || opts.Group == "" || opts.Consumer == "" {
		return nil, errors.New("queue: redis stream, group and consumer required")
	}
	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = 15 * time.Minute
	}
	err := client.XGroupCreateMkStream(ctx, opts.Stream, opts.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return nil, fmt.Errorf("queue: create group: %w", err)
	}
	return &RedisStream{client: client, opts: opts}, nil
}

func (q *RedisStream) Receive(ctx context.Context) (*Message, error) {
	if msg, err := q.reclaim(ctx); err != nil || msg != nil {
		return msg, err
	}

	// BLOCK 0 waits forever; a non-positive window means do not block.
	block := q.opts.Wait
	if block <= 0 {
		block = -1
	}
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		Streams:  []string{q.opts.Stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis receive: %w", err)
	}
	if len(streams) == 0 || len(streams[0].Messages) == 0 {
		return nil, nil
	}
	return toMessage(streams[0].Messages[0], 1), nil
}

// reclaim takes over one entry that has been pending longer than the
// visibility timeout.
func (q *RedisStream) reclaim(ctx context.Context) (*Message, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.opts.Stream,
		Group:    q.opts.Group,
		Consumer: q.opts.Consumer,
		MinIdle:  q.opts.VisibilityTimeout,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis reclaim: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}
	count := 2
	pending, err := q.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.opts.Stream,
		Group:  q.opts.Group,
		Start:  msgs[0].ID,
		End:    msgs[0].ID,
		Count:  1,
	}).Result()
	if err == nil && len(pending) == 1 {
		count = int(pending[0].RetryCount)
	}
	return toMessage(msgs[0], count), nil
}

func toMessage(m redis.XMessage, count int) *Message {
	body, _ := m.Values[bodyField].(string)
	return &Message{
		ID:           m.ID,
		Body:         []byte(body),
		Handle:       m.ID,
		ReceiveCount: count,
	}
}

// Delete acknowledges the entry and removes it from the stream.
func (q *RedisStream) Delete(ctx context.Context, handle string) error {
	n, err := q.client.XAck(ctx, q.opts.Stream, q.opts.Group, handle).Result()
	if err != nil {
		return fmt.Errorf("redis ack: %w", err)
	}
	if n == 0 {
		return ErrUnknownHandle
	}
	if err := q.client.XDel(ctx, q.opts.Stream, handle).Err(); err != nil {
		return fmt.Errorf("redis xdel: %w", err)
	}
	return nil
}

func (q *RedisStream) Send(ctx context.Context, body []byte) (string, error) {
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.opts.Stream,
		Values: map[string]any{bodyField: string(body)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("redis send: %w", err)
	}
	return id, nil
}

func (q *RedisStream) Ping(ctx context.Context) error { return q.client.Ping(ctx).Err() }

func (q *RedisStream) Close() error { return q.client.Close() }
