package review

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// queueKey is the Redis hash holding the escalation queue, one field per
// event id.
const queueKey = "trustplane:review_queue"

// RedisQueue is the production Queue backed by a Redis hash. HSETNX gives
// first-writer-wins inserts and HDEL's deleted count makes Take atomic: when
// two reviewers race, exactly one sees the entry.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue creates a queue over an existing client. Pings the server so
// a bad address fails at startup, not on first escalation.
func NewRedisQueue(ctx context.Context, client *redis.Client) (*RedisQueue, error) {
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisQueue{client: client}, nil
}

// Push implements Queue.
func (q *RedisQueue) Push(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding queue entry: %w", err)
	}
	if err := q.client.HSetNX(ctx, queueKey, entry.Record.EventID.String(), data).Err(); err != nil {
		return fmt.Errorf("pushing queue entry: %w", err)
	}
	return nil
}

// Take implements Queue.
func (q *RedisQueue) Take(ctx context.Context, eventID uuid.UUID) (Entry, error) {
	field := eventID.String()

	data, err := q.client.HGet(ctx, queueKey, field).Bytes()
	if err == redis.Nil {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("reading queue entry: %w", err)
	}

	// HDEL's count decides the race: only the caller that actually deleted
	// the field owns the entry.
	deleted, err := q.client.HDel(ctx, queueKey, field).Result()
	if err != nil {
		return Entry{}, fmt.Errorf("removing queue entry: %w", err)
	}
	if deleted == 0 {
		return Entry{}, ErrNotFound
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("decoding queue entry: %w", err)
	}
	return entry, nil
}

// List implements Queue.
func (q *RedisQueue) List(ctx context.Context, limit int) ([]Entry, int, error) {
	fields, err := q.client.HGetAll(ctx, queueKey).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("listing queue entries: %w", err)
	}

	entries := make([]Entry, 0, len(fields))
	for _, raw := range fields {
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, 0, fmt.Errorf("decoding queue entry: %w", err)
		}
		entries = append(entries, entry)
	}
	sortEntries(entries)
	total := len(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, total, nil
}

// Size implements Queue.
func (q *RedisQueue) Size(ctx context.Context) (int, error) {
	n, err := q.client.HLen(ctx, queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("sizing queue: %w", err)
	}
	return int(n), nil
}
