// Package review holds the escalation queue and the decision resolver that
// drains it. The queue keys entries by event id with at most one entry per
// id; insert and take are atomic per key, so two reviewers racing on the
// same event resolve to exactly one winner.
package review

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
)

// ErrNotFound is returned when an event id is not in the queue, including
// when a second decision arrives for an already-resolved event.
var ErrNotFound = errors.New("event not found in review queue")

// Entry is one escalated interaction awaiting review.
type Entry struct {
	Record  model.InteractionRecord `json:"record"`
	Action  model.PolicyAction      `json:"action"`
	AddedAt time.Time               `json:"added_at"`
}

// Queue is the escalation queue backend.
type Queue interface {
	// Push inserts an entry unless one already exists for the event id.
	// First writer wins; a duplicate push is a silent no-op.
	Push(ctx context.Context, entry Entry) error

	// Take atomically removes and returns the entry for an event id.
	// Returns ErrNotFound when no entry exists.
	Take(ctx context.Context, eventID uuid.UUID) (Entry, error)

	// List returns up to limit entries newest-first plus the total queue size.
	List(ctx context.Context, limit int) ([]Entry, int, error)

	// Size returns the number of pending entries.
	Size(ctx context.Context) (int, error)
}

// MemoryQueue is an in-process Queue for development and tests.
type MemoryQueue struct {
	mu      sync.Mutex
	entries map[uuid.UUID]Entry
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{entries: make(map[uuid.UUID]Entry)}
}

// Push implements Queue.
func (q *MemoryQueue) Push(_ context.Context, entry Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := entry.Record.EventID
	if _, ok := q.entries[id]; ok {
		return nil
	}
	q.entries[id] = entry
	return nil
}

// Take implements Queue.
func (q *MemoryQueue) Take(_ context.Context, eventID uuid.UUID) (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.entries[eventID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	delete(q.entries, eventID)
	return entry, nil
}

// List implements Queue.
func (q *MemoryQueue) List(_ context.Context, limit int) ([]Entry, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Entry, 0, len(q.entries))
	for _, e := range q.entries {
		out = append(out, e)
	}
	sortEntries(out)
	total := len(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

// Size implements Queue.
func (q *MemoryQueue) Size(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries), nil
}

// sortEntries orders newest first, event id as tiebreaker so the order is
// stable for entries added in the same instant.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].AddedAt.Equal(entries[j].AddedAt) {
			return entries[i].AddedAt.After(entries[j].AddedAt)
		}
		return entries[i].Record.EventID.String() < entries[j].Record.EventID.String()
	})
}
