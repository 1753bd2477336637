package review

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
)

func newTestEntry(addedAt time.Time) Entry {
	id := uuid.New()
	return Entry{
		Record: model.InteractionRecord{
			EventID: id,
			UserID:  "u-1",
			OrgID:   "o-1",
			Surface: model.SurfaceWeb,
			Tier:    model.TierGeneral,
			Prompt:  "escalated prompt",
		},
		Action: model.PolicyAction{
			ActionID: uuid.New(),
			EventID:  id,
			Action:   model.ActionEscalate,
			Reason:   "cbrn risk (0.25) exceeded general threshold (0.15)",
		},
		AddedAt: addedAt,
	}
}

func TestMemoryQueuePushTake(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	entry := newTestEntry(time.Now())

	if err := q.Push(ctx, entry); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if n, _ := q.Size(ctx); n != 1 {
		t.Errorf("size = %d, want 1", n)
	}

	got, err := q.Take(ctx, entry.Record.EventID)
	if err != nil {
		t.Fatalf("Take: %v", err)
	}
	if got.Record.EventID != entry.Record.EventID {
		t.Error("took the wrong entry")
	}
	if n, _ := q.Size(ctx); n != 0 {
		t.Errorf("size = %d after take, want 0", n)
	}
}

func TestMemoryQueueSecondTakeNotFound(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	entry := newTestEntry(time.Now())

	q.Push(ctx, entry)
	if _, err := q.Take(ctx, entry.Record.EventID); err != nil {
		t.Fatalf("first Take: %v", err)
	}

	_, err := q.Take(ctx, entry.Record.EventID)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second Take err = %v, want ErrNotFound", err)
	}
}

func TestMemoryQueueTakeUnknownID(t *testing.T) {
	q := NewMemoryQueue()
	if _, err := q.Take(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryQueueDuplicatePushKeepsFirst(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	entry := newTestEntry(time.Now())
	later := entry
	later.Action.Reason = "second reason"

	q.Push(ctx, entry)
	q.Push(ctx, later)

	if n, _ := q.Size(ctx); n != 1 {
		t.Fatalf("size = %d, want 1", n)
	}
	got, _ := q.Take(ctx, entry.Record.EventID)
	if got.Action.Reason != entry.Action.Reason {
		t.Error("duplicate push overwrote the original entry")
	}
}

func TestMemoryQueueListNewestFirst(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	base := time.Now()
	oldest := newTestEntry(base.Add(-2 * time.Hour))
	middle := newTestEntry(base.Add(-1 * time.Hour))
	newest := newTestEntry(base)

	for _, e := range []Entry{oldest, newest, middle} {
		q.Push(ctx, e)
	}

	entries, total, err := q.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(entries) != 2 {
		t.Fatalf("len = %d, want limit 2", len(entries))
	}
	if entries[0].Record.EventID != newest.Record.EventID {
		t.Error("first entry should be the newest")
	}
	if entries[1].Record.EventID != middle.Record.EventID {
		t.Error("second entry should be the middle one")
	}
}

func TestMemoryQueueConcurrentTakeSingleWinner(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	entry := newTestEntry(time.Now())
	q.Push(ctx, entry)

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, racers)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := q.Take(ctx, entry.Record.EventID); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	if n := len(wins); n != 1 {
		t.Errorf("%d racers took the entry, want exactly 1", n)
	}
}
