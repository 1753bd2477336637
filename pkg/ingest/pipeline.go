// Package ingest runs the batch pipeline: score each record with every
// detector, apply the rules engine, append to the audit store, and route
// escalations into the review queue.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TrustPlaneAI/trustplane/pkg/detect"
	"github.com/TrustPlaneAI/trustplane/pkg/httputil"
	"github.com/TrustPlaneAI/trustplane/pkg/model"
	"github.com/TrustPlaneAI/trustplane/pkg/notify"
	"github.com/TrustPlaneAI/trustplane/pkg/policy"
	"github.com/TrustPlaneAI/trustplane/pkg/review"
	"github.com/TrustPlaneAI/trustplane/pkg/store"
)

// maxTagsPerCategory caps how many matched-pattern labels become record tags.
// Detectors still report every match; tags are the summary view.
const maxTagsPerCategory = 2

// BatchSummary reports what one ingest batch did. Duplicates are skipped
// records whose ids were already stored; rejected records failed validation.
// Neither contributes to Processed or the action counts.
type BatchSummary struct {
	Processed   int                  `json:"processed"`
	Duplicates  int                  `json:"duplicates"`
	Rejected    int                  `json:"rejected"`
	Actions     map[model.Action]int `json:"actions"`
	ASLTriggers int                  `json:"asl_triggers"`
}

func newBatchSummary() BatchSummary {
	s := BatchSummary{Actions: make(map[model.Action]int, len(model.Actions()))}
	for _, a := range model.Actions() {
		s.Actions[a] = 0
	}
	return s
}

// Pipeline wires the scoring and enforcement collaborators.
type Pipeline struct {
	detectors []*detect.Detector
	engine    *policy.Engine
	store     store.Store
	queue     review.Queue
	notifier  *notify.Notifier
	sem       *httputil.Semaphore
}

// New creates a pipeline. The notifier may be nil.
func New(engine *policy.Engine, st store.Store, queue review.Queue, notifier *notify.Notifier, concurrency int) *Pipeline {
	return &Pipeline{
		detectors: detect.NewDefaults(),
		engine:    engine,
		store:     st,
		queue:     queue,
		notifier:  notifier,
		sem:       httputil.NewSemaphore(concurrency),
	}
}

// ProcessBatch scores and enforces a batch. Records are processed
// concurrently under the pipeline's bound; the summary is assembled once all
// of them finish. Storage failures beyond duplicates abort the batch.
func (p *Pipeline) ProcessBatch(ctx context.Context, records []*model.InteractionRecord) (BatchSummary, error) {
	summary := newBatchSummary()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	for _, record := range records {
		if err := p.sem.Acquire(ctx); err != nil {
			wg.Wait()
			return summary, err
		}
		wg.Add(1)
		go func(record *model.InteractionRecord) {
			defer wg.Done()
			defer p.sem.Release()

			action, outcome, err := p.processOne(ctx, record)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeProcessed:
				summary.Processed++
				summary.Actions[action.Action]++
				if action.ASLTriggered {
					summary.ASLTriggers++
				}
			case outcomeDuplicate:
				summary.Duplicates++
			case outcomeRejected:
				summary.Rejected++
			case outcomeFailed:
				if firstErr == nil {
					firstErr = err
				}
			}
		}(record)
	}
	wg.Wait()

	if firstErr != nil {
		return summary, fmt.Errorf("ingest batch: %w", firstErr)
	}
	return summary, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeDuplicate
	outcomeRejected
	outcomeFailed
)

func (p *Pipeline) processOne(ctx context.Context, record *model.InteractionRecord) (model.PolicyAction, outcome, error) {
	// A null batch element decodes to a nil pointer; treat it like any other
	// invalid record instead of panicking.
	if record == nil {
		log.Printf("[WARN] Rejecting nil record in batch")
		return model.PolicyAction{}, outcomeRejected, nil
	}
	if err := record.Validate(); err != nil {
		log.Printf("[WARN] Rejecting record %s: %v", record.EventID, err)
		return model.PolicyAction{}, outcomeRejected, nil
	}
	if record.EventID == uuid.Nil {
		record.EventID = uuid.New()
	}
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}

	// Skip records already in the audit trail before spending detector time.
	// A same-batch duplicate can still slip past this check; the store's
	// insert settles it.
	if exists, err := p.store.Exists(ctx, record.EventID); err != nil {
		return model.PolicyAction{}, outcomeFailed, err
	} else if exists {
		return model.PolicyAction{}, outcomeDuplicate, nil
	}

	p.score(record)
	action := p.engine.Apply(record)

	if err := p.store.AppendEvent(ctx, record, action); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return model.PolicyAction{}, outcomeDuplicate, nil
		}
		return model.PolicyAction{}, outcomeFailed, err
	}

	if action.Action == model.ActionEscalate {
		entry := review.Entry{
			Record:  *record,
			Action:  action,
			AddedAt: time.Now().UTC(),
		}
		if err := p.queue.Push(ctx, entry); err != nil {
			// The record and action are stored; an unreachable queue delays
			// review rather than losing the event.
			log.Printf("[WARN] Failed to queue escalation for %s: %v", record.EventID, err)
		} else {
			p.notifier.Escalated(ctx, entry)
		}
	}
	return action, outcomeProcessed, nil
}

// score runs every detector in parallel and folds the results into the
// record. Tags follow category evaluation order so repeated runs produce
// identical tag lists.
func (p *Pipeline) score(record *model.InteractionRecord) {
	scores := detect.RunAll(p.detectors, record.Prompt, record.Completion)

	if record.RiskScores == nil {
		record.RiskScores = make(map[model.Category]float64, len(scores))
	}
	for _, cat := range model.Categories() {
		rs, ok := scores[cat]
		if !ok {
			continue
		}
		record.RiskScores[cat] = rs.Confidence

		labels := rs.MatchedPatterns
		if len(labels) > maxTagsPerCategory {
			labels = labels[:maxTagsPerCategory]
		}
		for _, label := range labels {
			record.Tags = append(record.Tags, fmt.Sprintf("%s:%s", cat, label))
		}
	}
}
