package review

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
	"github.com/TrustPlaneAI/trustplane/pkg/policy"
	"github.com/TrustPlaneAI/trustplane/pkg/store"
)

// defaultReviewer is recorded when a decision carries no actor identity.
const defaultReviewer = "safety_reviewer"

// ThresholdUpdate is an optional retuning submitted alongside a decision.
// The update applies to the reviewed record's tier.
type ThresholdUpdate struct {
	Category     model.Category `json:"category"`
	NewThreshold float64        `json:"new_threshold"`
}

// Decision is a reviewer's verdict on an escalated event.
type Decision struct {
	EventID   uuid.UUID        `json:"event_id"`
	Action    model.Action     `json:"decision"`
	ChangedBy string           `json:"changed_by,omitempty"`
	Update    *ThresholdUpdate `json:"threshold_update,omitempty"`
}

// Outcome reports what a decision did. PolicyUpdated and PolicyUpdateError
// describe the optional threshold update; a failed update never blocks the
// queue removal or the superseding action.
type Outcome struct {
	EventID           uuid.UUID    `json:"event_id"`
	Decision          model.Action `json:"decision"`
	SupersedingAction uuid.UUID    `json:"superseding_action_id"`
	PolicyUpdated     bool         `json:"policy_updated"`
	PolicyUpdateError string       `json:"policy_update_error,omitempty"`
	RemainingInQueue  int          `json:"remaining_in_queue"`
}

// Resolver applies review decisions: removes the entry from the queue,
// appends a superseding policy action to the audit trail, and optionally
// retunes a threshold.
type Resolver struct {
	queue Queue
	store store.Store
	table *policy.Table
}

// NewResolver wires the resolver's collaborators.
func NewResolver(queue Queue, st store.Store, table *policy.Table) *Resolver {
	return &Resolver{queue: queue, store: st, table: table}
}

// Submit applies one review decision.
//
// Returns ErrNotFound when the event is not queued, which includes a second
// decision for an event someone already resolved. On success the original
// policy action is never touched: a new action referencing it through
// Supersedes is appended, preserving the full audit trail.
func (r *Resolver) Submit(ctx context.Context, decision Decision) (Outcome, error) {
	if !decision.Action.Valid() {
		return Outcome{}, fmt.Errorf("invalid review decision %q", decision.Action)
	}

	entry, err := r.queue.Take(ctx, decision.EventID)
	if err != nil {
		return Outcome{}, err
	}

	reviewer := decision.ChangedBy
	if reviewer == "" {
		reviewer = defaultReviewer
	}

	originalID := entry.Action.ActionID
	superseding := model.PolicyAction{
		ActionID:      uuid.New(),
		EventID:       decision.EventID,
		Action:        decision.Action,
		ASLLevel:      entry.Action.ASLLevel,
		PolicyVersion: entry.Action.PolicyVersion,
		Reason:        fmt.Sprintf("Manual review by %s: %s", reviewer, decision.Action),
		Timestamp:     time.Now().UTC(),
		ASLTriggered:  entry.Action.ASLTriggered,
		Supersedes:    &originalID,
	}
	if err := r.store.AppendAction(ctx, superseding); err != nil {
		// Put the entry back so the escalation stays reviewable; a retry can
		// settle the decision once the store recovers.
		if pushErr := r.queue.Push(ctx, entry); pushErr != nil {
			log.Printf("[WARN] Failed to requeue %s after store failure: %v", decision.EventID, pushErr)
		}
		return Outcome{}, fmt.Errorf("recording superseding action: %w", err)
	}

	outcome := Outcome{
		EventID:           decision.EventID,
		Decision:          decision.Action,
		SupersedingAction: superseding.ActionID,
	}

	if decision.Update != nil {
		outcome.PolicyUpdated, outcome.PolicyUpdateError = r.applyUpdate(ctx, entry.Record.Tier, reviewer, *decision.Update)
	}

	if remaining, err := r.queue.Size(ctx); err == nil {
		outcome.RemainingInQueue = remaining
	}
	return outcome, nil
}

// applyUpdate retunes a threshold and records the change in the history.
// Failures are reported in the outcome rather than returned, so the decision
// itself stands regardless.
func (r *Resolver) applyUpdate(ctx context.Context, tier model.Tier, reviewer string, update ThresholdUpdate) (bool, string) {
	old, err := r.table.Update(update.Category, tier, update.NewThreshold)
	if err != nil {
		log.Printf("[WARN] Review threshold update rejected for %s/%s: %v", update.Category, tier, err)
		return false, err.Error()
	}

	change := model.ThresholdChange{
		ChangeID:     uuid.New(),
		Category:     update.Category,
		Tier:         tier,
		OldThreshold: old,
		NewThreshold: update.NewThreshold,
		ChangedBy:    reviewer,
		Timestamp:    time.Now().UTC(),
	}
	if err := r.store.AppendThresholdChange(ctx, change); err != nil {
		log.Printf("[WARN] Threshold change applied but not recorded in history: %v", err)
		return true, fmt.Sprintf("history not recorded: %v", err)
	}
	return true, ""
}
