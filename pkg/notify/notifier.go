// Package notify delivers escalation notifications to an external webhook so
// reviewers learn about queued events without polling.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/TrustPlaneAI/trustplane/pkg/httputil"
	"github.com/TrustPlaneAI/trustplane/pkg/review"
)

// maxInFlight caps concurrent webhook deliveries. Beyond it notifications
// are dropped, never queued: the review queue is the source of truth and a
// missed ping only delays discovery.
const maxInFlight = 16

// Notifier POSTs queue entries to a configured URL. A nil Notifier is valid
// and does nothing, so callers never branch on whether notification is
// configured.
type Notifier struct {
	url string
	sem *httputil.Semaphore
}

// New creates a notifier for the given webhook URL. Returns nil when the URL
// is empty.
func New(url string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{
		url: url,
		sem: httputil.NewSemaphore(maxInFlight),
	}
}

// payload is the webhook body.
type payload struct {
	EventID    string             `json:"event_id"`
	UserID     string             `json:"user_id"`
	OrgID      string             `json:"org_id"`
	Tier       string             `json:"tier"`
	Reason     string             `json:"reason"`
	ASLLevel   *int               `json:"asl_level,omitempty"`
	RiskScores map[string]float64 `json:"risk_scores"`
}

// Escalated fires a delivery for a newly queued entry. Non-blocking: the
// POST runs on its own goroutine and failures are logged, not returned.
func (n *Notifier) Escalated(ctx context.Context, entry review.Entry) {
	if n == nil {
		return
	}
	if !n.sem.TryAcquire() {
		log.Printf("[WARN] Escalation webhook at capacity, dropping notification for %s", entry.Record.EventID)
		return
	}
	go func() {
		defer n.sem.Release()
		if err := n.deliver(ctx, entry); err != nil {
			log.Printf("[WARN] Escalation webhook delivery failed for %s: %v", entry.Record.EventID, err)
		}
	}()
}

func (n *Notifier) deliver(ctx context.Context, entry review.Entry) error {
	scores := make(map[string]float64, len(entry.Record.RiskScores))
	for cat, v := range entry.Record.RiskScores {
		scores[string(cat)] = v
	}
	body, err := json.Marshal(payload{
		EventID:    entry.Record.EventID.String(),
		UserID:     entry.Record.UserID,
		OrgID:      entry.Record.OrgID,
		Tier:       string(entry.Record.Tier),
		Reason:     entry.Action.Reason,
		ASLLevel:   entry.Action.ASLLevel,
		RiskScores: scores,
	})
	if err != nil {
		return fmt.Errorf("encoding notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.Client(httputil.TierStandard).Do(req)
	if err != nil {
		return fmt.Errorf("delivering notification: %w", err)
	}
	defer httputil.DrainAndClose(resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
