package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	event_id      UUID PRIMARY KEY,
	timestamp     TIMESTAMPTZ NOT NULL,
	user_id       TEXT NOT NULL,
	org_id        TEXT NOT NULL,
	surface       TEXT NOT NULL,
	tier          TEXT NOT NULL,
	prompt        TEXT NOT NULL,
	completion    TEXT NOT NULL,
	risk_scores   JSONB NOT NULL DEFAULT '{}',
	tags          JSONB NOT NULL DEFAULT '[]',
	model_version TEXT NOT NULL DEFAULT '',
	action        TEXT NOT NULL,
	asl_triggered BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS policy_actions (
	action_id      UUID PRIMARY KEY,
	event_id       UUID NOT NULL REFERENCES events(event_id),
	action         TEXT NOT NULL,
	asl_level      INTEGER,
	policy_version TEXT NOT NULL,
	reason         TEXT NOT NULL,
	timestamp      TIMESTAMPTZ NOT NULL,
	asl_triggered  BOOLEAN NOT NULL DEFAULT FALSE,
	supersedes     UUID
);

CREATE TABLE IF NOT EXISTS policy_history (
	change_id     UUID PRIMARY KEY,
	category      TEXT NOT NULL,
	tier          TEXT NOT NULL,
	old_threshold DOUBLE PRECISION NOT NULL,
	new_threshold DOUBLE PRECISION NOT NULL,
	changed_by    TEXT NOT NULL,
	timestamp     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_policy_actions_event ON policy_actions(event_id);
CREATE INDEX IF NOT EXISTS idx_policy_history_time ON policy_history(timestamp DESC);
`

// Postgres is the durable Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// AppendEvent implements Store. The event row and its initial action are
// written in one transaction so the audit trail never holds one without the
// other.
func (p *Postgres) AppendEvent(ctx context.Context, record *model.InteractionRecord, action model.PolicyAction) error {
	scores, err := json.Marshal(record.RiskScores)
	if err != nil {
		return fmt.Errorf("encoding risk scores: %w", err)
	}
	tags, err := json.Marshal(record.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO events (
			event_id, timestamp, user_id, org_id, surface, tier,
			prompt, completion, risk_scores, tags, model_version,
			action, asl_triggered
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		record.EventID, record.Timestamp, record.UserID, record.OrgID,
		string(record.Surface), string(record.Tier),
		record.Prompt, record.Completion, string(scores), string(tags),
		record.ModelVersion, string(action.Action), action.ASLTriggered,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("event %s: %w", record.EventID, ErrDuplicate)
		}
		return fmt.Errorf("inserting event: %w", err)
	}

	if err := insertAction(ctx, tx, action); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// AppendAction implements Store.
func (p *Postgres) AppendAction(ctx context.Context, action model.PolicyAction) error {
	return insertAction(ctx, p.pool, action)
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAction(ctx context.Context, db execer, action model.PolicyAction) error {
	_, err := db.Exec(ctx, `
		INSERT INTO policy_actions (
			action_id, event_id, action, asl_level, policy_version,
			reason, timestamp, asl_triggered, supersedes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		action.ActionID, action.EventID, string(action.Action), action.ASLLevel,
		action.PolicyVersion, action.Reason, action.Timestamp,
		action.ASLTriggered, action.Supersedes,
	)
	if err != nil {
		return fmt.Errorf("inserting policy action: %w", err)
	}
	return nil
}

// AppendThresholdChange implements Store.
func (p *Postgres) AppendThresholdChange(ctx context.Context, change model.ThresholdChange) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO policy_history (
			change_id, category, tier, old_threshold, new_threshold,
			changed_by, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		change.ChangeID, string(change.Category), string(change.Tier),
		change.OldThreshold, change.NewThreshold, change.ChangedBy, change.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("inserting threshold change: %w", err)
	}
	return nil
}

// Exists implements Store.
func (p *Postgres) Exists(ctx context.Context, eventID uuid.UUID) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM events WHERE event_id = $1)`, eventID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking event existence: %w", err)
	}
	return exists, nil
}

// Metrics implements Store.
func (p *Postgres) Metrics(ctx context.Context) (Metrics, error) {
	metrics := newMetrics()

	err := p.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE asl_triggered) FROM events`,
	).Scan(&metrics.TotalEvents, &metrics.ASLTriggers)
	if err != nil {
		return Metrics{}, fmt.Errorf("counting events: %w", err)
	}

	rows, err := p.pool.Query(ctx, `SELECT surface, tier, action, COUNT(*) FROM events GROUP BY 1, 2, 3`)
	if err != nil {
		return Metrics{}, fmt.Errorf("grouping events: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var surface, tier, action string
		var n int64
		if err := rows.Scan(&surface, &tier, &action, &n); err != nil {
			return Metrics{}, fmt.Errorf("scanning event group: %w", err)
		}
		metrics.EventsBySurface[model.Surface(surface)] += n
		metrics.EventsByTier[model.Tier(tier)] += n
		metrics.ActionsTaken[model.Action(action)] += n
	}
	if err := rows.Err(); err != nil {
		return Metrics{}, fmt.Errorf("reading event groups: %w", err)
	}

	for _, cat := range model.Categories() {
		var n int64
		err := p.pool.QueryRow(ctx,
			`SELECT COUNT(*) FROM events WHERE (risk_scores->>$1)::float > $2`,
			string(cat), highRiskCutoff,
		).Scan(&n)
		if err != nil {
			return Metrics{}, fmt.Errorf("counting %s detections: %w", cat, err)
		}
		metrics.RiskDetections[cat] = n
	}

	return metrics, nil
}

// ThresholdHistory implements Store.
func (p *Postgres) ThresholdHistory(ctx context.Context, limit int) ([]model.ThresholdChange, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx, `
		SELECT change_id, category, tier, old_threshold, new_threshold, changed_by, timestamp
		FROM policy_history ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying threshold history: %w", err)
	}
	defer rows.Close()

	var out []model.ThresholdChange
	for rows.Next() {
		var c model.ThresholdChange
		var category, tier string
		if err := rows.Scan(&c.ChangeID, &category, &tier, &c.OldThreshold, &c.NewThreshold, &c.ChangedBy, &c.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning threshold change: %w", err)
		}
		c.Category = model.Category(category)
		c.Tier = model.Tier(tier)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading threshold history: %w", err)
	}
	return out, nil
}

// Close implements Store.
func (p *Postgres) Close() {
	p.pool.Close()
}
