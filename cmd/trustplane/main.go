package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/TrustPlaneAI/trustplane/pkg/config"
	"github.com/TrustPlaneAI/trustplane/pkg/detect"
	"github.com/TrustPlaneAI/trustplane/pkg/ingest"
	"github.com/TrustPlaneAI/trustplane/pkg/model"
	"github.com/TrustPlaneAI/trustplane/pkg/notify"
	"github.com/TrustPlaneAI/trustplane/pkg/policy"
	"github.com/TrustPlaneAI/trustplane/pkg/review"
	"github.com/TrustPlaneAI/trustplane/pkg/store"
)

const Version = "1.0.0"

// promptPreviewLen caps the prompt excerpt shown in review queue listings.
const promptPreviewLen = 200

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServer()
	case "scan":
		if len(os.Args) < 3 {
			fmt.Println("Usage: trustplane scan <text>")
			os.Exit(1)
		}
		runCLIScan(strings.Join(os.Args[2:], " "))
	case "thresholds":
		runCLIThresholds()
	case "version":
		fmt.Printf("TrustPlane v%s\n", Version)
		fmt.Println("Model-Interaction Governance Control Plane")
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf("TrustPlane v%s - Model-Interaction Governance Control Plane\n\n", Version)
	fmt.Println("Usage:")
	fmt.Println("  trustplane serve              Start the HTTP control plane")
	fmt.Println("  trustplane scan <text>        Score text against all risk categories")
	fmt.Println("  trustplane thresholds         Print the effective threshold table")
	fmt.Println("  trustplane version            Show version")
	fmt.Println("")
	fmt.Println("Environment Variables:")
	fmt.Println("  TRUSTPLANE_LISTEN              Listen address (default :8000)")
	fmt.Println("  TRUSTPLANE_POLICY_FILE         Policy YAML path (default policy/policy_map.yaml)")
	fmt.Println("  TRUSTPLANE_POSTGRES_DSN        Postgres DSN (empty = in-memory store)")
	fmt.Println("  TRUSTPLANE_REDIS_ADDR          Redis address (empty = in-memory queue)")
	fmt.Println("  TRUSTPLANE_ESCALATION_WEBHOOK  URL notified on every escalation")
}

// ============================================================================
// HTTP Server Mode
// ============================================================================

// server bundles the wired collaborators behind the HTTP handlers.
type server struct {
	engine   *policy.Engine
	pipeline *ingest.Pipeline
	store    store.Store
	queue    review.Queue
	resolver *review.Resolver
}

func runServer() {
	cfg := config.NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[STARTUP] FATAL: invalid configuration: %v", err)
	}

	thresholds, triggers, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("[STARTUP] FATAL: %v", err)
	}
	table := policy.NewTable(thresholds)
	table.SetPersist(func(th policy.Thresholds) error {
		return config.SavePolicy(cfg.PolicyFile, th, triggers)
	})
	engine := policy.NewEngine(table, triggers)

	ctx := context.Background()

	var st store.Store
	if cfg.PostgresDSN != "" {
		pg, err := store.NewPostgres(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("[STARTUP] FATAL: %v", err)
		}
		st = pg
		log.Println("[STARTUP] Audit store: postgres")
	} else {
		st = store.NewMemory()
		log.Println("[STARTUP] Audit store: in-memory (set TRUSTPLANE_POSTGRES_DSN for durability)")
	}
	defer st.Close()

	var queue review.Queue
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rq, err := review.NewRedisQueue(ctx, client)
		if err != nil {
			log.Fatalf("[STARTUP] FATAL: %v", err)
		}
		queue = rq
		log.Println("[STARTUP] Review queue: redis")
	} else {
		queue = review.NewMemoryQueue()
		log.Println("[STARTUP] Review queue: in-memory (set TRUSTPLANE_REDIS_ADDR for durability)")
	}

	notifier := notify.New(cfg.EscalationWebhook)
	if notifier != nil {
		log.Printf("[STARTUP] Escalation webhook enabled: %s", cfg.EscalationWebhook)
	}

	s := &server{
		engine:   engine,
		pipeline: ingest.New(engine, st, queue, notifier, cfg.IngestConcurrency),
		store:    st,
		queue:    queue,
		resolver: review.NewResolver(queue, st, table),
	}

	app := fiber.New(fiber.Config{
		AppName: "TrustPlane",
	})

	app.Get("/", s.handleRoot)
	app.Get("/health", s.handleHealth)
	app.Post("/ingest", s.handleIngest)
	app.Get("/metrics", s.handleMetrics)
	app.Get("/review-queue", s.handleReviewQueue)
	app.Post("/review/:id", s.handleReview)
	app.Get("/thresholds", s.handleThresholds)
	app.Post("/thresholds", s.handleThresholdUpdate)
	app.Get("/policy-history", s.handlePolicyHistory)

	log.Printf("[STARTUP] TrustPlane v%s listening on %s", Version, cfg.ListenAddr)
	if err := app.Listen(cfg.ListenAddr); err != nil {
		log.Fatal(err)
	}
}

func (s *server) handleRoot(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "TrustPlane Governance Control Plane",
		"status":  "operational",
		"version": Version,
		"endpoints": fiber.Map{
			"POST /ingest":        "Batch record processing",
			"GET /metrics":        "Audit and enforcement statistics",
			"GET /review-queue":   "Escalated records pending review",
			"POST /review/:id":    "Submit a review decision",
			"GET /thresholds":     "Current threshold table",
			"POST /thresholds":    "Update one threshold",
			"GET /policy-history": "Threshold change audit trail",
		},
	})
}

func (s *server) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy", "timestamp": time.Now().UTC()})
}

func (s *server) handleIngest(c fiber.Ctx) error {
	var req struct {
		Events []*model.InteractionRecord `json:"events"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if len(req.Events) == 0 {
		return c.Status(400).JSON(fiber.Map{"error": "events field is required"})
	}

	summary, err := s.pipeline.ProcessBatch(c.Context(), req.Events)
	if err != nil {
		log.Printf("[WARN] Ingest batch failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "batch processing failed"})
	}
	return c.JSON(summary)
}

func (s *server) handleMetrics(c fiber.Ctx) error {
	m, err := s.store.Metrics(c.Context())
	if err != nil {
		log.Printf("[WARN] Metrics query failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "metrics unavailable"})
	}
	return c.JSON(fiber.Map{
		"storage":     m,
		"enforcement": s.engine.Stats(),
	})
}

func (s *server) handleReviewQueue(c fiber.Ctx) error {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.Status(400).JSON(fiber.Map{"error": "limit must be a positive integer"})
		}
		limit = n
	}

	entries, total, err := s.queue.List(c.Context(), limit)
	if err != nil {
		log.Printf("[WARN] Review queue listing failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "review queue unavailable"})
	}

	items := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		items = append(items, fiber.Map{
			"event_id":       e.Record.EventID,
			"timestamp":      e.Record.Timestamp,
			"user_id":        e.Record.UserID,
			"org_id":         e.Record.OrgID,
			"surface":        e.Record.Surface,
			"tier":           e.Record.Tier,
			"prompt_preview": preview(e.Record.Prompt),
			"risk_scores":    e.Record.RiskScores,
			"reason":         e.Action.Reason,
			"added_to_queue": e.AddedAt,
		})
	}
	return c.JSON(fiber.Map{"total": total, "items": items})
}

func (s *server) handleReview(c fiber.Ctx) error {
	eventID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid event id"})
	}

	var req struct {
		Decision  model.Action            `json:"decision"`
		ChangedBy string                  `json:"changed_by"`
		Update    *review.ThresholdUpdate `json:"threshold_update"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if !req.Decision.Valid() {
		return c.Status(400).JSON(fiber.Map{"error": "decision must be one of allow, block, redact, escalate"})
	}

	outcome, err := s.resolver.Submit(c.Context(), review.Decision{
		EventID:   eventID,
		Action:    req.Decision,
		ChangedBy: req.ChangedBy,
		Update:    req.Update,
	})
	if errors.Is(err, review.ErrNotFound) {
		return c.Status(404).JSON(fiber.Map{"error": "event not found in review queue"})
	}
	if err != nil {
		log.Printf("[WARN] Review decision failed for %s: %v", eventID, err)
		return c.Status(500).JSON(fiber.Map{"error": "review decision failed"})
	}
	return c.JSON(outcome)
}

func (s *server) handleThresholds(c fiber.Ctx) error {
	return c.JSON(s.engine.Table().Snapshot())
}

func (s *server) handleThresholdUpdate(c fiber.Ctx) error {
	var req struct {
		Category     model.Category `json:"category"`
		Tier         model.Tier     `json:"tier"`
		NewThreshold float64        `json:"new_threshold"`
		ChangedBy    string         `json:"changed_by"`
	}
	if err := c.Bind().Body(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
	}
	if !req.Category.Valid() || !req.Tier.Valid() {
		return c.Status(400).JSON(fiber.Map{"error": "unknown category or tier"})
	}

	old, err := s.engine.Table().Update(req.Category, req.Tier, req.NewThreshold)
	if err != nil {
		return c.Status(422).JSON(fiber.Map{"error": err.Error()})
	}

	changedBy := req.ChangedBy
	if changedBy == "" {
		changedBy = "api"
	}
	change := model.ThresholdChange{
		ChangeID:     uuid.New(),
		Category:     req.Category,
		Tier:         req.Tier,
		OldThreshold: old,
		NewThreshold: req.NewThreshold,
		ChangedBy:    changedBy,
		Timestamp:    time.Now().UTC(),
	}
	if err := s.store.AppendThresholdChange(c.Context(), change); err != nil {
		log.Printf("[WARN] Threshold change applied but not recorded: %v", err)
	}
	return c.JSON(change)
}

func (s *server) handlePolicyHistory(c fiber.Ctx) error {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return c.Status(400).JSON(fiber.Map{"error": "limit must be a positive integer"})
		}
		limit = n
	}
	history, err := s.store.ThresholdHistory(c.Context(), limit)
	if err != nil {
		log.Printf("[WARN] Policy history query failed: %v", err)
		return c.Status(500).JSON(fiber.Map{"error": "policy history unavailable"})
	}
	return c.JSON(fiber.Map{"changes": history})
}

func preview(prompt string) string {
	if len(prompt) <= promptPreviewLen {
		return prompt
	}
	// Back off to a rune boundary so the cut never emits invalid UTF-8.
	cut := promptPreviewLen
	for cut > 0 && !utf8.RuneStart(prompt[cut]) {
		cut--
	}
	return prompt[:cut] + "..."
}

// ============================================================================
// CLI Mode
// ============================================================================

func runCLIScan(text string) {
	detectors := detect.NewDefaults()
	scores := detect.RunAll(detectors, text, "")

	out := make(map[model.Category]model.RiskScore, len(scores))
	for cat, rs := range scores {
		out[cat] = rs
	}
	data, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(data))
}

func runCLIThresholds() {
	cfg := config.NewDefaultConfig()
	thresholds, _, err := config.LoadPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatalf("loading policy: %v", err)
	}
	data, _ := json.MarshalIndent(thresholds, "", "  ")
	fmt.Println(string(data))
}
