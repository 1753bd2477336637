package policy

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
)

// policyVersion labels every action with the policy revision that produced it.
const policyVersion = "ASL-1.0"

// ASLTrigger is one configured capability ceiling. A risk score at or above
// Confidence for the category trips the given ASL level.
type ASLTrigger struct {
	Level       int            `yaml:"level" json:"level"`
	Category    model.Category `yaml:"category" json:"category"`
	Confidence  float64        `yaml:"confidence" json:"confidence"`
	Description string         `yaml:"description" json:"description"`
}

// fixedASLChecks are the built-in ASL-3 capability ceilings, evaluated in
// priority order before any configured triggers. Biological risk carries the
// lowest ceiling.
var fixedASLChecks = []ASLTrigger{
	{Level: 3, Category: model.CategoryCBRN, Confidence: 0.20, Description: "Biological/chemical threat enhancement"},
	{Level: 3, Category: model.CategoryExploitation, Confidence: 0.50, Description: "Autonomous cyber attacks"},
	{Level: 3, Category: model.CategoryJailbreak, Confidence: 0.50, Description: "Scaled deception capability"},
}

// triggeredRisk is one score that crossed its tier threshold.
type triggeredRisk struct {
	Category  model.Category
	Score     float64
	Threshold float64
}

// Engine evaluates interaction records against the threshold table and the
// ASL rule set. Safe for concurrent use; stats are internally synchronized.
type Engine struct {
	table    *Table
	triggers []ASLTrigger
	stats    *Stats
}

// NewEngine creates an engine over the given threshold table and configured
// ASL triggers (may be nil; the fixed ceilings always apply).
func NewEngine(table *Table, triggers []ASLTrigger) *Engine {
	return &Engine{
		table:    table,
		triggers: triggers,
		stats:    newStats(),
	}
}

// Table returns the engine's threshold table.
func (e *Engine) Table() *Table {
	return e.table
}

// Stats returns a point-in-time copy of the enforcement statistics.
func (e *Engine) Stats() StatsSnapshot {
	return e.stats.snapshot()
}

// Apply evaluates one record and returns the enforcement action. Apart from
// stats counters and ASL tags appended to the record, evaluation is a pure
// function of the record's scores and tier plus the current threshold table:
// re-running an unchanged record yields the same action and reason.
func (e *Engine) Apply(record *model.InteractionRecord) model.PolicyAction {
	e.stats.recordEvaluation()

	// Step 1: tier thresholds. Categories are checked in a fixed order so the
	// triggered list, and therefore the reason string, is deterministic.
	var triggered []triggeredRisk
	for _, cat := range model.Categories() {
		score, ok := record.RiskScores[cat]
		if !ok {
			continue
		}
		threshold, ok := e.table.Lookup(cat, record.Tier)
		if !ok {
			continue
		}
		if score >= threshold {
			triggered = append(triggered, triggeredRisk{Category: cat, Score: score, Threshold: threshold})
			e.stats.recordCategoryHit(cat)
		}
	}

	// Highest score first; ties keep category order.
	sort.SliceStable(triggered, func(i, j int) bool {
		return triggered[i].Score > triggered[j].Score
	})

	var (
		maxRiskScore     float64
		criticalCategory model.Category
	)
	if len(triggered) > 0 {
		maxRiskScore = triggered[0].Score
		criticalCategory = triggered[0].Category
	}

	// Step 2: ASL capability ceilings, fixed checks first, then configured
	// triggers. First hit wins.
	aslTriggered := false
	var aslLevel *int
	var aslHit ASLTrigger
	for _, check := range append(append([]ASLTrigger{}, fixedASLChecks...), e.triggers...) {
		score, ok := record.RiskScores[check.Category]
		if !ok || score < check.Confidence {
			continue
		}
		aslTriggered = true
		level := check.Level
		aslLevel = &level
		aslHit = check
		e.stats.recordASLTrigger()
		appendTagOnce(record, fmt.Sprintf("asl_%d_%s_trigger", check.Level, check.Category))
		break
	}

	// Step 3: action decision.
	action := determineAction(triggered, maxRiskScore, criticalCategory, aslTriggered, record.Tier)
	e.stats.recordAction(action)

	// Step 4: reason generation.
	reason := generateReason(triggered, aslTriggered, aslHit, record.Tier)

	return model.PolicyAction{
		ActionID:      uuid.New(),
		EventID:       record.EventID,
		Action:        action,
		ASLLevel:      aslLevel,
		PolicyVersion: policyVersion,
		Reason:        reason,
		Timestamp:     time.Now().UTC(),
		ASLTriggered:  aslTriggered,
	}
}

// determineAction walks the ordered decision list. Every branch matches the
// tier exhaustively; an invalid tier that slipped past validation fails safe
// to escalate.
func determineAction(
	triggered []triggeredRisk,
	maxRiskScore float64,
	criticalCategory model.Category,
	aslTriggered bool,
	tier model.Tier,
) model.Action {
	if aslTriggered {
		switch tier {
		case model.TierResearchSandbox:
			// Sandboxed capability research may operate above the ceiling,
			// with mandatory logging.
			return model.ActionAllow
		case model.TierGeneral, model.TierEnterprise:
			return model.ActionEscalate
		}
		return model.ActionEscalate
	}

	if len(triggered) == 0 {
		return model.ActionAllow
	}

	// Critical categories get tier-differentiated handling even at scores a
	// generic branch would treat as low.
	if (criticalCategory == model.CategoryCBRN || criticalCategory == model.CategorySelfHarm) && maxRiskScore > 0.15 {
		switch tier {
		case model.TierGeneral:
			return model.ActionBlock
		case model.TierEnterprise:
			return model.ActionEscalate
		case model.TierResearchSandbox:
			return model.ActionRedact
		}
		return model.ActionEscalate
	}

	if maxRiskScore > 0.5 {
		if tier == model.TierResearchSandbox {
			return model.ActionRedact
		}
		return model.ActionBlock
	}

	if maxRiskScore > 0.3 {
		return model.ActionRedact
	}

	return model.ActionAllow
}

// generateReason builds the human-readable justification for the action.
func generateReason(triggered []triggeredRisk, aslTriggered bool, aslHit ASLTrigger, tier model.Tier) string {
	if aslTriggered {
		switch aslHit.Category {
		case model.CategoryCBRN:
			return fmt.Sprintf("ASL-%d biological/chemical threshold exceeded (%s >= %.2f)", aslHit.Level, aslHit.Category, aslHit.Confidence)
		case model.CategoryExploitation:
			return fmt.Sprintf("ASL-%d cyber capability threshold exceeded (%s >= %.2f)", aslHit.Level, aslHit.Category, aslHit.Confidence)
		case model.CategoryJailbreak:
			return fmt.Sprintf("ASL-%d deception capability threshold exceeded (%s >= %.2f)", aslHit.Level, aslHit.Category, aslHit.Confidence)
		}
		return fmt.Sprintf("ASL-%d safety threshold triggered for %s risk", aslHit.Level, aslHit.Category)
	}

	if len(triggered) == 0 {
		return "No policy violations detected"
	}

	top := triggered
	if len(top) > 3 {
		top = top[:3]
	}
	descriptions := make([]string, 0, len(top))
	for _, risk := range top {
		descriptions = append(descriptions,
			fmt.Sprintf("%s risk (%.2f) exceeded %s threshold (%.2f)", risk.Category, risk.Score, tier, risk.Threshold))
	}
	return strings.Join(descriptions, "; ")
}

// appendTagOnce adds a tag unless the record already carries it, keeping
// re-evaluation from stacking duplicates.
func appendTagOnce(record *model.InteractionRecord, tag string) {
	for _, t := range record.Tags {
		if t == tag {
			return
		}
	}
	record.Tags = append(record.Tags, tag)
}
