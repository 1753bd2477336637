// Package model defines the closed enum types and record structures shared
// across the control plane. Categories, tiers, surfaces, and actions are
// deliberately closed sets so the rules engine can match exhaustively and
// unknown values fail validation instead of being silently ignored.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Category is a risk detection category.
type Category string

const (
	CategoryCBRN         Category = "cbrn"
	CategorySelfHarm     Category = "self_harm"
	CategoryJailbreak    Category = "jailbreak"
	CategoryExploitation Category = "exploitation"
)

// Categories returns every detection category in evaluation order.
func Categories() []Category {
	return []Category{CategoryCBRN, CategorySelfHarm, CategoryJailbreak, CategoryExploitation}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryCBRN, CategorySelfHarm, CategoryJailbreak, CategoryExploitation:
		return true
	}
	return false
}

// Surface identifies where an interaction originated.
type Surface string

const (
	SurfaceWeb     Surface = "web"
	SurfaceAPI     Surface = "api"
	SurfaceManaged Surface = "managed_hosting"
)

// Surfaces returns all deployment surfaces.
func Surfaces() []Surface {
	return []Surface{SurfaceWeb, SurfaceAPI, SurfaceManaged}
}

// Valid reports whether s is a known surface.
func (s Surface) Valid() bool {
	switch s {
	case SurfaceWeb, SurfaceAPI, SurfaceManaged:
		return true
	}
	return false
}

// Tier is an organizational access tier. Conceptually ordered
// general < enterprise < research_sandbox, though per-tier thresholds are
// configured independently and need not be monotonic.
type Tier string

const (
	TierGeneral         Tier = "general"
	TierEnterprise      Tier = "enterprise"
	TierResearchSandbox Tier = "research_sandbox"
)

// Tiers returns all access tiers in ascending trust order.
func Tiers() []Tier {
	return []Tier{TierGeneral, TierEnterprise, TierResearchSandbox}
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	switch t {
	case TierGeneral, TierEnterprise, TierResearchSandbox:
		return true
	}
	return false
}

// Action is the enforcement decision for an interaction.
type Action string

const (
	ActionAllow    Action = "allow"
	ActionBlock    Action = "block"
	ActionRedact   Action = "redact"
	ActionEscalate Action = "escalate"
)

// Actions returns all enforcement actions.
func Actions() []Action {
	return []Action{ActionAllow, ActionBlock, ActionRedact, ActionEscalate}
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionAllow, ActionBlock, ActionRedact, ActionEscalate:
		return true
	}
	return false
}

// Severity is the coarse risk bucket derived from a detector confidence.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// RiskScore is a single detector's assessment of one interaction.
// Ephemeral: it exists only as an in-flight return value and is folded into
// InteractionRecord.RiskScores by the ingest pipeline.
type RiskScore struct {
	Category        Category `json:"category"`
	Confidence      float64  `json:"confidence"`
	MatchedPatterns []string `json:"matched_patterns"`
	Severity        Severity `json:"severity"`
}

// InteractionRecord is one model interaction submitted for governance.
// Created at ingestion; mutated only to append tags and risk scores during
// scoring. Once an action is recorded the record is immutable; a review
// decision produces a superseding PolicyAction, never an in-place edit.
type InteractionRecord struct {
	EventID      uuid.UUID            `json:"event_id"`
	Timestamp    time.Time            `json:"timestamp"`
	UserID       string               `json:"user_id"`
	OrgID        string               `json:"org_id"`
	Surface      Surface              `json:"surface"`
	Tier         Tier                 `json:"tier"`
	Prompt       string               `json:"prompt"`
	Completion   string               `json:"completion"`
	RiskScores   map[Category]float64 `json:"risk_scores"`
	Tags         []string             `json:"tags"`
	ModelVersion string               `json:"model_version"`
}

// Validate checks the enum fields of a record before scoring.
func (r *InteractionRecord) Validate() error {
	if !r.Surface.Valid() {
		return &ValidationError{Field: "surface", Value: string(r.Surface)}
	}
	if !r.Tier.Valid() {
		return &ValidationError{Field: "tier", Value: string(r.Tier)}
	}
	return nil
}

// ValidationError reports an unknown enum value on an incoming record.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return "invalid " + e.Field + ": " + e.Value
}

// PolicyAction is the enforcement decision recorded for one interaction.
// Never mutated: a review override appends a new PolicyAction whose
// Supersedes field references the original, preserving the full audit trail.
type PolicyAction struct {
	ActionID      uuid.UUID  `json:"action_id"`
	EventID       uuid.UUID  `json:"event_id"`
	Action        Action     `json:"action"`
	ASLLevel      *int       `json:"asl_level,omitempty"`
	PolicyVersion string     `json:"policy_version"`
	Reason        string     `json:"reason"`
	Timestamp     time.Time  `json:"timestamp"`
	ASLTriggered  bool       `json:"asl_triggered"`
	Supersedes    *uuid.UUID `json:"supersedes,omitempty"`
}

// ThresholdChange is one entry in the threshold-change audit history.
type ThresholdChange struct {
	ChangeID     uuid.UUID `json:"change_id"`
	Category     Category  `json:"category"`
	Tier         Tier      `json:"tier"`
	OldThreshold float64   `json:"old_threshold"`
	NewThreshold float64   `json:"new_threshold"`
	ChangedBy    string    `json:"changed_by"`
	Timestamp    time.Time `json:"timestamp"`
}
