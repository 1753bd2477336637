package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
	"github.com/TrustPlaneAI/trustplane/pkg/policy"
)

// policyDocument is the on-disk shape of the policy file.
//
//	risk_thresholds:
//	  cbrn:
//	    general: 0.15
//	asl_triggers:
//	  asl_3:
//	    triggers:
//	      - category: cbrn
//	        confidence: 0.20
//	        description: Biological/chemical threat enhancement
type policyDocument struct {
	RiskThresholds map[string]map[string]float64 `yaml:"risk_thresholds"`
	ASLTriggers    map[string]aslLevelDocument   `yaml:"asl_triggers,omitempty"`
}

type aslLevelDocument struct {
	Triggers []aslTriggerDocument `yaml:"triggers"`
}

type aslTriggerDocument struct {
	Category    string  `yaml:"category"`
	Confidence  float64 `yaml:"confidence"`
	Description string  `yaml:"description,omitempty"`
}

// LoadPolicy reads the policy document at path. A missing file is not an
// error: the hardcoded defaults apply and a warning is logged. A file that
// exists but does not parse is an error, so a corrupted document never
// silently downgrades enforcement.
func LoadPolicy(path string) (policy.Thresholds, []policy.ASLTrigger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[WARN] Policy file not found at %s, using default thresholds", path)
			return policy.DefaultThresholds(), nil, nil
		}
		return nil, nil, fmt.Errorf("reading policy file %s: %w", path, err)
	}

	var doc policyDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, fmt.Errorf("parsing policy file %s: %w", path, err)
	}

	thresholds := policy.Thresholds{}
	for cat, tiers := range doc.RiskThresholds {
		category := model.Category(cat)
		if !category.Valid() {
			log.Printf("[WARN] Policy file lists unknown category %q, skipping", cat)
			continue
		}
		inner := map[model.Tier]float64{}
		for tier, v := range tiers {
			t := model.Tier(tier)
			if !t.Valid() {
				log.Printf("[WARN] Policy file lists unknown tier %q for %s, skipping", tier, cat)
				continue
			}
			inner[t] = v
		}
		thresholds[category] = inner
	}
	if len(thresholds) == 0 {
		log.Printf("[WARN] Policy file %s has no usable thresholds, using defaults", path)
		thresholds = policy.DefaultThresholds()
	}

	var triggers []policy.ASLTrigger
	for key, level := range doc.ASLTriggers {
		lvl, err := parseASLLevel(key)
		if err != nil {
			log.Printf("[WARN] Policy file has malformed ASL key %q, skipping", key)
			continue
		}
		for _, t := range level.Triggers {
			triggers = append(triggers, policy.ASLTrigger{
				Level:       lvl,
				Category:    model.Category(t.Category),
				Confidence:  t.Confidence,
				Description: t.Description,
			})
		}
	}
	// Stable order regardless of YAML map iteration.
	sort.SliceStable(triggers, func(i, j int) bool {
		if triggers[i].Level != triggers[j].Level {
			return triggers[i].Level < triggers[j].Level
		}
		return triggers[i].Category < triggers[j].Category
	})

	log.Printf("[STARTUP] Loaded policy configuration from %s (%d categories, %d ASL triggers)", path, len(thresholds), len(triggers))
	return thresholds, triggers, nil
}

// SavePolicy rewrites the policy document in full. Writes go through a temp
// file and rename so a crash mid-write never leaves a truncated document.
func SavePolicy(path string, thresholds policy.Thresholds, triggers []policy.ASLTrigger) error {
	doc := policyDocument{
		RiskThresholds: make(map[string]map[string]float64, len(thresholds)),
	}
	for cat, tiers := range thresholds {
		inner := make(map[string]float64, len(tiers))
		for tier, v := range tiers {
			inner[string(tier)] = v
		}
		doc.RiskThresholds[string(cat)] = inner
	}

	if len(triggers) > 0 {
		doc.ASLTriggers = map[string]aslLevelDocument{}
		for _, t := range triggers {
			key := "asl_" + strconv.Itoa(t.Level)
			level := doc.ASLTriggers[key]
			level.Triggers = append(level.Triggers, aslTriggerDocument{
				Category:    string(t.Category),
				Confidence:  t.Confidence,
				Description: t.Description,
			})
			doc.ASLTriggers[key] = level
		}
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encoding policy document: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating policy directory: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing policy file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing policy file: %w", err)
	}
	return nil
}

func parseASLLevel(key string) (int, error) {
	rest, ok := strings.CutPrefix(key, "asl_")
	if !ok {
		return 0, fmt.Errorf("key %q does not start with asl_", key)
	}
	return strconv.Atoi(rest)
}
