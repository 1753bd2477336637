package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
	"github.com/TrustPlaneAI/trustplane/pkg/policy"
)

func TestLoadPolicyMissingFileUsesDefaults(t *testing.T) {
	thresholds, triggers, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
	if !reflect.DeepEqual(thresholds, policy.DefaultThresholds()) {
		t.Error("missing file should yield the default thresholds")
	}
	if triggers != nil {
		t.Errorf("triggers = %v, want none", triggers)
	}
}

func TestLoadPolicyMalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("risk_thresholds: [not, a, map"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := LoadPolicy(path); err == nil {
		t.Error("corrupted policy file must fail loudly, not fall back to defaults")
	}
}

func TestLoadPolicyParsesDocument(t *testing.T) {
	doc := `
risk_thresholds:
  cbrn:
    general: 0.15
    enterprise: 0.18
  jailbreak:
    general: 0.35
asl_triggers:
  asl_3:
    triggers:
      - category: cbrn
        confidence: 0.20
        description: Biological/chemical threat enhancement
  asl_4:
    triggers:
      - category: exploitation
        confidence: 0.40
`
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	thresholds, triggers, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}

	if v := thresholds[model.CategoryCBRN][model.TierEnterprise]; v != 0.18 {
		t.Errorf("cbrn/enterprise = %f, want 0.18", v)
	}
	if v := thresholds[model.CategoryJailbreak][model.TierGeneral]; v != 0.35 {
		t.Errorf("jailbreak/general = %f, want 0.35", v)
	}

	if len(triggers) != 2 {
		t.Fatalf("triggers = %d, want 2", len(triggers))
	}
	// Sorted by level then category, whatever the YAML map order was.
	if triggers[0].Level != 3 || triggers[0].Category != model.CategoryCBRN {
		t.Errorf("first trigger = %+v", triggers[0])
	}
	if triggers[1].Level != 4 || triggers[1].Confidence != 0.40 {
		t.Errorf("second trigger = %+v", triggers[1])
	}
}

func TestLoadPolicySkipsUnknownEntries(t *testing.T) {
	doc := `
risk_thresholds:
  cbrn:
    general: 0.15
    platinum: 0.99
  astrology:
    general: 0.5
asl_triggers:
  not_a_level:
    triggers:
      - category: cbrn
        confidence: 0.2
`
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	thresholds, triggers, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}

	if _, ok := thresholds[model.Category("astrology")]; ok {
		t.Error("unknown category must be skipped")
	}
	if _, ok := thresholds[model.CategoryCBRN][model.Tier("platinum")]; ok {
		t.Error("unknown tier must be skipped")
	}
	if v := thresholds[model.CategoryCBRN][model.TierGeneral]; v != 0.15 {
		t.Errorf("valid entry lost: %f", v)
	}
	if len(triggers) != 0 {
		t.Errorf("malformed ASL key should be skipped, got %v", triggers)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy", "policy_map.yaml")

	thresholds := policy.DefaultThresholds()
	thresholds[model.CategoryJailbreak][model.TierGeneral] = 0.42
	triggers := []policy.ASLTrigger{
		{Level: 3, Category: model.CategoryCBRN, Confidence: 0.20, Description: "Biological/chemical threat enhancement"},
		{Level: 4, Category: model.CategoryExploitation, Confidence: 0.35},
	}

	if err := SavePolicy(path, thresholds, triggers); err != nil {
		t.Fatalf("SavePolicy: %v", err)
	}

	gotThresholds, gotTriggers, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if !reflect.DeepEqual(gotThresholds, thresholds) {
		t.Errorf("thresholds round trip mismatch:\n got %v\nwant %v", gotThresholds, thresholds)
	}
	if !reflect.DeepEqual(gotTriggers, triggers) {
		t.Errorf("triggers round trip mismatch:\n got %v\nwant %v", gotTriggers, triggers)
	}
}

func TestParseASLLevel(t *testing.T) {
	tests := []struct {
		key     string
		want    int
		wantErr bool
	}{
		{"asl_3", 3, false},
		{"asl_4", 4, false},
		{"asl_x", 0, true},
		{"level_3", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseASLLevel(tt.key)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseASLLevel(%q) err = %v, wantErr %v", tt.key, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseASLLevel(%q) = %d, want %d", tt.key, got, tt.want)
		}
	}
}
