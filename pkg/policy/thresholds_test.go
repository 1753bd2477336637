package policy

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/TrustPlaneAI/trustplane/pkg/model"
)

func TestDefaultThresholdsCoverEveryPair(t *testing.T) {
	defaults := DefaultThresholds()

	for _, cat := range model.Categories() {
		tiers, ok := defaults[cat]
		if !ok {
			t.Fatalf("missing category %s", cat)
		}
		for _, tier := range model.Tiers() {
			v, ok := tiers[tier]
			if !ok {
				t.Errorf("missing %s/%s", cat, tier)
			}
			if v <= 0 || v >= 1 {
				t.Errorf("%s/%s threshold %f outside (0, 1)", cat, tier, v)
			}
		}
	}
}

func TestDefaultThresholdsRespectFloors(t *testing.T) {
	defaults := DefaultThresholds()

	for _, cat := range model.Categories() {
		floor, ok := Floor(cat)
		if !ok {
			t.Fatalf("no floor for %s", cat)
		}
		for tier, v := range defaults[cat] {
			if v < floor {
				t.Errorf("%s/%s default %f below floor %f", cat, tier, v, floor)
			}
		}
	}
}

func TestTableUpdate(t *testing.T) {
	table := NewTable(nil)

	old, err := table.Update(model.CategoryJailbreak, model.TierGeneral, 0.40)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if old != 0.30 {
		t.Errorf("old = %f, want 0.30", old)
	}

	v, ok := table.Lookup(model.CategoryJailbreak, model.TierGeneral)
	if !ok || v != 0.40 {
		t.Errorf("Lookup = %f, %v; want 0.40", v, ok)
	}

	// Other pairs untouched.
	if v, _ := table.Lookup(model.CategoryJailbreak, model.TierEnterprise); v != 0.45 {
		t.Errorf("enterprise threshold changed to %f", v)
	}
}

func TestTableRejectsBelowFloor(t *testing.T) {
	table := NewTable(nil)

	_, err := table.Update(model.CategoryCBRN, model.TierGeneral, 0.05)
	if !errors.Is(err, ErrBelowFloor) {
		t.Fatalf("err = %v, want ErrBelowFloor", err)
	}

	// The table must be unchanged after a rejected update.
	if v, _ := table.Lookup(model.CategoryCBRN, model.TierGeneral); v != 0.15 {
		t.Errorf("threshold = %f after rejected update, want 0.15", v)
	}
}

func TestTableUpdateAtFloorSucceeds(t *testing.T) {
	table := NewTable(nil)

	if _, err := table.Update(model.CategoryCBRN, model.TierGeneral, 0.10); err != nil {
		t.Errorf("update at exact floor should succeed: %v", err)
	}
}

func TestTableRejectsUnknownPair(t *testing.T) {
	table := NewTable(Thresholds{
		model.CategoryCBRN: {model.TierGeneral: 0.15},
	})

	if _, err := table.Update(model.CategoryJailbreak, model.TierGeneral, 0.4); !errors.Is(err, ErrUnknownThreshold) {
		t.Errorf("err = %v, want ErrUnknownThreshold for missing category", err)
	}
	if _, err := table.Update(model.CategoryCBRN, model.TierEnterprise, 0.4); !errors.Is(err, ErrUnknownThreshold) {
		t.Errorf("err = %v, want ErrUnknownThreshold for missing tier", err)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	table := NewTable(nil)

	snap := table.Snapshot()
	snap[model.CategoryCBRN][model.TierGeneral] = 0.99

	if v, _ := table.Lookup(model.CategoryCBRN, model.TierGeneral); v != 0.15 {
		t.Errorf("mutating a snapshot reached the live table: %f", v)
	}
}

func TestPersistHook(t *testing.T) {
	table := NewTable(nil)

	var persisted Thresholds
	table.SetPersist(func(th Thresholds) error {
		persisted = th
		return nil
	})

	if _, err := table.Update(model.CategorySelfHarm, model.TierEnterprise, 0.55); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if persisted == nil {
		t.Fatal("persist hook not invoked")
	}
	if persisted[model.CategorySelfHarm][model.TierEnterprise] != 0.55 {
		t.Error("persist hook received stale thresholds")
	}
}

func TestPersistFailureKeepsInMemoryUpdate(t *testing.T) {
	table := NewTable(nil)
	table.SetPersist(func(Thresholds) error {
		return fmt.Errorf("disk full")
	})

	old, err := table.Update(model.CategorySelfHarm, model.TierGeneral, 0.35)
	if err == nil {
		t.Fatal("expected persist error")
	}
	if old != 0.30 {
		t.Errorf("old = %f, want 0.30 even on persist failure", old)
	}
	if v, _ := table.Lookup(model.CategorySelfHarm, model.TierGeneral); v != 0.35 {
		t.Errorf("in-memory value = %f, want the updated 0.35", v)
	}
}

func TestConcurrentReadersDuringUpdates(t *testing.T) {
	table := NewTable(nil)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				v, ok := table.Lookup(model.CategoryJailbreak, model.TierGeneral)
				if !ok {
					t.Error("lookup lost the jailbreak/general pair")
					return
				}
				// Readers must only ever see a value some update wrote.
				if v != 0.30 && v != 0.40 {
					t.Errorf("read torn value %f", v)
					return
				}
			}
		}()
	}

	for i := 0; i < 100; i++ {
		want := 0.40
		if i%2 == 1 {
			want = 0.30
		}
		if _, err := table.Update(model.CategoryJailbreak, model.TierGeneral, want); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	close(stop)
	wg.Wait()
}
