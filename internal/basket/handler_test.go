package basket_test

import (
	"errors"
	"testing"
	"time"

	"StableCore/internal/basket"
	"StableCore/internal/collateral"
	"StableCore/internal/fixed"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// setup builds a registry with three USD-pegged units at price 1.0 and a
// handler with a 0.5/0.5 TOKA/TOKB prime basket, TOKC as backup.
func setup(t *testing.T) (*collateral.Registry, *basket.Handler) {
	t.Helper()
	reg := collateral.NewRegistry(time.Hour, fixed.MustFromString("0.001"))
	for _, name := range []string{"TOKA", "TOKB", "TOKC"} {
		if err := reg.Register(name, "USD", fixed.One(), fixed.One(), fixed.New(1_000_000), 24*time.Hour, t0); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	h := basket.NewHandler(reg)
	if err := h.SetBackup("USD", basket.BackupConfig{DiversityFactor: 1, Units: []string{"TOKC"}}); err != nil {
		t.Fatalf("set backup: %v", err)
	}
	err := h.SetPrime([]basket.PrimeEntry{
		{Unit: "TOKA", TargetAmount: fixed.MustFromString("0.5")},
		{Unit: "TOKB", TargetAmount: fixed.MustFromString("0.5")},
	}, t0)
	if err != nil {
		t.Fatalf("set prime: %v", err)
	}
	return reg, h
}

// disable forces a unit through IFFY into DISABLED.
func disable(t *testing.T, reg *collateral.Registry, name string, from time.Time) time.Time {
	t.Helper()
	reg.RecordPrice(name, fixed.One(), fixed.One(), true, 100, from)
	reg.Refresh(from)
	end := from.Add(25 * time.Hour)
	reg.Refresh(end)
	u, _ := reg.Get(name)
	if u.Status() != collateral.StatusDisabled {
		t.Fatalf("setup: %s status = %v, want DISABLED", name, u.Status())
	}
	return end
}

// ============================================================================
// Test: live basket derivation
// ============================================================================

func TestSwitch_AllSound(t *testing.T) {
	_, h := setup(t)

	live := h.Live()
	if len(live) != 2 {
		t.Fatalf("live basket size = %d, want 2", len(live))
	}
	for _, e := range live {
		if !e.Quantity.Equal(fixed.MustFromString("0.5")) {
			t.Errorf("quantity(%s) = %s, want 0.5", e.Unit, e.Quantity)
		}
		if !e.Quantity.IsPositive() {
			t.Errorf("quantity(%s) must be positive", e.Unit)
		}
	}
	if h.Status() != collateral.StatusSound {
		t.Errorf("status = %v, want SOUND", h.Status())
	}
}

func TestQuantity_OutsideBasket(t *testing.T) {
	_, h := setup(t)

	if !h.Quantity("TOKC").IsZero() {
		t.Error("quantity of a unit outside the live basket must be 0")
	}
}

func TestSwitch_BackupSubstitution(t *testing.T) {
	reg, h := setup(t)

	end := disable(t, reg, "TOKB", t0.Add(time.Minute))

	// Keep TOKA and TOKC fresh so the switch can price them.
	reg.RecordPrice("TOKA", fixed.One(), fixed.One(), false, 100, end)
	reg.RecordPrice("TOKC", fixed.One(), fixed.One(), false, 100, end)
	reg.Refresh(end)

	if err := h.Switch(end); err != nil {
		t.Fatalf("switch: %v", err)
	}

	if !h.Quantity("TOKB").IsZero() {
		t.Error("disabled TOKB should leave the live basket")
	}
	if !h.Quantity("TOKC").Equal(fixed.MustFromString("0.5")) {
		t.Errorf("quantity(TOKC) = %s, want 0.5", h.Quantity("TOKC"))
	}
	if !h.Quantity("TOKA").Equal(fixed.MustFromString("0.5")) {
		t.Errorf("quantity(TOKA) = %s, want 0.5", h.Quantity("TOKA"))
	}
}

func TestSwitch_DiversitySplit(t *testing.T) {
	reg := collateral.NewRegistry(time.Hour, fixed.MustFromString("0.001"))
	for _, name := range []string{"TOKA", "TOKC", "TOKD"} {
		if err := reg.Register(name, "USD", fixed.One(), fixed.One(), fixed.New(1_000_000), 24*time.Hour, t0); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	h := basket.NewHandler(reg)
	h.SetBackup("USD", basket.BackupConfig{DiversityFactor: 2, Units: []string{"TOKC", "TOKD"}})
	if err := h.SetPrime([]basket.PrimeEntry{{Unit: "TOKA", TargetAmount: fixed.One()}}, t0); err != nil {
		t.Fatalf("set prime: %v", err)
	}

	end := disable(t, reg, "TOKA", t0.Add(time.Minute))
	reg.RecordPrice("TOKC", fixed.One(), fixed.One(), false, 100, end)
	reg.RecordPrice("TOKD", fixed.One(), fixed.One(), false, 100, end)
	reg.Refresh(end)

	if err := h.Switch(end); err != nil {
		t.Fatalf("switch: %v", err)
	}

	// Target 1.0 split evenly across two backups.
	if !h.Quantity("TOKC").Equal(fixed.MustFromString("0.5")) {
		t.Errorf("quantity(TOKC) = %s, want 0.5", h.Quantity("TOKC"))
	}
	if !h.Quantity("TOKD").Equal(fixed.MustFromString("0.5")) {
		t.Errorf("quantity(TOKD) = %s, want 0.5", h.Quantity("TOKD"))
	}
}

func TestSwitch_SkipsUnsoundBackup(t *testing.T) {
	reg, h := setup(t)

	// TOKC goes iffy: it must be skipped as a substitute.
	now := t0.Add(time.Minute)
	reg.RecordPrice("TOKC", fixed.One(), fixed.One(), true, 100, now)
	reg.Refresh(now)

	end := disable(t, reg, "TOKB", now)
	reg.RecordPrice("TOKA", fixed.One(), fixed.One(), false, 100, end)
	reg.Refresh(end)

	err := h.Switch(end)
	if !errors.Is(err, basket.ErrNoSoundBackup) {
		t.Fatalf("got %v, want ErrNoSoundBackup", err)
	}

	// All-or-nothing: old basket intact, still reporting TOKB.
	if !h.Quantity("TOKB").Equal(fixed.MustFromString("0.5")) {
		t.Error("failed switch must leave the previous live basket unchanged")
	}
	if h.Status() != collateral.StatusDisabled {
		t.Errorf("status = %v, want DISABLED while holding a defaulted unit", h.Status())
	}
}

// ============================================================================
// Test: basketsHeldBy
// ============================================================================

func TestBasketsHeldBy_FullBacking(t *testing.T) {
	_, h := setup(t)

	held := h.BasketsHeldBy(map[string]fixed.Dec{
		"TOKA": fixed.New(500),
		"TOKB": fixed.New(500),
	})
	if !held.Equal(fixed.New(1000)) {
		t.Errorf("basketsHeldBy = %s, want 1000", held)
	}
}

func TestBasketsHeldBy_ShortfallCaps(t *testing.T) {
	_, h := setup(t)

	held := h.BasketsHeldBy(map[string]fixed.Dec{
		"TOKA": fixed.New(500),
		"TOKB": fixed.New(100),
	})
	if !held.Equal(fixed.New(200)) {
		t.Errorf("basketsHeldBy = %s, want 200 (capped by TOKB)", held)
	}
}

func TestBasketsHeldBy_MissingUnitZero(t *testing.T) {
	_, h := setup(t)

	held := h.BasketsHeldBy(map[string]fixed.Dec{"TOKA": fixed.New(500)})
	if !held.IsZero() {
		t.Errorf("basketsHeldBy = %s, want 0 with a missing unit", held)
	}
}

func TestBasketsHeldBy_Monotone(t *testing.T) {
	_, h := setup(t)

	base := map[string]fixed.Dec{"TOKA": fixed.New(500), "TOKB": fixed.New(300)}
	before := h.BasketsHeldBy(base)

	// Increasing any single balance never decreases the figure.
	more := map[string]fixed.Dec{"TOKA": fixed.New(500), "TOKB": fixed.New(400)}
	if h.BasketsHeldBy(more).LT(before) {
		t.Error("increasing a balance decreased basketsHeldBy")
	}

	// Decreasing one never increases it.
	less := map[string]fixed.Dec{"TOKA": fixed.New(400), "TOKB": fixed.New(300)}
	if h.BasketsHeldBy(less).GT(before) {
		t.Error("decreasing a balance increased basketsHeldBy")
	}
}

// ============================================================================
// Test: coverage invariant
// ============================================================================

func TestSwitch_TargetValuePreserved(t *testing.T) {
	reg, h := setup(t)

	end := disable(t, reg, "TOKB", t0.Add(time.Minute))
	reg.RecordPrice("TOKA", fixed.One(), fixed.One(), false, 100, end)
	reg.RecordPrice("TOKC", fixed.One(), fixed.One(), false, 100, end)
	reg.Refresh(end)
	if err := h.Switch(end); err != nil {
		t.Fatalf("switch: %v", err)
	}

	total := fixed.Zero()
	for _, e := range h.Live() {
		if !e.Quantity.IsPositive() {
			t.Errorf("quantity(%s) must be positive", e.Unit)
		}
		total = total.Add(e.TargetAmount)
	}

	// Summed target value matches the prime basket total within rounding.
	eps := fixed.NewWithPrec(1, 12)
	diff := total.Sub(fixed.One()).Abs()
	if diff.GT(eps) {
		t.Errorf("target value after switch = %s, want 1.0 ± 1e-12", total)
	}
}
