package collateral_test

import (
	"testing"
	"time"

	"StableCore/internal/collateral"
	"StableCore/internal/fixed"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestRegistry(t *testing.T) *collateral.Registry {
	t.Helper()
	reg := collateral.NewRegistry(time.Hour, fixed.MustFromString("0.001"))
	err := reg.Register("TOKA", "USD", fixed.One(), fixed.One(), fixed.New(1_000_000), 24*time.Hour, t0)
	if err != nil {
		t.Fatalf("register TOKA: %v", err)
	}
	return reg
}

// ============================================================================
// Test: status state machine
// ============================================================================

func TestRefresh_SoundStaysSound(t *testing.T) {
	reg := newTestRegistry(t)

	reg.Refresh(t0.Add(time.Minute))

	u, _ := reg.Get("TOKA")
	if u.Status() != collateral.StatusSound {
		t.Errorf("status = %v, want SOUND", u.Status())
	}
}

func TestRefresh_StalePriceTurnsIffy(t *testing.T) {
	reg := newTestRegistry(t)

	// Last observation at t0, oracle timeout is 1h.
	now := t0.Add(2 * time.Hour)
	reg.Refresh(now)

	u, _ := reg.Get("TOKA")
	if u.Status() != collateral.StatusIffy {
		t.Fatalf("status = %v, want IFFY", u.Status())
	}
	if !u.IffySince().Equal(now) {
		t.Errorf("iffySince = %v, want %v", u.IffySince(), now)
	}
}

func TestRefresh_FeedErrorTurnsIffy(t *testing.T) {
	reg := newTestRegistry(t)

	now := t0.Add(time.Minute)
	reg.RecordPrice("TOKA", fixed.One(), fixed.One(), true, 1, now)
	reg.Refresh(now)

	u, _ := reg.Get("TOKA")
	if u.Status() != collateral.StatusIffy {
		t.Errorf("status = %v, want IFFY", u.Status())
	}
}

func TestRefresh_RefPerTokDropTurnsIffy(t *testing.T) {
	reg := newTestRegistry(t)

	now := t0.Add(time.Minute)
	reg.RecordPrice("TOKA", fixed.One(), fixed.MustFromString("0.95"), false, 1, now)
	reg.Refresh(now)

	u, _ := reg.Get("TOKA")
	if u.Status() != collateral.StatusIffy {
		t.Errorf("status = %v, want IFFY after refPerTok drop", u.Status())
	}
}

func TestRefresh_RecoveryBeforeDelay(t *testing.T) {
	reg := newTestRegistry(t)

	// Stale → IFFY.
	reg.Refresh(t0.Add(2 * time.Hour))

	// Fresh healthy price arrives before delayUntilDefault (24h).
	later := t0.Add(3 * time.Hour)
	reg.RecordPrice("TOKA", fixed.One(), fixed.One(), false, 1, later)
	reg.Refresh(later)

	u, _ := reg.Get("TOKA")
	if u.Status() != collateral.StatusSound {
		t.Errorf("status = %v, want SOUND after recovery", u.Status())
	}
	if !u.IffySince().IsZero() {
		t.Error("iffySince should be cleared after recovery")
	}
}

func TestRefresh_DisabledAfterDelay(t *testing.T) {
	reg := newTestRegistry(t)

	iffyAt := t0.Add(2 * time.Hour)
	reg.Refresh(iffyAt)

	// Still unhealthy past delayUntilDefault.
	reg.Refresh(iffyAt.Add(24 * time.Hour))

	u, _ := reg.Get("TOKA")
	if u.Status() != collateral.StatusDisabled {
		t.Errorf("status = %v, want DISABLED", u.Status())
	}
}

func TestRefresh_DisabledIsTerminal(t *testing.T) {
	reg := newTestRegistry(t)

	reg.Refresh(t0.Add(2 * time.Hour))
	reg.Refresh(t0.Add(30 * time.Hour))

	// Healthy price after the default changes nothing within this era.
	later := t0.Add(31 * time.Hour)
	reg.RecordPrice("TOKA", fixed.One(), fixed.One(), false, 1, later)
	reg.Refresh(later)

	u, _ := reg.Get("TOKA")
	if u.Status() != collateral.StatusDisabled {
		t.Errorf("status = %v, want DISABLED (terminal within era)", u.Status())
	}
}

func TestRefresh_Idempotent(t *testing.T) {
	reg := newTestRegistry(t)

	now := t0.Add(2 * time.Hour)
	reg.Refresh(now)
	u, _ := reg.Get("TOKA")
	first := u.IffySince()

	reg.Refresh(now)
	if !u.IffySince().Equal(first) {
		t.Error("repeated refresh within the same timestep must not move iffySince")
	}
	if u.Status() != collateral.StatusIffy {
		t.Errorf("status = %v, want IFFY", u.Status())
	}
}

// ============================================================================
// Test: era handling
// ============================================================================

func TestNewEra_ReArmsDisabledUnit(t *testing.T) {
	reg := newTestRegistry(t)

	reg.Refresh(t0.Add(2 * time.Hour))
	reg.Refresh(t0.Add(30 * time.Hour))

	u, _ := reg.Get("TOKA")
	if u.Status() != collateral.StatusDisabled {
		t.Fatalf("setup: status = %v, want DISABLED", u.Status())
	}

	reg.NewEra()
	if u.Status() != collateral.StatusSound {
		t.Errorf("status after new era = %v, want SOUND", u.Status())
	}
	if reg.Era() != 1 {
		t.Errorf("era = %d, want 1", reg.Era())
	}
}

// ============================================================================
// Test: registration and observations
// ============================================================================

func TestRegister_Duplicate(t *testing.T) {
	reg := newTestRegistry(t)

	err := reg.Register("TOKA", "USD", fixed.One(), fixed.One(), fixed.New(1), time.Hour, t0)
	if err == nil {
		t.Error("duplicate registration should be rejected")
	}
}

func TestRecordPrice_OutOfOrderDropped(t *testing.T) {
	reg := newTestRegistry(t)

	reg.RecordPrice("TOKA", fixed.New(2), fixed.One(), false, 5, t0.Add(time.Minute))
	reg.RecordPrice("TOKA", fixed.New(3), fixed.One(), false, 4, t0.Add(2*time.Minute))

	u, _ := reg.Get("TOKA")
	if !u.TargetPerRef().Equal(fixed.New(2)) {
		t.Errorf("targetPerRef = %s, want 2 (seq 4 must be dropped)", u.TargetPerRef())
	}
}

func TestPrice_FloorRounded(t *testing.T) {
	reg := newTestRegistry(t)

	now := t0.Add(time.Minute)
	reg.RecordPrice("TOKA", fixed.MustFromString("1.5"), fixed.MustFromString("1.1"), false, 1, now)

	u, _ := reg.Get("TOKA")
	if !u.Price().Equal(fixed.MustFromString("1.65")) {
		t.Errorf("price = %s, want 1.65", u.Price())
	}
}

func TestOrdered_RegistrationOrder(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.Register("TOKB", "USD", fixed.One(), fixed.One(), fixed.New(1), time.Hour, t0); err != nil {
		t.Fatalf("register TOKB: %v", err)
	}

	ordered := reg.Ordered()
	if len(ordered) != 2 || ordered[0].Name != "TOKA" || ordered[1].Name != "TOKB" {
		t.Errorf("registration order broken: %v", []string{ordered[0].Name, ordered[1].Name})
	}
	if ordered[1].Order != 1 {
		t.Errorf("TOKB order index = %d, want 1", ordered[1].Order)
	}
}
