package furnace_test

import (
	"testing"
	"time"

	"StableCore/internal/fixed"
	"StableCore/internal/furnace"
	"StableCore/internal/params"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newFurnace(t *testing.T) *furnace.Furnace {
	t.Helper()
	prm := params.Defaults()
	prm.MeltRatio = fixed.MustFromString("0.01")
	prm.MeltPeriod = 12 * time.Hour
	return furnace.New(prm, t0)
}

func TestMelt_OnePeriod(t *testing.T) {
	f := newFurnace(t)

	melted := f.Melt(t0.Add(12*time.Hour), fixed.New(1000))
	if !melted.Equal(fixed.New(10)) {
		t.Errorf("melted = %s, want 10", melted)
	}
}

func TestMelt_TwoPeriodsCompound(t *testing.T) {
	f := newFurnace(t)

	// 1000 * (1 - 0.99^2) = 19.9 exactly.
	melted := f.Melt(t0.Add(24*time.Hour), fixed.New(1000))
	if !melted.Equal(fixed.MustFromString("19.9")) {
		t.Errorf("melted = %s, want 19.9", melted)
	}
	if !f.LastPayout().Equal(t0.Add(24 * time.Hour)) {
		t.Errorf("clock = %s, want advanced two periods", f.LastPayout())
	}
}

func TestMelt_SubPeriodNoOp(t *testing.T) {
	f := newFurnace(t)

	if melted := f.Melt(t0.Add(time.Hour), fixed.New(1000)); !melted.IsZero() {
		t.Errorf("sub-period melt = %s, want 0", melted)
	}
	if !f.LastPayout().Equal(t0) {
		t.Error("sub-period melt must not advance the clock")
	}
}

func TestMelt_WholePeriodsOnly(t *testing.T) {
	f := newFurnace(t)

	// 1.5 periods: one period melts, the clock lands on the period edge.
	melted := f.Melt(t0.Add(18*time.Hour), fixed.New(1000))
	if !melted.Equal(fixed.New(10)) {
		t.Errorf("melted = %s, want 10", melted)
	}
	if !f.LastPayout().Equal(t0.Add(12 * time.Hour)) {
		t.Errorf("clock = %s, want one whole period", f.LastPayout())
	}
}

func TestMelt_BoundedByBalance(t *testing.T) {
	f := newFurnace(t)

	melted := f.Melt(t0.Add(1000*24*time.Hour), fixed.New(1000))
	if melted.GT(fixed.New(1000)) {
		t.Errorf("melted %s exceeds the held balance", melted)
	}
	if melted.IsNegative() {
		t.Errorf("melted %s is negative", melted)
	}
}
