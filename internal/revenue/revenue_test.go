package revenue_test

import (
	"testing"
	"time"

	"StableCore/internal/collateral"
	"StableCore/internal/fixed"
	"StableCore/internal/ledger"
	"StableCore/internal/params"
	"StableCore/internal/revenue"
	"StableCore/internal/trade"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newTrader(t *testing.T) (*revenue.Trader, *ledger.Book, *trade.Manager) {
	t.Helper()
	prm := params.Defaults()
	reg := collateral.NewRegistry(prm.OracleTimeout, prm.DefaultTolerance)
	for _, spec := range []struct {
		name  string
		price string
	}{
		{"TOKA", "1"},
		{"TOKB", "1"},
		{ledger.AssetInsurance, "0.5"},
	} {
		if err := reg.Register(spec.name, "USD", fixed.MustFromString(spec.price), fixed.One(), fixed.New(1_000_000), 24*time.Hour, t0); err != nil {
			t.Fatalf("register %s: %v", spec.name, err)
		}
	}

	book := ledger.NewBook()
	trades := trade.NewManager()
	tr := revenue.NewTrader(ledger.AccountInsuranceTrade, ledger.AssetInsurance, reg, book, trades, prm)
	return tr, book, trades
}

func seed(t *testing.T, book *ledger.Book, account, asset string, amount fixed.Dec) {
	t.Helper()
	batch := ledger.NewBatch(ledger.Stamp{EventRef: "seed:" + asset, Timestamp: t0.UnixMicro()})
	batch.Add(ledger.JournalTypeRevenueForward,
		ledger.SystemAccount(account, asset),
		ledger.ExternalAccount(ledger.AccountRewards, asset),
		asset, amount)
	if err := book.ApplyBatch(batch); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func stamp(now time.Time) ledger.Stamp {
	return ledger.Stamp{EventRef: "manage:1", Sequence: 1, Timestamp: now.UnixMicro()}
}

// ============================================================================
// Test: trader
// ============================================================================

func TestManageTokens_OpensDutchIntoDestination(t *testing.T) {
	tr, book, trades := newTrader(t)
	seed(t, book, tr.Account(), "TOKA", fixed.New(100))

	res, err := tr.ManageTokens(t0, stamp(t0))
	if err != nil {
		t.Fatalf("manage: %v", err)
	}
	if res.Opened == nil {
		t.Fatal("non-dust balance must open a trade")
	}
	if res.Opened.Kind != trade.KindDutch {
		t.Errorf("kind = %v, want DUTCH", res.Opened.Kind)
	}
	if res.Opened.Sell != "TOKA" || res.Opened.Buy != ledger.AssetInsurance {
		t.Errorf("trade %s->%s, want TOKA->INSR", res.Opened.Sell, res.Opened.Buy)
	}
	// Fair price 1/0.5 = 2 INSR per TOKA; curve brackets it.
	if !res.Opened.StartPrice.Equal(fixed.New(3)) {
		t.Errorf("start price = %s, want 3", res.Opened.StartPrice)
	}
	if !res.Opened.EndPrice.Equal(fixed.MustFromString("1.98")) {
		t.Errorf("end price = %s, want 1.98", res.Opened.EndPrice)
	}
	if !trades.HasOpen(tr.Account()) {
		t.Error("slot must be occupied after open")
	}
}

func TestManageTokens_PicksLargestValue(t *testing.T) {
	tr, book, _ := newTrader(t)
	seed(t, book, tr.Account(), "TOKA", fixed.New(10))
	seed(t, book, tr.Account(), "TOKB", fixed.New(100))

	res, err := tr.ManageTokens(t0, stamp(t0))
	if err != nil {
		t.Fatalf("manage: %v", err)
	}
	if res.Opened == nil || res.Opened.Sell != "TOKB" {
		t.Fatal("trader must sell the most valuable holding first")
	}
}

func TestManageTokens_SkipsDustAndDestination(t *testing.T) {
	tr, book, _ := newTrader(t)
	seed(t, book, tr.Account(), "TOKA", fixed.NewWithPrec(1, 9)) // below dust
	seed(t, book, tr.Account(), ledger.AssetInsurance, fixed.New(50))

	res, err := tr.ManageTokens(t0, stamp(t0))
	if err != nil {
		t.Fatalf("manage: %v", err)
	}
	if res.Opened != nil {
		t.Error("dust and destination balances must not open trades")
	}
}

func TestManageTokens_DefersWhileSlotOccupied(t *testing.T) {
	tr, book, _ := newTrader(t)
	seed(t, book, tr.Account(), "TOKA", fixed.New(100))
	seed(t, book, tr.Account(), "TOKB", fixed.New(100))

	res, err := tr.ManageTokens(t0, stamp(t0))
	if err != nil || res.Opened == nil {
		t.Fatalf("first manage: %v", err)
	}
	res, err = tr.ManageTokens(t0.Add(time.Minute), stamp(t0))
	if err != nil {
		t.Fatalf("second manage: %v", err)
	}
	if res.Opened != nil {
		t.Error("occupied slot must defer the second sale")
	}
}

// ============================================================================
// Test: distributor
// ============================================================================

func TestSplit_BySharesWithFloorRemainder(t *testing.T) {
	prm := params.Defaults() // 0.6 / 0.4
	d := revenue.NewDistributor(prm)

	stakers, furnace := d.Split(fixed.New(10))
	if !stakers.Equal(fixed.New(6)) || !furnace.Equal(fixed.New(4)) {
		t.Errorf("split = %s/%s, want 6/4", stakers, furnace)
	}
	if !stakers.Add(furnace).Equal(fixed.New(10)) {
		t.Error("split must conserve the amount")
	}
}

func TestSplit_ZeroShareSkipped(t *testing.T) {
	prm := params.Defaults()
	if err := prm.SetRevenueShares(fixed.One(), fixed.Zero()); err != nil {
		t.Fatalf("set shares: %v", err)
	}
	d := revenue.NewDistributor(prm)

	stakers, furnace := d.Split(fixed.New(10))
	if !stakers.Equal(fixed.New(10)) || !furnace.IsZero() {
		t.Errorf("split = %s/%s, want 10/0", stakers, furnace)
	}
}

func TestSetRevenueShares_MustSumToOne(t *testing.T) {
	prm := params.Defaults()
	if err := prm.SetRevenueShares(fixed.MustFromString("0.5"), fixed.MustFromString("0.4")); err == nil {
		t.Fatal("shares not summing to 1 must be rejected")
	}
}

func TestDistribute_ProceedsToBeneficiary(t *testing.T) {
	prm := params.Defaults()
	d := revenue.NewDistributor(prm)
	book := ledger.NewBook()
	seed(t, book, ledger.AccountInsuranceTrade, ledger.AssetInsurance, fixed.New(40))

	batch := ledger.NewBatch(stamp(t0))
	d.Distribute(batch, ledger.AccountInsuranceTrade, ledger.AssetInsurance, fixed.New(40))
	if err := book.ApplyBatch(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := book.SystemBalance(ledger.AccountStakingRewards, ledger.AssetInsurance); !got.Equal(fixed.New(40)) {
		t.Errorf("staking reward buffer = %s, want 40", got)
	}
	if !book.SystemBalance(ledger.AccountInsuranceTrade, ledger.AssetInsurance).IsZero() {
		t.Error("trader balance must be emptied")
	}
}

func TestDistribute_WrongAssetStaysWithTrader(t *testing.T) {
	prm := params.Defaults()
	d := revenue.NewDistributor(prm)

	batch := ledger.NewBatch(stamp(t0))
	d.Distribute(batch, ledger.AccountInsuranceTrade, "TOKA", fixed.New(5))
	if len(batch.Journals) != 0 {
		t.Error("non-destination proceeds must stay with the trader")
	}
}
