package backing_test

import (
	"testing"
	"time"

	"StableCore/internal/backing"
	"StableCore/internal/basket"
	"StableCore/internal/collateral"
	"StableCore/internal/fixed"
	"StableCore/internal/ledger"
	"StableCore/internal/params"
	"StableCore/internal/trade"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	reg    *collateral.Registry
	basket *basket.Handler
	book   *ledger.Book
	trades *trade.Manager
	prm    *params.Protocol
	mgr    *backing.Manager
}

func newFixture(t *testing.T, prime []basket.PrimeEntry) *fixture {
	t.Helper()
	prm := params.Defaults()
	prm.TradingDelay = 0

	reg := collateral.NewRegistry(prm.OracleTimeout, prm.DefaultTolerance)
	for _, name := range []string{"TOKA", "TOKB", "TOKC"} {
		if err := reg.Register(name, "USD", fixed.One(), fixed.One(), fixed.New(1_000_000), 24*time.Hour, t0); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	bh := basket.NewHandler(reg)
	if err := bh.SetBackup("USD", basket.BackupConfig{DiversityFactor: 1, Units: []string{"TOKC"}}); err != nil {
		t.Fatalf("set backup: %v", err)
	}
	if err := bh.SetPrime(prime, t0); err != nil {
		t.Fatalf("set prime: %v", err)
	}

	book := ledger.NewBook()
	trades := trade.NewManager()
	return &fixture{
		reg:    reg,
		basket: bh,
		book:   book,
		trades: trades,
		prm:    prm,
		mgr:    backing.NewManager(reg, bh, book, trades, prm),
	}
}

func (f *fixture) deposit(t *testing.T, asset string, amount fixed.Dec) {
	t.Helper()
	batch := ledger.NewBatch(ledger.Stamp{EventRef: "seed:" + asset, Timestamp: t0.UnixMicro()})
	batch.Add(ledger.JournalTypeCollateralDeposit,
		ledger.SystemAccount(ledger.AccountBacking, asset),
		ledger.ExternalAccount(ledger.AccountIssuance, asset),
		asset, amount)
	if err := f.book.ApplyBatch(batch); err != nil {
		t.Fatalf("seed deposit: %v", err)
	}
}

func (f *fixture) manage(t *testing.T, now time.Time, supply fixed.Dec) *backing.Result {
	t.Helper()
	res, err := f.mgr.Manage(now, supply, ledger.Stamp{EventRef: "manage:1", Sequence: 1, Timestamp: now.UnixMicro()})
	if err != nil {
		t.Fatalf("manage: %v", err)
	}
	if res.Batch != nil {
		if err := f.book.ApplyBatch(res.Batch); err != nil {
			t.Fatalf("apply batch: %v", err)
		}
	}
	return res
}

func halfHalf() []basket.PrimeEntry {
	return []basket.PrimeEntry{
		{Unit: "TOKA", TargetAmount: fixed.MustFromString("0.5")},
		{Unit: "TOKB", TargetAmount: fixed.MustFromString("0.5")},
	}
}

// ============================================================================
// Test: fully collateralized
// ============================================================================

func TestManage_FullyCollateralizedNoOp(t *testing.T) {
	f := newFixture(t, halfHalf())
	f.deposit(t, "TOKA", fixed.New(500))
	f.deposit(t, "TOKB", fixed.New(500))

	res := f.manage(t, t0.Add(time.Hour), fixed.New(1000))

	if res.Opened != nil {
		t.Error("fully collateralized holdings must open no trade")
	}
	if res.Batch != nil {
		t.Errorf("expected no journals, got %d", len(res.Batch.Journals))
	}
	if res.Halted {
		t.Error("sound basket must not halt")
	}
}

// ============================================================================
// Test: deficit trading
// ============================================================================

func TestManage_DeficitOpensOneTrade(t *testing.T) {
	f := newFixture(t, halfHalf())
	f.deposit(t, "TOKA", fixed.New(600))
	f.deposit(t, "TOKB", fixed.New(400))

	res := f.manage(t, t0.Add(time.Hour), fixed.New(1000))

	if res.Opened == nil {
		t.Fatal("deficit must open a trade")
	}
	if res.Opened.Sell != "TOKA" || res.Opened.Buy != "TOKB" {
		t.Errorf("trade %s->%s, want TOKA->TOKB", res.Opened.Sell, res.Opened.Buy)
	}
	if res.Opened.Kind != trade.KindBatch {
		t.Errorf("kind = %v, want BATCH", res.Opened.Kind)
	}
	if !f.trades.HasOpen(ledger.AccountBacking) {
		t.Error("backing slot must be occupied")
	}

	// Sell size capped by the surplus beyond the buffered requirement.
	want := fixed.New(600).Sub(fixed.MulCeil(fixed.New(500), fixed.MustFromString("1.001")))
	if !res.Opened.SellAmount.Equal(want) {
		t.Errorf("sell amount = %s, want %s", res.Opened.SellAmount, want)
	}

	// Escrow journal moved the sell amount to the venue.
	if !f.book.SystemBalance(ledger.AccountBacking, "TOKA").Equal(fixed.New(600).Sub(want)) {
		t.Error("escrow must debit the backing account")
	}
	venue := f.book.Balance(ledger.ExternalAccount(ledger.AccountVenue, "TOKA"))
	if !venue.Equal(want) {
		t.Errorf("venue escrow = %s, want %s", venue, want)
	}
}

func TestManage_SecondCallNoSecondTrade(t *testing.T) {
	f := newFixture(t, halfHalf())
	f.deposit(t, "TOKA", fixed.New(600))
	f.deposit(t, "TOKB", fixed.New(400))

	f.manage(t, t0.Add(time.Hour), fixed.New(1000))
	res := f.manage(t, t0.Add(2*time.Hour), fixed.New(1000))

	if res.Opened != nil {
		t.Error("occupied slot must defer, not open a second trade")
	}
}

func TestManage_TradingDelayDefers(t *testing.T) {
	f := newFixture(t, halfHalf())
	f.prm.TradingDelay = 2 * time.Hour
	f.deposit(t, "TOKA", fixed.New(600))
	f.deposit(t, "TOKB", fixed.New(400))

	res := f.manage(t, t0.Add(time.Hour), fixed.New(1000))
	if res.Opened != nil {
		t.Error("trade inside the trading delay must be deferred")
	}

	res = f.manage(t, t0.Add(3*time.Hour), fixed.New(1000))
	if res.Opened == nil {
		t.Error("trade after the trading delay must open")
	}
}

func TestManage_DeficitTieBreakByRegistrationOrder(t *testing.T) {
	f := newFixture(t, []basket.PrimeEntry{
		{Unit: "TOKA", TargetAmount: fixed.MustFromString("0.4")},
		{Unit: "TOKB", TargetAmount: fixed.MustFromString("0.3")},
		{Unit: "TOKC", TargetAmount: fixed.MustFromString("0.3")},
	})
	f.deposit(t, "TOKA", fixed.New(600))
	f.deposit(t, "TOKB", fixed.New(200))
	f.deposit(t, "TOKC", fixed.New(200))

	res := f.manage(t, t0.Add(time.Hour), fixed.New(1000))

	if res.Opened == nil {
		t.Fatal("deficit must open a trade")
	}
	// TOKB and TOKC are both 100 short; TOKB registered first.
	if res.Opened.Buy != "TOKB" {
		t.Errorf("buy = %s, want TOKB on equal deficits", res.Opened.Buy)
	}
}

func TestManage_NoSurplusNothingToSell(t *testing.T) {
	f := newFixture(t, halfHalf())
	f.deposit(t, "TOKA", fixed.New(400))
	f.deposit(t, "TOKB", fixed.New(400))

	res := f.manage(t, t0.Add(time.Hour), fixed.New(1000))

	if res.Opened != nil {
		t.Error("no surplus to sell: deficit trade must be deferred")
	}
}

// ============================================================================
// Test: halt
// ============================================================================

func TestManage_HaltsOnDisabledBasket(t *testing.T) {
	f := newFixture(t, halfHalf())
	f.deposit(t, "TOKA", fixed.New(600))
	f.deposit(t, "TOKB", fixed.New(400))

	// Default TOKB without re-switching the basket.
	f.reg.RecordPrice("TOKB", fixed.One(), fixed.One(), true, 100, t0.Add(time.Minute))
	f.reg.Refresh(t0.Add(time.Minute))
	f.reg.Refresh(t0.Add(26 * time.Hour))

	res := f.manage(t, t0.Add(26*time.Hour), fixed.New(1000))

	if !res.Halted {
		t.Error("disabled basket must halt the manager")
	}
	if res.Opened != nil || res.Batch != nil {
		t.Error("halted manager must move nothing")
	}
}

// ============================================================================
// Test: revenue forwarding
// ============================================================================

func TestManage_SurplusForwardedBySharesSplit(t *testing.T) {
	f := newFixture(t, halfHalf())
	f.deposit(t, "TOKA", fixed.New(600))
	f.deposit(t, "TOKB", fixed.New(502))

	res := f.manage(t, t0.Add(time.Hour), fixed.New(1000))

	if res.Opened != nil {
		t.Fatal("no deficit: no trade expected")
	}
	if res.Batch == nil {
		t.Fatal("surplus must be forwarded")
	}

	// TOKA excess beyond 500*1.001, split 60/40 between the traders.
	excess := fixed.New(600).Sub(fixed.MulCeil(fixed.New(500), fixed.MustFromString("1.001")))
	wantInsr := fixed.MulFloor(excess, fixed.MustFromString("0.6"))
	wantSvt := excess.Sub(wantInsr)

	if got := f.book.SystemBalance(ledger.AccountInsuranceTrade, "TOKA"); !got.Equal(wantInsr) {
		t.Errorf("insr trader TOKA = %s, want %s", got, wantInsr)
	}
	if got := f.book.SystemBalance(ledger.AccountProtocolTrade, "TOKA"); !got.Equal(wantSvt) {
		t.Errorf("svt trader TOKA = %s, want %s", got, wantSvt)
	}
}

func TestManage_ForwardsClaimedRewards(t *testing.T) {
	f := newFixture(t, halfHalf())
	f.deposit(t, "TOKA", fixed.New(500))
	f.deposit(t, "TOKB", fixed.New(500))
	f.deposit(t, "AAVE", fixed.New(10)) // unregistered reward token

	res := f.manage(t, t0.Add(time.Hour), fixed.New(1000))

	if res.Batch == nil {
		t.Fatal("claimed rewards must be forwarded")
	}
	if !f.book.SystemBalance(ledger.AccountBacking, "AAVE").IsZero() {
		t.Error("reward balance must leave the backing account entirely")
	}
	insr := f.book.SystemBalance(ledger.AccountInsuranceTrade, "AAVE")
	svt := f.book.SystemBalance(ledger.AccountProtocolTrade, "AAVE")
	if !insr.Add(svt).Equal(fixed.New(10)) {
		t.Errorf("forwarded %s+%s, want 10 total", insr, svt)
	}
	if !insr.Equal(fixed.New(6)) {
		t.Errorf("insr share = %s, want 6", insr)
	}
}
