package trade_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"StableCore/internal/fixed"
	"StableCore/internal/trade"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newBatch(account string) *trade.Trade {
	sell := fixed.New(100)
	wcp, _ := trade.WorstCasePrice(sell, fixed.New(100), fixed.MustFromString("0.01"))
	return &trade.Trade{
		ID:             uuid.New(),
		Account:        account,
		Sell:           "TOKA",
		Buy:            "TOKB",
		SellAmount:     sell,
		MinBuyAmount:   fixed.MulFloor(sell, wcp),
		Kind:           trade.KindBatch,
		EndTime:        t0.Add(15 * time.Minute),
		WorstCasePrice: wcp,
	}
}

// ============================================================================
// Test: slot invariant
// ============================================================================

func TestOpen_SecondTradeRejected(t *testing.T) {
	m := trade.NewManager()

	if err := m.Open(newBatch("backing"), t0); err != nil {
		t.Fatalf("first open: %v", err)
	}
	err := m.Open(newBatch("backing"), t0)
	if !errors.Is(err, trade.ErrSlotOccupied) {
		t.Fatalf("got %v, want ErrSlotOccupied", err)
	}
}

func TestOpen_IndependentAccounts(t *testing.T) {
	m := trade.NewManager()

	if err := m.Open(newBatch("backing"), t0); err != nil {
		t.Fatalf("open backing: %v", err)
	}
	if err := m.Open(newBatch("insr_trader"), t0); err != nil {
		t.Fatalf("open insr_trader: %v", err)
	}
	if len(m.OpenTrades()) != 2 {
		t.Errorf("open trades = %d, want 2", len(m.OpenTrades()))
	}
}

func TestOpen_RejectsZeroSell(t *testing.T) {
	m := trade.NewManager()
	tr := newBatch("backing")
	tr.SellAmount = fixed.Zero()

	if err := m.Open(tr, t0); err == nil {
		t.Fatal("zero sell amount must be rejected")
	}
}

func TestSettle_FreesSlot(t *testing.T) {
	m := trade.NewManager()
	tr := newBatch("backing")
	if err := m.Open(tr, t0); err != nil {
		t.Fatalf("open: %v", err)
	}

	if _, err := m.Settle("backing", tr.ID, true, tr.MinBuyAmount, fixed.Zero()); err != nil {
		t.Fatalf("settle: %v", err)
	}
	if m.HasOpen("backing") {
		t.Error("slot must be free after settlement")
	}
	if err := m.Open(newBatch("backing"), t0); err != nil {
		t.Errorf("reopen after settlement: %v", err)
	}
}

func TestSettle_WrongIDRejected(t *testing.T) {
	m := trade.NewManager()
	tr := newBatch("backing")
	if err := m.Open(tr, t0); err != nil {
		t.Fatalf("open: %v", err)
	}

	_, err := m.Settle("backing", uuid.New(), true, fixed.New(99), fixed.Zero())
	if !errors.Is(err, trade.ErrTradeMismatch) {
		t.Fatalf("got %v, want ErrTradeMismatch", err)
	}
	if !m.HasOpen("backing") {
		t.Error("rejected settlement must leave the trade open")
	}
}

func TestSettle_NoOpenTrade(t *testing.T) {
	m := trade.NewManager()

	_, err := m.Settle("backing", uuid.New(), true, fixed.New(1), fixed.Zero())
	if !errors.Is(err, trade.ErrNoOpenTrade) {
		t.Fatalf("got %v, want ErrNoOpenTrade", err)
	}
}

// ============================================================================
// Test: batch settlement pricing
// ============================================================================

func TestSettle_BatchBelowWorstCaseFails(t *testing.T) {
	m := trade.NewManager()
	tr := newBatch("backing")
	if err := m.Open(tr, t0); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Clearing proceeds one quantum under the floor.
	low := tr.MinBuyAmount.Sub(fixed.NewWithPrec(1, 18))
	s, err := m.Settle("backing", tr.ID, true, low, fixed.Zero())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if s.Succeeded {
		t.Error("clearing below worst case must fail the trade")
	}
	if !s.SellReturned.Equal(tr.SellAmount) {
		t.Errorf("failed trade returns %s, want full escrow %s", s.SellReturned, tr.SellAmount)
	}
	if !s.BuyAmount.IsZero() {
		t.Errorf("failed trade counts proceeds %s, want 0", s.BuyAmount)
	}
}

func TestSettle_BatchAtWorstCaseSucceeds(t *testing.T) {
	m := trade.NewManager()
	tr := newBatch("backing")
	if err := m.Open(tr, t0); err != nil {
		t.Fatalf("open: %v", err)
	}

	s, err := m.Settle("backing", tr.ID, true, tr.MinBuyAmount, fixed.Zero())
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if !s.Succeeded {
		t.Error("clearing at worst case must succeed")
	}
	if !s.BuyAmount.Equal(tr.MinBuyAmount) {
		t.Errorf("proceeds = %s, want %s", s.BuyAmount, tr.MinBuyAmount)
	}
}

func TestSettle_UnfilledReturnsEscrow(t *testing.T) {
	m := trade.NewManager()
	tr := newBatch("backing")
	if err := m.Open(tr, t0); err != nil {
		t.Fatalf("open: %v", err)
	}

	s, err := m.Settle("backing", tr.ID, false, fixed.Zero(), tr.SellAmount)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if s.Succeeded {
		t.Error("unfilled trade must not succeed")
	}
	if !s.SellReturned.Equal(tr.SellAmount) {
		t.Errorf("returned %s, want full escrow %s", s.SellReturned, tr.SellAmount)
	}
	if !s.BuyAmount.IsZero() {
		t.Errorf("unfilled trade counts proceeds %s, want 0", s.BuyAmount)
	}
}

func TestSettle_OverReturnRejected(t *testing.T) {
	m := trade.NewManager()
	tr := newBatch("backing")
	if err := m.Open(tr, t0); err != nil {
		t.Fatalf("open: %v", err)
	}

	_, err := m.Settle("backing", tr.ID, true, fixed.New(1), tr.SellAmount.Add(fixed.One()))
	if err == nil {
		t.Fatal("returning more than escrowed must be rejected")
	}
}

// ============================================================================
// Test: pricing helpers
// ============================================================================

func TestWorstCasePrice(t *testing.T) {
	// 100 sell, 1% slippage, expecting 50 buy: (100*0.99)/50 = 1.98.
	wcp, err := trade.WorstCasePrice(fixed.New(100), fixed.New(50), fixed.MustFromString("0.01"))
	if err != nil {
		t.Fatalf("worst case price: %v", err)
	}
	if !wcp.Equal(fixed.MustFromString("1.98")) {
		t.Errorf("worstCasePrice = %s, want 1.98", wcp)
	}
}

func TestWorstCasePrice_ZeroExpectedBuy(t *testing.T) {
	_, err := trade.WorstCasePrice(fixed.New(100), fixed.Zero(), fixed.MustFromString("0.01"))
	if !errors.Is(err, fixed.ErrDivisionByZero) {
		t.Fatalf("got %v, want ErrDivisionByZero", err)
	}
}

func TestDutchPriceAt(t *testing.T) {
	tr := &trade.Trade{
		Kind:       trade.KindDutch,
		OpenedAt:   t0,
		EndTime:    t0.Add(30 * time.Minute),
		StartPrice: fixed.New(2),
		EndPrice:   fixed.One(),
	}

	if !tr.PriceAt(t0).Equal(fixed.New(2)) {
		t.Errorf("price at open = %s, want 2", tr.PriceAt(t0))
	}
	mid := tr.PriceAt(t0.Add(15 * time.Minute))
	if !mid.Equal(fixed.MustFromString("1.5")) {
		t.Errorf("price at midpoint = %s, want 1.5", mid)
	}
	if !tr.PriceAt(t0.Add(time.Hour)).Equal(fixed.One()) {
		t.Errorf("price after end = %s, want floor 1", tr.PriceAt(t0.Add(time.Hour)))
	}
}

func TestSizeSale_CapsAtMaxVolume(t *testing.T) {
	// Surplus 1000 tokens at price 2: max volume 500 ref caps at 250 tokens.
	sized, err := trade.SizeSale(fixed.New(1000), fixed.New(500), fixed.New(2))
	if err != nil {
		t.Fatalf("size sale: %v", err)
	}
	if !sized.Equal(fixed.New(250)) {
		t.Errorf("sized = %s, want 250", sized)
	}

	// Surplus under the cap passes through.
	sized, err = trade.SizeSale(fixed.New(100), fixed.New(500), fixed.New(2))
	if err != nil {
		t.Fatalf("size sale: %v", err)
	}
	if !sized.Equal(fixed.New(100)) {
		t.Errorf("sized = %s, want 100", sized)
	}
}

func TestBelowDust(t *testing.T) {
	dust := fixed.MustFromString("0.000001")
	if !trade.BelowDust(fixed.NewWithPrec(1, 18), fixed.One(), dust) {
		t.Error("one quantum at price 1 is dust")
	}
	if trade.BelowDust(fixed.One(), fixed.One(), dust) {
		t.Error("a whole token at price 1 is not dust")
	}
}
