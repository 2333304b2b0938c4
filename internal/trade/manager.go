package trade

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"StableCore/internal/fixed"
)

var (
	// ErrSlotOccupied rejects a second open trade on one trading account.
	ErrSlotOccupied = errors.New("trade slot occupied")
	// ErrNoOpenTrade rejects a settlement for an account with nothing open.
	ErrNoOpenTrade = errors.New("no open trade")
	// ErrTradeMismatch rejects a settlement naming the wrong trade ID.
	ErrTradeMismatch = errors.New("settlement trade id mismatch")
)

// Manager owns the one-open-trade-per-account slots. Trades only leave a
// slot through Settle; there is no cancellation path.
type Manager struct {
	open map[string]*Trade
}

func NewManager() *Manager {
	return &Manager{open: make(map[string]*Trade)}
}

// Open claims the account's slot for the trade. The caller escrows
// SellAmount separately; the manager only enforces the slot invariant and
// basic shape.
func (m *Manager) Open(t *Trade, now time.Time) error {
	if _, occupied := m.open[t.Account]; occupied {
		return fmt.Errorf("%w: account %s", ErrSlotOccupied, t.Account)
	}
	if t.State != StateNotStarted {
		return fmt.Errorf("trade %s in state %s, want NOT_STARTED", t.ID, t.State)
	}
	if !t.SellAmount.IsPositive() {
		return fmt.Errorf("trade %s sell amount must be positive, got %s", t.ID, t.SellAmount)
	}
	if t.Sell == t.Buy {
		return fmt.Errorf("trade %s sells and buys the same asset %s", t.ID, t.Sell)
	}
	if !t.EndTime.After(now) {
		return fmt.Errorf("trade %s end time %s not after open time %s", t.ID, t.EndTime, now)
	}
	t.State = StateOpen
	t.OpenedAt = now
	m.open[t.Account] = t
	return nil
}

// Get returns the open trade for an account, if any.
func (m *Manager) Get(account string) (*Trade, bool) {
	t, ok := m.open[account]
	return t, ok
}

// HasOpen reports whether the account's slot is occupied.
func (m *Manager) HasOpen(account string) bool {
	_, ok := m.open[account]
	return ok
}

// OpenTrades returns all open trades, keyed by account.
func (m *Manager) OpenTrades() map[string]*Trade {
	out := make(map[string]*Trade, len(m.open))
	for k, v := range m.open {
		out[k] = v
	}
	return out
}

// Settlement is the resolved outcome of a trade. On success BuyAmount is the
// accepted proceeds and SellReturned the unsold remainder; on failure the
// whole escrow is returned and no proceeds are counted.
type Settlement struct {
	Trade        *Trade
	Succeeded    bool
	BuyAmount    fixed.Dec
	SellReturned fixed.Dec
}

// Settle resolves the account's open trade from the venue report, frees the
// slot, and returns what the ledger should credit back. A batch fill whose
// proceeds miss the worst-case price is a failed trade, not an error: the
// escrow comes home and the slot frees normally.
func (m *Manager) Settle(account string, tradeID uuid.UUID, filled bool, buyAmount, sellReturned fixed.Dec) (*Settlement, error) {
	t, ok := m.open[account]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ErrNoOpenTrade, account)
	}
	if t.ID != tradeID {
		return nil, fmt.Errorf("%w: open %s, settled %s", ErrTradeMismatch, t.ID, tradeID)
	}
	if buyAmount.IsNegative() || sellReturned.IsNegative() {
		return nil, fmt.Errorf("trade %s: negative settlement amounts", t.ID)
	}
	if sellReturned.GT(t.SellAmount) {
		return nil, fmt.Errorf("trade %s: returned %s exceeds escrowed %s", t.ID, sellReturned, t.SellAmount)
	}

	// Both legs start at zero so a failed trade reports 0 proceeds, not a
	// nil decimal.
	s := &Settlement{Trade: t, BuyAmount: fixed.Zero(), SellReturned: fixed.Zero()}
	switch {
	case !filled:
		// Expired or unfilled: whatever the venue still holds comes back.
		s.SellReturned = t.SellAmount
	case t.Kind == KindBatch && buyAmount.LT(t.MinBuyAmount):
		// Clearing price below the worst case: failed, full escrow returned.
		s.SellReturned = t.SellAmount
	default:
		s.Succeeded = true
		s.BuyAmount = buyAmount
		s.SellReturned = sellReturned
	}

	t.State = StateClosed
	delete(m.open, account)
	return s, nil
}

// Restore re-seats open trades from a snapshot.
func (m *Manager) Restore(open []*Trade) {
	m.open = make(map[string]*Trade, len(open))
	for _, t := range open {
		m.open[t.Account] = t
	}
}
