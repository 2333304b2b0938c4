package trade

import (
	"time"

	"github.com/google/uuid"

	"StableCore/internal/fixed"
)

// Kind selects the auction mechanism.
type Kind int32

const (
	KindBatch Kind = iota // sealed-bid, settles at a single clearing price
	KindDutch             // falling-price, fills at the quoted price
)

func (k Kind) String() string {
	switch k {
	case KindBatch:
		return "BATCH"
	case KindDutch:
		return "DUTCH"
	default:
		return "UNKNOWN"
	}
}

// State is the per-slot trade lifecycle. A slot cycles
// NotStarted -> Open -> Closed -> NotStarted.
type State int32

const (
	StateNotStarted State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "NOT_STARTED"
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Trade is one auction handed to the external venue. SellAmount is escrowed
// for the trade's whole lifetime; it comes back either as buy proceeds or as
// the returned remainder on failure/expiry.
type Trade struct {
	ID             uuid.UUID
	Account        string // trading account owning the slot
	Sell           string
	Buy            string
	SellAmount     fixed.Dec
	MinBuyAmount   fixed.Dec
	Kind           Kind
	State          State
	OpenedAt       time.Time
	EndTime        time.Time
	WorstCasePrice fixed.Dec // buy per sell, batch settlement floor

	// Dutch curve endpoints. Zero for batch trades.
	StartPrice fixed.Dec
	EndPrice   fixed.Dec
}

// WorstCasePrice is the minimum acceptable buy-per-sell price for a batch
// trade: sellAmount scaled down by the slippage budget, divided by the
// expected proceeds. Floor rounded so settlement never accepts a clearing
// price the slippage budget does not cover.
func WorstCasePrice(sellAmount, expectedBuy, maxTradeSlippage fixed.Dec) (fixed.Dec, error) {
	discounted := fixed.MulFloor(sellAmount, fixed.One().Sub(maxTradeSlippage))
	return fixed.SafeDiv(discounted, expectedBuy, fixed.RoundFloor)
}

// PriceAt returns the dutch quote at t: linear descent from StartPrice at
// OpenedAt to EndPrice at EndTime, clamped at both ends.
func (t *Trade) PriceAt(at time.Time) fixed.Dec {
	if t.Kind != KindDutch {
		return t.WorstCasePrice
	}
	if !at.After(t.OpenedAt) {
		return t.StartPrice
	}
	if !at.Before(t.EndTime) {
		return t.EndPrice
	}
	total := t.EndTime.Sub(t.OpenedAt)
	elapsed := at.Sub(t.OpenedAt)
	frac := fixed.DivFloor(fixed.New(int64(elapsed)), fixed.New(int64(total)))
	drop := fixed.MulFloor(t.StartPrice.Sub(t.EndPrice), frac)
	return t.StartPrice.Sub(drop)
}

// Expired reports whether the trade's auction window has ended.
func (t *Trade) Expired(now time.Time) bool {
	return !now.Before(t.EndTime)
}

// SizeSale caps a sale at maxTradeVolume expressed in reference value, then
// converts back to sell-token terms at the current price. Floor rounded: the
// protocol never offers more than the cap.
func SizeSale(surplus, maxTradeVolume, sellPrice fixed.Dec) (fixed.Dec, error) {
	if sellPrice.IsZero() {
		return fixed.Zero(), fixed.ErrDivisionByZero
	}
	capTokens := fixed.DivFloor(maxTradeVolume, sellPrice)
	return fixed.Min(surplus, capTokens), nil
}

// BelowDust reports whether a sale is too small to bother the venue with.
// Compared in reference value so the threshold is asset-independent.
func BelowDust(sellAmount, sellPrice, dustAmount fixed.Dec) bool {
	return fixed.MulFloor(sellAmount, sellPrice).LT(dustAmount)
}
