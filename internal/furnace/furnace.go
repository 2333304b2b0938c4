package furnace

import (
	"time"

	"StableCore/internal/fixed"
	"StableCore/internal/params"
)

// Furnace destroys the protocol token it holds at a compounding per-period
// ratio. The balance itself lives in the ledger; the furnace only owns the
// payout clock and the melt arithmetic.
type Furnace struct {
	lastPayout time.Time
	prm        *params.Protocol
}

func New(prm *params.Protocol, genesis time.Time) *Furnace {
	return &Furnace{lastPayout: genesis, prm: prm}
}

// Melt returns the amount to destroy from the held balance for the whole
// periods elapsed since the last payout: balance * (1-(1-ratio)^periods).
// Advances the clock by whole periods only; a sub-period call is a no-op.
func (f *Furnace) Melt(now time.Time, balance fixed.Dec) fixed.Dec {
	if !now.After(f.lastPayout) || f.prm.MeltPeriod <= 0 {
		return fixed.Zero()
	}
	periods := uint64(now.Sub(f.lastPayout) / f.prm.MeltPeriod)
	if periods == 0 {
		return fixed.Zero()
	}
	f.lastPayout = f.lastPayout.Add(time.Duration(periods) * f.prm.MeltPeriod)

	if !balance.IsPositive() {
		return fixed.Zero()
	}
	return fixed.MulFloor(balance, fixed.Compound(f.prm.MeltRatio, periods))
}

// LastPayout returns the melt clock position.
func (f *Furnace) LastPayout() time.Time { return f.lastPayout }

// Restore replaces the clock from a snapshot.
func (f *Furnace) Restore(lastPayout time.Time) { f.lastPayout = lastPayout }
