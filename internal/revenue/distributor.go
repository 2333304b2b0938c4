package revenue

import (
	"StableCore/internal/fixed"
	"StableCore/internal/ledger"
	"StableCore/internal/params"
)

// Distributor routes settled trader proceeds to their beneficiary pool and
// owns the revenue-share split used upstream when value enters the pipeline.
type Distributor struct {
	prm *params.Protocol
}

func NewDistributor(prm *params.Protocol) *Distributor {
	return &Distributor{prm: prm}
}

// Split divides an incoming revenue amount between the staking stream and
// the furnace stream by the governed shares. The floor remainder lands on
// the furnace side; a zero-share destination receives nothing.
func (d *Distributor) Split(amount fixed.Dec) (stakers, furnace fixed.Dec) {
	if !amount.IsPositive() {
		return fixed.Zero(), fixed.Zero()
	}
	if d.prm.FurnaceShare().IsZero() {
		return amount, fixed.Zero()
	}
	if d.prm.StakersShare().IsZero() {
		return fixed.Zero(), amount
	}
	stakers = fixed.MulFloor(amount, d.prm.StakersShare())
	furnace = amount.Sub(stakers)
	return stakers, furnace
}

// Distribute appends the journal moving settled proceeds from a trader
// account to its beneficiary pool: INSR proceeds feed the staking reward
// buffer, SVT proceeds feed the furnace. Anything else stays with the
// trader for the next manage pass.
func (d *Distributor) Distribute(batch *ledger.Batch, traderAccount, asset string, amount fixed.Dec) {
	if !amount.IsPositive() {
		return
	}
	from := ledger.SystemAccount(traderAccount, asset)
	switch {
	case traderAccount == ledger.AccountInsuranceTrade && asset == ledger.AssetInsurance:
		batch.Add(ledger.JournalTypeDistribution,
			ledger.SystemAccount(ledger.AccountStakingRewards, asset), from, asset, amount)
	case traderAccount == ledger.AccountProtocolTrade && asset == ledger.AssetProtocol:
		batch.Add(ledger.JournalTypeDistribution,
			ledger.SystemAccount(ledger.AccountFurnace, asset), from, asset, amount)
	}
}
