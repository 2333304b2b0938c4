package ledger

import (
	"fmt"
)

// AccountScope represents the top-level account namespace
type AccountScope uint8

const (
	AccountScopeSystem AccountScope = iota
	AccountScopeHolder
	AccountScopeExternal
)

// System accounts: the protocol's own trading and pool accounts. Each of
// these is a "trading contract" in the one-open-trade sense, or a value pool.
const (
	AccountBacking        = "backing"
	AccountInsuranceTrade = "insr_trader" // Revenue trader buying the insurance token
	AccountProtocolTrade  = "svt_trader"  // Revenue trader buying the protocol token
	AccountStakingPool    = "staking_pool"
	AccountStakingRewards = "staking_rewards" // Pending reward buffer, released by payout
	AccountFurnace        = "furnace"
)

// External boundary accounts. These absorb the other side of every transfer
// that crosses the protocol edge, keeping the ledger zero-sum per asset.
const (
	AccountIssuance = "issuance" // Token-ledger collaborator (mint/redeem side)
	AccountVenue    = "venue"    // Auction venue escrow
	AccountRewards  = "rewards"  // Reward-claim collaborator
	AccountStakers  = "stakers"  // Stakers' wallets
	AccountBurned   = "burned"   // Melted supply sink
)

// Token symbols fixed by the deployment.
const (
	AssetProtocol  = "SVT"  // The stable-value token
	AssetInsurance = "INSR" // The staked insurance token
)

// AccountKey identifies one balance bucket: an account holding one asset.
type AccountKey struct {
	Scope AccountScope
	Name  string // System/external account name, or holder ID
	Asset string
}

// SystemAccount creates a key for a protocol-owned account.
func SystemAccount(name, asset string) AccountKey {
	return AccountKey{Scope: AccountScopeSystem, Name: name, Asset: asset}
}

// HolderAccount creates a key for a staker's in-protocol bucket (matured
// unstake value awaiting withdrawal).
func HolderAccount(holder, asset string) AccountKey {
	return AccountKey{Scope: AccountScopeHolder, Name: holder, Asset: asset}
}

// ExternalAccount creates a key for a boundary account.
func ExternalAccount(name, asset string) AccountKey {
	return AccountKey{Scope: AccountScopeExternal, Name: name, Asset: asset}
}

// AccountPath returns the string representation for storage/logging
func (k AccountKey) AccountPath() string {
	switch k.Scope {
	case AccountScopeSystem:
		return fmt.Sprintf("system:%s:%s", k.Name, k.Asset)
	case AccountScopeHolder:
		return fmt.Sprintf("holder:%s:%s", k.Name, k.Asset)
	case AccountScopeExternal:
		return fmt.Sprintf("external:%s:%s", k.Name, k.Asset)
	}
	return "unknown"
}
