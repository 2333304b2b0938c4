package params

import (
	"fmt"
	"time"

	"StableCore/internal/fixed"
)

// Protocol holds the governance-set protocol parameters. Trading and payout
// parameters are fixed at construction; revenue shares are mutable through
// SetRevenueShares only.
type Protocol struct {
	// Trading.
	TradingDelay       time.Duration // cooldown after a basket switch before trading resumes
	BatchAuctionLength time.Duration
	DutchAuctionLength time.Duration
	BackingBuffer      fixed.Dec // over-collateralization slack kept untraded
	MaxTradeSlippage   fixed.Dec
	DustAmount         fixed.Dec // minimum trade size in reference value

	// Collateral monitoring.
	OracleTimeout    time.Duration
	DefaultTolerance fixed.Dec // refPerTok decay band below the high-water mark

	// Payouts.
	RewardRatio    fixed.Dec // staking reward release fraction per period
	RewardPeriod   time.Duration
	MeltRatio      fixed.Dec // furnace burn fraction per period
	MeltPeriod     time.Duration
	UnstakingDelay time.Duration

	// Revenue split, mutable by governance.
	stakersShare fixed.Dec
	furnaceShare fixed.Dec
}

// Defaults mirrors a conservative mainnet-style configuration.
func Defaults() *Protocol {
	return &Protocol{
		TradingDelay:       2 * time.Hour,
		BatchAuctionLength: 15 * time.Minute,
		DutchAuctionLength: 30 * time.Minute,
		BackingBuffer:      fixed.MustFromString("0.001"),  // 0.1%
		MaxTradeSlippage:   fixed.MustFromString("0.01"),   // 1%
		DustAmount:         fixed.MustFromString("0.000001"),
		OracleTimeout:      time.Hour,
		DefaultTolerance:   fixed.MustFromString("0.001"),
		RewardRatio:        fixed.MustFromString("0.0001"),
		RewardPeriod:       12 * time.Hour,
		MeltRatio:          fixed.MustFromString("0.0001"),
		MeltPeriod:         12 * time.Hour,
		UnstakingDelay:     14 * 24 * time.Hour,
		stakersShare:       fixed.MustFromString("0.6"),
		furnaceShare:       fixed.MustFromString("0.4"),
	}
}

// StakersShare is the fraction of revenue routed to the staking pool.
func (p *Protocol) StakersShare() fixed.Dec { return p.stakersShare }

// FurnaceShare is the fraction of revenue routed to the furnace.
func (p *Protocol) FurnaceShare() fixed.Dec { return p.furnaceShare }

// SetRevenueShares replaces the revenue split. Shares must be non-negative,
// sum to exactly 1, and not both be zero.
func (p *Protocol) SetRevenueShares(stakers, furnace fixed.Dec) error {
	if stakers.IsNegative() || furnace.IsNegative() {
		return fmt.Errorf("revenue shares must be non-negative, got stakers=%s furnace=%s", stakers, furnace)
	}
	sum := stakers.Add(furnace)
	if !sum.Equal(fixed.One()) {
		return fmt.Errorf("revenue shares must sum to 1, got %s", sum)
	}
	p.stakersShare = stakers
	p.furnaceShare = furnace
	return nil
}

// Validate checks the fixed parameters are within sane ranges.
func (p *Protocol) Validate() error {
	if p.BatchAuctionLength <= 0 {
		return fmt.Errorf("batch_auction_length must be > 0, got %s", p.BatchAuctionLength)
	}
	if p.DutchAuctionLength <= 0 {
		return fmt.Errorf("dutch_auction_length must be > 0, got %s", p.DutchAuctionLength)
	}
	if p.MaxTradeSlippage.IsNegative() || p.MaxTradeSlippage.GTE(fixed.One()) {
		return fmt.Errorf("max_trade_slippage must be in [0,1), got %s", p.MaxTradeSlippage)
	}
	if p.BackingBuffer.IsNegative() {
		return fmt.Errorf("backing_buffer must be >= 0, got %s", p.BackingBuffer)
	}
	if p.DustAmount.IsNegative() {
		return fmt.Errorf("dust_amount must be >= 0, got %s", p.DustAmount)
	}
	if p.RewardRatio.IsNegative() || p.RewardRatio.GT(fixed.One()) {
		return fmt.Errorf("reward_ratio must be in [0,1], got %s", p.RewardRatio)
	}
	if p.MeltRatio.IsNegative() || p.MeltRatio.GT(fixed.One()) {
		return fmt.Errorf("melt_ratio must be in [0,1], got %s", p.MeltRatio)
	}
	if p.RewardPeriod <= 0 || p.MeltPeriod <= 0 {
		return fmt.Errorf("payout periods must be > 0")
	}
	if p.UnstakingDelay < 0 {
		return fmt.Errorf("unstaking_delay must be >= 0, got %s", p.UnstakingDelay)
	}
	return nil
}
