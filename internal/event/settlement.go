package event

import (
	"time"

	"github.com/google/uuid"

	"StableCore/internal/fixed"
)

// TradeSettled reports the outcome of an auction from the external venue.
// Idempotency key: trade_id (assigned when the trade was opened).
// Filled=false covers both an expired auction and a batch auction whose
// clearing price missed the worst case; in either case SellReturned comes
// back to the trading account.
type TradeSettled struct {
	TradeID      uuid.UUID
	TradeAccount string // Trading account that opened the trade
	Filled       bool
	BuyAmount    fixed.Dec // Buy-asset amount received (zero when unfilled)
	SellReturned fixed.Dec // Unsold sell-asset amount returned from escrow
	SettleSeq    int64     // Source sequence from the venue adapter
	SettledAt    time.Time
}

func (e *TradeSettled) IdempotencyKey() string {
	return e.TradeID.String()
}

func (e *TradeSettled) EventType() EventType {
	return EventTypeTradeSettled
}

func (e *TradeSettled) Account() *string {
	a := e.TradeAccount
	return &a
}

func (e *TradeSettled) SourceSequence() int64 {
	return e.SettleSeq
}

func (e *TradeSettled) Timestamp() time.Time {
	return e.SettledAt
}

// RewardsClaimed reports an external reward-token claim executed on behalf of
// the backing account (yield-bearing collateral wrappers emit these).
type RewardsClaimed struct {
	ClaimID     uuid.UUID
	Unit        string // Collateral wrapper the reward came from
	RewardAsset string
	Amount      fixed.Dec
	ClaimSeq    int64
	ClaimedAt   time.Time
}

func (e *RewardsClaimed) IdempotencyKey() string {
	return e.ClaimID.String()
}

func (e *RewardsClaimed) EventType() EventType {
	return EventTypeRewardsClaimed
}

func (e *RewardsClaimed) Account() *string {
	return nil
}

func (e *RewardsClaimed) SourceSequence() int64 {
	return e.ClaimSeq
}

func (e *RewardsClaimed) Timestamp() time.Time {
	return e.ClaimedAt
}
