package ledger

import (
	"fmt"

	"github.com/google/uuid"

	"StableCore/internal/fixed"
)

// JournalType represents the purpose of a journal entry
type JournalType int32

const (
	JournalTypeCollateralDeposit JournalType = iota
	JournalTypeCollateralWithdraw
	JournalTypeTradeEscrow  // Sell amount moved to venue escrow on trade open
	JournalTypeTradeFill    // Buy amount received from venue on settlement
	JournalTypeTradeReturn  // Unsold escrow returned on failed/expired trade
	JournalTypeRewardClaim  // Claimed reward tokens credited to backing
	JournalTypeRevenueForward
	JournalTypeDistribution // Trader proceeds split to the beneficiary pools
	JournalTypeStake
	JournalTypeUnstakeMature // Matured unstake value parked for withdrawal
	JournalTypeWithdrawPayout
	JournalTypeRewardPayout // Reward buffer released into the staking pool
	JournalTypeSeize
	JournalTypeMelt
)

// Journal represents a single double-entry transfer. Amount is always
// positive; direction is carried by the debit/credit pair.
type Journal struct {
	JournalID     uuid.UUID
	BatchID       uuid.UUID
	EventRef      string // Idempotency key of source event
	Sequence      int64  // Global event sequence
	DebitAccount  AccountKey
	CreditAccount AccountKey
	Asset         string
	Amount        fixed.Dec
	JournalType   JournalType
	Timestamp     int64 // Versioned input timestamp (epoch microseconds)
}

// Batch represents a balanced set of journal entries produced by one event.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Sequence  int64
	Timestamp int64
	Journals  []Journal
}

// Stamp ties generated journals to the event that produced them.
type Stamp struct {
	EventRef  string
	Sequence  int64
	Timestamp int64 // epoch microseconds
}

// NewBatch starts an empty batch for one event.
func NewBatch(s Stamp) *Batch {
	return &Batch{
		BatchID:   uuid.New(),
		EventRef:  s.EventRef,
		Sequence:  s.Sequence,
		Timestamp: s.Timestamp,
	}
}

// Add appends one transfer to the batch.
func (b *Batch) Add(jt JournalType, debit, credit AccountKey, asset string, amount fixed.Dec) {
	b.Journals = append(b.Journals, Journal{
		JournalID:     uuid.New(),
		BatchID:       b.BatchID,
		EventRef:      b.EventRef,
		Sequence:      b.Sequence,
		DebitAccount:  debit,
		CreditAccount: credit,
		Asset:         asset,
		Amount:        amount,
		JournalType:   jt,
		Timestamp:     b.Timestamp,
	})
}

// Validate ensures the batch is well-formed. Each entry is a balanced
// transfer by construction (one positive amount from credit to debit), so
// Σ debits == Σ credits holds per entry; multi-leg events use multiple
// entries under one batch_id.
func (b *Batch) Validate() error {
	for _, j := range b.Journals {
		if j.Amount.IsNil() || !j.Amount.IsPositive() {
			return fmt.Errorf("journal %s has non-positive amount: %s", j.JournalID, j.Amount)
		}
		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}
		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
		if j.DebitAccount.Asset != j.Asset || j.CreditAccount.Asset != j.Asset {
			return fmt.Errorf("journal %s moves %s between mismatched asset buckets", j.JournalID, j.Asset)
		}
	}
	return nil
}
