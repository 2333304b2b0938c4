package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"StableCore/internal/fixed"
)

// Token-ledger collaborator surface. Issuance/redemption bookkeeping lives
// outside the core; it reports collateral moving in and out of the backing
// account, and protocol-token supply changes, through these events.

// CollateralDeposit credits a trading account with collateral tokens.
type CollateralDeposit struct {
	TransferID  uuid.UUID
	ToAccount   string
	Asset       string
	Amount      fixed.Dec
	TransferSeq int64
	OccurredAt  time.Time
}

func (e *CollateralDeposit) IdempotencyKey() string {
	return e.TransferID.String()
}

func (e *CollateralDeposit) EventType() EventType {
	return EventTypeCollateralDeposit
}

func (e *CollateralDeposit) Account() *string {
	a := e.ToAccount
	return &a
}

func (e *CollateralDeposit) SourceSequence() int64 {
	return e.TransferSeq
}

func (e *CollateralDeposit) Timestamp() time.Time {
	return e.OccurredAt
}

// CollateralWithdraw debits a trading account (redemption pulling collateral
// out of backing).
type CollateralWithdraw struct {
	TransferID  uuid.UUID
	FromAccount string
	Asset       string
	Amount      fixed.Dec
	TransferSeq int64
	OccurredAt  time.Time
}

func (e *CollateralWithdraw) IdempotencyKey() string {
	return e.TransferID.String()
}

func (e *CollateralWithdraw) EventType() EventType {
	return EventTypeCollateralWithdraw
}

func (e *CollateralWithdraw) Account() *string {
	a := e.FromAccount
	return &a
}

func (e *CollateralWithdraw) SourceSequence() int64 {
	return e.TransferSeq
}

func (e *CollateralWithdraw) Timestamp() time.Time {
	return e.OccurredAt
}

// SupplyUpdate reports the protocol token's total supply after an issuance or
// redemption batch.
type SupplyUpdate struct {
	TotalSupply fixed.Dec
	SupplySeq   int64
	OccurredAt  time.Time
}

func (e *SupplyUpdate) IdempotencyKey() string {
	return fmt.Sprintf("supply:%d", e.SupplySeq)
}

func (e *SupplyUpdate) EventType() EventType {
	return EventTypeSupplyUpdate
}

func (e *SupplyUpdate) Account() *string {
	return nil
}

func (e *SupplyUpdate) SourceSequence() int64 {
	return e.SupplySeq
}

func (e *SupplyUpdate) Timestamp() time.Time {
	return e.OccurredAt
}
