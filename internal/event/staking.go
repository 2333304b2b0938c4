package event

import (
	"time"

	"github.com/google/uuid"

	"StableCore/internal/fixed"
)

// Stake deposits insurance tokens into the staking pool.
type Stake struct {
	StakeID  uuid.UUID
	Holder   string
	Amount   fixed.Dec
	StakeSeq int64
	StakedAt time.Time
}

func (e *Stake) IdempotencyKey() string {
	return e.StakeID.String()
}

func (e *Stake) EventType() EventType { return EventTypeStake }

func (e *Stake) Account() *string {
	h := e.Holder
	return &h
}

func (e *Stake) SourceSequence() int64 { return e.StakeSeq }
func (e *Stake) Timestamp() time.Time  { return e.StakedAt }

// UnstakeInitiated burns pool shares and starts the unstaking delay. The
// redeemable value is fixed at the exchange rate at this moment.
type UnstakeInitiated struct {
	RequestID   uuid.UUID
	Holder      string
	Shares      fixed.Dec
	RequestSeq  int64
	RequestedAt time.Time
}

func (e *UnstakeInitiated) IdempotencyKey() string {
	return e.RequestID.String()
}

func (e *UnstakeInitiated) EventType() EventType { return EventTypeUnstakeInitiated }

func (e *UnstakeInitiated) Account() *string {
	h := e.Holder
	return &h
}

func (e *UnstakeInitiated) SourceSequence() int64 { return e.RequestSeq }
func (e *UnstakeInitiated) Timestamp() time.Time  { return e.RequestedAt }

// WithdrawRequest pays out the holder's matured unstake queue entries.
type WithdrawRequest struct {
	WithdrawalID uuid.UUID
	Holder       string
	RequestSeq   int64
	RequestedAt  time.Time
}

func (e *WithdrawRequest) IdempotencyKey() string {
	return e.WithdrawalID.String()
}

func (e *WithdrawRequest) EventType() EventType { return EventTypeWithdrawRequest }

func (e *WithdrawRequest) Account() *string {
	h := e.Holder
	return &h
}

func (e *WithdrawRequest) SourceSequence() int64 { return e.RequestSeq }
func (e *WithdrawRequest) Timestamp() time.Time  { return e.RequestedAt }

// Seize removes value from the staking pool during an insurance event. The
// one operation allowed to push the exchange rate below 1.0.
type Seize struct {
	SeizeID  uuid.UUID
	Amount   fixed.Dec
	SeizeSeq int64
	SeizedAt time.Time
}

func (e *Seize) IdempotencyKey() string {
	return e.SeizeID.String()
}

func (e *Seize) EventType() EventType  { return EventTypeSeize }
func (e *Seize) Account() *string      { return nil }
func (e *Seize) SourceSequence() int64 { return e.SeizeSeq }
func (e *Seize) Timestamp() time.Time  { return e.SeizedAt }
