package event

import (
	"fmt"
	"time"
)

// Keeper ticks. Each tick carries the keeper's wall-clock reading as a
// versioned input; the core compares stored timestamps against it but never
// reads the clock itself. Ticks are idempotent: replaying the same tick
// produces no additional effect.

// RefreshTick triggers collateral status re-evaluation and, when the live
// basket has a disabled member, a basket switch attempt.
type RefreshTick struct {
	TickTime time.Time
	TickSeq  int64
}

func (e *RefreshTick) IdempotencyKey() string {
	return fmt.Sprintf("refresh:%d", e.TickSeq)
}

func (e *RefreshTick) EventType() EventType { return EventTypeRefreshTick }
func (e *RefreshTick) Account() *string     { return nil }
func (e *RefreshTick) SourceSequence() int64 {
	return e.TickSeq
}
func (e *RefreshTick) Timestamp() time.Time { return e.TickTime }

// ManageTick triggers BackingManager.Manage and the revenue traders.
type ManageTick struct {
	TickTime time.Time
	TickSeq  int64
}

func (e *ManageTick) IdempotencyKey() string {
	return fmt.Sprintf("manage:%d", e.TickSeq)
}

func (e *ManageTick) EventType() EventType  { return EventTypeManageTick }
func (e *ManageTick) Account() *string      { return nil }
func (e *ManageTick) SourceSequence() int64 { return e.TickSeq }
func (e *ManageTick) Timestamp() time.Time  { return e.TickTime }

// PayoutTick triggers the staking pool reward release.
type PayoutTick struct {
	TickTime time.Time
	TickSeq  int64
}

func (e *PayoutTick) IdempotencyKey() string {
	return fmt.Sprintf("payout:%d", e.TickSeq)
}

func (e *PayoutTick) EventType() EventType  { return EventTypePayoutTick }
func (e *PayoutTick) Account() *string      { return nil }
func (e *PayoutTick) SourceSequence() int64 { return e.TickSeq }
func (e *PayoutTick) Timestamp() time.Time  { return e.TickTime }

// MeltTick triggers the furnace melt.
type MeltTick struct {
	TickTime time.Time
	TickSeq  int64
}

func (e *MeltTick) IdempotencyKey() string {
	return fmt.Sprintf("melt:%d", e.TickSeq)
}

func (e *MeltTick) EventType() EventType  { return EventTypeMeltTick }
func (e *MeltTick) Account() *string      { return nil }
func (e *MeltTick) SourceSequence() int64 { return e.TickSeq }
func (e *MeltTick) Timestamp() time.Time  { return e.TickTime }
