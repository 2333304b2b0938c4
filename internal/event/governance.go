package event

import (
	"fmt"
	"time"

	"StableCore/internal/fixed"
)

// Governance actions arrive as events from the governance collaborator. Each
// carries a governance sequence number as both ordering key and dedup key.

// RegisterCollateral adds a collateral unit to the asset registry.
type RegisterCollateral struct {
	Unit              string
	TargetTag         string // What the unit is pegged to ("USD", "ETH", ...)
	RefPerTok         fixed.Dec
	TargetPerRef      fixed.Dec
	MaxTradeVolume    fixed.Dec
	DelayUntilDefault time.Duration
	GovSeq            int64
	EnactedAt         time.Time
}

func (e *RegisterCollateral) IdempotencyKey() string {
	return fmt.Sprintf("gov:register:%d", e.GovSeq)
}

func (e *RegisterCollateral) EventType() EventType  { return EventTypeRegisterCollateral }
func (e *RegisterCollateral) Account() *string      { return nil }
func (e *RegisterCollateral) SourceSequence() int64 { return e.GovSeq }
func (e *RegisterCollateral) Timestamp() time.Time  { return e.EnactedAt }

// BasketEntry is one (unit, target amount) pair of the prime basket.
type BasketEntry struct {
	Unit         string
	TargetAmount fixed.Dec
}

// SetPrimeBasket replaces the prime basket and immediately re-derives the
// live basket from it.
type SetPrimeBasket struct {
	Entries   []BasketEntry
	GovSeq    int64
	EnactedAt time.Time
}

func (e *SetPrimeBasket) IdempotencyKey() string {
	return fmt.Sprintf("gov:prime:%d", e.GovSeq)
}

func (e *SetPrimeBasket) EventType() EventType  { return EventTypeSetPrimeBasket }
func (e *SetPrimeBasket) Account() *string      { return nil }
func (e *SetPrimeBasket) SourceSequence() int64 { return e.GovSeq }
func (e *SetPrimeBasket) Timestamp() time.Time  { return e.EnactedAt }

// SetBackupConfig sets the substitute list for one target tag.
type SetBackupConfig struct {
	TargetTag       string
	DiversityFactor int // Max number of backups actually used
	Units           []string
	GovSeq          int64
	EnactedAt       time.Time
}

func (e *SetBackupConfig) IdempotencyKey() string {
	return fmt.Sprintf("gov:backup:%d", e.GovSeq)
}

func (e *SetBackupConfig) EventType() EventType  { return EventTypeSetBackupConfig }
func (e *SetBackupConfig) Account() *string      { return nil }
func (e *SetBackupConfig) SourceSequence() int64 { return e.GovSeq }
func (e *SetBackupConfig) Timestamp() time.Time  { return e.EnactedAt }

// SetRevenueShares sets the distributor split between the staking pool
// stream and the furnace stream.
type SetRevenueShares struct {
	StakersShare fixed.Dec // Revenue share routed to the staking pool
	FurnaceShare fixed.Dec // Revenue share routed to the furnace
	GovSeq       int64
	EnactedAt    time.Time
}

func (e *SetRevenueShares) IdempotencyKey() string {
	return fmt.Sprintf("gov:shares:%d", e.GovSeq)
}

func (e *SetRevenueShares) EventType() EventType  { return EventTypeSetRevenueShares }
func (e *SetRevenueShares) Account() *string      { return nil }
func (e *SetRevenueShares) SourceSequence() int64 { return e.GovSeq }
func (e *SetRevenueShares) Timestamp() time.Time  { return e.EnactedAt }

// SwitchBasket forces a live-basket recomputation (governance recovery path
// after a default).
type SwitchBasket struct {
	GovSeq    int64
	EnactedAt time.Time
}

func (e *SwitchBasket) IdempotencyKey() string {
	return fmt.Sprintf("gov:switch:%d", e.GovSeq)
}

func (e *SwitchBasket) EventType() EventType  { return EventTypeSwitchBasket }
func (e *SwitchBasket) Account() *string      { return nil }
func (e *SwitchBasket) SourceSequence() int64 { return e.GovSeq }
func (e *SwitchBasket) Timestamp() time.Time  { return e.EnactedAt }
