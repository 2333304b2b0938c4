package event

import (
	"fmt"
	"time"

	"StableCore/internal/fixed"
)

// PriceUpdate is a price observation for one collateral unit, pushed by an
// external oracle feed. FeedErr marks an observation the feed itself reported
// as broken; the collateral status logic treats it like a stale price.
type PriceUpdate struct {
	Unit           string
	TargetPerRef   fixed.Dec // Target units per reference unit
	RefPerTok      fixed.Dec // Reference units per collateral token
	FeedErr        bool
	PriceSequence  int64     // Monotonic per unit
	PriceTimestamp time.Time // Versioned input timestamp (NOT wall-clock)
}

func (p *PriceUpdate) IdempotencyKey() string {
	return fmt.Sprintf("%s:price:%d", p.Unit, p.PriceSequence)
}

func (p *PriceUpdate) EventType() EventType {
	return EventTypePriceUpdate
}

func (p *PriceUpdate) Account() *string {
	return nil
}

func (p *PriceUpdate) SourceSequence() int64 {
	return p.PriceSequence
}

func (p *PriceUpdate) Timestamp() time.Time {
	return p.PriceTimestamp
}
