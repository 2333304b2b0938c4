package collateral

import (
	"time"

	"StableCore/internal/fixed"
)

// Status classifies a collateral unit's health.
type Status int32

const (
	StatusSound Status = iota
	StatusIffy         // Suspected default, inside the grace window
	StatusDisabled     // Confirmed default, terminal until a new basket era
)

func (s Status) String() string {
	switch s {
	case StatusSound:
		return "SOUND"
	case StatusIffy:
		return "IFFY"
	case StatusDisabled:
		return "DISABLED"
	default:
		return "UNKNOWN"
	}
}

// Observation is the latest oracle reading for a unit.
type Observation struct {
	TargetPerRef fixed.Dec
	RefPerTok    fixed.Dec
	FeedErr      bool
	Seq          int64
	At           time.Time
}

// Unit is one registered collateral token.
type Unit struct {
	Name              string
	TargetTag         string // What the unit is pegged to ("USD", "ETH", ...)
	MaxTradeVolume    fixed.Dec
	DelayUntilDefault time.Duration
	Order             int // Registration order, the deterministic tie-break

	status    Status
	iffySince time.Time
	peak      fixed.Dec // High-water mark of refPerTok while sound
	obs       Observation
	hasObs    bool
}

// Status returns the unit's current classification.
func (u *Unit) Status() Status { return u.status }

// RefPerTok returns the last observed reference units per collateral token.
func (u *Unit) RefPerTok() fixed.Dec {
	if !u.hasObs {
		return fixed.Zero()
	}
	return u.obs.RefPerTok
}

// TargetPerRef returns the last observed target units per reference unit.
func (u *Unit) TargetPerRef() fixed.Dec {
	if !u.hasObs {
		return fixed.Zero()
	}
	return u.obs.TargetPerRef
}

// Price returns the unit's value in target units per collateral token,
// floor-rounded: valuations the protocol relies on never round in its favor.
func (u *Unit) Price() fixed.Dec {
	if !u.hasObs {
		return fixed.Zero()
	}
	return fixed.MulFloor(u.obs.TargetPerRef, u.obs.RefPerTok)
}

// IffySince returns when the unit entered the grace window (zero when sound).
func (u *Unit) IffySince() time.Time { return u.iffySince }

// Peak returns the refPerTok high-water mark.
func (u *Unit) Peak() fixed.Dec { return u.peak }

// Observation returns the stored price observation.
func (u *Unit) Observation() Observation { return u.obs }
