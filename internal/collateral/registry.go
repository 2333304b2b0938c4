package collateral

import (
	"fmt"
	"time"

	"StableCore/internal/fixed"
)

// Registry owns every registered collateral unit and runs the status state
// machine. One instance per protocol deployment, passed explicitly to the
// components that read it.
type Registry struct {
	units            map[string]*Unit
	order            []string // Registration order
	oracleTimeout    time.Duration
	defaultTolerance fixed.Dec // Allowed refPerTok drop below the high-water mark
	era              int64
}

func NewRegistry(oracleTimeout time.Duration, defaultTolerance fixed.Dec) *Registry {
	return &Registry{
		units:            make(map[string]*Unit),
		oracleTimeout:    oracleTimeout,
		defaultTolerance: defaultTolerance,
	}
}

// Register adds a new collateral unit. Duplicate names are rejected.
func (r *Registry) Register(name, targetTag string, refPerTok, targetPerRef, maxTradeVolume fixed.Dec, delayUntilDefault time.Duration, registeredAt time.Time) error {
	if _, exists := r.units[name]; exists {
		return fmt.Errorf("collateral %s already registered", name)
	}

	u := &Unit{
		Name:              name,
		TargetTag:         targetTag,
		MaxTradeVolume:    maxTradeVolume,
		DelayUntilDefault: delayUntilDefault,
		Order:             len(r.order),
		status:            StatusSound,
		peak:              refPerTok,
		obs: Observation{
			TargetPerRef: targetPerRef,
			RefPerTok:    refPerTok,
			At:           registeredAt,
		},
		hasObs: true,
	}

	r.units[name] = u
	r.order = append(r.order, name)
	return nil
}

// Get returns a unit by name.
func (r *Registry) Get(name string) (*Unit, bool) {
	u, ok := r.units[name]
	return u, ok
}

// Ordered returns all units in registration order.
func (r *Registry) Ordered() []*Unit {
	out := make([]*Unit, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.units[name])
	}
	return out
}

// Era returns the current basket era.
func (r *Registry) Era() int64 { return r.era }

// RecordPrice stores a new oracle observation for a unit. Out-of-order
// observations (by sequence) are dropped; status is only re-evaluated by
// Refresh, so recording has no side effect beyond the stored reading.
func (r *Registry) RecordPrice(name string, targetPerRef, refPerTok fixed.Dec, feedErr bool, seq int64, at time.Time) error {
	u, ok := r.units[name]
	if !ok {
		return fmt.Errorf("price update for unregistered collateral %s", name)
	}
	if u.hasObs && seq <= u.obs.Seq {
		return nil
	}

	u.obs = Observation{
		TargetPerRef: targetPerRef,
		RefPerTok:    refPerTok,
		FeedErr:      feedErr,
		Seq:          seq,
		At:           at,
	}
	u.hasObs = true
	return nil
}

// Refresh re-evaluates every unit's status against its stored observation and
// elapsed time. Pure function of observation + now: repeated calls within the
// same timestep are no-ops. Transitions are monotone SOUND→IFFY→DISABLED
// within one era; only NewEra re-arms a disabled unit.
func (r *Registry) Refresh(now time.Time) {
	for _, name := range r.order {
		r.refreshUnit(r.units[name], now)
	}
}

func (r *Registry) refreshUnit(u *Unit, now time.Time) {
	if u.status == StatusDisabled {
		return
	}

	if r.unhealthy(u, now) {
		if u.status == StatusSound {
			u.status = StatusIffy
			u.iffySince = now
		}
		if u.status == StatusIffy && now.Sub(u.iffySince) >= u.DelayUntilDefault {
			u.status = StatusDisabled
		}
		return
	}

	// Healthy: recover from the grace window and ratchet the high-water mark.
	if u.status == StatusIffy {
		u.status = StatusSound
		u.iffySince = time.Time{}
	}
	u.peak = fixed.Max(u.peak, u.obs.RefPerTok)
}

func (r *Registry) unhealthy(u *Unit, now time.Time) bool {
	if !u.hasObs || u.obs.FeedErr {
		return true
	}
	if now.Sub(u.obs.At) > r.oracleTimeout {
		return true
	}
	// refPerTok decay below the tolerance band around the high-water mark.
	floor := fixed.MulFloor(u.peak, fixed.One().Sub(r.defaultTolerance))
	return u.obs.RefPerTok.LT(floor)
}

// NewEra starts a new basket era after a governance basket switch. Disabled
// units become eligible again with a fresh high-water mark; the next Refresh
// re-evaluates them from current data.
func (r *Registry) NewEra() {
	r.era++
	for _, u := range r.units {
		if u.status == StatusDisabled {
			u.status = StatusSound
			u.iffySince = time.Time{}
			u.peak = u.obs.RefPerTok
		}
	}
}

// RestoreUnit overwrites a unit's mutable state (snapshot recovery).
func (r *Registry) RestoreUnit(name string, status Status, iffySince time.Time, peak fixed.Dec, obs Observation) error {
	u, ok := r.units[name]
	if !ok {
		return fmt.Errorf("restore for unregistered collateral %s", name)
	}
	u.status = status
	u.iffySince = iffySince
	u.peak = peak
	u.obs = obs
	u.hasObs = true
	return nil
}

// RestoreEra overwrites the era counter (snapshot recovery).
func (r *Registry) RestoreEra(era int64) { r.era = era }
