package basket

import (
	"errors"
	"fmt"
	"time"

	"StableCore/internal/collateral"
	"StableCore/internal/fixed"
)

// ErrNoSoundBackup is the "basket disabled" condition: a target tag lost its
// prime member and has no sound substitute. The previous live basket is left
// untouched; issuance must stay blocked until governance intervenes.
var ErrNoSoundBackup = errors.New("basket disabled: no sound backup available")

// PrimeEntry is one (unit, target amount) pair of the governance-set prime
// basket. Target amounts are in target units per whole protocol token.
type PrimeEntry struct {
	Unit         string
	TargetAmount fixed.Dec
}

// BackupConfig lists substitutes for one target tag.
type BackupConfig struct {
	DiversityFactor int
	Units           []string
}

// LiveEntry is one resolved member of the live basket. Quantity is the
// collateral token amount required per whole protocol token, fixed at switch
// time and ceil-rounded: issuance never under-collects.
type LiveEntry struct {
	Unit         string
	TargetAmount fixed.Dec
	Quantity     fixed.Dec
}

// Handler owns the prime basket, the backup configuration, and the resolved
// live basket. The live basket is immutable between switches.
type Handler struct {
	reg        *collateral.Registry
	prime      []PrimeEntry
	backups    map[string]BackupConfig
	live       []LiveEntry
	switchedAt time.Time
}

func NewHandler(reg *collateral.Registry) *Handler {
	return &Handler{
		reg:     reg,
		backups: make(map[string]BackupConfig),
	}
}

// SetPrime replaces the prime basket and re-derives the live basket under a
// fresh era. All-or-nothing: a failed derivation leaves everything unchanged.
func (h *Handler) SetPrime(entries []PrimeEntry, now time.Time) error {
	for _, e := range entries {
		if _, ok := h.reg.Get(e.Unit); !ok {
			return fmt.Errorf("prime basket references unregistered collateral %s", e.Unit)
		}
		if !e.TargetAmount.IsPositive() {
			return fmt.Errorf("prime basket entry %s has non-positive target amount", e.Unit)
		}
	}

	prev := h.prime
	h.prime = entries
	if err := h.SwitchWithEra(now); err != nil {
		h.prime = prev
		return err
	}
	return nil
}

// SetBackup sets the substitute list for one target tag.
func (h *Handler) SetBackup(targetTag string, cfg BackupConfig) error {
	if cfg.DiversityFactor <= 0 {
		return fmt.Errorf("backup config for %s has non-positive diversity factor", targetTag)
	}
	for _, name := range cfg.Units {
		if _, ok := h.reg.Get(name); !ok {
			return fmt.Errorf("backup config for %s references unregistered collateral %s", targetTag, name)
		}
	}
	h.backups[targetTag] = cfg
	return nil
}

// SwitchWithEra starts a new collateral era (re-arming disabled units) and
// then re-derives the live basket. The governance recovery path.
func (h *Handler) SwitchWithEra(now time.Time) error {
	h.reg.NewEra()
	return h.Switch(now)
}

// Switch re-derives the live basket from the prime basket, substituting each
// disabled member with sound backups from its target tag's configuration.
// Fails with ErrNoSoundBackup — leaving the live basket unchanged — when a
// disabled member's tag has no usable substitute.
func (h *Handler) Switch(now time.Time) error {
	if len(h.prime) == 0 {
		return fmt.Errorf("no prime basket configured")
	}

	// Accumulate target amounts per unit; substitution can route two prime
	// members onto the same backup.
	amounts := make(map[string]fixed.Dec)
	order := make([]string, 0, len(h.prime))
	add := func(unit string, amt fixed.Dec) {
		if cur, ok := amounts[unit]; ok {
			amounts[unit] = cur.Add(amt)
			return
		}
		amounts[unit] = amt
		order = append(order, unit)
	}

	for _, e := range h.prime {
		u, _ := h.reg.Get(e.Unit)
		if u.Status() != collateral.StatusDisabled {
			add(e.Unit, e.TargetAmount)
			continue
		}

		subs := h.soundBackups(u.TargetTag)
		if len(subs) == 0 {
			return fmt.Errorf("%w: target tag %s", ErrNoSoundBackup, u.TargetTag)
		}
		share := fixed.DivFloor(e.TargetAmount, fixed.New(int64(len(subs))))
		for _, sub := range subs {
			add(sub, share)
		}
	}

	live := make([]LiveEntry, 0, len(order))
	for _, name := range order {
		u, _ := h.reg.Get(name)
		qty, err := quantityOf(u, amounts[name])
		if err != nil {
			return err
		}
		live = append(live, LiveEntry{Unit: name, TargetAmount: amounts[name], Quantity: qty})
	}

	h.live = live
	h.switchedAt = now
	return nil
}

// soundBackups returns up to diversityFactor sound substitutes for a tag, in
// configured order.
func (h *Handler) soundBackups(targetTag string) []string {
	cfg, ok := h.backups[targetTag]
	if !ok {
		return nil
	}

	out := make([]string, 0, cfg.DiversityFactor)
	for _, name := range cfg.Units {
		if len(out) == cfg.DiversityFactor {
			break
		}
		u, ok := h.reg.Get(name)
		if !ok || u.Status() != collateral.StatusSound {
			continue
		}
		out = append(out, name)
	}
	return out
}

// quantityOf converts a target amount into collateral tokens per protocol
// token: targetAmount / targetPerRef / refPerTok, ceil at each step so the
// protocol never promises more backing than it collects.
func quantityOf(u *collateral.Unit, targetAmount fixed.Dec) (fixed.Dec, error) {
	refPerTok := u.RefPerTok()
	targetPerRef := u.TargetPerRef()
	if refPerTok.IsZero() || targetPerRef.IsZero() {
		return fixed.Dec{}, fmt.Errorf("collateral %s has no usable price data", u.Name)
	}
	refAmount := fixed.DivCeil(targetAmount, targetPerRef)
	return fixed.DivCeil(refAmount, refPerTok), nil
}

// Quantity returns the live basket's per-token requirement for a unit, zero
// for units outside the basket.
func (h *Handler) Quantity(unit string) fixed.Dec {
	for _, e := range h.live {
		if e.Unit == unit {
			return e.Quantity
		}
	}
	return fixed.Zero()
}

// Live returns the resolved live basket.
func (h *Handler) Live() []LiveEntry {
	out := make([]LiveEntry, len(h.live))
	copy(out, h.live)
	return out
}

// SwitchedAt returns when the live basket was last re-derived (the trading
// cooldown anchor).
func (h *Handler) SwitchedAt() time.Time { return h.switchedAt }

// BasketsHeldBy returns how many whole basket units the given balances fully
// back: the minimum over live units of balance/quantity, floor-rounded. A
// shortfall in any single unit caps the whole figure.
func (h *Handler) BasketsHeldBy(balances map[string]fixed.Dec) fixed.Dec {
	if len(h.live) == 0 {
		return fixed.Zero()
	}

	held := fixed.Dec{}
	for _, e := range h.live {
		bal, ok := balances[e.Unit]
		if !ok {
			return fixed.Zero()
		}
		units := fixed.DivFloor(bal, e.Quantity)
		if held.IsNil() || units.LT(held) {
			held = units
		}
	}
	return held
}

// Status aggregates the live basket: SOUND only when every member is sound,
// DISABLED when any member is disabled (or no basket is resolved), IFFY
// otherwise.
func (h *Handler) Status() collateral.Status {
	if len(h.live) == 0 {
		return collateral.StatusDisabled
	}

	status := collateral.StatusSound
	for _, e := range h.live {
		u, ok := h.reg.Get(e.Unit)
		if !ok || u.Status() == collateral.StatusDisabled {
			return collateral.StatusDisabled
		}
		if u.Status() == collateral.StatusIffy {
			status = collateral.StatusIffy
		}
	}
	return status
}

// Price returns the live basket's value in target units per basket unit,
// floor-rounded valuations throughout.
func (h *Handler) Price() fixed.Dec {
	total := fixed.Zero()
	for _, e := range h.live {
		u, _ := h.reg.Get(e.Unit)
		total = total.Add(fixed.MulFloor(e.Quantity, u.Price()))
	}
	return total
}

// Prime returns the configured prime basket.
func (h *Handler) Prime() []PrimeEntry {
	out := make([]PrimeEntry, len(h.prime))
	copy(out, h.prime)
	return out
}

// Backups returns the configured backup map.
func (h *Handler) Backups() map[string]BackupConfig {
	out := make(map[string]BackupConfig, len(h.backups))
	for k, v := range h.backups {
		out[k] = v
	}
	return out
}

// Restore overwrites the handler state (snapshot recovery).
func (h *Handler) Restore(prime []PrimeEntry, backups map[string]BackupConfig, live []LiveEntry, switchedAt time.Time) {
	h.prime = prime
	h.backups = backups
	h.live = live
	h.switchedAt = switchedAt
}
