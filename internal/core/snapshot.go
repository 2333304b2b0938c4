package core

import (
	"sort"
	"time"

	"StableCore/internal/basket"
	"StableCore/internal/collateral"
	"StableCore/internal/fixed"
	"StableCore/internal/ledger"
	"StableCore/internal/staking"
	"StableCore/internal/trade"
)

// UnitSnapshot carries one collateral unit's full registration and health
// state. Governance events before the snapshot are not replayed, so the
// snapshot must be able to reconstruct the registry on its own.
type UnitSnapshot struct {
	Name              string
	TargetTag         string
	MaxTradeVolume    fixed.Dec
	DelayUntilDefault time.Duration
	Status            collateral.Status
	IffySince         time.Time
	Peak              fixed.Dec
	Observation       collateral.Observation
}

// SnapshotState holds the serializable in-memory state for restore.
// This mirrors persistence.SnapshotData but uses typed fields.
type SnapshotState struct {
	Sequence  int64
	StateHash [32]byte

	Balances map[ledger.AccountKey]fixed.Dec
	Supply   fixed.Dec

	Era   int64
	Units []UnitSnapshot

	BasketPrime      []basket.PrimeEntry
	BasketBackups    map[string]basket.BackupConfig
	BasketLive       []basket.LiveEntry
	BasketSwitchedAt time.Time

	OpenTrades []*trade.Trade

	StakingTotalShares fixed.Dec
	StakingTotalValue  fixed.Dec
	StakingShares      map[string]fixed.Dec
	StakingQueue       []staking.UnstakeRequest
	StakingLastPayout  time.Time

	FurnaceLastPayout time.Time

	RevenueStakersShare fixed.Dec
	RevenueFurnaceShare fixed.Dec

	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// CreateSnapshotState captures the current in-memory state for persistence.
func (c *Engine) CreateSnapshotState() *SnapshotState {
	units := c.registry.Ordered()
	unitSnaps := make([]UnitSnapshot, 0, len(units))
	for _, u := range units {
		unitSnaps = append(unitSnaps, UnitSnapshot{
			Name:              u.Name,
			TargetTag:         u.TargetTag,
			MaxTradeVolume:    u.MaxTradeVolume,
			DelayUntilDefault: u.DelayUntilDefault,
			Status:            u.Status(),
			IffySince:         u.IffySince(),
			Peak:              u.Peak(),
			Observation:       u.Observation(),
		})
	}

	// The slot map iterates in random order; sorting by account keeps
	// snapshots of equal state byte-identical.
	open := c.trades.OpenTrades()
	openTrades := make([]*trade.Trade, 0, len(open))
	for _, t := range open {
		openTrades = append(openTrades, t)
	}
	sort.Slice(openTrades, func(i, j int) bool {
		return openTrades[i].Account < openTrades[j].Account
	})

	return &SnapshotState{
		Sequence:  c.sequence - 1, // Last processed sequence
		StateHash: c.hasher.GetPrevHash(),

		Balances: c.book.Snapshot(),
		Supply:   c.supply,

		Era:   c.registry.Era(),
		Units: unitSnaps,

		BasketPrime:      c.basket.Prime(),
		BasketBackups:    c.basket.Backups(),
		BasketLive:       c.basket.Live(),
		BasketSwitchedAt: c.basket.SwitchedAt(),

		OpenTrades: openTrades,

		StakingTotalShares: c.pool.TotalShares(),
		StakingTotalValue:  c.pool.TotalValue(),
		StakingShares:      c.pool.Shares(),
		StakingQueue:       c.pool.Queue(),
		StakingLastPayout:  c.pool.LastPayout(),

		FurnaceLastPayout: c.furnace.LastPayout(),

		RevenueStakersShare: c.prm.StakersShare(),
		RevenueFurnaceShare: c.prm.FurnaceShare(),

		SequenceState:   c.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys: c.idempotency.lru.GetAllKeys(),
	}
}

// RestoreFromSnapshot restores the core's in-memory state from a snapshot.
// On warm restart the caller then replays events from snap.Sequence+1.
func (c *Engine) RestoreFromSnapshot(snap *SnapshotState) error {
	c.sequence = snap.Sequence + 1 // Next sequence to assign
	c.hasher.SetPrevHash(snap.StateHash)

	c.book.Restore(snap.Balances)
	c.supply = snap.Supply

	// Units are re-registered in their original order so the deterministic
	// trade tie-break survives restarts, then their health state is
	// reinstated on top.
	for _, us := range snap.Units {
		err := c.registry.Register(us.Name, us.TargetTag,
			us.Observation.RefPerTok, us.Observation.TargetPerRef,
			us.MaxTradeVolume, us.DelayUntilDefault, us.Observation.At)
		if err != nil {
			return err
		}
		if err := c.registry.RestoreUnit(us.Name, us.Status, us.IffySince, us.Peak, us.Observation); err != nil {
			return err
		}
	}
	c.registry.RestoreEra(snap.Era)

	c.basket.Restore(snap.BasketPrime, snap.BasketBackups, snap.BasketLive, snap.BasketSwitchedAt)
	c.trades.Restore(snap.OpenTrades)
	c.pool.Restore(snap.StakingTotalShares, snap.StakingTotalValue,
		snap.StakingShares, snap.StakingQueue, snap.StakingLastPayout)
	c.furnace.Restore(snap.FurnaceLastPayout)

	if err := c.prm.SetRevenueShares(snap.RevenueStakersShare, snap.RevenueFurnaceShare); err != nil {
		return err
	}

	for partition, nextSeq := range snap.SequenceState {
		c.sequenceValidator.RestorePartition(partition, nextSeq)
	}
	return nil
}
