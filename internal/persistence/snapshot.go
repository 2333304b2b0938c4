package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"StableCore/internal/basket"
	"StableCore/internal/core"
	"StableCore/internal/fixed"
	"StableCore/internal/ledger"
	"StableCore/internal/staking"

	"github.com/google/uuid"
)

// SnapshotManager handles creating and loading state snapshots for recovery.
// Snapshots contain balances, collateral registry state, basket composition,
// open trades, staking state, sequence counters, and the last state hash.
type SnapshotManager struct {
	db *sql.DB
}

// BalanceSnap is one account balance in serializable form. The in-memory
// book keys balances by a struct, which JSON cannot use as a map key.
type BalanceSnap struct {
	Scope   uint8     `json:"scope"`
	Name    string    `json:"name"`
	Asset   string    `json:"asset"`
	Balance fixed.Dec `json:"balance"`
}

// SnapshotData is the serializable form of core.SnapshotState.
type SnapshotData struct {
	Sequence  int64  `json:"sequence"`
	StateHash []byte `json:"state_hash"`

	Balances []BalanceSnap `json:"balances"`
	Supply   fixed.Dec     `json:"supply"`

	Era   int64               `json:"era"`
	Units []core.UnitSnapshot `json:"units"`

	BasketState     json.RawMessage  `json:"basket_state"`
	TradeState      json.RawMessage  `json:"trade_state"`
	StakingState    json.RawMessage  `json:"staking_state"`
	FurnaceState    json.RawMessage  `json:"furnace_state"`
	RevenueState    json.RawMessage  `json:"revenue_state"`
	SequenceState   map[string]int64 `json:"sequence_state"`
	IdempotencyKeys []string         `json:"idempotency_keys"`

	CreatedAt time.Time `json:"created_at"`
}

// Inner state blobs. Split out so each subsystem's shape can evolve without
// touching the snapshot envelope.
type basketStateJSON struct {
	Prime      []basket.PrimeEntry            `json:"prime"`
	Backups    map[string]basket.BackupConfig `json:"backups"`
	Live       []basket.LiveEntry             `json:"live"`
	SwitchedAt time.Time                      `json:"switched_at"`
}

type stakingStateJSON struct {
	TotalShares fixed.Dec                `json:"total_shares"`
	TotalValue  fixed.Dec                `json:"total_value"`
	Shares      map[string]fixed.Dec     `json:"shares"`
	Queue       []staking.UnstakeRequest `json:"queue"`
	LastPayout  time.Time                `json:"last_payout"`
}

type furnaceStateJSON struct {
	LastPayout time.Time `json:"last_payout"`
}

type revenueStateJSON struct {
	StakersShare fixed.Dec `json:"stakers_share"`
	FurnaceShare fixed.Dec `json:"furnace_share"`
}

// FromCoreState converts the core's typed snapshot to serializable form.
func FromCoreState(s *core.SnapshotState) (*SnapshotData, error) {
	balances := make([]BalanceSnap, 0, len(s.Balances))
	for key, bal := range s.Balances {
		balances = append(balances, BalanceSnap{
			Scope:   uint8(key.Scope),
			Name:    key.Name,
			Asset:   key.Asset,
			Balance: bal,
		})
	}

	basketState, err := json.Marshal(basketStateJSON{
		Prime:      s.BasketPrime,
		Backups:    s.BasketBackups,
		Live:       s.BasketLive,
		SwitchedAt: s.BasketSwitchedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal basket state: %w", err)
	}

	tradeState, err := json.Marshal(s.OpenTrades)
	if err != nil {
		return nil, fmt.Errorf("marshal trade state: %w", err)
	}

	stakingState, err := json.Marshal(stakingStateJSON{
		TotalShares: s.StakingTotalShares,
		TotalValue:  s.StakingTotalValue,
		Shares:      s.StakingShares,
		Queue:       s.StakingQueue,
		LastPayout:  s.StakingLastPayout,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal staking state: %w", err)
	}

	furnaceState, err := json.Marshal(furnaceStateJSON{LastPayout: s.FurnaceLastPayout})
	if err != nil {
		return nil, fmt.Errorf("marshal furnace state: %w", err)
	}

	revenueState, err := json.Marshal(revenueStateJSON{
		StakersShare: s.RevenueStakersShare,
		FurnaceShare: s.RevenueFurnaceShare,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal revenue state: %w", err)
	}

	hash := make([]byte, len(s.StateHash))
	copy(hash, s.StateHash[:])

	return &SnapshotData{
		Sequence:        s.Sequence,
		StateHash:       hash,
		Balances:        balances,
		Supply:          s.Supply,
		Era:             s.Era,
		Units:           s.Units,
		BasketState:     basketState,
		TradeState:      tradeState,
		StakingState:    stakingState,
		FurnaceState:    furnaceState,
		RevenueState:    revenueState,
		SequenceState:   s.SequenceState,
		IdempotencyKeys: s.IdempotencyKeys,
		CreatedAt:       time.Now(),
	}, nil
}

// ToCoreState converts a loaded snapshot back into the core's typed form.
func (d *SnapshotData) ToCoreState() (*core.SnapshotState, error) {
	s := &core.SnapshotState{
		Sequence:        d.Sequence,
		Supply:          d.Supply,
		Era:             d.Era,
		Units:           d.Units,
		SequenceState:   d.SequenceState,
		IdempotencyKeys: d.IdempotencyKeys,
	}
	copy(s.StateHash[:], d.StateHash)

	s.Balances = make(map[ledger.AccountKey]fixed.Dec, len(d.Balances))
	for _, b := range d.Balances {
		key := ledger.AccountKey{Scope: ledger.AccountScope(b.Scope), Name: b.Name, Asset: b.Asset}
		s.Balances[key] = b.Balance
	}

	var bs basketStateJSON
	if err := json.Unmarshal(d.BasketState, &bs); err != nil {
		return nil, fmt.Errorf("unmarshal basket state: %w", err)
	}
	s.BasketPrime = bs.Prime
	s.BasketBackups = bs.Backups
	s.BasketLive = bs.Live
	s.BasketSwitchedAt = bs.SwitchedAt

	if len(d.TradeState) > 0 {
		if err := json.Unmarshal(d.TradeState, &s.OpenTrades); err != nil {
			return nil, fmt.Errorf("unmarshal trade state: %w", err)
		}
	}

	var ss stakingStateJSON
	if err := json.Unmarshal(d.StakingState, &ss); err != nil {
		return nil, fmt.Errorf("unmarshal staking state: %w", err)
	}
	s.StakingTotalShares = ss.TotalShares
	s.StakingTotalValue = ss.TotalValue
	s.StakingShares = ss.Shares
	s.StakingQueue = ss.Queue
	s.StakingLastPayout = ss.LastPayout

	var fs furnaceStateJSON
	if err := json.Unmarshal(d.FurnaceState, &fs); err != nil {
		return nil, fmt.Errorf("unmarshal furnace state: %w", err)
	}
	s.FurnaceLastPayout = fs.LastPayout

	var rs revenueStateJSON
	if err := json.Unmarshal(d.RevenueState, &rs); err != nil {
		return nil, fmt.Errorf("unmarshal revenue state: %w", err)
	}
	s.RevenueStakersShare = rs.StakersShare
	s.RevenueFurnaceShare = rs.FurnaceShare

	return s, nil
}

func NewSnapshotManager(db *sql.DB) *SnapshotManager {
	return &SnapshotManager{db: db}
}

// SaveSnapshot persists a snapshot to Postgres. Snapshots are taken
// periodically and verified by replaying events from the snapshot sequence
// forward before being marked usable.
func (sm *SnapshotManager) SaveSnapshot(ctx context.Context, snap *SnapshotData) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	snapshotID := uuid.New()
	sizeBytes := len(data)
	formatVersion := int32(1) // v1: JSON-encoded SnapshotData

	_, err = sm.db.ExecContext(ctx, `
		INSERT INTO event_log.snapshots
			(snapshot_id, sequence, data, state_hash, format_version, size_bytes, verified, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, FALSE, $7)
		ON CONFLICT (sequence) DO UPDATE SET data = $3, state_hash = $4, size_bytes = $6
	`, snapshotID, snap.Sequence, data, snap.StateHash, formatVersion, sizeBytes, snap.CreatedAt)

	return err
}

// LoadLatestSnapshot loads the most recent verified snapshot.
// On warm restart, load latest snapshot then replay events from
// snapshot.sequence+1. Returns nil on cold start.
func (sm *SnapshotManager) LoadLatestSnapshot(ctx context.Context) (*SnapshotData, error) {
	row := sm.db.QueryRowContext(ctx, `
		SELECT data FROM event_log.snapshots
		WHERE verified = TRUE
		ORDER BY sequence DESC
		LIMIT 1
	`)

	var data []byte
	if err := row.Scan(&data); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // No snapshot — cold start
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var snap SnapshotData
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}

	return &snap, nil
}

// MarkVerified marks a snapshot as verified after integrity check.
func (sm *SnapshotManager) MarkVerified(ctx context.Context, sequence int64) error {
	_, err := sm.db.ExecContext(ctx, `
		UPDATE event_log.snapshots SET verified = TRUE WHERE sequence = $1
	`, sequence)
	return err
}

// LoadEventsFrom loads events from a given sequence for replay. Used for
// warm restart (replay from snapshot) and cold restart (replay all).
func (sm *SnapshotManager) LoadEventsFrom(ctx context.Context, fromSequence int64, limit int) ([]EventRow, error) {
	rows, err := sm.db.QueryContext(ctx, `
		SELECT sequence, event_type, idempotency_key, account, payload,
		       state_hash, prev_hash, timestamp, source_sequence
		FROM event_log.events
		WHERE sequence >= $1
		ORDER BY sequence ASC
		LIMIT $2
	`, fromSequence, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		if err := rows.Scan(
			&e.Sequence, &e.EventType, &e.IdempotencyKey, &e.Account,
			&e.Payload, &e.StateHash, &e.PrevHash, &e.Timestamp, &e.SourceSequence,
		); err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	return events, rows.Err()
}

// GetLatestSequence returns the highest sequence in the event log.
func (sm *SnapshotManager) GetLatestSequence(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	err := sm.db.QueryRowContext(ctx, `
		SELECT MAX(sequence) FROM event_log.events
	`).Scan(&seq)
	if err != nil {
		return 0, err
	}
	if !seq.Valid {
		return 0, nil // Empty event log
	}
	return seq.Int64, nil
}
