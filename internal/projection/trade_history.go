package projection

import (
	"sync"

	"github.com/google/uuid"

	"StableCore/internal/ledger"
)

// TradeHistoryEntry records one settled auction for query consumers.
// BuyAmount and SellReturned are taken from the settlement journals, so
// the entry reflects what the ledger actually booked.
type TradeHistoryEntry struct {
	TradeID        uuid.UUID
	Account        string
	BuyAsset       string
	BuyAmount      string
	ReturnedAsset  string
	ReturnedAmount string
	Outcome        string // "filled", "partial", "expired"
	Sequence       int64
	Timestamp      int64
}

// TradeHistoryProjection maintains queryable settlement history. Unlike the
// balance projection it is held in memory and rebuilt on restart by the
// event replay feeding the projection channel.
type TradeHistoryProjection struct {
	mu      sync.RWMutex
	entries []TradeHistoryEntry
}

func NewTradeHistoryProjection() *TradeHistoryProjection {
	return &TradeHistoryProjection{
		entries: make([]TradeHistoryEntry, 0),
	}
}

// Record extracts a settlement entry from a processed TradeSettled event.
// Other event types are ignored.
func (p *TradeHistoryProjection) Record(output ProjectionOutput) {
	if output.EventType != "TradeSettled" {
		return
	}

	// The idempotency key of a settlement is the trade ID.
	tradeID, err := uuid.Parse(output.IdempotencyKey)
	if err != nil {
		return
	}

	entry := TradeHistoryEntry{
		TradeID:   tradeID,
		Sequence:  output.Sequence,
		Timestamp: output.Timestamp,
	}
	if output.Account != nil {
		entry.Account = *output.Account
	}

	var filled, returned bool
	for _, j := range output.JournalEntries {
		switch j.JournalType {
		case int32(ledger.JournalTypeTradeFill):
			entry.BuyAsset = j.Asset
			entry.BuyAmount = j.Amount
			filled = true
		case int32(ledger.JournalTypeTradeReturn):
			entry.ReturnedAsset = j.Asset
			entry.ReturnedAmount = j.Amount
			returned = true
		}
	}

	switch {
	case filled && returned:
		entry.Outcome = "partial"
	case filled:
		entry.Outcome = "filled"
	default:
		entry.Outcome = "expired"
	}

	p.mu.Lock()
	p.entries = append(p.entries, entry)
	p.mu.Unlock()
}

// QueryByAccount returns settlement history for a trading account,
// newest first.
func (p *TradeHistoryProjection) QueryByAccount(account string, limit int) []TradeHistoryEntry {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]TradeHistoryEntry, 0)
	for i := len(p.entries) - 1; i >= 0 && len(result) < limit; i-- {
		if p.entries[i].Account == account {
			result = append(result, p.entries[i])
		}
	}
	return result
}
