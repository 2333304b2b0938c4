package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"StableCore/internal/event"
	"StableCore/internal/ingestion"
)

func rawFromJSON(t *testing.T, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParsePriceUpdate(t *testing.T) {
	payload := map[string]interface{}{
		"unit":               "USDC",
		"target_per_ref":     "1.0",
		"ref_per_tok":        "1.000000000000000001",
		"feed_err":           false,
		"price_sequence":     int64(100),
		"price_timestamp_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "PriceUpdate")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pu, ok := evt.(*event.PriceUpdate)
	if !ok {
		t.Fatalf("expected *event.PriceUpdate, got %T", evt)
	}

	if pu.Unit != "USDC" {
		t.Errorf("unit: got %s, want USDC", pu.Unit)
	}
	if pu.TargetPerRef.String() != "1.000000000000000000" {
		t.Errorf("target_per_ref: got %s, want 1", pu.TargetPerRef)
	}
	if pu.RefPerTok.String() != "1.000000000000000001" {
		t.Errorf("ref_per_tok: got %s", pu.RefPerTok)
	}
	if pu.PriceSequence != 100 {
		t.Errorf("price_sequence: got %d, want 100", pu.PriceSequence)
	}
	if pu.PriceTimestamp.UnixMicro() != 1700000000000000 {
		t.Errorf("price_timestamp: got %d", pu.PriceTimestamp.UnixMicro())
	}
	if pu.EventType() != event.EventTypePriceUpdate {
		t.Errorf("event type: got %v, want PriceUpdate", pu.EventType())
	}
}

func TestParseCollateralDeposit(t *testing.T) {
	payload := map[string]interface{}{
		"transfer_id":    "550e8400-e29b-41d4-a716-446655440000",
		"to_account":     "backing",
		"asset":          "USDC",
		"amount":         "1500.25",
		"transfer_seq":   int64(7),
		"occurred_at_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "CollateralDeposit")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	cd, ok := evt.(*event.CollateralDeposit)
	if !ok {
		t.Fatalf("expected *event.CollateralDeposit, got %T", evt)
	}

	if cd.ToAccount != "backing" {
		t.Errorf("to_account: got %s, want backing", cd.ToAccount)
	}
	if cd.Asset != "USDC" {
		t.Errorf("asset: got %s, want USDC", cd.Asset)
	}
	if cd.Amount.String() != "1500.250000000000000000" {
		t.Errorf("amount: got %s, want 1500.25", cd.Amount)
	}
	if cd.TransferSeq != 7 {
		t.Errorf("transfer_seq: got %d, want 7", cd.TransferSeq)
	}
}

func TestParseTradeSettled(t *testing.T) {
	payload := map[string]interface{}{
		"trade_id":      "550e8400-e29b-41d4-a716-446655440000",
		"trade_account": "backing_trade",
		"filled":        true,
		"buy_amount":    "99.5",
		"sell_returned": "0",
		"settle_seq":    int64(3),
		"settled_at_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "TradeSettled")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	ts, ok := evt.(*event.TradeSettled)
	if !ok {
		t.Fatalf("expected *event.TradeSettled, got %T", evt)
	}

	if ts.TradeAccount != "backing_trade" {
		t.Errorf("trade_account: got %s, want backing_trade", ts.TradeAccount)
	}
	if !ts.Filled {
		t.Error("filled: got false, want true")
	}
	if ts.BuyAmount.String() != "99.500000000000000000" {
		t.Errorf("buy_amount: got %s, want 99.5", ts.BuyAmount)
	}
	if ts.EventType() != event.EventTypeTradeSettled {
		t.Errorf("event type: got %v, want TradeSettled", ts.EventType())
	}
}

func TestParseStake(t *testing.T) {
	payload := map[string]interface{}{
		"stake_id":     "660e8400-e29b-41d4-a716-446655440001",
		"holder":       "alice",
		"amount":       "250",
		"stake_seq":    int64(1),
		"staked_at_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "Stake")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	st, ok := evt.(*event.Stake)
	if !ok {
		t.Fatalf("expected *event.Stake, got %T", evt)
	}

	if st.Holder != "alice" {
		t.Errorf("holder: got %s, want alice", st.Holder)
	}
	if st.Amount.String() != "250.000000000000000000" {
		t.Errorf("amount: got %s, want 250", st.Amount)
	}
}

func TestParseRegisterCollateral(t *testing.T) {
	payload := map[string]interface{}{
		"unit":                  "cUSDC",
		"target_tag":            "USD",
		"ref_per_tok":           "1.02",
		"target_per_ref":        "1",
		"max_trade_volume":      "1000000",
		"delay_until_default_s": int64(86400),
		"gov_seq":               int64(12),
		"enacted_at_us":         int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "RegisterCollateral")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	rc, ok := evt.(*event.RegisterCollateral)
	if !ok {
		t.Fatalf("expected *event.RegisterCollateral, got %T", evt)
	}

	if rc.Unit != "cUSDC" {
		t.Errorf("unit: got %s, want cUSDC", rc.Unit)
	}
	if rc.TargetTag != "USD" {
		t.Errorf("target_tag: got %s, want USD", rc.TargetTag)
	}
	if rc.DelayUntilDefault != 24*time.Hour {
		t.Errorf("delay_until_default: got %v, want 24h", rc.DelayUntilDefault)
	}
	if rc.GovSeq != 12 {
		t.Errorf("gov_seq: got %d, want 12", rc.GovSeq)
	}
}

func TestParseSetPrimeBasket(t *testing.T) {
	payload := map[string]interface{}{
		"entries": []map[string]interface{}{
			{"unit": "cUSDC", "target_amount": "0.5"},
			{"unit": "cDAI", "target_amount": "0.5"},
		},
		"gov_seq":       int64(13),
		"enacted_at_us": int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "SetPrimeBasket")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pb, ok := evt.(*event.SetPrimeBasket)
	if !ok {
		t.Fatalf("expected *event.SetPrimeBasket, got %T", evt)
	}

	if len(pb.Entries) != 2 {
		t.Fatalf("entries: got %d, want 2", len(pb.Entries))
	}
	if pb.Entries[0].Unit != "cUSDC" {
		t.Errorf("entry 0 unit: got %s, want cUSDC", pb.Entries[0].Unit)
	}
	if pb.Entries[1].TargetAmount.String() != "0.500000000000000000" {
		t.Errorf("entry 1 target_amount: got %s, want 0.5", pb.Entries[1].TargetAmount)
	}
}

func TestParseSetBackupConfig(t *testing.T) {
	payload := map[string]interface{}{
		"target_tag":       "USD",
		"diversity_factor": 2,
		"units":            []string{"sUSDT", "cDAI", "USDP"},
		"gov_seq":          int64(14),
		"enacted_at_us":    int64(1700000000000000),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "SetBackupConfig")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	bc, ok := evt.(*event.SetBackupConfig)
	if !ok {
		t.Fatalf("expected *event.SetBackupConfig, got %T", evt)
	}

	if bc.DiversityFactor != 2 {
		t.Errorf("diversity_factor: got %d, want 2", bc.DiversityFactor)
	}
	if len(bc.Units) != 3 {
		t.Errorf("units: got %d, want 3", len(bc.Units))
	}
}

func TestParseManageTick(t *testing.T) {
	payload := map[string]interface{}{
		"tick_time_us": int64(1700000000000000),
		"tick_seq":     int64(55),
	}

	raw := rawFromJSON(t, payload)
	evt, err := ingestion.ParseRawEvent(raw, "ManageTick")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	mt, ok := evt.(*event.ManageTick)
	if !ok {
		t.Fatalf("expected *event.ManageTick, got %T", evt)
	}

	if mt.TickSeq != 55 {
		t.Errorf("tick_seq: got %d, want 55", mt.TickSeq)
	}
	if mt.TickTime.UnixMicro() != 1700000000000000 {
		t.Errorf("tick_time: got %d", mt.TickTime.UnixMicro())
	}
}

func TestParseUnknownEventType_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{}`)}
	_, err := ingestion.ParseRawEvent(raw, "NonExistentType")
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestParseInvalidJSON_Fails(t *testing.T) {
	raw := ingestion.RawEvent{Data: []byte(`{invalid json`)}
	_, err := ingestion.ParseRawEvent(raw, "TradeSettled")
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseInvalidUUID_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"trade_id":      "not-a-uuid",
		"trade_account": "backing_trade",
		"filled":        true,
		"buy_amount":    "1",
		"sell_returned": "0",
		"settle_seq":    int64(0),
		"settled_at_us": int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "TradeSettled")
	if err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}

func TestParseMalformedDecimal_Fails(t *testing.T) {
	payload := map[string]interface{}{
		"transfer_id":    "550e8400-e29b-41d4-a716-446655440000",
		"to_account":     "backing",
		"asset":          "USDC",
		"amount":         "12.34.56",
		"transfer_seq":   int64(1),
		"occurred_at_us": int64(0),
	}

	raw := rawFromJSON(t, payload)
	_, err := ingestion.ParseRawEvent(raw, "CollateralDeposit")
	if err == nil {
		t.Fatal("expected error for malformed decimal")
	}
}
