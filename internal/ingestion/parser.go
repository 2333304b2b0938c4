package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"StableCore/internal/event"
	"StableCore/internal/fixed"

	"github.com/google/uuid"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a
// typed event.Event. The ingestion shell validates, parses, and converts raw
// events before sending to the deterministic core.
func ParseRawEvent(raw RawEvent, eventType string) (event.Event, error) {
	switch eventType {
	case "PriceUpdate":
		return parsePriceUpdate(raw.Data)
	case "RefreshTick":
		return parseRefreshTick(raw.Data)
	case "ManageTick":
		return parseManageTick(raw.Data)
	case "PayoutTick":
		return parsePayoutTick(raw.Data)
	case "MeltTick":
		return parseMeltTick(raw.Data)
	case "TradeSettled":
		return parseTradeSettled(raw.Data)
	case "RewardsClaimed":
		return parseRewardsClaimed(raw.Data)
	case "CollateralDeposit":
		return parseCollateralDeposit(raw.Data)
	case "CollateralWithdraw":
		return parseCollateralWithdraw(raw.Data)
	case "SupplyUpdate":
		return parseSupplyUpdate(raw.Data)
	case "Stake":
		return parseStake(raw.Data)
	case "UnstakeInitiated":
		return parseUnstakeInitiated(raw.Data)
	case "WithdrawRequest":
		return parseWithdrawRequest(raw.Data)
	case "Seize":
		return parseSeize(raw.Data)
	case "RegisterCollateral":
		return parseRegisterCollateral(raw.Data)
	case "SetPrimeBasket":
		return parseSetPrimeBasket(raw.Data)
	case "SetBackupConfig":
		return parseSetBackupConfig(raw.Data)
	case "SetRevenueShares":
		return parseSetRevenueShares(raw.Data)
	case "SwitchBasket":
		return parseSwitchBasket(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type: %s", eventType)
	}
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS.
// Field names use snake_case to match upstream producers; decimal amounts
// travel as 18-decimal strings.

func parseDec(field, s string) (fixed.Dec, error) {
	d, err := fixed.FromString(s)
	if err != nil {
		return fixed.Dec{}, fmt.Errorf("parse %s %q: %w", field, s, err)
	}
	return d, nil
}

type priceUpdateJSON struct {
	Unit           string `json:"unit"`
	TargetPerRef   string `json:"target_per_ref"`
	RefPerTok      string `json:"ref_per_tok"`
	FeedErr        bool   `json:"feed_err"`
	PriceSequence  int64  `json:"price_sequence"`
	PriceTimestamp int64  `json:"price_timestamp_us"`
}

func parsePriceUpdate(data []byte) (*event.PriceUpdate, error) {
	var j priceUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PriceUpdate: %w", err)
	}
	targetPerRef, err := parseDec("target_per_ref", j.TargetPerRef)
	if err != nil {
		return nil, err
	}
	refPerTok, err := parseDec("ref_per_tok", j.RefPerTok)
	if err != nil {
		return nil, err
	}
	return &event.PriceUpdate{
		Unit:           j.Unit,
		TargetPerRef:   targetPerRef,
		RefPerTok:      refPerTok,
		FeedErr:        j.FeedErr,
		PriceSequence:  j.PriceSequence,
		PriceTimestamp: time.UnixMicro(j.PriceTimestamp),
	}, nil
}

type tickJSON struct {
	TickTimeUs int64 `json:"tick_time_us"`
	TickSeq    int64 `json:"tick_seq"`
}

func parseRefreshTick(data []byte) (*event.RefreshTick, error) {
	var j tickJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RefreshTick: %w", err)
	}
	return &event.RefreshTick{TickTime: time.UnixMicro(j.TickTimeUs), TickSeq: j.TickSeq}, nil
}

func parseManageTick(data []byte) (*event.ManageTick, error) {
	var j tickJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse ManageTick: %w", err)
	}
	return &event.ManageTick{TickTime: time.UnixMicro(j.TickTimeUs), TickSeq: j.TickSeq}, nil
}

func parsePayoutTick(data []byte) (*event.PayoutTick, error) {
	var j tickJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse PayoutTick: %w", err)
	}
	return &event.PayoutTick{TickTime: time.UnixMicro(j.TickTimeUs), TickSeq: j.TickSeq}, nil
}

func parseMeltTick(data []byte) (*event.MeltTick, error) {
	var j tickJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse MeltTick: %w", err)
	}
	return &event.MeltTick{TickTime: time.UnixMicro(j.TickTimeUs), TickSeq: j.TickSeq}, nil
}

type tradeSettledJSON struct {
	TradeID      string `json:"trade_id"`
	TradeAccount string `json:"trade_account"`
	Filled       bool   `json:"filled"`
	BuyAmount    string `json:"buy_amount"`
	SellReturned string `json:"sell_returned"`
	SettleSeq    int64  `json:"settle_seq"`
	SettledAtUs  int64  `json:"settled_at_us"`
}

func parseTradeSettled(data []byte) (*event.TradeSettled, error) {
	var j tradeSettledJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse TradeSettled: %w", err)
	}
	tradeID, err := uuid.Parse(j.TradeID)
	if err != nil {
		return nil, fmt.Errorf("parse trade_id: %w", err)
	}
	buyAmount, err := parseDec("buy_amount", j.BuyAmount)
	if err != nil {
		return nil, err
	}
	sellReturned, err := parseDec("sell_returned", j.SellReturned)
	if err != nil {
		return nil, err
	}
	return &event.TradeSettled{
		TradeID:      tradeID,
		TradeAccount: j.TradeAccount,
		Filled:       j.Filled,
		BuyAmount:    buyAmount,
		SellReturned: sellReturned,
		SettleSeq:    j.SettleSeq,
		SettledAt:    time.UnixMicro(j.SettledAtUs),
	}, nil
}

type rewardsClaimedJSON struct {
	ClaimID     string `json:"claim_id"`
	Unit        string `json:"unit"`
	RewardAsset string `json:"reward_asset"`
	Amount      string `json:"amount"`
	ClaimSeq    int64  `json:"claim_seq"`
	ClaimedAtUs int64  `json:"claimed_at_us"`
}

func parseRewardsClaimed(data []byte) (*event.RewardsClaimed, error) {
	var j rewardsClaimedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RewardsClaimed: %w", err)
	}
	claimID, err := uuid.Parse(j.ClaimID)
	if err != nil {
		return nil, fmt.Errorf("parse claim_id: %w", err)
	}
	amount, err := parseDec("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &event.RewardsClaimed{
		ClaimID:     claimID,
		Unit:        j.Unit,
		RewardAsset: j.RewardAsset,
		Amount:      amount,
		ClaimSeq:    j.ClaimSeq,
		ClaimedAt:   time.UnixMicro(j.ClaimedAtUs),
	}, nil
}

type transferJSON struct {
	TransferID   string `json:"transfer_id"`
	ToAccount    string `json:"to_account,omitempty"`
	FromAccount  string `json:"from_account,omitempty"`
	Asset        string `json:"asset"`
	Amount       string `json:"amount"`
	TransferSeq  int64  `json:"transfer_seq"`
	OccurredAtUs int64  `json:"occurred_at_us"`
}

func parseCollateralDeposit(data []byte) (*event.CollateralDeposit, error) {
	var j transferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CollateralDeposit: %w", err)
	}
	transferID, err := uuid.Parse(j.TransferID)
	if err != nil {
		return nil, fmt.Errorf("parse transfer_id: %w", err)
	}
	amount, err := parseDec("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &event.CollateralDeposit{
		TransferID:  transferID,
		ToAccount:   j.ToAccount,
		Asset:       j.Asset,
		Amount:      amount,
		TransferSeq: j.TransferSeq,
		OccurredAt:  time.UnixMicro(j.OccurredAtUs),
	}, nil
}

func parseCollateralWithdraw(data []byte) (*event.CollateralWithdraw, error) {
	var j transferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CollateralWithdraw: %w", err)
	}
	transferID, err := uuid.Parse(j.TransferID)
	if err != nil {
		return nil, fmt.Errorf("parse transfer_id: %w", err)
	}
	amount, err := parseDec("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &event.CollateralWithdraw{
		TransferID:  transferID,
		FromAccount: j.FromAccount,
		Asset:       j.Asset,
		Amount:      amount,
		TransferSeq: j.TransferSeq,
		OccurredAt:  time.UnixMicro(j.OccurredAtUs),
	}, nil
}

type supplyUpdateJSON struct {
	TotalSupply  string `json:"total_supply"`
	SupplySeq    int64  `json:"supply_seq"`
	OccurredAtUs int64  `json:"occurred_at_us"`
}

func parseSupplyUpdate(data []byte) (*event.SupplyUpdate, error) {
	var j supplyUpdateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SupplyUpdate: %w", err)
	}
	total, err := parseDec("total_supply", j.TotalSupply)
	if err != nil {
		return nil, err
	}
	return &event.SupplyUpdate{
		TotalSupply: total,
		SupplySeq:   j.SupplySeq,
		OccurredAt:  time.UnixMicro(j.OccurredAtUs),
	}, nil
}

type stakeJSON struct {
	StakeID    string `json:"stake_id"`
	Holder     string `json:"holder"`
	Amount     string `json:"amount"`
	StakeSeq   int64  `json:"stake_seq"`
	StakedAtUs int64  `json:"staked_at_us"`
}

func parseStake(data []byte) (*event.Stake, error) {
	var j stakeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Stake: %w", err)
	}
	stakeID, err := uuid.Parse(j.StakeID)
	if err != nil {
		return nil, fmt.Errorf("parse stake_id: %w", err)
	}
	amount, err := parseDec("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &event.Stake{
		StakeID:  stakeID,
		Holder:   j.Holder,
		Amount:   amount,
		StakeSeq: j.StakeSeq,
		StakedAt: time.UnixMicro(j.StakedAtUs),
	}, nil
}

type unstakeJSON struct {
	RequestID     string `json:"request_id"`
	Holder        string `json:"holder"`
	Shares        string `json:"shares"`
	RequestSeq    int64  `json:"request_seq"`
	RequestedAtUs int64  `json:"requested_at_us"`
}

func parseUnstakeInitiated(data []byte) (*event.UnstakeInitiated, error) {
	var j unstakeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse UnstakeInitiated: %w", err)
	}
	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	shares, err := parseDec("shares", j.Shares)
	if err != nil {
		return nil, err
	}
	return &event.UnstakeInitiated{
		RequestID:   requestID,
		Holder:      j.Holder,
		Shares:      shares,
		RequestSeq:  j.RequestSeq,
		RequestedAt: time.UnixMicro(j.RequestedAtUs),
	}, nil
}

type withdrawRequestJSON struct {
	WithdrawalID  string `json:"withdrawal_id"`
	Holder        string `json:"holder"`
	RequestSeq    int64  `json:"request_seq"`
	RequestedAtUs int64  `json:"requested_at_us"`
}

func parseWithdrawRequest(data []byte) (*event.WithdrawRequest, error) {
	var j withdrawRequestJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse WithdrawRequest: %w", err)
	}
	wdID, err := uuid.Parse(j.WithdrawalID)
	if err != nil {
		return nil, fmt.Errorf("parse withdrawal_id: %w", err)
	}
	return &event.WithdrawRequest{
		WithdrawalID: wdID,
		Holder:       j.Holder,
		RequestSeq:   j.RequestSeq,
		RequestedAt:  time.UnixMicro(j.RequestedAtUs),
	}, nil
}

type seizeJSON struct {
	SeizeID    string `json:"seize_id"`
	Amount     string `json:"amount"`
	SeizeSeq   int64  `json:"seize_seq"`
	SeizedAtUs int64  `json:"seized_at_us"`
}

func parseSeize(data []byte) (*event.Seize, error) {
	var j seizeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse Seize: %w", err)
	}
	seizeID, err := uuid.Parse(j.SeizeID)
	if err != nil {
		return nil, fmt.Errorf("parse seize_id: %w", err)
	}
	amount, err := parseDec("amount", j.Amount)
	if err != nil {
		return nil, err
	}
	return &event.Seize{
		SeizeID:  seizeID,
		Amount:   amount,
		SeizeSeq: j.SeizeSeq,
		SeizedAt: time.UnixMicro(j.SeizedAtUs),
	}, nil
}

type registerCollateralJSON struct {
	Unit               string `json:"unit"`
	TargetTag          string `json:"target_tag"`
	RefPerTok          string `json:"ref_per_tok"`
	TargetPerRef       string `json:"target_per_ref"`
	MaxTradeVolume     string `json:"max_trade_volume"`
	DelayUntilDefaultS int64  `json:"delay_until_default_s"`
	GovSeq             int64  `json:"gov_seq"`
	EnactedAtUs        int64  `json:"enacted_at_us"`
}

func parseRegisterCollateral(data []byte) (*event.RegisterCollateral, error) {
	var j registerCollateralJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RegisterCollateral: %w", err)
	}
	refPerTok, err := parseDec("ref_per_tok", j.RefPerTok)
	if err != nil {
		return nil, err
	}
	targetPerRef, err := parseDec("target_per_ref", j.TargetPerRef)
	if err != nil {
		return nil, err
	}
	maxVol, err := parseDec("max_trade_volume", j.MaxTradeVolume)
	if err != nil {
		return nil, err
	}
	return &event.RegisterCollateral{
		Unit:              j.Unit,
		TargetTag:         j.TargetTag,
		RefPerTok:         refPerTok,
		TargetPerRef:      targetPerRef,
		MaxTradeVolume:    maxVol,
		DelayUntilDefault: time.Duration(j.DelayUntilDefaultS) * time.Second,
		GovSeq:            j.GovSeq,
		EnactedAt:         time.UnixMicro(j.EnactedAtUs),
	}, nil
}

type basketEntryJSON struct {
	Unit         string `json:"unit"`
	TargetAmount string `json:"target_amount"`
}

type setPrimeBasketJSON struct {
	Entries     []basketEntryJSON `json:"entries"`
	GovSeq      int64             `json:"gov_seq"`
	EnactedAtUs int64             `json:"enacted_at_us"`
}

func parseSetPrimeBasket(data []byte) (*event.SetPrimeBasket, error) {
	var j setPrimeBasketJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetPrimeBasket: %w", err)
	}
	entries := make([]event.BasketEntry, 0, len(j.Entries))
	for _, e := range j.Entries {
		amt, err := parseDec("target_amount", e.TargetAmount)
		if err != nil {
			return nil, err
		}
		entries = append(entries, event.BasketEntry{Unit: e.Unit, TargetAmount: amt})
	}
	return &event.SetPrimeBasket{
		Entries:   entries,
		GovSeq:    j.GovSeq,
		EnactedAt: time.UnixMicro(j.EnactedAtUs),
	}, nil
}

type setBackupConfigJSON struct {
	TargetTag       string   `json:"target_tag"`
	DiversityFactor int      `json:"diversity_factor"`
	Units           []string `json:"units"`
	GovSeq          int64    `json:"gov_seq"`
	EnactedAtUs     int64    `json:"enacted_at_us"`
}

func parseSetBackupConfig(data []byte) (*event.SetBackupConfig, error) {
	var j setBackupConfigJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetBackupConfig: %w", err)
	}
	return &event.SetBackupConfig{
		TargetTag:       j.TargetTag,
		DiversityFactor: j.DiversityFactor,
		Units:           j.Units,
		GovSeq:          j.GovSeq,
		EnactedAt:       time.UnixMicro(j.EnactedAtUs),
	}, nil
}

type setRevenueSharesJSON struct {
	StakersShare string `json:"stakers_share"`
	FurnaceShare string `json:"furnace_share"`
	GovSeq       int64  `json:"gov_seq"`
	EnactedAtUs  int64  `json:"enacted_at_us"`
}

func parseSetRevenueShares(data []byte) (*event.SetRevenueShares, error) {
	var j setRevenueSharesJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SetRevenueShares: %w", err)
	}
	stakers, err := parseDec("stakers_share", j.StakersShare)
	if err != nil {
		return nil, err
	}
	furnace, err := parseDec("furnace_share", j.FurnaceShare)
	if err != nil {
		return nil, err
	}
	return &event.SetRevenueShares{
		StakersShare: stakers,
		FurnaceShare: furnace,
		GovSeq:       j.GovSeq,
		EnactedAt:    time.UnixMicro(j.EnactedAtUs),
	}, nil
}

type switchBasketJSON struct {
	GovSeq      int64 `json:"gov_seq"`
	EnactedAtUs int64 `json:"enacted_at_us"`
}

func parseSwitchBasket(data []byte) (*event.SwitchBasket, error) {
	var j switchBasketJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse SwitchBasket: %w", err)
	}
	return &event.SwitchBasket{
		GovSeq:    j.GovSeq,
		EnactedAt: time.UnixMicro(j.EnactedAtUs),
	}, nil
}
