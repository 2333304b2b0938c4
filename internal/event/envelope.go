package event

import (
	"time"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypePriceUpdate
	EventTypeRefreshTick
	EventTypeManageTick
	EventTypePayoutTick
	EventTypeMeltTick
	EventTypeTradeSettled
	EventTypeRewardsClaimed
	EventTypeCollateralDeposit
	EventTypeCollateralWithdraw
	EventTypeSupplyUpdate
	EventTypeStake
	EventTypeUnstakeInitiated
	EventTypeWithdrawRequest
	EventTypeSeize
	EventTypeRegisterCollateral
	EventTypeSetPrimeBasket
	EventTypeSetBackupConfig
	EventTypeSetRevenueShares
	EventTypeSwitchBasket
)

// Envelope wraps every event in the log
type Envelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Event type discriminator
	EventType EventType

	// Trading-account or holder context (nullable for global events)
	Account *string

	// Versioned input timestamp (NOT wall-clock)
	Timestamp time.Time

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded event-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// Account returns the trading-account or holder context (nil for global)
	Account() *string

	// SourceSequence returns upstream ordering key
	SourceSequence() int64

	// Timestamp returns the versioned input time. The core never reads the
	// wall clock; every "now" comparison uses this.
	Timestamp() time.Time
}

func (et EventType) String() string {
	switch et {
	case EventTypePriceUpdate:
		return "PriceUpdate"
	case EventTypeRefreshTick:
		return "RefreshTick"
	case EventTypeManageTick:
		return "ManageTick"
	case EventTypePayoutTick:
		return "PayoutTick"
	case EventTypeMeltTick:
		return "MeltTick"
	case EventTypeTradeSettled:
		return "TradeSettled"
	case EventTypeRewardsClaimed:
		return "RewardsClaimed"
	case EventTypeCollateralDeposit:
		return "CollateralDeposit"
	case EventTypeCollateralWithdraw:
		return "CollateralWithdraw"
	case EventTypeSupplyUpdate:
		return "SupplyUpdate"
	case EventTypeStake:
		return "Stake"
	case EventTypeUnstakeInitiated:
		return "UnstakeInitiated"
	case EventTypeWithdrawRequest:
		return "WithdrawRequest"
	case EventTypeSeize:
		return "Seize"
	case EventTypeRegisterCollateral:
		return "RegisterCollateral"
	case EventTypeSetPrimeBasket:
		return "SetPrimeBasket"
	case EventTypeSetBackupConfig:
		return "SetBackupConfig"
	case EventTypeSetRevenueShares:
		return "SetRevenueShares"
	case EventTypeSwitchBasket:
		return "SwitchBasket"
	default:
		return "Unknown"
	}
}
