package ingestion

import (
	"context"
	"fmt"
	"time"

	"StableCore/internal/event"
	"StableCore/internal/fixed"

	"github.com/google/uuid"
)

// GRPCIngestService provides admin/manual event injection via gRPC.
// This surface exists for operator intervention and backfills, not for
// high-throughput ingestion (use NATS for that).
type GRPCIngestService struct {
	eventChan chan<- event.Event
}

func NewGRPCIngestService(eventChan chan<- event.Event) *GRPCIngestService {
	return &GRPCIngestService{eventChan: eventChan}
}

// InjectDeposit manually injects a CollateralDeposit event.
func (s *GRPCIngestService) InjectDeposit(
	ctx context.Context,
	toAccount string,
	asset string,
	amount fixed.Dec,
) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}

	evt := &event.CollateralDeposit{
		TransferID:  uuid.New(),
		ToAccount:   toAccount,
		Asset:       asset,
		Amount:      amount,
		TransferSeq: time.Now().UnixMicro(), // Admin-injected: use timestamp as sequence
		OccurredAt:  time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectWithdraw manually injects a CollateralWithdraw event.
func (s *GRPCIngestService) InjectWithdraw(
	ctx context.Context,
	fromAccount string,
	asset string,
	amount fixed.Dec,
) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}

	evt := &event.CollateralWithdraw{
		TransferID:  uuid.New(),
		FromAccount: fromAccount,
		Asset:       asset,
		Amount:      amount,
		TransferSeq: time.Now().UnixMicro(),
		OccurredAt:  time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectPrice manually injects a PriceUpdate event.
func (s *GRPCIngestService) InjectPrice(
	ctx context.Context,
	unit string,
	targetPerRef fixed.Dec,
	refPerTok fixed.Dec,
	priceSequence int64,
) error {
	if !targetPerRef.IsPositive() || !refPerTok.IsPositive() {
		return fmt.Errorf("prices must be positive")
	}

	evt := &event.PriceUpdate{
		Unit:           unit,
		TargetPerRef:   targetPerRef,
		RefPerTok:      refPerTok,
		PriceSequence:  priceSequence,
		PriceTimestamp: time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectSeize manually injects a Seize event. Seizure is an operator
// action: it moves staked insurance collateral into backing after a
// shortfall.
func (s *GRPCIngestService) InjectSeize(
	ctx context.Context,
	amount fixed.Dec,
) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}

	evt := &event.Seize{
		SeizeID:  uuid.New(),
		Amount:   amount,
		SeizeSeq: time.Now().UnixMicro(),
		SeizedAt: time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InjectBasketSwitch manually injects a SwitchBasket event.
func (s *GRPCIngestService) InjectBasketSwitch(
	ctx context.Context,
	govSeq int64,
) error {
	evt := &event.SwitchBasket{
		GovSeq:    govSeq,
		EnactedAt: time.Now(),
	}

	select {
	case s.eventChan <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
