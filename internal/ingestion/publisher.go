package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"StableCore/internal/trade"

	"github.com/nats-io/nats.go/jetstream"
)

// OutboundPublisher publishes processed events to NATS for downstream
// consumers. Outbound events are published after persistence is confirmed.
// Subjects follow the pattern: stablecore.ledger.events.{event_type}
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan PublishableEvent
}

// PublishableEvent is a processed event ready for outbound publishing.
type PublishableEvent struct {
	Sequence       int64       `json:"sequence"`
	EventType      string      `json:"event_type"`
	IdempotencyKey string      `json:"idempotency_key"`
	Account        *string     `json:"account,omitempty"`
	Payload        interface{} `json:"payload"`
	StateHash      []byte      `json:"state_hash"`
	Timestamp      time.Time   `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan PublishableEvent) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case evt, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, evt); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", evt.Sequence, err)
				// Non-fatal: downstream consumers can query the event log directly
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, evt PublishableEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	// Build subject: stablecore.ledger.events.{event_type}.{account}
	subject := fmt.Sprintf("stablecore.ledger.events.%s", evt.EventType)
	if evt.Account != nil {
		subject = fmt.Sprintf("%s.%s", subject, *evt.Account)
	}

	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound events stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "STC_LEDGER_EVENTS",
		Subjects:  []string{"stablecore.ledger.events.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream STC_LEDGER_EVENTS")
	return nil
}

// AuctionRequest is the wire form of an auction-open instruction sent to the
// trading venue whenever the core escrows funds into a new trade.
type AuctionRequest struct {
	TradeID        string    `json:"trade_id"`
	Account        string    `json:"account"`
	Sell           string    `json:"sell"`
	Buy            string    `json:"buy"`
	SellAmount     string    `json:"sell_amount"`
	MinBuyAmount   string    `json:"min_buy_amount"`
	Kind           string    `json:"kind"`
	WorstCasePrice string    `json:"worst_case_price"`
	StartPrice     string    `json:"start_price"`
	EndPrice       string    `json:"end_price"`
	OpenedAt       time.Time `json:"opened_at"`
	EndTime        time.Time `json:"end_time"`
}

// AuctionPublisher forwards trades opened by the core to the venue over
// NATS. The venue settles them back through stablecore.settlement.>.
type AuctionPublisher struct {
	js        jetstream.JetStream
	tradeChan <-chan *trade.Trade
}

func NewAuctionPublisher(js jetstream.JetStream, tradeChan <-chan *trade.Trade) *AuctionPublisher {
	return &AuctionPublisher{
		js:        js,
		tradeChan: tradeChan,
	}
}

// Run starts the auction publisher loop.
func (ap *AuctionPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case tr, ok := <-ap.tradeChan:
			if !ok {
				return nil
			}

			if err := ap.publish(ctx, tr); err != nil {
				// A request the venue never hears about strands escrow until
				// the trade expires, so failures here are loud.
				log.Printf("ERROR: auction request publish failed trade=%s: %v", tr.ID, err)
			}
		}
	}
}

func (ap *AuctionPublisher) publish(ctx context.Context, tr *trade.Trade) error {
	req := AuctionRequest{
		TradeID:        tr.ID.String(),
		Account:        tr.Account,
		Sell:           tr.Sell,
		Buy:            tr.Buy,
		SellAmount:     tr.SellAmount.String(),
		MinBuyAmount:   tr.MinBuyAmount.String(),
		Kind:           tr.Kind.String(),
		WorstCasePrice: tr.WorstCasePrice.String(),
		StartPrice:     tr.StartPrice.String(),
		EndPrice:       tr.EndPrice.String(),
		OpenedAt:       tr.OpenedAt,
		EndTime:        tr.EndTime,
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal auction request: %w", err)
	}

	subject := fmt.Sprintf("stablecore.auctions.open.%s", tr.Account)
	_, err = ap.js.Publish(ctx, subject, data)
	return err
}

// EnsureAuctionStream creates the auction requests stream.
func EnsureAuctionStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "STC_AUCTIONS",
		Subjects:  []string{"stablecore.auctions.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create auction stream: %w", err)
	}
	log.Println("INFO: ensured auction stream STC_AUCTIONS")
	return nil
}
