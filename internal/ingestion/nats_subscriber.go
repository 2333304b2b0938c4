package ingestion

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// NATSSubscriber subscribes to NATS JetStream subjects and feeds events
// into the deterministic core via the eventChan. NATS JetStream is the
// primary high-throughput ingestion surface; each subject maps to one
// event type.
type NATSSubscriber struct {
	js        jetstream.JetStream
	eventChan chan<- RawEvent
	consumers []jetstream.ConsumeContext
}

// RawEvent is the parsed-but-untyped event from NATS, ready for the shell
// to validate and convert into a typed event.Event before sending to the core.
type RawEvent struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after successful processing
	NakFunc   func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps NATS subjects to event types.
type SubjectConfig struct {
	Subject      string
	EventType    string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns the standard subject configuration.
// Each event type has its own subject for independent scaling.
func DefaultSubjects() []SubjectConfig {
	return []SubjectConfig{
		{Subject: "stablecore.prices.>", EventType: "PriceUpdate", ConsumerName: "core-prices", StreamName: "STC_PRICES"},
		{Subject: "stablecore.transfers.deposit.>", EventType: "CollateralDeposit", ConsumerName: "core-deposits", StreamName: "STC_TRANSFERS"},
		{Subject: "stablecore.transfers.withdraw.>", EventType: "CollateralWithdraw", ConsumerName: "core-withdrawals", StreamName: "STC_TRANSFERS"},
		{Subject: "stablecore.supply.>", EventType: "SupplyUpdate", ConsumerName: "core-supply", StreamName: "STC_TRANSFERS"},
		{Subject: "stablecore.settlement.>", EventType: "TradeSettled", ConsumerName: "core-settlement", StreamName: "STC_SETTLEMENT"},
		{Subject: "stablecore.rewards.>", EventType: "RewardsClaimed", ConsumerName: "core-rewards", StreamName: "STC_REWARDS"},
		{Subject: "stablecore.staking.stake.>", EventType: "Stake", ConsumerName: "core-stake", StreamName: "STC_STAKING"},
		{Subject: "stablecore.staking.unstake.>", EventType: "UnstakeInitiated", ConsumerName: "core-unstake", StreamName: "STC_STAKING"},
		{Subject: "stablecore.staking.withdraw.>", EventType: "WithdrawRequest", ConsumerName: "core-staking-wd", StreamName: "STC_STAKING"},
		{Subject: "stablecore.staking.seize.>", EventType: "Seize", ConsumerName: "core-seize", StreamName: "STC_STAKING"},
		{Subject: "stablecore.governance.register.>", EventType: "RegisterCollateral", ConsumerName: "core-gov-register", StreamName: "STC_GOVERNANCE"},
		{Subject: "stablecore.governance.prime.>", EventType: "SetPrimeBasket", ConsumerName: "core-gov-prime", StreamName: "STC_GOVERNANCE"},
		{Subject: "stablecore.governance.backup.>", EventType: "SetBackupConfig", ConsumerName: "core-gov-backup", StreamName: "STC_GOVERNANCE"},
		{Subject: "stablecore.governance.shares.>", EventType: "SetRevenueShares", ConsumerName: "core-gov-shares", StreamName: "STC_GOVERNANCE"},
		{Subject: "stablecore.governance.switch.>", EventType: "SwitchBasket", ConsumerName: "core-gov-switch", StreamName: "STC_GOVERNANCE"},
		{Subject: "stablecore.ticks.refresh.>", EventType: "RefreshTick", ConsumerName: "core-tick-refresh", StreamName: "STC_TICKS"},
		{Subject: "stablecore.ticks.manage.>", EventType: "ManageTick", ConsumerName: "core-tick-manage", StreamName: "STC_TICKS"},
		{Subject: "stablecore.ticks.payout.>", EventType: "PayoutTick", ConsumerName: "core-tick-payout", StreamName: "STC_TICKS"},
		{Subject: "stablecore.ticks.melt.>", EventType: "MeltTick", ConsumerName: "core-tick-melt", StreamName: "STC_TICKS"},
	}
}

func NewNATSSubscriber(js jetstream.JetStream, eventChan chan<- RawEvent) *NATSSubscriber {
	return &NATSSubscriber{
		js:        js,
		eventChan: eventChan,
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawEvent{
				Subject:   msg.Subject(),
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { msg.Ack() },
				NakFunc:   func() { msg.Nak() },
			}

			select {
			case ns.eventChan <- raw:
				// Successfully queued for processing
			case <-ctx.Done():
				msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		log.Printf("INFO: subscribed to %s (consumer=%s)", cfg.Subject, cfg.ConsumerName)
	}

	return nil
}

// EnsureStreams creates the required JetStream streams if they don't exist.
// Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      "STC_PRICES",
			Subjects:  []string{"stablecore.prices.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "STC_TRANSFERS",
			Subjects:  []string{"stablecore.transfers.>", "stablecore.supply.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "STC_SETTLEMENT",
			Subjects:  []string{"stablecore.settlement.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "STC_REWARDS",
			Subjects:  []string{"stablecore.rewards.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "STC_STAKING",
			Subjects:  []string{"stablecore.staking.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "STC_GOVERNANCE",
			Subjects:  []string{"stablecore.governance.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:      "STC_TICKS",
			Subjects:  []string{"stablecore.ticks.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
	}

	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		log.Printf("INFO: ensured stream %s", cfg.Name)
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	log.Println("INFO: NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("WARN: NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Println("INFO: NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
