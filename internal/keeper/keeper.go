package keeper

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"StableCore/internal/observability"
)

// Keeper emits the periodic tick events that drive collateral refresh,
// rebalancing, reward payout, and melting. Ticks travel through NATS like
// every other event, so replay and idempotency cover them too.
//
// Tick sequences are wall-clock derived (unix seconds) rather than counted,
// so a keeper restart never replays an already-consumed tick sequence.
type Keeper struct {
	cron    *cron.Cron
	js      jetstream.JetStream
	ctx     context.Context
	log     zerolog.Logger
	running atomic.Bool
}

type tickPayload struct {
	TickTimeUs int64 `json:"tick_time_us"`
	TickSeq    int64 `json:"tick_seq"`
}

// Schedule holds the cron expressions for each tick kind. Expressions use
// the six-field form with seconds.
type Schedule struct {
	Refresh string // collateral status refresh
	Manage  string // rebalance + revenue sweep
	Payout  string // staking reward release
	Melt    string // furnace melt
}

// DefaultSchedule refreshes every 15s, manages every minute, and releases
// rewards/melts every 5 minutes.
func DefaultSchedule() Schedule {
	return Schedule{
		Refresh: "*/15 * * * * *",
		Manage:  "0 * * * * *",
		Payout:  "0 */5 * * * *",
		Melt:    "0 */5 * * * *",
	}
}

func New(ctx context.Context, js jetstream.JetStream) *Keeper {
	return &Keeper{
		cron: cron.New(cron.WithSeconds()),
		js:   js,
		ctx:  ctx,
		log:  observability.NewLogger("keeper"),
	}
}

// Register wires all tick jobs onto the cron schedule.
func (k *Keeper) Register(sched Schedule) error {
	jobs := []struct {
		expr    string
		subject string
		name    string
	}{
		{sched.Refresh, "stablecore.ticks.refresh.keeper", "refresh"},
		{sched.Manage, "stablecore.ticks.manage.keeper", "manage"},
		{sched.Payout, "stablecore.ticks.payout.keeper", "payout"},
		{sched.Melt, "stablecore.ticks.melt.keeper", "melt"},
	}

	for _, j := range jobs {
		subject := j.subject
		name := j.name
		if _, err := k.cron.AddFunc(j.expr, func() {
			k.publishTick(subject, name)
		}); err != nil {
			return fmt.Errorf("register %s tick: %w", name, err)
		}
	}
	return nil
}

// Start starts the cron scheduler.
func (k *Keeper) Start() {
	k.running.Store(true)
	k.cron.Start()
	k.log.Info().Msg("keeper started")
}

// Stop stops the cron scheduler gracefully.
func (k *Keeper) Stop() {
	k.running.Store(false)
	k.cron.Stop()
	k.log.Info().Msg("keeper stopped")
}

func (k *Keeper) publishTick(subject, name string) {
	if !k.running.Load() {
		return
	}

	now := time.Now()
	payload := tickPayload{
		TickTimeUs: now.UnixMicro(),
		TickSeq:    now.Unix(),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		k.log.Error().Err(err).Str("tick", name).Msg("marshal tick")
		return
	}

	ctx, cancel := context.WithTimeout(k.ctx, 5*time.Second)
	defer cancel()

	if _, err := k.js.Publish(ctx, subject, data); err != nil {
		// A missed tick is caught up by the next one; never blocks the core.
		k.log.Warn().Err(err).Str("tick", name).Msg("publish tick")
	}
}
