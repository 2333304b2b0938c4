package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"StableCore/internal/backing"
	"StableCore/internal/basket"
	"StableCore/internal/collateral"
	"StableCore/internal/event"
	"StableCore/internal/fixed"
	"StableCore/internal/furnace"
	"StableCore/internal/ledger"
	"StableCore/internal/observability"
	"StableCore/internal/params"
	"StableCore/internal/revenue"
	"StableCore/internal/staking"
	"StableCore/internal/trade"
)

// Engine is the single-threaded event processor
type Engine struct {
	sequence          int64
	hasher            *StateHasher
	book              *ledger.Book
	validator         *ledger.InvariantValidator
	registry          *collateral.Registry
	basket            *basket.Handler
	trades            *trade.Manager
	backing           *backing.Manager
	insrTrader        *revenue.Trader
	svtTrader         *revenue.Trader
	distributor       *revenue.Distributor
	pool              *staking.Pool
	furnace           *furnace.Furnace
	prm               *params.Protocol
	supply            fixed.Dec
	idempotency       *IdempotencyChecker
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
	requestChan    chan<- *trade.Trade
}

type CoreOutput struct {
	Envelope   *event.Envelope
	Batch      *ledger.Batch
	StateDelta []byte
}

func NewEngine(
	startSequence int64,
	genesis time.Time,
	prm *params.Protocol,
	persistChan, projectionChan chan<- CoreOutput,
	requestChan chan<- *trade.Trade,
	dbChecker DBIdempotencyChecker,
	metrics *observability.Metrics,
) *Engine {
	book := ledger.NewBook()
	validator := ledger.NewInvariantValidator(book)
	registry := collateral.NewRegistry(prm.OracleTimeout, prm.DefaultTolerance)
	basketHandler := basket.NewHandler(registry)
	trades := trade.NewManager()

	return &Engine{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		book:              book,
		validator:         validator,
		registry:          registry,
		basket:            basketHandler,
		trades:            trades,
		backing:           backing.NewManager(registry, basketHandler, book, trades, prm),
		insrTrader:        revenue.NewTrader(ledger.AccountInsuranceTrade, ledger.AssetInsurance, registry, book, trades, prm),
		svtTrader:         revenue.NewTrader(ledger.AccountProtocolTrade, ledger.AssetProtocol, registry, book, trades, prm),
		distributor:       revenue.NewDistributor(prm),
		pool:              staking.NewPool(prm, genesis),
		furnace:           furnace.New(prm, genesis),
		prm:               prm,
		supply:            fixed.Zero(),
		idempotency:       NewIdempotencyChecker(1_000_000, dbChecker),
		sequenceValidator: NewSequenceValidator(),
		metrics:           metrics,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
		requestChan:       requestChan,
	}
}

// ProcessEvent is the main processing pipeline
func (c *Engine) ProcessEvent(evt event.Event) error {
	start := time.Now()
	eventType := evt.EventType().String()
	idempotencyKey := evt.IdempotencyKey()

	// Step 1: Idempotency check (two-tier)
	isDuplicate := c.idempotency.IsDuplicate(eventType, idempotencyKey)

	// Step 2: Sequence validation. Price feeds and keeper ticks tolerate
	// gaps; everything else must arrive densely ordered within its
	// partition.
	if priceEvt, ok := evt.(*event.PriceUpdate); ok {
		if err := c.sequenceValidator.ValidatePriceSequence(priceEvt.Unit, priceEvt.PriceSequence); err != nil {
			return err
		}
	} else if isTick(evt) {
		if stale := c.sequenceValidator.ValidateTickSequence(c.partition(evt), evt.SourceSequence()); stale {
			if c.metrics != nil {
				c.metrics.CoreEventsRejected.WithLabelValues(eventType, "stale_tick").Inc()
			}
			return nil
		}
	} else {
		if err := c.sequenceValidator.ValidateSequence(c.partition(evt), evt.SourceSequence(), idempotencyKey, isDuplicate); err != nil {
			return fmt.Errorf("sequence validation failed: %w", err)
		}
	}

	if isDuplicate {
		if c.metrics != nil {
			c.metrics.CoreEventsRejected.WithLabelValues(eventType, "duplicate").Inc()
		}
		return nil
	}

	// Step 3: Dispatch. A manage tick can move value through several
	// accounts and produces one batch per mover.
	var batches []*ledger.Batch
	var opened []*trade.Trade
	var err error

	if manageEvt, ok := evt.(*event.ManageTick); ok {
		batches, opened, err = c.handleManageTick(manageEvt)
		if err != nil {
			return fmt.Errorf("manage failed: %w", err)
		}
	} else {
		batch, dispatchErr := c.dispatchEvent(evt)
		if dispatchErr != nil {
			return fmt.Errorf("dispatch failed: %w", dispatchErr)
		}
		batches = []*ledger.Batch{batch}
	}

	// Steps 4-9: validate, apply, hash, envelope each batch.
	outputs := make([]CoreOutput, 0, len(batches))
	payload, _ := json.Marshal(evt)

	for i, batch := range batches {
		// Empty batches still get an envelope in the event log
		// (state-only events like price updates and governance).
		if len(batch.Journals) > 0 {
			if err := c.validator.ValidateBatchBalance(batch); err != nil {
				panic(fmt.Sprintf("FATAL: unbalanced batch: %v", err))
			}
			if err := c.book.ApplyBatch(batch); err != nil {
				return fmt.Errorf("apply batch failed: %w", err)
			}
		}

		// ComputeHash advances the chain tip, so the parent link must be
		// captured first.
		stateDigest := c.computeStateDigest(batch)
		prevHash := c.hasher.GetPrevHash()
		stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)

		// A multi-batch event writes several rows under one source key;
		// batches after the first get a derived key so the event log's
		// (event_type, idempotency_key) uniqueness holds.
		envKey := idempotencyKey
		if i > 0 {
			envKey = fmt.Sprintf("%s:%d", idempotencyKey, i)
		}

		envelope := &event.Envelope{
			Sequence:       c.sequence,
			IdempotencyKey: envKey,
			EventType:      evt.EventType(),
			Account:        evt.Account(),
			Timestamp:      evt.Timestamp(),
			SourceSequence: evt.SourceSequence(),
			Payload:        payload,
			StateHash:      stateHash,
			PrevHash:       prevHash,
		}

		outputs = append(outputs, CoreOutput{
			Envelope:   envelope,
			Batch:      batch,
			StateDelta: stateDigest,
		})
		c.sequence++
	}

	// Step 10: Post-checks
	if err := c.postCheckInvariants(evt); err != nil {
		panic(fmt.Sprintf("FATAL: invariant violated: %v", err))
	}

	// Step 11: Emit outputs. Persistence gets a blocking send so no event
	// is lost; projections get a non-blocking send and can rebuild from
	// the event log if they fall behind.
	for _, output := range outputs {
		c.persistChan <- output

		select {
		case c.projectionChan <- output:
		default:
		}
	}

	// Step 12: Auction-open requests go out after the escrow journals are
	// durable in the pipeline. Blocking send: a trade the venue never
	// hears about would strand its escrow until expiry.
	for _, t := range opened {
		if c.requestChan != nil {
			c.requestChan <- t
		}
	}

	// Step 13: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(eventType, idempotencyKey)

	if c.metrics != nil {
		c.metrics.CoreEventsApplied.WithLabelValues(eventType).Inc()
		c.metrics.CoreEventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
	}

	return nil
}

// isTick reports whether an event is a keeper schedule tick.
func isTick(evt event.Event) bool {
	switch evt.(type) {
	case *event.RefreshTick, *event.ManageTick, *event.PayoutTick, *event.MeltTick:
		return true
	}
	return false
}

// partition groups events by their upstream sequencer for ordering checks.
func (c *Engine) partition(evt event.Event) string {
	switch evt.(type) {
	case *event.RefreshTick:
		return "tick:refresh"
	case *event.ManageTick:
		return "tick:manage"
	case *event.PayoutTick:
		return "tick:payout"
	case *event.MeltTick:
		return "tick:melt"
	case *event.TradeSettled:
		return "settlement"
	case *event.RewardsClaimed:
		return "rewards"
	case *event.CollateralDeposit, *event.CollateralWithdraw:
		return "transfers"
	case *event.SupplyUpdate:
		return "supply"
	case *event.Stake, *event.UnstakeInitiated, *event.WithdrawRequest, *event.Seize:
		return "staking"
	case *event.RegisterCollateral, *event.SetPrimeBasket, *event.SetBackupConfig,
		*event.SetRevenueShares, *event.SwitchBasket:
		return "governance"
	default:
		return "global"
	}
}

func (c *Engine) stamp(evt event.Event) ledger.Stamp {
	return ledger.Stamp{
		EventRef:  evt.IdempotencyKey(),
		Sequence:  c.sequence,
		Timestamp: evt.Timestamp().UnixMicro(),
	}
}

func (c *Engine) emptyBatch(evt event.Event) *ledger.Batch {
	return ledger.NewBatch(c.stamp(evt))
}

// computeStateDigest creates canonical bytes for the state hash: the
// post-apply balances of every account the batch touched, sorted by path.
func (c *Engine) computeStateDigest(batch *ledger.Batch) []byte {
	affected := make(map[ledger.AccountKey]bool)
	if batch != nil {
		for _, j := range batch.Journals {
			affected[j.DebitAccount] = true
			affected[j.CreditAccount] = true
		}
	}

	accounts := make([]ledger.AccountKey, 0, len(affected))
	for key := range affected {
		accounts = append(accounts, key)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return accounts[i].AccountPath() < accounts[j].AccountPath()
	})

	digest := make([]byte, 0, len(accounts)*64)
	for _, key := range accounts {
		path := key.AccountPath()
		digest = append(digest, byte(len(path)))
		digest = append(digest, []byte(path)...)

		// Balances are 18-decimal strings; length-prefix keeps the
		// encoding unambiguous.
		bal := c.book.Balance(key).String()
		digest = append(digest, byte(len(bal)))
		digest = append(digest, []byte(bal)...)
	}
	return digest
}

// postCheckInvariants validates invariants after batch application
func (c *Engine) postCheckInvariants(evt event.Event) error {
	switch e := evt.(type) {
	case *event.CollateralWithdraw:
		if err := c.book.ValidateNonNegative(ledger.SystemAccount(e.FromAccount, e.Asset)); err != nil {
			return fmt.Errorf("post-check withdraw: %w", err)
		}
	case *event.Seize:
		if err := c.book.ValidateNonNegative(ledger.SystemAccount(ledger.AccountStakingPool, ledger.AssetInsurance)); err != nil {
			return fmt.Errorf("post-check seize: %w", err)
		}
	case *event.TradeSettled, *event.ManageTick:
		if err := c.validator.ValidateSystemNonNegative(); err != nil {
			return fmt.Errorf("post-check trading: %w", err)
		}
	}

	// Periodic global zero-sum check.
	if c.sequence > 0 && c.sequence%1000 == 0 {
		if err := c.validator.ValidateGlobalBalance(); err != nil {
			return fmt.Errorf("post-check global: %w", err)
		}
	}
	return nil
}

func (c *Engine) dispatchEvent(evt event.Event) (*ledger.Batch, error) {
	switch e := evt.(type) {
	case *event.PriceUpdate:
		return c.handlePriceUpdate(e)
	case *event.RefreshTick:
		return c.handleRefreshTick(e)
	case *event.PayoutTick:
		return c.handlePayoutTick(e)
	case *event.MeltTick:
		return c.handleMeltTick(e)
	case *event.TradeSettled:
		return c.handleTradeSettled(e)
	case *event.RewardsClaimed:
		return c.handleRewardsClaimed(e)
	case *event.CollateralDeposit:
		return c.handleCollateralDeposit(e)
	case *event.CollateralWithdraw:
		return c.handleCollateralWithdraw(e)
	case *event.SupplyUpdate:
		return c.handleSupplyUpdate(e)
	case *event.Stake:
		return c.handleStake(e)
	case *event.UnstakeInitiated:
		return c.handleUnstakeInitiated(e)
	case *event.WithdrawRequest:
		return c.handleWithdrawRequest(e)
	case *event.Seize:
		return c.handleSeize(e)
	case *event.RegisterCollateral:
		return c.handleRegisterCollateral(e)
	case *event.SetPrimeBasket:
		return c.handleSetPrimeBasket(e)
	case *event.SetBackupConfig:
		return c.handleSetBackupConfig(e)
	case *event.SetRevenueShares:
		return c.handleSetRevenueShares(e)
	case *event.SwitchBasket:
		return c.handleSwitchBasket(e)
	default:
		return nil, fmt.Errorf("unknown event type: %T", evt)
	}
}

// handlePriceUpdate stores the observation. Status only moves on the next
// refresh tick; stale price sequences were already filtered upstream.
func (c *Engine) handlePriceUpdate(evt *event.PriceUpdate) (*ledger.Batch, error) {
	if err := c.registry.RecordPrice(evt.Unit, evt.TargetPerRef, evt.RefPerTok, evt.FeedErr, evt.PriceSequence, evt.PriceTimestamp); err != nil {
		return nil, err
	}
	return c.emptyBatch(evt), nil
}

// handleRefreshTick re-evaluates collateral status and, when a live unit has
// defaulted, re-derives the basket from the backups within the same era.
func (c *Engine) handleRefreshTick(evt *event.RefreshTick) (*ledger.Batch, error) {
	c.registry.Refresh(evt.TickTime)

	if len(c.basket.Prime()) > 0 && c.basket.Status() == collateral.StatusDisabled {
		err := c.basket.Switch(evt.TickTime)
		switch {
		case err == nil:
			// Re-derived; trading resumes after the trading delay.
		case errors.Is(err, basket.ErrNoSoundBackup):
			// Stay halted; nothing to do until prices recover or
			// governance intervenes. The tick itself succeeds.
			if c.metrics != nil {
				c.metrics.CoreEventsRejected.WithLabelValues(evt.EventType().String(), "no_sound_backup").Inc()
			}
		default:
			return nil, err
		}
	}
	return c.emptyBatch(evt), nil
}

// handleManageTick runs the backing manager then both revenue traders.
// Each mover gets its own batch so a trader deferral never rolls back the
// backing pass.
func (c *Engine) handleManageTick(evt *event.ManageTick) ([]*ledger.Batch, []*trade.Trade, error) {
	var batches []*ledger.Batch
	var opened []*trade.Trade

	res, err := c.backing.Manage(evt.TickTime, c.supply, c.stamp(evt))
	if err != nil {
		return nil, nil, fmt.Errorf("backing: %w", err)
	}
	if res.Batch != nil {
		batches = append(batches, res.Batch)
	}
	if res.Opened != nil {
		opened = append(opened, res.Opened)
	}

	if !res.Halted {
		for _, tr := range []*revenue.Trader{c.insrTrader, c.svtTrader} {
			tres, err := tr.ManageTokens(evt.TickTime, c.stamp(evt))
			if err != nil {
				return nil, nil, fmt.Errorf("revenue trader %s: %w", tr.Account(), err)
			}
			if tres.Batch != nil {
				batches = append(batches, tres.Batch)
			}
			if tres.Opened != nil {
				opened = append(opened, tres.Opened)
			}
		}
	}

	if len(batches) == 0 {
		batches = append(batches, c.emptyBatch(evt))
	}
	return batches, opened, nil
}

// handlePayoutTick releases part of the pending reward buffer into the
// staking pool at the configured per-period ratio.
func (c *Engine) handlePayoutTick(evt *event.PayoutTick) (*ledger.Batch, error) {
	buffer := c.book.SystemBalance(ledger.AccountStakingRewards, ledger.AssetInsurance)
	released := c.pool.PayoutRewards(evt.TickTime, buffer)

	batch := c.emptyBatch(evt)
	if released.IsPositive() {
		batch.Add(ledger.JournalTypeRewardPayout,
			ledger.SystemAccount(ledger.AccountStakingPool, ledger.AssetInsurance),
			ledger.SystemAccount(ledger.AccountStakingRewards, ledger.AssetInsurance),
			ledger.AssetInsurance, released)
	}
	return batch, nil
}

// handleMeltTick destroys the furnace's melt for the elapsed whole periods.
func (c *Engine) handleMeltTick(evt *event.MeltTick) (*ledger.Batch, error) {
	balance := c.book.SystemBalance(ledger.AccountFurnace, ledger.AssetProtocol)
	melted := c.furnace.Melt(evt.TickTime, balance)

	batch := c.emptyBatch(evt)
	if melted.IsPositive() {
		batch.Add(ledger.JournalTypeMelt,
			ledger.ExternalAccount(ledger.AccountBurned, ledger.AssetProtocol),
			ledger.SystemAccount(ledger.AccountFurnace, ledger.AssetProtocol),
			ledger.AssetProtocol, melted)
	}
	return batch, nil
}

// handleTradeSettled resolves the open trade, books the returned escrow and
// proceeds, and distributes revenue-trader proceeds to their beneficiary.
func (c *Engine) handleTradeSettled(evt *event.TradeSettled) (*ledger.Batch, error) {
	s, err := c.trades.Settle(evt.TradeAccount, evt.TradeID, evt.Filled, evt.BuyAmount, evt.SellReturned)
	if err != nil {
		return nil, err
	}

	batch := c.emptyBatch(evt)
	account := ledger.SystemAccount(evt.TradeAccount, s.Trade.Buy)
	if s.BuyAmount.IsPositive() {
		batch.Add(ledger.JournalTypeTradeFill,
			account,
			ledger.ExternalAccount(ledger.AccountVenue, s.Trade.Buy),
			s.Trade.Buy, s.BuyAmount)
	}
	if s.SellReturned.IsPositive() {
		batch.Add(ledger.JournalTypeTradeReturn,
			ledger.SystemAccount(evt.TradeAccount, s.Trade.Sell),
			ledger.ExternalAccount(ledger.AccountVenue, s.Trade.Sell),
			s.Trade.Sell, s.SellReturned)
	}
	if s.Succeeded {
		c.distributor.Distribute(batch, evt.TradeAccount, s.Trade.Buy, s.BuyAmount)
	}
	return batch, nil
}

// handleRewardsClaimed credits claimed reward tokens to the backing account;
// the next manage tick forwards them into the revenue pipeline.
func (c *Engine) handleRewardsClaimed(evt *event.RewardsClaimed) (*ledger.Batch, error) {
	if !evt.Amount.IsPositive() {
		return nil, fmt.Errorf("reward claim %s has non-positive amount %s", evt.ClaimID, evt.Amount)
	}
	batch := c.emptyBatch(evt)
	batch.Add(ledger.JournalTypeRewardClaim,
		ledger.SystemAccount(ledger.AccountBacking, evt.RewardAsset),
		ledger.ExternalAccount(ledger.AccountRewards, evt.RewardAsset),
		evt.RewardAsset, evt.Amount)
	return batch, nil
}

func (c *Engine) handleCollateralDeposit(evt *event.CollateralDeposit) (*ledger.Batch, error) {
	if !evt.Amount.IsPositive() {
		return nil, fmt.Errorf("deposit %s has non-positive amount %s", evt.TransferID, evt.Amount)
	}
	batch := c.emptyBatch(evt)
	batch.Add(ledger.JournalTypeCollateralDeposit,
		ledger.SystemAccount(evt.ToAccount, evt.Asset),
		ledger.ExternalAccount(ledger.AccountIssuance, evt.Asset),
		evt.Asset, evt.Amount)
	return batch, nil
}

func (c *Engine) handleCollateralWithdraw(evt *event.CollateralWithdraw) (*ledger.Batch, error) {
	if !evt.Amount.IsPositive() {
		return nil, fmt.Errorf("withdraw %s has non-positive amount %s", evt.TransferID, evt.Amount)
	}
	if c.book.SystemBalance(evt.FromAccount, evt.Asset).LT(evt.Amount) {
		return nil, fmt.Errorf("withdraw %s exceeds balance: %s %s from %s",
			evt.TransferID, evt.Amount, evt.Asset, evt.FromAccount)
	}
	batch := c.emptyBatch(evt)
	batch.Add(ledger.JournalTypeCollateralWithdraw,
		ledger.ExternalAccount(ledger.AccountIssuance, evt.Asset),
		ledger.SystemAccount(evt.FromAccount, evt.Asset),
		evt.Asset, evt.Amount)
	return batch, nil
}

func (c *Engine) handleSupplyUpdate(evt *event.SupplyUpdate) (*ledger.Batch, error) {
	if evt.TotalSupply.IsNegative() {
		return nil, fmt.Errorf("negative total supply %s", evt.TotalSupply)
	}
	c.supply = evt.TotalSupply
	return c.emptyBatch(evt), nil
}

func (c *Engine) handleStake(evt *event.Stake) (*ledger.Batch, error) {
	if _, err := c.pool.Stake(evt.Holder, evt.Amount); err != nil {
		return nil, err
	}
	batch := c.emptyBatch(evt)
	batch.Add(ledger.JournalTypeStake,
		ledger.SystemAccount(ledger.AccountStakingPool, ledger.AssetInsurance),
		ledger.ExternalAccount(ledger.AccountStakers, ledger.AssetInsurance),
		ledger.AssetInsurance, evt.Amount)
	return batch, nil
}

// handleUnstakeInitiated burns the shares and parks the fixed value in the
// holder's bucket until the delay elapses.
func (c *Engine) handleUnstakeInitiated(evt *event.UnstakeInitiated) (*ledger.Batch, error) {
	req, err := c.pool.InitiateUnstake(evt.Holder, evt.Shares, evt.RequestedAt)
	if err != nil {
		return nil, err
	}
	batch := c.emptyBatch(evt)
	if req.Value.IsPositive() {
		batch.Add(ledger.JournalTypeUnstakeMature,
			ledger.HolderAccount(evt.Holder, ledger.AssetInsurance),
			ledger.SystemAccount(ledger.AccountStakingPool, ledger.AssetInsurance),
			ledger.AssetInsurance, req.Value)
	}
	return batch, nil
}

func (c *Engine) handleWithdrawRequest(evt *event.WithdrawRequest) (*ledger.Batch, error) {
	paid := c.pool.Withdraw(evt.Holder, evt.RequestedAt)
	batch := c.emptyBatch(evt)
	if paid.IsPositive() {
		batch.Add(ledger.JournalTypeWithdrawPayout,
			ledger.ExternalAccount(ledger.AccountStakers, ledger.AssetInsurance),
			ledger.HolderAccount(evt.Holder, ledger.AssetInsurance),
			ledger.AssetInsurance, paid)
	}
	return batch, nil
}

// handleSeize moves staked value into the backing account during an
// insurance event. Queued unstake requests keep their fixed value.
func (c *Engine) handleSeize(evt *event.Seize) (*ledger.Batch, error) {
	if err := c.pool.Seize(evt.Amount); err != nil {
		return nil, err
	}
	batch := c.emptyBatch(evt)
	batch.Add(ledger.JournalTypeSeize,
		ledger.SystemAccount(ledger.AccountBacking, ledger.AssetInsurance),
		ledger.SystemAccount(ledger.AccountStakingPool, ledger.AssetInsurance),
		ledger.AssetInsurance, evt.Amount)
	return batch, nil
}

func (c *Engine) handleRegisterCollateral(evt *event.RegisterCollateral) (*ledger.Batch, error) {
	err := c.registry.Register(evt.Unit, evt.TargetTag, evt.RefPerTok, evt.TargetPerRef,
		evt.MaxTradeVolume, evt.DelayUntilDefault, evt.EnactedAt)
	if err != nil {
		return nil, err
	}
	return c.emptyBatch(evt), nil
}

func (c *Engine) handleSetPrimeBasket(evt *event.SetPrimeBasket) (*ledger.Batch, error) {
	entries := make([]basket.PrimeEntry, 0, len(evt.Entries))
	for _, e := range evt.Entries {
		entries = append(entries, basket.PrimeEntry{Unit: e.Unit, TargetAmount: e.TargetAmount})
	}
	if err := c.basket.SetPrime(entries, evt.EnactedAt); err != nil {
		return nil, err
	}
	return c.emptyBatch(evt), nil
}

func (c *Engine) handleSetBackupConfig(evt *event.SetBackupConfig) (*ledger.Batch, error) {
	cfg := basket.BackupConfig{DiversityFactor: evt.DiversityFactor, Units: evt.Units}
	if err := c.basket.SetBackup(evt.TargetTag, cfg); err != nil {
		return nil, err
	}
	return c.emptyBatch(evt), nil
}

func (c *Engine) handleSetRevenueShares(evt *event.SetRevenueShares) (*ledger.Batch, error) {
	if err := c.prm.SetRevenueShares(evt.StakersShare, evt.FurnaceShare); err != nil {
		return nil, err
	}
	return c.emptyBatch(evt), nil
}

// handleSwitchBasket is the governance re-switch: it starts a new era, so
// previously defaulted units become eligible again.
func (c *Engine) handleSwitchBasket(evt *event.SwitchBasket) (*ledger.Batch, error) {
	if err := c.basket.SwitchWithEra(evt.EnactedAt); err != nil {
		return nil, err
	}
	return c.emptyBatch(evt), nil
}

// --- Accessors for the query side ---

// Book returns the balance book. Read-only outside the core loop.
func (c *Engine) Book() *ledger.Book { return c.book }

// Registry returns the collateral registry.
func (c *Engine) Registry() *collateral.Registry { return c.registry }

// Basket returns the basket handler.
func (c *Engine) Basket() *basket.Handler { return c.basket }

// Trades returns the trade manager.
func (c *Engine) Trades() *trade.Manager { return c.trades }

// Pool returns the staking pool.
func (c *Engine) Pool() *staking.Pool { return c.pool }

// Furnace returns the furnace.
func (c *Engine) Furnace() *furnace.Furnace { return c.furnace }

// Supply returns the last reported protocol token supply.
func (c *Engine) Supply() fixed.Dec { return c.supply }

// GetSequence returns the current global sequence number.
func (c *Engine) GetSequence() int64 {
	return c.sequence
}

// GetStateHash returns the current state hash (chain tip).
func (c *Engine) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// WarmLRU loads recent idempotency keys into the LRU cache, avoiding
// cold-path DB lookups right after a restart.
func (c *Engine) WarmLRU(keys []string) {
	c.idempotency.lru.WarmFromKeys(keys)
}
