package backing

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"StableCore/internal/basket"
	"StableCore/internal/collateral"
	"StableCore/internal/fixed"
	"StableCore/internal/ledger"
	"StableCore/internal/params"
	"StableCore/internal/trade"
)

// Manager keeps the backing account fully collateralized: it forwards claimed
// rewards into the revenue pipeline, sells surplus collateral, and opens at
// most one rebalancing trade per manage call when holdings fall short.
type Manager struct {
	reg    *collateral.Registry
	basket *basket.Handler
	book   *ledger.Book
	trades *trade.Manager
	prm    *params.Protocol
}

func NewManager(reg *collateral.Registry, bh *basket.Handler, book *ledger.Book, trades *trade.Manager, prm *params.Protocol) *Manager {
	return &Manager{reg: reg, basket: bh, book: book, trades: trades, prm: prm}
}

// Result is what one Manage call decided. The caller applies Batch to the
// book and publishes an auction-open request for Opened.
type Result struct {
	Batch  *ledger.Batch // nil when no value moved
	Opened *trade.Trade  // nil when no trade opened
	Halted bool          // basket disabled, rebalancing suspended
}

// position is one registered asset's standing against the live basket.
type position struct {
	unit       *collateral.Unit
	balance    fixed.Dec
	surplusTok fixed.Dec
	surplusRef fixed.Dec
	deficitTok fixed.Dec
	deficitRef fixed.Dec
}

// Manage runs one rebalancing pass against the current book and supply.
//
// Ordering inside one pass: reward forwarding always happens; then either a
// single deficit trade is opened (deficit case) or surplus collateral is
// forwarded to the revenue traders (surplus case). A DISABLED basket halts
// everything until governance switches it.
func (m *Manager) Manage(now time.Time, supply fixed.Dec, stamp ledger.Stamp) (*Result, error) {
	res := &Result{}
	if m.basket.Status() == collateral.StatusDisabled {
		res.Halted = true
		return res, nil
	}

	batch := ledger.NewBatch(stamp)
	balances := m.book.SystemBalances(ledger.AccountBacking)

	// Unregistered assets in the backing account are claimed rewards. They
	// cannot back the basket, so the whole balance goes to revenue.
	assets := make([]string, 0, len(balances))
	for asset := range balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	for _, asset := range assets {
		if _, registered := m.reg.Get(asset); registered {
			continue
		}
		m.forward(batch, asset, balances[asset])
	}

	positions := m.positions(balances, supply)

	var worstDeficit, bestSurplus *position
	for i := range positions {
		p := &positions[i]
		if p.deficitRef.IsPositive() && (worstDeficit == nil || p.deficitRef.GT(worstDeficit.deficitRef)) {
			worstDeficit = p
		}
		if p.surplusRef.IsPositive() && (bestSurplus == nil || p.surplusRef.GT(bestSurplus.surplusRef)) {
			bestSurplus = p
		}
	}

	switch {
	case worstDeficit != nil:
		opened, err := m.openDeficitTrade(batch, now, worstDeficit, bestSurplus)
		if err != nil {
			return nil, err
		}
		res.Opened = opened
	case bestSurplus != nil:
		// Fully collateralized: the most-surplus asset's excess is revenue.
		if !trade.BelowDust(bestSurplus.surplusTok, bestSurplus.unit.Price(), m.prm.DustAmount) {
			m.forward(batch, bestSurplus.unit.Name, bestSurplus.surplusTok)
		}
	}

	if len(batch.Journals) > 0 {
		res.Batch = batch
	}
	return res, nil
}

// positions measures every registered asset against the live basket
// requirement for the given supply, in registration order. Requirements
// round up and carry the backing buffer so the protocol never releases
// collateral it may still need.
func (m *Manager) positions(balances map[string]fixed.Dec, supply fixed.Dec) []position {
	bufferFactor := fixed.One().Add(m.prm.BackingBuffer)
	out := make([]position, 0, len(m.reg.Ordered()))
	for _, u := range m.reg.Ordered() {
		p := position{
			unit:       u,
			balance:    fixed.Zero(),
			surplusTok: fixed.Zero(),
			surplusRef: fixed.Zero(),
			deficitTok: fixed.Zero(),
			deficitRef: fixed.Zero(),
		}
		if bal, ok := balances[u.Name]; ok {
			p.balance = bal
		}

		qty := m.basket.Quantity(u.Name)
		var needTok, needBuffered fixed.Dec
		if qty.IsPositive() {
			needTok = fixed.MulCeil(supply, qty)
			needBuffered = fixed.MulCeil(needTok, bufferFactor)
		} else {
			needTok = fixed.Zero()
			needBuffered = fixed.Zero()
		}

		price := u.Price()
		if p.balance.GT(needBuffered) {
			p.surplusTok = p.balance.Sub(needBuffered)
			p.surplusRef = fixed.MulFloor(p.surplusTok, price)
		}
		if needTok.GT(p.balance) {
			p.deficitTok = needTok.Sub(p.balance)
			p.deficitRef = fixed.MulFloor(p.deficitTok, price)
		}
		out = append(out, p)
	}
	return out
}

// openDeficitTrade opens at most one batch auction selling the most-surplus
// asset for the most-deficit asset. Transient gates (trading delay, occupied
// slot, nothing sellable, dust) defer silently; the next manage tick retries.
func (m *Manager) openDeficitTrade(batch *ledger.Batch, now time.Time, deficit, surplus *position) (*trade.Trade, error) {
	if now.Sub(m.basket.SwitchedAt()) < m.prm.TradingDelay {
		return nil, nil
	}
	if m.trades.HasOpen(ledger.AccountBacking) {
		return nil, nil
	}
	if surplus == nil {
		return nil, nil
	}

	sell, buy := surplus.unit, deficit.unit
	sellPrice, buyPrice := sell.Price(), buy.Price()
	if sellPrice.IsZero() || buyPrice.IsZero() {
		return nil, nil
	}

	// Sell no more than the deficit needs, the surplus holds, or the
	// pair's volume cap allows.
	needTokens := fixed.DivCeil(deficit.deficitRef, sellPrice)
	maxVolume := fixed.Min(sell.MaxTradeVolume, buy.MaxTradeVolume)
	sized, err := trade.SizeSale(fixed.Min(surplus.surplusTok, needTokens), maxVolume, sellPrice)
	if err != nil {
		return nil, fmt.Errorf("sizing %s sale: %w", sell.Name, err)
	}
	if trade.BelowDust(sized, sellPrice, m.prm.DustAmount) {
		return nil, nil
	}

	expectedBuy := fixed.DivFloor(fixed.MulFloor(sized, sellPrice), buyPrice)
	if expectedBuy.IsZero() {
		return nil, nil
	}
	wcp, err := trade.WorstCasePrice(sized, expectedBuy, m.prm.MaxTradeSlippage)
	if err != nil {
		return nil, fmt.Errorf("pricing %s/%s trade: %w", sell.Name, buy.Name, err)
	}

	t := &trade.Trade{
		ID:             uuid.New(),
		Account:        ledger.AccountBacking,
		Sell:           sell.Name,
		Buy:            buy.Name,
		SellAmount:     sized,
		MinBuyAmount:   fixed.MulFloor(expectedBuy, fixed.One().Sub(m.prm.MaxTradeSlippage)),
		Kind:           trade.KindBatch,
		EndTime:        now.Add(m.prm.BatchAuctionLength),
		WorstCasePrice: wcp,
	}
	if err := m.trades.Open(t, now); err != nil {
		return nil, err
	}

	batch.Add(ledger.JournalTypeTradeEscrow,
		ledger.ExternalAccount(ledger.AccountVenue, sell.Name),
		ledger.SystemAccount(ledger.AccountBacking, sell.Name),
		sell.Name, sized)
	return t, nil
}

// forward splits an amount from the backing account between the two revenue
// traders by the configured shares. Zero-share destinations are skipped; any
// split remainder lands on the furnace side so nothing is stranded.
func (m *Manager) forward(batch *ledger.Batch, asset string, amount fixed.Dec) {
	if !amount.IsPositive() {
		return
	}
	stakersAmt := fixed.MulFloor(amount, m.prm.StakersShare())
	furnaceAmt := amount.Sub(stakersAmt)
	if m.prm.FurnaceShare().IsZero() {
		stakersAmt = amount
		furnaceAmt = fixed.Zero()
	}

	from := ledger.SystemAccount(ledger.AccountBacking, asset)
	if stakersAmt.IsPositive() {
		batch.Add(ledger.JournalTypeRevenueForward,
			ledger.SystemAccount(ledger.AccountInsuranceTrade, asset), from, asset, stakersAmt)
	}
	if furnaceAmt.IsPositive() {
		batch.Add(ledger.JournalTypeRevenueForward,
			ledger.SystemAccount(ledger.AccountProtocolTrade, asset), from, asset, furnaceAmt)
	}
}
