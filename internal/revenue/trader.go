package revenue

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"StableCore/internal/collateral"
	"StableCore/internal/fixed"
	"StableCore/internal/ledger"
	"StableCore/internal/params"
	"StableCore/internal/trade"
)

// startPriceMarkup is how far above fair value a dutch auction starts.
var startPriceMarkup = fixed.MustFromString("1.5")

// Trader converts whatever revenue assets land in its account into one
// destination asset. Two instances run: the INSR trader feeding the staking
// pool and the SVT trader feeding the furnace.
type Trader struct {
	account string // trading account name, also the slot key
	dest    string // destination asset the trader buys
	reg     *collateral.Registry
	book    *ledger.Book
	trades  *trade.Manager
	prm     *params.Protocol
}

func NewTrader(account, dest string, reg *collateral.Registry, book *ledger.Book, trades *trade.Manager, prm *params.Protocol) *Trader {
	return &Trader{account: account, dest: dest, reg: reg, book: book, trades: trades, prm: prm}
}

// Account returns the trading account this trader owns.
func (tr *Trader) Account() string { return tr.account }

// Dest returns the asset this trader buys.
func (tr *Trader) Dest() string { return tr.dest }

// Result is what one manage pass decided for this trader.
type Result struct {
	Batch  *ledger.Batch
	Opened *trade.Trade
}

// ManageTokens opens at most one dutch auction selling the trader's most
// valuable held asset into the destination asset. Unpriced assets, dust
// balances, an occupied slot, and a missing destination price all defer
// silently until a later tick.
func (tr *Trader) ManageTokens(now time.Time, stamp ledger.Stamp) (*Result, error) {
	res := &Result{}
	if tr.trades.HasOpen(tr.account) {
		return res, nil
	}
	destUnit, ok := tr.reg.Get(tr.dest)
	if !ok || destUnit.Price().IsZero() {
		return res, nil
	}
	destPrice := destUnit.Price()

	balances := tr.book.SystemBalances(tr.account)
	assets := make([]string, 0, len(balances))
	for asset := range balances {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	// Pick the largest held value; the rest wait for the slot to free.
	var sellUnit *collateral.Unit
	var sellAmount, sellValue fixed.Dec
	for _, asset := range assets {
		if asset == tr.dest {
			continue
		}
		u, registered := tr.reg.Get(asset)
		if !registered || u.Price().IsZero() {
			continue
		}
		value := fixed.MulFloor(balances[asset], u.Price())
		if value.LT(tr.prm.DustAmount) {
			continue
		}
		if sellUnit == nil || value.GT(sellValue) {
			sellUnit = u
			sellAmount = balances[asset]
			sellValue = value
		}
	}
	if sellUnit == nil {
		return res, nil
	}

	sized, err := trade.SizeSale(sellAmount, fixed.Min(sellUnit.MaxTradeVolume, destUnit.MaxTradeVolume), sellUnit.Price())
	if err != nil {
		return nil, fmt.Errorf("sizing %s sale: %w", sellUnit.Name, err)
	}
	if trade.BelowDust(sized, sellUnit.Price(), tr.prm.DustAmount) {
		return res, nil
	}

	// Dutch curve in destination tokens per sell token: start above fair
	// value, floor at fair value less the slippage budget.
	fair := fixed.DivFloor(sellUnit.Price(), destPrice)
	if fair.IsZero() {
		return res, nil
	}
	start := fixed.MulCeil(fair, startPriceMarkup)
	end := fixed.MulFloor(fair, fixed.One().Sub(tr.prm.MaxTradeSlippage))

	t := &trade.Trade{
		ID:             uuid.New(),
		Account:        tr.account,
		Sell:           sellUnit.Name,
		Buy:            tr.dest,
		SellAmount:     sized,
		MinBuyAmount:   fixed.MulFloor(sized, end),
		Kind:           trade.KindDutch,
		EndTime:        now.Add(tr.prm.DutchAuctionLength),
		WorstCasePrice: end,
		StartPrice:     start,
		EndPrice:       end,
	}
	if err := tr.trades.Open(t, now); err != nil {
		return nil, err
	}

	batch := ledger.NewBatch(stamp)
	batch.Add(ledger.JournalTypeTradeEscrow,
		ledger.ExternalAccount(ledger.AccountVenue, sellUnit.Name),
		ledger.SystemAccount(tr.account, sellUnit.Name),
		sellUnit.Name, sized)
	res.Batch = batch
	res.Opened = t
	return res, nil
}
