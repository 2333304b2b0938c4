package staking

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"StableCore/internal/fixed"
	"StableCore/internal/params"
)

var (
	// ErrInsufficientShares rejects redeeming more shares than held.
	ErrInsufficientShares = errors.New("insufficient shares")
	// ErrSeizeExceedsPool rejects seizing more value than the pool holds.
	ErrSeizeExceedsPool = errors.New("seize exceeds pool value")
)

// UnstakeRequest is a burned stake waiting out the unstaking delay. Value is
// fixed at the rate when the request was made.
type UnstakeRequest struct {
	ID          uuid.UUID
	Holder      string
	Value       fixed.Dec
	AvailableAt time.Time
}

// Pool is the insurance staking pool. Stakers hold shares against the pool's
// total value; the exchange rate only moves up through reward payouts, and
// only moves down through Seize.
type Pool struct {
	totalShares fixed.Dec
	totalValue  fixed.Dec
	shares      map[string]fixed.Dec
	queue       []UnstakeRequest
	lastPayout  time.Time
	prm         *params.Protocol
}

func NewPool(prm *params.Protocol, genesis time.Time) *Pool {
	return &Pool{
		totalShares: fixed.Zero(),
		totalValue:  fixed.Zero(),
		shares:      make(map[string]fixed.Dec),
		lastPayout:  genesis,
		prm:         prm,
	}
}

// Rate is the INSR value of one share. 1.0 with no shares outstanding.
// Floor rounded so redemptions never round against the pool.
func (p *Pool) Rate() fixed.Dec {
	if p.totalShares.IsZero() {
		return fixed.One()
	}
	return fixed.DivFloor(p.totalValue, p.totalShares)
}

// Stake mints shares for a deposit at the current rate, floor rounded.
func (p *Pool) Stake(holder string, amount fixed.Dec) (fixed.Dec, error) {
	if !amount.IsPositive() {
		return fixed.Zero(), fmt.Errorf("stake amount must be positive, got %s", amount)
	}
	minted := fixed.DivFloor(amount, p.Rate())
	if !minted.IsPositive() {
		return fixed.Zero(), fmt.Errorf("stake of %s mints no shares at rate %s", amount, p.Rate())
	}
	p.shares[holder] = p.sharesOf(holder).Add(minted)
	p.totalShares = p.totalShares.Add(minted)
	p.totalValue = p.totalValue.Add(amount)
	return minted, nil
}

// InitiateUnstake burns shares immediately and queues their value, fixed at
// the current rate, behind the unstaking delay. Remaining stakers' rate is
// unchanged by the burn.
func (p *Pool) InitiateUnstake(holder string, shares fixed.Dec, now time.Time) (*UnstakeRequest, error) {
	if !shares.IsPositive() {
		return nil, fmt.Errorf("unstake shares must be positive, got %s", shares)
	}
	held := p.sharesOf(holder)
	if shares.GT(held) {
		return nil, fmt.Errorf("%w: holder %s has %s, redeeming %s", ErrInsufficientShares, holder, held, shares)
	}

	value := fixed.MulFloor(shares, p.Rate())
	p.shares[holder] = held.Sub(shares)
	if p.shares[holder].IsZero() {
		delete(p.shares, holder)
	}
	p.totalShares = p.totalShares.Sub(shares)
	p.totalValue = p.totalValue.Sub(value)

	req := UnstakeRequest{
		ID:          uuid.New(),
		Holder:      holder,
		Value:       value,
		AvailableAt: now.Add(p.prm.UnstakingDelay),
	}
	p.queue = append(p.queue, req)
	return &req, nil
}

// Withdraw pays out the holder's matured requests in FIFO order and returns
// the total paid. Unmatured requests stay queued; nothing matured is a no-op.
func (p *Pool) Withdraw(holder string, now time.Time) fixed.Dec {
	paid := fixed.Zero()
	remaining := p.queue[:0]
	for _, req := range p.queue {
		if req.Holder == holder && !req.AvailableAt.After(now) {
			paid = paid.Add(req.Value)
			continue
		}
		remaining = append(remaining, req)
	}
	p.queue = remaining
	return paid
}

// PayoutRewards releases 1-(1-rewardRatio)^periods of the pending reward
// buffer into the pool's value for the whole periods elapsed since the last
// payout. Returns the released amount; sub-period calls release nothing.
func (p *Pool) PayoutRewards(now time.Time, buffer fixed.Dec) fixed.Dec {
	periods := elapsedPeriods(p.lastPayout, now, p.prm.RewardPeriod)
	if periods == 0 {
		return fixed.Zero()
	}
	p.lastPayout = p.lastPayout.Add(time.Duration(periods) * p.prm.RewardPeriod)

	if !buffer.IsPositive() || p.totalShares.IsZero() {
		// Advance the clock even when there is nothing to release or
		// nobody to release it to.
		return fixed.Zero()
	}
	released := fixed.MulFloor(buffer, fixed.Compound(p.prm.RewardRatio, periods))
	p.totalValue = p.totalValue.Add(released)
	return released
}

// Seize removes value from the pool during an insurance event. The sole path
// that can push the rate below 1.0.
func (p *Pool) Seize(amount fixed.Dec) error {
	if !amount.IsPositive() {
		return fmt.Errorf("seize amount must be positive, got %s", amount)
	}
	if amount.GT(p.totalValue) {
		return fmt.Errorf("%w: pool holds %s, seizing %s", ErrSeizeExceedsPool, p.totalValue, amount)
	}
	p.totalValue = p.totalValue.Sub(amount)
	return nil
}

func (p *Pool) sharesOf(holder string) fixed.Dec {
	if s, ok := p.shares[holder]; ok {
		return s
	}
	return fixed.Zero()
}

// SharesOf returns a holder's share balance.
func (p *Pool) SharesOf(holder string) fixed.Dec { return p.sharesOf(holder) }

// TotalShares returns the outstanding share supply.
func (p *Pool) TotalShares() fixed.Dec { return p.totalShares }

// Shares returns a copy of every holder's share balance.
func (p *Pool) Shares() map[string]fixed.Dec {
	out := make(map[string]fixed.Dec, len(p.shares))
	for holder, s := range p.shares {
		out[holder] = s
	}
	return out
}

// TotalValue returns the INSR value backing the shares.
func (p *Pool) TotalValue() fixed.Dec { return p.totalValue }

// Queue returns the pending unstake requests in FIFO order.
func (p *Pool) Queue() []UnstakeRequest {
	out := make([]UnstakeRequest, len(p.queue))
	copy(out, p.queue)
	return out
}

// LastPayout returns the payout clock position.
func (p *Pool) LastPayout() time.Time { return p.lastPayout }

// Restore replaces the pool state from a snapshot.
func (p *Pool) Restore(totalShares, totalValue fixed.Dec, shares map[string]fixed.Dec, queue []UnstakeRequest, lastPayout time.Time) {
	p.totalShares = totalShares
	p.totalValue = totalValue
	p.shares = make(map[string]fixed.Dec, len(shares))
	for k, v := range shares {
		p.shares[k] = v
	}
	p.queue = make([]UnstakeRequest, len(queue))
	copy(p.queue, queue)
	p.lastPayout = lastPayout
}

// elapsedPeriods counts whole periods between two instants.
func elapsedPeriods(from, to time.Time, period time.Duration) uint64 {
	if !to.After(from) || period <= 0 {
		return 0
	}
	return uint64(to.Sub(from) / period)
}
