package ledger

import (
	"fmt"

	"StableCore/internal/fixed"
)

// Book maintains in-memory account balances. Not thread-safe — only the
// single-threaded core mutates it.
type Book struct {
	balances map[AccountKey]fixed.Dec
}

func NewBook() *Book {
	return &Book{
		balances: make(map[AccountKey]fixed.Dec),
	}
}

// ApplyJournal applies a single journal entry to balances
func (b *Book) ApplyJournal(j Journal) {
	b.balances[j.DebitAccount] = b.Balance(j.DebitAccount).Add(j.Amount)
	b.balances[j.CreditAccount] = b.Balance(j.CreditAccount).Sub(j.Amount)
}

// ApplyBatch validates and applies all journals in a batch
func (b *Book) ApplyBatch(batch *Batch) error {
	if err := batch.Validate(); err != nil {
		return fmt.Errorf("invalid batch: %w", err)
	}
	for _, j := range batch.Journals {
		b.ApplyJournal(j)
	}
	return nil
}

// Balance returns the current balance for an account (zero when untouched).
func (b *Book) Balance(key AccountKey) fixed.Dec {
	if bal, ok := b.balances[key]; ok {
		return bal
	}
	return fixed.Zero()
}

// SystemBalance is shorthand for Balance(SystemAccount(name, asset)).
func (b *Book) SystemBalance(name, asset string) fixed.Dec {
	return b.Balance(SystemAccount(name, asset))
}

// SystemBalances returns every asset balance held by one system account.
func (b *Book) SystemBalances(name string) map[string]fixed.Dec {
	out := make(map[string]fixed.Dec)
	for key, bal := range b.balances {
		if key.Scope == AccountScopeSystem && key.Name == name && !bal.IsZero() {
			out[key.Asset] = bal
		}
	}
	return out
}

// ValidateNonNegative checks that a specific account balance is >= 0.
// External boundary accounts are exempt: in a zero-sum ledger they carry the
// negative mirror of everything the system holds.
func (b *Book) ValidateNonNegative(key AccountKey) error {
	if bal := b.Balance(key); bal.IsNegative() {
		return fmt.Errorf("account %s has negative balance: %s", key.AccountPath(), bal)
	}
	return nil
}

// ComputeGlobalBalance sums all account balances per asset (zero for a
// zero-sum ledger).
func (b *Book) ComputeGlobalBalance() map[string]fixed.Dec {
	totals := make(map[string]fixed.Dec)
	for key, bal := range b.balances {
		if t, ok := totals[key.Asset]; ok {
			totals[key.Asset] = t.Add(bal)
		} else {
			totals[key.Asset] = bal
		}
	}
	return totals
}

// Snapshot returns a copy of all non-zero balances (for state hashing and
// persistence snapshots).
func (b *Book) Snapshot() map[AccountKey]fixed.Dec {
	snapshot := make(map[AccountKey]fixed.Dec, len(b.balances))
	for k, v := range b.balances {
		if !v.IsZero() {
			snapshot[k] = v
		}
	}
	return snapshot
}

// Restore replaces the book contents from a snapshot.
func (b *Book) Restore(balances map[AccountKey]fixed.Dec) {
	b.balances = make(map[AccountKey]fixed.Dec, len(balances))
	for k, v := range balances {
		b.balances[k] = v
	}
}
