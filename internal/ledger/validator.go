package ledger

import (
	"fmt"
)

// InvariantValidator checks ledger invariants after batch application.
type InvariantValidator struct {
	book *Book
}

func NewInvariantValidator(book *Book) *InvariantValidator {
	return &InvariantValidator{
		book: book,
	}
}

// ValidateBatchBalance verifies the batch is balanced and well-formed.
func (v *InvariantValidator) ValidateBatchBalance(batch *Batch) error {
	return batch.Validate()
}

// ValidateSystemNonNegative checks every protocol-owned account holds a
// non-negative balance. A negative system balance means an event moved value
// the account never had.
func (v *InvariantValidator) ValidateSystemNonNegative() error {
	for key, bal := range v.book.balances {
		if key.Scope == AccountScopeExternal {
			continue
		}
		if bal.IsNegative() {
			return fmt.Errorf("account %s has negative balance: %s", key.AccountPath(), bal)
		}
	}
	return nil
}

// ValidateGlobalBalance verifies the ledger is zero-sum per asset.
func (v *InvariantValidator) ValidateGlobalBalance() error {
	for asset, total := range v.book.ComputeGlobalBalance() {
		if !total.IsZero() {
			return fmt.Errorf("global balance for %s is non-zero: %s", asset, total)
		}
	}
	return nil
}
