package ledger_test

import (
	"StableCore/internal/fixed"
	"StableCore/internal/ledger"
	"testing"
)

// ============================================================================
// Test: AccountKey
// ============================================================================

func TestAccountKey_SystemPath(t *testing.T) {
	key := ledger.SystemAccount(ledger.AccountBacking, "TOKA")

	path := key.AccountPath()
	if path != "system:backing:TOKA" {
		t.Errorf("got %q, want %q", path, "system:backing:TOKA")
	}
}

func TestAccountKey_HolderPath(t *testing.T) {
	key := ledger.HolderAccount("alice", ledger.AssetInsurance)

	path := key.AccountPath()
	if path != "holder:alice:INSR" {
		t.Errorf("got %q, want %q", path, "holder:alice:INSR")
	}
}

func TestAccountKey_ExternalPath(t *testing.T) {
	key := ledger.ExternalAccount(ledger.AccountVenue, "TOKB")

	path := key.AccountPath()
	if path != "external:venue:TOKB" {
		t.Errorf("got %q, want %q", path, "external:venue:TOKB")
	}
}

// ============================================================================
// Test: Book
// ============================================================================

func TestBook_InitialBalanceZero(t *testing.T) {
	book := ledger.NewBook()

	bal := book.SystemBalance(ledger.AccountBacking, "TOKA")
	if !bal.IsZero() {
		t.Errorf("initial balance should be 0, got %s", bal)
	}
}

func TestBook_ApplyBatch_Deposit(t *testing.T) {
	book := ledger.NewBook()

	batch := ledger.NewBatch(ledger.Stamp{EventRef: "dep-1", Sequence: 1})
	batch.Add(
		ledger.JournalTypeCollateralDeposit,
		ledger.SystemAccount(ledger.AccountBacking, "TOKA"),
		ledger.ExternalAccount(ledger.AccountIssuance, "TOKA"),
		"TOKA",
		fixed.New(1000),
	)

	if err := book.ApplyBatch(batch); err != nil {
		t.Fatalf("apply batch: %v", err)
	}

	if got := book.SystemBalance(ledger.AccountBacking, "TOKA"); !got.Equal(fixed.New(1000)) {
		t.Errorf("backing: got %s, want 1000", got)
	}
	if got := book.Balance(ledger.ExternalAccount(ledger.AccountIssuance, "TOKA")); !got.Equal(fixed.New(-1000)) {
		t.Errorf("issuance mirror: got %s, want -1000", got)
	}
}

func TestBook_SystemBalances_SkipsZero(t *testing.T) {
	book := ledger.NewBook()

	in := ledger.NewBatch(ledger.Stamp{EventRef: "dep-2", Sequence: 1})
	in.Add(ledger.JournalTypeCollateralDeposit,
		ledger.SystemAccount(ledger.AccountBacking, "TOKA"),
		ledger.ExternalAccount(ledger.AccountIssuance, "TOKA"),
		"TOKA", fixed.New(50))
	if err := book.ApplyBatch(in); err != nil {
		t.Fatalf("apply: %v", err)
	}

	out := ledger.NewBatch(ledger.Stamp{EventRef: "wd-1", Sequence: 2})
	out.Add(ledger.JournalTypeCollateralWithdraw,
		ledger.ExternalAccount(ledger.AccountIssuance, "TOKA"),
		ledger.SystemAccount(ledger.AccountBacking, "TOKA"),
		"TOKA", fixed.New(50))
	if err := book.ApplyBatch(out); err != nil {
		t.Fatalf("apply: %v", err)
	}

	balances := book.SystemBalances(ledger.AccountBacking)
	if len(balances) != 0 {
		t.Errorf("zeroed account should not appear, got %v", balances)
	}
}

func TestBook_SnapshotRestore_RoundTrip(t *testing.T) {
	book := ledger.NewBook()

	batch := ledger.NewBatch(ledger.Stamp{EventRef: "dep-3", Sequence: 1})
	batch.Add(ledger.JournalTypeCollateralDeposit,
		ledger.SystemAccount(ledger.AccountBacking, "TOKA"),
		ledger.ExternalAccount(ledger.AccountIssuance, "TOKA"),
		"TOKA", fixed.New(777))
	if err := book.ApplyBatch(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	restored := ledger.NewBook()
	restored.Restore(book.Snapshot())

	if got := restored.SystemBalance(ledger.AccountBacking, "TOKA"); !got.Equal(fixed.New(777)) {
		t.Errorf("restored backing: got %s, want 777", got)
	}
}

// ============================================================================
// Test: Batch validation
// ============================================================================

func TestBatch_Validate_RejectsNonPositiveAmount(t *testing.T) {
	batch := ledger.NewBatch(ledger.Stamp{EventRef: "bad-1", Sequence: 1})
	batch.Add(ledger.JournalTypeCollateralDeposit,
		ledger.SystemAccount(ledger.AccountBacking, "TOKA"),
		ledger.ExternalAccount(ledger.AccountIssuance, "TOKA"),
		"TOKA", fixed.Zero())

	if err := batch.Validate(); err == nil {
		t.Error("zero amount should be rejected")
	}
}

func TestBatch_Validate_RejectsSelfTransfer(t *testing.T) {
	batch := ledger.NewBatch(ledger.Stamp{EventRef: "bad-2", Sequence: 1})
	acct := ledger.SystemAccount(ledger.AccountBacking, "TOKA")
	batch.Add(ledger.JournalTypeCollateralDeposit, acct, acct, "TOKA", fixed.New(1))

	if err := batch.Validate(); err == nil {
		t.Error("self transfer should be rejected")
	}
}

func TestBatch_Validate_RejectsAssetMismatch(t *testing.T) {
	batch := ledger.NewBatch(ledger.Stamp{EventRef: "bad-3", Sequence: 1})
	batch.Add(ledger.JournalTypeCollateralDeposit,
		ledger.SystemAccount(ledger.AccountBacking, "TOKA"),
		ledger.ExternalAccount(ledger.AccountIssuance, "TOKB"),
		"TOKA", fixed.New(1))

	if err := batch.Validate(); err == nil {
		t.Error("asset mismatch between buckets should be rejected")
	}
}

// ============================================================================
// Test: InvariantValidator
// ============================================================================

func TestInvariantValidator_GlobalBalanceZeroSum(t *testing.T) {
	book := ledger.NewBook()
	v := ledger.NewInvariantValidator(book)

	batch := ledger.NewBatch(ledger.Stamp{EventRef: "dep-4", Sequence: 1})
	batch.Add(ledger.JournalTypeCollateralDeposit,
		ledger.SystemAccount(ledger.AccountBacking, "TOKA"),
		ledger.ExternalAccount(ledger.AccountIssuance, "TOKA"),
		"TOKA", fixed.New(300))
	if err := book.ApplyBatch(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := v.ValidateGlobalBalance(); err != nil {
		t.Errorf("double-entry book must stay zero-sum: %v", err)
	}
}

func TestInvariantValidator_NegativeSystemBalanceCaught(t *testing.T) {
	book := ledger.NewBook()
	v := ledger.NewInvariantValidator(book)

	// Withdraw from an empty account drives it negative.
	batch := ledger.NewBatch(ledger.Stamp{EventRef: "wd-2", Sequence: 1})
	batch.Add(ledger.JournalTypeCollateralWithdraw,
		ledger.ExternalAccount(ledger.AccountIssuance, "TOKA"),
		ledger.SystemAccount(ledger.AccountBacking, "TOKA"),
		"TOKA", fixed.New(10))
	if err := book.ApplyBatch(batch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if err := v.ValidateSystemNonNegative(); err == nil {
		t.Error("negative system balance should be caught")
	}
}
