/*
Package ledger is the client-side financial state engine.

PURPOSE:
  Keeps account balances consistent with every income/expense transaction,
  investment/credit instrument and repayment that references them. Balances
  are running sums kept client-side; the backend remains the source of truth
  and can resynchronize them at any time.

COMPONENTS:
  Accounts:     owns accounts and balances (credit, debit, views, delete guard)
  Journal:      income/expense transactions, one balance delta each
  Instruments:  investments and credits; reserve and return capital
  Payments:     repayments against credit instruments, drive settle status
  Book:         single-writer facade that serializes every mutation and
                rolls state back when an operation fails

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: monotonically increasing, typed per record kind
  - Account, Transaction, Instrument, Payment: the data model
  - *Input types: caller-supplied fields for create/amend operations

INVARIANTS:
  1. Account balance = initial balance + signed sum of live deltas
  2. A failed operation leaves every record exactly as it was
  3. Records reference accounts by ID only, never by handle

SEE ALSO:
  - book.go: Book, Tx and the all-or-nothing Do()
  - errors.go: error taxonomy
  - snapshot.go: lossless serialization for offline resume
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// Identifiers are allocated in increasing order, so a higher ID is more recent.
type AccountID int64
type TransactionID int64
type InstrumentID int64
type PaymentID int64
type CategoryID int64

// =============================================================================
// ACCOUNT
// =============================================================================

type AccountType string

const (
	AccountCash  AccountType = "cash"
	AccountBank  AccountType = "bank"
	AccountOther AccountType = "other"
)

func (t AccountType) Valid() bool {
	switch t {
	case AccountCash, AccountBank, AccountOther:
		return true
	}
	return false
}

// IsCapital reports whether balances of this type count as available capital.
func (t AccountType) IsCapital() bool {
	return t == AccountCash || t == AccountBank
}

// AccountTypeInfo is the listing form of an AccountType.
type AccountTypeInfo struct {
	ID   AccountType `json:"id"`
	Name string      `json:"name"`
}

// AccountTypes returns the fixed account type vocabulary.
func AccountTypes() []AccountTypeInfo {
	return []AccountTypeInfo{
		{ID: AccountCash, Name: "Cash"},
		{ID: AccountBank, Name: "Bank"},
		{ID: AccountOther, Name: "Other"},
	}
}

type Account struct {
	ID        AccountID       `json:"id"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}

// AccountInput creates or updates an account. Balance is the initial balance
// and is ignored on update. A zero ID asks the ledger to allocate one.
type AccountInput struct {
	ID        AccountID       `json:"id,omitempty"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at,omitempty"`
}

// =============================================================================
// TRANSACTION - Income | Expense
// =============================================================================

type TransactionKind string

const (
	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

func (k TransactionKind) Valid() bool { return k == Income || k == Expense }

// Delta returns the signed balance change for a positive amount.
func (k TransactionKind) Delta(amount decimal.Decimal) decimal.Decimal {
	if k == Expense {
		return amount.Neg()
	}
	return amount
}

type Category struct {
	ID   CategoryID      `json:"id"`
	Name string          `json:"name"`
	Kind TransactionKind `json:"kind"`
}

// DefaultCategories is the fixed category vocabulary, bound per variant.
func DefaultCategories() []Category {
	return []Category{
		{ID: 1, Name: "Salary", Kind: Income},
		{ID: 2, Name: "Freelance", Kind: Income},
		{ID: 3, Name: "Investment returns", Kind: Income},
		{ID: 4, Name: "Other income", Kind: Income},
		{ID: 10, Name: "Housing", Kind: Expense},
		{ID: 11, Name: "Food", Kind: Expense},
		{ID: 12, Name: "Transport", Kind: Expense},
		{ID: 13, Name: "Utilities", Kind: Expense},
		{ID: 14, Name: "Health", Kind: Expense},
		{ID: 15, Name: "Entertainment", Kind: Expense},
		{ID: 16, Name: "Other expense", Kind: Expense},
	}
}

// Transaction amounts are always stored positive; Kind supplies the sign.
type Transaction struct {
	ID          TransactionID   `json:"id"`
	Kind        TransactionKind `json:"kind"`
	AccountID   AccountID       `json:"account_id"`
	CategoryID  CategoryID      `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Date        Date            `json:"date"`
	Seq         int64           `json:"seq"`
}

// Delta is the signed change this transaction applied to its account.
func (t Transaction) Delta() decimal.Decimal { return t.Kind.Delta(t.Amount) }

type TransactionInput struct {
	ID          TransactionID   `json:"id,omitempty"`
	Kind        TransactionKind `json:"kind"`
	AccountID   AccountID       `json:"account_id"`
	CategoryID  CategoryID      `json:"category_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
	Date        Date            `json:"date"`
}

// =============================================================================
// INSTRUMENT - Investment or credit extended from an account
// =============================================================================

type InstrumentKind string

const (
	// InstrumentCredit is credit extended to a third party; only credits take payments.
	InstrumentCredit  InstrumentKind = "credito"
	InstrumentDeposit InstrumentKind = "deposit"
	InstrumentStock   InstrumentKind = "stock"
	InstrumentOther   InstrumentKind = "other"
)

// InstrumentKindInfo is the listing form of an InstrumentKind.
type InstrumentKindInfo struct {
	ID   InstrumentKind `json:"id"`
	Name string         `json:"name"`
}

func InstrumentKinds() []InstrumentKindInfo {
	return []InstrumentKindInfo{
		{ID: InstrumentCredit, Name: "Credit"},
		{ID: InstrumentDeposit, Name: "Term deposit"},
		{ID: InstrumentStock, Name: "Stock"},
		{ID: InstrumentOther, Name: "Other"},
	}
}

type Status string

const (
	StatusActive    Status = "active"
	StatusSettled   Status = "settled"
	StatusFinalized Status = "finalized"
)

// Completed reports whether capital has already left the credit cycle.
func (s Status) Completed() bool { return s == StatusSettled || s == StatusFinalized }

type Instrument struct {
	ID              InstrumentID     `json:"id"`
	AccountID       AccountID        `json:"account_id"`
	Kind            InstrumentKind   `json:"kind"`
	Beneficiary     string           `json:"beneficiary,omitempty"`
	Description     string           `json:"description,omitempty"`
	Principal       decimal.Decimal  `json:"principal"`
	Rate            decimal.Decimal  `json:"rate"`
	TotalDue        decimal.Decimal  `json:"total_due"`
	Profit          decimal.Decimal  `json:"profit"`
	InvestedAt      Date             `json:"invested_at"`
	DueAt           Date             `json:"due_at"`
	Status          Status           `json:"status"`
	ReturnAmount    *decimal.Decimal `json:"return_amount,omitempty"`
	ReturnAccountID AccountID        `json:"return_account_id,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

func (i Instrument) IsCredit() bool { return i.Kind == InstrumentCredit }

// InstrumentInput opens or amends an instrument. TotalDue and Profit are
// derived from Principal and Rate when nil.
type InstrumentInput struct {
	ID          InstrumentID     `json:"id,omitempty"`
	AccountID   AccountID        `json:"account_id"`
	Kind        InstrumentKind   `json:"kind"`
	Beneficiary string           `json:"beneficiary,omitempty"`
	Description string           `json:"description,omitempty"`
	Principal   decimal.Decimal  `json:"principal"`
	Rate        decimal.Decimal  `json:"rate"`
	TotalDue    *decimal.Decimal `json:"total_due,omitempty"`
	Profit      *decimal.Decimal `json:"profit,omitempty"`
	InvestedAt  Date             `json:"invested_at"`
	DueAt       Date             `json:"due_at"`
	CreatedAt   time.Time        `json:"created_at,omitempty"`
}

// =============================================================================
// PAYMENT - Repayment received against a credit instrument
// =============================================================================

type Payment struct {
	ID           PaymentID       `json:"id"`
	InstrumentID InstrumentID    `json:"instrument_id"`
	AccountID    AccountID       `json:"account_id"`
	Amount       decimal.Decimal `json:"amount"`
	Date         Date            `json:"date"`
	Description  string          `json:"description,omitempty"`
}

// PaymentInput records a repayment. A zero AccountID deposits into the
// instrument's funding account.
type PaymentInput struct {
	ID           PaymentID       `json:"id,omitempty"`
	InstrumentID InstrumentID    `json:"instrument_id"`
	AccountID    AccountID       `json:"account_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Date         Date            `json:"date"`
	Description  string          `json:"description,omitempty"`
}

// =============================================================================
// SUMMARY - Aggregate views
// =============================================================================

type Summary struct {
	Capital        decimal.Decimal `json:"capital"`
	Cash           decimal.Decimal `json:"cash"`
	Bank           decimal.Decimal `json:"bank"`
	Invested       decimal.Decimal `json:"invested"`
	ActiveInvested decimal.Decimal `json:"active_invested"`
	Profit         decimal.Decimal `json:"profit"`
}
