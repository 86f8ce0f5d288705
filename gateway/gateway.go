/*
Package gateway defines the API Gateway contract the ledger consumes.

PURPOSE:
  The backend is the source of truth. Every logical operation goes through a
  Gateway, which returns either the record(s) or a *Failure carrying the
  HTTP-style status class and optional field-level validation detail.

RESPONSIBILITIES:
  Transport, auth-token attachment and idempotency keys belong here. The
  ledger never retries; it only inspects failures with errors.Is against
  the ledger sentinels.

IMPLEMENTATIONS:
  - http.go: REST client for the api package's routes
*/
package gateway

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-engine/ledger"
)

// Gateway is the remote half of every ledger operation.
type Gateway interface {
	ListAccounts(ctx context.Context) ([]ledger.Account, error)
	CreateAccount(ctx context.Context, in ledger.AccountInput) (ledger.Account, error)
	UpdateAccount(ctx context.Context, id ledger.AccountID, in AccountUpdate) (ledger.Account, error)
	DeleteAccount(ctx context.Context, id ledger.AccountID) error
	ListAccountTypes(ctx context.Context) ([]ledger.AccountTypeInfo, error)

	ListTransactions(ctx context.Context) ([]ledger.Transaction, error)
	CreateTransaction(ctx context.Context, in ledger.TransactionInput) (ledger.Transaction, error)
	UpdateTransaction(ctx context.Context, id ledger.TransactionID, in ledger.TransactionInput) (ledger.Transaction, error)
	DeleteTransaction(ctx context.Context, id ledger.TransactionID) error
	ListCategories(ctx context.Context) ([]ledger.Category, error)

	ListInvestments(ctx context.Context) ([]ledger.Instrument, error)
	ListInvestmentTypes(ctx context.Context) ([]ledger.InstrumentKindInfo, error)
	GetInvestmentByID(ctx context.Context, id ledger.InstrumentID) (ledger.Instrument, error)
	CreateInvestment(ctx context.Context, in ledger.InstrumentInput) (ledger.Instrument, error)
	UpdateInvestment(ctx context.Context, id ledger.InstrumentID, in ledger.InstrumentInput) (ledger.Instrument, error)
	DeleteInvestment(ctx context.Context, id ledger.InstrumentID) error
	FinalizeInvestment(ctx context.Context, id ledger.InstrumentID, in FinalizeRequest) (ledger.Instrument, error)

	ListPaymentsForInvestment(ctx context.Context, id ledger.InstrumentID) ([]ledger.Payment, error)
	CreatePayment(ctx context.Context, in ledger.PaymentInput) (ledger.Payment, error)
	UpdatePayment(ctx context.Context, id ledger.PaymentID, in ledger.PaymentInput) (ledger.Payment, error)
	DeletePayment(ctx context.Context, instrumentID ledger.InstrumentID, id ledger.PaymentID) error
}

// AccountUpdate is the body of updateAccount. Balances are not client-editable.
type AccountUpdate struct {
	Name string             `json:"name"`
	Type ledger.AccountType `json:"type"`
}

// FinalizeRequest closes out an instrument with a return amount.
type FinalizeRequest struct {
	AccountID    ledger.AccountID `json:"account_id"`
	ReturnAmount decimal.Decimal  `json:"return_amount"`
}
