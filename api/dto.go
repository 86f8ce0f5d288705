package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/finance-engine/ledger"
	"github.com/warp/finance-engine/money"
)

// =============================================================================
// REQUEST DTOs
// =============================================================================
// Monetary fields are decoded as `any` so that browsers may send numbers,
// numeric strings or nothing at all; money.ToAmount coerces them.

// CreateAccountRequest is the body for POST /api/accounts.
type CreateAccountRequest struct {
	Name    string             `json:"name"`
	Type    ledger.AccountType `json:"type"`
	Balance any                `json:"balance"`
}

func (r CreateAccountRequest) input() ledger.AccountInput {
	return ledger.AccountInput{Name: r.Name, Type: r.Type, Balance: money.ToAmount(r.Balance)}
}

// UpdateAccountRequest is the body for PATCH /api/accounts/{id}.
type UpdateAccountRequest struct {
	Name string             `json:"name"`
	Type ledger.AccountType `json:"type"`
}

// TransactionRequest is the body for POST and PATCH on /api/transactions.
type TransactionRequest struct {
	Kind        ledger.TransactionKind `json:"kind"`
	AccountID   ledger.AccountID       `json:"account_id"`
	CategoryID  ledger.CategoryID      `json:"category_id"`
	Amount      any                    `json:"amount"`
	Description string                 `json:"description"`
	Date        ledger.Date            `json:"date"`
}

func (r TransactionRequest) input() ledger.TransactionInput {
	return ledger.TransactionInput{
		Kind:        r.Kind,
		AccountID:   r.AccountID,
		CategoryID:  r.CategoryID,
		Amount:      money.ToAmount(r.Amount),
		Description: r.Description,
		Date:        r.Date,
	}
}

// InstrumentRequest is the body for POST and PATCH on /api/investments.
// TotalDue and Profit are derived when omitted.
type InstrumentRequest struct {
	AccountID   ledger.AccountID      `json:"account_id"`
	Kind        ledger.InstrumentKind `json:"kind"`
	Beneficiary string                `json:"beneficiary"`
	Description string                `json:"description"`
	Principal   any                   `json:"principal"`
	Rate        any                   `json:"rate"`
	TotalDue    any                   `json:"total_due"`
	Profit      any                   `json:"profit"`
	InvestedAt  ledger.Date           `json:"invested_at"`
	DueAt       ledger.Date           `json:"due_at"`
}

func (r InstrumentRequest) input() ledger.InstrumentInput {
	return ledger.InstrumentInput{
		AccountID:   r.AccountID,
		Kind:        r.Kind,
		Beneficiary: r.Beneficiary,
		Description: r.Description,
		Principal:   money.ToAmount(r.Principal),
		Rate:        money.ToAmount(r.Rate),
		TotalDue:    optionalAmount(r.TotalDue),
		Profit:      optionalAmount(r.Profit),
		InvestedAt:  r.InvestedAt,
		DueAt:       r.DueAt,
	}
}

// FinalizeRequest is the body for POST /api/investments/{id}/finalize.
type FinalizeRequest struct {
	AccountID    ledger.AccountID `json:"account_id"`
	ReturnAmount any              `json:"return_amount"`
}

// PaymentRequest is the body for POST and PATCH on /api/investments/{id}/payments.
// The instrument comes from the URL.
type PaymentRequest struct {
	AccountID   ledger.AccountID `json:"account_id"`
	Amount      any              `json:"amount"`
	Date        ledger.Date      `json:"date"`
	Description string           `json:"description"`
}

func (r PaymentRequest) input(instrumentID ledger.InstrumentID) ledger.PaymentInput {
	return ledger.PaymentInput{
		InstrumentID: instrumentID,
		AccountID:    r.AccountID,
		Amount:       money.ToAmount(r.Amount),
		Date:         r.Date,
		Description:  r.Description,
	}
}

// =============================================================================
// RESPONSE DTOs
// =============================================================================

// SummaryResponse is the body for GET /api/summary.
type SummaryResponse struct {
	ledger.Summary
	Currency  string `json:"currency"`
	Formatted struct {
		Capital        string `json:"capital"`
		Invested       string `json:"invested"`
		ActiveInvested string `json:"active_invested"`
		Profit         string `json:"profit"`
	} `json:"formatted"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details any                 `json:"details,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func optionalAmount(raw any) *decimal.Decimal {
	if raw == nil {
		return nil
	}
	if s, ok := raw.(string); ok && s == "" {
		return nil
	}
	d := money.ToAmount(raw)
	return &d
}

func newSummaryResponse(s ledger.Summary, currency string) SummaryResponse {
	resp := SummaryResponse{Summary: s, Currency: currency}
	resp.Formatted.Capital = money.Format(s.Capital, currency)
	resp.Formatted.Invested = money.Format(s.Invested, currency)
	resp.Formatted.ActiveInvested = money.Format(s.ActiveInvested, currency)
	resp.Formatted.Profit = money.Format(s.Profit, currency)
	return resp
}
