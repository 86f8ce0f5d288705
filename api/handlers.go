/*
handlers.go - HTTP API handlers for the personal finance backend

PURPOSE:
  Exposes a ledger.Book via REST. Handles HTTP request/response, JSON
  serialization, and delegates every balance rule to the ledger package.

ENDPOINTS:
  Accounts:
    GET    /api/accounts                       List accounts (most recent first)
    POST   /api/accounts                       Create account with initial balance
    PATCH  /api/accounts/{id}                  Rename / retype account
    DELETE /api/accounts/{id}                  Delete unreferenced account
    GET    /api/account-types                  Account type vocabulary

  Transactions:
    GET    /api/transactions[?account_id=]     List newest first
    POST   /api/transactions                   Record income/expense
    PATCH  /api/transactions/{id}              Amend (reverse old, apply new)
    DELETE /api/transactions/{id}              Void
    GET    /api/transaction-categories         Category vocabulary

  Investments and credits:
    GET    /api/investments                    List most recent first
    POST   /api/investments                    Open (debits funding account)
    GET    /api/investments/{id}               Get one
    PATCH  /api/investments/{id}               Amend
    DELETE /api/investments/{id}               Close (returns principal if active)
    POST   /api/investments/{id}/finalize      Finalize with a return amount
    GET    /api/investment-types               Instrument kind vocabulary

  Payments:
    GET    /api/investments/{id}/payments              List for a credit
    POST   /api/investments/{id}/payments              Record repayment
    PATCH  /api/investments/{id}/payments/{paymentID}  Amend repayment
    DELETE /api/investments/{id}/payments/{paymentID}  Remove repayment

  Reports:
    GET    /api/summary                        Capital / invested / profit

ERROR HANDLING:
  Errors are returned as ErrorResponse with the HTTP status of their class:
  - 400: validation failure, insufficient funds (code "insufficient_funds")
  - 404: referenced record missing
  - 409: delete refused, record still referenced
  - 500: persistence failure

PERSISTENCE:
  Every successful mutation writes the book snapshot to the SessionStore
  before responding. Mutation and persist run under one lock so snapshots
  are written in mutation order.
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/finance-engine/ledger"
	"github.com/warp/finance-engine/money"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Book  *ledger.Book
	Store ledger.SessionStore // nil disables persistence

	writeMu sync.Mutex
}

// NewHandler creates a handler over book. store may be nil.
func NewHandler(book *ledger.Book, store ledger.SessionStore) *Handler {
	return &Handler{Book: book, Store: store}
}

// Load restores the book from the last persisted snapshot, if any.
func (h *Handler) Load(ctx context.Context) (bool, error) {
	if h.Store == nil {
		return false, nil
	}
	ok, err := ledger.ResumeSnapshot(ctx, h.Store, h.Book)
	if err != nil {
		return false, err
	}
	if ok {
		observeBook(h.Book)
	}
	return ok, nil
}

// mutate runs fn, persists the book and writes the response. A nil result
// with 204 writes no body. When the snapshot cannot be persisted the book is
// rolled back to its state before fn, so a 500 never keeps the mutation.
func (h *Handler) mutate(w http.ResponseWriter, r *http.Request, op string, status int, fn func() (any, error)) {
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	var prev ledger.Snapshot
	if h.Store != nil {
		prev = h.Book.Snapshot()
	}

	data, err := fn()
	if err != nil {
		recordOp(op, err)
		writeFailure(w, err)
		return
	}
	if h.Store != nil {
		if err := ledger.SaveSnapshot(r.Context(), h.Store, h.Book); err != nil {
			log.Printf("[api] %s: persist snapshot: %v", op, err)
			if rerr := h.Book.Restore(prev); rerr != nil {
				log.Printf("[api] %s: roll back: %v", op, rerr)
			}
			recordOp(op, err)
			writeError(w, http.StatusInternalServerError, "Failed to persist ledger", err)
			return
		}
	}
	recordOp(op, nil)
	observeBook(h.Book)

	if status == http.StatusNoContent {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, data)
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// ListAccounts returns all accounts, most recently created first.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Book.Accounts())
}

// CreateAccount opens an account with its initial balance.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, "create_account", http.StatusCreated, func() (any, error) {
		return h.Book.CreateAccount(req.input())
	})
}

// UpdateAccount renames or retypes an account.
func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req UpdateAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, "update_account", http.StatusOK, func() (any, error) {
		return h.Book.UpdateAccount(ledger.AccountID(id), req.Name, req.Type)
	})
}

// DeleteAccount removes an account nothing references.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.mutate(w, r, "delete_account", http.StatusNoContent, func() (any, error) {
		return nil, h.Book.DeleteAccount(ledger.AccountID(id))
	})
}

// ListAccountTypes returns the account type vocabulary.
func (h *Handler) ListAccountTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ledger.AccountTypes())
}

// =============================================================================
// TRANSACTION HANDLERS
// =============================================================================

// ListTransactions returns transactions newest first, optionally for one account.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("account_id")
	if raw == "" {
		writeJSON(w, http.StatusOK, h.Book.Transactions())
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeFailure(w, &ledger.ValidationError{Field: "account_id", Reason: "must be an integer"})
		return
	}
	var out []ledger.Transaction
	h.Book.View(func(tx *ledger.Tx) {
		out = tx.Journal.ListByAccount(ledger.AccountID(id))
	})
	if out == nil {
		out = []ledger.Transaction{}
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateTransaction records income or expense.
func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, "create_transaction", http.StatusCreated, func() (any, error) {
		return h.Book.RecordTransaction(req.input())
	})
}

// UpdateTransaction amends a transaction in place.
func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req TransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, "update_transaction", http.StatusOK, func() (any, error) {
		return h.Book.AmendTransaction(ledger.TransactionID(id), req.input())
	})
}

// DeleteTransaction voids a transaction.
func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.mutate(w, r, "delete_transaction", http.StatusNoContent, func() (any, error) {
		return nil, h.Book.VoidTransaction(ledger.TransactionID(id))
	})
}

// ListCategories returns the category vocabulary.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Book.Categories())
}

// =============================================================================
// INVESTMENT HANDLERS
// =============================================================================

func (h *Handler) ListInvestments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Book.Instruments())
}

func (h *Handler) ListInvestmentTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ledger.InstrumentKinds())
}

func (h *Handler) GetInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	inst, err := h.Book.Instrument(ledger.InstrumentID(id))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

// CreateInvestment opens an instrument, debiting its funding account.
func (h *Handler) CreateInvestment(w http.ResponseWriter, r *http.Request) {
	var req InstrumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, "open_instrument", http.StatusCreated, func() (any, error) {
		return h.Book.OpenInstrument(req.input())
	})
}

func (h *Handler) UpdateInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req InstrumentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, "amend_instrument", http.StatusOK, func() (any, error) {
		return h.Book.AmendInstrument(ledger.InstrumentID(id), req.input())
	})
}

// DeleteInvestment closes an instrument and its payments.
func (h *Handler) DeleteInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	h.mutate(w, r, "close_instrument", http.StatusNoContent, func() (any, error) {
		return nil, h.Book.CloseInstrument(ledger.InstrumentID(id))
	})
}

func (h *Handler) FinalizeInvestment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req FinalizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, "finalize_instrument", http.StatusOK, func() (any, error) {
		return h.Book.FinalizeInstrument(ledger.InstrumentID(id), req.AccountID, money.ToAmount(req.ReturnAmount))
	})
}

// =============================================================================
// PAYMENT HANDLERS
// =============================================================================

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	payments, err := h.Book.Payments(ledger.InstrumentID(id))
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payments)
}

// CreatePayment records a repayment against a credit.
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req PaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, "add_payment", http.StatusCreated, func() (any, error) {
		return h.Book.AddPayment(req.input(ledger.InstrumentID(id)))
	})
}

func (h *Handler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	paymentID, ok := pathID(w, r, "paymentID")
	if !ok {
		return
	}
	var req PaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	h.mutate(w, r, "amend_payment", http.StatusOK, func() (any, error) {
		if err := h.paymentBelongs(ledger.InstrumentID(id), ledger.PaymentID(paymentID)); err != nil {
			return nil, err
		}
		return h.Book.AmendPayment(ledger.PaymentID(paymentID), req.input(ledger.InstrumentID(id)))
	})
}

func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	paymentID, ok := pathID(w, r, "paymentID")
	if !ok {
		return
	}
	h.mutate(w, r, "remove_payment", http.StatusNoContent, func() (any, error) {
		if err := h.paymentBelongs(ledger.InstrumentID(id), ledger.PaymentID(paymentID)); err != nil {
			return nil, err
		}
		return nil, h.Book.RemovePayment(ledger.PaymentID(paymentID))
	})
}

// paymentBelongs hides payments of other instruments behind a 404.
func (h *Handler) paymentBelongs(instrumentID ledger.InstrumentID, id ledger.PaymentID) error {
	p, err := h.Book.Payment(id)
	if err != nil {
		return err
	}
	if p.InstrumentID != instrumentID {
		return &ledger.NotFoundError{Kind: "payment", ID: int64(id)}
	}
	return nil
}

// =============================================================================
// REPORTS
// =============================================================================

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newSummaryResponse(h.Book.Summary(), h.Book.Currency()))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeFailure maps a ledger error onto its HTTP status and error code.
func writeFailure(w http.ResponseWriter, err error) {
	class := ledger.Classify(err)
	resp := ErrorResponse{Error: ledger.Message(err), Code: class}

	var ve *ledger.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		resp.Fields = map[string][]string{ve.Field: {ve.Reason}}
	}

	status := http.StatusInternalServerError
	switch class {
	case ledger.ClassValidation, ledger.ClassInsufficientFunds:
		status = http.StatusBadRequest
	case ledger.ClassNotFound:
		status = http.StatusNotFound
	case ledger.ClassConflict:
		status = http.StatusConflict
	default:
		log.Printf("[api] unexpected error: %v", err)
	}
	writeJSON(w, status, resp)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation failed: invalid request body",
			Code:    ledger.ClassValidation,
			Details: err.Error(),
		})
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeFailure(w, &ledger.ValidationError{Field: param, Reason: fmt.Sprintf("must be a positive integer (got %q)", raw)})
		return 0, false
	}
	return id, true
}
