/*
handlers_test.go - Unit tests for API handlers

Tests for:
- Account lifecycle and reference-protected delete
- Error class to HTTP status mapping
- Credit repayment flow and summary
- Idempotency replay and bearer auth
- Snapshot persistence across handler restarts
- Rollback when the snapshot cannot be persisted
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/finance-engine/ledger"
	"github.com/warp/finance-engine/ledger/store"
)

type testServer struct {
	t      *testing.T
	router http.Handler
	h      *Handler
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	clock := func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	h := NewHandler(ledger.NewBook(ledger.WithClock(clock)), store.NewMemory())
	return &testServer{t: t, router: NewRouter(h, cfg), h: h}
}

func (s *testServer) do(method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *testServer) createAccount(name string, typ ledger.AccountType, balance any) ledger.Account {
	s.t.Helper()
	rec := s.do(http.MethodPost, "/api/accounts", map[string]any{"name": name, "type": typ, "balance": balance})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[ledger.Account](s.t, rec)
}

func (s *testServer) balance(id ledger.AccountID) string {
	s.t.Helper()
	acc, err := s.h.Book.Account(id)
	require.NoError(s.t, err)
	return acc.Balance.StringFixed(2)
}

func TestAccounts_Lifecycle(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	// GIVEN: An account created with a string balance
	acc := s.createAccount("Main bank", ledger.AccountBank, "1000.50")
	assert.Equal(t, ledger.AccountID(1), acc.ID)
	assert.Equal(t, "1000.50", acc.Balance.StringFixed(2))

	// WHEN: It is renamed
	rec := s.do(http.MethodPatch, "/api/accounts/1", map[string]any{"name": "Savings", "type": "bank"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Savings", decode[ledger.Account](t, rec).Name)

	// THEN: Listing shows the new name and deleting empties the ledger
	list := decode[[]ledger.Account](t, s.do(http.MethodGet, "/api/accounts", nil))
	require.Len(t, list, 1)
	assert.Equal(t, "Savings", list[0].Name)

	rec = s.do(http.MethodDelete, "/api/accounts/1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, decode[[]ledger.Account](t, s.do(http.MethodGet, "/api/accounts", nil)))
}

func TestVocabularies(t *testing.T) {
	s := newTestServer(t, RouterConfig{})

	types := decode[[]ledger.AccountTypeInfo](t, s.do(http.MethodGet, "/api/account-types", nil))
	assert.Len(t, types, 3)

	cats := decode[[]ledger.Category](t, s.do(http.MethodGet, "/api/transaction-categories", nil))
	assert.Len(t, cats, len(ledger.DefaultCategories()))

	kinds := decode[[]ledger.InstrumentKindInfo](t, s.do(http.MethodGet, "/api/investment-types", nil))
	assert.Equal(t, ledger.InstrumentCredit, kinds[0].ID)
}

func TestErrorClasses_MapToStatus(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	acc := s.createAccount("Wallet", ledger.AccountCash, 100)

	t.Run("insufficient funds is 400 with code", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/investments", map[string]any{
			"account_id": acc.ID, "kind": "stock", "principal": 150, "rate": 0, "invested_at": "2025-01-01",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, ledger.ClassInsufficientFunds, resp.Code)
		assert.Contains(t, resp.Error, "insufficient funds")
		assert.Equal(t, "100.00", s.balance(acc.ID))
	})

	t.Run("validation is 400 with field detail", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/transactions", map[string]any{
			"kind": "expense", "account_id": acc.ID, "category_id": 10, "amount": 0, "date": "2025-01-02",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, ledger.ClassValidation, resp.Code)
		assert.Equal(t, []string{"must be positive"}, resp.Fields["amount"])
	})

	t.Run("unknown record is 404", func(t *testing.T) {
		rec := s.do(http.MethodPatch, "/api/transactions/99", map[string]any{
			"kind": "income", "account_id": acc.ID, "category_id": 1, "amount": 5, "date": "2025-01-02",
		})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, ledger.ClassNotFound, decode[ErrorResponse](t, rec).Code)
	})

	t.Run("referenced account delete is 409", func(t *testing.T) {
		rec := s.do(http.MethodPost, "/api/transactions", map[string]any{
			"kind": "income", "account_id": acc.ID, "category_id": 1, "amount": "25", "date": "2025-01-02",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = s.do(http.MethodDelete, "/api/accounts/1", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "125.00", s.balance(acc.ID))
	})

	t.Run("malformed body and id are 400", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/accounts", bytes.NewBufferString("{not json"))
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = s.do(http.MethodDelete, "/api/accounts/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTransactions_AmendAndVoid(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	acc := s.createAccount("Bank", ledger.AccountBank, 500)

	// GIVEN: An expense of 120
	rec := s.do(http.MethodPost, "/api/transactions", map[string]any{
		"kind": "expense", "account_id": acc.ID, "category_id": 11, "amount": 120, "date": "2025-02-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	tx := decode[ledger.Transaction](t, rec)
	assert.Equal(t, "380.00", s.balance(acc.ID))

	// WHEN: It is amended to 80
	rec = s.do(http.MethodPatch, "/api/transactions/1", map[string]any{
		"kind": "expense", "account_id": acc.ID, "category_id": 11, "amount": 80, "date": "2025-02-01",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, tx.ID, decode[ledger.Transaction](t, rec).ID)
	assert.Equal(t, "420.00", s.balance(acc.ID))

	// THEN: Filtering by account finds it, and voiding restores the balance
	list := decode[[]ledger.Transaction](t, s.do(http.MethodGet, "/api/transactions?account_id=1", nil))
	assert.Len(t, list, 1)
	assert.Empty(t, decode[[]ledger.Transaction](t, s.do(http.MethodGet, "/api/transactions?account_id=2", nil)))

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/transactions/1", nil).Code)
	assert.Equal(t, "500.00", s.balance(acc.ID))
}

func TestCreditRepayment_SettlesAndSummarizes(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	acc := s.createAccount("Bank", ledger.AccountBank, 1000)

	// GIVEN: A credit of 500 at 10%
	rec := s.do(http.MethodPost, "/api/investments", map[string]any{
		"account_id": acc.ID, "kind": "credito", "beneficiary": "Ana",
		"principal": 500, "rate": 10, "invested_at": "2025-01-01", "due_at": "2025-06-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	inst := decode[ledger.Instrument](t, rec)
	assert.Equal(t, "550.00", inst.TotalDue.StringFixed(2))
	assert.Equal(t, "500.00", s.balance(acc.ID))

	// WHEN: Two repayments cover the total due
	for _, amount := range []any{300, "250"} {
		rec = s.do(http.MethodPost, "/api/investments/1/payments", map[string]any{"amount": amount, "date": "2025-03-01"})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	// THEN: The credit is settled and repayments landed in the funding account
	got := decode[ledger.Instrument](t, s.do(http.MethodGet, "/api/investments/1", nil))
	assert.Equal(t, ledger.StatusSettled, got.Status)
	assert.Equal(t, "1050.00", s.balance(acc.ID))

	payments := decode[[]ledger.Payment](t, s.do(http.MethodGet, "/api/investments/1/payments", nil))
	assert.Len(t, payments, 2)

	summary := decode[SummaryResponse](t, s.do(http.MethodGet, "/api/summary", nil))
	assert.Equal(t, "USD", summary.Currency)
	assert.Equal(t, "1050.00", summary.Capital.StringFixed(2))
	assert.Equal(t, "$1,050.00", summary.Formatted.Capital)
	assert.Equal(t, "$500.00", summary.Formatted.Invested)
	assert.Equal(t, "$0.00", summary.Formatted.ActiveInvested)

	// AND: Removing one payment reopens the credit
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/investments/1/payments/2", nil).Code)
	got = decode[ledger.Instrument](t, s.do(http.MethodGet, "/api/investments/1", nil))
	assert.Equal(t, ledger.StatusActive, got.Status)
}

func TestPayments_ScopedToInstrument(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	acc := s.createAccount("Bank", ledger.AccountBank, 1000)
	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/api/investments", map[string]any{
			"account_id": acc.ID, "kind": "credito", "principal": 100, "rate": 0, "invested_at": "2025-01-01",
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	rec := s.do(http.MethodPost, "/api/investments/1/payments", map[string]any{"amount": 40, "date": "2025-02-01"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Payment 1 belongs to instrument 1, not 2
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodDelete, "/api/investments/2/payments/1", nil).Code)
	rec = s.do(http.MethodPatch, "/api/investments/2/payments/1", map[string]any{"amount": 10, "date": "2025-02-01"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(http.MethodPatch, "/api/investments/1/payments/1", map[string]any{"amount": 60, "date": "2025-02-01"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "860.00", s.balance(acc.ID))
}

func TestFinalizeAndClose(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	bank := s.createAccount("Bank", ledger.AccountBank, 1000)
	cash := s.createAccount("Cash", ledger.AccountCash, 0)

	rec := s.do(http.MethodPost, "/api/investments", map[string]any{
		"account_id": bank.ID, "kind": "deposit", "principal": 400, "rate": 5, "invested_at": "2025-01-01",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: Finalized into the cash account
	rec = s.do(http.MethodPost, "/api/investments/1/finalize", map[string]any{"account_id": cash.ID, "return_amount": "420"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	inst := decode[ledger.Instrument](t, rec)
	assert.Equal(t, ledger.StatusFinalized, inst.Status)
	assert.Equal(t, "420.00", s.balance(cash.ID))

	// THEN: Finalizing twice fails, and closing returns no principal
	rec = s.do(http.MethodPost, "/api/investments/1/finalize", map[string]any{"account_id": cash.ID, "return_amount": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/api/investments/1", nil).Code)
	assert.Equal(t, "600.00", s.balance(bank.ID))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/investments/1", nil).Code)
}

func TestIdempotencyKey_ReplaysCreate(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	acc := s.createAccount("Bank", ledger.AccountBank, 100)
	key := uuid.NewString()
	body := map[string]any{"kind": "income", "account_id": acc.ID, "category_id": 1, "amount": 50, "date": "2025-01-05"}

	// GIVEN: The same create sent twice with one key
	first := s.do(http.MethodPost, "/api/transactions", body, "Idempotency-Key", key)
	second := s.do(http.MethodPost, "/api/transactions", body, "Idempotency-Key", key)

	// THEN: Both answers are identical and the income was applied once
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, "150.00", s.balance(acc.ID))

	// AND: A fresh key applies again, a malformed key is rejected
	assert.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/api/transactions", body, "Idempotency-Key", uuid.NewString()).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/api/transactions", body, "Idempotency-Key", "nope").Code)
	assert.Equal(t, "200.00", s.balance(acc.ID))
}

func TestIdempotencyKey_FailuresAreNotCached(t *testing.T) {
	s := newTestServer(t, RouterConfig{})
	key := uuid.NewString()
	body := map[string]any{"name": "Bank", "type": "bank", "balance": 10}

	bad := s.do(http.MethodPost, "/api/accounts", map[string]any{"name": "", "type": "bank"}, "Idempotency-Key", key)
	assert.Equal(t, http.StatusBadRequest, bad.Code)

	good := s.do(http.MethodPost, "/api/accounts", body, "Idempotency-Key", key)
	assert.Equal(t, http.StatusCreated, good.Code)
	assert.Empty(t, good.Header().Get("Idempotent-Replayed"))
}

func TestRequireToken(t *testing.T) {
	s := newTestServer(t, RouterConfig{AuthToken: "s3cret"})

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/accounts", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/api/accounts", nil, "Authorization", "Bearer wrong").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/api/accounts", nil, "Authorization", "Bearer s3cret").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", nil).Code)
}

func TestHandler_PersistsAndReloads(t *testing.T) {
	// GIVEN: A handler whose mutations land in a session store
	mem := store.NewMemory()
	h := NewHandler(ledger.NewBook(), mem)
	s := &testServer{t: t, router: NewRouter(h, RouterConfig{}), h: h}
	acc := s.createAccount("Bank", ledger.AccountBank, 250)
	rec := s.do(http.MethodPost, "/api/transactions", map[string]any{
		"kind": "expense", "account_id": acc.ID, "category_id": 12, "amount": 19.99, "date": "2025-01-09",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// WHEN: A new handler loads from the same store
	restarted := NewHandler(ledger.NewBook(), mem)
	ok, err := restarted.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	// THEN: Balances and ID allocation continue where they left off
	got, err := restarted.Book.Account(acc.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.RequireFromString("230.01")))

	next, err := restarted.Book.CreateAccount(ledger.AccountInput{Name: "Cash", Type: ledger.AccountCash})
	require.NoError(t, err)
	assert.Equal(t, ledger.AccountID(2), next.ID)
}

// brokenStore fails every Set while broken is true.
type brokenStore struct {
	*store.Memory
	broken bool
}

func (b *brokenStore) Set(ctx context.Context, key, value string) error {
	if b.broken {
		return errors.New("disk full")
	}
	return b.Memory.Set(ctx, key, value)
}

func TestHandler_PersistFailureRollsBack(t *testing.T) {
	// GIVEN: An account persisted while the store still works
	st := &brokenStore{Memory: store.NewMemory()}
	h := NewHandler(ledger.NewBook(), st)
	s := &testServer{t: t, router: NewRouter(h, RouterConfig{}), h: h}
	acc := s.createAccount("Bank", ledger.AccountBank, 100)
	income := map[string]any{
		"kind": "income", "account_id": acc.ID, "category_id": 1, "amount": 100, "date": "2025-01-10",
	}

	// WHEN: The store breaks and the same income is posted twice
	st.broken = true
	for i := 0; i < 2; i++ {
		rec := s.do(http.MethodPost, "/api/transactions", income)
		require.Equal(t, http.StatusInternalServerError, rec.Code, rec.Body.String())
	}

	// THEN: Neither attempt left anything behind
	assert.Equal(t, "100.00", s.balance(acc.ID))
	assert.Empty(t, h.Book.Transactions())

	// AND: Once the store recovers, the next attempt applies exactly once
	st.broken = false
	rec := s.do(http.MethodPost, "/api/transactions", income)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, ledger.TransactionID(1), decode[ledger.Transaction](t, rec).ID)
	assert.Equal(t, "200.00", s.balance(acc.ID))
	assert.Len(t, h.Book.Transactions(), 1)
}

func TestHandler_LoadWithoutStore(t *testing.T) {
	h := NewHandler(ledger.NewBook(), nil)
	ok, err := h.Load(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
}
