package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/warp/finance-engine/ledger"
)

// TokenSource returns the bearer token to attach, or "" for none.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken always returns tok.
func StaticToken(tok string) TokenSource {
	return func(context.Context) (string, error) { return tok, nil }
}

// errorBody mirrors the backend's error envelope.
type errorBody struct {
	Error   string              `json:"error"`
	Code    string              `json:"code"`
	Details any                 `json:"details"`
	Fields  map[string][]string `json:"fields"`
}

// Client talks to the REST backend under BaseURL + "/api".
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   TokenSource
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.HTTP = hc }
}

// WithToken sets the bearer token source.
func WithToken(ts TokenSource) ClientOption {
	return func(c *Client) { c.Token = ts }
}

// NewClient creates a Client with a 15 second request timeout.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ Gateway = (*Client)(nil)

// =============================================================================
// ACCOUNTS
// =============================================================================

func (c *Client) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	var out []ledger.Account
	return out, c.do(ctx, http.MethodGet, "/accounts", nil, &out)
}

func (c *Client) CreateAccount(ctx context.Context, in ledger.AccountInput) (ledger.Account, error) {
	var out ledger.Account
	return out, c.do(ctx, http.MethodPost, "/accounts", in, &out)
}

func (c *Client) UpdateAccount(ctx context.Context, id ledger.AccountID, in AccountUpdate) (ledger.Account, error) {
	var out ledger.Account
	return out, c.do(ctx, http.MethodPatch, fmt.Sprintf("/accounts/%d", id), in, &out)
}

func (c *Client) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/accounts/%d", id), nil, nil)
}

func (c *Client) ListAccountTypes(ctx context.Context) ([]ledger.AccountTypeInfo, error) {
	var out []ledger.AccountTypeInfo
	return out, c.do(ctx, http.MethodGet, "/account-types", nil, &out)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (c *Client) ListTransactions(ctx context.Context) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	return out, c.do(ctx, http.MethodGet, "/transactions", nil, &out)
}

func (c *Client) CreateTransaction(ctx context.Context, in ledger.TransactionInput) (ledger.Transaction, error) {
	var out ledger.Transaction
	return out, c.do(ctx, http.MethodPost, "/transactions", in, &out)
}

func (c *Client) UpdateTransaction(ctx context.Context, id ledger.TransactionID, in ledger.TransactionInput) (ledger.Transaction, error) {
	var out ledger.Transaction
	return out, c.do(ctx, http.MethodPatch, fmt.Sprintf("/transactions/%d", id), in, &out)
}

func (c *Client) DeleteTransaction(ctx context.Context, id ledger.TransactionID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/transactions/%d", id), nil, nil)
}

func (c *Client) ListCategories(ctx context.Context) ([]ledger.Category, error) {
	var out []ledger.Category
	return out, c.do(ctx, http.MethodGet, "/transaction-categories", nil, &out)
}

// =============================================================================
// INVESTMENTS
// =============================================================================

func (c *Client) ListInvestments(ctx context.Context) ([]ledger.Instrument, error) {
	var out []ledger.Instrument
	return out, c.do(ctx, http.MethodGet, "/investments", nil, &out)
}

func (c *Client) ListInvestmentTypes(ctx context.Context) ([]ledger.InstrumentKindInfo, error) {
	var out []ledger.InstrumentKindInfo
	return out, c.do(ctx, http.MethodGet, "/investment-types", nil, &out)
}

func (c *Client) GetInvestmentByID(ctx context.Context, id ledger.InstrumentID) (ledger.Instrument, error) {
	var out ledger.Instrument
	return out, c.do(ctx, http.MethodGet, fmt.Sprintf("/investments/%d", id), nil, &out)
}

func (c *Client) CreateInvestment(ctx context.Context, in ledger.InstrumentInput) (ledger.Instrument, error) {
	var out ledger.Instrument
	return out, c.do(ctx, http.MethodPost, "/investments", in, &out)
}

func (c *Client) UpdateInvestment(ctx context.Context, id ledger.InstrumentID, in ledger.InstrumentInput) (ledger.Instrument, error) {
	var out ledger.Instrument
	return out, c.do(ctx, http.MethodPatch, fmt.Sprintf("/investments/%d", id), in, &out)
}

func (c *Client) DeleteInvestment(ctx context.Context, id ledger.InstrumentID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/investments/%d", id), nil, nil)
}

func (c *Client) FinalizeInvestment(ctx context.Context, id ledger.InstrumentID, in FinalizeRequest) (ledger.Instrument, error) {
	var out ledger.Instrument
	return out, c.do(ctx, http.MethodPost, fmt.Sprintf("/investments/%d/finalize", id), in, &out)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (c *Client) ListPaymentsForInvestment(ctx context.Context, id ledger.InstrumentID) ([]ledger.Payment, error) {
	var out []ledger.Payment
	return out, c.do(ctx, http.MethodGet, fmt.Sprintf("/investments/%d/payments", id), nil, &out)
}

func (c *Client) CreatePayment(ctx context.Context, in ledger.PaymentInput) (ledger.Payment, error) {
	var out ledger.Payment
	return out, c.do(ctx, http.MethodPost, fmt.Sprintf("/investments/%d/payments", in.InstrumentID), in, &out)
}

func (c *Client) UpdatePayment(ctx context.Context, id ledger.PaymentID, in ledger.PaymentInput) (ledger.Payment, error) {
	var out ledger.Payment
	return out, c.do(ctx, http.MethodPatch, fmt.Sprintf("/investments/%d/payments/%d", in.InstrumentID, id), in, &out)
}

func (c *Client) DeletePayment(ctx context.Context, instrumentID ledger.InstrumentID, id ledger.PaymentID) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/investments/%d/payments/%d", instrumentID, id), nil, nil)
}

// =============================================================================
// TRANSPORT
// =============================================================================

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+"/api"+path, reader)
	if err != nil {
		return &Failure{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}
	if c.Token != nil {
		tok, err := c.Token(ctx)
		if err != nil {
			return &Failure{Err: err}
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &Failure{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeFailure(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Failure{Status: resp.StatusCode, Message: "malformed response body", Err: err}
	}
	return nil
}

func decodeFailure(resp *http.Response) *Failure {
	f := &Failure{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var eb errorBody
	if json.Unmarshal(raw, &eb) != nil {
		return f
	}
	f.Code = eb.Code
	f.Fields = eb.Fields
	switch {
	case eb.Error != "":
		f.Message = eb.Error
	case len(eb.Fields) > 0:
		f.Message = strings.Join(f.FieldErrors(), "; ")
	}
	return f
}
