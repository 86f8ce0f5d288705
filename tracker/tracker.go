/*
Package tracker is the client-side state engine the presentation layer talks to.

CONTROL FLOW (every mutation):
  1. Dry-run the operation against the local Book. A local failure returns
     immediately and the backend is never contacted.
  2. Call the Gateway. A remote failure returns its class and leaves the
     local Book untouched.
  3. Apply the backend's returned record (with its assigned ID) locally.
     If that fails the Book has drifted from the backend; a full Load
     replaces it.
  4. Persist the snapshot to the SessionStore for offline-first resume.

OFFLINE MODE:
  With a nil Gateway the Tracker applies operations straight to the Book.
  Load is unavailable; Resume still works.

RESULTS:
  Every operation returns a ledger.Result. Errors never escape as raw values.
*/
package tracker

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-engine/gateway"
	"github.com/warp/finance-engine/ledger"
)

// ErrOffline is returned by Load when no Gateway is configured.
var ErrOffline = fmt.Errorf("%w: no gateway configured", ledger.ErrTransport)

type Tracker struct {
	book    *ledger.Book
	gw      gateway.Gateway
	session ledger.SessionStore
}

// New wires a tracker. gw may be nil for offline use; session may be nil to
// skip persistence.
func New(book *ledger.Book, gw gateway.Gateway, session ledger.SessionStore) *Tracker {
	return &Tracker{book: book, gw: gw, session: session}
}

// Book exposes the local state for reads.
func (t *Tracker) Book() *ledger.Book { return t.book }

func (t *Tracker) Online() bool { return t.gw != nil }

// TokenFrom reads the bearer token from the session on every request.
func TokenFrom(s ledger.SessionStore) gateway.TokenSource {
	return func(ctx context.Context) (string, error) {
		return ledger.LoadToken(ctx, s)
	}
}

// =============================================================================
// SESSION
// =============================================================================

// Login stores the bearer token used for subsequent Gateway calls.
func (t *Tracker) Login(ctx context.Context, token string) ledger.Result {
	if t.session == nil {
		return ledger.Fail(&ledger.ValidationError{Field: "session", Reason: "no session store configured"})
	}
	if token == "" {
		return ledger.Fail(&ledger.ValidationError{Field: "token", Reason: "is required"})
	}
	if err := ledger.SaveToken(ctx, t.session, token); err != nil {
		return ledger.Fail(err)
	}
	return ledger.Ok(nil)
}

// Logout forgets the token and the cached snapshot and empties the Book.
func (t *Tracker) Logout(ctx context.Context) ledger.Result {
	if t.session != nil {
		if err := ledger.ClearSession(ctx, t.session); err != nil {
			return ledger.Fail(err)
		}
	}
	t.book.Reset()
	return ledger.Ok(nil)
}

// Resume restores the Book from the persisted snapshot. Data reports whether
// a snapshot was found.
func (t *Tracker) Resume(ctx context.Context) ledger.Result {
	if t.session == nil {
		return ledger.Ok(false)
	}
	ok, err := ledger.ResumeSnapshot(ctx, t.session, t.book)
	if err != nil {
		return ledger.Fail(err)
	}
	return ledger.Ok(ok)
}

// Load replaces the Book with a full refetch from the backend.
func (t *Tracker) Load(ctx context.Context) ledger.Result {
	if err := t.load(ctx); err != nil {
		return ledger.Fail(err)
	}
	t.persist(ctx, "load")
	return ledger.Ok(t.book.Summary())
}

func (t *Tracker) load(ctx context.Context) error {
	if t.gw == nil {
		return ErrOffline
	}
	accounts, err := t.gw.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts: %w", err)
	}
	categories, err := t.gw.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("list categories: %w", err)
	}
	transactions, err := t.gw.ListTransactions(ctx)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	instruments, err := t.gw.ListInvestments(ctx)
	if err != nil {
		return fmt.Errorf("list investments: %w", err)
	}
	var payments []ledger.Payment
	for _, inst := range instruments {
		if !inst.IsCredit() {
			continue
		}
		ps, err := t.gw.ListPaymentsForInvestment(ctx, inst.ID)
		if err != nil {
			return fmt.Errorf("list payments of %d: %w", inst.ID, err)
		}
		payments = append(payments, ps...)
	}
	return t.book.ReplaceAll(accounts, categories, transactions, instruments, payments)
}

func (t *Tracker) persist(ctx context.Context, op string) {
	if t.session == nil {
		return
	}
	if err := ledger.SaveSnapshot(ctx, t.session, t.book); err != nil {
		log.Printf("[tracker] %s: persist snapshot: %v", op, err)
	}
}

// Summary is the aggregate view of the local Book.
func (t *Tracker) Summary() ledger.Summary { return t.book.Summary() }

// =============================================================================
// MUTATION PIPELINE
// =============================================================================

// mutate runs local as a dry run, then remote, then apply with the remote
// record. Offline, local runs for real.
func mutate[T any](
	ctx context.Context,
	t *Tracker,
	op string,
	local func(*ledger.Tx) (T, error),
	remote func(context.Context, gateway.Gateway) (T, error),
	apply func(*ledger.Tx, T) error,
) ledger.Result {
	if t.gw == nil {
		var out T
		err := t.book.Do(func(tx *ledger.Tx) error {
			var err error
			out, err = local(tx)
			return err
		})
		if err != nil {
			return ledger.Fail(err)
		}
		t.persist(ctx, op)
		return ledger.Ok(out)
	}

	if err := t.book.DryRun(func(tx *ledger.Tx) error {
		_, err := local(tx)
		return err
	}); err != nil {
		return ledger.Fail(err)
	}

	rec, err := remote(ctx, t.gw)
	if err != nil {
		log.Printf("[tracker] %s: gateway: %v", op, err)
		return ledger.Fail(err)
	}

	if err := t.book.Do(func(tx *ledger.Tx) error { return apply(tx, rec) }); err != nil {
		log.Printf("[tracker] %s: local apply diverged from backend (%v), reloading", op, err)
		if err := t.load(ctx); err != nil {
			// The book is known to disagree with the backend; keep the
			// previous snapshot rather than caching it.
			log.Printf("[tracker] %s: reload: %v", op, err)
			return ledger.Ok(rec)
		}
	}
	t.persist(ctx, op)
	return ledger.Ok(rec)
}

type none struct{}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (t *Tracker) CreateAccount(ctx context.Context, in ledger.AccountInput) ledger.Result {
	return mutate(ctx, t, "create_account",
		func(tx *ledger.Tx) (ledger.Account, error) { return tx.Accounts.Open(in) },
		func(ctx context.Context, gw gateway.Gateway) (ledger.Account, error) { return gw.CreateAccount(ctx, in) },
		func(tx *ledger.Tx, a ledger.Account) error {
			_, err := tx.Accounts.Open(ledger.AccountInput{
				ID: a.ID, Name: a.Name, Type: a.Type, Balance: a.Balance, CreatedAt: a.CreatedAt,
			})
			return err
		})
}

func (t *Tracker) UpdateAccount(ctx context.Context, id ledger.AccountID, name string, typ ledger.AccountType) ledger.Result {
	return mutate(ctx, t, "update_account",
		func(tx *ledger.Tx) (ledger.Account, error) { return tx.Accounts.Update(id, name, typ) },
		func(ctx context.Context, gw gateway.Gateway) (ledger.Account, error) {
			return gw.UpdateAccount(ctx, id, gateway.AccountUpdate{Name: name, Type: typ})
		},
		func(tx *ledger.Tx, a ledger.Account) error {
			if !tx.Accounts.Exists(a.ID) {
				return &ledger.NotFoundError{Kind: "account", ID: int64(a.ID)}
			}
			tx.Accounts.Resync(a)
			return nil
		})
}

func (t *Tracker) DeleteAccount(ctx context.Context, id ledger.AccountID) ledger.Result {
	return mutate(ctx, t, "delete_account",
		func(tx *ledger.Tx) (none, error) { return none{}, tx.Accounts.Delete(id) },
		func(ctx context.Context, gw gateway.Gateway) (none, error) { return none{}, gw.DeleteAccount(ctx, id) },
		func(tx *ledger.Tx, _ none) error { return tx.Accounts.Delete(id) })
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func (t *Tracker) AddTransaction(ctx context.Context, in ledger.TransactionInput) ledger.Result {
	return mutate(ctx, t, "add_transaction",
		func(tx *ledger.Tx) (ledger.Transaction, error) { return tx.Journal.Record(in) },
		func(ctx context.Context, gw gateway.Gateway) (ledger.Transaction, error) { return gw.CreateTransaction(ctx, in) },
		func(tx *ledger.Tx, rec ledger.Transaction) error {
			_, err := tx.Journal.Record(transactionInput(rec))
			return err
		})
}

func (t *Tracker) UpdateTransaction(ctx context.Context, id ledger.TransactionID, in ledger.TransactionInput) ledger.Result {
	return mutate(ctx, t, "update_transaction",
		func(tx *ledger.Tx) (ledger.Transaction, error) { return tx.Journal.Amend(id, in) },
		func(ctx context.Context, gw gateway.Gateway) (ledger.Transaction, error) {
			return gw.UpdateTransaction(ctx, id, in)
		},
		func(tx *ledger.Tx, rec ledger.Transaction) error {
			_, err := tx.Journal.Amend(rec.ID, transactionInput(rec))
			return err
		})
}

func (t *Tracker) DeleteTransaction(ctx context.Context, id ledger.TransactionID) ledger.Result {
	return mutate(ctx, t, "delete_transaction",
		func(tx *ledger.Tx) (none, error) { return none{}, tx.Journal.Void(id) },
		func(ctx context.Context, gw gateway.Gateway) (none, error) { return none{}, gw.DeleteTransaction(ctx, id) },
		func(tx *ledger.Tx, _ none) error { return tx.Journal.Void(id) })
}

// =============================================================================
// INSTRUMENTS
// =============================================================================

func (t *Tracker) OpenInstrument(ctx context.Context, in ledger.InstrumentInput) ledger.Result {
	return mutate(ctx, t, "open_instrument",
		func(tx *ledger.Tx) (ledger.Instrument, error) { return tx.Instruments.Open(in) },
		func(ctx context.Context, gw gateway.Gateway) (ledger.Instrument, error) { return gw.CreateInvestment(ctx, in) },
		func(tx *ledger.Tx, rec ledger.Instrument) error {
			_, err := tx.Instruments.Open(instrumentInput(rec))
			return err
		})
}

func (t *Tracker) UpdateInstrument(ctx context.Context, id ledger.InstrumentID, in ledger.InstrumentInput) ledger.Result {
	return mutate(ctx, t, "update_instrument",
		func(tx *ledger.Tx) (ledger.Instrument, error) { return tx.Instruments.Amend(id, in) },
		func(ctx context.Context, gw gateway.Gateway) (ledger.Instrument, error) {
			return gw.UpdateInvestment(ctx, id, in)
		},
		func(tx *ledger.Tx, rec ledger.Instrument) error {
			_, err := tx.Instruments.Amend(rec.ID, instrumentInput(rec))
			return err
		})
}

func (t *Tracker) DeleteInstrument(ctx context.Context, id ledger.InstrumentID) ledger.Result {
	return mutate(ctx, t, "delete_instrument",
		func(tx *ledger.Tx) (none, error) { return none{}, tx.Instruments.Close(id) },
		func(ctx context.Context, gw gateway.Gateway) (none, error) { return none{}, gw.DeleteInvestment(ctx, id) },
		func(tx *ledger.Tx, _ none) error { return tx.Instruments.Close(id) })
}

func (t *Tracker) FinalizeInstrument(ctx context.Context, id ledger.InstrumentID, destination ledger.AccountID, returnAmount decimal.Decimal) ledger.Result {
	return mutate(ctx, t, "finalize_instrument",
		func(tx *ledger.Tx) (ledger.Instrument, error) {
			return tx.Instruments.Finalize(id, destination, returnAmount)
		},
		func(ctx context.Context, gw gateway.Gateway) (ledger.Instrument, error) {
			return gw.FinalizeInvestment(ctx, id, gateway.FinalizeRequest{AccountID: destination, ReturnAmount: returnAmount})
		},
		func(tx *ledger.Tx, rec ledger.Instrument) error {
			amount, dest := returnAmount, destination
			if rec.ReturnAmount != nil {
				amount = *rec.ReturnAmount
			}
			if rec.ReturnAccountID != 0 {
				dest = rec.ReturnAccountID
			}
			_, err := tx.Instruments.Finalize(rec.ID, dest, amount)
			return err
		})
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (t *Tracker) AddPayment(ctx context.Context, in ledger.PaymentInput) ledger.Result {
	return mutate(ctx, t, "add_payment",
		func(tx *ledger.Tx) (ledger.Payment, error) { return tx.Payments.Add(in) },
		func(ctx context.Context, gw gateway.Gateway) (ledger.Payment, error) { return gw.CreatePayment(ctx, in) },
		func(tx *ledger.Tx, rec ledger.Payment) error {
			_, err := tx.Payments.Add(paymentInput(rec))
			return err
		})
}

// UpdatePayment amends a payment. A zero InstrumentID keeps the payment under
// its current instrument, which the backend route needs.
func (t *Tracker) UpdatePayment(ctx context.Context, id ledger.PaymentID, in ledger.PaymentInput) ledger.Result {
	p, err := t.book.Payment(id)
	if err != nil {
		return ledger.Fail(err)
	}
	if in.InstrumentID == 0 {
		in.InstrumentID = p.InstrumentID
	}
	return mutate(ctx, t, "update_payment",
		func(tx *ledger.Tx) (ledger.Payment, error) { return tx.Payments.Amend(id, in) },
		func(ctx context.Context, gw gateway.Gateway) (ledger.Payment, error) { return gw.UpdatePayment(ctx, id, in) },
		func(tx *ledger.Tx, rec ledger.Payment) error {
			_, err := tx.Payments.Amend(rec.ID, paymentInput(rec))
			return err
		})
}

func (t *Tracker) DeletePayment(ctx context.Context, id ledger.PaymentID) ledger.Result {
	p, err := t.book.Payment(id)
	if err != nil {
		return ledger.Fail(err)
	}
	return mutate(ctx, t, "delete_payment",
		func(tx *ledger.Tx) (none, error) { return none{}, tx.Payments.Remove(id) },
		func(ctx context.Context, gw gateway.Gateway) (none, error) {
			return none{}, gw.DeletePayment(ctx, p.InstrumentID, id)
		},
		func(tx *ledger.Tx, _ none) error { return tx.Payments.Remove(id) })
}

// =============================================================================
// RECORD -> INPUT
// =============================================================================
// Backend records carry their assigned IDs; replaying them as inputs keeps
// local IDs identical to the backend's.

func transactionInput(t ledger.Transaction) ledger.TransactionInput {
	return ledger.TransactionInput{
		ID:          t.ID,
		Kind:        t.Kind,
		AccountID:   t.AccountID,
		CategoryID:  t.CategoryID,
		Amount:      t.Amount,
		Description: t.Description,
		Date:        t.Date,
	}
}

func instrumentInput(i ledger.Instrument) ledger.InstrumentInput {
	total, profit := i.TotalDue, i.Profit
	return ledger.InstrumentInput{
		ID:          i.ID,
		AccountID:   i.AccountID,
		Kind:        i.Kind,
		Beneficiary: i.Beneficiary,
		Description: i.Description,
		Principal:   i.Principal,
		Rate:        i.Rate,
		TotalDue:    &total,
		Profit:      &profit,
		InvestedAt:  i.InvestedAt,
		DueAt:       i.DueAt,
		CreatedAt:   i.CreatedAt,
	}
}

func paymentInput(p ledger.Payment) ledger.PaymentInput {
	return ledger.PaymentInput{
		ID:           p.ID,
		InstrumentID: p.InstrumentID,
		AccountID:    p.AccountID,
		Amount:       p.Amount,
		Date:         p.Date,
		Description:  p.Description,
	}
}
