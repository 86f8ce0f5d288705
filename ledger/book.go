/*
book.go - Single-writer facade over the ledger components

PURPOSE:
  Every balance-affecting operation reads "current balance" and writes a new
  one. Two operations interleaving on the same account lose updates, so the
  Book serializes all of them behind one mutex.

ATOMICITY:
  Do() snapshots state before running the operation and restores it if the
  operation returns an error. Components already validate before mutating;
  the snapshot makes multi-step operations (amend = reverse + apply, close =
  return principal + cascade payments) all-or-nothing as well.

  Operations cannot be cancelled midway: once Do() has the lock, fn runs to
  completion.

USAGE:
  book := ledger.NewBook()
  acc, _ := book.CreateAccount(ledger.AccountInput{Name: "Bank", Type: ledger.AccountBank, Balance: d(1000)})
  tx, err := book.RecordTransaction(ledger.TransactionInput{...})

  // Several operations as one unit:
  err = book.Do(func(tx *ledger.Tx) error {
      if _, err := tx.Journal.Record(a); err != nil { return err }
      _, err := tx.Journal.Record(b)
      return err
  })
*/
package ledger

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Tx exposes the components to a Do/View callback. It must not be retained
// after the callback returns.
type Tx struct {
	Accounts    *Accounts
	Journal     *Journal
	Instruments *Instruments
	Payments    *Payments
}

type Book struct {
	mu sync.Mutex
	st *state
	tx *Tx
}

type options struct {
	now        func() time.Time
	currency   string
	categories []Category
}

type Option func(*options)

// WithClock sets the clock used for CreatedAt stamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithCurrency sets the ISO currency used in human-readable messages.
func WithCurrency(code string) Option {
	return func(o *options) { o.currency = code }
}

// WithCategories replaces the default category vocabulary.
func WithCategories(categories []Category) Option {
	return func(o *options) { o.categories = categories }
}

func NewBook(opts ...Option) *Book {
	o := options{now: time.Now, currency: "USD", categories: DefaultCategories()}
	for _, opt := range opts {
		opt(&o)
	}

	st := newState(o.currency, o.categories)
	accounts := &Accounts{st: st, now: o.now}
	journal := &Journal{st: st, accounts: accounts}
	instruments := &Instruments{st: st, now: o.now, accounts: accounts}
	payments := &Payments{st: st, accounts: accounts, instruments: instruments}
	instruments.payments = payments

	accounts.addReferencer("transactions", journal)
	accounts.addReferencer("instruments", instruments)
	accounts.addReferencer("payments", payments)

	return &Book{
		st: st,
		tx: &Tx{Accounts: accounts, Journal: journal, Instruments: instruments, Payments: payments},
	}
}

// Currency is the ISO code used for formatting.
func (b *Book) Currency() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.st.currency
}

// Do runs fn as one all-or-nothing mutation.
func (b *Book) Do(fn func(*Tx) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	saved := b.st.clone()
	if err := fn(b.tx); err != nil {
		*b.st = saved
		return err
	}
	return nil
}

// DryRun runs fn and always discards its effects. Used to pre-validate an
// operation before asking the backend to perform it.
func (b *Book) DryRun(fn func(*Tx) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	saved := b.st.clone()
	defer func() { *b.st = saved }()
	return fn(b.tx)
}

// View runs fn under the lock without snapshotting. fn must not mutate.
func (b *Book) View(fn func(*Tx)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn(b.tx)
}

// =============================================================================
// ACCOUNT OPERATIONS
// =============================================================================

func (b *Book) CreateAccount(in AccountInput) (acc Account, err error) {
	err = b.Do(func(tx *Tx) error {
		acc, err = tx.Accounts.Open(in)
		return err
	})
	return acc, err
}

func (b *Book) UpdateAccount(id AccountID, name string, typ AccountType) (acc Account, err error) {
	err = b.Do(func(tx *Tx) error {
		acc, err = tx.Accounts.Update(id, name, typ)
		return err
	})
	return acc, err
}

func (b *Book) DeleteAccount(id AccountID) error {
	return b.Do(func(tx *Tx) error { return tx.Accounts.Delete(id) })
}

// ResyncAccount replaces the local copy with the backend's.
func (b *Book) ResyncAccount(acc Account) {
	_ = b.Do(func(tx *Tx) error {
		tx.Accounts.Resync(acc)
		return nil
	})
}

func (b *Book) Account(id AccountID) (acc Account, err error) {
	b.View(func(tx *Tx) { acc, err = tx.Accounts.Get(id) })
	return acc, err
}

func (b *Book) Accounts() (out []Account) {
	b.View(func(tx *Tx) { out = tx.Accounts.ListSortedByRecency() })
	return out
}

func (b *Book) CanDeleteAccount(id AccountID) (ok bool) {
	b.View(func(tx *Tx) { ok = tx.Accounts.CanDelete(id) })
	return ok
}

// =============================================================================
// TRANSACTION OPERATIONS
// =============================================================================

func (b *Book) RecordTransaction(in TransactionInput) (t Transaction, err error) {
	err = b.Do(func(tx *Tx) error {
		t, err = tx.Journal.Record(in)
		return err
	})
	return t, err
}

func (b *Book) AmendTransaction(id TransactionID, in TransactionInput) (t Transaction, err error) {
	err = b.Do(func(tx *Tx) error {
		t, err = tx.Journal.Amend(id, in)
		return err
	})
	return t, err
}

func (b *Book) VoidTransaction(id TransactionID) error {
	return b.Do(func(tx *Tx) error { return tx.Journal.Void(id) })
}

func (b *Book) Transaction(id TransactionID) (t Transaction, err error) {
	b.View(func(tx *Tx) { t, err = tx.Journal.Get(id) })
	return t, err
}

func (b *Book) Transactions() (out []Transaction) {
	b.View(func(tx *Tx) { out = tx.Journal.ListChronological() })
	return out
}

func (b *Book) Categories() (out []Category) {
	b.View(func(tx *Tx) { out = tx.Journal.Categories() })
	return out
}

// =============================================================================
// INSTRUMENT OPERATIONS
// =============================================================================

func (b *Book) OpenInstrument(in InstrumentInput) (inst Instrument, err error) {
	err = b.Do(func(tx *Tx) error {
		inst, err = tx.Instruments.Open(in)
		return err
	})
	return inst, err
}

func (b *Book) AmendInstrument(id InstrumentID, in InstrumentInput) (inst Instrument, err error) {
	err = b.Do(func(tx *Tx) error {
		inst, err = tx.Instruments.Amend(id, in)
		return err
	})
	return inst, err
}

func (b *Book) CloseInstrument(id InstrumentID) error {
	return b.Do(func(tx *Tx) error { return tx.Instruments.Close(id) })
}

func (b *Book) FinalizeInstrument(id InstrumentID, destination AccountID, returnAmount decimal.Decimal) (inst Instrument, err error) {
	err = b.Do(func(tx *Tx) error {
		inst, err = tx.Instruments.Finalize(id, destination, returnAmount)
		return err
	})
	return inst, err
}

func (b *Book) Instrument(id InstrumentID) (inst Instrument, err error) {
	b.View(func(tx *Tx) { inst, err = tx.Instruments.Get(id) })
	return inst, err
}

func (b *Book) Instruments() (out []Instrument) {
	b.View(func(tx *Tx) { out = tx.Instruments.ListSortedByRecency() })
	return out
}

// =============================================================================
// PAYMENT OPERATIONS
// =============================================================================

func (b *Book) AddPayment(in PaymentInput) (p Payment, err error) {
	err = b.Do(func(tx *Tx) error {
		p, err = tx.Payments.Add(in)
		return err
	})
	return p, err
}

func (b *Book) AmendPayment(id PaymentID, in PaymentInput) (p Payment, err error) {
	err = b.Do(func(tx *Tx) error {
		p, err = tx.Payments.Amend(id, in)
		return err
	})
	return p, err
}

func (b *Book) RemovePayment(id PaymentID) error {
	return b.Do(func(tx *Tx) error { return tx.Payments.Remove(id) })
}

func (b *Book) Payment(id PaymentID) (p Payment, err error) {
	b.View(func(tx *Tx) { p, err = tx.Payments.Get(id) })
	return p, err
}

// Payments lists an instrument's payments; NotFound if the instrument is unknown.
func (b *Book) Payments(instrumentID InstrumentID) (out []Payment, err error) {
	b.View(func(tx *Tx) {
		if _, err = tx.Instruments.Get(instrumentID); err != nil {
			return
		}
		out = tx.Payments.ListByInstrument(instrumentID)
	})
	return out, err
}

// =============================================================================
// AGGREGATES
// =============================================================================

func (b *Book) Summary() (s Summary) {
	b.View(func(tx *Tx) {
		s = Summary{
			Capital:        tx.Accounts.CapitalTotal(),
			Cash:           tx.Accounts.TotalCash(),
			Bank:           tx.Accounts.TotalBank(),
			Invested:       tx.Instruments.TotalInvested(),
			ActiveInvested: tx.Instruments.TotalActiveInvested(),
			Profit:         tx.Instruments.TotalProfit(),
		}
	})
	return s
}
