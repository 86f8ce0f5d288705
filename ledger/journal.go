package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-engine/money"
)

// =============================================================================
// JOURNAL - Income and expense transactions
// =============================================================================

// Journal owns transactions. Every live transaction has been applied exactly
// once to its account: credited for Income, debited for Expense.
//
// Expenses have no sufficiency check; an account may go negative through
// expenses. Instruments are stricter.
type Journal struct {
	st       *state
	accounts *Accounts
}

// Record applies the transaction's delta to its account and appends it.
func (j *Journal) Record(in TransactionInput) (Transaction, error) {
	if in.ID != 0 {
		if _, exists := j.st.transactions[in.ID]; exists {
			return Transaction{}, invalid("id", fmt.Sprintf("transaction %d already exists", in.ID))
		}
	}
	tx, err := j.validate(in)
	if err != nil {
		return Transaction{}, err
	}

	tx.ID = TransactionID(allocate(&j.st.seq.Transaction, int64(in.ID)))
	tx.Seq = allocate(&j.st.seq.Order, 0)
	j.accounts.Credit(tx.AccountID, tx.Delta())
	j.st.transactions[tx.ID] = tx
	return tx, nil
}

// Amend reverses the original delta and applies the new one, possibly on a
// different account. Both accounts are validated before either is touched.
func (j *Journal) Amend(id TransactionID, in TransactionInput) (Transaction, error) {
	old, ok := j.st.transactions[id]
	if !ok {
		return Transaction{}, notFound("transaction", int64(id))
	}
	if !j.accounts.Exists(old.AccountID) {
		return Transaction{}, notFound("account", int64(old.AccountID))
	}
	tx, err := j.validate(in)
	if err != nil {
		return Transaction{}, err
	}

	j.accounts.Credit(old.AccountID, old.Delta().Neg())
	j.accounts.Credit(tx.AccountID, tx.Delta())

	tx.ID = old.ID
	tx.Seq = old.Seq
	j.st.transactions[id] = tx
	return tx, nil
}

// Void reverses the delta and removes the transaction.
func (j *Journal) Void(id TransactionID) error {
	tx, ok := j.st.transactions[id]
	if !ok {
		return notFound("transaction", int64(id))
	}
	// An orphaned transaction cannot exist: accounts refuse deletion while referenced.
	j.accounts.Credit(tx.AccountID, tx.Delta().Neg())
	delete(j.st.transactions, id)
	return nil
}

func (j *Journal) Get(id TransactionID) (Transaction, error) {
	tx, ok := j.st.transactions[id]
	if !ok {
		return Transaction{}, notFound("transaction", int64(id))
	}
	return tx, nil
}

// ListChronological orders newest date first; equal dates keep insertion order.
func (j *Journal) ListChronological() []Transaction {
	out := make([]Transaction, 0, len(j.st.transactions))
	for _, tx := range j.st.transactions {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Seq < out[k].Seq })
	sort.SliceStable(out, func(i, k int) bool { return out[i].Date.After(out[k].Date) })
	return out
}

// ListByAccount returns the account's transactions in chronological order.
func (j *Journal) ListByAccount(id AccountID) []Transaction {
	var out []Transaction
	for _, tx := range j.ListChronological() {
		if tx.AccountID == id {
			out = append(out, tx)
		}
	}
	return out
}

// Totals sums income and expense amounts separately.
func (j *Journal) Totals() (income, expense decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for _, tx := range j.st.transactions {
		if tx.Kind == Income {
			income = income.Add(tx.Amount)
		} else {
			expense = expense.Add(tx.Amount)
		}
	}
	return income, expense
}

func (j *Journal) ReferencesAccount(id AccountID) int {
	n := 0
	for _, tx := range j.st.transactions {
		if tx.AccountID == id {
			n++
		}
	}
	return n
}

func (j *Journal) Categories() []Category {
	out := make([]Category, 0, len(j.st.categories))
	for _, c := range j.st.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}

func (j *Journal) validate(in TransactionInput) (Transaction, error) {
	if !in.Kind.Valid() {
		return Transaction{}, invalid("kind", fmt.Sprintf("must be income or expense (got %q)", in.Kind))
	}
	amount := money.Round(in.Amount)
	if !amount.IsPositive() {
		return Transaction{}, invalid("amount", "must be positive")
	}
	if in.Date.IsZero() {
		return Transaction{}, invalid("date", "is required")
	}
	cat, ok := j.st.categories[in.CategoryID]
	if !ok {
		return Transaction{}, notFound("category", int64(in.CategoryID))
	}
	if cat.Kind != in.Kind {
		return Transaction{}, invalid("category_id", fmt.Sprintf("%q is an %s category", cat.Name, cat.Kind))
	}
	if !j.accounts.Exists(in.AccountID) {
		return Transaction{}, notFound("account", int64(in.AccountID))
	}
	return Transaction{
		Kind:        in.Kind,
		AccountID:   in.AccountID,
		CategoryID:  in.CategoryID,
		Amount:      amount,
		Description: strings.TrimSpace(in.Description),
		Date:        in.Date,
	}, nil
}
