package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-engine/money"
)

// =============================================================================
// ACCOUNTS - Passive store of balances
// =============================================================================

// Referencer is implemented by every component holding account references.
// Accounts consults them before allowing a delete.
type Referencer interface {
	ReferencesAccount(id AccountID) int
}

// Accounts owns the account records. It never calls outward; the other
// components consult and mutate balances through Credit and Debit.
type Accounts struct {
	st   *state
	now  func() time.Time
	refs []namedReferencer
}

type namedReferencer struct {
	name string
	ref  Referencer
}

func (a *Accounts) addReferencer(name string, r Referencer) {
	a.refs = append(a.refs, namedReferencer{name: name, ref: r})
}

// Open creates an account with an initial balance.
func (a *Accounts) Open(in AccountInput) (Account, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Account{}, invalid("name", "is required")
	}
	if !in.Type.Valid() {
		return Account{}, invalid("type", fmt.Sprintf("must be one of cash, bank, other (got %q)", in.Type))
	}
	if in.ID < 0 {
		return Account{}, invalid("id", "must not be negative")
	}
	if _, exists := a.st.accounts[in.ID]; in.ID != 0 && exists {
		return Account{}, invalid("id", fmt.Sprintf("account %d already exists", in.ID))
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = a.now()
	}
	acc := Account{
		ID:        AccountID(allocate(&a.st.seq.Account, int64(in.ID))),
		Name:      name,
		Type:      in.Type,
		Balance:   money.Round(in.Balance),
		CreatedAt: createdAt.UTC(),
	}
	a.st.accounts[acc.ID] = acc
	return acc, nil
}

// Update changes name and type. Balance is untouched.
func (a *Accounts) Update(id AccountID, name string, typ AccountType) (Account, error) {
	acc, ok := a.st.accounts[id]
	if !ok {
		return Account{}, notFound("account", int64(id))
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Account{}, invalid("name", "is required")
	}
	if !typ.Valid() {
		return Account{}, invalid("type", fmt.Sprintf("must be one of cash, bank, other (got %q)", typ))
	}
	acc.Name = name
	acc.Type = typ
	a.st.accounts[id] = acc
	return acc, nil
}

// Resync overwrites an account with the backend's copy, creating it if absent.
func (a *Accounts) Resync(acc Account) {
	acc.Balance = money.Round(acc.Balance)
	if int64(acc.ID) > a.st.seq.Account {
		a.st.seq.Account = int64(acc.ID)
	}
	a.st.accounts[acc.ID] = acc
}

// Delete removes an unreferenced account.
func (a *Accounts) Delete(id AccountID) error {
	if _, ok := a.st.accounts[id]; !ok {
		return notFound("account", int64(id))
	}
	if reason := a.references(id); reason != "" {
		return &ConflictError{Kind: "account", ID: int64(id), Reason: reason}
	}
	delete(a.st.accounts, id)
	return nil
}

// CanDelete is true only if nothing references the account.
func (a *Accounts) CanDelete(id AccountID) bool {
	return a.references(id) == ""
}

func (a *Accounts) references(id AccountID) string {
	var parts []string
	for _, r := range a.refs {
		if n := r.ref.ReferencesAccount(id); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, r.name))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "is referenced by " + strings.Join(parts, ", ")
}

// Credit adds amount to the balance. Returns false when the account is unknown.
func (a *Accounts) Credit(id AccountID, amount decimal.Decimal) bool {
	acc, ok := a.st.accounts[id]
	if !ok {
		return false
	}
	acc.Balance = acc.Balance.Add(amount)
	a.st.accounts[id] = acc
	return true
}

// Debit subtracts amount from the balance. Returns false when the account is unknown.
func (a *Accounts) Debit(id AccountID, amount decimal.Decimal) bool {
	return a.Credit(id, amount.Neg())
}

func (a *Accounts) Find(id AccountID) (Account, bool) {
	acc, ok := a.st.accounts[id]
	return acc, ok
}

func (a *Accounts) Get(id AccountID) (Account, error) {
	acc, ok := a.st.accounts[id]
	if !ok {
		return Account{}, notFound("account", int64(id))
	}
	return acc, nil
}

func (a *Accounts) Exists(id AccountID) bool {
	_, ok := a.st.accounts[id]
	return ok
}

// ListSortedByRecency orders by creation time, newest first, then by ID descending.
func (a *Accounts) ListSortedByRecency() []Account {
	out := make([]Account, 0, len(a.st.accounts))
	for _, acc := range a.st.accounts {
		out = append(out, acc)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// AggregateByType sums balances of accounts whose type matches pred.
func (a *Accounts) AggregateByType(pred func(AccountType) bool) decimal.Decimal {
	total := decimal.Zero
	for _, acc := range a.st.accounts {
		if pred(acc.Type) {
			total = total.Add(money.ToAmount(acc.Balance))
		}
	}
	return total
}

// CapitalTotal is cash plus bank.
func (a *Accounts) CapitalTotal() decimal.Decimal {
	return a.AggregateByType(AccountType.IsCapital)
}

func (a *Accounts) TotalCash() decimal.Decimal {
	return a.AggregateByType(func(t AccountType) bool { return t == AccountCash })
}

func (a *Accounts) TotalBank() decimal.Decimal {
	return a.AggregateByType(func(t AccountType) bool { return t == AccountBank })
}

func (a *Accounts) insufficient(id AccountID, available, requested decimal.Decimal) error {
	return &InsufficientFundsError{
		AccountID: id,
		Available: available,
		Requested: requested,
		Currency:  a.st.currency,
	}
}
