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
// INSTRUMENTS - Investments and credits funded from an account
// =============================================================================

// Instruments owns investment and credit records.
//
// STATE MACHINE (credits):
//
//	active  -> settled    cumulative payments >= total due
//	settled -> active     a payment removal drops the cumulative below total due
//	active|settled -> finalized   explicit Finalize, terminal
//
// While active, the principal has been debited exactly once from the funding
// account. Close removes the record from any state.
type Instruments struct {
	st       *state
	now      func() time.Time
	accounts *Accounts
	payments *Payments
}

// Open debits the principal from the funding account and records the
// instrument as active.
func (m *Instruments) Open(in InstrumentInput) (Instrument, error) {
	if in.ID != 0 {
		if _, exists := m.st.instruments[in.ID]; exists {
			return Instrument{}, invalid("id", fmt.Sprintf("instrument %d already exists", in.ID))
		}
	}
	inst, err := m.validate(in)
	if err != nil {
		return Instrument{}, err
	}
	acc, ok := m.accounts.Find(inst.AccountID)
	if !ok {
		return Instrument{}, invalid("account_id", fmt.Sprintf("account %d does not exist", inst.AccountID))
	}
	if inst.Principal.GreaterThan(acc.Balance) {
		return Instrument{}, m.accounts.insufficient(acc.ID, acc.Balance, inst.Principal)
	}

	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = m.now()
	}
	inst.ID = InstrumentID(allocate(&m.st.seq.Instrument, int64(in.ID)))
	inst.Status = StatusActive
	inst.CreatedAt = createdAt.UTC()

	m.accounts.Debit(inst.AccountID, inst.Principal)
	m.st.instruments[inst.ID] = inst
	return inst, nil
}

// Amend reverses the old principal on the old account and debits the new
// principal from the new account. Unlike transaction amendment, the new
// account must cover the new principal or nothing changes.
func (m *Instruments) Amend(id InstrumentID, in InstrumentInput) (Instrument, error) {
	old, ok := m.st.instruments[id]
	if !ok {
		return Instrument{}, notFound("instrument", int64(id))
	}
	if old.Status == StatusFinalized {
		return Instrument{}, invalid("status", "finalized instruments cannot be amended")
	}
	inst, err := m.validate(in)
	if err != nil {
		return Instrument{}, err
	}
	if old.IsCredit() && !inst.IsCredit() && m.payments.countFor(id) > 0 {
		return Instrument{}, invalid("kind", "a credit with payments cannot change kind")
	}
	acc, ok := m.accounts.Find(inst.AccountID)
	if !ok {
		return Instrument{}, invalid("account_id", fmt.Sprintf("account %d does not exist", inst.AccountID))
	}
	available := acc.Balance
	if inst.AccountID == old.AccountID {
		available = available.Add(old.Principal)
	}
	if inst.Principal.GreaterThan(available) {
		return Instrument{}, m.accounts.insufficient(acc.ID, available, inst.Principal)
	}

	m.accounts.Credit(old.AccountID, old.Principal)
	m.accounts.Debit(inst.AccountID, inst.Principal)

	inst.ID = old.ID
	inst.CreatedAt = old.CreatedAt
	inst.Status = old.Status
	m.st.instruments[id] = inst
	m.refreshStatus(id)
	return m.st.instruments[id], nil
}

// Close deletes the instrument and its payments. The principal returns to
// the funding account only while the instrument is active; settled and
// finalized instruments have already cycled their capital.
func (m *Instruments) Close(id InstrumentID) error {
	inst, ok := m.st.instruments[id]
	if !ok {
		return notFound("instrument", int64(id))
	}
	active := !inst.Status.Completed()
	if active {
		m.accounts.Credit(inst.AccountID, inst.Principal)
	}
	m.payments.removeFor(id, active)
	delete(m.st.instruments, id)
	return nil
}

// Finalize credits returnAmount to the destination account and marks the
// instrument finalized. The funding account is not touched.
func (m *Instruments) Finalize(id InstrumentID, destination AccountID, returnAmount decimal.Decimal) (Instrument, error) {
	inst, ok := m.st.instruments[id]
	if !ok {
		return Instrument{}, notFound("instrument", int64(id))
	}
	if inst.Status == StatusFinalized {
		return Instrument{}, invalid("status", "instrument is already finalized")
	}
	amount := money.Round(returnAmount)
	if amount.IsNegative() {
		return Instrument{}, invalid("return_amount", "must not be negative")
	}
	if !m.accounts.Exists(destination) {
		return Instrument{}, notFound("account", int64(destination))
	}

	m.accounts.Credit(destination, amount)
	inst.Status = StatusFinalized
	inst.ReturnAmount = &amount
	inst.ReturnAccountID = destination
	m.st.instruments[id] = inst
	return inst, nil
}

func (m *Instruments) Get(id InstrumentID) (Instrument, error) {
	inst, ok := m.st.instruments[id]
	if !ok {
		return Instrument{}, notFound("instrument", int64(id))
	}
	return inst, nil
}

// ListSortedByRecency orders by creation time, newest first, then by ID descending.
func (m *Instruments) ListSortedByRecency() []Instrument {
	out := make([]Instrument, 0, len(m.st.instruments))
	for _, inst := range m.st.instruments {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *Instruments) ReferencesAccount(id AccountID) int {
	n := 0
	for _, inst := range m.st.instruments {
		if inst.AccountID == id || inst.ReturnAccountID == id {
			n++
		}
	}
	return n
}

func (m *Instruments) TotalInvested() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range m.st.instruments {
		total = total.Add(money.ToAmount(inst.Principal))
	}
	return total
}

func (m *Instruments) TotalActiveInvested() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range m.st.instruments {
		if inst.Status == StatusActive {
			total = total.Add(money.ToAmount(inst.Principal))
		}
	}
	return total
}

func (m *Instruments) TotalProfit() decimal.Decimal {
	total := decimal.Zero
	for _, inst := range m.st.instruments {
		total = total.Add(money.ToAmount(inst.Profit))
	}
	return total
}

// refreshStatus recomputes active/settled from the live payments.
// Finalized is terminal and never recomputed.
func (m *Instruments) refreshStatus(id InstrumentID) {
	inst, ok := m.st.instruments[id]
	if !ok || inst.Status == StatusFinalized || !inst.IsCredit() {
		return
	}
	if m.payments.PaidTotal(id).GreaterThanOrEqual(inst.TotalDue) {
		inst.Status = StatusSettled
	} else {
		inst.Status = StatusActive
	}
	m.st.instruments[id] = inst
}

func (m *Instruments) validate(in InstrumentInput) (Instrument, error) {
	kind := InstrumentKind(strings.TrimSpace(string(in.Kind)))
	if kind == "" {
		return Instrument{}, invalid("kind", "is required")
	}
	principal := money.Round(in.Principal)
	if !principal.IsPositive() {
		return Instrument{}, invalid("principal", "must be positive")
	}
	if in.Rate.IsNegative() {
		return Instrument{}, invalid("rate", "must not be negative")
	}
	if !in.DueAt.IsZero() && !in.InvestedAt.IsZero() && in.DueAt.Before(in.InvestedAt) {
		return Instrument{}, invalid("due_at", "is before invested_at")
	}

	total := principal.Add(money.Percent(principal, in.Rate))
	if in.TotalDue != nil {
		total = money.Round(*in.TotalDue)
	}
	profit := total.Sub(principal)
	if in.Profit != nil {
		profit = money.Round(*in.Profit)
	}
	return Instrument{
		AccountID:   in.AccountID,
		Kind:        kind,
		Beneficiary: strings.TrimSpace(in.Beneficiary),
		Description: strings.TrimSpace(in.Description),
		Principal:   principal,
		Rate:        in.Rate,
		TotalDue:    total,
		Profit:      profit,
		InvestedAt:  in.InvestedAt,
		DueAt:       in.DueAt,
	}, nil
}
