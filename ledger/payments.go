package ledger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/finance-engine/money"
)

// =============================================================================
// PAYMENTS - Repayments received against credit instruments
// =============================================================================

// Payments owns repayment records. A payment is money received: it credits
// its account (the instrument's funding account unless another is given),
// with no sufficiency check. Removing it debits the same account back.
//
// Instrument status is a function of the recomputed cumulative sum, never a
// flag frozen at settle time.
type Payments struct {
	st          *state
	accounts    *Accounts
	instruments *Instruments
}

// Add credits the payment to its account and re-evaluates the instrument status.
func (p *Payments) Add(in PaymentInput) (Payment, error) {
	if in.ID != 0 {
		if _, exists := p.st.payments[in.ID]; exists {
			return Payment{}, invalid("id", fmt.Sprintf("payment %d already exists", in.ID))
		}
	}
	pay, err := p.validate(in)
	if err != nil {
		return Payment{}, err
	}

	pay.ID = PaymentID(allocate(&p.st.seq.Payment, int64(in.ID)))
	p.accounts.Credit(pay.AccountID, pay.Amount)
	p.st.payments[pay.ID] = pay
	p.instruments.refreshStatus(pay.InstrumentID)
	return pay, nil
}

// Amend reverses the old payment and applies the new fields. The payment
// stays on its instrument.
func (p *Payments) Amend(id PaymentID, in PaymentInput) (Payment, error) {
	old, ok := p.st.payments[id]
	if !ok {
		return Payment{}, notFound("payment", int64(id))
	}
	if in.InstrumentID != 0 && in.InstrumentID != old.InstrumentID {
		return Payment{}, invalid("instrument_id", "a payment cannot move to another instrument")
	}
	in.InstrumentID = old.InstrumentID
	pay, err := p.validate(in)
	if err != nil {
		return Payment{}, err
	}

	p.accounts.Debit(old.AccountID, old.Amount)
	p.accounts.Credit(pay.AccountID, pay.Amount)

	pay.ID = old.ID
	p.st.payments[id] = pay
	p.instruments.refreshStatus(pay.InstrumentID)
	return pay, nil
}

// Remove reverses the payment and re-evaluates the instrument status.
func (p *Payments) Remove(id PaymentID) error {
	pay, ok := p.st.payments[id]
	if !ok {
		return notFound("payment", int64(id))
	}
	if inst, ok := p.st.instruments[pay.InstrumentID]; ok && inst.Status == StatusFinalized {
		return invalid("status", "payments of a finalized instrument cannot be removed")
	}

	p.accounts.Debit(pay.AccountID, pay.Amount)
	delete(p.st.payments, id)
	p.instruments.refreshStatus(pay.InstrumentID)
	return nil
}

func (p *Payments) Get(id PaymentID) (Payment, error) {
	pay, ok := p.st.payments[id]
	if !ok {
		return Payment{}, notFound("payment", int64(id))
	}
	return pay, nil
}

// ListByInstrument orders by payment date descending, then ID descending.
func (p *Payments) ListByInstrument(id InstrumentID) []Payment {
	out := []Payment{}
	for _, pay := range p.st.payments {
		if pay.InstrumentID == id {
			out = append(out, pay)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// PaidTotal is the cumulative amount of the instrument's live payments.
func (p *Payments) PaidTotal(id InstrumentID) decimal.Decimal {
	total := decimal.Zero
	for _, pay := range p.st.payments {
		if pay.InstrumentID == id {
			total = total.Add(pay.Amount)
		}
	}
	return total
}

func (p *Payments) ReferencesAccount(id AccountID) int {
	n := 0
	for _, pay := range p.st.payments {
		if pay.AccountID == id {
			n++
		}
	}
	return n
}

func (p *Payments) countFor(id InstrumentID) int {
	n := 0
	for _, pay := range p.st.payments {
		if pay.InstrumentID == id {
			n++
		}
	}
	return n
}

// removeFor deletes every payment of an instrument, reversing their
// balance effects when reverse is set.
func (p *Payments) removeFor(id InstrumentID, reverse bool) {
	for pid, pay := range p.st.payments {
		if pay.InstrumentID != id {
			continue
		}
		if reverse {
			p.accounts.Debit(pay.AccountID, pay.Amount)
		}
		delete(p.st.payments, pid)
	}
}

func (p *Payments) validate(in PaymentInput) (Payment, error) {
	inst, ok := p.st.instruments[in.InstrumentID]
	if !ok {
		return Payment{}, notFound("instrument", int64(in.InstrumentID))
	}
	if !inst.IsCredit() {
		return Payment{}, invalid("instrument_id", fmt.Sprintf("instrument %d is not a credit", inst.ID))
	}
	if inst.Status == StatusFinalized {
		return Payment{}, invalid("status", "finalized instruments take no payments")
	}
	amount := money.Round(in.Amount)
	if !amount.IsPositive() {
		return Payment{}, invalid("amount", "must be positive")
	}
	if in.Date.IsZero() {
		return Payment{}, invalid("date", "is required")
	}
	accountID := in.AccountID
	if accountID == 0 {
		accountID = inst.AccountID
	}
	if !p.accounts.Exists(accountID) {
		return Payment{}, notFound("account", int64(accountID))
	}
	return Payment{
		InstrumentID: inst.ID,
		AccountID:    accountID,
		Amount:       amount,
		Date:         in.Date,
		Description:  strings.TrimSpace(in.Description),
	}, nil
}
