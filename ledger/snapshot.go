package ledger

import (
	"encoding/json"
	"fmt"
	"sort"
)

// =============================================================================
// SNAPSHOT - Serialized ledger state for offline-first resume
// =============================================================================

// SnapshotVersion is bumped whenever the encoded layout changes.
const SnapshotVersion = 1

// Snapshot carries every record of a Book. Amounts are encoded as decimal
// strings and dates as YYYY-MM-DD, so encode/decode is lossless.
type Snapshot struct {
	Version      int           `json:"version"`
	Currency     string        `json:"currency"`
	Accounts     []Account     `json:"accounts"`
	Categories   []Category    `json:"categories"`
	Transactions []Transaction `json:"transactions"`
	Instruments  []Instrument  `json:"instruments"`
	Payments     []Payment     `json:"payments"`
	Sequences    Sequences     `json:"sequences"`
}

// Snapshot copies the current state, each collection ordered by ID.
func (b *Book) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		Version:      SnapshotVersion,
		Currency:     b.st.currency,
		Accounts:     make([]Account, 0, len(b.st.accounts)),
		Categories:   make([]Category, 0, len(b.st.categories)),
		Transactions: make([]Transaction, 0, len(b.st.transactions)),
		Instruments:  make([]Instrument, 0, len(b.st.instruments)),
		Payments:     make([]Payment, 0, len(b.st.payments)),
		Sequences:    b.st.seq,
	}
	for _, v := range b.st.accounts {
		s.Accounts = append(s.Accounts, v)
	}
	for _, v := range b.st.categories {
		s.Categories = append(s.Categories, v)
	}
	for _, v := range b.st.transactions {
		s.Transactions = append(s.Transactions, v)
	}
	for _, v := range b.st.instruments {
		s.Instruments = append(s.Instruments, v)
	}
	for _, v := range b.st.payments {
		s.Payments = append(s.Payments, v)
	}
	sort.Slice(s.Accounts, func(i, j int) bool { return s.Accounts[i].ID < s.Accounts[j].ID })
	sort.Slice(s.Categories, func(i, j int) bool { return s.Categories[i].ID < s.Categories[j].ID })
	sort.Slice(s.Transactions, func(i, j int) bool { return s.Transactions[i].ID < s.Transactions[j].ID })
	sort.Slice(s.Instruments, func(i, j int) bool { return s.Instruments[i].ID < s.Instruments[j].ID })
	sort.Slice(s.Payments, func(i, j int) bool { return s.Payments[i].ID < s.Payments[j].ID })
	return s
}

// Restore replaces the whole state with s. References are checked first;
// on error the book is unchanged. Empty categories keep the current vocabulary.
func (b *Book) Restore(s Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	currency := s.Currency
	if currency == "" {
		currency = b.st.currency
	}
	categories := s.Categories
	if len(categories) == 0 {
		for _, c := range b.st.categories {
			categories = append(categories, c)
		}
	}
	next := newState(currency, categories)
	next.seq = s.Sequences

	for _, a := range s.Accounts {
		next.accounts[a.ID] = a
		next.seq.Account = max(next.seq.Account, int64(a.ID))
	}
	for _, t := range s.Transactions {
		if _, ok := next.accounts[t.AccountID]; !ok {
			return invalid("transactions", fmt.Sprintf("transaction %d references unknown account %d", t.ID, t.AccountID))
		}
		if _, ok := next.categories[t.CategoryID]; !ok {
			return invalid("transactions", fmt.Sprintf("transaction %d references unknown category %d", t.ID, t.CategoryID))
		}
		next.transactions[t.ID] = t
		next.seq.Transaction = max(next.seq.Transaction, int64(t.ID))
		next.seq.Order = max(next.seq.Order, t.Seq)
	}
	for _, i := range s.Instruments {
		if _, ok := next.accounts[i.AccountID]; !ok {
			return invalid("instruments", fmt.Sprintf("instrument %d references unknown account %d", i.ID, i.AccountID))
		}
		if i.ReturnAccountID != 0 {
			if _, ok := next.accounts[i.ReturnAccountID]; !ok {
				return invalid("instruments", fmt.Sprintf("instrument %d returns to unknown account %d", i.ID, i.ReturnAccountID))
			}
		}
		next.instruments[i.ID] = i
		next.seq.Instrument = max(next.seq.Instrument, int64(i.ID))
	}
	for _, p := range s.Payments {
		if _, ok := next.instruments[p.InstrumentID]; !ok {
			return invalid("payments", fmt.Sprintf("payment %d references unknown instrument %d", p.ID, p.InstrumentID))
		}
		if _, ok := next.accounts[p.AccountID]; !ok {
			return invalid("payments", fmt.Sprintf("payment %d references unknown account %d", p.ID, p.AccountID))
		}
		next.payments[p.ID] = p
		next.seq.Payment = max(next.seq.Payment, int64(p.ID))
	}

	*b.st = *next
	return nil
}

func EncodeSnapshot(s Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

func DecodeSnapshot(data []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("decode snapshot: unsupported version %d", s.Version)
	}
	return s, nil
}

// ReplaceAll swaps in a full refetch. Nil categories keep the current vocabulary.
func (b *Book) ReplaceAll(accounts []Account, categories []Category, transactions []Transaction, instruments []Instrument, payments []Payment) error {
	return b.Restore(Snapshot{
		Version:      SnapshotVersion,
		Accounts:     accounts,
		Categories:   categories,
		Transactions: transactions,
		Instruments:  instruments,
		Payments:     payments,
	})
}

// Reset empties the book, keeping currency and categories.
func (b *Book) Reset() {
	_ = b.Restore(Snapshot{Version: SnapshotVersion})
}
