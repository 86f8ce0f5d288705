package ledger

// state is every record the book owns. Components are views over one shared
// state; Book.Do clones it before a mutation and restores the clone on error.
type state struct {
	currency     string
	accounts     map[AccountID]Account
	transactions map[TransactionID]Transaction
	instruments  map[InstrumentID]Instrument
	payments     map[PaymentID]Payment
	categories   map[CategoryID]Category
	seq          Sequences
}

// Sequences holds the last allocated identifier per record kind, plus the
// journal insertion counter.
type Sequences struct {
	Account     int64 `json:"account"`
	Transaction int64 `json:"transaction"`
	Instrument  int64 `json:"instrument"`
	Payment     int64 `json:"payment"`
	Order       int64 `json:"order"`
}

func newState(currency string, categories []Category) *state {
	st := &state{
		currency:     currency,
		accounts:     make(map[AccountID]Account),
		transactions: make(map[TransactionID]Transaction),
		instruments:  make(map[InstrumentID]Instrument),
		payments:     make(map[PaymentID]Payment),
		categories:   make(map[CategoryID]Category),
	}
	for _, c := range categories {
		st.categories[c.ID] = c
	}
	return st
}

func (st *state) clone() state {
	c := state{
		currency:     st.currency,
		accounts:     make(map[AccountID]Account, len(st.accounts)),
		transactions: make(map[TransactionID]Transaction, len(st.transactions)),
		instruments:  make(map[InstrumentID]Instrument, len(st.instruments)),
		payments:     make(map[PaymentID]Payment, len(st.payments)),
		categories:   make(map[CategoryID]Category, len(st.categories)),
		seq:          st.seq,
	}
	for k, v := range st.accounts {
		c.accounts[k] = v
	}
	for k, v := range st.transactions {
		c.transactions[k] = v
	}
	for k, v := range st.instruments {
		c.instruments[k] = v
	}
	for k, v := range st.payments {
		c.payments[k] = v
	}
	for k, v := range st.categories {
		c.categories[k] = v
	}
	return c
}

// allocate returns requested when non-zero, advancing the counter past it,
// otherwise the next identifier.
func allocate(counter *int64, requested int64) int64 {
	if requested != 0 {
		if requested > *counter {
			*counter = requested
		}
		return requested
	}
	*counter++
	return *counter
}
