package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/warp/finance-engine/ledger"
)

// OperationsTotal counts ledger mutations by operation and outcome class.
var OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "finance",
	Subsystem: "ledger",
	Name:      "operations_total",
	Help:      "Ledger mutations by operation and outcome (ok or error class).",
}, []string{"op", "outcome"})

// CapitalBalance is cash plus bank after the last successful mutation.
var CapitalBalance = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "finance",
	Subsystem: "ledger",
	Name:      "capital",
	Help:      "Total capital (cash + bank accounts).",
})

// ActiveInvested is the principal currently out in active instruments.
var ActiveInvested = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "finance",
	Subsystem: "ledger",
	Name:      "active_invested",
	Help:      "Principal of instruments still active.",
})

// IdempotentReplays counts POSTs answered from the replay cache.
var IdempotentReplays = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "finance",
	Subsystem: "api",
	Name:      "idempotent_replays_total",
	Help:      "Create requests answered from the idempotency cache.",
})

func recordOp(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = ledger.Classify(err)
	}
	OperationsTotal.WithLabelValues(op, outcome).Inc()
}

func observeBook(b *ledger.Book) {
	s := b.Summary()
	CapitalBalance.Set(s.Capital.InexactFloat64())
	ActiveInvested.Set(s.ActiveInvested.InexactFloat64())
}
