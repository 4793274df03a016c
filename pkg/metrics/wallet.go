package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Mutation outcomes recorded by WalletMetrics.
const (
	OutcomeApplied           = "applied"
	OutcomeInsufficientFunds = "insufficient_funds"
	OutcomeBusy              = "busy"
	OutcomeError             = "error"
)

// WalletMetrics tracks balance mutations and the failure modes that leave a
// wallet and its ledger out of step.
type WalletMetrics struct {
	mutations            *prometheus.CounterVec
	retries              prometheus.Counter
	ledgerWriteFailures  *prometheus.CounterVec
	compensationFailures *prometheus.CounterVec
	mismatches           *prometheus.CounterVec
	scanned              prometheus.Gauge
}

// NewWalletMetrics registers the wallet metrics on the provided registerer.
// A nil registerer yields a no-op collector.
func NewWalletMetrics(reg prometheus.Registerer) *WalletMetrics {
	if reg == nil {
		return &WalletMetrics{}
	}
	m := &WalletMetrics{
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "mutations_total",
			Help:      "Balance mutations by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "mutation_retries_total",
			Help:      "Mutation attempts retried after a concurrent modification.",
		}),
		ledgerWriteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "ledger_write_failures_total",
			Help:      "Ledger appends that failed after the wallet was mutated.",
		}, []string{"entry_kind"}),
		compensationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "compensation_failures_total",
			Help:      "Compensating postings that could not be applied.",
		}, []string{"operation"}),
		mismatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciliation",
			Name:      "mismatches_total",
			Help:      "Wallets whose balance disagrees with their ledger, by severity.",
		}, []string{"severity"}),
		scanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconciliation",
			Name:      "last_scanned_wallets",
			Help:      "Wallets examined by the most recent reconciliation run.",
		}),
	}
	reg.MustRegister(m.mutations, m.retries, m.ledgerWriteFailures, m.compensationFailures, m.mismatches, m.scanned)
	return m
}

func (m *WalletMetrics) IncMutation(outcome string) {
	if m == nil || m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *WalletMetrics) IncRetry() {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.Inc()
}

func (m *WalletMetrics) IncLedgerWriteFailure(entryKind string) {
	if m == nil || m.ledgerWriteFailures == nil {
		return
	}
	m.ledgerWriteFailures.WithLabelValues(normalizeLabel(entryKind)).Inc()
}

func (m *WalletMetrics) IncCompensationFailure(operation string) {
	if m == nil || m.compensationFailures == nil {
		return
	}
	m.compensationFailures.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *WalletMetrics) IncMismatch(severity string) {
	if m == nil || m.mismatches == nil {
		return
	}
	m.mismatches.WithLabelValues(normalizeLabel(severity)).Inc()
}

func (m *WalletMetrics) SetScanned(n int) {
	if m == nil || m.scanned == nil {
		return
	}
	m.scanned.Set(float64(n))
}
