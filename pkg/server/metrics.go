package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the counters and gauges a running chain client exposes on
// /metrics for operators to scrape.
type Metrics struct {
	BlocksConfirmed   *prometheus.CounterVec
	CertificatesAgg   *prometheus.CounterVec
	QuorumRounds      prometheus.Counter
	RoundTimeouts     prometheus.Counter
	ValidatorFailures *prometheus.CounterVec
	InboxDepth        *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BlocksConfirmed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linera_blocks_confirmed_total",
			Help: "Number of confirmed blocks per chain.",
		}, []string{"chain_id"}),
		CertificatesAgg: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linera_certificates_aggregated_total",
			Help: "Number of certificates aggregated by kind.",
		}, []string{"kind"}),
		QuorumRounds: factory.NewCounter(prometheus.CounterOpts{
			Name: "linera_quorum_rounds_total",
			Help: "Number of rounds in which quorum was reached.",
		}),
		RoundTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "linera_round_timeouts_total",
			Help: "Number of leader round timeouts observed.",
		}),
		ValidatorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "linera_validator_failures_total",
			Help: "Number of communication failures per validator.",
		}, []string{"validator"}),
		InboxDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "linera_inbox_depth",
			Help: "Number of undelivered incoming messages queued per chain.",
		}, []string{"chain_id"}),
	}
}

// RecordBlockConfirmed implements chainclient.Metrics.
func (m *Metrics) RecordBlockConfirmed(chainID string) {
	m.BlocksConfirmed.WithLabelValues(chainID).Inc()
}

// RecordCertificateAggregated implements chainclient.Metrics.
func (m *Metrics) RecordCertificateAggregated(kind string) {
	m.CertificatesAgg.WithLabelValues(kind).Inc()
}

// RecordQuorumRound implements chainclient.Metrics.
func (m *Metrics) RecordQuorumRound() {
	m.QuorumRounds.Inc()
}

// RecordRoundTimeout implements chainclient.Metrics.
func (m *Metrics) RecordRoundTimeout() {
	m.RoundTimeouts.Inc()
}

// SetInboxDepth implements chainclient.Metrics.
func (m *Metrics) SetInboxDepth(chainID string, depth int) {
	m.InboxDepth.WithLabelValues(chainID).Set(float64(depth))
}

// RecordValidatorFailure implements communicator.FailureRecorder.
func (m *Metrics) RecordValidatorFailure(validatorName string) {
	m.ValidatorFailures.WithLabelValues(validatorName).Inc()
}
