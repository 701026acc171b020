package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Collector holds the ledger's prometheus instruments on a private
// registry.
type Collector struct {
	registry         *prometheus.Registry
	transfersTotal   *prometheus.CounterVec
	transferDuration prometheus.Histogram
	totalBalance     prometheus.Gauge
}

// NewCollector registers all instruments.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	return &Collector{
		registry: registry,
		transfersTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Transfer attempts by outcome",
		}, []string{"outcome"}),
		transferDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_transfer_duration_seconds",
			Help:    "Time taken to process a transfer request",
			Buckets: prometheus.DefBuckets,
		}),
		totalBalance: promauto.With(registry).NewGauge(prometheus.GaugeOpts{
			Name: "ledger_total_balance",
			Help: "Sum of all account balances as of the last audit run",
		}),
	}
}

// RecordTransfer counts one transfer attempt under its outcome.
func (c *Collector) RecordTransfer(outcome string, duration time.Duration) {
	c.transfersTotal.WithLabelValues(outcome).Inc()
	c.transferDuration.Observe(duration.Seconds())
}

// SetTotalBalance publishes the audited ledger total. Float conversion is
// fine here: the gauge is observability, not balance arithmetic.
func (c *Collector) SetTotalBalance(total decimal.Decimal) {
	c.totalBalance.Set(total.InexactFloat64())
}

// Handler returns the scrape endpoint for the private registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
