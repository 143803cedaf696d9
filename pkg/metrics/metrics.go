package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder is a no-op then.
type Metrics struct {
	gatherer      prometheus.Gatherer
	checkouts     *prometheus.CounterVec
	decrements    *prometheus.CounterVec
	stockSync     *prometheus.CounterVec
	notifications *prometheus.CounterVec
	checkoutTime  prometheus.Histogram
}

func New(reg *prometheus.Registry, namespace string) *Metrics {
	m := &Metrics{
		gatherer: reg,
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout requests by outcome.",
		}, []string{"result"}),
		decrements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_decrements_total",
			Help:      "Post-commit stock decrement calls by outcome.",
		}, []string{"result"}),
		stockSync: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_sync_total",
			Help:      "Orders reaching a terminal stock-sync status.",
		}, []string{"status"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Confirmation notifications by outcome.",
		}, []string{"result"}),
		checkoutTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "checkout_duration_seconds",
			Help:      "Time from request to commit for checkout.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.checkouts, m.decrements, m.stockSync, m.notifications, m.checkoutTime)
	return m
}

func (m *Metrics) Checkout(result string, seconds float64) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(result).Inc()
	m.checkoutTime.Observe(seconds)
}

func (m *Metrics) Decrement(result string) {
	if m == nil {
		return
	}
	m.decrements.WithLabelValues(result).Inc()
}

func (m *Metrics) StockSync(status string) {
	if m == nil {
		return
	}
	m.stockSync.WithLabelValues(status).Inc()
}

func (m *Metrics) Notification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
