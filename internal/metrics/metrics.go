package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles the order-engine counters on a private prometheus
// registry so multiple instances can coexist in tests.
type Registry struct {
	reg *prometheus.Registry

	OrdersCreated     prometheus.Counter
	OrdersCancelled   prometheus.Counter
	StatusTransitions prometheus.Counter
	IdempotentReplays prometheus.Counter
	StockConflicts    prometheus.Counter
	OutboxPublished   prometheus.Counter
	OutboxFailed      prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	created := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_created_total"})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_cancelled_total"})
	transitions := prometheus.NewCounter(prometheus.CounterOpts{Name: "order_status_transitions_total"})
	replays := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_idempotent_replays_total"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{Name: "orders_stock_conflicts_total"})
	outboxPublished := prometheus.NewCounter(prometheus.CounterOpts{Name: "outbox_published_total"})
	outboxFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "outbox_failed_total"})

	r.MustRegister(created, cancelled, transitions, replays, conflicts, outboxPublished, outboxFailed)
	return &Registry{
		reg:               r,
		OrdersCreated:     created,
		OrdersCancelled:   cancelled,
		StatusTransitions: transitions,
		IdempotentReplays: replays,
		StockConflicts:    conflicts,
		OutboxPublished:   outboxPublished,
		OutboxFailed:      outboxFailed,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
