package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type CommissionMetrics struct {
	subscriptions  prometheus.Counter
	cancellations  prometheus.Counter
	distributions  prometheus.Counter
	withdrawals    prometheus.Counter
	referrerEdges  prometheus.Counter
	migrations     prometheus.Counter
	contentUpserts prometheus.Counter
}

var (
	commissionOnce     sync.Once
	commissionRegistry *CommissionMetrics
)

func Commission() *CommissionMetrics {
	commissionOnce.Do(func() {
		commissionRegistry = &CommissionMetrics{
			subscriptions: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "commission_subscriptions_total",
				Help: "Count of confirmed subscriptions.",
			}),
			cancellations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "commission_cancellations_total",
				Help: "Count of cancelled subscriptions.",
			}),
			distributions: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "commission_distributions_total",
				Help: "Count of referral levels credited across all subscriptions.",
			}),
			withdrawals: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "commission_withdrawals_total",
				Help: "Count of completed commission withdrawals.",
			}),
			referrerEdges: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "commission_referrer_edges_total",
				Help: "Count of referral edges recorded.",
			}),
			migrations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "commission_referrer_migrations_total",
				Help: "Count of administratively rewritten referral edges.",
			}),
			contentUpserts: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "commission_content_upserts_total",
				Help: "Count of content registry writes.",
			}),
		}
		prometheus.MustRegister(
			commissionRegistry.subscriptions,
			commissionRegistry.cancellations,
			commissionRegistry.distributions,
			commissionRegistry.withdrawals,
			commissionRegistry.referrerEdges,
			commissionRegistry.migrations,
			commissionRegistry.contentUpserts,
		)
	})
	return commissionRegistry
}

// RecordEvent maps a committed ledger event type onto the counters. Unknown
// types are ignored.
func (m *CommissionMetrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	switch eventType {
	case "commission.subscription.confirmed":
		m.subscriptions.Inc()
	case "commission.subscription.cancelled":
		m.cancellations.Inc()
	case "commission.distributed":
		m.distributions.Inc()
	case "commission.withdrawn":
		m.withdrawals.Inc()
	case "commission.referrer.set":
		m.referrerEdges.Inc()
	case "commission.referrer.migrated":
		m.migrations.Inc()
	case "commission.content.registered":
		m.contentUpserts.Inc()
	}
}
