package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservations_transitions_total",
			Help: "Committed reservation state transitions",
		},
		[]string{"op"},
	)

	ConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservations_availability_conflicts_total",
			Help: "Reserve attempts rejected by an overlapping claim",
		},
	)

	PaymentDeclines = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservations_payment_declines_total",
			Help: "Provider authorize/capture failures",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reservations_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	SettlementRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservations_settlement_retries_total",
			Help: "Retries of pending post-commit refunds and captures",
		},
	)

	SettlementBacklog = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reservations_settlement_backlog",
			Help: "Reservations flagged settlement-pending",
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reservations_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservations_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservations_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
