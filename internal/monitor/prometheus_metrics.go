package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
)

func PrometheusMetrics() map[MetricTag]prometheus.Collector {
	metrics := make(map[MetricTag]prometheus.Collector)

	for tag, summaryVec := range SummaryVecMetrics {
		metrics[tag] = summaryVec
	}

	for tag, counter := range CounterMetrics {
		metrics[tag] = counter
	}

	for tag, histogramVec := range HistogramVecMetrics {
		metrics[tag] = histogramVec
	}

	for tag, counterVec := range CounterVecMetrics {
		metrics[tag] = counterVec
	}

	return metrics
}

var SummaryVecMetrics = map[MetricTag]*prometheus.SummaryVec{
	HttpRequestDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "escrow", Subsystem: "http", Name: string(HttpRequestDurationTag),
		Help: "HTTP requests durations, sliding window = 10m",
	},
		[]string{"status", "route", "method"},
	),
	SuccessfulQueryDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "escrow", Subsystem: "db", Name: string(SuccessfulQueryDurationTag),
		Help: "Successful DB query durations",
	},
		[]string{"query_type"},
	),
	FailureQueryDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "escrow", Subsystem: "db", Name: string(FailureQueryDurationTag),
		Help: "Failure DB query durations",
	},
		[]string{"query_type"},
	),
	SchedulerJobDurationTag: prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace: "escrow", Subsystem: "scheduler", Name: string(SchedulerJobDurationTag),
		Help: "Scheduler job pass durations",
	},
		[]string{"job"},
	),
}

var CounterMetrics = map[MetricTag]prometheus.Counter{
	LedgerOutOfBalanceCounterTag: prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "escrow", Subsystem: "ledger", Name: string(LedgerOutOfBalanceCounterTag),
		Help: "A counter of how many times a ledger verification found the books out of balance",
	}),
}

var HistogramVecMetrics = map[MetricTag]*prometheus.HistogramVec{
	BatchExecutionDurationTag: prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "escrow", Subsystem: "payouts", Name: string(BatchExecutionDurationTag),
		Help: "A histogram of payout batch execution durations",
	},
		[]string{"status"},
	),
}

var CounterVecMetrics = map[MetricTag]*prometheus.CounterVec{
	PaymentsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escrow", Subsystem: "business", Name: string(PaymentsCounterTag),
		Help: "Payments Counter",
	},
		PaymentLabelNames,
	),
	PayoutsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escrow", Subsystem: "business", Name: string(PayoutsCounterTag),
		Help: "Payouts Counter",
	},
		PayoutLabelNames,
	),
	WebhookEventsCounterTag: prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "escrow", Subsystem: "business", Name: string(WebhookEventsCounterTag),
		Help: "Webhook Events Counter",
	},
		WebhookEventLabelNames,
	),
}
