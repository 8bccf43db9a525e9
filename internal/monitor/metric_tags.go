package monitor

type MetricTag string

const (
	SuccessfulQueryDurationTag MetricTag = "successful_queries_duration"
	FailureQueryDurationTag    MetricTag = "failure_queries_duration"
	HttpRequestDurationTag     MetricTag = "requests_duration_seconds"
	SchedulerJobDurationTag    MetricTag = "job_duration_seconds"
	// Business counters:
	PaymentsCounterTag           MetricTag = "payments_counter"
	PayoutsCounterTag            MetricTag = "payouts_counter"
	WebhookEventsCounterTag      MetricTag = "webhook_events_counter"
	LedgerOutOfBalanceCounterTag MetricTag = "out_of_balance_counter"
	// Payout batches:
	BatchExecutionDurationTag MetricTag = "batch_execution_duration_seconds"
)

func (m MetricTag) ListAll() []MetricTag {
	return []MetricTag{
		SuccessfulQueryDurationTag,
		FailureQueryDurationTag,
		HttpRequestDurationTag,
		SchedulerJobDurationTag,
		PaymentsCounterTag,
		PayoutsCounterTag,
		WebhookEventsCounterTag,
		LedgerOutOfBalanceCounterTag,
		BatchExecutionDurationTag,
	}
}
