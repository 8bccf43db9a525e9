package monitor

type HttpRequestLabels struct {
	Status string
	Route  string
	Method string
}

type DBQueryLabels struct {
	QueryType string
}

type PaymentLabels struct {
	PaymentMethod string
	Currency      string
}

func (p PaymentLabels) ToMap() map[string]string {
	return map[string]string{
		"payment_method": p.PaymentMethod,
		"currency":       p.Currency,
	}
}

var PaymentLabelNames = []string{"payment_method", "currency"}

type PayoutLabels struct {
	PayoutMethod string
	Currency     string
}

func (p PayoutLabels) ToMap() map[string]string {
	return map[string]string{
		"payout_method": p.PayoutMethod,
		"currency":      p.Currency,
	}
}

var PayoutLabelNames = []string{"payout_method", "currency"}

type WebhookEventLabels struct {
	Outcome string
}

func (w WebhookEventLabels) ToMap() map[string]string {
	return map[string]string{
		"outcome": w.Outcome,
	}
}

var WebhookEventLabelNames = []string{"outcome"}

// Webhook ingest outcomes reported on WebhookEventsCounterTag.
const (
	WebhookOutcomeAccepted = "accepted"
	WebhookOutcomeRejected = "rejected"
)
