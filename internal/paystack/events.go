package paystack

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies the kind of webhook event delivered by the processor.
type EventType string

const (
	EventTypeChargeSuccess    EventType = "charge.success"
	EventTypeChargeFailed     EventType = "charge.failed"
	EventTypeTransferSuccess  EventType = "transfer.success"
	EventTypeTransferFailed   EventType = "transfer.failed"
	EventTypeTransferReversed EventType = "transfer.reversed"
)

// KnownEventTypes lists the event kinds the platform acts on. Events outside
// this list are persisted for audit but never dispatched or replayed.
func KnownEventTypes() []string {
	return []string{
		string(EventTypeChargeSuccess),
		string(EventTypeChargeFailed),
		string(EventTypeTransferSuccess),
		string(EventTypeTransferFailed),
		string(EventTypeTransferReversed),
	}
}

// IsKnown reports whether the event kind is one the platform handles.
func (t EventType) IsKnown() bool {
	switch t {
	case EventTypeChargeSuccess, EventTypeChargeFailed, EventTypeTransferSuccess, EventTypeTransferFailed, EventTypeTransferReversed:
		return true
	default:
		return false
	}
}

// IsChargeEvent reports whether the event concerns an inbound charge.
func (t EventType) IsChargeEvent() bool {
	return t == EventTypeChargeSuccess || t == EventTypeChargeFailed
}

// Event is the webhook envelope posted by the processor.
type Event struct {
	Type EventType `json:"event"`
	Data EventData `json:"data"`
}

// EventData carries the subset of the webhook payload the platform acts on.
// Amount is in minor units.
type EventData struct {
	ID              int64             `json:"id,omitempty"`
	Reference       string            `json:"reference"`
	TransferCode    string            `json:"transfer_code,omitempty"`
	Status          string            `json:"status,omitempty"`
	Amount          int64             `json:"amount"`
	Currency        string            `json:"currency,omitempty"`
	GatewayResponse string            `json:"gateway_response,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	Channel         string            `json:"channel,omitempty"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// ParseEvent decodes a webhook payload into its envelope.
func ParseEvent(payload []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("unmarshalling webhook payload: %w", err)
	}

	if event.Type == "" {
		return nil, fmt.Errorf("webhook payload has no event type")
	}

	return &event, nil
}

// ExternalRef returns the value the event is deduplicated by: the transfer
// code for transfer events, otherwise the transaction reference.
func (e *Event) ExternalRef() string {
	if !e.Type.IsChargeEvent() && e.Data.TransferCode != "" {
		return e.Data.TransferCode
	}
	return e.Data.Reference
}

// FailureReason returns the most specific failure detail the processor sent.
func (e *Event) FailureReason() string {
	if e.Data.Reason != "" {
		return e.Data.Reason
	}
	if e.Data.GatewayResponse != "" {
		return e.Data.GatewayResponse
	}
	return fmt.Sprintf("processor reported status %q", e.Data.Status)
}

// EventForVerification converts a transaction verification result into the
// webhook event the processor would have delivered for it. The reconciler
// uses this to recover payments whose webhook never arrived: the synthesized
// event goes through the same dedup and dispatch path as a real delivery.
func EventForVerification(verification *TransactionVerification) *Event {
	eventType := EventTypeChargeFailed
	if verification.Status == TransactionStatusSuccess {
		eventType = EventTypeChargeSuccess
	}

	return &Event{
		Type: eventType,
		Data: EventData{
			ID:              verification.ID,
			Reference:       verification.Reference,
			Status:          string(verification.Status),
			Amount:          verification.Amount,
			Currency:        verification.Currency,
			GatewayResponse: verification.GatewayResponse,
			Channel:         verification.Channel,
			PaidAt:          verification.PaidAt,
		},
	}
}
