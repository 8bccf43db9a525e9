package data

import (
	"fmt"
	"strings"
)

type PaymentStatus string

const (
	PendingPaymentStatus      PaymentStatus = "PENDING"
	EscrowPaymentStatus       PaymentStatus = "ESCROW"
	ReleasedPaymentStatus     PaymentStatus = "RELEASED"
	FailedPaymentStatus       PaymentStatus = "FAILED"
	RefundedPaymentStatus     PaymentStatus = "REFUNDED"
	CashPaidPaymentStatus     PaymentStatus = "CASH_PAID"
	CashReceivedPaymentStatus PaymentStatus = "CASH_RECEIVED"
)

// Validate validates the payment status
func (status PaymentStatus) Validate() error {
	switch PaymentStatus(strings.ToUpper(string(status))) {
	case PendingPaymentStatus, EscrowPaymentStatus, ReleasedPaymentStatus,
		FailedPaymentStatus, RefundedPaymentStatus, CashPaidPaymentStatus, CashReceivedPaymentStatus:
		return nil
	default:
		return fmt.Errorf("invalid payment status: %s", status)
	}
}

// TransitionTo transitions the payment status to the target state
func (status PaymentStatus) TransitionTo(targetState PaymentStatus) error {
	return PaymentStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// PaymentStateMachineWithInitialState returns a state machine for Payments initialized with the given state
func PaymentStateMachineWithInitialState(initialState PaymentStatus) *StateMachine {
	transitions := []StateTransition{
		{From: PendingPaymentStatus.State(), To: EscrowPaymentStatus.State()},        // processor confirms the charge
		{From: PendingPaymentStatus.State(), To: FailedPaymentStatus.State()},        // processor reports the charge failed
		{From: PendingPaymentStatus.State(), To: CashPaidPaymentStatus.State()},      // client claims they handed over cash
		{From: CashPaidPaymentStatus.State(), To: CashReceivedPaymentStatus.State()}, // provider confirms the cash arrived
		{From: EscrowPaymentStatus.State(), To: ReleasedPaymentStatus.State()},       // payout completes
		{From: EscrowPaymentStatus.State(), To: RefundedPaymentStatus.State()},       // operator reverses the escrowed funds
	}

	return NewStateMachine(initialState.State(), transitions)
}

// PaymentStatuses returns a list of all possible payment statuses
func PaymentStatuses() []PaymentStatus {
	return []PaymentStatus{
		PendingPaymentStatus,
		EscrowPaymentStatus,
		ReleasedPaymentStatus,
		FailedPaymentStatus,
		RefundedPaymentStatus,
		CashPaidPaymentStatus,
		CashReceivedPaymentStatus,
	}
}

// IsTerminal indicates whether the status admits no further transitions.
func (status PaymentStatus) IsTerminal() bool {
	switch status {
	case ReleasedPaymentStatus, FailedPaymentStatus, RefundedPaymentStatus, CashReceivedPaymentStatus:
		return true
	default:
		return false
	}
}

// SourceStatuses returns a list of states that the payment status can transition from given the target state
func (status PaymentStatus) SourceStatuses() []PaymentStatus {
	stateMachine := PaymentStateMachineWithInitialState(PendingPaymentStatus)
	fromStates := []PaymentStatus{}
	for _, fromState := range PaymentStatuses() {
		if stateMachine.Transitions[fromState.State()][status.State()] {
			fromStates = append(fromStates, fromState)
		}
	}
	return fromStates
}

// ToPaymentStatus converts a string to a PaymentStatus
func ToPaymentStatus(s string) (PaymentStatus, error) {
	err := PaymentStatus(s).Validate()
	if err != nil {
		return "", err
	}

	return PaymentStatus(strings.ToUpper(s)), nil
}

func (status PaymentStatus) State() State {
	return State(status)
}
