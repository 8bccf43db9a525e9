package data

import (
	"fmt"
	"strings"
)

type PayoutStatus string

const (
	PendingApprovalPayoutStatus PayoutStatus = "PENDING_APPROVAL"
	ApprovedPayoutStatus        PayoutStatus = "APPROVED"
	ProcessingPayoutStatus      PayoutStatus = "PROCESSING"
	CompletedPayoutStatus       PayoutStatus = "COMPLETED"
	RejectedPayoutStatus        PayoutStatus = "REJECTED"
	FailedPayoutStatus          PayoutStatus = "FAILED"
)

// Validate validates the payout status
func (status PayoutStatus) Validate() error {
	switch PayoutStatus(strings.ToUpper(string(status))) {
	case PendingApprovalPayoutStatus, ApprovedPayoutStatus, ProcessingPayoutStatus,
		CompletedPayoutStatus, RejectedPayoutStatus, FailedPayoutStatus:
		return nil
	default:
		return fmt.Errorf("invalid payout status: %s", status)
	}
}

// TransitionTo transitions the payout status to the target state
func (status PayoutStatus) TransitionTo(targetState PayoutStatus) error {
	return PayoutStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// PayoutStateMachineWithInitialState returns a state machine for Payouts initialized with the given state
func PayoutStateMachineWithInitialState(initialState PayoutStatus) *StateMachine {
	transitions := []StateTransition{
		{From: PendingApprovalPayoutStatus.State(), To: ApprovedPayoutStatus.State()},  // admin approves
		{From: PendingApprovalPayoutStatus.State(), To: RejectedPayoutStatus.State()},  // admin rejects
		{From: ApprovedPayoutStatus.State(), To: ProcessingPayoutStatus.State()},       // transfer initiated or batch exported
		{From: ApprovedPayoutStatus.State(), To: CompletedPayoutStatus.State()},        // operator marks a manual payout paid
		{From: ApprovedPayoutStatus.State(), To: FailedPayoutStatus.State()},           // failed before the transfer was initiated
		{From: ProcessingPayoutStatus.State(), To: CompletedPayoutStatus.State()},      // transfer confirmed or batch executed
		{From: ProcessingPayoutStatus.State(), To: FailedPayoutStatus.State()},         // transfer failed
	}

	return NewStateMachine(initialState.State(), transitions)
}

// PayoutStatuses returns a list of all possible payout statuses
func PayoutStatuses() []PayoutStatus {
	return []PayoutStatus{
		PendingApprovalPayoutStatus,
		ApprovedPayoutStatus,
		ProcessingPayoutStatus,
		CompletedPayoutStatus,
		RejectedPayoutStatus,
		FailedPayoutStatus,
	}
}

// IsTerminal indicates whether the status admits no further transitions.
func (status PayoutStatus) IsTerminal() bool {
	switch status {
	case CompletedPayoutStatus, RejectedPayoutStatus, FailedPayoutStatus:
		return true
	default:
		return false
	}
}

// SourceStatuses returns a list of states that the payout status can transition from given the target state
func (status PayoutStatus) SourceStatuses() []PayoutStatus {
	stateMachine := PayoutStateMachineWithInitialState(PendingApprovalPayoutStatus)
	fromStates := []PayoutStatus{}
	for _, fromState := range PayoutStatuses() {
		if stateMachine.Transitions[fromState.State()][status.State()] {
			fromStates = append(fromStates, fromState)
		}
	}
	return fromStates
}

// ToPayoutStatus converts a string to a PayoutStatus
func ToPayoutStatus(s string) (PayoutStatus, error) {
	err := PayoutStatus(s).Validate()
	if err != nil {
		return "", err
	}

	return PayoutStatus(strings.ToUpper(s)), nil
}

func (status PayoutStatus) State() State {
	return State(status)
}
