package data

import (
	"fmt"
	"strings"
)

type BookingStatus string

const (
	PendingBookingStatus          BookingStatus = "PENDING"
	ConfirmedBookingStatus        BookingStatus = "CONFIRMED"
	PendingExecutionBookingStatus BookingStatus = "PENDING_EXECUTION"
	DeliveredBookingStatus        BookingStatus = "DELIVERED"
	CompletedBookingStatus        BookingStatus = "COMPLETED"
	CancelledBookingStatus        BookingStatus = "CANCELLED"
)

// Validate validates the booking status
func (status BookingStatus) Validate() error {
	switch BookingStatus(strings.ToUpper(string(status))) {
	case PendingBookingStatus, ConfirmedBookingStatus, PendingExecutionBookingStatus,
		DeliveredBookingStatus, CompletedBookingStatus, CancelledBookingStatus:
		return nil
	default:
		return fmt.Errorf("invalid booking status: %s", status)
	}
}

// TransitionTo transitions the booking status to the target state
func (status BookingStatus) TransitionTo(targetState BookingStatus) error {
	return BookingStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// BookingStateMachineWithInitialState returns a state machine for Bookings initialized with the given state.
// The cash path completes a booking straight from CONFIRMED or PENDING_EXECUTION because cash payments
// never pass through escrow.
func BookingStateMachineWithInitialState(initialState BookingStatus) *StateMachine {
	transitions := []StateTransition{
		{From: PendingBookingStatus.State(), To: ConfirmedBookingStatus.State()},            // provider accepts the booking
		{From: PendingBookingStatus.State(), To: CancelledBookingStatus.State()},            // withdrawn before confirmation
		{From: ConfirmedBookingStatus.State(), To: PendingExecutionBookingStatus.State()},   // card payment reaches escrow
		{From: ConfirmedBookingStatus.State(), To: CancelledBookingStatus.State()},          // cancelled before any money moved
		{From: ConfirmedBookingStatus.State(), To: CompletedBookingStatus.State()},          // cash confirmed received
		{From: PendingExecutionBookingStatus.State(), To: DeliveredBookingStatus.State()},   // provider delivered the service
		{From: PendingExecutionBookingStatus.State(), To: CompletedBookingStatus.State()},   // cash confirmed received
		{From: DeliveredBookingStatus.State(), To: CompletedBookingStatus.State()},          // payout completed
	}

	return NewStateMachine(initialState.State(), transitions)
}

// BookingStatuses returns a list of all possible booking statuses
func BookingStatuses() []BookingStatus {
	return []BookingStatus{
		PendingBookingStatus,
		ConfirmedBookingStatus,
		PendingExecutionBookingStatus,
		DeliveredBookingStatus,
		CompletedBookingStatus,
		CancelledBookingStatus,
	}
}

// SourceStatuses returns a list of states that the booking status can transition from given the target state
func (status BookingStatus) SourceStatuses() []BookingStatus {
	stateMachine := BookingStateMachineWithInitialState(PendingBookingStatus)
	fromStates := []BookingStatus{}
	for _, fromState := range BookingStatuses() {
		if stateMachine.Transitions[fromState.State()][status.State()] {
			fromStates = append(fromStates, fromState)
		}
	}
	return fromStates
}

// ToBookingStatus converts a string to a BookingStatus
func ToBookingStatus(s string) (BookingStatus, error) {
	err := BookingStatus(s).Validate()
	if err != nil {
		return "", err
	}

	return BookingStatus(strings.ToUpper(s)), nil
}

func (status BookingStatus) State() State {
	return State(status)
}
