package data

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_BookingStatus_ToBookingStatus(t *testing.T) {
	tests := []struct {
		name   string
		actual string
		want   BookingStatus
		err    error
	}{
		{
			name:   "valid entry",
			actual: "CONFIRMED",
			want:   ConfirmedBookingStatus,
			err:    nil,
		},
		{
			name:   "valid lower case",
			actual: "pending_execution",
			want:   PendingExecutionBookingStatus,
			err:    nil,
		},
		{
			name:   "invalid entry",
			actual: "NOT_VALID",
			want:   "",
			err:    fmt.Errorf("invalid booking status: NOT_VALID"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBookingStatus(tt.actual)

			if tt.err != nil {
				require.EqualError(t, err, tt.err.Error())
				return
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func Test_BookingStatus_TransitionTo(t *testing.T) {
	tests := []struct {
		name   string
		actual BookingStatus
		target BookingStatus
		err    error
	}{
		{
			name:   "provider accepts the booking transition",
			actual: PendingBookingStatus,
			target: ConfirmedBookingStatus,
			err:    nil,
		},
		{
			name:   "withdrawn before confirmation transition",
			actual: PendingBookingStatus,
			target: CancelledBookingStatus,
			err:    nil,
		},
		{
			name:   "card payment reaches escrow transition",
			actual: ConfirmedBookingStatus,
			target: PendingExecutionBookingStatus,
			err:    nil,
		},
		{
			name:   "cancelled before any money moved transition",
			actual: ConfirmedBookingStatus,
			target: CancelledBookingStatus,
			err:    nil,
		},
		{
			name:   "cash confirmed from confirmed transition",
			actual: ConfirmedBookingStatus,
			target: CompletedBookingStatus,
			err:    nil,
		},
		{
			name:   "provider delivered the service transition",
			actual: PendingExecutionBookingStatus,
			target: DeliveredBookingStatus,
			err:    nil,
		},
		{
			name:   "cash confirmed from pending execution transition",
			actual: PendingExecutionBookingStatus,
			target: CompletedBookingStatus,
			err:    nil,
		},
		{
			name:   "payout completed transition",
			actual: DeliveredBookingStatus,
			target: CompletedBookingStatus,
			err:    nil,
		},
		{
			name:   "cannot deliver before escrow",
			actual: ConfirmedBookingStatus,
			target: DeliveredBookingStatus,
			err:    fmt.Errorf("cannot transition from CONFIRMED to DELIVERED"),
		},
		{
			name:   "cannot cancel once money is in escrow",
			actual: PendingExecutionBookingStatus,
			target: CancelledBookingStatus,
			err:    fmt.Errorf("cannot transition from PENDING_EXECUTION to CANCELLED"),
		},
		{
			name:   "cannot complete an unconfirmed booking",
			actual: PendingBookingStatus,
			target: CompletedBookingStatus,
			err:    fmt.Errorf("cannot transition from PENDING to COMPLETED"),
		},
		{
			name:   "cannot leave a completed booking",
			actual: CompletedBookingStatus,
			target: PendingBookingStatus,
			err:    fmt.Errorf("cannot transition from COMPLETED to PENDING"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.actual.TransitionTo(tt.target)
			if tt.err != nil {
				require.EqualError(t, err, tt.err.Error())
				return
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func Test_BookingStatus_SourceStatuses(t *testing.T) {
	tests := []struct {
		name                   string
		targetStatus           BookingStatus
		expectedSourceStatuses []BookingStatus
	}{
		{
			name:                   "Pending",
			targetStatus:           PendingBookingStatus,
			expectedSourceStatuses: []BookingStatus{},
		},
		{
			name:                   "Confirmed",
			targetStatus:           ConfirmedBookingStatus,
			expectedSourceStatuses: []BookingStatus{PendingBookingStatus},
		},
		{
			name:                   "PendingExecution",
			targetStatus:           PendingExecutionBookingStatus,
			expectedSourceStatuses: []BookingStatus{ConfirmedBookingStatus},
		},
		{
			name:                   "Delivered",
			targetStatus:           DeliveredBookingStatus,
			expectedSourceStatuses: []BookingStatus{PendingExecutionBookingStatus},
		},
		{
			name:                   "Completed",
			targetStatus:           CompletedBookingStatus,
			expectedSourceStatuses: []BookingStatus{ConfirmedBookingStatus, PendingExecutionBookingStatus, DeliveredBookingStatus},
		},
		{
			name:                   "Cancelled",
			targetStatus:           CancelledBookingStatus,
			expectedSourceStatuses: []BookingStatus{PendingBookingStatus, ConfirmedBookingStatus},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expectedSourceStatuses, tt.targetStatus.SourceStatuses())
		})
	}
}

func Test_BookingStatus_BookingStatuses(t *testing.T) {
	expectedStatuses := []BookingStatus{PendingBookingStatus, ConfirmedBookingStatus, PendingExecutionBookingStatus, DeliveredBookingStatus, CompletedBookingStatus, CancelledBookingStatus}
	require.Equal(t, expectedStatuses, BookingStatuses())
}
