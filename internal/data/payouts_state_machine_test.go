package data

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_PayoutStatus_ToPayoutStatus(t *testing.T) {
	tests := []struct {
		name   string
		actual string
		want   PayoutStatus
		err    error
	}{
		{
			name:   "valid entry",
			actual: "APPROVED",
			want:   ApprovedPayoutStatus,
			err:    nil,
		},
		{
			name:   "valid lower case",
			actual: "pending_approval",
			want:   PendingApprovalPayoutStatus,
			err:    nil,
		},
		{
			name:   "invalid entry",
			actual: "NOT_VALID",
			want:   "",
			err:    fmt.Errorf("invalid payout status: NOT_VALID"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToPayoutStatus(tt.actual)

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

func Test_PayoutStatus_TransitionTo(t *testing.T) {
	tests := []struct {
		name   string
		actual PayoutStatus
		target PayoutStatus
		err    error
	}{
		{
			name:   "admin approves transition",
			actual: PendingApprovalPayoutStatus,
			target: ApprovedPayoutStatus,
			err:    nil,
		},
		{
			name:   "admin rejects transition",
			actual: PendingApprovalPayoutStatus,
			target: RejectedPayoutStatus,
			err:    nil,
		},
		{
			name:   "transfer initiated transition",
			actual: ApprovedPayoutStatus,
			target: ProcessingPayoutStatus,
			err:    nil,
		},
		{
			name:   "manual payout marked paid transition",
			actual: ApprovedPayoutStatus,
			target: CompletedPayoutStatus,
			err:    nil,
		},
		{
			name:   "transfer confirmed transition",
			actual: ProcessingPayoutStatus,
			target: CompletedPayoutStatus,
			err:    nil,
		},
		{
			name:   "transfer failed transition",
			actual: ProcessingPayoutStatus,
			target: FailedPayoutStatus,
			err:    nil,
		},
		{
			name:   "approved payout failed transition",
			actual: ApprovedPayoutStatus,
			target: FailedPayoutStatus,
			err:    nil,
		},
		{
			name:   "cannot execute before approval",
			actual: PendingApprovalPayoutStatus,
			target: ProcessingPayoutStatus,
			err:    fmt.Errorf("cannot transition from PENDING_APPROVAL to PROCESSING"),
		},
		{
			name:   "cannot complete before approval",
			actual: PendingApprovalPayoutStatus,
			target: CompletedPayoutStatus,
			err:    fmt.Errorf("cannot transition from PENDING_APPROVAL to COMPLETED"),
		},
		{
			name:   "cannot reject after approval",
			actual: ApprovedPayoutStatus,
			target: RejectedPayoutStatus,
			err:    fmt.Errorf("cannot transition from APPROVED to REJECTED"),
		},
		{
			name:   "cannot leave a completed payout",
			actual: CompletedPayoutStatus,
			target: ProcessingPayoutStatus,
			err:    fmt.Errorf("cannot transition from COMPLETED to PROCESSING"),
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

func Test_PayoutStatus_SourceStatuses(t *testing.T) {
	tests := []struct {
		name                   string
		targetStatus           PayoutStatus
		expectedSourceStatuses []PayoutStatus
	}{
		{
			name:                   "PendingApproval",
			targetStatus:           PendingApprovalPayoutStatus,
			expectedSourceStatuses: []PayoutStatus{},
		},
		{
			name:                   "Approved",
			targetStatus:           ApprovedPayoutStatus,
			expectedSourceStatuses: []PayoutStatus{PendingApprovalPayoutStatus},
		},
		{
			name:                   "Processing",
			targetStatus:           ProcessingPayoutStatus,
			expectedSourceStatuses: []PayoutStatus{ApprovedPayoutStatus},
		},
		{
			name:                   "Completed",
			targetStatus:           CompletedPayoutStatus,
			expectedSourceStatuses: []PayoutStatus{ApprovedPayoutStatus, ProcessingPayoutStatus},
		},
		{
			name:                   "Rejected",
			targetStatus:           RejectedPayoutStatus,
			expectedSourceStatuses: []PayoutStatus{PendingApprovalPayoutStatus},
		},
		{
			name:                   "Failed",
			targetStatus:           FailedPayoutStatus,
			expectedSourceStatuses: []PayoutStatus{ApprovedPayoutStatus, ProcessingPayoutStatus},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expectedSourceStatuses, tt.targetStatus.SourceStatuses())
		})
	}
}

func Test_PayoutStatus_PayoutStatuses(t *testing.T) {
	expectedStatuses := []PayoutStatus{PendingApprovalPayoutStatus, ApprovedPayoutStatus, ProcessingPayoutStatus, CompletedPayoutStatus, RejectedPayoutStatus, FailedPayoutStatus}
	require.Equal(t, expectedStatuses, PayoutStatuses())
}

func Test_PayoutStatus_IsTerminal(t *testing.T) {
	terminal := []PayoutStatus{CompletedPayoutStatus, RejectedPayoutStatus, FailedPayoutStatus}
	for _, status := range terminal {
		require.True(t, status.IsTerminal(), "expected %s to be terminal", status)
	}

	live := []PayoutStatus{PendingApprovalPayoutStatus, ApprovedPayoutStatus, ProcessingPayoutStatus}
	for _, status := range live {
		require.False(t, status.IsTerminal(), "expected %s not to be terminal", status)
	}
}
