package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

const StalePaymentVerificationJobName = "stale_payment_verification_job"

// StalePaymentVerificationJob asks the processor for the authoritative state
// of card payments stuck in PENDING, covering the window where a webhook was
// lost on the wire and there is nothing stored to replay.
type StalePaymentVerificationJob struct {
	service            services.ReconciliationServiceInterface
	monitorService     monitor.MonitorServiceInterface
	jobIntervalSeconds int
}

func NewStalePaymentVerificationJob(service services.ReconciliationServiceInterface, monitorService monitor.MonitorServiceInterface, jobIntervalSeconds int) *StalePaymentVerificationJob {
	if jobIntervalSeconds < DefaultMinimumJobIntervalSeconds {
		log.Fatalf("job interval is not set for %s. Instantiation failed", StalePaymentVerificationJobName)
	}
	return &StalePaymentVerificationJob{
		service:            service,
		monitorService:     monitorService,
		jobIntervalSeconds: jobIntervalSeconds,
	}
}

func (j StalePaymentVerificationJob) GetInterval() time.Duration {
	return time.Duration(j.jobIntervalSeconds) * time.Second
}

func (j StalePaymentVerificationJob) GetName() string {
	return StalePaymentVerificationJobName
}

func (j StalePaymentVerificationJob) Execute(ctx context.Context) error {
	started := time.Now()
	verified, err := j.service.VerifyStalePendingPayments(ctx)
	monitorJobDuration(j.monitorService, time.Since(started), StalePaymentVerificationJobName)
	if err != nil {
		return fmt.Errorf("error executing StalePaymentVerificationJob: %w", err)
	}
	if verified > 0 {
		log.Ctx(ctx).Infof("StalePaymentVerificationJob resolved %d stale payment(s)", verified)
	}
	return nil
}

var _ Job = (*StalePaymentVerificationJob)(nil)
