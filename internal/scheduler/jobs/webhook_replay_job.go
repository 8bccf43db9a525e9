package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
	"github.com/sebenzapay/escrow-platform-backend/internal/services"
)

const WebhookReplayJobName = "webhook_replay_job"

// WebhookReplayJob periodically re-dispatches stored webhook events that are
// still unprocessed, so a transient failure during a live delivery does not
// strand a payment.
type WebhookReplayJob struct {
	service            services.ReconciliationServiceInterface
	monitorService     monitor.MonitorServiceInterface
	jobIntervalSeconds int
}

func NewWebhookReplayJob(service services.ReconciliationServiceInterface, monitorService monitor.MonitorServiceInterface, jobIntervalSeconds int) *WebhookReplayJob {
	if jobIntervalSeconds < DefaultMinimumJobIntervalSeconds {
		log.Fatalf("job interval is not set for %s. Instantiation failed", WebhookReplayJobName)
	}
	return &WebhookReplayJob{
		service:            service,
		monitorService:     monitorService,
		jobIntervalSeconds: jobIntervalSeconds,
	}
}

func (j WebhookReplayJob) GetInterval() time.Duration {
	return time.Duration(j.jobIntervalSeconds) * time.Second
}

func (j WebhookReplayJob) GetName() string {
	return WebhookReplayJobName
}

func (j WebhookReplayJob) Execute(ctx context.Context) error {
	started := time.Now()
	replayed, err := j.service.ReplayUnprocessedWebhooks(ctx)
	monitorJobDuration(j.monitorService, time.Since(started), WebhookReplayJobName)
	if err != nil {
		return fmt.Errorf("error executing WebhookReplayJob: %w", err)
	}
	if replayed > 0 {
		log.Ctx(ctx).Infof("WebhookReplayJob replayed %d webhook event(s)", replayed)
	}
	return nil
}

var _ Job = (*WebhookReplayJob)(nil)

// monitorJobDuration records one scheduler pass. A nil monitor service means
// monitoring is off, not an error.
func monitorJobDuration(monitorService monitor.MonitorServiceInterface, duration time.Duration, jobName string) {
	if monitorService == nil {
		return
	}
	labels := map[string]string{"job": jobName}
	if err := monitorService.MonitorDuration(duration, monitor.SchedulerJobDurationTag, labels); err != nil {
		log.Errorf("Error trying to monitor job duration for %s: %s", jobName, err)
	}
}
