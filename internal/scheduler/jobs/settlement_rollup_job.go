package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/sebenzapay/escrow-platform-backend/internal/data"
	"github.com/sebenzapay/escrow-platform-backend/internal/monitor"
)

const (
	SettlementRollupJobName = "settlement_rollup_job"
	// SettlementRollupJobIntervalSeconds keeps the roll-up fresh enough that
	// an admin reconciling mid-day sees the latest expected amount.
	SettlementRollupJobIntervalSeconds = 900
)

// SettlementRoller is the slice of the settlement service the roll-up job
// drives.
type SettlementRoller interface {
	RollUpDay(ctx context.Context, batchDate time.Time) (*data.SettlementBatch, error)
}

// SettlementRollupJob keeps the expected settlement amounts current for today
// and yesterday. Yesterday is included so card charges that land around
// midnight are counted on whichever day their paid_at falls.
type SettlementRollupJob struct {
	service        SettlementRoller
	monitorService monitor.MonitorServiceInterface
}

func NewSettlementRollupJob(service SettlementRoller, monitorService monitor.MonitorServiceInterface) *SettlementRollupJob {
	return &SettlementRollupJob{
		service:        service,
		monitorService: monitorService,
	}
}

func (j SettlementRollupJob) GetInterval() time.Duration {
	return SettlementRollupJobIntervalSeconds * time.Second
}

func (j SettlementRollupJob) GetName() string {
	return SettlementRollupJobName
}

func (j SettlementRollupJob) Execute(ctx context.Context) error {
	started := time.Now()
	defer func() {
		monitorJobDuration(j.monitorService, time.Since(started), SettlementRollupJobName)
	}()

	today := time.Now().UTC()
	var errs []error
	for _, batchDate := range []time.Time{today, today.AddDate(0, 0, -1)} {
		if _, err := j.service.RollUpDay(ctx, batchDate); err != nil {
			errs = append(errs, fmt.Errorf("rolling up settlement for %s: %w", batchDate.Format("2006-01-02"), err))
		}
	}
	if len(errs) > 0 {
		err := fmt.Errorf("error executing SettlementRollupJob: %w", errors.Join(errs...))
		log.Ctx(ctx).Error(err)
		return err
	}
	return nil
}

var _ Job = (*SettlementRollupJob)(nil)
