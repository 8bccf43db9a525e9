package crashtracker

import (
	"context"
	"time"
)

// CrashTrackerClient reports unexpected errors to an external tracker. The
// ledger verification and webhook paths use it for post-commit invariant
// violations, which always require operator attention.
type CrashTrackerClient interface {
	LogAndReportErrors(ctx context.Context, err error, msg string)
	LogAndReportMessages(ctx context.Context, msg string)
	FlushEvents(waitTime time.Duration) bool
	Recover()
	Clone() CrashTrackerClient
}
