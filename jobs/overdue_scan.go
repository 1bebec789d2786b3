package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/harborline/harborline/internal/expense"
	jobmetrics "github.com/harborline/harborline/internal/jobs"
)

// OverdueLister reports applications past due with unsettled members.
type OverdueLister interface {
	OverdueApplications(ctx context.Context, asOf time.Time) ([]expense.Application, error)
}

// OverdueScanJob surfaces applications whose due date passed before full
// settlement. It only observes; the ledger itself is never mutated by a
// background job.
type OverdueScanJob struct {
	lister  OverdueLister
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
	now     func() time.Time
}

// NewOverdueScanJob constructs the job.
func NewOverdueScanJob(lister OverdueLister, logger *slog.Logger) *OverdueScanJob {
	return &OverdueScanJob{lister: lister, logger: logger, now: time.Now}
}

// WithMetrics attaches job instrumentation.
func (j *OverdueScanJob) WithMetrics(m *jobmetrics.Metrics) {
	j.metrics = m
}

// WithNow overrides the job clock for testing.
func (j *OverdueScanJob) WithNow(fn func() time.Time) {
	if fn != nil {
		j.now = fn
	}
}

// Handle processes TaskOverdueScan tasks.
func (j *OverdueScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload OverdueScanPayload
	if err := unmarshalPayload(t, &payload); err != nil {
		return asynq.SkipRetry
	}
	asOf, err := payload.ResolveAsOf(j.now)
	if err != nil {
		j.logger.Warn("overdue scan: bad as_of", slog.String("as_of", payload.AsOf))
		return asynq.SkipRetry
	}

	tracker := j.metrics.Track("overdue_scan")
	apps, err := j.lister.OverdueApplications(ctx, asOf)
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddOverdue(len(apps))
	_ = tracker.End(nil)
	if len(apps) == 0 {
		j.logger.Info("overdue scan: nothing overdue", slog.Time("as_of", asOf))
		return nil
	}

	numbers := make([]string, 0, len(apps))
	for _, app := range apps {
		numbers = append(numbers, app.Number)
	}
	j.logger.Warn("overdue applications detected",
		slog.Time("as_of", asOf),
		slog.Int("count", len(apps)),
		slog.Any("numbers", numbers),
	)
	return nil
}
