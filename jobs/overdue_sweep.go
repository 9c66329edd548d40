package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/invoicer/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// Sweeper is the invoice operation the sweep drives.
type Sweeper interface {
	MarkOverdue(ctx context.Context, now time.Time, dueAfter time.Duration) ([]string, error)
}

// OverdueSweepJob marks unpaid invoices overdue once their terms lapse.
type OverdueSweepJob struct {
	Invoices Sweeper
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewOverdueSweepJob wires dependencies for the sweep handler.
func NewOverdueSweepJob(invoices Sweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *OverdueSweepJob {
	return &OverdueSweepJob{
		Invoices: invoices,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes overdue sweep tasks.
func (j *OverdueSweepJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Invoices == nil {
		return errors.New("overdue sweep: handler not configured")
	}
	var payload OverdueSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("overdue sweep: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.DueDays <= 0 {
		return fmt.Errorf("overdue sweep: due days must be positive: %w", asynq.SkipRetry)
	}

	tracker := j.metrics().Track(TaskOverdueSweep)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	now := j.clock()
	if !payload.ScheduledFor.IsZero() {
		now = payload.ScheduledFor.UTC()
	}
	logger := j.logger().With(slog.Int("due_days", payload.DueDays))

	flipped, err := j.Invoices.MarkOverdue(ctx, now, time.Duration(payload.DueDays)*24*time.Hour)
	j.metrics().AddOverdue(len(flipped))
	if err != nil {
		logger.Error("overdue sweep", slog.Int("flipped", len(flipped)), slog.Any("error", err))
		return err
	}
	logger.Info("overdue sweep complete", slog.Int("flipped", len(flipped)))
	return nil
}

func (j *OverdueSweepJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *OverdueSweepJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
