package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueSweep flips DUE invoices past their payment terms to OVERDUE.
	TaskOverdueSweep = "invoices:overdue_sweep"
)

// OverdueSweepPayload carries the payment terms the sweep applies.
type OverdueSweepPayload struct {
	DueDays      int       `json:"due_days"`
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
}

// NewOverdueSweepTask constructs an Asynq task for the overdue sweep.
func NewOverdueSweepTask(dueDays int) (*asynq.Task, error) {
	body, err := json.Marshal(OverdueSweepPayload{DueDays: dueDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueSweep, body, asynq.Queue(QueueDefault)), nil
}
