package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueScan flags applications past due with unsettled costs.
	TaskOverdueScan = "expense:overdue_scan"
)

// OverdueScanPayload parameterises an overdue application scan.
type OverdueScanPayload struct {
	// AsOf is the reference date in RFC3339; empty means "now".
	AsOf string `json:"as_of,omitempty"`
}

// NewOverdueScanTask constructs an Asynq task for the overdue scan.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data), nil
}

// ResolveAsOf parses the payload reference date, defaulting to now.
func (p OverdueScanPayload) ResolveAsOf(now func() time.Time) (time.Time, error) {
	if p.AsOf == "" {
		return now(), nil
	}
	return time.Parse(time.RFC3339, p.AsOf)
}

func unmarshalPayload(t *asynq.Task, target any) error {
	return json.Unmarshal(t.Payload(), target)
}
