// Package jobs runs background work over asynq: periodic audit log exports
// and catalog cache warmups.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditExport is the task type for exporting the audit log to CSV.
	TaskAuditExport = "audit:export"
	// TaskCatalogWarmup is the task type for re-priming the catalog cache.
	TaskCatalogWarmup = "catalog:warmup"
)

// AuditExportPayload parametrizes one export run.
type AuditExportPayload struct {
	RequestedBy int64 `json:"requestedBy,omitempty"`
}

// NewAuditExportTask constructs an Asynq task.
func NewAuditExportTask(payload AuditExportPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditExport, data), nil
}

// NewCatalogWarmupTask constructs an Asynq task.
func NewCatalogWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskCatalogWarmup, nil)
}
