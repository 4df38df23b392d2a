package jobs

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/lumina-lms/lumina-access/internal/audit"
)

// Exporter writes audit log snapshots to CSV files.
type Exporter struct {
	audits *audit.Service
	dir    string
	logger *slog.Logger
}

// NewExporter constructs an Exporter.
func NewExporter(audits *audit.Service, dir string, logger *slog.Logger) *Exporter {
	return &Exporter{audits: audits, dir: dir, logger: logger}
}

// HandleAuditExportTask processes TaskAuditExport tasks.
func (e *Exporter) HandleAuditExportTask(ctx context.Context, t *asynq.Task) error {
	var payload AuditExportPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	entries, err := e.audits.Export(ctx)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("audit-%s-%s.csv", time.Now().UTC().Format("20060102"), uuid.NewString())
	path := filepath.Join(e.dir, name)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"id", "action", "actor_id", "target_user_id", "role_id", "permission_id", "scope_id", "created_at"}); err != nil {
		return err
	}
	for _, entry := range entries {
		record := []string{
			strconv.FormatInt(entry.ID, 10),
			entry.Action,
			optionalID(entry.ActorID),
			optionalID(entry.TargetUserID),
			optionalID(entry.RoleID),
			optionalID(entry.PermissionID),
			optionalID(entry.ScopeID),
			entry.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	e.logger.Info("audit log exported",
		slog.String("path", path),
		slog.Int("entries", len(entries)),
		slog.Int64("requested_by", payload.RequestedBy))
	return nil
}

func optionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
