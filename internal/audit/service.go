package audit

import (
	"context"
	"log/slog"
	"strings"

	"github.com/lumina-lms/lumina-access/internal/shared"
)

// RepositoryPort defines data access methods for the log.
type RepositoryPort interface {
	Begin(ctx context.Context) (TxRepository, error)
	List(ctx context.Context, filter ListFilter, page shared.Pagination) ([]ListEntry, int, error)
	Get(ctx context.Context, id int64) (Entry, error)
	ListAll(ctx context.Context) ([]Entry, error)
}

// TxRepository is the transactional slice the events run against.
type TxRepository interface {
	UserExists(ctx context.Context, id int64) (bool, error)
	RoleExists(ctx context.Context, id int64) (bool, error)
	PermissionExists(ctx context.Context, id int64) (bool, error)
	ResourceExists(ctx context.Context, id int64) (bool, error)
	InsertRoleAssignment(ctx context.Context, userID, roleID int64) error
	InsertUserPermission(ctx context.Context, userID, permissionID int64) error
	Append(ctx context.Context, entry Entry) (Entry, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Service coordinates event execution and log reads.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Execute validates an event, applies its side effect, and appends its log
// entry, all in one transaction. A failed append rolls the side effect back.
func (s *Service) Execute(ctx context.Context, event Event) (Entry, error) {
	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return Entry{}, err
	}
	defer tx.Rollback(ctx)

	if err := event.Validate(ctx, tx); err != nil {
		return Entry{}, err
	}
	if err := event.Apply(ctx, tx); err != nil {
		return Entry{}, err
	}
	entry, err := tx.Append(ctx, event.Entry())
	if err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Entry{}, err
	}

	s.logger.Info("audit event recorded",
		slog.String("action", entry.Action),
		slog.Int64("entry_id", entry.ID))
	return entry, nil
}

// List returns one log page, newest first, with referenced display fields
// joined in.
func (s *Service) List(ctx context.Context, filter ListFilter, limit, offset int) (ListResult, error) {
	filter.Action = strings.TrimSpace(filter.Action)
	page := shared.NormalizePage(limit, offset)
	entries, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return ListResult{}, err
	}
	if entries == nil {
		entries = []ListEntry{}
	}
	page.Total = total
	return ListResult{Items: entries, Page: page}, nil
}

// Get returns one log entry by id.
func (s *Service) Get(ctx context.Context, id int64) (Entry, error) {
	return s.repo.Get(ctx, id)
}

// Export returns the full log, newest first.
func (s *Service) Export(ctx context.Context) ([]Entry, error) {
	return s.repo.ListAll(ctx)
}
