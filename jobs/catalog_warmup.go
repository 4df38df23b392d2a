package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/lumina-lms/lumina-access/internal/resources"
)

// Warmer re-primes the catalog cache after deploys or cache flushes.
type Warmer struct {
	catalog *resources.Service
	logger  *slog.Logger
}

// NewWarmer constructs a Warmer.
func NewWarmer(catalog *resources.Service, logger *slog.Logger) *Warmer {
	return &Warmer{catalog: catalog, logger: logger}
}

// HandleCatalogWarmupTask processes TaskCatalogWarmup tasks. Listing through
// the service fills the cache as a side effect.
func (w *Warmer) HandleCatalogWarmupTask(ctx context.Context, t *asynq.Task) error {
	list, err := w.catalog.List(ctx)
	if err != nil {
		return err
	}
	w.logger.Info("catalog cache warmed", slog.Int("resources", len(list)))
	return nil
}
