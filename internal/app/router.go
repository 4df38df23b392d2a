package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/lumina-lms/lumina-access/internal/audit"
	"github.com/lumina-lms/lumina-access/internal/permissions"
	"github.com/lumina-lms/lumina-access/internal/rbac"
	"github.com/lumina-lms/lumina-access/internal/resources"
	"github.com/lumina-lms/lumina-access/internal/roles"
	"github.com/lumina-lms/lumina-access/internal/users"
	"github.com/lumina-lms/lumina-access/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	ResourcesHandler   *resources.Handler
	PermissionsHandler *permissions.Handler
	RolesHandler       *roles.Handler
	UsersHandler       *users.Handler
	AuditHandler       *audit.Handler
	RBACHandler        *rbac.Handler
	JobHandler         *jobs.Handler
	RBACMiddleware     rbac.Middleware
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/resources", params.ResourcesHandler.Routes)
	r.Route("/permissions", params.PermissionsHandler.Routes)
	r.Route("/roles", params.RolesHandler.Routes)
	r.Route("/users", params.UsersHandler.Routes)
	r.Route("/rbac", params.RBACHandler.Routes)

	r.Route("/audit", func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireAny("read"))
		params.AuditHandler.Routes(r)
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
