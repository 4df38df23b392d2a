package rbac

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/lumina-lms/lumina-access/internal/audit"
	"github.com/lumina-lms/lumina-access/internal/platform/httpx"
	"github.com/lumina-lms/lumina-access/internal/shared"
)

// Handler exposes the engine, the resolver, and the audited grant endpoints.
type Handler struct {
	svc      *Service
	audits   *audit.Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(svc *Service, audits *audit.Service) *Handler {
	return &Handler{svc: svc, audits: audits, validate: validator.New()}
}

// Routes mounts the engine endpoints.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/roles/{roleID}/resources/{resourceID}/permissions", h.reconcile)
	r.Get("/roles/{roleID}/resources/{resourceID}/permissions", h.rolePermissions)
	r.Get("/users/{id}/permissions", h.resolve)
	r.Get("/users/{id}/resources/{resourceID}/permissions", h.resourcePermissions)
	r.Get("/users/{id}/permissions/effective", h.effective)
	r.Get("/check", h.check)
	r.Post("/extra-permissions", h.extraGrant)
	r.Post("/role-assignments", h.roleAssignment)
}

type permissionStateRequest struct {
	PermissionID int64 `json:"permissionId" validate:"required"`
	Desired      bool  `json:"desired"`
}

type reconcileRequest struct {
	Permissions []permissionStateRequest `json:"permissions" validate:"required,min=1,dive"`
}

type extraGrantRequest struct {
	UserID       int64  `json:"userId" validate:"required"`
	PermissionID int64  `json:"permissionId" validate:"required"`
	ScopeID      *int64 `json:"scopeId"`
}

type roleAssignmentRequest struct {
	UserID int64  `json:"userId" validate:"required"`
	RoleID int64  `json:"roleId" validate:"required"`
	Action string `json:"action" validate:"required"`
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	roleID, err1 := urlInt64(r, "roleID")
	resourceID, err2 := urlInt64(r, "resourceID")
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role or resource id")
		return
	}
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "acting user not identified")
		return
	}
	var req reconcileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	requested := make([]PermissionState, len(req.Permissions))
	for i, pair := range req.Permissions {
		requested[i] = PermissionState{PermissionID: pair.PermissionID, Desired: pair.Desired}
	}
	result, err := h.svc.Reconcile(r.Context(), ReconcileInput{
		ActorID:    actorID,
		RoleID:     roleID,
		ResourceID: resourceID,
		Requested:  requested,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	roleID, err1 := urlInt64(r, "roleID")
	resourceID, err2 := urlInt64(r, "resourceID")
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role or resource id")
		return
	}
	list, err := h.svc.RolePermissions(r.Context(), roleID, resourceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	userID, err := urlInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	resolved, err := h.svc.Resolve(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resolved)
}

func (h *Handler) resourcePermissions(w http.ResponseWriter, r *http.Request) {
	userID, err1 := urlInt64(r, "id")
	resourceID, err2 := urlInt64(r, "resourceID")
	if err1 != nil || err2 != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user or resource id")
		return
	}
	names, err := h.svc.PermissionsForResource(r.Context(), userID, resourceID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"userId":      userID,
		"resourceId":  resourceID,
		"permissions": names,
	})
}

func (h *Handler) effective(w http.ResponseWriter, r *http.Request) {
	userID, err := urlInt64(r, "id")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	names, err := h.svc.EffectivePermissions(r.Context(), userID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"userId": userID, "permissions": names})
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID, err := strconv.ParseInt(query.Get("userId"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid userId")
		return
	}
	result, err := h.svc.Check(r.Context(), userID, query.Get("permission"), query.Get("resource"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) extraGrant(w http.ResponseWriter, r *http.Request) {
	var req extraGrantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	event := audit.ExtraGrant{
		TargetUserID: req.UserID,
		PermissionID: req.PermissionID,
		ScopeID:      req.ScopeID,
	}
	if actorID, ok := shared.ActorFromContext(r.Context()); ok {
		event.ActorID = &actorID
	}
	entry, err := h.audits.Execute(r.Context(), event)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) roleAssignment(w http.ResponseWriter, r *http.Request) {
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "acting user not identified")
		return
	}
	var req roleAssignmentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	entry, err := h.audits.Execute(r.Context(), audit.RoleAssignment{
		ActorID:      actorID,
		TargetUserID: req.UserID,
		RoleID:       req.RoleID,
		Action:       req.Action,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func urlInt64(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
