// Package httpapi exposes the access-control core to the administration UI,
// the teacher self-service UI and the exam CRUD service. It owns no access
// logic: decisions come from the resolver, mutations from the workflow and
// assignment services.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/schooldesk/examaccess/internal/cache"
	"github.com/schooldesk/examaccess/internal/model"
	"github.com/schooldesk/examaccess/internal/service"
)

type Server struct {
	workflow    *service.Workflow
	assignments *service.Assignments
	resolver    *service.Resolver
	organizer   *service.Organizer
	ledger      *service.Ledger
	decisions   *cache.DecisionCache // nil when redis is not configured
	jwtSecret   []byte
	validate    *validator.Validate
	logger      *zap.Logger
}

func NewServer(
	workflow *service.Workflow,
	assignments *service.Assignments,
	resolver *service.Resolver,
	organizer *service.Organizer,
	ledger *service.Ledger,
	decisions *cache.DecisionCache,
	jwtSecret []byte,
	logger *zap.Logger,
) *Server {
	return &Server{
		workflow:    workflow,
		assignments: assignments,
		resolver:    resolver,
		organizer:   organizer,
		ledger:      ledger,
		decisions:   decisions,
		jwtSecret:   jwtSecret,
		validate:    validator.New(),
		logger:      logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Post("/requests", s.handleSubmitRequest)
		r.Get("/requests", s.handleListMyRequests)
		r.Get("/requests/pending", s.handleListPendingRequests)
		r.Post("/requests/{id}/withdraw", s.handleWithdrawRequest)
		r.Post("/requests/{id}/approve", s.handleApproveRequest)
		r.Post("/requests/{id}/deny", s.handleDenyRequest)
		r.Post("/requests/bulk-approve", s.handleBulkApprove)

		r.Get("/assignments", s.handleListAssignments)
		r.Get("/assignments/effective", s.handleEffectiveAccess)
		r.Post("/assignments", s.handleDirectAssign)
		r.Delete("/assignments/{id}", s.handleRevokeAssignment)

		r.Get("/audit", s.handleAuditQuery)

		r.Post("/decisions/resolve", s.handleResolve)
		r.Post("/decisions/organize", s.handleOrganize)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps the typed error taxonomy onto HTTP statuses. The
// services' error text is passed through; for access denials that text is
// the mandated "Access Denied: ..." message.
func writeServiceError(w http.ResponseWriter, err error) {
	var denied *model.AccessDeniedError
	switch {
	case errors.As(err, &denied):
		writeError(w, http.StatusForbidden, denied.Error())
	case errors.Is(err, model.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrDuplicateRequest),
		errors.Is(err, model.ErrStaleRequestState),
		errors.Is(err, model.ErrInvalidStateTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// invalidateDecisions drops the cached decisions after a successful
// mutation. No-op when the cache is not configured.
func (s *Server) invalidateDecisions(r *http.Request) {
	if s.decisions != nil {
		s.decisions.Invalidate(r.Context())
	}
}
