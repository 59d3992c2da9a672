// Package handler is the registry's thin HTTP layer. It parses, delegates
// to the service and writes the shared JSON envelopes; business rules stay
// below it.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bvcregistry/internal/platform/metrics"
	"bvcregistry/internal/platform/middleware"
	"bvcregistry/internal/registry/models"
	dErrors "bvcregistry/pkg/domain-errors"
	"bvcregistry/pkg/platform/httputil"
)

const defaultPageSize = 20

// Service defines the registry operations the handler depends on.
type Service interface {
	Create(ctx context.Context, req models.CreateRequest) (models.CreateResponse, error)
	Fetch(ctx context.Context, id string) (models.VulnerabilityView, error)
	List(ctx context.Context) (models.ListResponse, error)
	ListPage(ctx context.Context, page, pageSize int) (models.ListResponse, error)
	ListByPlatform(ctx context.Context, platform string) (models.ListResponse, error)
	Versions(ctx context.Context, id string) (models.VersionsResponse, error)
	SetStatus(ctx context.Context, id string, isActive bool) (models.StatusResponse, error)
	Health(ctx context.Context) (models.HealthResponse, bool)
}

// Handler handles the registry endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a registry Handler.
func New(service Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{service: service, logger: logger, metrics: m}
}

// Register registers the registry routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	reg := chi.NewRouter()
	reg.Use(middleware.Recovery(h.logger))
	reg.Use(middleware.RequestID)
	reg.Use(middleware.Logger(h.logger))
	reg.Use(middleware.Timeout(30 * time.Second))
	reg.Use(middleware.ContentTypeJSON)
	if h.metrics != nil {
		reg.Use(middleware.Latency(h.metrics))
	}

	reg.Post("/vulnerabilities", h.handleCreate)
	reg.Get("/vulnerabilities", h.handleList)
	reg.Get("/vulnerabilities/{id}", h.handleFetch)
	reg.Get("/vulnerabilities/{id}/versions", h.handleVersions)
	reg.Post("/vulnerabilities/status", h.handleStatus)
	reg.Get("/health", h.handleHealth)

	r.Mount("/", reg)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warn(ctx, "invalid create request body", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	resp, err := h.service.Create(ctx, req)
	if err != nil {
		h.fail(ctx, "create failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleFetch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	view, err := h.service.Fetch(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, "fetch failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, view)
}

// handleList serves the three enumeration variants: full, paginated and
// platform-filtered.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	var (
		resp models.ListResponse
		err  error
	)
	switch {
	case q.Get("platform") != "":
		resp, err = h.service.ListByPlatform(ctx, q.Get("platform"))
	case q.Get("page") != "" || q.Get("pageSize") != "":
		page, perr := intQuery(q.Get("page"), 1)
		if perr != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "page: must be an integer"))
			return
		}
		pageSize, perr := intQuery(q.Get("pageSize"), defaultPageSize)
		if perr != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "pageSize: must be an integer"))
			return
		}
		resp, err = h.service.ListPage(ctx, page, pageSize)
	default:
		resp, err = h.service.List(ctx)
	}
	if err != nil {
		h.fail(ctx, "list failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleVersions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := h.service.Versions(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(ctx, "version history failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.StatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.warn(ctx, "invalid status request body", err)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if req.ID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "id: required field is missing"))
		return
	}
	if req.IsActive == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "isActive: required field is missing"))
		return
	}

	resp, err := h.service.SetStatus(ctx, req.ID, *req.IsActive)
	if err != nil {
		h.fail(ctx, "status toggle failed", err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp, healthy := h.service.Health(r.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, resp)
}

func (h *Handler) warn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
}

// fail logs client errors at warn and everything else at error.
func (h *Handler) fail(ctx context.Context, msg string, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeBadRequest || code == dErrors.CodeNotFound || code == dErrors.CodeConflict {
		h.warn(ctx, msg, err)
		return
	}
	h.logger.ErrorContext(ctx, msg,
		"request_id", middleware.GetRequestID(ctx),
		"error", err.Error(),
	)
}

func intQuery(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
