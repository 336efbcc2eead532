package production

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mise-erp/mise-erp/internal/platform/httpx"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// Handler wires HTTP endpoints for production runs.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the production handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers production routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/cancel", h.handleCancel)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	input.Performer = actorFrom(r)
	run, err := h.service.CreateRun(r.Context(), input)
	if err != nil {
		h.logger.Error("create production run failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("production run posted",
		slog.String("code", run.Code),
		slog.Float64("yield", run.ActualYield),
		slog.Float64("cost_per_unit", run.CostPerUnit))
	httpx.JSON(w, http.StatusCreated, run)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	run, err := h.service.CancelRun(r.Context(), id, actorFrom(r))
	if err != nil {
		h.logger.Error("cancel production run failed", slog.Any("error", err), slog.String("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.service.ListRuns(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func actorFrom(r *http.Request) shared.Actor {
	return shared.Actor{
		ID:   r.Header.Get("X-Actor-ID"),
		Name: r.Header.Get("X-Actor-Name"),
	}
}
