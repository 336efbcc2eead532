package procurement

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mise-erp/mise-erp/internal/platform/httpx"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// Handler wires HTTP endpoints for import receipts.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the procurement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers procurement routes.
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
	receipt, err := h.service.CreateImportReceipt(r.Context(), input)
	if err != nil {
		h.logger.Error("create import receipt failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("import receipt created",
		slog.String("code", receipt.Code),
		slog.Int("lines", len(receipt.Lines)),
		slog.Float64("total", receipt.TotalValue))
	httpx.JSON(w, http.StatusCreated, receipt)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	receipt, err := h.service.CancelImportReceipt(r.Context(), id, actorFrom(r))
	if err != nil {
		h.logger.Error("cancel import receipt failed", slog.Any("error", err), slog.String("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	receipt, err := h.service.GetReceipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipt)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	receipts, err := h.service.ListReceipts(r.Context(), limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"receipts": receipts})
}

func actorFrom(r *http.Request) shared.Actor {
	return shared.Actor{
		ID:   r.Header.Get("X-Actor-ID"),
		Name: r.Header.Get("X-Actor-Name"),
	}
}
