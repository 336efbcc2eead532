package catalog

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/platform/httpx"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// Handler wires HTTP endpoints for master data.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the catalog handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{kind}", h.handleList)
	r.Post("/{kind}", h.handleCreate)
	r.Get("/{kind}/{id}", h.handleGet)
	r.Put("/{kind}/{id}", h.handleUpdate)
	r.Delete("/{kind}/{id}", h.handleDelete)
}

func kindParam(r *http.Request) ledger.ItemKind {
	// Routes use the plural; storage uses the singular.
	switch chi.URLParam(r, "kind") {
	case "ingredients":
		return ledger.KindIngredient
	case "products":
		return ledger.KindProduct
	default:
		return ledger.ItemKind(chi.URLParam(r, "kind"))
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context(), kindParam(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	input.Kind = kindParam(r)
	item, err := h.service.Create(r.Context(), input, actorFrom(r))
	if err != nil {
		h.logger.Error("create item failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), chi.URLParam(r, "id"), kindParam(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var input UpdateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	item, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), kindParam(r), input, actorFrom(r))
	if err != nil {
		h.logger.Error("update item failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), kindParam(r), actorFrom(r)); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func actorFrom(r *http.Request) shared.Actor {
	return shared.Actor{
		ID:   r.Header.Get("X-Actor-ID"),
		Name: r.Header.Get("X-Actor-Name"),
	}
}
