package ledger

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mise-erp/mise-erp/internal/platform/httpx"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// Handler wires HTTP endpoints for stock snapshots, ledger history and
// stocktake adjustments.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stock/{kind}/{id}", h.handleGetSnapshot)
	r.Get("/entries", h.handleListEntries)
	r.Post("/adjustments", h.handleAdjust)
	r.Post("/adjustments/{entryID}/cancel", h.handleCancelAdjustment)
}

func (h *Handler) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	kind := ItemKind(chi.URLParam(r, "kind"))
	snap, err := h.service.GetSnapshot(r.Context(), chi.URLParam(r, "id"), kind)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, snap)
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := EntryFilter{
		ItemID: q.Get("item_id"),
		Kind:   ItemKind(q.Get("kind")),
		DocID:  q.Get("doc_id"),
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}
	entries, err := h.service.ListEntries(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type adjustRequest struct {
	ItemID        string  `json:"item_id"`
	Kind          string  `json:"kind"`
	ActualStock   float64 `json:"actual_stock"`
	PerformerID   string  `json:"performer_id"`
	PerformerName string  `json:"performer_name"`
}

func (h *Handler) handleAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	entry, applied, err := h.service.AdjustStock(r.Context(), AdjustInput{
		ItemID:      req.ItemID,
		Kind:        ItemKind(req.Kind),
		ActualStock: req.ActualStock,
		Performer:   shared.Actor{ID: req.PerformerID, Name: req.PerformerName},
	})
	if err != nil {
		h.logger.Error("stocktake adjustment failed", slog.Any("error", err), slog.String("item_id", req.ItemID))
		httpx.RespondError(w, err)
		return
	}
	if !applied {
		httpx.JSON(w, http.StatusOK, map[string]any{"applied": false})
		return
	}
	h.logger.Info("stocktake adjustment posted",
		slog.String("item_id", req.ItemID),
		slog.Float64("quantity_change", entry.QuantityChange))
	httpx.JSON(w, http.StatusCreated, map[string]any{"applied": true, "entry": entry})
}

type cancelAdjustRequest struct {
	PerformerID   string `json:"performer_id"`
	PerformerName string `json:"performer_name"`
}

func (h *Handler) handleCancelAdjustment(w http.ResponseWriter, r *http.Request) {
	var req cancelAdjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	entryID := chi.URLParam(r, "entryID")
	comp, err := h.service.CancelAdjustment(r.Context(), entryID, shared.Actor{ID: req.PerformerID, Name: req.PerformerName})
	if err != nil {
		h.logger.Error("cancel adjustment failed", slog.Any("error", err), slog.String("entry_id", entryID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"reversal_entry": comp})
}
