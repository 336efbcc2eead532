package finance

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mise-erp/mise-erp/internal/platform/httpx"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// Handler wires HTTP endpoints for finance transactions.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the finance handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers finance routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/transactions", h.handleList)
	r.Post("/transactions", h.handleRecord)
}

type recordRequest struct {
	Type          string `json:"type"`
	Category      string `json:"category"`
	Amount        string `json:"amount"`
	Description   string `json:"description"`
	RelatedDocID  string `json:"related_doc_id"`
	PerformerID   string `json:"performer_id"`
	PerformerName string `json:"performer_name"`
}

func (h *Handler) handleRecord(w http.ResponseWriter, r *http.Request) {
	var req recordRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "amount must be a decimal string")
		return
	}
	tx, err := h.service.Record(r.Context(), RecordInput{
		Type:         TxType(req.Type),
		Category:     req.Category,
		Amount:       amount,
		Description:  req.Description,
		RelatedDocID: req.RelatedDocID,
		Performer:    shared.Actor{ID: req.PerformerID, Name: req.PerformerName},
	})
	if err != nil {
		h.logger.Error("record transaction failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, tx)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	txs, err := h.service.List(r.Context(), Filter{
		DocID:  q.Get("doc_id"),
		Type:   TxType(q.Get("type")),
		Status: TxStatus(q.Get("status")),
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": txs})
}
