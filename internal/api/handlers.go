package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/example/catering-cart/internal/api/middleware"
	"github.com/example/catering-cart/internal/auth"
	"github.com/example/catering-cart/internal/contract"
	"github.com/example/catering-cart/internal/domain/draftorder"
)

const maxBodyBytes = 1 << 20

// DraftOrderHandlers serves the draft-order and access endpoints
type DraftOrderHandlers struct {
	service  *draftorder.Service
	validate *validator.Validate
	logger   *zap.Logger
}

func NewDraftOrderHandlers(service *draftorder.Service, logger *zap.Logger) *DraftOrderHandlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DraftOrderHandlers{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

// GetDraft returns the customer's draft order or 404
func (h *DraftOrderHandlers) GetDraft(w http.ResponseWriter, r *http.Request) {
	customer := customerParam(r)

	draft, err := h.service.Get(r.Context(), customer)
	if errors.Is(err, draftorder.ErrDraftNotFound) {
		respondJSONError(w, "draft order not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.internalError(w, "get draft", err)
		return
	}

	respondJSON(w, http.StatusOK, toContract(draft))
}

// PutDraft replaces the customer's draft lines
func (h *DraftOrderHandlers) PutDraft(w http.ResponseWriter, r *http.Request) {
	var req contract.UpsertDraftRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondJSONError(w, "invalid draft order lines", http.StatusBadRequest)
		return
	}

	inputs := make([]draftorder.LineInput, 0, len(req.Lines))
	for _, l := range req.Lines {
		inputs = append(inputs, draftorder.LineInput{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.Price,
		})
	}

	draft, err := h.service.Upsert(r.Context(), middleware.GetUserID(r.Context()), customerParam(r), inputs)
	switch {
	case errors.Is(err, draftorder.ErrEmptyDraft), errors.Is(err, draftorder.ErrInvalidLine):
		respondJSONError(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, draftorder.ErrUnknownProduct):
		respondJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		h.internalError(w, "upsert draft", err)
		return
	}

	respondJSON(w, http.StatusOK, contract.UpsertDraftResponse{OrderID: draft.ID})
}

// DeleteDraft removes a draft by id
func (h *DraftOrderHandlers) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	raw := extractPathParam(r.URL.Path, "/draft-orders/")
	orderID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || orderID <= 0 {
		respondJSONError(w, "invalid draft order id", http.StatusBadRequest)
		return
	}

	err = h.service.Delete(r.Context(), middleware.GetUserID(r.Context()), orderID, customerParam(r))
	switch {
	case errors.Is(err, draftorder.ErrDraftNotFound):
		respondJSONError(w, "draft order not found", http.StatusNotFound)
		return
	case errors.Is(err, draftorder.ErrCustomerMismatch):
		respondJSONError(w, "forbidden", http.StatusForbidden)
		return
	case err != nil:
		h.internalError(w, "delete draft", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAccess reports which customers the caller may act for
func (h *DraftOrderHandlers) GetAccess(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	resp := contract.Access{AvailableCustomers: append([]auth.Customer{}, claims.Customers...)}
	if cust, ok := claims.Customer(customerParam(r)); ok {
		resp.HasAccess = true
		resp.SelectedCustomerName = cust.Name
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *DraftOrderHandlers) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("request failed", zap.String("op", op), zap.Error(err))
	respondJSONError(w, "internal error", http.StatusInternalServerError)
}

func toContract(d *draftorder.DraftOrder) contract.DraftOrder {
	out := contract.DraftOrder{OrderID: d.ID, Lines: make([]contract.DraftLine, 0, len(d.Lines))}
	for _, l := range d.Lines {
		out.Lines = append(out.Lines, contract.DraftLine{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			DisplayName: l.DisplayName,
			Price:       l.Price,
			Quantity:    l.Quantity,
		})
	}
	return out
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, contract.ErrorResponse{Error: message})
}

func extractPathParam(path, prefix string) string {
	return strings.Trim(strings.TrimPrefix(path, prefix), "/")
}

func customerParam(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("customer"))
}
