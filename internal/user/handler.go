package user

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/httpx"
)

// SetPriceCategoryRequest carries the new category; null clears it.
type SetPriceCategoryRequest struct {
	PriceCategoryID *string `json:"price_category_id"`
}

type Handler struct {
	svc Service
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Patch("/users/{id}/price-category", h.handleSetPriceCategory)
}

func (h *Handler) handleSetPriceCategory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.FromString(chi.URLParam(r, "id"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req SetPriceCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if req.PriceCategoryID != nil && *req.PriceCategoryID == "" {
		httpx.RespondError(w, http.StatusBadRequest, "price category cannot be empty, use null to clear")
		return
	}

	if err := h.svc.SetPriceCategory(r.Context(), id, req.PriceCategoryID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.RespondError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("Failed to set price category")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to set price category")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
