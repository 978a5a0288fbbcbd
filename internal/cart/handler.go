package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/auth"
	"github.com/scooterparts/backend/internal/httpx"
)

type SetItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

type Handler struct {
	store    Store
	validate *validator.Validate
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store, validate: validator.New()}
}

// RegisterRoutes mounts cart and wishlist endpoints; the group is expected to
// be wrapped in auth.RequireAuth.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/cart", h.handleGetCart)
	r.Put("/cart", h.handleSetItem)
	r.Delete("/cart", h.handleClearCart)
	r.Delete("/cart/items/{productID}", h.handleRemoveItem)
	r.Get("/wishlist", h.handleGetWishlist)
	r.Post("/wishlist/{productID}", h.handleAddToWishlist)
	r.Delete("/wishlist/{productID}", h.handleRemoveFromWishlist)
}

func (h *Handler) handleGetCart(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	items, err := h.store.GetCart(r.Context(), sess.UserID)
	if err != nil {
		log.Error().Err(err).Stringer("user_id", sess.UserID).Msg("Failed to fetch cart")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to fetch cart")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) handleSetItem(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	var req SetItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			httpx.RespondValidationErrors(w, validationErrors)
			return
		}
		httpx.RespondError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	productID, err := uuid.FromString(req.ProductID)
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.store.SetCartItem(r.Context(), sess.UserID, productID, req.Quantity); err != nil {
		log.Error().Err(err).Stringer("user_id", sess.UserID).Msg("Failed to set cart item")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to update cart")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearCart(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	if err := h.store.ClearCart(r.Context(), sess.UserID); err != nil {
		log.Error().Err(err).Stringer("user_id", sess.UserID).Msg("Failed to clear cart")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to clear cart")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	productID, err := uuid.FromString(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.store.RemoveCartItem(r.Context(), sess.UserID, productID); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, "failed to update cart")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetWishlist(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	ids, err := h.store.GetWishlist(r.Context(), sess.UserID)
	if err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, "failed to fetch wishlist")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, map[string]interface{}{"product_ids": ids})
}

func (h *Handler) handleAddToWishlist(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	productID, err := uuid.FromString(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.store.AddToWishlist(r.Context(), sess.UserID, productID); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, "failed to update wishlist")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRemoveFromWishlist(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())

	productID, err := uuid.FromString(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.RespondError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	if err := h.store.RemoveFromWishlist(r.Context(), sess.UserID, productID); err != nil {
		httpx.RespondError(w, http.StatusInternalServerError, "failed to update wishlist")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
