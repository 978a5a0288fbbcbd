package payment

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/httpx"
)

// GatewayCallbackRequest mirrors the provider's webhook payload shape.
type GatewayCallbackRequest struct {
	Ref    string `json:"ref" validate:"required"`
	Status string `json:"status" validate:"required,oneof=success failed"`
}

type Handler struct {
	svc      Service
	validate *validator.Validate
}

func NewHandler(svc Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/payments/gateway/callback", h.handleGatewayCallback)
}

func (h *Handler) handleGatewayCallback(w http.ResponseWriter, r *http.Request) {
	var req GatewayCallbackRequest
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

	err := h.svc.HandleGatewayCallback(r.Context(), req.Ref, req.Status == "success")
	if err != nil {
		switch {
		case errors.Is(err, ErrPaymentNotFound):
			httpx.RespondError(w, http.StatusNotFound, "payment not found")
		case errors.Is(err, ErrAlreadySettled):
			// Providers retry webhooks; acknowledging keeps them quiet.
			w.WriteHeader(http.StatusOK)
		default:
			log.Error().Err(err).Str("gateway_ref", req.Ref).Msg("Failed to process gateway callback")
			httpx.RespondError(w, http.StatusInternalServerError, "failed to process callback")
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}
