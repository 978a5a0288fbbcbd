package shipping

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scooterparts/backend/internal/httpx"
)

type QuoteRequest struct {
	Destination string `json:"destination" validate:"required"`
	WeightGrams int    `json:"weight_grams" validate:"required,gt=0"`
}

type Handler struct {
	calc     *Calculator
	validate *validator.Validate
}

func NewHandler(calc *Calculator) *Handler {
	return &Handler{calc: calc, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/shipping/quote", h.handleQuote)
}

func (h *Handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req QuoteRequest
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

	quote, err := h.calc.Calculate(req.Destination, req.WeightGrams)
	if err != nil {
		if errors.Is(err, ErrUnknownDestination) {
			httpx.RespondError(w, http.StatusUnprocessableEntity, "unknown shipping destination")
			return
		}
		httpx.RespondError(w, http.StatusInternalServerError, "failed to calculate shipping")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, quote)
}
