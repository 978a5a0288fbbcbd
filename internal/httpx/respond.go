package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

func RespondJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func RespondError(w http.ResponseWriter, code int, message string) {
	RespondJSON(w, code, map[string]string{"error": message})
}

// FieldViolation is one failed constraint on a request payload field.
type FieldViolation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Error      string           `json:"error"`
	Violations []FieldViolation `json:"violations"`
}

// RespondValidationErrors renders validator.ValidationErrors as a structured
// violation list instead of the library's joined message string.
func RespondValidationErrors(w http.ResponseWriter, errs validator.ValidationErrors) {
	violations := make([]FieldViolation, 0, len(errs))
	for _, fe := range errs {
		violations = append(violations, FieldViolation{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Message: fe.Error(),
		})
	}
	RespondJSON(w, http.StatusBadRequest, ValidationErrorResponse{
		Error:      "validation failed",
		Violations: violations,
	})
}
