package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"

	"github.com/scooterparts/backend/internal/httpx"
	"github.com/scooterparts/backend/internal/user"
)

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,min=2"`
	LastName  string `json:"last_name" validate:"required,min=2"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Tier      user.Tier `json:"tier"`
	CreatedAt time.Time `json:"created_at"`
}

type loginResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type Handler struct {
	users    user.Service
	sessions SessionStore
	validate *validator.Validate
}

func NewHandler(users user.Service, sessions SessionStore) *Handler {
	return &Handler{
		users:    users,
		sessions: sessions,
		validate: validator.New(),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/me", h.handleMe)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	u, err := h.users.GetByID(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			httpx.RespondError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		log.Error().Err(err).Stringer("user_id", sess.UserID).Msg("Failed to fetch current user")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to fetch user")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, userResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Tier:      u.Tier,
		CreatedAt: u.CreatedAt,
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
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

	u := &user.User{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}

	created, err := h.users.Register(r.Context(), u, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrEmailExists) {
			httpx.RespondError(w, http.StatusConflict, "user with this email already exists")
			return
		}
		log.Error().Err(err).Msg("Failed to register user")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to register user")
		return
	}

	httpx.RespondJSON(w, http.StatusCreated, userResponse{
		ID:        created.ID,
		Email:     created.Email,
		FirstName: created.FirstName,
		LastName:  created.LastName,
		Tier:      created.Tier,
		CreatedAt: created.CreatedAt,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

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

	u, err := h.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrInvalidCredentials) {
			httpx.RespondError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		log.Error().Err(err).Msg("Failed to authenticate user")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}

	token, err := h.sessions.Create(r.Context(), Session{
		UserID:          u.ID,
		Role:            u.Role,
		Tier:            u.Tier,
		PriceCategoryID: u.PriceCategoryID,
	})
	if err != nil {
		log.Error().Err(err).Stringer("user_id", u.ID).Msg("Failed to create session")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	httpx.RespondJSON(w, http.StatusOK, loginResponse{
		Token: token,
		User: userResponse{
			ID:        u.ID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Tier:      u.Tier,
			CreatedAt: u.CreatedAt,
		},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		httpx.RespondError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	if err := h.sessions.Delete(r.Context(), token); err != nil {
		log.Error().Err(err).Msg("Failed to delete session")
		httpx.RespondError(w, http.StatusInternalServerError, "failed to log out")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
