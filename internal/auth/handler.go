package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/munezero-grace/student-registration-backend/internal/httputil"
	"github.com/munezero-grace/student-registration-backend/internal/metrics"
	"github.com/munezero-grace/student-registration-backend/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  *Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service *Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
}

func (h *Handler) RegisterRoutes(router chi.Router) {
	router.Post("/login", h.Login)
	router.Post("/register", h.Register)
}

// Login authenticates a user and returns a bearer token
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		h.logger.WarnContext(r.Context(), "login validation failed", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		h.metrics.RecordLoginFailure(r.Context())
		switch {
		case errors.Is(err, user.ErrUserNotFound):
			httputil.RespondWithError(w, http.StatusNotFound, "User not found")
		case errors.Is(err, ErrInvalidCredentials):
			httputil.RespondWithError(w, http.StatusUnauthorized, "Invalid credentials")
		default:
			h.logger.ErrorContext(r.Context(), "login failed", "error", err)
			httputil.RespondWithError(w, http.StatusInternalServerError, "Server error during login")
		}
		return
	}

	h.metrics.RecordLogin(r.Context())
	h.logger.InfoContext(r.Context(), "user logged in", "email", req.Email)

	httputil.RespondWithJSON(w, http.StatusOK, resp)
}

// Register creates a new student account
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" {
		httputil.RespondWithError(w, http.StatusBadRequest, "Email is required")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.logger.WarnContext(r.Context(), "registration validation failed", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.service.Register(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailExists):
			httputil.RespondWithError(w, http.StatusBadRequest,
				"Email already registered. Please use a different email address.")
		case errors.Is(err, ErrAgeOutOfRange):
			httputil.RespondWithError(w, http.StatusBadRequest,
				"User must be between 10 and 20 years old")
		case errors.Is(err, ErrInvalidBirthDate):
			httputil.RespondWithError(w, http.StatusBadRequest, "dateOfBirth must be YYYY-MM-DD")
		default:
			h.logger.ErrorContext(r.Context(), "registration failed", "error", err)
			httputil.RespondWithError(w, http.StatusInternalServerError, "Server error during registration")
		}
		return
	}

	h.metrics.RecordUserRegistered(r.Context())

	httputil.RespondWithJSON(w, http.StatusCreated, resp)
}
