package user

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/munezero-grace/student-registration-backend/internal/httputil"
	"github.com/munezero-grace/student-registration-backend/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	validate *validator.Validate
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

func NewHandler(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
		metrics:  metrics,
	}
}

// RegisterAdminRoutes mounts the admin-only user management endpoints.
// The router passed in must already be gated by the admin middleware chain.
func (h *Handler) RegisterAdminRoutes(router chi.Router) {
	router.Get("/users", h.ListUsers)
	router.Get("/users/{id}", h.GetUser)
	router.Put("/users/{id}", h.UpdateUser)
	router.Delete("/users/{id}", h.DeleteUser)
}

// RegisterProfileRoutes mounts the self-profile endpoint behind Authenticate.
func (h *Handler) RegisterProfileRoutes(router chi.Router) {
	router.Get("/profile", h.GetProfile)
}

// UpdateUserRequest is the partial update body for PUT /admin/users/{id}.
type UpdateUserRequest struct {
	FirstName   *string `json:"firstName" validate:"omitempty,min=1"`
	LastName    *string `json:"lastName" validate:"omitempty,min=1"`
	Email       *string `json:"email" validate:"omitempty,email"`
	DateOfBirth *string `json:"dateOfBirth"`
	Role        *string `json:"role" validate:"omitempty,oneof=student admin"`
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, _ := strconv.Atoi(query.Get("page"))
	limit, _ := strconv.Atoi(query.Get("limit"))

	params := ListParams{
		Page:      page,
		Limit:     limit,
		Search:    query.Get("search"),
		Role:      query.Get("role"),
		SortBy:    query.Get("sortBy"),
		SortOrder: query.Get("sortOrder"),
	}

	result, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list users", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, "Server error while fetching users.")
		return
	}

	h.metrics.RecordUsersListViewed(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, result)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.handleServiceError(w, r, err, "Error fetching user")
		return
	}

	h.metrics.RecordUserViewed(r.Context())

	httputil.RespondWithJSON(w, http.StatusOK, u.Projection())
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.logger.WarnContext(r.Context(), "validation failed", "error", err)
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields := UpdateFields{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			httputil.RespondWithError(w, http.StatusBadRequest, "dateOfBirth must be YYYY-MM-DD")
			return
		}
		fields.DateOfBirth = &dob
	}
	if req.Role != nil {
		role := Role(*req.Role)
		fields.Role = &role
	}

	updated, err := h.service.UpdateUser(r.Context(), id, fields)
	if err != nil {
		h.handleServiceError(w, r, err, "Error updating user")
		return
	}

	h.metrics.RecordUserUpdated(r.Context())
	h.logger.InfoContext(r.Context(), "user updated", "id", id)

	httputil.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message": "User updated successfully",
		"user":    updated.Projection(),
	})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.handleServiceError(w, r, err, "Server error while deleting user")
		return
	}

	h.metrics.RecordUserDeleted(r.Context())
	h.logger.InfoContext(r.Context(), "user deleted", "id", id)

	httputil.RespondWithJSON(w, http.StatusOK, map[string]string{
		"message": "User deleted successfully",
	})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := FromContext(r.Context())
	if !ok {
		httputil.RespondWithJSON(w, http.StatusNotFound, map[string]interface{}{
			"success": false,
			"message": "User profile not found.",
		})
		return
	}

	httputil.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    u.Projection(),
	})
}

func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, ErrUserNotFound):
		httputil.RespondWithError(w, http.StatusNotFound, "User not found")
	case errors.Is(err, ErrLastAdmin):
		httputil.RespondWithError(w, http.StatusForbidden,
			"Cannot remove the last admin user. Create another admin first.")
	case errors.Is(err, ErrEmailTaken):
		httputil.RespondWithError(w, http.StatusBadRequest, "Email is already in use")
	case errors.Is(err, ErrInvalidInput):
		httputil.RespondWithError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "unexpected service error", "error", err)
		httputil.RespondWithError(w, http.StatusInternalServerError, fallback)
	}
}
