package user_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/munezero-grace/student-registration-backend/internal/auth"
	"github.com/munezero-grace/student-registration-backend/internal/metrics"
	"github.com/munezero-grace/student-registration-backend/internal/testdb"
	"github.com/munezero-grace/student-registration-backend/internal/user"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"
)

func seedUser(t *testing.T, db *bun.DB, firstName, lastName, email, regNum string, role user.Role) *user.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	require.NoError(t, err)

	now := time.Now()
	u := &user.User{
		ID:                 uuid.NewString(),
		FirstName:          firstName,
		LastName:           lastName,
		Email:              email,
		Password:           string(hashed),
		RegistrationNumber: regNum,
		DateOfBirth:        time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC),
		Role:               role,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	_, err = db.NewInsert().Model(u).Exec(context.Background())
	require.NoError(t, err)
	return u
}

func bearerFor(t *testing.T, tm *auth.TokenManager, u *user.User) string {
	t.Helper()
	token, err := tm.Generate(u.ID, u.Email, string(u.Role))
	require.NoError(t, err)
	return "Bearer " + token
}

func doRequest(t *testing.T, router chi.Router, method, target, authz string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUserHandler_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t, (*user.User)(nil))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mockMetrics := metrics.NewMock()
	userRepo := user.NewRepository(pgContainer.DB, mockMetrics)
	tokenManager := auth.NewTokenManager("test-secret-key", time.Hour)
	userService := user.NewService(userRepo, nil, logger)
	userHandler := user.NewHandler(userService, logger, mockMetrics)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(auth.Authenticate(tokenManager, userRepo, logger))
			userHandler.RegisterProfileRoutes(r)
		})
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.Authenticate(tokenManager, userRepo, logger))
			r.Use(auth.RequireAdmin(logger))
			userHandler.RegisterAdminRoutes(r)
		})
	})

	seedAdmin := func(t *testing.T) *user.User {
		return seedUser(t, pgContainer.DB, "Grace", "Munezero", "grace@example.com", "ADM-0001-2025", user.RoleAdmin)
	}

	t.Run("List_Pagination", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		admin := seedAdmin(t)

		for i := 1; i <= 25; i++ {
			seedUser(t, pgContainer.DB, "Student", fmt.Sprintf("Number%02d", i),
				fmt.Sprintf("student%02d@example.com", i),
				fmt.Sprintf("REG-%04d-2025", i), user.RoleStudent)
		}

		w := doRequest(t, router, http.MethodGet,
			"/api/admin/users?role=student&page=2&limit=10&sortBy=email&sortOrder=asc",
			bearerFor(t, tokenManager, admin), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result user.ListResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))

		assert.Equal(t, 25, result.Pagination.Total)
		assert.Equal(t, 2, result.Pagination.Page)
		assert.Equal(t, 10, result.Pagination.Limit)
		assert.Equal(t, 3, result.Pagination.TotalPages)
		require.Len(t, result.Data, 10)
		assert.Equal(t, "student11@example.com", result.Data[0].Email)
		assert.Equal(t, "student20@example.com", result.Data[9].Email)
	})

	t.Run("List_Search", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		admin := seedAdmin(t)

		doe := seedUser(t, pgContainer.DB, "John", "Doe", "john@example.com", "REG-1001-2025", user.RoleStudent)
		mail := seedUser(t, pgContainer.DB, "Alice", "Smith", "alice.doe@example.com", "REG-1002-2025", user.RoleStudent)
		reg := seedUser(t, pgContainer.DB, "Bob", "Brown", "bob@example.com", "REG-DOE1-2025", user.RoleStudent)
		seedUser(t, pgContainer.DB, "Carol", "White", "carol@example.com", "REG-1004-2025", user.RoleStudent)

		w := doRequest(t, router, http.MethodGet, "/api/admin/users?search=doe",
			bearerFor(t, tokenManager, admin), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result user.ListResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))

		assert.Equal(t, 3, result.Pagination.Total)
		found := map[string]bool{}
		for _, p := range result.Data {
			found[p.ID] = true
		}
		assert.True(t, found[doe.ID])
		assert.True(t, found[mail.ID])
		assert.True(t, found[reg.ID])
	})

	t.Run("List_RoleFilterAndNameSort", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		admin := seedAdmin(t)

		seedUser(t, pgContainer.DB, "Bob", "Young", "bob@example.com", "REG-1001-2025", user.RoleStudent)
		seedUser(t, pgContainer.DB, "Alice", "Zimmer", "alice@example.com", "REG-1002-2025", user.RoleStudent)
		seedUser(t, pgContainer.DB, "Alice", "Adams", "alice.a@example.com", "REG-1003-2025", user.RoleStudent)

		w := doRequest(t, router, http.MethodGet,
			"/api/admin/users?role=student&sortBy=name&sortOrder=asc",
			bearerFor(t, tokenManager, admin), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var result user.ListResult
		require.NoError(t, json.NewDecoder(w.Body).Decode(&result))

		require.Len(t, result.Data, 3)
		assert.Equal(t, "alice.a@example.com", result.Data[0].Email)
		assert.Equal(t, "alice@example.com", result.Data[1].Email)
		assert.Equal(t, "bob@example.com", result.Data[2].Email)
	})

	t.Run("Get_Success", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		admin := seedAdmin(t)
		student := seedUser(t, pgContainer.DB, "John", "Doe", "john@example.com", "REG-1001-2025", user.RoleStudent)

		w := doRequest(t, router, http.MethodGet, "/api/admin/users/"+student.ID,
			bearerFor(t, tokenManager, admin), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var p user.Projection
		require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
		assert.Equal(t, student.ID, p.ID)
		assert.Equal(t, "john@example.com", p.Email)
		assert.NotContains(t, w.Body.String(), "password")
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		admin := seedAdmin(t)

		w := doRequest(t, router, http.MethodGet, "/api/admin/users/"+uuid.NewString(),
			bearerFor(t, tokenManager, admin), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Update_PartialFields", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		admin := seedAdmin(t)
		student := seedUser(t, pgContainer.DB, "John", "Doe", "john@example.com", "REG-1001-2025", user.RoleStudent)

		w := doRequest(t, router, http.MethodPut, "/api/admin/users/"+student.ID,
			bearerFor(t, tokenManager, admin),
			map[string]string{"firstName": "Johnny"})
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Message string          `json:"message"`
			User    user.Projection `json:"user"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "User updated successfully", resp.Message)
		assert.Equal(t, "Johnny", resp.User.FirstName)
		assert.Equal(t, "Doe", resp.User.LastName)
		assert.Equal(t, "john@example.com", resp.User.Email)
	})

	t.Run("Update_EmailCollision", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		admin := seedAdmin(t)
		student := seedUser(t, pgContainer.DB, "John", "Doe", "john@example.com", "REG-1001-2025", user.RoleStudent)
		seedUser(t, pgContainer.DB, "Jane", "Smith", "jane@example.com", "REG-1002-2025", user.RoleStudent)

		w := doRequest(t, router, http.MethodPut, "/api/admin/users/"+student.ID,
			bearerFor(t, tokenManager, admin),
			map[string]string{"email": "jane@example.com"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "already in use")
	})

	t.Run("Update_DowngradeLastAdmin", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		admin := seedAdmin(t)

		w := doRequest(t, router, http.MethodPut, "/api/admin/users/"+admin.ID,
			bearerFor(t, tokenManager, admin),
			map[string]string{"role": "student"})
		assert.Equal(t, http.StatusForbidden, w.Code)

		// The admin record must be unchanged
		stored, err := userRepo.GetByID(context.Background(), admin.ID)
		require.NoError(t, err)
		assert.Equal(t, user.RoleAdmin, stored.Role)
	})

	t.Run("Update_DowngradeWithSecondAdmin", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		admin := seedAdmin(t)
		second := seedUser(t, pgContainer.DB, "Backup", "Admin", "backup@example.com", "ADM-0002-2025", user.RoleAdmin)

		w := doRequest(t, router, http.MethodPut, "/api/admin/users/"+second.ID,
			bearerFor(t, tokenManager, admin),
			map[string]string{"role": "student"})
		require.Equal(t, http.StatusOK, w.Code)

		stored, err := userRepo.GetByID(context.Background(), second.ID)
		require.NoError(t, err)
		assert.Equal(t, user.RoleStudent, stored.Role)
	})

	t.Run("Delete_Student", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		admin := seedAdmin(t)
		student := seedUser(t, pgContainer.DB, "John", "Doe", "john@example.com", "REG-1001-2025", user.RoleStudent)

		w := doRequest(t, router, http.MethodDelete, "/api/admin/users/"+student.ID,
			bearerFor(t, tokenManager, admin), nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "User deleted successfully")

		_, err := userRepo.GetByID(context.Background(), student.ID)
		assert.ErrorIs(t, err, user.ErrUserNotFound)
	})

	t.Run("Delete_LastAdmin", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		admin := seedAdmin(t)

		w := doRequest(t, router, http.MethodDelete, "/api/admin/users/"+admin.ID,
			bearerFor(t, tokenManager, admin), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)

		stored, err := userRepo.GetByID(context.Background(), admin.ID)
		require.NoError(t, err)
		assert.Equal(t, user.RoleAdmin, stored.Role)
	})

	t.Run("Delete_NotFound", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		admin := seedAdmin(t)

		w := doRequest(t, router, http.MethodDelete, "/api/admin/users/"+uuid.NewString(),
			bearerFor(t, tokenManager, admin), nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("Profile_Success", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		student := seedUser(t, pgContainer.DB, "John", "Doe", "john@example.com", "REG-1001-2025", user.RoleStudent)

		w := doRequest(t, router, http.MethodGet, "/api/profile",
			bearerFor(t, tokenManager, student), nil)
		require.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool            `json:"success"`
			Data    user.Projection `json:"data"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.True(t, resp.Success)
		assert.Equal(t, student.ID, resp.Data.ID)
		assert.Equal(t, "REG-1001-2025", resp.Data.RegistrationNumber)
	})

	t.Run("Middleware_MissingToken", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/profile", "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Middleware_MalformedToken", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/api/profile", "Bearer garbage", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("Middleware_StudentOnAdminRoute", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		student := seedUser(t, pgContainer.DB, "John", "Doe", "john@example.com", "REG-1001-2025", user.RoleStudent)

		w := doRequest(t, router, http.MethodGet, "/api/admin/users",
			bearerFor(t, tokenManager, student), nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, w.Body.String(), "Admins only")
	})

	t.Run("Middleware_DeletedSubject", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "users")
		student := seedUser(t, pgContainer.DB, "John", "Doe", "john@example.com", "REG-1001-2025", user.RoleStudent)
		token := bearerFor(t, tokenManager, student)

		_, err := pgContainer.DB.NewDelete().Model(student).WherePK().Exec(context.Background())
		require.NoError(t, err)

		w := doRequest(t, router, http.MethodGet, "/api/profile", token, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}
