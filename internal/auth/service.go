package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/munezero-grace/student-registration-backend/internal/config"
	"github.com/munezero-grace/student-registration-backend/internal/events"
	"github.com/munezero-grace/student-registration-backend/internal/user"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailExists        = errors.New("email already registered")
	ErrEmailRequired      = errors.New("email is required")
	ErrInvalidBirthDate   = errors.New("invalid date of birth")
	ErrAgeOutOfRange      = errors.New("user must be between 10 and 20 years old")
)

const (
	minAge = 10
	maxAge = 20

	// How many random registration numbers to try before giving up on a
	// unique-constraint conflict.
	regNumberAttempts = 5
)

type Service struct {
	users      user.Repository
	tokens     *TokenManager
	producer   events.Producer
	cohortYear int
	logger     *slog.Logger
}

func NewService(users user.Repository, tokens *TokenManager, producer events.Producer, cohortYear int, logger *slog.Logger) *Service {
	return &Service{
		users:      users,
		tokens:     tokens,
		producer:   producer,
		cohortYear: cohortYear,
		logger:     logger,
	}
}

// Login verifies the credentials and issues a signed bearer token.
// Returns user.ErrUserNotFound when the email is unknown and
// ErrInvalidCredentials when the password does not match.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(u.ID, u.Email, string(u.Role))
	if err != nil {
		return nil, err
	}

	return &LoginResponse{
		Token: token,
		User: LoginUser{
			ID:        u.ID,
			Email:     u.Email,
			Role:      string(u.Role),
			FirstName: u.FirstName,
			LastName:  u.LastName,
		},
	}, nil
}

// Register creates a new student account. Role is always forced to student;
// admins only come from seeding.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	if req.Email == "" {
		return nil, ErrEmailRequired
	}

	if existing, _ := s.users.GetByEmail(ctx, req.Email); existing != nil {
		return nil, ErrEmailExists
	}

	dob, err := time.Parse("2006-01-02", req.DateOfBirth)
	if err != nil {
		return nil, ErrInvalidBirthDate
	}
	// Calendar-year subtraction, deliberately ignoring whether the birthday
	// has already occurred this year. Matches the documented behavior.
	age := time.Now().Year() - dob.Year()
	if age < minAge || age > maxAge {
		return nil, ErrAgeOutOfRange
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	var created *user.User
	for attempt := 0; attempt < regNumberAttempts; attempt++ {
		created, err = s.users.Create(ctx, &user.User{
			FirstName:          req.FirstName,
			LastName:           req.LastName,
			Email:              req.Email,
			Password:           string(hashed),
			RegistrationNumber: newRegistrationNumber("REG", s.cohortYear),
			DateOfBirth:        dob,
			Role:               user.RoleStudent,
		})
		if errors.Is(err, user.ErrRegNumTaken) {
			continue
		}
		break
	}
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return nil, ErrEmailExists
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "user registered",
		"id", created.ID, "registration_number", created.RegistrationNumber)

	// Lifecycle event is best effort; the record is already persisted
	if s.producer != nil {
		if err := s.producer.Publish(ctx, events.UserRegistered(created.ID, created.Email)); err != nil {
			s.logger.WarnContext(ctx, "failed to publish user.registered event", "error", err)
		}
	}

	return &RegisterResponse{
		Message: "User registered successfully",
		User: RegisteredUser{
			ID:                 created.ID,
			Email:              created.Email,
			RegistrationNumber: created.RegistrationNumber,
			Role:               string(created.Role),
		},
	}, nil
}

// EnsureAdminAccount seeds the first admin when none exists yet. Without it
// the admin endpoints would be unreachable on a fresh database.
func (s *Service) EnsureAdminAccount(ctx context.Context, cfg config.AdminConfig) error {
	count, err := s.users.CountByRole(ctx, user.RoleAdmin)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	if cfg.Email == "" || cfg.Password == "" {
		s.logger.Warn("no admin exists and no admin seed configured; admin endpoints will be unusable")
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin, err := s.users.Create(ctx, &user.User{
		FirstName:          cfg.FirstName,
		LastName:           cfg.LastName,
		Email:              cfg.Email,
		Password:           string(hashed),
		RegistrationNumber: newRegistrationNumber("ADM", s.cohortYear),
		DateOfBirth:        time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC),
		Role:               user.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("failed to seed admin account: %w", err)
	}

	s.logger.Info("admin account seeded", "id", admin.ID, "email", admin.Email)
	return nil
}

// newRegistrationNumber builds "<prefix>-XXXX-<year>" with a random 4-digit
// code. Collisions are handled by the caller retrying on the unique index.
func newRegistrationNumber(prefix string, year int) string {
	code := 1000 + rand.Intn(9000)
	return fmt.Sprintf("%s-%d-%d", prefix, code, year)
}
