package user

import (
	"time"

	"github.com/uptrace/bun"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                 string    `bun:"id,pk"`
	FirstName          string    `bun:"first_name,notnull"`
	LastName           string    `bun:"last_name,notnull"`
	Email              string    `bun:"email,unique,notnull"`
	Password           string    `bun:"password,notnull" json:"-"` // Never expose password
	RegistrationNumber string    `bun:"registration_number,unique,notnull"`
	DateOfBirth        time.Time `bun:"date_of_birth,notnull"`
	Role               Role      `bun:"role,notnull,default:'student'"`
	CreatedAt          time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt          time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// Projection is the client-facing view of a user record. The password hash
// never leaves the service.
type Projection struct {
	ID                 string    `json:"id"`
	FirstName          string    `json:"firstName"`
	LastName           string    `json:"lastName"`
	Email              string    `json:"email"`
	RegistrationNumber string    `json:"registrationNumber"`
	DateOfBirth        time.Time `json:"dateOfBirth"`
	Role               Role      `json:"role"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

func (u *User) Projection() Projection {
	return Projection{
		ID:                 u.ID,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		Email:              u.Email,
		RegistrationNumber: u.RegistrationNumber,
		DateOfBirth:        u.DateOfBirth,
		Role:               u.Role,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func Projections(users []User) []Projection {
	out := make([]Projection, len(users))
	for i := range users {
		out[i] = users[i].Projection()
	}
	return out
}

// ListParams controls pagination, filtering and sorting of the user list.
type ListParams struct {
	Page      int
	Limit     int
	Search    string
	Role      string
	SortBy    string
	SortOrder string
}

// Normalize applies the documented defaults: page 1, limit 10, sort by
// createdAt descending.
func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	if p.SortBy == "" {
		p.SortBy = "createdAt"
	}
	if p.SortOrder != "asc" {
		p.SortOrder = "desc"
	}
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"totalPages"`
}

type ListResult struct {
	Data       []Projection `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

// UpdateFields carries the partial update accepted by the admin endpoint.
// Nil pointers mean "leave unchanged".
type UpdateFields struct {
	FirstName   *string
	LastName    *string
	Email       *string
	DateOfBirth *time.Time
	Role        *Role
}
