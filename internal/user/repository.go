package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/munezero-grace/student-registration-backend/internal/metrics"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

type Repository interface {
	Create(ctx context.Context, u *User) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, params ListParams) ([]User, int, error)
	CountByRole(ctx context.Context, role Role) (int, error)
	UpdateGuarded(ctx context.Context, id string, fields UpdateFields) (*User, error)
	DeleteGuarded(ctx context.Context, id string) (*User, error)
}

// sortColumns maps the JSON field names accepted by the list endpoint to
// database columns. Anything else falls back to created_at.
var sortColumns = map[string]string{
	"firstName":          "first_name",
	"lastName":           "last_name",
	"email":              "email",
	"registrationNumber": "registration_number",
	"dateOfBirth":        "date_of_birth",
	"role":               "role",
	"createdAt":          "created_at",
	"updatedAt":          "updated_at",
}

type repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

func (r *repository) Create(ctx context.Context, u *User) (*User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now()
	u.CreatedAt = now
	u.UpdatedAt = now

	start := time.Now()
	_, err := r.db.NewInsert().Model(u).Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", "users", time.Since(start), err)

	if err != nil {
		return nil, translateUniqueViolation(err)
	}
	return u, nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	start := time.Now()
	u := new(User)
	err := r.db.NewSelect().Model(u).Where("u.id = ?", id).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "users", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *repository) GetByEmail(ctx context.Context, email string) (*User, error) {
	start := time.Now()
	u := new(User)
	err := r.db.NewSelect().Model(u).Where("u.email = ?", email).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "users", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func (r *repository) List(ctx context.Context, params ListParams) ([]User, int, error) {
	params.Normalize()

	var users []User
	q := r.db.NewSelect().Model(&users)

	if params.Search != "" {
		pattern := "%" + params.Search + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("u.first_name ILIKE ?", pattern).
				WhereOr("u.last_name ILIKE ?", pattern).
				WhereOr("u.email ILIKE ?", pattern).
				WhereOr("u.registration_number ILIKE ?", pattern)
		})
	}
	if params.Role != "" {
		q = q.Where("u.role = ?", params.Role)
	}

	dir := "DESC"
	if params.SortOrder == "asc" {
		dir = "ASC"
	}
	if params.SortBy == "name" {
		// Virtual composite of first and last name
		q = q.OrderExpr("u.first_name " + dir).OrderExpr("u.last_name " + dir)
	} else {
		col, ok := sortColumns[params.SortBy]
		if !ok {
			col = "created_at"
		}
		q = q.OrderExpr("u." + col + " " + dir)
	}

	start := time.Now()
	total, err := q.
		Limit(params.Limit).
		Offset((params.Page - 1) * params.Limit).
		ScanAndCount(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "users", time.Since(start), err)

	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (r *repository) CountByRole(ctx context.Context, role Role) (int, error) {
	start := time.Now()
	count, err := r.db.NewSelect().
		Model((*User)(nil)).
		Where("u.role = ?", role).
		Count(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", "users", time.Since(start), err)

	return count, err
}

// UpdateGuarded applies a partial update inside a single transaction. The
// target row is locked before the admin-count check so that two concurrent
// downgrades cannot both pass the last-admin guard.
func (r *repository) UpdateGuarded(ctx context.Context, id string, fields UpdateFields) (*User, error) {
	var updated *User

	start := time.Now()
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		target := new(User)
		err := tx.NewSelect().Model(target).Where("u.id = ?", id).For("UPDATE").Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}

		if fields.Role != nil && target.Role == RoleAdmin && *fields.Role != RoleAdmin {
			count, err := lockedAdminCount(ctx, tx)
			if err != nil {
				return err
			}
			if count <= 1 {
				return ErrLastAdmin
			}
		}

		if fields.Email != nil && *fields.Email != target.Email {
			taken, err := tx.NewSelect().
				Model((*User)(nil)).
				Where("u.email = ?", *fields.Email).
				Where("u.id != ?", id).
				Exists(ctx)
			if err != nil {
				return err
			}
			if taken {
				return ErrEmailTaken
			}
			target.Email = *fields.Email
		}
		if fields.FirstName != nil {
			target.FirstName = *fields.FirstName
		}
		if fields.LastName != nil {
			target.LastName = *fields.LastName
		}
		if fields.DateOfBirth != nil {
			target.DateOfBirth = *fields.DateOfBirth
		}
		if fields.Role != nil {
			target.Role = *fields.Role
		}
		target.UpdatedAt = time.Now()

		if _, err := tx.NewUpdate().Model(target).WherePK().Exec(ctx); err != nil {
			return translateUniqueViolation(err)
		}
		updated = target
		return nil
	})

	r.metrics.Database.RecordQuery(ctx, "update", "users", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteGuarded removes a user inside a single transaction, refusing to
// delete the last remaining admin. Returns the deleted record.
func (r *repository) DeleteGuarded(ctx context.Context, id string) (*User, error) {
	var deleted *User

	start := time.Now()
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		target := new(User)
		err := tx.NewSelect().Model(target).Where("u.id = ?", id).For("UPDATE").Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return err
		}

		if target.Role == RoleAdmin {
			count, err := lockedAdminCount(ctx, tx)
			if err != nil {
				return err
			}
			if count <= 1 {
				return ErrLastAdmin
			}
		}

		if _, err := tx.NewDelete().Model(target).WherePK().Exec(ctx); err != nil {
			return err
		}
		deleted = target
		return nil
	})

	r.metrics.Database.RecordQuery(ctx, "delete", "users", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// lockedAdminCount counts admins while holding row locks on them, so the
// count stays valid until the surrounding transaction commits.
func lockedAdminCount(ctx context.Context, tx bun.Tx) (int, error) {
	var ids []string
	err := tx.NewSelect().
		Model((*User)(nil)).
		Column("u.id").
		Where("u.role = ?", RoleAdmin).
		For("UPDATE").
		Scan(ctx, &ids)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// translateUniqueViolation maps postgres unique-constraint errors (23505)
// onto the package sentinels so callers can branch on them.
func translateUniqueViolation(err error) error {
	var pgErr pgdriver.Error
	if !errors.As(err, &pgErr) {
		return err
	}
	if pgErr.Field('C') != "23505" {
		return err
	}
	constraint := pgErr.Field('n')
	switch {
	case strings.Contains(constraint, "registration_number"):
		return ErrRegNumTaken
	case strings.Contains(constraint, "email"):
		return ErrEmailTaken
	}
	return err
}
