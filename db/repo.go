package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"Gin_postgres_redis_ict_loan/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock returns a copy of the repo that reads time from fn.
func (r *Repo) WithClock(fn func() time.Time) *Repo { return &Repo{DB: r.DB, now: fn} }

// Paged is the envelope returned by every list query.
type Paged[T any] struct {
	Total int64 `json:"total"`
	Items []T   `json:"items"`
}

type PageQuery struct {
	Page int
	Size int
}

func (p PageQuery) normalize() (offset, limit int) {
	if p.Page <= 0 {
		p.Page = 1
	}
	if p.Size <= 0 || p.Size > 100 {
		p.Size = 20
	}
	return (p.Page - 1) * p.Size, p.Size
}

func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// softDelete stamps deleted_by and then soft-deletes the row.
func softDelete(tx *gorm.DB, model any, id string, actor models.Actor) error {
	if err := tx.Model(model).Where("id = ?", id).Update("deleted_by", actor.UserID).Error; err != nil {
		return err
	}
	return tx.Where("id = ?", id).Delete(model).Error
}

// Users

func (r *Repo) TouchUserSeen(ctx context.Context, userID string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", gorm.Expr("NOW()")).Error
}

func (r *Repo) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user", id)
	}
	return &u, nil
}

func (r *Repo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	email = strings.ToLower(strings.TrimSpace(email))
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, translate(err, "user", email)
	}
	return &u, nil
}

// EnsureUser returns the user with the given email, creating it when absent.
func (r *Repo) EnsureUser(ctx context.Context, email, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := r.FindUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		if name == "" {
			name = email
		}
		u = &models.User{ID: uuid.NewString(), Email: email, Name: name}
		if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
			return nil, err
		}
		return u, nil
	}
	return u, err
}

type UserInput struct {
	Email        string
	Name         string
	DepartmentID *string
	PositionID   *string
	GradeID      *string
}

func (r *Repo) CreateUser(ctx context.Context, in UserInput) (*models.User, error) {
	fe := fieldErrors{}
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		fe.add("email", "a valid email is required")
	}
	if strings.TrimSpace(in.Name) == "" {
		fe.add("name", "is required")
	}
	if err := fe.err(); err != nil {
		return nil, err
	}
	var n int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, &ValidationError{Fields: map[string]string{"email": "is already registered"}}
	}
	u := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(in.Name),
		DepartmentID: in.DepartmentID,
		PositionID:   in.PositionID,
		GradeID:      in.GradeID,
	}
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

type UserRoles struct {
	IsAdmin    bool
	IsBPMStaff bool
	IsApprover bool
}

func (r *Repo) SetUserRoles(ctx context.Context, userID string, roles UserRoles) error {
	res := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"is_admin":     roles.IsAdmin,
			"is_bpm_staff": roles.IsBPMStaff,
			"is_approver":  roles.IsApprover,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound("user", userID)
	}
	return nil
}

func (r *Repo) CountAdmins(ctx context.Context) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("is_admin = TRUE").
		Count(&n).Error
	return n, err
}

// ListUsers pages through users, matching q against email and name.
func (r *Repo) ListUsers(ctx context.Context, q string, page PageQuery) (*Paged[models.User], error) {
	offset, limit := page.normalize()

	tx := r.DB.WithContext(ctx).Model(&models.User{})
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(email) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	var users []models.User
	if err := tx.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&users).Error; err != nil {
		return nil, err
	}
	return &Paged[models.User]{Total: total, Items: users}, nil
}

// DeleteUserByID soft-deletes the user; officer references elsewhere keep
// pointing at the row.
func (r *Repo) DeleteUserByID(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := forUpdate(tx).First(&u, "id = ?", id).Error; err != nil {
			return translate(err, "user", id)
		}
		return tx.Delete(&u).Error
	})
}
