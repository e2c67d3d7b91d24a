package db

import (
	"context"
	"strings"

	"Gin_postgres_redis_ict_loan/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Departments, grades and positions are reference data. Each delete is
// refused while another row still points at the target.

func nameTaken(tx *gorm.DB, model any, name string) (bool, error) {
	var n int64
	err := tx.Model(model).Unscoped().Where("LOWER(name) = ?", strings.ToLower(name)).Count(&n).Error
	return n > 0, err
}

func countRefs(tx *gorm.DB, model any, column, id string) (int64, error) {
	var n int64
	err := tx.Model(model).Where(column+" = ?", id).Count(&n).Error
	return n, err
}

func (r *Repo) CreateDepartment(ctx context.Context, actor models.Actor, name, code string) (*models.Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Fields: map[string]string{"name": "is required"}}
	}
	d := &models.Department{ID: uuid.NewString(), Name: name, Code: strings.ToUpper(strings.TrimSpace(code))}
	d.StampCreate(actor)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := nameTaken(tx, &models.Department{}, name)
		if err != nil {
			return err
		}
		if taken {
			return &ValidationError{Fields: map[string]string{"name": "is already in use"}}
		}
		return tx.Create(d).Error
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (r *Repo) ListDepartments(ctx context.Context) ([]models.Department, error) {
	var out []models.Department
	err := r.DB.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

func (r *Repo) DeleteDepartment(ctx context.Context, actor models.Actor, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Department
		if err := forUpdate(tx).First(&d, "id = ?", id).Error; err != nil {
			return translate(err, "department", id)
		}
		n, err := countRefs(tx, &models.User{}, "department_id", id)
		if err != nil {
			return err
		}
		if n > 0 {
			return businessf("department %s still has %d users", d.Name, n)
		}
		return softDelete(tx, &models.Department{}, id, actor)
	})
}

func (r *Repo) CreateGrade(ctx context.Context, actor models.Actor, name string, level int) (*models.Grade, error) {
	name = strings.TrimSpace(name)
	fe := fieldErrors{}
	if name == "" {
		fe.add("name", "is required")
	}
	if level < 0 {
		fe.add("level", "must not be negative")
	}
	if err := fe.err(); err != nil {
		return nil, err
	}
	g := &models.Grade{ID: uuid.NewString(), Name: name, Level: level}
	g.StampCreate(actor)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := nameTaken(tx, &models.Grade{}, name)
		if err != nil {
			return err
		}
		if taken {
			return &ValidationError{Fields: map[string]string{"name": "is already in use"}}
		}
		return tx.Create(g).Error
	})
	if err != nil {
		return nil, err
	}
	return g, nil
}

func (r *Repo) ListGrades(ctx context.Context) ([]models.Grade, error) {
	var out []models.Grade
	err := r.DB.WithContext(ctx).Order("level, name").Find(&out).Error
	return out, err
}

// DeleteGrade refuses while positions or users reference the grade.
func (r *Repo) DeleteGrade(ctx context.Context, actor models.Actor, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var g models.Grade
		if err := forUpdate(tx).First(&g, "id = ?", id).Error; err != nil {
			return translate(err, "grade", id)
		}
		positions, err := countRefs(tx, &models.Position{}, "grade_id", id)
		if err != nil {
			return err
		}
		users, err := countRefs(tx, &models.User{}, "grade_id", id)
		if err != nil {
			return err
		}
		if positions > 0 || users > 0 {
			return businessf("grade %s is still used by %d positions and %d users", g.Name, positions, users)
		}
		return softDelete(tx, &models.Grade{}, id, actor)
	})
}

func (r *Repo) CreatePosition(ctx context.Context, actor models.Actor, name string, gradeID *string) (*models.Position, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &ValidationError{Fields: map[string]string{"name": "is required"}}
	}
	p := &models.Position{ID: uuid.NewString(), Name: name, GradeID: gradeID}
	p.StampCreate(actor)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if gradeID != nil {
			var n int64
			if err := tx.Model(&models.Grade{}).Where("id = ?", *gradeID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return &ValidationError{Fields: map[string]string{"gradeId": "does not exist"}}
			}
		}
		return tx.Create(p).Error
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *Repo) ListPositions(ctx context.Context) ([]models.Position, error) {
	var out []models.Position
	err := r.DB.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

func (r *Repo) DeletePosition(ctx context.Context, actor models.Actor, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p models.Position
		if err := forUpdate(tx).First(&p, "id = ?", id).Error; err != nil {
			return translate(err, "position", id)
		}
		n, err := countRefs(tx, &models.User{}, "position_id", id)
		if err != nil {
			return err
		}
		if n > 0 {
			return businessf("position %s still has %d users", p.Name, n)
		}
		return softDelete(tx, &models.Position{}, id, actor)
	})
}
