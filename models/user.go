package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin    = "admin"
	RoleBPM      = "bpm"
	RoleApprover = "approver"
)

// User is the local projection of an identity-provider account. Officer and
// audit columns across the schema reference User.ID.
type User struct {
	ID           string  `gorm:"primaryKey;type:uuid" json:"id"`
	Email        string  `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name         string  `gorm:"size:255;not null" json:"name"`
	DepartmentID *string `gorm:"type:uuid;index" json:"departmentId,omitempty"`
	PositionID   *string `gorm:"type:uuid;index" json:"positionId,omitempty"`
	GradeID      *string `gorm:"type:uuid;index" json:"gradeId,omitempty"`

	IsAdmin    bool `gorm:"not null;default:false" json:"isAdmin"`
	IsBPMStaff bool `gorm:"not null;default:false" json:"isBpmStaff"`
	IsApprover bool `gorm:"not null;default:false" json:"isApprover"`

	LastSeenAt *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string { return "users" }

func (u *User) Roles() []string {
	var roles []string
	if u.IsAdmin {
		roles = append(roles, RoleAdmin)
	}
	if u.IsBPMStaff {
		roles = append(roles, RoleBPM)
	}
	if u.IsApprover {
		roles = append(roles, RoleApprover)
	}
	return roles
}

func (u *User) HasRole(role string) bool {
	if u.IsAdmin {
		return true
	}
	switch role {
	case RoleBPM:
		return u.IsBPMStaff
	case RoleApprover:
		return u.IsApprover
	}
	return false
}
