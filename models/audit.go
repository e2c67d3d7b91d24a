package models

import (
	"time"

	"gorm.io/gorm"
)

// Actor is the user performing a write. It is passed explicitly to every
// mutating repository call and stamped into the audit columns.
type Actor struct {
	UserID string
	Admin  bool
}

func (a Actor) ref() *string {
	if a.UserID == "" {
		return nil
	}
	id := a.UserID
	return &id
}

func (a Actor) Valid() bool { return a.UserID != "" }

// Audit is embedded by every entity.
type Audit struct {
	CreatedBy *string        `gorm:"type:uuid" json:"createdBy,omitempty"`
	UpdatedBy *string        `gorm:"type:uuid" json:"updatedBy,omitempty"`
	DeletedBy *string        `gorm:"type:uuid" json:"deletedBy,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Audit) StampCreate(actor Actor) {
	a.CreatedBy = actor.ref()
	a.UpdatedBy = actor.ref()
}

func (a *Audit) StampUpdate(actor Actor) {
	a.UpdatedBy = actor.ref()
}
