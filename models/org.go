package models

// Department, Position and Grade are reference data for users. Deletion is
// refused while anything still points at the row.

type Department struct {
	ID   string `gorm:"primaryKey;type:uuid" json:"id"`
	Name string `gorm:"size:200;uniqueIndex;not null" json:"name"`
	Code string `gorm:"size:30" json:"code,omitempty"`
	Audit
}

func (Department) TableName() string { return "departments" }

type Grade struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Name  string `gorm:"size:60;uniqueIndex;not null" json:"name"`
	Level int    `gorm:"not null;default:0" json:"level"`
	Audit
}

func (Grade) TableName() string { return "grades" }

type Position struct {
	ID      string  `gorm:"primaryKey;type:uuid" json:"id"`
	Name    string  `gorm:"size:200;not null" json:"name"`
	GradeID *string `gorm:"type:uuid;index" json:"gradeId,omitempty"`
	Audit
}

func (Position) TableName() string { return "positions" }
