package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const EquipmentTable = "equipment"

type EquipmentAvailability string

const (
	AvailabilityAvailable        EquipmentAvailability = "available"
	AvailabilityOnLoan           EquipmentAvailability = "on_loan"
	AvailabilityUnderMaintenance EquipmentAvailability = "under_maintenance"
	AvailabilityDisposed         EquipmentAvailability = "disposed"
	AvailabilityLost             EquipmentAvailability = "lost"
	AvailabilityDamaged          EquipmentAvailability = "damaged"
)

type EquipmentCondition string

const (
	ConditionNew           EquipmentCondition = "new"
	ConditionGood          EquipmentCondition = "good"
	ConditionFair          EquipmentCondition = "fair"
	ConditionMinorDamage   EquipmentCondition = "minor_damage"
	ConditionMajorDamage   EquipmentCondition = "major_damage"
	ConditionUnserviceable EquipmentCondition = "unserviceable"
	ConditionLost          EquipmentCondition = "lost"
)

// Option is a value/label pair shared by validation and display.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var availabilityOptions = []Option{
	{string(AvailabilityAvailable), "Available"},
	{string(AvailabilityOnLoan), "On loan"},
	{string(AvailabilityUnderMaintenance), "Under maintenance"},
	{string(AvailabilityDisposed), "Disposed"},
	{string(AvailabilityLost), "Lost"},
	{string(AvailabilityDamaged), "Damaged"},
}

var conditionOptions = []Option{
	{string(ConditionNew), "New"},
	{string(ConditionGood), "Good"},
	{string(ConditionFair), "Fair"},
	{string(ConditionMinorDamage), "Minor damage"},
	{string(ConditionMajorDamage), "Major damage"},
	{string(ConditionUnserviceable), "Unserviceable"},
	{string(ConditionLost), "Lost"},
}

func AvailabilityOptions() []Option { return append([]Option(nil), availabilityOptions...) }
func ConditionOptions() []Option    { return append([]Option(nil), conditionOptions...) }

func (a EquipmentAvailability) Valid() bool { return hasOption(availabilityOptions, string(a)) }
func (c EquipmentCondition) Valid() bool    { return hasOption(conditionOptions, string(c)) }

func (a EquipmentAvailability) Label() string { return optionLabel(availabilityOptions, string(a)) }
func (c EquipmentCondition) Label() string    { return optionLabel(conditionOptions, string(c)) }

func hasOption(opts []Option, v string) bool {
	for _, o := range opts {
		if o.Value == v {
			return true
		}
	}
	return false
}

func optionLabel(opts []Option, v string) string {
	for _, o := range opts {
		if o.Value == v {
			return o.Label
		}
	}
	return v
}

type Equipment struct {
	ID                 string                `gorm:"type:uuid;primaryKey" json:"id"`
	AssetType          string                `gorm:"size:60;index;not null" json:"assetType"`
	Brand              string                `gorm:"size:120" json:"brand"`
	Model              string                `gorm:"size:120" json:"model"`
	SerialNumber       string                `gorm:"size:120;uniqueIndex;not null" json:"serialNumber"`
	TagID              string                `gorm:"size:120;uniqueIndex;not null" json:"tagId"`
	AvailabilityStatus EquipmentAvailability `gorm:"size:30;index;not null;default:'available'" json:"availabilityStatus"`
	ConditionStatus    EquipmentCondition    `gorm:"size:30;not null;default:'good'" json:"conditionStatus"`
	PurchaseDate       *time.Time            `gorm:"type:date" json:"purchaseDate,omitempty"`
	PurchasePrice      decimal.Decimal       `gorm:"type:numeric(12,2);not null;default:0" json:"purchasePrice"`
	WarrantyExpiryDate *time.Time            `gorm:"type:date" json:"warrantyExpiryDate,omitempty"`
	CurrentLocation    string                `gorm:"size:200" json:"currentLocation"`
	Notes              string                `gorm:"type:text" json:"notes,omitempty"`
	Audit
}

func (Equipment) TableName() string { return EquipmentTable }

// UnderWarranty reports whether the warranty is still running at t.
func (e *Equipment) UnderWarranty(t time.Time) bool {
	return e.WarrantyExpiryDate != nil && !t.After(*e.WarrantyExpiryDate)
}
