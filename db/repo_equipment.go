package db

import (
	"context"
	"strings"
	"time"

	"Gin_postgres_redis_ict_loan/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type EquipmentInput struct {
	AssetType          string
	Brand              string
	Model              string
	SerialNumber       string
	TagID              string
	AvailabilityStatus models.EquipmentAvailability
	ConditionStatus    models.EquipmentCondition
	PurchaseDate       *time.Time
	PurchasePrice      decimal.Decimal
	WarrantyExpiryDate *time.Time
	CurrentLocation    string
	Notes              string
}

func (in *EquipmentInput) normalize() {
	in.AssetType = strings.TrimSpace(in.AssetType)
	in.SerialNumber = strings.TrimSpace(in.SerialNumber)
	in.TagID = strings.TrimSpace(in.TagID)
	if in.AvailabilityStatus == "" {
		in.AvailabilityStatus = models.AvailabilityAvailable
	}
	if in.ConditionStatus == "" {
		in.ConditionStatus = models.ConditionGood
	}
}

// validate checks the input; keepOnLoan allows an already on-loan unit to
// be edited without touching its availability.
func (in *EquipmentInput) validate(keepOnLoan bool) error {
	fe := fieldErrors{}
	if in.AssetType == "" {
		fe.add("assetType", "is required")
	}
	if in.SerialNumber == "" {
		fe.add("serialNumber", "is required")
	}
	if in.TagID == "" {
		fe.add("tagId", "is required")
	}
	if !in.AvailabilityStatus.Valid() {
		fe.add("availabilityStatus", "is not a known availability status")
	} else if in.AvailabilityStatus == models.AvailabilityOnLoan && !keepOnLoan {
		fe.add("availabilityStatus", "on_loan is set by issuing equipment")
	}
	if !in.ConditionStatus.Valid() {
		fe.add("conditionStatus", "is not a known condition status")
	}
	if in.PurchasePrice.IsNegative() {
		fe.add("purchasePrice", "must not be negative")
	}
	if in.PurchaseDate != nil && in.WarrantyExpiryDate != nil && in.WarrantyExpiryDate.Before(*in.PurchaseDate) {
		fe.add("warrantyExpiryDate", "must not be before the purchase date")
	}
	return fe.err()
}

// checkUnique reports serial/tag collisions as field errors instead of
// letting the unique index surface a constraint violation.
func checkUnique(tx *gorm.DB, serial, tag, exceptID string) error {
	fe := fieldErrors{}
	var n int64
	q := tx.Model(&models.Equipment{}).Unscoped().Where("serial_number = ?", serial)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		fe.add("serialNumber", "is already registered")
	}
	q = tx.Model(&models.Equipment{}).Unscoped().Where("tag_id = ?", tag)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		fe.add("tagId", "is already registered")
	}
	return fe.err()
}

func (r *Repo) CreateEquipment(ctx context.Context, actor models.Actor, in EquipmentInput) (*models.Equipment, error) {
	in.normalize()
	if err := in.validate(false); err != nil {
		return nil, err
	}
	e := &models.Equipment{
		ID:                 uuid.NewString(),
		AssetType:          in.AssetType,
		Brand:              strings.TrimSpace(in.Brand),
		Model:              strings.TrimSpace(in.Model),
		SerialNumber:       in.SerialNumber,
		TagID:              in.TagID,
		AvailabilityStatus: in.AvailabilityStatus,
		ConditionStatus:    in.ConditionStatus,
		PurchaseDate:       in.PurchaseDate,
		PurchasePrice:      in.PurchasePrice,
		WarrantyExpiryDate: in.WarrantyExpiryDate,
		CurrentLocation:    strings.TrimSpace(in.CurrentLocation),
		Notes:              in.Notes,
	}
	e.StampCreate(actor)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUnique(tx, e.SerialNumber, e.TagID, ""); err != nil {
			return err
		}
		return tx.Create(e).Error
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *Repo) FindEquipmentByID(ctx context.Context, id string) (*models.Equipment, error) {
	var e models.Equipment
	if err := r.DB.WithContext(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, translate(err, "equipment", id)
	}
	return &e, nil
}

type EquipmentQuery struct {
	Q            string
	AssetType    string
	Availability models.EquipmentAvailability
	PageQuery
}

func (r *Repo) ListEquipment(ctx context.Context, q EquipmentQuery) (*Paged[models.Equipment], error) {
	offset, limit := q.normalize()
	tx := r.DB.WithContext(ctx).Model(&models.Equipment{})
	if s := strings.TrimSpace(q.Q); s != "" {
		pat := "%" + strings.ToLower(s) + "%"
		tx = tx.Where("LOWER(serial_number) LIKE ? OR LOWER(tag_id) LIKE ? OR LOWER(brand) LIKE ? OR LOWER(model) LIKE ?", pat, pat, pat, pat)
	}
	if t := strings.TrimSpace(q.AssetType); t != "" {
		tx = tx.Where("LOWER(asset_type) = ?", strings.ToLower(t))
	}
	if q.Availability != "" {
		tx = tx.Where("availability_status = ?", q.Availability)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}
	var items []models.Equipment
	if err := tx.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return &Paged[models.Equipment]{Total: total, Items: items}, nil
}

// ListAllEquipment returns the whole registry, ordered for reporting.
func (r *Repo) ListAllEquipment(ctx context.Context) ([]models.Equipment, error) {
	var items []models.Equipment
	err := r.DB.WithContext(ctx).Order("asset_type, tag_id").Find(&items).Error
	return items, err
}

func (r *Repo) ListAvailableEquipment(ctx context.Context, assetType string) ([]models.Equipment, error) {
	tx := r.DB.WithContext(ctx).Where("availability_status = ?", models.AvailabilityAvailable)
	if t := strings.TrimSpace(assetType); t != "" {
		tx = tx.Where("LOWER(asset_type) = ?", strings.ToLower(t))
	}
	var items []models.Equipment
	err := tx.Order("tag_id").Find(&items).Error
	return items, err
}

// EquipmentPatch holds the fields an update may change; nil means unchanged.
type EquipmentPatch struct {
	AssetType          *string
	Brand              *string
	Model              *string
	SerialNumber       *string
	TagID              *string
	AvailabilityStatus *models.EquipmentAvailability
	ConditionStatus    *models.EquipmentCondition
	PurchaseDate       *time.Time
	PurchasePrice      *decimal.Decimal
	WarrantyExpiryDate *time.Time
	CurrentLocation    *string
	Notes              *string
}

func (r *Repo) UpdateEquipment(ctx context.Context, actor models.Actor, id string, p EquipmentPatch) (*models.Equipment, error) {
	var e models.Equipment
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := forUpdate(tx).First(&e, "id = ?", id).Error; err != nil {
			return translate(err, "equipment", id)
		}
		onLoan := e.AvailabilityStatus == models.AvailabilityOnLoan
		if onLoan && p.AvailabilityStatus != nil && *p.AvailabilityStatus != e.AvailabilityStatus {
			return businessf("equipment %s is on loan; record a return instead", e.TagID)
		}
		in := EquipmentInput{
			AssetType:          pick(p.AssetType, e.AssetType),
			Brand:              pick(p.Brand, e.Brand),
			Model:              pick(p.Model, e.Model),
			SerialNumber:       pick(p.SerialNumber, e.SerialNumber),
			TagID:              pick(p.TagID, e.TagID),
			AvailabilityStatus: pick(p.AvailabilityStatus, e.AvailabilityStatus),
			ConditionStatus:    pick(p.ConditionStatus, e.ConditionStatus),
			PurchaseDate:       e.PurchaseDate,
			PurchasePrice:      pick(p.PurchasePrice, e.PurchasePrice),
			WarrantyExpiryDate: e.WarrantyExpiryDate,
			CurrentLocation:    pick(p.CurrentLocation, e.CurrentLocation),
			Notes:              pick(p.Notes, e.Notes),
		}
		if p.PurchaseDate != nil {
			in.PurchaseDate = p.PurchaseDate
		}
		if p.WarrantyExpiryDate != nil {
			in.WarrantyExpiryDate = p.WarrantyExpiryDate
		}
		in.normalize()
		if err := in.validate(onLoan); err != nil {
			return err
		}
		if err := checkUnique(tx, in.SerialNumber, in.TagID, e.ID); err != nil {
			return err
		}
		e.AssetType = in.AssetType
		e.Brand = strings.TrimSpace(in.Brand)
		e.Model = strings.TrimSpace(in.Model)
		e.SerialNumber = in.SerialNumber
		e.TagID = in.TagID
		e.AvailabilityStatus = in.AvailabilityStatus
		e.ConditionStatus = in.ConditionStatus
		e.PurchaseDate = in.PurchaseDate
		e.PurchasePrice = in.PurchasePrice
		e.WarrantyExpiryDate = in.WarrantyExpiryDate
		e.CurrentLocation = strings.TrimSpace(in.CurrentLocation)
		e.Notes = in.Notes
		e.StampUpdate(actor)
		return tx.Save(&e).Error
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func pick[T any](p *T, def T) T {
	if p != nil {
		return *p
	}
	return def
}

// DeleteEquipment refuses to remove a unit that any loan transaction has
// ever referenced.
func (r *Repo) DeleteEquipment(ctx context.Context, actor models.Actor, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var e models.Equipment
		if err := forUpdate(tx).First(&e, "id = ?", id).Error; err != nil {
			return translate(err, "equipment", id)
		}
		var n int64
		if err := tx.Unscoped().Model(&models.LoanTransaction{}).
			Where("equipment_id = ?", id).
			Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return businessf("equipment %s has loan history and cannot be deleted", e.TagID)
		}
		return softDelete(tx, &models.Equipment{}, id, actor)
	})
}
