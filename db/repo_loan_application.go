package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Gin_postgres_redis_ict_loan/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LoanItemInput struct {
	EquipmentType     string
	QuantityRequested int
	Notes             string
}

type LoanApplicationInput struct {
	ResponsibleOfficerID *string
	Purpose              string
	Location             string
	LoanStartDate        time.Time
	LoanEndDate          time.Time
	Items                []LoanItemInput
}

func (in *LoanApplicationInput) validate() error {
	fe := fieldErrors{}
	in.Purpose = strings.TrimSpace(in.Purpose)
	in.Location = strings.TrimSpace(in.Location)
	if in.Purpose == "" {
		fe.add("purpose", "is required")
	}
	if in.LoanStartDate.IsZero() {
		fe.add("loanStartDate", "is required")
	}
	if in.LoanEndDate.IsZero() {
		fe.add("loanEndDate", "is required")
	} else if !in.LoanStartDate.IsZero() && in.LoanEndDate.Before(in.LoanStartDate) {
		fe.add("loanEndDate", "must not be before the start date")
	}
	if len(in.Items) == 0 {
		fe.add("items", "at least one item is required")
	}
	seen := map[string]bool{}
	for i := range in.Items {
		it := &in.Items[i]
		it.EquipmentType = strings.TrimSpace(it.EquipmentType)
		key := fmt.Sprintf("items[%d]", i)
		if it.EquipmentType == "" {
			fe.add(key+".equipmentType", "is required")
		} else if seen[strings.ToLower(it.EquipmentType)] {
			fe.add(key+".equipmentType", "is listed more than once")
		}
		seen[strings.ToLower(it.EquipmentType)] = true
		if it.QuantityRequested < 1 {
			fe.add(key+".quantityRequested", "must be at least 1")
		}
	}
	return fe.err()
}

// deleteItems soft-deletes an application's items, stamping who removed them.
func deleteItems(tx *gorm.DB, actor models.Actor, appID string) error {
	if err := tx.Model(&models.LoanApplicationItem{}).Where("loan_application_id = ?", appID).
		Update("deleted_by", actor.UserID).Error; err != nil {
		return err
	}
	return tx.Where("loan_application_id = ?", appID).Delete(&models.LoanApplicationItem{}).Error
}

func buildItems(appID string, actor models.Actor, in []LoanItemInput) []models.LoanApplicationItem {
	items := make([]models.LoanApplicationItem, 0, len(in))
	for _, it := range in {
		item := models.LoanApplicationItem{
			ID:                uuid.NewString(),
			LoanApplicationID: appID,
			EquipmentType:     it.EquipmentType,
			QuantityRequested: it.QuantityRequested,
			Notes:             it.Notes,
		}
		item.StampCreate(actor)
		items = append(items, item)
	}
	return items
}

// CreateLoanApplication stores a draft application and its items together.
func (r *Repo) CreateLoanApplication(ctx context.Context, actor models.Actor, in LoanApplicationInput) (*models.LoanApplication, error) {
	if !actor.Valid() {
		return nil, businessf("an applicant is required")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	app := &models.LoanApplication{
		ID:                   uuid.NewString(),
		ApplicantID:          actor.UserID,
		ResponsibleOfficerID: in.ResponsibleOfficerID,
		Purpose:              in.Purpose,
		Location:             in.Location,
		LoanStartDate:        in.LoanStartDate,
		LoanEndDate:          in.LoanEndDate,
		Status:               models.LoanDraft,
	}
	app.StampCreate(actor)
	app.Items = buildItems(app.ID, actor, in.Items)

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(app).Error
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// lockApplication loads the application row FOR UPDATE together with its items.
func lockApplication(tx *gorm.DB, id string) (*models.LoanApplication, error) {
	var app models.LoanApplication
	if err := forUpdate(tx).First(&app, "id = ?", id).Error; err != nil {
		return nil, translate(err, "loan application", id)
	}
	if err := tx.Where("loan_application_id = ?", id).Order("created_at ASC").Find(&app.Items).Error; err != nil {
		return nil, err
	}
	return &app, nil
}

// UpdateLoanApplicationDraft replaces the header fields and items of a draft.
func (r *Repo) UpdateLoanApplicationDraft(ctx context.Context, actor models.Actor, id string, in LoanApplicationInput) (*models.LoanApplication, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out *models.LoanApplication
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := lockApplication(tx, id)
		if err != nil {
			return err
		}
		if app.ApplicantID != actor.UserID {
			return businessf("only the applicant may edit this application")
		}
		if !app.Status.Editable() {
			return businessf("application is %s and can no longer be edited", app.Status)
		}
		if err := deleteItems(tx, actor, id); err != nil {
			return err
		}
		app.ResponsibleOfficerID = in.ResponsibleOfficerID
		app.Purpose = in.Purpose
		app.Location = in.Location
		app.LoanStartDate = in.LoanStartDate
		app.LoanEndDate = in.LoanEndDate
		app.StampUpdate(actor)
		app.Items = buildItems(app.ID, actor, in.Items)
		if err := tx.Omit("Items", "Transactions").Save(app).Error; err != nil {
			return err
		}
		if err := tx.Create(&app.Items).Error; err != nil {
			return err
		}
		out = app
		return nil
	})
	return out, err
}

// SubmitLoanApplication records the applicant's confirmation and moves the
// draft to pending_support.
func (r *Repo) SubmitLoanApplication(ctx context.Context, actor models.Actor, id string) (*models.LoanApplication, error) {
	var out *models.LoanApplication
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := lockApplication(tx, id)
		if err != nil {
			return err
		}
		if app.ApplicantID != actor.UserID {
			return businessf("only the applicant may submit this application")
		}
		now := r.now()
		if app.ApplicantConfirmationTimestamp == nil {
			app.ApplicantConfirmationTimestamp = &now
		}
		if err := models.ValidateLoanTransition(app.Status, models.LoanPendingSupport, models.LoanTransitionContext{
			Certified: app.Certified(),
		}); err != nil {
			return err
		}
		app.Status = models.LoanPendingSupport
		app.StampUpdate(actor)
		if err := tx.Omit("Items", "Transactions").Save(app).Error; err != nil {
			return err
		}
		out = app
		return nil
	})
	return out, err
}

type LoanDecision struct {
	Stage           string
	Approve         bool
	Comments        string
	RejectionReason string
	// ApprovedQuantities maps item ID to approved quantity; items left out
	// are approved in full.
	ApprovedQuantities map[string]int
}

// DecideLoanApplication records the officer's approval row and moves the
// application to approved or rejected in one transaction.
func (r *Repo) DecideLoanApplication(ctx context.Context, actor models.Actor, id string, d LoanDecision) (*models.LoanApplication, error) {
	stage := strings.TrimSpace(d.Stage)
	if stage == "" {
		stage = models.StageSupportReview
	}
	var out *models.LoanApplication
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := lockApplication(tx, id)
		if err != nil {
			return err
		}
		now := r.now()

		if !d.Approve {
			if err := models.ValidateLoanTransition(app.Status, models.LoanRejected, models.LoanTransitionContext{
				RejectionReason: d.RejectionReason,
			}); err != nil {
				return err
			}
			reason := strings.TrimSpace(d.RejectionReason)
			app.Status = models.LoanRejected
			app.RejectionReason = &reason
		} else {
			if err := models.ValidateLoanTransition(app.Status, models.LoanApproved, models.LoanTransitionContext{
				Certified: app.Certified(),
			}); err != nil {
				return err
			}
			fe := fieldErrors{}
			known := map[string]bool{}
			for i := range app.Items {
				it := &app.Items[i]
				known[it.ID] = true
				q := it.QuantityRequested
				if v, ok := d.ApprovedQuantities[it.ID]; ok {
					q = v
				}
				if err := it.ValidateApprovedQuantity(q); err != nil {
					fe.add("approvedQuantities."+it.ID, err.Error())
					continue
				}
				it.QuantityApproved = &q
				it.StampUpdate(actor)
			}
			for itemID := range d.ApprovedQuantities {
				if !known[itemID] {
					fe.add("approvedQuantities."+itemID, "is not an item of this application")
				}
			}
			if err := fe.err(); err != nil {
				return err
			}
			if app.ApprovedQuantity() <= 0 {
				return businessf("approve at least one unit or reject the application")
			}
			for i := range app.Items {
				it := app.Items[i]
				if err := tx.Model(&models.LoanApplicationItem{}).Where("id = ?", it.ID).
					Updates(map[string]any{"quantity_approved": *it.QuantityApproved, "updated_by": actor.UserID}).Error; err != nil {
					return err
				}
			}
			app.Status = models.LoanApproved
		}

		status := models.ApprovalRejected
		if d.Approve {
			status = models.ApprovalApproved
		}
		if _, err := recordApproval(tx, actor, ApprovalInput{
			Ref:      app.Ref(),
			Stage:    stage,
			Status:   status,
			Comments: d.Comments,
		}, now); err != nil {
			return err
		}

		app.StampUpdate(actor)
		if err := tx.Omit("Items", "Transactions").Save(app).Error; err != nil {
			return err
		}
		out = app
		return nil
	})
	return out, err
}

// CancelLoanApplication is open to the applicant, or an admin, before any
// unit is issued.
func (r *Repo) CancelLoanApplication(ctx context.Context, actor models.Actor, id string) (*models.LoanApplication, error) {
	var out *models.LoanApplication
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := lockApplication(tx, id)
		if err != nil {
			return err
		}
		if app.ApplicantID != actor.UserID && !actor.Admin {
			return businessf("only the applicant may cancel this application")
		}
		if err := models.ValidateLoanTransition(app.Status, models.LoanCancelled, models.LoanTransitionContext{}); err != nil {
			return err
		}
		app.Status = models.LoanCancelled
		app.StampUpdate(actor)
		if err := tx.Omit("Items", "Transactions").Save(app).Error; err != nil {
			return err
		}
		out = app
		return nil
	})
	return out, err
}

func (r *Repo) FindLoanApplication(ctx context.Context, id string) (*models.LoanApplication, error) {
	var app models.LoanApplication
	tx := r.DB.WithContext(ctx)
	err := tx.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("issue_timestamp ASC") }).
		Preload("Transactions.Equipment", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&app, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "loan application", id)
	}
	app.Approvals, err = listApprovals(tx, app.Ref(), true)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

type LoanApplicationQuery struct {
	ApplicantID string
	Status      models.LoanApplicationStatus
	PageQuery
}

func (r *Repo) ListLoanApplications(ctx context.Context, q LoanApplicationQuery) (*Paged[models.LoanApplication], error) {
	offset, limit := q.normalize()
	tx := r.DB.WithContext(ctx).Model(&models.LoanApplication{})
	if q.ApplicantID != "" {
		tx = tx.Where("applicant_id = ?", q.ApplicantID)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}
	var items []models.LoanApplication
	if err := tx.Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return &Paged[models.LoanApplication]{Total: total, Items: items}, nil
}

// DeleteLoanApplication soft-deletes a draft and its items.
func (r *Repo) DeleteLoanApplication(ctx context.Context, actor models.Actor, id string) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := lockApplication(tx, id)
		if err != nil {
			return err
		}
		if app.ApplicantID != actor.UserID {
			return businessf("only the applicant may delete this application")
		}
		if app.Status != models.LoanDraft {
			return businessf("only draft applications can be deleted")
		}
		if err := deleteItems(tx, actor, id); err != nil {
			return err
		}
		return softDelete(tx, &models.LoanApplication{}, id, actor)
	})
}
