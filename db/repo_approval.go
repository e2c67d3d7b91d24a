package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"Gin_postgres_redis_ict_loan/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ApprovalInput struct {
	Ref      models.ApprovableRef
	Stage    string
	Status   models.ApprovalStatus
	Comments string
}

func (in *ApprovalInput) validate() error {
	fe := fieldErrors{}
	if in.Ref == nil || in.Ref.RefID() == "" {
		fe.add("approvable", "is required")
	}
	if strings.TrimSpace(in.Stage) == "" {
		fe.add("stage", "is required")
	}
	if !in.Status.Valid() {
		fe.add("status", "must be pending, approved or rejected")
	}
	return fe.err()
}

// RecordApproval creates or updates the current approval for
// (approvable, stage). It does not move the approvable's own status.
func (r *Repo) RecordApproval(ctx context.Context, actor models.Actor, in ApprovalInput) (*models.Approval, error) {
	in.Stage = strings.TrimSpace(in.Stage)
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out *models.Approval
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := approvableExists(tx, in.Ref); err != nil {
			return err
		}
		a, err := recordApproval(tx, actor, in, r.now())
		out = a
		return err
	})
	return out, err
}

// approvableExists resolves the ref against its own table.
func approvableExists(tx *gorm.DB, ref models.ApprovableRef) error {
	var (
		model any
		what  string
	)
	switch ref.(type) {
	case models.LoanApplicationRef:
		model, what = &models.LoanApplication{}, "loan application"
	case models.EmailApplicationRef:
		model, what = &models.EmailApplication{}, "email application"
	default:
		return businessf("unsupported approvable %T", ref)
	}
	var n int64
	if err := tx.Model(model).Where("id = ?", ref.RefID()).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return notFound(what, ref.RefID())
	}
	return nil
}

// recordApproval applies the supersede rule inside tx: the same officer
// updates the current row in place; a different officer supersedes it.
func recordApproval(tx *gorm.DB, actor models.Actor, in ApprovalInput, now time.Time) (*models.Approval, error) {
	if !actor.Valid() {
		return nil, businessf("an officer is required to record an approval")
	}
	var cur models.Approval
	err := forUpdate(tx).
		Where("approvable_type = ? AND approvable_id = ? AND stage = ? AND superseded_at IS NULL",
			in.Ref.Kind(), in.Ref.RefID(), in.Stage).
		First(&cur).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		return nil, err
	case cur.OfficerID == actor.UserID:
		if cur.Status != in.Status {
			cur.ApprovalTimestamp = nil
			if in.Status.Decided() {
				cur.ApprovalTimestamp = &now
			}
		}
		cur.Status = in.Status
		cur.Comments = in.Comments
		cur.StampUpdate(actor)
		if err := tx.Save(&cur).Error; err != nil {
			return nil, err
		}
		return &cur, nil
	default:
		if err := tx.Model(&models.Approval{}).Where("id = ?", cur.ID).
			Updates(map[string]any{"superseded_at": now, "updated_by": actor.UserID}).Error; err != nil {
			return nil, err
		}
	}

	a := &models.Approval{
		ID:             uuid.NewString(),
		ApprovableType: in.Ref.Kind(),
		ApprovableID:   in.Ref.RefID(),
		OfficerID:      actor.UserID,
		Stage:          in.Stage,
		Status:         in.Status,
		Comments:       in.Comments,
	}
	if in.Status.Decided() {
		a.ApprovalTimestamp = &now
	}
	a.StampCreate(actor)
	if err := tx.Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func hasApprovedApproval(tx *gorm.DB, ref models.ApprovableRef) (bool, error) {
	var n int64
	err := tx.Model(&models.Approval{}).
		Where("approvable_type = ? AND approvable_id = ? AND status = ? AND superseded_at IS NULL",
			ref.Kind(), ref.RefID(), models.ApprovalApproved).
		Count(&n).Error
	return n > 0, err
}

func listApprovals(tx *gorm.DB, ref models.ApprovableRef, withSuperseded bool) ([]models.Approval, error) {
	q := tx.Where("approvable_type = ? AND approvable_id = ?", ref.Kind(), ref.RefID())
	if !withSuperseded {
		q = q.Where("superseded_at IS NULL")
	}
	var out []models.Approval
	err := q.Order("created_at ASC").Find(&out).Error
	return out, err
}

func (r *Repo) ListApprovals(ctx context.Context, ref models.ApprovableRef, withSuperseded bool) ([]models.Approval, error) {
	return listApprovals(r.DB.WithContext(ctx), ref, withSuperseded)
}

// ListPendingApprovalsForOfficer lists undecided approvals assigned to an officer.
func (r *Repo) ListPendingApprovalsForOfficer(ctx context.Context, officerID string) ([]models.Approval, error) {
	var out []models.Approval
	err := r.DB.WithContext(ctx).
		Where("officer_id = ? AND status = ? AND superseded_at IS NULL", officerID, models.ApprovalPending).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}
