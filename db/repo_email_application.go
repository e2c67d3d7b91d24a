package db

import (
	"context"
	"strings"

	"Gin_postgres_redis_ict_loan/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type EmailApplicationInput struct {
	ServiceStatus       string
	Purpose             string
	ProposedEmail       string
	GroupEmail          string
	GroupAdminName      string
	GroupAdminEmail     string
	SupportingOfficerID *string
}

func (in *EmailApplicationInput) validate() error {
	fe := fieldErrors{}
	in.ServiceStatus = strings.TrimSpace(in.ServiceStatus)
	in.ProposedEmail = strings.ToLower(strings.TrimSpace(in.ProposedEmail))
	in.GroupEmail = strings.ToLower(strings.TrimSpace(in.GroupEmail))
	in.GroupAdminEmail = strings.ToLower(strings.TrimSpace(in.GroupAdminEmail))
	if in.ServiceStatus == "" {
		fe.add("serviceStatus", "is required")
	}
	if in.ProposedEmail == "" && in.GroupEmail == "" {
		fe.add("proposedEmail", "a proposed or group email is required")
	}
	for field, v := range map[string]string{
		"proposedEmail":   in.ProposedEmail,
		"groupEmail":      in.GroupEmail,
		"groupAdminEmail": in.GroupAdminEmail,
	} {
		if v != "" && !strings.Contains(v, "@") {
			fe.add(field, "is not a valid email address")
		}
	}
	if in.GroupEmail != "" && in.GroupAdminEmail == "" {
		fe.add("groupAdminEmail", "is required for a group email")
	}
	return fe.err()
}

func (r *Repo) CreateEmailApplication(ctx context.Context, actor models.Actor, in EmailApplicationInput) (*models.EmailApplication, error) {
	if !actor.Valid() {
		return nil, businessf("an applicant is required")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	a := &models.EmailApplication{
		ID:                  uuid.NewString(),
		ApplicantID:         actor.UserID,
		ServiceStatus:       in.ServiceStatus,
		Purpose:             in.Purpose,
		ProposedEmail:       in.ProposedEmail,
		GroupEmail:          in.GroupEmail,
		GroupAdminName:      strings.TrimSpace(in.GroupAdminName),
		GroupAdminEmail:     in.GroupAdminEmail,
		SupportingOfficerID: in.SupportingOfficerID,
		Status:              models.EmailDraft,
	}
	a.StampCreate(actor)
	if err := r.DB.WithContext(ctx).Create(a).Error; err != nil {
		return nil, err
	}
	return a, nil
}

func lockEmailApplication(tx *gorm.DB, id string) (*models.EmailApplication, error) {
	var a models.EmailApplication
	if err := forUpdate(tx).First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err, "email application", id)
	}
	return &a, nil
}

func (r *Repo) UpdateEmailApplicationDraft(ctx context.Context, actor models.Actor, id string, in EmailApplicationInput) (*models.EmailApplication, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out *models.EmailApplication
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := lockEmailApplication(tx, id)
		if err != nil {
			return err
		}
		if a.ApplicantID != actor.UserID {
			return businessf("only the applicant may edit this application")
		}
		if a.Status != models.EmailDraft {
			return businessf("application is %s and can no longer be edited", a.Status)
		}
		a.ServiceStatus = in.ServiceStatus
		a.Purpose = in.Purpose
		a.ProposedEmail = in.ProposedEmail
		a.GroupEmail = in.GroupEmail
		a.GroupAdminName = strings.TrimSpace(in.GroupAdminName)
		a.GroupAdminEmail = in.GroupAdminEmail
		a.SupportingOfficerID = in.SupportingOfficerID
		a.StampUpdate(actor)
		out = a
		return tx.Save(a).Error
	})
	return out, err
}

// SubmitEmailApplication accepts the certification and sends the draft to
// support review.
func (r *Repo) SubmitEmailApplication(ctx context.Context, actor models.Actor, id string) (*models.EmailApplication, error) {
	var out *models.EmailApplication
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := lockEmailApplication(tx, id)
		if err != nil {
			return err
		}
		if a.ApplicantID != actor.UserID {
			return businessf("only the applicant may submit this application")
		}
		if !a.CertificationAccepted {
			now := r.now()
			a.CertificationAccepted = true
			a.CertificationTimestamp = &now
		}
		if err := models.ValidateEmailTransition(a.Status, models.EmailPendingSupport, models.EmailTransitionContext{
			Certified: a.Certified(),
		}); err != nil {
			return err
		}
		a.Status = models.EmailPendingSupport
		a.StampUpdate(actor)
		out = a
		return tx.Save(a).Error
	})
	return out, err
}

type EmailDecision struct {
	Approve         bool
	Comments        string
	RejectionReason string
}

// DecideEmailApplication records the approval for whichever review stage the
// application is waiting on and advances it.
func (r *Repo) DecideEmailApplication(ctx context.Context, actor models.Actor, id string, d EmailDecision) (*models.EmailApplication, error) {
	var out *models.EmailApplication
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := lockEmailApplication(tx, id)
		if err != nil {
			return err
		}
		stage, next, ok := a.Status.ReviewStage()
		if !ok {
			return businessf("application is %s and is not awaiting review", a.Status)
		}
		status := models.ApprovalApproved
		c := models.EmailTransitionContext{}
		if !d.Approve {
			next = models.EmailRejected
			status = models.ApprovalRejected
			c.RejectionReason = d.RejectionReason
		}
		if err := models.ValidateEmailTransition(a.Status, next, c); err != nil {
			return err
		}
		if _, err := recordApproval(tx, actor, ApprovalInput{
			Ref:      a.Ref(),
			Stage:    stage,
			Status:   status,
			Comments: d.Comments,
		}, r.now()); err != nil {
			return err
		}
		if next == models.EmailRejected {
			reason := strings.TrimSpace(d.RejectionReason)
			a.RejectionReason = &reason
		}
		a.Status = next
		a.StampUpdate(actor)
		out = a
		return tx.Save(a).Error
	})
	return out, err
}

func (r *Repo) StartEmailProvisioning(ctx context.Context, actor models.Actor, id string) (*models.EmailApplication, error) {
	return r.moveEmail(ctx, actor, id, models.EmailProcessing, func(a *models.EmailApplication) {})
}

type ProvisioningResult struct {
	FinalAssignedEmail  string
	FinalAssignedUserID string
	Notes               string
}

// CompleteEmailProvisioning stamps the assigned account; the three result
// fields are set only here.
func (r *Repo) CompleteEmailProvisioning(ctx context.Context, actor models.Actor, id string, res ProvisioningResult) (*models.EmailApplication, error) {
	res.FinalAssignedEmail = strings.ToLower(strings.TrimSpace(res.FinalAssignedEmail))
	res.FinalAssignedUserID = strings.TrimSpace(res.FinalAssignedUserID)
	fe := fieldErrors{}
	if res.FinalAssignedEmail == "" || !strings.Contains(res.FinalAssignedEmail, "@") {
		fe.add("finalAssignedEmail", "a valid email is required")
	}
	if res.FinalAssignedUserID == "" {
		fe.add("finalAssignedUserId", "is required")
	}
	if err := fe.err(); err != nil {
		return nil, err
	}
	return r.moveEmail(ctx, actor, id, models.EmailCompleted, func(a *models.EmailApplication) {
		now := r.now()
		a.FinalAssignedEmail = &res.FinalAssignedEmail
		a.FinalAssignedUserID = &res.FinalAssignedUserID
		a.ProvisionedAt = &now
		a.ProvisioningNotes = res.Notes
	})
}

func (r *Repo) FailEmailProvisioning(ctx context.Context, actor models.Actor, id, notes string) (*models.EmailApplication, error) {
	return r.moveEmail(ctx, actor, id, models.EmailProvisionFailed, func(a *models.EmailApplication) {
		a.ProvisioningNotes = notes
	})
}

func (r *Repo) moveEmail(ctx context.Context, actor models.Actor, id string, to models.EmailApplicationStatus, apply func(*models.EmailApplication)) (*models.EmailApplication, error) {
	var out *models.EmailApplication
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		a, err := lockEmailApplication(tx, id)
		if err != nil {
			return err
		}
		from := a.Status
		apply(a)
		c := models.EmailTransitionContext{Provisioned: a.ProvisionedAt != nil}
		if a.FinalAssignedEmail != nil {
			c.FinalAssignedEmail = *a.FinalAssignedEmail
		}
		if a.FinalAssignedUserID != nil {
			c.FinalAssignedUserID = *a.FinalAssignedUserID
		}
		if err := models.ValidateEmailTransition(from, to, c); err != nil {
			return err
		}
		a.Status = to
		a.StampUpdate(actor)
		out = a
		return tx.Save(a).Error
	})
	return out, err
}

func (r *Repo) FindEmailApplication(ctx context.Context, id string) (*models.EmailApplication, error) {
	var a models.EmailApplication
	tx := r.DB.WithContext(ctx)
	if err := tx.First(&a, "id = ?", id).Error; err != nil {
		return nil, translate(err, "email application", id)
	}
	approvals, err := listApprovals(tx, a.Ref(), true)
	if err != nil {
		return nil, err
	}
	a.Approvals = approvals
	return &a, nil
}

type EmailApplicationQuery struct {
	ApplicantID string
	Status      models.EmailApplicationStatus
	PageQuery
}

func (r *Repo) ListEmailApplications(ctx context.Context, q EmailApplicationQuery) (*Paged[models.EmailApplication], error) {
	offset, limit := q.normalize()
	tx := r.DB.WithContext(ctx).Model(&models.EmailApplication{})
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
	var items []models.EmailApplication
	if err := tx.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return &Paged[models.EmailApplication]{Total: total, Items: items}, nil
}
