package models

import (
	"strings"
	"time"
)

const EmailApplicationTable = "email_applications"

type EmailApplicationStatus string

const (
	EmailDraft           EmailApplicationStatus = "draft"
	EmailPendingSupport  EmailApplicationStatus = "pending_support"
	EmailPendingAdmin    EmailApplicationStatus = "pending_admin"
	EmailApproved        EmailApplicationStatus = "approved"
	EmailRejected        EmailApplicationStatus = "rejected"
	EmailProcessing      EmailApplicationStatus = "processing"
	EmailCompleted       EmailApplicationStatus = "completed"
	EmailProvisionFailed EmailApplicationStatus = "provision_failed"
)

var emailTransitions = map[EmailApplicationStatus][]EmailApplicationStatus{
	EmailDraft:           {EmailPendingSupport},
	EmailPendingSupport:  {EmailPendingAdmin, EmailRejected},
	EmailPendingAdmin:    {EmailApproved, EmailRejected},
	EmailApproved:        {EmailProcessing},
	EmailProcessing:      {EmailCompleted, EmailProvisionFailed},
	EmailProvisionFailed: {EmailProcessing},
	EmailRejected:        nil,
	EmailCompleted:       nil,
}

func (s EmailApplicationStatus) Valid() bool {
	_, ok := emailTransitions[s]
	return ok
}

func (s EmailApplicationStatus) Terminal() bool {
	return s.Valid() && len(emailTransitions[s]) == 0
}

func (s EmailApplicationStatus) CanTransition(to EmailApplicationStatus) bool {
	for _, next := range emailTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ReviewStage names the approval stage that decides an application sitting
// in s, and the status an approval at that stage leads to.
func (s EmailApplicationStatus) ReviewStage() (stage string, next EmailApplicationStatus, ok bool) {
	switch s {
	case EmailPendingSupport:
		return StageSupportReview, EmailPendingAdmin, true
	case EmailPendingAdmin:
		return StageAdminReview, EmailApproved, true
	}
	return "", "", false
}

type EmailTransitionContext struct {
	RejectionReason     string
	Certified           bool
	FinalAssignedEmail  string
	FinalAssignedUserID string
	Provisioned         bool
}

func ValidateEmailTransition(from, to EmailApplicationStatus, c EmailTransitionContext) error {
	fail := func(reason string) error {
		return &TransitionError{Entity: "email application", From: string(from), To: string(to), Reason: reason}
	}
	if !to.Valid() {
		return fail("unknown status")
	}
	if !from.CanTransition(to) {
		return fail("transition not allowed")
	}
	reason := strings.TrimSpace(c.RejectionReason)
	if to == EmailRejected && reason == "" {
		return fail("a rejection reason is required")
	}
	if to != EmailRejected && reason != "" {
		return fail("rejection reason is only allowed when rejecting")
	}
	completing := to == EmailCompleted
	assigned := strings.TrimSpace(c.FinalAssignedEmail) != "" && strings.TrimSpace(c.FinalAssignedUserID) != ""
	if completing && (!assigned || !c.Provisioned) {
		return fail("final assigned email, user id and provisioning time are required")
	}
	if !completing && (c.FinalAssignedEmail != "" || c.FinalAssignedUserID != "" || c.Provisioned) {
		return fail("final assignment is only recorded on completion")
	}
	if to == EmailPendingSupport && !c.Certified {
		return fail("the applicant must accept the certification first")
	}
	return nil
}

type EmailApplication struct {
	ID                     string                 `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicantID            string                 `gorm:"type:uuid;index;not null" json:"applicantId"`
	ServiceStatus          string                 `gorm:"size:60" json:"serviceStatus"`
	Purpose                string                 `gorm:"type:text" json:"purpose,omitempty"`
	ProposedEmail          string                 `gorm:"size:255" json:"proposedEmail,omitempty"`
	GroupEmail             string                 `gorm:"size:255" json:"groupEmail,omitempty"`
	GroupAdminName         string                 `gorm:"size:255" json:"groupAdminName,omitempty"`
	GroupAdminEmail        string                 `gorm:"size:255" json:"groupAdminEmail,omitempty"`
	SupportingOfficerID    *string                `gorm:"type:uuid" json:"supportingOfficerId,omitempty"`
	Status                 EmailApplicationStatus `gorm:"size:30;index;not null;default:'draft'" json:"status"`
	CertificationAccepted  bool                   `gorm:"not null;default:false" json:"certificationAccepted"`
	CertificationTimestamp *time.Time             `json:"certificationTimestamp,omitempty"`
	RejectionReason        *string                `gorm:"type:text" json:"rejectionReason,omitempty"`
	FinalAssignedEmail     *string                `gorm:"size:255" json:"finalAssignedEmail,omitempty"`
	FinalAssignedUserID    *string                `gorm:"size:120" json:"finalAssignedUserId,omitempty"`
	ProvisionedAt          *time.Time             `json:"provisionedAt,omitempty"`
	ProvisioningNotes      string                 `gorm:"type:text" json:"provisioningNotes,omitempty"`
	Audit

	Approvals []Approval `gorm:"-" json:"approvals,omitempty"`
}

func (EmailApplication) TableName() string { return EmailApplicationTable }

func (a *EmailApplication) Ref() ApprovableRef { return EmailApplicationRef{ID: a.ID} }

func (a *EmailApplication) Certified() bool {
	return a.CertificationAccepted && a.CertificationTimestamp != nil
}
