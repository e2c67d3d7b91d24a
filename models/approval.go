package models

import (
	"fmt"
	"time"
)

const ApprovalTable = "approvals"

const (
	StageSupportReview = "support_review"
	StageAdminReview   = "admin_review"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

func (s ApprovalStatus) Valid() bool {
	return s == ApprovalPending || s == ApprovalApproved || s == ApprovalRejected
}

// Decided reports whether the status carries an approval timestamp.
func (s ApprovalStatus) Decided() bool { return s == ApprovalApproved || s == ApprovalRejected }

type ApprovableKind string

const (
	KindLoanApplication  ApprovableKind = "loan_application"
	KindEmailApplication ApprovableKind = "email_application"
)

// ApprovableRef points an Approval at the entity it decides on. The only
// implementations are LoanApplicationRef and EmailApplicationRef.
type ApprovableRef interface {
	Kind() ApprovableKind
	RefID() string
	approvable()
}

type LoanApplicationRef struct{ ID string }

func (r LoanApplicationRef) Kind() ApprovableKind { return KindLoanApplication }
func (r LoanApplicationRef) RefID() string        { return r.ID }
func (LoanApplicationRef) approvable()            {}

type EmailApplicationRef struct{ ID string }

func (r EmailApplicationRef) Kind() ApprovableKind { return KindEmailApplication }
func (r EmailApplicationRef) RefID() string        { return r.ID }
func (EmailApplicationRef) approvable()            {}

// ParseApprovableRef turns the stored (type, id) pair back into a ref.
func ParseApprovableRef(kind ApprovableKind, id string) (ApprovableRef, error) {
	if id == "" {
		return nil, fmt.Errorf("approvable id is required")
	}
	switch kind {
	case KindLoanApplication:
		return LoanApplicationRef{ID: id}, nil
	case KindEmailApplication:
		return EmailApplicationRef{ID: id}, nil
	}
	return nil, fmt.Errorf("unknown approvable type %q", kind)
}

type Approval struct {
	ID                string         `gorm:"type:uuid;primaryKey" json:"id"`
	ApprovableType    ApprovableKind `gorm:"size:40;not null;index:idx_approvals_approvable" json:"approvableType"`
	ApprovableID      string         `gorm:"type:uuid;not null;index:idx_approvals_approvable" json:"approvableId"`
	OfficerID         string         `gorm:"type:uuid;index;not null" json:"officerId"`
	Stage             string         `gorm:"size:60;not null" json:"stage"`
	Status            ApprovalStatus `gorm:"size:20;not null;default:'pending'" json:"status"`
	Comments          string         `gorm:"type:text" json:"comments,omitempty"`
	ApprovalTimestamp *time.Time     `json:"approvalTimestamp,omitempty"`
	SupersededAt      *time.Time     `json:"supersededAt,omitempty"`
	Audit
}

func (Approval) TableName() string { return ApprovalTable }

func (a *Approval) Ref() (ApprovableRef, error) {
	return ParseApprovableRef(a.ApprovableType, a.ApprovableID)
}

func (a *Approval) Current() bool { return a.SupersededAt == nil }
