package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	LoanApplicationTable     = "loan_applications"
	LoanApplicationItemTable = "loan_application_items"
)

type LoanApplicationStatus string

const (
	LoanDraft           LoanApplicationStatus = "draft"
	LoanPendingSupport  LoanApplicationStatus = "pending_support"
	LoanApproved        LoanApplicationStatus = "approved"
	LoanRejected        LoanApplicationStatus = "rejected"
	LoanPartiallyIssued LoanApplicationStatus = "partially_issued"
	LoanIssued          LoanApplicationStatus = "issued"
	LoanReturned        LoanApplicationStatus = "returned"
	LoanOverdue         LoanApplicationStatus = "overdue"
	LoanCancelled       LoanApplicationStatus = "cancelled"
)

var loanTransitions = map[LoanApplicationStatus][]LoanApplicationStatus{
	LoanDraft:           {LoanPendingSupport, LoanCancelled},
	LoanPendingSupport:  {LoanApproved, LoanRejected, LoanCancelled},
	LoanApproved:        {LoanPartiallyIssued, LoanIssued, LoanCancelled},
	LoanPartiallyIssued: {LoanIssued, LoanReturned, LoanOverdue},
	LoanIssued:          {LoanReturned, LoanOverdue},
	LoanOverdue:         {LoanReturned},
	LoanRejected:        nil,
	LoanReturned:        nil,
	LoanCancelled:       nil,
}

func LoanApplicationStatuses() []LoanApplicationStatus {
	return []LoanApplicationStatus{
		LoanDraft, LoanPendingSupport, LoanApproved, LoanRejected, LoanPartiallyIssued,
		LoanIssued, LoanReturned, LoanOverdue, LoanCancelled,
	}
}

func (s LoanApplicationStatus) Valid() bool {
	_, ok := loanTransitions[s]
	return ok
}

func (s LoanApplicationStatus) Terminal() bool {
	return s.Valid() && len(loanTransitions[s]) == 0
}

// Issuable reports whether new units may still be handed out.
func (s LoanApplicationStatus) Issuable() bool {
	return s == LoanApproved || s == LoanPartiallyIssued
}

// Editable reports whether the applicant may still change the request.
func (s LoanApplicationStatus) Editable() bool { return s == LoanDraft }

func (s LoanApplicationStatus) CanTransition(to LoanApplicationStatus) bool {
	for _, next := range loanTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// LoanTransitionContext carries the facts a transition is checked against.
type LoanTransitionContext struct {
	RejectionReason     string
	Certified           bool
	HasApprovedApproval bool
	ApprovedQuantity    int
	TransactionCount    int
}

// ValidateLoanTransition is the single place loan application invariants
// are enforced.
func ValidateLoanTransition(from, to LoanApplicationStatus, c LoanTransitionContext) error {
	if !to.Valid() {
		return &TransitionError{Entity: "loan application", From: string(from), To: string(to), Reason: "unknown status"}
	}
	if !from.CanTransition(to) {
		return &TransitionError{Entity: "loan application", From: string(from), To: string(to), Reason: "transition not allowed"}
	}
	fail := func(reason string) error {
		return &TransitionError{Entity: "loan application", From: string(from), To: string(to), Reason: reason}
	}
	reason := strings.TrimSpace(c.RejectionReason)
	if to == LoanRejected && reason == "" {
		return fail("a rejection reason is required")
	}
	if to != LoanRejected && reason != "" {
		return fail("rejection reason is only allowed when rejecting")
	}
	switch to {
	case LoanPendingSupport:
		if !c.Certified {
			return fail("the applicant must confirm the application first")
		}
	case LoanPartiallyIssued, LoanIssued:
		if !c.Certified {
			return fail("the application has not been certified")
		}
		if !c.HasApprovedApproval {
			return fail("the application has no approved approval")
		}
		if c.ApprovedQuantity <= 0 {
			return fail("no item has an approved quantity")
		}
		if c.TransactionCount <= 0 {
			return fail("no equipment has been issued")
		}
		if c.TransactionCount > c.ApprovedQuantity {
			return fail("more units issued than approved")
		}
	}
	return nil
}

// IssueStatus picks the post-issuance status from how many units went out
// against how many were approved.
func IssueStatus(issued, approved int) LoanApplicationStatus {
	if issued >= approved {
		return LoanIssued
	}
	return LoanPartiallyIssued
}

type TransitionError struct {
	Entity string
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s: %s", e.Entity, e.From, e.To, e.Reason)
}

type LoanApplication struct {
	ID                             string                `gorm:"type:uuid;primaryKey" json:"id"`
	ApplicantID                    string                `gorm:"type:uuid;index;not null" json:"applicantId"`
	ResponsibleOfficerID           *string               `gorm:"type:uuid" json:"responsibleOfficerId,omitempty"`
	Purpose                        string                `gorm:"type:text;not null" json:"purpose"`
	Location                       string                `gorm:"size:255" json:"location"`
	LoanStartDate                  time.Time             `gorm:"not null" json:"loanStartDate"`
	LoanEndDate                    time.Time             `gorm:"index;not null" json:"loanEndDate"`
	Status                         LoanApplicationStatus `gorm:"size:30;index;not null;default:'draft'" json:"status"`
	RejectionReason                *string               `gorm:"type:text" json:"rejectionReason,omitempty"`
	ApplicantConfirmationTimestamp *time.Time            `json:"applicantConfirmationTimestamp,omitempty"`
	Audit

	Items        []LoanApplicationItem `gorm:"foreignKey:LoanApplicationID" json:"items,omitempty"`
	Transactions []LoanTransaction     `gorm:"foreignKey:LoanApplicationID" json:"transactions,omitempty"`
	Approvals    []Approval            `gorm:"-" json:"approvals,omitempty"`
}

func (LoanApplication) TableName() string { return LoanApplicationTable }

func (a *LoanApplication) Ref() ApprovableRef { return LoanApplicationRef{ID: a.ID} }

func (a *LoanApplication) Certified() bool { return a.ApplicantConfirmationTimestamp != nil }

// ApprovedQuantity sums quantity_approved over the items; it bounds the
// number of transactions the application may ever have.
func (a *LoanApplication) ApprovedQuantity() int {
	n := 0
	for _, it := range a.Items {
		if it.QuantityApproved != nil {
			n += *it.QuantityApproved
		}
	}
	return n
}

// ItemForType finds the line item covering an equipment category.
func (a *LoanApplication) ItemForType(assetType string) *LoanApplicationItem {
	for i := range a.Items {
		if strings.EqualFold(strings.TrimSpace(a.Items[i].EquipmentType), strings.TrimSpace(assetType)) {
			return &a.Items[i]
		}
	}
	return nil
}

type LoanApplicationItem struct {
	ID                string `gorm:"type:uuid;primaryKey" json:"id"`
	LoanApplicationID string `gorm:"type:uuid;index;not null" json:"loanApplicationId"`
	EquipmentType     string `gorm:"size:60;not null" json:"equipmentType"`
	QuantityRequested int    `gorm:"not null" json:"quantityRequested"`
	QuantityApproved  *int   `json:"quantityApproved,omitempty"`
	Notes             string `gorm:"type:text" json:"notes,omitempty"`
	Audit
}

func (LoanApplicationItem) TableName() string { return LoanApplicationItemTable }

// ValidateApprovedQuantity checks 0 <= approved <= requested.
func (it *LoanApplicationItem) ValidateApprovedQuantity(q int) error {
	if q < 0 || q > it.QuantityRequested {
		return fmt.Errorf("approved quantity for %s must be between 0 and %d", it.EquipmentType, it.QuantityRequested)
	}
	return nil
}
