package models

import (
	"fmt"
	"time"
)

const LoanTransactionTable = "loan_transactions"

type TransactionStatus string

const (
	TxIssued   TransactionStatus = "issued"
	TxOverdue  TransactionStatus = "overdue"
	TxReturned TransactionStatus = "returned"
	TxDamaged  TransactionStatus = "damaged"
	TxLost     TransactionStatus = "lost"
)

var txTransitions = map[TransactionStatus][]TransactionStatus{
	TxIssued:   {TxOverdue, TxReturned, TxDamaged, TxLost},
	TxOverdue:  {TxReturned, TxDamaged, TxLost},
	TxReturned: nil,
	TxDamaged:  nil,
	TxLost:     nil,
}

func (s TransactionStatus) Valid() bool {
	_, ok := txTransitions[s]
	return ok
}

// Open transactions still hold their equipment; they have no return timestamp.
func (s TransactionStatus) Open() bool { return s == TxIssued || s == TxOverdue }

func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	for _, next := range txTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ReturnOutcome is the officer's verdict when a unit comes back.
type ReturnOutcome string

const (
	OutcomeReturned ReturnOutcome = "returned"
	OutcomeDamaged  ReturnOutcome = "damaged"
	OutcomeLost     ReturnOutcome = "lost"
)

func (o ReturnOutcome) Valid() bool {
	return o == OutcomeReturned || o == OutcomeDamaged || o == OutcomeLost
}

func (o ReturnOutcome) TransactionStatus() TransactionStatus {
	switch o {
	case OutcomeDamaged:
		return TxDamaged
	case OutcomeLost:
		return TxLost
	}
	return TxReturned
}

func (o ReturnOutcome) Availability() EquipmentAvailability {
	switch o {
	case OutcomeDamaged:
		return AvailabilityDamaged
	case OutcomeLost:
		return AvailabilityLost
	}
	return AvailabilityAvailable
}

type LoanTransaction struct {
	ID                    string  `gorm:"type:uuid;primaryKey" json:"id"`
	LoanApplicationID     string  `gorm:"type:uuid;index;not null" json:"loanApplicationId"`
	LoanApplicationItemID *string `gorm:"type:uuid;index" json:"loanApplicationItemId,omitempty"`
	EquipmentID           *string `gorm:"type:uuid;index" json:"equipmentId,omitempty"`

	IssuingOfficerID            *string    `gorm:"type:uuid" json:"issuingOfficerId,omitempty"`
	ReceivingOfficerID          *string    `gorm:"type:uuid" json:"receivingOfficerId,omitempty"`
	AccessoriesChecklistOnIssue Checklist  `gorm:"type:jsonb" json:"accessoriesChecklistOnIssue,omitempty"`
	IssueTimestamp              *time.Time `gorm:"index" json:"issueTimestamp,omitempty"`
	IssueNotes                  string     `gorm:"type:text" json:"issueNotes,omitempty"`

	ReturningOfficerID           *string    `gorm:"type:uuid" json:"returningOfficerId,omitempty"`
	ReturnAcceptingOfficerID     *string    `gorm:"type:uuid" json:"returnAcceptingOfficerId,omitempty"`
	AccessoriesChecklistOnReturn Checklist  `gorm:"type:jsonb" json:"accessoriesChecklistOnReturn,omitempty"`
	ReturnTimestamp              *time.Time `gorm:"index" json:"returnTimestamp,omitempty"`
	ReturnNotes                  string     `gorm:"type:text" json:"returnNotes,omitempty"`

	Status TransactionStatus `gorm:"size:20;index;not null;default:'issued'" json:"status"`
	Audit

	Equipment *Equipment `gorm:"foreignKey:EquipmentID" json:"equipment,omitempty"`
}

func (LoanTransaction) TableName() string { return LoanTransactionTable }

// CheckInvariant verifies return_timestamp is set exactly when the
// transaction is closed.
func (t *LoanTransaction) CheckInvariant() error {
	if !t.Status.Valid() {
		return fmt.Errorf("transaction %s has unknown status %q", t.ID, t.Status)
	}
	if t.Status.Open() && t.ReturnTimestamp != nil {
		return fmt.Errorf("open transaction %s has a return timestamp", t.ID)
	}
	if !t.Status.Open() && t.ReturnTimestamp == nil {
		return fmt.Errorf("closed transaction %s has no return timestamp", t.ID)
	}
	return nil
}
