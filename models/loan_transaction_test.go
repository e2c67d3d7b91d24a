package models

import (
	"testing"
	"time"
)

func TestReturnOutcomeMapping(t *testing.T) {
	cases := []struct {
		outcome ReturnOutcome
		status  TransactionStatus
		avail   EquipmentAvailability
	}{
		{OutcomeReturned, TxReturned, AvailabilityAvailable},
		{OutcomeDamaged, TxDamaged, AvailabilityDamaged},
		{OutcomeLost, TxLost, AvailabilityLost},
	}
	for _, tc := range cases {
		if got := tc.outcome.TransactionStatus(); got != tc.status {
			t.Errorf("%s: status %s, want %s", tc.outcome, got, tc.status)
		}
		if got := tc.outcome.Availability(); got != tc.avail {
			t.Errorf("%s: availability %s, want %s", tc.outcome, got, tc.avail)
		}
	}
	if ReturnOutcome("stolen").Valid() {
		t.Error("unknown outcome reported valid")
	}
}

func TestTransactionStatusTransitions(t *testing.T) {
	if !TxIssued.CanTransition(TxOverdue) || !TxOverdue.CanTransition(TxLost) {
		t.Error("open transactions must be closable")
	}
	if TxReturned.CanTransition(TxIssued) || TxDamaged.CanTransition(TxReturned) {
		t.Error("closed transactions must not reopen")
	}
	if TxOverdue.CanTransition(TxIssued) {
		t.Error("overdue must not go back to issued")
	}
}

func TestCheckInvariant(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name    string
		tx      LoanTransaction
		wantErr bool
	}{
		{"issued open", LoanTransaction{Status: TxIssued}, false},
		{"overdue open", LoanTransaction{Status: TxOverdue}, false},
		{"returned closed", LoanTransaction{Status: TxReturned, ReturnTimestamp: &now}, false},
		{"issued with timestamp", LoanTransaction{Status: TxIssued, ReturnTimestamp: &now}, true},
		{"lost without timestamp", LoanTransaction{Status: TxLost}, true},
		{"unknown status", LoanTransaction{Status: "pending"}, true},
	}
	for _, tc := range cases {
		err := tc.tx.CheckInvariant()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}
