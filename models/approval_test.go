package models

import "testing"

func TestParseApprovableRef(t *testing.T) {
	ref, err := ParseApprovableRef(KindLoanApplication, "app-1")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if _, ok := ref.(LoanApplicationRef); !ok || ref.RefID() != "app-1" {
		t.Errorf("got %#v", ref)
	}
	ref, err = ParseApprovableRef(KindEmailApplication, "mail-1")
	if err != nil || ref.Kind() != KindEmailApplication {
		t.Errorf("email ref: %#v, %v", ref, err)
	}
	if _, err := ParseApprovableRef("invoice", "x"); err == nil {
		t.Error("unknown kind accepted")
	}
	if _, err := ParseApprovableRef(KindLoanApplication, ""); err == nil {
		t.Error("empty id accepted")
	}
}

func TestApprovalStatusDecided(t *testing.T) {
	if ApprovalPending.Decided() {
		t.Error("pending is not decided")
	}
	if !ApprovalApproved.Decided() || !ApprovalRejected.Decided() {
		t.Error("approved and rejected are decided")
	}
	if ApprovalStatus("maybe").Valid() {
		t.Error("unknown status valid")
	}
}
