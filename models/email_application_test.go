package models

import "testing"

func TestEmailReviewStage(t *testing.T) {
	stage, next, ok := EmailPendingSupport.ReviewStage()
	if !ok || stage != StageSupportReview || next != EmailPendingAdmin {
		t.Errorf("pending_support: got %q %q %v", stage, next, ok)
	}
	stage, next, ok = EmailPendingAdmin.ReviewStage()
	if !ok || stage != StageAdminReview || next != EmailApproved {
		t.Errorf("pending_admin: got %q %q %v", stage, next, ok)
	}
	if _, _, ok := EmailDraft.ReviewStage(); ok {
		t.Error("draft should not be under review")
	}
}

func TestValidateEmailTransition(t *testing.T) {
	done := EmailTransitionContext{FinalAssignedEmail: "a.b@agency.gov", FinalAssignedUserID: "ab123", Provisioned: true}
	cases := []struct {
		name     string
		from, to EmailApplicationStatus
		c        EmailTransitionContext
		wantErr  bool
	}{
		{"submit certified", EmailDraft, EmailPendingSupport, EmailTransitionContext{Certified: true}, false},
		{"submit uncertified", EmailDraft, EmailPendingSupport, EmailTransitionContext{}, true},
		{"skip review", EmailDraft, EmailApproved, EmailTransitionContext{}, true},
		{"reject with reason", EmailPendingAdmin, EmailRejected, EmailTransitionContext{RejectionReason: "duplicate"}, false},
		{"reject without reason", EmailPendingSupport, EmailRejected, EmailTransitionContext{}, true},
		{"complete", EmailProcessing, EmailCompleted, done, false},
		{"complete missing user", EmailProcessing, EmailCompleted, EmailTransitionContext{FinalAssignedEmail: "x@y", Provisioned: true}, true},
		{"assignment before completion", EmailApproved, EmailProcessing, done, true},
		{"retry after failure", EmailProvisionFailed, EmailProcessing, EmailTransitionContext{}, false},
		{"completed is terminal", EmailCompleted, EmailProcessing, EmailTransitionContext{}, true},
	}
	for _, tc := range cases {
		err := ValidateEmailTransition(tc.from, tc.to, tc.c)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestEmailCertified(t *testing.T) {
	a := &EmailApplication{CertificationAccepted: true}
	if a.Certified() {
		t.Error("certified without timestamp")
	}
}
