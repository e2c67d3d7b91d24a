package db_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"Gin_postgres_redis_ict_loan/db"
	"Gin_postgres_redis_ict_loan/models"
	"Gin_postgres_redis_ict_loan/testutil"
)

type env struct {
	repo      *db.Repo
	applicant models.Actor
	officer   models.Actor
	bpm       models.Actor
}

func setupEnv(t *testing.T) *env {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	return &env{
		repo:      db.NewRepo(conn),
		applicant: testutil.Actor(testutil.SeedUser(t, conn, "Applicant One", db.UserRoles{})),
		officer:   testutil.Actor(testutil.SeedUser(t, conn, "Support Officer", db.UserRoles{IsApprover: true})),
		bpm:       testutil.Actor(testutil.SeedUser(t, conn, "BPM Staff", db.UserRoles{IsBPMStaff: true})),
	}
}

func (e *env) equipment(t *testing.T, assetType, tag string, avail models.EquipmentAvailability) *models.Equipment {
	t.Helper()
	eq, err := e.repo.CreateEquipment(context.Background(), e.bpm, db.EquipmentInput{
		AssetType:          assetType,
		Brand:              "Dell",
		Model:              "Latitude 5440",
		SerialNumber:       "SN-" + tag,
		TagID:              tag,
		AvailabilityStatus: avail,
	})
	if err != nil {
		t.Fatalf("create equipment %s: %v", tag, err)
	}
	return eq
}

// submitted creates and submits an application for qty units of assetType.
func (e *env) submitted(t *testing.T, assetType string, qty int) *models.LoanApplication {
	t.Helper()
	ctx := context.Background()
	start := time.Now().UTC().Truncate(24 * time.Hour)
	app, err := e.repo.CreateLoanApplication(ctx, e.applicant, db.LoanApplicationInput{
		Purpose:       "Training workshop",
		Location:      "Level 3",
		LoanStartDate: start,
		LoanEndDate:   start.AddDate(0, 0, 7),
		Items:         []db.LoanItemInput{{EquipmentType: assetType, QuantityRequested: qty}},
	})
	if err != nil {
		t.Fatalf("create application: %v", err)
	}
	app, err = e.repo.SubmitLoanApplication(ctx, e.applicant, app.ID)
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}
	return app
}

func (e *env) approved(t *testing.T, assetType string, qty int, approvedQty map[string]int) *models.LoanApplication {
	t.Helper()
	app := e.submitted(t, assetType, qty)
	app, err := e.repo.DecideLoanApplication(context.Background(), e.officer, app.ID, db.LoanDecision{
		Approve:            true,
		ApprovedQuantities: approvedQty,
	})
	if err != nil {
		t.Fatalf("approve application: %v", err)
	}
	return app
}

func (e *env) issue(t *testing.T, appID string, units ...*models.Equipment) []models.LoanTransaction {
	t.Helper()
	ids := make([]string, 0, len(units))
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	txs, err := e.repo.IssueEquipment(context.Background(), e.bpm, db.IssueInput{
		ApplicationID: appID,
		EquipmentIDs:  ids,
		Checklist:     models.Checklist{"charger": "good"},
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return txs
}

func (e *env) appStatus(t *testing.T, id string) models.LoanApplicationStatus {
	t.Helper()
	app, err := e.repo.FindLoanApplication(context.Background(), id)
	if err != nil {
		t.Fatalf("find application: %v", err)
	}
	return app.Status
}

func (e *env) availability(t *testing.T, id string) models.EquipmentAvailability {
	t.Helper()
	eq, err := e.repo.FindEquipmentByID(context.Background(), id)
	if err != nil {
		t.Fatalf("find equipment: %v", err)
	}
	return eq.AvailabilityStatus
}

func TestIssueApprovedLaptops(t *testing.T) {
	e := setupEnv(t)
	app := e.approved(t, "Laptop", 2, nil)
	if app.Status != models.LoanApproved || app.ApprovedQuantity() != 2 {
		t.Fatalf("approved app: status %s, qty %d", app.Status, app.ApprovedQuantity())
	}
	e1 := e.equipment(t, "Laptop", "E1", "")
	e2 := e.equipment(t, "Laptop", "E2", "")

	txs := e.issue(t, app.ID, e1, e2)
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	for _, tx := range txs {
		if tx.Status != models.TxIssued || tx.IssueTimestamp == nil || tx.ReturnTimestamp != nil {
			t.Errorf("transaction %s: %+v", tx.ID, tx)
		}
		if tx.AccessoriesChecklistOnIssue["charger"] != "good" {
			t.Errorf("checklist not stored: %v", tx.AccessoriesChecklistOnIssue)
		}
	}
	if got := e.appStatus(t, app.ID); got != models.LoanIssued {
		t.Errorf("application status = %s, want issued", got)
	}
	for _, u := range []*models.Equipment{e1, e2} {
		if got := e.availability(t, u.ID); got != models.AvailabilityOnLoan {
			t.Errorf("%s availability = %s, want on_loan", u.TagID, got)
		}
	}
}

func TestIssueInStages(t *testing.T) {
	e := setupEnv(t)
	app := e.approved(t, "Laptop", 2, nil)
	e1 := e.equipment(t, "Laptop", "E1", "")
	e2 := e.equipment(t, "Laptop", "E2", "")

	e.issue(t, app.ID, e1)
	if got := e.appStatus(t, app.ID); got != models.LoanPartiallyIssued {
		t.Fatalf("after first unit: %s", got)
	}
	e.issue(t, app.ID, e2)
	if got := e.appStatus(t, app.ID); got != models.LoanIssued {
		t.Fatalf("after second unit: %s", got)
	}
}

func TestIssueUnavailableUnitIsAtomic(t *testing.T) {
	e := setupEnv(t)
	app := e.approved(t, "Laptop", 2, nil)
	e1 := e.equipment(t, "Laptop", "E1", "")
	e2 := e.equipment(t, "Laptop", "E2", models.AvailabilityUnderMaintenance)

	_, err := e.repo.IssueEquipment(context.Background(), e.bpm, db.IssueInput{
		ApplicationID: app.ID,
		EquipmentIDs:  []string{e1.ID, e2.ID},
	})
	var ve *db.ValidationError
	if !errors.As(err, &ve) || ve.Fields["equipmentIds"] == "" {
		t.Fatalf("expected equipmentIds validation error, got %v", err)
	}
	if got := e.availability(t, e1.ID); got != models.AvailabilityAvailable {
		t.Errorf("E1 availability = %s, want available", got)
	}
	page, err := e.repo.ListTransactions(context.Background(), db.TransactionQuery{ApplicationID: app.ID})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if page.Total != 0 {
		t.Errorf("expected no transactions, got %d", page.Total)
	}
	if got := e.appStatus(t, app.ID); got != models.LoanApproved {
		t.Errorf("application status = %s, want approved", got)
	}
}

func TestIssueBeyondApprovedQuantity(t *testing.T) {
	e := setupEnv(t)
	app := e.submitted(t, "Laptop", 2)
	itemID := app.Items[0].ID
	app, err := e.repo.DecideLoanApplication(context.Background(), e.officer, app.ID, db.LoanDecision{
		Approve:            true,
		ApprovedQuantities: map[string]int{itemID: 1},
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	e1 := e.equipment(t, "Laptop", "E1", "")
	e2 := e.equipment(t, "Laptop", "E2", "")

	_, err = e.repo.IssueEquipment(context.Background(), e.bpm, db.IssueInput{
		ApplicationID: app.ID,
		EquipmentIDs:  []string{e1.ID, e2.ID},
	})
	if !db.IsBusiness(err) {
		t.Fatalf("expected business error, got %v", err)
	}
	if got := e.availability(t, e1.ID); got != models.AvailabilityAvailable {
		t.Errorf("E1 availability = %s, want available", got)
	}
}

func TestIssueWrongAssetType(t *testing.T) {
	e := setupEnv(t)
	app := e.approved(t, "Laptop", 1, nil)
	p := e.equipment(t, "Projector", "P1", "")
	_, err := e.repo.IssueEquipment(context.Background(), e.bpm, db.IssueInput{ApplicationID: app.ID, EquipmentIDs: []string{p.ID}})
	if !db.IsBusiness(err) {
		t.Fatalf("expected business error, got %v", err)
	}
}

func TestIssueRequiresApproval(t *testing.T) {
	e := setupEnv(t)
	app := e.submitted(t, "Laptop", 1)
	e1 := e.equipment(t, "Laptop", "E1", "")
	_, err := e.repo.IssueEquipment(context.Background(), e.bpm, db.IssueInput{ApplicationID: app.ID, EquipmentIDs: []string{e1.ID}})
	if !db.IsBusiness(err) {
		t.Fatalf("expected business error, got %v", err)
	}
}

func TestApproveZeroUnitsRejected(t *testing.T) {
	e := setupEnv(t)
	app := e.submitted(t, "Laptop", 2)
	_, err := e.repo.DecideLoanApplication(context.Background(), e.officer, app.ID, db.LoanDecision{
		Approve:            true,
		ApprovedQuantities: map[string]int{app.Items[0].ID: 0},
	})
	if !db.IsBusiness(err) {
		t.Fatalf("expected business error, got %v", err)
	}
	_, err = e.repo.DecideLoanApplication(context.Background(), e.officer, app.ID, db.LoanDecision{
		Approve:            true,
		ApprovedQuantities: map[string]int{app.Items[0].ID: 3},
	})
	if !db.IsValidation(err) {
		t.Fatalf("expected validation error for quantity above request, got %v", err)
	}
}

func TestReturnOneDamaged(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	app := e.approved(t, "Laptop", 2, nil)
	e1 := e.equipment(t, "Laptop", "E1", "")
	e2 := e.equipment(t, "Laptop", "E2", "")
	txs := e.issue(t, app.ID, e1, e2)

	var t1, t2 models.LoanTransaction
	for _, tx := range txs {
		if *tx.EquipmentID == e1.ID {
			t1 = tx
		} else {
			t2 = tx
		}
	}

	closed, err := e.repo.ReturnEquipment(ctx, e.bpm, db.ReturnInput{Lines: []db.ReturnLine{{
		TransactionID: t1.ID,
		Outcome:       models.OutcomeDamaged,
		Condition:     models.ConditionMajorDamage,
		Notes:         "cracked screen",
	}}})
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if len(closed) != 1 || closed[0].Status != models.TxDamaged || closed[0].ReturnTimestamp == nil {
		t.Fatalf("closed = %+v", closed)
	}
	if got := e.availability(t, e1.ID); got != models.AvailabilityDamaged {
		t.Errorf("E1 availability = %s, want damaged", got)
	}
	if got := e.availability(t, e2.ID); got != models.AvailabilityOnLoan {
		t.Errorf("E2 availability = %s, want on_loan", got)
	}
	if got := e.appStatus(t, app.ID); got != models.LoanIssued {
		t.Errorf("application status = %s, want issued", got)
	}

	_, err = e.repo.ReturnEquipment(ctx, e.bpm, db.ReturnInput{Lines: []db.ReturnLine{{TransactionID: t1.ID, Outcome: models.OutcomeReturned}}})
	if !db.IsBusiness(err) {
		t.Errorf("second return of closed transaction: %v", err)
	}

	if _, err := e.repo.ReturnEquipment(ctx, e.bpm, db.ReturnInput{Lines: []db.ReturnLine{{TransactionID: t2.ID, Outcome: models.OutcomeReturned}}}); err != nil {
		t.Fatalf("return second unit: %v", err)
	}
	if got := e.appStatus(t, app.ID); got != models.LoanReturned {
		t.Errorf("application status = %s, want returned", got)
	}
	if got := e.availability(t, e2.ID); got != models.AvailabilityAvailable {
		t.Errorf("E2 availability = %s, want available", got)
	}
}

// A batch holding one open and one closed transaction must change nothing.
func TestReturnIsAllOrNothing(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	app := e.approved(t, "Laptop", 2, nil)
	txs := e.issue(t, app.ID, e.equipment(t, "Laptop", "E1", ""), e.equipment(t, "Laptop", "E2", ""))
	// Rows are locked and processed in id order; closing the later one makes
	// the open line get written before the batch fails.
	sort.Slice(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
	open, done := txs[0], txs[1]
	if _, err := e.repo.ReturnEquipment(ctx, e.bpm, db.ReturnInput{Lines: []db.ReturnLine{{
		TransactionID: done.ID, Outcome: models.OutcomeReturned,
	}}}); err != nil {
		t.Fatalf("return %s: %v", done.ID, err)
	}

	_, err := e.repo.ReturnEquipment(ctx, e.bpm, db.ReturnInput{Lines: []db.ReturnLine{
		{TransactionID: open.ID, Outcome: models.OutcomeDamaged},
		{TransactionID: done.ID, Outcome: models.OutcomeReturned},
	}})
	if !db.IsBusiness(err) {
		t.Fatalf("expected business error, got %v", err)
	}
	got, err := e.repo.FindTransaction(ctx, open.ID)
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	if got.Status != models.TxIssued || got.ReturnTimestamp != nil {
		t.Errorf("open transaction changed: status=%s returned=%v", got.Status, got.ReturnTimestamp)
	}
	if a := e.availability(t, *open.EquipmentID); a != models.AvailabilityOnLoan {
		t.Errorf("equipment availability = %s, want on_loan", a)
	}
	if st := e.appStatus(t, app.ID); st != models.LoanIssued {
		t.Errorf("application status = %s, want issued", st)
	}
}

func TestReturnLostSetsCondition(t *testing.T) {
	e := setupEnv(t)
	app := e.approved(t, "Laptop", 1, nil)
	e1 := e.equipment(t, "Laptop", "E1", "")
	txs := e.issue(t, app.ID, e1)
	if _, err := e.repo.ReturnEquipment(context.Background(), e.bpm, db.ReturnInput{Lines: []db.ReturnLine{{
		TransactionID: txs[0].ID,
		Outcome:       models.OutcomeLost,
	}}}); err != nil {
		t.Fatalf("return: %v", err)
	}
	eq, err := e.repo.FindEquipmentByID(context.Background(), e1.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if eq.AvailabilityStatus != models.AvailabilityLost || eq.ConditionStatus != models.ConditionLost {
		t.Errorf("lost unit = %s/%s", eq.AvailabilityStatus, eq.ConditionStatus)
	}
}

func TestDeleteEquipmentWithHistory(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	app := e.approved(t, "Laptop", 1, nil)
	e1 := e.equipment(t, "Laptop", "E1", "")
	txs := e.issue(t, app.ID, e1)
	if _, err := e.repo.ReturnEquipment(ctx, e.bpm, db.ReturnInput{Lines: []db.ReturnLine{{TransactionID: txs[0].ID, Outcome: models.OutcomeReturned}}}); err != nil {
		t.Fatalf("return: %v", err)
	}
	if err := e.repo.DeleteEquipment(ctx, e.bpm, e1.ID); !db.IsBusiness(err) {
		t.Fatalf("expected business error, got %v", err)
	}
	if _, err := e.repo.FindEquipmentByID(ctx, e1.ID); err != nil {
		t.Errorf("equipment should still exist: %v", err)
	}

	fresh := e.equipment(t, "Laptop", "E9", "")
	if err := e.repo.DeleteEquipment(ctx, e.bpm, fresh.ID); err != nil {
		t.Fatalf("delete unused equipment: %v", err)
	}
	if _, err := e.repo.FindEquipmentByID(ctx, fresh.ID); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("deleted equipment still visible: %v", err)
	}
}

func TestDuplicateTagRejected(t *testing.T) {
	e := setupEnv(t)
	e.equipment(t, "Laptop", "E1", "")
	_, err := e.repo.CreateEquipment(context.Background(), e.bpm, db.EquipmentInput{AssetType: "Laptop", SerialNumber: "OTHER", TagID: "E1"})
	var ve *db.ValidationError
	if !errors.As(err, &ve) || ve.Fields["tagId"] == "" {
		t.Fatalf("expected tagId validation error, got %v", err)
	}
}

func TestEquipmentOnLoanCannotBeRetagged(t *testing.T) {
	e := setupEnv(t)
	app := e.approved(t, "Laptop", 1, nil)
	e1 := e.equipment(t, "Laptop", "E1", "")
	e.issue(t, app.ID, e1)
	avail := models.AvailabilityAvailable
	_, err := e.repo.UpdateEquipment(context.Background(), e.bpm, e1.ID, db.EquipmentPatch{AvailabilityStatus: &avail})
	if !db.IsBusiness(err) {
		t.Fatalf("expected business error, got %v", err)
	}
	loc := "Store room"
	eq, err := e.repo.UpdateEquipment(context.Background(), e.bpm, e1.ID, db.EquipmentPatch{CurrentLocation: &loc})
	if err != nil {
		t.Fatalf("update location: %v", err)
	}
	if eq.CurrentLocation != loc || eq.AvailabilityStatus != models.AvailabilityOnLoan {
		t.Errorf("updated = %+v", eq)
	}
}

func TestDeleteGradeInUse(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	g, err := e.repo.CreateGrade(ctx, e.bpm, "N41", 41)
	if err != nil {
		t.Fatalf("create grade: %v", err)
	}
	p, err := e.repo.CreatePosition(ctx, e.bpm, "Administrative Officer", &g.ID)
	if err != nil {
		t.Fatalf("create position: %v", err)
	}
	if err := e.repo.DeleteGrade(ctx, e.bpm, g.ID); !db.IsBusiness(err) {
		t.Fatalf("expected business error, got %v", err)
	}
	if err := e.repo.DeletePosition(ctx, e.bpm, p.ID); err != nil {
		t.Fatalf("delete position: %v", err)
	}
	if err := e.repo.DeleteGrade(ctx, e.bpm, g.ID); err != nil {
		t.Fatalf("delete grade: %v", err)
	}
	missing := "00000000-0000-0000-0000-000000000000"
	if _, err := e.repo.CreatePosition(ctx, e.bpm, "Clerk", &missing); !db.IsValidation(err) {
		t.Errorf("position with unknown grade: %v", err)
	}
}

func TestRejectRequiresReason(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	app := e.submitted(t, "Laptop", 1)
	_, err := e.repo.DecideLoanApplication(ctx, e.officer, app.ID, db.LoanDecision{Approve: false})
	var te *models.TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected transition error, got %v", err)
	}
	app, err = e.repo.DecideLoanApplication(ctx, e.officer, app.ID, db.LoanDecision{Approve: false, RejectionReason: "no budget"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if app.Status != models.LoanRejected || app.RejectionReason == nil || *app.RejectionReason != "no budget" {
		t.Errorf("rejected app = %+v", app)
	}
}

func TestApprovalSupersede(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	app := e.submitted(t, "Laptop", 1)
	ref := app.Ref()

	first, err := e.repo.RecordApproval(ctx, e.officer, db.ApprovalInput{Ref: ref, Stage: models.StageSupportReview, Status: models.ApprovalPending})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	again, err := e.repo.RecordApproval(ctx, e.officer, db.ApprovalInput{Ref: ref, Stage: models.StageSupportReview, Status: models.ApprovalApproved, Comments: "ok"})
	if err != nil {
		t.Fatalf("re-record: %v", err)
	}
	if again.ID != first.ID || again.ApprovalTimestamp == nil {
		t.Errorf("same officer should update in place: %+v", again)
	}

	other, err := e.repo.RecordApproval(ctx, e.bpm, db.ApprovalInput{Ref: ref, Stage: models.StageSupportReview, Status: models.ApprovalRejected})
	if err != nil {
		t.Fatalf("other officer: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("different officer should create a new approval")
	}

	current, err := e.repo.ListApprovals(ctx, ref, false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(current) != 1 || current[0].ID != other.ID {
		t.Errorf("current approvals = %+v", current)
	}
	all, err := e.repo.ListApprovals(ctx, ref, true)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 approvals with history, got %d", len(all))
	}
	for _, a := range all {
		if a.ID == first.ID && a.SupersededAt == nil {
			t.Error("first approval should be superseded")
		}
	}

	if _, err := e.repo.RecordApproval(ctx, e.officer, db.ApprovalInput{
		Ref: models.EmailApplicationRef{ID: "00000000-0000-0000-0000-000000000000"}, Stage: models.StageSupportReview, Status: models.ApprovalPending,
	}); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("approval for missing approvable: %v", err)
	}
}

func TestSweepOverdue(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	app := e.approved(t, "Laptop", 2, nil)
	e1 := e.equipment(t, "Laptop", "E1", "")
	e2 := e.equipment(t, "Laptop", "E2", "")
	txs := e.issue(t, app.ID, e1, e2)

	res, err := e.repo.SweepOverdue(ctx, e.bpm, app.LoanEndDate.Add(-time.Hour))
	if err != nil {
		t.Fatalf("early sweep: %v", err)
	}
	if res.Applications != 0 {
		t.Fatalf("sweep before end date marked %d applications", res.Applications)
	}

	res, err = e.repo.SweepOverdue(ctx, e.bpm, app.LoanEndDate.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if res.Applications != 1 || res.Transactions != 2 {
		t.Errorf("sweep result = %+v", res)
	}
	if got := e.appStatus(t, app.ID); got != models.LoanOverdue {
		t.Errorf("application status = %s, want overdue", got)
	}
	found, err := e.repo.FindTransaction(ctx, txs[0].ID)
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	if found.Status != models.TxOverdue || found.ReturnTimestamp != nil {
		t.Errorf("transaction = %s", found.Status)
	}

	lines := make([]db.ReturnLine, 0, len(txs))
	for _, tx := range txs {
		lines = append(lines, db.ReturnLine{TransactionID: tx.ID, Outcome: models.OutcomeReturned})
	}
	if _, err := e.repo.ReturnEquipment(ctx, e.bpm, db.ReturnInput{Lines: lines}); err != nil {
		t.Fatalf("return overdue units: %v", err)
	}
	if got := e.appStatus(t, app.ID); got != models.LoanReturned {
		t.Errorf("application status = %s, want returned", got)
	}
}

func TestCancelAfterIssueRefused(t *testing.T) {
	e := setupEnv(t)
	app := e.approved(t, "Laptop", 1, nil)
	e.issue(t, app.ID, e.equipment(t, "Laptop", "E1", ""))
	if _, err := e.repo.CancelLoanApplication(context.Background(), e.applicant, app.ID); !db.IsBusiness(err) {
		t.Fatalf("expected business error, got %v", err)
	}
}

func TestCancelByApplicantOrAdmin(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	first := e.submitted(t, "Laptop", 1)
	if _, err := e.repo.CancelLoanApplication(ctx, e.officer, first.ID); !db.IsBusiness(err) {
		t.Fatalf("cancel by another user: %v", err)
	}
	if st := e.appStatus(t, first.ID); st != models.LoanPendingSupport {
		t.Errorf("status after refused cancel = %s", st)
	}
	if _, err := e.repo.CancelLoanApplication(ctx, e.applicant, first.ID); err != nil {
		t.Fatalf("cancel by applicant: %v", err)
	}

	admin := testutil.Actor(testutil.SeedUser(t, e.repo.DB, "Admin User", db.UserRoles{IsAdmin: true}))
	second := e.submitted(t, "Laptop", 1)
	got, err := e.repo.CancelLoanApplication(ctx, admin, second.ID)
	if err != nil {
		t.Fatalf("cancel by admin: %v", err)
	}
	if got.Status != models.LoanCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
}

func TestDraftEditAndDelete(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	start := time.Now().UTC()
	app, err := e.repo.CreateLoanApplication(ctx, e.applicant, db.LoanApplicationInput{
		Purpose: "Audit", LoanStartDate: start, LoanEndDate: start.AddDate(0, 0, 1),
		Items: []db.LoanItemInput{{EquipmentType: "Laptop", QuantityRequested: 1}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.repo.UpdateLoanApplicationDraft(ctx, e.officer, app.ID, db.LoanApplicationInput{
		Purpose: "Hijack", LoanStartDate: start, LoanEndDate: start,
		Items: []db.LoanItemInput{{EquipmentType: "Laptop", QuantityRequested: 1}},
	}); !db.IsBusiness(err) {
		t.Errorf("edit by another user: %v", err)
	}
	updated, err := e.repo.UpdateLoanApplicationDraft(ctx, e.applicant, app.ID, db.LoanApplicationInput{
		Purpose: "Audit", LoanStartDate: start, LoanEndDate: start.AddDate(0, 0, 2),
		Items: []db.LoanItemInput{{EquipmentType: "Laptop", QuantityRequested: 1}, {EquipmentType: "Projector", QuantityRequested: 1}},
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	found, err := e.repo.FindLoanApplication(ctx, updated.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(found.Items) != 2 {
		t.Errorf("expected 2 items after edit, got %d", len(found.Items))
	}
	var replaced []models.LoanApplicationItem
	if err := e.repo.DB.Unscoped().Where("loan_application_id = ? AND deleted_at IS NOT NULL", app.ID).
		Find(&replaced).Error; err != nil {
		t.Fatalf("load replaced items: %v", err)
	}
	if len(replaced) != 1 {
		t.Fatalf("expected 1 replaced item, got %d", len(replaced))
	}
	if by := replaced[0].DeletedBy; by == nil || *by != e.applicant.UserID {
		t.Errorf("replaced item deleted_by = %v, want %s", by, e.applicant.UserID)
	}
	if err := e.repo.DeleteLoanApplication(ctx, e.applicant, app.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := e.repo.FindLoanApplication(ctx, app.ID); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("deleted application still visible: %v", err)
	}
}

func TestEmailApplicationWorkflow(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	a, err := e.repo.CreateEmailApplication(ctx, e.applicant, db.EmailApplicationInput{
		ServiceStatus: "permanent",
		ProposedEmail: "applicant.one@agency.gov",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.repo.StartEmailProvisioning(ctx, e.bpm, a.ID); !db.IsBusiness(err) {
		t.Errorf("provisioning a draft: %v", err)
	}
	if a, err = e.repo.SubmitEmailApplication(ctx, e.applicant, a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !a.Certified() || a.Status != models.EmailPendingSupport {
		t.Fatalf("submitted = %+v", a)
	}
	steps := []struct {
		actor models.Actor
		want  models.EmailApplicationStatus
	}{
		{e.officer, models.EmailPendingAdmin},
		{e.bpm, models.EmailApproved},
	}
	for _, s := range steps {
		a, err = e.repo.DecideEmailApplication(ctx, s.actor, a.ID, db.EmailDecision{Approve: true})
		if err != nil {
			t.Fatalf("decide: %v", err)
		}
		if a.Status != s.want {
			t.Fatalf("status = %s, want %s", a.Status, s.want)
		}
	}

	if _, err := e.repo.StartEmailProvisioning(ctx, e.bpm, a.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := e.repo.FailEmailProvisioning(ctx, e.bpm, a.ID, "directory timeout"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if _, err := e.repo.StartEmailProvisioning(ctx, e.bpm, a.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if _, err := e.repo.CompleteEmailProvisioning(ctx, e.bpm, a.ID, db.ProvisioningResult{}); !db.IsValidation(err) {
		t.Errorf("complete without result: %v", err)
	}
	a, err = e.repo.CompleteEmailProvisioning(ctx, e.bpm, a.ID, db.ProvisioningResult{
		FinalAssignedEmail:  "Applicant.One@agency.gov",
		FinalAssignedUserID: "aone",
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if a.Status != models.EmailCompleted || a.ProvisionedAt == nil || *a.FinalAssignedEmail != "applicant.one@agency.gov" {
		t.Errorf("completed = %+v", a)
	}

	found, err := e.repo.FindEmailApplication(ctx, a.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	stages := map[string]bool{}
	for _, ap := range found.Approvals {
		stages[ap.Stage] = true
	}
	if !stages[models.StageSupportReview] || !stages[models.StageAdminReview] {
		t.Errorf("approvals = %v", fmt.Sprint(stages))
	}
}

func TestEmailRejectionNeedsReason(t *testing.T) {
	e := setupEnv(t)
	ctx := context.Background()
	a, err := e.repo.CreateEmailApplication(ctx, e.applicant, db.EmailApplicationInput{ServiceStatus: "contract", ProposedEmail: "x@agency.gov"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.repo.SubmitEmailApplication(ctx, e.applicant, a.ID); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.repo.DecideEmailApplication(ctx, e.officer, a.ID, db.EmailDecision{}); !db.IsBusiness(err) {
		t.Errorf("reject without reason: %v", err)
	}
	a, err = e.repo.DecideEmailApplication(ctx, e.officer, a.ID, db.EmailDecision{RejectionReason: "existing account"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if a.Status != models.EmailRejected {
		t.Errorf("status = %s", a.Status)
	}
}
