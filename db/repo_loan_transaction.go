package db

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"Gin_postgres_redis_ict_loan/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IssueInput struct {
	ApplicationID      string
	EquipmentIDs       []string
	ReceivingOfficerID *string
	Checklist          models.Checklist
	Notes              string
}

// dedupe trims, drops blanks and sorts, so rows are always locked in the
// same order.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IssueEquipment hands out units against an approved application. Every
// unit is issued or none is.
func (r *Repo) IssueEquipment(ctx context.Context, actor models.Actor, in IssueInput) ([]models.LoanTransaction, error) {
	if !actor.Valid() {
		return nil, businessf("an issuing officer is required")
	}
	ids := dedupe(in.EquipmentIDs)
	if len(ids) == 0 {
		return nil, &ValidationError{Fields: map[string]string{"equipmentIds": "select at least one equipment unit"}}
	}
	checklist := in.Checklist.Normalize()

	var created []models.LoanTransaction
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		app, err := lockApplication(tx, in.ApplicationID)
		if err != nil {
			return err
		}
		if !app.Status.Issuable() {
			return businessf("application is %s; equipment can only be issued once it is approved", app.Status)
		}
		if !app.Certified() {
			return businessf("application has not been confirmed by the applicant")
		}
		approved, err := hasApprovedApproval(tx, app.Ref())
		if err != nil {
			return err
		}
		if !approved {
			return businessf("application has no approved approval")
		}

		var units []models.Equipment
		if err := forUpdate(tx).Where("id IN ?", ids).Order("id").Find(&units).Error; err != nil {
			return err
		}
		if len(units) != len(ids) {
			found := make(map[string]bool, len(units))
			for _, u := range units {
				found[u.ID] = true
			}
			for _, id := range ids {
				if !found[id] {
					return notFound("equipment", id)
				}
			}
		}
		var unavailable []string
		for _, u := range units {
			if u.AvailabilityStatus != models.AvailabilityAvailable {
				unavailable = append(unavailable, fmt.Sprintf("%s (%s)", u.TagID, u.AvailabilityStatus))
			}
		}
		if len(unavailable) > 0 {
			return &ValidationError{Fields: map[string]string{
				"equipmentIds": "not available: " + strings.Join(unavailable, ", "),
			}}
		}

		issuedPerItem, total, err := issuedCounts(tx, app.ID)
		if err != nil {
			return err
		}
		itemFor := make(map[string]*models.LoanApplicationItem, len(units))
		for _, u := range units {
			item := app.ItemForType(u.AssetType)
			if item == nil || item.QuantityApproved == nil || *item.QuantityApproved == 0 {
				return businessf("equipment %s is a %s, which this application has no approved quantity for", u.TagID, u.AssetType)
			}
			issuedPerItem[item.ID]++
			if issuedPerItem[item.ID] > *item.QuantityApproved {
				return businessf("issuing %s exceeds the approved quantity of %d for %s", u.TagID, *item.QuantityApproved, item.EquipmentType)
			}
			itemFor[u.ID] = item
		}
		total += len(units)
		if total > app.ApprovedQuantity() {
			return businessf("issuing %d more units exceeds the %d approved", len(units), app.ApprovedQuantity())
		}

		now := r.now()
		for _, u := range units {
			res := tx.Model(&models.Equipment{}).
				Where("id = ? AND availability_status = ?", u.ID, models.AvailabilityAvailable).
				Updates(map[string]any{
					"availability_status": models.AvailabilityOnLoan,
					"updated_by":          actor.UserID,
					"updated_at":          now,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected != 1 {
				return businessf("equipment %s is no longer available", u.TagID)
			}

			unit := u
			unit.AvailabilityStatus = models.AvailabilityOnLoan
			itemID := itemFor[u.ID].ID
			issuer := actor.UserID
			t := models.LoanTransaction{
				ID:                          uuid.NewString(),
				LoanApplicationID:           app.ID,
				LoanApplicationItemID:       &itemID,
				EquipmentID:                 &unit.ID,
				IssuingOfficerID:            &issuer,
				ReceivingOfficerID:          in.ReceivingOfficerID,
				AccessoriesChecklistOnIssue: checklist,
				IssueTimestamp:              &now,
				IssueNotes:                  in.Notes,
				Status:                      models.TxIssued,
			}
			t.StampCreate(actor)
			if err := tx.Omit("Equipment").Create(&t).Error; err != nil {
				return err
			}
			t.Equipment = &unit
			created = append(created, t)
		}

		next := models.IssueStatus(total, app.ApprovedQuantity())
		if next != app.Status {
			if err := models.ValidateLoanTransition(app.Status, next, models.LoanTransitionContext{
				Certified:           app.Certified(),
				HasApprovedApproval: approved,
				ApprovedQuantity:    app.ApprovedQuantity(),
				TransactionCount:    total,
			}); err != nil {
				return err
			}
			app.Status = next
		}
		app.StampUpdate(actor)
		return tx.Omit("Items", "Transactions").Save(app).Error
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// issuedCounts counts every transaction ever created for the application,
// per item and in total.
func issuedCounts(tx *gorm.DB, appID string) (map[string]int, int, error) {
	var rows []struct {
		LoanApplicationItemID *string
		N                     int
	}
	if err := tx.Unscoped().Model(&models.LoanTransaction{}).
		Select("loan_application_item_id, COUNT(*) AS n").
		Where("loan_application_id = ?", appID).
		Group("loan_application_item_id").
		Scan(&rows).Error; err != nil {
		return nil, 0, err
	}
	per := map[string]int{}
	total := 0
	for _, row := range rows {
		if row.LoanApplicationItemID != nil {
			per[*row.LoanApplicationItemID] += row.N
		}
		total += row.N
	}
	return per, total, nil
}

type ReturnLine struct {
	TransactionID string
	Outcome       models.ReturnOutcome
	Checklist     models.Checklist
	Notes         string
	// Condition optionally records the unit's condition as assessed on return.
	Condition models.EquipmentCondition
}

type ReturnInput struct {
	ReturningOfficerID *string
	Lines              []ReturnLine
}

func (in *ReturnInput) validate() error {
	fe := fieldErrors{}
	if len(in.Lines) == 0 {
		fe.add("lines", "select at least one transaction")
	}
	seen := map[string]bool{}
	for i, l := range in.Lines {
		key := fmt.Sprintf("lines[%d]", i)
		if strings.TrimSpace(l.TransactionID) == "" {
			fe.add(key+".transactionId", "is required")
		} else if seen[l.TransactionID] {
			fe.add(key+".transactionId", "is listed more than once")
		}
		seen[l.TransactionID] = true
		if !l.Outcome.Valid() {
			fe.add(key+".outcome", "must be returned, damaged or lost")
		}
		if l.Condition != "" && !l.Condition.Valid() {
			fe.add(key+".condition", "is not a known condition status")
		}
	}
	return fe.err()
}

// ReturnEquipment closes open transactions and flips each unit's
// availability to match the recorded outcome, all in one transaction.
func (r *Repo) ReturnEquipment(ctx context.Context, actor models.Actor, in ReturnInput) ([]models.LoanTransaction, error) {
	if !actor.Valid() {
		return nil, businessf("an accepting officer is required")
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	lines := make(map[string]ReturnLine, len(in.Lines))
	ids := make([]string, 0, len(in.Lines))
	for _, l := range in.Lines {
		l.TransactionID = strings.TrimSpace(l.TransactionID)
		lines[l.TransactionID] = l
		ids = append(ids, l.TransactionID)
	}
	ids = dedupe(ids)

	var closed []models.LoanTransaction
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var txs []models.LoanTransaction
		if err := forUpdate(tx).Where("id IN ?", ids).Order("id").Find(&txs).Error; err != nil {
			return err
		}
		if len(txs) != len(ids) {
			found := make(map[string]bool, len(txs))
			for _, t := range txs {
				found[t.ID] = true
			}
			for _, id := range ids {
				if !found[id] {
					return notFound("loan transaction", id)
				}
			}
		}

		now := r.now()
		accepting := actor.UserID
		apps := map[string]bool{}
		for i := range txs {
			t := &txs[i]
			l := lines[t.ID]
			next := l.Outcome.TransactionStatus()
			if !t.Status.Open() || !t.Status.CanTransition(next) {
				return businessf("loan transaction %s is already %s", t.ID, t.Status)
			}
			t.Status = next
			t.ReturnTimestamp = &now
			t.ReturningOfficerID = in.ReturningOfficerID
			t.ReturnAcceptingOfficerID = &accepting
			t.AccessoriesChecklistOnReturn = l.Checklist.Normalize()
			t.ReturnNotes = l.Notes
			t.StampUpdate(actor)
			if err := t.CheckInvariant(); err != nil {
				return err
			}
			if err := tx.Omit("Equipment").Save(t).Error; err != nil {
				return err
			}

			if t.EquipmentID != nil {
				var unit models.Equipment
				if err := forUpdate(tx).Unscoped().First(&unit, "id = ?", *t.EquipmentID).Error; err != nil {
					return translate(err, "equipment", *t.EquipmentID)
				}
				unit.AvailabilityStatus = l.Outcome.Availability()
				switch {
				case l.Condition != "":
					unit.ConditionStatus = l.Condition
				case l.Outcome == models.OutcomeLost:
					unit.ConditionStatus = models.ConditionLost
				}
				unit.StampUpdate(actor)
				if err := tx.Unscoped().Save(&unit).Error; err != nil {
					return err
				}
				t.Equipment = &unit
			}
			apps[t.LoanApplicationID] = true
		}

		appIDs := make([]string, 0, len(apps))
		for id := range apps {
			appIDs = append(appIDs, id)
		}
		sort.Strings(appIDs)
		for _, appID := range appIDs {
			if err := settleApplication(tx, actor, appID); err != nil {
				return err
			}
		}
		closed = txs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

// settleApplication moves the application to returned once none of its
// transactions remain open.
func settleApplication(tx *gorm.DB, actor models.Actor, appID string) error {
	var app models.LoanApplication
	if err := forUpdate(tx).First(&app, "id = ?", appID).Error; err != nil {
		return translate(err, "loan application", appID)
	}
	var open int64
	if err := tx.Model(&models.LoanTransaction{}).
		Where("loan_application_id = ? AND return_timestamp IS NULL", appID).
		Count(&open).Error; err != nil {
		return err
	}
	if open > 0 || app.Status == models.LoanReturned {
		return nil
	}
	if err := models.ValidateLoanTransition(app.Status, models.LoanReturned, models.LoanTransitionContext{}); err != nil {
		return err
	}
	app.Status = models.LoanReturned
	app.StampUpdate(actor)
	return tx.Omit("Items", "Transactions").Save(&app).Error
}

type SweepResult struct {
	Applications int `json:"applications"`
	Transactions int `json:"transactions"`
}

// SweepOverdue marks issued applications past their end date, and their open
// transactions, as overdue. It runs only when invoked.
func (r *Repo) SweepOverdue(ctx context.Context, actor models.Actor, now time.Time) (*SweepResult, error) {
	res := &SweepResult{}
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var apps []models.LoanApplication
		if err := forUpdate(tx).
			Where("status IN ? AND loan_end_date < ?",
				[]models.LoanApplicationStatus{models.LoanIssued, models.LoanPartiallyIssued}, now).
			Order("id").
			Find(&apps).Error; err != nil {
			return err
		}
		for i := range apps {
			app := &apps[i]
			if err := models.ValidateLoanTransition(app.Status, models.LoanOverdue, models.LoanTransitionContext{}); err != nil {
				return err
			}
			upd := tx.Model(&models.LoanTransaction{}).
				Where("loan_application_id = ? AND status = ?", app.ID, models.TxIssued).
				Updates(map[string]any{"status": models.TxOverdue, "updated_by": actor.UserID, "updated_at": now})
			if upd.Error != nil {
				return upd.Error
			}
			res.Transactions += int(upd.RowsAffected)
			app.Status = models.LoanOverdue
			app.StampUpdate(actor)
			if err := tx.Omit("Items", "Transactions").Save(app).Error; err != nil {
				return err
			}
			res.Applications++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

type TransactionQuery struct {
	ApplicationID string
	EquipmentID   string
	Status        models.TransactionStatus
	OpenOnly      bool
	PageQuery
}

func (r *Repo) ListTransactions(ctx context.Context, q TransactionQuery) (*Paged[models.LoanTransaction], error) {
	offset, limit := q.normalize()
	tx := r.DB.WithContext(ctx).Model(&models.LoanTransaction{})
	if q.ApplicationID != "" {
		tx = tx.Where("loan_application_id = ?", q.ApplicationID)
	}
	if q.EquipmentID != "" {
		tx = tx.Where("equipment_id = ?", q.EquipmentID)
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.OpenOnly {
		tx = tx.Where("return_timestamp IS NULL")
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}
	var items []models.LoanTransaction
	if err := tx.Preload("Equipment", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("issue_timestamp DESC").
		Offset(offset).
		Limit(limit).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return &Paged[models.LoanTransaction]{Total: total, Items: items}, nil
}

func (r *Repo) FindTransaction(ctx context.Context, id string) (*models.LoanTransaction, error) {
	var t models.LoanTransaction
	err := r.DB.WithContext(ctx).
		Preload("Equipment", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		First(&t, "id = ?", id).Error
	if err != nil {
		return nil, translate(err, "loan transaction", id)
	}
	return &t, nil
}
