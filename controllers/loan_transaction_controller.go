package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_ict_loan/app"
	"Gin_postgres_redis_ict_loan/db"
	"Gin_postgres_redis_ict_loan/metrics"
	"Gin_postgres_redis_ict_loan/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoanTransactionController struct {
	srv *Srv
}

func GetLoanTransactionController(s *Srv) *LoanTransactionController {
	return &LoanTransactionController{srv: s}
}

type issueRequest struct {
	EquipmentIDs       []string          `json:"equipmentIds" binding:"required,min=1,dive,uuid"`
	ReceivingOfficerID *string           `json:"receivingOfficerId" binding:"omitempty,uuid"`
	Checklist          map[string]string `json:"accessoriesChecklist"`
	Notes              string            `json:"notes"`
}

// POST /api/loan-applications/:id/issue
func (tc *LoanTransactionController) Issue(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req issueRequest
	if !bind(c, &req) {
		return
	}
	txs, err := tc.srv.Repo.IssueEquipment(c.Request.Context(), app.ActorFrom(c), db.IssueInput{
		ApplicationID:      id,
		EquipmentIDs:       req.EquipmentIDs,
		ReceivingOfficerID: req.ReceivingOfficerID,
		Checklist:          models.Checklist(req.Checklist),
		Notes:              req.Notes,
	})
	if err != nil {
		tc.srv.fail(c, err, "loan application", id, req)
		return
	}
	metrics.RecordIssued(len(txs))

	if a, err := tc.srv.Repo.FindLoanApplication(c.Request.Context(), id); err == nil {
		tags := make([]string, 0, len(txs))
		for _, t := range txs {
			if t.Equipment != nil {
				tags = append(tags, t.Equipment.TagID)
			}
		}
		tc.srv.notifyUser(c.Request.Context(), a.ApplicantID, "Equipment issued",
			fmt.Sprintf("The following equipment was issued for %q: %s. Please return it by %s.",
				a.Purpose, strings.Join(tags, ", "), a.LoanEndDate.Format(dateLayout)),
			zap.String("loan_application_id", id))
	}
	c.JSON(http.StatusCreated, app.H{"transactions": txs})
}

type returnLineRequest struct {
	TransactionID string                    `json:"transactionId" binding:"required,uuid"`
	Outcome       models.ReturnOutcome      `json:"outcome" binding:"required"`
	Checklist     map[string]string         `json:"accessoriesChecklist"`
	Notes         string                    `json:"notes"`
	Condition     models.EquipmentCondition `json:"condition"`
}

type returnRequest struct {
	ReturningOfficerID *string             `json:"returningOfficerId" binding:"omitempty,uuid"`
	Lines              []returnLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// POST /api/loan-transactions/return
func (tc *LoanTransactionController) Return(c *gin.Context) {
	var req returnRequest
	if !bind(c, &req) {
		return
	}
	in := db.ReturnInput{ReturningOfficerID: req.ReturningOfficerID}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, db.ReturnLine{
			TransactionID: l.TransactionID,
			Outcome:       l.Outcome,
			Checklist:     models.Checklist(l.Checklist),
			Notes:         l.Notes,
			Condition:     l.Condition,
		})
	}
	txs, err := tc.srv.Repo.ReturnEquipment(c.Request.Context(), app.ActorFrom(c), in)
	if err != nil {
		tc.srv.fail(c, err, "loan transaction", "", req)
		return
	}
	for _, t := range txs {
		metrics.RecordReturned(string(t.Status))
	}
	c.JSON(http.StatusOK, app.H{"transactions": txs})
}

// GET /api/loan-transactions?applicationId=&equipmentId=&status=&open=true
func (tc *LoanTransactionController) List(c *gin.Context) {
	if !queryIDs(c, "applicationId", "equipmentId") {
		return
	}
	q := db.TransactionQuery{
		ApplicationID: c.Query("applicationId"),
		EquipmentID:   c.Query("equipmentId"),
		Status:        models.TransactionStatus(c.Query("status")),
		OpenOnly:      c.Query("open") == "true",
		PageQuery:     pageQuery(c),
	}
	if q.Status != "" && !q.Status.Valid() {
		c.JSON(http.StatusUnprocessableEntity, app.H{"error": "validation failed", "fields": app.H{"status": "is not a known status"}})
		return
	}
	res, err := tc.srv.Repo.ListTransactions(c.Request.Context(), q)
	if err != nil {
		tc.srv.fail(c, err, "loan transaction", "", q)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (tc *LoanTransactionController) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	t, err := tc.srv.Repo.FindTransaction(c.Request.Context(), id)
	if err != nil {
		tc.srv.fail(c, err, "loan transaction", id, nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"transaction": t})
}

type sweepRequest struct {
	// AsOf overrides the sweep instant, RFC3339.
	AsOf string `json:"asOf"`
}

// POST /api/admin/loans/sweep-overdue
func (tc *LoanTransactionController) SweepOverdue(c *gin.Context) {
	var req sweepRequest
	if c.Request.ContentLength > 0 && !bind(c, &req) {
		return
	}
	now := time.Now().UTC()
	if req.AsOf != "" {
		t, err := time.Parse(time.RFC3339, req.AsOf)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, app.H{"error": "validation failed", "fields": app.H{"asOf": "must be an RFC3339 timestamp"}})
			return
		}
		now = t
	}
	res, err := tc.srv.Repo.SweepOverdue(c.Request.Context(), app.ActorFrom(c), now)
	if err != nil {
		tc.srv.fail(c, err, "loan application", "", req)
		return
	}
	metrics.RecordOverdueSweep(res.Applications, res.Transactions)
	tc.srv.Log.Info("overdue sweep",
		zap.String("actor_id", c.GetString(app.UserIDKey)),
		zap.Time("as_of", now),
		zap.Int("applications", res.Applications),
		zap.Int("transactions", res.Transactions),
	)
	c.JSON(http.StatusOK, res)
}
