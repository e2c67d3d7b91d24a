package controllers

import (
	"fmt"
	"net/http"

	"Gin_postgres_redis_ict_loan/app"
	"Gin_postgres_redis_ict_loan/db"
	"Gin_postgres_redis_ict_loan/metrics"
	"Gin_postgres_redis_ict_loan/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type LoanApplicationController struct {
	srv *Srv
}

func GetLoanApplicationController(s *Srv) *LoanApplicationController {
	return &LoanApplicationController{srv: s}
}

type loanItemRequest struct {
	EquipmentType     string `json:"equipmentType" binding:"required"`
	QuantityRequested int    `json:"quantityRequested" binding:"required,min=1"`
	Notes             string `json:"notes"`
}

type loanApplicationRequest struct {
	ResponsibleOfficerID *string           `json:"responsibleOfficerId" binding:"omitempty,uuid"`
	Purpose              string            `json:"purpose" binding:"required"`
	Location             string            `json:"location"`
	LoanStartDate        string            `json:"loanStartDate" binding:"required"`
	LoanEndDate          string            `json:"loanEndDate"`
	Items                []loanItemRequest `json:"items" binding:"required,min=1,dive"`
}

// toInput parses dates; a missing end date defaults to the configured loan
// length.
func (lc *LoanApplicationController) toInput(c *gin.Context, req loanApplicationRequest) (db.LoanApplicationInput, bool) {
	dates := dateFields{}
	start := dates.parse("loanStartDate", req.LoanStartDate)
	end := dates.parse("loanEndDate", req.LoanEndDate)
	if dates.respond(c) {
		return db.LoanApplicationInput{}, false
	}
	in := db.LoanApplicationInput{
		ResponsibleOfficerID: req.ResponsibleOfficerID,
		Purpose:              req.Purpose,
		Location:             req.Location,
	}
	if start != nil {
		in.LoanStartDate = *start
	}
	if end != nil {
		in.LoanEndDate = *end
	} else if start != nil && lc.srv.Cfg != nil && lc.srv.Cfg.Loan.DefaultLoanDays > 0 {
		in.LoanEndDate = start.AddDate(0, 0, lc.srv.Cfg.Loan.DefaultLoanDays)
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, db.LoanItemInput{
			EquipmentType:     it.EquipmentType,
			QuantityRequested: it.QuantityRequested,
			Notes:             it.Notes,
		})
	}
	return in, true
}

// canView lets the applicant and staff roles see an application.
func canView(u *models.User, applicantID string) bool {
	if u == nil {
		return false
	}
	return u.ID == applicantID || u.HasRole(models.RoleBPM) || u.HasRole(models.RoleApprover)
}

// GET /api/loan-applications?status=&applicantId=&mine=true
func (lc *LoanApplicationController) List(c *gin.Context) {
	if !queryIDs(c, "applicantId") {
		return
	}
	u := app.CurrentUser(c)
	q := db.LoanApplicationQuery{
		Status:    models.LoanApplicationStatus(c.Query("status")),
		PageQuery: pageQuery(c),
	}
	staff := u.HasRole(models.RoleBPM) || u.HasRole(models.RoleApprover)
	switch {
	case !staff || c.Query("mine") == "true":
		q.ApplicantID = u.ID
	default:
		q.ApplicantID = c.Query("applicantId")
	}
	if q.Status != "" && !q.Status.Valid() {
		c.JSON(http.StatusUnprocessableEntity, app.H{"error": "validation failed", "fields": app.H{"status": "is not a known status"}})
		return
	}
	res, err := lc.srv.Repo.ListLoanApplications(c.Request.Context(), q)
	if err != nil {
		lc.srv.fail(c, err, "loan application", "", q)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (lc *LoanApplicationController) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := lc.srv.Repo.FindLoanApplication(c.Request.Context(), id)
	if err != nil {
		lc.srv.fail(c, err, "loan application", id, nil)
		return
	}
	if !canView(app.CurrentUser(c), a.ApplicantID) {
		c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, app.H{"application": a})
}

// POST /api/loan-applications
func (lc *LoanApplicationController) Create(c *gin.Context) {
	var req loanApplicationRequest
	if !bind(c, &req) {
		return
	}
	in, ok := lc.toInput(c, req)
	if !ok {
		return
	}
	a, err := lc.srv.Repo.CreateLoanApplication(c.Request.Context(), app.ActorFrom(c), in)
	if err != nil {
		lc.srv.fail(c, err, "loan application", "", req)
		return
	}
	c.JSON(http.StatusCreated, app.H{"application": a})
}

// PUT /api/loan-applications/:id
func (lc *LoanApplicationController) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req loanApplicationRequest
	if !bind(c, &req) {
		return
	}
	in, ok := lc.toInput(c, req)
	if !ok {
		return
	}
	a, err := lc.srv.Repo.UpdateLoanApplicationDraft(c.Request.Context(), app.ActorFrom(c), id, in)
	if err != nil {
		lc.srv.fail(c, err, "loan application", id, req)
		return
	}
	c.JSON(http.StatusOK, app.H{"application": a})
}

// POST /api/loan-applications/:id/submit
func (lc *LoanApplicationController) Submit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := lc.srv.Repo.SubmitLoanApplication(c.Request.Context(), app.ActorFrom(c), id)
	if err != nil {
		lc.srv.fail(c, err, "loan application", id, nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"application": a})
}

type loanDecisionRequest struct {
	Decision           string         `json:"decision" binding:"required,oneof=approve reject"`
	Stage              string         `json:"stage"`
	Comments           string         `json:"comments"`
	RejectionReason    string         `json:"rejectionReason"`
	ApprovedQuantities map[string]int `json:"approvedQuantities"`
}

// POST /api/loan-applications/:id/decision
func (lc *LoanApplicationController) Decide(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req loanDecisionRequest
	if !bind(c, &req) {
		return
	}
	a, err := lc.srv.Repo.DecideLoanApplication(c.Request.Context(), app.ActorFrom(c), id, db.LoanDecision{
		Stage:              req.Stage,
		Approve:            req.Decision == "approve",
		Comments:           req.Comments,
		RejectionReason:    req.RejectionReason,
		ApprovedQuantities: req.ApprovedQuantities,
	})
	if err != nil {
		lc.srv.fail(c, err, "loan application", id, req)
		return
	}
	metrics.RecordDecision(string(models.KindLoanApplication), string(a.Status))
	lc.srv.notifyUser(c.Request.Context(), a.ApplicantID, fmt.Sprintf("Loan application %s", a.Status),
		fmt.Sprintf("Your loan application for %q is now %s.", a.Purpose, a.Status),
		zap.String("loan_application_id", a.ID))
	c.JSON(http.StatusOK, app.H{"application": a})
}

// POST /api/loan-applications/:id/cancel
func (lc *LoanApplicationController) Cancel(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := lc.srv.Repo.CancelLoanApplication(c.Request.Context(), app.ActorFrom(c), id)
	if err != nil {
		lc.srv.fail(c, err, "loan application", id, nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"application": a})
}

// DELETE /api/loan-applications/:id
func (lc *LoanApplicationController) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := lc.srv.Repo.DeleteLoanApplication(c.Request.Context(), app.ActorFrom(c), id); err != nil {
		lc.srv.fail(c, err, "loan application", id, nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
