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

type EmailApplicationController struct {
	srv *Srv
}

func GetEmailApplicationController(s *Srv) *EmailApplicationController {
	return &EmailApplicationController{srv: s}
}

type emailApplicationRequest struct {
	ServiceStatus       string  `json:"serviceStatus" binding:"required"`
	Purpose             string  `json:"purpose"`
	ProposedEmail       string  `json:"proposedEmail" binding:"omitempty,email"`
	GroupEmail          string  `json:"groupEmail" binding:"omitempty,email"`
	GroupAdminName      string  `json:"groupAdminName"`
	GroupAdminEmail     string  `json:"groupAdminEmail" binding:"omitempty,email"`
	SupportingOfficerID *string `json:"supportingOfficerId" binding:"omitempty,uuid"`
}

func (r emailApplicationRequest) input() db.EmailApplicationInput {
	return db.EmailApplicationInput{
		ServiceStatus:       r.ServiceStatus,
		Purpose:             r.Purpose,
		ProposedEmail:       r.ProposedEmail,
		GroupEmail:          r.GroupEmail,
		GroupAdminName:      r.GroupAdminName,
		GroupAdminEmail:     r.GroupAdminEmail,
		SupportingOfficerID: r.SupportingOfficerID,
	}
}

// GET /api/email-applications?status=&mine=true
func (ec *EmailApplicationController) List(c *gin.Context) {
	if !queryIDs(c, "applicantId") {
		return
	}
	u := app.CurrentUser(c)
	q := db.EmailApplicationQuery{
		Status:    models.EmailApplicationStatus(c.Query("status")),
		PageQuery: pageQuery(c),
	}
	staff := u.HasRole(models.RoleApprover) || u.HasRole(models.RoleAdmin)
	if !staff || c.Query("mine") == "true" {
		q.ApplicantID = u.ID
	} else {
		q.ApplicantID = c.Query("applicantId")
	}
	if q.Status != "" && !q.Status.Valid() {
		c.JSON(http.StatusUnprocessableEntity, app.H{"error": "validation failed", "fields": app.H{"status": "is not a known status"}})
		return
	}
	res, err := ec.srv.Repo.ListEmailApplications(c.Request.Context(), q)
	if err != nil {
		ec.srv.fail(c, err, "email application", "", q)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (ec *EmailApplicationController) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := ec.srv.Repo.FindEmailApplication(c.Request.Context(), id)
	if err != nil {
		ec.srv.fail(c, err, "email application", id, nil)
		return
	}
	u := app.CurrentUser(c)
	if u == nil || (u.ID != a.ApplicantID && !u.HasRole(models.RoleApprover)) {
		c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
		return
	}
	c.JSON(http.StatusOK, app.H{"application": a})
}

func (ec *EmailApplicationController) Create(c *gin.Context) {
	var req emailApplicationRequest
	if !bind(c, &req) {
		return
	}
	a, err := ec.srv.Repo.CreateEmailApplication(c.Request.Context(), app.ActorFrom(c), req.input())
	if err != nil {
		ec.srv.fail(c, err, "email application", "", req)
		return
	}
	c.JSON(http.StatusCreated, app.H{"application": a})
}

func (ec *EmailApplicationController) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req emailApplicationRequest
	if !bind(c, &req) {
		return
	}
	a, err := ec.srv.Repo.UpdateEmailApplicationDraft(c.Request.Context(), app.ActorFrom(c), id, req.input())
	if err != nil {
		ec.srv.fail(c, err, "email application", id, req)
		return
	}
	c.JSON(http.StatusOK, app.H{"application": a})
}

func (ec *EmailApplicationController) Submit(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := ec.srv.Repo.SubmitEmailApplication(c.Request.Context(), app.ActorFrom(c), id)
	if err != nil {
		ec.srv.fail(c, err, "email application", id, nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"application": a})
}

type emailDecisionRequest struct {
	Decision        string `json:"decision" binding:"required,oneof=approve reject"`
	Comments        string `json:"comments"`
	RejectionReason string `json:"rejectionReason"`
}

// POST /api/email-applications/:id/decision
func (ec *EmailApplicationController) Decide(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req emailDecisionRequest
	if !bind(c, &req) {
		return
	}
	a, err := ec.srv.Repo.DecideEmailApplication(c.Request.Context(), app.ActorFrom(c), id, db.EmailDecision{
		Approve:         req.Decision == "approve",
		Comments:        req.Comments,
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		ec.srv.fail(c, err, "email application", id, req)
		return
	}
	metrics.RecordDecision(string(models.KindEmailApplication), string(a.Status))
	c.JSON(http.StatusOK, app.H{"application": a})
}

// POST /api/email-applications/:id/provisioning/start
func (ec *EmailApplicationController) StartProvisioning(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	a, err := ec.srv.Repo.StartEmailProvisioning(c.Request.Context(), app.ActorFrom(c), id)
	if err != nil {
		ec.srv.fail(c, err, "email application", id, nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"application": a})
}

type provisioningCompleteRequest struct {
	FinalAssignedEmail  string `json:"finalAssignedEmail" binding:"required,email"`
	FinalAssignedUserID string `json:"finalAssignedUserId" binding:"required"`
	Notes               string `json:"notes"`
}

// POST /api/email-applications/:id/provisioning/complete
func (ec *EmailApplicationController) CompleteProvisioning(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req provisioningCompleteRequest
	if !bind(c, &req) {
		return
	}
	a, err := ec.srv.Repo.CompleteEmailProvisioning(c.Request.Context(), app.ActorFrom(c), id, db.ProvisioningResult{
		FinalAssignedEmail:  req.FinalAssignedEmail,
		FinalAssignedUserID: req.FinalAssignedUserID,
		Notes:               req.Notes,
	})
	if err != nil {
		ec.srv.fail(c, err, "email application", id, req)
		return
	}
	ec.srv.notifyUser(c.Request.Context(), a.ApplicantID, "Email account ready",
		fmt.Sprintf("Your email account %s (user id %s) has been provisioned.", *a.FinalAssignedEmail, *a.FinalAssignedUserID),
		zap.String("email_application_id", a.ID))
	c.JSON(http.StatusOK, app.H{"application": a})
}

type provisioningFailedRequest struct {
	Notes string `json:"notes" binding:"required"`
}

// POST /api/email-applications/:id/provisioning/fail
func (ec *EmailApplicationController) FailProvisioning(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req provisioningFailedRequest
	if !bind(c, &req) {
		return
	}
	a, err := ec.srv.Repo.FailEmailProvisioning(c.Request.Context(), app.ActorFrom(c), id, req.Notes)
	if err != nil {
		ec.srv.fail(c, err, "email application", id, req)
		return
	}
	c.JSON(http.StatusOK, app.H{"application": a})
}
