package controllers

import (
	"net/http"

	"Gin_postgres_redis_ict_loan/app"
	"Gin_postgres_redis_ict_loan/db"
	"Gin_postgres_redis_ict_loan/models"

	"github.com/gin-gonic/gin"
)

type ApprovalController struct {
	srv *Srv
}

func GetApprovalController(s *Srv) *ApprovalController {
	return &ApprovalController{srv: s}
}

type approvalRequest struct {
	ApprovableType models.ApprovableKind `json:"approvableType" binding:"required"`
	ApprovableID   string                `json:"approvableId" binding:"required,uuid"`
	Stage          string                `json:"stage" binding:"required"`
	Status         models.ApprovalStatus `json:"status" binding:"required"`
	Comments       string                `json:"comments"`
}

// POST /api/approvals records a stage decision without moving the
// application's own status.
func (ac *ApprovalController) Record(c *gin.Context) {
	var req approvalRequest
	if !bind(c, &req) {
		return
	}
	ref, err := models.ParseApprovableRef(req.ApprovableType, req.ApprovableID)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, app.H{"error": "validation failed", "fields": app.H{"approvableType": err.Error()}})
		return
	}
	a, err := ac.srv.Repo.RecordApproval(c.Request.Context(), app.ActorFrom(c), db.ApprovalInput{
		Ref:      ref,
		Stage:    req.Stage,
		Status:   req.Status,
		Comments: req.Comments,
	})
	if err != nil {
		ac.srv.fail(c, err, string(req.ApprovableType), req.ApprovableID, req)
		return
	}
	c.JSON(http.StatusOK, app.H{"approval": a})
}

// GET /api/approvals?approvableType=&approvableId=&all=true
func (ac *ApprovalController) List(c *gin.Context) {
	if !queryIDs(c, "approvableId") {
		return
	}
	ref, err := models.ParseApprovableRef(models.ApprovableKind(c.Query("approvableType")), c.Query("approvableId"))
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, app.H{"error": "validation failed", "fields": app.H{"approvableType": err.Error()}})
		return
	}
	items, err := ac.srv.Repo.ListApprovals(c.Request.Context(), ref, c.Query("all") == "true")
	if err != nil {
		ac.srv.fail(c, err, string(ref.Kind()), ref.RefID(), nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}

// GET /api/approvals/pending lists the caller's undecided approvals.
func (ac *ApprovalController) Pending(c *gin.Context) {
	items, err := ac.srv.Repo.ListPendingApprovalsForOfficer(c.Request.Context(), c.GetString(app.UserIDKey))
	if err != nil {
		ac.srv.fail(c, err, "approval", "", nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}
