package routes

import (
	"net/http"

	"Gin_postgres_redis_ict_loan/app"
	"Gin_postgres_redis_ict_loan/controllers"
	"Gin_postgres_redis_ict_loan/metrics"
	"Gin_postgres_redis_ict_loan/models"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	Register(r, controllers.GetSrv(a), a.Auth(), a.LastSeen())
}

// Register mounts every route; authMW must place the current user in the
// context.
func Register(r *gin.Engine, s *controllers.Srv, authMW, seenMW gin.HandlerFunc) {
	ec := controllers.GetEquipmentController(s)
	lac := controllers.GetLoanApplicationController(s)
	ltc := controllers.GetLoanTransactionController(s)
	ac := controllers.GetApprovalController(s)
	eac := controllers.GetEmailApplicationController(s)
	oc := controllers.GetOrgController(s)
	uc := controllers.GetUserController(s)

	adminMW := app.RequireRole(models.RoleAdmin)
	bpmMW := app.RequireRole(models.RoleBPM)
	approverMW := app.RequireRole(models.RoleApprover)

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api", authMW, seenMW)
	api.GET("/me", uc.Me)

	// ------------------------------
	// Equipment registry
	// ------------------------------
	equipment := api.Group("/equipment")
	{
		equipment.GET("", ec.List) // ?q=&assetType=&availability=&page=&size=
		equipment.GET("/options", ec.Options)
		equipment.GET("/available", ec.Available)
		equipment.GET("/export", bpmMW, ec.Export)
		equipment.GET("/:id", ec.Get)
		equipment.POST("", bpmMW, ec.Create)
		equipment.PATCH("/:id", bpmMW, ec.Update)
		equipment.DELETE("/:id", bpmMW, ec.Delete)
	}

	// ------------------------------
	// Loan applications
	// ------------------------------
	loans := api.Group("/loan-applications")
	{
		loans.GET("", lac.List)
		loans.POST("", lac.Create)
		loans.GET("/:id", lac.Get)
		loans.PUT("/:id", lac.Update)
		loans.DELETE("/:id", lac.Delete)
		loans.POST("/:id/submit", lac.Submit)
		loans.POST("/:id/cancel", lac.Cancel)
		loans.POST("/:id/decision", approverMW, lac.Decide)
		loans.POST("/:id/issue", bpmMW, ltc.Issue)
	}

	txs := api.Group("/loan-transactions", bpmMW)
	{
		txs.GET("", ltc.List) // ?applicationId=&equipmentId=&status=&open=true
		txs.GET("/:id", ltc.Get)
		txs.POST("/return", ltc.Return)
	}

	// ------------------------------
	// Approvals
	// ------------------------------
	approvals := api.Group("/approvals", approverMW)
	{
		approvals.GET("", ac.List)
		approvals.GET("/pending", ac.Pending)
		approvals.POST("", ac.Record)
	}

	// ------------------------------
	// Email applications
	// ------------------------------
	emails := api.Group("/email-applications")
	{
		emails.GET("", eac.List)
		emails.POST("", eac.Create)
		emails.GET("/:id", eac.Get)
		emails.PUT("/:id", eac.Update)
		emails.POST("/:id/submit", eac.Submit)
		emails.POST("/:id/decision", approverMW, eac.Decide)
		emails.POST("/:id/provisioning/start", adminMW, eac.StartProvisioning)
		emails.POST("/:id/provisioning/complete", adminMW, eac.CompleteProvisioning)
		emails.POST("/:id/provisioning/fail", adminMW, eac.FailProvisioning)
	}

	// ------------------------------
	// Reference data and users (admin only)
	// ------------------------------
	org := api.Group("/org")
	{
		org.GET("/departments", oc.ListDepartments)
		org.GET("/grades", oc.ListGrades)
		org.GET("/positions", oc.ListPositions)
		org.POST("/departments", adminMW, oc.CreateDepartment)
		org.DELETE("/departments/:id", adminMW, oc.DeleteDepartment)
		org.POST("/grades", adminMW, oc.CreateGrade)
		org.DELETE("/grades/:id", adminMW, oc.DeleteGrade)
		org.POST("/positions", adminMW, oc.CreatePosition)
		org.DELETE("/positions/:id", adminMW, oc.DeletePosition)
	}

	users := api.Group("/users", adminMW)
	{
		users.GET("", uc.ListUsers) // ?q=&page=&size=
		users.POST("", uc.CreateUser)
		users.GET("/:id", uc.GetUser)
		users.PUT("/:id/roles", uc.SetRoles)
		users.DELETE("/:id", uc.DeleteUser)
	}

	adminLoans := api.Group("/admin/loans", bpmMW)
	{
		adminLoans.POST("/sweep-overdue", ltc.SweepOverdue)
	}
}
