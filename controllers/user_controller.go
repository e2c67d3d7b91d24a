package controllers

import (
	"net/http"
	"strings"

	"Gin_postgres_redis_ict_loan/app"
	"Gin_postgres_redis_ict_loan/db"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type UserController struct {
	srv *Srv
}

func GetUserController(s *Srv) *UserController {
	return &UserController{srv: s}
}

// GET /api/me
func (uc *UserController) Me(c *gin.Context) {
	u := app.CurrentUser(c)
	c.JSON(http.StatusOK, app.H{"user": u, "roles": u.Roles()})
}

// GET /api/users?q=alice&page=1&size=20
func (uc *UserController) ListUsers(c *gin.Context) {
	res, err := uc.srv.Repo.ListUsers(c.Request.Context(), c.Query("q"), pageQuery(c))
	if err != nil {
		uc.srv.fail(c, err, "user", "", nil)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	user, err := uc.srv.Repo.FindUserByID(c.Request.Context(), id)
	if err != nil {
		uc.srv.fail(c, err, "user", id, nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": user})
}

type createUserRequest struct {
	Email        string  `json:"email" binding:"required,email"`
	Name         string  `json:"name" binding:"required"`
	DepartmentID *string `json:"departmentId" binding:"omitempty,uuid"`
	PositionID   *string `json:"positionId" binding:"omitempty,uuid"`
	GradeID      *string `json:"gradeId" binding:"omitempty,uuid"`
}

// POST /api/users
func (uc *UserController) CreateUser(c *gin.Context) {
	var req createUserRequest
	if !bind(c, &req) {
		return
	}
	u, err := uc.srv.Repo.CreateUser(c.Request.Context(), db.UserInput{
		Email:        req.Email,
		Name:         req.Name,
		DepartmentID: req.DepartmentID,
		PositionID:   req.PositionID,
		GradeID:      req.GradeID,
	})
	if err != nil {
		uc.srv.fail(c, err, "user", "", req)
		return
	}
	c.JSON(http.StatusCreated, app.H{"user": u})
}

// PUT /api/users/:id/roles
func (uc *UserController) SetRoles(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var in struct {
		IsAdmin    bool `json:"isAdmin"`
		IsBPMStaff bool `json:"isBpmStaff"`
		IsApprover bool `json:"isApprover"`
	}
	if !bind(c, &in) {
		return
	}
	if id == c.GetString(app.UserIDKey) && !in.IsAdmin {
		c.JSON(http.StatusBadRequest, app.H{"error": "cannot remove your own admin role"})
		return
	}
	err := uc.srv.Repo.SetUserRoles(c.Request.Context(), id, db.UserRoles{
		IsAdmin:    in.IsAdmin,
		IsBPMStaff: in.IsBPMStaff,
		IsApprover: in.IsApprover,
	})
	if err != nil {
		uc.srv.fail(c, err, "user", id, in)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// DELETE /api/users/:id
func (uc *UserController) DeleteUser(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if id == c.GetString(app.UserIDKey) {
		c.JSON(http.StatusBadRequest, app.H{"error": "cannot delete yourself"})
		return
	}

	target, err := uc.srv.Repo.FindUserByID(c.Request.Context(), id)
	if err != nil {
		uc.srv.fail(c, err, "user", id, nil)
		return
	}
	if uc.srv.Cfg != nil {
		email := strings.ToLower(target.Email)
		for _, admin := range uc.srv.Cfg.Admin.Emails {
			if email == admin {
				c.JSON(http.StatusForbidden, app.H{"error": "cannot delete an admin"})
				return
			}
		}
	}

	if err := uc.srv.Repo.DeleteUserByID(c.Request.Context(), id); err != nil {
		uc.srv.fail(c, err, "user", id, nil)
		return
	}
	if uc.srv.Revoker != nil {
		if err := uc.srv.Revoker.RevokeAllForUser(c.Request.Context(), id); err != nil {
			uc.srv.Log.Error("revoke tokens", zap.String("user_id", id), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
