package controllers

import (
	"net/http"

	"Gin_postgres_redis_ict_loan/app"

	"github.com/gin-gonic/gin"
)

type OrgController struct {
	srv *Srv
}

func GetOrgController(s *Srv) *OrgController {
	return &OrgController{srv: s}
}

func (oc *OrgController) ListDepartments(c *gin.Context) {
	items, err := oc.srv.Repo.ListDepartments(c.Request.Context())
	if err != nil {
		oc.srv.fail(c, err, "department", "", nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}

func (oc *OrgController) CreateDepartment(c *gin.Context) {
	var in struct {
		Name string `json:"name" binding:"required"`
		Code string `json:"code"`
	}
	if !bind(c, &in) {
		return
	}
	d, err := oc.srv.Repo.CreateDepartment(c.Request.Context(), app.ActorFrom(c), in.Name, in.Code)
	if err != nil {
		oc.srv.fail(c, err, "department", "", in)
		return
	}
	c.JSON(http.StatusCreated, app.H{"department": d})
}

func (oc *OrgController) DeleteDepartment(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := oc.srv.Repo.DeleteDepartment(c.Request.Context(), app.ActorFrom(c), id); err != nil {
		oc.srv.fail(c, err, "department", id, nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

func (oc *OrgController) ListGrades(c *gin.Context) {
	items, err := oc.srv.Repo.ListGrades(c.Request.Context())
	if err != nil {
		oc.srv.fail(c, err, "grade", "", nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}

func (oc *OrgController) CreateGrade(c *gin.Context) {
	var in struct {
		Name  string `json:"name" binding:"required"`
		Level int    `json:"level" binding:"min=0"`
	}
	if !bind(c, &in) {
		return
	}
	g, err := oc.srv.Repo.CreateGrade(c.Request.Context(), app.ActorFrom(c), in.Name, in.Level)
	if err != nil {
		oc.srv.fail(c, err, "grade", "", in)
		return
	}
	c.JSON(http.StatusCreated, app.H{"grade": g})
}

func (oc *OrgController) DeleteGrade(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := oc.srv.Repo.DeleteGrade(c.Request.Context(), app.ActorFrom(c), id); err != nil {
		oc.srv.fail(c, err, "grade", id, nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

func (oc *OrgController) ListPositions(c *gin.Context) {
	items, err := oc.srv.Repo.ListPositions(c.Request.Context())
	if err != nil {
		oc.srv.fail(c, err, "position", "", nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}

func (oc *OrgController) CreatePosition(c *gin.Context) {
	var in struct {
		Name    string  `json:"name" binding:"required"`
		GradeID *string `json:"gradeId" binding:"omitempty,uuid"`
	}
	if !bind(c, &in) {
		return
	}
	p, err := oc.srv.Repo.CreatePosition(c.Request.Context(), app.ActorFrom(c), in.Name, in.GradeID)
	if err != nil {
		oc.srv.fail(c, err, "position", "", in)
		return
	}
	c.JSON(http.StatusCreated, app.H{"position": p})
}

func (oc *OrgController) DeletePosition(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := oc.srv.Repo.DeletePosition(c.Request.Context(), app.ActorFrom(c), id); err != nil {
		oc.srv.fail(c, err, "position", id, nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}
