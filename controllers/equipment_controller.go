package controllers

import (
	"net/http"
	"time"

	"Gin_postgres_redis_ict_loan/app"
	"Gin_postgres_redis_ict_loan/db"
	"Gin_postgres_redis_ict_loan/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type EquipmentController struct {
	srv *Srv
}

func GetEquipmentController(s *Srv) *EquipmentController {
	return &EquipmentController{srv: s}
}

type equipmentRequest struct {
	AssetType          string                       `json:"assetType" binding:"required"`
	Brand              string                       `json:"brand"`
	Model              string                       `json:"model"`
	SerialNumber       string                       `json:"serialNumber" binding:"required"`
	TagID              string                       `json:"tagId" binding:"required"`
	AvailabilityStatus models.EquipmentAvailability `json:"availabilityStatus"`
	ConditionStatus    models.EquipmentCondition    `json:"conditionStatus"`
	PurchaseDate       string                       `json:"purchaseDate"`
	PurchasePrice      decimal.Decimal              `json:"purchasePrice"`
	WarrantyExpiryDate string                       `json:"warrantyExpiryDate"`
	CurrentLocation    string                       `json:"currentLocation"`
	Notes              string                       `json:"notes"`
}

// GET /api/equipment?q=&assetType=&availability=&page=&size=
func (ec *EquipmentController) List(c *gin.Context) {
	q := db.EquipmentQuery{
		Q:            c.Query("q"),
		AssetType:    c.Query("assetType"),
		Availability: models.EquipmentAvailability(c.Query("availability")),
		PageQuery:    pageQuery(c),
	}
	res, err := ec.srv.Repo.ListEquipment(c.Request.Context(), q)
	if err != nil {
		ec.srv.fail(c, err, "equipment", "", q)
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/equipment/available?assetType=
func (ec *EquipmentController) Available(c *gin.Context) {
	items, err := ec.srv.Repo.ListAvailableEquipment(c.Request.Context(), c.Query("assetType"))
	if err != nil {
		ec.srv.fail(c, err, "equipment", "", nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}

// GET /api/equipment/options
func (ec *EquipmentController) Options(c *gin.Context) {
	c.JSON(http.StatusOK, app.H{
		"availability": models.AvailabilityOptions(),
		"condition":    models.ConditionOptions(),
	})
}

func (ec *EquipmentController) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	e, err := ec.srv.Repo.FindEquipmentByID(c.Request.Context(), id)
	if err != nil {
		ec.srv.fail(c, err, "equipment", id, nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"equipment": e})
}

// POST /api/equipment
func (ec *EquipmentController) Create(c *gin.Context) {
	var req equipmentRequest
	if !bind(c, &req) {
		return
	}
	dates := dateFields{}
	in := db.EquipmentInput{
		AssetType:          req.AssetType,
		Brand:              req.Brand,
		Model:              req.Model,
		SerialNumber:       req.SerialNumber,
		TagID:              req.TagID,
		AvailabilityStatus: req.AvailabilityStatus,
		ConditionStatus:    req.ConditionStatus,
		PurchaseDate:       dates.parse("purchaseDate", req.PurchaseDate),
		PurchasePrice:      req.PurchasePrice,
		WarrantyExpiryDate: dates.parse("warrantyExpiryDate", req.WarrantyExpiryDate),
		CurrentLocation:    req.CurrentLocation,
		Notes:              req.Notes,
	}
	if dates.respond(c) {
		return
	}
	e, err := ec.srv.Repo.CreateEquipment(c.Request.Context(), app.ActorFrom(c), in)
	if err != nil {
		ec.srv.fail(c, err, "equipment", "", req)
		return
	}
	c.JSON(http.StatusCreated, app.H{"equipment": e})
}

type equipmentPatchRequest struct {
	AssetType          *string                       `json:"assetType"`
	Brand              *string                       `json:"brand"`
	Model              *string                       `json:"model"`
	SerialNumber       *string                       `json:"serialNumber"`
	TagID              *string                       `json:"tagId"`
	AvailabilityStatus *models.EquipmentAvailability `json:"availabilityStatus"`
	ConditionStatus    *models.EquipmentCondition    `json:"conditionStatus"`
	PurchaseDate       *string                       `json:"purchaseDate"`
	PurchasePrice      *decimal.Decimal              `json:"purchasePrice"`
	WarrantyExpiryDate *string                       `json:"warrantyExpiryDate"`
	CurrentLocation    *string                       `json:"currentLocation"`
	Notes              *string                       `json:"notes"`
}

// PATCH /api/equipment/:id
func (ec *EquipmentController) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req equipmentPatchRequest
	if !bind(c, &req) {
		return
	}
	dates := dateFields{}
	p := db.EquipmentPatch{
		AssetType:          req.AssetType,
		Brand:              req.Brand,
		Model:              req.Model,
		SerialNumber:       req.SerialNumber,
		TagID:              req.TagID,
		AvailabilityStatus: req.AvailabilityStatus,
		ConditionStatus:    req.ConditionStatus,
		PurchasePrice:      req.PurchasePrice,
		CurrentLocation:    req.CurrentLocation,
		Notes:              req.Notes,
	}
	if req.PurchaseDate != nil {
		p.PurchaseDate = dates.parse("purchaseDate", *req.PurchaseDate)
	}
	if req.WarrantyExpiryDate != nil {
		p.WarrantyExpiryDate = dates.parse("warrantyExpiryDate", *req.WarrantyExpiryDate)
	}
	if dates.respond(c) {
		return
	}
	e, err := ec.srv.Repo.UpdateEquipment(c.Request.Context(), app.ActorFrom(c), id, p)
	if err != nil {
		ec.srv.fail(c, err, "equipment", id, req)
		return
	}
	c.JSON(http.StatusOK, app.H{"equipment": e})
}

// DELETE /api/equipment/:id
func (ec *EquipmentController) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := ec.srv.Repo.DeleteEquipment(c.Request.Context(), app.ActorFrom(c), id); err != nil {
		ec.srv.fail(c, err, "equipment", id, nil)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// GET /api/equipment/export
func (ec *EquipmentController) Export(c *gin.Context) {
	items, err := ec.srv.Repo.ListAllEquipment(c.Request.Context())
	if err != nil {
		ec.srv.fail(c, err, "equipment", "", nil)
		return
	}
	f, filename, err := buildInventoryWorkbook(items, time.Now())
	if err != nil {
		ec.srv.fail(c, err, "equipment", "", nil)
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")
	if err := f.Write(c.Writer); err != nil {
		ec.srv.Log.Error("write inventory export", zap.Error(err))
	}
}
