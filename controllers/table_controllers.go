package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/billing"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type TableController struct {
	*Base
}

func NewTableController(b *Base) *TableController {
	return &TableController{Base: b}
}

func (tc *TableController) GetAllTables(c *gin.Context) {
	s, ok := tc.storeFor(c)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of tables", s.Snapshot().Tables)
}

func (tc *TableController) CreateTable(c *gin.Context) {
	var req struct {
		Number   int `json:"number" binding:"required"`
		Capacity int `json:"capacity"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Capacity == 0 {
		req.Capacity = 4
	}

	s, ok := tc.storeFor(c)
	if !ok {
		return
	}
	table, err := s.AddTable(c.Request.Context(), req.Number, req.Capacity)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Table created successfully", table)
}

// OccupyTable seats guests and opens the table's tab.
func (tc *TableController) OccupyTable(c *gin.Context) {
	id, ok := idParam(c, "table_id")
	if !ok {
		return
	}
	var req struct {
		ServerName string `json:"server_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	s, ok := tc.storeFor(c)
	if !ok {
		return
	}
	table, order, err := s.OccupyTable(c.Request.Context(), id, req.ServerName)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table occupied", gin.H{"table": table, "order": order})
}

func (tc *TableController) RequestPayment(c *gin.Context) {
	id, ok := idParam(c, "table_id")
	if !ok {
		return
	}
	s, ok := tc.storeFor(c)
	if !ok {
		return
	}
	table, err := s.RequestPayment(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table awaiting payment", table)
}

func (tc *TableController) ReleaseTable(c *gin.Context) {
	id, ok := idParam(c, "table_id")
	if !ok {
		return
	}
	s, ok := tc.storeFor(c)
	if !ok {
		return
	}
	table, err := s.ReleaseTable(c.Request.Context(), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table released", table)
}

func (tc *TableController) DeleteTable(c *gin.Context) {
	id, ok := idParam(c, "table_id")
	if !ok {
		return
	}
	s, ok := tc.storeFor(c)
	if !ok {
		return
	}
	if err := s.DeleteTable(c.Request.Context(), id); err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Table deleted", nil)
}

// GetBill previews the bill. Query: service_fee, cover_charge (bools,
// default true), discount_type (percent|amount) and discount_value.
func (tc *TableController) GetBill(c *gin.Context) {
	id, ok := idParam(c, "table_id")
	if !ok {
		return
	}
	fee, err := strconv.ParseBool(c.DefaultQuery("service_fee", "true"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	cover, err := strconv.ParseBool(c.DefaultQuery("cover_charge", "true"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	var discount *billing.Discount
	if dt := c.Query("discount_type"); dt != "" {
		v, err := strconv.ParseFloat(c.DefaultQuery("discount_value", "0"), 64)
		if err != nil {
			utils.RespondError(c, http.StatusBadRequest, err)
			return
		}
		discount = &billing.Discount{Type: dt, Value: v}
	}

	s, ok := tc.storeFor(c)
	if !ok {
		return
	}
	bill, err := s.Bill(id, fee, cover, discount)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Bill", bill)
}
