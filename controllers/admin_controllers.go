package controllers

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/reports"
	"github.com/yeremiapane/restaurant-pos/store"
	"github.com/yeremiapane/restaurant-pos/utils"
)

const dateLayout = "2006-01-02"

// AdminController serves the dashboard, reports and restaurant settings.
type AdminController struct {
	*Base
}

func NewAdminController(b *Base) *AdminController {
	return &AdminController{Base: b}
}

// GetDashboardStats combines live floor figures with today's and this
// month's sales.
func (ac *AdminController) GetDashboardStats(c *gin.Context) {
	s, ok := ac.storeFor(c)
	if !ok {
		return
	}
	sales, err := ac.GW.DashboardAggregate(c.Request.Context(), s.Restaurant().ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Dashboard", gin.H{
		"floor": s.DashboardMetrics(),
		"sales": sales,
	})
}

// GetSalesByDay returns one total per day. ?format=png renders a bar chart.
func (ac *AdminController) GetSalesByDay(c *gin.Context) {
	days, err := strconv.Atoi(c.DefaultQuery("days", "7"))
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	s, ok := ac.storeFor(c)
	if !ok {
		return
	}
	out, err := s.SalesByDay(c.Request.Context(), days)
	if err != nil {
		respondErr(c, err)
		return
	}

	if c.Query("format") == "png" {
		var buf bytes.Buffer
		if err := reports.SalesChartPNG(&buf, out); err != nil {
			respondErr(c, err)
			return
		}
		c.Data(http.StatusOK, "image/png", buf.Bytes())
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Sales by day", out)
}

// period reads ?start= and ?end= (YYYY-MM-DD, end inclusive). Defaults to
// the current month.
func period(c *gin.Context, now time.Time) (time.Time, time.Time, error) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	end := now
	if v := c.Query("start"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, now.Location())
		if err != nil {
			return start, end, fmt.Errorf("invalid start: %w", err)
		}
		start = t
	}
	if v := c.Query("end"); v != "" {
		t, err := time.ParseInLocation(dateLayout, v, now.Location())
		if err != nil {
			return start, end, fmt.Errorf("invalid end: %w", err)
		}
		end = t.Add(24*time.Hour - time.Nanosecond)
	}
	if end.Before(start) {
		return start, end, errors.New("end is before start")
	}
	return start, end, nil
}

// GetSalesReport returns the period summary as JSON, or as a PDF with
// ?format=pdf.
func (ac *AdminController) GetSalesReport(c *gin.Context) {
	start, end, err := period(c, time.Now())
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	s, ok := ac.storeFor(c)
	if !ok {
		return
	}
	restaurant := s.Restaurant()
	rep, err := ac.GW.SalesReport(c.Request.Context(), restaurant.ID, start, end)
	if err != nil {
		respondErr(c, err)
		return
	}

	if c.Query("format") == "pdf" {
		var buf bytes.Buffer
		if err := reports.SalesPDF(&buf, restaurant.Name, rep); err != nil {
			respondErr(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="vendas-%s.pdf"`, start.Format(dateLayout)))
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Sales report", rep)
}

// GetCMV reports cost of goods sold for one product over the period.
func (ac *AdminController) GetCMV(c *gin.Context) {
	productID, err := strconv.ParseUint(c.Query("product_id"), 10, 64)
	if err != nil || productID == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid product_id"))
		return
	}
	unitCost, err := strconv.ParseFloat(c.Query("unit_cost"), 64)
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid unit_cost"))
		return
	}
	start, end, err := period(c, time.Now())
	if err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	s, ok := ac.storeFor(c)
	if !ok {
		return
	}
	rep, err := ac.GW.CalculateCMV(c.Request.Context(), s.Restaurant().ID, uint(productID), unitCost, start, end)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "CMV", rep)
}

func (ac *AdminController) GetStockAlerts(c *gin.Context) {
	s, ok := ac.storeFor(c)
	if !ok {
		return
	}
	list, err := ac.GW.StockAlerts(c.Request.Context(), s.Restaurant().ID)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Stock alerts", list)
}

func (ac *AdminController) UpdateRestaurant(c *gin.Context) {
	var req store.RestaurantSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	s, ok := ac.storeFor(c)
	if !ok {
		return
	}
	r, err := s.UpdateRestaurant(c.Request.Context(), req)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Restaurant updated", r)
}

func (ac *AdminController) GetSnapshot(c *gin.Context) {
	s, ok := ac.storeFor(c)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Snapshot", s.Snapshot())
}

// Refresh reloads every collection from the database. Clients call it after
// reconnecting, since realtime delivery is at most once.
func (ac *AdminController) Refresh(c *gin.Context) {
	s, ok := ac.storeFor(c)
	if !ok {
		return
	}
	if err := s.Refresh(c.Request.Context()); err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Snapshot", s.Snapshot())
}

// Debug endpoints, owner and admin only.

func (ac *AdminController) DebugActor(c *gin.Context) {
	info, err := ac.GW.DebugActor(c.Request.Context(), middlewares.UserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Actor", info)
}

func (ac *AdminController) DebugRestaurantAccess(c *gin.Context) {
	rid, ok := idParam(c, "restaurant_id")
	if !ok {
		return
	}
	info, err := ac.GW.DebugRestaurantAccess(c.Request.Context(), middlewares.UserID(c), rid)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Restaurant access", info)
}

func (ac *AdminController) DebugChangeBacklog(c *gin.Context) {
	info, err := ac.GW.DebugChangeBacklog(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Change backlog", info)
}
