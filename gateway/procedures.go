package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
	"gorm.io/gorm"
)

// PaymentResult is everything finalize-payment touched.
type PaymentResult struct {
	Sale  models.Sale  `json:"sale"`
	Order models.Order `json:"order"`
	Table models.Table `json:"table"`
}

// FinalizePayment totals the active items of the table's open order, records a
// sale, closes the order and frees the table, all in one transaction.
func (g *Gateway) FinalizePayment(ctx context.Context, tableID uint, method string, actorID uint) (PaymentResult, error) {
	var res PaymentResult
	if !models.ValidPaymentMethod(method) {
		return res, g.fail("finalize_payment", "tables", fmt.Errorf("unsupported payment method %q", method))
	}

	db, cancel := g.session(ctx)
	defer cancel()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&res.Table, tableID).Error; err != nil {
			return err
		}

		err := tx.Where("table_id = ? AND status = ?", tableID, models.OrderOpen).
			Order("id DESC").First(&res.Order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoOpenOrder
		}
		if err != nil {
			return err
		}

		if !res.Table.CanTransition(models.TableFree) {
			return fmt.Errorf("%w: table %d is %s", ErrInvalidTransition, res.Table.ID, res.Table.Status)
		}

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", res.Order.ID).Find(&items).Error; err != nil {
			return err
		}
		var total float64
		for _, it := range items {
			if it.Active() {
				total += it.Subtotal()
			}
		}
		total = utils.Round2(total)
		now := g.now()

		res.Sale = models.Sale{
			RestaurantID:  res.Table.RestaurantID,
			TableID:       res.Table.ID,
			OrderID:       res.Order.ID,
			Total:         total,
			PaymentMethod: method,
			ActorID:       actorID,
		}
		if err := g.insert(tx, "sales", &res.Sale); err != nil {
			return err
		}

		res.Order.Status = models.OrderClosed
		res.Order.Total = total
		res.Order.ClosedAt = &now
		if err := g.save(tx, "orders", &res.Order); err != nil {
			return err
		}

		res.Table.Status = models.TableFree
		res.Table.OpenedAt = nil
		res.Table.Total = 0
		res.Table.ServerName = ""
		return g.save(tx, "tables", &res.Table)
	})
	if err != nil {
		return PaymentResult{}, g.fail("finalize_payment", "tables", err)
	}
	return res, nil
}

// CMVReport is the cost-of-goods-sold summary for one product over a period.
type CMVReport struct {
	ProductID    uint      `json:"product_id"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	QuantitySold int64     `json:"quantity_sold"`
	Revenue      float64   `json:"revenue"`
	Cost         float64   `json:"cost"`
	Margin       float64   `json:"margin"`
	Percentage   float64   `json:"percentage"`
}

// CalculateCMV sums the non-cancelled items of closed orders for productID.
func (g *Gateway) CalculateCMV(ctx context.Context, restaurantID, productID uint, unitCost float64, start, end time.Time) (CMVReport, error) {
	rep := CMVReport{ProductID: productID, Start: start, End: end}
	if unitCost < 0 {
		return rep, g.fail("calculate_cmv", "order_items", errors.New("unit cost must not be negative"))
	}

	db, cancel := g.session(ctx)
	defer cancel()

	var agg struct {
		Qty     int64
		Revenue float64
	}
	err := db.Table("order_items").
		Select("COALESCE(SUM(order_items.quantity), 0) AS qty, COALESCE(SUM(order_items.quantity * order_items.unit_price), 0) AS revenue").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.restaurant_id = ? AND orders.status = ? AND orders.closed_at BETWEEN ? AND ?",
			restaurantID, models.OrderClosed, start, end).
		Where("order_items.product_id = ? AND order_items.status <> ?", productID, models.ItemCancelled).
		Scan(&agg).Error
	if err != nil {
		return rep, g.fail("calculate_cmv", "order_items", err)
	}

	rep.QuantitySold = agg.Qty
	rep.Revenue = utils.Round2(agg.Revenue)
	rep.Cost = utils.Round2(unitCost * float64(agg.Qty))
	rep.Margin = utils.Round2(rep.Revenue - rep.Cost)
	if rep.Revenue > 0 {
		rep.Percentage = utils.Round2(rep.Cost / rep.Revenue * 100)
	}
	return rep, nil
}

// Dashboard aggregates today's and this month's sales.
type Dashboard struct {
	TodaySales  float64 `json:"today_sales"`
	TodayOrders int64   `json:"today_orders"`
	MonthSales  float64 `json:"month_sales"`
	MonthOrders int64   `json:"month_orders"`
}

func (g *Gateway) DashboardAggregate(ctx context.Context, restaurantID uint) (Dashboard, error) {
	var d Dashboard
	now := g.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	startOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	db, cancel := g.session(ctx)
	defer cancel()

	sum := func(since time.Time, total *float64, count *int64) error {
		var agg struct {
			Total float64
			Cnt   int64
		}
		err := db.Model(&models.Sale{}).
			Select("COALESCE(SUM(total), 0) AS total, COUNT(*) AS cnt").
			Where("restaurant_id = ? AND created_at >= ?", restaurantID, since).
			Scan(&agg).Error
		*total, *count = utils.Round2(agg.Total), agg.Cnt
		return err
	}

	if err := sum(startOfDay, &d.TodaySales, &d.TodayOrders); err != nil {
		return d, g.fail("dashboard_aggregate", "sales", err)
	}
	if err := sum(startOfMonth, &d.MonthSales, &d.MonthOrders); err != nil {
		return d, g.fail("dashboard_aggregate", "sales", err)
	}
	return d, nil
}

type DayTotal struct {
	Day   string  `json:"day"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// SalesReport summarizes sales between Start and End inclusive.
type SalesReport struct {
	Start    time.Time          `json:"start"`
	End      time.Time          `json:"end"`
	Total    float64            `json:"total"`
	Count    int                `json:"count"`
	ByDay    []DayTotal         `json:"by_day"`
	ByMethod map[string]float64 `json:"by_method"`
}

func (g *Gateway) SalesReport(ctx context.Context, restaurantID uint, start, end time.Time) (SalesReport, error) {
	rep := SalesReport{Start: start, End: end, ByDay: []DayTotal{}, ByMethod: map[string]float64{}}
	if end.Before(start) {
		return rep, g.fail("sales_report", "sales", errors.New("end is before start"))
	}

	db, cancel := g.session(ctx)
	defer cancel()

	var sales []models.Sale
	if err := db.Where("restaurant_id = ? AND created_at BETWEEN ? AND ?", restaurantID, start, end).
		Order("created_at").Find(&sales).Error; err != nil {
		return rep, g.fail("sales_report", "sales", err)
	}

	byDay := map[string]*DayTotal{}
	for _, s := range sales {
		key := s.CreatedAt.In(start.Location()).Format("2006-01-02")
		d, ok := byDay[key]
		if !ok {
			d = &DayTotal{Day: key}
			byDay[key] = d
		}
		d.Total += s.Total
		d.Count++
		rep.ByMethod[s.PaymentMethod] = utils.Round2(rep.ByMethod[s.PaymentMethod] + s.Total)
		rep.Total += s.Total
		rep.Count++
	}
	for _, d := range byDay {
		d.Total = utils.Round2(d.Total)
		rep.ByDay = append(rep.ByDay, *d)
	}
	sort.Slice(rep.ByDay, func(i, j int) bool { return rep.ByDay[i].Day < rep.ByDay[j].Day })
	rep.Total = utils.Round2(rep.Total)
	return rep, nil
}

// StockAlerts lists products at or below their minimum stock.
func (g *Gateway) StockAlerts(ctx context.Context, restaurantID uint) ([]models.Product, error) {
	db, cancel := g.session(ctx)
	defer cancel()

	out := []models.Product{}
	if err := db.Where("restaurant_id = ? AND stock <= min_stock", restaurantID).
		Order("stock, id").Find(&out).Error; err != nil {
		return nil, g.fail("stock_alerts", "products", err)
	}
	return out, nil
}
