package store

import (
	"context"
	"time"

	"github.com/yeremiapane/restaurant-pos/billing"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// Metrics are the live figures shown on the floor dashboard.
type Metrics struct {
	FreeTables       int     `json:"free_tables"`
	OccupiedTables   int     `json:"occupied_tables"`
	AwaitingPayment  int     `json:"awaiting_payment"`
	OpenOrders       int     `json:"open_orders"`
	PendingItems     int     `json:"pending_items"`
	RunningTotal     float64 `json:"running_total"`
	OccupancyPercent float64 `json:"occupancy_percent"`
}

// DashboardMetrics derives the floor figures from local state.
func (s *Store) DashboardMetrics() Metrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var m Metrics
	for _, t := range s.tables {
		switch t.Status {
		case models.TableFree:
			m.FreeTables++
		case models.TableOccupied:
			m.OccupiedTables++
		case models.TableAwaitingPayment:
			m.AwaitingPayment++
		}
		m.RunningTotal += t.Total
	}
	m.RunningTotal = utils.Round2(m.RunningTotal)
	m.OpenOrders = len(s.orders)
	for _, v := range s.items {
		if v.Status == models.ItemPending || v.Status == models.ItemPreparing {
			m.PendingItems++
		}
	}
	if n := len(s.tables); n > 0 {
		m.OccupancyPercent = utils.Round2(float64(n-m.FreeTables) / float64(n) * 100)
	}
	return m
}

// SalesByDay returns one entry per calendar day for the last days days,
// including days without sales.
func (s *Store) SalesByDay(ctx context.Context, days int) ([]gateway.DayTotal, error) {
	if days <= 0 || days > 366 {
		return nil, s.fail("sales_by_day", "Período inválido.", invalid("days %d", days))
	}
	rid, err := s.restaurantID()
	if err != nil {
		return nil, s.fail("sales_by_day", "Não foi possível carregar as vendas.", err)
	}

	now := s.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(days - 1))
	rep, err := s.gw.SalesReport(ctx, rid, start, now)
	if err != nil {
		return nil, s.fail("sales_by_day", "Não foi possível carregar as vendas.", err)
	}

	byDay := make(map[string]gateway.DayTotal, len(rep.ByDay))
	for _, d := range rep.ByDay {
		byDay[d.Day] = d
	}
	out := make([]gateway.DayTotal, 0, days)
	for i := 0; i < days; i++ {
		key := start.AddDate(0, 0, i).Format("2006-01-02")
		d, ok := byDay[key]
		if !ok {
			d = gateway.DayTotal{Day: key}
		}
		out = append(out, d)
	}
	return out, nil
}

// Bill computes the current bill of a table from its open order.
func (s *Store) Bill(tableID uint, serviceFee, coverCharge bool, discount *billing.Discount) (billing.Bill, error) {
	t, ok := s.Table(tableID)
	if !ok {
		return billing.Bill{}, s.fail("bill", "Mesa não encontrada.", notFound("table", tableID))
	}
	var items []models.OrderItem
	if o, ok := s.OpenOrderFor(tableID); ok {
		items = s.ItemsForOrder(o.ID)
	}
	b, err := billing.Compute(billing.ForTable(s.Restaurant(), t, items, serviceFee, coverCharge, discount))
	if err != nil {
		return billing.Bill{}, s.fail("bill", "Desconto inválido.", invalid("%v", err))
	}
	return b, nil
}
