package gateway

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-pos/models"
)

type tab struct {
	table models.Table
	order models.Order
	items []models.OrderItem
}

func openTab(t *testing.T, g *Gateway, restaurantID uint, number int, items ...models.OrderItem) tab {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	tb := tab{table: models.Table{RestaurantID: restaurantID, Number: number, Capacity: 4, Status: models.TableOccupied, OpenedAt: &now}}
	require.NoError(t, Create(ctx, g, &tb.table))
	tb.order = models.Order{RestaurantID: restaurantID, TableID: tb.table.ID, Status: models.OrderOpen}
	require.NoError(t, Create(ctx, g, &tb.order))
	for _, it := range items {
		it.OrderID = tb.order.ID
		require.NoError(t, Create(ctx, g, &it))
		tb.items = append(tb.items, it)
	}
	return tb
}

func item(productID uint, qty int, price float64, status string) models.OrderItem {
	return models.OrderItem{ProductID: productID, Quantity: qty, UnitPrice: price, Status: status}
}

func TestFinalizePaymentFreesTableAndClosesOrder(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("%d items", n), func(t *testing.T) {
			finalizeWithItems(t, n)
		})
	}
}

func finalizeWithItems(t *testing.T, n int) {
	g := newTestGateway(t)
	ctx := context.Background()

	var items []models.OrderItem
	for i := 0; i < n; i++ {
		items = append(items, item(1, 1, 10, models.ItemPending))
	}
	tb := openTab(t, g, 1, 4, items...)

	res, err := g.FinalizePayment(ctx, tb.table.ID, models.PaymentPix, 99)
	require.NoError(t, err)

	table, err := First[models.Table](ctx, g, tb.table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableFree, table.Status)
	assert.Nil(t, table.OpenedAt)
	assert.Zero(t, table.Total)

	order, err := First[models.Order](ctx, g, tb.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderClosed, order.Status)
	assert.NotNil(t, order.ClosedAt)

	assert.InDelta(t, float64(n)*10, res.Sale.Total, 0.001)
	assert.Equal(t, uint(99), res.Sale.ActorID)
	assert.Equal(t, res.Table.Version, table.Version)
}

func TestFinalizePaymentIgnoresInactiveItems(t *testing.T) {
	g := newTestGateway(t)
	tb := openTab(t, g, 1, 1,
		item(1, 2, 10, models.ItemReady),
		item(2, 1, 15, models.ItemPreparing),
		item(3, 3, 99, models.ItemCancelled),
		item(4, 1, 50, models.ItemDelivered),
	)

	res, err := g.FinalizePayment(context.Background(), tb.table.ID, models.PaymentCash, 1)
	require.NoError(t, err)
	assert.InDelta(t, 35.0, res.Sale.Total, 0.001)
	assert.InDelta(t, 35.0, res.Order.Total, 0.001)
}

func TestFinalizePaymentErrors(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	free := models.Table{RestaurantID: 1, Number: 2, Capacity: 2, Status: models.TableFree}
	require.NoError(t, Create(ctx, g, &free))

	_, err := g.FinalizePayment(ctx, free.ID, models.PaymentCash, 1)
	assert.True(t, errors.Is(err, ErrNoOpenOrder))

	_, err = g.FinalizePayment(ctx, 12345, models.PaymentCash, 1)
	assert.True(t, errors.Is(err, ErrNotFound))

	tb := openTab(t, g, 1, 3)
	_, err = g.FinalizePayment(ctx, tb.table.ID, "bitcoin", 1)
	assert.Error(t, err)

	// nothing was written by the failed attempts
	var sales int64
	g.DB().Model(&models.Sale{}).Count(&sales)
	assert.Zero(t, sales)
}

func TestCalculateCMV(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	tb := openTab(t, g, 1, 1,
		item(7, 2, 20, models.ItemDelivered),
		item(7, 1, 20, models.ItemCancelled),
		item(8, 5, 3, models.ItemDelivered),
	)
	_, err := g.FinalizePayment(ctx, tb.table.ID, models.PaymentCredit, 1)
	require.NoError(t, err)

	// still-open tabs are not counted
	openTab(t, g, 1, 2, item(7, 10, 20, models.ItemPending))

	start, end := time.Now().Add(-time.Hour), time.Now().Add(time.Hour)
	rep, err := g.CalculateCMV(ctx, 1, 7, 8, start, end)
	require.NoError(t, err)
	assert.Equal(t, int64(2), rep.QuantitySold)
	assert.InDelta(t, 40, rep.Revenue, 0.001)
	assert.InDelta(t, 16, rep.Cost, 0.001)
	assert.InDelta(t, 24, rep.Margin, 0.001)
	assert.InDelta(t, 40, rep.Percentage, 0.001)

	none, err := g.CalculateCMV(ctx, 1, 999, 8, start, end)
	require.NoError(t, err)
	assert.Zero(t, none.QuantitySold)
	assert.Zero(t, none.Percentage)
}

func TestDashboardAndSalesReport(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	a := openTab(t, g, 1, 1, item(1, 1, 30, models.ItemDelivered))
	b := openTab(t, g, 1, 2, item(1, 2, 12.5, models.ItemDelivered))
	other := openTab(t, g, 2, 1, item(1, 1, 1000, models.ItemDelivered))

	_, err := g.FinalizePayment(ctx, a.table.ID, models.PaymentCash, 1)
	require.NoError(t, err)
	_, err = g.FinalizePayment(ctx, b.table.ID, models.PaymentPix, 1)
	require.NoError(t, err)
	_, err = g.FinalizePayment(ctx, other.table.ID, models.PaymentPix, 1)
	require.NoError(t, err)

	d, err := g.DashboardAggregate(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 55, d.TodaySales, 0.001)
	assert.Equal(t, int64(2), d.TodayOrders)
	assert.InDelta(t, 55, d.MonthSales, 0.001)
	assert.Equal(t, int64(2), d.MonthOrders)

	rep, err := g.SalesReport(ctx, 1, time.Now().Add(-time.Hour), time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Count)
	assert.InDelta(t, 55, rep.Total, 0.001)
	require.Len(t, rep.ByDay, 1)
	assert.Equal(t, 2, rep.ByDay[0].Count)
	assert.InDelta(t, 30, rep.ByMethod[models.PaymentCash], 0.001)
	assert.InDelta(t, 25, rep.ByMethod[models.PaymentPix], 0.001)

	_, err = g.SalesReport(ctx, 1, time.Now(), time.Now().Add(-time.Hour))
	assert.Error(t, err)
}

func TestStockAlerts(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	for _, p := range []models.Product{
		{RestaurantID: 1, Name: "Arroz", Price: 1, Stock: 2, MinStock: 5},
		{RestaurantID: 1, Name: "Feijão", Price: 1, Stock: 5, MinStock: 5},
		{RestaurantID: 1, Name: "Farofa", Price: 1, Stock: 30, MinStock: 5},
		{RestaurantID: 2, Name: "Outro", Price: 1, Stock: 0, MinStock: 5},
	} {
		p := p
		require.NoError(t, Create(ctx, g, &p))
	}

	alerts, err := g.StockAlerts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "Arroz", alerts[0].Name)
	assert.Equal(t, "Feijão", alerts[1].Name)
}
