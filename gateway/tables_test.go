package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yeremiapane/restaurant-pos/models"
)

func freeTable(t *testing.T, g *Gateway, number int) models.Table {
	t.Helper()
	tb := models.Table{RestaurantID: 1, Number: number, Capacity: 4, Status: models.TableFree}
	require.NoError(t, Create(context.Background(), g, &tb))
	return tb
}

func countChanges(t *testing.T, g *Gateway) int64 {
	t.Helper()
	var n int64
	require.NoError(t, g.DB().Model(&models.DBChange{}).Count(&n).Error)
	return n
}

func TestSaveRefusesStaleVersion(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	p := models.Product{RestaurantID: 1, Name: "Café", Price: 5, Available: true}
	require.NoError(t, Create(ctx, g, &p))
	stale := p

	p.Price = 6
	require.NoError(t, Save(ctx, g, &p))
	assert.Equal(t, uint64(2), p.Version)

	stale.Price = 7
	err := Save(ctx, g, &stale)
	assert.True(t, errors.Is(err, ErrStaleVersion))
	assert.True(t, errors.Is(err, ErrConstraint))
	assert.Equal(t, uint64(1), stale.Version, "version is restored after a refused write")

	stored, err := First[models.Product](ctx, g, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6.0, stored.Price)
	assert.Equal(t, uint64(2), stored.Version)
	assert.Equal(t, int64(2), countChanges(t, g))
}

func TestUpdateLeavesCallerRowAlone(t *testing.T) {
	g := newTestGateway(t)
	tb := freeTable(t, g, 1)

	row := Row{"capacity": 6, "id": 99, "version": 50}
	updated, err := g.Update(context.Background(), "tables", tb.ID, row)
	require.NoError(t, err)
	assert.Equal(t, float64(tb.ID), updated["id"])
	assert.Equal(t, float64(2), updated["version"])
	assert.Equal(t, Row{"capacity": 6, "id": 99, "version": 50}, row)
}

func TestOccupyTableOpensOrder(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	tb := freeTable(t, g, 4)

	res, err := g.OccupyTable(ctx, tb.ID, " Ana ")
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, res.Table.Status)
	assert.Equal(t, "Ana", res.Table.ServerName)
	assert.NotNil(t, res.Table.OpenedAt)
	assert.Equal(t, uint64(2), res.Table.Version)
	require.NotNil(t, res.Order)
	assert.Equal(t, models.OrderOpen, res.Order.Status)
	assert.Equal(t, tb.ID, res.Order.TableID)

	_, err = g.OccupyTable(ctx, tb.ID, "Bia")
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestOccupyTableRollsBackOnLeftoverOrder(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	tb := freeTable(t, g, 4)
	leftover := models.Order{RestaurantID: 1, TableID: tb.ID, Status: models.OrderOpen}
	require.NoError(t, Create(ctx, g, &leftover))
	before := countChanges(t, g)

	_, err := g.OccupyTable(ctx, tb.ID, "Ana")
	assert.True(t, errors.Is(err, ErrConstraint))

	stored, err := First[models.Table](ctx, g, tb.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableFree, stored.Status)
	assert.Equal(t, uint64(1), stored.Version)
	open, err := Find[models.Order](ctx, g, Filter{"table_id": tb.ID, "status": models.OrderOpen})
	require.NoError(t, err)
	assert.Len(t, open, 1)
	assert.Equal(t, before, countChanges(t, g))
}

func TestRequestPaymentKeepsStoredTotals(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	tb := freeTable(t, g, 2)
	p := models.Product{RestaurantID: 1, Name: "Pastel", Price: 10, Available: true}
	require.NoError(t, Create(ctx, g, &p))

	occ, err := g.OccupyTable(ctx, tb.ID, "")
	require.NoError(t, err)
	added, err := g.AddItem(ctx, occ.Order.ID, p.ID, 2, "")
	require.NoError(t, err)

	res, err := g.RequestPayment(ctx, tb.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableAwaitingPayment, res.Table.Status)
	assert.Equal(t, 20.0, res.Table.Total)
	assert.Equal(t, added.Table.Version+1, res.Table.Version)
	assert.Nil(t, res.Order)

	_, err = g.RequestPayment(ctx, tb.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
}

func TestReleaseTable(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	busy := openTab(t, g, 1, 1, item(1, 1, 10, models.ItemPreparing))
	_, err := g.ReleaseTable(ctx, busy.table.ID)
	assert.True(t, errors.Is(err, ErrActiveItems))
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	stored, err := First[models.Table](ctx, g, busy.table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableOccupied, stored.Status)
	order, err := First[models.Order](ctx, g, busy.order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderOpen, order.Status)

	done := openTab(t, g, 1, 2, item(1, 1, 10, models.ItemCancelled), item(1, 1, 10, models.ItemDelivered))
	res, err := g.ReleaseTable(ctx, done.table.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TableFree, res.Table.Status)
	assert.Nil(t, res.Table.OpenedAt)
	assert.Zero(t, res.Table.Total)
	require.NotNil(t, res.Order)
	assert.Equal(t, models.OrderClosed, res.Order.Status)
	assert.NotNil(t, res.Order.ClosedAt)

	empty := freeTable(t, g, 3)
	_, err = g.ReleaseTable(ctx, empty.ID)
	assert.True(t, errors.Is(err, ErrInvalidTransition), "a free table cannot be released")
}
