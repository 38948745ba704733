package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableTransitions(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{TableFree, TableOccupied, true},
		{TableFree, TableAwaitingPayment, false},
		{TableFree, TableFree, false},
		{TableOccupied, TableAwaitingPayment, true},
		{TableOccupied, TableFree, true},
		{TableAwaitingPayment, TableFree, true},
		{TableAwaitingPayment, TableOccupied, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.ok, Table{Status: c.from}.CanTransition(c.to), "%s -> %s", c.from, c.to)
	}
	assert.False(t, ValidTableStatus("dirty"))
}

func TestItemsOnlyMoveForward(t *testing.T) {
	statuses := []string{ItemPending, ItemPreparing, ItemReady, ItemDelivered, ItemCancelled}
	for _, from := range statuses {
		for _, to := range statuses {
			got := OrderItem{Status: from}.CanTransition(to)
			switch {
			case from == ItemDelivered || from == ItemCancelled:
				assert.False(t, got, "%s is terminal", from)
			case to == ItemCancelled:
				assert.True(t, got, "%s can be cancelled", from)
			default:
				assert.Equal(t, itemRank[to] > itemRank[from], got, "%s -> %s", from, to)
			}
		}
	}
}

func TestItemSubtotalAndActive(t *testing.T) {
	it := OrderItem{Quantity: 3, UnitPrice: 12.5, Status: ItemReady}
	assert.Equal(t, 37.5, it.Subtotal())
	assert.True(t, it.Active())
	it.Status = ItemDelivered
	assert.False(t, it.Active())
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidPaymentMethod(PaymentPix))
	assert.False(t, ValidPaymentMethod("crypto"))
	assert.True(t, ValidEmployeeRole(EmployeeKitchen))
	assert.False(t, ValidEmployeeRole("chef"))
	assert.True(t, ValidNotificationType(NotifyStock))
	assert.False(t, ValidNotificationType(""))
}
