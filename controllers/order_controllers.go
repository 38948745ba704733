package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type OrderController struct {
	*Base
}

func NewOrderController(b *Base) *OrderController {
	return &OrderController{Base: b}
}

type orderWithItems struct {
	models.Order
	Items []models.OrderItem `json:"items"`
}

// GetOrders lists the open orders with their items.
func (oc *OrderController) GetOrders(c *gin.Context) {
	s, ok := oc.storeFor(c)
	if !ok {
		return
	}
	orders := s.Snapshot().Orders
	out := make([]orderWithItems, 0, len(orders))
	for _, o := range orders {
		out = append(out, orderWithItems{Order: o, Items: s.ItemsForOrder(o.ID)})
	}
	utils.RespondJSON(c, http.StatusOK, "List of orders", out)
}

func (oc *OrderController) CreateOrder(c *gin.Context) {
	var req struct {
		TableID uint `json:"table_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	s, ok := oc.storeFor(c)
	if !ok {
		return
	}
	order, err := s.CreateOrder(c.Request.Context(), req.TableID)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Order created", order)
}

func (oc *OrderController) AddItem(c *gin.Context) {
	orderID, ok := idParam(c, "order_id")
	if !ok {
		return
	}
	var req struct {
		ProductID uint   `json:"product_id" binding:"required"`
		Quantity  int    `json:"quantity" binding:"required"`
		Note      string `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	s, ok := oc.storeFor(c)
	if !ok {
		return
	}
	item, err := s.AddItem(c.Request.Context(), orderID, req.ProductID, req.Quantity, req.Note)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Item added", item)
}

func (oc *OrderController) UpdateItemStatus(c *gin.Context) {
	itemID, ok := idParam(c, "item_id")
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	s, ok := oc.storeFor(c)
	if !ok {
		return
	}
	item, err := s.UpdateItemStatus(c.Request.Context(), itemID, req.Status)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item status updated", item)
}

func (oc *OrderController) RemoveItem(c *gin.Context) {
	itemID, ok := idParam(c, "item_id")
	if !ok {
		return
	}
	s, ok := oc.storeFor(c)
	if !ok {
		return
	}
	if err := s.RemoveItem(c.Request.Context(), itemID); err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Item removed", nil)
}

// KitchenItems is the kitchen display queue: active items, oldest first.
func (oc *OrderController) KitchenItems(c *gin.Context) {
	s, ok := oc.storeFor(c)
	if !ok {
		return
	}
	queue := []models.ItemView{}
	for _, it := range s.Snapshot().Items {
		if it.Active() {
			queue = append(queue, it)
		}
	}
	utils.RespondJSON(c, http.StatusOK, "Kitchen queue", queue)
}
