package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// Notifier is the part of the notification service payments use.
type Notifier interface {
	Send(ctx context.Context, userID uint, title, message, typ string, payload interface{}) (models.Notification, error)
}

type PaymentController struct {
	*Base
	Notes Notifier
	Hub   *kds.Hub
}

func NewPaymentController(b *Base, notes Notifier, hub *kds.Hub) *PaymentController {
	return &PaymentController{Base: b, Notes: notes, Hub: hub}
}

// FinalizePayment charges the table's open tab and frees the table.
func (pc *PaymentController) FinalizePayment(c *gin.Context) {
	tableID, ok := idParam(c, "table_id")
	if !ok {
		return
	}
	var req struct {
		Method string `json:"method" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	s, ok := pc.storeFor(c)
	if !ok {
		return
	}
	res, err := s.FinalizePayment(c.Request.Context(), tableID, req.Method)
	if err != nil {
		respondErr(c, err)
		return
	}

	msg := fmt.Sprintf("Mesa %d paga: %s (%s)", res.Table.Number, utils.FormatCurrencyBRL(res.Sale.Total), res.Sale.PaymentMethod)
	if pc.Notes != nil {
		owner := s.Restaurant().OwnerID
		if _, err := pc.Notes.Send(c.Request.Context(), owner, "Pagamento recebido", msg, models.NotifyPayment, res.Sale); err != nil {
			pc.Log.WithError(err).Warn("payment notification not sent")
		}
	}
	if pc.Hub != nil {
		pc.Hub.Broadcast(res.Table.RestaurantID, kds.Message{Event: "payment_finalized", Table: "sales", Data: res})
	}

	pc.Log.WithField("user_id", middlewares.UserID(c)).WithField("sale_id", res.Sale.ID).Info("payment finalized")
	utils.RespondJSON(c, http.StatusOK, "Payment finalized", res)
}
