package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/notifications"
	"github.com/yeremiapane/restaurant-pos/utils"
)

type NotificationController struct {
	*Base
	Service *notifications.Service
}

func NewNotificationController(b *Base, svc *notifications.Service) *NotificationController {
	return &NotificationController{Base: b, Service: svc}
}

// GetNotifications lists the caller's notifications, newest first.
// ?unread=true restricts the list to unread ones.
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.Query("unread"))
	list, err := nc.Service.GetUserNotifications(c.Request.Context(), middlewares.UserID(c), unread)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of notifications", list)
}

func (nc *NotificationController) UnreadCount(c *gin.Context) {
	inbox, err := nc.Service.Inbox(c.Request.Context(), middlewares.UserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Unread notifications", gin.H{"count": inbox.Count()})
}

// CreateNotification sends a notification to a user of the same restaurant.
func (nc *NotificationController) CreateNotification(c *gin.Context) {
	var req struct {
		UserID  uint        `json:"user_id" binding:"required"`
		Title   string      `json:"title" binding:"required"`
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Payload interface{} `json:"payload"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Type == "" {
		req.Type = "system"
	}

	ctx := c.Request.Context()
	sender, ok := nc.ownerOf(c)
	if !ok {
		return
	}
	recipient, err := nc.GW.ResolveOwner(ctx, req.UserID)
	if err != nil {
		respondErr(c, err)
		return
	}
	if recipient != sender {
		respondErr(c, gateway.ErrNotFound)
		return
	}

	n, err := nc.Service.Send(ctx, req.UserID, req.Title, req.Message, req.Type, req.Payload)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Notification sent", n)
}

func (nc *NotificationController) MarkAsRead(c *gin.Context) {
	id, ok := idParam(c, "notification_id")
	if !ok {
		return
	}
	n, err := nc.Service.MarkAsRead(c.Request.Context(), middlewares.UserID(c), id)
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", n)
}
