package controllers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yeremiapane/restaurant-pos/kds"
	"github.com/yeremiapane/restaurant-pos/middlewares"
)

type KDSController struct {
	*Base
	Hub      *kds.Hub
	upgrader websocket.Upgrader
}

// NewKDSController accepts websocket upgrades from allowedOrigin, or from any
// origin when it is "*". Same-host requests are always accepted.
func NewKDSController(b *Base, hub *kds.Hub, allowedOrigin string) *KDSController {
	return &KDSController{
		Base: b,
		Hub:  hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || allowedOrigin == "*" || origin == allowedOrigin {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
	}
}

// KDSHandler upgrades the request and serves realtime changes of the
// caller's restaurant until the client disconnects.
func (kc *KDSController) KDSHandler(c *gin.Context) {
	s, ok := kc.storeFor(c)
	if !ok {
		return
	}
	restaurantID := s.Restaurant().ID

	ws, err := kc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		kc.Log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	kc.Hub.Serve(ws, middlewares.UserID(c), c.GetString(middlewares.CtxRole), restaurantID)
}
