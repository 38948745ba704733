package controllers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/session"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// SessionHeader identifies a browser tab's session.
const SessionHeader = "X-Session-ID"

type SessionController struct {
	Store session.Store
}

func NewSessionController(s session.Store) *SessionController {
	return &SessionController{Store: s}
}

// key scopes the client's session id to the authenticated user.
func sessionKey(c *gin.Context) string {
	id := c.GetHeader(SessionHeader)
	if id == "" {
		return ""
	}
	return fmt.Sprintf("%d:%s", middlewares.UserID(c), id)
}

func (sc *SessionController) GetPrefs(c *gin.Context) {
	prefs, err := sc.Store.Get(c.Request.Context(), sessionKey(c))
	if err != nil {
		sc.respond(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session preferences", prefs)
}

func (sc *SessionController) SavePrefs(c *gin.Context) {
	var prefs session.Prefs
	if err := c.ShouldBindJSON(&prefs); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	def := session.Default()
	if prefs.Route == "" {
		prefs.Route = def.Route
	}
	if prefs.StatusFilter == "" {
		prefs.StatusFilter = def.StatusFilter
	}
	if prefs.TableFilter == "" {
		prefs.TableFilter = def.TableFilter
	}
	if err := sc.Store.Save(c.Request.Context(), sessionKey(c), prefs); err != nil {
		sc.respond(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Session preferences saved", prefs)
}

func (sc *SessionController) respond(c *gin.Context, err error) {
	if errors.Is(err, session.ErrNoSession) {
		utils.RespondError(c, http.StatusBadRequest, fmt.Errorf("%s header is required", SessionHeader))
		return
	}
	utils.RespondMessage(c, http.StatusInternalServerError, "Erro interno.")
}
