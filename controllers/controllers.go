// Package controllers exposes the store intents and reports over HTTP.
package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/notifications"
	"github.com/yeremiapane/restaurant-pos/reports"
	"github.com/yeremiapane/restaurant-pos/store"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// Base is shared by every controller that works on a restaurant.
type Base struct {
	GW      *gateway.Gateway
	Manager *store.Manager
	Log     *logrus.Logger
}

func NewBase(gw *gateway.Gateway, m *store.Manager, log *logrus.Logger) *Base {
	return &Base{GW: gw, Manager: m, Log: log}
}

// ownerOf maps the authenticated user to the owner of the restaurant they
// work for. Owners map to themselves.
func (b *Base) ownerOf(c *gin.Context) (uint, bool) {
	owner, err := b.GW.ResolveOwner(c.Request.Context(), middlewares.UserID(c))
	if err != nil {
		respondErr(c, err)
		return 0, false
	}
	return owner, true
}

// storeFor returns the store of the caller's restaurant, loading it on
// first use.
func (b *Base) storeFor(c *gin.Context) (*store.Store, bool) {
	owner, ok := b.ownerOf(c)
	if !ok {
		return nil, false
	}
	s, err := b.Manager.Get(c.Request.Context(), owner)
	if err != nil {
		b.Log.WithError(err).WithField("owner_id", owner).Error("loading store")
		utils.RespondMessage(c, http.StatusInternalServerError, "Não foi possível carregar os dados do restaurante.")
		return nil, false
	}
	return s, true
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, store.ErrValidation),
		errors.Is(err, notifications.ErrInvalid),
		errors.Is(err, gateway.ErrUnknownTable),
		errors.Is(err, gateway.ErrUnknownColumn):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrNotFound),
		errors.Is(err, reports.ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, gateway.ErrConstraint):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrInvalidTransition),
		errors.Is(err, gateway.ErrNoOpenOrder):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// respondErr writes the envelope for err. Intent failures carry the message
// shown to staff; anything else falls back to the error text.
func respondErr(c *gin.Context, err error) {
	var ie *store.IntentError
	if errors.As(err, &ie) {
		utils.RespondMessage(c, statusOf(err), ie.UserMessage)
		return
	}
	code := statusOf(err)
	if code == http.StatusInternalServerError {
		utils.RespondMessage(c, code, "Erro interno.")
		return
	}
	utils.RespondError(c, code, err)
}

func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.RespondError(c, http.StatusBadRequest, errors.New("invalid "+name))
		return 0, false
	}
	return uint(id), true
}
