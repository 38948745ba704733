package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
	"golang.org/x/crypto/bcrypt"
)

type UserController struct {
	GW     *gateway.Gateway
	Tokens *utils.TokenManager
	Log    *logrus.Logger
}

func NewUserController(gw *gateway.Gateway, tm *utils.TokenManager, log *logrus.Logger) *UserController {
	return &UserController{GW: gw, Tokens: tm, Log: log}
}

// Register creates an owner account, or a staff account to be linked to an
// employee record later.
func (uc *UserController) Register(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=6"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	if req.Role == "" {
		req.Role = models.RoleOwner
	}
	if req.Role != models.RoleOwner && req.Role != models.RoleStaff {
		utils.RespondError(c, http.StatusBadRequest, errors.New("role must be owner or staff"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	user := models.User{
		Name:     strings.TrimSpace(req.Name),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		Password: string(hashed),
		Role:     req.Role,
	}
	if err := gateway.Create(c.Request.Context(), uc.GW, &user); err != nil {
		if errors.Is(err, gateway.ErrConstraint) {
			utils.RespondMessage(c, http.StatusConflict, "Este e-mail já está cadastrado.")
			return
		}
		respondErr(c, err)
		return
	}

	uc.Log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("user registered")
	utils.RespondJSON(c, http.StatusCreated, "User registered", gin.H{"user_id": user.ID})
}

// Login checks the credentials and returns a JWT.
func (uc *UserController) Login(c *gin.Context) {
	var input struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}

	users, err := gateway.Find[models.User](c.Request.Context(), uc.GW,
		gateway.Filter{"email": strings.ToLower(strings.TrimSpace(input.Email))})
	if err != nil {
		respondErr(c, err)
		return
	}
	if len(users) == 0 || bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte(input.Password)) != nil {
		utils.RespondError(c, http.StatusUnauthorized, errors.New("invalid credentials"))
		return
	}
	user := users[0]

	token, err := uc.Tokens.GenerateToken(user.ID, user.Role)
	if err != nil {
		utils.RespondError(c, http.StatusInternalServerError, err)
		return
	}

	uc.Log.WithField("user_id", user.ID).Info("login successful")
	utils.RespondJSON(c, http.StatusOK, "Login successful", gin.H{
		"token":     token,
		"user_role": user.Role,
	})
}

// Logout revokes the presented token.
func (uc *UserController) Logout(c *gin.Context) {
	uc.Tokens.Blacklist(c.GetString(middlewares.CtxToken))
	utils.RespondJSON(c, http.StatusOK, "Logged out", nil)
}

func (uc *UserController) GetProfile(c *gin.Context) {
	user, err := gateway.First[models.User](c.Request.Context(), uc.GW, middlewares.UserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	owner, err := uc.GW.ResolveOwner(c.Request.Context(), user.ID)
	if err != nil {
		respondErr(c, err)
		return
	}

	utils.RespondJSON(c, http.StatusOK, "Profile data retrieved successfully", gin.H{
		"id":       user.ID,
		"name":     user.Name,
		"email":    user.Email,
		"role":     user.Role,
		"owner_id": owner,
	})
}
