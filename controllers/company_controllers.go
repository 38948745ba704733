package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/restaurant-pos/gateway"
	"github.com/yeremiapane/restaurant-pos/middlewares"
	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

var errNoCompany = errors.New("company profile not found")

// CompanyController manages the owner's company profile and its employees.
type CompanyController struct {
	*Base
}

func NewCompanyController(b *Base) *CompanyController {
	return &CompanyController{Base: b}
}

func (cc *CompanyController) company(c *gin.Context) (models.Company, bool) {
	list, err := gateway.Find[models.Company](c.Request.Context(), cc.GW, gateway.Filter{"owner_id": middlewares.UserID(c)})
	if err != nil {
		respondErr(c, err)
		return models.Company{}, false
	}
	if len(list) == 0 {
		utils.RespondError(c, http.StatusNotFound, errNoCompany)
		return models.Company{}, false
	}
	return list[0], true
}

func (cc *CompanyController) GetCompany(c *gin.Context) {
	company, ok := cc.company(c)
	if !ok {
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Company", company)
}

// SaveCompany creates the profile on first call and updates it afterwards.
func (cc *CompanyController) SaveCompany(c *gin.Context) {
	var req struct {
		Name     string `json:"name" binding:"required"`
		Document string `json:"document"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	uid := middlewares.UserID(c)

	list, err := gateway.Find[models.Company](ctx, cc.GW, gateway.Filter{"owner_id": uid})
	if err != nil {
		respondErr(c, err)
		return
	}
	if len(list) == 0 {
		company := models.Company{OwnerID: uid, Name: strings.TrimSpace(req.Name), Document: strings.TrimSpace(req.Document)}
		if err := gateway.Create(ctx, cc.GW, &company); err != nil {
			respondErr(c, err)
			return
		}
		utils.RespondJSON(c, http.StatusCreated, "Company created", company)
		return
	}

	company := list[0]
	company.Name = strings.TrimSpace(req.Name)
	company.Document = strings.TrimSpace(req.Document)
	if err := gateway.Save(ctx, cc.GW, &company); err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Company updated", company)
}

func (cc *CompanyController) GetEmployees(c *gin.Context) {
	company, ok := cc.company(c)
	if !ok {
		return
	}
	list, err := gateway.Find[models.Employee](c.Request.Context(), cc.GW, gateway.Filter{"company_id": company.ID})
	if err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "List of employees", list)
}

type employeeRequest struct {
	Name   string `json:"name" binding:"required"`
	Role   string `json:"role" binding:"required"`
	Active *bool  `json:"active"`
	// Email links the employee to an existing staff login.
	Email string `json:"email"`
}

// apply validates req onto e. It writes the error response itself.
func (cc *CompanyController) apply(c *gin.Context, req employeeRequest, e *models.Employee) bool {
	if !models.ValidEmployeeRole(req.Role) {
		utils.RespondMessage(c, http.StatusBadRequest, "Função inválida.")
		return false
	}
	e.Name = strings.TrimSpace(req.Name)
	e.Role = req.Role
	if req.Active != nil {
		e.Active = *req.Active
	}
	if req.Email == "" {
		return true
	}

	users, err := gateway.Find[models.User](c.Request.Context(), cc.GW,
		gateway.Filter{"email": strings.ToLower(strings.TrimSpace(req.Email))})
	if err != nil {
		respondErr(c, err)
		return false
	}
	if len(users) == 0 || users[0].Role != models.RoleStaff {
		utils.RespondMessage(c, http.StatusBadRequest, "Nenhuma conta de funcionário com este e-mail.")
		return false
	}
	e.UserID = &users[0].ID
	return true
}

func (cc *CompanyController) CreateEmployee(c *gin.Context) {
	var req employeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	company, ok := cc.company(c)
	if !ok {
		return
	}
	e := models.Employee{CompanyID: company.ID, Active: true}
	if !cc.apply(c, req, &e) {
		return
	}
	if err := gateway.Create(c.Request.Context(), cc.GW, &e); err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Employee created", e)
}

// employee loads an employee of the caller's company.
func (cc *CompanyController) employee(c *gin.Context) (models.Employee, bool) {
	id, ok := idParam(c, "employee_id")
	if !ok {
		return models.Employee{}, false
	}
	company, ok := cc.company(c)
	if !ok {
		return models.Employee{}, false
	}
	e, err := gateway.First[models.Employee](c.Request.Context(), cc.GW, id)
	if err == nil && e.CompanyID != company.ID {
		err = gateway.ErrNotFound
	}
	if err != nil {
		respondErr(c, err)
		return models.Employee{}, false
	}
	return e, true
}

func (cc *CompanyController) UpdateEmployee(c *gin.Context) {
	var req employeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	e, ok := cc.employee(c)
	if !ok {
		return
	}
	if !cc.apply(c, req, &e) {
		return
	}
	if err := gateway.Save(c.Request.Context(), cc.GW, &e); err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Employee updated", e)
}

func (cc *CompanyController) DeleteEmployee(c *gin.Context) {
	e, ok := cc.employee(c)
	if !ok {
		return
	}
	if err := gateway.Remove(c.Request.Context(), cc.GW, &e); err != nil {
		respondErr(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Employee deleted", nil)
}
