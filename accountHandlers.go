package main

import (
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/workflow"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (h *handlers) registerAccountRoutes(api *gin.RouterGroup) {
	api.POST("/companies", h.createCompany)
	api.POST("/accounts", h.createAccount)
	api.GET("/accounts/:id", h.getAccount)
	api.GET("/accounts/:id/statement", h.getAccountStatement)
}

type companyResponse struct {
	Company    *models.Company    `json:"company"`
	FiscalYear *models.FiscalYear `json:"fiscal_year"`
}

// createCompany is the one route that needs no session: it creates the
// tenant sessions are issued for.
func (h *handlers) createCompany(c *gin.Context) {
	var input models.NewCompany
	if !bindJSON(c, &input) {
		return
	}
	var resp companyResponse
	err := config.GetDB().WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		resp.Company, resp.FiscalYear, err = models.CreateCompany(c.Request.Context(), tx, &input)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *handlers) createAccount(c *gin.Context) {
	var input models.NewAccount
	if !bindJSON(c, &input) {
		return
	}
	h.posting(c, "CreateAccount", http.StatusCreated, func(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext) (any, error) {
		return models.CreateAccount(ctx, tx, rc.CompanyId, &input)
	})
}

func (h *handlers) getAccount(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	h.reading(c, func(ctx context.Context, db *gorm.DB, rc appctx.RequestContext) (any, error) {
		return models.GetAccount(ctx, db, rc.CompanyId, id)
	})
}

func (h *handlers) getAccountStatement(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	from, to, ok := dateWindow(c, rc)
	if !ok {
		return
	}
	h.reading(c, func(ctx context.Context, db *gorm.DB, rc appctx.RequestContext) (any, error) {
		return workflow.GetAccountStatement(ctx, db, rc, id, from, to)
	})
}
