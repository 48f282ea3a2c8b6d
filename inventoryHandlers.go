package main

import (
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/middlewares"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/workflow"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (h *handlers) registerInventoryRoutes(api *gin.RouterGroup) {
	api.POST("/items", h.createItem)
	api.GET("/items/:id", h.getItem)
	api.GET("/items/:id/ledger", h.getStockLedger)
	api.POST("/stock-adjustments", h.createStockAdjustment)
	api.GET("/stock-adjustments/:id", h.getStockAdjustment)
}

func (h *handlers) createItem(c *gin.Context) {
	var input models.NewItem
	if !bindJSON(c, &input) {
		return
	}
	h.posting(c, "CreateItem", http.StatusCreated, func(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext) (any, error) {
		return h.poster.CreateItem(ctx, tx, rc, &input)
	})
}

func (h *handlers) getItem(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	h.reading(c, func(ctx context.Context, db *gorm.DB, rc appctx.RequestContext) (any, error) {
		return models.GetItem(ctx, db, rc.CompanyId, id)
	})
}

func (h *handlers) getStockLedger(c *gin.Context) {
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
		return workflow.GetStockLedger(ctx, db, rc, id, from, to, middlewares.AccountNames)
	})
}

func (h *handlers) createStockAdjustment(c *gin.Context) {
	var input models.NewStockAdjustment
	if !bindJSON(c, &input) {
		return
	}
	h.posting(c, "CreateStockAdjustment", http.StatusCreated, func(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext) (any, error) {
		return h.poster.CreateStockAdjustment(ctx, tx, rc, &input)
	})
}

func (h *handlers) getStockAdjustment(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	h.reading(c, func(ctx context.Context, db *gorm.DB, rc appctx.RequestContext) (any, error) {
		return models.GetStockAdjustment(ctx, db, rc.CompanyId, id)
	})
}
