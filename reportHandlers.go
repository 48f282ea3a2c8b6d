package main

import (
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/workflow"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (h *handlers) registerReportRoutes(api *gin.RouterGroup) {
	api.GET("/reports/vat", h.getVatReport)
	api.GET("/reports/stock-drift", h.getStockDrift)
	api.POST("/maintenance/rebalance-accounts", h.rebalanceAccounts)
}

func (h *handlers) getVatReport(c *gin.Context) {
	rc, ok := requestContext(c)
	if !ok {
		return
	}
	from, to, ok := dateWindow(c, rc)
	if !ok {
		return
	}
	h.reading(c, func(ctx context.Context, db *gorm.DB, rc appctx.RequestContext) (any, error) {
		return workflow.GetVatReport(ctx, db, rc, from, to)
	})
}

// getStockDrift lists items whose cached stock disagrees with their lots,
// without repairing them.
func (h *handlers) getStockDrift(c *gin.Context) {
	h.reading(c, func(ctx context.Context, db *gorm.DB, rc appctx.RequestContext) (any, error) {
		return workflow.RebuildAllStock(ctx, db, h.logger, rc.CompanyId, false)
	})
}

func (h *handlers) rebalanceAccounts(c *gin.Context) {
	h.posting(c, "RebalanceAccounts", http.StatusOK, func(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext) (any, error) {
		n, err := workflow.RebalanceAllAccounts(ctx, tx, h.logger, rc.CompanyId)
		if err != nil {
			return nil, err
		}
		return gin.H{"accounts": n}, nil
	})
}
