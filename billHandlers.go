package main

import (
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/billing"
	"bitbucket.org/mmdatafocus/retail_backend/middlewares"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/workflow"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var billRoutes = []struct {
	path string
	kind billing.BillKind
}{
	{"/purchase-bills", billing.BillKindPurchase},
	{"/sales-bills", billing.BillKindSales},
	{"/purchase-returns", billing.BillKindPurchaseReturn},
	{"/sales-returns", billing.BillKindSalesReturn},
}

func (h *handlers) registerBillRoutes(api *gin.RouterGroup) {
	for _, route := range billRoutes {
		api.POST(route.path, h.createBill(route.kind))
		api.PUT(route.path+"/:id", h.editBill(route.kind))
	}
	api.GET("/bills/:id", h.getBill)
	api.POST("/valuation/preview", h.previewValuation)
	api.PUT("/settings", h.saveSetting)
}

func (h *handlers) createBill(kind billing.BillKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewBill
		if !bindJSON(c, &input) {
			return
		}
		h.posting(c, "CreateBill", http.StatusCreated, func(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext) (any, error) {
			return h.poster.CreateBill(ctx, tx, rc, kind, &input)
		})
	}
}

func (h *handlers) editBill(kind billing.BillKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := pathId(c)
		if !ok {
			return
		}
		var input models.NewBill
		if !bindJSON(c, &input) {
			return
		}
		h.posting(c, "EditBill", http.StatusOK, func(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext) (any, error) {
			return h.poster.EditBill(ctx, tx, rc, kind, id, &input)
		})
	}
}

type billResponse struct {
	*models.Bill
	Counterparty string         `json:"counterparty"`
	ItemNames    map[int]string `json:"item_names"`
}

func (h *handlers) getBill(c *gin.Context) {
	id, ok := pathId(c)
	if !ok {
		return
	}
	h.reading(c, func(ctx context.Context, db *gorm.DB, rc appctx.RequestContext) (any, error) {
		bill, err := models.GetBill(ctx, db, rc.CompanyId, id, "")
		if err != nil {
			return nil, err
		}
		resp := billResponse{Bill: bill, ItemNames: map[int]string{}}

		names, err := middlewares.AccountNames(ctx, []int{bill.PartyAccountId})
		if err != nil {
			return nil, err
		}
		resp.Counterparty = bill.CounterpartyName(names)

		itemIds := make([]int, 0, len(bill.Items))
		for _, bi := range bill.Items {
			itemIds = append(itemIds, bi.ItemId)
		}
		items, errs := middlewares.GetItems(ctx, itemIds)
		for i, item := range items {
			if (errs == nil || errs[i] == nil) && item != nil {
				resp.ItemNames[item.ID] = item.Name
			}
		}
		return resp, nil
	})
}

func (h *handlers) previewValuation(c *gin.Context) {
	var req workflow.PreviewRequest
	if !bindJSON(c, &req) {
		return
	}
	v, err := workflow.PreviewValuation(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *handlers) saveSetting(c *gin.Context) {
	var input models.NewSetting
	if !bindJSON(c, &input) {
		return
	}
	h.posting(c, "SaveSetting", http.StatusOK, func(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext) (any, error) {
		return models.SaveSetting(ctx, tx, rc, &input)
	})
}
