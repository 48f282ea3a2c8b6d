package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/inventory"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateItem stores a new item. Opening stock becomes the item's first lot,
// dated at the start of the fiscal year.
func (p *Poster) CreateItem(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext, input *models.NewItem) (item *models.Item, err error) {
	ctx, span := startSpan(ctx, "CreateItem")
	defer func() { endSpan(span, err) }()

	if err := input.Validate(ctx, tx, rc.CompanyId); err != nil {
		return nil, err
	}
	fy, err := models.GetFiscalYear(ctx, tx, rc.CompanyId, rc.FiscalYearId)
	if err != nil {
		config.LogError(p.Logger, "itemWorkflow.go", "CreateItem", "GetFiscalYear", rc, err)
		return nil, err
	}

	vatStatus := input.VatStatus
	if vatStatus == "" {
		vatStatus = models.VatStatusVatable
	}
	item = &models.Item{
		CompanyId:    rc.CompanyId,
		Name:         input.Name,
		Category:     input.Category,
		Unit:         input.Unit,
		VatStatus:    vatStatus,
		OpeningStock: input.OpeningStock,
		Version:      1,
	}

	opening := inventory.NewLotSet(item.Name, nil)
	lots := opening
	if input.OpeningStock.IsPositive() {
		lot := inventory.Lot{
			LotId:        uuid.NewString(),
			Batch:        input.Batch,
			Date:         utils.DateOnly(fy.StartDate),
			Quantity:     input.OpeningStock,
			PuPrice:      input.OpeningPuPrice,
			Price:        input.OpeningPrice,
			FiscalYearId: fy.ID,
		}
		if input.Expiry != "" {
			if t, err := utils.ParseDate(input.Expiry); err == nil {
				lot.Expiry = &t
			}
		}
		if lots, err = lots.AddLot(lot); err != nil {
			return nil, err
		}
	}
	item.Stock = lots.Total()
	item.AveragePuPrice = lots.AverageCost()

	if err := tx.WithContext(ctx).Omit(clause.Associations).Create(item).Error; err != nil {
		config.LogError(p.Logger, "itemWorkflow.go", "CreateItem", "Create Item", item, err)
		return nil, err
	}
	if err := models.SaveLotDiff(ctx, tx, item, inventory.Diff(opening, lots)); err != nil {
		config.LogError(p.Logger, "itemWorkflow.go", "CreateItem", "SaveLotDiff", item.ID, err)
		return nil, err
	}
	return item, nil
}
