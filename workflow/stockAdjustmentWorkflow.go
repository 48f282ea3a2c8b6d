package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/inventory"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CreateStockAdjustment books counted differences. Excess lines add a new lot
// at the given cost (the item's average cost when none is given); short lines
// consume the named batch or FIFO and are stored per lot taken.
func (p *Poster) CreateStockAdjustment(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext, input *models.NewStockAdjustment) (adj *models.StockAdjustment, err error) {
	ctx, span := startSpan(ctx, "CreateStockAdjustment", attribute.Int("company.id", rc.CompanyId))
	defer func() { endSpan(span, err) }()
	defer config.GetMetrics().ObserveWorkflow("create_stock_adjustment", time.Now())

	fy, err := models.GetFiscalYear(ctx, tx, rc.CompanyId, rc.FiscalYearId)
	if err != nil {
		config.LogError(p.Logger, "stockAdjustmentWorkflow.go", "CreateStockAdjustment", "GetFiscalYear", rc, err)
		return nil, err
	}
	date, err := input.Validate(fy)
	if err != nil {
		return nil, err
	}
	itemIds := make([]int, 0, len(input.Items))
	for _, l := range input.Items {
		itemIds = append(itemIds, l.ItemId)
	}
	plan, err := loadStockPlan(ctx, tx, rc.CompanyId, utils.UniqueSlice(itemIds))
	if err != nil {
		return nil, err
	}

	number, err := p.Numbers.Next(ctx, tx, rc.CompanyId, fy.ID, models.SeriesStockAdjustment, fy.AdjustmentNumberPrefix())
	if err != nil {
		config.LogError(p.Logger, "stockAdjustmentWorkflow.go", "CreateStockAdjustment", "AdjustmentNumber", rc, err)
		return nil, err
	}
	adj = &models.StockAdjustment{
		CompanyId:        rc.CompanyId,
		FiscalYearId:     fy.ID,
		UserId:           rc.UserId,
		AdjustmentNumber: number,
		Date:             date,
		Note:             input.Note,
	}

	var rows []models.StockAdjustmentItem
	for _, l := range input.Items {
		item := plan.item(l.ItemId)
		set := plan.lots(l.ItemId)
		row := models.StockAdjustmentItem{
			CompanyId: rc.CompanyId,
			ItemId:    l.ItemId,
			Type:      l.Type,
			Quantity:  l.Quantity,
			PuPrice:   l.PuPrice,
			Batch:     l.Batch,
		}
		if l.Expiry != "" {
			if t, err := utils.ParseDate(l.Expiry); err == nil {
				row.Expiry = &t
			}
		}

		if l.Type == models.AdjustmentTypeExcess {
			if !row.PuPrice.IsPositive() {
				row.PuPrice = item.AveragePuPrice
			}
			row.LotId = uuid.NewString()
			row.LotDate = timePtr(date)
			set, err = set.AddLot(inventory.Lot{
				LotId:        row.LotId,
				Batch:        row.Batch,
				Expiry:       row.Expiry,
				Date:         date,
				Quantity:     row.Quantity,
				PuPrice:      row.PuPrice,
				FiscalYearId: fy.ID,
			})
			if err != nil {
				return nil, err
			}
			plan.set(l.ItemId, set)
			rows = append(rows, row)
			continue
		}

		var taken []inventory.Consumption
		if l.Batch != "" || l.LotId != "" {
			set, taken, err = set.ConsumeBatch(l.Batch, l.LotId, l.Quantity)
		} else {
			set, taken, err = set.ConsumeFIFO(l.Quantity)
		}
		if err != nil {
			return nil, err
		}
		plan.set(l.ItemId, set)
		for _, c := range taken {
			piece := row
			piece.Quantity = c.Quantity
			piece.PuPrice = c.PuPrice
			piece.Batch = c.Batch
			piece.LotId = c.LotId
			piece.Expiry = c.Expiry
			piece.LotDate = timePtr(c.LotDate)
			rows = append(rows, piece)
		}
	}

	if err := plan.save(ctx, tx); err != nil {
		config.LogError(p.Logger, "stockAdjustmentWorkflow.go", "CreateStockAdjustment", "SaveStock", number, err)
		return nil, err
	}
	db := tx.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(adj).Error; err != nil {
		config.LogError(p.Logger, "stockAdjustmentWorkflow.go", "CreateStockAdjustment", "Create StockAdjustment", adj, err)
		return nil, err
	}
	for i := range rows {
		rows[i].StockAdjustmentId = adj.ID
		rows[i].Seq = i + 1
	}
	if err := db.Create(&rows).Error; err != nil {
		config.LogError(p.Logger, "stockAdjustmentWorkflow.go", "CreateStockAdjustment", "Create StockAdjustmentItems", number, err)
		return nil, err
	}
	adj.Items = rows
	config.GetMetrics().RecordBillPosted(models.SeriesStockAdjustment, "create")
	return adj, nil
}
