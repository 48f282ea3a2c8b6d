package workflow

import (
	"context"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// StockDrift is the difference between an item's cached stock figures and
// what its lots add up to.
type StockDrift struct {
	ItemId        int             `json:"item_id"`
	ItemName      string          `json:"item_name"`
	CachedStock   decimal.Decimal `json:"cached_stock"`
	LotStock      decimal.Decimal `json:"lot_stock"`
	CachedAverage decimal.Decimal `json:"cached_average"`
	LotAverage    decimal.Decimal `json:"lot_average"`
	Repaired      bool            `json:"repaired"`
}

func (d StockDrift) Drifted() bool {
	return !d.CachedStock.Equal(d.LotStock) || !d.CachedAverage.Equal(d.LotAverage)
}

// RebuildItemStock compares one item against its lots and, when repair is
// set, rewrites the cached figures.
func RebuildItemStock(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, item *models.Item, repair bool) (StockDrift, error) {
	set, err := models.LoadLotSet(ctx, tx, item)
	if err != nil {
		config.LogError(logger, "stockRebuild.go", "RebuildItemStock", "LoadLotSet", item.ID, err)
		return StockDrift{}, err
	}
	drift := StockDrift{
		ItemId:        item.ID,
		ItemName:      item.Name,
		CachedStock:   item.Stock,
		LotStock:      set.Total(),
		CachedAverage: item.AveragePuPrice,
		LotAverage:    set.AverageCost(),
	}
	if !repair || !drift.Drifted() {
		return drift, nil
	}
	if err := models.SaveItemStock(ctx, tx, item, drift.LotStock, drift.LotAverage); err != nil {
		config.LogError(logger, "stockRebuild.go", "RebuildItemStock", "SaveItemStock", item.ID, err)
		return drift, err
	}
	drift.Repaired = true
	config.LogInfo(logger, "stockRebuild.go", "RebuildItemStock", "repaired stock drift", logrus.Fields{
		"item_id":      item.ID,
		"cached_stock": drift.CachedStock.String(),
		"lot_stock":    drift.LotStock.String(),
	})
	return drift, nil
}

// RebuildAllStock checks every item of a company and returns the drifted
// ones.
func RebuildAllStock(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, companyId int, repair bool) ([]StockDrift, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	var items []models.Item
	if err := tx.WithContext(ctx).Where("company_id = ?", companyId).Order("id").Find(&items).Error; err != nil {
		config.LogError(logger, "stockRebuild.go", "RebuildAllStock", "Find Items", companyId, err)
		return nil, err
	}
	drifts := []StockDrift{}
	for i := range items {
		drift, err := RebuildItemStock(ctx, tx, logger, &items[i], repair)
		if err != nil {
			return drifts, err
		}
		if drift.Drifted() {
			drifts = append(drifts, drift)
		}
	}
	return drifts, nil
}

// RebalanceAllAccounts recomputes the running balance of every account of a
// company and returns how many accounts were walked.
func RebalanceAllAccounts(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, companyId int) (int, error) {
	if logger == nil {
		logger = config.GetLogger()
	}
	var ids []int
	if err := tx.WithContext(ctx).Model(&models.Account{}).Where("company_id = ?", companyId).Order("id").Pluck("id", &ids).Error; err != nil {
		config.LogError(logger, "stockRebuild.go", "RebalanceAllAccounts", "Pluck Accounts", companyId, err)
		return 0, err
	}
	if _, err := models.RebalanceAccounts(ctx, tx, ids); err != nil {
		config.LogError(logger, "stockRebuild.go", "RebalanceAllAccounts", "RebalanceAccounts", companyId, err)
		return 0, err
	}
	return len(ids), nil
}
