package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type itemReader struct {
	db *gorm.DB
}

func (r *itemReader) getItems(ctx context.Context, ids []int) []*dataloader.Result[*models.Item] {
	var results []models.Item

	db := r.db.WithContext(ctx).Where("id IN ?", ids)
	if rc, ok := appctx.RequestContextFrom(ctx); ok {
		db = db.Where("company_id = ?", rc.CompanyId)
	}
	if err := db.Find(&results).Error; err != nil {
		return handleError[*models.Item](len(ids), err)
	}
	return generateLoaderResults(results, ids, func(i *models.Item) int { return i.ID })
}

// GetItems returns many items by ids efficiently; unknown ids come back nil.
func GetItems(ctx context.Context, ids []int) ([]*models.Item, []error) {
	loaders := For(ctx)
	return loaders.ItemLoader.LoadMany(ctx, ids)()
}
