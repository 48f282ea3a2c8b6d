package middlewares

import (
	"context"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"github.com/graph-gophers/dataloader/v7"
	"gorm.io/gorm"
)

type accountReader struct {
	db *gorm.DB
}

func (r *accountReader) getAccounts(ctx context.Context, ids []int) []*dataloader.Result[*models.Account] {
	var results []models.Account

	db := r.db.WithContext(ctx).Where("id IN ?", ids)
	if rc, ok := appctx.RequestContextFrom(ctx); ok {
		db = db.Where("company_id = ?", rc.CompanyId)
	}
	if err := db.Find(&results).Error; err != nil {
		return handleError[*models.Account](len(ids), err)
	}
	return generateLoaderResults(results, ids, func(a *models.Account) int { return a.ID })
}

// GetAccount returns single account by id efficiently
func GetAccount(ctx context.Context, id int) (*models.Account, error) {
	loaders := For(ctx)
	return loaders.AccountLoader.Load(ctx, id)()
}

// GetAccounts returns many accounts by ids efficiently
func GetAccounts(ctx context.Context, ids []int) ([]*models.Account, []error) {
	loaders := For(ctx)
	return loaders.AccountLoader.LoadMany(ctx, ids)()
}

// AccountNames resolves account names through the request's account loader.
// Unknown ids are left out of the map.
func AccountNames(ctx context.Context, ids []int) (map[int]string, error) {
	names := make(map[int]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	accounts, errs := GetAccounts(ctx, ids)
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	for _, a := range accounts {
		if a != nil {
			names[a.ID] = a.Name
		}
	}
	return names, nil
}
