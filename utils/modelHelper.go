package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"gorm.io/gorm"
)

/* DB fetching */

// FetchModel loads one row of T owned by companyId.
// (returns a NotFound AppError when it does not exist)
func FetchModel[T any](ctx context.Context, tx *gorm.DB, companyId int, id int, associations ...string) (*T, error) {
	dbCtx := tx.WithContext(ctx).Where("company_id = ?", companyId)
	// preloading
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var result T
	if err := dbCtx.First(&result, id).Error; err != nil {
		return nil, NotFoundOr(err, GetTypeName[T](), id)
	}
	return &result, nil
}

// FetchModelsByIds loads every row of T whose id is in ids, keyed by id.
// Missing ids are reported as NotFound.
func FetchModelsByIds[T any](ctx context.Context, tx *gorm.DB, companyId int, ids []int, idOf func(*T) int, associations ...string) (map[int]*T, error) {
	unqIds := UniqueSlice(ids)
	result := make(map[int]*T, len(unqIds))
	if len(unqIds) == 0 {
		return result, nil
	}
	dbCtx := tx.WithContext(ctx).Where("company_id = ? AND id IN ?", companyId, unqIds)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var rows []*T
	if err := dbCtx.Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		result[idOf(r)] = r
	}
	for _, id := range unqIds {
		if _, ok := result[id]; !ok {
			return nil, apperrors.ErrNotFoundWithID(GetTypeName[T](), id)
		}
	}
	return result, nil
}

// fetch all models of the company
func FetchAllModels[T any](ctx context.Context, tx *gorm.DB, companyId int, associations ...string) ([]*T, error) {
	dbCtx := tx.WithContext(ctx).Where("company_id = ?", companyId)
	for _, field := range associations {
		dbCtx = dbCtx.Preload(field)
	}
	var results []*T
	if err := dbCtx.Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
