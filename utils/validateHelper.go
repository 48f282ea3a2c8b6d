package utils

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"

	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// GetValidator reports json field names in its errors.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateStruct runs the `validate` tags of v and returns a ValidationError
// listing every failed field.
func ValidateStruct(v any) error {
	err := GetValidator().Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return apperrors.ErrValidation(err.Error())
	}
	return apperrors.ErrValidation("invalid input").WithDetails(ProcessValidationErrors(ve))
}

// check if ALL ids exist for the company, return a NotFound error otherwise
func ValidateResourcesId[M any](ctx context.Context, tx *gorm.DB, companyId int, ids []int) error {
	unqIds := UniqueSlice(ids)
	if len(unqIds) == 0 {
		return nil
	}

	count, err := ResourceCountWhere[M](ctx, tx, companyId, "id IN ?", unqIds)
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return apperrors.ErrNotFound(GetTypeName[M]())
	}
	return nil
}

func ValidateUnique[T any](ctx context.Context, tx *gorm.DB, companyId int, column string, value interface{}, exceptId interface{}) error {
	var count int64
	var err error
	if reflect.ValueOf(exceptId).IsZero() {
		count, err = ResourceCountWhere[T](ctx, tx, companyId, column+" = ?", value)
	} else {
		count, err = ResourceCountWhere[T](ctx, tx, companyId, column+" = ? AND NOT id = ?", value, exceptId)
	}

	if err != nil {
		return err
	}
	if count > 0 {
		return apperrors.ErrValidation("duplicate " + column).WithDetail(column, "unique")
	}
	return nil
}

// count records, using WHERE company_id = ? AND $condition
// companyId can be zero for maintenance tools
func ResourceCountWhere[T any](ctx context.Context, tx *gorm.DB, companyId int, condition string, value ...interface{}) (int64, error) {
	var model T

	dbCtx := tx.WithContext(ctx).Model(&model)
	var count int64
	if companyId != 0 {
		dbCtx = dbCtx.Where("company_id = ?", companyId)
	}
	dbCtx = dbCtx.Where(condition, value...)
	if err := dbCtx.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
