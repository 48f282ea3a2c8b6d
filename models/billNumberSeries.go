package models

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Series names used by BillNumberGenerator besides the bill kinds.
const SeriesStockAdjustment = "stockAdjustment"

// BillNumberSeries is the last number handed out per company, fiscal year
// and series.
type BillNumberSeries struct {
	ID           int    `gorm:"primary_key" json:"id"`
	CompanyId    int    `gorm:"uniqueIndex:idx_series_scope;not null" json:"company_id"`
	FiscalYearId int    `gorm:"uniqueIndex:idx_series_scope;not null" json:"fiscal_year_id"`
	Series       string `gorm:"uniqueIndex:idx_series_scope;size:20;not null" json:"series"`
	LastSeq      int    `gorm:"not null;default:0" json:"last_seq"`
}

// BillNumberGenerator hands out document numbers inside the caller's
// transaction.
type BillNumberGenerator interface {
	Next(ctx context.Context, tx *gorm.DB, companyId, fiscalYearId int, series string, prefix string) (string, error)
}

// SeriesNumbers numbers documents from the bill_number_series table as
// <prefix><seq>.
type SeriesNumbers struct{}

func (SeriesNumbers) Next(ctx context.Context, tx *gorm.DB, companyId, fiscalYearId int, series string, prefix string) (string, error) {
	db := tx.WithContext(ctx)
	var row BillNumberSeries
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("company_id = ? AND fiscal_year_id = ? AND series = ?", companyId, fiscalYearId, series).
		First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = BillNumberSeries{CompanyId: companyId, FiscalYearId: fiscalYearId, Series: series, LastSeq: 1}
		if err := db.Create(&row).Error; err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	default:
		row.LastSeq++
		if err := db.Model(&BillNumberSeries{}).Where("id = ?", row.ID).Update("last_seq", row.LastSeq).Error; err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("%s%d", prefix, row.LastSeq), nil
}
