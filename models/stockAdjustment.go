package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AdjustmentType string

const (
	AdjustmentTypeExcess AdjustmentType = "excess"
	AdjustmentTypeShort  AdjustmentType = "short"
)

type StockAdjustment struct {
	ID               int                   `gorm:"primary_key" json:"id"`
	CompanyId        int                   `gorm:"index;not null" json:"company_id"`
	FiscalYearId     int                   `gorm:"index;not null" json:"fiscal_year_id"`
	UserId           int                   `gorm:"index" json:"user_id"`
	AdjustmentNumber string                `gorm:"size:50;index;not null" json:"adjustment_number"`
	Date             time.Time             `gorm:"index;not null" json:"date"`
	Note             string                `gorm:"type:text" json:"note"`
	Items            []StockAdjustmentItem `gorm:"foreignKey:StockAdjustmentId" json:"items,omitempty"`
	CreatedAt        time.Time             `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time             `gorm:"autoUpdateTime" json:"updated_at"`
}

// StockAdjustmentItem is one lot touched by an adjustment. A short line that
// drains several lots is stored as one row per lot.
type StockAdjustmentItem struct {
	ID                int             `gorm:"primary_key" json:"id"`
	StockAdjustmentId int             `gorm:"index;not null" json:"stock_adjustment_id"`
	CompanyId         int             `gorm:"index;not null" json:"company_id"`
	ItemId            int             `gorm:"index;not null" json:"item_id"`
	Seq               int             `gorm:"not null;default:0" json:"seq"`
	Type              AdjustmentType  `gorm:"size:10;not null" json:"type"`
	Quantity          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	PuPrice           decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"pu_price"`
	Batch             string          `gorm:"size:50" json:"batch"`
	LotId             string          `gorm:"size:36;index" json:"lot_id"`
	Expiry            *time.Time      `json:"expiry"`
	LotDate           *time.Time      `json:"lot_date"`
}

type NewStockAdjustment struct {
	Date  string                   `json:"date" validate:"required"`
	Note  string                   `json:"note"`
	Items []NewStockAdjustmentItem `json:"items" validate:"required,min=1,dive"`
}

type NewStockAdjustmentItem struct {
	ItemId   int             `json:"item_id" validate:"required"`
	Type     AdjustmentType  `json:"type" validate:"required,oneof=excess short"`
	Quantity decimal.Decimal `json:"quantity"`
	PuPrice  decimal.Decimal `json:"pu_price"`
	Batch    string          `json:"batch" validate:"max=50"`
	LotId    string          `json:"lot_id" validate:"max=36"`
	Expiry   string          `json:"expiry"`
}

func (input *NewStockAdjustment) Validate(fy *FiscalYear) (time.Time, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return time.Time{}, err
	}
	for i, l := range input.Items {
		if !l.Quantity.IsPositive() {
			return time.Time{}, apperrors.ErrValidationf("line %d: quantity must be greater than zero", i+1)
		}
		if l.PuPrice.IsNegative() {
			return time.Time{}, apperrors.ErrValidationf("line %d: pu price must not be negative", i+1)
		}
		if l.Expiry != "" {
			if _, err := utils.ParseDate(l.Expiry); err != nil {
				return time.Time{}, apperrors.ErrValidationf("line %d: %v", i+1, err)
			}
		}
	}
	date, err := utils.ParseDate(input.Date)
	if err != nil {
		return time.Time{}, apperrors.ErrValidation(err.Error()).WithDetail("date", "date")
	}
	if err := fy.CheckDate("date", date); err != nil {
		return time.Time{}, err
	}
	return date, nil
}

func GetStockAdjustment(ctx context.Context, tx *gorm.DB, companyId int, id int) (*StockAdjustment, error) {
	return utils.FetchModel[StockAdjustment](ctx, tx, companyId, id, "Items")
}
