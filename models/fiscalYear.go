package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"bitbucket.org/mmdatafocus/retail_backend/billing"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

// FiscalYear is the accounting period bills are posted into. StartDate and
// EndDate are calendar days, both inclusive.
type FiscalYear struct {
	ID                   int       `gorm:"primary_key" json:"id"`
	CompanyId            int       `gorm:"index;not null" json:"company_id"`
	Name                 string    `gorm:"size:50;not null" json:"name"`
	StartDate            time.Time `gorm:"not null" json:"start_date"`
	EndDate              time.Time `gorm:"not null" json:"end_date"`
	PurchasePrefix       string    `gorm:"size:10" json:"purchase_prefix"`
	SalesPrefix          string    `gorm:"size:10" json:"sales_prefix"`
	PurchaseReturnPrefix string    `gorm:"size:10" json:"purchase_return_prefix"`
	SalesReturnPrefix    string    `gorm:"size:10" json:"sales_return_prefix"`
	AdjustmentPrefix     string    `gorm:"size:10" json:"adjustment_prefix"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFiscalYear struct {
	Name                 string `json:"name" validate:"required,max=50"`
	StartDate            string `json:"start_date" validate:"required"`
	EndDate              string `json:"end_date" validate:"required"`
	PurchasePrefix       string `json:"purchase_prefix" validate:"max=10"`
	SalesPrefix          string `json:"sales_prefix" validate:"max=10"`
	PurchaseReturnPrefix string `json:"purchase_return_prefix" validate:"max=10"`
	SalesReturnPrefix    string `json:"sales_return_prefix" validate:"max=10"`
	AdjustmentPrefix     string `json:"adjustment_prefix" validate:"max=10"`
}

// Contains reports whether the calendar day of t lies inside the year.
func (fy FiscalYear) Contains(t time.Time) bool {
	day := utils.DateOnly(t)
	return !day.Before(utils.DateOnly(fy.StartDate)) && !day.After(utils.DateOnly(fy.EndDate))
}

// PrefixFor returns the bill number prefix of a bill kind, with a default
// when the year has none configured.
func (fy FiscalYear) PrefixFor(kind billing.BillKind) string {
	switch kind {
	case billing.BillKindPurchase:
		return orDefault(fy.PurchasePrefix, "PB-")
	case billing.BillKindSales:
		return orDefault(fy.SalesPrefix, "SB-")
	case billing.BillKindPurchaseReturn:
		return orDefault(fy.PurchaseReturnPrefix, "PR-")
	case billing.BillKindSalesReturn:
		return orDefault(fy.SalesReturnPrefix, "SR-")
	default:
		return ""
	}
}

func (fy FiscalYear) AdjustmentNumberPrefix() string {
	return orDefault(fy.AdjustmentPrefix, "ADJ-")
}

// CheckDate fails with a ValidationError when t is outside the year.
func (fy FiscalYear) CheckDate(field string, t time.Time) error {
	if fy.Contains(t) {
		return nil
	}
	return apperrors.ErrValidationf("%s %s is outside fiscal year %s (%s to %s)",
		field, t.Format(utils.DateLayout), fy.Name,
		fy.StartDate.Format(utils.DateLayout), fy.EndDate.Format(utils.DateLayout)).
		WithDetail(field, "fiscal_year")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (input *NewFiscalYear) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	start, end, err := input.dates()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return apperrors.ErrValidation("fiscal year ends before it starts")
	}
	return nil
}

func (input *NewFiscalYear) dates() (time.Time, time.Time, error) {
	start, err := utils.ParseDate(input.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.ErrValidation(err.Error()).WithDetail("start_date", "date")
	}
	end, err := utils.ParseDate(input.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, apperrors.ErrValidation(err.Error()).WithDetail("end_date", "date")
	}
	return start, end, nil
}

func createFiscalYear(ctx context.Context, tx *gorm.DB, companyId int, input *NewFiscalYear) (*FiscalYear, error) {
	start, end, err := input.dates()
	if err != nil {
		return nil, err
	}
	fy := FiscalYear{
		CompanyId:            companyId,
		Name:                 input.Name,
		StartDate:            start,
		EndDate:              end,
		PurchasePrefix:       input.PurchasePrefix,
		SalesPrefix:          input.SalesPrefix,
		PurchaseReturnPrefix: input.PurchaseReturnPrefix,
		SalesReturnPrefix:    input.SalesReturnPrefix,
		AdjustmentPrefix:     input.AdjustmentPrefix,
	}
	if err := tx.WithContext(ctx).Create(&fy).Error; err != nil {
		return nil, err
	}
	return &fy, nil
}

func GetFiscalYear(ctx context.Context, tx *gorm.DB, companyId int, id int) (*FiscalYear, error) {
	return utils.FetchModel[FiscalYear](ctx, tx, companyId, id)
}
