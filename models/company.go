package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"gorm.io/gorm"
)

type Company struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"index;size:100;not null" json:"name"`
	Address   string    `gorm:"type:text" json:"address"`
	Phone     string    `gorm:"size:20" json:"phone"`
	VatNumber string    `gorm:"size:50" json:"vat_number"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewCompany struct {
	Name       string        `json:"name" validate:"required,max=100"`
	Address    string        `json:"address"`
	Phone      string        `json:"phone"`
	VatNumber  string        `json:"vat_number" validate:"max=50"`
	FiscalYear NewFiscalYear `json:"fiscal_year"`
}

func (input *NewCompany) validate() error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return invalidPhone(err)
		}
	}
	return input.FiscalYear.validate()
}

// CreateCompany creates the company, its first fiscal year and its
// well-known accounts.
func CreateCompany(ctx context.Context, tx *gorm.DB, input *NewCompany) (*Company, *FiscalYear, error) {
	if err := input.validate(); err != nil {
		return nil, nil, err
	}

	company := Company{
		Name:      input.Name,
		Address:   input.Address,
		VatNumber: input.VatNumber,
	}
	if input.Phone != "" {
		company.Phone = utils.FormatPhoneNumber(input.Phone, utils.CountryCode)
	}
	if err := tx.WithContext(ctx).Create(&company).Error; err != nil {
		return nil, nil, err
	}

	fy, err := createFiscalYear(ctx, tx, company.ID, &input.FiscalYear)
	if err != nil {
		return nil, nil, err
	}
	if err := SeedSystemAccounts(ctx, tx, company.ID); err != nil {
		return nil, nil, err
	}
	return &company, fy, nil
}
