package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"bitbucket.org/mmdatafocus/retail_backend/billing"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AccountGroup string

const (
	AccountGroupSundryDebtors    AccountGroup = "Sundry Debtors"
	AccountGroupSundryCreditors  AccountGroup = "Sundry Creditors"
	AccountGroupCash             AccountGroup = "Cash-in-Hand"
	AccountGroupBank             AccountGroup = "Bank Accounts"
	AccountGroupDutiesAndTaxes   AccountGroup = "Duties & Taxes"
	AccountGroupPurchaseAccounts AccountGroup = "Purchase Accounts"
	AccountGroupSalesAccounts    AccountGroup = "Sales Accounts"
	AccountGroupIndirectExpenses AccountGroup = "Indirect Expenses"
)

type Account struct {
	ID        int          `gorm:"primary_key" json:"id"`
	CompanyId int          `gorm:"index;not null" json:"company_id"`
	Name      string       `gorm:"index;size:100;not null" json:"name"`
	Group     AccountGroup `gorm:"column:account_group;size:50;not null" json:"group"`
	Phone     string       `gorm:"size:20" json:"phone"`
	Address   string       `gorm:"type:text" json:"address"`
	// OpeningBalance is debit positive.
	OpeningBalance decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"opening_balance"`
	IsSystem       bool            `gorm:"not null;default:false" json:"is_system"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewAccount struct {
	Name           string          `json:"name" validate:"required,max=100"`
	Group          AccountGroup    `json:"group" validate:"required,max=50"`
	Phone          string          `json:"phone" validate:"max=20"`
	Address        string          `json:"address"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

var systemAccounts = []struct {
	name  string
	group AccountGroup
}{
	{billing.AccountPurchase, AccountGroupPurchaseAccounts},
	{billing.AccountSales, AccountGroupSalesAccounts},
	{billing.AccountVat, AccountGroupDutiesAndTaxes},
	{billing.AccountRoundedOff, AccountGroupIndirectExpenses},
	{billing.AccountCashInHand, AccountGroupCash},
}

func invalidPhone(err error) error {
	return apperrors.ErrValidation("invalid phone number: " + err.Error()).WithDetail("phone", "phone")
}

// validate input for create (id = 0) and update
func (input *NewAccount) validate(ctx context.Context, tx *gorm.DB, companyId int, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateUnique[Account](ctx, tx, companyId, "name", input.Name, id); err != nil {
		return err
	}
	if input.Phone != "" {
		if err := utils.ValidatePhoneNumber(input.Phone, utils.CountryCode); err != nil {
			return invalidPhone(err)
		}
	}
	return nil
}

func CreateAccount(ctx context.Context, tx *gorm.DB, companyId int, input *NewAccount) (*Account, error) {
	if err := input.validate(ctx, tx, companyId, 0); err != nil {
		return nil, err
	}

	account := Account{
		CompanyId:      companyId,
		Name:           input.Name,
		Group:          input.Group,
		Address:        input.Address,
		OpeningBalance: input.OpeningBalance,
	}
	if input.Phone != "" {
		account.Phone = utils.FormatPhoneNumber(input.Phone, utils.CountryCode)
	}
	if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// SeedSystemAccounts creates whichever well-known accounts the company is
// missing.
func SeedSystemAccounts(ctx context.Context, tx *gorm.DB, companyId int) error {
	for _, sa := range systemAccounts {
		var count int64
		if err := tx.WithContext(ctx).Model(&Account{}).
			Where("company_id = ? AND name = ?", companyId, sa.name).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		account := Account{
			CompanyId:      companyId,
			Name:           sa.name,
			Group:          sa.group,
			OpeningBalance: decimal.Zero,
			IsSystem:       true,
		}
		if err := tx.WithContext(ctx).Create(&account).Error; err != nil {
			return err
		}
	}
	return nil
}

// GetSystemAccounts looks the well-known accounts up by name; missing ones
// stay zero.
func GetSystemAccounts(ctx context.Context, tx *gorm.DB, companyId int) (billing.SystemAccounts, error) {
	names := make([]string, 0, len(systemAccounts))
	for _, sa := range systemAccounts {
		names = append(names, sa.name)
	}
	var rows []Account
	if err := tx.WithContext(ctx).
		Where("company_id = ? AND name IN ?", companyId, names).
		Order("id").
		Find(&rows).Error; err != nil {
		return billing.SystemAccounts{}, err
	}
	var sa billing.SystemAccounts
	for _, a := range rows {
		switch a.Name {
		case billing.AccountPurchase:
			sa.Purchase = pick(sa.Purchase, a.ID)
		case billing.AccountSales:
			sa.Sales = pick(sa.Sales, a.ID)
		case billing.AccountVat:
			sa.Vat = pick(sa.Vat, a.ID)
		case billing.AccountRoundedOff:
			sa.RoundedOff = pick(sa.RoundedOff, a.ID)
		case billing.AccountCashInHand:
			sa.CashInHand = pick(sa.CashInHand, a.ID)
		}
	}
	return sa, nil
}

// first one wins when a name is duplicated
func pick(current, id int) int {
	if current != 0 {
		return current
	}
	return id
}

func GetAccount(ctx context.Context, tx *gorm.DB, companyId int, id int) (*Account, error) {
	return utils.FetchModel[Account](ctx, tx, companyId, id)
}

// GetAccountNames maps account ids to names. Unknown ids are left out.
func GetAccountNames(ctx context.Context, tx *gorm.DB, ids []int) (map[int]string, error) {
	names := make(map[int]string, len(ids))
	ids = utils.UniqueSlice(ids)
	if len(ids) == 0 {
		return names, nil
	}
	var rows []Account
	if err := tx.WithContext(ctx).Select("id", "name").Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, a := range rows {
		names[a.ID] = a.Name
	}
	return names, nil
}

func GetAccountsByIds(ctx context.Context, tx *gorm.DB, ids []int) ([]Account, error) {
	var rows []Account
	if len(ids) == 0 {
		return rows, nil
	}
	err := tx.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	return rows, err
}
