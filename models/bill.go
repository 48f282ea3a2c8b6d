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

// Bill is a purchase, sales, purchase return or sales return, told apart by
// BillType. Walk-in cash bills have no PartyAccountId and carry the name in
// CashAccountName.
type Bill struct {
	ID                 int                 `gorm:"primary_key" json:"id"`
	CompanyId          int                 `gorm:"index;not null" json:"company_id"`
	FiscalYearId       int                 `gorm:"index;not null" json:"fiscal_year_id"`
	UserId             int                 `gorm:"index" json:"user_id"`
	BillType           billing.BillKind    `gorm:"size:20;index;not null" json:"bill_type"`
	BillNumber         string              `gorm:"size:50;index;not null" json:"bill_number"`
	PartyAccountId     int                 `gorm:"index" json:"party_account_id"`
	CashAccountName    string              `gorm:"size:100" json:"cash_account_name"`
	PaymentMode        billing.PaymentMode `gorm:"size:10;not null" json:"payment_mode"`
	Date               time.Time           `gorm:"index;not null" json:"date"`
	TransactionDate    time.Time           `gorm:"not null" json:"transaction_date"`
	VatMode            billing.VatMode     `gorm:"type:varchar(16);not null" json:"vat_mode"`
	DiscountPercentage decimal.Decimal     `gorm:"type:decimal(10,4);not null;default:0" json:"discount_percentage"`
	VatPercentage      decimal.Decimal     `gorm:"type:decimal(10,4);not null;default:0" json:"vat_percentage"`
	SubTotal           decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"sub_total"`
	TaxableAmount      decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"taxable_amount"`
	NonVatAmount       decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"non_vat_amount"`
	VatAmount          decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"vat_amount"`
	DiscountAmount     decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"discount_amount"`
	RoundOffAmount     decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"round_off_amount"`
	TotalAmount        decimal.Decimal     `gorm:"type:decimal(20,4);not null;default:0" json:"total_amount"`
	Note               string              `gorm:"type:text" json:"note"`
	Items              []BillItem          `gorm:"foreignKey:BillId" json:"items,omitempty"`
	Transactions       []Transaction       `gorm:"foreignKey:BillId" json:"transactions,omitempty"`
	CreatedAt          time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// BillItem is one line of a bill. BaseQuantity is the stock effect in base
// units. Sales and purchase returns split a requested line into one BillItem
// per lot consumed.
type BillItem struct {
	ID             int             `gorm:"primary_key" json:"id"`
	BillId         int             `gorm:"index;not null" json:"bill_id"`
	CompanyId      int             `gorm:"index;not null" json:"company_id"`
	ItemId         int             `gorm:"index;not null" json:"item_id"`
	Seq            int             `gorm:"not null;default:0" json:"seq"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	Bonus          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"bonus"`
	UnitFactor     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:1" json:"unit_factor"`
	BaseQuantity   decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"base_quantity"`
	Price          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price"`
	PuPrice        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"pu_price"`
	SalesPrice     decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"sales_price"`
	Margin         decimal.Decimal `gorm:"type:decimal(10,4);not null;default:0" json:"margin"`
	Currency       string          `gorm:"size:10" json:"currency"`
	Batch          string          `gorm:"size:50" json:"batch"`
	Expiry         *time.Time      `json:"expiry"`
	LotId          string          `gorm:"size:36;index" json:"lot_id"`
	LotDate        *time.Time      `json:"lot_date"`
	Vatable        bool            `gorm:"not null" json:"vatable"`
	CC             decimal.Decimal `gorm:"column:cc;type:decimal(20,4);not null;default:0" json:"cc"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"discount_amount"`
	NetAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"net_amount"`
	VatAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"vat_amount"`
}

type NewBill struct {
	PartyAccountId  int                 `json:"party_account_id"`
	CashAccountName string              `json:"cash_account_name" validate:"max=100"`
	PaymentMode     billing.PaymentMode `json:"payment_mode" validate:"required,oneof=cash credit"`
	Date            string              `json:"date" validate:"required"`
	TransactionDate string              `json:"transaction_date"`
	VatMode         *billing.VatMode    `json:"vat_mode" validate:"required"`
	// percentages apply to the whole bill
	DiscountPercentage decimal.Decimal  `json:"discount_percentage"`
	VatPercentage      decimal.Decimal  `json:"vat_percentage"`
	RoundOff           *decimal.Decimal `json:"round_off"`
	AutoRoundOff       *bool            `json:"auto_round_off"`
	Note               string           `json:"note"`
	Items              []NewBillItem    `json:"items" validate:"required,min=1,dive"`
}

type NewBillItem struct {
	ItemId     int             `json:"item_id" validate:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	Bonus      decimal.Decimal `json:"bonus"`
	UnitFactor decimal.Decimal `json:"unit_factor"`
	// Price is the unit price of the line: purchase price on purchases and
	// purchase returns, selling price on sales and sales returns.
	Price      decimal.Decimal `json:"price"`
	SalesPrice decimal.Decimal `json:"sales_price"`
	Margin     decimal.Decimal `json:"margin"`
	Currency   string          `json:"currency" validate:"max=10"`
	Batch      string          `json:"batch" validate:"max=50"`
	Expiry     string          `json:"expiry"`
	// LotId picks a lot explicitly on sales, purchase returns and sales returns.
	LotId string          `json:"lot_id" validate:"max=36"`
	CC    decimal.Decimal `json:"cc"`
}

// Factor is the unit factor with the default of 1.
func (l NewBillItem) Factor() decimal.Decimal {
	if l.UnitFactor.IsPositive() {
		return l.UnitFactor
	}
	return decimal.NewFromInt(1)
}

// BaseQuantity is the stock effect of the line. Bonus units only come with
// purchases.
func (l NewBillItem) BaseQuantity(kind billing.BillKind) decimal.Decimal {
	qty := l.Quantity
	if kind == billing.BillKindPurchase {
		qty = qty.Add(l.Bonus)
	}
	return qty.Mul(l.Factor())
}

// BillDates are the parsed dates of a NewBill.
type BillDates struct {
	Date            time.Time
	TransactionDate time.Time
}

// Validate checks what can be checked without touching stock: field rules,
// dates inside the fiscal year and the party account.
func (input *NewBill) Validate(ctx context.Context, tx *gorm.DB, kind billing.BillKind, companyId int, fy *FiscalYear) (BillDates, error) {
	var dates BillDates
	if err := utils.ValidateStruct(input); err != nil {
		return dates, err
	}
	for i, l := range input.Items {
		if !l.Quantity.IsPositive() {
			return dates, apperrors.ErrValidationf("line %d: quantity must be greater than zero", i+1)
		}
		if l.Bonus.IsNegative() || l.UnitFactor.IsNegative() || l.Price.IsNegative() || l.CC.IsNegative() {
			return dates, apperrors.ErrValidationf("line %d: amounts must not be negative", i+1)
		}
		if l.Bonus.IsPositive() && kind != billing.BillKindPurchase {
			return dates, apperrors.ErrValidationf("line %d: bonus is only allowed on purchases", i+1)
		}
		if l.Expiry != "" {
			if _, err := utils.ParseDate(l.Expiry); err != nil {
				return dates, apperrors.ErrValidationf("line %d: %v", i+1, err)
			}
		}
	}

	date, err := utils.ParseDate(input.Date)
	if err != nil {
		return dates, apperrors.ErrValidation(err.Error()).WithDetail("date", "date")
	}
	dates.Date = date
	dates.TransactionDate = date
	if input.TransactionDate != "" {
		if dates.TransactionDate, err = utils.ParseDate(input.TransactionDate); err != nil {
			return dates, apperrors.ErrValidation(err.Error()).WithDetail("transaction_date", "date")
		}
	}
	if err := fy.CheckDate("date", dates.Date); err != nil {
		return dates, err
	}
	if err := fy.CheckDate("transaction_date", dates.TransactionDate); err != nil {
		return dates, err
	}

	if input.PartyAccountId == 0 {
		if input.PaymentMode != billing.PaymentModeCash {
			return dates, apperrors.ErrValidation("a credit bill needs a party account").WithDetail("party_account_id", "required")
		}
	} else if err := utils.ValidateResourcesId[Account](ctx, tx, companyId, []int{input.PartyAccountId}); err != nil {
		return dates, err
	}
	return dates, nil
}

// GetBill loads a bill of the given kind with its lines and transactions.
// An empty kind matches any bill.
func GetBill(ctx context.Context, tx *gorm.DB, companyId int, id int, kind billing.BillKind) (*Bill, error) {
	db := tx.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("seq, id") }).
		Preload("Transactions", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("company_id = ?", companyId)
	if kind != "" {
		db = db.Where("bill_type = ?", kind)
	}
	var bill Bill
	if err := db.First(&bill, id).Error; err != nil {
		return nil, utils.NotFoundOr(err, "Bill", id)
	}
	return &bill, nil
}

// ItemLotIdsInHistory returns which of lotIds some bill line of the item
// has moved stock in or out of.
func ItemLotIdsInHistory(ctx context.Context, tx *gorm.DB, itemId int, lotIds []string) (map[string]bool, error) {
	known := make(map[string]bool, len(lotIds))
	if len(lotIds) == 0 {
		return known, nil
	}
	var found []string
	if err := tx.WithContext(ctx).Model(&BillItem{}).
		Where("item_id = ? AND lot_id IN ?", itemId, lotIds).
		Distinct().Pluck("lot_id", &found).Error; err != nil {
		return nil, err
	}
	for _, id := range found {
		known[id] = true
	}
	return known, nil
}

// ApplyValuation copies header totals onto the bill.
func (b *Bill) ApplyValuation(v billing.Valuation) {
	b.SubTotal = v.SubTotal
	b.TaxableAmount = v.TaxableAmount
	b.NonVatAmount = v.NonVatAmount
	b.VatAmount = v.VatAmount
	b.DiscountAmount = v.DiscountAmount
	b.RoundOffAmount = v.RoundOffAmount
	b.TotalAmount = v.TotalAmount
}

// CounterpartyName is the party account name or, for walk-in bills, the
// cash account name.
func (b Bill) CounterpartyName(names map[int]string) string {
	if b.PartyAccountId != 0 {
		if n, ok := names[b.PartyAccountId]; ok {
			return n
		}
	}
	if b.CashAccountName != "" {
		return b.CashAccountName
	}
	return billing.AccountCashInHand
}
