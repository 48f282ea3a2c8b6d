package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type VatStatus string

const (
	VatStatusVatable   VatStatus = "vatable"
	VatStatusVatExempt VatStatus = "vatExempt"
)

// Item is a stocked product. Stock is derived from the lots and must only be
// written together with them; Version guards concurrent writers.
type Item struct {
	ID             int             `gorm:"primary_key" json:"id"`
	CompanyId      int             `gorm:"index;not null" json:"company_id"`
	Name           string          `gorm:"index;size:150;not null" json:"name"`
	Category       string          `gorm:"size:100" json:"category"`
	Unit           string          `gorm:"size:30" json:"unit"`
	VatStatus      VatStatus       `gorm:"size:16;not null;default:vatable" json:"vat_status"`
	OpeningStock   decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"opening_stock"`
	Stock          decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"stock"`
	AveragePuPrice decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"average_pu_price"`
	Version        int             `gorm:"not null;default:1" json:"version"`
	Lots           []StockEntry    `gorm:"foreignKey:ItemId" json:"lots,omitempty"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i Item) Vatable() bool {
	return i.VatStatus != VatStatusVatExempt
}

type NewItem struct {
	Name      string    `json:"name" validate:"required,max=150"`
	Category  string    `json:"category" validate:"max=100"`
	Unit      string    `json:"unit" validate:"max=30"`
	VatStatus VatStatus `json:"vat_status" validate:"omitempty,oneof=vatable vatExempt"`
	// opening stock, recorded as the first lot
	OpeningStock   decimal.Decimal `json:"opening_stock"`
	OpeningPuPrice decimal.Decimal `json:"opening_pu_price"`
	OpeningPrice   decimal.Decimal `json:"opening_price"`
	Batch          string          `json:"batch" validate:"max=50"`
	Expiry         string          `json:"expiry"`
}

func (input *NewItem) Validate(ctx context.Context, tx *gorm.DB, companyId int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.OpeningStock.IsNegative() {
		return apperrors.ErrValidation("opening stock must not be negative").WithDetail("opening_stock", "gte")
	}
	if input.OpeningPuPrice.IsNegative() || input.OpeningPrice.IsNegative() {
		return apperrors.ErrValidation("opening prices must not be negative")
	}
	if input.Expiry != "" {
		if _, err := utils.ParseDate(input.Expiry); err != nil {
			return apperrors.ErrValidation(err.Error()).WithDetail("expiry", "date")
		}
	}
	return utils.ValidateUnique[Item](ctx, tx, companyId, "name", input.Name, 0)
}

func GetItem(ctx context.Context, tx *gorm.DB, companyId int, id int) (*Item, error) {
	return utils.FetchModel[Item](ctx, tx, companyId, id)
}

// GetItemsByIds loads items keyed by id and fails with NotFound on the first
// missing one.
func GetItemsByIds(ctx context.Context, tx *gorm.DB, companyId int, ids []int) (map[int]*Item, error) {
	return utils.FetchModelsByIds[Item](ctx, tx, companyId, ids, func(i *Item) int { return i.ID })
}

// SaveItemStock writes the derived stock figures of an item, bumping its
// version. Zero rows affected means somebody else changed the item first.
func SaveItemStock(ctx context.Context, tx *gorm.DB, item *Item, stock, averagePuPrice decimal.Decimal) error {
	res := tx.WithContext(ctx).Model(&Item{}).
		Where("id = ? AND version = ?", item.ID, item.Version).
		Updates(map[string]interface{}{
			"stock":            stock,
			"average_pu_price": averagePuPrice,
			"version":          item.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrConflict("item " + item.Name + " was changed by another request").
			WithDetail("item", item.Name)
	}
	item.Stock = stock
	item.AveragePuPrice = averagePuPrice
	item.Version++
	return nil
}
