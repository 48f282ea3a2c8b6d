package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/inventory"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockEntry is the persisted form of an inventory.Lot.
type StockEntry struct {
	ID           int             `gorm:"primary_key" json:"id"`
	CompanyId    int             `gorm:"index;not null" json:"company_id"`
	ItemId       int             `gorm:"index;not null" json:"item_id"`
	UniqueUuid   string          `gorm:"size:36;uniqueIndex;not null" json:"unique_uuid"`
	Batch        string          `gorm:"size:50;index" json:"batch"`
	Expiry       *time.Time      `json:"expiry"`
	Date         time.Time       `gorm:"index;not null" json:"date"`
	Seq          int             `gorm:"not null;default:0" json:"seq"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"quantity"`
	PuPrice      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"pu_price"`
	Price        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price"`
	Bonus        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"bonus"`
	Margin       decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"margin"`
	Currency     string          `gorm:"size:10" json:"currency"`
	BillId       int             `gorm:"index" json:"bill_id"`
	FiscalYearId int             `gorm:"index" json:"fiscal_year_id"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (e StockEntry) ToLot() inventory.Lot {
	return inventory.Lot{
		LotId:        e.UniqueUuid,
		Batch:        e.Batch,
		Expiry:       e.Expiry,
		Date:         e.Date,
		Seq:          e.Seq,
		Quantity:     e.Quantity,
		PuPrice:      e.PuPrice,
		Price:        e.Price,
		Bonus:        e.Bonus,
		Margin:       e.Margin,
		Currency:     e.Currency,
		BillId:       e.BillId,
		FiscalYearId: e.FiscalYearId,
	}
}

func stockEntryFromLot(companyId, itemId int, l inventory.Lot) StockEntry {
	return StockEntry{
		CompanyId:    companyId,
		ItemId:       itemId,
		UniqueUuid:   l.LotId,
		Batch:        l.Batch,
		Expiry:       l.Expiry,
		Date:         l.Date,
		Seq:          l.Seq,
		Quantity:     l.Quantity,
		PuPrice:      l.PuPrice,
		Price:        l.Price,
		Bonus:        l.Bonus,
		Margin:       l.Margin,
		Currency:     l.Currency,
		BillId:       l.BillId,
		FiscalYearId: l.FiscalYearId,
	}
}

// LoadLotSet reads the lots of an item into a snapshot.
func LoadLotSet(ctx context.Context, tx *gorm.DB, item *Item) (inventory.LotSet, error) {
	var entries []StockEntry
	if err := tx.WithContext(ctx).
		Where("item_id = ?", item.ID).
		Order("date, seq, id").
		Find(&entries).Error; err != nil {
		return inventory.LotSet{}, err
	}
	lots := make([]inventory.Lot, 0, len(entries))
	for _, e := range entries {
		lots = append(lots, e.ToLot())
	}
	return inventory.NewLotSet(item.Name, lots), nil
}

// SaveLotDiff writes the lots that changed between two snapshots.
func SaveLotDiff(ctx context.Context, tx *gorm.DB, item *Item, diff inventory.LotDiff) error {
	db := tx.WithContext(ctx)
	for _, l := range diff.Deleted {
		if err := db.Where("item_id = ? AND unique_uuid = ?", item.ID, l.LotId).Delete(&StockEntry{}).Error; err != nil {
			return err
		}
	}
	for _, l := range diff.Updated {
		if err := db.Model(&StockEntry{}).
			Where("item_id = ? AND unique_uuid = ?", item.ID, l.LotId).
			Updates(map[string]interface{}{
				"batch":    l.Batch,
				"expiry":   l.Expiry,
				"date":     l.Date,
				"quantity": l.Quantity,
				"pu_price": l.PuPrice,
				"price":    l.Price,
				"bonus":    l.Bonus,
				"margin":   l.Margin,
				"currency": l.Currency,
			}).Error; err != nil {
			return err
		}
	}
	for _, l := range diff.Created {
		entry := stockEntryFromLot(item.CompanyId, item.ID, l)
		if err := db.Create(&entry).Error; err != nil {
			return err
		}
	}
	return nil
}
