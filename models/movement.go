package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/billing"
	"bitbucket.org/mmdatafocus/retail_backend/inventory"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type billMovementRow struct {
	BillItemId      int
	BillType        billing.BillKind
	BillNumber      string
	PartyAccountId  int
	CashAccountName string
	Date            time.Time
	BaseQuantity    decimal.Decimal
	Price           decimal.Decimal
	Batch           string
	Expiry          *time.Time
}

type adjustmentMovementRow struct {
	AdjustmentItemId int
	AdjustmentNumber string
	Date             time.Time
	Type             AdjustmentType
	Quantity         decimal.Decimal
	PuPrice          decimal.Decimal
	Batch            string
	Expiry           *time.Time
}

func movementTypeOf(kind billing.BillKind) (inventory.MovementType, bool) {
	switch kind {
	case billing.BillKindPurchase:
		return inventory.MovementPurchase, true
	case billing.BillKindSales:
		return inventory.MovementSale, false
	case billing.BillKindPurchaseReturn:
		return inventory.MovementPurchaseReturn, false
	case billing.BillKindSalesReturn:
		return inventory.MovementSalesReturn, true
	default:
		return "", false
	}
}

// LoadItemMovements collects every stock movement of an item dated on or
// before toDate from bills and stock adjustments. Counterparty names are left
// for the caller to resolve from CounterpartyId; walk-in bills carry their
// cash account name already.
func LoadItemMovements(ctx context.Context, tx *gorm.DB, itemId int, toDate time.Time) ([]inventory.Movement, error) {
	db := tx.WithContext(ctx)
	var billRows []billMovementRow
	if err := db.Table("bill_items").
		Select("bill_items.id AS bill_item_id, bills.bill_type, bills.bill_number, bills.party_account_id, bills.cash_account_name, "+
			"bills.date, bill_items.base_quantity, bill_items.price, bill_items.batch, bill_items.expiry").
		Joins("JOIN bills ON bills.id = bill_items.bill_id").
		Where("bill_items.item_id = ? AND bills.date <= ?", itemId, toDate).
		Scan(&billRows).Error; err != nil {
		return nil, err
	}

	var adjRows []adjustmentMovementRow
	if err := db.Table("stock_adjustment_items").
		Select("stock_adjustment_items.id AS adjustment_item_id, stock_adjustments.adjustment_number, stock_adjustments.date, "+
			"stock_adjustment_items.type, stock_adjustment_items.quantity, stock_adjustment_items.pu_price, "+
			"stock_adjustment_items.batch, stock_adjustment_items.expiry").
		Joins("JOIN stock_adjustments ON stock_adjustments.id = stock_adjustment_items.stock_adjustment_id").
		Where("stock_adjustment_items.item_id = ? AND stock_adjustments.date <= ?", itemId, toDate).
		Scan(&adjRows).Error; err != nil {
		return nil, err
	}

	movements := make([]inventory.Movement, 0, len(billRows)+len(adjRows))
	for _, r := range billRows {
		typ, incoming := movementTypeOf(r.BillType)
		if typ == "" {
			continue
		}
		m := inventory.Movement{
			Date:           r.Date,
			Type:           typ,
			CounterpartyId: r.PartyAccountId,
			BillNumber:     r.BillNumber,
			Seq:            r.BillItemId,
			QtyIn:          decimal.Zero,
			QtyOut:         decimal.Zero,
			UnitPrice:      r.Price,
			Batch:          r.Batch,
			Expiry:         r.Expiry,
		}
		if r.PartyAccountId == 0 {
			m.CounterpartyName = r.CashAccountName
			if m.CounterpartyName == "" {
				m.CounterpartyName = billing.AccountCashInHand
			}
		}
		if incoming {
			m.QtyIn = r.BaseQuantity
		} else {
			m.QtyOut = r.BaseQuantity
		}
		movements = append(movements, m)
	}
	for _, r := range adjRows {
		m := inventory.Movement{
			Date:             r.Date,
			CounterpartyName: AdjustmentCounterparty,
			BillNumber:       r.AdjustmentNumber,
			Seq:              r.AdjustmentItemId,
			QtyIn:            decimal.Zero,
			QtyOut:           decimal.Zero,
			UnitPrice:        r.PuPrice,
			Batch:            r.Batch,
			Expiry:           r.Expiry,
		}
		if r.Type == AdjustmentTypeExcess {
			m.Type = inventory.MovementAdjustmentExcess
			m.QtyIn = r.Quantity
		} else {
			m.Type = inventory.MovementAdjustmentShort
			m.QtyOut = r.Quantity
		}
		movements = append(movements, m)
	}
	return movements, nil
}

// AdjustmentCounterparty is shown against stock adjustments in the ledger.
const AdjustmentCounterparty = "Stock Adjustment"
