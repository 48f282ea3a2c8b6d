package workflow

import (
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/billing"
	"bitbucket.org/mmdatafocus/retail_backend/inventory"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func decreasesStock(kind billing.BillKind) bool {
	return kind == billing.BillKindSales || kind == billing.BillKindPurchaseReturn
}

// applyBillStock moves stock for the new lines of a bill, first undoing the
// lines in old when the bill is being edited. It returns the bill lines to
// store; lines that consume stock come back split per lot.
func applyBillStock(plan *stockPlan, kind billing.BillKind, bill *models.Bill, old []models.BillItem, lines []models.NewBillItem) ([]models.BillItem, error) {
	if decreasesStock(kind) {
		return applyDecrease(plan, kind, bill, old, lines)
	}
	return applyIncrease(plan, kind, bill, old, lines)
}

// Sales and purchase returns. Old lines go back into their lots before the
// new lines consume.
func applyDecrease(plan *stockPlan, kind billing.BillKind, bill *models.Bill, old []models.BillItem, lines []models.NewBillItem) ([]models.BillItem, error) {
	for _, bi := range old {
		next, err := plan.lots(bi.ItemId).ReverseLot(inventory.Reversal{
			LotId:    bi.LotId,
			Batch:    bi.Batch,
			Quantity: bi.BaseQuantity,
			Template: reversalTemplate(bill, bi),
		})
		if err != nil {
			return nil, err
		}
		plan.set(bi.ItemId, next)
	}

	var out []models.BillItem
	for _, l := range lines {
		base := newBillItem(bill, plan.item(l.ItemId), kind, l)
		var (
			next  inventory.LotSet
			taken []inventory.Consumption
			err   error
		)
		if l.Batch != "" || l.LotId != "" {
			next, taken, err = plan.lots(l.ItemId).ConsumeBatch(l.Batch, l.LotId, base.BaseQuantity)
		} else {
			next, taken, err = plan.lots(l.ItemId).ConsumeFIFO(base.BaseQuantity)
		}
		if err != nil {
			return nil, err
		}
		plan.set(l.ItemId, next)
		out = append(out, splitByLot(base, taken)...)
	}
	return out, nil
}

// Purchases and sales returns. A new line that names the lot of an old line
// is the same line edited: only the difference moves, and for purchases the
// lot takes the new prices. Everything that adds stock runs before anything
// that takes stock away.
func applyIncrease(plan *stockPlan, kind billing.BillKind, bill *models.Bill, old []models.BillItem, lines []models.NewBillItem) ([]models.BillItem, error) {
	pending := make(map[string][]int, len(old))
	for i, bi := range old {
		if bi.LotId != "" {
			pending[bi.LotId] = append(pending[bi.LotId], i)
		}
	}
	usedOld := make([]bool, len(old))
	matched := make([]int, len(lines))
	for i, l := range lines {
		matched[i] = -1
		if l.LotId == "" {
			continue
		}
		if idx := pending[l.LotId]; len(idx) > 0 && old[idx[0]].ItemId == l.ItemId {
			matched[i] = idx[0]
			usedOld[idx[0]] = true
			pending[l.LotId] = idx[1:]
		}
	}

	out := make([]models.BillItem, len(lines))
	var shrink []models.BillItem
	for i, l := range lines {
		item := plan.item(l.ItemId)
		bi := newBillItem(bill, item, kind, l)
		set := plan.lots(l.ItemId)

		if j := matched[i]; j >= 0 {
			prev := old[j]
			bi.LotId = prev.LotId
			bi.LotDate = prev.LotDate
			if kind == billing.BillKindPurchase {
				// purchase lots follow the bill date
				date := bill.Date
				bi.LotDate = &date
			}
			template := increaseTemplate(bill, kind, item, set, &bi)
			delta := bi.BaseQuantity.Sub(prev.BaseQuantity)
			var err error
			if delta.IsPositive() {
				if set, err = set.ReverseLot(inventory.Reversal{LotId: bi.LotId, Batch: bi.Batch, Quantity: delta, Template: template}); err != nil {
					return nil, err
				}
			} else if delta.IsNegative() {
				take := prev
				take.BaseQuantity = delta.Neg()
				shrink = append(shrink, take)
			}
			if kind == billing.BillKindPurchase {
				set = set.ReviseLot(bi.LotId, template).ReDateLot(bi.LotId, bill.Date)
			}
			plan.set(l.ItemId, set)
			out[i] = bi
			continue
		}

		var err error
		if kind == billing.BillKindPurchase {
			bi.LotId = uuid.NewString()
			template := increaseTemplate(bill, kind, item, set, &bi)
			set, err = set.AddLot(template)
		} else {
			bi.LotId = resolveReturnLot(set, l)
			template := increaseTemplate(bill, kind, item, set, &bi)
			set, err = set.ReverseLot(inventory.Reversal{LotId: bi.LotId, Batch: bi.Batch, Quantity: bi.BaseQuantity, Template: template})
		}
		if err != nil {
			return nil, err
		}
		if bi.LotDate == nil {
			if lot, ok := set.Find(bi.LotId); ok {
				d := lot.Date
				bi.LotDate = &d
			}
		}
		plan.set(l.ItemId, set)
		out[i] = bi
	}

	for j, prev := range old {
		if !usedOld[j] {
			shrink = append(shrink, prev)
		}
	}
	for _, bi := range shrink {
		next, err := plan.lots(bi.ItemId).RemoveFromLot(bi.LotId, bi.Batch, bi.BaseQuantity)
		if err != nil {
			return nil, err
		}
		plan.set(bi.ItemId, next)
	}
	return out, nil
}

// resolveReturnLot picks the lot a sales return goes back into: the named
// lot, else the oldest lot of the named batch, else a fresh lot.
func resolveReturnLot(set inventory.LotSet, l models.NewBillItem) string {
	if l.LotId != "" {
		return l.LotId
	}
	if l.Batch != "" {
		for _, lot := range set.Lots() {
			if lot.Batch == l.Batch {
				return lot.LotId
			}
		}
	}
	return uuid.NewString()
}

func newBillItem(bill *models.Bill, item *models.Item, kind billing.BillKind, l models.NewBillItem) models.BillItem {
	bi := models.BillItem{
		CompanyId:    bill.CompanyId,
		ItemId:       l.ItemId,
		Quantity:     l.Quantity,
		Bonus:        l.Bonus,
		UnitFactor:   l.Factor(),
		BaseQuantity: l.BaseQuantity(kind),
		Price:        l.Price,
		PuPrice:      decimal.Zero,
		SalesPrice:   l.SalesPrice,
		Margin:       l.Margin,
		Currency:     l.Currency,
		Batch:        l.Batch,
		LotId:        l.LotId,
		Vatable:      item.Vatable(),
		CC:           l.CC,
	}
	if l.Expiry != "" {
		if t, err := utils.ParseDate(l.Expiry); err == nil {
			bi.Expiry = &t
		}
	}
	if kind == billing.BillKindPurchase {
		bi.PuPrice = l.Price
	}
	return bi
}

// increaseTemplate is the lot a purchase or sales return line creates or
// tops up. Lot prices are per base unit. Sales returns carry the cost of
// the lot they go back to, or the item's average cost for a fresh lot.
func increaseTemplate(bill *models.Bill, kind billing.BillKind, item *models.Item, set inventory.LotSet, bi *models.BillItem) inventory.Lot {
	factor := bi.UnitFactor
	lot := inventory.Lot{
		LotId:        bi.LotId,
		Batch:        bi.Batch,
		Expiry:       bi.Expiry,
		Date:         bill.Date,
		Quantity:     bi.BaseQuantity,
		Margin:       bi.Margin,
		Currency:     bi.Currency,
		FiscalYearId: bill.FiscalYearId,
	}
	if bi.LotDate != nil {
		lot.Date = *bi.LotDate
	}
	if kind == billing.BillKindPurchase {
		lot.PuPrice = perBase(bi.Price, factor)
		lot.Price = perBase(bi.SalesPrice, factor)
		lot.Bonus = bi.Bonus.Mul(factor)
		lot.BillId = bill.ID
		return lot
	}
	lot.PuPrice = item.AveragePuPrice
	lot.Price = perBase(bi.Price, factor)
	if existing, ok := set.Find(bi.LotId); ok {
		lot.PuPrice = existing.PuPrice
		lot.Date = existing.Date
		if lot.Batch == "" {
			lot.Batch = existing.Batch
			bi.Batch = existing.Batch
		}
		if lot.Expiry == nil {
			lot.Expiry = existing.Expiry
			bi.Expiry = existing.Expiry
		}
	}
	bi.PuPrice = lot.PuPrice.Mul(factor)
	return lot
}

// reversalTemplate rebuilds the lot an old sales or purchase return line
// consumed, for when that lot has been pruned since.
func reversalTemplate(bill *models.Bill, bi models.BillItem) inventory.Lot {
	date := bill.Date
	if bi.LotDate != nil {
		date = *bi.LotDate
	}
	return inventory.Lot{
		Batch:        bi.Batch,
		Expiry:       bi.Expiry,
		Date:         date,
		PuPrice:      perBase(bi.PuPrice, bi.UnitFactor),
		Price:        perBase(bi.SalesPrice, bi.UnitFactor),
		Margin:       bi.Margin,
		Currency:     bi.Currency,
		FiscalYearId: bill.FiscalYearId,
	}
}

// splitByLot turns one consuming line into a line per lot taken. The last
// piece takes the quantity residue and the line's CC.
func splitByLot(base models.BillItem, taken []inventory.Consumption) []models.BillItem {
	out := make([]models.BillItem, 0, len(taken))
	used := decimal.Zero
	for i, c := range taken {
		bi := base
		bi.BaseQuantity = c.Quantity
		bi.Quantity = c.Quantity.DivRound(base.UnitFactor, 4)
		if i == len(taken)-1 {
			bi.Quantity = base.Quantity.Sub(used)
		} else {
			bi.CC = decimal.Zero
		}
		used = used.Add(bi.Quantity)
		bi.LotId = c.LotId
		bi.Batch = c.Batch
		bi.Expiry = c.Expiry
		bi.LotDate = timePtr(c.LotDate)
		bi.PuPrice = c.PuPrice.Mul(base.UnitFactor)
		out = append(out, bi)
	}
	return out
}

func perBase(v, factor decimal.Decimal) decimal.Decimal {
	if !factor.IsPositive() || factor.Equal(decimal.NewFromInt(1)) {
		return v
	}
	return v.DivRound(factor, 4)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
