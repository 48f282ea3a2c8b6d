package inventory

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

type MovementType string

const (
	MovementPurchase         MovementType = "Purchase"
	MovementSalesReturn      MovementType = "Sales Return"
	MovementAdjustmentExcess MovementType = "Adjustment Excess"
	MovementAdjustmentShort  MovementType = "Adjustment Short"
	MovementPurchaseReturn   MovementType = "Purchase Return"
	MovementSale             MovementType = "Sale"
)

// rank orders movements of the same day: incoming before outgoing.
func (t MovementType) rank() int {
	switch t {
	case MovementPurchase:
		return 0
	case MovementSalesReturn:
		return 1
	case MovementAdjustmentExcess, MovementAdjustmentShort:
		return 2
	case MovementPurchaseReturn:
		return 3
	case MovementSale:
		return 4
	default:
		return 5
	}
}

// Movement is a single stock change of one item from any of the source
// documents. Exactly one of QtyIn and QtyOut is non-zero.
type Movement struct {
	Date             time.Time       `json:"date"`
	Type             MovementType    `json:"type"`
	CounterpartyId   int             `json:"-"`
	CounterpartyName string          `json:"counterparty_name"`
	BillNumber       string          `json:"bill_number"`
	Seq              int             `json:"-"`
	QtyIn            decimal.Decimal `json:"qty_in"`
	QtyOut           decimal.Decimal `json:"qty_out"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Batch            string          `json:"batch"`
	Expiry           *time.Time      `json:"expiry"`
}

func (m Movement) Net() decimal.Decimal {
	return m.QtyIn.Sub(m.QtyOut)
}

type LedgerRow struct {
	Movement
	Balance decimal.Decimal `json:"balance"`
}

type LedgerSummary struct {
	Purchased        decimal.Decimal `json:"purchased"`
	Sold             decimal.Decimal `json:"sold"`
	PurchaseReturned decimal.Decimal `json:"purchase_returned"`
	SalesReturned    decimal.Decimal `json:"sales_returned"`
	NetAdjustment    decimal.Decimal `json:"net_adjustment"`
	Closing          decimal.Decimal `json:"closing"`
}

type StockLedger struct {
	FromDate       time.Time       `json:"from_date"`
	ToDate         time.Time       `json:"to_date"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Rows           []LedgerRow     `json:"rows"`
	Summary        LedgerSummary   `json:"summary"`
}

// BuildStockLedger reconstructs the running balance of one item over
// [from, to], both days inclusive. Movements before from only feed the
// opening balance; movements after to are ignored.
func BuildStockLedger(openingStock decimal.Decimal, movements []Movement, from, to time.Time) StockLedger {
	from, to = dayOf(from), dayOf(to)
	ledger := StockLedger{FromDate: from, ToDate: to}

	opening := openingStock
	var window []Movement
	for _, m := range movements {
		d := dayOf(m.Date)
		switch {
		case d.Before(from):
			opening = opening.Add(m.Net())
		case d.After(to):
		default:
			window = append(window, m)
		}
	}
	SortMovements(window)

	ledger.OpeningBalance = opening
	summary := LedgerSummary{
		Purchased:        decimal.Zero,
		Sold:             decimal.Zero,
		PurchaseReturned: decimal.Zero,
		SalesReturned:    decimal.Zero,
		NetAdjustment:    decimal.Zero,
	}
	balance := opening
	ledger.Rows = make([]LedgerRow, 0, len(window))
	for _, m := range window {
		balance = balance.Add(m.Net())
		ledger.Rows = append(ledger.Rows, LedgerRow{Movement: m, Balance: balance})
		switch m.Type {
		case MovementPurchase:
			summary.Purchased = summary.Purchased.Add(m.QtyIn)
		case MovementSale:
			summary.Sold = summary.Sold.Add(m.QtyOut)
		case MovementPurchaseReturn:
			summary.PurchaseReturned = summary.PurchaseReturned.Add(m.QtyOut)
		case MovementSalesReturn:
			summary.SalesReturned = summary.SalesReturned.Add(m.QtyIn)
		case MovementAdjustmentExcess, MovementAdjustmentShort:
			summary.NetAdjustment = summary.NetAdjustment.Add(m.Net())
		}
	}
	summary.Closing = balance
	ledger.Summary = summary
	return ledger
}

// SortMovements orders by (day, movement rank, bill number, source sequence).
func SortMovements(movements []Movement) {
	sort.SliceStable(movements, func(i, j int) bool {
		a, b := movements[i], movements[j]
		da, db := dayOf(a.Date), dayOf(b.Date)
		if !da.Equal(db) {
			return da.Before(db)
		}
		if a.Type.rank() != b.Type.rank() {
			return a.Type.rank() < b.Type.rank()
		}
		if a.BillNumber != b.BillNumber {
			return a.BillNumber < b.BillNumber
		}
		return a.Seq < b.Seq
	})
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
