package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"bitbucket.org/mmdatafocus/retail_backend/billing"
	"bitbucket.org/mmdatafocus/retail_backend/inventory"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// AccountNameResolver maps account ids to names.
type AccountNameResolver func(ctx context.Context, ids []int) (map[int]string, error)

// DBAccountNames resolves names with one query per call.
func DBAccountNames(tx *gorm.DB) AccountNameResolver {
	return func(ctx context.Context, ids []int) (map[int]string, error) {
		return models.GetAccountNames(ctx, tx, ids)
	}
}

func checkWindow(from, to time.Time) (time.Time, time.Time, error) {
	from, to = utils.DateOnly(from), utils.DateOnly(to)
	if to.Before(from) {
		return from, to, apperrors.ErrValidation("from date must not be after to date").WithDetail("from", "lte_to")
	}
	return from, to, nil
}

// GetStockLedger rebuilds the movement history of one item over [from, to].
func GetStockLedger(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext, itemId int, from, to time.Time, names AccountNameResolver) (ledger *inventory.StockLedger, err error) {
	ctx, span := startSpan(ctx, "GetStockLedger", attribute.Int("item.id", itemId))
	defer func() { endSpan(span, err) }()

	if from, to, err = checkWindow(from, to); err != nil {
		return nil, err
	}
	item, err := models.GetItem(ctx, tx, rc.CompanyId, itemId)
	if err != nil {
		return nil, err
	}
	movements, err := models.LoadItemMovements(ctx, tx, item.ID, to)
	if err != nil {
		return nil, err
	}

	var ids []int
	for _, m := range movements {
		if m.CounterpartyId != 0 {
			ids = append(ids, m.CounterpartyId)
		}
	}
	if names == nil {
		names = DBAccountNames(tx)
	}
	resolved, err := names(ctx, utils.UniqueSlice(ids))
	if err != nil {
		return nil, err
	}
	for i := range movements {
		id := movements[i].CounterpartyId
		if id == 0 {
			continue
		}
		name, ok := resolved[id]
		if !ok {
			return nil, apperrors.ErrNotFoundWithID("Account", id)
		}
		movements[i].CounterpartyName = name
	}

	built := inventory.BuildStockLedger(item.OpeningStock, movements, from, to)
	return &built, nil
}

type AccountStatement struct {
	Account        models.Account       `json:"account"`
	FromDate       time.Time            `json:"from_date"`
	ToDate         time.Time            `json:"to_date"`
	OpeningBalance decimal.Decimal      `json:"opening_balance"`
	Rows           []models.Transaction `json:"rows"`
	TotalDebit     decimal.Decimal      `json:"total_debit"`
	TotalCredit    decimal.Decimal      `json:"total_credit"`
	ClosingBalance decimal.Decimal      `json:"closing_balance"`
}

// GetAccountStatement lists the rows of an account over [from, to] with the
// running balance, debit positive, opening from everything dated earlier.
func GetAccountStatement(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext, accountId int, from, to time.Time) (st *AccountStatement, err error) {
	ctx, span := startSpan(ctx, "GetAccountStatement", attribute.Int("account.id", accountId))
	defer func() { endSpan(span, err) }()

	if from, to, err = checkWindow(from, to); err != nil {
		return nil, err
	}
	account, err := models.GetAccount(ctx, tx, rc.CompanyId, accountId)
	if err != nil {
		return nil, err
	}
	rows, err := models.AccountTransactions(ctx, tx, account.ID)
	if err != nil {
		return nil, err
	}

	st = &AccountStatement{
		Account:        *account,
		FromDate:       from,
		ToDate:         to,
		OpeningBalance: account.OpeningBalance,
		Rows:           []models.Transaction{},
		TotalDebit:     decimal.Zero,
		TotalCredit:    decimal.Zero,
	}
	balance := account.OpeningBalance
	for _, r := range rows {
		day := utils.DateOnly(r.Date)
		if day.After(to) {
			break
		}
		balance = balance.Add(r.Signed())
		if day.Before(from) {
			st.OpeningBalance = balance
			continue
		}
		r.Balance = balance
		st.Rows = append(st.Rows, r)
		st.TotalDebit = st.TotalDebit.Add(r.Debit)
		st.TotalCredit = st.TotalCredit.Add(r.Credit)
	}
	st.ClosingBalance = st.OpeningBalance.Add(st.TotalDebit).Sub(st.TotalCredit)
	return st, nil
}

type VatReportLine struct {
	BillType      billing.BillKind `json:"bill_type"`
	BillCount     int              `json:"bill_count"`
	TaxableAmount decimal.Decimal  `json:"taxable_amount"`
	NonVatAmount  decimal.Decimal  `json:"non_vat_amount"`
	VatAmount     decimal.Decimal  `json:"vat_amount"`
	TotalAmount   decimal.Decimal  `json:"total_amount"`
}

type VatReport struct {
	FromDate time.Time       `json:"from_date"`
	ToDate   time.Time       `json:"to_date"`
	Lines    []VatReportLine `json:"lines"`
	// NetVatPayable is output VAT less input VAT, returns included.
	NetVatPayable decimal.Decimal `json:"net_vat_payable"`
}

var vatReportOrder = []billing.BillKind{
	billing.BillKindSales,
	billing.BillKindSalesReturn,
	billing.BillKindPurchase,
	billing.BillKindPurchaseReturn,
}

// GetVatReport totals bills by type over [from, to]. Every bill type gets a
// line, zero when nothing was posted.
func GetVatReport(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext, from, to time.Time) (report *VatReport, err error) {
	ctx, span := startSpan(ctx, "GetVatReport")
	defer func() { endSpan(span, err) }()

	if from, to, err = checkWindow(from, to); err != nil {
		return nil, err
	}
	var bills []models.Bill
	if err := tx.WithContext(ctx).
		Select("id", "bill_type", "taxable_amount", "non_vat_amount", "vat_amount", "total_amount").
		Where("company_id = ? AND date >= ? AND date <= ?", rc.CompanyId, from, to).
		Find(&bills).Error; err != nil {
		return nil, err
	}

	byType := make(map[billing.BillKind]*VatReportLine, len(vatReportOrder))
	report = &VatReport{FromDate: from, ToDate: to, NetVatPayable: decimal.Zero}
	for _, kind := range vatReportOrder {
		byType[kind] = &VatReportLine{
			BillType:      kind,
			TaxableAmount: decimal.Zero,
			NonVatAmount:  decimal.Zero,
			VatAmount:     decimal.Zero,
			TotalAmount:   decimal.Zero,
		}
	}
	for _, b := range bills {
		line, ok := byType[b.BillType]
		if !ok {
			continue
		}
		line.BillCount++
		line.TaxableAmount = line.TaxableAmount.Add(b.TaxableAmount)
		line.NonVatAmount = line.NonVatAmount.Add(b.NonVatAmount)
		line.VatAmount = line.VatAmount.Add(b.VatAmount)
		line.TotalAmount = line.TotalAmount.Add(b.TotalAmount)
	}
	for _, kind := range vatReportOrder {
		line := byType[kind]
		report.Lines = append(report.Lines, *line)
		switch kind {
		case billing.BillKindSales, billing.BillKindPurchaseReturn:
			report.NetVatPayable = report.NetVatPayable.Add(line.VatAmount)
		case billing.BillKindSalesReturn, billing.BillKindPurchase:
			report.NetVatPayable = report.NetVatPayable.Sub(line.VatAmount)
		}
	}
	return report, nil
}
