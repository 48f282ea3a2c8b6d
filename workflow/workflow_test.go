package workflow_test

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"bitbucket.org/mmdatafocus/retail_backend/billing"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func day(v string) time.Time {
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	rc       appctx.RequestContext
	poster   *workflow.Poster
	supplier int
	customer int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, models.Migrate(db))

	ctx := context.Background()
	company, fy, err := models.CreateCompany(ctx, db, &models.NewCompany{
		Name:       "Golden Pharmacy",
		FiscalYear: models.NewFiscalYear{Name: "2024", StartDate: "2024-01-01", EndDate: "2024-12-31"},
	})
	require.NoError(t, err)
	supplier, err := models.CreateAccount(ctx, db, company.ID, &models.NewAccount{Name: "Shwe Supplier", Group: models.AccountGroupSundryCreditors})
	require.NoError(t, err)
	customer, err := models.CreateAccount(ctx, db, company.ID, &models.NewAccount{Name: "Daw Mya", Group: models.AccountGroupSundryDebtors})
	require.NoError(t, err)

	return &fixture{
		t:        t,
		ctx:      ctx,
		db:       db,
		rc:       appctx.RequestContext{CompanyId: company.ID, FiscalYearId: fy.ID, UserId: 7},
		poster:   workflow.NewPoster(nil),
		supplier: supplier.ID,
		customer: customer.ID,
	}
}

func (f *fixture) item(name string, opening string) *models.Item {
	f.t.Helper()
	item, err := f.poster.CreateItem(f.ctx, f.db, f.rc, &models.NewItem{
		Name:           name,
		OpeningStock:   d(opening),
		OpeningPuPrice: d("10"),
	})
	require.NoError(f.t, err)
	return item
}

func (f *fixture) reload(id int) *models.Item {
	f.t.Helper()
	var item models.Item
	require.NoError(f.t, f.db.First(&item, id).Error)
	return &item
}

func (f *fixture) lots(item *models.Item) []models.StockEntry {
	f.t.Helper()
	var entries []models.StockEntry
	require.NoError(f.t, f.db.Where("item_id = ?", item.ID).Order("date, seq, id").Find(&entries).Error)
	return entries
}

func (f *fixture) transactionCount(billId int) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(&models.Transaction{}).Where("bill_id = ?", billId).Count(&n).Error)
	return n
}

var noRound = false

func vatMode(m billing.VatMode) *billing.VatMode {
	return &m
}

func newBill(party int, date string, lines ...models.NewBillItem) *models.NewBill {
	mode := billing.PaymentModeCredit
	if party == 0 {
		mode = billing.PaymentModeCash
	}
	return &models.NewBill{
		PartyAccountId: party,
		PaymentMode:    mode,
		Date:           date,
		VatMode:        vatMode(billing.VatModeStandard),
		VatPercentage:  d("13"),
		AutoRoundOff:   &noRound,
		Items:          lines,
	}
}

func line(itemId int, qty, price string) models.NewBillItem {
	return models.NewBillItem{ItemId: itemId, Quantity: d(qty), Price: d(price)}
}

// post runs one bill in its own transaction, the way the route layer does.
func (f *fixture) post(kind billing.BillKind, input *models.NewBill) (*models.Bill, error) {
	var bill *models.Bill
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		bill, err = f.poster.CreateBill(f.ctx, tx, f.rc, kind, input)
		return err
	})
	return bill, err
}

func (f *fixture) edit(kind billing.BillKind, id int, input *models.NewBill) (*models.Bill, error) {
	var bill *models.Bill
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var err error
		bill, err = f.poster.EditBill(f.ctx, tx, f.rc, kind, id, input)
		return err
	})
	return bill, err
}

// assertReturnedBalances checks that the rows handed back with a bill carry
// the running balances stored for them.
func assertReturnedBalances(t *testing.T, f *fixture, bill *models.Bill) {
	t.Helper()
	require.NotEmpty(t, bill.Transactions)
	for _, tr := range bill.Transactions {
		var stored models.Transaction
		require.NoError(t, f.db.First(&stored, tr.ID).Error)
		assert.False(t, tr.Balance.IsZero(), "row %d has no balance", tr.ID)
		assert.True(t, tr.Balance.Equal(stored.Balance), "row %d: returned %s, stored %s", tr.ID, tr.Balance, stored.Balance)
	}
}

func TestPurchaseAndSaleKeepStockDerived(t *testing.T) {
	f := newFixture(t)
	item := f.item("Paracetamol", "0")

	purchase, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-01", line(item.ID, "10", "100")))
	require.NoError(t, err)
	assert.Equal(t, "PB-1", purchase.BillNumber)
	assert.True(t, purchase.TotalAmount.Equal(d("1130")), "total %s", purchase.TotalAmount)
	assert.Equal(t, int64(3), f.transactionCount(purchase.ID))
	assertReturnedBalances(t, f, purchase)
	balances := map[int]decimal.Decimal{}
	for _, tr := range purchase.Transactions {
		balances[tr.AccountId] = tr.Balance
	}
	assert.True(t, balances[f.supplier].Equal(d("-1130")), "supplier balance %s", balances[f.supplier])

	sale, err := f.post(billing.BillKindSales, newBill(f.customer, "2024-03-02", line(item.ID, "4", "150")))
	require.NoError(t, err)
	assert.Equal(t, "SB-1", sale.BillNumber)
	require.Len(t, sale.Items, 1)
	assert.True(t, sale.Items[0].PuPrice.Equal(d("100")), "cost %s", sale.Items[0].PuPrice)
	assert.Equal(t, purchase.Items[0].LotId, sale.Items[0].LotId)

	reloaded := f.reload(item.ID)
	assert.True(t, reloaded.Stock.Equal(d("6")), "stock %s", reloaded.Stock)
	assert.True(t, reloaded.AveragePuPrice.Equal(d("100")))
	lots := f.lots(item)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Quantity.Equal(reloaded.Stock))
}

func TestSaleConsumesOldestLotFirst(t *testing.T) {
	f := newFixture(t)
	item := f.item("Amoxicillin", "0")

	_, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-02", line(item.ID, "5", "120")))
	require.NoError(t, err)
	_, err = f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-01", line(item.ID, "5", "100")))
	require.NoError(t, err)

	sale, err := f.post(billing.BillKindSales, newBill(f.customer, "2024-03-03", line(item.ID, "7", "150")))
	require.NoError(t, err)
	require.Len(t, sale.Items, 2)
	assert.True(t, sale.Items[0].Quantity.Equal(d("5")))
	assert.True(t, sale.Items[0].PuPrice.Equal(d("100")))
	assert.True(t, sale.Items[1].Quantity.Equal(d("2")))
	assert.True(t, sale.Items[1].PuPrice.Equal(d("120")))
	// one party row per stored line plus Sales and VAT
	assert.Equal(t, int64(4), f.transactionCount(sale.ID))

	lots := f.lots(item)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Quantity.Equal(d("3")))
	assert.True(t, lots[0].PuPrice.Equal(d("120")))
	assert.True(t, f.reload(item.ID).AveragePuPrice.Equal(d("120")))
}

func TestInsufficientStockLeavesEverythingUnchanged(t *testing.T) {
	f := newFixture(t)
	item := f.item("Vitamin C", "0")
	_, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-01", line(item.ID, "5", "100")))
	require.NoError(t, err)

	_, err = f.post(billing.BillKindSales, newBill(f.customer, "2024-03-02", line(item.ID, "8", "150")))
	require.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientStock), "got %v", err)
	appErr, _ := apperrors.AsAppError(err)
	assert.Equal(t, "5", appErr.Details["available"])
	assert.Equal(t, "8", appErr.Details["required"])

	assert.True(t, f.reload(item.ID).Stock.Equal(d("5")))
	lots := f.lots(item)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Quantity.Equal(d("5")))

	var sales int64
	require.NoError(t, f.db.Model(&models.Bill{}).Where("bill_type = ?", billing.BillKindSales).Count(&sales).Error)
	assert.Zero(t, sales)
}

func TestEditSaleNetsTheDifference(t *testing.T) {
	f := newFixture(t)
	item := f.item("Ibuprofen", "0")
	_, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-01", line(item.ID, "20", "100")))
	require.NoError(t, err)

	sale, err := f.post(billing.BillKindSales, newBill(f.customer, "2024-03-02", line(item.ID, "10", "150")))
	require.NoError(t, err)
	assert.True(t, f.reload(item.ID).Stock.Equal(d("10")))
	rowsBefore := f.transactionCount(sale.ID)

	edited, err := f.edit(billing.BillKindSales, sale.ID, newBill(f.customer, "2024-03-02", line(item.ID, "6", "150")))
	require.NoError(t, err)
	assert.Equal(t, sale.ID, edited.ID)
	assert.Equal(t, sale.BillNumber, edited.BillNumber)
	assert.True(t, edited.TotalAmount.Equal(d("1017")), "total %s", edited.TotalAmount)
	assertReturnedBalances(t, f, edited)

	assert.True(t, f.reload(item.ID).Stock.Equal(d("14")))
	assert.Equal(t, rowsBefore, f.transactionCount(sale.ID))

	var lines int64
	require.NoError(t, f.db.Model(&models.BillItem{}).Where("bill_id = ?", sale.ID).Count(&lines).Error)
	assert.Equal(t, int64(1), lines)
}

func TestEditPurchaseBelowSoldStock(t *testing.T) {
	f := newFixture(t)
	item := f.item("Cetirizine", "0")
	purchase, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-01", line(item.ID, "10", "100")))
	require.NoError(t, err)
	_, err = f.post(billing.BillKindSales, newBill(f.customer, "2024-03-02", line(item.ID, "8", "150")))
	require.NoError(t, err)

	lotId := purchase.Items[0].LotId
	shrunk := line(item.ID, "5", "100")
	shrunk.LotId = lotId
	_, err = f.edit(billing.BillKindPurchase, purchase.ID, newBill(f.supplier, "2024-03-01", shrunk))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeStockInUse), "got %v", err)
	assert.True(t, f.reload(item.ID).Stock.Equal(d("2")))

	revised := line(item.ID, "9", "90")
	revised.LotId = lotId
	edited, err := f.edit(billing.BillKindPurchase, purchase.ID, newBill(f.supplier, "2024-03-01", revised))
	require.NoError(t, err)
	assert.Equal(t, lotId, edited.Items[0].LotId)

	reloaded := f.reload(item.ID)
	assert.True(t, reloaded.Stock.Equal(d("1")), "stock %s", reloaded.Stock)
	lots := f.lots(item)
	require.Len(t, lots, 1)
	assert.Equal(t, lotId, lots[0].UniqueUuid)
	assert.True(t, lots[0].PuPrice.Equal(d("90")))
}

func TestEditPurchaseDateMovesItsLot(t *testing.T) {
	f := newFixture(t)
	item := f.item("Loratadine", "0")
	early, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-01", line(item.ID, "5", "100")))
	require.NoError(t, err)
	_, err = f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-05", line(item.ID, "5", "120")))
	require.NoError(t, err)

	moved := line(item.ID, "5", "100")
	moved.LotId = early.Items[0].LotId
	edited, err := f.edit(billing.BillKindPurchase, early.ID, newBill(f.supplier, "2024-03-10", moved))
	require.NoError(t, err)
	require.NotNil(t, edited.Items[0].LotDate)
	assert.True(t, edited.Items[0].LotDate.Equal(day("2024-03-10")))

	lots := f.lots(item)
	require.Len(t, lots, 2)
	assert.True(t, lots[0].PuPrice.Equal(d("120")))
	assert.Equal(t, moved.LotId, lots[1].UniqueUuid)
	assert.True(t, lots[1].Date.Equal(day("2024-03-10")), "lot date %s", lots[1].Date)

	sale, err := f.post(billing.BillKindSales, newBill(f.customer, "2024-03-11", line(item.ID, "3", "150")))
	require.NoError(t, err)
	require.Len(t, sale.Items, 1)
	assert.True(t, sale.Items[0].PuPrice.Equal(d("120")), "cost %s", sale.Items[0].PuPrice)
}

func TestSalesReturnGoesBackIntoItsLot(t *testing.T) {
	f := newFixture(t)
	item := f.item("Omeprazole", "0")
	_, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-01", line(item.ID, "10", "100")))
	require.NoError(t, err)
	sale, err := f.post(billing.BillKindSales, newBill(f.customer, "2024-03-02", line(item.ID, "4", "150")))
	require.NoError(t, err)

	back := line(item.ID, "1", "150")
	back.LotId = sale.Items[0].LotId
	ret, err := f.post(billing.BillKindSalesReturn, newBill(f.customer, "2024-03-03", back))
	require.NoError(t, err)
	assert.Equal(t, "SR-1", ret.BillNumber)
	assert.True(t, ret.Items[0].PuPrice.Equal(d("100")))

	lots := f.lots(item)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Quantity.Equal(d("7")))

	// the return credits the customer
	var party models.Transaction
	require.NoError(t, f.db.Where("bill_id = ? AND account_id = ?", ret.ID, f.customer).First(&party).Error)
	assert.True(t, party.Credit.IsPositive())
}

func TestSalesReturnRejectsForeignLots(t *testing.T) {
	f := newFixture(t)
	syrup := f.item("Cough Syrup", "0")
	drops := f.item("Eye Drops", "0")
	_, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-01", line(syrup.ID, "10", "100"), line(drops.ID, "10", "50")))
	require.NoError(t, err)
	sale, err := f.post(billing.BillKindSales, newBill(f.customer, "2024-03-02", line(syrup.ID, "4", "150")))
	require.NoError(t, err)
	syrupLot := sale.Items[0].LotId

	for _, lotId := range []string{syrupLot, "made-up-lot"} {
		back := line(drops.ID, "1", "80")
		back.LotId = lotId
		_, err := f.post(billing.BillKindSalesReturn, newBill(f.customer, "2024-03-03", back))
		require.True(t, apperrors.HasCode(err, apperrors.CodeBatchNotFound), "lot %s: got %v", lotId, err)
		appErr, _ := apperrors.AsAppError(err)
		assert.Equal(t, lotId, appErr.Details["lot_id"])
	}

	lots := f.lots(drops)
	require.Len(t, lots, 1)
	assert.True(t, lots[0].Quantity.Equal(d("10")))
	var madeUp int64
	require.NoError(t, f.db.Model(&models.StockEntry{}).Where("unique_uuid = ?", "made-up-lot").Count(&madeUp).Error)
	assert.Zero(t, madeUp)

	// a lot the item sold out of is still a valid target
	_, err = f.post(billing.BillKindSales, newBill(f.customer, "2024-03-04", line(syrup.ID, "6", "150")))
	require.NoError(t, err)
	require.Empty(t, f.lots(syrup))
	back := line(syrup.ID, "2", "150")
	back.LotId = syrupLot
	ret, err := f.post(billing.BillKindSalesReturn, newBill(f.customer, "2024-03-05", back))
	require.NoError(t, err)
	assert.Equal(t, syrupLot, ret.Items[0].LotId)
	assert.True(t, f.reload(syrup.ID).Stock.Equal(d("2")))
}

func TestWalkInCashSalePostsToCashInHand(t *testing.T) {
	f := newFixture(t)
	item := f.item("Bandage", "10")

	input := newBill(0, "2024-03-02", line(item.ID, "4", "150"))
	input.CashAccountName = "Walk-in Customer"
	sale, err := f.post(billing.BillKindSales, input)
	require.NoError(t, err)

	accounts, err := models.GetSystemAccounts(f.ctx, f.db, f.rc.CompanyId)
	require.NoError(t, err)
	var cash []models.Transaction
	require.NoError(t, f.db.Where("bill_id = ? AND account_id = ?", sale.ID, accounts.CashInHand).Find(&cash).Error)
	require.Len(t, cash, 1)
	assert.True(t, cash[0].Debit.Equal(d("678")))

	ledger, err := workflow.GetStockLedger(f.ctx, f.db, f.rc, item.ID, day("2024-01-01"), day("2024-12-31"), nil)
	require.NoError(t, err)
	require.Len(t, ledger.Rows, 1)
	assert.Equal(t, "Walk-in Customer", ledger.Rows[0].CounterpartyName)
}

func TestMissingSystemAccount(t *testing.T) {
	f := newFixture(t)
	item := f.item("Aspirin", "0")
	require.NoError(t, f.db.Where("company_id = ? AND name = ?", f.rc.CompanyId, billing.AccountVat).Delete(&models.Account{}).Error)

	_, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-01", line(item.ID, "10", "100")))
	require.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
	assert.True(t, f.reload(item.ID).Stock.IsZero())

	t.Setenv("LENIENT_SYSTEM_ACCOUNTS", "true")
	bill, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-01", line(item.ID, "10", "100")))
	require.NoError(t, err)
	for _, tr := range bill.Transactions {
		assert.NotEqual(t, billing.TagVat, tr.Type)
	}
	assert.Equal(t, int64(2), f.transactionCount(bill.ID))
}

type fixedSettings bool

func (s fixedSettings) AutoRoundOff(context.Context, *gorm.DB, appctx.RequestContext) (bool, error) {
	return bool(s), nil
}

func TestStoredSettingRoundsTheBill(t *testing.T) {
	f := newFixture(t)
	f.poster.Settings = fixedSettings(true)
	item := f.item("Syringe", "5")

	input := newBill(f.customer, "2024-03-02", line(item.ID, "1", "10.05"))
	input.AutoRoundOff = nil
	sale, err := f.post(billing.BillKindSales, input)
	require.NoError(t, err)
	assert.True(t, sale.TotalAmount.Equal(d("11")), "total %s", sale.TotalAmount)
	assert.True(t, sale.RoundOffAmount.Equal(d("-0.36")), "round off %s", sale.RoundOffAmount)

	var rounded int64
	require.NoError(t, f.db.Model(&models.Transaction{}).Where("bill_id = ? AND type = ?", sale.ID, billing.TagRoundOff).Count(&rounded).Error)
	assert.Equal(t, int64(1), rounded)
}

func TestBillWithoutVatModeIsRejected(t *testing.T) {
	f := newFixture(t)
	item := f.item("Lozenge", "0")

	input := newBill(f.supplier, "2024-03-01", line(item.ID, "10", "100"))
	input.VatMode = nil
	_, err := f.post(billing.BillKindPurchase, input)
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidationError), "got %v", err)
	appErr, _ := apperrors.AsAppError(err)
	assert.Equal(t, "required", appErr.Details["vat_mode"])

	assert.True(t, f.reload(item.ID).Stock.IsZero())
	var bills int64
	require.NoError(t, f.db.Model(&models.Bill{}).Count(&bills).Error)
	assert.Zero(t, bills)
}

func TestVatMismatchBeforeStock(t *testing.T) {
	f := newFixture(t)
	exempt, err := f.poster.CreateItem(f.ctx, f.db, f.rc, &models.NewItem{Name: "Rice", VatStatus: models.VatStatusVatExempt})
	require.NoError(t, err)

	_, err = f.post(billing.BillKindSales, newBill(f.customer, "2024-03-02", line(exempt.ID, "100", "1")))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeVatMismatch), "got %v", err)
}

func TestStockLedgerRunningBalance(t *testing.T) {
	f := newFixture(t)
	item := f.item("Gauze", "100")
	_, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-01-02", line(item.ID, "50", "10")))
	require.NoError(t, err)
	_, err = f.post(billing.BillKindSales, newBill(f.customer, "2024-01-03", line(item.ID, "30", "15")))
	require.NoError(t, err)

	full, err := workflow.GetStockLedger(f.ctx, f.db, f.rc, item.ID, day("2024-01-01"), day("2024-01-03"), nil)
	require.NoError(t, err)
	assert.True(t, full.OpeningBalance.Equal(d("100")))
	require.Len(t, full.Rows, 2)
	assert.True(t, full.Rows[1].Balance.Equal(d("120")))
	assert.True(t, full.Summary.Purchased.Equal(d("50")))
	assert.True(t, full.Summary.Sold.Equal(d("30")))
	assert.Equal(t, "Shwe Supplier", full.Rows[0].CounterpartyName)
	assert.Equal(t, "Daw Mya", full.Rows[1].CounterpartyName)

	window, err := workflow.GetStockLedger(f.ctx, f.db, f.rc, item.ID, day("2024-01-03"), day("2024-01-03"), nil)
	require.NoError(t, err)
	assert.True(t, window.OpeningBalance.Equal(d("150")))
	require.Len(t, window.Rows, 1)
	assert.True(t, window.Summary.Closing.Equal(d("120")))

	_, err = workflow.GetStockLedger(f.ctx, f.db, f.rc, 9999, day("2024-01-01"), day("2024-01-03"), nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
}

func TestStockLedgerFailsOnUnknownCounterparty(t *testing.T) {
	f := newFixture(t)
	item := f.item("Gauze", "0")
	_, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-01-02", line(item.ID, "50", "10")))
	require.NoError(t, err)
	require.NoError(t, f.db.Delete(&models.Account{}, f.supplier).Error)

	ledger, err := workflow.GetStockLedger(f.ctx, f.db, f.rc, item.ID, day("2024-01-01"), day("2024-12-31"), nil)
	require.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
	assert.Nil(t, ledger)
	appErr, _ := apperrors.AsAppError(err)
	assert.Contains(t, appErr.Message, "Account")

	// a resolver that knows nobody fails the same way
	nobody := func(context.Context, []int) (map[int]string, error) { return map[int]string{}, nil }
	_, err = workflow.GetStockLedger(f.ctx, f.db, f.rc, item.ID, day("2024-01-01"), day("2024-12-31"), nobody)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound), "got %v", err)
}

func TestStockAdjustment(t *testing.T) {
	f := newFixture(t)
	item := f.item("Thermometer", "0")
	_, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-01", line(item.ID, "10", "100")))
	require.NoError(t, err)

	var adj *models.StockAdjustment
	err = f.db.Transaction(func(tx *gorm.DB) error {
		adj, err = f.poster.CreateStockAdjustment(f.ctx, tx, f.rc, &models.NewStockAdjustment{
			Date: "2024-03-05",
			Items: []models.NewStockAdjustmentItem{
				{ItemId: item.ID, Type: models.AdjustmentTypeShort, Quantity: d("3")},
				{ItemId: item.ID, Type: models.AdjustmentTypeExcess, Quantity: d("2"), PuPrice: d("50")},
			},
		})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "ADJ-1", adj.AdjustmentNumber)
	assert.Len(t, adj.Items, 2)

	reloaded := f.reload(item.ID)
	assert.True(t, reloaded.Stock.Equal(d("9")), "stock %s", reloaded.Stock)
	assert.True(t, reloaded.AveragePuPrice.Equal(d("88.8889")), "average %s", reloaded.AveragePuPrice)

	ledger, err := workflow.GetStockLedger(f.ctx, f.db, f.rc, item.ID, day("2024-01-01"), day("2024-12-31"), nil)
	require.NoError(t, err)
	assert.True(t, ledger.Summary.NetAdjustment.Equal(d("-1")))
	assert.True(t, ledger.Summary.Closing.Equal(d("9")))
	assert.Equal(t, models.AdjustmentCounterparty, ledger.Rows[1].CounterpartyName)
}

func TestAccountStatementAndVatReport(t *testing.T) {
	f := newFixture(t)
	item := f.item("Mask", "0")
	_, err := f.post(billing.BillKindPurchase, newBill(f.supplier, "2024-03-01", line(item.ID, "10", "100")))
	require.NoError(t, err)
	_, err = f.post(billing.BillKindSales, newBill(f.customer, "2024-03-02", line(item.ID, "4", "150")))
	require.NoError(t, err)

	st, err := workflow.GetAccountStatement(f.ctx, f.db, f.rc, f.supplier, day("2024-01-01"), day("2024-12-31"))
	require.NoError(t, err)
	assert.True(t, st.OpeningBalance.IsZero())
	require.Len(t, st.Rows, 1)
	assert.True(t, st.ClosingBalance.Equal(d("-1130")))

	later, err := workflow.GetAccountStatement(f.ctx, f.db, f.rc, f.supplier, day("2024-03-02"), day("2024-12-31"))
	require.NoError(t, err)
	assert.True(t, later.OpeningBalance.Equal(d("-1130")))
	assert.Empty(t, later.Rows)

	var stored models.Transaction
	require.NoError(t, f.db.Where("account_id = ?", f.supplier).First(&stored).Error)
	assert.True(t, stored.Balance.Equal(d("-1130")))

	report, err := workflow.GetVatReport(f.ctx, f.db, f.rc, day("2024-01-01"), day("2024-12-31"))
	require.NoError(t, err)
	require.Len(t, report.Lines, 4)
	assert.Equal(t, billing.BillKindSales, report.Lines[0].BillType)
	assert.True(t, report.Lines[0].VatAmount.Equal(d("78")))
	assert.True(t, report.Lines[2].VatAmount.Equal(d("130")))
	assert.True(t, report.NetVatPayable.Equal(d("-52")))

	_, err = workflow.GetVatReport(f.ctx, f.db, f.rc, day("2024-12-31"), day("2024-01-01"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationError))
}

func TestRebuildAllStockRepairsDrift(t *testing.T) {
	f := newFixture(t)
	item := f.item("Ointment", "10")
	require.NoError(t, f.db.Model(&models.Item{}).Where("id = ?", item.ID).Update("stock", 99).Error)

	drifts, err := workflow.RebuildAllStock(f.ctx, f.db, nil, f.rc.CompanyId, false)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.False(t, drifts[0].Repaired)
	assert.True(t, drifts[0].LotStock.Equal(d("10")))

	drifts, err = workflow.RebuildAllStock(f.ctx, f.db, nil, f.rc.CompanyId, true)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	assert.True(t, drifts[0].Repaired)
	assert.True(t, f.reload(item.ID).Stock.Equal(d("10")))

	drifts, err = workflow.RebuildAllStock(f.ctx, f.db, nil, f.rc.CompanyId, false)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	n, err := workflow.RebalanceAllAccounts(f.ctx, f.db, nil, f.rc.CompanyId)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestPreviewValuation(t *testing.T) {
	v, err := workflow.PreviewValuation(&workflow.PreviewRequest{
		Lines:         []workflow.PreviewLine{{Quantity: d("2"), UnitPrice: d("100"), Vatable: true}},
		VatMode:       vatMode(billing.VatModeStandard),
		VatPercentage: d("13"),
	})
	require.NoError(t, err)
	assert.True(t, v.TotalAmount.Equal(d("226")))

	_, err = workflow.PreviewValuation(&workflow.PreviewRequest{})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidationError))

	_, err = workflow.PreviewValuation(&workflow.PreviewRequest{
		Lines:         []workflow.PreviewLine{{Quantity: d("2"), UnitPrice: d("100"), Vatable: true}},
		VatPercentage: d("13"),
	})
	require.True(t, apperrors.HasCode(err, apperrors.CodeValidationError), "got %v", err)
	appErr, _ := apperrors.AsAppError(err)
	assert.Equal(t, "required", appErr.Details["vat_mode"])
}
