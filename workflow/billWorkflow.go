package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/appctx"
	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"bitbucket.org/mmdatafocus/retail_backend/billing"
	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/utils"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var tracer = otel.Tracer("retail-workflow")

// Poster posts bills and stock adjustments. Every method runs inside the
// caller's transaction and leaves commit or rollback to it.
type Poster struct {
	Numbers  models.BillNumberGenerator
	Settings models.SettingsProvider
	Logger   *logrus.Logger
}

func NewPoster(logger *logrus.Logger) *Poster {
	if logger == nil {
		logger = config.GetLogger()
	}
	return &Poster{
		Numbers:  models.SeriesNumbers{},
		Settings: models.DBSettings{},
		Logger:   logger,
	}
}

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		config.GetMetrics().RecordError(apperrors.CodeOf(err))
	}
	span.End()
}

// CreateBill validates and posts a new bill of the given kind: stock first,
// then valuation, then the ledger rows.
func (p *Poster) CreateBill(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext, kind billing.BillKind, input *models.NewBill) (bill *models.Bill, err error) {
	ctx, span := startSpan(ctx, "CreateBill", attribute.String("bill.type", string(kind)), attribute.Int("company.id", rc.CompanyId))
	defer func() { endSpan(span, err) }()
	defer config.GetMetrics().ObserveWorkflow("create_"+string(kind), time.Now())

	fy, err := models.GetFiscalYear(ctx, tx, rc.CompanyId, rc.FiscalYearId)
	if err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "CreateBill", "GetFiscalYear", rc, err)
		return nil, err
	}
	dates, err := input.Validate(ctx, tx, kind, rc.CompanyId, fy)
	if err != nil {
		return nil, err
	}
	autoRound, err := p.autoRound(ctx, tx, rc, input)
	if err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "CreateBill", "AutoRoundOff", rc, err)
		return nil, err
	}
	plan, err := loadStockPlan(ctx, tx, rc.CompanyId, newLineItemIds(input.Items))
	if err != nil {
		return nil, err
	}
	if err := precheckValuation(plan, input, autoRound); err != nil {
		return nil, err
	}
	if kind == billing.BillKindSalesReturn {
		if err := checkReturnLots(ctx, tx, plan, input.Items); err != nil {
			return nil, err
		}
	}

	number, err := p.Numbers.Next(ctx, tx, rc.CompanyId, fy.ID, string(kind), fy.PrefixFor(kind))
	if err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "CreateBill", "BillNumber", kind, err)
		return nil, err
	}
	bill = &models.Bill{
		CompanyId:    rc.CompanyId,
		FiscalYearId: fy.ID,
		UserId:       rc.UserId,
		BillType:     kind,
		BillNumber:   number,
	}
	fillBillHeader(bill, input, dates)
	if err := tx.WithContext(ctx).Omit(clause.Associations).Create(bill).Error; err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "CreateBill", "Create Bill", bill, err)
		return nil, err
	}

	items, err := applyBillStock(plan, kind, bill, nil, input.Items)
	if err != nil {
		return nil, err
	}
	if err := plan.save(ctx, tx); err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "CreateBill", "SaveStock", bill.BillNumber, err)
		return nil, err
	}
	if err := p.writeBill(ctx, tx, bill, items, input, autoRound, nil); err != nil {
		return nil, err
	}
	config.GetMetrics().RecordBillPosted(string(kind), "create")
	return bill, nil
}

// EditBill recomputes a posted bill from scratch. Old stock effects are
// reversed and new ones applied on the same in-memory snapshots, increases
// first, so only the net decrease has to be available. Lines and ledger rows
// are regenerated; the bill keeps its id and number.
func (p *Poster) EditBill(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext, kind billing.BillKind, id int, input *models.NewBill) (bill *models.Bill, err error) {
	ctx, span := startSpan(ctx, "EditBill", attribute.String("bill.type", string(kind)), attribute.Int("bill.id", id))
	defer func() { endSpan(span, err) }()
	defer config.GetMetrics().ObserveWorkflow("edit_"+string(kind), time.Now())

	bill, err = models.GetBill(ctx, tx, rc.CompanyId, id, kind)
	if err != nil {
		return nil, err
	}
	fy, err := models.GetFiscalYear(ctx, tx, rc.CompanyId, bill.FiscalYearId)
	if err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "EditBill", "GetFiscalYear", bill.FiscalYearId, err)
		return nil, err
	}
	dates, err := input.Validate(ctx, tx, kind, rc.CompanyId, fy)
	if err != nil {
		return nil, err
	}
	autoRound, err := p.autoRound(ctx, tx, rc, input)
	if err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "EditBill", "AutoRoundOff", rc, err)
		return nil, err
	}

	oldItems := bill.Items
	itemIds := newLineItemIds(input.Items)
	for _, bi := range oldItems {
		itemIds = append(itemIds, bi.ItemId)
	}
	plan, err := loadStockPlan(ctx, tx, rc.CompanyId, utils.UniqueSlice(itemIds))
	if err != nil {
		return nil, err
	}
	if err := precheckValuation(plan, input, autoRound); err != nil {
		return nil, err
	}
	if kind == billing.BillKindSalesReturn {
		if err := checkReturnLots(ctx, tx, plan, input.Items); err != nil {
			return nil, err
		}
	}

	bill.UserId = rc.UserId
	fillBillHeader(bill, input, dates)
	items, err := applyBillStock(plan, kind, bill, oldItems, input.Items)
	if err != nil {
		return nil, err
	}
	if err := plan.save(ctx, tx); err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "EditBill", "SaveStock", bill.BillNumber, err)
		return nil, err
	}

	db := tx.WithContext(ctx)
	if err := db.Where("bill_id = ?", bill.ID).Delete(&models.BillItem{}).Error; err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "EditBill", "Delete BillItems", bill.ID, err)
		return nil, err
	}
	oldAccountIds, err := models.DeleteBillTransactions(ctx, tx, bill.ID)
	if err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "EditBill", "DeleteBillTransactions", bill.ID, err)
		return nil, err
	}

	bill.Items = nil
	bill.Transactions = nil
	if err := p.writeBill(ctx, tx, bill, items, input, autoRound, oldAccountIds); err != nil {
		return nil, err
	}
	config.GetMetrics().RecordBillPosted(string(kind), "edit")
	return bill, nil
}

// writeBill values the stocked lines, stores the header, lines and ledger
// rows and rebalances every account the bill touches now or touched before.
func (p *Poster) writeBill(ctx context.Context, tx *gorm.DB, bill *models.Bill, items []models.BillItem, input *models.NewBill, autoRound bool, oldAccountIds []int) error {
	db := tx.WithContext(ctx)

	valuation, err := billing.Valuate(valuationInput(items, input, autoRound))
	if err != nil {
		return err
	}
	for i := range items {
		lv := valuation.Lines[i]
		items[i].BillId = bill.ID
		items[i].Seq = i + 1
		items[i].DiscountAmount = lv.Discount
		items[i].NetAmount = lv.Net
		items[i].VatAmount = lv.Vat
	}
	bill.ApplyValuation(valuation)
	if err := db.Omit(clause.Associations).Save(bill).Error; err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "writeBill", "Save Bill", bill, err)
		return err
	}
	if err := db.Create(&items).Error; err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "writeBill", "Create BillItems", bill.BillNumber, err)
		return err
	}

	accounts, err := models.GetSystemAccounts(ctx, tx, bill.CompanyId)
	if err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "writeBill", "GetSystemAccounts", bill.CompanyId, err)
		return err
	}
	lineItemIds := make([]int, len(items))
	for i, bi := range items {
		lineItemIds[i] = bi.ItemId
	}
	rows, err := billing.BuildPostings(billing.PostingInput{
		Kind:                bill.BillType,
		PaymentMode:         bill.PaymentMode,
		PartyAccountId:      bill.PartyAccountId,
		LineItemIds:         lineItemIds,
		Valuation:           valuation,
		Accounts:            accounts,
		SkipMissingAccounts: config.LenientSystemAccounts(),
	})
	if err != nil {
		return err
	}
	transactions := models.TransactionsFromPostings(bill, rows)
	accountIds := oldAccountIds
	if len(transactions) > 0 {
		if err := db.Create(&transactions).Error; err != nil {
			config.LogError(p.Logger, "billWorkflow.go", "writeBill", "Create Transactions", bill.BillNumber, err)
			return err
		}
		for _, t := range transactions {
			accountIds = append(accountIds, t.AccountId)
		}
	}
	balances, err := models.RebalanceAccounts(ctx, tx, utils.UniqueSlice(accountIds))
	if err != nil {
		config.LogError(p.Logger, "billWorkflow.go", "writeBill", "RebalanceAccounts", accountIds, err)
		return err
	}
	for i := range transactions {
		transactions[i].Balance = balances[transactions[i].ID]
	}
	bill.Items = items
	bill.Transactions = transactions
	return nil
}

func (p *Poster) autoRound(ctx context.Context, tx *gorm.DB, rc appctx.RequestContext, input *models.NewBill) (bool, error) {
	if input.AutoRoundOff != nil {
		return *input.AutoRoundOff, nil
	}
	return p.Settings.AutoRoundOff(ctx, tx, rc)
}

func fillBillHeader(bill *models.Bill, input *models.NewBill, dates models.BillDates) {
	bill.PartyAccountId = input.PartyAccountId
	bill.CashAccountName = ""
	if input.PartyAccountId == 0 {
		bill.CashAccountName = input.CashAccountName
	}
	bill.PaymentMode = input.PaymentMode
	bill.Date = dates.Date
	bill.TransactionDate = dates.TransactionDate
	bill.VatMode = *input.VatMode
	bill.DiscountPercentage = input.DiscountPercentage
	bill.VatPercentage = input.VatPercentage
	bill.Note = input.Note
}

func newLineItemIds(lines []models.NewBillItem) []int {
	ids := make([]int, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ItemId)
	}
	return utils.UniqueSlice(ids)
}

func valuationInput(items []models.BillItem, input *models.NewBill, autoRound bool) billing.Input {
	lines := make([]billing.Line, len(items))
	for i, bi := range items {
		lines[i] = billing.Line{
			Quantity:  bi.Quantity,
			UnitPrice: bi.Price,
			Vatable:   bi.Vatable,
			CC:        bi.CC,
		}
	}
	in := billing.Input{
		Lines:              lines,
		VatMode:            *input.VatMode,
		DiscountPercentage: input.DiscountPercentage,
		VatPercentage:      input.VatPercentage,
		AutoRound:          autoRound,
	}
	if !autoRound {
		in.ManualRoundOff = input.RoundOff
	}
	return in
}

// checkReturnLots rejects sales return lines naming a lot the item never
// had: a lot it holds now or one its bill lines moved stock through.
func checkReturnLots(ctx context.Context, tx *gorm.DB, plan *stockPlan, lines []models.NewBillItem) error {
	missing := make(map[int][]string)
	for _, l := range lines {
		if l.LotId == "" {
			continue
		}
		if _, ok := plan.lots(l.ItemId).Find(l.LotId); !ok {
			missing[l.ItemId] = append(missing[l.ItemId], l.LotId)
		}
	}
	for itemId, lotIds := range missing {
		known, err := models.ItemLotIdsInHistory(ctx, tx, itemId, utils.UniqueSlice(lotIds))
		if err != nil {
			return err
		}
		for _, id := range lotIds {
			if !known[id] {
				return apperrors.ErrBatchNotFound(plan.item(itemId).Name, id).WithDetail("lot_id", id)
			}
		}
	}
	return nil
}

// precheckValuation values the requested lines before any stock moves so
// that VAT and amount errors win over stock errors.
func precheckValuation(plan *stockPlan, input *models.NewBill, autoRound bool) error {
	items := make([]models.BillItem, len(input.Items))
	for i, l := range input.Items {
		items[i] = models.BillItem{
			Quantity: l.Quantity,
			Price:    l.Price,
			Vatable:  plan.item(l.ItemId).Vatable(),
			CC:       l.CC,
		}
	}
	_, err := billing.Valuate(valuationInput(items, input, autoRound))
	return err
}
