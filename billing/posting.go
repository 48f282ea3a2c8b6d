package billing

import (
	"bitbucket.org/mmdatafocus/retail_backend/apperrors"
	"github.com/shopspring/decimal"
)

type BillKind string

const (
	BillKindPurchase       BillKind = "purchase"
	BillKindSales          BillKind = "sales"
	BillKindPurchaseReturn BillKind = "purchaseReturn"
	BillKindSalesReturn    BillKind = "salesReturn"
)

// Tag is the short transaction type written on every posting row.
func (k BillKind) Tag() string {
	switch k {
	case BillKindPurchase:
		return "Purc"
	case BillKindSales:
		return "Sale"
	case BillKindPurchaseReturn:
		return "PrRt"
	case BillKindSalesReturn:
		return "SlRt"
	default:
		return string(k)
	}
}

// partyDebited is true when the party ends up owing us.
func (k BillKind) partyDebited() bool {
	return k == BillKindSales || k == BillKindPurchaseReturn
}

func (k BillKind) usesPurchaseAccount() bool {
	return k == BillKindPurchase || k == BillKindPurchaseReturn
}

type PaymentMode string

const (
	PaymentModeCash   PaymentMode = "cash"
	PaymentModeCredit PaymentMode = "credit"
)

const (
	TagVat      = "VAT"
	TagRoundOff = "RoundOff"
)

// Well-known account names every company carries.
const (
	AccountPurchase   = "Purchase"
	AccountSales      = "Sales"
	AccountVat        = "VAT"
	AccountRoundedOff = "Rounded Off"
	AccountCashInHand = "Cash in Hand"
)

// SystemAccounts holds the ids of the well-known accounts; zero means the
// company does not have it.
type SystemAccounts struct {
	Purchase   int
	Sales      int
	Vat        int
	RoundedOff int
	CashInHand int
}

type PostingInput struct {
	Kind        BillKind
	PaymentMode PaymentMode
	// PartyAccountId is zero for walk-in cash bills.
	PartyAccountId int
	// LineItemIds is parallel to Valuation.Lines.
	LineItemIds []int
	Valuation   Valuation
	Accounts    SystemAccounts
	// SkipMissingAccounts drops rows for missing well-known accounts instead
	// of failing.
	SkipMissingAccounts bool
}

type Posting struct {
	AccountId int
	ItemId    int
	Type      string
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Balance   decimal.Decimal
}

// Signed is debit minus credit.
func (p Posting) Signed() decimal.Decimal {
	return p.Debit.Sub(p.Credit)
}

// BuildPostings derives the transaction rows that accompany a bill. Rows for
// zero amounts are not emitted. Balances are left zero; see AssignBalances.
func BuildPostings(in PostingInput) ([]Posting, error) {
	v := in.Valuation
	if len(in.LineItemIds) != len(v.Lines) {
		return nil, apperrors.ErrInternal("line items and valuation lines differ in length")
	}
	if in.PartyAccountId == 0 && in.PaymentMode != PaymentModeCash {
		return nil, apperrors.ErrValidation("a credit bill needs a party account")
	}

	var rows []Posting
	b := &builder{in: in}
	tag := in.Kind.Tag()
	partyDr := in.Kind.partyDebited()

	// (a) party rows, one per line; the last one absorbs rounding so they
	// add up to the bill total.
	lineAccount := in.PartyAccountId
	if lineAccount == 0 {
		id, err := b.account(in.Accounts.CashInHand, AccountCashInHand)
		if err != nil {
			return nil, err
		}
		lineAccount = id
	}
	if lineAccount != 0 {
		sum := decimal.Zero
		for i, lv := range v.Lines {
			amount := lv.Amount().Round(2)
			if i == len(v.Lines)-1 {
				amount = v.TotalAmount.Sub(sum)
			}
			sum = sum.Add(amount)
			rows = appendRow(rows, lineAccount, in.LineItemIds[i], tag, amount, partyDr)
		}
	}

	// (b) purchase / sales
	if net := v.NetAmount(); !net.IsZero() {
		id, name := in.Accounts.Sales, AccountSales
		if in.Kind.usesPurchaseAccount() {
			id, name = in.Accounts.Purchase, AccountPurchase
		}
		id, err := b.account(id, name)
		if err != nil {
			return nil, err
		}
		rows = appendRow(rows, id, 0, tag, net, !partyDr)
	}

	// (c) VAT
	if v.VatAmount.IsPositive() {
		id, err := b.account(in.Accounts.Vat, AccountVat)
		if err != nil {
			return nil, err
		}
		rows = appendRow(rows, id, 0, TagVat, v.VatAmount, !partyDr)
	}

	// (d) round off sits on the same side as purchase/sales when positive
	if !v.RoundOffAmount.IsZero() {
		id, err := b.account(in.Accounts.RoundedOff, AccountRoundedOff)
		if err != nil {
			return nil, err
		}
		rows = appendRow(rows, id, 0, TagRoundOff, v.RoundOffAmount, !partyDr)
	}

	// (e) cash settlement of a named party
	if in.PaymentMode == PaymentModeCash && in.PartyAccountId != 0 && !v.TotalAmount.IsZero() {
		id, err := b.account(in.Accounts.CashInHand, AccountCashInHand)
		if err != nil {
			return nil, err
		}
		if id != 0 {
			rows = appendRow(rows, id, 0, tag, v.TotalAmount, partyDr)
			rows = appendRow(rows, in.PartyAccountId, 0, tag, v.TotalAmount, !partyDr)
		}
	}
	return rows, nil
}

type builder struct {
	in PostingInput
}

// account resolves a well-known account id. A missing account fails the bill
// unless SkipMissingAccounts is set, in which case zero is returned and the
// caller drops the row.
func (b *builder) account(id int, name string) (int, error) {
	if id != 0 {
		return id, nil
	}
	if b.in.SkipMissingAccounts {
		return 0, nil
	}
	return 0, apperrors.ErrNotFound("account " + name).WithDetail("account", name)
}

// appendRow adds amount on the debit side when debit is true. A negative
// amount flips to the other side.
func appendRow(rows []Posting, accountId, itemId int, tag string, amount decimal.Decimal, debit bool) []Posting {
	if accountId == 0 || amount.IsZero() {
		return rows
	}
	if amount.IsNegative() {
		amount = amount.Neg()
		debit = !debit
	}
	p := Posting{AccountId: accountId, ItemId: itemId, Type: tag, Debit: decimal.Zero, Credit: decimal.Zero}
	if debit {
		p.Debit = amount
	} else {
		p.Credit = amount
	}
	return append(rows, p)
}

// AssignBalances fills the running balance of every row, debit positive,
// starting from opening per account. It returns the closing balance of each
// account touched.
func AssignBalances(rows []Posting, opening map[int]decimal.Decimal) map[int]decimal.Decimal {
	closing := make(map[int]decimal.Decimal, len(opening))
	for id, bal := range opening {
		closing[id] = bal
	}
	for i := range rows {
		bal, ok := closing[rows[i].AccountId]
		if !ok {
			bal = decimal.Zero
		}
		bal = bal.Add(rows[i].Signed())
		rows[i].Balance = bal
		closing[rows[i].AccountId] = bal
	}
	return closing
}
