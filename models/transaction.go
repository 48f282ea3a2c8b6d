package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/retail_backend/billing"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is one posting row of a bill on one account. Exactly one of
// Debit and Credit is non-zero. Balance is the account's running balance,
// debit positive, in (date, id) order.
type Transaction struct {
	ID           int              `gorm:"primary_key" json:"id"`
	CompanyId    int              `gorm:"index;not null" json:"company_id"`
	FiscalYearId int              `gorm:"index" json:"fiscal_year_id"`
	AccountId    int              `gorm:"index;not null" json:"account_id"`
	BillId       int              `gorm:"index" json:"bill_id"`
	BillType     billing.BillKind `gorm:"size:20" json:"bill_type"`
	BillNumber   string           `gorm:"size:50" json:"bill_number"`
	ItemId       int              `gorm:"index" json:"item_id"`
	Type         string           `gorm:"size:10;not null" json:"type"`
	Date         time.Time        `gorm:"index;not null" json:"date"`
	Debit        decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"debit"`
	Credit       decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"credit"`
	Balance      decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:0" json:"balance"`
	CreatedAt    time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

func (t Transaction) Signed() decimal.Decimal {
	return t.Debit.Sub(t.Credit)
}

// TransactionsFromPostings stamps bill references on posting rows.
func TransactionsFromPostings(bill *Bill, rows []billing.Posting) []Transaction {
	out := make([]Transaction, 0, len(rows))
	for _, p := range rows {
		out = append(out, Transaction{
			CompanyId:    bill.CompanyId,
			FiscalYearId: bill.FiscalYearId,
			AccountId:    p.AccountId,
			BillId:       bill.ID,
			BillType:     bill.BillType,
			BillNumber:   bill.BillNumber,
			ItemId:       p.ItemId,
			Type:         p.Type,
			Date:         bill.TransactionDate,
			Debit:        p.Debit,
			Credit:       p.Credit,
		})
	}
	return out
}

// DeleteBillTransactions removes the posting rows of a bill and returns the
// accounts they touched.
func DeleteBillTransactions(ctx context.Context, tx *gorm.DB, billId int) ([]int, error) {
	var accountIds []int
	db := tx.WithContext(ctx)
	if err := db.Model(&Transaction{}).Where("bill_id = ?", billId).Distinct().Pluck("account_id", &accountIds).Error; err != nil {
		return nil, err
	}
	if err := db.Where("bill_id = ?", billId).Delete(&Transaction{}).Error; err != nil {
		return nil, err
	}
	return accountIds, nil
}

// AccountTransactions returns every row of an account in posting order.
func AccountTransactions(ctx context.Context, tx *gorm.DB, accountId int) ([]Transaction, error) {
	var rows []Transaction
	err := tx.WithContext(ctx).
		Where("account_id = ?", accountId).
		Order("date, id").
		Find(&rows).Error
	return rows, err
}

// RebalanceAccounts recomputes the running balance of every row of the given
// accounts from their opening balances and returns the balances by
// transaction id.
func RebalanceAccounts(ctx context.Context, tx *gorm.DB, accountIds []int) (map[int]decimal.Decimal, error) {
	accounts, err := GetAccountsByIds(ctx, tx, accountIds)
	if err != nil {
		return nil, err
	}
	balances := make(map[int]decimal.Decimal)
	db := tx.WithContext(ctx)
	for _, a := range accounts {
		rows, err := AccountTransactions(ctx, tx, a.ID)
		if err != nil {
			return nil, err
		}
		postings := make([]billing.Posting, len(rows))
		for i, r := range rows {
			postings[i] = billing.Posting{AccountId: r.AccountId, Debit: r.Debit, Credit: r.Credit}
		}
		billing.AssignBalances(postings, map[int]decimal.Decimal{a.ID: a.OpeningBalance})
		for i, r := range rows {
			balances[r.ID] = postings[i].Balance
			if r.Balance.Equal(postings[i].Balance) {
				continue
			}
			if err := db.Model(&Transaction{}).Where("id = ?", r.ID).
				Update("balance", postings[i].Balance).Error; err != nil {
				return nil, err
			}
		}
	}
	return balances, nil
}
