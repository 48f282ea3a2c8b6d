package models

import (
	"log"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"gorm.io/gorm"
)

// AllModels lists every table in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Company{}, &FiscalYear{}, &Account{},
		&Item{}, &StockEntry{},
		&Bill{}, &BillItem{}, &Transaction{},
		&StockAdjustment{}, &StockAdjustmentItem{},
		&Setting{}, &BillNumberSeries{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}

func MigrateTable() {
	if err := Migrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}
