package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/models"
	"bitbucket.org/mmdatafocus/retail_backend/workflow"
	"gorm.io/gorm"
)

func main() {
	companyID := flag.Int("company-id", 0, "Required: company id")
	itemID := flag.Int("item-id", 0, "Optional: only this item")
	repair := flag.Bool("repair", false, "Rewrite cached stock and average cost from the lots (default: report only)")
	flag.Parse()

	if *companyID <= 0 {
		fmt.Fprintln(os.Stderr, "--company-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}
	logger := config.GetLogger()
	ctx := context.Background()

	var drifts []workflow.StockDrift
	err := db.Transaction(func(tx *gorm.DB) error {
		if *itemID > 0 {
			item, err := models.GetItem(ctx, tx, *companyID, *itemID)
			if err != nil {
				return err
			}
			drift, err := workflow.RebuildItemStock(ctx, tx, logger, item, *repair)
			if err != nil {
				return err
			}
			if drift.Drifted() {
				drifts = append(drifts, drift)
			}
			return nil
		}
		var err error
		drifts, err = workflow.RebuildAllStock(ctx, tx, logger, *companyID, *repair)
		return err
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "stock rebuild failed: %v\n", err)
		os.Exit(1)
	}

	for _, d := range drifts {
		fmt.Printf("item=%d %q stock %s -> %s, average %s -> %s repaired=%t\n",
			d.ItemId, d.ItemName, d.CachedStock, d.LotStock, d.CachedAverage, d.LotAverage, d.Repaired)
	}
	fmt.Printf("stock rebuild complete: %d drifted item(s)\n", len(drifts))
}
