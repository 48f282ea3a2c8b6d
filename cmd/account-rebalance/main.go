package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/retail_backend/config"
	"bitbucket.org/mmdatafocus/retail_backend/workflow"
	"gorm.io/gorm"
)

func main() {
	companyID := flag.Int("company-id", 0, "Required: company id")
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

	var n int
	if err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = workflow.RebalanceAllAccounts(context.Background(), tx, config.GetLogger(), *companyID)
		return err
	}); err != nil {
		fmt.Fprintf(os.Stderr, "rebalance failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("account rebalance complete: %d account(s)\n", n)
}
