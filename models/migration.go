package models

import (
	"log"

	"github.com/vendhub/vendhub_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&VendingMachine{},
		&VendSale{}, &FiscalReceipt{},
		&ReconciliationRun{}, &ReconciliationMismatch{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
