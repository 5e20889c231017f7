package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VendSale is one row of the internal sales report: a dispense recorded by
// the backend when a machine reports a sale. This table is the usual primary
// source for reconciliation runs.
type VendSale struct {
	ID            uint            `gorm:"primary_key" json:"id"`
	OrderNumber   string          `gorm:"size:64;index;not null" json:"order_number"`
	MachineCode   string          `gorm:"size:64;index;not null" json:"machine_code"`
	SoldAt        time.Time       `gorm:"index;not null" json:"sold_at"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaymentMethod PaymentMethod   `gorm:"type:enum('CASH', 'CARD', 'QR');default:CASH" json:"payment_method"`
	ProductName   string          `gorm:"size:255" json:"product_name"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

// FiscalReceipt is a locally synced OFD fiscal receipt. The fiscal bridge
// writes these rows; reconciliation only reads them.
type FiscalReceipt struct {
	ID            uint            `gorm:"primary_key" json:"id"`
	ReceiptId     string          `gorm:"size:128;uniqueIndex;not null" json:"receipt_id"`
	OrderNumber   string          `gorm:"size:64;index" json:"order_number"`
	MachineCode   string          `gorm:"size:64;index" json:"machine_code"`
	FiscalizedAt  time.Time       `gorm:"index;not null" json:"fiscalized_at"`
	Amount        decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"amount"`
	PaymentMethod PaymentMethod   `gorm:"type:enum('CASH', 'CARD', 'QR');default:CARD" json:"payment_method"`
	FiscalSign    string          `gorm:"size:128" json:"fiscal_sign"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
