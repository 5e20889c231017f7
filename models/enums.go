package models

import (
	"errors"
	"fmt"
)

type UserRole string

const (
	UserRoleAdmin    UserRole = "ADMIN"
	UserRoleManager  UserRole = "MANAGER"
	UserRoleOperator UserRole = "OPERATOR"
)

// roleRank orders role tiers; higher wins.
var roleRank = map[UserRole]int{
	UserRoleOperator: 1,
	UserRoleManager:  2,
	UserRoleAdmin:    3,
}

func (r UserRole) AtLeast(required UserRole) bool {
	return roleRank[r] >= roleRank[required]
}

type MachineStatus string

const (
	MachineStatusActive   MachineStatus = "active"
	MachineStatusOffline  MachineStatus = "offline"
	MachineStatusDisabled MachineStatus = "disabled"
)

type ReconciliationRunStatus string

const (
	RunStatusPending    ReconciliationRunStatus = "PENDING"
	RunStatusProcessing ReconciliationRunStatus = "PROCESSING"
	RunStatusCompleted  ReconciliationRunStatus = "COMPLETED"
	RunStatusFailed     ReconciliationRunStatus = "FAILED"
	RunStatusCancelled  ReconciliationRunStatus = "CANCELLED"
)

func (s ReconciliationRunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// ReconciliationSource is the closed set of transaction sources a run can be
// configured with. Per-source mismatch data is keyed by this enum and is
// populated for every configured source before it is read.
type ReconciliationSource string

const (
	SourceHardware    ReconciliationSource = "HARDWARE"
	SourceSalesReport ReconciliationSource = "SALES_REPORT"
	SourceFiscal      ReconciliationSource = "FISCAL"
	SourcePayme       ReconciliationSource = "PAYME"
	SourceClick       ReconciliationSource = "CLICK"
	SourceUzum        ReconciliationSource = "UZUM"
)

var AllReconciliationSources = []ReconciliationSource{
	SourceHardware,
	SourceSalesReport,
	SourceFiscal,
	SourcePayme,
	SourceClick,
	SourceUzum,
}

func ParseReconciliationSource(s string) (ReconciliationSource, error) {
	for _, src := range AllReconciliationSources {
		if string(src) == s {
			return src, nil
		}
	}
	return "", fmt.Errorf("invalid reconciliation source %q", s)
}

type MismatchType string

const (
	MismatchTypeOrderNotFound   MismatchType = "ORDER_NOT_FOUND"
	MismatchTypePaymentNotFound MismatchType = "PAYMENT_NOT_FOUND"
	MismatchTypeAmountMismatch  MismatchType = "AMOUNT_MISMATCH"
	MismatchTypeTimeMismatch    MismatchType = "TIME_MISMATCH"
)

func ParseMismatchType(s string) (MismatchType, error) {
	switch MismatchType(s) {
	case MismatchTypeOrderNotFound, MismatchTypePaymentNotFound,
		MismatchTypeAmountMismatch, MismatchTypeTimeMismatch:
		return MismatchType(s), nil
	}
	return "", errors.New("invalid mismatch type")
}

type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "CASH"
	PaymentMethodCard PaymentMethod = "CARD"
	PaymentMethodQR   PaymentMethod = "QR"
)
