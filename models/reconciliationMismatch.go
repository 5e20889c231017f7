package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReconciliationMismatch is a record (primary or orphaned secondary) that
// failed to reach a high-confidence match. Created once, in bulk, when a run
// completes processing; mutated only by the resolve operation afterward.
type ReconciliationMismatch struct {
	ID                uint               `gorm:"primary_key" json:"id"`
	RunId             uint               `gorm:"index;not null" json:"run_id"`
	Run               *ReconciliationRun `gorm:"foreignKey:RunId;constraint:OnDelete:CASCADE" json:"-"`
	OrderNumber       *string            `gorm:"size:64;index" json:"order_number"`
	MachineCode       *string            `gorm:"size:64;index" json:"machine_code"`
	OrderTime         *time.Time         `gorm:"index" json:"order_time"`
	Amount            *decimal.Decimal   `gorm:"type:decimal(20,4)" json:"amount"`
	PaymentMethod     *string            `gorm:"size:32" json:"payment_method"`
	MismatchType      MismatchType       `gorm:"type:enum('ORDER_NOT_FOUND', 'PAYMENT_NOT_FOUND', 'AMOUNT_MISMATCH', 'TIME_MISMATCH');not null;index" json:"mismatch_type"`
	MatchScore        int                `gorm:"not null;default:0" json:"match_score"`
	DiscrepancyAmount *decimal.Decimal   `gorm:"type:decimal(20,4)" json:"discrepancy_amount"`
	SourceDataJSON    []byte             `gorm:"type:json" json:"source_data"`
	Description       string             `gorm:"type:text" json:"description"`
	IsResolved        bool               `gorm:"not null;default:false;index" json:"is_resolved"`
	ResolvedAt        *time.Time         `json:"resolved_at"`
	ResolvedBy        *int               `json:"resolved_by"`
	ResolutionNotes   string             `gorm:"type:text" json:"resolution_notes"`
	CreatedAt         time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt         gorm.DeletedAt     `gorm:"index" json:"-"`
}

// MismatchSourceData is one slot of the per-source map embedded in
// SourceDataJSON. The map is keyed by ReconciliationSource and holds a slot
// for every source the run was configured with.
type MismatchSourceData struct {
	Found          bool             `json:"found"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Time           *time.Time       `json:"time,omitempty"`
	TransactionId  string           `json:"transaction_id,omitempty"`
	AdditionalData map[string]any   `json:"additional_data,omitempty"`
}

func (m *ReconciliationMismatch) SourceData() (map[ReconciliationSource]MismatchSourceData, error) {
	data := map[ReconciliationSource]MismatchSourceData{}
	if len(m.SourceDataJSON) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(m.SourceDataJSON, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (m *ReconciliationMismatch) SetSourceData(data map[ReconciliationSource]MismatchSourceData) error {
	encoded, err := json.Marshal(data)
	if err != nil {
		return err
	}
	m.SourceDataJSON = encoded
	return nil
}
