package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/vendhub/vendhub_backend/models"
)

// MatchRecord is a normalized per-source transaction. Transient: loaders
// produce them, the matcher consumes them, nothing persists them.
type MatchRecord struct {
	OrderNumber   string
	MachineCode   string
	PaymentMethod string
	TransactionId string
	Time          time.Time
	Amount        decimal.Decimal
	Source        models.ReconciliationSource
	Extra         map[string]any
}

// LoadRequest is the per-source fetch window. Loaders must return an empty
// list for "no data"; an error fails the whole run.
type LoadRequest struct {
	DateFrom     time.Time
	DateTo       time.Time
	MachineCodes []string
}

// MatchInput feeds one matching pass. Sources keeps the run's configured
// order; the first entry is the primary source.
type MatchInput struct {
	Sources         []models.ReconciliationSource
	Records         map[models.ReconciliationSource][]MatchRecord
	TimeTolerance   time.Duration
	AmountTolerance decimal.Decimal
}

// MatchResult is the outcome for one primary record, or for one orphaned
// secondary record (PAYMENT_NOT_FOUND). SourceData always carries a slot for
// every configured source.
type MatchResult struct {
	Record          MatchRecord
	Matched         bool
	AllFound        bool
	RawScore        float64
	NormalizedScore int
	MismatchType    models.MismatchType
	Discrepancy     *decimal.Decimal
	SourceData      map[models.ReconciliationSource]models.MismatchSourceData
}

type CreateRunRequest struct {
	DateFrom             time.Time        `json:"date_from" binding:"required"`
	DateTo               time.Time        `json:"date_to" binding:"required"`
	Sources              []string         `json:"sources" binding:"required"`
	MachineIds           []string         `json:"machine_ids"`
	TimeToleranceSeconds *int             `json:"time_tolerance_seconds"`
	AmountTolerance      *decimal.Decimal `json:"amount_tolerance"`
	Metadata             map[string]any   `json:"metadata"`
}

type ResolveMismatchRequest struct {
	Notes string `json:"notes" binding:"required"`
}

type RunListResponse struct {
	Items    []models.ReconciliationRun `json:"items"`
	Total    int64                      `json:"total"`
	Page     int                        `json:"page"`
	PageSize int                        `json:"page_size"`
}

type MismatchListResponse struct {
	Items    []models.ReconciliationMismatch `json:"items"`
	Total    int64                           `json:"total"`
	Page     int                             `json:"page"`
	PageSize int                             `json:"page_size"`
}

// RunPubSubPayload is the push-delivery envelope body for the optional
// Pub/Sub trigger path.
type RunPubSubPayload struct {
	RunId         uint   `json:"run_id"`
	CorrelationId string `json:"correlation_id"`
}

type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}
