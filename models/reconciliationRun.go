package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ReconciliationRun is one execution of the reconciliation engine over a date
// range and an ordered source set. The first source is the primary; all
// matching is anchored against it.
//
// Summary stays null until the run reaches COMPLETED. ErrorMessage is set
// only on FAILED. Runs are soft-deleted only; hard deletes cascade to
// mismatches at the schema level.
type ReconciliationRun struct {
	ID                   uint                    `gorm:"primary_key" json:"id"`
	Status               ReconciliationRunStatus `gorm:"type:enum('PENDING', 'PROCESSING', 'COMPLETED', 'FAILED', 'CANCELLED');not null;index" json:"status"`
	DateFrom             time.Time               `gorm:"not null" json:"date_from"`
	DateTo               time.Time               `gorm:"not null" json:"date_to"`
	SourcesJSON          []byte                  `gorm:"type:json" json:"sources"`
	MachineIdsJSON       []byte                  `gorm:"type:json" json:"machine_ids"`
	TimeToleranceSeconds int                     `gorm:"not null;default:5" json:"time_tolerance_seconds"`
	AmountTolerance      decimal.Decimal         `gorm:"type:decimal(20,4);not null;default:100" json:"amount_tolerance"`
	StartedAt            *time.Time              `json:"started_at"`
	CompletedAt          *time.Time              `json:"completed_at"`
	ProcessingTimeMs     int64                   `json:"processing_time_ms"`
	SummaryJSON          []byte                  `gorm:"type:json" json:"summary"`
	ErrorMessage         string                  `gorm:"type:text" json:"error_message"`
	CreatedBy            int                     `gorm:"index" json:"created_by"`
	MetadataJSON         []byte                  `gorm:"type:json" json:"metadata"`
	CreatedAt            time.Time               `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time               `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt            gorm.DeletedAt          `gorm:"index" json:"-"`
}

// RunSummary is the embedded document stored in SummaryJSON on COMPLETED.
// BySource and ByMachine are reserved extension points and are always
// emitted empty.
type RunSummary struct {
	TotalOrders      int                        `json:"total_orders"`
	MatchedOrders    int                        `json:"matched_orders"`
	UnmatchedOrders  int                        `json:"unmatched_orders"`
	MatchRate        float64                    `json:"match_rate"`
	ScoreHistogram   map[string]int             `json:"score_histogram"`
	TotalRevenue     decimal.Decimal            `json:"total_revenue"`
	MatchedRevenue   decimal.Decimal            `json:"matched_revenue"`
	TotalDiscrepancy decimal.Decimal            `json:"total_discrepancy"`
	BySource         map[string]SourceBreakdown `json:"by_source"`
	ByMachine        map[string]SourceBreakdown `json:"by_machine"`
}

// SourceBreakdown is the per-source/per-machine slot of a RunSummary.
// Reserved: current behavior never populates it.
type SourceBreakdown struct {
	Total     int             `json:"total"`
	Matched   int             `json:"matched"`
	Unmatched int             `json:"unmatched"`
	Revenue   decimal.Decimal `json:"revenue"`
}

func (r *ReconciliationRun) Sources() []ReconciliationSource {
	var sources []ReconciliationSource
	if len(r.SourcesJSON) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.SourcesJSON, &sources); err != nil {
		return nil
	}
	return sources
}

func (r *ReconciliationRun) SetSources(sources []ReconciliationSource) error {
	data, err := json.Marshal(sources)
	if err != nil {
		return err
	}
	r.SourcesJSON = data
	return nil
}

func (r *ReconciliationRun) MachineIds() []string {
	var ids []string
	if len(r.MachineIdsJSON) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.MachineIdsJSON, &ids); err != nil {
		return nil
	}
	return ids
}

func (r *ReconciliationRun) SetMachineIds(ids []string) error {
	if len(ids) == 0 {
		r.MachineIdsJSON = nil
		return nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	r.MachineIdsJSON = data
	return nil
}

func (r *ReconciliationRun) Summary() (*RunSummary, error) {
	if len(r.SummaryJSON) == 0 {
		return nil, nil
	}
	var summary RunSummary
	if err := json.Unmarshal(r.SummaryJSON, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (r *ReconciliationRun) SetSummary(summary *RunSummary) error {
	if summary == nil {
		r.SummaryJSON = nil
		return nil
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	r.SummaryJSON = data
	return nil
}
