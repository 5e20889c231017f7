package reconcile

import (
	"fmt"
	"strings"

	"github.com/vendhub/vendhub_backend/models"
)

// BuildMismatch turns a non-matched result into the persistable mismatch row,
// with a short description enumerating which sources found the record.
func BuildMismatch(runId uint, sources []models.ReconciliationSource, result MatchResult) (*models.ReconciliationMismatch, error) {
	if result.Matched {
		return nil, fmt.Errorf("record is matched, nothing to classify")
	}

	mismatch := &models.ReconciliationMismatch{
		RunId:             runId,
		MismatchType:      result.MismatchType,
		MatchScore:        result.NormalizedScore,
		DiscrepancyAmount: result.Discrepancy,
		Description:       describe(sources, result.SourceData),
	}

	rec := result.Record
	if rec.OrderNumber != "" {
		mismatch.OrderNumber = &rec.OrderNumber
	}
	if rec.MachineCode != "" {
		mismatch.MachineCode = &rec.MachineCode
	}
	if rec.PaymentMethod != "" {
		mismatch.PaymentMethod = &rec.PaymentMethod
	}
	if !rec.Time.IsZero() {
		t := rec.Time
		mismatch.OrderTime = &t
	}
	amount := rec.Amount
	mismatch.Amount = &amount

	if err := mismatch.SetSourceData(result.SourceData); err != nil {
		return nil, err
	}
	return mismatch, nil
}

// describe lists found vs not-found sources in configured order, e.g.
// "found in: SALES_REPORT; not found in: FISCAL, PAYME".
func describe(sources []models.ReconciliationSource, data map[models.ReconciliationSource]models.MismatchSourceData) string {
	var foundIn, notFoundIn []string
	for _, src := range sources {
		if slot, ok := data[src]; ok && slot.Found {
			foundIn = append(foundIn, string(src))
		} else {
			notFoundIn = append(notFoundIn, string(src))
		}
	}

	parts := make([]string, 0, 2)
	if len(foundIn) > 0 {
		parts = append(parts, "found in: "+strings.Join(foundIn, ", "))
	}
	if len(notFoundIn) > 0 {
		parts = append(parts, "not found in: "+strings.Join(notFoundIn, ", "))
	}
	return strings.Join(parts, "; ")
}
