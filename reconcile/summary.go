package reconcile

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/vendhub/vendhub_backend/models"
)

// BuildSummary reduces the combined matched+mismatched result set into the
// run-level summary document. bySource/byMachine are reserved extension
// points and are emitted empty.
func BuildSummary(results []MatchResult) *models.RunSummary {
	summary := &models.RunSummary{
		ScoreHistogram:   map[string]int{},
		TotalRevenue:     decimal.Zero,
		MatchedRevenue:   decimal.Zero,
		TotalDiscrepancy: decimal.Zero,
		BySource:         map[string]models.SourceBreakdown{},
		ByMachine:        map[string]models.SourceBreakdown{},
	}
	for i := 0; i <= maxMatchScore; i++ {
		summary.ScoreHistogram[strconv.Itoa(i)] = 0
	}

	for _, r := range results {
		summary.TotalOrders++
		summary.TotalRevenue = summary.TotalRevenue.Add(r.Record.Amount)
		summary.ScoreHistogram[strconv.Itoa(r.NormalizedScore)]++

		if r.Matched {
			summary.MatchedOrders++
			summary.MatchedRevenue = summary.MatchedRevenue.Add(r.Record.Amount)
		} else {
			summary.UnmatchedOrders++
			if r.Discrepancy != nil {
				summary.TotalDiscrepancy = summary.TotalDiscrepancy.Add(r.Discrepancy.Abs())
			}
		}
	}

	if summary.TotalOrders > 0 {
		rate := float64(summary.MatchedOrders) / float64(summary.TotalOrders) * 100
		summary.MatchRate = math.Round(rate*100) / 100
	}

	return summary
}
