package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendhub/vendhub_backend/models"
)

func TestBuildSummaryEmptyResultSet(t *testing.T) {
	summary := BuildSummary(nil)

	assert.Equal(t, 0, summary.TotalOrders)
	assert.Equal(t, 0.0, summary.MatchRate)
	assert.True(t, summary.TotalRevenue.IsZero())
	assert.True(t, summary.TotalDiscrepancy.IsZero())

	// Histogram always carries every bucket, breakdowns stay empty.
	require.Len(t, summary.ScoreHistogram, 7)
	for i := 0; i <= 6; i++ {
		assert.Contains(t, summary.ScoreHistogram, string(rune('0'+i)))
	}
	assert.Empty(t, summary.BySource)
	assert.Empty(t, summary.ByMachine)
}

func TestBuildSummaryMixedResults(t *testing.T) {
	disc := decimal.NewFromInt(150)
	orphanAmount := decimal.NewFromInt(2000)

	results := []MatchResult{
		{
			Record:          MatchRecord{Amount: decimal.NewFromInt(5000)},
			Matched:         true,
			NormalizedScore: 6,
		},
		{
			Record:          MatchRecord{Amount: decimal.NewFromInt(3000)},
			Matched:         true,
			NormalizedScore: 5,
		},
		{
			Record:          MatchRecord{Amount: decimal.NewFromInt(4000)},
			NormalizedScore: 2,
			MismatchType:    models.MismatchTypeAmountMismatch,
			Discrepancy:     &disc,
		},
		{
			Record:       MatchRecord{Amount: orphanAmount},
			MismatchType: models.MismatchTypePaymentNotFound,
			Discrepancy:  &orphanAmount,
		},
	}

	summary := BuildSummary(results)

	assert.Equal(t, 4, summary.TotalOrders)
	assert.Equal(t, 2, summary.MatchedOrders)
	assert.Equal(t, 2, summary.UnmatchedOrders)
	assert.Equal(t, 50.0, summary.MatchRate)
	assert.True(t, summary.TotalRevenue.Equal(decimal.NewFromInt(14000)))
	assert.True(t, summary.MatchedRevenue.Equal(decimal.NewFromInt(8000)))
	assert.True(t, summary.TotalDiscrepancy.Equal(decimal.NewFromInt(2150)))

	assert.Equal(t, 1, summary.ScoreHistogram["6"])
	assert.Equal(t, 1, summary.ScoreHistogram["5"])
	assert.Equal(t, 1, summary.ScoreHistogram["2"])
	assert.Equal(t, 1, summary.ScoreHistogram["0"])
	assert.Equal(t, 0, summary.ScoreHistogram["3"])
}

func TestBuildSummaryMatchRateRounding(t *testing.T) {
	results := make([]MatchResult, 3)
	results[0].Matched = true
	for i := range results {
		results[i].Record.Amount = decimal.NewFromInt(100)
	}

	summary := BuildSummary(results)
	// 1/3 of orders matched, rounded to two decimal places.
	assert.Equal(t, 33.33, summary.MatchRate)
}

func TestBuildSummaryNegativeDiscrepancySummedAbsolute(t *testing.T) {
	disc := decimal.NewFromInt(-75)
	results := []MatchResult{
		{
			Record:       MatchRecord{Amount: decimal.NewFromInt(100)},
			MismatchType: models.MismatchTypeTimeMismatch,
			Discrepancy:  &disc,
		},
	}

	summary := BuildSummary(results)
	assert.True(t, summary.TotalDiscrepancy.Equal(decimal.NewFromInt(75)))
}
