package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendhub/vendhub_backend/models"
)

func TestBuildMismatchMapsResultFields(t *testing.T) {
	sources := []models.ReconciliationSource{models.SourceSalesReport, models.SourceFiscal, models.SourcePayme}
	orderTime := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	disc := decimal.NewFromInt(250)

	result := MatchResult{
		Record: MatchRecord{
			OrderNumber:   "ORD-42",
			MachineCode:   "M7",
			PaymentMethod: "CASH",
			Time:          orderTime,
			Amount:        decimal.NewFromInt(5000),
			Source:        models.SourceSalesReport,
		},
		NormalizedScore: 3,
		MismatchType:    models.MismatchTypeAmountMismatch,
		Discrepancy:     &disc,
		SourceData: map[models.ReconciliationSource]models.MismatchSourceData{
			models.SourceSalesReport: {Found: true},
			models.SourceFiscal:      {Found: true},
			models.SourcePayme:       {Found: false},
		},
	}

	mismatch, err := BuildMismatch(7, sources, result)
	require.NoError(t, err)

	assert.Equal(t, uint(7), mismatch.RunId)
	assert.Equal(t, models.MismatchTypeAmountMismatch, mismatch.MismatchType)
	assert.Equal(t, 3, mismatch.MatchScore)
	require.NotNil(t, mismatch.OrderNumber)
	assert.Equal(t, "ORD-42", *mismatch.OrderNumber)
	require.NotNil(t, mismatch.MachineCode)
	assert.Equal(t, "M7", *mismatch.MachineCode)
	require.NotNil(t, mismatch.PaymentMethod)
	assert.Equal(t, "CASH", *mismatch.PaymentMethod)
	require.NotNil(t, mismatch.OrderTime)
	assert.True(t, mismatch.OrderTime.Equal(orderTime))
	require.NotNil(t, mismatch.Amount)
	assert.True(t, mismatch.Amount.Equal(decimal.NewFromInt(5000)))
	require.NotNil(t, mismatch.DiscrepancyAmount)
	assert.True(t, mismatch.DiscrepancyAmount.Equal(disc))

	data, err := mismatch.SourceData()
	require.NoError(t, err)
	assert.Len(t, data, 3)
	assert.True(t, data[models.SourceFiscal].Found)
	assert.False(t, data[models.SourcePayme].Found)
}

func TestBuildMismatchDescriptionOrdering(t *testing.T) {
	sources := []models.ReconciliationSource{models.SourceSalesReport, models.SourceFiscal, models.SourcePayme}
	result := MatchResult{
		Record:       MatchRecord{OrderNumber: "ORD-1", Amount: decimal.NewFromInt(100)},
		MismatchType: models.MismatchTypeOrderNotFound,
		SourceData: map[models.ReconciliationSource]models.MismatchSourceData{
			models.SourceSalesReport: {Found: true},
			models.SourceFiscal:      {Found: false},
			models.SourcePayme:       {Found: false},
		},
	}

	mismatch, err := BuildMismatch(1, sources, result)
	require.NoError(t, err)
	assert.Equal(t, "found in: SALES_REPORT; not found in: FISCAL, PAYME", mismatch.Description)
}

func TestBuildMismatchDescriptionAllFound(t *testing.T) {
	sources := []models.ReconciliationSource{models.SourceSalesReport, models.SourceFiscal}
	result := MatchResult{
		Record:       MatchRecord{OrderNumber: "ORD-1", Amount: decimal.NewFromInt(100)},
		MismatchType: models.MismatchTypeTimeMismatch,
		SourceData: map[models.ReconciliationSource]models.MismatchSourceData{
			models.SourceSalesReport: {Found: true},
			models.SourceFiscal:      {Found: true},
		},
	}

	mismatch, err := BuildMismatch(1, sources, result)
	require.NoError(t, err)
	assert.Equal(t, "found in: SALES_REPORT, FISCAL", mismatch.Description)
}

func TestBuildMismatchEmptyOptionalFieldsStayNil(t *testing.T) {
	sources := []models.ReconciliationSource{models.SourceSalesReport, models.SourcePayme}
	orphanAmount := decimal.NewFromInt(7500)
	result := MatchResult{
		Record: MatchRecord{
			TransactionId: "pay-1",
			Time:          time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
			Amount:        orphanAmount,
			Source:        models.SourcePayme,
		},
		MismatchType: models.MismatchTypePaymentNotFound,
		Discrepancy:  &orphanAmount,
		SourceData: map[models.ReconciliationSource]models.MismatchSourceData{
			models.SourceSalesReport: {Found: false},
			models.SourcePayme:       {Found: true},
		},
	}

	mismatch, err := BuildMismatch(9, sources, result)
	require.NoError(t, err)
	assert.Nil(t, mismatch.OrderNumber)
	assert.Nil(t, mismatch.MachineCode)
	assert.Nil(t, mismatch.PaymentMethod)
	require.NotNil(t, mismatch.OrderTime)
	assert.Equal(t, "found in: PAYME; not found in: SALES_REPORT", mismatch.Description)
}

func TestBuildMismatchRejectsMatchedResult(t *testing.T) {
	_, err := BuildMismatch(1, []models.ReconciliationSource{models.SourceSalesReport}, MatchResult{Matched: true})
	assert.Error(t, err)
}
