package reconcile

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendhub/vendhub_backend/models"
	"github.com/vendhub/vendhub_backend/utils"
)

func validCreateRequest() *CreateRunRequest {
	return &CreateRunRequest{
		DateFrom: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Sources:  []string{"SALES_REPORT", "FISCAL"},
	}
}

func TestValidateCreateRequestAccepts(t *testing.T) {
	sources, err := ValidateCreateRequest(validCreateRequest())
	require.NoError(t, err)
	assert.Equal(t, []models.ReconciliationSource{models.SourceSalesReport, models.SourceFiscal}, sources)
}

func TestValidateCreateRequestRequiresSources(t *testing.T) {
	req := validCreateRequest()
	req.Sources = nil
	_, err := ValidateCreateRequest(req)
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))

	req.Sources = []string{}
	_, err = ValidateCreateRequest(req)
	assert.True(t, utils.IsValidation(err))
}

func TestValidateCreateRequestRejectsUnknownSource(t *testing.T) {
	req := validCreateRequest()
	req.Sources = []string{"SALES_REPORT", "BANK_STATEMENT"}
	_, err := ValidateCreateRequest(req)
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
	assert.Contains(t, err.Error(), "BANK_STATEMENT")
}

func TestValidateCreateRequestRejectsDuplicateSource(t *testing.T) {
	req := validCreateRequest()
	req.Sources = []string{"FISCAL", "FISCAL"}
	_, err := ValidateCreateRequest(req)
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
}

func TestValidateCreateRequestRejectsInvertedDateRange(t *testing.T) {
	req := validCreateRequest()
	req.DateFrom, req.DateTo = req.DateTo, req.DateFrom
	_, err := ValidateCreateRequest(req)
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
}

func TestValidateCreateRequestRejectsNegativeTolerances(t *testing.T) {
	req := validCreateRequest()
	negSeconds := -1
	req.TimeToleranceSeconds = &negSeconds
	_, err := ValidateCreateRequest(req)
	assert.True(t, utils.IsValidation(err))

	req = validCreateRequest()
	negAmount := decimal.NewFromInt(-50)
	req.AmountTolerance = &negAmount
	_, err = ValidateCreateRequest(req)
	assert.True(t, utils.IsValidation(err))
}

func TestValidateCreateRequestAllowsZeroTolerances(t *testing.T) {
	req := validCreateRequest()
	zero := 0
	zeroAmount := decimal.Zero
	req.TimeToleranceSeconds = &zero
	req.AmountTolerance = &zeroAmount
	_, err := ValidateCreateRequest(req)
	assert.NoError(t, err)
}

func TestCancelRejectedOnlyForCompletedRuns(t *testing.T) {
	for _, status := range []models.ReconciliationRunStatus{
		models.RunStatusPending,
		models.RunStatusProcessing,
		models.RunStatusFailed,
		models.RunStatusCancelled,
	} {
		assert.NoError(t, cancellable(&models.ReconciliationRun{Status: status}), status)
	}

	err := cancellable(&models.ReconciliationRun{Status: models.RunStatusCompleted})
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))
}

func TestResolveTwiceRejectedAndResolutionUntouched(t *testing.T) {
	resolvedAt := time.Date(2026, 3, 5, 9, 30, 0, 0, time.UTC)
	resolvedBy := 7
	mismatch := &models.ReconciliationMismatch{
		ID:              5,
		IsResolved:      true,
		ResolvedAt:      &resolvedAt,
		ResolvedBy:      &resolvedBy,
		ResolutionNotes: "refund issued",
	}

	err := resolvable(mismatch)
	require.Error(t, err)
	assert.True(t, utils.IsValidation(err))

	require.NotNil(t, mismatch.ResolvedAt)
	assert.True(t, mismatch.ResolvedAt.Equal(resolvedAt))
	assert.Equal(t, &resolvedBy, mismatch.ResolvedBy)
	assert.Equal(t, "refund issued", mismatch.ResolutionNotes)
}

func TestResolveAllowedForUnresolvedMismatch(t *testing.T) {
	assert.NoError(t, resolvable(&models.ReconciliationMismatch{}))
}
