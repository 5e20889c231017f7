package reconcile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vendhub/vendhub_backend/models"
	"github.com/xuri/excelize/v2"
)

func writeHardwareExport(t *testing.T, dir, name string, rows [][]any) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Order", "Machine", "Time", "Amount", "Method"}))
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	require.NoError(t, f.SaveAs(filepath.Join(dir, name)))
}

func TestHardwareLoaderParsesExport(t *testing.T) {
	dir := t.TempDir()
	writeHardwareExport(t, dir, "export-1.xlsx", [][]any{
		{"ORD-1", "M1", "2026-03-10 12:00:00", "5000", "CASH"},
		{"ORD-2", "M2", "2026-03-10 12:05:00", "3500.50", "CARD"},
		// Outside the requested window, must be skipped.
		{"ORD-3", "M1", "2026-03-11 09:00:00", "1000", "CASH"},
	})
	t.Setenv("HARDWARE_EXPORT_DIR", dir)

	loader := &hardwareReportLoader{}
	records, err := loader.Load(context.Background(), LoadRequest{
		DateFrom: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "ORD-1", records[0].OrderNumber)
	assert.Equal(t, "M1", records[0].MachineCode)
	assert.Equal(t, "CASH", records[0].PaymentMethod)
	assert.True(t, records[0].Amount.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, models.SourceHardware, records[0].Source)
	assert.True(t, records[1].Amount.Equal(decimal.RequireFromString("3500.50")))
}

func TestHardwareLoaderAppliesMachineFilter(t *testing.T) {
	dir := t.TempDir()
	writeHardwareExport(t, dir, "export-1.xlsx", [][]any{
		{"ORD-1", "M1", "2026-03-10 12:00:00", "5000", "CASH"},
		{"ORD-2", "M2", "2026-03-10 12:05:00", "3500", "CARD"},
	})
	t.Setenv("HARDWARE_EXPORT_DIR", dir)

	loader := &hardwareReportLoader{}
	records, err := loader.Load(context.Background(), LoadRequest{
		DateFrom:     time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DateTo:       time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
		MachineCodes: []string{"M2"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ORD-2", records[0].OrderNumber)
}

func TestHardwareLoaderMissingDirIsEmpty(t *testing.T) {
	t.Setenv("HARDWARE_EXPORT_DIR", filepath.Join(t.TempDir(), "does-not-exist"))

	loader := &hardwareReportLoader{}
	records, err := loader.Load(context.Background(), LoadRequest{
		DateFrom: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestHardwareLoaderRejectsMalformedRow(t *testing.T) {
	dir := t.TempDir()
	writeHardwareExport(t, dir, "export-1.xlsx", [][]any{
		{"ORD-1", "M1", "not-a-time", "5000", "CASH"},
	})
	t.Setenv("HARDWARE_EXPORT_DIR", dir)

	loader := &hardwareReportLoader{}
	_, err := loader.Load(context.Background(), LoadRequest{
		DateFrom: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		DateTo:   time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
	})
	assert.Error(t, err)
}

func TestProviderLoaderPagesAndFilters(t *testing.T) {
	from := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "/v1/transactions", r.URL.Path)

		var resp providerListResponse
		if r.URL.Query().Get("cursor") == "" {
			resp.Data = []providerTransaction{
				{ID: "tx-1", OrderNumber: "ORD-1", MachineCode: "M1", Time: "2026-03-10T12:00:00Z", Amount: "5000", State: "paid"},
				{ID: "tx-2", OrderNumber: "ORD-2", MachineCode: "M1", Time: "2026-03-10T12:05:00Z", Amount: "3000", State: "refunded"},
			}
			resp.NextCursor = "page-2"
		} else {
			resp.Data = []providerTransaction{
				{ID: "tx-3", OrderNumber: "ORD-3", MachineCode: "M2", Time: "2026-03-10T13:00:00Z", Amount: "1500", State: "success"},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	t.Setenv("PAYME_API_BASE_URL", srv.URL)
	t.Setenv("PAYME_API_KEY", "secret")
	t.Setenv("PAYME_RATE_LIMIT_PER_MIN", "100000")

	loader := &providerLoader{provider: "payme", source: models.SourcePayme}
	records, err := loader.Load(context.Background(), LoadRequest{DateFrom: from, DateTo: to})
	require.NoError(t, err)
	assert.Equal(t, 2, requests)

	// Refunded transaction is dropped; the two paid ones survive in time order.
	require.Len(t, records, 2)
	assert.Equal(t, "tx-1", records[0].TransactionId)
	assert.Equal(t, "tx-3", records[1].TransactionId)
	assert.Equal(t, models.SourcePayme, records[0].Source)
}

func TestProviderClientRequiresConfig(t *testing.T) {
	t.Setenv("CLICK_API_BASE_URL", "")
	t.Setenv("CLICK_API_KEY", "")
	_, err := newProviderClient("click")
	assert.Error(t, err)
}

func TestProviderClientCloseStopsLimiter(t *testing.T) {
	t.Setenv("UZUM_API_BASE_URL", "http://localhost:1")
	t.Setenv("UZUM_API_KEY", "secret")

	client, err := newProviderClient("uzum")
	require.NoError(t, err)
	client.close()

	select {
	case <-client.limiter.C:
		t.Fatal("limiter still ticking after close")
	case <-time.After(1100 * time.Millisecond):
	}
}

func TestLoaderRegistryUnknownSource(t *testing.T) {
	reg := NewLoaderRegistry()
	_, err := reg.Load(context.Background(), models.ReconciliationSource("BOGUS"), LoadRequest{})
	assert.Error(t, err)
}
