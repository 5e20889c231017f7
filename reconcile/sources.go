package reconcile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vendhub/vendhub_backend/config"
	"github.com/vendhub/vendhub_backend/models"
	"github.com/xuri/excelize/v2"
)

// SourceLoader fetches the normalized, time-ordered record list for one
// source. Implementations return an empty list for "no data"; a returned
// error propagates and fails the whole run.
type SourceLoader interface {
	Load(ctx context.Context, req LoadRequest) ([]MatchRecord, error)
}

// LoaderRegistry maps each configured source to its loader.
type LoaderRegistry struct {
	loaders map[models.ReconciliationSource]SourceLoader
}

func NewLoaderRegistry() *LoaderRegistry {
	return &LoaderRegistry{
		loaders: map[models.ReconciliationSource]SourceLoader{
			models.SourceSalesReport: &salesReportLoader{},
			models.SourceFiscal:      &fiscalLoader{},
			models.SourceHardware:    &hardwareReportLoader{},
			models.SourcePayme:       &providerLoader{provider: "payme", source: models.SourcePayme},
			models.SourceClick:       &providerLoader{provider: "click", source: models.SourceClick},
			models.SourceUzum:        &providerLoader{provider: "uzum", source: models.SourceUzum},
		},
	}
}

func (r *LoaderRegistry) Register(source models.ReconciliationSource, loader SourceLoader) {
	r.loaders[source] = loader
}

func (r *LoaderRegistry) Load(ctx context.Context, source models.ReconciliationSource, req LoadRequest) ([]MatchRecord, error) {
	loader, ok := r.loaders[source]
	if !ok {
		return nil, fmt.Errorf("no loader registered for source %s", source)
	}
	return loader.Load(ctx, req)
}

// salesReportLoader reads the internal sales report (vend_sales), the usual
// primary source.
type salesReportLoader struct{}

func (l *salesReportLoader) Load(ctx context.Context, req LoadRequest) ([]MatchRecord, error) {
	db := config.GetDB().WithContext(ctx)

	query := db.Model(&models.VendSale{}).
		Where("sold_at >= ? AND sold_at < ?", req.DateFrom, req.DateTo).
		Order("sold_at asc, id asc")
	if len(req.MachineCodes) > 0 {
		query = query.Where("machine_code IN ?", req.MachineCodes)
	}

	var sales []models.VendSale
	if err := query.Find(&sales).Error; err != nil {
		return nil, err
	}

	records := make([]MatchRecord, 0, len(sales))
	for _, s := range sales {
		records = append(records, MatchRecord{
			OrderNumber:   s.OrderNumber,
			MachineCode:   s.MachineCode,
			PaymentMethod: string(s.PaymentMethod),
			TransactionId: fmt.Sprintf("sale-%d", s.ID),
			Time:          s.SoldAt,
			Amount:        s.Amount,
			Source:        models.SourceSalesReport,
			Extra:         map[string]any{"product_name": s.ProductName},
		})
	}
	return records, nil
}

// fiscalLoader reads locally synced OFD fiscal receipts.
type fiscalLoader struct{}

func (l *fiscalLoader) Load(ctx context.Context, req LoadRequest) ([]MatchRecord, error) {
	db := config.GetDB().WithContext(ctx)

	query := db.Model(&models.FiscalReceipt{}).
		Where("fiscalized_at >= ? AND fiscalized_at < ?", req.DateFrom, req.DateTo).
		Order("fiscalized_at asc, id asc")
	if len(req.MachineCodes) > 0 {
		query = query.Where("machine_code IN ?", req.MachineCodes)
	}

	var receipts []models.FiscalReceipt
	if err := query.Find(&receipts).Error; err != nil {
		return nil, err
	}

	records := make([]MatchRecord, 0, len(receipts))
	for _, r := range receipts {
		records = append(records, MatchRecord{
			OrderNumber:   r.OrderNumber,
			MachineCode:   r.MachineCode,
			PaymentMethod: string(r.PaymentMethod),
			TransactionId: r.ReceiptId,
			Time:          r.FiscalizedAt,
			Amount:        r.Amount,
			Source:        models.SourceFiscal,
			Extra:         map[string]any{"fiscal_sign": r.FiscalSign},
		})
	}
	return records, nil
}

// hardwareReportLoader parses vending-machine Excel exports dropped into
// HARDWARE_EXPORT_DIR. Expected columns, first sheet, header row skipped:
// order number, machine code, time (2006-01-02 15:04:05), amount,
// payment method.
type hardwareReportLoader struct{}

func (l *hardwareReportLoader) Load(ctx context.Context, req LoadRequest) ([]MatchRecord, error) {
	dir := strings.TrimSpace(os.Getenv("HARDWARE_EXPORT_DIR"))
	if dir == "" {
		dir = "./hardware-exports"
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []MatchRecord{}, nil
		}
		return nil, err
	}

	machineFilter := map[string]bool{}
	for _, code := range req.MachineCodes {
		machineFilter[code] = true
	}

	var records []MatchRecord
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".xlsx") {
			continue
		}
		fileRecords, err := parseHardwareExport(filepath.Join(dir, entry.Name()), req, machineFilter)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		records = append(records, fileRecords...)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Time.Before(records[j].Time)
	})
	if records == nil {
		records = []MatchRecord{}
	}
	return records, nil
}

func parseHardwareExport(path string, req LoadRequest, machineFilter map[string]bool) ([]MatchRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}

	var records []MatchRecord
	for i, row := range rows {
		if i == 0 || len(row) < 4 {
			continue
		}
		orderNumber := strings.TrimSpace(row[0])
		machineCode := strings.TrimSpace(row[1])
		soldAt, err := time.Parse("2006-01-02 15:04:05", strings.TrimSpace(row[2]))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad time %q", i+1, row[2])
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(row[3]))
		if err != nil {
			return nil, fmt.Errorf("row %d: bad amount %q", i+1, row[3])
		}
		paymentMethod := ""
		if len(row) > 4 {
			paymentMethod = strings.TrimSpace(row[4])
		}

		if soldAt.Before(req.DateFrom) || !soldAt.Before(req.DateTo) {
			continue
		}
		if len(machineFilter) > 0 && !machineFilter[machineCode] {
			continue
		}

		records = append(records, MatchRecord{
			OrderNumber:   orderNumber,
			MachineCode:   machineCode,
			PaymentMethod: paymentMethod,
			TransactionId: fmt.Sprintf("%s-%d", filepath.Base(path), i),
			Time:          soldAt,
			Amount:        amount,
			Source:        models.SourceHardware,
		})
	}
	return records, nil
}

// providerLoader pulls transactions from a payment-processor API.
type providerLoader struct {
	provider string
	source   models.ReconciliationSource
}

func (l *providerLoader) Load(ctx context.Context, req LoadRequest) ([]MatchRecord, error) {
	client, err := newProviderClient(l.provider)
	if err != nil {
		return nil, err
	}
	defer client.close()

	transactions, err := client.listTransactions(ctx, req.DateFrom, req.DateTo)
	if err != nil {
		return nil, err
	}

	machineFilter := map[string]bool{}
	for _, code := range req.MachineCodes {
		machineFilter[code] = true
	}

	records := make([]MatchRecord, 0, len(transactions))
	for _, tx := range transactions {
		if tx.State != "" && tx.State != "paid" && tx.State != "success" {
			continue
		}
		if len(machineFilter) > 0 && tx.MachineCode != "" && !machineFilter[tx.MachineCode] {
			continue
		}
		paidAt, err := time.Parse(time.RFC3339, tx.Time)
		if err != nil {
			return nil, fmt.Errorf("%s transaction %s: bad time %q", l.provider, tx.ID, tx.Time)
		}
		amount, err := decimal.NewFromString(tx.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("%s transaction %s: bad amount %q", l.provider, tx.ID, tx.Amount)
		}

		records = append(records, MatchRecord{
			OrderNumber:   tx.OrderNumber,
			MachineCode:   tx.MachineCode,
			PaymentMethod: tx.PaymentMethod,
			TransactionId: tx.ID,
			Time:          paidAt,
			Amount:        amount,
			Source:        l.source,
		})
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Time.Before(records[j].Time)
	})
	return records, nil
}
