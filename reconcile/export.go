package reconcile

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/vendhub/vendhub_backend/config"
	"github.com/vendhub/vendhub_backend/models"
	"github.com/xuri/excelize/v2"
)

// ExportRunHandler streams a run's mismatches as an Excel workbook for
// offline review.
func ExportRunHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		run, err := GetRun(c.Request.Context(), id)
		if err != nil {
			respondError(c, err)
			return
		}

		db := config.GetDB().WithContext(c.Request.Context())
		var mismatches []models.ReconciliationMismatch
		if err := db.Where("run_id = ?", run.ID).Order("order_time desc").Find(&mismatches).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		f := excelize.NewFile()
		defer f.Close()
		sheet := "Mismatches"
		index, err := f.NewSheet(sheet)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		f.DeleteSheet("Sheet1")
		f.SetActiveSheet(index)

		headers := []string{"ID", "Type", "Order Number", "Machine", "Order Time", "Amount", "Score", "Discrepancy", "Description", "Resolved"}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			f.SetCellValue(sheet, cell, h)
		}

		for rowIdx, m := range mismatches {
			values := []any{
				m.ID,
				string(m.MismatchType),
				strOrEmpty(m.OrderNumber),
				strOrEmpty(m.MachineCode),
				timeOrEmpty(m.OrderTime),
				decimalOrEmpty(m.Amount),
				m.MatchScore,
				decimalOrEmpty(m.DiscrepancyAmount),
				m.Description,
				m.IsResolved,
			}
			for colIdx, v := range values {
				cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
				f.SetCellValue(sheet, cell, v)
			}
		}

		filename := fmt.Sprintf("reconciliation-run-%d.xlsx", run.ID)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+filename)
		if err := f.Write(c.Writer); err != nil {
			config.LogError(config.GetLogger(), "export.go", "ExportRunHandler", "writing workbook", run.ID, err)
		}
	}
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

func decimalOrEmpty(d *decimal.Decimal) string {
	if d == nil {
		return ""
	}
	return d.String()
}
