package billing

import (
	"bytes"
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/gogomarket/rental-backend/internal/common/errors"
	"github.com/gogomarket/rental-backend/internal/models"
)

const exportSheet = "Bills"

// ExportHeader 月度账单导出表头
var ExportHeader = []string{
	"Bill Number", "Ref Number", "Tenant", "Contract",
	"Rent", "Water Usage", "Water", "Electric Usage", "Electric",
	"Discount", "VAT %", "VAT", "Total", "Status", "Paid At",
}

var exportColWidths = []float64{38, 12, 24, 20, 12, 12, 12, 14, 12, 12, 8, 12, 14, 16, 20}

// ExportMonth 导出某月账单为 xlsx，返回文件内容和文件名
func (s *BillingService) ExportMonth(ctx context.Context, year, month int) ([]byte, string, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, "", err
	}
	bills, err := s.billRepo.ListByMonth(ctx, year, month)
	if err != nil {
		return nil, "", errors.ErrDatabaseError.WithError(err)
	}
	data, err := buildWorkbook(bills)
	if err != nil {
		return nil, "", errors.ErrOperationFailed.WithError(err)
	}
	return data, fmt.Sprintf("bills-%04d-%02d.xlsx", year, month), nil
}

func buildWorkbook(bills []*models.Bill) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(exportSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}
	amountFmt := "#,##0.00"
	amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &amountFmt})
	if err != nil {
		return nil, fmt.Errorf("failed to create amount style: %w", err)
	}

	if err := f.SetSheetRow(exportSheet, "A1", &ExportHeader); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	last, err := excelize.ColumnNumberToName(len(ExportHeader))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(exportSheet, "A1", last+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("failed to set header style: %w", err)
	}
	for i, w := range exportColWidths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(exportSheet, col, col, w); err != nil {
			return nil, fmt.Errorf("failed to set column width: %w", err)
		}
	}

	total := decimal.Zero
	for i, b := range bills {
		row := i + 2
		tenant, contract, paidAt := "", "", ""
		if b.Tenant != nil {
			tenant = b.Tenant.FullName()
		}
		if b.Contract != nil {
			contract = b.Contract.ContractNumber
		}
		if b.PaidAt != nil {
			paidAt = b.PaidAt.Format("2006-01-02 15:04")
		}
		values := []interface{}{
			b.BillNumber, b.RefNumber, tenant, contract,
			b.Rent.InexactFloat64(), b.WaterUsage.InexactFloat64(), b.Water.InexactFloat64(),
			b.ElectricUsage.InexactFloat64(), b.Electric.InexactFloat64(),
			b.Discount.InexactFloat64(), b.VatPercent.InexactFloat64(), b.Vat.InexactFloat64(),
			b.TotalVat.InexactFloat64(), b.Status, paidAt,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(exportSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("failed to write row %d: %w", row, err)
		}
		total = total.Add(b.TotalVat)
	}

	// 合计行
	if len(bills) > 0 {
		row := len(bills) + 2
		label, _ := excelize.CoordinatesToCellName(12, row)
		sum, _ := excelize.CoordinatesToCellName(13, row)
		if err := f.SetCellValue(exportSheet, label, "Total"); err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, sum, total.InexactFloat64()); err != nil {
			return nil, err
		}
		start, _ := excelize.CoordinatesToCellName(5, 2)
		if err := f.SetCellStyle(exportSheet, start, sum, amountStyle); err != nil {
			return nil, fmt.Errorf("failed to set amount style: %w", err)
		}
	}

	buf := new(bytes.Buffer)
	if _, err := f.WriteTo(buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}
