package controllers

import (
	"fmt"
	"time"

	"Gin_postgres_redis_ict_loan/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const inventorySheet = "Inventory"

var inventoryHeaders = []string{
	"Tag ID", "Serial number", "Asset type", "Brand", "Model", "Availability",
	"Condition", "Location", "Purchase date", "Purchase price", "Warranty expiry", "Under warranty",
}

// buildInventoryWorkbook renders the registry as one sheet with a total
// purchase value row at the bottom.
func buildInventoryWorkbook(items []models.Equipment, now time.Time) (*excelize.File, string, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", inventorySheet); err != nil {
		return nil, "", err
	}
	sheet := inventorySheet

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, "", err
	}
	for i, h := range inventoryHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	total := decimal.Zero
	for i, e := range items {
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), e.TagID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), e.SerialNumber)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), e.AssetType)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), e.Brand)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), e.Model)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), e.AvailabilityStatus.Label())
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), e.ConditionStatus.Label())
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), e.CurrentLocation)
		if e.PurchaseDate != nil {
			f.SetCellValue(sheet, fmt.Sprintf("I%d", row), e.PurchaseDate.Format(dateLayout))
		}
		price, _ := e.PurchasePrice.Float64()
		f.SetCellValue(sheet, fmt.Sprintf("J%d", row), price)
		total = total.Add(e.PurchasePrice)
		if e.WarrantyExpiryDate != nil {
			f.SetCellValue(sheet, fmt.Sprintf("K%d", row), e.WarrantyExpiryDate.Format(dateLayout))
		}
		warranty := "No"
		if e.UnderWarranty(now) {
			warranty = "Yes"
		}
		f.SetCellValue(sheet, fmt.Sprintf("L%d", row), warranty)
	}

	summaryRow := len(items) + 2
	summaryStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	totalValue, _ := total.Round(2).Float64()
	f.SetCellValue(sheet, fmt.Sprintf("A%d", summaryRow), "Total")
	f.SetCellValue(sheet, fmt.Sprintf("C%d", summaryRow), fmt.Sprintf("%d units", len(items)))
	f.SetCellValue(sheet, fmt.Sprintf("J%d", summaryRow), totalValue)
	f.SetCellStyle(sheet, fmt.Sprintf("A%d", summaryRow), fmt.Sprintf("L%d", summaryRow), summaryStyle)

	colWidths := []float64{14, 18, 14, 14, 18, 16, 14, 20, 14, 14, 16, 14}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	return f, fmt.Sprintf("equipment_inventory_%s.xlsx", now.Format("20060102")), nil
}
