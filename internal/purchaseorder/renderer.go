package purchaseorder

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/procure2pay/server/internal/domain/entity"
)

// Renderer turns a purchase order into a binary artifact. The snapshot and
// hash are the PO of record; rendering is a presentation concern.
type Renderer interface {
	Render(po *entity.PurchaseOrder) ([]byte, error)
}

// ExcelRenderer writes the purchase order as an xlsx workbook.
type ExcelRenderer struct {
	logger *zap.Logger
}

// NewExcelRenderer creates a new Excel artifact renderer
func NewExcelRenderer(logger *zap.Logger) *ExcelRenderer {
	return &ExcelRenderer{logger: logger}
}

// Render produces the workbook bytes for the PO.
func (r *ExcelRenderer) Render(po *entity.PurchaseOrder) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)

	r.setCell(f, sheet, "A1", "Purchase Order")
	r.setCell(f, sheet, "A3", "PO Number")
	r.setCell(f, sheet, "B3", po.PONumber)
	r.setCell(f, sheet, "A4", "Vendor")
	r.setCell(f, sheet, "B4", po.Snapshot.Vendor)
	r.setCell(f, sheet, "A5", "Currency")
	r.setCell(f, sheet, "B5", po.Snapshot.Currency)
	r.setCell(f, sheet, "A6", "Total Amount")
	r.setCell(f, sheet, "B6", fmt.Sprintf("%.2f", float64(po.Snapshot.TotalCents)/100.0))
	r.setCell(f, sheet, "A7", "Generated At")
	r.setCell(f, sheet, "B7", po.GeneratedAt.Format("2006-01-02 15:04:05"))

	r.setCell(f, sheet, "A9", "Description")
	r.setCell(f, sheet, "B9", "Quantity")
	r.setCell(f, sheet, "C9", "Unit Price")
	r.setCell(f, sheet, "D9", "Line Total")

	row := 10
	for _, item := range po.Snapshot.Items {
		r.setCell(f, sheet, fmt.Sprintf("A%d", row), item.Description)
		r.setCell(f, sheet, fmt.Sprintf("B%d", row), fmt.Sprintf("%d", item.Quantity))
		r.setCell(f, sheet, fmt.Sprintf("C%d", row), fmt.Sprintf("%.2f", float64(item.UnitPriceCents)/100.0))
		r.setCell(f, sheet, fmt.Sprintf("D%d", row), fmt.Sprintf("%.2f", float64(item.Quantity*item.UnitPriceCents)/100.0))
		row++
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	return buf.Bytes(), nil
}

func (r *ExcelRenderer) setCell(f *excelize.File, sheet, cell, value string) {
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		r.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}

var _ Renderer = (*ExcelRenderer)(nil)
