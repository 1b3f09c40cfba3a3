package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/oluwaseun-a/po-tracker/internal/entity"
	"github.com/oluwaseun-a/po-tracker/internal/repository"
)

// Service is a tiny façade over the order repository that produces XLSX bytes
// for exports.
type Service struct {
	orders repository.OrderRepository
	logger *slog.Logger
}

func NewService(orders repository.OrderRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orders: orders, logger: logger}
}

// ExportOrdersXLSX returns an XLSX workbook (as bytes) for the given date
// window. If only from is provided -> from..today (inclusive). If neither is
// provided -> all orders.
func (s *Service) ExportOrdersXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	var fromDate, toDate *time.Time
	if from != nil {
		f := dateOnly(*from)
		fromDate = &f
	}
	if to != nil {
		t := dateOnly(*to)
		toDate = &t
	}
	if fromDate != nil && toDate == nil {
		t := dateOnly(time.Now().UTC())
		toDate = &t
	}

	orders, err := s.orders.List(ctx, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	b, err := BuildOrdersWorkbook(orders)
	if err != nil {
		return nil, err
	}

	s.logger.Info("export.orders.ok",
		"orders", len(orders),
		"bytes", len(b),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return b, nil
}

// BuildOrdersWorkbook writes one row per order plus a Line Items sheet.
func BuildOrdersWorkbook(orders []*entity.PurchaseOrder) ([]byte, error) {
	f := excelize.NewFile()

	const ordersSheet = "Orders"
	const itemsSheet = "Line Items"

	if err := ensureSheet(f, ordersSheet); err != nil {
		return nil, err
	}
	if err := ensureSheet(f, itemsSheet); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(ordersSheet)
	f.SetActiveSheet(activeIndex)

	orderHeaders := []string{
		"PO Number", "Status", "Order Date", "Buyer", "Buyer Email",
		"Delivery Location", "Items", "Gross Weight", "Net Weight",
		"Total", "Revision", "Notes",
	}
	for i, h := range orderHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(ordersSheet, cell, h)
	}

	itemHeaders := []string{"PO Number", "Code", "Description", "Quantity", "Unit Cost", "Line Total"}
	for i, h := range itemHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(itemsSheet, cell, h)
	}

	orderRow := 2
	itemRow := 2
	for _, po := range orders {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, orderRow)
			_ = f.SetCellValue(ordersSheet, cell, v)
		}
		write(1, po.PONumber)
		write(2, string(po.Status))
		if !po.OrderDate.IsZero() {
			write(3, po.OrderDate.Format("2006-01-02"))
		} else {
			write(3, "")
		}
		write(4, po.Buyer.Name)
		write(5, po.Buyer.Email)
		write(6, po.Delivery.Location)
		write(7, len(po.Items))
		write(8, po.Weights.Gross)
		write(9, po.Weights.Net)
		write(10, po.Total)
		write(11, po.Revision)
		write(12, truncate(po.Notes, 140))
		orderRow++

		for _, it := range po.Items {
			writeItem := func(col int, v any) {
				cell, _ := excelize.CoordinatesToCellName(col, itemRow)
				_ = f.SetCellValue(itemsSheet, cell, v)
			}
			writeItem(1, po.PONumber)
			writeItem(2, it.Code)
			writeItem(3, it.Description)
			writeItem(4, it.Quantity)
			writeItem(5, it.UnitCost)
			writeItem(6, it.LineTotal)
			itemRow++
		}
	}

	// Widen a few columns
	_ = f.SetColWidth(ordersSheet, "A", "A", 16) // po number
	_ = f.SetColWidth(ordersSheet, "C", "C", 12) // date
	_ = f.SetColWidth(ordersSheet, "D", "F", 24) // buyer/delivery
	_ = f.SetColWidth(itemsSheet, "C", "C", 32)  // description

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func ensureSheet(f *excelize.File, sheet string) error {
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return err
		}
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
