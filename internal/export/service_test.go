package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/oluwaseun-a/po-tracker/constants"
	"github.com/oluwaseun-a/po-tracker/internal/entity"
)

func TestBuildOrdersWorkbook(t *testing.T) {
	orders := []*entity.PurchaseOrder{
		{
			PONumber:  "PO-2024-001",
			Status:    constants.StatusConfirmed,
			OrderDate: time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
			Buyer:     entity.BuyerInfo{Name: "Amaka Eze", Email: "amaka@buyer.example"},
			Delivery:  entity.DeliveryInfo{Location: "Dock 3, Apapa"},
			Items: []entity.LineItem{
				{Code: "WID-1", Description: "Widget, large", Quantity: 4, UnitCost: 2.5, LineTotal: 10},
				{Code: "GAD-2", Description: "Gadget", Quantity: 2, UnitCost: 15, LineTotal: 30},
			},
			Total:    40,
			Revision: 1,
		},
		{
			PONumber: "PO-2024-002",
			Status:   constants.StatusUploaded,
			Buyer:    entity.BuyerInfo{Name: "Bola Ade"},
			Total:    0,
		},
	}

	b, err := BuildOrdersWorkbook(orders)
	require.NoError(t, err)
	require.NotEmpty(t, b)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	v, err := f.GetCellValue("Orders", "A1")
	require.NoError(t, err)
	assert.Equal(t, "PO Number", v)

	v, _ = f.GetCellValue("Orders", "A2")
	assert.Equal(t, "PO-2024-001", v)
	v, _ = f.GetCellValue("Orders", "B2")
	assert.Equal(t, "confirmed", v)
	v, _ = f.GetCellValue("Orders", "C2")
	assert.Equal(t, "2024-03-15", v)
	v, _ = f.GetCellValue("Orders", "G2")
	assert.Equal(t, "2", v)
	v, _ = f.GetCellValue("Orders", "J2")
	assert.Equal(t, "40", v)

	v, _ = f.GetCellValue("Orders", "A3")
	assert.Equal(t, "PO-2024-002", v)
	v, _ = f.GetCellValue("Orders", "C3")
	assert.Equal(t, "", v)

	v, _ = f.GetCellValue("Line Items", "A2")
	assert.Equal(t, "PO-2024-001", v)
	v, _ = f.GetCellValue("Line Items", "B3")
	assert.Equal(t, "GAD-2", v)
	v, _ = f.GetCellValue("Line Items", "F3")
	assert.Equal(t, "30", v)
}

func TestBuildOrdersWorkbookEmpty(t *testing.T) {
	b, err := BuildOrdersWorkbook(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	v, err := f.GetCellValue("Line Items", "A1")
	require.NoError(t, err)
	assert.Equal(t, "PO Number", v)
	v, _ = f.GetCellValue("Orders", "A2")
	assert.Equal(t, "", v)
}
