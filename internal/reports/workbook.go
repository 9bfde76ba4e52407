package reports

import (
	"encoding/json"
	"fmt"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/procurement"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const sheet = "Sheet1"

// writeTable fills sheet with a bold header row followed by rows.
func writeTable(f *excelize.File, headers []string, rows [][]any) error {
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}
	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	return f.SetColWidth(sheet, "A", lastCol, 16)
}

func money(d decimal.Decimal) float64 { return billing.Round2(d).InexactFloat64() }

// BillsWorkbook lists procurement bills with a totals row at the bottom.
func BillsWorkbook(bills []procurement.BillView) (*excelize.File, error) {
	f := excelize.NewFile()
	rows := make([][]any, 0, len(bills)+1)
	var total, paid, remaining decimal.Decimal
	for _, b := range bills {
		rows = append(rows, []any{b.ShortID, b.Date, b.PaymentMethod, len(b.Items), money(b.Total), money(b.Paid), money(b.Remaining)})
		total = total.Add(b.Total)
		paid = paid.Add(b.Paid)
		remaining = remaining.Add(b.Remaining)
	}
	rows = append(rows, []any{"Total", "", "", "", money(total), money(paid), money(remaining)})

	headers := []string{"Bill", "Date", "Payment", "Lines", "Total", "Paid", "Remaining"}
	if err := writeTable(f, headers, rows); err != nil {
		f.Close()
		return nil, fmt.Errorf("write bills sheet: %w", err)
	}
	return f, nil
}

// saleRow accepts the common last_sales spellings.
type saleRow struct {
	ID            string              `json:"id"`
	CreatedAt     string              `json:"created_at"`
	Date          string              `json:"date"`
	CustomerName  *string             `json:"customer_name"`
	PaymentMethod *string             `json:"payment_method"`
	Paid          decimal.NullDecimal `json:"paid"`
	Total         decimal.NullDecimal `json:"total"`
}

func (r saleRow) date() string {
	if r.CreatedAt != "" {
		return r.CreatedAt
	}
	return r.Date
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// SalesWorkbook lists sales returned by last_sales. Rows that do not decode
// as objects are skipped.
func SalesWorkbook(raw []json.RawMessage) (*excelize.File, error) {
	f := excelize.NewFile()
	rows := make([][]any, 0, len(raw)+1)
	var total, paid decimal.Decimal
	for _, m := range raw {
		var s saleRow
		if err := json.Unmarshal(m, &s); err != nil {
			continue
		}
		rows = append(rows, []any{billing.ShortID(s.ID), s.date(), deref(s.CustomerName), deref(s.PaymentMethod), money(s.Total.Decimal), money(s.Paid.Decimal)})
		total = total.Add(s.Total.Decimal)
		paid = paid.Add(s.Paid.Decimal)
	}
	rows = append(rows, []any{"Total", "", "", "", money(total), money(paid)})

	headers := []string{"Sale", "Date", "Customer", "Payment", "Total", "Paid"}
	if err := writeTable(f, headers, rows); err != nil {
		f.Close()
		return nil, fmt.Errorf("write sales sheet: %w", err)
	}
	return f, nil
}
