package reports

import (
	"fmt"

	"vienna-backend/internal/httpx"
	"vienna-backend/internal/procurement"
	"vienna-backend/internal/sales"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func send(c *fiber.Ctx, f *excelize.File, filename string) error {
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return httpx.Fail("reports", "send", err, "could not write the spreadsheet")
	}
	c.Set(fiber.HeaderContentType, xlsxType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%s", filename))
	return c.Send(buf.Bytes())
}

// GET /api/reports/bills.xlsx?limit=500 (admin)
func BillsReportHandler(svc *procurement.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bills, err := svc.Recent(c.UserContext(), c.Query("q"), httpx.QueryLimit(c, "limit", 500, 2000))
		if err != nil {
			return httpx.Fail("reports", "BillsReportHandler", err, "could not load bills")
		}
		f, err := BillsWorkbook(bills)
		if err != nil {
			return httpx.Fail("reports", "BillsReportHandler", err, "could not build the report")
		}
		return send(c, f, "bills.xlsx")
	}
}

// GET /api/reports/sales.xlsx?limit=500 (admin)
func SalesReportHandler(svc *sales.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := svc.Recent(c.UserContext(), httpx.QueryLimit(c, "limit", 500, 2000))
		if err != nil {
			return httpx.Fail("reports", "SalesReportHandler", err, "could not load sales")
		}
		f, err := SalesWorkbook(rows)
		if err != nil {
			return httpx.Fail("reports", "SalesReportHandler", err, "could not build the report")
		}
		return send(c, f, "sales.xlsx")
	}
}
