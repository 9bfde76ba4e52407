package procurement

import (
	"strings"

	"vienna-backend/internal/audit"
	"vienna-backend/internal/auth"
	"vienna-backend/internal/httpx"
	"vienna-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

func record(c *fiber.Ctx, action models.AuditAction, billID, desc string, after any) {
	actor := auth.ActorFrom(c)
	audit.Record(c.UserContext(), audit.LogOptions{
		UserID:      actor.UserID,
		UserName:    actor.Name,
		EntityType:  models.EntityBill,
		EntityID:    billID,
		Action:      action,
		Description: desc,
		After:       after,
	})
}

// GET /api/bills?q=&limit=50
func ListBillsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bills, err := svc.Recent(c.UserContext(), c.Query("q"), httpx.QueryLimit(c, "limit", 50, 500))
		if err != nil {
			return httpx.Fail("procurement", "ListBillsHandler", err, "could not load bills")
		}
		return c.JSON(bills)
	}
}

// GET /api/bills/:id
func GetBillHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		bill, err := svc.Detail(c.UserContext(), c.Params("id"))
		if err != nil {
			return httpx.Fail("procurement", "GetBillHandler", err, "could not load the bill")
		}
		return c.JSON(bill)
	}
}

// POST /api/bills/preview
func PreviewBillHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body BillRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		return c.JSON(Preview(body))
	}
}

// POST /api/bills
func CreateBillHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body BillRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		res, err := svc.Create(c.UserContext(), body)
		if err != nil {
			return httpx.Fail("procurement", "CreateBillHandler", err, "could not save the bill")
		}
		record(c, models.AuditActionCreate, res.BillID, "bill created", body)
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// PUT /api/bills/:id
func UpdateBillHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		billID := strings.TrimSpace(c.Params("id"))
		var body BillRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		res, err := svc.Update(c.UserContext(), billID, body)
		if err != nil {
			return httpx.Fail("procurement", "UpdateBillHandler", err, "could not update the bill")
		}
		record(c, models.AuditActionUpdate, billID, "bill updated", body)
		return c.JSON(res)
	}
}

// DELETE /api/bills/:id (admin)
func DeleteBillHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		billID := strings.TrimSpace(c.Params("id"))
		if err := svc.Delete(c.UserContext(), billID); err != nil {
			return httpx.Fail("procurement", "DeleteBillHandler", err, "could not delete the bill")
		}
		record(c, models.AuditActionDelete, billID, "bill deleted", nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}
