package sales

import (
	"strings"

	"vienna-backend/internal/audit"
	"vienna-backend/internal/auth"
	"vienna-backend/internal/httpx"
	"vienna-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

func record(c *fiber.Ctx, action models.AuditAction, saleID, desc string, after any) {
	actor := auth.ActorFrom(c)
	audit.Record(c.UserContext(), audit.LogOptions{
		UserID:      actor.UserID,
		UserName:    actor.Name,
		EntityType:  models.EntitySale,
		EntityID:    saleID,
		Action:      action,
		Description: desc,
		After:       after,
	})
}

// POST /api/sales
func CreateSaleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		res, err := svc.Create(c.UserContext(), body)
		if err != nil {
			return httpx.Fail("sales", "CreateSaleHandler", err, "could not record the sale")
		}
		record(c, models.AuditActionCreate, res.SaleID, "sale recorded", body)
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// PUT /api/sales/:id
func UpdateSaleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID := strings.TrimSpace(c.Params("id"))
		var body SaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		res, err := svc.Update(c.UserContext(), saleID, body)
		if err != nil {
			return httpx.Fail("sales", "UpdateSaleHandler", err, "could not update the sale")
		}
		record(c, models.AuditActionUpdate, saleID, "sale updated", body)
		return c.JSON(res)
	}
}

// DELETE /api/sales/:id (admin)
func DeleteSaleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		saleID := strings.TrimSpace(c.Params("id"))
		if err := svc.Delete(c.UserContext(), saleID); err != nil {
			return httpx.Fail("sales", "DeleteSaleHandler", err, "could not delete the sale")
		}
		record(c, models.AuditActionDelete, saleID, "sale deleted", nil)
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GET /api/sales/recent?limit=10
func RecentSalesHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := svc.Recent(c.UserContext(), httpx.QueryLimit(c, "limit", 10, 500))
		if err != nil {
			return httpx.Fail("sales", "RecentSalesHandler", err, "could not load recent sales")
		}
		return c.JSON(rows)
	}
}
