package delivery

import (
	"errors"
	"strings"

	"vienna-backend/internal/audit"
	"vienna-backend/internal/auth"
	"vienna-backend/internal/httpx"
	"vienna-backend/internal/models"
	"vienna-backend/internal/orders"

	"github.com/gofiber/fiber/v2"
)

func fail(funcName string, err error, msg string) error {
	if errors.Is(err, orders.ErrDriverColumnMissing) {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return httpx.Fail("delivery", funcName, err, msg)
}

func record(c *fiber.Ctx, orderID, desc string, after any) {
	actor := auth.ActorFrom(c)
	audit.Record(c.UserContext(), audit.LogOptions{
		UserID:      actor.UserID,
		UserName:    actor.Name,
		EntityType:  models.EntityOrder,
		EntityID:    orderID,
		Action:      models.AuditActionUpdate,
		Description: desc,
		After:       after,
	})
}

// GET /api/delivery/accounts
func AccountsHandler(svc *orders.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.WithDriver(c.UserContext())
		if err != nil {
			return fail("AccountsHandler", err, "could not load driver accounts")
		}
		return c.JSON(Summarize(list))
	}
}

func transition(svc *orders.Service, status models.OrderStatus, funcName, desc string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := strings.TrimSpace(c.Params("id"))
		if err := svc.SetStatus(c.UserContext(), id, status); err != nil {
			return fail(funcName, err, "could not update the order")
		}
		record(c, id, desc, fiber.Map{"status": status})
		return c.JSON(fiber.Map{"id": id, "status": status})
	}
}

// POST /api/delivery/orders/:id/complete
func CompleteHandler(svc *orders.Service) fiber.Handler {
	return transition(svc, models.OrderStatusAwaitingSettlement, "CompleteHandler", "delivered, money with driver")
}

// POST /api/delivery/orders/:id/settle
func SettleHandler(svc *orders.Service) fiber.Handler {
	return transition(svc, models.OrderStatusSettled, "SettleHandler", "driver settled")
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// POST /api/delivery/orders/:id/cancel
func CancelHandler(svc *orders.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body cancelRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		id := strings.TrimSpace(c.Params("id"))
		if err := svc.Cancel(c.UserContext(), id, body.Reason); err != nil {
			return fail("CancelHandler", err, "could not cancel the order")
		}
		record(c, id, "order cancelled: "+strings.TrimSpace(body.Reason), body)
		return c.JSON(fiber.Map{"id": id, "status": models.OrderStatusCancelled})
	}
}
