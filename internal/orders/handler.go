package orders

import (
	"errors"
	"strings"

	"vienna-backend/internal/audit"
	"vienna-backend/internal/auth"
	"vienna-backend/internal/cache"
	"vienna-backend/internal/httpx"
	"vienna-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

func record(c *fiber.Ctx, action models.AuditAction, orderID, desc string, after any) {
	actor := auth.ActorFrom(c)
	audit.Record(c.UserContext(), audit.LogOptions{
		UserID:      actor.UserID,
		UserName:    actor.Name,
		EntityType:  models.EntityOrder,
		EntityID:    orderID,
		Action:      action,
		Description: desc,
		After:       after,
	})
}

// fail maps order specific errors before the generic mapping.
func fail(funcName string, err error, msg string) error {
	switch {
	case errors.Is(err, ErrDriverColumnMissing):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, cache.ErrLockHeld):
		return fiber.NewError(fiber.StatusConflict, "order is already being fulfilled")
	}
	return httpx.Fail("orders", funcName, err, msg)
}

// POST /api/orders
func CreateOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		id, err := svc.Create(c.UserContext(), body)
		if err != nil {
			return fail("CreateOrderHandler", err, "could not create the order")
		}
		record(c, models.AuditActionCreate, id, "order created", body)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
	}
}

// GET /api/orders?limit=50
func ListOrdersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.List(c.UserContext(), httpx.QueryLimit(c, "limit", 50, 500))
		if err != nil {
			return fail("ListOrdersHandler", err, "could not load orders")
		}
		return c.JSON(list)
	}
}

// GET /api/orders/recent?limit=10
func RecentOrdersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := svc.Recent(c.UserContext(), httpx.QueryLimit(c, "limit", 10, 500))
		if err != nil {
			return fail("RecentOrdersHandler", err, "could not load recent orders")
		}
		return c.JSON(rows)
	}
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// PUT /api/orders/:id/status
func UpdateStatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body statusRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		id := strings.TrimSpace(c.Params("id"))
		status := models.OrderStatus(strings.TrimSpace(body.Status))
		if err := svc.SetStatus(c.UserContext(), id, status); err != nil {
			return fail("UpdateStatusHandler", err, "could not update the order status")
		}
		record(c, models.AuditActionUpdate, id, "order status: "+string(status), body)
		return c.JSON(fiber.Map{"id": id, "status": status})
	}
}

type driverRequest struct {
	DriverName string `json:"driver_name"`
}

// PUT /api/orders/:id/driver
func UpdateDriverHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body driverRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		id := strings.TrimSpace(c.Params("id"))
		if err := svc.SetDriver(c.UserContext(), id, body.DriverName); err != nil {
			return fail("UpdateDriverHandler", err, "could not assign the driver")
		}
		record(c, models.AuditActionUpdate, id, "order driver changed", body)
		return c.JSON(fiber.Map{"id": id, "driver_name": strings.TrimSpace(body.DriverName)})
	}
}

type fulfillRequest struct {
	CreateSale bool `json:"create_sale"`
}

// POST /api/orders/:id/fulfill
func FulfillOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body fulfillRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&body); err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
			}
		}
		id := strings.TrimSpace(c.Params("id"))
		res, err := svc.Fulfill(c.UserContext(), id, body.CreateSale)
		if err != nil {
			return fail("FulfillOrderHandler", err, "could not fulfill the order")
		}
		record(c, models.AuditActionUpdate, id, "order fulfilled", body)
		return c.JSON(fiber.Map{"id": id, "result": res})
	}
}
