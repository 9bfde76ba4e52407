package customers

import (
	"errors"

	"vienna-backend/internal/audit"
	"vienna-backend/internal/auth"
	"vienna-backend/internal/httpx"
	"vienna-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

func displayName(c *models.Customer) string {
	if c.Name != nil {
		return *c.Name
	}
	if c.Phone != nil {
		return *c.Phone
	}
	return c.ID
}

// GET /api/customers?q=&limit=200
func ListCustomersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.List(c.UserContext(), c.Query("q"), httpx.QueryLimit(c, "limit", 200, 1000))
		if err != nil {
			return httpx.Fail("customers", "ListCustomersHandler", err, "could not list customers")
		}
		return c.JSON(list)
	}
}

// GET /api/customers/by-phone?phone=
func CustomerByPhoneHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cst, err := svc.ByPhone(c.UserContext(), c.Query("phone"))
		if err != nil {
			return httpx.Fail("customers", "CustomerByPhoneHandler", err, "could not look up the phone")
		}
		if cst == nil {
			return c.JSON(nil)
		}
		return c.JSON(cst)
	}
}

// POST /api/customers
func UpsertCustomerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CustomerInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		res, err := svc.Upsert(c.UserContext(), body)
		if err != nil {
			return httpx.Fail("customers", "UpsertCustomerHandler", err, "could not save the customer")
		}

		actor := auth.ActorFrom(c)
		opts := audit.LogOptions{
			UserID:     actor.UserID,
			UserName:   actor.Name,
			EntityType: models.EntityCustomer,
			EntityID:   res.Customer.ID,
			After:      res.Customer,
		}
		status := fiber.StatusOK
		if res.Created {
			opts.Action = models.AuditActionCreate
			opts.Description = "customer created: " + displayName(res.Customer)
			status = fiber.StatusCreated
		} else {
			opts.Action = models.AuditActionUpdate
			opts.Description = "customer updated: " + displayName(res.Customer)
			opts.Before = res.Before
		}
		audit.Record(c.UserContext(), opts)
		return c.Status(status).JSON(res.Customer)
	}
}

// DELETE /api/customers/:id (admin)
func DeleteCustomerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		deleted, err := svc.Delete(c.UserContext(), c.Params("id"))
		if errors.Is(err, ErrHasOrders) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		if err != nil {
			return httpx.Fail("customers", "DeleteCustomerHandler", err, "could not delete the customer")
		}

		actor := auth.ActorFrom(c)
		audit.Record(c.UserContext(), audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  models.EntityCustomer,
			EntityID:    deleted.ID,
			Action:      models.AuditActionDelete,
			Description: "customer deleted: " + displayName(deleted),
			Before:      deleted,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}
