package inventory

import (
	"strings"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/database"
	"vienna-backend/internal/httpx"
	"vienna-backend/internal/logging"

	"github.com/gofiber/fiber/v2"
)

type SetQuantityRequest struct {
	Quantity float64 `json:"quantity"`
}

// GET /api/inventory?q=
func ListInventoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := List(c.UserContext(), database.DB, c.Query("q"))
		if err != nil {
			return httpx.Fail("stock", "ListInventoryHandler", err, "could not load inventory")
		}
		return c.JSON(rows)
	}
}

// GET /api/inventory/top?limit=8
func TopInventoryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rows, err := Top(c.UserContext(), database.DB, httpx.QueryLimit(c, "limit", 8, 100))
		if err != nil {
			return httpx.Fail("stock", "TopInventoryHandler", err, "could not load inventory")
		}
		return c.JSON(rows)
	}
}

// PUT /api/inventory/:item_id, a manual stock count correction.
func SetQuantityHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		itemID := strings.TrimSpace(c.Params("item_id"))
		if itemID == "" {
			return fiber.NewError(fiber.StatusBadRequest, "item id is required")
		}
		var body SetQuantityRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		qty := ClampQuantity(body.Quantity)
		if err := SetQuantity(c.UserContext(), database.DB, itemID, qty); err != nil {
			return httpx.Fail("stock", "SetQuantityHandler", err, "could not save the quantity")
		}
		logging.GetLogger().WithField("item_id", billing.ShortID(itemID)).Infof("stock count set to %d", qty)
		return c.JSON(fiber.Map{"item_id": itemID, "quantity": qty})
	}
}
