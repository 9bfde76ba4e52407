package cart

import (
	"errors"

	"vienna-backend/internal/audit"
	"vienna-backend/internal/auth"
	"vienna-backend/internal/billing"
	"vienna-backend/internal/cache"
	"vienna-backend/internal/httpx"
	"vienna-backend/internal/models"
	"vienna-backend/internal/orders"

	"github.com/gofiber/fiber/v2"
)

func fail(funcName string, err error, msg string) error {
	if errors.Is(err, billing.ErrNotInCart) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if errors.Is(err, cache.ErrLockHeld) {
		return fiber.NewError(fiber.StatusConflict, "the cart is being changed by another request, try again")
	}
	return httpx.Fail("cart", funcName, err, msg)
}

func recordCheckout(c *fiber.Ctx, entity, id, desc string, after any) {
	actor := auth.ActorFrom(c)
	audit.Record(c.UserContext(), audit.LogOptions{
		UserID:      actor.UserID,
		UserName:    actor.Name,
		EntityType:  entity,
		EntityID:    id,
		Action:      models.AuditActionCreate,
		Description: desc,
		After:       after,
	})
}

// GET /api/cart
func GetCartHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := svc.Get(c.UserContext(), auth.ActorFrom(c).UserID)
		if err != nil {
			return fail("GetCartHandler", err, "could not load the cart")
		}
		return c.JSON(sum)
	}
}

type addRequest struct {
	ItemID string `json:"item_id" validate:"required"`
	Qty    int64  `json:"qty"`
}

// POST /api/cart/items
func AddItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body addRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}
		sum, err := svc.Add(c.UserContext(), auth.ActorFrom(c).UserID, body.ItemID, body.Qty)
		if err != nil {
			return fail("AddItemHandler", err, "could not add the item")
		}
		return c.JSON(sum)
	}
}

type qtyRequest struct {
	Qty int64 `json:"qty"`
}

// PUT /api/cart/items/:item_id
func SetQtyHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body qtyRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		sum, err := svc.SetQty(c.UserContext(), auth.ActorFrom(c).UserID, c.Params("item_id"), body.Qty)
		if err != nil {
			return fail("SetQtyHandler", err, "could not update the cart")
		}
		return c.JSON(sum)
	}
}

// DELETE /api/cart/items/:item_id
func RemoveItemHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := svc.Remove(c.UserContext(), auth.ActorFrom(c).UserID, c.Params("item_id"))
		if err != nil {
			return fail("RemoveItemHandler", err, "could not update the cart")
		}
		return c.JSON(sum)
	}
}

// DELETE /api/cart
func ClearCartHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.Clear(c.UserContext(), auth.ActorFrom(c).UserID); err != nil {
			return fail("ClearCartHandler", err, "could not clear the cart")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// POST /api/cart/checkout/sale
func CheckoutSaleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body SaleCheckout
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		res, err := svc.CheckoutSale(c.UserContext(), auth.ActorFrom(c).UserID, body)
		if err != nil {
			return fail("CheckoutSaleHandler", err, "could not record the sale")
		}
		id, _ := res.ID.(string)
		recordCheckout(c, models.EntitySale, id, "sale recorded from cart", res)
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// POST /api/cart/checkout/order
func CheckoutOrderHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body orders.CreateRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		id, err := svc.CheckoutOrder(c.UserContext(), auth.ActorFrom(c).UserID, body)
		if err != nil {
			return fail("CheckoutOrderHandler", err, "could not create the order")
		}
		recordCheckout(c, models.EntityOrder, id, "order created from cart", body)
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
	}
}
