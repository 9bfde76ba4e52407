package items

import (
	"encoding/json"
	"strings"

	"vienna-backend/internal/audit"
	"vienna-backend/internal/auth"
	"vienna-backend/internal/database"
	"vienna-backend/internal/httpx"
	"vienna-backend/internal/media"
	"vienna-backend/internal/models"
	"vienna-backend/internal/rpc"

	"github.com/gofiber/fiber/v2"
)

// GET /api/items?q=&limit=500
func ListItemsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.Item{})
		if q := strings.TrimSpace(c.Query("q")); q != "" {
			p := database.LikePattern(q)
			dbq = dbq.Where("name ILIKE ? OR description ILIKE ? OR qrcode ILIKE ?", p, p, p)
		}

		var list []models.Item
		limit := httpx.QueryLimit(c, "limit", 500, 2000)
		if err := dbq.Order("created_at DESC").Limit(limit).Find(&list).Error; err != nil {
			return httpx.Fail("items", "ListItemsHandler", err, "could not list items")
		}
		return c.JSON(list)
	}
}

// GET /api/items/recent?limit=10
func RecentItemsHandler(caller *rpc.Caller) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := httpx.QueryLimit(c, "limit", 10, 500)
		var rows []json.RawMessage
		err := caller.Rows(c.UserContext(), "last_items", &rows,
			rpc.Variant{{Name: "limit_rows", Value: limit}},
		)
		if err != nil {
			return httpx.Fail("items", "RecentItemsHandler", err, "could not load recent items")
		}
		return c.JSON(rows)
	}
}

func GetItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var item models.Item
		if err := database.DB.WithContext(c.UserContext()).First(&item, "id = ?", c.Params("id")).Error; err != nil {
			return httpx.Fail("items", "GetItemHandler", err, "could not load the item")
		}
		return c.JSON(item)
	}
}

// POST /api/items
func CreateItemHandler(images media.ImageStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}

		var item models.Item
		if err := body.apply(c.UserContext(), images, &item); err != nil {
			return err
		}
		if err := database.ItemWriter(database.DB.WithContext(c.UserContext())).Create(&item).Error; err != nil {
			return httpx.Fail("items", "CreateItemHandler", err, "could not create the item")
		}

		actor := auth.ActorFrom(c)
		audit.Record(c.UserContext(), audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  models.EntityItem,
			EntityID:    item.ID,
			Action:      models.AuditActionCreate,
			Description: "item created: " + item.Name,
			After:       item,
		})
		return c.Status(fiber.StatusCreated).JSON(item)
	}
}

// PUT /api/items/:id
func UpdateItemHandler(images media.ImageStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		var item models.Item
		if err := database.DB.WithContext(ctx).First(&item, "id = ?", c.Params("id")).Error; err != nil {
			return httpx.Fail("items", "UpdateItemHandler", err, "could not load the item")
		}
		before := item

		var body ItemRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := body.apply(ctx, images, &item); err != nil {
			return err
		}
		if err := database.ItemWriter(database.DB.WithContext(ctx)).Save(&item).Error; err != nil {
			return httpx.Fail("items", "UpdateItemHandler", err, "could not update the item")
		}

		actor := auth.ActorFrom(c)
		audit.Record(ctx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  models.EntityItem,
			EntityID:    item.ID,
			Action:      models.AuditActionUpdate,
			Description: "item updated: " + item.Name,
			Before:      before,
			After:       item,
		})
		return c.JSON(item)
	}
}

// DELETE /api/items/:id (admin)
func DeleteItemHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		var item models.Item
		if err := database.DB.WithContext(ctx).First(&item, "id = ?", c.Params("id")).Error; err != nil {
			return httpx.Fail("items", "DeleteItemHandler", err, "could not load the item")
		}
		if err := database.DB.WithContext(ctx).Delete(&models.Item{}, "id = ?", item.ID).Error; err != nil {
			if rpc.IsForeignKeyViolation(err) {
				return fiber.NewError(fiber.StatusConflict, "item is used by bills, sales or orders")
			}
			return httpx.Fail("items", "DeleteItemHandler", err, "could not delete the item")
		}

		actor := auth.ActorFrom(c)
		audit.Record(ctx, audit.LogOptions{
			UserID:      actor.UserID,
			UserName:    actor.Name,
			EntityType:  models.EntityItem,
			EntityID:    item.ID,
			Action:      models.AuditActionDelete,
			Description: "item deleted: " + item.Name,
			Before:      item,
		})
		return c.SendStatus(fiber.StatusNoContent)
	}
}
