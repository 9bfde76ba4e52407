package items

import (
	"context"
	"strings"

	"vienna-backend/internal/billing"
	"vienna-backend/internal/media"
	"vienna-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type ItemRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	QRCode      string   `json:"qrcode"`
	ImageURL    *string  `json:"image_url"`
	SellPrice   *float64 `json:"sell_price"`
}

// apply copies the request onto item. A nil ImageURL keeps the current
// image and thumbnail. An empty one clears both, and a data URL is uploaded
// to the store together with its thumbnail.
func (r ItemRequest) apply(ctx context.Context, images media.ImageStore, item *models.Item) error {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "item name is required")
	}
	item.Name = name
	item.Description = billing.NullIfBlank(r.Description)
	item.QRCode = billing.NullIfBlank(r.QRCode)

	if r.SellPrice != nil {
		item.SellPrice = decimal.NewNullDecimal(billing.Round2(billing.NormalizePrice(*r.SellPrice)))
	}

	if r.ImageURL == nil {
		return nil
	}
	img := strings.TrimSpace(*r.ImageURL)
	switch {
	case img == "":
		item.ImageURL = nil
		item.ThumbnailURL = nil
	case strings.HasPrefix(img, "data:"):
		if images == nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "image storage is not configured")
		}
		saved, err := media.SaveItemImage(ctx, images, img)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "image could not be saved: "+err.Error())
		}
		item.ImageURL = &saved.URL
		item.ThumbnailURL = billing.NullIfBlank(saved.ThumbnailURL)
	default:
		item.ImageURL = &img
		item.ThumbnailURL = nil
	}
	return nil
}
