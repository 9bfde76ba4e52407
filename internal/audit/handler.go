package audit

import (
	"errors"
	"strconv"

	"vienna-backend/internal/auth"
	"vienna-backend/internal/database"
	"vienna-backend/internal/httpx"
	"vienna-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    string             `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	IsUndone    bool               `json:"is_undone"`
	Undoable    bool               `json:"undoable"`
	UndoneBy    *uint              `json:"undone_by"`
	UndoneAt    *string            `json:"undone_at"`
}

const timeLayout = "2006-01-02 15:04:05"

func toResponse(log *models.AuditLog) AuditLogResponse {
	var undoneAt *string
	if log.UndoneAt != nil {
		s := log.UndoneAt.Format(timeLayout)
		undoneAt = &s
	}
	return AuditLogResponse{
		ID:          log.ID,
		CreatedAt:   log.CreatedAt.Format(timeLayout),
		UserID:      log.UserID,
		UserName:    log.UserName,
		EntityType:  log.EntityType,
		EntityID:    log.EntityID,
		Action:      log.Action,
		Description: log.Description,
		IsUndone:    log.IsUndone,
		Undoable:    Undoable(log) == nil,
		UndoneBy:    log.UndoneBy,
		UndoneAt:    undoneAt,
	}
}

// GET /api/audit-logs?entity_type=item&entity_id=...&user_id=3&limit=100
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.WithContext(c.UserContext()).Model(&models.AuditLog{})

		if v := c.Query("entity_type"); v != "" {
			dbq = dbq.Where("entity_type = ?", v)
		}
		if v := c.Query("entity_id"); v != "" {
			dbq = dbq.Where("entity_id = ?", v)
		}
		if uid, err := strconv.ParseUint(c.Query("user_id"), 10, 64); err == nil && uid > 0 {
			dbq = dbq.Where("user_id = ?", uid)
		}

		var logs []models.AuditLog
		limit := httpx.QueryLimit(c, "limit", 100, 1000)
		if err := dbq.Order("created_at DESC").Limit(limit).Find(&logs).Error; err != nil {
			return httpx.Fail("audit", "ListAuditLogsHandler", err, "could not list audit logs")
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for i := range logs {
			resp = append(resp, toResponse(&logs[i]))
		}
		return c.JSON(resp)
	}
}

// POST /api/audit-logs/:id/undo (admin)
func UndoAuditLogHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		logID, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil || logID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid log id")
		}

		actor := auth.ActorFrom(c)
		err = UndoLog(c.UserContext(), uint(logID), actor.UserID, actor.Name)
		switch {
		case err == nil:
			return c.JSON(fiber.Map{"message": "change undone"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fiber.NewError(fiber.StatusNotFound, "audit log not found")
		case errors.Is(err, ErrAlreadyUndone), errors.Is(err, ErrNotUndoable):
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return httpx.Fail("audit", "UndoAuditLogHandler", err, "could not undo the change")
	}
}
