package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vienna-backend/internal/database"
	"vienna-backend/internal/logging"
	"vienna-backend/internal/models"

	"gorm.io/gorm"
)

var (
	ErrAlreadyUndone = errors.New("this change was already undone")
	ErrNotUndoable   = errors.New("this change cannot be undone")
)

type LogOptions struct {
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    string
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func jsonOrNull(v any) string {
	if v == nil {
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

func WriteLog(ctx context.Context, opts LogOptions) error {
	log := models.AuditLog{
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  jsonOrNull(opts.Before),
		AfterData:   jsonOrNull(opts.After),
	}

	if err := database.DB.WithContext(ctx).Create(&log).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

// Record writes an audit row and only logs a failure; the audited change has
// already happened.
func Record(ctx context.Context, opts LogOptions) {
	if database.DB == nil {
		return
	}
	if err := WriteLog(ctx, opts); err != nil {
		logging.LogError("audit", "Record", opts.EntityType+" "+opts.EntityID, nil, err)
	}
}

// undoer reverts one entity type. Only service-side tables are listed; bills,
// sales and orders are changed through database procedures that own their
// side effects.
type undoer struct {
	remove   func(tx *gorm.DB, id string) error
	restore  func(tx *gorm.DB, id, data string) error
	recreate func(tx *gorm.DB, data string) error
}

var undoers = map[string]undoer{
	models.EntityItem: {
		remove: func(tx *gorm.DB, id string) error {
			return tx.Delete(&models.Item{}, "id = ?", id).Error
		},
		restore: func(tx *gorm.DB, id, data string) error {
			var item models.Item
			if err := json.Unmarshal([]byte(data), &item); err != nil {
				return err
			}
			item.ID = id
			return database.ItemWriter(tx).Save(&item).Error
		},
		recreate: func(tx *gorm.DB, data string) error {
			var item models.Item
			if err := json.Unmarshal([]byte(data), &item); err != nil {
				return err
			}
			return database.ItemWriter(tx).Create(&item).Error
		},
	},
	models.EntityCustomer: {
		remove: func(tx *gorm.DB, id string) error {
			return tx.Delete(&models.Customer{}, "id = ?", id).Error
		},
		restore: func(tx *gorm.DB, id, data string) error {
			var cst models.Customer
			if err := json.Unmarshal([]byte(data), &cst); err != nil {
				return err
			}
			cst.ID = id
			return tx.Save(&cst).Error
		},
		recreate: func(tx *gorm.DB, data string) error {
			var cst models.Customer
			if err := json.Unmarshal([]byte(data), &cst); err != nil {
				return err
			}
			return tx.Create(&cst).Error
		},
	},
}

// Undoable reports whether an entry can be reverted.
func Undoable(log *models.AuditLog) error {
	if log.IsUndone {
		return ErrAlreadyUndone
	}
	if log.Action == models.AuditActionUndo {
		return ErrNotUndoable
	}
	if _, ok := undoers[log.EntityType]; !ok {
		return ErrNotUndoable
	}
	return nil
}

// UndoLog reverts an entry inside one transaction and writes the matching
// undo row. A deleted entity is recreated with its original id.
func UndoLog(ctx context.Context, logID uint, userID uint, userName string) error {
	return database.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var log models.AuditLog
		if err := tx.First(&log, "id = ?", logID).Error; err != nil {
			return fmt.Errorf("load audit log: %w", err)
		}
		if err := Undoable(&log); err != nil {
			return err
		}
		u := undoers[log.EntityType]

		var err error
		switch log.Action {
		case models.AuditActionCreate:
			err = u.remove(tx, log.EntityID)
		case models.AuditActionUpdate:
			err = u.restore(tx, log.EntityID, log.BeforeData)
		case models.AuditActionDelete:
			// delete rows keep the removed entity in BeforeData
			err = u.recreate(tx, log.BeforeData)
		default:
			return ErrNotUndoable
		}
		if err != nil {
			return fmt.Errorf("undo %s %s: %w", log.Action, log.EntityType, err)
		}

		now := time.Now()
		log.IsUndone = true
		log.UndoneBy = &userID
		log.UndoneAt = &now
		if err := tx.Save(&log).Error; err != nil {
			return fmt.Errorf("mark audit log undone: %w", err)
		}

		undo := models.AuditLog{
			UserID:      userID,
			UserName:    userName,
			EntityType:  log.EntityType,
			EntityID:    log.EntityID,
			Action:      models.AuditActionUndo,
			Description: "undone: " + log.Description,
			BeforeData:  log.AfterData,
			AfterData:   log.BeforeData,
			Undone:      true,
		}
		if err := tx.Create(&undo).Error; err != nil {
			return fmt.Errorf("write undo log: %w", err)
		}
		return nil
	})
}
