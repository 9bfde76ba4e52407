package database

import (
	"fmt"
	"strings"

	"vienna-backend/internal/config"
	"vienna-backend/internal/logging"
	"vienna-backend/internal/models"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) error {
	log := logging.GetLogger()

	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	if err := db.Use(otelgorm.NewPlugin()); err != nil {
		return fmt.Errorf("install tracing plugin: %w", err)
	}

	// users and audit_logs belong to this service.
	if err := db.AutoMigrate(&models.User{}, &models.AuditLog{}); err != nil {
		return fmt.Errorf("migrate service tables: %w", err)
	}

	if cfg.MigrateRetailSchema {
		log.Warn("MIGRATE_RETAIL_SCHEMA is on, creating retail tables locally")
		if err := MigrateRetail(db); err != nil {
			return err
		}
	}

	DB = db
	log.Info("database connected, migrations done")
	return nil
}

// MigrateRetail creates the hosted retail tables for local development. The
// remote procedures are not created here.
func MigrateRetail(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.Item{},
		&models.InventoryRow{},
		&models.Bill{},
		&models.BillItem{},
		&models.Customer{},
		&models.Sale{},
		&models.SaleItem{},
		&models.Order{},
		&models.OrderItem{},
	)
	if err != nil {
		return fmt.Errorf("migrate retail tables: %w", err)
	}
	return nil
}

// ItemWriter returns tx ready to insert or save items. Hosted schemas that
// predate thumbnails have no thumbnail_url column, so it is left out there.
func ItemWriter(tx *gorm.DB) *gorm.DB {
	if !tx.Migrator().HasColumn(&models.Item{}, "thumbnail_url") {
		return tx.Omit("thumbnail_url")
	}
	return tx
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// LikePattern builds an ILIKE pattern matching q anywhere, with LIKE
// wildcards in q escaped.
func LikePattern(q string) string {
	return "%" + likeEscaper.Replace(strings.TrimSpace(q)) + "%"
}
