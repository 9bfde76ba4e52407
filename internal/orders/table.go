package orders

import (
	"context"

	"vienna-backend/internal/database"
	"vienna-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Table is direct table access for orders. Methods that touch the v2
// customer and driver columns fail with an undefined column error on
// databases that were never migrated.
type Table interface {
	Insert(ctx context.Context, o *models.Order) error
	InsertLegacy(ctx context.Context, o *models.Order) error
	UpsertLines(ctx context.Context, lines []models.OrderItem) error
	InsertLines(ctx context.Context, lines []models.OrderItem) error
	List(ctx context.Context, limit int) ([]models.Order, error)
	ListLegacy(ctx context.Context, limit int) ([]models.Order, error)
	ListWithDriver(ctx context.Context) ([]models.Order, error)
	Get(ctx context.Context, id string) (*models.Order, error)
	Update(ctx context.Context, id string, cols map[string]any) error
}

var baseColumns = []string{"id", "customer_id", "date", "status", "notes", "created_at"}

type GormOrders struct{}

func (GormOrders) db(ctx context.Context) *gorm.DB { return database.DB.WithContext(ctx) }

func withLines(db *gorm.DB) *gorm.DB {
	return db.Preload("Items").
		Preload("Items.Item", func(db *gorm.DB) *gorm.DB { return db.Select("id", "name", "sell_price") })
}

func (g GormOrders) Insert(ctx context.Context, o *models.Order) error {
	return g.db(ctx).Omit(clause.Associations).Create(o).Error
}

func (g GormOrders) InsertLegacy(ctx context.Context, o *models.Order) error {
	return g.db(ctx).Select(baseColumns).Omit(clause.Associations).Create(o).Error
}

func (g GormOrders) UpsertLines(ctx context.Context, lines []models.OrderItem) error {
	return g.db(ctx).Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "order_id"}, {Name: "item_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"qty", "desired_price"}),
	}).Create(&lines).Error
}

func (g GormOrders) InsertLines(ctx context.Context, lines []models.OrderItem) error {
	return g.db(ctx).Omit(clause.Associations).Create(&lines).Error
}

func (g GormOrders) List(ctx context.Context, limit int) ([]models.Order, error) {
	var out []models.Order
	err := withLines(g.db(ctx)).Order("date DESC").Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (g GormOrders) ListLegacy(ctx context.Context, limit int) ([]models.Order, error) {
	var out []models.Order
	err := withLines(g.db(ctx)).Select(baseColumns).Order("date DESC").Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (g GormOrders) ListWithDriver(ctx context.Context) ([]models.Order, error) {
	var out []models.Order
	err := withLines(g.db(ctx)).
		Where("driver_name IS NOT NULL AND driver_name <> ''").
		Order("date DESC").
		Find(&out).Error
	return out, err
}

func (g GormOrders) Get(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	if err := g.db(ctx).Select(baseColumns).First(&o, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &o, nil
}

func (g GormOrders) Update(ctx context.Context, id string, cols map[string]any) error {
	res := g.db(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
