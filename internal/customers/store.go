package customers

import (
	"context"
	"errors"
	"strings"

	"vienna-backend/internal/database"
	"vienna-backend/internal/models"

	"gorm.io/gorm"
)

type Store interface {
	List(ctx context.Context, q string, limit int) ([]models.Customer, error)
	Get(ctx context.Context, id string) (*models.Customer, error)
	// FindByPhone returns nil when no customer has any of the phones.
	FindByPhone(ctx context.Context, phones ...string) (*models.Customer, error)
	Insert(ctx context.Context, c *models.Customer) error
	Update(ctx context.Context, c *models.Customer) error
	Delete(ctx context.Context, id string) error
}

type GormStore struct{}

func (GormStore) db(ctx context.Context) *gorm.DB { return database.DB.WithContext(ctx) }

func (s GormStore) List(ctx context.Context, q string, limit int) ([]models.Customer, error) {
	dbq := s.db(ctx).Model(&models.Customer{})
	if strings.TrimSpace(q) != "" {
		p := database.LikePattern(q)
		dbq = dbq.Where("name ILIKE ? OR phone ILIKE ? OR phone_extra ILIKE ? OR address ILIKE ?", p, p, p, p)
	}
	var out []models.Customer
	err := dbq.Order("updated_at DESC").Order("created_at DESC").Limit(limit).Find(&out).Error
	return out, err
}

func (s GormStore) Get(ctx context.Context, id string) (*models.Customer, error) {
	var c models.Customer
	if err := s.db(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s GormStore) FindByPhone(ctx context.Context, phones ...string) (*models.Customer, error) {
	var c models.Customer
	err := s.db(ctx).Where("phone IN ?", phones).Order("updated_at DESC").Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s GormStore) Insert(ctx context.Context, c *models.Customer) error {
	return s.db(ctx).Create(c).Error
}

func (s GormStore) Update(ctx context.Context, c *models.Customer) error {
	return s.db(ctx).Model(c).Select("name", "phone", "phone_extra", "address", "notes", "updated_at").Updates(c).Error
}

func (s GormStore) Delete(ctx context.Context, id string) error {
	res := s.db(ctx).Delete(&models.Customer{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
