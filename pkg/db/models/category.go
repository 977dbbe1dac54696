package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Category groups menu items. Soft-deleted rows are hidden from every query.
type Category struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	TenantID    uuid.UUID      `gorm:"column:tenant_id;type:uuid;not null;index"`
	Name        string         `gorm:"column:name;not null"`
	Description *string        `gorm:"column:description"`
	ImagePath   *string        `gorm:"column:image_path"`
	SortOrder   int            `gorm:"column:sort_order;not null;default:0"`
	IsActive    bool           `gorm:"column:is_active;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt   gorm.DeletedAt `gorm:"column:deleted_at;index"`
}

func (Category) TableName() string { return "categories" }

func (c *Category) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
