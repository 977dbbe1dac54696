package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/pkg/types"
)

// DefaultPreparationMinutes applies when an item has no preparation time.
const DefaultPreparationMinutes = 10

var hundred = decimal.NewFromInt(100)

type MenuItem struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TenantID         uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	CategoryID       uuid.UUID           `gorm:"column:category_id;type:uuid;not null;index"`
	Category         *Category           `gorm:"foreignKey:CategoryID"`
	Name             string              `gorm:"column:name;not null"`
	Description      *string             `gorm:"column:description"`
	Price            decimal.Decimal     `gorm:"column:price;type:numeric(10,2);not null"`
	PromotionalPrice decimal.NullDecimal `gorm:"column:promotional_price;type:numeric(10,2)"`
	ImagePath        *string             `gorm:"column:image_path"`
	Ingredients      types.StringSet     `gorm:"column:ingredients;type:jsonb;serializer:json"`
	Allergens        types.StringSet     `gorm:"column:allergens;type:jsonb;serializer:json"`
	Tags             types.StringSet     `gorm:"column:tags;type:jsonb;serializer:json"`
	NutritionalInfo  map[string]string   `gorm:"column:nutritional_info;type:jsonb;serializer:json"`
	PreparationTime  *int                `gorm:"column:preparation_time"`
	Calories         *int                `gorm:"column:calories"`
	Serves           *int                `gorm:"column:serves"`
	IsAvailable      bool                `gorm:"column:is_available;not null"`
	IsFeatured       bool                `gorm:"column:is_featured;not null;default:false"`
	SortOrder        int                 `gorm:"column:sort_order;not null;default:0"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt        gorm.DeletedAt      `gorm:"column:deleted_at;index"`
}

func (MenuItem) TableName() string { return "menu_items" }

func (m *MenuItem) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// IsOnSale holds iff a promotional price is set and strictly below the price.
func (m MenuItem) IsOnSale() bool {
	return m.PromotionalPrice.Valid && m.PromotionalPrice.Decimal.LessThan(m.Price)
}

// EffectivePrice is what the customer pays per unit.
func (m MenuItem) EffectivePrice() decimal.Decimal {
	if m.IsOnSale() {
		return m.PromotionalPrice.Decimal
	}
	return m.Price
}

// DiscountPercentage is derived from the two prices and rounded to a whole percent.
func (m MenuItem) DiscountPercentage() int {
	if !m.IsOnSale() || !m.Price.IsPositive() {
		return 0
	}
	off := m.Price.Sub(m.PromotionalPrice.Decimal).Div(m.Price).Mul(hundred)
	return int(off.Round(0).IntPart())
}

// PreparationMinutes falls back to the default when unset or non-positive.
func (m MenuItem) PreparationMinutes() int {
	if m.PreparationTime == nil || *m.PreparationTime <= 0 {
		return DefaultPreparationMinutes
	}
	return *m.PreparationTime
}
