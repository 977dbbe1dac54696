package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const maxRating = 5

type Review struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	TenantID     uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null;index"`
	OrderID      uuid.UUID  `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	MenuItemID   *uuid.UUID `gorm:"column:menu_item_id;type:uuid"`
	CustomerName string     `gorm:"column:customer_name;not null"`
	Rating       int        `gorm:"column:rating;not null"`
	Comment      *string    `gorm:"column:comment"`
	IsApproved   bool       `gorm:"column:is_approved;not null;default:false"`
	ApprovedAt   *time.Time `gorm:"column:approved_at"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (Review) TableName() string { return "reviews" }

func (r *Review) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Stars renders the rating as filled and empty stars.
func (r Review) Stars() string {
	filled := r.Rating
	if filled < 0 {
		filled = 0
	}
	if filled > maxRating {
		filled = maxRating
	}
	return strings.Repeat("★", filled) + strings.Repeat("☆", maxRating-filled)
}
