package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/pkg/types"
)

// Tenant is one restaurant account. Lives in the platform database.
type Tenant struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Subdomain           string               `gorm:"column:subdomain;not null;uniqueIndex"`
	Name                string               `gorm:"column:name;not null"`
	Description         *string              `gorm:"column:description"`
	Phone               *string              `gorm:"column:phone"`
	Email               *string              `gorm:"column:email"`
	Address             *string              `gorm:"column:address"`
	City                *string              `gorm:"column:city"`
	LogoPath            *string              `gorm:"column:logo_path"`
	BannerPath          *string              `gorm:"column:banner_path"`
	IsActive            bool                 `gorm:"column:is_active;not null"`
	ShardID             int                  `gorm:"column:shard_id;not null"`
	Timezone            string               `gorm:"column:timezone;not null;default:'America/Sao_Paulo'"`
	GatewayPublicKey    *string              `gorm:"column:gateway_public_key"`
	GatewayAccessToken  *string              `gorm:"column:gateway_access_token"`
	OperatingHours      types.OperatingHours `gorm:"column:operating_hours;type:jsonb;serializer:json"`
	DeliveryFee         decimal.Decimal      `gorm:"column:delivery_fee;type:numeric(10,2);not null;default:0"`
	MinimumOrder        decimal.Decimal      `gorm:"column:minimum_order;type:numeric(10,2);not null;default:0"`
	DeliveryTimeMinutes int                  `gorm:"column:delivery_time_minutes;not null;default:45"`
	PaymentMethods      types.StringSet      `gorm:"column:payment_methods;type:jsonb;serializer:json"`
	StaffTokenHash      *string              `gorm:"column:staff_token_hash"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (Tenant) TableName() string { return "tenants" }

func (t *Tenant) BeforeCreate(*gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// HasGatewayCredentials reports whether both gateway keys are configured.
func (t *Tenant) HasGatewayCredentials() bool {
	return t != nil &&
		t.GatewayPublicKey != nil && strings.TrimSpace(*t.GatewayPublicKey) != "" &&
		t.GatewayAccessToken != nil && strings.TrimSpace(*t.GatewayAccessToken) != ""
}

// Location resolves the tenant's timezone, falling back to UTC.
func (t *Tenant) Location() *time.Location {
	if t == nil || t.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(t.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsOpen evaluates the operating hours at now in the tenant's zone.
func (t *Tenant) IsOpen(now time.Time) bool {
	if t == nil {
		return false
	}
	return t.OperatingHours.IsOpenAt(now.In(t.Location()))
}

// AcceptsPaymentMethod checks the tenant's allow list. An empty list accepts all.
func (t *Tenant) AcceptsPaymentMethod(method string) bool {
	if len(t.PaymentMethods) == 0 {
		return true
	}
	return t.PaymentMethods.Contains(method)
}
