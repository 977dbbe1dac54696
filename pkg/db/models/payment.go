package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/pkg/enums"
)

// Payment mirrors the gateway-side charge for an order. At most one per order.
type Payment struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TenantID          uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	GatewayPaymentID  *string             `gorm:"column:gateway_payment_id;index"`
	PreferenceID      *string             `gorm:"column:preference_id"`
	Method            enums.PaymentMethod `gorm:"column:method;type:text;not null"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(10,2);not null"`
	Status            enums.PaymentStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	StatusDetail      *string             `gorm:"column:status_detail"`
	ExternalReference string              `gorm:"column:external_reference;not null"`
	QRCode            *string             `gorm:"column:qr_code"`
	QRCodeBase64      *string             `gorm:"column:qr_code_base64"`
	TicketURL         *string             `gorm:"column:ticket_url"`
	CheckoutURL       *string             `gorm:"column:checkout_url"`
	ProcessedAt       *time.Time          `gorm:"column:processed_at"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Payment) TableName() string { return "payments" }

func (p *Payment) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
