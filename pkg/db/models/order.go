package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/pkg/enums"
)

const pickupAddressLabel = "Retirada no local"

type Order struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	TenantID             uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	SessionID            string              `gorm:"column:session_id;not null;default:''"`
	CustomerName         string              `gorm:"column:customer_name;not null"`
	CustomerPhone        string              `gorm:"column:customer_phone;not null"`
	CustomerEmail        *string             `gorm:"column:customer_email"`
	CustomerDocument     *string             `gorm:"column:customer_document"`
	DeliveryMode         enums.DeliveryMode  `gorm:"column:delivery_mode;type:text;not null"`
	DeliveryAddress      *string             `gorm:"column:delivery_address"`
	DeliveryNumber       *string             `gorm:"column:delivery_number"`
	DeliveryComplement   *string             `gorm:"column:delivery_complement"`
	DeliveryNeighborhood *string             `gorm:"column:delivery_neighborhood"`
	DeliveryCity         *string             `gorm:"column:delivery_city"`
	DeliveryZip          *string             `gorm:"column:delivery_zip"`
	Subtotal             decimal.Decimal     `gorm:"column:subtotal;type:numeric(10,2);not null"`
	DeliveryFee          decimal.Decimal     `gorm:"column:delivery_fee;type:numeric(10,2);not null;default:0"`
	Discount             decimal.Decimal     `gorm:"column:discount;type:numeric(10,2);not null;default:0"`
	Total                decimal.Decimal     `gorm:"column:total;type:numeric(10,2);not null"`
	Status               enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus        enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	PaymentMethod        enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	Notes                *string             `gorm:"column:notes"`
	CancellationReason   *string             `gorm:"column:cancellation_reason"`
	EstimatedDeliveryAt  time.Time           `gorm:"column:estimated_delivery_at;not null"`
	ConfirmedAt          *time.Time          `gorm:"column:confirmed_at"`
	PreparedAt           *time.Time          `gorm:"column:prepared_at"`
	DeliveredAt          *time.Time          `gorm:"column:delivered_at"`
	CancelledAt          *time.Time          `gorm:"column:cancelled_at"`
	Items                []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment              *Payment            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// Number is the short display reference printed on receipts.
func (o Order) Number() string {
	hex := strings.ReplaceAll(o.ID.String(), "-", "")
	return fmt.Sprintf("PED-%s", strings.ToUpper(hex[:6]))
}

// ComputeTotal applies total = subtotal + delivery_fee - discount.
func ComputeTotal(subtotal, deliveryFee, discount decimal.Decimal) decimal.Decimal {
	return subtotal.Add(deliveryFee).Sub(discount)
}

// TotalsConsistent verifies the stored breakdown.
func (o Order) TotalsConsistent() bool {
	return o.Total.Equal(ComputeTotal(o.Subtotal, o.DeliveryFee, o.Discount))
}

// ItemCount sums the quantities of every line.
func (o Order) ItemCount() int {
	count := 0
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// FullDeliveryAddress renders the address on a single line.
func (o Order) FullDeliveryAddress() string {
	if o.DeliveryMode == enums.DeliveryModePickup {
		return pickupAddressLabel
	}
	parts := []string{}
	street := deref(o.DeliveryAddress)
	if n := deref(o.DeliveryNumber); n != "" {
		street = strings.TrimSpace(street + ", " + n)
	}
	for _, part := range []string{street, deref(o.DeliveryComplement), deref(o.DeliveryNeighborhood), deref(o.DeliveryCity), deref(o.DeliveryZip)} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " - ")
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
