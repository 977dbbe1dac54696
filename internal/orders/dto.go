package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
	"github.com/angelmondragon/cardapy-backend/pkg/types"
)

type ItemDTO struct {
	MenuItemID      uuid.UUID `json:"menu_item_id"`
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	Price           string    `json:"price"`
	Quantity        int       `json:"quantity"`
	Subtotal        string    `json:"subtotal"`
	PreparationTime int       `json:"preparation_time"`
}

type PaymentDTO struct {
	Method       enums.PaymentMethod `json:"method"`
	Status       enums.PaymentStatus `json:"status"`
	StatusDetail *string             `json:"status_detail,omitempty"`
	Amount       string              `json:"amount"`
	QRCode       *string             `json:"qr_code,omitempty"`
	TicketURL    *string             `json:"ticket_url,omitempty"`
	CheckoutURL  *string             `json:"checkout_url,omitempty"`
}

// OrderDTO is the customer-facing order view used by detail and tracking pages.
type OrderDTO struct {
	ID                  uuid.UUID           `json:"id"`
	Number              string              `json:"number"`
	Status              enums.OrderStatus   `json:"status"`
	StatusLabel         string              `json:"status_label"`
	PaymentStatus       enums.PaymentStatus `json:"payment_status"`
	PaymentMethod       enums.PaymentMethod `json:"payment_method"`
	CanBeCancelled      bool                `json:"can_be_cancelled"`
	CustomerName        string              `json:"customer_name"`
	CustomerPhone       string              `json:"customer_phone"`
	DeliveryMode        enums.DeliveryMode  `json:"delivery_mode"`
	FullDeliveryAddress string              `json:"full_delivery_address"`
	Notes               *string             `json:"notes,omitempty"`
	Items               []ItemDTO           `json:"items"`
	ItemCount           int                 `json:"item_count"`
	Subtotal            string              `json:"subtotal"`
	DeliveryFee         string              `json:"delivery_fee"`
	Discount            string              `json:"discount"`
	Total               string              `json:"total"`
	FormattedTotal      string              `json:"formatted_total"`
	CancellationReason  *string             `json:"cancellation_reason,omitempty"`
	EstimatedDeliveryAt time.Time           `json:"estimated_delivery_at"`
	ConfirmedAt         *time.Time          `json:"confirmed_at,omitempty"`
	PreparedAt          *time.Time          `json:"prepared_at,omitempty"`
	DeliveredAt         *time.Time          `json:"delivered_at,omitempty"`
	CancelledAt         *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	Payment             *PaymentDTO         `json:"payment,omitempty"`
}

// FromModel maps an order with its items and payment.
func FromModel(o models.Order) OrderDTO {
	dto := OrderDTO{
		ID:                  o.ID,
		Number:              o.Number(),
		Status:              o.Status,
		StatusLabel:         o.Status.Label(),
		PaymentStatus:       o.PaymentStatus,
		PaymentMethod:       o.PaymentMethod,
		CanBeCancelled:      o.Status.CanBeCancelled(),
		CustomerName:        o.CustomerName,
		CustomerPhone:       o.CustomerPhone,
		DeliveryMode:        o.DeliveryMode,
		FullDeliveryAddress: o.FullDeliveryAddress(),
		Notes:               o.Notes,
		Items:               make([]ItemDTO, 0, len(o.Items)),
		ItemCount:           o.ItemCount(),
		Subtotal:            o.Subtotal.StringFixed(2),
		DeliveryFee:         o.DeliveryFee.StringFixed(2),
		Discount:            o.Discount.StringFixed(2),
		Total:               o.Total.StringFixed(2),
		FormattedTotal:      types.FormatBRL(o.Total),
		CancellationReason:  o.CancellationReason,
		EstimatedDeliveryAt: o.EstimatedDeliveryAt,
		ConfirmedAt:         o.ConfirmedAt,
		PreparedAt:          o.PreparedAt,
		DeliveredAt:         o.DeliveredAt,
		CancelledAt:         o.CancelledAt,
		CreatedAt:           o.CreatedAt,
	}
	for _, item := range o.Items {
		dto.Items = append(dto.Items, ItemDTO{
			MenuItemID:      item.MenuItemID,
			Name:            item.Name,
			Description:     item.Description,
			Price:           item.Price.StringFixed(2),
			Quantity:        item.Quantity,
			Subtotal:        item.Subtotal().StringFixed(2),
			PreparationTime: item.PreparationTime,
		})
	}
	if p := o.Payment; p != nil {
		dto.Payment = &PaymentDTO{
			Method:       p.Method,
			Status:       p.Status,
			StatusDetail: p.StatusDetail,
			Amount:       p.Amount.StringFixed(2),
			QRCode:       p.QRCode,
			TicketURL:    p.TicketURL,
			CheckoutURL:  p.CheckoutURL,
		}
	}
	return dto
}
