package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/cardapy-backend/internal/cart"
	"github.com/angelmondragon/cardapy-backend/internal/orders"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/types"
)

type cartService interface {
	Get(ctx context.Context, tc *tenant.Context, sessionID string) (*cart.View, error)
	ReadyForCheckout(ctx context.Context, tc *tenant.Context, sessionID string) (*cart.Cart, error)
	Clear(ctx context.Context, tc *tenant.Context, sessionID string) (*cart.View, error)
}

type orderCreator interface {
	Create(ctx context.Context, tc *tenant.Context, in orders.CreateInput) (*models.Order, error)
}

type paymentStarter interface {
	CreatePreference(ctx context.Context, tc *tenant.Context, order *models.Order) (*models.Payment, error)
	CreateDirectPayment(ctx context.Context, tc *tenant.Context, order *models.Order) (*models.Payment, error)
}

// Summary backs the checkout form.
type Summary struct {
	Cart                 *cart.View            `json:"cart"`
	DeliveryFee          string                `json:"delivery_fee"`
	FormattedDeliveryFee string                `json:"formatted_delivery_fee"`
	PaymentMethods       []enums.PaymentMethod `json:"payment_methods"`
	IsOpen               bool                  `json:"is_open"`
}

// Result is a placed order and, for online methods, its payment.
type Result struct {
	Order       *models.Order
	Payment     *models.Payment
	RedirectURL string
}

// Service turns a session cart into an order and starts its payment.
type Service interface {
	Summary(ctx context.Context, tc *tenant.Context, sessionID string) (*Summary, error)
	Submit(ctx context.Context, tc *tenant.Context, sessionID string, in orders.CreateInput) (*Result, error)
}

type ServiceParams struct {
	Cart     cartService
	Orders   orderCreator
	Payments paymentStarter
	Logger   *logger.Logger
	Now      func() time.Time
}

type service struct {
	cart     cartService
	orders   orderCreator
	payments paymentStarter
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if p.Payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &service{cart: p.Cart, orders: p.Orders, payments: p.Payments, logg: p.Logger, now: now}, nil
}

// AvailableMethods lists the methods a tenant accepts and can actually settle.
func AvailableMethods(t models.Tenant) []enums.PaymentMethod {
	out := []enums.PaymentMethod{}
	for _, m := range []enums.PaymentMethod{enums.PaymentMethodPix, enums.PaymentMethodCheckout, enums.PaymentMethodCash} {
		if !t.AcceptsPaymentMethod(string(m)) {
			continue
		}
		if m.UsesGateway() && !t.HasGatewayCredentials() {
			continue
		}
		out = append(out, m)
	}
	return out
}

func (s *service) Summary(ctx context.Context, tc *tenant.Context, sessionID string) (*Summary, error) {
	view, err := s.cart.Get(ctx, tc, sessionID)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Cart:                 view,
		DeliveryFee:          tc.Tenant.DeliveryFee.StringFixed(2),
		FormattedDeliveryFee: types.FormatBRL(tc.Tenant.DeliveryFee),
		PaymentMethods:       AvailableMethods(tc.Tenant),
		IsOpen:               tc.Tenant.IsOpen(s.now()),
	}, nil
}

// Submit places the order and starts its payment. The cart is cleared only once
// both succeeded; a gateway failure leaves the pending order and the cart in place.
func (s *service) Submit(ctx context.Context, tc *tenant.Context, sessionID string, in orders.CreateInput) (*Result, error) {
	c, err := s.cart.ReadyForCheckout(ctx, tc, sessionID)
	if err != nil {
		return nil, err
	}

	in.SessionID = sessionID
	in.Lines = make([]orders.LineInput, 0, len(c.Lines))
	for _, line := range c.Lines {
		in.Lines = append(in.Lines, orders.LineInput{MenuItemID: line.ItemID, Quantity: line.Quantity})
	}

	order, err := s.orders.Create(ctx, tc, in)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	res := &Result{Order: order, RedirectURL: "/pedido/" + order.ID.String()}

	switch order.PaymentMethod {
	case enums.PaymentMethodPix:
		res.Payment, err = s.payments.CreateDirectPayment(ctx, tc, order)
	case enums.PaymentMethodCheckout:
		res.Payment, err = s.payments.CreatePreference(ctx, tc, order)
		if err == nil && res.Payment.CheckoutURL != nil {
			res.RedirectURL = *res.Payment.CheckoutURL
		}
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.cart.Clear(ctx, tc, sessionID); err != nil {
		s.logg.WarnErr(ctx, "clear cart after checkout", err)
	}
	s.logg.Info(ctx, "order placed")
	return res, nil
}
