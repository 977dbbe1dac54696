package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/internal/catalog"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/db"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/events"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/metrics"
	"github.com/angelmondragon/cardapy-backend/pkg/types"
)

const (
	pickupLeadMinutes   = 20
	deliveryLeadMinutes = 45

	// PaymentRejectedReason is recorded when the gateway rejects the charge.
	PaymentRejectedReason = "Pagamento rejeitado"
)

// LineInput is one cart line handed to order creation.
type LineInput struct {
	MenuItemID uuid.UUID
	Quantity   int
}

// CreateInput carries the checkout form.
type CreateInput struct {
	SessionID            string
	CustomerName         string
	CustomerPhone        string
	CustomerEmail        *string
	CustomerDocument     *string
	DeliveryMode         enums.DeliveryMode
	DeliveryAddress      *string
	DeliveryNumber       *string
	DeliveryComplement   *string
	DeliveryNeighborhood *string
	DeliveryCity         *string
	DeliveryZip          *string
	PaymentMethod        enums.PaymentMethod
	Notes                *string
	Lines                []LineInput
}

// PaymentOutcome reports what a gateway status did to an order.
type PaymentOutcome struct {
	Order          *models.Order
	PaymentChanged bool
	StatusChanged  bool
}

// Service drives the order lifecycle of the bound tenant.
type Service interface {
	Create(ctx context.Context, tc *tenant.Context, in CreateInput) (*models.Order, error)
	Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, tc *tenant.Context, id uuid.UUID, reason string) (*models.Order, error)
	Advance(ctx context.Context, tc *tenant.Context, id uuid.UUID, to enums.OrderStatus) (*models.Order, error)
	ApplyPaymentStatus(ctx context.Context, tc *tenant.Context, id uuid.UUID, status enums.PaymentStatus) (*PaymentOutcome, error)
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Events  events.Publisher
	Metrics *metrics.Platform
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	events  events.Publisher
	metrics *metrics.Platform
	logg    *logger.Logger
	now     func() time.Time
}

// NewService builds the order service. A nil publisher drops events.
func NewService(p ServiceParams) (Service, error) {
	pub := p.Events
	if pub == nil {
		pub = events.NoopPublisher{}
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &service{events: pub, metrics: p.Metrics, logg: p.Logger, now: now}, nil
}

func repositoryFor(tc *tenant.Context) (*Repository, error) {
	if tc == nil || tc.DB == nil {
		return nil, fmt.Errorf("tenant context required")
	}
	return NewRepository(tc.DB, tc.ID()), nil
}

func (s *service) Create(ctx context.Context, tc *tenant.Context, in CreateInput) (*models.Order, error) {
	r, err := repositoryFor(tc)
	if err != nil {
		return nil, err
	}
	if err := validateCreate(tc.Tenant, in); err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(in.Lines))
	for _, line := range in.Lines {
		ids = append(ids, line.MenuItemID)
	}

	var order *models.Order
	err = db.WithTx(ctx, tc.DB, func(tx *gorm.DB) error {
		items, err := catalog.NewRepository(tx, tc.ID()).FindItems(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order items")
		}
		built, err := s.build(tc.Tenant, in, items)
		if err != nil {
			return err
		}
		if err := r.WithTx(tx).Create(ctx, built); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		order = built
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncOrderTransition(string(enums.OrderStatusPending))
	s.publish(ctx, events.OrderCreated, order, "")
	return order, nil
}

func validateCreate(t models.Tenant, in CreateInput) error {
	if strings.TrimSpace(in.CustomerName) == "" || strings.TrimSpace(in.CustomerPhone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "Informe nome e telefone.")
	}
	if !in.DeliveryMode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "Modo de entrega inválido.")
	}
	if in.DeliveryMode == enums.DeliveryModeDelivery && blank(in.DeliveryAddress) {
		return pkgerrors.New(pkgerrors.CodeValidation, "Informe o endereço de entrega.")
	}
	if !in.PaymentMethod.IsValid() || !t.AcceptsPaymentMethod(string(in.PaymentMethod)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "Forma de pagamento não aceita.")
	}
	if in.PaymentMethod.UsesGateway() && !t.HasGatewayCredentials() {
		return pkgerrors.New(pkgerrors.CodeValidation, "Pagamento online indisponível para este restaurante.")
	}
	if len(in.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "Seu carrinho está vazio.")
	}
	return nil
}

func (s *service) build(t models.Tenant, in CreateInput, items map[uuid.UUID]models.MenuItem) (*models.Order, error) {
	now := s.now().UTC()
	order := &models.Order{
		ID:                   uuid.New(),
		SessionID:            in.SessionID,
		CustomerName:         strings.TrimSpace(in.CustomerName),
		CustomerPhone:        strings.TrimSpace(in.CustomerPhone),
		CustomerEmail:        in.CustomerEmail,
		CustomerDocument:     in.CustomerDocument,
		DeliveryMode:         in.DeliveryMode,
		PaymentMethod:        in.PaymentMethod,
		Notes:                in.Notes,
		Status:               enums.OrderStatusPending,
		PaymentStatus:        enums.PaymentStatusPending,
		DeliveryFee:          decimal.Zero,
		Discount:             decimal.Zero,
		CreatedAt:            now,
		DeliveryAddress:      in.DeliveryAddress,
		DeliveryNumber:       in.DeliveryNumber,
		DeliveryComplement:   in.DeliveryComplement,
		DeliveryNeighborhood: in.DeliveryNeighborhood,
		DeliveryCity:         in.DeliveryCity,
		DeliveryZip:          in.DeliveryZip,
	}
	if in.DeliveryMode == enums.DeliveryModeDelivery {
		order.DeliveryFee = t.DeliveryFee
	}

	subtotal := decimal.Zero
	prep := 0
	for i, line := range in.Lines {
		item, ok := items[line.MenuItemID]
		if !ok || !item.IsAvailable {
			name := "Um item"
			if ok {
				name = item.Name
			}
			return nil, pkgerrors.New(pkgerrors.CodeValidation, name+" não está mais disponível.").
				WithDetails(map[string]any{"menu_item_id": line.MenuItemID.String()})
		}
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "Quantidade inválida.")
		}
		oi := models.OrderItem{
			OrderID:         order.ID,
			MenuItemID:      item.ID,
			Position:        i,
			Name:            item.Name,
			Description:     item.Description,
			Price:           item.EffectivePrice(),
			Quantity:        line.Quantity,
			PreparationTime: item.PreparationMinutes(),
		}
		subtotal = subtotal.Add(oi.Subtotal())
		prep += oi.PreparationTime
		order.Items = append(order.Items, oi)
	}

	// Lines are priced live, so a price drop since the cart was filled can
	// take the order under the minimum the cart passed.
	if subtotal.LessThan(t.MinimumOrder) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Valor mínimo do pedido: "+types.FormatBRL(t.MinimumOrder)).
			WithDetails(map[string]any{
				"minimum_order": t.MinimumOrder.StringFixed(2),
				"order_total":   subtotal.StringFixed(2),
			})
	}

	order.Subtotal = subtotal
	order.Total = models.ComputeTotal(order.Subtotal, order.DeliveryFee, order.Discount)
	order.EstimatedDeliveryAt = EstimatedDelivery(now, in.DeliveryMode, prep)
	return order, nil
}

// EstimatedDelivery adds the mode's lead time and the summed preparation minutes to created.
func EstimatedDelivery(created time.Time, mode enums.DeliveryMode, prepMinutes int) time.Time {
	lead := pickupLeadMinutes
	if mode == enums.DeliveryModeDelivery {
		lead = deliveryLeadMinutes
	}
	return created.Add(time.Duration(lead+prepMinutes) * time.Minute)
}

func (s *service) Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*models.Order, error) {
	r, err := repositoryFor(tc)
	if err != nil {
		return nil, err
	}
	return find(ctx, r, id)
}

func find(ctx context.Context, r *Repository, id uuid.UUID) (*models.Order, error) {
	order, err := r.Find(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) Cancel(ctx context.Context, tc *tenant.Context, id uuid.UUID, reason string) (*models.Order, error) {
	r, err := repositoryFor(tc)
	if err != nil {
		return nil, err
	}
	order, err := find(ctx, r, id)
	if err != nil {
		return nil, err
	}
	if order.Status == enums.OrderStatusCancelled {
		return order, nil
	}
	if !order.Status.CanBeCancelled() {
		return nil, stateConflict(order, enums.OrderStatusCancelled)
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Cancelado pelo cliente"
	}
	now := s.now().UTC()
	changed, err := r.CompareAndSetStatus(ctx, id, enums.OrderStatusesFrom(enums.OrderStatusCancelled), enums.OrderStatusCancelled, map[string]any{
		"cancelled_at":        now,
		"cancellation_reason": reason,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}

	current, err := find(ctx, r, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		if current.Status == enums.OrderStatusCancelled {
			return current, nil
		}
		return nil, stateConflict(current, enums.OrderStatusCancelled)
	}
	s.metrics.IncOrderTransition(string(enums.OrderStatusCancelled))
	s.publish(ctx, events.OrderCancelled, current, reason)
	return current, nil
}

// NextStatus is the staff progression step from the order's current state.
func NextStatus(o models.Order) (enums.OrderStatus, bool) {
	switch o.Status {
	case enums.OrderStatusPending:
		if o.PaymentMethod == enums.PaymentMethodCash {
			return enums.OrderStatusConfirmed, true
		}
	case enums.OrderStatusConfirmed:
		return enums.OrderStatusPreparing, true
	case enums.OrderStatusPreparing:
		return enums.OrderStatusReady, true
	case enums.OrderStatusReady:
		if o.DeliveryMode == enums.DeliveryModePickup {
			return enums.OrderStatusDelivered, true
		}
		return enums.OrderStatusDelivering, true
	case enums.OrderStatusDelivering:
		return enums.OrderStatusDelivered, true
	}
	return "", false
}

func (s *service) Advance(ctx context.Context, tc *tenant.Context, id uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	r, err := repositoryFor(tc)
	if err != nil {
		return nil, err
	}
	order, err := find(ctx, r, id)
	if err != nil {
		return nil, err
	}
	if to != "" && order.Status == to {
		return order, nil
	}

	next, ok := NextStatus(*order)
	if !ok || (to != "" && to != next) {
		target := to
		if target == "" {
			target = next
		}
		return nil, stateConflict(order, target)
	}

	now := s.now().UTC()
	extra := map[string]any{}
	switch next {
	case enums.OrderStatusConfirmed:
		extra["confirmed_at"] = now
	case enums.OrderStatusReady:
		extra["prepared_at"] = now
	case enums.OrderStatusDelivered:
		extra["delivered_at"] = now
	}
	changed, err := r.CompareAndSetStatus(ctx, id, []enums.OrderStatus{order.Status}, next, extra)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance order")
	}
	current, err := find(ctx, r, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		if current.Status == next {
			return current, nil
		}
		return nil, stateConflict(current, next)
	}

	s.metrics.IncOrderTransition(string(next))
	typ := events.OrderAdvanced
	if next == enums.OrderStatusConfirmed {
		typ = events.OrderConfirmed
	}
	s.publish(ctx, typ, current, "")
	return current, nil
}

// ApplyPaymentStatus folds a gateway-confirmed payment status into the order.
// Both axes move through compare-and-set updates, so a repeated status is a no-op.
func (s *service) ApplyPaymentStatus(ctx context.Context, tc *tenant.Context, id uuid.UUID, status enums.PaymentStatus) (*PaymentOutcome, error) {
	r, err := repositoryFor(tc)
	if err != nil {
		return nil, err
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment status")
	}

	out := &PaymentOutcome{}
	var eventType events.Type
	var reason string
	err = db.WithTx(ctx, tc.DB, func(tx *gorm.DB) error {
		txRepo := r.WithTx(tx)
		if _, err := find(ctx, txRepo, id); err != nil {
			return err
		}
		if status == enums.PaymentStatusPending {
			return nil
		}

		changed, err := txRepo.CompareAndSetPaymentStatus(ctx, id, enums.PaymentStatusesFrom(status), status)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
		}
		out.PaymentChanged = changed
		if !changed {
			return nil
		}

		now := s.now().UTC()
		switch status {
		case enums.PaymentStatusApproved:
			out.StatusChanged, err = txRepo.CompareAndSetStatus(ctx, id, enums.OrderStatusesFrom(enums.OrderStatusConfirmed), enums.OrderStatusConfirmed, map[string]any{
				"confirmed_at": now,
			})
			eventType = events.OrderConfirmed
		case enums.PaymentStatusRejected:
			reason = PaymentRejectedReason
			out.StatusChanged, err = txRepo.CompareAndSetStatus(ctx, id, enums.OrderStatusesFrom(enums.OrderStatusCancelled), enums.OrderStatusCancelled, map[string]any{
				"cancelled_at":        now,
				"cancellation_reason": reason,
			})
			eventType = events.OrderCancelled
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.Order, err = find(ctx, r, id)
	if err != nil {
		return nil, err
	}
	if out.StatusChanged {
		s.metrics.IncOrderTransition(string(out.Order.Status))
		s.publish(ctx, eventType, out.Order, reason)
	}
	return out, nil
}

func (s *service) publish(ctx context.Context, typ events.Type, order *models.Order, reason string) {
	err := s.events.PublishOrderEvent(ctx, events.OrderEvent{
		Type:          typ,
		TenantID:      order.TenantID,
		OrderID:       order.ID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Total:         order.Total.StringFixed(2),
		Reason:        reason,
		OccurredAt:    s.now().UTC(),
	})
	if err != nil {
		s.logg.WarnErr(s.logg.WithOrderID(ctx, order.ID.String()), "publish order event", err)
	}
}

func stateConflict(order *models.Order, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "Este pedido não pode mais ser alterado.").
		WithDetails(map[string]any{
			"order_id": order.ID.String(),
			"status":   string(order.Status),
			"target":   string(to),
		})
}

func blank(v *string) bool {
	return v == nil || strings.TrimSpace(*v) == ""
}
