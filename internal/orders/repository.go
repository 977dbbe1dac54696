package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/internal/repo"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
)

const ordersTable = "orders"

// Repository persists orders of one tenant.
type Repository struct {
	base repo.Base
}

// NewRepository binds the repository to a shard and a tenant.
func NewRepository(db *gorm.DB, tenantID uuid.UUID) *Repository {
	return &Repository{base: repo.NewBase(db, tenantID)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.WithTx(tx)}
}

// Create inserts the order together with its item snapshots.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	order.TenantID = r.base.TenantID()
	for i := range order.Items {
		order.Items[i].TenantID = r.base.TenantID()
	}
	return r.base.DB(ctx).Omit("Payment").Create(order).Error
}

// Find loads an order with its items in position order and its payment.
func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.base.Model(ctx, &models.Order{}, ordersTable).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_items.position ASC")
		}).
		Preload("Payment").
		Where("orders.id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CompareAndSetStatus moves the order to next only while its status is one of
// from. It reports whether this call performed the change.
func (r *Repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, next enums.OrderStatus, extra map[string]any) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	updates := map[string]any{"status": next}
	for k, v := range extra {
		updates[k] = v
	}
	res := r.base.Model(ctx, &models.Order{}, ordersTable).
		Where("orders.id = ? AND orders.status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// CompareAndSetPaymentStatus is the payment-axis counterpart of CompareAndSetStatus.
func (r *Repository) CompareAndSetPaymentStatus(ctx context.Context, id uuid.UUID, from []enums.PaymentStatus, next enums.PaymentStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	res := r.base.Model(ctx, &models.Order{}, ordersTable).
		Where("orders.id = ? AND orders.payment_status IN ?", id, from).
		Update("payment_status", next)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListAwaitingPayment returns gateway-paid orders still pending payment that were
// created before cutoff, oldest first. Hosted checkouts whose payment id never
// arrived are included.
func (r *Repository) ListAwaitingPayment(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := r.base.Model(ctx, &models.Order{}, ordersTable).
		Preload("Payment").
		Joins("JOIN payments ON payments.order_id = orders.id AND payments.tenant_id = orders.tenant_id").
		Where("orders.payment_status = ?", enums.PaymentStatusPending).
		Where("orders.status <> ?", enums.OrderStatusCancelled).
		Where("orders.created_at < ?", cutoff).
		Where("(payments.gateway_payment_id IS NOT NULL OR payments.preference_id IS NOT NULL)").
		Order("orders.created_at ASC").
		Limit(limit).
		Find(&orders).Error
	return orders, err
}
