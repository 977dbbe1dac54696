package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/internal/repo"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
)

const paymentsTable = "payments"

// Repository persists the local mirror of gateway charges.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB, tenantID uuid.UUID) *Repository {
	return &Repository{base: repo.NewBase(db, tenantID)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.WithTx(tx)}
}

func (r *Repository) Create(ctx context.Context, p *models.Payment) error {
	p.TenantID = r.base.TenantID()
	return r.base.DB(ctx).Create(p).Error
}

// FindByOrder returns the payment attached to an order.
func (r *Repository) FindByOrder(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	if err := r.base.Model(ctx, &models.Payment{}, paymentsTable).
		Where("payments.order_id = ?", orderID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Mirror is the gateway view written onto the local row.
type Mirror struct {
	GatewayPaymentID string
	Status           enums.PaymentStatus
	StatusDetail     string
	Processed        bool
	At               time.Time
}

// ApplyMirror records the gateway id and detail, moves the status only along
// legal payment transitions and stamps processed_at the first time a terminal
// status is seen.
func (r *Repository) ApplyMirror(ctx context.Context, id uuid.UUID, m Mirror) error {
	updates := map[string]any{}
	if m.GatewayPaymentID != "" {
		updates["gateway_payment_id"] = m.GatewayPaymentID
	}
	if m.StatusDetail != "" {
		updates["status_detail"] = m.StatusDetail
	}
	if len(updates) > 0 {
		if err := r.base.Model(ctx, &models.Payment{}, paymentsTable).
			Where("payments.id = ?", id).
			Updates(updates).Error; err != nil {
			return err
		}
	}

	if from := enums.PaymentStatusesFrom(m.Status); len(from) > 0 {
		if err := r.base.Model(ctx, &models.Payment{}, paymentsTable).
			Where("payments.id = ? AND payments.status IN ?", id, from).
			Update("status", m.Status).Error; err != nil {
			return err
		}
	}

	if m.Processed {
		return r.base.Model(ctx, &models.Payment{}, paymentsTable).
			Where("payments.id = ? AND payments.processed_at IS NULL", id).
			Update("processed_at", m.At).Error
	}
	return nil
}
