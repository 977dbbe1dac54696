package reviews

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/internal/repo"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/pagination"
)

const table = "reviews"

// Repository reads and writes reviews of one tenant.
type Repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB, tenantID uuid.UUID) *Repository {
	return &Repository{base: repo.NewBase(db, tenantID)}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.WithTx(tx)}
}

func (r *Repository) Create(ctx context.Context, review *models.Review) error {
	review.TenantID = r.base.TenantID()
	return r.base.DB(ctx).Create(review).Error
}

func (r *Repository) ExistsForOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var n int64
	err := r.base.Model(ctx, &models.Review{}, table).
		Where("reviews.order_id = ?", orderID).
		Count(&n).Error
	return n > 0, err
}

// ListApproved returns approved reviews newest first, starting after cursor.
// It fetches limit rows; callers pass one extra to detect a next page.
func (r *Repository) ListApproved(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Review, error) {
	query := r.base.Model(ctx, &models.Review{}, table).
		Where("reviews.is_approved = ?", true)
	if cursor != nil {
		query = query.Where(
			"(reviews.created_at < ?) OR (reviews.created_at = ? AND reviews.id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var rows []models.Review
	err := query.
		Order("reviews.created_at DESC").
		Order("reviews.id DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Approve publishes a review. It reports false when no pending review matched.
func (r *Repository) Approve(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.base.Model(ctx, &models.Review{}, table).
		Where("reviews.id = ? AND reviews.is_approved = ?", id, false).
		Updates(map[string]any{"is_approved": true, "approved_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) Find(ctx context.Context, id uuid.UUID) (*models.Review, error) {
	var review models.Review
	if err := r.base.Model(ctx, &models.Review{}, table).
		Where("reviews.id = ?", id).
		First(&review).Error; err != nil {
		return nil, err
	}
	return &review, nil
}
