package reviews

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardapy-backend/internal/orders"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/db"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/pagination"
)

const (
	minRating = 1
	maxRating = 5

	msgAlreadyReviewed = "Este pedido já foi avaliado."
	msgNotDelivered    = "Só é possível avaliar pedidos entregues."
)

// SubmitInput is a customer review of one order.
type SubmitInput struct {
	CustomerName string
	Rating       int
	Comment      string
	MenuItemID   *uuid.UUID
}

// DTO is a review as shown publicly.
type DTO struct {
	ID           uuid.UUID  `json:"id"`
	OrderID      uuid.UUID  `json:"order_id"`
	MenuItemID   *uuid.UUID `json:"menu_item_id,omitempty"`
	CustomerName string     `json:"customer_name"`
	Rating       int        `json:"rating"`
	Stars        string     `json:"stars"`
	Comment      *string    `json:"comment,omitempty"`
	IsApproved   bool       `json:"is_approved"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Page is one cursor page of approved reviews.
type Page struct {
	Items      []DTO  `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

type Service interface {
	Submit(ctx context.Context, tc *tenant.Context, orderID uuid.UUID, in SubmitInput) (*DTO, error)
	ListApproved(ctx context.Context, tc *tenant.Context, params pagination.Params) (*Page, error)
	Approve(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*DTO, error)
}

type ServiceParams struct {
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	logg *logger.Logger
	now  func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &service{logg: p.Logger, now: now}, nil
}

// Submit stores an unapproved review. Only delivered orders can be reviewed,
// once each, and the optional menu item must be one of the order's items.
func (s *service) Submit(ctx context.Context, tc *tenant.Context, orderID uuid.UUID, in SubmitInput) (*DTO, error) {
	if tc == nil || tc.DB == nil {
		return nil, fmt.Errorf("tenant context required")
	}
	if in.Rating < minRating || in.Rating > maxRating {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "A nota deve ser entre 1 e 5.").
			WithDetails(map[string]any{"rating": in.Rating})
	}

	order, err := orders.NewRepository(tc.DB, tc.ID()).Find(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, msgNotDelivered).
			WithDetails(map[string]any{"order_id": order.ID, "status": order.Status})
	}
	if in.MenuItemID != nil && !hasItem(order, *in.MenuItemID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Este item não faz parte do pedido.").
			WithDetails(map[string]any{"menu_item_id": *in.MenuItemID})
	}

	r := NewRepository(tc.DB, tc.ID())
	exists, err := r.ExistsForOrder(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check review")
	}
	if exists {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, msgAlreadyReviewed)
	}

	review := &models.Review{
		OrderID:      order.ID,
		MenuItemID:   in.MenuItemID,
		CustomerName: firstNonEmpty(in.CustomerName, order.CustomerName),
		Rating:       in.Rating,
		CreatedAt:    s.now().UTC(),
	}
	if c := strings.TrimSpace(in.Comment); c != "" {
		review.Comment = &c
	}
	if err := r.Create(ctx, review); err != nil {
		if isDuplicateReview(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, msgAlreadyReviewed)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
	}
	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "review submitted")
	dto := toDTO(*review)
	return &dto, nil
}

func (s *service) ListApproved(ctx context.Context, tc *tenant.Context, params pagination.Params) (*Page, error) {
	if tc == nil || tc.DB == nil {
		return nil, fmt.Errorf("tenant context required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := NewRepository(tc.DB, tc.ID()).ListApproved(ctx, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}

	page := &Page{Items: make([]DTO, 0, len(rows))}
	if len(rows) > limit {
		last := rows[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
		rows = rows[:limit]
	}
	for _, row := range rows {
		page.Items = append(page.Items, toDTO(row))
	}
	return page, nil
}

// Approve is idempotent: approving an approved review returns it unchanged.
func (s *service) Approve(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*DTO, error) {
	if tc == nil || tc.DB == nil {
		return nil, fmt.Errorf("tenant context required")
	}
	r := NewRepository(tc.DB, tc.ID())
	if _, err := r.Approve(ctx, id, s.now().UTC()); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve review")
	}
	review, err := r.Find(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	dto := toDTO(*review)
	return &dto, nil
}

func toDTO(r models.Review) DTO {
	return DTO{
		ID:           r.ID,
		OrderID:      r.OrderID,
		MenuItemID:   r.MenuItemID,
		CustomerName: r.CustomerName,
		Rating:       r.Rating,
		Stars:        r.Stars(),
		Comment:      r.Comment,
		IsApproved:   r.IsApproved,
		CreatedAt:    r.CreatedAt,
	}
}

func hasItem(o *models.Order, menuItemID uuid.UUID) bool {
	for _, it := range o.Items {
		if it.MenuItemID == menuItemID {
			return true
		}
	}
	return false
}

// sqlite names the column, postgres names the index.
func isDuplicateReview(err error) bool {
	return db.IsUniqueViolation(err, "idx_reviews_order") || db.IsUniqueViolation(err, "reviews.order_id")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
