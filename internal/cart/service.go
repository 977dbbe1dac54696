package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/cardapy-backend/pkg/redis"
	"github.com/angelmondragon/cardapy-backend/pkg/types"
)

const (
	msgEmpty       = "Seu carrinho está vazio."
	msgUnavailable = "Este item não está disponível no momento."
)

type itemLoader interface {
	ItemModel(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*models.MenuItem, error)
}

// Service mutates the session cart of the bound tenant.
type Service interface {
	Get(ctx context.Context, tc *tenant.Context, sessionID string) (*View, error)
	Add(ctx context.Context, tc *tenant.Context, sessionID string, itemID uuid.UUID, qty int) (*AddResult, error)
	Remove(ctx context.Context, tc *tenant.Context, sessionID string, itemID uuid.UUID) (*View, error)
	SetQuantity(ctx context.Context, tc *tenant.Context, sessionID string, itemID uuid.UUID, qty int) (*View, error)
	Clear(ctx context.Context, tc *tenant.Context, sessionID string) (*View, error)
	ReadyForCheckout(ctx context.Context, tc *tenant.Context, sessionID string) (*Cart, error)
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Store       Store
	Items       itemLoader
	MaxQuantity int
	Logger      *logger.Logger
}

type service struct {
	store       Store
	items       itemLoader
	maxQuantity int
	logg        *logger.Logger
}

// NewService builds the cart service.
func NewService(p ServiceParams) (Service, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if p.Items == nil {
		return nil, fmt.Errorf("item loader required")
	}
	max := p.MaxQuantity
	if max <= 0 {
		max = DefaultMaxQuantity
	}
	return &service{store: p.Store, items: p.Items, maxQuantity: max, logg: p.Logger}, nil
}

// Key is where the cart of sessionID lives inside the tenant's namespace.
func Key(tc *tenant.Context, sessionID string) (string, error) {
	if tc == nil {
		return "", fmt.Errorf("tenant context required")
	}
	if sessionID == "" {
		return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "cart session required")
	}
	return pkgredis.CartKey(tc.Target.CacheNamespace, sessionID), nil
}

func (s *service) Get(ctx context.Context, tc *tenant.Context, sessionID string) (*View, error) {
	key, err := Key(tc, sessionID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return NewView(c, tc.Tenant), nil
}

// Add reports an unavailable item through AddResult instead of an error.
func (s *service) Add(ctx context.Context, tc *tenant.Context, sessionID string, itemID uuid.UUID, qty int) (*AddResult, error) {
	key, err := Key(tc, sessionID)
	if err != nil {
		return nil, err
	}
	item, err := s.items.ItemModel(ctx, tc, itemID)
	if err != nil {
		return nil, err
	}

	if !item.IsAvailable {
		c, err := s.store.Load(ctx, key)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		return &AddResult{Cart: NewView(c, tc.Tenant), Message: msgUnavailable}, nil
	}

	snapshot := Line{
		ItemID:      item.ID,
		Name:        item.Name,
		ImageURL:    tc.Target.Storage.URLPtr(item.ImagePath),
		UnitPrice:   item.EffectivePrice(),
		MaxQuantity: s.maxQuantity,
	}
	c, err := s.store.Update(ctx, key, func(c *Cart) error {
		c.add(snapshot, qty)
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart")
	}
	return &AddResult{Cart: NewView(c, tc.Tenant), Added: true, Message: "Item adicionado ao carrinho!"}, nil
}

func (s *service) Remove(ctx context.Context, tc *tenant.Context, sessionID string, itemID uuid.UUID) (*View, error) {
	return s.mutate(ctx, tc, sessionID, func(c *Cart) { c.remove(itemID) })
}

func (s *service) SetQuantity(ctx context.Context, tc *tenant.Context, sessionID string, itemID uuid.UUID, qty int) (*View, error) {
	return s.mutate(ctx, tc, sessionID, func(c *Cart) { c.setQuantity(itemID, qty) })
}

func (s *service) Clear(ctx context.Context, tc *tenant.Context, sessionID string) (*View, error) {
	return s.mutate(ctx, tc, sessionID, func(c *Cart) { c.clear() })
}

// ReadyForCheckout enforces a non-empty cart whose total reaches the tenant minimum.
func (s *service) ReadyForCheckout(ctx context.Context, tc *tenant.Context, sessionID string) (*Cart, error) {
	key, err := Key(tc, sessionID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.Load(ctx, key)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := CheckMinimum(c, tc.Tenant); err != nil {
		return nil, err
	}
	return c, nil
}

// CheckMinimum is the checkout precondition on its own.
func CheckMinimum(c *Cart, t models.Tenant) error {
	if c == nil || c.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeValidation, msgEmpty)
	}
	if c.Total().LessThan(t.MinimumOrder) {
		return pkgerrors.New(pkgerrors.CodeValidation, "Valor mínimo do pedido: "+types.FormatBRL(t.MinimumOrder)).
			WithDetails(map[string]any{
				"minimum_order": t.MinimumOrder.StringFixed(2),
				"cart_total":    c.Total().StringFixed(2),
			})
	}
	return nil
}

func (s *service) mutate(ctx context.Context, tc *tenant.Context, sessionID string, fn func(*Cart)) (*View, error) {
	key, err := Key(tc, sessionID)
	if err != nil {
		return nil, err
	}
	c, err := s.store.Update(ctx, key, func(c *Cart) error {
		fn(c)
		return nil
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart")
	}
	return NewView(c, tc.Tenant), nil
}
