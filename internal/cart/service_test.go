package cart

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
)

type stubItems struct {
	items map[uuid.UUID]models.MenuItem
}

func (s stubItems) ItemModel(_ context.Context, tc *tenant.Context, id uuid.UUID) (*models.MenuItem, error) {
	item, ok := s.items[id]
	if !ok || item.TenantID != tc.ID() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
	}
	return &item, nil
}

func bindTenant(t *testing.T, minimum string) *tenant.Context {
	t.Helper()
	tn := models.Tenant{ID: uuid.New(), Subdomain: "bobscafe", ShardID: 3, MinimumOrder: decimal.RequireFromString(minimum)}
	target, err := tenant.TargetFor(config.TenancyConfig{DatabaseBase: "cardapy"}, config.StorageConfig{BaseDir: "/srv", PublicURLBase: "/storage"}, tn)
	if err != nil {
		t.Fatalf("target: %v", err)
	}
	return &tenant.Context{Tenant: tn, Target: target}
}

func menuItem(tc *tenant.Context, price string, available bool) models.MenuItem {
	return models.MenuItem{
		ID:          uuid.New(),
		TenantID:    tc.ID(),
		Name:        "X-Burger",
		Price:       decimal.RequireFromString(price),
		IsAvailable: available,
	}
}

func newTestService(t *testing.T, store Store, items ...models.MenuItem) Service {
	t.Helper()
	byID := map[uuid.UUID]models.MenuItem{}
	for _, it := range items {
		byID[it.ID] = it
	}
	svc, err := NewService(ServiceParams{Store: store, Items: stubItems{items: byID}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCheckoutScenarioMinimumOrder(t *testing.T) {
	ctx := context.Background()
	tc := bindTenant(t, "20.00")
	itemA := menuItem(tc, "15.00", true)
	svc := newTestService(t, NewMemoryStore(), itemA)

	if _, err := svc.Add(ctx, tc, "s1", itemA.ID, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	c, err := svc.ReadyForCheckout(ctx, tc, "s1")
	if err != nil {
		t.Fatalf("expected 30.00 to pass the minimum: %v", err)
	}
	if !c.Total().Equal(decimal.RequireFromString("30.00")) {
		t.Fatalf("unexpected total %s", c.Total())
	}

	if _, err := svc.SetQuantity(ctx, tc, "s1", itemA.ID, 1); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	_, err = svc.ReadyForCheckout(ctx, tc, "s1")
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation failure below minimum, got %v", err)
	}
	if !strings.Contains(err.Error(), "R$ 20,00") {
		t.Fatalf("expected formatted minimum in message, got %q", err.Error())
	}
}

func TestCheckoutRejectsEmptyCart(t *testing.T) {
	tc := bindTenant(t, "0")
	svc := newTestService(t, NewMemoryStore())
	_, err := svc.ReadyForCheckout(context.Background(), tc, "s1")
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}

func TestAddUnavailableIsNonFatal(t *testing.T) {
	tc := bindTenant(t, "0")
	off := menuItem(tc, "10.00", false)
	svc := newTestService(t, NewMemoryStore(), off)

	res, err := svc.Add(context.Background(), tc, "s1", off.ID, 1)
	if err != nil {
		t.Fatalf("unavailable item must not error: %v", err)
	}
	if res.Added || res.Cart.HasItems {
		t.Fatalf("unavailable item must not enter the cart")
	}
	if res.Message == "" {
		t.Fatalf("expected a user-facing message")
	}
}

func TestAddSnapshotsEffectivePrice(t *testing.T) {
	tc := bindTenant(t, "0")
	item := menuItem(tc, "50.00", true)
	item.PromotionalPrice = decimal.NewNullDecimal(decimal.RequireFromString("40.00"))
	svc := newTestService(t, NewMemoryStore(), item)

	res, err := svc.Add(context.Background(), tc, "s1", item.ID, 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if res.Cart.Lines[0].UnitPrice != "40.00" {
		t.Fatalf("expected promotional snapshot, got %s", res.Cart.Lines[0].UnitPrice)
	}
}

func TestCartsAreScopedByTenant(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	t1 := bindTenant(t, "0")
	t2 := bindTenant(t, "0")
	item := menuItem(t1, "10.00", true)
	svc := newTestService(t, store, item)

	if _, err := svc.Add(ctx, t1, "same-session", item.ID, 1); err != nil {
		t.Fatalf("add: %v", err)
	}
	view, err := svc.Get(ctx, t2, "same-session")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.HasItems {
		t.Fatalf("cart leaked into another tenant")
	}
	if _, err := svc.Add(ctx, t2, "same-session", item.ID, 1); !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("another tenant's item must not be found, got %v", err)
	}
	keys := store.Keys()
	if len(keys) != 1 || !strings.HasPrefix(keys[0], string(t1.Target.CacheNamespace)) {
		t.Fatalf("unexpected keys %v", keys)
	}
}

func TestClearDeletesStoredCart(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tc := bindTenant(t, "0")
	item := menuItem(tc, "10.00", true)
	svc := newTestService(t, store, item)

	if _, err := svc.Add(ctx, tc, "s1", item.ID, 3); err != nil {
		t.Fatalf("add: %v", err)
	}
	view, err := svc.Clear(ctx, tc, "s1")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if view.Count != 0 || len(store.Keys()) != 0 {
		t.Fatalf("clear must empty the cart and drop the key")
	}
}

func TestMissingSessionIsRejected(t *testing.T) {
	tc := bindTenant(t, "0")
	svc := newTestService(t, NewMemoryStore())
	if _, err := svc.Get(context.Background(), tc, ""); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
