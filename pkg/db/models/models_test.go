package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/cardapy-backend/pkg/enums"
	"github.com/angelmondragon/cardapy-backend/pkg/types"
)

func money(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestMenuItemPricing(t *testing.T) {
	sale := MenuItem{Price: money("50.00"), PromotionalPrice: decimal.NewNullDecimal(money("40.00"))}
	if !sale.IsOnSale() {
		t.Fatalf("expected item on sale")
	}
	if !sale.EffectivePrice().Equal(money("40.00")) {
		t.Fatalf("expected effective price 40.00, got %s", sale.EffectivePrice())
	}
	if got := sale.DiscountPercentage(); got != 20 {
		t.Fatalf("expected 20%% discount, got %d", got)
	}

	higher := MenuItem{Price: money("50.00"), PromotionalPrice: decimal.NewNullDecimal(money("60.00"))}
	if higher.IsOnSale() {
		t.Fatalf("higher promo price is not a sale")
	}
	if !higher.EffectivePrice().Equal(money("50.00")) {
		t.Fatalf("expected base price, got %s", higher.EffectivePrice())
	}
	if higher.DiscountPercentage() != 0 {
		t.Fatalf("expected 0%% discount")
	}

	equal := MenuItem{Price: money("50.00"), PromotionalPrice: decimal.NewNullDecimal(money("50.00"))}
	if equal.IsOnSale() {
		t.Fatalf("equal promo price is not strictly lower")
	}

	rounding := MenuItem{Price: money("30.00"), PromotionalPrice: decimal.NewNullDecimal(money("19.90"))}
	if got := rounding.DiscountPercentage(); got != 34 {
		t.Fatalf("expected rounded 34%%, got %d", got)
	}
}

func TestMenuItemPreparationDefault(t *testing.T) {
	if got := (MenuItem{}).PreparationMinutes(); got != DefaultPreparationMinutes {
		t.Fatalf("expected default, got %d", got)
	}
	fifteen := 15
	if got := (MenuItem{PreparationTime: &fifteen}).PreparationMinutes(); got != 15 {
		t.Fatalf("expected 15, got %d", got)
	}
}

func TestOrderDerivedFields(t *testing.T) {
	street, number, city := "Rua A", "10", "Recife"
	order := Order{
		ID:              uuid.MustParse("0a1b2c3d-0000-0000-0000-000000000000"),
		DeliveryMode:    enums.DeliveryModeDelivery,
		DeliveryAddress: &street,
		DeliveryNumber:  &number,
		DeliveryCity:    &city,
		Subtotal:        money("30.00"),
		DeliveryFee:     money("5.00"),
		Discount:        money("2.50"),
		Total:           money("32.50"),
		Items:           []OrderItem{{Quantity: 2}, {Quantity: 1}},
	}
	if order.Number() != "PED-0A1B2C" {
		t.Fatalf("unexpected number %s", order.Number())
	}
	if !order.TotalsConsistent() {
		t.Fatalf("expected consistent totals")
	}
	if order.ItemCount() != 3 {
		t.Fatalf("expected 3 items, got %d", order.ItemCount())
	}
	if got := order.FullDeliveryAddress(); got != "Rua A, 10 - Recife" {
		t.Fatalf("unexpected address %q", got)
	}

	order.DeliveryMode = enums.DeliveryModePickup
	if got := order.FullDeliveryAddress(); got != "Retirada no local" {
		t.Fatalf("unexpected pickup label %q", got)
	}
}

func TestTenantHelpers(t *testing.T) {
	key, token := "pk", "tok"
	tenant := &Tenant{Timezone: "UTC", OperatingHours: types.OperatingHours{"monday": {Open: "08:00", Close: "18:00"}}}
	if tenant.HasGatewayCredentials() {
		t.Fatalf("missing credentials")
	}
	tenant.GatewayPublicKey, tenant.GatewayAccessToken = &key, &token
	if !tenant.HasGatewayCredentials() {
		t.Fatalf("expected credentials")
	}
	if !tenant.IsOpen(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected open on monday morning")
	}
	if !tenant.AcceptsPaymentMethod("pix") {
		t.Fatalf("empty allow list accepts every method")
	}
	tenant.PaymentMethods = types.NewStringSet("cash")
	if tenant.AcceptsPaymentMethod("pix") {
		t.Fatalf("pix not in allow list")
	}
}

func TestReviewStars(t *testing.T) {
	if got := (Review{Rating: 3}).Stars(); got != "★★★☆☆" {
		t.Fatalf("unexpected stars %q", got)
	}
	if got := (Review{Rating: 9}).Stars(); got != "★★★★★" {
		t.Fatalf("rating must clamp, got %q", got)
	}
}
