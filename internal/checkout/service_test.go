package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/cardapy-backend/internal/cart"
	"github.com/angelmondragon/cardapy-backend/internal/catalog"
	"github.com/angelmondragon/cardapy-backend/internal/orders"
	"github.com/angelmondragon/cardapy-backend/internal/repo/repotest"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/types"
)

const session = "sess-42"

type fakePayments struct {
	err   error
	calls []enums.PaymentMethod
}

func (p *fakePayments) CreatePreference(_ context.Context, _ *tenant.Context, order *models.Order) (*models.Payment, error) {
	p.calls = append(p.calls, enums.PaymentMethodCheckout)
	if p.err != nil {
		return nil, p.err
	}
	url := "https://pay.example/checkout/" + order.ID.String()
	return &models.Payment{OrderID: order.ID, Method: enums.PaymentMethodCheckout, CheckoutURL: &url}, nil
}

func (p *fakePayments) CreateDirectPayment(_ context.Context, _ *tenant.Context, order *models.Order) (*models.Payment, error) {
	p.calls = append(p.calls, enums.PaymentMethodPix)
	if p.err != nil {
		return nil, p.err
	}
	return &models.Payment{OrderID: order.ID, Method: enums.PaymentMethodPix}, nil
}

type fixture struct {
	tc       *tenant.Context
	cart     cart.Service
	payments *fakePayments
	svc      Service
	itemA    models.MenuItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := repotest.NewShard(t)
	token := "APP_USR-secret"
	public := "APP_USR-public"
	tn := models.Tenant{
		ID:                 uuid.New(),
		Subdomain:          "bobscafe",
		ShardID:            3,
		IsActive:           true,
		MinimumOrder:       decimal.RequireFromString("20.00"),
		DeliveryFee:        decimal.RequireFromString("4.50"),
		GatewayPublicKey:   &public,
		GatewayAccessToken: &token,
	}
	target, err := tenant.TargetFor(config.TenancyConfig{DatabaseBase: "cardapy"}, config.StorageConfig{BaseDir: "/srv"}, tn)
	require.NoError(t, err)
	tc := &tenant.Context{Tenant: tn, Target: target, DB: conn}

	cat := models.Category{TenantID: tn.ID, Name: "Lanches", IsActive: true}
	require.NoError(t, conn.Create(&cat).Error)
	itemA := models.MenuItem{TenantID: tn.ID, CategoryID: cat.ID, Name: "itemA", Price: decimal.RequireFromString("15.00"), IsAvailable: true}
	require.NoError(t, conn.Create(&itemA).Error)

	catalogSvc, err := catalog.NewService(catalog.ServiceParams{})
	require.NoError(t, err)
	cartSvc, err := cart.NewService(cart.ServiceParams{Store: cart.NewMemoryStore(), Items: catalogSvc})
	require.NoError(t, err)
	orderSvc, err := orders.NewService(orders.ServiceParams{})
	require.NoError(t, err)
	payments := &fakePayments{}
	svc, err := NewService(ServiceParams{Cart: cartSvc, Orders: orderSvc, Payments: payments, Now: time.Now})
	require.NoError(t, err)
	return &fixture{tc: tc, cart: cartSvc, payments: payments, svc: svc, itemA: itemA}
}

func (f *fixture) fill(t *testing.T, qty int) {
	t.Helper()
	res, err := f.cart.Add(context.Background(), f.tc, session, f.itemA.ID, qty)
	require.NoError(t, err)
	require.True(t, res.Added)
}

func form(method enums.PaymentMethod) orders.CreateInput {
	return orders.CreateInput{
		CustomerName:  "Maria Souza",
		CustomerPhone: "11999990000",
		DeliveryMode:  enums.DeliveryModePickup,
		PaymentMethod: method,
	}
}

func (f *fixture) orderCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.tc.DB.Model(&models.Order{}).Count(&n).Error)
	return n
}

func TestSubmitAboveMinimumCreatesPendingOrder(t *testing.T) {
	f := newFixture(t)
	f.fill(t, 2)

	res, err := f.svc.Submit(context.Background(), f.tc, session, form(enums.PaymentMethodCash))
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, res.Order.Status)
	assert.Equal(t, "30.00", res.Order.Total.StringFixed(2))
	assert.Equal(t, session, res.Order.SessionID)
	assert.Nil(t, res.Payment)
	assert.Empty(t, f.payments.calls, "cash never reaches the gateway")
	assert.Equal(t, "/pedido/"+res.Order.ID.String(), res.RedirectURL)

	view, err := f.cart.Get(context.Background(), f.tc, session)
	require.NoError(t, err)
	assert.False(t, view.HasItems, "cart is cleared after a successful checkout")
}

func TestSubmitBelowMinimumIsRejected(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.tc.DB.Model(&models.MenuItem{}).Where("id = ?", f.itemA.ID).Update("price", "10.00").Error)
	f.fill(t, 1)

	_, err := f.svc.Submit(context.Background(), f.tc, session, form(enums.PaymentMethodCash))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Equal(t, "Valor mínimo do pedido: R$ 20,00", pkgerrors.As(err).Message())
	assert.Zero(t, f.orderCount(t))
}

func TestSubmitRechecksMinimumAtLivePrices(t *testing.T) {
	f := newFixture(t)
	f.fill(t, 2)
	require.NoError(t, f.tc.DB.Model(&models.MenuItem{}).Where("id = ?", f.itemA.ID).Update("price", "5.00").Error)

	_, err := f.svc.Submit(context.Background(), f.tc, session, form(enums.PaymentMethodCash))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Equal(t, "Valor mínimo do pedido: R$ 20,00", pkgerrors.As(err).Message())
	assert.Zero(t, f.orderCount(t))
	assert.Empty(t, f.payments.calls)

	view, err := f.cart.Get(context.Background(), f.tc, session)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Count, "the cart survives a rejected checkout")
}

func TestSubmitEmptyCartIsRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), f.tc, session, form(enums.PaymentMethodCash))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
	assert.Zero(t, f.orderCount(t))
}

func TestSubmitCheckoutRedirectsToGateway(t *testing.T) {
	f := newFixture(t)
	f.fill(t, 2)

	res, err := f.svc.Submit(context.Background(), f.tc, session, form(enums.PaymentMethodCheckout))
	require.NoError(t, err)
	assert.Equal(t, []enums.PaymentMethod{enums.PaymentMethodCheckout}, f.payments.calls)
	assert.Equal(t, "https://pay.example/checkout/"+res.Order.ID.String(), res.RedirectURL)
}

func TestGatewayFailureKeepsCartAndPendingOrder(t *testing.T) {
	f := newFixture(t)
	f.fill(t, 2)
	f.payments.err = pkgerrors.New(pkgerrors.CodeGateway, "Não foi possível iniciar o pagamento. Tente novamente.")

	_, err := f.svc.Submit(context.Background(), f.tc, session, form(enums.PaymentMethodPix))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeGateway))

	view, err := f.cart.Get(context.Background(), f.tc, session)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Count)
	assert.Equal(t, int64(1), f.orderCount(t))
}

func TestSummaryListsSettleableMethods(t *testing.T) {
	f := newFixture(t)
	f.fill(t, 1)
	f.tc.Tenant.PaymentMethods = types.NewStringSet("pix", "cash")

	summary, err := f.svc.Summary(context.Background(), f.tc, session)
	require.NoError(t, err)
	assert.Equal(t, []enums.PaymentMethod{enums.PaymentMethodPix, enums.PaymentMethodCash}, summary.PaymentMethods)
	assert.Equal(t, "R$ 4,50", summary.FormattedDeliveryFee)
	assert.Equal(t, 1, summary.Cart.Count)

	f.tc.Tenant.GatewayAccessToken = nil
	assert.Equal(t, []enums.PaymentMethod{enums.PaymentMethodCash}, AvailableMethods(f.tc.Tenant))
}
