package payments

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cardapy-backend/internal/orders"
	"github.com/angelmondragon/cardapy-backend/internal/repo/repotest"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/gateway"
	"github.com/angelmondragon/cardapy-backend/pkg/metrics"
)

var fixedNow = time.Date(2025, 3, 14, 18, 30, 0, 0, time.UTC)

type fakeGateway struct {
	mu        sync.Mutex
	remote    map[string]*gateway.Payment
	prefs     []gateway.PreferenceRequest
	charges   []gateway.PaymentRequest
	keys      []string
	tokens    []string
	createErr error
	getErr    error
	searches  []string
	nextID    int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{remote: map[string]*gateway.Payment{}, nextID: 9000}
}

func (g *fakeGateway) CreatePreference(_ context.Context, token, key string, req gateway.PreferenceRequest) (*gateway.Preference, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.prefs = append(g.prefs, req)
	g.keys = append(g.keys, key)
	g.tokens = append(g.tokens, token)
	return &gateway.Preference{ID: "pref-" + key[:8], InitPoint: "https://pay.example/checkout/" + key}, nil
}

func (g *fakeGateway) CreatePayment(_ context.Context, token, key string, req gateway.PaymentRequest) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.charges = append(g.charges, req)
	g.keys = append(g.keys, key)
	g.nextID++
	p := &gateway.Payment{
		ID:                gateway.ID(strconv.Itoa(g.nextID)),
		Status:            "pending",
		StatusDetail:      "pending_waiting_transfer",
		ExternalReference: req.ExternalReference,
		Metadata:          map[string]any{"restaurant_id": req.Metadata["restaurant_id"], "order_id": req.Metadata["order_id"]},
	}
	p.PointOfInteraction.TransactionData = gateway.TransactionData{
		QRCode:       "00020126580014br.gov.bcb.pix",
		QRCodeBase64: base64.StdEncoding.EncodeToString([]byte("png-bytes")),
		TicketURL:    "https://pay.example/ticket",
	}
	copied := *p
	g.remote[p.ID.String()] = &copied
	return p, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, _ string, id string) (*gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	p, ok := g.remote[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found at gateway")
	}
	copied := *p
	return &copied, nil
}

func (g *fakeGateway) SearchPayments(_ context.Context, _ string, ref string) ([]gateway.Payment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return nil, g.getErr
	}
	g.searches = append(g.searches, ref)
	var out []gateway.Payment
	for _, p := range g.remote {
		if p.ExternalReference == ref {
			out = append(out, *p)
		}
	}
	return out, nil
}

// settle registers or updates the gateway-side state of a payment.
func (g *fakeGateway) settle(id string, orderID uuid.UUID, tenantID uuid.UUID, status string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.remote[id] = &gateway.Payment{
		ID:                gateway.ID(id),
		Status:            status,
		StatusDetail:      "accredited",
		ExternalReference: orderID.String(),
		Metadata:          map[string]any{"restaurant_id": tenantID.String()},
	}
}

type fixture struct {
	tc     *tenant.Context
	gw     *fakeGateway
	orders orders.Service
	svc    Service
	burger models.MenuItem
}

func strPtr(s string) *string { return &s }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := repotest.NewShard(t)
	tn := models.Tenant{
		ID:                 uuid.New(),
		Subdomain:          "bobscafe",
		Name:               "Bob's Café",
		ShardID:            3,
		IsActive:           true,
		DeliveryFee:        decimal.RequireFromString("5.00"),
		GatewayPublicKey:   strPtr("APP_USR-public"),
		GatewayAccessToken: strPtr("APP_USR-secret"),
	}
	target, err := tenant.TargetFor(config.TenancyConfig{DatabaseBase: "cardapy"}, config.StorageConfig{BaseDir: "/srv"}, tn)
	require.NoError(t, err)
	tc := &tenant.Context{Tenant: tn, Target: target, DB: conn}

	cat := models.Category{TenantID: tn.ID, Name: "Lanches", IsActive: true}
	require.NoError(t, conn.Create(&cat).Error)
	burger := models.MenuItem{TenantID: tn.ID, CategoryID: cat.ID, Name: "X-Burger", Price: decimal.RequireFromString("15.00"), IsAvailable: true}
	require.NoError(t, conn.Create(&burger).Error)

	orderSvc, err := orders.NewService(orders.ServiceParams{Now: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	gw := newFakeGateway()
	svc, err := NewService(ServiceParams{
		Gateway: gw,
		Orders:  orderSvc,
		App:     config.AppConfig{PlatformDomain: "cardapy.com.br", PublicScheme: "https"},
		Config:  config.GatewayConfig{PreferenceExpiry: 24 * time.Hour, Currency: "BRL", MaxInstallments: 12},
		Metrics: metrics.NewPlatform(nil),
		Now:     func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return &fixture{tc: tc, gw: gw, orders: orderSvc, svc: svc, burger: burger}
}

func (f *fixture) order(t *testing.T, mode enums.DeliveryMode, method enums.PaymentMethod, name string) *models.Order {
	t.Helper()
	in := orders.CreateInput{
		CustomerName:  name,
		CustomerPhone: "11999990000",
		CustomerEmail: strPtr("cliente@example.com"),
		DeliveryMode:  mode,
		PaymentMethod: method,
		Lines:         []orders.LineInput{{MenuItemID: f.burger.ID, Quantity: 2}},
	}
	if mode == enums.DeliveryModeDelivery {
		in.DeliveryAddress = strPtr("Rua das Flores, 42")
	}
	order, err := f.orders.Create(context.Background(), f.tc, in)
	require.NoError(t, err)
	return order
}

func (f *fixture) payment(t *testing.T, orderID uuid.UUID) *models.Payment {
	t.Helper()
	p, err := NewRepository(f.tc.DB, f.tc.ID()).FindByOrder(context.Background(), orderID)
	require.NoError(t, err)
	return p
}

func webhook(id string) []byte {
	return []byte(`{"type":"payment","action":"payment.updated","data":{"id":"` + id + `"}}`)
}

func TestCreatePreferenceBuildsCheckoutPayload(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.DeliveryModeDelivery, enums.PaymentMethodCheckout, "Maria Souza")

	payment, err := f.svc.CreatePreference(context.Background(), f.tc, order)
	require.NoError(t, err)

	require.Len(t, f.gw.prefs, 1)
	req := f.gw.prefs[0]
	require.Len(t, req.Items, 2)
	assert.Equal(t, "X-Burger", req.Items[0].Title)
	assert.Equal(t, 2, req.Items[0].Quantity)
	assert.Equal(t, "delivery", req.Items[1].ID)
	assert.Equal(t, "Taxa de Entrega", req.Items[1].Title)
	assert.Equal(t, "5.00", req.Items[1].UnitPrice.StringFixed(2))
	assert.Equal(t, "https://api.cardapy.com.br/webhook/payment?tenant=bobscafe", req.NotificationURL)
	assert.Equal(t, "https://bobscafe.cardapy.com.br/pagamento/sucesso/"+order.ID.String(), req.BackURLs.Success)
	assert.Equal(t, "https://bobscafe.cardapy.com.br/pagamento/falha/"+order.ID.String(), req.BackURLs.Failure)
	assert.Equal(t, "approved", req.AutoReturn)
	assert.True(t, req.Expires)
	assert.Equal(t, "2025-03-14T18:30:00.000Z", req.ExpirationDateFrom)
	assert.Equal(t, "2025-03-15T18:30:00.000Z", req.ExpirationDateTo)
	assert.Equal(t, 12, req.PaymentMethods.Installments)
	assert.Equal(t, order.ID.String(), req.ExternalReference)
	assert.Equal(t, f.tc.ID().String(), req.Metadata["restaurant_id"])
	assert.Equal(t, order.ID.String(), f.gw.keys[0], "order id is the idempotency key")
	assert.Equal(t, "APP_USR-secret", f.gw.tokens[0])

	assert.Equal(t, enums.PaymentMethodCheckout, payment.Method)
	require.NotNil(t, payment.CheckoutURL)
	assert.Contains(t, *payment.CheckoutURL, order.ID.String())
	assert.Nil(t, payment.GatewayPaymentID)

	again, err := f.svc.CreatePreference(context.Background(), f.tc, order)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, again.ID)
	assert.Len(t, f.gw.prefs, 1, "an existing payment is never recreated")
}

func TestPickupPreferenceHasNoDeliveryLine(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodCheckout, "Maria")

	_, err := f.svc.CreatePreference(context.Background(), f.tc, order)
	require.NoError(t, err)
	require.Len(t, f.gw.prefs[0].Items, 1)
}

func TestGatewayFailureIsSurfacedWithOrderID(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodPix, "Maria")
	f.gw.createErr = pkgerrors.Wrap(pkgerrors.CodeGateway, errors.New("context deadline exceeded"), "execute create_payment request")

	_, err := f.svc.CreateDirectPayment(context.Background(), f.tc, order)
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeGateway))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, order.ID.String(), details["order_id"])

	_, err = NewRepository(f.tc.DB, f.tc.ID()).FindByOrder(context.Background(), order.ID)
	assert.Error(t, err, "no payment row after a failed creation")
	loaded, err := f.orders.Get(context.Background(), f.tc, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, loaded.Status)
}

func TestDirectPaymentStoresArtifacts(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodPix, "Maria")

	payment, err := f.svc.CreateDirectPayment(context.Background(), f.tc, order)
	require.NoError(t, err)

	req := f.gw.charges[0]
	assert.Equal(t, "pix", req.PaymentMethodID)
	assert.Equal(t, "Maria", req.Payer.FirstName)
	assert.Equal(t, "Cliente", req.Payer.LastName)
	assert.Equal(t, "00000000000", req.Payer.Identification.Number)
	assert.Equal(t, "Pedido #"+order.Number()+" - Bob's Café", req.Description)
	assert.Equal(t, "30.00", req.TransactionAmount.StringFixed(2))

	require.NotNil(t, payment.GatewayPaymentID)
	require.NotNil(t, payment.QRCode)
	assert.Equal(t, enums.PaymentStatusPending, payment.Status)

	png, err := f.svc.QRCodePNG(context.Background(), f.tc, order.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), png)
}

func TestQRCodeRenderedFromPayload(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodPix, "Maria")
	require.NoError(t, NewRepository(f.tc.DB, f.tc.ID()).Create(context.Background(), &models.Payment{
		OrderID: order.ID, Method: enums.PaymentMethodPix, Amount: order.Total,
		Status: enums.PaymentStatusPending, ExternalReference: order.ID.String(),
		QRCode: strPtr("00020126580014br.gov.bcb.pix"),
	}))

	png, err := f.svc.QRCodePNG(context.Background(), f.tc, order.ID)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(png), "\x89PNG"))
}

func TestWebhookTrustsOnlyGatewayLookup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, enums.DeliveryModeDelivery, enums.PaymentMethodCheckout, "Maria Souza")
	_, err := f.svc.CreatePreference(ctx, f.tc, order)
	require.NoError(t, err)

	f.gw.settle("777", order.ID, f.tc.ID(), "pending")
	forged := []byte(`{"type":"payment","data":{"id":"777"},"status":"approved"}`)
	res, err := f.svc.HandleWebhook(ctx, f.tc, forged)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPending, res.Status)
	loaded, err := f.orders.Get(ctx, f.tc, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, loaded.Status)

	f.gw.settle("777", order.ID, f.tc.ID(), "approved")
	res, err = f.svc.HandleWebhook(ctx, f.tc, webhook("777"))
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookApplied, res.Outcome)

	loaded, err = f.orders.Get(ctx, f.tc, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, loaded.Status)
	assert.Equal(t, enums.PaymentStatusApproved, loaded.PaymentStatus)

	payment := f.payment(t, order.ID)
	assert.Equal(t, enums.PaymentStatusApproved, payment.Status)
	require.NotNil(t, payment.GatewayPaymentID)
	assert.Equal(t, "777", *payment.GatewayPaymentID)
	require.NotNil(t, payment.ProcessedAt)
	processed := *payment.ProcessedAt
	confirmed := *loaded.ConfirmedAt

	res, err = f.svc.HandleWebhook(ctx, f.tc, webhook("777"))
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookIgnored, res.Outcome)
	again, err := f.orders.Get(ctx, f.tc, order.ID)
	require.NoError(t, err)
	assert.True(t, again.ConfirmedAt.Equal(confirmed))
	assert.True(t, f.payment(t, order.ID).ProcessedAt.Equal(processed))
}

func TestWebhookInconsistentPayloads(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodPix, "Maria")
	f.gw.settle("555", order.ID, uuid.New(), "approved")

	cases := map[string][]byte{
		"unparseable":      []byte(`{"type":`),
		"no reference":     []byte(`{"type":"payment","data":{}}`),
		"unknown payment":  webhook("404"),
		"foreign merchant": webhook("555"),
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.HandleWebhook(ctx, f.tc, body)
			require.Error(t, err)
			assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInconsistentWebhook), "got %v", err)
		})
	}

	loaded, err := f.orders.Get(ctx, f.tc, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, loaded.Status)
	assert.Equal(t, enums.PaymentStatusPending, loaded.PaymentStatus)
}

func TestWebhookIgnoresOtherTopics(t *testing.T) {
	f := newFixture(t)
	res, err := f.svc.HandleWebhook(context.Background(), f.tc, []byte(`{"type":"merchant_order","data":{"id":"1"}}`))
	require.NoError(t, err)
	assert.Equal(t, metrics.WebhookIgnored, res.Outcome)
}

func TestWebhookLookupFailureIsRetryable(t *testing.T) {
	f := newFixture(t)
	order := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodPix, "Maria")
	f.gw.settle("321", order.ID, f.tc.ID(), "approved")
	f.gw.getErr = pkgerrors.Wrap(pkgerrors.CodeGateway, errors.New("timeout"), "execute get_payment request")

	_, err := f.svc.HandleWebhook(context.Background(), f.tc, webhook("321"))
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeGateway))
	assert.False(t, pkgerrors.Is(err, pkgerrors.CodeInconsistentWebhook))
}

func TestRejectedPaymentCancelsThroughWebhook(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodPix, "Maria")
	payment, err := f.svc.CreateDirectPayment(ctx, f.tc, order)
	require.NoError(t, err)

	f.gw.settle(*payment.GatewayPaymentID, order.ID, f.tc.ID(), "cancelled")
	_, err = f.svc.HandleWebhook(ctx, f.tc, webhook(*payment.GatewayPaymentID))
	require.NoError(t, err)

	loaded, err := f.orders.Get(ctx, f.tc, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, loaded.Status)
	assert.Equal(t, orders.PaymentRejectedReason, *loaded.CancellationReason)
	assert.Equal(t, enums.PaymentStatusRejected, f.payment(t, order.ID).Status)
}

func TestReconcileSettlesStalePayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stale := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodPix, "Maria")
	stalePayment, err := f.svc.CreateDirectPayment(ctx, f.tc, stale)
	require.NoError(t, err)
	fresh := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodPix, "João")
	freshPayment, err := f.svc.CreateDirectPayment(ctx, f.tc, fresh)
	require.NoError(t, err)
	require.NoError(t, f.tc.DB.Model(&models.Order{}).Where("id = ?", fresh.ID).
		Update("created_at", fixedNow.Add(30*time.Minute)).Error)
	cash := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodCash, "Ana")

	f.gw.settle(*stalePayment.GatewayPaymentID, stale.ID, f.tc.ID(), "approved")
	f.gw.settle(*freshPayment.GatewayPaymentID, fresh.ID, f.tc.ID(), "approved")

	report, err := f.svc.Reconcile(ctx, f.tc, fixedNow.Add(15*time.Minute), 50)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 1, Applied: 1}, report)

	for id, want := range map[uuid.UUID]enums.OrderStatus{
		stale.ID: enums.OrderStatusConfirmed,
		fresh.ID: enums.OrderStatusPending,
		cash.ID:  enums.OrderStatusPending,
	} {
		loaded, err := f.orders.Get(ctx, f.tc, id)
		require.NoError(t, err)
		assert.Equal(t, want, loaded.Status)
	}

	report, err = f.svc.Reconcile(ctx, f.tc, fixedNow.Add(15*time.Minute), 50)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{}, report, "settled orders leave the sweep")
}

func TestReconcileFindsHostedCheckoutPaymentByReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	paid := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodCheckout, "Maria")
	_, err := f.svc.CreatePreference(ctx, f.tc, paid)
	require.NoError(t, err)
	unpaid := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodCheckout, "João")
	_, err = f.svc.CreatePreference(ctx, f.tc, unpaid)
	require.NoError(t, err)

	f.gw.settle("777", paid.ID, f.tc.ID(), "approved")

	report, err := f.svc.Reconcile(ctx, f.tc, fixedNow.Add(time.Hour), 50)
	require.NoError(t, err)
	assert.Equal(t, ReconcileReport{Checked: 2, Applied: 1}, report)
	assert.ElementsMatch(t, []string{paid.ID.String(), unpaid.ID.String()}, f.gw.searches)

	loaded, err := f.orders.Get(ctx, f.tc, paid.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, loaded.Status)
	assert.Equal(t, enums.PaymentStatusApproved, loaded.PaymentStatus)
	local := f.payment(t, paid.ID)
	require.NotNil(t, local.GatewayPaymentID)
	assert.Equal(t, "777", *local.GatewayPaymentID)

	still, err := f.orders.Get(ctx, f.tc, unpaid.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, still.Status)
}

func TestReconcileCollectsTransientFailures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, name := range []string{"Maria", "João"} {
		o := f.order(t, enums.DeliveryModePickup, enums.PaymentMethodPix, name)
		_, err := f.svc.CreateDirectPayment(ctx, f.tc, o)
		require.NoError(t, err)
	}
	f.gw.getErr = pkgerrors.New(pkgerrors.CodeGateway, "gateway down")

	report, err := f.svc.Reconcile(ctx, f.tc, fixedNow.Add(time.Hour), 50)
	require.Error(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Zero(t, report.Applied)
	assert.Len(t, multierr.Errors(err), 2)
}

func TestSplitName(t *testing.T) {
	cases := map[string][2]string{
		"Maria":             {"Maria", "Cliente"},
		"Maria da Silva":    {"Maria", "da Silva"},
		"  João   Pereira ": {"João", "Pereira"},
		"":                  {"Cliente", "Cliente"},
	}
	for in, want := range cases {
		first, last := splitName(in)
		if first != want[0] || last != want[1] {
			t.Fatalf("splitName(%q) = %q, %q; want %q, %q", in, first, last, want[0], want[1])
		}
	}
}
