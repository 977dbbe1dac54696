package payments

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"go.uber.org/multierr"

	"github.com/angelmondragon/cardapy-backend/internal/orders"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/gateway"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/metrics"
)

const (
	deliveryLineID    = "delivery"
	deliveryLineTitle = "Taxa de Entrega"
	pixMethodID       = "pix"
	placeholderCPF    = "00000000000"
	fallbackLastName  = "Cliente"
	expiryLayout      = "2006-01-02T15:04:05.000Z07:00"
	qrSize            = 320
)

// Gateway is the slice of the gateway client this package calls.
type Gateway interface {
	CreatePreference(ctx context.Context, accessToken, idempotencyKey string, req gateway.PreferenceRequest) (*gateway.Preference, error)
	CreatePayment(ctx context.Context, accessToken, idempotencyKey string, req gateway.PaymentRequest) (*gateway.Payment, error)
	GetPayment(ctx context.Context, accessToken, paymentID string) (*gateway.Payment, error)
	SearchPayments(ctx context.Context, accessToken, externalReference string) ([]gateway.Payment, error)
}

type orderStore interface {
	Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*models.Order, error)
	ApplyPaymentStatus(ctx context.Context, tc *tenant.Context, id uuid.UUID, status enums.PaymentStatus) (*orders.PaymentOutcome, error)
}

// SyncResult describes what one authoritative gateway read did locally.
type SyncResult struct {
	Outcome string
	OrderID uuid.UUID
	Status  enums.PaymentStatus
}

// ReconcileReport summarizes one reconciliation pass over a tenant.
type ReconcileReport struct {
	Checked int
	Applied int
}

// Service bridges orders and the payment gateway.
type Service interface {
	CreatePreference(ctx context.Context, tc *tenant.Context, order *models.Order) (*models.Payment, error)
	CreateDirectPayment(ctx context.Context, tc *tenant.Context, order *models.Order) (*models.Payment, error)
	HandleWebhook(ctx context.Context, tc *tenant.Context, body []byte) (*SyncResult, error)
	Sync(ctx context.Context, tc *tenant.Context, gatewayPaymentID string) (*SyncResult, error)
	Reconcile(ctx context.Context, tc *tenant.Context, cutoff time.Time, limit int) (ReconcileReport, error)
	QRCodePNG(ctx context.Context, tc *tenant.Context, orderID uuid.UUID) ([]byte, error)
}

type ServiceParams struct {
	Gateway Gateway
	Orders  orderStore
	App     config.AppConfig
	Config  config.GatewayConfig
	Metrics *metrics.Platform
	Logger  *logger.Logger
	Now     func() time.Time
}

type service struct {
	gateway Gateway
	orders  orderStore
	app     config.AppConfig
	cfg     config.GatewayConfig
	metrics *metrics.Platform
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(p ServiceParams) (Service, error) {
	if p.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if p.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	now := p.Now
	if now == nil {
		now = time.Now
	}
	cfg := p.Config
	if cfg.Currency == "" {
		cfg.Currency = "BRL"
	}
	if cfg.MaxInstallments <= 0 {
		cfg.MaxInstallments = 12
	}
	if cfg.PreferenceExpiry <= 0 {
		cfg.PreferenceExpiry = 24 * time.Hour
	}
	return &service{
		gateway: p.Gateway,
		orders:  p.Orders,
		app:     p.App,
		cfg:     cfg,
		metrics: p.Metrics,
		logg:    p.Logger,
		now:     now,
	}, nil
}

func accessToken(tc *tenant.Context) (string, error) {
	if tc == nil || tc.DB == nil {
		return "", fmt.Errorf("tenant context required")
	}
	if !tc.Tenant.HasGatewayCredentials() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "Pagamento online indisponível para este restaurante.")
	}
	return strings.TrimSpace(*tc.Tenant.GatewayAccessToken), nil
}

func (s *service) notificationURL(tc *tenant.Context) string {
	return s.app.PlatformURL("/webhook/payment?tenant=" + url.QueryEscape(tc.Tenant.Subdomain))
}

func metadata(tc *tenant.Context, order *models.Order) map[string]string {
	return map[string]string{
		"restaurant_id": tc.ID().String(),
		"order_id":      order.ID.String(),
	}
}

// buildPreference assembles the hosted checkout payload for an order.
func (s *service) buildPreference(tc *tenant.Context, order *models.Order) gateway.PreferenceRequest {
	items := make([]gateway.PreferenceItem, 0, len(order.Items)+1)
	for _, item := range order.Items {
		items = append(items, gateway.PreferenceItem{
			ID:          item.MenuItemID.String(),
			Title:       item.Name,
			Description: deref(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   gateway.NewAmount(item.Price),
			CurrencyID:  s.cfg.Currency,
		})
	}
	if order.DeliveryFee.IsPositive() {
		items = append(items, gateway.PreferenceItem{
			ID:          deliveryLineID,
			Title:       deliveryLineTitle,
			Description: "Taxa de entrega do pedido",
			Quantity:    1,
			UnitPrice:   gateway.NewAmount(order.DeliveryFee),
			CurrencyID:  s.cfg.Currency,
		})
	}

	now := s.now().UTC()
	id := order.ID.String()
	sub := tc.Tenant.Subdomain
	return gateway.PreferenceRequest{
		Items: items,
		Payer: gateway.PreferencePayer{
			Name:  order.CustomerName,
			Email: deref(order.CustomerEmail),
			Phone: gateway.Phone{Number: order.CustomerPhone},
		},
		PaymentMethods:  gateway.PaymentMethods{Installments: s.cfg.MaxInstallments, DefaultInstallments: 1},
		Shipments:       gateway.Shipments{Cost: gateway.NewAmount(order.DeliveryFee), Mode: "not_specified"},
		NotificationURL: s.notificationURL(tc),
		BackURLs: gateway.BackURLs{
			Success: s.app.TenantURL(sub, "/pagamento/sucesso/"+id),
			Pending: s.app.TenantURL(sub, "/pagamento/pendente/"+id),
			Failure: s.app.TenantURL(sub, "/pagamento/falha/"+id),
		},
		AutoReturn:         "approved",
		ExternalReference:  id,
		Expires:            true,
		ExpirationDateFrom: now.Format(expiryLayout),
		ExpirationDateTo:   now.Add(s.cfg.PreferenceExpiry).Format(expiryLayout),
		Metadata:           metadata(tc, order),
	}
}

func (s *service) CreatePreference(ctx context.Context, tc *tenant.Context, order *models.Order) (*models.Payment, error) {
	token, err := accessToken(tc)
	if err != nil {
		return nil, err
	}
	r := NewRepository(tc.DB, tc.ID())
	if existing, err := r.FindByOrder(ctx, order.ID); err == nil {
		return existing, nil
	} else if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	pref, err := s.gateway.CreatePreference(ctx, token, order.ID.String(), s.buildPreference(tc, order))
	if err != nil {
		return nil, s.gatewayFailure(ctx, order, "create preference", err)
	}

	checkoutURL := pref.InitPoint
	payment := &models.Payment{
		OrderID:           order.ID,
		PreferenceID:      &pref.ID,
		Method:            enums.PaymentMethodCheckout,
		Amount:            order.Total,
		Status:            enums.PaymentStatusPending,
		ExternalReference: order.ID.String(),
		CheckoutURL:       &checkoutURL,
	}
	if err := r.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment")
	}
	s.logg.Info(s.logg.WithField(ctx, "preference_id", pref.ID), "gateway preference created")
	return payment, nil
}

// buildDirectPayment assembles the in-band PIX charge for an order.
func (s *service) buildDirectPayment(tc *tenant.Context, order *models.Order) gateway.PaymentRequest {
	first, last := splitName(order.CustomerName)
	return gateway.PaymentRequest{
		TransactionAmount: gateway.NewAmount(order.Total),
		Description:       fmt.Sprintf("Pedido #%s - %s", order.Number(), tc.Tenant.Name),
		PaymentMethodID:   pixMethodID,
		Payer: gateway.PaymentPayer{
			Email:          deref(order.CustomerEmail),
			FirstName:      first,
			LastName:       last,
			Identification: gateway.Identification{Type: "CPF", Number: document(order)},
		},
		NotificationURL:   s.notificationURL(tc),
		ExternalReference: order.ID.String(),
		Metadata:          metadata(tc, order),
	}
}

func (s *service) CreateDirectPayment(ctx context.Context, tc *tenant.Context, order *models.Order) (*models.Payment, error) {
	token, err := accessToken(tc)
	if err != nil {
		return nil, err
	}
	r := NewRepository(tc.DB, tc.ID())
	if existing, err := r.FindByOrder(ctx, order.ID); err == nil {
		return existing, nil
	} else if !db.IsNotFound(err) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	remote, err := s.gateway.CreatePayment(ctx, token, order.ID.String(), s.buildDirectPayment(tc, order))
	if err != nil {
		return nil, s.gatewayFailure(ctx, order, "create payment", err)
	}

	status, ok := enums.PaymentStatusFromGateway(remote.Status)
	if !ok {
		status = enums.PaymentStatusPending
	}
	gatewayID := remote.ID.String()
	data := remote.PointOfInteraction.TransactionData
	payment := &models.Payment{
		OrderID:           order.ID,
		GatewayPaymentID:  &gatewayID,
		Method:            enums.PaymentMethodPix,
		Amount:            order.Total,
		Status:            enums.PaymentStatusPending,
		StatusDetail:      optional(remote.StatusDetail),
		ExternalReference: order.ID.String(),
		QRCode:            optional(data.QRCode),
		QRCodeBase64:      optional(data.QRCodeBase64),
		TicketURL:         optional(data.TicketURL),
	}
	if err := r.Create(ctx, payment); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment")
	}
	s.logg.Info(s.logg.WithField(ctx, "gateway_payment_id", gatewayID), "pix payment created")

	if status != enums.PaymentStatusPending {
		if _, err := s.apply(ctx, tc, remote); err != nil {
			s.logg.WarnErr(ctx, "apply initial payment status", err)
		}
		if reloaded, err := r.FindByOrder(ctx, order.ID); err == nil {
			payment = reloaded
		}
	}
	return payment, nil
}

func (s *service) gatewayFailure(ctx context.Context, order *models.Order, op string, err error) error {
	s.logg.Error(ctx, "gateway "+op+" failed", err)
	return pkgerrors.Wrap(pkgerrors.CodeGateway, err, "Não foi possível iniciar o pagamento. Tente novamente.").
		WithDetails(map[string]any{"order_id": order.ID.String()})
}

// HandleWebhook trusts only the payment id of the notification. The status is
// always re-read from the gateway with the tenant's credentials.
func (s *service) HandleWebhook(ctx context.Context, tc *tenant.Context, body []byte) (*SyncResult, error) {
	var n gateway.Notification
	if err := json.Unmarshal(body, &n); err != nil {
		s.metrics.IncWebhook(metrics.WebhookRejected)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInconsistentWebhook, err, "invalid webhook payload")
	}
	if !strings.EqualFold(strings.TrimSpace(n.Type), "payment") {
		s.metrics.IncWebhook(metrics.WebhookIgnored)
		return &SyncResult{Outcome: metrics.WebhookIgnored}, nil
	}
	id, ok := n.PaymentID()
	if !ok {
		s.metrics.IncWebhook(metrics.WebhookRejected)
		return nil, pkgerrors.New(pkgerrors.CodeInconsistentWebhook, "webhook without payment reference")
	}

	res, err := s.Sync(ctx, tc, id)
	switch {
	case err == nil:
		s.metrics.IncWebhook(res.Outcome)
	case pkgerrors.Is(err, pkgerrors.CodeInconsistentWebhook):
		s.metrics.IncWebhook(metrics.WebhookRejected)
	default:
		s.metrics.IncWebhook(metrics.WebhookFailed)
	}
	return res, err
}

func (s *service) Sync(ctx context.Context, tc *tenant.Context, gatewayPaymentID string) (*SyncResult, error) {
	token, err := accessToken(tc)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInconsistentWebhook, err, "tenant has no gateway credentials")
	}
	ctx = s.logg.WithField(ctx, "gateway_payment_id", gatewayPaymentID)
	remote, err := s.gateway.GetPayment(ctx, token, gatewayPaymentID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			s.logg.Warn(ctx, "payment unknown to gateway")
			return nil, pkgerrors.Wrap(pkgerrors.CodeInconsistentWebhook, err, "payment not found at gateway")
		}
		s.logg.Error(ctx, "gateway payment lookup failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "fetch gateway payment")
	}
	return s.apply(ctx, tc, remote)
}

func (s *service) apply(ctx context.Context, tc *tenant.Context, remote *gateway.Payment) (*SyncResult, error) {
	orderID, err := orderReference(remote)
	if err != nil {
		return nil, err
	}
	if owner, ok := remote.Metadata["restaurant_id"].(string); ok && owner != "" && owner != tc.ID().String() {
		return nil, pkgerrors.New(pkgerrors.CodeInconsistentWebhook, "payment belongs to another restaurant")
	}
	status, ok := enums.PaymentStatusFromGateway(remote.Status)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInconsistentWebhook, "unknown gateway status "+remote.Status)
	}

	ctx = s.logg.WithOrderID(ctx, orderID.String())
	order, err := s.orders.Get(ctx, tc, orderID)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInconsistentWebhook, err, "payment references unknown order")
		}
		return nil, err
	}

	outcome, err := s.orders.ApplyPaymentStatus(ctx, tc, order.ID, status)
	if err != nil {
		return nil, err
	}
	if err := s.mirror(ctx, tc, order, remote, status); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror payment")
	}

	res := &SyncResult{Outcome: metrics.WebhookIgnored, OrderID: order.ID, Status: status}
	if outcome.PaymentChanged {
		res.Outcome = metrics.WebhookApplied
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payment_status": string(status),
		"order_status":   string(outcome.Order.Status),
		"outcome":        res.Outcome,
	}), "payment status synced")
	return res, nil
}

func (s *service) mirror(ctx context.Context, tc *tenant.Context, order *models.Order, remote *gateway.Payment, status enums.PaymentStatus) error {
	r := NewRepository(tc.DB, tc.ID())
	local, err := r.FindByOrder(ctx, order.ID)
	if err != nil {
		if !db.IsNotFound(err) {
			return err
		}
		gatewayID := remote.ID.String()
		local = &models.Payment{
			OrderID:           order.ID,
			GatewayPaymentID:  &gatewayID,
			Method:            order.PaymentMethod,
			Amount:            order.Total,
			Status:            enums.PaymentStatusPending,
			ExternalReference: order.ID.String(),
		}
		if err := r.Create(ctx, local); err != nil {
			return err
		}
	}
	return r.ApplyMirror(ctx, local.ID, Mirror{
		GatewayPaymentID: remote.ID.String(),
		Status:           status,
		StatusDetail:     remote.StatusDetail,
		Processed:        status != enums.PaymentStatusPending,
		At:               s.now().UTC(),
	})
}

func orderReference(remote *gateway.Payment) (uuid.UUID, error) {
	ref := strings.TrimSpace(remote.ExternalReference)
	if ref == "" {
		if v, ok := remote.Metadata["order_id"].(string); ok {
			ref = strings.TrimSpace(v)
		}
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeInconsistentWebhook, "payment without order reference")
	}
	return id, nil
}

// Reconcile re-reads pending gateway payments older than cutoff. A hosted
// checkout without a payment id is looked up by its order reference first.
// Payments the gateway no longer knows are skipped; every other failure is collected.
func (s *service) Reconcile(ctx context.Context, tc *tenant.Context, cutoff time.Time, limit int) (ReconcileReport, error) {
	var report ReconcileReport
	if tc == nil || tc.DB == nil {
		return report, fmt.Errorf("tenant context required")
	}
	stale, err := orders.NewRepository(tc.DB, tc.ID()).ListAwaitingPayment(ctx, cutoff, limit)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending payments")
	}

	var errs error
	for _, order := range stale {
		if order.Payment == nil {
			continue
		}
		report.Checked++
		paymentID, err := s.resolvePaymentID(ctx, tc, order)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if paymentID == "" {
			continue
		}
		res, err := s.Sync(ctx, tc, paymentID)
		if err != nil {
			if pkgerrors.Is(err, pkgerrors.CodeInconsistentWebhook) {
				continue
			}
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
			continue
		}
		if res.Outcome == metrics.WebhookApplied {
			report.Applied++
		}
	}
	return report, errs
}

// resolvePaymentID returns "" when the customer has not paid at the gateway yet.
func (s *service) resolvePaymentID(ctx context.Context, tc *tenant.Context, order models.Order) (string, error) {
	if id := deref(order.Payment.GatewayPaymentID); id != "" {
		return id, nil
	}
	token, err := accessToken(tc)
	if err != nil {
		return "", err
	}
	results, err := s.gateway.SearchPayments(ctx, token, order.ID.String())
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeGateway, err, "search gateway payments")
	}
	for _, remote := range results {
		if id := strings.TrimSpace(remote.ID.String()); id != "" {
			return id, nil
		}
	}
	return "", nil
}

// QRCodePNG returns the PIX QR image, decoding the gateway image when present
// and rendering the copy-paste payload otherwise.
func (s *service) QRCodePNG(ctx context.Context, tc *tenant.Context, orderID uuid.UUID) ([]byte, error) {
	if tc == nil || tc.DB == nil {
		return nil, fmt.Errorf("tenant context required")
	}
	p, err := NewRepository(tc.DB, tc.ID()).FindByOrder(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if encoded := deref(p.QRCodeBase64); encoded != "" {
		if png, err := base64.StdEncoding.DecodeString(encoded); err == nil {
			return png, nil
		}
	}
	payload := deref(p.QRCode)
	if payload == "" {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment has no qr code")
	}
	png, err := qrcode.Encode(payload, qrcode.Medium, qrSize)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render qr code")
	}
	return png, nil
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return fallbackLastName, fallbackLastName
	}
	if len(parts) == 1 {
		return parts[0], fallbackLastName
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func document(order *models.Order) string {
	if d := strings.Map(digitsOnly, deref(order.CustomerDocument)); len(d) == 11 {
		return d
	}
	return placeholderCPF
}

func digitsOnly(r rune) rune {
	if r >= '0' && r <= '9' {
		return r
	}
	return -1
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
