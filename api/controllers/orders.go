package controllers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardapy-backend/api/responses"
	"github.com/angelmondragon/cardapy-backend/api/validators"
	"github.com/angelmondragon/cardapy-backend/internal/orders"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
)

const maxReasonLength = 255

type orderReader interface {
	Get(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*models.Order, error)
}

type orderCanceller interface {
	orderReader
	Cancel(ctx context.Context, tc *tenant.Context, id uuid.UUID, reason string) (*models.Order, error)
}

type qrRenderer interface {
	QRCodePNG(ctx context.Context, tc *tenant.Context, orderID uuid.UUID) ([]byte, error)
}

type cancelRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=255"`
}

type trackingStep struct {
	Status  enums.OrderStatus `json:"status"`
	Label   string            `json:"label"`
	Done    bool              `json:"done"`
	Current bool              `json:"current"`
}

type trackingResponse struct {
	Order orders.OrderDTO `json:"order"`
	Steps []trackingStep  `json:"steps"`
}

// Payment return outcomes as they appear in the callback URL.
const (
	ReturnSuccess = "sucesso"
	ReturnPending = "pendente"
	ReturnFailure = "falha"
)

var returnMessages = map[string]string{
	ReturnSuccess: "Pagamento aprovado! Seu pedido foi confirmado.",
	ReturnPending: "Pagamento em processamento. Avisaremos quando for confirmado.",
	ReturnFailure: "O pagamento não foi concluído. Tente novamente ou escolha outra forma de pagamento.",
}

type paymentReturnResponse struct {
	Outcome string          `json:"outcome"`
	Message string          `json:"message"`
	Order   orders.OrderDTO `json:"order"`
}

func loadOrder(w http.ResponseWriter, r *http.Request, svc orderReader, logg *logger.Logger) (*models.Order, bool) {
	tc, ok := requireTenant(w, r, logg)
	if !ok {
		return nil, false
	}
	id, err := validators.ParseUUIDParam(r, "orderId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	order, err := svc.Get(r.Context(), tc, id)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return nil, false
	}
	return order, true
}

func OrderDetail(svc orderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "order service")
			return
		}
		order, ok := loadOrder(w, r, svc, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, orders.FromModel(*order))
	}
}

// OrderTrack adds the progression timeline for the order's delivery mode.
func OrderTrack(svc orderReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "order service")
			return
		}
		order, ok := loadOrder(w, r, svc, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, trackingResponse{Order: orders.FromModel(*order), Steps: trackingSteps(*order)})
	}
}

func trackingSteps(o models.Order) []trackingStep {
	flow := []enums.OrderStatus{
		enums.OrderStatusPending,
		enums.OrderStatusConfirmed,
		enums.OrderStatusPreparing,
		enums.OrderStatusReady,
	}
	if o.DeliveryMode == enums.DeliveryModeDelivery {
		flow = append(flow, enums.OrderStatusDelivering)
	}
	flow = append(flow, enums.OrderStatusDelivered)

	current := -1
	for i, s := range flow {
		if s == o.Status {
			current = i
		}
	}
	steps := make([]trackingStep, 0, len(flow))
	for i, s := range flow {
		steps = append(steps, trackingStep{
			Status:  s,
			Label:   s.Label(),
			Done:    current >= 0 && i <= current,
			Current: i == current,
		})
	}
	return steps
}

func OrderPixQRCode(svc qrRenderer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "payment service")
			return
		}
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		png, err := svc.QRCodePNG(r.Context(), tc, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		w.Header().Set("Cache-Control", "no-store")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}

// OrderCancel is the customer cancellation. The body is optional.
func OrderCancel(svc orderCanceller, logg *logger.Logger) http.HandlerFunc {
	return cancelHandler(svc, logg, "customer")
}

func cancelHandler(svc orderCanceller, logg *logger.Logger, actor string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "order service")
			return
		}
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cancelRequest
		if err := decodeOptionalBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithFields(r.Context(), map[string]any{"order_id": id.String(), "actor": actor})
		order, err := svc.Cancel(ctx, tc, id, validators.SanitizeString(payload.Reason, maxReasonLength))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		logg.Info(ctx, "order cancelled")
		responses.WriteSuccess(w, orders.FromModel(*order))
	}
}

// PaymentReturn renders the order after the gateway redirects back. It never
// changes order state; only webhooks and reconciliation do.
func PaymentReturn(svc orderReader, outcome string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "order service")
			return
		}
		msg, known := returnMessages[outcome]
		if !known {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "unknown payment outcome"))
			return
		}
		order, ok := loadOrder(w, r, svc, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, paymentReturnResponse{Outcome: outcome, Message: msg, Order: orders.FromModel(*order)})
	}
}

func decodeOptionalBody(r *http.Request, dest any) error {
	if r.Body == nil || r.Body == http.NoBody || r.ContentLength == 0 {
		return nil
	}
	return validators.DecodeJSONBody(r, dest)
}
