package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardapy-backend/api/responses"
	"github.com/angelmondragon/cardapy-backend/internal/payments"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
)

const maxWebhookBytes = 64 << 10

type webhookHandler interface {
	HandleWebhook(ctx context.Context, tc *tenant.Context, body []byte) (*payments.SyncResult, error)
}

type webhookResponse struct {
	Outcome string `json:"outcome"`
	OrderID string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

// PaymentWebhook acknowledges gateway notifications. Notifications that cannot
// be matched to a local payment answer 200 so the gateway stops retrying;
// gateway and storage failures answer 5xx so it retries.
func PaymentWebhook(svc webhookHandler, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "payment service")
			return
		}
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInconsistentWebhook, err, "read webhook body"))
			return
		}
		res, err := svc.HandleWebhook(r.Context(), tc, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := webhookResponse{Outcome: res.Outcome, Status: string(res.Status)}
		if res.OrderID != uuid.Nil {
			out.OrderID = res.OrderID.String()
		}
		responses.WriteSuccess(w, out)
	}
}
