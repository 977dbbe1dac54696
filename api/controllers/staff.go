package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardapy-backend/api/responses"
	"github.com/angelmondragon/cardapy-backend/api/validators"
	"github.com/angelmondragon/cardapy-backend/internal/catalog"
	"github.com/angelmondragon/cardapy-backend/internal/orders"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
)

type orderAdvancer interface {
	Advance(ctx context.Context, tc *tenant.Context, id uuid.UUID, to enums.OrderStatus) (*models.Order, error)
}

type availabilitySetter interface {
	SetAvailability(ctx context.Context, tc *tenant.Context, id uuid.UUID, available bool) (*catalog.ItemDTO, error)
}

type advanceRequest struct {
	Status string `json:"status" validate:"omitempty,oneof=confirmed preparing ready delivering delivered"`
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available" validate:"required"`
}

// StaffAdvanceOrder moves an order one step along its progression. An explicit
// status must name that next step; repeating the current status is a no-op.
func StaffAdvanceOrder(svc orderAdvancer, logg *logger.Logger) http.HandlerFunc {
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
		var payload advanceRequest
		if err := decodeOptionalBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ctx := logg.WithOrderID(r.Context(), id.String())
		order, err := svc.Advance(ctx, tc, id, enums.OrderStatus(payload.Status))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		ctx = logg.WithField(ctx, "status", string(order.Status))
		logg.Info(ctx, "order advanced")
		responses.WriteSuccess(w, orders.FromModel(*order))
	}
}

func StaffCancelOrder(svc orderCanceller, logg *logger.Logger) http.HandlerFunc {
	return cancelHandler(svc, logg, "staff")
}

func StaffSetItemAvailability(svc availabilitySetter, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload availabilityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		item, err := svc.SetAvailability(r.Context(), tc, id, *payload.IsAvailable)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}
