package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/cardapy-backend/api/responses"
	"github.com/angelmondragon/cardapy-backend/api/validators"
	"github.com/angelmondragon/cardapy-backend/internal/checkout"
	"github.com/angelmondragon/cardapy-backend/internal/orders"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
)

type checkoutService interface {
	Summary(ctx context.Context, tc *tenant.Context, sessionID string) (*checkout.Summary, error)
	Submit(ctx context.Context, tc *tenant.Context, sessionID string, in orders.CreateInput) (*checkout.Result, error)
}

type checkoutRequest struct {
	CustomerName         string  `json:"customer_name" validate:"required,max=120"`
	CustomerPhone        string  `json:"customer_phone" validate:"required,max=30"`
	CustomerEmail        *string `json:"customer_email" validate:"omitempty,email"`
	CustomerDocument     *string `json:"customer_document" validate:"omitempty,max=20"`
	DeliveryMode         string  `json:"delivery_mode" validate:"required,oneof=delivery pickup"`
	DeliveryAddress      *string `json:"delivery_address" validate:"required_if=DeliveryMode delivery,omitempty,max=255"`
	DeliveryNumber       *string `json:"delivery_number" validate:"omitempty,max=20"`
	DeliveryComplement   *string `json:"delivery_complement" validate:"omitempty,max=100"`
	DeliveryNeighborhood *string `json:"delivery_neighborhood" validate:"omitempty,max=100"`
	DeliveryCity         *string `json:"delivery_city" validate:"omitempty,max=100"`
	DeliveryZip          *string `json:"delivery_zip" validate:"omitempty,max=10"`
	PaymentMethod        string  `json:"payment_method" validate:"required,oneof=pix checkout cash"`
	Notes                *string `json:"notes" validate:"omitempty,max=500"`
}

func (p checkoutRequest) toInput() orders.CreateInput {
	in := orders.CreateInput{
		CustomerName:         validators.SanitizeString(p.CustomerName, 120),
		CustomerPhone:        validators.SanitizeString(p.CustomerPhone, 30),
		CustomerEmail:        validators.SanitizeOptional(p.CustomerEmail, 255),
		CustomerDocument:     validators.SanitizeOptional(p.CustomerDocument, 20),
		DeliveryMode:         enums.DeliveryMode(p.DeliveryMode),
		DeliveryAddress:      validators.SanitizeOptional(p.DeliveryAddress, 255),
		DeliveryNumber:       validators.SanitizeOptional(p.DeliveryNumber, 20),
		DeliveryComplement:   validators.SanitizeOptional(p.DeliveryComplement, 100),
		DeliveryNeighborhood: validators.SanitizeOptional(p.DeliveryNeighborhood, 100),
		DeliveryCity:         validators.SanitizeOptional(p.DeliveryCity, 100),
		PaymentMethod:        enums.PaymentMethod(p.PaymentMethod),
		Notes:                validators.SanitizeOptional(p.Notes, 500),
	}
	if p.DeliveryZip != nil {
		zip := validators.DigitsOnly(*p.DeliveryZip)
		in.DeliveryZip = validators.SanitizeOptional(&zip, 8)
	}
	return in
}

type checkoutResponse struct {
	Order       orders.OrderDTO `json:"order"`
	RedirectURL string          `json:"redirect_url"`
}

func CheckoutSummary(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout service")
			return
		}
		tc, sessionID, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		summary, err := svc.Summary(r.Context(), tc, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// CheckoutSubmit places the order. The response tells the client where to go
// next: the gateway's hosted checkout or the order page.
func CheckoutSubmit(svc checkoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "checkout service")
			return
		}
		tc, sessionID, ok := requireSession(w, r, logg)
		if !ok {
			return
		}
		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		res, err := svc.Submit(r.Context(), tc, sessionID, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order := *res.Order
		if res.Payment != nil {
			order.Payment = res.Payment
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:       orders.FromModel(order),
			RedirectURL: res.RedirectURL,
		})
	}
}
