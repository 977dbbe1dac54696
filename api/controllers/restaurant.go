package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/cardapy-backend/api/responses"
	"github.com/angelmondragon/cardapy-backend/internal/checkout"
	"github.com/angelmondragon/cardapy-backend/pkg/config"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/storage"
	"github.com/angelmondragon/cardapy-backend/pkg/types"
)

type restaurantFinder interface {
	FindActiveBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
}

type restaurantResponse struct {
	Subdomain            string                `json:"subdomain"`
	Name                 string                `json:"name"`
	Description          *string               `json:"description,omitempty"`
	Phone                *string               `json:"phone,omitempty"`
	Email                *string               `json:"email,omitempty"`
	Address              *string               `json:"address,omitempty"`
	City                 *string               `json:"city,omitempty"`
	LogoURL              string                `json:"logo_url,omitempty"`
	BannerURL            string                `json:"banner_url,omitempty"`
	URL                  string                `json:"url"`
	IsOpen               bool                  `json:"is_open"`
	OperatingHours       types.OperatingHours  `json:"operating_hours"`
	DeliveryFee          string                `json:"delivery_fee"`
	FormattedDeliveryFee string                `json:"formatted_delivery_fee"`
	MinimumOrder         string                `json:"minimum_order"`
	DeliveryTimeMinutes  int                   `json:"delivery_time_minutes"`
	PaymentMethods       []enums.PaymentMethod `json:"payment_methods"`
}

func newRestaurantResponse(t models.Tenant, root storage.Root, app config.AppConfig, now time.Time) restaurantResponse {
	return restaurantResponse{
		Subdomain:            t.Subdomain,
		Name:                 t.Name,
		Description:          t.Description,
		Phone:                t.Phone,
		Email:                t.Email,
		Address:              t.Address,
		City:                 t.City,
		LogoURL:              root.URLPtr(t.LogoPath),
		BannerURL:            root.URLPtr(t.BannerPath),
		URL:                  app.TenantURL(t.Subdomain, "/"),
		IsOpen:               t.IsOpen(now),
		OperatingHours:       t.OperatingHours,
		DeliveryFee:          t.DeliveryFee.StringFixed(2),
		FormattedDeliveryFee: types.FormatBRL(t.DeliveryFee),
		MinimumOrder:         t.MinimumOrder.StringFixed(2),
		DeliveryTimeMinutes:  t.DeliveryTimeMinutes,
		PaymentMethods:       checkout.AvailableMethods(t),
	}
}

// RestaurantProfile serves the public profile of an active tenant on the
// platform host.
func RestaurantProfile(dir restaurantFinder, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if dir == nil {
			unavailable(w, r, logg, "tenant directory")
			return
		}
		subdomain := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "subdomain")))
		if subdomain == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "restaurant not found"))
			return
		}
		t, err := dir.FindActiveBySubdomain(r.Context(), subdomain)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		root, err := storage.TenantRoot(cfg.Storage, t.ID.String())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storage root"))
			return
		}
		responses.WriteSuccess(w, newRestaurantResponse(*t, root, cfg.App, time.Now()))
	}
}

// RestaurantAbout serves the profile of the bound tenant.
func RestaurantAbout(cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}
		responses.WriteSuccess(w, newRestaurantResponse(tc.Tenant, tc.Target.Storage, cfg.App, time.Now()))
	}
}
