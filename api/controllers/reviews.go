package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardapy-backend/api/responses"
	"github.com/angelmondragon/cardapy-backend/api/validators"
	"github.com/angelmondragon/cardapy-backend/internal/reviews"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/pagination"
)

type submitReviewRequest struct {
	CustomerName string     `json:"customer_name" validate:"omitempty,max=120"`
	Rating       int        `json:"rating" validate:"required,min=1,max=5"`
	Comment      string     `json:"comment" validate:"omitempty,max=1000"`
	MenuItemID   *uuid.UUID `json:"menu_item_id"`
}

// ReviewSubmit stores an unapproved review of a delivered order.
func ReviewSubmit(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "review service")
			return
		}
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload submitReviewRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		review, err := svc.Submit(r.Context(), tc, orderID, reviews.SubmitInput{
			CustomerName: validators.SanitizeString(payload.CustomerName, 120),
			Rating:       payload.Rating,
			Comment:      validators.SanitizeString(payload.Comment, 1000),
			MenuItemID:   payload.MenuItemID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, review)
	}
}

// ReviewList pages approved reviews with ?limit= and ?cursor=.
func ReviewList(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "review service")
			return
		}
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListApproved(r.Context(), tc, pagination.Params{Limit: limit, Cursor: r.URL.Query().Get("cursor")})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ReviewApprove publishes a review. Approving twice is a no-op.
func ReviewApprove(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "review service")
			return
		}
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "reviewId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		review, err := svc.Approve(r.Context(), tc, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, review)
	}
}
