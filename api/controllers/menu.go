package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardapy-backend/api/responses"
	"github.com/angelmondragon/cardapy-backend/api/validators"
	"github.com/angelmondragon/cardapy-backend/internal/catalog"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/pagination"
	"github.com/angelmondragon/cardapy-backend/pkg/types"
)

const maxSearchLength = 100

type menuReader interface {
	Menu(ctx context.Context, tc *tenant.Context, filter catalog.ItemFilter, page pagination.Page) (*catalog.MenuView, error)
	ListCategories(ctx context.Context, tc *tenant.Context) ([]catalog.CategoryDTO, error)
	Category(ctx context.Context, tc *tenant.Context, id uuid.UUID, page pagination.Page) (*catalog.CategoryDTO, *catalog.ItemPage, error)
	Item(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*catalog.ItemDTO, error)
	Search(ctx context.Context, tc *tenant.Context, q string, page pagination.Page) (*catalog.ItemPage, error)
}

type categoryPageResponse struct {
	Category *catalog.CategoryDTO `json:"category"`
	Items    []catalog.ItemDTO    `json:"items"`
}

type searchResponse struct {
	Query string            `json:"query"`
	Items []catalog.ItemDTO `json:"items"`
}

func menuPage(r *http.Request) pagination.Page {
	return pagination.ParsePage(r.URL.Query().Get("page"), pagination.MenuPageSize)
}

func pageMeta(p *catalog.ItemPage) types.PageMeta {
	return types.PageMeta{Page: p.Page, PageSize: p.Size, Total: p.Total, HasMore: p.HasMore}
}

// MenuIndex serves the landing menu. ?categoria= and ?q= filter the items and
// hide the featured strip.
func MenuIndex(svc menuReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}
		categoryID, err := validators.ParseOptionalUUIDQuery(r, "categoria")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := catalog.ItemFilter{
			CategoryID: categoryID,
			Query:      validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLength),
		}
		view, err := svc.Menu(r.Context(), tc, filter, menuPage(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

func MenuCategories(svc menuReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}
		cats, err := svc.ListCategories(r.Context(), tc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cats)
	}
}

func MenuCategory(svc menuReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "categoryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cat, items, err := svc.Category(r.Context(), tc, id, menuPage(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, categoryPageResponse{Category: cat, Items: items.Items}, pageMeta(items))
	}
}

func MenuItem(svc menuReader, logg *logger.Logger) http.HandlerFunc {
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
		item, err := svc.Item(r.Context(), tc, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, item)
	}
}

// MenuSearch answers ?q=. A blank query returns an empty page without touching
// the database.
func MenuSearch(svc menuReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(w, r, logg, "catalog service")
			return
		}
		tc, ok := requireTenant(w, r, logg)
		if !ok {
			return
		}
		q := validators.SanitizeString(r.URL.Query().Get("q"), maxSearchLength)
		page := menuPage(r)
		if strings.TrimSpace(q) == "" {
			responses.WritePage(w, searchResponse{Query: q, Items: []catalog.ItemDTO{}}, types.PageMeta{Page: page.Number, PageSize: page.Size})
			return
		}
		items, err := svc.Search(r.Context(), tc, q, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, searchResponse{Query: q, Items: items.Items}, pageMeta(items))
	}
}
