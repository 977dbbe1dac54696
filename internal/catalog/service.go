package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/cardapy-backend/internal/search"
	"github.com/angelmondragon/cardapy-backend/internal/tenant"
	"github.com/angelmondragon/cardapy-backend/pkg/db"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/cardapy-backend/pkg/errors"
	"github.com/angelmondragon/cardapy-backend/pkg/logger"
	"github.com/angelmondragon/cardapy-backend/pkg/pagination"
)

// FeaturedLimit caps the zero-state featured list.
const FeaturedLimit = 6

// Service answers menu queries for the bound tenant.
type Service interface {
	Menu(ctx context.Context, tc *tenant.Context, filter ItemFilter, page pagination.Page) (*MenuView, error)
	ListCategories(ctx context.Context, tc *tenant.Context) ([]CategoryDTO, error)
	Category(ctx context.Context, tc *tenant.Context, id uuid.UUID, page pagination.Page) (*CategoryDTO, *ItemPage, error)
	Item(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*ItemDTO, error)
	ItemModel(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*models.MenuItem, error)
	Search(ctx context.Context, tc *tenant.Context, q string, page pagination.Page) (*ItemPage, error)
	SetAvailability(ctx context.Context, tc *tenant.Context, id uuid.UUID, available bool) (*ItemDTO, error)
}

// ServiceParams wires the catalog service.
type ServiceParams struct {
	Sink   search.Sink
	Logger *logger.Logger
}

type service struct {
	sink search.Sink
	logg *logger.Logger
}

// NewService builds the catalog service. A nil sink disables indexing.
func NewService(p ServiceParams) (Service, error) {
	sink := p.Sink
	if sink == nil {
		sink = search.NoopSink{}
	}
	return &service{sink: sink, logg: p.Logger}, nil
}

func repositoryFor(tc *tenant.Context) (*Repository, error) {
	if tc == nil || tc.DB == nil {
		return nil, fmt.Errorf("tenant context required")
	}
	return NewRepository(tc.DB, tc.ID()), nil
}

func (s *service) Menu(ctx context.Context, tc *tenant.Context, filter ItemFilter, page pagination.Page) (*MenuView, error) {
	categories, err := s.ListCategories(ctx, tc)
	if err != nil {
		return nil, err
	}
	items, err := s.listItems(ctx, tc, filter, page)
	if err != nil {
		return nil, err
	}

	view := &MenuView{Categories: categories, Items: *items, Featured: []ItemDTO{}}
	if !filter.IsZero() {
		return view, nil
	}

	r, err := repositoryFor(tc)
	if err != nil {
		return nil, err
	}
	featured, err := r.ListFeatured(ctx, FeaturedLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list featured items")
	}
	view.Featured, err = s.toDTOs(ctx, r, tc, featured)
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) ListCategories(ctx context.Context, tc *tenant.Context) ([]CategoryDTO, error) {
	r, err := repositoryFor(tc)
	if err != nil {
		return nil, err
	}
	rows, err := r.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, newCategoryDTO(row, tc.Target.Storage))
	}
	return out, nil
}

func (s *service) Category(ctx context.Context, tc *tenant.Context, id uuid.UUID, page pagination.Page) (*CategoryDTO, *ItemPage, error) {
	r, err := repositoryFor(tc)
	if err != nil {
		return nil, nil, err
	}
	category, err := r.FindActiveCategory(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
	}
	items, err := s.listItems(ctx, tc, ItemFilter{CategoryID: &id}, page)
	if err != nil {
		return nil, nil, err
	}
	dto := newCategoryDTO(CategoryRow{Category: *category, AvailableItemsCount: items.Total}, tc.Target.Storage)
	return &dto, items, nil
}

func (s *service) Item(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*ItemDTO, error) {
	r, err := repositoryFor(tc)
	if err != nil {
		return nil, err
	}
	item, err := s.findItem(ctx, r, id)
	if err != nil {
		return nil, err
	}
	dtos, err := s.toDTOs(ctx, r, tc, []models.MenuItem{*item})
	if err != nil {
		return nil, err
	}
	return &dtos[0], nil
}

func (s *service) ItemModel(ctx context.Context, tc *tenant.Context, id uuid.UUID) (*models.MenuItem, error) {
	r, err := repositoryFor(tc)
	if err != nil {
		return nil, err
	}
	return s.findItem(ctx, r, id)
}

func (s *service) Search(ctx context.Context, tc *tenant.Context, q string, page pagination.Page) (*ItemPage, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "search query required")
	}
	return s.listItems(ctx, tc, ItemFilter{Query: q}, page)
}

// SetAvailability persists the flag and pushes the projection to the search sink.
// Sink failures are logged; the catalog row is the source of truth.
func (s *service) SetAvailability(ctx context.Context, tc *tenant.Context, id uuid.UUID, available bool) (*ItemDTO, error) {
	r, err := repositoryFor(tc)
	if err != nil {
		return nil, err
	}
	changed, err := r.SetAvailability(ctx, id, available)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update availability")
	}
	if !changed {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
	}
	item, err := s.findItem(ctx, r, id)
	if err != nil {
		return nil, err
	}

	if err := s.sink.Sync(ctx, search.Project(*item, "")); err != nil {
		s.logg.WarnErr(s.logg.WithField(ctx, "item_id", id.String()), "search sync failed", err)
	}

	dtos, err := s.toDTOs(ctx, r, tc, []models.MenuItem{*item})
	if err != nil {
		return nil, err
	}
	return &dtos[0], nil
}

func (s *service) findItem(ctx context.Context, r *Repository, id uuid.UUID) (*models.MenuItem, error) {
	item, err := r.FindItem(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "menu item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load menu item")
	}
	return item, nil
}

func (s *service) listItems(ctx context.Context, tc *tenant.Context, filter ItemFilter, page pagination.Page) (*ItemPage, error) {
	r, err := repositoryFor(tc)
	if err != nil {
		return nil, err
	}
	if page.Size <= 0 {
		page = pagination.ParsePage("", pagination.MenuPageSize)
	}
	items, total, err := r.ListItems(ctx, filter, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list menu items")
	}
	dtos, err := s.toDTOs(ctx, r, tc, items)
	if err != nil {
		return nil, err
	}
	return &ItemPage{
		Items:   dtos,
		Page:    page.Number,
		Size:    page.Size,
		Total:   total,
		HasMore: page.HasMore(total),
	}, nil
}

func (s *service) toDTOs(ctx context.Context, r *Repository, tc *tenant.Context, items []models.MenuItem) ([]ItemDTO, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	ratings, err := r.Ratings(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ratings")
	}
	out := make([]ItemDTO, 0, len(items))
	for _, item := range items {
		out = append(out, newItemDTO(item, ratings[item.ID], tc.Target.Storage))
	}
	return out, nil
}
