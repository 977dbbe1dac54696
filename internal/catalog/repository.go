package catalog

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/cardapy-backend/internal/repo"
	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/pagination"
)

const (
	categoriesTable = "categories"
	itemsTable      = "menu_items"
	reviewsTable    = "reviews"
)

// CategoryRow is a category with its count of available items.
type CategoryRow struct {
	models.Category
	AvailableItemsCount int64 `gorm:"column:available_items_count"`
}

// ItemFilter narrows a menu listing.
type ItemFilter struct {
	CategoryID *uuid.UUID
	Query      string
}

// IsZero reports whether no filter is active.
func (f ItemFilter) IsZero() bool {
	return f.CategoryID == nil && strings.TrimSpace(f.Query) == ""
}

// Rating aggregates approved reviews of one item.
type Rating struct {
	MenuItemID uuid.UUID `gorm:"column:menu_item_id"`
	Average    float64   `gorm:"column:average"`
	Total      int64     `gorm:"column:total"`
}

// Repository reads and writes catalog rows of one tenant.
type Repository struct {
	base repo.Base
}

// NewRepository binds the repository to a shard and a tenant.
func NewRepository(db *gorm.DB, tenantID uuid.UUID) *Repository {
	return &Repository{base: repo.NewBase(db, tenantID)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{base: r.base.WithTx(tx)}
}

const listCategoriesQuery = `
SELECT categories.*, COUNT(menu_items.id) AS available_items_count
FROM categories
JOIN menu_items ON menu_items.category_id = categories.id
  AND menu_items.tenant_id = categories.tenant_id
  AND menu_items.is_available = ?
  AND menu_items.deleted_at IS NULL
WHERE categories.tenant_id = ?
  AND categories.is_active = ?
  AND categories.deleted_at IS NULL
GROUP BY categories.id
ORDER BY categories.sort_order ASC, categories.name ASC
`

// ListCategories returns active categories holding at least one available item.
func (r *Repository) ListCategories(ctx context.Context) ([]CategoryRow, error) {
	var rows []CategoryRow
	err := r.base.DB(ctx).
		Raw(listCategoriesQuery, true, r.base.TenantID(), true).
		Scan(&rows).Error
	return rows, err
}

// FindActiveCategory loads an active, non-deleted category.
func (r *Repository) FindActiveCategory(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	var category models.Category
	err := r.base.Model(ctx, &models.Category{}, categoriesTable).
		Where("categories.id = ? AND categories.is_active = ?", id, true).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *Repository) available(ctx context.Context) *gorm.DB {
	return r.base.Model(ctx, &models.MenuItem{}, itemsTable).
		Where("menu_items.is_available = ?", true)
}

// ListItems pages through available items matching filter.
func (r *Repository) ListItems(ctx context.Context, filter ItemFilter, page pagination.Page) ([]models.MenuItem, int64, error) {
	query := r.available(ctx)
	if filter.CategoryID != nil {
		query = query.Where("menu_items.category_id = ?", *filter.CategoryID)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		query = r.matchText(query, q)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.MenuItem
	err := query.
		Preload("Category").
		Order("menu_items.sort_order ASC").
		Order("menu_items.name ASC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListFeatured returns up to limit available featured items.
func (r *Repository) ListFeatured(ctx context.Context, limit int) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := r.available(ctx).
		Where("menu_items.is_featured = ?", true).
		Preload("Category").
		Order("menu_items.sort_order ASC").
		Order("menu_items.name ASC").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// FindItem loads a non-deleted item with its category, available or not.
func (r *Repository) FindItem(ctx context.Context, id uuid.UUID) (*models.MenuItem, error) {
	var item models.MenuItem
	err := r.base.Model(ctx, &models.MenuItem{}, itemsTable).
		Preload("Category").
		Where("menu_items.id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindItems loads the given items keyed by id. Missing ids are absent from the map.
func (r *Repository) FindItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.MenuItem, error) {
	out := make(map[uuid.UUID]models.MenuItem, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var items []models.MenuItem
	if err := r.base.Model(ctx, &models.MenuItem{}, itemsTable).
		Where("menu_items.id IN ?", ids).
		Find(&items).Error; err != nil {
		return nil, err
	}
	for _, item := range items {
		out[item.ID] = item
	}
	return out, nil
}

// SetAvailability flips the availability flag and reports whether a row changed.
func (r *Repository) SetAvailability(ctx context.Context, id uuid.UUID, available bool) (bool, error) {
	res := r.base.Model(ctx, &models.MenuItem{}, itemsTable).
		Where("menu_items.id = ?", id).
		Update("is_available", available)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Ratings averages approved reviews per item.
func (r *Repository) Ratings(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]Rating, error) {
	out := make(map[uuid.UUID]Rating, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []Rating
	err := r.base.Scoped(ctx, reviewsTable).
		Select("reviews.menu_item_id AS menu_item_id, AVG(reviews.rating) AS average, COUNT(*) AS total").
		Where("reviews.is_approved = ? AND reviews.menu_item_id IN ?", true, ids).
		Group("reviews.menu_item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.MenuItemID] = row
	}
	return out, nil
}

// matchText is the four-way OR: name or description contain q case-insensitively,
// or q is an exact element of the ingredients or tags set.
func (r *Repository) matchText(query *gorm.DB, q string) *gorm.DB {
	like := "%" + escapeLike(strings.ToLower(q)) + "%"
	ingredients := jsonContains(query, "menu_items.ingredients")
	tags := jsonContains(query, "menu_items.tags")
	return query.Where(
		"LOWER(menu_items.name) LIKE ? ESCAPE '\\' OR LOWER(COALESCE(menu_items.description, '')) LIKE ? ESCAPE '\\' OR "+ingredients+" OR "+tags,
		like, like, q, q,
	)
}

func jsonContains(db *gorm.DB, column string) string {
	if db.Dialector != nil && db.Dialector.Name() == "sqlite" {
		return "EXISTS (SELECT 1 FROM json_each(" + column + ") WHERE json_each.value = ?)"
	}
	return "jsonb_exists(" + column + ", ?)"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
