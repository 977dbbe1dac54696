package catalog

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/storage"
)

// CategoryDTO is a category as shown on the menu.
type CategoryDTO struct {
	ID                  uuid.UUID `json:"id"`
	Name                string    `json:"name"`
	Description         *string   `json:"description,omitempty"`
	ImageURL            string    `json:"image_url,omitempty"`
	SortOrder           int       `json:"sort_order"`
	AvailableItemsCount int64     `json:"available_items_count"`
}

// ItemDTO carries the stored fields of an item plus its derived prices.
type ItemDTO struct {
	ID                 uuid.UUID         `json:"id"`
	CategoryID         uuid.UUID         `json:"category_id"`
	CategoryName       string            `json:"category_name,omitempty"`
	Name               string            `json:"name"`
	Description        *string           `json:"description,omitempty"`
	Price              string            `json:"price"`
	PromotionalPrice   *string           `json:"promotional_price,omitempty"`
	EffectivePrice     string            `json:"effective_price"`
	IsOnSale           bool              `json:"is_on_sale"`
	DiscountPercentage int               `json:"discount_percentage"`
	ImageURL           string            `json:"image_url,omitempty"`
	Ingredients        []string          `json:"ingredients"`
	Allergens          []string          `json:"allergens"`
	Tags               []string          `json:"tags"`
	NutritionalInfo    map[string]string `json:"nutritional_info,omitempty"`
	PreparationTime    int               `json:"preparation_time"`
	Calories           *int              `json:"calories,omitempty"`
	Serves             *int              `json:"serves,omitempty"`
	IsAvailable        bool              `json:"is_available"`
	IsFeatured         bool              `json:"is_featured"`
	AverageRating      float64           `json:"average_rating"`
	ReviewCount        int64             `json:"review_count"`
}

// ItemPage is one page of a menu listing.
type ItemPage struct {
	Items   []ItemDTO `json:"items"`
	Page    int       `json:"page"`
	Size    int       `json:"size"`
	Total   int64     `json:"total"`
	HasMore bool      `json:"has_more"`
}

// MenuView is the landing page of a tenant: categories, a page of items and,
// when unfiltered, the featured items.
type MenuView struct {
	Categories []CategoryDTO `json:"categories"`
	Items      ItemPage      `json:"items"`
	Featured   []ItemDTO     `json:"featured"`
}

func newCategoryDTO(row CategoryRow, root storage.Root) CategoryDTO {
	return CategoryDTO{
		ID:                  row.ID,
		Name:                row.Name,
		Description:         row.Description,
		ImageURL:            root.URLPtr(row.ImagePath),
		SortOrder:           row.SortOrder,
		AvailableItemsCount: row.AvailableItemsCount,
	}
}

func newItemDTO(item models.MenuItem, rating Rating, root storage.Root) ItemDTO {
	dto := ItemDTO{
		ID:                 item.ID,
		CategoryID:         item.CategoryID,
		Name:               item.Name,
		Description:        item.Description,
		Price:              item.Price.StringFixed(2),
		EffectivePrice:     item.EffectivePrice().StringFixed(2),
		IsOnSale:           item.IsOnSale(),
		DiscountPercentage: item.DiscountPercentage(),
		ImageURL:           root.URLPtr(item.ImagePath),
		Ingredients:        append([]string{}, item.Ingredients...),
		Allergens:          append([]string{}, item.Allergens...),
		Tags:               append([]string{}, item.Tags...),
		NutritionalInfo:    item.NutritionalInfo,
		PreparationTime:    item.PreparationMinutes(),
		Calories:           item.Calories,
		Serves:             item.Serves,
		IsAvailable:        item.IsAvailable,
		IsFeatured:         item.IsFeatured,
		AverageRating:      rating.Average,
		ReviewCount:        rating.Total,
	}
	if item.Category != nil {
		dto.CategoryName = item.Category.Name
	}
	if item.PromotionalPrice.Valid {
		promo := item.PromotionalPrice.Decimal.StringFixed(2)
		dto.PromotionalPrice = &promo
	}
	return dto
}
