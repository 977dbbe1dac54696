package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
	"github.com/angelmondragon/cardapy-backend/pkg/types"
)

// LineView is a cart line as returned to clients.
type LineView struct {
	ItemID      uuid.UUID `json:"item_id"`
	Name        string    `json:"name"`
	ImageURL    string    `json:"image_url,omitempty"`
	UnitPrice   string    `json:"unit_price"`
	Quantity    int       `json:"quantity"`
	MaxQuantity int       `json:"max_quantity"`
	Subtotal    string    `json:"subtotal"`
}

// View is the cart contract consumed by the cart widget.
type View struct {
	Lines          []LineView `json:"lines"`
	Count          int        `json:"count"`
	Total          string     `json:"total"`
	FormattedTotal string     `json:"formatted_total"`
	MinimumOrder   string     `json:"minimum_order"`
	MeetsMinimum   bool       `json:"meets_minimum"`
	HasItems       bool       `json:"has_items"`
}

// AddResult carries the cart after an add and whether the item went in.
type AddResult struct {
	Cart    *View  `json:"cart"`
	Added   bool   `json:"added"`
	Message string `json:"message"`
}

// NewView derives the client view of c for tenant t.
func NewView(c *Cart, t models.Tenant) *View {
	if c == nil {
		c = &Cart{}
	}
	lines := make([]LineView, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, LineView{
			ItemID:      l.ItemID,
			Name:        l.Name,
			ImageURL:    l.ImageURL,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Quantity:    l.Quantity,
			MaxQuantity: capOf(l),
			Subtotal:    l.Subtotal().StringFixed(2),
		})
	}
	total := c.Total()
	return &View{
		Lines:          lines,
		Count:          c.Count(),
		Total:          total.StringFixed(2),
		FormattedTotal: types.FormatBRL(total),
		MinimumOrder:   t.MinimumOrder.StringFixed(2),
		MeetsMinimum:   !c.IsEmpty() && !total.LessThan(t.MinimumOrder),
		HasItems:       !c.IsEmpty(),
	}
}
