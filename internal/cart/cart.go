package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultMaxQuantity caps any single line when no configuration says otherwise.
const DefaultMaxQuantity = 10

// Line is one selected item with the price captured when it was first added.
type Line struct {
	ItemID      uuid.UUID       `json:"item_id"`
	Name        string          `json:"name"`
	ImageURL    string          `json:"image_url,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	MaxQuantity int             `json:"max_quantity"`
}

// Subtotal is price times quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart maps items to quantities. Count and total are always derived.
type Cart struct {
	Lines []Line `json:"lines"`
}

// Count is the sum of quantities.
func (c *Cart) Count() int {
	n := 0
	for _, l := range c.Lines {
		n += l.Quantity
	}
	return n
}

// Total is the sum of line subtotals.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Lines {
		total = total.Add(l.Subtotal())
	}
	return total
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c *Cart) index(itemID uuid.UUID) int {
	for i, l := range c.Lines {
		if l.ItemID == itemID {
			return i
		}
	}
	return -1
}

// Find returns the line for itemID.
func (c *Cart) Find(itemID uuid.UUID) (Line, bool) {
	if i := c.index(itemID); i >= 0 {
		return c.Lines[i], true
	}
	return Line{}, false
}

// add increments an existing line or appends snapshot, then clamps to the cap.
func (c *Cart) add(snapshot Line, qty int) {
	if qty < 1 {
		qty = 1
	}
	i := c.index(snapshot.ItemID)
	if i < 0 {
		snapshot.Quantity = 0
		c.Lines = append(c.Lines, snapshot)
		i = len(c.Lines) - 1
	}
	line := &c.Lines[i]
	line.Quantity += qty
	line.Quantity = clamp(line.Quantity, capOf(*line))
}

func (c *Cart) remove(itemID uuid.UUID) bool {
	i := c.index(itemID)
	if i < 0 {
		return false
	}
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
	return true
}

// setQuantity removes the line for qty <= 0 and otherwise clamps. Unknown items are a no-op.
func (c *Cart) setQuantity(itemID uuid.UUID, qty int) {
	if qty <= 0 {
		c.remove(itemID)
		return
	}
	i := c.index(itemID)
	if i < 0 {
		return
	}
	c.Lines[i].Quantity = clamp(qty, capOf(c.Lines[i]))
}

func (c *Cart) clear() {
	c.Lines = nil
}

func capOf(l Line) int {
	if l.MaxQuantity <= 0 {
		return DefaultMaxQuantity
	}
	return l.MaxQuantity
}

func clamp(qty, max int) int {
	if qty > max {
		return max
	}
	return qty
}
