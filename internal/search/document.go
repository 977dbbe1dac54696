package search

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/cardapy-backend/pkg/db/models"
)

// Op tells the index what to do with a document.
type Op string

const (
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
)

// IndexName is the logical index menu items are projected into.
const IndexName = "menu_items_index"

// Document is the searchable projection of a menu item.
type Document struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Ingredients []string  `json:"ingredients"`
	Tags        []string  `json:"tags"`
	Category    string    `json:"category"`
	Price       string    `json:"price"`
	IsAvailable bool      `json:"is_available"`
}

// Message is one instruction for the external index.
type Message struct {
	Op       Op       `json:"op"`
	Index    string   `json:"index"`
	Document Document `json:"document"`
}

// Project builds the document for item. Category falls back to the preloaded association.
func Project(item models.MenuItem, category string) Document {
	if category == "" && item.Category != nil {
		category = item.Category.Name
	}
	doc := Document{
		ID:          item.ID,
		TenantID:    item.TenantID,
		Name:        item.Name,
		Ingredients: nonNil(item.Ingredients),
		Tags:        nonNil(item.Tags),
		Category:    category,
		Price:       item.EffectivePrice().StringFixed(2),
		IsAvailable: item.IsAvailable,
	}
	if item.Description != nil {
		doc.Description = *item.Description
	}
	return doc
}

// MessageFor decides the operation: unavailable items leave the index.
func MessageFor(doc Document) Message {
	op := OpUpsert
	if !doc.IsAvailable {
		op = OpDelete
	}
	return Message{Op: op, Index: IndexName, Document: doc}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return append([]string(nil), values...)
}
