// Package catalog manages ingredient and product master data. Catalog creates
// stock items at zero quantity and zero cost and afterwards only touches
// descriptive fields; quantity and average cost belong to the ledger engine.
package catalog

import (
	"time"

	"github.com/mise-erp/mise-erp/internal/ledger"
)

// Item is the descriptive view of a stock item.
type Item struct {
	ID        string          `json:"id"`
	Kind      ledger.ItemKind `json:"kind"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Unit      string          `json:"unit"`
	MinStock  float64         `json:"min_stock"`
	SalePrice float64         `json:"sale_price,omitempty"`
	Quantity  float64         `json:"quantity_on_hand"`
	AvgCost   float64         `json:"avg_unit_cost"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CreateInput describes a new catalog item.
type CreateInput struct {
	Kind      ledger.ItemKind `json:"kind" validate:"required,oneof=ingredient product"`
	Code      string          `json:"code" validate:"required"`
	Name      string          `json:"name" validate:"required"`
	Unit      string          `json:"unit" validate:"required"`
	MinStock  float64         `json:"min_stock" validate:"gte=0"`
	SalePrice float64         `json:"sale_price" validate:"gte=0"`
}

// UpdateInput carries the descriptive fields that may change after creation.
type UpdateInput struct {
	Name      string  `json:"name" validate:"required"`
	Unit      string  `json:"unit" validate:"required"`
	MinStock  float64 `json:"min_stock" validate:"gte=0"`
	SalePrice float64 `json:"sale_price" validate:"gte=0"`
}
