// Package procurement handles goods received from suppliers. An import
// receipt is the business document; its stock effects live in the ledger as
// one import entry per line.
package procurement

import (
	"time"

	"github.com/mise-erp/mise-erp/internal/shared"
)

// ReceiptStatus is the lifecycle flag of an import receipt.
type ReceiptStatus string

const (
	StatusActive   ReceiptStatus = "active"
	StatusCanceled ReceiptStatus = "canceled"
)

// Line is one received ingredient. LineValue is the money paid for the whole
// line; the unit cost handed to the ledger is LineValue/Quantity.
type Line struct {
	IngredientID   string  `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name"`
	Quantity       float64 `json:"quantity"`
	LineValue      float64 `json:"line_value"`
}

// Receipt is one import document with embedded lines.
type Receipt struct {
	ID           string        `json:"id"`
	Code         string        `json:"code"`
	SupplierID   string        `json:"supplier_id"`
	SupplierName string        `json:"supplier_name"`
	Date         time.Time     `json:"date"`
	Lines        []Line        `json:"lines"`
	TotalValue   float64       `json:"total_value"`
	Status       ReceiptStatus `json:"status"`
	Performer    shared.Actor  `json:"performer"`
	CreatedAt    time.Time     `json:"created_at"`
}

// LineInput is one requested line.
type LineInput struct {
	IngredientID string  `json:"ingredient_id"`
	Quantity     float64 `json:"quantity"`
	LineValue    float64 `json:"line_value"`
}

// CreateInput describes a new import receipt. Date uses YYYY-MM-DD.
type CreateInput struct {
	SupplierID   string       `json:"supplier_id"`
	SupplierName string       `json:"supplier_name"`
	Date         string       `json:"date"`
	Lines        []LineInput  `json:"lines"`
	Performer    shared.Actor `json:"-"`
}
