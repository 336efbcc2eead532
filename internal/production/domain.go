// Package production handles production runs: ingredients go out, finished
// product comes in, and the product's cost is derived from what the run
// actually consumed.
package production

import (
	"time"

	"github.com/mise-erp/mise-erp/internal/shared"
)

// RunStatus is the lifecycle flag of a production run.
type RunStatus string

const (
	StatusActive   RunStatus = "active"
	StatusCanceled RunStatus = "canceled"
)

// Input is one consumed ingredient. SnapshotCost is the unit cost captured
// when the run was posted, so a later cancel restores exactly what was drawn.
type Input struct {
	IngredientID   string  `json:"ingredient_id"`
	IngredientName string  `json:"ingredient_name"`
	TheoreticalQty float64 `json:"theoretical_qty"`
	ActualUsed     float64 `json:"actual_used"`
	SnapshotCost   float64 `json:"snapshot_cost"`
}

// Run is one production document with embedded inputs.
type Run struct {
	ID          string       `json:"id"`
	Code        string       `json:"code"`
	ProductID   string       `json:"product_id"`
	ProductName string       `json:"product_name"`
	Date        time.Time    `json:"date"`
	ActualYield float64      `json:"actual_yield"`
	Inputs      []Input      `json:"inputs"`
	TotalCost   float64      `json:"total_cost"`
	CostPerUnit float64      `json:"cost_per_unit"`
	Status      RunStatus    `json:"status"`
	Performer   shared.Actor `json:"performer"`
	CreatedAt   time.Time    `json:"created_at"`
}

// InputLine is one requested ingredient draw. A zero SnapshotCost means the
// ingredient's current average cost prices the draw.
type InputLine struct {
	IngredientID   string  `json:"ingredient_id"`
	TheoreticalQty float64 `json:"theoretical_qty"`
	ActualUsed     float64 `json:"actual_used"`
	SnapshotCost   float64 `json:"snapshot_cost"`
}

// CreateInput describes a new production run. Date uses YYYY-MM-DD.
type CreateInput struct {
	ProductID   string       `json:"product_id"`
	Date        string       `json:"date"`
	ActualYield float64      `json:"actual_yield"`
	Inputs      []InputLine  `json:"inputs"`
	Performer   shared.Actor `json:"-"`
}
