// Package sales handles customer orders. An order is the business document;
// its stock effects are outbound sale entries, one per line, costed at the
// product's average cost so revenue and COGS report together.
package sales

import (
	"fmt"
	"time"

	"github.com/mise-erp/mise-erp/internal/shared"
)

// OrderStatus is the order lifecycle.
type OrderStatus string

const (
	StatusOpen       OrderStatus = "open"
	StatusCooking    OrderStatus = "cooking"
	StatusDelivering OrderStatus = "delivering"
	StatusDelivered  OrderStatus = "delivered"
	StatusCompleted  OrderStatus = "completed"
	StatusCanceled   OrderStatus = "canceled"
)

// statusRank orders the forward chain. Canceled is reachable only through
// CancelOrder because it reverses inventory.
var statusRank = map[OrderStatus]int{
	StatusOpen:       0,
	StatusCooking:    1,
	StatusDelivering: 2,
	StatusDelivered:  3,
	StatusCompleted:  4,
}

// CanTransition reports whether a plain status update from one status to
// another is allowed: strictly forward along the chain, never out of a
// terminal status, never into canceled.
func CanTransition(from, to OrderStatus) error {
	if from == StatusCanceled || from == StatusCompleted {
		return fmt.Errorf("%w: order is %s", shared.ErrInvalidTransition, from)
	}
	toRank, ok := statusRank[to]
	if !ok {
		return fmt.Errorf("%w: %s is not reachable by status update", shared.ErrInvalidTransition, to)
	}
	if toRank <= statusRank[from] {
		return fmt.Errorf("%w: cannot move from %s to %s", shared.ErrInvalidTransition, from, to)
	}
	return nil
}

// Terminal reports whether the order can no longer change.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// Line is one sold product. LineCOGS is the cost of goods for the whole line.
type Line struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	LineTotal   float64 `json:"line_total"`
	LineCOGS    float64 `json:"line_cogs"`
}

// Order is one sales document with embedded lines.
type Order struct {
	ID            string       `json:"id"`
	Code          string       `json:"code"`
	CustomerName  string       `json:"customer_name"`
	CustomerPhone string       `json:"customer_phone,omitempty"`
	Address       string       `json:"address,omitempty"`
	DeliveryDate  time.Time    `json:"delivery_date"`
	Lines         []Line       `json:"lines"`
	ShippingFee   float64      `json:"shipping_fee"`
	Revenue       float64      `json:"revenue"`
	COGS          float64      `json:"cogs"`
	Profit        float64      `json:"profit"`
	Status        OrderStatus  `json:"status"`
	Performer     shared.Actor `json:"performer"`
	CreatedAt     time.Time    `json:"created_at"`
}

// LineInput is one requested line. LineCOGS may be zero, in which case the
// product's current average cost prices the line.
type LineInput struct {
	ProductID string  `json:"product_id"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	LineCOGS  float64 `json:"line_cogs"`
}

// CreateInput describes a new order. DeliveryDate uses YYYY-MM-DD.
type CreateInput struct {
	CustomerName  string       `json:"customer_name"`
	CustomerPhone string       `json:"customer_phone"`
	Address       string       `json:"address"`
	DeliveryDate  string       `json:"delivery_date"`
	ShippingFee   float64      `json:"shipping_fee"`
	Lines         []LineInput  `json:"lines"`
	Performer     shared.Actor `json:"-"`
}
