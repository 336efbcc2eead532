package ledger

import (
	"errors"
	"time"

	"github.com/mise-erp/mise-erp/internal/shared"
)

// ItemKind distinguishes raw ingredients from finished products.
type ItemKind string

const (
	// KindIngredient marks raw material stock.
	KindIngredient ItemKind = "ingredient"
	// KindProduct marks finished goods stock.
	KindProduct ItemKind = "product"
)

// EntryType enumerates supported stock movements.
type EntryType string

const (
	// EntryImport records goods received from a supplier.
	EntryImport EntryType = "import"
	// EntrySale records goods leaving through a sales order.
	EntrySale EntryType = "sale"
	// EntryProductionIn records finished goods yielded by a production run.
	EntryProductionIn EntryType = "production_in"
	// EntryProductionOut records ingredients consumed by a production run.
	EntryProductionOut EntryType = "production_out"
	// EntryAdjustment records stocktake corrections and compensating reversals.
	EntryAdjustment EntryType = "adjustment"
)

// EntryStatus is the one-way lifecycle flag of a ledger entry.
type EntryStatus string

const (
	// StatusActive means the entry's effect is in force.
	StatusActive EntryStatus = "active"
	// StatusCanceled means a compensating entry negated this one.
	StatusCanceled EntryStatus = "canceled"
)

// ItemKey identifies one stock item. Reads within a transaction are
// deduplicated on it.
type ItemKey struct {
	ID   string
	Kind ItemKind
}

// StockSnapshot is the denormalized current state of one stock item.
// Quantity and average cost are mutated exclusively through Apply; the
// descriptive fields belong to the catalog.
type StockSnapshot struct {
	ID             string    `json:"id"`
	Kind           ItemKind  `json:"kind"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	QuantityOnHand float64   `json:"quantity_on_hand"`
	AvgUnitCost    float64   `json:"avg_unit_cost"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Entry is one immutable stock movement. Only Status and ReversalEntryID ever
// change after insert, and only from active to canceled.
type Entry struct {
	ID              string      `json:"id"`
	Type            EntryType   `json:"type"`
	OccurredAt      time.Time   `json:"occurred_at"`
	ItemID          string      `json:"item_id"`
	ItemKind        ItemKind    `json:"item_kind"`
	ItemName        string      `json:"item_name"`
	QuantityChange  float64     `json:"quantity_change"`
	UnitCost        float64     `json:"unit_cost"`
	TotalValue      float64     `json:"total_value"`
	RelatedDocID    string      `json:"related_doc_id,omitempty"`
	RelatedDocCode  string      `json:"related_doc_code,omitempty"`
	PerformerID     string      `json:"performer_id,omitempty"`
	PerformerName   string      `json:"performer_name,omitempty"`
	Status          EntryStatus `json:"status"`
	ReversalEntryID string      `json:"reversal_entry_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// Movement is the request handed to the costing & snapshot writer.
type Movement struct {
	Type           EntryType
	ItemID         string
	ItemKind       ItemKind
	QuantityChange float64
	UnitCost       float64
	// ValueChange, when set, overrides the value heuristics so reversals can
	// force an exact rollback of the original value.
	ValueChange    *float64
	RelatedDocID   string
	RelatedDocCode string
	Performer      shared.Actor
	OccurredAt     time.Time
}

// EntryFilter narrows ledger listings.
type EntryFilter struct {
	ItemID string
	Kind   ItemKind
	DocID  string
	Limit  int
}

// Drift reports a snapshot that disagrees with the sum of its active entries.
type Drift struct {
	ItemID      string   `json:"item_id"`
	Kind        ItemKind `json:"kind"`
	Name        string   `json:"name"`
	SnapshotQty float64  `json:"snapshot_qty"`
	LedgerQty   float64  `json:"ledger_qty"`
}

// ErrItemNotRead signals that Apply was called for an item the transaction
// never read. Every orchestrator must collect its reads first.
var ErrItemNotRead = errors.New("ledger: item was not read in this transaction")

// ErrReadAfterWrite signals a read issued after the transaction started
// writing, which the store contract forbids.
var ErrReadAfterWrite = errors.New("ledger: read issued after first write")

// ErrInvalidMovement indicates a malformed movement request.
var ErrInvalidMovement = errors.New("ledger: invalid movement")
