// Package finance records money movements generated by business documents:
// purchase spend on imports and revenue on delivered sales. Rows link back to
// the document that produced them so a reversal can sweep them in one pass.
package finance

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mise-erp/mise-erp/internal/shared"
)

// TxType classifies a finance transaction.
type TxType string

const (
	TypeIncome  TxType = "income"
	TypeExpense TxType = "expense"
)

// TxStatus tracks whether a transaction still counts.
type TxStatus string

const (
	StatusActive   TxStatus = "active"
	StatusCanceled TxStatus = "canceled"
)

// Transaction is one money movement.
type Transaction struct {
	ID           string          `json:"id"`
	Type         TxType          `json:"type"`
	Category     string          `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	RelatedDocID string          `json:"related_doc_id,omitempty"`
	Status       TxStatus        `json:"status"`
	Performer    shared.Actor    `json:"performer"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Filter narrows transaction listings.
type Filter struct {
	DocID  string
	Type   TxType
	Status TxStatus
	Limit  int
}
