package sales

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mise-erp/mise-erp/internal/finance"
	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/sequence"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// CodeGenerator hands out document codes before the transaction opens.
type CodeGenerator interface {
	Next(ctx context.Context, series string) (string, error)
}

// FinanceRecorder records the revenue of a committed order.
type FinanceRecorder interface {
	Record(ctx context.Context, input finance.RecordInput) (finance.Transaction, error)
}

// FinanceCleanup enqueues the post-commit sweep of finance rows linked to a
// reversed document.
type FinanceCleanup interface {
	EnqueueFinanceCancel(ctx context.Context, docID string) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates sales orders.
type Service struct {
	logger  *slog.Logger
	repo    RepositoryPort
	codes   CodeGenerator
	fin     FinanceRecorder
	cleanup FinanceCleanup
	audit   AuditPort
}

// NewService builds Service.
func NewService(logger *slog.Logger, repo RepositoryPort, codes CodeGenerator, fin FinanceRecorder, cleanup FinanceCleanup, audit AuditPort) *Service {
	return &Service{logger: logger, repo: repo, codes: codes, fin: fin, cleanup: cleanup, audit: audit}
}

// CreateOrder validates the request, allocates a code and runs one
// transaction: read every distinct product, write the order, then post one
// outbound sale movement per line. Sales never change a product's average
// cost; the line COGS is recorded on the entry for reporting.
func (s *Service) CreateOrder(ctx context.Context, input CreateInput) (Order, error) {
	deliveryDate, err := validateCreate(input)
	if err != nil {
		return Order{}, err
	}

	code, err := s.codes.Next(ctx, sequence.SeriesSale)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		ID:            uuid.NewString(),
		Code:          code,
		CustomerName:  input.CustomerName,
		CustomerPhone: input.CustomerPhone,
		Address:       input.Address,
		DeliveryDate:  deliveryDate,
		ShippingFee:   input.ShippingFee,
		Status:        StatusOpen,
		Performer:     input.Performer,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		scope := ledger.NewScope(tx)
		for _, line := range input.Lines {
			if _, err := scope.ReadItem(ctx, line.ProductID, ledger.KindProduct); err != nil {
				return err
			}
		}

		order.Lines = order.Lines[:0]
		order.Revenue = input.ShippingFee
		order.COGS = 0
		for _, line := range input.Lines {
			snap, _ := scope.Snapshot(line.ProductID, ledger.KindProduct)
			lineCOGS := line.LineCOGS
			if lineCOGS == 0 {
				lineCOGS = line.Quantity * snap.AvgUnitCost
			}
			built := Line{
				ProductID:   line.ProductID,
				ProductName: snap.Name,
				Quantity:    line.Quantity,
				UnitPrice:   line.UnitPrice,
				LineTotal:   line.Quantity * line.UnitPrice,
				LineCOGS:    lineCOGS,
			}
			order.Lines = append(order.Lines, built)
			order.Revenue += built.LineTotal
			order.COGS += built.LineCOGS
		}
		order.Profit = order.Revenue - order.COGS

		scope.BeginWrites()
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		for _, line := range order.Lines {
			_, err := ledger.Apply(ctx, scope, ledger.Movement{
				Type:           ledger.EntrySale,
				ItemID:         line.ProductID,
				ItemKind:       ledger.KindProduct,
				QuantityChange: -line.Quantity,
				UnitCost:       line.LineCOGS / line.Quantity,
				RelatedDocID:   order.ID,
				RelatedDocCode: order.Code,
				Performer:      input.Performer,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if s.fin != nil {
		_, err := s.fin.Record(ctx, finance.RecordInput{
			Type:         finance.TypeIncome,
			Category:     "sale",
			Amount:       decimal.NewFromFloat(order.Revenue),
			Description:  fmt.Sprintf("Order %s for %s", order.Code, order.CustomerName),
			RelatedDocID: order.ID,
			Performer:    input.Performer,
		})
		if err != nil {
			s.logger.Warn("sale revenue not recorded", slog.Any("error", err), slog.String("order", order.Code))
		}
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      input.Performer,
			Action:     "CREATE",
			Collection: "sales_orders",
			Message:    fmt.Sprintf("Order %s: revenue %.2f, profit %.2f", order.Code, order.Revenue, order.Profit),
		})
	}
	return order, nil
}

// UpdateStatus moves an order forward along the delivery chain. Inventory is
// untouched; canceled is reachable only through CancelOrder.
func (s *Service) UpdateStatus(ctx context.Context, id string, to OrderStatus, performer shared.Actor) (Order, error) {
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id required", shared.ErrValidation)
	}
	order, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if err := CanTransition(order.Status, to); err != nil {
		return Order{}, err
	}
	if err := s.repo.UpdateOrderStatus(ctx, order.ID, order.Status, to); err != nil {
		return Order{}, err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      performer,
			Action:     "UPDATE",
			Collection: "sales_orders",
			Message:    fmt.Sprintf("Order %s: %s -> %s", order.Code, order.Status, to),
		})
	}
	order.Status = to
	return order, nil
}

// CancelOrder reverses an order from any non-terminal status: stock returns at
// the original line COGS, the sale entries flip to canceled and the order is
// marked canceled. Finance cleanup runs after commit; failure surfaces
// ErrPartialReversal with the inventory reversal intact.
func (s *Service) CancelOrder(ctx context.Context, id string, performer shared.Actor) (Order, error) {
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id required", shared.ErrValidation)
	}
	var order Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		order, err = tx.GetOrder(ctx, id)
		if err != nil {
			return err
		}
		if order.Status == StatusCanceled {
			return fmt.Errorf("sales: order %s: %w", order.Code, shared.ErrAlreadyCanceled)
		}
		if order.Status == StatusCompleted {
			return fmt.Errorf("%w: completed orders cannot be canceled", shared.ErrInvalidTransition)
		}

		scope := ledger.NewScope(tx)
		for _, line := range order.Lines {
			if _, err := scope.ReadItem(ctx, line.ProductID, ledger.KindProduct); err != nil {
				return err
			}
		}

		for _, line := range order.Lines {
			forced := line.LineCOGS
			comp, err := ledger.Apply(ctx, scope, ledger.Movement{
				Type:           ledger.EntryAdjustment,
				ItemID:         line.ProductID,
				ItemKind:       ledger.KindProduct,
				QuantityChange: line.Quantity,
				UnitCost:       line.LineCOGS / line.Quantity,
				ValueChange:    &forced,
				RelatedDocID:   order.ID,
				RelatedDocCode: order.Code,
				Performer:      performer,
			})
			if err != nil {
				return err
			}
			if err := scope.CancelDocEntries(ctx, order.ID, line.ProductID, comp.ID); err != nil {
				return err
			}
		}
		if err := tx.MarkOrderCanceled(ctx, order.ID); err != nil {
			return err
		}
		order.Status = StatusCanceled
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      performer,
			Action:     "UPDATE",
			Collection: "sales_orders",
			Message:    fmt.Sprintf("Canceled order %s", order.Code),
		})
	}
	if s.cleanup != nil {
		if err := s.cleanup.EnqueueFinanceCancel(ctx, order.ID); err != nil {
			s.logger.Warn("finance cleanup not enqueued", slog.Any("error", err), slog.String("order", order.Code))
			return order, fmt.Errorf("sales: cancel %s: %w", order.Code, shared.ErrPartialReversal)
		}
	}
	return order, nil
}

// GetOrder returns one order by id or code.
func (s *Service) GetOrder(ctx context.Context, id string) (Order, error) {
	if id == "" {
		return Order{}, fmt.Errorf("%w: order id required", shared.ErrValidation)
	}
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns recent orders, optionally filtered by status.
func (s *Service) ListOrders(ctx context.Context, status OrderStatus, limit int) ([]Order, error) {
	return s.repo.ListOrders(ctx, status, limit)
}

func validateCreate(input CreateInput) (time.Time, error) {
	if input.CustomerName == "" {
		return time.Time{}, fmt.Errorf("%w: customer required", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return time.Time{}, fmt.Errorf("%w: at least one line required", shared.ErrValidation)
	}
	for i, line := range input.Lines {
		if line.ProductID == "" {
			return time.Time{}, fmt.Errorf("%w: line %d: product required", shared.ErrValidation, i+1)
		}
		if line.Quantity <= 0 {
			return time.Time{}, fmt.Errorf("%w: line %d: quantity must be positive", shared.ErrValidation, i+1)
		}
		if line.UnitPrice < 0 || line.LineCOGS < 0 {
			return time.Time{}, fmt.Errorf("%w: line %d: negative amounts", shared.ErrValidation, i+1)
		}
	}
	if input.ShippingFee < 0 {
		return time.Time{}, fmt.Errorf("%w: shipping fee cannot be negative", shared.ErrValidation)
	}
	date, err := time.Parse("2006-01-02", input.DeliveryDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: delivery date must be YYYY-MM-DD", shared.ErrValidation)
	}
	return date, nil
}
