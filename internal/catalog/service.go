package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/mise-erp/mise-erp/internal/ledger"
	"github.com/mise-erp/mise-erp/internal/shared"
)

// RepositoryPort abstracts catalog storage.
type RepositoryPort interface {
	Insert(ctx context.Context, item Item) error
	Update(ctx context.Context, id string, kind ledger.ItemKind, input UpdateInput) error
	Get(ctx context.Context, id string, kind ledger.ItemKind) (Item, error)
	List(ctx context.Context, kind ledger.ItemKind) ([]Item, error)
	Delete(ctx context.Context, id string, kind ledger.ItemKind) error
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service exposes master data operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	validate *validator.Validate
	collator *collate.Collator
}

// NewService builds Service. Item names are Vietnamese, so listings sort with
// the Vietnamese collation rather than byte order.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{
		repo:     repo,
		audit:    audit,
		validate: validator.New(),
		collator: collate.New(language.Vietnamese),
	}
}

// Create registers a new item at zero stock and zero cost.
func (s *Service) Create(ctx context.Context, input CreateInput, actor shared.Actor) (Item, error) {
	if err := s.validate.Struct(input); err != nil {
		return Item{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	item := Item{
		ID:        uuid.NewString(),
		Kind:      input.Kind,
		Code:      input.Code,
		Name:      input.Name,
		Unit:      input.Unit,
		MinStock:  input.MinStock,
		SalePrice: input.SalePrice,
	}
	if err := s.repo.Insert(ctx, item); err != nil {
		return Item{}, fmt.Errorf("catalog: create: %w", err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      actor,
			Action:     "CREATE",
			Collection: "stock_items",
			Message:    fmt.Sprintf("Created %s %s (%s)", item.Kind, item.Name, item.Code),
		})
	}
	return item, nil
}

// Update changes descriptive fields only. Quantity and average cost are never
// writable through catalog.
func (s *Service) Update(ctx context.Context, id string, kind ledger.ItemKind, input UpdateInput, actor shared.Actor) (Item, error) {
	if err := s.validate.Struct(input); err != nil {
		return Item{}, fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	if err := s.repo.Update(ctx, id, kind, input); err != nil {
		return Item{}, fmt.Errorf("catalog: update %s: %w", id, err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      actor,
			Action:     "UPDATE",
			Collection: "stock_items",
			Message:    fmt.Sprintf("Updated %s %s", kind, id),
		})
	}
	return s.repo.Get(ctx, id, kind)
}

// Get returns one item.
func (s *Service) Get(ctx context.Context, id string, kind ledger.ItemKind) (Item, error) {
	if id == "" {
		return Item{}, fmt.Errorf("%w: item id required", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id, kind)
}

// List returns all items of a kind sorted by name.
func (s *Service) List(ctx context.Context, kind ledger.ItemKind) ([]Item, error) {
	if kind != ledger.KindIngredient && kind != ledger.KindProduct {
		return nil, fmt.Errorf("%w: unknown item kind %q", shared.ErrValidation, kind)
	}
	items, err := s.repo.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(items, func(i, j int) bool {
		return s.collator.CompareString(items[i].Name, items[j].Name) < 0
	})
	return items, nil
}

// Delete removes an item that never moved or has been fully drawn down. Items
// with stock on hand keep their ledger history and cannot be removed.
func (s *Service) Delete(ctx context.Context, id string, kind ledger.ItemKind, actor shared.Actor) error {
	item, err := s.repo.Get(ctx, id, kind)
	if err != nil {
		return err
	}
	if item.Quantity != 0 {
		return fmt.Errorf("%w: item %s still has stock on hand", shared.ErrValidation, id)
	}
	if err := s.repo.Delete(ctx, id, kind); err != nil {
		return fmt.Errorf("catalog: delete %s: %w", id, err)
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			Actor:      actor,
			Action:     "DELETE",
			Collection: "stock_items",
			Message:    fmt.Sprintf("Deleted %s %s", kind, id),
		})
	}
	return nil
}
