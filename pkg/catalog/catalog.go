// Package catalog manages the item records the exchange engine trades.
//
// It is a collaborator of the engine: it creates, edits, lists and deletes items and
// performs administrative ownership transfers through the same conditional
// write the engine uses, so an out-of-band sale bumps the item version and
// makes any proposal referencing the item fail with a transfer conflict.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aretw0/barter/internal/logging"
	"github.com/aretw0/barter/pkg/domain"
	"github.com/aretw0/barter/pkg/ports"
	"github.com/google/uuid"
)

// Store is what the catalog needs from persistence.
type Store interface {
	ports.ItemStore
	ports.ItemCatalog
}

// Service exposes item management.
type Service struct {
	store  Store
	logger *slog.Logger
	newID  func() string
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithIDGenerator overrides the item ID generator (default: random UUID).
func WithIDGenerator(gen func() string) Option {
	return func(s *Service) {
		s.newID = gen
	}
}

// New creates a catalog service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: logging.NewNop(),
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new item. An empty ID is generated.
// A new ID starts at version 1; a previously deleted one resumes above its last version.
func (s *Service) Create(ctx context.Context, item domain.Item) (*domain.Item, error) {
	item.Title = strings.TrimSpace(item.Title)
	item.Owner = strings.TrimSpace(item.Owner)
	if item.Owner == "" {
		return nil, fmt.Errorf("%w: owner is required", domain.ErrInvalidItem)
	}
	if err := checkAttributes(item.Title, item.Year); err != nil {
		return nil, err
	}
	if item.ID == "" {
		item.ID = s.newID()
	}

	if err := s.store.CreateItem(ctx, &item); err != nil {
		return nil, fmt.Errorf("failed to create item %s: %w", item.ID, err)
	}
	s.logger.InfoContext(ctx, "item created", "item_id", item.ID, "owner", item.Owner)
	return &item, nil
}

// Get returns an item by ID.
func (s *Service) Get(ctx context.Context, id string) (*domain.Item, error) {
	return s.store.GetItemRecord(ctx, id)
}

// List returns the items matching filter ordered by ID.
func (s *Service) List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	return s.store.ListItems(ctx, filter)
}

// OwnedBy returns every item held by the account.
func (s *Service) OwnedBy(ctx context.Context, account string) ([]domain.Item, error) {
	return s.store.ListItems(ctx, domain.ItemFilter{Owner: account})
}

// Update replaces every descriptive attribute of an item.
// Owner and version are untouched; a differing owner in attrs is rejected
// because ownership only moves through Transfer or an accepted proposal.
func (s *Service) Update(ctx context.Context, id string, attrs domain.Item) (*domain.Item, error) {
	attrs.Title = strings.TrimSpace(attrs.Title)
	if attrs.ID != "" && attrs.ID != id {
		return nil, fmt.Errorf("%w: id %q does not match %q", domain.ErrInvalidItem, attrs.ID, id)
	}
	if err := checkAttributes(attrs.Title, attrs.Year); err != nil {
		return nil, err
	}
	if owner := strings.TrimSpace(attrs.Owner); owner != "" {
		own, err := s.store.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		if own.Owner != owner {
			return nil, fmt.Errorf("%w: owner cannot be changed by an update", domain.ErrInvalidItem)
		}
	}
	return s.patch(ctx, id, domain.ReplaceAttributes(attrs))
}

// Patch changes the attributes set in patch and leaves the others as they are.
func (s *Service) Patch(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error) {
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, fmt.Errorf("%w: title must not be empty", domain.ErrInvalidItem)
		}
		patch.Title = &title
	}
	if patch.Year != nil && *patch.Year < 0 {
		return nil, fmt.Errorf("%w: year must not be negative", domain.ErrInvalidItem)
	}
	if patch.Empty() {
		return s.store.GetItemRecord(ctx, id)
	}
	return s.patch(ctx, id, patch)
}

func (s *Service) patch(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error) {
	item, err := s.store.PatchItem(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "item updated", "item_id", id)
	return item, nil
}

// Accounts lists every account holding at least one item, ordered by account.
func (s *Service) Accounts(ctx context.Context) ([]domain.AccountItems, error) {
	items, err := s.store.ListItems(ctx, domain.ItemFilter{})
	if err != nil {
		return nil, err
	}
	byOwner := make(map[string][]domain.Item)
	for _, item := range items {
		byOwner[item.Owner] = append(byOwner[item.Owner], item)
	}

	accounts := make([]domain.AccountItems, 0, len(byOwner))
	for owner, owned := range byOwner {
		accounts = append(accounts, domain.AccountItems{Account: owner, Items: owned})
	}
	slices.SortFunc(accounts, func(a, b domain.AccountItems) int { return strings.Compare(a.Account, b.Account) })
	return accounts, nil
}

// Delete removes an item. Pending proposals that reference it fail at accept time.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteItem(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "item deleted", "item_id", id)
	return nil
}

// Transfer moves one item to a new owner outside of any proposal.
// A concurrent ownership change surfaces as domain.ErrVersionMismatch.
func (s *Service) Transfer(ctx context.Context, id, newOwner string) (*domain.Item, error) {
	newOwner = strings.TrimSpace(newOwner)
	if newOwner == "" {
		return nil, fmt.Errorf("%w: new owner is required", domain.ErrInvalidItem)
	}

	own, err := s.store.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if own.Owner == newOwner {
		return s.store.GetItemRecord(ctx, id)
	}

	version, err := s.store.SetOwnerIf(ctx, id, newOwner, own.Version)
	if err != nil {
		if errors.Is(err, domain.ErrVersionMismatch) {
			return nil, fmt.Errorf("item %s changed owner concurrently: %w", id, err)
		}
		return nil, err
	}
	s.logger.InfoContext(ctx, "item transferred",
		"item_id", id,
		"from", own.Owner,
		"to", newOwner,
		"version", version,
	)
	return s.store.GetItemRecord(ctx, id)
}

func checkAttributes(title string, year int) error {
	if title == "" {
		return fmt.Errorf("%w: title is required", domain.ErrInvalidItem)
	}
	if year < 0 {
		return fmt.Errorf("%w: year must not be negative", domain.ErrInvalidItem)
	}
	return nil
}
