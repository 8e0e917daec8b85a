package ports

import (
	"context"
	"time"

	"github.com/aretw0/barter/pkg/domain"
)

// ItemStore is the engine's view of item ownership.
// The only mutation it offers is a version-conditioned single-item owner write.
type ItemStore interface {
	// GetItem returns the current owner and ownership version.
	// Returns domain.ErrItemNotFound if the item does not exist.
	GetItem(ctx context.Context, id string) (domain.Ownership, error)

	// SetOwnerIf sets the owner only if the current version equals expectedVersion.
	// It returns the new version, domain.ErrVersionMismatch or domain.ErrItemNotFound.
	SetOwnerIf(ctx context.Context, id, newOwner string, expectedVersion int64) (int64, error)
}

// ProposalStore persists proposal records.
type ProposalStore interface {
	// GetProposal returns domain.ErrProposalNotFound if the proposal does not exist.
	GetProposal(ctx context.Context, id string) (*domain.Proposal, error)

	// SetStatusIf moves the proposal to next only if its status is still expected.
	// It returns domain.ErrStatusMismatch or domain.ErrProposalNotFound.
	SetStatusIf(ctx context.Context, id string, next, expected domain.Status, at time.Time) error

	// InsertProposal persists a new proposal and returns its ID.
	InsertProposal(ctx context.Context, p *domain.Proposal) (string, error)

	// ListProposals returns proposals where the account is either party, newest first.
	ListProposals(ctx context.Context, account string) ([]domain.Proposal, error)
}

// Transactor is implemented by stores that can apply several conditional writes as one unit.
type Transactor interface {
	// CommitTransfer applies every owner write and the settle status change atomically.
	// If any precondition fails nothing is applied and the error names the failed kind:
	// domain.ErrVersionMismatch, domain.ErrItemNotFound or domain.ErrStatusMismatch.
	CommitTransfer(ctx context.Context, plan domain.TransferPlan) error
}

// ItemCatalog covers item CRUD outside of the exchange core.
type ItemCatalog interface {
	// CreateItem stores a new item at domain.InitialOwnerVersion and sets
	// item.OwnerVersion. An ID that was deleted before resumes above the highest
	// version it ever had, so versions are never reused.
	// Returns domain.ErrItemExists if the ID is taken.
	CreateItem(ctx context.Context, item *domain.Item) error

	// GetItemRecord returns the full item or domain.ErrItemNotFound.
	GetItemRecord(ctx context.Context, id string) (*domain.Item, error)

	// ListItems returns items matching the filter ordered by ID.
	ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error)

	// PatchItem atomically applies the set attributes and returns the updated item.
	// It never changes owner or version. Returns domain.ErrItemNotFound if absent.
	PatchItem(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error)

	// DeleteItem removes the item and retains its last version.
	// Returns domain.ErrItemNotFound if absent.
	DeleteItem(ctx context.Context, id string) error
}

// Store is the full capability set of a backend adapter.
type Store interface {
	ItemStore
	ProposalStore
	ItemCatalog
	Close() error
}
