package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/aretw0/barter/pkg/domain"
)

// Store implements ports.Store in memory.
// Safe for concurrent use. It only offers single-record conditional writes,
// so the engine takes the compensating path on accept.
type Store struct {
	items     map[string]domain.Item
	proposals map[string]*domain.Proposal
	// retired keeps the last version of deleted items so a re-created ID resumes above it.
	retired map[string]int64
	mu      sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		items:     make(map[string]domain.Item),
		proposals: make(map[string]*domain.Proposal),
		retired:   make(map[string]int64),
	}
}

// GetItem returns the ownership pair of an item.
func (s *Store) GetItem(ctx context.Context, id string) (domain.Ownership, error) {
	if err := ctx.Err(); err != nil {
		return domain.Ownership{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return domain.Ownership{}, domain.ErrItemNotFound
	}
	return item.Ownership(), nil
}

// SetOwnerIf performs a version-conditioned owner write.
func (s *Store) SetOwnerIf(ctx context.Context, id, newOwner string, expectedVersion int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return 0, domain.ErrItemNotFound
	}
	if item.OwnerVersion != expectedVersion {
		return 0, domain.ErrVersionMismatch
	}
	item.Owner = newOwner
	item.OwnerVersion++
	s.items[id] = item
	return item.OwnerVersion, nil
}

// CreateItem stores a new item. A previously deleted ID resumes above its last version.
func (s *Store) CreateItem(ctx context.Context, item *domain.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return domain.ErrItemExists
	}
	stored := *item
	stored.OwnerVersion = domain.InitialOwnerVersion
	if last, ok := s.retired[item.ID]; ok {
		stored.OwnerVersion = last + 1
	}
	s.items[item.ID] = stored
	item.OwnerVersion = stored.OwnerVersion
	return nil
}

// GetItemRecord returns a copy of the item.
func (s *Store) GetItemRecord(ctx context.Context, id string) (*domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	return &item, nil
}

// ListItems returns the items matching filter ordered by ID.
func (s *Store) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]domain.Item, 0)
	for _, item := range s.items {
		if filter.Match(item) {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b domain.Item) int { return cmp.Compare(a.ID, b.ID) })
	return items, nil
}

// PatchItem applies the set attributes under the write lock.
func (s *Store) PatchItem(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrItemNotFound
	}
	patch.Apply(&item)
	s.items[id] = item
	return &item, nil
}

// DeleteItem removes an item.
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return domain.ErrItemNotFound
	}
	s.retired[id] = item.OwnerVersion
	delete(s.items, id)
	return nil
}

// GetProposal returns a copy of the proposal so callers can't mutate the store by pointer.
func (s *Store) GetProposal(ctx context.Context, id string) (*domain.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, domain.ErrProposalNotFound
	}
	return p.Clone(), nil
}

// SetStatusIf performs a status-conditioned proposal write.
func (s *Store) SetStatusIf(ctx context.Context, id string, next, expected domain.Status, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.proposals[id]
	if !ok {
		return domain.ErrProposalNotFound
	}
	if p.Status != expected {
		return domain.ErrStatusMismatch
	}
	s.proposals[id] = p.Resolve(next, at)
	return nil
}

// InsertProposal stores a deep copy of the proposal.
func (s *Store) InsertProposal(ctx context.Context, p *domain.Proposal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.proposals[p.ID] = p.Clone()
	return p.ID, nil
}

// ListProposals returns proposals involving account, newest first.
func (s *Store) ListProposals(ctx context.Context, account string) ([]domain.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]domain.Proposal, 0)
	for _, p := range s.proposals {
		if p.Involves(account) {
			list = append(list, *p.Clone())
		}
	}
	slices.SortFunc(list, func(a, b domain.Proposal) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return list, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
