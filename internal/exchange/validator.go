package exchange

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/aretw0/barter/pkg/domain"
	"github.com/aretw0/barter/pkg/ports"
	"golang.org/x/sync/errgroup"
)

// maxLookups bounds concurrent item reads per validation.
const maxLookups = 8

// Validator checks the structural and ownership preconditions of a proposal.
type Validator struct {
	items ports.ItemStore
}

// NewValidator creates a validator reading ownership from items.
func NewValidator(items ports.ItemStore) *Validator {
	return &Validator{items: items}
}

// Validate returns a pending, not yet persisted proposal built from req.
// It fails with domain.ErrInvalidProposal naming the first broken precondition
// and has no side effects.
func (v *Validator) Validate(ctx context.Context, req domain.ProposalRequest, at time.Time) (*domain.Proposal, error) {
	if err := checkStructure(req); err != nil {
		return nil, err
	}

	offered, err := v.lookup(ctx, req.OfferedItems)
	if err != nil {
		return nil, err
	}
	requested, err := v.lookup(ctx, req.RequestedItems)
	if err != nil {
		return nil, err
	}

	for i, id := range req.OfferedItems {
		if err := checkOwner(id, offered[i], req.Initiator, "initiator"); err != nil {
			return nil, err
		}
	}
	for i, id := range req.RequestedItems {
		if err := checkOwner(id, requested[i], req.Counterparty, "counterparty"); err != nil {
			return nil, err
		}
	}

	return &domain.Proposal{
		Initiator:      req.Initiator,
		Counterparty:   req.Counterparty,
		OfferedItems:   append([]string(nil), req.OfferedItems...),
		RequestedItems: append([]string(nil), req.RequestedItems...),
		Status:         domain.StatusPending,
		Note:           req.Note,
		CreatedAt:      at,
		UpdatedAt:      at,
	}, nil
}

func checkStructure(req domain.ProposalRequest) error {
	if strings.TrimSpace(req.Initiator) == "" || strings.TrimSpace(req.Counterparty) == "" {
		return invalid("initiator and counterparty are required")
	}
	if req.Initiator == req.Counterparty {
		return invalid("initiator and counterparty must differ")
	}
	if len(req.OfferedItems) == 0 {
		return invalid("at least one item must be offered")
	}
	if len(req.RequestedItems) == 0 {
		return invalid("at least one item must be requested")
	}

	offered := make(map[string]struct{}, len(req.OfferedItems))
	for _, id := range req.OfferedItems {
		if strings.TrimSpace(id) == "" {
			return invalid("empty offered item id")
		}
		if _, dup := offered[id]; dup {
			return invalid("item %s offered twice", id)
		}
		offered[id] = struct{}{}
	}
	requested := make(map[string]struct{}, len(req.RequestedItems))
	for _, id := range req.RequestedItems {
		if strings.TrimSpace(id) == "" {
			return invalid("empty requested item id")
		}
		if _, dup := requested[id]; dup {
			return invalid("item %s requested twice", id)
		}
		if _, both := offered[id]; both {
			return invalid("item %s is both offered and requested", id)
		}
		requested[id] = struct{}{}
	}
	return nil
}

func checkOwner(id string, own *domain.Ownership, want, role string) error {
	if own == nil {
		return invalid("item %s does not exist", id)
	}
	if own.Owner != want {
		return invalid("item %s is not owned by the %s", id, role)
	}
	return nil
}

// lookup reads every item concurrently. A nil entry means the item does not exist.
func (v *Validator) lookup(ctx context.Context, ids []string) ([]*domain.Ownership, error) {
	out := make([]*domain.Ownership, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxLookups)
	for i, id := range ids {
		g.Go(func() error {
			own, err := v.items.GetItem(gctx, id)
			if errors.Is(err, domain.ErrItemNotFound) {
				return nil
			}
			if err != nil {
				return storeErr(err)
			}
			out[i] = &own
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
