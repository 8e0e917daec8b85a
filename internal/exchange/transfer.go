package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/barter/internal/logging"
	"github.com/aretw0/barter/pkg/domain"
	"github.com/aretw0/barter/pkg/ports"
	"github.com/cenkalti/backoff/v5"
)

// RollbackPolicy bounds the retries of compensating writes on the single-record path.
type RollbackPolicy struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

// DefaultRollbackPolicy retries compensations for up to thirty seconds.
var DefaultRollbackPolicy = RollbackPolicy{
	InitialInterval: 50 * time.Millisecond,
	MaxInterval:     2 * time.Second,
	MaxElapsed:      30 * time.Second,
}

func (p RollbackPolicy) retryOptions() []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(p.MaxElapsed),
	}
}

// Coordinator moves ownership of every item of a proposal as one unit and
// settles the proposal as accepted in the same unit.
//
// With a ports.Transactor the whole plan commits in one store transaction.
// Otherwise writes are applied one by one in ascending item ID order and
// compensated on failure.
type Coordinator struct {
	items     ports.ItemStore
	proposals ports.ProposalStore
	tx        ports.Transactor
	policy    RollbackPolicy
	hooks     domain.Hooks
	logger    *slog.Logger
}

// CoordinatorOption configures the Coordinator.
type CoordinatorOption func(*Coordinator)

// WithTransactor forces the transactional path. Pass nil to force the single-record path.
func WithTransactor(tx ports.Transactor) CoordinatorOption {
	return func(c *Coordinator) {
		c.tx = tx
	}
}

// WithRollbackPolicy overrides DefaultRollbackPolicy.
func WithRollbackPolicy(p RollbackPolicy) CoordinatorOption {
	return func(c *Coordinator) {
		c.policy = p
	}
}

// WithCoordinatorHooks registers observability hooks.
func WithCoordinatorHooks(hooks domain.Hooks) CoordinatorOption {
	return func(c *Coordinator) {
		c.hooks = hooks
	}
}

// WithCoordinatorLogger configures a logger for the Coordinator.
func WithCoordinatorLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// NewCoordinator creates a coordinator. If items also implements
// ports.Transactor it is used unless an option says otherwise.
func NewCoordinator(items ports.ItemStore, proposals ports.ProposalStore, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		items:     items,
		proposals: proposals,
		policy:    DefaultRollbackPolicy,
		logger:    logging.NewNop(),
	}
	if tx, ok := items.(ports.Transactor); ok {
		c.tx = tx
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Transactional reports whether transfers commit in one store transaction.
func (c *Coordinator) Transactional() bool {
	return c.tx != nil
}

// Transfer swaps the items of p and marks it accepted at the given time.
// It returns nil only if every item reached its new owner and the proposal
// is accepted. domain.ErrTransferConflict means an item moved since creation;
// domain.ErrAlreadyResolved means a concurrent transition settled p first.
func (c *Coordinator) Transfer(ctx context.Context, p *domain.Proposal, at time.Time) error {
	writes, err := c.stage(ctx, p)
	if err != nil {
		return err
	}
	settle := domain.StatusChange{
		ProposalID: p.ID,
		From:       domain.StatusPending,
		To:         domain.StatusAccepted,
		At:         at,
	}

	if c.tx != nil {
		return c.commit(ctx, domain.TransferPlan{Writes: writes, Settle: settle})
	}
	return c.applyInOrder(ctx, writes, settle)
}

// stage reads every item and confirms it is still held by the party recorded in p.
func (c *Coordinator) stage(ctx context.Context, p *domain.Proposal) ([]domain.OwnerWrite, error) {
	writes := domain.Moves(p)
	for i, w := range writes {
		own, err := c.items.GetItem(ctx, w.ItemID)
		if errors.Is(err, domain.ErrItemNotFound) {
			return nil, fmt.Errorf("%w: item %s no longer exists", domain.ErrTransferConflict, w.ItemID)
		}
		if err != nil {
			return nil, storeErr(err)
		}
		if own.Owner != w.From {
			return nil, fmt.Errorf("%w: item %s changed owner", domain.ErrTransferConflict, w.ItemID)
		}
		writes[i].ExpectedVersion = own.Version
	}
	return writes, nil
}

func (c *Coordinator) commit(ctx context.Context, plan domain.TransferPlan) error {
	err := c.tx.CommitTransfer(ctx, plan)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrVersionMismatch), errors.Is(err, domain.ErrItemNotFound):
		return fmt.Errorf("%w: an item changed during the transfer", domain.ErrTransferConflict)
	case errors.Is(err, domain.ErrStatusMismatch):
		return fmt.Errorf("%w: proposal %s settled concurrently", domain.ErrAlreadyResolved, plan.Settle.ProposalID)
	}
	return storeErr(err)
}

// appliedWrite is a move that landed and must be undone if the transfer fails.
type appliedWrite struct {
	domain.OwnerWrite
	Version int64
}

func (c *Coordinator) applyInOrder(ctx context.Context, writes []domain.OwnerWrite, settle domain.StatusChange) error {
	applied := make([]appliedWrite, 0, len(writes))
	for _, w := range writes {
		v, err := c.items.SetOwnerIf(ctx, w.ItemID, w.To, w.ExpectedVersion)
		if err == nil {
			applied = append(applied, appliedWrite{OwnerWrite: w, Version: v})
			continue
		}

		var cause error
		switch {
		case errors.Is(err, domain.ErrVersionMismatch), errors.Is(err, domain.ErrItemNotFound):
			cause = fmt.Errorf("%w: item %s changed during the transfer", domain.ErrTransferConflict, w.ItemID)
		default:
			cause = storeErr(err)
			// The write may have landed even though the reply was lost.
			if landed, ok := c.probe(ctx, w); ok {
				applied = append(applied, landed)
			}
		}
		return c.rollback(ctx, settle.ProposalID, applied, cause)
	}

	if err := c.settle(ctx, settle); err != nil {
		return c.rollback(ctx, settle.ProposalID, applied, err)
	}
	return nil
}

// probe checks whether a write whose outcome is unknown was applied.
func (c *Coordinator) probe(ctx context.Context, w domain.OwnerWrite) (appliedWrite, bool) {
	own, err := backoff.Retry(context.WithoutCancel(ctx), func() (domain.Ownership, error) {
		own, err := c.items.GetItem(ctx, w.ItemID)
		if errors.Is(err, domain.ErrItemNotFound) {
			return own, backoff.Permanent(err)
		}
		return own, err
	}, c.policy.retryOptions()...)
	if err != nil {
		return appliedWrite{}, false
	}
	if own.Owner == w.To && own.Version == w.ExpectedVersion+1 {
		return appliedWrite{OwnerWrite: w, Version: own.Version}, true
	}
	return appliedWrite{}, false
}

// settle moves the proposal to accepted once every item moved. Transient
// failures are retried; a status that is already accepted means an earlier
// attempt landed.
func (c *Coordinator) settle(ctx context.Context, s domain.StatusChange) error {
	_, err := backoff.Retry(context.WithoutCancel(ctx), func() (struct{}, error) {
		err := c.proposals.SetStatusIf(ctx, s.ProposalID, s.To, s.From, s.At)
		switch {
		case err == nil:
			return struct{}{}, nil
		case errors.Is(err, domain.ErrStatusMismatch):
			current, gerr := c.proposals.GetProposal(ctx, s.ProposalID)
			if gerr != nil {
				return struct{}{}, gerr
			}
			if current.Status == s.To {
				return struct{}{}, nil
			}
			return struct{}{}, backoff.Permanent(fmt.Errorf("%w: proposal %s is %s",
				domain.ErrAlreadyResolved, s.ProposalID, current.Status))
		case errors.Is(err, domain.ErrProposalNotFound):
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, c.policy.retryOptions()...)
	return storeErr(err)
}

// rollback restores the previous owner of every applied write, newest first.
// It runs detached from the caller's cancellation. Versions are bumped again
// rather than reset since a version is never reused.
func (c *Coordinator) rollback(ctx context.Context, proposalID string, applied []appliedWrite, cause error) error {
	ctx = context.WithoutCancel(ctx)
	var stuck []string
	for i := len(applied) - 1; i >= 0; i-- {
		if err := c.restore(ctx, applied[i]); err != nil {
			stuck = append(stuck, applied[i].ItemID)
			c.logger.ErrorContext(ctx, "failed to restore item owner",
				"proposal_id", proposalID,
				"item_id", applied[i].ItemID,
				"owner", applied[i].From,
				"err", err,
			)
		}
	}

	var result error = cause
	if len(stuck) > 0 {
		result = fmt.Errorf("%w: proposal %s left items %v mid-transfer: %v",
			domain.ErrInconsistentState, proposalID, stuck, cause)
		c.logger.ErrorContext(ctx, "transfer rollback incomplete",
			"proposal_id", proposalID,
			"stuck_items", stuck,
			"cause", cause,
		)
	} else if len(applied) > 0 {
		c.logger.WarnContext(ctx, "transfer rolled back",
			"proposal_id", proposalID,
			"restored", len(applied),
			"cause", cause,
		)
	}

	if c.hooks.OnRollback != nil && len(applied) > 0 {
		c.hooks.OnRollback(ctx, &domain.RollbackEvent{
			EventBase: domain.EventBase{
				Timestamp:  time.Now(),
				Type:       domain.EventRollback,
				ProposalID: proposalID,
			},
			Restored: len(applied) - len(stuck),
			Err:      result,
		})
	}
	return result
}

func (c *Coordinator) restore(ctx context.Context, a appliedWrite) error {
	_, err := backoff.Retry(ctx, func() (int64, error) {
		v, err := c.items.SetOwnerIf(ctx, a.ItemID, a.From, a.Version)
		if err == nil {
			return v, nil
		}
		if errors.Is(err, domain.ErrVersionMismatch) || errors.Is(err, domain.ErrItemNotFound) {
			// An earlier attempt may have landed with its reply lost.
			own, gerr := c.items.GetItem(ctx, a.ItemID)
			if gerr == nil && own.Owner == a.From && own.Version == a.Version+1 {
				return own.Version, nil
			}
			return 0, backoff.Permanent(err)
		}
		return 0, err
	}, c.policy.retryOptions()...)
	return err
}
