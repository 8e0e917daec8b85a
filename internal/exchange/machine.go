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
	"github.com/google/uuid"
)

// Engine drives the proposal lifecycle: pending, then exactly one of
// accepted, rejected or cancelled.
type Engine struct {
	items       ports.ItemStore
	proposals   ports.ProposalStore
	validator   *Validator
	coordinator *Coordinator
	coordOpts   []CoordinatorOption
	hooks       domain.Hooks
	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.Hooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithClock overrides the time source used for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithIDGenerator overrides the proposal ID generator (default: random UUID).
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) {
		e.newID = gen
	}
}

// WithoutTransactions forces the single-record transfer path even when the
// item store supports transactions.
func WithoutTransactions() EngineOption {
	return func(e *Engine) {
		e.coordOpts = append(e.coordOpts, WithTransactor(nil))
	}
}

// WithRollbackRetry bounds the retries of compensating writes.
func WithRollbackRetry(p RollbackPolicy) EngineOption {
	return func(e *Engine) {
		e.coordOpts = append(e.coordOpts, WithRollbackPolicy(p))
	}
}

// NewEngine creates an engine over the given stores.
func NewEngine(items ports.ItemStore, proposals ports.ProposalStore, opts ...EngineOption) *Engine {
	e := &Engine{
		items:     items,
		proposals: proposals,
		logger:    logging.NewNop(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}

	e.validator = NewValidator(items)
	coordOpts := append([]CoordinatorOption{
		WithCoordinatorHooks(e.hooks),
		WithCoordinatorLogger(e.logger),
	}, e.coordOpts...)
	e.coordinator = NewCoordinator(items, proposals, coordOpts...)
	return e
}

// timestamp is the engine clock at the millisecond precision every store keeps.
func (e *Engine) timestamp() time.Time {
	return e.now().UTC().Truncate(time.Millisecond)
}

// Transactional reports whether accepted transfers commit in one store transaction.
func (e *Engine) Transactional() bool {
	return e.coordinator.Transactional()
}

// Create validates req and persists it as a pending proposal.
func (e *Engine) Create(ctx context.Context, req domain.ProposalRequest) (*domain.Proposal, error) {
	start := time.Now()
	p, err := e.create(ctx, req)

	evt := &domain.TransitionEvent{
		EventBase: domain.EventBase{
			Timestamp: start,
			Type:      domain.EventProposalCreated,
		},
		Transition: domain.TransitionCreate,
		Actor:      req.Initiator,
		Duration:   time.Since(start),
		Err:        err,
	}
	if p != nil {
		evt.ProposalID = p.ID
		evt.Status = p.Status
	}
	e.emitTransition(ctx, evt)

	if err != nil {
		e.logger.DebugContext(ctx, "proposal rejected at creation", "initiator", req.Initiator, "err", err)
		return nil, err
	}
	e.logger.InfoContext(ctx, "proposal created",
		"proposal_id", p.ID,
		"initiator", p.Initiator,
		"counterparty", p.Counterparty,
	)
	return p, nil
}

func (e *Engine) create(ctx context.Context, req domain.ProposalRequest) (*domain.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := e.validator.Validate(ctx, req, e.timestamp())
	if err != nil {
		return nil, err
	}
	p.ID = e.newID()

	// Creation ends here once the write is issued, so it must not be torn by cancellation.
	id, err := e.proposals.InsertProposal(context.WithoutCancel(ctx), p)
	if err != nil {
		return nil, fmt.Errorf("failed to persist proposal: %w", storeErr(err))
	}
	p.ID = id
	return p, nil
}

// Accept swaps the items of a pending proposal. Only the counterparty may accept.
func (e *Engine) Accept(ctx context.Context, proposalID, actor string) (*domain.Proposal, error) {
	return e.transition(ctx, proposalID, actor, domain.TransitionAccept)
}

// Reject declines a pending proposal. Only the counterparty may reject.
func (e *Engine) Reject(ctx context.Context, proposalID, actor string) (*domain.Proposal, error) {
	return e.transition(ctx, proposalID, actor, domain.TransitionReject)
}

// Cancel withdraws a pending proposal. Only the initiator may cancel.
func (e *Engine) Cancel(ctx context.Context, proposalID, actor string) (*domain.Proposal, error) {
	return e.transition(ctx, proposalID, actor, domain.TransitionCancel)
}

// Get returns a proposal by ID.
func (e *Engine) Get(ctx context.Context, proposalID string) (*domain.Proposal, error) {
	p, err := e.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

// ListForAccount returns every proposal in which the account is a party, newest first.
func (e *Engine) ListForAccount(ctx context.Context, account string) ([]domain.Proposal, error) {
	list, err := e.proposals.ListProposals(ctx, account)
	if err != nil {
		return nil, storeErr(err)
	}
	return list, nil
}

func (e *Engine) transition(ctx context.Context, proposalID, actor string, t domain.Transition) (*domain.Proposal, error) {
	start := time.Now()
	p, err := e.apply(ctx, proposalID, actor, t)

	evt := &domain.TransitionEvent{
		EventBase: domain.EventBase{
			Timestamp:  start,
			Type:       domain.EventTransition,
			ProposalID: proposalID,
		},
		Transition: t,
		Actor:      actor,
		Duration:   time.Since(start),
		Err:        err,
	}
	if p != nil {
		evt.Status = p.Status
	}
	e.emitTransition(ctx, evt)

	log := e.logger.With("proposal_id", proposalID, "transition", string(t), "actor", actor)
	switch {
	case err == nil:
		log.InfoContext(ctx, "proposal resolved", "status", string(p.Status))
	case errors.Is(err, domain.ErrInconsistentState):
		log.ErrorContext(ctx, "transition left inconsistent state", "err", err)
	case errors.Is(err, domain.ErrTransferConflict):
		evt.Type = domain.EventTransferConflict
		if e.hooks.OnTransferConflict != nil {
			e.hooks.OnTransferConflict(ctx, evt)
		}
		log.WarnContext(ctx, "transfer conflict", "err", err)
	case errors.Is(err, domain.ErrStoreUnavailable):
		log.WarnContext(ctx, "store unavailable", "err", err)
	default:
		log.DebugContext(ctx, "transition refused", "err", err)
	}
	return p, err
}

func (e *Engine) apply(ctx context.Context, proposalID, actor string, t domain.Transition) (*domain.Proposal, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := e.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, storeErr(err)
	}

	if err := authorize(p, actor, t); err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: proposal %s is %s", domain.ErrAlreadyResolved, p.ID, p.Status)
	}

	// Last point at which cancellation is honored. Past it the outcome is
	// committed as a whole or not at all.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx = context.WithoutCancel(ctx)
	at := e.timestamp()

	if t == domain.TransitionAccept {
		err := e.coordinator.Transfer(ctx, p, at)
		if errors.Is(err, domain.ErrTransferConflict) {
			// A losing concurrent accept sees moved items; report the settled proposal instead.
			if cur, gerr := e.proposals.GetProposal(ctx, p.ID); gerr == nil && cur.Status.IsTerminal() {
				return nil, fmt.Errorf("%w: proposal %s is %s", domain.ErrAlreadyResolved, p.ID, cur.Status)
			}
		}
		if err != nil {
			return nil, err
		}
		return p.Resolve(domain.StatusAccepted, at), nil
	}

	next := targetStatus(t)
	if err := e.proposals.SetStatusIf(ctx, p.ID, next, domain.StatusPending, at); err != nil {
		if errors.Is(err, domain.ErrStatusMismatch) {
			return nil, fmt.Errorf("%w: proposal %s settled concurrently", domain.ErrAlreadyResolved, p.ID)
		}
		return nil, storeErr(err)
	}
	return p.Resolve(next, at), nil
}

func authorize(p *domain.Proposal, actor string, t domain.Transition) error {
	var want string
	switch t {
	case domain.TransitionAccept, domain.TransitionReject:
		want = p.Counterparty
	case domain.TransitionCancel:
		want = p.Initiator
	}
	if actor == "" || actor != want {
		return fmt.Errorf("%w: %s may not %s proposal %s", domain.ErrUnauthorized, actor, t, p.ID)
	}
	return nil
}

func targetStatus(t domain.Transition) domain.Status {
	switch t {
	case domain.TransitionAccept:
		return domain.StatusAccepted
	case domain.TransitionReject:
		return domain.StatusRejected
	default:
		return domain.StatusCancelled
	}
}

func (e *Engine) emitTransition(ctx context.Context, evt *domain.TransitionEvent) {
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, evt)
	}
}
