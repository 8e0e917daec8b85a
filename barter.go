package barter

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/barter/internal/exchange"
	"github.com/aretw0/barter/pkg/catalog"
	"github.com/aretw0/barter/pkg/domain"
	"github.com/aretw0/barter/pkg/ports"
)

// Version is the library version reported by the CLI and the /info endpoint.
const Version = "0.4.0"

// RollbackPolicy bounds the retries of compensating writes when a transfer
// runs without a store transaction.
type RollbackPolicy = exchange.RollbackPolicy

// Exchange is the high-level entry point for the barter library.
// It wraps the internal engine and the item catalog over a single store.
type Exchange struct {
	engine  *exchange.Engine
	catalog *catalog.Service
	store   ports.Store
	hooks   domain.Hooks
	logger  *slog.Logger
	opts    []exchange.EngineOption
	idGen   func() string
}

// Option defines a functional option for configuring the Exchange.
type Option func(*Exchange)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.Hooks) Option {
	return func(e *Exchange) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger for the exchange.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Exchange) {
		e.logger = logger
	}
}

// WithClock overrides the time source of proposal timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Exchange) {
		e.opts = append(e.opts, exchange.WithClock(now))
	}
}

// WithIDGenerator overrides the generator of proposal and item IDs.
func WithIDGenerator(gen func() string) Option {
	return func(e *Exchange) {
		e.idGen = gen
	}
}

// WithoutTransactions forces ordered conditional writes with compensation
// even when the store can commit a transfer in one transaction.
func WithoutTransactions() Option {
	return func(e *Exchange) {
		e.opts = append(e.opts, exchange.WithoutTransactions())
	}
}

// WithRollbackPolicy overrides the default compensation retry bounds.
func WithRollbackPolicy(p RollbackPolicy) Option {
	return func(e *Exchange) {
		e.opts = append(e.opts, exchange.WithRollbackRetry(p))
	}
}

// New initializes an Exchange over the given store.
func New(store ports.Store, opts ...Option) *Exchange {
	ex := &Exchange{store: store}
	for _, opt := range opts {
		opt(ex)
	}

	// Ensure logger is initialized so components never log to nil.
	if ex.logger == nil {
		ex.logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	engineOpts := []exchange.EngineOption{
		exchange.WithLifecycleHooks(ex.hooks),
		exchange.WithLogger(ex.logger),
	}
	catalogOpts := []catalog.Option{catalog.WithLogger(ex.logger)}
	if ex.idGen != nil {
		engineOpts = append(engineOpts, exchange.WithIDGenerator(ex.idGen))
		catalogOpts = append(catalogOpts, catalog.WithIDGenerator(ex.idGen))
	}
	engineOpts = append(engineOpts, ex.opts...)

	ex.engine = exchange.NewEngine(store, store, engineOpts...)
	ex.catalog = catalog.New(store, catalogOpts...)
	return ex
}

// CreateProposal validates the request and stores it as a pending proposal.
func (e *Exchange) CreateProposal(ctx context.Context, req domain.ProposalRequest) (*domain.Proposal, error) {
	return e.engine.Create(ctx, req)
}

// AcceptProposal swaps the proposal's items. Only the counterparty may accept.
func (e *Exchange) AcceptProposal(ctx context.Context, proposalID, actor string) (*domain.Proposal, error) {
	return e.engine.Accept(ctx, proposalID, actor)
}

// RejectProposal declines the proposal. Only the counterparty may reject.
func (e *Exchange) RejectProposal(ctx context.Context, proposalID, actor string) (*domain.Proposal, error) {
	return e.engine.Reject(ctx, proposalID, actor)
}

// CancelProposal withdraws the proposal. Only the initiator may cancel.
func (e *Exchange) CancelProposal(ctx context.Context, proposalID, actor string) (*domain.Proposal, error) {
	return e.engine.Cancel(ctx, proposalID, actor)
}

// GetProposal returns a proposal by ID.
func (e *Exchange) GetProposal(ctx context.Context, proposalID string) (*domain.Proposal, error) {
	return e.engine.Get(ctx, proposalID)
}

// ListProposals returns the proposals in which the account is a party, newest first.
func (e *Exchange) ListProposals(ctx context.Context, account string) ([]domain.Proposal, error) {
	return e.engine.ListForAccount(ctx, account)
}

// Catalog returns the item catalog sharing the exchange's store.
func (e *Exchange) Catalog() *catalog.Service {
	return e.catalog
}

// Transactional reports whether accepts commit in one store transaction.
func (e *Exchange) Transactional() bool {
	return e.engine.Transactional()
}

// Close releases the underlying store.
func (e *Exchange) Close() error {
	return e.store.Close()
}
