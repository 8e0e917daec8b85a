package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/barter/pkg/domain"
	"github.com/aretw0/barter/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels of store operations.
const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeError    = "error"
)

type instrumentation struct {
	duration *prometheus.HistogramVec
}

// NewInstrumentation creates a middleware recording the latency and outcome
// of every store operation. Conditional-write refusals and misses are
// "rejected", anything else that fails is "error".
func NewInstrumentation(reg prometheus.Registerer) (Middleware, error) {
	in := &instrumentation{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "barter_store_operation_duration_seconds",
				Help:    "Duration of store operations by operation and outcome",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "outcome"},
		),
	}
	if err := reg.Register(in.duration); err != nil {
		return nil, err
	}

	return func(next ports.Store) ports.Store {
		s := &instrumentedStore{next: next, in: in}
		if tx, ok := next.(ports.Transactor); ok {
			return &instrumentedTxStore{instrumentedStore: s, tx: tx}
		}
		return s
	}, nil
}

func (in *instrumentation) observe(op string, start time.Time, err error) {
	outcome := outcomeOK
	switch {
	case err == nil:
	case domain.IsKnown(err) && !errors.Is(err, domain.ErrStoreUnavailable):
		outcome = outcomeRejected
	default:
		outcome = outcomeError
	}
	in.duration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

type instrumentedStore struct {
	next ports.Store
	in   *instrumentation
}

func (s *instrumentedStore) GetItem(ctx context.Context, id string) (domain.Ownership, error) {
	start := time.Now()
	own, err := s.next.GetItem(ctx, id)
	s.in.observe("get_item", start, err)
	return own, err
}

func (s *instrumentedStore) SetOwnerIf(ctx context.Context, id, newOwner string, expectedVersion int64) (int64, error) {
	start := time.Now()
	v, err := s.next.SetOwnerIf(ctx, id, newOwner, expectedVersion)
	s.in.observe("set_owner_if", start, err)
	return v, err
}

func (s *instrumentedStore) CreateItem(ctx context.Context, item *domain.Item) error {
	start := time.Now()
	err := s.next.CreateItem(ctx, item)
	s.in.observe("create_item", start, err)
	return err
}

func (s *instrumentedStore) GetItemRecord(ctx context.Context, id string) (*domain.Item, error) {
	start := time.Now()
	item, err := s.next.GetItemRecord(ctx, id)
	s.in.observe("get_item_record", start, err)
	return item, err
}

func (s *instrumentedStore) ListItems(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error) {
	start := time.Now()
	items, err := s.next.ListItems(ctx, filter)
	s.in.observe("list_items", start, err)
	return items, err
}

func (s *instrumentedStore) PatchItem(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error) {
	start := time.Now()
	item, err := s.next.PatchItem(ctx, id, patch)
	s.in.observe("patch_item", start, err)
	return item, err
}

func (s *instrumentedStore) DeleteItem(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.DeleteItem(ctx, id)
	s.in.observe("delete_item", start, err)
	return err
}

func (s *instrumentedStore) GetProposal(ctx context.Context, id string) (*domain.Proposal, error) {
	start := time.Now()
	p, err := s.next.GetProposal(ctx, id)
	s.in.observe("get_proposal", start, err)
	return p, err
}

func (s *instrumentedStore) SetStatusIf(ctx context.Context, id string, next, expected domain.Status, at time.Time) error {
	start := time.Now()
	err := s.next.SetStatusIf(ctx, id, next, expected, at)
	s.in.observe("set_status_if", start, err)
	return err
}

func (s *instrumentedStore) InsertProposal(ctx context.Context, p *domain.Proposal) (string, error) {
	start := time.Now()
	id, err := s.next.InsertProposal(ctx, p)
	s.in.observe("insert_proposal", start, err)
	return id, err
}

func (s *instrumentedStore) ListProposals(ctx context.Context, account string) ([]domain.Proposal, error) {
	start := time.Now()
	list, err := s.next.ListProposals(ctx, account)
	s.in.observe("list_proposals", start, err)
	return list, err
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}

type instrumentedTxStore struct {
	*instrumentedStore
	tx ports.Transactor
}

func (s *instrumentedTxStore) CommitTransfer(ctx context.Context, plan domain.TransferPlan) error {
	start := time.Now()
	err := s.tx.CommitTransfer(ctx, plan)
	s.in.observe("commit_transfer", start, err)
	return err
}
