// Package metrics exports exchange lifecycle events as Prometheus metrics.
package metrics

import (
	"context"
	"errors"

	"github.com/aretw0/barter/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	OutcomeOK               = "ok"
	OutcomeInvalid          = "invalid"
	OutcomeUnauthorized     = "unauthorized"
	OutcomeAlreadyResolved  = "already_resolved"
	OutcomeTransferConflict = "transfer_conflict"
	OutcomeUnavailable      = "store_unavailable"
	OutcomeInconsistent     = "inconsistent"
	OutcomeNotFound         = "not_found"
	OutcomeCanceled         = "canceled"
	OutcomeError            = "error"
)

// Collector turns domain.Hooks events into Prometheus series.
type Collector struct {
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	conflicts   prometheus.Counter
	rollbacks   *prometheus.CounterVec
}

// NewCollector creates the metric vectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barter_transitions_total",
				Help: "Proposal transitions by kind and outcome",
			},
			[]string{"transition", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "barter_transition_duration_seconds",
				Help:    "Duration of proposal transitions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"transition"},
		),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "barter_transfer_conflicts_total",
			Help: "Accepts that failed because an item changed owner",
		}),
		rollbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "barter_rollbacks_total",
				Help: "Compensation runs of the single-record transfer path by result",
			},
			[]string{"result"},
		),
	}
	for _, col := range []prometheus.Collector{c.transitions, c.duration, c.conflicts, c.rollbacks} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Hooks returns lifecycle hooks feeding the collector.
func (c *Collector) Hooks() domain.Hooks {
	return domain.Hooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			c.transitions.WithLabelValues(string(e.Transition), Outcome(e.Err)).Inc()
			c.duration.WithLabelValues(string(e.Transition)).Observe(e.Duration.Seconds())
		},
		OnTransferConflict: func(context.Context, *domain.TransitionEvent) {
			c.conflicts.Inc()
		},
		OnRollback: func(_ context.Context, e *domain.RollbackEvent) {
			result := "restored"
			if errors.Is(e.Err, domain.ErrInconsistentState) {
				result = "incomplete"
			}
			c.rollbacks.WithLabelValues(result).Inc()
		},
	}
}

// Outcome classifies an operation error into a bounded label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, domain.ErrInconsistentState):
		return OutcomeInconsistent
	case errors.Is(err, domain.ErrInvalidProposal):
		return OutcomeInvalid
	case errors.Is(err, domain.ErrUnauthorized):
		return OutcomeUnauthorized
	case errors.Is(err, domain.ErrAlreadyResolved):
		return OutcomeAlreadyResolved
	case errors.Is(err, domain.ErrTransferConflict):
		return OutcomeTransferConflict
	case errors.Is(err, domain.ErrProposalNotFound):
		return OutcomeNotFound
	case errors.Is(err, domain.ErrStoreUnavailable):
		return OutcomeUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	}
	return OutcomeError
}

// Combine fans each event out to every set of hooks.
func Combine(all ...domain.Hooks) domain.Hooks {
	return domain.Hooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			for _, h := range all {
				if h.OnTransition != nil {
					h.OnTransition(ctx, e)
				}
			}
		},
		OnTransferConflict: func(ctx context.Context, e *domain.TransitionEvent) {
			for _, h := range all {
				if h.OnTransferConflict != nil {
					h.OnTransferConflict(ctx, e)
				}
			}
		},
		OnRollback: func(ctx context.Context, e *domain.RollbackEvent) {
			for _, h := range all {
				if h.OnRollback != nil {
					h.OnRollback(ctx, e)
				}
			}
		},
	}
}
