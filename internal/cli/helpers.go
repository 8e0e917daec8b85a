package cli

import (
	"context"
	"log/slog"

	"github.com/aretw0/barter/internal/logging"
	"github.com/aretw0/barter/pkg/domain"
)

// CreateLogger builds the process logger from a textual level.
func CreateLogger(level string) (*slog.Logger, error) {
	lvl, err := logging.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logging.New(lvl), nil
}

func createDebugHooks(logger *slog.Logger) domain.Hooks {
	return domain.Hooks{
		OnTransition: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "Transition",
				"proposal_id", e.ProposalID,
				"transition", e.Transition,
				"actor", e.Actor,
				"status", e.Status,
				"duration", e.Duration,
				"err", e.Err,
			)
		},
		OnTransferConflict: func(ctx context.Context, e *domain.TransitionEvent) {
			logger.DebugContext(ctx, "Transfer Conflict", "proposal_id", e.ProposalID, "err", e.Err)
		},
		OnRollback: func(ctx context.Context, e *domain.RollbackEvent) {
			logger.DebugContext(ctx, "Rollback", "proposal_id", e.ProposalID, "restored", e.Restored, "err", e.Err)
		},
	}
}
