package exchange

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/barter/pkg/domain"
)

// storeErr surfaces unknown store failures as domain.ErrStoreUnavailable.
// Domain kinds and context errors pass through untouched.
func storeErr(err error) error {
	if err == nil || domain.IsKnown(err) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidProposal, fmt.Sprintf(format, args...))
}
