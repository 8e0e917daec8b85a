package domain

import "errors"

// Engine-level error kinds. Callers match them with errors.Is; the engine
// wraps them with the precise reason.
var (
	// ErrInvalidProposal is returned when a structural or ownership precondition fails at creation.
	ErrInvalidProposal = errors.New("invalid proposal")

	// ErrAlreadyResolved is returned when a transition targets a proposal that is no longer pending.
	ErrAlreadyResolved = errors.New("proposal already resolved")

	// ErrUnauthorized is returned when the actor is not the party allowed to drive the transition.
	ErrUnauthorized = errors.New("actor not allowed to perform this transition")

	// ErrTransferConflict is returned when an item changed owner between creation and acceptance.
	// The proposal can no longer be completed; a fresh proposal is required.
	ErrTransferConflict = errors.New("trade can no longer be completed")

	// ErrStoreUnavailable marks transient infrastructure failures. The whole operation is safe to retry.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrInconsistentState is returned when a rollback could not restore ownership.
	// It requires operator attention and is always logged.
	ErrInconsistentState = errors.New("inconsistent ownership state")
)

// Store-level error kinds returned by adapters.
var (
	// ErrItemNotFound is returned when an item ID cannot be found in the store.
	ErrItemNotFound = errors.New("item not found")

	// ErrProposalNotFound is returned when a proposal ID cannot be found in the store.
	ErrProposalNotFound = errors.New("proposal not found")

	// ErrVersionMismatch is returned when a conditional owner write observes a different version.
	ErrVersionMismatch = errors.New("owner version mismatch")

	// ErrStatusMismatch is returned when a conditional status write observes a different status.
	ErrStatusMismatch = errors.New("proposal status mismatch")

	// ErrItemExists is returned when creating an item whose ID is already taken.
	ErrItemExists = errors.New("item already exists")

	// ErrInvalidItem is returned when an item record is missing required fields.
	ErrInvalidItem = errors.New("invalid item")
)

// Retryable reports whether the whole operation may be retried from the top.
// An inconsistent state is never retryable, whatever caused it.
func Retryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) && !errors.Is(err, ErrInconsistentState)
}

// IsKnown reports whether err carries one of the domain error kinds.
// Anything else coming out of a store is an infrastructure failure.
func IsKnown(err error) bool {
	for _, kind := range []error{
		ErrInvalidProposal, ErrAlreadyResolved, ErrUnauthorized, ErrTransferConflict,
		ErrStoreUnavailable, ErrInconsistentState,
		ErrItemNotFound, ErrProposalNotFound, ErrVersionMismatch, ErrStatusMismatch, ErrItemExists, ErrInvalidItem,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
