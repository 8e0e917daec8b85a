package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/barter/internal/testutils"
	"github.com/aretw0/barter/pkg/adapters/memory"
	"github.com/aretw0/barter/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingItems struct{ err error }

func (f failingItems) GetItem(context.Context, string) (domain.Ownership, error) {
	return domain.Ownership{}, f.err
}

func (f failingItems) SetOwnerIf(context.Context, string, string, int64) (int64, error) {
	return 0, f.err
}

func TestValidator_Validate(t *testing.T) {
	store := memory.NewStore()
	testutils.SeedItems(t, store, map[string]string{"g1": "alice", "g2": "bob", "g3": "bob"})
	v := NewValidator(store)

	tests := []struct {
		name    string
		req     domain.ProposalRequest
		wantErr string
	}{
		{
			name: "Valid",
			req:  domain.ProposalRequest{Initiator: "alice", Counterparty: "bob", OfferedItems: []string{"g1"}, RequestedItems: []string{"g2", "g3"}},
		},
		{
			name:    "MissingInitiator",
			req:     domain.ProposalRequest{Counterparty: "bob", OfferedItems: []string{"g1"}, RequestedItems: []string{"g2"}},
			wantErr: "initiator and counterparty are required",
		},
		{
			name:    "SameParty",
			req:     domain.ProposalRequest{Initiator: "bob", Counterparty: "bob", OfferedItems: []string{"g2"}, RequestedItems: []string{"g3"}},
			wantErr: "must differ",
		},
		{
			name:    "NothingOffered",
			req:     domain.ProposalRequest{Initiator: "alice", Counterparty: "bob", RequestedItems: []string{"g2"}},
			wantErr: "at least one item must be offered",
		},
		{
			name:    "NothingRequested",
			req:     domain.ProposalRequest{Initiator: "alice", Counterparty: "bob", OfferedItems: []string{"g1"}},
			wantErr: "at least one item must be requested",
		},
		{
			name:    "DuplicateOffered",
			req:     domain.ProposalRequest{Initiator: "alice", Counterparty: "bob", OfferedItems: []string{"g1", "g1"}, RequestedItems: []string{"g2"}},
			wantErr: "offered twice",
		},
		{
			name:    "Overlap",
			req:     domain.ProposalRequest{Initiator: "alice", Counterparty: "bob", OfferedItems: []string{"g1"}, RequestedItems: []string{"g1"}},
			wantErr: "both offered and requested",
		},
		{
			name:    "UnknownItem",
			req:     domain.ProposalRequest{Initiator: "alice", Counterparty: "bob", OfferedItems: []string{"g9"}, RequestedItems: []string{"g2"}},
			wantErr: "g9 does not exist",
		},
		{
			name:    "OfferedNotOwned",
			req:     domain.ProposalRequest{Initiator: "alice", Counterparty: "bob", OfferedItems: []string{"g1", "g3"}, RequestedItems: []string{"g2"}},
			wantErr: "g3 is not owned by the initiator",
		},
		{
			name:    "OfferedCheckedFirst",
			req:     domain.ProposalRequest{Initiator: "alice", Counterparty: "bob", OfferedItems: []string{"g3"}, RequestedItems: []string{"g1"}},
			wantErr: "g3 is not owned by the initiator",
		},
		{
			name:    "RequestedFromWrongParty",
			req:     domain.ProposalRequest{Initiator: "bob", Counterparty: "carol", OfferedItems: []string{"g2"}, RequestedItems: []string{"g1"}},
			wantErr: "g1 is not owned by the counterparty",
		},
	}

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := v.Validate(context.Background(), tt.req, at)
			if tt.wantErr != "" {
				require.ErrorIs(t, err, domain.ErrInvalidProposal)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, domain.StatusPending, p.Status)
			assert.Equal(t, at, p.CreatedAt)
			assert.Equal(t, at, p.UpdatedAt)
			assert.Equal(t, tt.req.OfferedItems, p.OfferedItems)
			assert.Empty(t, p.ID)
		})
	}
}

func TestValidator_StoreFailure(t *testing.T) {
	v := NewValidator(failingItems{err: errors.New("dial tcp: refused")})
	_, err := v.Validate(context.Background(), domain.ProposalRequest{
		Initiator: "alice", Counterparty: "bob",
		OfferedItems: []string{"g1"}, RequestedItems: []string{"g2"},
	}, time.Now())

	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, domain.ErrInvalidProposal)
	assert.True(t, domain.Retryable(err))
}

func TestValidator_DoesNotAliasRequest(t *testing.T) {
	store := memory.NewStore()
	testutils.SeedItems(t, store, map[string]string{"g1": "alice", "g2": "bob"})

	req := domain.ProposalRequest{Initiator: "alice", Counterparty: "bob", OfferedItems: []string{"g1"}, RequestedItems: []string{"g2"}}
	p, err := NewValidator(store).Validate(context.Background(), req, time.Now())
	require.NoError(t, err)

	req.OfferedItems[0] = "changed"
	assert.Equal(t, []string{"g1"}, p.OfferedItems)
}
