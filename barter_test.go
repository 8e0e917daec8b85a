package barter_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/barter"
	"github.com/aretw0/barter/pkg/adapters/memory"
	"github.com/aretw0/barter/pkg/adapters/sqlite"
	"github.com/aretw0/barter/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchange_Lifecycle(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ids := 0
	ex := barter.New(memory.NewStore(),
		barter.WithClock(func() time.Time { return fixed }),
		barter.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("id-%d", ids)
		}),
	)
	defer ex.Close()

	g1, err := ex.Catalog().Create(ctx, domain.Item{Title: "Zelda", Owner: "alice"})
	require.NoError(t, err)
	g2, err := ex.Catalog().Create(ctx, domain.Item{Title: "Mario", Owner: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "id-1", g1.ID)

	p, err := ex.CreateProposal(ctx, domain.ProposalRequest{
		Initiator: "alice", Counterparty: "bob",
		OfferedItems: []string{g1.ID}, RequestedItems: []string{g2.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, "id-3", p.ID)
	assert.Equal(t, fixed, p.CreatedAt)

	accepted, err := ex.AcceptProposal(ctx, p.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, accepted.Status)

	mine, err := ex.Catalog().OwnedBy(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, g2.ID, mine[0].ID)

	list, err := ex.ListProposals(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, domain.StatusAccepted, list[0].Status)

	_, err = ex.CancelProposal(ctx, p.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

func TestExchange_SoldElsewhere(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "barter.db"))
	require.NoError(t, err)
	ex := barter.New(store)
	defer ex.Close()
	assert.True(t, ex.Transactional())

	g1, err := ex.Catalog().Create(ctx, domain.Item{ID: "g1", Title: "Zelda", Owner: "alice"})
	require.NoError(t, err)
	g2, err := ex.Catalog().Create(ctx, domain.Item{ID: "g2", Title: "Mario", Owner: "bob"})
	require.NoError(t, err)

	p, err := ex.CreateProposal(ctx, domain.ProposalRequest{
		Initiator: "alice", Counterparty: "bob",
		OfferedItems: []string{g1.ID}, RequestedItems: []string{g2.ID},
	})
	require.NoError(t, err)

	_, err = ex.Catalog().Transfer(ctx, g2.ID, "carol")
	require.NoError(t, err)

	_, err = ex.AcceptProposal(ctx, p.ID, "bob")
	require.ErrorIs(t, err, domain.ErrTransferConflict)

	item, err := ex.Catalog().Get(ctx, g1.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", item.Owner)
	item, err = ex.Catalog().Get(ctx, g2.ID)
	require.NoError(t, err)
	assert.Equal(t, "carol", item.Owner)

	got, err := ex.GetProposal(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)

	rejected, err := ex.RejectProposal(ctx, p.ID, "bob")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, rejected.Status)
}

func TestExchange_WithoutTransactions(t *testing.T) {
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "barter.db"))
	require.NoError(t, err)
	ex := barter.New(store, barter.WithoutTransactions(), barter.WithRollbackPolicy(barter.RollbackPolicy{
		InitialInterval: time.Millisecond,
		MaxInterval:     10 * time.Millisecond,
		MaxElapsed:      time.Second,
	}))
	defer ex.Close()
	assert.False(t, ex.Transactional())
}
