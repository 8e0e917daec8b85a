package tests

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/barter/pkg/domain"
	"github.com/aretw0/barter/pkg/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TransactorContractTest is a reusable test suite that verifies if an adapter complies with ports.Transactor.
// The store must also implement ports.Store so the suite can seed and inspect records.
func TransactorContractTest(t *testing.T, store interface {
	ports.Store
	ports.Transactor
}) {
	t.Helper()
	ctx := context.Background()

	seed := func(t *testing.T) (*domain.Proposal, []domain.OwnerWrite) {
		t.Helper()
		run := uuid.NewString()[:8]
		g1, g2 := "g1-"+run, "g2-"+run
		require.NoError(t, store.CreateItem(ctx, &domain.Item{ID: g1, Title: "Zelda", Owner: "alice"}))
		require.NoError(t, store.CreateItem(ctx, &domain.Item{ID: g2, Title: "Mario", Owner: "bob"}))

		now := time.Now().UTC().Truncate(time.Millisecond)
		p := &domain.Proposal{
			ID: "p-" + run, Initiator: "alice", Counterparty: "bob",
			OfferedItems: []string{g1}, RequestedItems: []string{g2},
			Status: domain.StatusPending, CreatedAt: now, UpdatedAt: now,
		}
		_, err := store.InsertProposal(ctx, p)
		require.NoError(t, err)

		writes := domain.Moves(p)
		for i := range writes {
			writes[i].ExpectedVersion = domain.InitialOwnerVersion
		}
		return p, writes
	}

	settle := func(p *domain.Proposal) domain.StatusChange {
		return domain.StatusChange{
			ProposalID: p.ID, From: domain.StatusPending, To: domain.StatusAccepted,
			At: p.CreatedAt.Add(time.Second),
		}
	}

	assertUntouched := func(t *testing.T, p *domain.Proposal) {
		t.Helper()
		own, err := store.GetItem(ctx, p.OfferedItems[0])
		require.NoError(t, err)
		assert.Equal(t, domain.Ownership{Owner: "alice", Version: domain.InitialOwnerVersion}, own)
		own, err = store.GetItem(ctx, p.RequestedItems[0])
		require.NoError(t, err)
		assert.Equal(t, domain.Ownership{Owner: "bob", Version: domain.InitialOwnerVersion}, own)
	}

	t.Run("Commit_Success", func(t *testing.T) {
		p, writes := seed(t)
		err := store.CommitTransfer(ctx, domain.TransferPlan{Writes: writes, Settle: settle(p)})
		require.NoError(t, err)

		own, err := store.GetItem(ctx, p.OfferedItems[0])
		require.NoError(t, err)
		assert.Equal(t, "bob", own.Owner)
		assert.Equal(t, domain.InitialOwnerVersion+1, own.Version)

		own, err = store.GetItem(ctx, p.RequestedItems[0])
		require.NoError(t, err)
		assert.Equal(t, "alice", own.Owner)

		loaded, err := store.GetProposal(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusAccepted, loaded.Status)
	})

	t.Run("Commit_StaleVersion_AppliesNothing", func(t *testing.T) {
		p, writes := seed(t)
		writes[len(writes)-1].ExpectedVersion = 99

		err := store.CommitTransfer(ctx, domain.TransferPlan{Writes: writes, Settle: settle(p)})
		assert.ErrorIs(t, err, domain.ErrVersionMismatch)
		assertUntouched(t, p)

		loaded, err := store.GetProposal(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, loaded.Status)
	})

	t.Run("Commit_StatusMismatch_AppliesNothing", func(t *testing.T) {
		p, writes := seed(t)
		require.NoError(t, store.SetStatusIf(ctx, p.ID, domain.StatusCancelled, domain.StatusPending, time.Now()))

		err := store.CommitTransfer(ctx, domain.TransferPlan{Writes: writes, Settle: settle(p)})
		assert.ErrorIs(t, err, domain.ErrStatusMismatch)
		assertUntouched(t, p)
	})

	t.Run("Commit_MissingItem_AppliesNothing", func(t *testing.T) {
		p, writes := seed(t)
		writes = append(writes, domain.OwnerWrite{ItemID: "zz-missing", From: "bob", To: "alice", ExpectedVersion: 1})

		err := store.CommitTransfer(ctx, domain.TransferPlan{Writes: writes, Settle: settle(p)})
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
		assertUntouched(t, p)
	})
}
