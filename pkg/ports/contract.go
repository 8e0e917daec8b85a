package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/barter/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the defined interface contract.
func RunStoreContract(t *testing.T, store Store) {
	ctx := context.Background()
	run := uuid.NewString()[:8]
	id := func(name string) string { return name + "-" + run }

	t.Run("Create and Get Item", func(t *testing.T) {
		item := &domain.Item{ID: id("zelda"), Title: "Zelda", Platform: "Switch", Year: 2017, Owner: "alice"}
		require.NoError(t, store.CreateItem(ctx, item))

		own, err := store.GetItem(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.Ownership{Owner: "alice", Version: domain.InitialOwnerVersion}, own)

		rec, err := store.GetItemRecord(ctx, item.ID)
		require.NoError(t, err)
		assert.Equal(t, "Zelda", rec.Title)
		assert.Equal(t, 2017, rec.Year)
		assert.Equal(t, domain.InitialOwnerVersion, rec.OwnerVersion)

		err = store.CreateItem(ctx, &domain.Item{ID: item.ID, Owner: "bob"})
		assert.ErrorIs(t, err, domain.ErrItemExists)
	})

	t.Run("Get Non-Existent Item", func(t *testing.T) {
		_, err := store.GetItem(ctx, id("missing"))
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
		_, err = store.GetItemRecord(ctx, id("missing"))
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("SetOwnerIf", func(t *testing.T) {
		itemID := id("metroid")
		require.NoError(t, store.CreateItem(ctx, &domain.Item{ID: itemID, Title: "Metroid", Owner: "alice"}))

		v, err := store.SetOwnerIf(ctx, itemID, "bob", domain.InitialOwnerVersion)
		require.NoError(t, err)
		assert.Equal(t, domain.InitialOwnerVersion+1, v)

		// Stale version must not write.
		_, err = store.SetOwnerIf(ctx, itemID, "carol", domain.InitialOwnerVersion)
		assert.ErrorIs(t, err, domain.ErrVersionMismatch)

		own, err := store.GetItem(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, domain.Ownership{Owner: "bob", Version: v}, own)

		_, err = store.SetOwnerIf(ctx, id("missing"), "bob", 1)
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("SetOwnerIf Concurrent", func(t *testing.T) {
		itemID := id("tetris")
		require.NoError(t, store.CreateItem(ctx, &domain.Item{ID: itemID, Title: "Tetris", Owner: "alice"}))

		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				_, err := store.SetOwnerIf(ctx, itemID, "bob", domain.InitialOwnerVersion)
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, domain.ErrVersionMismatch)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins, "exactly one conditional write may win")
	})

	t.Run("List and Delete Items", func(t *testing.T) {
		owner := id("dave")
		require.NoError(t, store.CreateItem(ctx, &domain.Item{ID: id("a-halo"), Title: "Halo", Platform: "Xbox", Owner: owner}))
		require.NoError(t, store.CreateItem(ctx, &domain.Item{ID: id("b-forza"), Title: "Forza", Platform: "Xbox", Owner: owner}))

		items, err := store.ListItems(ctx, domain.ItemFilter{Owner: owner})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, id("a-halo"), items[0].ID)

		items, err = store.ListItems(ctx, domain.ItemFilter{Owner: owner, Title: "HAL"})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "Halo", items[0].Title)

		require.NoError(t, store.DeleteItem(ctx, id("a-halo")))
		_, err = store.GetItem(ctx, id("a-halo"))
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
		assert.ErrorIs(t, store.DeleteItem(ctx, id("a-halo")), domain.ErrItemNotFound)

		items, err = store.ListItems(ctx, domain.ItemFilter{Owner: owner})
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("Recreate Never Reuses Version", func(t *testing.T) {
		itemID := id("sonic")
		require.NoError(t, store.CreateItem(ctx, &domain.Item{ID: itemID, Title: "Sonic", Owner: "alice"}))
		v2, err := store.SetOwnerIf(ctx, itemID, "bob", domain.InitialOwnerVersion)
		require.NoError(t, err)
		require.NoError(t, store.DeleteItem(ctx, itemID))

		again := &domain.Item{ID: itemID, Title: "Sonic", Owner: "dave"}
		require.NoError(t, store.CreateItem(ctx, again))
		assert.Greater(t, again.OwnerVersion, v2)

		own, err := store.GetItem(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, domain.Ownership{Owner: "dave", Version: again.OwnerVersion}, own)

		_, err = store.SetOwnerIf(ctx, itemID, "bob", domain.InitialOwnerVersion)
		assert.ErrorIs(t, err, domain.ErrVersionMismatch)
		_, err = store.SetOwnerIf(ctx, itemID, "bob", v2)
		assert.ErrorIs(t, err, domain.ErrVersionMismatch)

		require.NoError(t, store.DeleteItem(ctx, itemID))
		third := &domain.Item{ID: itemID, Title: "Sonic", Owner: "erin"}
		require.NoError(t, store.CreateItem(ctx, third))
		assert.Greater(t, third.OwnerVersion, again.OwnerVersion)
	})

	t.Run("PatchItem", func(t *testing.T) {
		itemID := id("metroid")
		require.NoError(t, store.CreateItem(ctx, &domain.Item{ID: itemID, Title: "Metroid", Platform: "NES", Year: 1986, Owner: "alice"}))

		title, year := "Metroid Dread", 2021
		item, err := store.PatchItem(ctx, itemID, domain.ItemPatch{Title: &title, Year: &year})
		require.NoError(t, err)
		assert.Equal(t, "Metroid Dread", item.Title)
		assert.Equal(t, 2021, item.Year)
		assert.Equal(t, "NES", item.Platform)
		assert.Equal(t, "alice", item.Owner)
		assert.Equal(t, domain.InitialOwnerVersion, item.OwnerVersion)

		rec, err := store.GetItemRecord(ctx, itemID)
		require.NoError(t, err)
		assert.Equal(t, item, rec)

		item, err = store.PatchItem(ctx, itemID, domain.ItemPatch{})
		require.NoError(t, err)
		assert.Equal(t, "Metroid Dread", item.Title)

		_, err = store.PatchItem(ctx, id("missing"), domain.ItemPatch{Title: &title})
		assert.ErrorIs(t, err, domain.ErrItemNotFound)
	})

	t.Run("Insert and Get Proposal", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		p := &domain.Proposal{
			ID:             id("prop"),
			Initiator:      "alice",
			Counterparty:   "bob",
			OfferedItems:   []string{"g1"},
			RequestedItems: []string{"g2", "g3"},
			Status:         domain.StatusPending,
			Note:           "fair trade",
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		gotID, err := store.InsertProposal(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, p.ID, gotID)

		loaded, err := store.GetProposal(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.Initiator, loaded.Initiator)
		assert.Equal(t, p.Counterparty, loaded.Counterparty)
		assert.Equal(t, p.OfferedItems, loaded.OfferedItems)
		assert.Equal(t, p.RequestedItems, loaded.RequestedItems)
		assert.Equal(t, domain.StatusPending, loaded.Status)
		assert.Equal(t, "fair trade", loaded.Note)
		assert.True(t, now.Equal(loaded.CreatedAt), "created_at round trip")

		_, err = store.GetProposal(ctx, id("nope"))
		assert.ErrorIs(t, err, domain.ErrProposalNotFound)
	})

	t.Run("SetStatusIf", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		p := &domain.Proposal{
			ID: id("status"), Initiator: "alice", Counterparty: "bob",
			OfferedItems: []string{"g1"}, RequestedItems: []string{"g2"},
			Status: domain.StatusPending, CreatedAt: now, UpdatedAt: now,
		}
		_, err := store.InsertProposal(ctx, p)
		require.NoError(t, err)

		later := now.Add(time.Minute)
		require.NoError(t, store.SetStatusIf(ctx, p.ID, domain.StatusRejected, domain.StatusPending, later))

		err = store.SetStatusIf(ctx, p.ID, domain.StatusCancelled, domain.StatusPending, later)
		assert.ErrorIs(t, err, domain.ErrStatusMismatch)

		loaded, err := store.GetProposal(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRejected, loaded.Status)
		assert.True(t, later.Equal(loaded.UpdatedAt), "updated_at must follow the status write")

		err = store.SetStatusIf(ctx, id("nope"), domain.StatusRejected, domain.StatusPending, later)
		assert.ErrorIs(t, err, domain.ErrProposalNotFound)
	})

	t.Run("List Proposals", func(t *testing.T) {
		account := id("erin")
		base := time.Now().UTC().Truncate(time.Millisecond)
		for i, pid := range []string{id("list-1"), id("list-2")} {
			at := base.Add(time.Duration(i) * time.Second)
			_, err := store.InsertProposal(ctx, &domain.Proposal{
				ID: pid, Initiator: account, Counterparty: "frank",
				OfferedItems: []string{"x"}, RequestedItems: []string{"y"},
				Status: domain.StatusPending, CreatedAt: at, UpdatedAt: at,
			})
			require.NoError(t, err)
		}
		_, err := store.InsertProposal(ctx, &domain.Proposal{
			ID: id("list-3"), Initiator: "frank", Counterparty: account,
			OfferedItems: []string{"y"}, RequestedItems: []string{"x"},
			Status: domain.StatusPending, CreatedAt: base.Add(2 * time.Second), UpdatedAt: base,
		})
		require.NoError(t, err)

		list, err := store.ListProposals(ctx, account)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, id("list-3"), list[0].ID, "newest first")
		assert.Equal(t, id("list-1"), list[2].ID)

		list, err = store.ListProposals(ctx, id("nobody"))
		require.NoError(t, err)
		assert.Empty(t, list)
	})
}
