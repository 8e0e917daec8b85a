package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	for _, s := range []Status{StatusAccepted, StatusRejected, StatusCancelled} {
		assert.True(t, s.IsTerminal(), s)
		assert.True(t, s.Valid(), s)
	}
	assert.True(t, StatusPending.Valid())
	assert.False(t, Status("expired").Valid())
}

func TestProposal_CloneAndResolve(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := &Proposal{
		ID: "p1", Initiator: "alice", Counterparty: "bob",
		OfferedItems: []string{"g1"}, RequestedItems: []string{"g2"},
		Status: StatusPending, CreatedAt: created, UpdatedAt: created,
	}

	c := p.Clone()
	c.OfferedItems[0] = "gx"
	assert.Equal(t, "g1", p.OfferedItems[0])

	resolved := p.Resolve(StatusRejected, created.Add(time.Minute))
	assert.Equal(t, StatusRejected, resolved.Status)
	assert.Equal(t, created.Add(time.Minute), resolved.UpdatedAt)
	assert.Equal(t, StatusPending, p.Status)
	assert.Equal(t, created, resolved.CreatedAt)

	assert.True(t, p.Involves("alice"))
	assert.True(t, p.Involves("bob"))
	assert.False(t, p.Involves("carol"))

	var nilProposal *Proposal
	assert.Nil(t, nilProposal.Clone())
}

func TestMoves(t *testing.T) {
	p := &Proposal{
		Initiator: "alice", Counterparty: "bob",
		OfferedItems:   []string{"g3", "g1"},
		RequestedItems: []string{"g2"},
	}
	assert.Equal(t, []OwnerWrite{
		{ItemID: "g1", From: "alice", To: "bob"},
		{ItemID: "g2", From: "bob", To: "alice"},
		{ItemID: "g3", From: "alice", To: "bob"},
	}, Moves(p))
}

func TestItemFilter_Match(t *testing.T) {
	item := Item{ID: "g1", Title: "The Legend of Zelda", Platform: "Switch", Publisher: "Nintendo", Year: 2017, Owner: "alice"}

	tests := []struct {
		name   string
		filter ItemFilter
		want   bool
	}{
		{"Empty", ItemFilter{}, true},
		{"Owner", ItemFilter{Owner: "alice"}, true},
		{"OtherOwner", ItemFilter{Owner: "bob"}, false},
		{"TitleSubstringFold", ItemFilter{Title: "zelda"}, true},
		{"Platform", ItemFilter{Platform: "switch"}, true},
		{"WrongPlatform", ItemFilter{Platform: "ps5"}, false},
		{"Publisher", ItemFilter{Publisher: "NINTEN"}, true},
		{"Year", ItemFilter{Year: 2017}, true},
		{"WrongYear", ItemFilter{Year: 2020}, false},
		{"Combined", ItemFilter{Owner: "alice", Title: "legend", Year: 2017}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(item))
		})
	}
	assert.Equal(t, Ownership{Owner: "alice"}, item.Ownership())
}

func TestRetryable(t *testing.T) {
	transient := fmt.Errorf("%w: timeout", ErrStoreUnavailable)
	assert.True(t, Retryable(transient))
	assert.False(t, Retryable(ErrTransferConflict))
	assert.False(t, Retryable(ErrAlreadyResolved))
	assert.False(t, Retryable(fmt.Errorf("%w: %w", ErrInconsistentState, transient)))

	assert.True(t, IsKnown(fmt.Errorf("wrapped: %w", ErrItemNotFound)))
	assert.False(t, IsKnown(errors.New("dial tcp: refused")))
}
