package domain

import (
	"slices"
	"strings"
	"time"
)

// OwnerWrite is one staged, version-conditioned ownership change.
type OwnerWrite struct {
	ItemID          string `json:"item_id"`
	From            string `json:"from"`
	To              string `json:"to"`
	ExpectedVersion int64  `json:"expected_version"`
}

// StatusChange is a status-conditioned proposal write.
type StatusChange struct {
	ProposalID string    `json:"proposal_id"`
	From       Status    `json:"from"`
	To         Status    `json:"to"`
	At         time.Time `json:"at"`
}

// TransferPlan groups every write of one accept.
// Writes are ordered by ascending item ID.
type TransferPlan struct {
	Writes []OwnerWrite `json:"writes"`
	Settle StatusChange `json:"settle"`
}

// Moves lists the ownership changes an accepted proposal implies, ordered by item ID.
// Offered items go to the counterparty, requested items go to the initiator.
func Moves(p *Proposal) []OwnerWrite {
	moves := make([]OwnerWrite, 0, len(p.OfferedItems)+len(p.RequestedItems))
	for _, id := range p.OfferedItems {
		moves = append(moves, OwnerWrite{ItemID: id, From: p.Initiator, To: p.Counterparty})
	}
	for _, id := range p.RequestedItems {
		moves = append(moves, OwnerWrite{ItemID: id, From: p.Counterparty, To: p.Initiator})
	}
	slices.SortFunc(moves, func(a, b OwnerWrite) int {
		return strings.Compare(a.ItemID, b.ItemID)
	})
	return moves
}
