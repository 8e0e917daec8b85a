package domain

import (
	"slices"
	"time"
)

// Status is the lifecycle position of a proposal.
type Status string

const (
	StatusPending   Status = "pending"   // Initial, the only non-terminal status
	StatusAccepted  Status = "accepted"  // Items swapped
	StatusRejected  Status = "rejected"  // Declined by the counterparty
	StatusCancelled Status = "cancelled" // Withdrawn by the initiator
)

// IsTerminal reports whether no further transition is permitted from s.
func (s Status) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusCancelled
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusPending || s.IsTerminal()
}

// ProposalRequest is the input of a proposal creation.
type ProposalRequest struct {
	Initiator      string   `json:"initiator"`
	Counterparty   string   `json:"counterparty"`
	OfferedItems   []string `json:"offered_items"`
	RequestedItems []string `json:"requested_items"`
	Note           string   `json:"note,omitempty"`
}

// Proposal is a request to swap ownership of two item sets between two accounts.
// Once its status is terminal it is never mutated again.
type Proposal struct {
	ID             string    `json:"id"`
	Initiator      string    `json:"initiator"`
	Counterparty   string    `json:"counterparty"`
	OfferedItems   []string  `json:"offered_items"`
	RequestedItems []string  `json:"requested_items"`
	Status         Status    `json:"status"`
	Note           string    `json:"note,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Clone returns a deep copy so callers can't mutate a stored record by pointer.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	c := *p
	c.OfferedItems = slices.Clone(p.OfferedItems)
	c.RequestedItems = slices.Clone(p.RequestedItems)
	return &c
}

// Involves reports whether the account is one of the two parties.
func (p *Proposal) Involves(account string) bool {
	return p.Initiator == account || p.Counterparty == account
}

// Resolve returns a copy of the proposal moved to the given status.
func (p *Proposal) Resolve(status Status, at time.Time) *Proposal {
	c := p.Clone()
	c.Status = status
	c.UpdatedAt = at
	return c
}
