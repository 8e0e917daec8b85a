package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventProposalCreated  EventType = "proposal_created"
	EventTransition       EventType = "transition"
	EventTransferConflict EventType = "transfer_conflict"
	EventRollback         EventType = "rollback"
)

// Transition names the driver of a status change.
type Transition string

const (
	TransitionCreate Transition = "create"
	TransitionAccept Transition = "accept"
	TransitionReject Transition = "reject"
	TransitionCancel Transition = "cancel"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp  time.Time `json:"timestamp"`
	Type       EventType `json:"type"`
	ProposalID string    `json:"proposal_id"`
}

// TransitionEvent reports the outcome of a transition attempt.
type TransitionEvent struct {
	EventBase
	Transition Transition    `json:"transition"`
	Actor      string        `json:"actor"`
	Status     Status        `json:"status,omitempty"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// RollbackEvent reports a compensation run of the single-record transfer path.
type RollbackEvent struct {
	EventBase
	Restored int   `json:"restored"`
	Err      error `json:"-"`
}

// Hooks defines callbacks for engine observability.
type Hooks struct {
	OnTransition       func(context.Context, *TransitionEvent)
	OnTransferConflict func(context.Context, *TransitionEvent)
	OnRollback         func(context.Context, *RollbackEvent)
}
