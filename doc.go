/*
Package barter is a peer-to-peer item exchange engine.

Accounts own items. One account proposes to swap a set of its items for a set
of items owned by another account; the other side accepts, rejects, or the
initiator cancels. Accepting a proposal moves every item to its new owner as a
single unit, or none of them.

# Concept

Barter keeps no authoritative state in memory. Every decision is a
conditional write against versioned records in a shared store, so any number
of stateless processes can serve the same accounts. Each item carries an
ownership version that increases on every change; a proposal is accepted only
if every item still has the owner it had when the proposal was made.

# Key Features

  - One-way lifecycle: pending, then exactly one of accepted, rejected or cancelled.
  - All-or-nothing transfers: a store transaction when the backend supports it,
    ordered conditional writes with compensation otherwise.
  - Pluggable stores: in-memory, Redis (Lua scripts) and SQLite.
  - Observability hooks for logging and metrics.

# Usage

	package main

	import (
		"context"
		"log"

		"github.com/aretw0/barter"
		"github.com/aretw0/barter/pkg/adapters/memory"
		"github.com/aretw0/barter/pkg/domain"
	)

	func main() {
		ctx := context.Background()
		ex := barter.New(memory.NewStore())

		g1, _ := ex.Catalog().Create(ctx, domain.Item{Title: "Zelda", Owner: "alice"})
		g2, _ := ex.Catalog().Create(ctx, domain.Item{Title: "Mario", Owner: "bob"})

		p, err := ex.CreateProposal(ctx, domain.ProposalRequest{
			Initiator:      "alice",
			Counterparty:   "bob",
			OfferedItems:   []string{g1.ID},
			RequestedItems: []string{g2.ID},
		})
		if err != nil {
			log.Fatal(err)
		}

		if _, err := ex.AcceptProposal(ctx, p.ID, "bob"); err != nil {
			log.Fatal(err)
		}
	}
*/
package barter
