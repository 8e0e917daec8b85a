/*
Package domain contains the core domain models of the exchange engine.

It defines the records the engine reasons about (Items and Proposals), the
proposal lifecycle statuses and the error taxonomy shared by the engine, the
store adapters and the transport adapters. This package is kept pure and free
of external dependencies like I/O or persistence, following Hexagonal
Architecture principles.

# Key Entities

  - Item: a uniquely owned tradeable unit with an ownership version.
  - Proposal: a request to swap two item sets between two accounts.
  - TransferPlan: the staged, version-conditioned writes of one accept.
  - Hooks: callbacks for observability (logging, metrics).
*/
package domain
