/*
Package ports defines the driven ports (interfaces) for the exchange engine.

These interfaces decouple the core logic from external implementations, allowing
the engine to work with various storage backends (memory, Redis, SQLite) shared
by any number of stateless replicas.

# Key Interfaces

  - ItemStore: versioned ownership reads and version-conditioned owner writes.
  - ProposalStore: proposal records and status-conditioned writes.
  - Transactor: optional capability to commit a whole transfer atomically.
  - ItemCatalog: plain item CRUD and search used by the API layer.
*/
package ports
