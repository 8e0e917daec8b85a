/*
Package exchange implements the trade exchange engine.

It is made of three parts that only talk to the shared store through the
driven ports:

  - Validator: admits a proposal only if its structure and current ownership hold.
  - Engine: the proposal state machine (Create, Accept, Reject, Cancel).
  - Coordinator: moves ownership of every item of an accepted proposal as one unit.

No component holds an in-process lock across a store call or caches
ownership between calls; every write is conditioned on versioned state, so any
number of replicas can serve the same store.
*/
package exchange
