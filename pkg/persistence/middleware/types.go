// Package middleware decorates a ports.Store with cross-cutting behavior.
package middleware

import "github.com/aretw0/barter/pkg/ports"

// Middleware allows wrapping a Store to add behavior.
// Implementations must keep the ports.Transactor capability of the wrapped store.
type Middleware func(ports.Store) ports.Store

// Chain applies mws so that the first one is the outermost.
func Chain(store ports.Store, mws ...Middleware) ports.Store {
	for i := len(mws) - 1; i >= 0; i-- {
		store = mws[i](store)
	}
	return store
}
