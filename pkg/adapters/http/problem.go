package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aretw0/barter/pkg/domain"
)

// Problem is an RFC 7807 error document.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Problem types.
const (
	problemInvalid          = "/problems/invalid-request"
	problemUnauthorized     = "/problems/unauthorized"
	problemNotFound         = "/problems/not-found"
	problemAlreadyResolved  = "/problems/already-resolved"
	problemTransferConflict = "/problems/transfer-conflict"
	problemConflict         = "/problems/conflict"
	problemUnavailable      = "/problems/store-unavailable"
	problemInconsistent     = "/problems/inconsistent-state"
	problemInternal         = "/problems/internal"
)

type problemKind struct {
	err    error
	status int
	typ    string
	title  string
}

// problemKinds is checked in order; the first match wins.
var problemKinds = []problemKind{
	{domain.ErrInconsistentState, http.StatusInternalServerError, problemInconsistent, "Inconsistent state"},
	{domain.ErrInvalidProposal, http.StatusBadRequest, problemInvalid, "Invalid proposal"},
	{domain.ErrInvalidItem, http.StatusBadRequest, problemInvalid, "Invalid item"},
	{domain.ErrUnauthorized, http.StatusForbidden, problemUnauthorized, "Not allowed"},
	{domain.ErrItemNotFound, http.StatusNotFound, problemNotFound, "Item not found"},
	{domain.ErrProposalNotFound, http.StatusNotFound, problemNotFound, "Proposal not found"},
	{domain.ErrAlreadyResolved, http.StatusConflict, problemAlreadyResolved, "Proposal already resolved"},
	{domain.ErrTransferConflict, http.StatusConflict, problemTransferConflict, "Trade can no longer be completed"},
	{domain.ErrItemExists, http.StatusConflict, problemConflict, "Item already exists"},
	{domain.ErrVersionMismatch, http.StatusConflict, problemConflict, "Item changed concurrently"},
	{domain.ErrStoreUnavailable, http.StatusServiceUnavailable, problemUnavailable, "Store unavailable"},
	{context.DeadlineExceeded, http.StatusServiceUnavailable, problemUnavailable, "Request timed out"},
	{context.Canceled, http.StatusServiceUnavailable, problemUnavailable, "Request cancelled"},
}

func classify(err error) problemKind {
	for _, k := range problemKinds {
		if errors.Is(err, k.err) {
			return k
		}
	}
	return problemKind{status: http.StatusInternalServerError, typ: problemInternal, title: "Internal error"}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	k := classify(err)
	switch {
	case errors.Is(err, context.Canceled):
		s.logger.DebugContext(r.Context(), "request cancelled", "path", r.URL.Path, "err", err)
	case k.status == http.StatusServiceUnavailable:
		w.Header().Set("Retry-After", "1")
		s.logger.WarnContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	case k.status >= http.StatusInternalServerError:
		s.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "err", err)
	}
	s.writeProblem(w, r, k.status, k.typ, k.title, err.Error())
}

func (s *Server) writeProblem(w http.ResponseWriter, r *http.Request, status int, typ, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	p := Problem{Type: typ, Title: title, Status: status, Detail: detail, Instance: r.URL.Path}
	if err := json.NewEncoder(w).Encode(p); err != nil {
		s.logger.ErrorContext(r.Context(), "problem encode failed", "err", err)
	}
}
