package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/aretw0/barter/internal/logging"
	"github.com/aretw0/barter/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Exchange defines the proposal operations served over HTTP.
type Exchange interface {
	CreateProposal(ctx context.Context, req domain.ProposalRequest) (*domain.Proposal, error)
	AcceptProposal(ctx context.Context, proposalID, actor string) (*domain.Proposal, error)
	RejectProposal(ctx context.Context, proposalID, actor string) (*domain.Proposal, error)
	CancelProposal(ctx context.Context, proposalID, actor string) (*domain.Proposal, error)
	GetProposal(ctx context.Context, proposalID string) (*domain.Proposal, error)
	ListProposals(ctx context.Context, account string) ([]domain.Proposal, error)
}

// Catalog defines the item operations served over HTTP.
type Catalog interface {
	Create(ctx context.Context, item domain.Item) (*domain.Item, error)
	Get(ctx context.Context, id string) (*domain.Item, error)
	List(ctx context.Context, filter domain.ItemFilter) ([]domain.Item, error)
	OwnedBy(ctx context.Context, account string) ([]domain.Item, error)
	Update(ctx context.Context, id string, attrs domain.Item) (*domain.Item, error)
	Patch(ctx context.Context, id string, patch domain.ItemPatch) (*domain.Item, error)
	Delete(ctx context.Context, id string) error
	Transfer(ctx context.Context, id, newOwner string) (*domain.Item, error)
	Accounts(ctx context.Context) ([]domain.AccountItems, error)
}

// HeaderAccount carries the acting account of a transition.
const HeaderAccount = "X-Account-ID"

// HeaderInstance identifies the process that served the request.
const HeaderInstance = "X-API-Instance"

// Info is the payload of GET /info.
type Info struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	Instance      string `json:"instance"`
	Store         string `json:"store"`
	Transactional bool   `json:"transactional"`
}

// Server wires the exchange and the catalog to chi routes.
type Server struct {
	Exchange Exchange
	Catalog  Catalog

	logger  *slog.Logger
	info    Info
	metrics http.Handler
}

// Option configures the handler.
type Option func(*Server)

// WithLogger sets the logger used for request and error logs.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithInfo sets the /info payload. Its Instance is echoed in HeaderInstance.
func WithInfo(info Info) Option {
	return func(s *Server) {
		s.info = info
	}
}

// WithMetricsHandler mounts h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewHandler creates the HTTP handler for the exchange.
func NewHandler(ex Exchange, cat Catalog, opts ...Option) http.Handler {
	s := &Server{
		Exchange: ex,
		Catalog:  cat,
		logger:   logging.NewNop(),
		info:     Info{Name: "barter"},
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.instance)
	r.Use(s.requestLog)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.Health)
	r.Get("/info", s.Info)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/items", func(r chi.Router) {
		r.Post("/", s.CreateItem)
		r.Get("/", s.ListItems)
		r.Get("/{id}", s.GetItem)
		r.Put("/{id}", s.UpdateItem)
		r.Patch("/{id}", s.PatchItem)
		r.Delete("/{id}", s.DeleteItem)
		r.Post("/{id}/transfer", s.TransferItem)
	})
	r.Get("/accounts", s.Accounts)
	r.Route("/accounts/{id}", func(r chi.Router) {
		r.Get("/items", s.AccountItems)
		r.Get("/proposals", s.AccountProposals)
	})
	r.Route("/proposals", func(r chi.Router) {
		r.Post("/", s.CreateProposal)
		r.Get("/{id}", s.GetProposal)
		r.Put("/{id}/accept", s.transition(s.Exchange.AcceptProposal))
		r.Put("/{id}/reject", s.transition(s.Exchange.RejectProposal))
		r.Put("/{id}/cancel", s.transition(s.Exchange.CancelProposal))
	})
	return r
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// Info handles GET /info.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.info)
}

// CreateItem handles POST /items.
func (s *Server) CreateItem(w http.ResponseWriter, r *http.Request) {
	var body domain.Item
	if !s.decode(w, r, &body) {
		return
	}
	item, err := s.Catalog.Create(r.Context(), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/items/"+item.ID)
	s.writeJSON(w, r, http.StatusCreated, item)
}

// ListItems handles GET /items with optional owner, title, platform, publisher and year filters.
func (s *Server) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.ItemFilter{
		Owner:     q.Get("owner"),
		Title:     q.Get("title"),
		Platform:  q.Get("platform"),
		Publisher: q.Get("publisher"),
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			s.writeProblem(w, r, http.StatusBadRequest, problemInvalid, "Invalid query", fmt.Sprintf("year %q is not a number", raw))
			return
		}
		filter.Year = year
	}
	items, err := s.Catalog.List(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, nonNil(items))
}

// GetItem handles GET /items/{id}.
func (s *Server) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.Catalog.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, item)
}

// UpdateItem handles PUT /items/{id}. It replaces the descriptive attributes only.
func (s *Server) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var body domain.Item
	if !s.decode(w, r, &body) {
		return
	}
	item, err := s.Catalog.Update(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, item)
}

// PatchItem handles PATCH /items/{id}.
func (s *Server) PatchItem(w http.ResponseWriter, r *http.Request) {
	var body domain.ItemPatch
	if !s.decode(w, r, &body) {
		return
	}
	item, err := s.Catalog.Patch(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, item)
}

// DeleteItem handles DELETE /items/{id}.
func (s *Server) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.Catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TransferRequest is the body of POST /items/{id}/transfer.
type TransferRequest struct {
	Owner string `json:"owner"`
}

// TransferItem handles POST /items/{id}/transfer.
func (s *Server) TransferItem(w http.ResponseWriter, r *http.Request) {
	var body TransferRequest
	if !s.decode(w, r, &body) {
		return
	}
	item, err := s.Catalog.Transfer(r.Context(), chi.URLParam(r, "id"), body.Owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, item)
}

// Accounts handles GET /accounts: every account with the items it holds.
func (s *Server) Accounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.Catalog.Accounts(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, accounts)
}

// AccountItems handles GET /accounts/{id}/items.
func (s *Server) AccountItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.Catalog.OwnedBy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, nonNil(items))
}

// AccountProposals handles GET /accounts/{id}/proposals.
func (s *Server) AccountProposals(w http.ResponseWriter, r *http.Request) {
	list, err := s.Exchange.ListProposals(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, nonNil(list))
}

// CreateProposal handles POST /proposals.
func (s *Server) CreateProposal(w http.ResponseWriter, r *http.Request) {
	var body domain.ProposalRequest
	if !s.decode(w, r, &body) {
		return
	}
	if body.Initiator == "" {
		body.Initiator = actor(r)
	}
	p, err := s.Exchange.CreateProposal(r.Context(), body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/proposals/"+p.ID)
	s.writeJSON(w, r, http.StatusCreated, p)
}

// GetProposal handles GET /proposals/{id}.
func (s *Server) GetProposal(w http.ResponseWriter, r *http.Request) {
	p, err := s.Exchange.GetProposal(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, p)
}

type transitionFunc func(ctx context.Context, proposalID, actor string) (*domain.Proposal, error)

// transition serves PUT /proposals/{id}/accept|reject|cancel.
func (s *Server) transition(fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := fn(r.Context(), chi.URLParam(r, "id"), actor(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, r, http.StatusOK, p)
	}
}

// actor reads the acting account from HeaderAccount, falling back to ?userId=.
func actor(r *http.Request) string {
	if a := strings.TrimSpace(r.Header.Get(HeaderAccount)); a != "" {
		return a
	}
	return strings.TrimSpace(r.URL.Query().Get("userId"))
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.logger.WarnContext(r.Context(), "invalid request body", "path", r.URL.Path, "err", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeProblem(w, r, http.StatusRequestEntityTooLarge, problemInvalid, "Request body too large", err.Error())
			return false
		}
		s.writeProblem(w, r, http.StatusBadRequest, problemInvalid, "Invalid request body", err.Error())
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.ErrorContext(r.Context(), "response encode failed", "path", r.URL.Path, "err", err)
	}
}

func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}
