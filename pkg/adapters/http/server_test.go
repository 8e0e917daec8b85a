package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aretw0/barter"
	barterhttp "github.com/aretw0/barter/pkg/adapters/http"
	"github.com/aretw0/barter/pkg/adapters/memory"
	"github.com/aretw0/barter/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct {
	t       *testing.T
	handler http.Handler
}

func newClient(t *testing.T, opts ...barterhttp.Option) *client {
	t.Helper()
	ex := barter.New(memory.NewStore())
	return &client{t: t, handler: barterhttp.NewHandler(ex, ex.Catalog(), opts...)}
}

func (c *client) do(method, path, actor string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if actor != "" {
		req.Header.Set(barterhttp.HeaderAccount, actor)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (c *client) seed(id, title, owner string) {
	c.t.Helper()
	w := c.do(http.MethodPost, "/items", "", domain.Item{ID: id, Title: title, Platform: "Switch", Owner: owner})
	require.Equal(c.t, http.StatusCreated, w.Code, w.Body.String())
}

func (c *client) propose(initiator, counterparty string, offered, requested []string) domain.Proposal {
	c.t.Helper()
	w := c.do(http.MethodPost, "/proposals", initiator, domain.ProposalRequest{
		Counterparty: counterparty, OfferedItems: offered, RequestedItems: requested,
	})
	require.Equal(c.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[domain.Proposal](c.t, w)
}

func TestHealthAndInfo(t *testing.T) {
	c := newClient(t, barterhttp.WithInfo(barterhttp.Info{Name: "barter", Version: "test", Instance: "node-a", Store: "memory"}))

	w := c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "node-a", w.Header().Get(barterhttp.HeaderInstance))

	w = c.do(http.MethodGet, "/info", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	info := decode[barterhttp.Info](t, w)
	assert.Equal(t, "memory", info.Store)
	assert.Equal(t, "test", info.Version)

	w = c.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsHandler(t *testing.T) {
	c := newClient(t, barterhttp.WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "barter_transitions_total 0")
	})))
	w := c.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "barter_transitions_total")
}

func TestItems(t *testing.T) {
	c := newClient(t)
	c.seed("g1", "The Legend of Zelda", "alice")
	c.seed("g2", "Mario Kart", "bob")

	w := c.do(http.MethodPost, "/items", "", domain.Item{ID: "g1", Title: "Dup", Owner: "bob"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = c.do(http.MethodPost, "/items", "", domain.Item{Title: "No owner"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	w = c.do(http.MethodGet, "/items?title=zelda", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[[]domain.Item](t, w)
	require.Len(t, items, 1)
	assert.Equal(t, "g1", items[0].ID)

	w = c.do(http.MethodGet, "/items?year=soon", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(http.MethodGet, "/accounts/bob/items", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Item](t, w), 1)

	w = c.do(http.MethodGet, "/accounts/nobody/items", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())

	w = c.do(http.MethodPost, "/items/g2/transfer", "", barterhttp.TransferRequest{Owner: "carol"})
	require.Equal(t, http.StatusOK, w.Code)
	item := decode[domain.Item](t, w)
	assert.Equal(t, "carol", item.Owner)
	assert.Equal(t, int64(2), item.OwnerVersion)

	w = c.do(http.MethodDelete, "/items/g2", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = c.do(http.MethodGet, "/items/g2", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProposalLifecycle(t *testing.T) {
	c := newClient(t)
	c.seed("g1", "Zelda", "alice")
	c.seed("g2", "Mario", "bob")

	p := c.propose("alice", "bob", []string{"g1"}, []string{"g2"})
	assert.Equal(t, "alice", p.Initiator)
	assert.Equal(t, domain.StatusPending, p.Status)

	w := c.do(http.MethodPut, "/proposals/"+p.ID+"/accept", "alice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = c.do(http.MethodPut, "/proposals/"+p.ID+"/accept?userId=bob", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.StatusAccepted, decode[domain.Proposal](t, w).Status)

	w = c.do(http.MethodPut, "/proposals/"+p.ID+"/cancel", "alice", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	problem := decode[barterhttp.Problem](t, w)
	assert.Equal(t, "/problems/already-resolved", problem.Type)

	w = c.do(http.MethodGet, "/items/g1", "", nil)
	assert.Equal(t, "bob", decode[domain.Item](t, w).Owner)

	w = c.do(http.MethodGet, "/accounts/alice/proposals", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Proposal](t, w), 1)

	w = c.do(http.MethodGet, "/proposals/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProposalTransferConflict(t *testing.T) {
	c := newClient(t)
	c.seed("g1", "Zelda", "alice")
	c.seed("g2", "Mario", "bob")
	p := c.propose("alice", "bob", []string{"g1"}, []string{"g2"})

	w := c.do(http.MethodPost, "/items/g2/transfer", "", barterhttp.TransferRequest{Owner: "carol"})
	require.Equal(t, http.StatusOK, w.Code)

	w = c.do(http.MethodPut, "/proposals/"+p.ID+"/accept", "bob", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "/problems/transfer-conflict", decode[barterhttp.Problem](t, w).Type)

	w = c.do(http.MethodPut, "/proposals/"+p.ID+"/reject", "bob", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.StatusRejected, decode[domain.Proposal](t, w).Status)
}

func TestCreateProposalInvalid(t *testing.T) {
	c := newClient(t)
	c.seed("g1", "Zelda", "alice")

	w := c.do(http.MethodPost, "/proposals", "alice", domain.ProposalRequest{
		Counterparty: "bob", OfferedItems: []string{"g1"}, RequestedItems: []string{"g9"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "/problems/invalid-request", decode[barterhttp.Problem](t, w).Type)

	req := httptest.NewRequest(http.MethodPost, "/proposals", bytes.NewBufferString(`{"bogus":1}`))
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConcurrentAcceptOverHTTP(t *testing.T) {
	c := newClient(t)
	c.seed("g1", "Zelda", "alice")
	c.seed("g2", "Mario", "bob")
	p := c.propose("alice", "bob", []string{"g1"}, []string{"g2"})

	const callers = 6
	codes := make([]int, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPut, "/proposals/"+p.ID+"/accept", nil)
			req.Header.Set(barterhttp.HeaderAccount, "bob")
			w := httptest.NewRecorder()
			c.handler.ServeHTTP(w, req)
			codes[i] = w.Code
		}()
	}
	wg.Wait()

	ok := 0
	for _, code := range codes {
		if code == http.StatusOK {
			ok++
			continue
		}
		assert.Equal(t, http.StatusConflict, code)
	}
	assert.Equal(t, 1, ok)
}

func TestUpdateAndPatchItem(t *testing.T) {
	c := newClient(t)
	c.seed("g1", "Zelda", "alice")

	w := c.do(http.MethodPut, "/items/g1", "", domain.Item{Title: "Zelda: Tears of the Kingdom", Platform: "Switch", Year: 2023})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	item := decode[domain.Item](t, w)
	assert.Equal(t, "Zelda: Tears of the Kingdom", item.Title)
	assert.Equal(t, 2023, item.Year)
	assert.Equal(t, "alice", item.Owner)
	assert.Equal(t, domain.InitialOwnerVersion, item.OwnerVersion)

	w = c.do(http.MethodPatch, "/items/g1", "", map[string]any{"condition": "boxed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	item = decode[domain.Item](t, w)
	assert.Equal(t, "boxed", item.Condition)
	assert.Equal(t, 2023, item.Year)

	w = c.do(http.MethodPut, "/items/g1", "", domain.Item{Title: "Zelda", Owner: "mallory"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(http.MethodPatch, "/items/g1", "", map[string]any{"owner": "mallory"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = c.do(http.MethodPatch, "/items/missing", "", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.do(http.MethodGet, "/items/g1", "", nil)
	item = decode[domain.Item](t, w)
	assert.Equal(t, "alice", item.Owner)
	assert.Equal(t, domain.InitialOwnerVersion, item.OwnerVersion)
}

func TestAccountsWithItems(t *testing.T) {
	c := newClient(t)

	w := c.do(http.MethodGet, "/accounts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]domain.AccountItems](t, w))

	c.seed("g1", "Zelda", "bob")
	c.seed("g2", "Mario", "alice")
	c.seed("g3", "Metroid", "bob")

	w = c.do(http.MethodGet, "/accounts", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	accounts := decode[[]domain.AccountItems](t, w)
	require.Len(t, accounts, 2)
	assert.Equal(t, "alice", accounts[0].Account)
	require.Len(t, accounts[0].Items, 1)
	assert.Equal(t, "g2", accounts[0].Items[0].ID)
	assert.Equal(t, "bob", accounts[1].Account)
	require.Len(t, accounts[1].Items, 2)
	assert.Equal(t, "g1", accounts[1].Items[0].ID)
	assert.Equal(t, "g3", accounts[1].Items[1].ID)
}

func TestCancelledRequest(t *testing.T) {
	c := newClient(t)
	c.seed("g1", "Zelda", "alice")
	c.seed("g2", "Mario", "bob")
	p := c.propose("alice", "bob", []string{"g1"}, []string{"g2"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPut, "/proposals/"+p.ID+"/accept", nil).WithContext(ctx)
	req.Header.Set(barterhttp.HeaderAccount, "bob")
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))

	w = c.do(http.MethodGet, "/proposals/"+p.ID, "", nil)
	assert.Equal(t, domain.StatusPending, decode[domain.Proposal](t, w).Status)
}
