package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/fjod/go_cart/storefront-cart/internal/guestcart"
	"github.com/fjod/go_cart/storefront-cart/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// cartServer speaks the cart API over an in-memory map.
type cartServer struct {
	m        sync.Mutex
	carts    map[string]*domain.Cart
	failPuts atomic.Bool
	requests atomic.Int32
}

func newCartServer(t *testing.T) (*cartServer, *httptest.Server) {
	s := &cartServer{carts: map[string]*domain.Cart{}}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.requests.Add(1)
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/cart/{ownerId}", s.get)
	r.Put("/cart/{ownerId}", s.replace)
	r.Post("/cart/{ownerId}", s.add)
	r.Put("/cart/{ownerId}/items/{lineId}", s.setQuantity)
	r.Delete("/cart/{ownerId}/items/{lineId}", s.remove)
	r.Delete("/cart/{ownerId}", s.clear)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return s, srv
}

func (s *cartServer) write(w http.ResponseWriter, c *domain.Cart) {
	type line struct {
		LineID    string `json:"lineId"`
		ProductID string `json:"productId"`
		Size      string `json:"size"`
		Quantity  int    `json:"quantity"`
	}
	out := struct {
		OwnerID string `json:"ownerId"`
		Lines   []line `json:"lines"`
	}{OwnerID: c.OwnerID, Lines: []line{}}
	for _, l := range c.Lines {
		out.Lines = append(out.Lines, line{l.Key().ID(), l.ProductID, l.Size, l.Quantity})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *cartServer) owned(r *http.Request) *domain.Cart {
	owner := chi.URLParam(r, "ownerId")
	c, ok := s.carts[owner]
	if !ok {
		c = domain.NewCart(owner)
		s.carts[owner] = c
	}
	return c
}

func (s *cartServer) get(w http.ResponseWriter, r *http.Request) {
	s.m.Lock()
	defer s.m.Unlock()
	c, ok := s.carts[chi.URLParam(r, "ownerId")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"cart not found","code":"not_found"}`))
		return
	}
	s.write(w, c)
}

func (s *cartServer) replace(w http.ResponseWriter, r *http.Request) {
	if s.failPuts.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"cart store unavailable","code":"service_unavailable"}`))
		return
	}
	var body struct {
		Lines []domain.CartLine `json:"lines"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.m.Lock()
	defer s.m.Unlock()
	c := s.owned(r)
	c.Lines = domain.Normalize(body.Lines)
	s.write(w, c)
}

func (s *cartServer) add(w http.ResponseWriter, r *http.Request) {
	var body domain.CartLine
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.m.Lock()
	defer s.m.Unlock()
	c := s.owned(r)
	if _, err := c.AddLine(body.ProductID, body.Size, body.Quantity); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"` + err.Error() + `","code":"invalid_argument"}`))
		return
	}
	s.write(w, c)
}

func (s *cartServer) setQuantity(w http.ResponseWriter, r *http.Request) {
	key, err := domain.ParseLineID(chi.URLParam(r, "lineId"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	var body struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.m.Lock()
	defer s.m.Unlock()
	c := s.owned(r)
	c.SetQuantity(key, body.Quantity)
	s.write(w, c)
}

func (s *cartServer) remove(w http.ResponseWriter, r *http.Request) {
	key, err := domain.ParseLineID(chi.URLParam(r, "lineId"))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.m.Lock()
	defer s.m.Unlock()
	c := s.owned(r)
	c.RemoveLine(key)
	s.write(w, c)
}

func (s *cartServer) clear(w http.ResponseWriter, r *http.Request) {
	s.m.Lock()
	defer s.m.Unlock()
	c := s.owned(r)
	c.Clear()
	s.write(w, c)
}

func TestClient_FetchNotFound(t *testing.T) {
	_, srv := newCartServer(t)
	client := NewClient(srv.URL, Options{})

	_, err := client.FetchCart(context.Background(), "u1")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClient_LineOperations(t *testing.T) {
	_, srv := newCartServer(t)
	client := NewClient(srv.URL, Options{})
	ctx := context.Background()
	key := domain.NewLineKey("p1", "M")

	_, err := client.AppendLine(ctx, "u1", "p1", "M", 2)
	require.NoError(t, err)
	cart, err := client.AppendLine(ctx, "u1", "p1", "M", 3)
	require.NoError(t, err)
	assert.Equal(t, []domain.CartLine{{ProductID: "p1", Size: "M", Quantity: 5}}, cart.Lines)

	cart, err = client.UpdateLineQuantity(ctx, "u1", key, 8)
	require.NoError(t, err)
	assert.Equal(t, 8, cart.TotalItemCount())

	cart, err = client.RemoveLine(ctx, "u1", key)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	_, err = client.AppendLine(ctx, "u1", "p2", "", 1)
	require.NoError(t, err)
	cart, err = client.ClearCart(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	fetched, err := client.FetchCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", fetched.OwnerID)
}

func TestClient_AppendValidatesLocally(t *testing.T) {
	server, srv := newCartServer(t)
	client := NewClient(srv.URL, Options{})

	_, err := client.AppendLine(context.Background(), "u1", "p1", "M", 0)

	assert.True(t, domain.IsValidation(err))
	assert.Equal(t, int32(0), server.requests.Load())
}

func TestClient_ServerErrorIsTransportError(t *testing.T) {
	server, srv := newCartServer(t)
	server.failPuts.Store(true)
	client := NewClient(srv.URL, Options{})

	_, err := client.ReplaceCart(context.Background(), "u1", domain.NewCart("u1"))

	require.Error(t, err)
	assert.True(t, domain.IsTransport(err))
	assert.Contains(t, err.Error(), "503")
}

func TestClient_BreakerOpensAfterFailures(t *testing.T) {
	server, srv := newCartServer(t)
	server.failPuts.Store(true)
	client := NewClient(srv.URL, Options{FailureThreshold: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.ReplaceCart(ctx, "u1", domain.NewCart("u1"))
		require.Error(t, err)
	}
	before := server.requests.Load()

	_, err := client.FetchCart(ctx, "u1")

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.True(t, domain.IsTransport(err))
	assert.Equal(t, before, server.requests.Load())
}

func TestClient_NotFoundDoesNotTripBreaker(t *testing.T) {
	_, srv := newCartServer(t)
	client := NewClient(srv.URL, Options{FailureThreshold: 1, OpenTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := client.FetchCart(ctx, "nobody")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
}

func newLocalStore(t *testing.T) *guestcart.RedisStore {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })
	return guestcart.NewRedisStore(rc, time.Hour)
}

func TestReconcileOverHTTP(t *testing.T) {
	server, srv := newCartServer(t)
	client := NewClient(srv.URL, Options{})
	local := newLocalStore(t)
	ctx := context.Background()

	_, err := client.AppendLine(ctx, "u1", "p1", "M", 2)
	require.NoError(t, err)
	_, err = local.AddLine(ctx, "device-1", "p1", "M", 3)
	require.NoError(t, err)
	_, err = local.AddLine(ctx, "device-1", "p2", "", 1)
	require.NoError(t, err)

	r := service.NewReconciler(local, client, zap.NewNop())
	cart, err := r.Reconcile(ctx, "device-1", "u1")
	require.NoError(t, err)

	assert.Equal(t, []domain.CartLine{
		{ProductID: "p1", Size: "M", Quantity: 5},
		{ProductID: "p2", Size: "", Quantity: 1},
	}, cart.Lines)

	leftover, err := local.Load(ctx, "device-1")
	require.NoError(t, err)
	assert.True(t, leftover.IsEmpty())

	server.m.Lock()
	assert.Equal(t, 6, server.carts["u1"].TotalItemCount())
	server.m.Unlock()
}

func TestReconcileOverHTTP_FailedReplaceKeepsLocalCart(t *testing.T) {
	server, srv := newCartServer(t)
	server.failPuts.Store(true)
	client := NewClient(srv.URL, Options{})
	local := newLocalStore(t)
	ctx := context.Background()

	_, err := local.AddLine(ctx, "device-1", "p1", "M", 3)
	require.NoError(t, err)

	r := service.NewReconciler(local, client, zap.NewNop())
	_, err = r.Reconcile(ctx, "device-1", "u1")
	require.Error(t, err)
	assert.True(t, domain.IsTransport(err))

	kept, err := local.Load(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, 3, kept.TotalItemCount())
}
