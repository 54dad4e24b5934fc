package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/sqlite"
	"github.com/go-chi/chi/v5"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySessions struct {
	mu    sync.Mutex
	carts map[string][]byte
}

func (m *memorySessions) Load(_ context.Context, sid string) (*cart.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cart.Decode(m.carts[sid])
}

func (m *memorySessions) Save(_ context.Context, sid string, c *cart.Cart) error {
	b, err := c.Encode()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.carts[sid] = b
	return nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (p *recordingPublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
	hits int
}

func (c *memoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.data[key]
	if ok {
		c.hits++
	}
	return s, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

type harness struct {
	srv      *httptest.Server
	client   *http.Client
	store    *sqlite.Store
	pub      *recordingPublisher
	cache    *memoryCache
	products []orders.Product
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	store, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	h := &harness{store: store, pub: &recordingPublisher{}, cache: &memoryCache{data: map[string]string{}}}
	for _, p := range []struct {
		name  string
		price string
		stock int
	}{{"Burger", "5.99", 20}, {"Fries", "2.99", 50}} {
		added, err := store.AddProduct(ctx, p.name, decimal.RequireFromString(p.price), p.stock)
		require.NoError(t, err)
		h.products = append(h.products, added)
	}

	sh := &StorefrontHandler{
		Catalog:  store,
		Writer:   &checkout.Writer{Store: store, DecrementStock: true},
		Sessions: &memorySessions{carts: map[string][]byte{}},
		Producer: h.pub,
		Service:  "storefront-test",
	}
	oh := &OrdersHandler{Store: store, Cache: h.cache}
	router := NewRouter()
	router.Group(func(r chi.Router) {
		r.Use(Sessions(time.Hour))
		sh.Register(r)
	})
	oh.Register(router)

	h.srv = httptest.NewServer(router)
	t.Cleanup(h.srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	h.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return h
}

func (h *harness) do(t *testing.T, method, path string, form url.Values) *http.Response {
	t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequest(method, h.srv.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (h *harness) menu(t *testing.T) MenuView {
	t.Helper()
	resp := h.do(t, http.MethodGet, "/menu", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[MenuView](t, resp)
}

func TestMenuListsProductsAndEmptyCart(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/menu?type=dine-in", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decode[MenuView](t, resp)

	assert.Equal(t, "dine-in", v.OrderType)
	require.Len(t, v.Products, 2)
	assert.Equal(t, "Burger", v.Products[0].Name)
	assert.Empty(t, v.Cart)
	assert.True(t, v.CartTotal.IsZero())
	assert.NotEmpty(t, resp.Cookies())
}

func TestAddAndRemoveRedirectToMenu(t *testing.T) {
	h := newHarness(t)
	burger := h.products[0]

	resp := h.do(t, http.MethodPost, "/add_to_cart/"+itoa(burger.ID)+"?type=dine-in", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/menu?type=dine-in", resp.Header.Get("Location"))
	h.do(t, http.MethodPost, "/add_to_cart/"+itoa(burger.ID), nil)

	v := h.menu(t)
	require.Len(t, v.Cart, 1)
	assert.Equal(t, 2, v.Cart[0].Quantity)
	assert.Equal(t, "11.98", v.CartTotal.StringFixed(2))

	resp = h.do(t, http.MethodGet, "/remove_from_cart/"+itoa(burger.ID), nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	h.do(t, http.MethodPost, "/remove_from_cart/"+itoa(burger.ID), nil)

	v = h.menu(t)
	assert.Empty(t, v.Cart)
}

func TestAddUnknownProductIsIgnored(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodPost, "/add_to_cart/999", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	assert.Empty(t, h.menu(t).Cart)

	resp = h.do(t, http.MethodPost, "/add_to_cart/abc", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCheckoutWithEmptyCartRedirects(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/checkout", nil)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)

	resp = h.do(t, http.MethodPost, "/checkout", url.Values{"customer_name": {"Ana"}})
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/menu?type=takeaway", resp.Header.Get("Location"))

	list, err := h.store.ListOrders(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCheckoutPlacesOrderAndClearsCart(t *testing.T) {
	h := newHarness(t)
	burger, fries := h.products[0], h.products[1]
	h.do(t, http.MethodPost, "/add_to_cart/"+itoa(burger.ID), nil)
	h.do(t, http.MethodPost, "/add_to_cart/"+itoa(burger.ID), nil)
	h.do(t, http.MethodPost, "/add_to_cart/"+itoa(fries.ID), nil)

	resp := h.do(t, http.MethodGet, "/checkout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	summary := decode[CheckoutView](t, resp)
	assert.Equal(t, "14.97", summary.Total.StringFixed(2))

	resp = h.do(t, http.MethodPost, "/checkout", url.Values{"customer_name": {"Ana"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	conf := decode[ConfirmationView](t, resp)
	assert.NotZero(t, conf.OrderID)
	assert.Equal(t, "Ana", conf.CustomerName)
	assert.Len(t, conf.OrderNumber, 4)
	assert.Equal(t, "14.97", conf.Total.StringFixed(2))
	assert.Equal(t, orders.StatusPending, conf.Status)

	assert.Empty(t, h.menu(t).Cart)

	items, err := h.store.OrderItems(context.Background(), conf.OrderID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, 1, items[1].Quantity)

	p, err := h.store.GetProduct(context.Background(), burger.ID)
	require.NoError(t, err)
	assert.Equal(t, 18, p.Stock)

	require.Len(t, h.pub.msgs, 1)
	var ev orders.Envelope
	require.NoError(t, json.Unmarshal(h.pub.msgs[0].Value, &ev))
	assert.Equal(t, orders.EventOrderPlaced, ev.EventType)
	assert.Equal(t, "storefront-test", ev.Producer)
}

func TestCheckoutRequiresCustomerName(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/add_to_cart/"+itoa(h.products[0].ID), nil)

	resp := h.do(t, http.MethodPost, "/checkout", url.Values{"customer_name": {"  "}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Len(t, h.menu(t).Cart, 1)
}

func TestOrdersEndpoints(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/add_to_cart/"+itoa(h.products[1].ID), nil)
	resp := h.do(t, http.MethodPost, "/checkout", url.Values{"customer_name": {"Bo"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	conf := decode[ConfirmationView](t, resp)

	resp = h.do(t, http.MethodGet, "/orders", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decode[[]orders.Order](t, resp)
	require.Len(t, list, 1)
	assert.Equal(t, "Bo", list[0].CustomerName)

	for i := 0; i < 2; i++ {
		resp = h.do(t, http.MethodGet, "/orders/"+itoa(conf.OrderID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		v := decode[OrderView](t, resp)
		assert.Equal(t, conf.OrderID, v.ID)
		require.Len(t, v.Lines, 1)
		assert.Equal(t, "Fries", v.Lines[0].Name)
	}
	assert.Equal(t, 1, h.cache.hits)

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/orders/4040", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/orders/x", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, h.do(t, http.MethodGet, "/orders?limit=0", nil).StatusCode)
}

// repricedStore serves the wrapped store but reports a fixed current price
// on order lines and counts header reads.
type repricedStore struct {
	orders.Store
	price       decimal.Decimal
	headerReads int
}

func (s *repricedStore) GetOrder(ctx context.Context, id int64) (orders.Order, error) {
	s.headerReads++
	return s.Store.GetOrder(ctx, id)
}

func (s *repricedStore) OrderLines(ctx context.Context, id int64) ([]orders.OrderLine, error) {
	lines, err := s.Store.OrderLines(ctx, id)
	if err != nil || s.price.IsZero() {
		return lines, err
	}
	for i := range lines {
		lines[i].Price = s.price
		lines[i].Subtotal = s.price.Mul(decimal.NewFromInt(int64(lines[i].Quantity)))
	}
	return lines, nil
}

func TestOrderViewCachesHeaderOnly(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/add_to_cart/"+itoa(h.products[1].ID), nil)
	resp := h.do(t, http.MethodPost, "/checkout", url.Values{"customer_name": {"Bo"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	conf := decode[ConfirmationView](t, resp)

	store := &repricedStore{Store: h.store}
	router := chi.NewRouter()
	(&OrdersHandler{Store: store, Cache: &memoryCache{data: map[string]string{}}}).Register(router)

	get := func() OrderView {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+itoa(conf.OrderID), nil))
		require.Equal(t, http.StatusOK, rec.Code)
		var v OrderView
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
		return v
	}

	first := get()
	require.Len(t, first.Lines, 1)
	assert.True(t, decimal.RequireFromString("2.99").Equal(first.Lines[0].Price))

	store.price = decimal.RequireFromString("3.49")
	second := get()
	require.Len(t, second.Lines, 1)
	assert.True(t, decimal.RequireFromString("3.49").Equal(second.Lines[0].Price))
	assert.True(t, decimal.RequireFromString("3.49").Equal(second.Lines[0].Subtotal))
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, 1, store.headerReads)
}

func TestSessionsKeepsValidCookie(t *testing.T) {
	var seen string
	handler := Sessions(time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "6f1c2f0e-3c1c-4a51-9a3f-2b6c5b1e7d10"})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "6f1c2f0e-3c1c-4a51-9a3f-2b6c5b1e7d10", seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "forged"})
	handler.ServeHTTP(httptest.NewRecorder(), req)
	assert.NotEqual(t, "forged", seen)
	assert.Len(t, seen, 36)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
