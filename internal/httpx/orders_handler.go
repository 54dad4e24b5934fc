package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/ariefcatur/go-storefront/internal/redisx"
	"github.com/go-chi/chi/v5"
)

const (
	defaultOrdersLimit = 50
	maxOrdersLimit     = 500
)

// ViewCache holds encoded order headers. A miss is ("", false, nil).
type ViewCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

type OrdersHandler struct {
	Store orders.Store
	Cache ViewCache // optional
}

type OrderView struct {
	orders.Order
	Lines []orders.OrderLine `json:"lines"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	limit := defaultOrdersLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = min(n, maxOrdersLimit)
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Store.ListOrders(ctx, limit)
	if err != nil {
		serverError(w, r, "list orders", err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// only the header is cached; lines carry current product prices
	o, err := h.order(ctx, id)
	if errors.Is(err, orders.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		serverError(w, r, "get order", err)
		return
	}
	lines, err := h.Store.OrderLines(ctx, id)
	if err != nil {
		serverError(w, r, "order lines", err)
		return
	}
	if lines == nil {
		lines = []orders.OrderLine{}
	}
	writeJSON(w, http.StatusOK, OrderView{Order: o, Lines: lines})
}

func (h *OrdersHandler) order(ctx context.Context, id int64) (orders.Order, error) {
	key := fmt.Sprintf(redisx.KeyOrderView, id)
	if h.Cache != nil {
		s, ok, err := h.Cache.Get(ctx, key)
		if err != nil {
			log.Printf("order view cache get %s: %v", key, err)
		}
		if ok {
			var o orders.Order
			if err := json.Unmarshal([]byte(s), &o); err == nil {
				return o, nil
			}
			log.Printf("order view cache decode %s: %v", key, err)
		}
	}

	o, err := h.Store.GetOrder(ctx, id)
	if err != nil {
		return orders.Order{}, err
	}
	if h.Cache != nil {
		if b, err := json.Marshal(o); err == nil {
			if err := h.Cache.Set(ctx, key, string(b), redisx.TTLOrderView); err != nil {
				log.Printf("order view cache set %s: %v", key, err)
			}
		}
	}
	return o, nil
}
