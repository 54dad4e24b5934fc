package httpx

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ariefcatur/go-storefront/internal/cart"
	"github.com/ariefcatur/go-storefront/internal/checkout"
	kafkax "github.com/ariefcatur/go-storefront/internal/kafka"
	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

const defaultOrderType = "takeaway"

var orderTypes = []string{"takeaway", "dine-in"}

// CartSessions loads and saves the cart bound to a session id.
type CartSessions interface {
	Load(ctx context.Context, sessionID string) (*cart.Cart, error)
	Save(ctx context.Context, sessionID string, c *cart.Cart) error
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type StorefrontHandler struct {
	Catalog  orders.Catalog
	Writer   *checkout.Writer
	Sessions CartSessions
	Producer Publisher // optional
	Service  string
}

type MenuView struct {
	OrderType string           `json:"order_type"`
	Products  []orders.Product `json:"products"`
	Cart      []cart.Line      `json:"cart"`
	CartTotal decimal.Decimal  `json:"cart_total"`
}

type CheckoutView struct {
	Cart  []cart.Line     `json:"cart"`
	Total decimal.Decimal `json:"total"`
}

type ConfirmationView struct {
	OrderID      int64           `json:"order_id"`
	CustomerName string          `json:"customer_name"`
	OrderNumber  string          `json:"order_number"`
	Total        decimal.Decimal `json:"total"`
	Status       orders.Status   `json:"status"`
}

func (h *StorefrontHandler) Register(r chi.Router) {
	r.Get("/", h.home)
	r.Get("/menu", h.menu)
	r.Post("/add_to_cart/{product_id}", h.addToCart)
	r.Post("/remove_from_cart/{product_id}", h.removeFromCart)
	r.Get("/remove_from_cart/{product_id}", h.removeFromCart)
	r.Get("/checkout", h.checkoutSummary)
	r.Post("/checkout", h.placeOrder)
}

func orderType(r *http.Request) string {
	if t := r.URL.Query().Get("type"); t != "" {
		return t
	}
	return defaultOrderType
}

func redirectToMenu(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/menu?type="+url.QueryEscape(orderType(r)), http.StatusSeeOther)
}

func (h *StorefrontHandler) home(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"service": h.Service, "order_types": orderTypes})
}

func (h *StorefrontHandler) menu(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	products, err := h.Catalog.ListProducts(ctx)
	if err != nil {
		serverError(w, r, "list products", err)
		return
	}
	c, err := h.Sessions.Load(ctx, SessionID(ctx))
	if err != nil {
		serverError(w, r, "load cart", err)
		return
	}
	if products == nil {
		products = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, MenuView{
		OrderType: orderType(r),
		Products:  products,
		Cart:      c.Lines(),
		CartTotal: c.Total(),
	})
}

func (h *StorefrontHandler) addToCart(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "invalid product id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	sid := SessionID(ctx)
	c, err := h.Sessions.Load(ctx, sid)
	if err != nil {
		serverError(w, r, "load cart", err)
		return
	}
	// unknown products leave the cart as it was
	if err := c.Add(ctx, h.Catalog, productID); err != nil {
		serverError(w, r, "add to cart", err)
		return
	}
	if err := h.Sessions.Save(ctx, sid, c); err != nil {
		serverError(w, r, "save cart", err)
		return
	}
	redirectToMenu(w, r)
}

func (h *StorefrontHandler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil {
		// nothing can be stored under a non-numeric id
		redirectToMenu(w, r)
		return
	}
	sid := SessionID(ctx)
	c, err := h.Sessions.Load(ctx, sid)
	if err != nil {
		serverError(w, r, "load cart", err)
		return
	}
	c.Remove(productID)
	if err := h.Sessions.Save(ctx, sid, c); err != nil {
		serverError(w, r, "save cart", err)
		return
	}
	redirectToMenu(w, r)
}

func (h *StorefrontHandler) checkoutSummary(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	c, err := h.Sessions.Load(ctx, SessionID(ctx))
	if err != nil {
		serverError(w, r, "load cart", err)
		return
	}
	if c.IsEmpty() {
		redirectToMenu(w, r)
		return
	}
	writeJSON(w, http.StatusOK, CheckoutView{Cart: c.Lines(), Total: c.Total()})
}

func (h *StorefrontHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sid := SessionID(ctx)
	c, err := h.Sessions.Load(ctx, sid)
	if err != nil {
		serverError(w, r, "load cart", err)
		return
	}
	if c.IsEmpty() {
		redirectToMenu(w, r)
		return
	}

	rc, err := h.Writer.PlaceOrder(ctx, c, r.FormValue("customer_name"))
	switch {
	case errors.Is(err, checkout.ErrCustomerRequired):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, checkout.ErrInsufficientStock):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		serverError(w, r, "place order", err)
		return
	}

	c.Clear()
	if err := h.Sessions.Save(ctx, sid, c); err != nil {
		// the order is committed; a stale cart is the lesser problem
		log.Printf("clear cart after order %d: %v", rc.OrderID, err)
	}

	if h.Producer != nil {
		ev := checkout.OrderPlacedEvent(rc, h.Service, middleware.GetReqID(ctx))
		h.Producer.Publish(orders.PartitionKey(rc.OrderID), kafkax.MustMarshal(ev),
			kafkax.EventHeaders(orders.EventOrderPlaced, ev.EventVersion)...)
	}

	writeJSON(w, http.StatusCreated, ConfirmationView{
		OrderID:      rc.OrderID,
		CustomerName: rc.CustomerName,
		OrderNumber:  rc.OrderNumber,
		Total:        rc.Total,
		Status:       rc.Status,
	})
}
