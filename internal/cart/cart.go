// Package cart holds the per-session shopping cart. A Cart is a plain value;
// the web layer is responsible for loading it from and saving it to a
// session store.
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ariefcatur/go-storefront/internal/orders"
	"github.com/shopspring/decimal"
)

// Catalog is the product lookup the cart needs when adding items.
type Catalog interface {
	GetProduct(ctx context.Context, id int64) (orders.Product, error)
}

// Line is one cart entry. Name and Price are snapshots taken when the product
// was first added.
type Line struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart maps product id to line. Every present line has Quantity >= 1.
type Cart struct {
	Items map[int64]Line `json:"items"`
}

func New() *Cart {
	return &Cart{Items: map[int64]Line{}}
}

// Add increments the product's quantity, or inserts it with quantity 1 using
// the catalog's current name and price. Unknown products are ignored.
func (c *Cart) Add(ctx context.Context, catalog Catalog, productID int64) error {
	if c.Items == nil {
		c.Items = map[int64]Line{}
	}
	p, err := catalog.GetProduct(ctx, productID)
	if errors.Is(err, orders.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup product %d: %w", productID, err)
	}
	if l, ok := c.Items[productID]; ok {
		l.Quantity++
		c.Items[productID] = l
		return nil
	}
	c.Items[productID] = Line{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: 1}
	return nil
}

// Remove decrements the product's quantity and drops the line at zero.
func (c *Cart) Remove(productID int64) {
	l, ok := c.Items[productID]
	if !ok {
		return
	}
	l.Quantity--
	if l.Quantity <= 0 {
		delete(c.Items, productID)
		return
	}
	c.Items[productID] = l
}

func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range c.Items {
		total = total.Add(l.Subtotal())
	}
	return total
}

func (c *Cart) Clear() { c.Items = map[int64]Line{} }

func (c *Cart) Len() int { return len(c.Items) }

func (c *Cart) IsEmpty() bool { return len(c.Items) == 0 }

// Quantity returns 0 for products not in the cart.
func (c *Cart) Quantity(productID int64) int { return c.Items[productID].Quantity }

// Lines returns the entries ordered by product id.
func (c *Cart) Lines() []Line {
	out := make([]Line, 0, len(c.Items))
	for _, l := range c.Items {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// Encode serializes the cart for session storage.
func (c *Cart) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// Decode restores a cart written by Encode. Lines with a non-positive
// quantity are dropped.
func Decode(b []byte) (*Cart, error) {
	c := New()
	if len(b) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	if c.Items == nil {
		c.Items = map[int64]Line{}
	}
	for id, l := range c.Items {
		if l.Quantity <= 0 {
			delete(c.Items, id)
		}
	}
	return c, nil
}
