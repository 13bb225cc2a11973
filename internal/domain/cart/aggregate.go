package cart

import (
	"errors"
)

var (
	ErrInvalidProduct = errors.New("product_id must be positive")
	ErrInvalidPrice   = errors.New("unit_price must not be negative")
)

// LineItem is one product line of the cart. ProductID is the line's key;
// the descriptive fields are a snapshot taken when the line was added.
type LineItem struct {
	ProductID   int64   `json:"productId"`
	ProductName string  `json:"productName"`
	DisplayName string  `json:"displayName,omitempty"`
	Image       string  `json:"image,omitempty"`
	UnitPrice   float64 `json:"unitPrice"`
	Quantity    int     `json:"quantity"`
}

// Validate checks the identity and price of an item. Quantity is not
// checked here; callers decide how non-positive quantities are treated.
func (i LineItem) Validate() error {
	if i.ProductID <= 0 {
		return ErrInvalidProduct
	}
	if i.UnitPrice < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// Subtotal returns unit price times quantity
func (i LineItem) Subtotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}

// Cart holds at most one line per product. The zero value is an empty cart.
type Cart struct {
	items []LineItem
	index map[int64]int // productID -> position in items
}

// New creates a cart from the given items, merging duplicates.
// Invalid items and items with a non-positive quantity are skipped.
func New(items ...LineItem) *Cart {
	c := &Cart{}
	c.Replace(items)
	return c
}

// Add appends a line or, if the product is already present, sums the
// quantity onto the existing line. Existing name and price are kept.
// A quantity <= 0 is treated as 1.
func (c *Cart) Add(item LineItem, quantity int) error {
	if err := item.Validate(); err != nil {
		return err
	}
	if quantity <= 0 {
		quantity = 1
	}
	c.ensureIndex()

	if pos, ok := c.index[item.ProductID]; ok {
		c.items[pos].Quantity += quantity
		return nil
	}

	item.Quantity = quantity
	c.index[item.ProductID] = len(c.items)
	c.items = append(c.items, item)
	return nil
}

// Remove deletes the line for productID and reports whether it existed
func (c *Cart) Remove(productID int64) bool {
	c.ensureIndex()
	pos, ok := c.index[productID]
	if !ok {
		return false
	}
	c.items = append(c.items[:pos], c.items[pos+1:]...)
	c.reindex()
	return true
}

// SetQuantity replaces the quantity of an existing line. A quantity <= 0
// removes the line. It reports whether the cart changed.
func (c *Cart) SetQuantity(productID int64, quantity int) bool {
	if quantity <= 0 {
		return c.Remove(productID)
	}
	c.ensureIndex()
	pos, ok := c.index[productID]
	if !ok {
		return false
	}
	if c.items[pos].Quantity == quantity {
		return false
	}
	c.items[pos].Quantity = quantity
	return true
}

// Clear removes every line
func (c *Cart) Clear() {
	c.items = nil
	c.index = make(map[int64]int)
}

// Replace swaps the cart contents wholesale. Duplicates are merged the
// same way Add merges them.
func (c *Cart) Replace(items []LineItem) {
	c.Clear()
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		_ = c.Add(item, item.Quantity)
	}
}

// Get returns the line for productID
func (c *Cart) Get(productID int64) (LineItem, bool) {
	c.ensureIndex()
	pos, ok := c.index[productID]
	if !ok {
		return LineItem{}, false
	}
	return c.items[pos], true
}

// Items returns a copy of the lines in insertion order
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) IsEmpty() bool {
	return len(c.items) == 0
}

// TotalItems sums the quantity of every line
func (c *Cart) TotalItems() int {
	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

// TotalPrice sums unit price times quantity over every line
func (c *Cart) TotalPrice() float64 {
	total := 0.0
	for _, item := range c.items {
		total += item.Subtotal()
	}
	return total
}

func (c *Cart) ensureIndex() {
	if c.index == nil {
		c.reindex()
	}
}

func (c *Cart) reindex() {
	c.index = make(map[int64]int, len(c.items))
	for i, item := range c.items {
		c.index[item.ProductID] = i
	}
}
