// Package catalog holds the product and delivery-neighborhood lists and
// loads them from remote JSON documents.
package catalog

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog item. Name is unique within one catalog load.
type Product struct {
	Name        string
	Price       decimal.Decimal
	Category    string
	Description string
	Image       string
}

// Neighborhood is a delivery area with its delivery fee.
type Neighborhood struct {
	Name        string
	DeliveryFee decimal.Decimal
}

// Document identifies one of the two catalog documents.
type Document string

const (
	DocProducts      Document = "products"
	DocNeighborhoods Document = "neighborhoods"
)

// Status describes the outcome of the most recent load of a document.
type Status struct {
	// Loaded reports whether the document was loaded successfully at least once.
	Loaded   bool
	LoadedAt time.Time
	// Err is the error of the most recent attempt, nil if it succeeded.
	Err error
}

type productSet struct {
	list   []Product
	byName map[string]int
}

type neighborhoodSet struct {
	list   []Neighborhood
	byName map[string]int
}

// Catalog is the in-memory catalog state shared by all sessions.
//
// Readers never lock: each list is swapped as a whole, so a reader sees
// either the previous or the next list, never a mix. Returned slices are
// shared and must not be modified.
type Catalog struct {
	products      atomic.Pointer[productSet]
	neighborhoods atomic.Pointer[neighborhoodSet]

	mu              sync.Mutex
	status          map[Document]Status
	onProducts      []func([]Product)
	onNeighborhoods []func([]Neighborhood)
	now             func() time.Time
}

// New returns an empty catalog.
func New() *Catalog {
	c := &Catalog{
		status: make(map[Document]Status, 2),
		now:    time.Now,
	}
	c.products.Store(&productSet{})
	c.neighborhoods.Store(&neighborhoodSet{})
	return c
}

// Products returns the current product list in document order.
func (c *Catalog) Products() []Product {
	return c.products.Load().list
}

// Product looks up a product by name.
func (c *Catalog) Product(name string) (Product, bool) {
	set := c.products.Load()
	i, ok := set.byName[name]
	if !ok {
		return Product{}, false
	}
	return set.list[i], true
}

// Neighborhoods returns the current neighborhood list in document order.
func (c *Catalog) Neighborhoods() []Neighborhood {
	return c.neighborhoods.Load().list
}

// Neighborhood looks up a neighborhood by name.
func (c *Catalog) Neighborhood(name string) (Neighborhood, bool) {
	set := c.neighborhoods.Load()
	i, ok := set.byName[name]
	if !ok {
		return Neighborhood{}, false
	}
	return set.list[i], true
}

// DeliveryFee returns the fee for the named neighborhood, or zero and false
// when the name is empty or unknown.
func (c *Catalog) DeliveryFee(name string) (decimal.Decimal, bool) {
	n, ok := c.Neighborhood(name)
	if !ok {
		return decimal.Zero, false
	}
	return n.DeliveryFee, true
}

// Status returns the load status of a document.
func (c *Catalog) Status(doc Document) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status[doc]
}

// OnProducts registers fn to run after every successful product load.
func (c *Catalog) OnProducts(fn func([]Product)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onProducts = append(c.onProducts, fn)
}

// OnNeighborhoods registers fn to run after every successful neighborhood load.
func (c *Catalog) OnNeighborhoods(fn func([]Neighborhood)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onNeighborhoods = append(c.onNeighborhoods, fn)
}

// SetProducts replaces the product list and runs the product listeners.
// Later duplicates of a name are dropped.
func (c *Catalog) SetProducts(products []Product) {
	set := &productSet{
		list:   make([]Product, 0, len(products)),
		byName: make(map[string]int, len(products)),
	}
	for _, p := range products {
		if _, dup := set.byName[p.Name]; dup {
			continue
		}
		set.byName[p.Name] = len(set.list)
		set.list = append(set.list, p)
	}
	c.products.Store(set)

	c.mu.Lock()
	c.status[DocProducts] = Status{Loaded: true, LoadedAt: c.now()}
	listeners := slices.Clone(c.onProducts)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(set.list)
	}
}

// SetNeighborhoods replaces the neighborhood list and runs the neighborhood
// listeners. Later duplicates of a name are dropped.
func (c *Catalog) SetNeighborhoods(neighborhoods []Neighborhood) {
	set := &neighborhoodSet{
		list:   make([]Neighborhood, 0, len(neighborhoods)),
		byName: make(map[string]int, len(neighborhoods)),
	}
	for _, n := range neighborhoods {
		if _, dup := set.byName[n.Name]; dup {
			continue
		}
		set.byName[n.Name] = len(set.list)
		set.list = append(set.list, n)
	}
	c.neighborhoods.Store(set)

	c.mu.Lock()
	c.status[DocNeighborhoods] = Status{Loaded: true, LoadedAt: c.now()}
	listeners := slices.Clone(c.onNeighborhoods)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(set.list)
	}
}

// setError records a failed load. The current list is kept.
func (c *Catalog) setError(doc Document, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := c.status[doc]
	st.Err = err
	c.status[doc] = st
}
