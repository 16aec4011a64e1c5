// Package cache implements the shared cache: a read-through view of orders
// and positions for strategies and the matching engine, mutated only by
// Apply in response to events the message bus delivers.
package cache

import (
	gocache "github.com/patrickmn/go-cache"

	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

const (
	orderKeyPrefix    = "order:"
	positionKeyPrefix = "position:"
)

// Cache is the shared read-only view; entries never expire on their own
// (a backtest run has no notion of staleness), so it is constructed with
// NoExpiration and a disabled cleanup sweep.
type Cache struct {
	store *gocache.Cache
}

// New constructs an empty cache.
func New() *Cache {
	return &Cache{store: gocache.New(gocache.NoExpiration, gocache.NoExpiration)}
}

// Order returns the cached state of one order, if known.
func (c *Cache) Order(clientOrderID string) (*model.Order, bool) {
	v, ok := c.store.Get(orderKeyPrefix + clientOrderID)
	if !ok {
		return nil, false
	}
	o, ok := v.(*model.Order)
	return o, ok
}

// Position returns the cached state of one position, if known.
func (c *Cache) Position(positionID string) (*model.Position, bool) {
	v, ok := c.store.Get(positionKeyPrefix + positionID)
	if !ok {
		return nil, false
	}
	p, ok := v.(*model.Position)
	return p, ok
}

// PutOrder and PutPosition are the cache's only write paths; callers are
// restricted by convention to the execution engine reacting to published
// events (Apply, in apply.go).
func (c *Cache) PutOrder(o *model.Order) {
	c.store.Set(orderKeyPrefix+o.ClientOrderID, o, gocache.NoExpiration)
}

func (c *Cache) PutPosition(p *model.Position) {
	c.store.Set(positionKeyPrefix+p.PositionID, p, gocache.NoExpiration)
}

// ItemCount reports the number of cached orders plus positions.
func (c *Cache) ItemCount() int { return c.store.ItemCount() }
