package cache

import "github.com/abdoElHodaky/backtestcore/pkg/model"

// Source resolves the authoritative order/position state the cache refreshes
// from; internal/backtest/matching.Engine and internal/backtest/exchange.Exchange
// both satisfy it. Declared here, not imported from matching, to keep the
// cache->engine dependency one-directional (the bus wires concrete engines
// in, the cache never imports them).
type Source interface {
	Order(clientOrderID string) (*model.Order, bool)
	Position(positionID string) (*model.Position, bool)
}

// Apply is the cache's single mutation entrypoint: the message bus calls it
// for every published event, and it refreshes exactly the order/position
// the event names from src. Nothing else writes to the cache.
func (c *Cache) Apply(ev model.Event, src Source) {
	if ev.Header.ClientOrderID != "" {
		if o, ok := src.Order(ev.Header.ClientOrderID); ok {
			c.PutOrder(o)
		}
	}
	if ev.PositionID != "" {
		if p, ok := src.Position(ev.PositionID); ok {
			c.PutPosition(p)
		}
	}
}
