// Package matchcore implements the per-instrument matching core: the
// ordered bid/ask resting-order collections, the last/best-bid/best-ask
// trackers, and the iterate() sweep that evaluates resting orders against the
// current market. It holds no fill logic of its own; iterate() only decides
// *which* orders are touched/triggered and delegates the decision of whether
// and how to fill them to the callbacks passed in by the matching engine.
package matchcore

import (
	"container/heap"

	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

// resting wraps an order with the FIFO sequence number it was added under,
// so that orders tied on price are still served acceptance-order first.
type resting struct {
	order *model.Order
	seq   uint64
	index int
}

// restingHeap is a container/heap.Interface over resting orders for one side
// of one book: descending price for bids, ascending for asks, ties broken by
// ascending sequence (earlier acceptance wins).
type restingHeap struct {
	items      []*resting
	descending bool
}

func (h restingHeap) Len() int { return len(h.items) }

func (h restingHeap) Less(i, j int) bool {
	pi, pj := h.items[i].order.Price, h.items[j].order.Price
	if pi.Equal(pj) {
		return h.items[i].seq < h.items[j].seq
	}
	if h.descending {
		return pi.GreaterThan(pj)
	}
	return pi.LessThan(pj)
}

func (h restingHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *restingHeap) Push(x interface{}) {
	r := x.(*resting)
	r.index = len(h.items)
	h.items = append(h.items, r)
}

func (h *restingHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	r.index = -1
	h.items = old[:n-1]
	return r
}

// orderedView returns the heap's items sorted into full priority order
// without mutating the heap (heap order only guarantees the root is best).
func (h *restingHeap) orderedView() []*resting {
	items := make([]*resting, len(h.items))
	copy(items, h.items)
	sortByPriority(items, h.descending)
	return items
}

func sortByPriority(items []*resting, descending bool) {
	// Simple insertion sort: resting books are small relative to a typical
	// per-instrument replay window, and callers need a stable, deterministic
	// full ordering (not just the heap root) once per iterate() call.
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && less(items[j], items[j-1], descending) {
			items[j], items[j-1] = items[j-1], items[j]
			j--
		}
	}
}

func less(a, b *resting, descending bool) bool {
	if a.order.Price.Equal(b.order.Price) {
		return a.seq < b.seq
	}
	if descending {
		return a.order.Price.GreaterThan(b.order.Price)
	}
	return a.order.Price.LessThan(b.order.Price)
}

// Core holds one instrument's resting bid/ask order sets and market trackers.
type Core struct {
	InstrumentID model.InstrumentId

	bids *restingHeap
	asks *restingHeap
	byID map[string]*resting

	seq uint64

	bid, ask, last     model.Price
	hasBid, hasAsk, hasLast bool
}

// New constructs an empty matching core for one instrument.
func New(id model.InstrumentId) *Core {
	c := &Core{
		InstrumentID: id,
		bids:         &restingHeap{descending: true},
		asks:         &restingHeap{descending: false},
		byID:         make(map[string]*resting),
	}
	heap.Init(c.bids)
	heap.Init(c.asks)
	return c
}

// SetBid/SetAsk/SetLast update the market trackers; callers invoke these
// before Iterate when new market data arrives.
func (c *Core) SetBid(p model.Price)  { c.bid, c.hasBid = p, true }
func (c *Core) SetAsk(p model.Price)  { c.ask, c.hasAsk = p, true }
func (c *Core) SetLast(p model.Price) { c.last, c.hasLast = p, true }

func (c *Core) Bid() (model.Price, bool)  { return c.bid, c.hasBid }
func (c *Core) Ask() (model.Price, bool)  { return c.ask, c.hasAsk }
func (c *Core) Last() (model.Price, bool) { return c.last, c.hasLast }

// AddOrder adds a passive order to the appropriate side. Orders are stored
// once; calling AddOrder again for the same ClientOrderID after a price
// change is how callers reposition an order (delete then add).
func (c *Core) AddOrder(o *model.Order) {
	c.seq++
	r := &resting{order: o, seq: c.seq}
	c.byID[o.ClientOrderID] = r
	if o.Side == model.OrderSideBuy {
		heap.Push(c.bids, r)
	} else {
		heap.Push(c.asks, r)
	}
}

// DeleteOrder removes an order from its resting side, if present.
func (c *Core) DeleteOrder(clientOrderID string) {
	r, ok := c.byID[clientOrderID]
	if !ok {
		return
	}
	delete(c.byID, clientOrderID)
	var h *restingHeap
	if r.order.Side == model.OrderSideBuy {
		h = c.bids
	} else {
		h = c.asks
	}
	if r.index >= 0 && r.index < len(h.items) && h.items[r.index] == r {
		heap.Remove(h, r.index)
	}
}

// Contains reports whether the given order currently rests in the core.
func (c *Core) Contains(clientOrderID string) bool {
	_, ok := c.byID[clientOrderID]
	return ok
}

// IsLimitMatched reports whether a limit order on side resting at price
// would currently match the opposing touch price.
func (c *Core) IsLimitMatched(side model.OrderSide, price model.Price) bool {
	if side == model.OrderSideBuy {
		ask, ok := c.Ask()
		return ok && !ask.GreaterThan(price)
	}
	bid, ok := c.Bid()
	return ok && !bid.LessThan(price)
}

// IsStopTriggered reports whether a stop order on side with the given
// trigger price is currently triggered by the opposing touch price.
func (c *Core) IsStopTriggered(side model.OrderSide, price model.Price) bool {
	if side == model.OrderSideBuy {
		ask, ok := c.Ask()
		return ok && !ask.LessThan(price)
	}
	bid, ok := c.Bid()
	return ok && !bid.GreaterThan(price)
}

// Callbacks are invoked by Iterate for orders whose condition is satisfied.
// Returning true from TriggerStopOrder/FillMarketOrder/FillLimitOrder tells
// Iterate the order left the resting set during the callback (filled,
// triggered-and-converted, or canceled) so it must not be re-visited.
type Callbacks struct {
	TriggerStopOrder func(o *model.Order) (removed bool)
	FillMarketOrder  func(o *model.Order) (removed bool)
	FillLimitOrder   func(o *model.Order) (removed bool)
}

// Iterate walks each side in priority order, invoking the matching callback
// for every order whose trigger/limit condition is satisfied by the current
// (bid, ask, last) state. An order whose callback reports it removed is
// deleted from the core right after the callback returns, and orders no
// longer in the core (including ones a callback removed, e.g. an OCO leg)
// are skipped, so a single iterate() pass never revisits a closed order.
func (c *Core) Iterate(cb Callbacks) {
	c.iterateSide(c.bids, model.OrderSideBuy, cb)
	c.iterateSide(c.asks, model.OrderSideSell, cb)
}

func (c *Core) iterateSide(h *restingHeap, side model.OrderSide, cb Callbacks) {
	for _, r := range h.orderedView() {
		if !c.Contains(r.order.ClientOrderID) {
			continue // removed by an earlier callback in this same pass (e.g. OCO cascade)
		}
		o := r.order
		switch {
		case o.Type.IsStopType() && o.Status != model.StatusTriggered:
			trigger := o.Price
			if o.HasTrigger {
				trigger = o.TriggerPrice
			}
			if c.IsStopTriggered(side, trigger) {
				if cb.TriggerStopOrder != nil && cb.TriggerStopOrder(o) {
					c.DeleteOrder(o.ClientOrderID)
				}
			}
		case o.Type.IsLimitType() || (o.Type == model.OrderTypeMarketToLimit && o.HasPrice):
			if c.IsLimitMatched(side, o.Price) {
				if cb.FillLimitOrder != nil && cb.FillLimitOrder(o) {
					c.DeleteOrder(o.ClientOrderID)
				}
			}
		default:
			if cb.FillMarketOrder != nil && cb.FillMarketOrder(o) {
				c.DeleteOrder(o.ClientOrderID)
			}
		}
	}
}

// Size returns the number of resting bid and ask orders.
func (c *Core) Size() (bids, asks int) { return c.bids.Len(), c.asks.Len() }
