package model

import "sort"

// BookType selects how much of the book an OrderBook tracks.
type BookType string

const (
	BookL1TBBO BookType = "L1_TBBO" // top-of-book only
	BookL2MBP  BookType = "L2_MBP"  // aggregated price levels
	BookL3MBO  BookType = "L3_MBO"  // per-order deltas; OrderBook aggregates them by price level
)

// DeltaAction names the operation an OrderBookDelta applies to a level.
type DeltaAction string

const (
	DeltaAdd    DeltaAction = "ADD"
	DeltaUpdate DeltaAction = "UPDATE"
	DeltaDelete DeltaAction = "DELETE"
	DeltaClear  DeltaAction = "CLEAR"
)

// OrderBookDelta is a single incremental book update.
type OrderBookDelta struct {
	InstrumentID InstrumentId
	Action       DeltaAction
	Side         OrderSide
	Price        Price
	Size         Quantity
	OrderID      string // populated for L3_MBO deltas
	TsEvent      int64
	TsInit       int64
}

// Deltas batches multiple OrderBookDelta entries sharing one ts_event, as
// produced by a single venue snapshot/update message.
type Deltas struct {
	InstrumentID InstrumentId
	Deltas       []OrderBookDelta
	TsEvent      int64
	TsInit       int64
}

// Level is one price level's aggregate resting volume.
type Level struct {
	Price Price
	Size  Quantity
}

// DepthType selects whether simulate_order_fills walks the visible book only
// or continues into a synthetic level beyond the last real price.
type DepthType string

const (
	DepthVisible DepthType = "VISIBLE"
	DepthVolume  DepthType = "VOLUME_WITH_IMAGINARY_LEVEL"
)

// OrderBook holds both sides of price levels for one instrument. Bids are
// kept sorted descending, asks ascending, so Best{Bid,Ask}Price are O(1).
type OrderBook struct {
	InstrumentID InstrumentId
	Type         BookType

	bidPrices []Price // descending
	askPrices []Price // ascending
	bidLevels map[string]Quantity
	askLevels map[string]Quantity

	hasBid bool
	hasAsk bool
	hasLast bool
	bid  Price
	ask  Price
	last Price
}

// NewOrderBook constructs an empty book for the given instrument.
func NewOrderBook(id InstrumentId, bookType BookType) *OrderBook {
	return &OrderBook{
		InstrumentID: id,
		Type:         bookType,
		bidLevels:    make(map[string]Quantity),
		askLevels:    make(map[string]Quantity),
	}
}

// BestBidPrice returns the highest resting bid, if any.
func (b *OrderBook) BestBidPrice() (Price, bool) {
	if b.Type == BookL1TBBO {
		return b.bid, b.hasBid
	}
	if len(b.bidPrices) == 0 {
		return Price{}, false
	}
	return b.bidPrices[0], true
}

// BestAskPrice returns the lowest resting ask, if any.
func (b *OrderBook) BestAskPrice() (Price, bool) {
	if b.Type == BookL1TBBO {
		return b.ask, b.hasAsk
	}
	if len(b.askPrices) == 0 {
		return Price{}, false
	}
	return b.askPrices[0], true
}

// LastPrice returns the price of the most recent trade, if any.
func (b *OrderBook) LastPrice() (Price, bool) { return b.last, b.hasLast }

// Midpoint returns the average of best bid and best ask, if both exist.
func (b *OrderBook) Midpoint() (Price, bool) {
	bid, okB := b.BestBidPrice()
	ask, okA := b.BestAskPrice()
	if !okB || !okA {
		return Price{}, false
	}
	sum, _ := bid.Add(ask)
	half := NewPrice(0.5, sum.Precision())
	mid := sum.Decimal().Mul(half.Decimal())
	return PriceFromDecimal(mid, bid.Precision()), true
}

// SetTop directly sets the L1 top-of-book quote; used by process_quote_tick
// for L1_TBBO books, which do not otherwise apply deltas.
func (b *OrderBook) SetTop(bid, ask Price) {
	b.bid, b.ask = bid, ask
	b.hasBid, b.hasAsk = true, true
}

// SetLast records the most recent trade price; used by process_trade_tick.
func (b *OrderBook) SetLast(px Price) {
	b.last, b.hasLast = px, true
}

// Apply folds a single delta into an L2/L3 book's aggregated levels.
func (b *OrderBook) Apply(d OrderBookDelta) {
	var prices *[]Price
	var levels map[string]Quantity
	if d.Side == OrderSideBuy {
		prices, levels = &b.bidPrices, b.bidLevels
	} else {
		prices, levels = &b.askPrices, b.askLevels
	}

	key := d.Price.String()
	switch d.Action {
	case DeltaClear:
		*prices = nil
		for k := range levels {
			delete(levels, k)
		}
	case DeltaDelete:
		if _, ok := levels[key]; ok {
			delete(levels, key)
			*prices = removePrice(*prices, d.Price)
		}
	default: // ADD, UPDATE
		if _, exists := levels[key]; !exists {
			*prices = insertPrice(*prices, d.Price, d.Side == OrderSideBuy)
		}
		if d.Size.IsZero() {
			delete(levels, key)
			*prices = removePrice(*prices, d.Price)
		} else {
			levels[key] = d.Size
		}
	}
}

func insertPrice(prices []Price, p Price, descending bool) []Price {
	i := sort.Search(len(prices), func(i int) bool {
		if descending {
			return prices[i].LessThan(p) || prices[i].Equal(p)
		}
		return prices[i].GreaterThan(p) || prices[i].Equal(p)
	})
	prices = append(prices, Price{})
	copy(prices[i+1:], prices[i:])
	prices[i] = p
	return prices
}

func removePrice(prices []Price, p Price) []Price {
	for i, q := range prices {
		if q.Equal(p) {
			return append(prices[:i], prices[i+1:]...)
		}
	}
	return prices
}

// Levels returns up to depth aggregated levels for one side, best first.
func (b *OrderBook) Levels(side OrderSide, depth int) []Level {
	prices, levels := b.askPrices, b.askLevels
	if side == OrderSideBuy {
		prices, levels = b.bidPrices, b.bidLevels
	}
	if depth <= 0 || depth > len(prices) {
		depth = len(prices)
	}
	out := make([]Level, 0, depth)
	for _, p := range prices[:depth] {
		out = append(out, Level{Price: p, Size: levels[p.String()]})
	}
	return out
}

// Fill is one (price, quantity) pair produced by walking the book.
type Fill struct {
	Price Price
	Qty   Quantity
}

// SimulateOrderFills walks the book on the opposite side of side, consuming
// levels until leavesQty is exhausted or the book (plus, for DepthVolume, one
// imaginary level beyond the last real price) is drained. For an L1 book the
// caller is expected to use the top-of-book price directly instead.
func (b *OrderBook) SimulateOrderFills(side OrderSide, leavesQty Quantity, limitPrice Price, hasLimit bool, depthType DepthType, tick Price) []Fill {
	opposite := side.Opposite()
	levels := b.Levels(opposite, 0)

	var fills []Fill
	remaining := leavesQty
	for _, lvl := range levels {
		if remaining.IsZero() {
			break
		}
		if hasLimit {
			if side == OrderSideBuy && lvl.Price.GreaterThan(limitPrice) {
				break
			}
			if side == OrderSideSell && lvl.Price.LessThan(limitPrice) {
				break
			}
		}
		qty := remaining.Min(lvl.Size)
		fills = append(fills, Fill{Price: lvl.Price, Qty: qty})
		remaining, _ = remaining.Sub(qty)
	}

	if !remaining.IsZero() && depthType == DepthVolume && len(levels) > 0 {
		last := levels[len(levels)-1].Price
		var imaginary Price
		if side == OrderSideBuy {
			imaginary = last.AddTicks(1, tick)
		} else {
			imaginary = last.AddTicks(-1, tick)
		}
		if !hasLimit || (side == OrderSideBuy && !imaginary.GreaterThan(limitPrice)) || (side == OrderSideSell && !imaginary.LessThan(limitPrice)) {
			fills = append(fills, Fill{Price: imaginary, Qty: remaining})
		}
	}

	return fills
}
