package matchcore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

var instrument = model.NewInstrumentId("SIM", "EUR/USD")

func px(v float64) model.Price { return model.NewPrice(v, 5) }

func limitOrder(id string, side model.OrderSide, price float64) *model.Order {
	return &model.Order{
		ClientOrderID: id,
		InstrumentID:  instrument,
		Type:          model.OrderTypeLimit,
		Side:          side,
		Status:        model.StatusAccepted,
		Price:         px(price),
		HasPrice:      true,
		Quantity:      model.NewQuantity(1000, 0),
	}
}

func stopOrder(id string, side model.OrderSide, trigger float64) *model.Order {
	o := limitOrder(id, side, 0)
	o.Type = model.OrderTypeStopMarket
	o.Price = model.Price{}
	o.HasPrice = false
	o.TriggerPrice = px(trigger)
	o.HasTrigger = true
	return o
}

func TestAddDeleteContains(t *testing.T) {
	c := New(instrument)
	o := limitOrder("O-1", model.OrderSideBuy, 1.10000)

	c.AddOrder(o)
	assert.True(t, c.Contains("O-1"))
	bids, asks := c.Size()
	assert.Equal(t, 1, bids)
	assert.Zero(t, asks)

	c.DeleteOrder("O-1")
	assert.False(t, c.Contains("O-1"))

	c.DeleteOrder("O-1") // second delete is a no-op
	bids, _ = c.Size()
	assert.Zero(t, bids)
}

func TestLimitMatchedPredicates(t *testing.T) {
	c := New(instrument)
	c.SetBid(px(1.10000))
	c.SetAsk(px(1.10002))

	// BUY limit matches when ask <= price.
	assert.True(t, c.IsLimitMatched(model.OrderSideBuy, px(1.10002)))
	assert.True(t, c.IsLimitMatched(model.OrderSideBuy, px(1.10003)))
	assert.False(t, c.IsLimitMatched(model.OrderSideBuy, px(1.10001)))

	// SELL limit matches when bid >= price.
	assert.True(t, c.IsLimitMatched(model.OrderSideSell, px(1.10000)))
	assert.True(t, c.IsLimitMatched(model.OrderSideSell, px(1.09999)))
	assert.False(t, c.IsLimitMatched(model.OrderSideSell, px(1.10001)))
}

func TestStopTriggeredPredicates(t *testing.T) {
	c := New(instrument)
	c.SetBid(px(1.10000))
	c.SetAsk(px(1.10002))

	// BUY stop triggers when ask >= trigger.
	assert.True(t, c.IsStopTriggered(model.OrderSideBuy, px(1.10002)))
	assert.True(t, c.IsStopTriggered(model.OrderSideBuy, px(1.10001)))
	assert.False(t, c.IsStopTriggered(model.OrderSideBuy, px(1.10003)))

	// SELL stop triggers when bid <= trigger.
	assert.True(t, c.IsStopTriggered(model.OrderSideSell, px(1.10000)))
	assert.True(t, c.IsStopTriggered(model.OrderSideSell, px(1.10001)))
	assert.False(t, c.IsStopTriggered(model.OrderSideSell, px(1.09999)))
}

func TestPredicatesFalseWithoutMarket(t *testing.T) {
	c := New(instrument)
	assert.False(t, c.IsLimitMatched(model.OrderSideBuy, px(1.10002)))
	assert.False(t, c.IsStopTriggered(model.OrderSideSell, px(1.10000)))
}

func TestIterateVisitsInPriceThenFIFOOrder(t *testing.T) {
	c := New(instrument)
	c.AddOrder(limitOrder("O-low", model.OrderSideBuy, 1.09990))
	c.AddOrder(limitOrder("O-first", model.OrderSideBuy, 1.10000))
	c.AddOrder(limitOrder("O-second", model.OrderSideBuy, 1.10000))

	c.SetBid(px(1.10000))
	c.SetAsk(px(1.09985)) // everything matched

	var visited []string
	c.Iterate(Callbacks{
		FillLimitOrder: func(o *model.Order) bool {
			visited = append(visited, o.ClientOrderID)
			return false
		},
	})

	// Best price first; equal prices in acceptance order.
	assert.Equal(t, []string{"O-first", "O-second", "O-low"}, visited)
}

func TestIterateRemovesFilledOrders(t *testing.T) {
	c := New(instrument)
	c.AddOrder(limitOrder("O-1", model.OrderSideSell, 1.10002))
	c.SetBid(px(1.10002))
	c.SetAsk(px(1.10004))

	c.Iterate(Callbacks{
		FillLimitOrder: func(o *model.Order) bool { return true },
	})
	assert.False(t, c.Contains("O-1"))

	// A second pass finds nothing to fill.
	calls := 0
	c.Iterate(Callbacks{
		FillLimitOrder: func(o *model.Order) bool { calls++; return true },
	})
	assert.Zero(t, calls)
}

func TestIterateDispatchesStopsToTriggerCallback(t *testing.T) {
	c := New(instrument)
	c.AddOrder(stopOrder("S-1", model.OrderSideBuy, 1.10010))

	c.SetBid(px(1.10009))
	c.SetAsk(px(1.10011))

	var triggered, filled []string
	c.Iterate(Callbacks{
		TriggerStopOrder: func(o *model.Order) bool {
			triggered = append(triggered, o.ClientOrderID)
			return true
		},
		FillLimitOrder: func(o *model.Order) bool {
			filled = append(filled, o.ClientOrderID)
			return false
		},
	})

	assert.Equal(t, []string{"S-1"}, triggered)
	assert.Empty(t, filled)
	assert.False(t, c.Contains("S-1"))
}

func TestIterateSkipsUntriggeredStops(t *testing.T) {
	c := New(instrument)
	c.AddOrder(stopOrder("S-1", model.OrderSideBuy, 1.10010))

	c.SetBid(px(1.10000))
	c.SetAsk(px(1.10002))

	calls := 0
	c.Iterate(Callbacks{
		TriggerStopOrder: func(o *model.Order) bool { calls++; return true },
	})
	assert.Zero(t, calls)
	assert.True(t, c.Contains("S-1"))
}

func TestIterateSkipsOrdersRemovedMidPass(t *testing.T) {
	c := New(instrument)
	a := limitOrder("O-a", model.OrderSideSell, 1.10002)
	b := limitOrder("O-b", model.OrderSideSell, 1.10002)
	c.AddOrder(a)
	c.AddOrder(b)

	c.SetBid(px(1.10002))
	c.SetAsk(px(1.10004))

	var visited []string
	c.Iterate(Callbacks{
		FillLimitOrder: func(o *model.Order) bool {
			visited = append(visited, o.ClientOrderID)
			// Simulate an OCO cascade removing the sibling.
			if o.ClientOrderID == "O-a" {
				c.DeleteOrder("O-b")
			}
			return true
		},
	})

	assert.Equal(t, []string{"O-a"}, visited)
}

func TestRepositionByDeleteThenAdd(t *testing.T) {
	c := New(instrument)
	o := limitOrder("O-1", model.OrderSideBuy, 1.10000)
	c.AddOrder(o)
	c.AddOrder(limitOrder("O-2", model.OrderSideBuy, 1.10001))

	c.DeleteOrder("O-1")
	o.Price = px(1.10002)
	c.AddOrder(o)

	c.SetBid(px(1.10002))
	c.SetAsk(px(1.09990))

	var visited []string
	c.Iterate(Callbacks{
		FillLimitOrder: func(ord *model.Order) bool {
			visited = append(visited, ord.ClientOrderID)
			return false
		},
	})
	assert.Equal(t, []string{"O-1", "O-2"}, visited)
}

func TestMarketTrackers(t *testing.T) {
	c := New(instrument)
	_, ok := c.Bid()
	require.False(t, ok)
	c.SetBid(px(1.1))
	got, ok := c.Bid()
	require.True(t, ok)
	assert.True(t, got.Equal(px(1.1)))
	_, ok = c.Last()
	assert.False(t, ok)
	c.SetLast(px(1.0995))
	_, ok = c.Last()
	assert.True(t, ok)
}
