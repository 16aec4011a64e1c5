package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderStatusTerminal(t *testing.T) {
	for _, s := range []OrderStatus{StatusRejected, StatusFilled, StatusCanceled, StatusExpired} {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
		assert.False(t, s.IsOpen())
	}
	for _, s := range []OrderStatus{StatusInitialized, StatusSubmitted, StatusAccepted, StatusTriggered, StatusPartiallyFilled} {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{StatusInitialized, StatusSubmitted, true},
		{StatusSubmitted, StatusAccepted, true},
		{StatusSubmitted, StatusRejected, true},
		{StatusAccepted, StatusPartiallyFilled, true},
		{StatusAccepted, StatusTriggered, true},
		{StatusTriggered, StatusFilled, true},
		{StatusPartiallyFilled, StatusFilled, true},
		{StatusPartiallyFilled, StatusCanceled, true},
		{StatusAccepted, StatusPendingUpdate, true},
		{StatusPendingUpdate, StatusAccepted, true}, // pendings may revisit
		{StatusPartiallyFilled, StatusPendingUpdate, true},
		{StatusPendingUpdate, StatusPartiallyFilled, true},
		{StatusPendingCancel, StatusCanceled, true},
		{StatusSubmitted, StatusPendingUpdate, false}, // not yet working
		{StatusPendingUpdate, StatusSubmitted, false},
		{StatusFilled, StatusCanceled, false},       // terminal, nothing follows
		{StatusRejected, StatusAccepted, false},
		{StatusPartiallyFilled, StatusSubmitted, false}, // backtrack
		{StatusFilled, StatusPartiallyFilled, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestLeavesQty(t *testing.T) {
	o := &Order{Quantity: NewQuantity(10000, 0), FilledQty: NewQuantity(4000, 0)}
	assert.Equal(t, "6000", o.LeavesQty().String())

	o.FilledQty = NewQuantity(10000, 0)
	assert.True(t, o.LeavesQty().IsZero())
}

func TestIsPassive(t *testing.T) {
	passive := []OrderType{
		OrderTypeLimit, OrderTypeStopMarket, OrderTypeStopLimit,
		OrderTypeMarketIfTouched, OrderTypeLimitIfTouched,
		OrderTypeTrailingStopMarket, OrderTypeTrailingStopLimit,
	}
	for _, typ := range passive {
		o := &Order{Type: typ}
		assert.True(t, o.IsPassive(), "%s", typ)
	}
	assert.False(t, (&Order{Type: OrderTypeMarket}).IsPassive())
	assert.False(t, (&Order{Type: OrderTypeMarketToLimit}).IsPassive())
}

func TestOrderTypePredicates(t *testing.T) {
	assert.True(t, OrderTypeStopLimit.IsStopType())
	assert.True(t, OrderTypeStopLimit.IsLimitType())
	assert.True(t, OrderTypeLimit.IsLimitType())
	assert.False(t, OrderTypeLimit.IsStopType())
	assert.False(t, OrderTypeMarket.IsStopType())
	assert.False(t, OrderTypeMarket.IsLimitType())
	assert.True(t, OrderTypeTrailingStopMarket.IsStopType())
}

func TestOppositeSide(t *testing.T) {
	assert.Equal(t, OrderSideSell, OrderSideBuy.Opposite())
	assert.Equal(t, OrderSideBuy, OrderSideSell.Opposite())
}

func TestIsChildOf(t *testing.T) {
	child := &Order{ParentOrderID: "P-1"}
	assert.True(t, child.IsChildOf("P-1"))
	assert.False(t, child.IsChildOf("P-2"))
	assert.False(t, (&Order{}).IsChildOf(""))
}
