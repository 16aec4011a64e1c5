package matching

import (
	"sort"

	coreerrors "github.com/abdoElHodaky/backtestcore/pkg/errors"
	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

// ProcessOrder admits a newly submitted order: duplicate detection, OTO
// parent-pending/rejected handling, quantity/price validation, reduce-only
// checks, then type-specific dispatch.
func (e *Engine) ProcessOrder(o *model.Order, tsEvent, tsInit int64) {
	if _, known := e.orders[o.ClientOrderID]; known {
		return // idempotent: a client_order_id already known here is a no-op
	}
	o.Status = model.StatusInitialized
	e.orders[o.ClientOrderID] = o
	_ = e.transition(o, model.StatusSubmitted)
	e.publish(model.EventOrderSubmitted, o, tsEvent, tsInit)

	if o.ParentOrderID != "" {
		parent, ok := e.orders[o.ParentOrderID]
		switch {
		case !ok:
			return // parent not yet submitted; held pending until it is
		case parent.Status == model.StatusRejected:
			_ = e.transition(o, model.StatusRejected)
			e.publishRejected(model.EventOrderRejected, o, "PARENT_REJECTED", tsEvent, tsInit)
			return
		case !parent.Status.IsOpen() && parent.Status != model.StatusFilled:
			return // parent still pending; see acceptOTOChildren/rejectOTOChildren
		}
	}

	if err := ValidateOrder(o, e.instrument); err != nil {
		_ = e.transition(o, model.StatusRejected)
		e.publishRejected(model.EventOrderRejected, o, err.Error(), tsEvent, tsInit)
		e.rejectOTOChildren(o, tsEvent, tsInit)
		return
	}

	if o.IsReduceOnly && !e.wouldReduce(o) {
		_ = e.transition(o, model.StatusRejected)
		e.publishRejected(model.EventOrderRejected, o, "REDUCE_ONLY_WOULD_INCREASE", tsEvent, tsInit)
		e.rejectOTOChildren(o, tsEvent, tsInit)
		return
	}

	e.acceptAndRoute(o, tsEvent, tsInit)
}

// wouldReduce reports whether o, if filled, would reduce (not increase) the
// magnitude of its target position.
func (e *Engine) wouldReduce(o *model.Order) bool {
	key := o.PositionID
	if key == "" && e.cfg.OMSType != model.OMSHedging {
		key = o.InstrumentID.String() + "|" + o.StrategyID
	}
	pos, ok := e.positions[key]
	if !ok || pos.Quantity.IsZero() {
		return false
	}
	sameSignAsLong := pos.Quantity.IsPositive() && o.Side == model.OrderSideBuy
	sameSignAsShort := pos.Quantity.IsNegative() && o.Side == model.OrderSideSell
	return !sameSignAsLong && !sameSignAsShort
}

// accept assigns the venue order id, transitions to ACCEPTED and publishes
// the event.
func (e *Engine) accept(o *model.Order, tsEvent, tsInit int64) {
	if o.VenueOrderID == "" {
		o.VenueOrderID = e.nextVenueOrderID(o.ClientOrderID)
	}
	o.AcceptedAtNs = tsInit
	_ = e.transition(o, model.StatusAccepted)
	e.publish(model.EventOrderAccepted, o, tsEvent, tsInit)
}

// acceptAndRoute dispatches an order already past admission checks to its
// type-specific handling, per spec §4.D.2 point 4.
func (e *Engine) acceptAndRoute(o *model.Order, tsEvent, tsInit int64) {
	switch o.Type {
	case model.OrderTypeMarket, model.OrderTypeMarketToLimit:
		if _, ok := e.touchFor(o.Side); !ok {
			_ = e.transition(o, model.StatusRejected)
			e.publishRejected(model.EventOrderRejected, o, "NO_OPPOSING_PRICE", tsEvent, tsInit)
			e.rejectOTOChildren(o, tsEvent, tsInit)
			return
		}
		e.accept(o, tsEvent, tsInit)
		e.acceptOTOChildren(o, tsEvent, tsInit)
		fills := e.determineMarketFills(o)
		if e.applyFills(o, fills, model.LiquidityTaker, tsEvent, tsInit) {
			return
		}
		if o.Type == model.OrderTypeMarket {
			// A pure MARKET order never rests; the unfillable remainder cancels.
			e.cancelOrderInternal(o, tsEvent, tsInit)
			return
		}
		// MARKET_TO_LIMIT's unfilled remainder rests at its last fill price.
		if n := len(fills); n > 0 {
			o.Price = fills[n-1].Price
			o.HasPrice = true
		}
		e.core.AddOrder(o)

	case model.OrderTypeLimit:
		if o.IsPostOnly && e.core.IsLimitMatched(o.Side, o.Price) {
			_ = e.transition(o, model.StatusRejected)
			e.publishRejected(model.EventOrderRejected, o, "POST_ONLY: order would have been a TAKER", tsEvent, tsInit)
			e.rejectOTOChildren(o, tsEvent, tsInit)
			return
		}
		e.accept(o, tsEvent, tsInit)
		e.acceptOTOChildren(o, tsEvent, tsInit)
		if e.core.IsLimitMatched(o.Side, o.Price) {
			fills := e.determineLimitFills(o)
			if e.applyFills(o, fills, model.LiquidityTaker, tsEvent, tsInit) {
				return
			}
		} else if o.TimeInForce == model.TIFIOC || o.TimeInForce == model.TIFFOK {
			e.cancelOrderInternal(o, tsEvent, tsInit)
			return
		}
		e.core.AddOrder(o)

	case model.OrderTypeStopMarket, model.OrderTypeMarketIfTouched:
		trigger := o.Price
		if o.HasTrigger {
			trigger = o.TriggerPrice
		}
		if e.cfg.RejectStopOrders && e.core.IsStopTriggered(o.Side, trigger) {
			_ = e.transition(o, model.StatusRejected)
			e.publishRejected(model.EventOrderRejected, o, "STOP_IN_MARKET", tsEvent, tsInit)
			e.rejectOTOChildren(o, tsEvent, tsInit)
			return
		}
		e.accept(o, tsEvent, tsInit)
		e.acceptOTOChildren(o, tsEvent, tsInit)
		e.core.AddOrder(o)

	case model.OrderTypeStopLimit, model.OrderTypeLimitIfTouched:
		if e.core.IsStopTriggered(o.Side, o.TriggerPrice) {
			_ = e.transition(o, model.StatusRejected)
			e.publishRejected(model.EventOrderRejected, o, "STOP_IN_MARKET", tsEvent, tsInit)
			e.rejectOTOChildren(o, tsEvent, tsInit)
			return
		}
		e.accept(o, tsEvent, tsInit)
		e.acceptOTOChildren(o, tsEvent, tsInit)
		e.core.AddOrder(o)

	case model.OrderTypeTrailingStopMarket, model.OrderTypeTrailingStopLimit:
		if !o.HasTrigger {
			trig, ok := e.computeTrailingTrigger(o)
			if ok {
				o.TriggerPrice = trig
				o.HasTrigger = true
			}
		}
		e.accept(o, tsEvent, tsInit)
		e.acceptOTOChildren(o, tsEvent, tsInit)
		e.core.AddOrder(o)
	}
}

// computeTrailingTrigger derives a trailing stop's initial trigger price
// from the current market per its offset type.
func (e *Engine) computeTrailingTrigger(o *model.Order) (model.Price, bool) {
	ref, ok := e.touchFor(o.Side.Opposite())
	if !ok {
		return model.Price{}, false
	}
	switch o.Trailing.Type {
	case model.TrailingOffsetTicks:
		n := int64(o.Trailing.Value)
		if o.Side == model.OrderSideSell {
			n = -n
		}
		return ref.AddTicks(n, e.instrument.TickSize), true
	case model.TrailingOffsetPrice:
		offset := model.NewPrice(o.Trailing.Value, ref.Precision())
		if o.Side == model.OrderSideSell {
			r, _ := ref.Sub(offset)
			return r, true
		}
		r, _ := ref.Add(offset)
		return r, true
	default: // basis points
		bps := o.Trailing.Value / 10000.0
		shift := ref.Float64() * bps
		if o.Side == model.OrderSideSell {
			shift = -shift
		}
		return model.NewPrice(ref.Float64()+shift, ref.Precision()), true
	}
}

// ProcessModify re-validates and applies a price/trigger/quantity change to
// a working order, emitting PendingUpdate first and Updated or
// ModifyRejected after.
func (e *Engine) ProcessModify(clientOrderID string, newPrice model.Price, hasPrice bool, newTriggerPrice model.Price, hasTrigger bool, newQty model.Quantity, hasQty bool, tsEvent, tsInit int64) {
	o, ok := e.orders[clientOrderID]
	if !ok || o.Status.IsTerminal() {
		e.publishModifyRejected(clientOrderID, "UNKNOWN_ORDER", tsEvent, tsInit)
		return
	}
	// The working status resumes once the pending update resolves, whether
	// the modification is applied or rejected.
	prior := o.Status
	_ = e.transition(o, model.StatusPendingUpdate)
	e.publish(model.EventOrderPendingUpdate, o, tsEvent, tsInit)

	switch {
	case o.Type.IsLimitType():
		candidatePrice := o.Price
		if hasPrice {
			candidatePrice = newPrice
		}
		if o.IsPostOnly && e.core.IsLimitMatched(o.Side, candidatePrice) {
			e.publishRejected(model.EventOrderModifyRejected, o, "POST_ONLY: modification would have been a TAKER", tsEvent, tsInit)
			_ = e.transition(o, prior)
			return
		}
		e.core.DeleteOrder(o.ClientOrderID)
		if hasPrice {
			o.Price = newPrice
		}
		if hasQty {
			o.Quantity = newQty
		}
		_ = e.transition(o, prior)
		e.publish(model.EventOrderUpdated, o, tsEvent, tsInit)
		if e.core.IsLimitMatched(o.Side, o.Price) {
			fills := e.determineLimitFills(o)
			if e.applyFills(o, fills, model.LiquidityTaker, tsEvent, tsInit) {
				return
			}
		}
		e.core.AddOrder(o)
	default: // stop-family
		candidateTrigger := o.TriggerPrice
		if hasTrigger {
			candidateTrigger = newTriggerPrice
		}
		if e.core.IsStopTriggered(o.Side, candidateTrigger) {
			e.publishRejected(model.EventOrderModifyRejected, o, "STOP_IN_MARKET", tsEvent, tsInit)
			_ = e.transition(o, prior)
			return
		}
		e.core.DeleteOrder(o.ClientOrderID)
		if hasTrigger {
			o.TriggerPrice = newTriggerPrice
		}
		if hasQty {
			o.Quantity = newQty
		}
		_ = e.transition(o, prior)
		e.publish(model.EventOrderUpdated, o, tsEvent, tsInit)
		e.core.AddOrder(o)
	}
}

func (e *Engine) publishModifyRejected(clientOrderID, reason string, tsEvent, tsInit int64) {
	hdr := model.EventHeader{ClientOrderID: clientOrderID}
	ev := model.NewEvent(model.EventOrderModifyRejected, hdr, tsEvent, tsInit, nil)
	ev.Reason = reason
	e.sink.Publish(ev)
}

// ProcessCancel cancels a working order. Cancelling an unknown or
// already-terminal order emits OrderCancelRejected rather than a second
// OrderCanceled.
func (e *Engine) ProcessCancel(clientOrderID string, tsEvent, tsInit int64) {
	o, ok := e.orders[clientOrderID]
	if !ok || o.Status.IsTerminal() {
		e.publishCancelRejected(clientOrderID, "UNKNOWN_OR_ALREADY_TERMINAL", tsEvent, tsInit)
		return
	}
	_ = e.transition(o, model.StatusPendingCancel)
	e.publish(model.EventOrderPendingCancel, o, tsEvent, tsInit)
	e.cancelOrderInternal(o, tsEvent, tsInit)
}

// ProcessCancelAll cancels every currently-open order, in client-order-id
// order so the emitted event sequence is identical across runs.
func (e *Engine) ProcessCancelAll(tsEvent, tsInit int64) {
	for _, id := range e.sortedOrderIDs() {
		o := e.orders[id]
		if o.Status.IsTerminal() {
			continue
		}
		_ = e.transition(o, model.StatusPendingCancel)
		e.publish(model.EventOrderPendingCancel, o, tsEvent, tsInit)
		e.cancelOrderInternal(o, tsEvent, tsInit)
	}
}

func (e *Engine) sortedOrderIDs() []string {
	ids := make([]string, 0, len(e.orders))
	for id := range e.orders {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (e *Engine) publishCancelRejected(clientOrderID, reason string, tsEvent, tsInit int64) {
	hdr := model.EventHeader{ClientOrderID: clientOrderID}
	ev := model.NewEvent(model.EventOrderCancelRejected, hdr, tsEvent, tsInit, nil)
	ev.Reason = reason
	e.sink.Publish(ev)
}

// ValidateOrder checks an order's quantity and price fields against its
// instrument. Failures surface as rejection events from ProcessOrder, never
// as panics. Exported so callers staging orders outside the engine can
// pre-check them the same way.
func ValidateOrder(o *model.Order, instrument model.Instrument) error {
	if !instrument.ValidateTradeSize(o.Quantity) {
		return coreerrors.Newf(coreerrors.ErrInvalidQuantity, "quantity %s outside instrument trade-size bounds", o.Quantity.String())
	}
	if o.Type.IsLimitType() && !o.HasPrice {
		return coreerrors.New(coreerrors.ErrInvalidPrice, "limit-type order missing price")
	}
	if o.Type.IsStopType() && o.Type != model.OrderTypeTrailingStopMarket && o.Type != model.OrderTypeTrailingStopLimit && !o.HasTrigger {
		return coreerrors.New(coreerrors.ErrInvalidPrice, "stop-type order missing trigger price")
	}
	return nil
}
