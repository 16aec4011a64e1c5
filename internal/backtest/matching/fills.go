package matching

import (
	"go.uber.org/zap"

	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

// determineStopMarketFills prices a just-triggered *_MARKET stop. For L1 the
// fill lands at the trigger price itself (the book only touched through it),
// one tick adverse on a slippage draw; full book types walk the book as any
// market order would.
func (e *Engine) determineStopMarketFills(o *model.Order) []model.Fill {
	leaves := o.LeavesQty()
	if leaves.IsZero() {
		return nil
	}
	if e.cfg.BookType == model.BookL1TBBO {
		px := o.TriggerPrice
		if e.fillModel.IsSlipped() {
			if o.Side == model.OrderSideBuy {
				px = px.AddTicks(1, e.instrument.TickSize)
			} else {
				px = px.AddTicks(-1, e.instrument.TickSize)
			}
		}
		return []model.Fill{{Price: px, Qty: leaves}}
	}
	return e.book.SimulateOrderFills(o.Side, leaves, model.Price{}, false, e.cfg.DepthType, e.instrument.TickSize)
}

// determineMarketFills prices a market-family order: for L1_TBBO it fills
// the whole remainder at the opposing touch (adjusted one tick adverse on a
// slippage draw); for full book types it walks the book via
// SimulateOrderFills with no limit ceiling.
func (e *Engine) determineMarketFills(o *model.Order) []model.Fill {
	leaves := o.LeavesQty()
	if leaves.IsZero() {
		return nil
	}
	if e.cfg.BookType == model.BookL1TBBO {
		px, ok := e.touchFor(o.Side)
		if !ok {
			return nil
		}
		if e.fillModel.IsSlipped() {
			if o.Side == model.OrderSideBuy {
				px = px.AddTicks(1, e.instrument.TickSize)
			} else {
				px = px.AddTicks(-1, e.instrument.TickSize)
			}
		}
		return []model.Fill{{Price: px, Qty: leaves}}
	}
	return e.book.SimulateOrderFills(o.Side, leaves, model.Price{}, false, e.cfg.DepthType, e.instrument.TickSize)
}

// determineLimitFills prices a limit order. The fill model is consulted
// only when the market rests exactly at the limit price (a crossed market
// fills unconditionally); a failed draw skips the fill entirely for this
// touch.
func (e *Engine) determineLimitFills(o *model.Order) []model.Fill {
	leaves := o.LeavesQty()
	if leaves.IsZero() {
		return nil
	}
	if touch, ok := e.touchFor(o.Side); ok && touch.Equal(o.Price) && !e.fillModel.IsLimitFilled() {
		return nil
	}
	if e.cfg.BookType == model.BookL1TBBO {
		px, ok := e.touchFor(o.Side)
		if !ok {
			return nil
		}
		return []model.Fill{{Price: px, Qty: leaves}}
	}
	return e.book.SimulateOrderFills(o.Side, leaves, o.Price, true, e.cfg.DepthType, e.instrument.TickSize)
}

func (e *Engine) touchFor(side model.OrderSide) (model.Price, bool) {
	if side == model.OrderSideBuy {
		return e.book.BestAskPrice()
	}
	return e.book.BestBidPrice()
}

func sumFillQty(fills []model.Fill) model.Quantity {
	if len(fills) == 0 {
		return model.Quantity{}
	}
	total := fills[0].Qty
	for _, f := range fills[1:] {
		total, _ = total.Add(f.Qty)
	}
	return total
}

// trimReduceOnly caps qty so a reduce-only order's fill never exceeds the
// position's current magnitude.
func trimReduceOnly(qty model.Quantity, pos *model.Position) model.Quantity {
	absPos := pos.Quantity.Decimal().Abs()
	if qty.Decimal().GreaterThan(absPos) {
		return model.QuantityFromDecimal(absPos, qty.Precision())
	}
	return qty
}

// applyFills folds a sequence of (price, qty) fills into o, honoring
// FOK/IOC policy and reduce-only trimming, emitting OrderFilled per fill,
// and returning whether o left the matching core (fully filled or
// FOK/IOC-canceled).
func (e *Engine) applyFills(o *model.Order, fills []model.Fill, liquidity model.LiquiditySide, tsEvent, tsInit int64) bool {
	if len(fills) == 0 {
		if o.TimeInForce == model.TIFFOK {
			e.cancelOrderInternal(o, tsEvent, tsInit)
			return true
		}
		return false
	}
	if o.TimeInForce == model.TIFFOK && sumFillQty(fills).LessThan(o.LeavesQty()) {
		// FOK requires the whole remainder to fill in this one pass.
		e.cancelOrderInternal(o, tsEvent, tsInit)
		return true
	}

	pos := e.positionFor(o)
	for _, f := range fills {
		qty := f.Qty
		if o.IsReduceOnly {
			qty = trimReduceOnly(qty, pos)
			if qty.IsZero() {
				break
			}
		}
		commission := e.feeModel.Commission(e.instrument, qty, f.Price, liquidity)

		newFilled, err := o.FilledQty.Add(qty)
		if err != nil {
			e.logger.Error("fill quantity precision mismatch", zap.Error(err))
			return true
		}
		o.FilledQty = newFilled

		signedQty := qty
		if o.Side == model.OrderSideSell {
			signedQty = model.QuantityFromDecimal(qty.Decimal().Neg(), qty.Precision())
		}
		pos.ApplyFill(signedQty, f.Price)
		e.settleCommission(commission)

		status := model.StatusPartiallyFilled
		if !o.LeavesQty().IsPositive() {
			status = model.StatusFilled
		}
		_ = e.transition(o, status)
		e.publishFill(o, f, qty, commission, liquidity, tsEvent, tsInit)
		e.publishAccountState(o, tsEvent, tsInit)
		// OCO cancels linked legs on any fill, full or partial; OUO resyncs
		// linked quantities whenever leaves_qty changes.
		e.handleFillContingencies(o, tsEvent, tsInit)

		if status == model.StatusFilled {
			return true
		}
		if o.TimeInForce == model.TIFIOC {
			e.cancelOrderInternal(o, tsEvent, tsInit)
			return true
		}
	}
	return false
}

// settleCommission debits the account's balance in the commission's
// currency: base currency for inverse instruments, quote currency
// otherwise.
func (e *Engine) settleCommission(commission model.Money) {
	if e.account == nil {
		return
	}
	negated := model.NewMoney(-commission.Float64(), commission.Currency, commission.Precision())
	e.account.ApplyMoneyDelta(negated)
}

func (e *Engine) publishFill(o *model.Order, f model.Fill, qty model.Quantity, commission model.Money, liquidity model.LiquiditySide, tsEvent, tsInit int64) {
	hdr := model.EventHeader{
		TraderID:      o.TraderID,
		StrategyID:    o.StrategyID,
		AccountID:     o.AccountID,
		InstrumentID:  o.InstrumentID,
		ClientOrderID: o.ClientOrderID,
		VenueOrderID:  o.VenueOrderID,
	}
	ev := model.NewEvent(model.EventOrderFilled, hdr, tsEvent, tsInit, nil)
	ev.TradeID = e.nextTradeID()
	ev.PositionID = o.PositionID
	ev.OrderSide = o.Side
	ev.OrderType = o.Type
	ev.LastQty = qty
	ev.LastPx = f.Price
	ev.Currency = commission.Currency
	ev.Commission = commission
	ev.LiquiditySide = liquidity
	e.sink.Publish(ev)
}

// onFillMarket is the matchcore.Callbacks.FillMarketOrder hook: invoked for
// a resting market-family order whenever the core iterates. That covers a
// MARKET_TO_LIMIT order resting without a price (one that got a fill rests
// at its last fill price and is dispatched to FillLimitOrder instead), and
// a TRIGGERED *_MARKET stop whose
// earlier fill draw failed; the latter re-consults the stop fill model on
// every subsequent touch.
func (e *Engine) onFillMarket(o *model.Order, tsEvent, tsInit int64) bool {
	if o.Type.IsStopType() && !e.fillModel.IsStopFilled() {
		return false
	}
	fills := e.determineMarketFills(o)
	return e.applyFills(o, fills, model.LiquidityTaker, tsEvent, tsInit)
}

// onFillLimit is the matchcore.Callbacks.FillLimitOrder hook: invoked when a
// resting limit order's price is matched by the current touch.
func (e *Engine) onFillLimit(o *model.Order, tsEvent, tsInit int64) bool {
	fills := e.determineLimitFills(o)
	return e.applyFills(o, fills, model.LiquidityMaker, tsEvent, tsInit)
}

// onTriggerStop is the matchcore.Callbacks.TriggerStopOrder hook: emits
// OrderTriggered and, for *_MARKET stop variants, fills immediately; for
// *_LIMIT variants it becomes an ordinary resting limit order from this
// point on (matchcore.Core.Iterate dispatches it to the limit branch on the
// next pass since its status is no longer eligible for the stop branch).
func (e *Engine) onTriggerStop(o *model.Order, tsEvent, tsInit int64) bool {
	if err := e.transition(o, model.StatusTriggered); err != nil {
		e.logger.Error("status backtrack on trigger", zap.Error(err))
		return true
	}
	e.publish(model.EventOrderTriggered, o, tsEvent, tsInit)

	switch o.Type {
	case model.OrderTypeStopMarket, model.OrderTypeMarketIfTouched, model.OrderTypeTrailingStopMarket:
		if !e.fillModel.IsStopFilled() {
			return false // triggered but not yet filled; stays resting for the next touch
		}
		fills := e.determineStopMarketFills(o)
		return e.applyFills(o, fills, model.LiquidityTaker, tsEvent, tsInit)
	default: // STOP_LIMIT, LIMIT_IF_TOUCHED, TRAILING_STOP_LIMIT
		if e.core.IsLimitMatched(o.Side, o.Price) {
			fills := e.determineLimitFills(o)
			return e.applyFills(o, fills, model.LiquidityTaker, tsEvent, tsInit)
		}
		return false
	}
}

// expireOrders runs on every iterate pass: any open order past its
// expire_time_ns is removed and emits OrderExpired, cascading
// contingencies as a cancel would. Orders are visited in client-order-id
// order so the event trace is identical across runs. GTD expiry is skipped
// when the engine is configured not to support GTD (the strategy manages
// expiry itself in that mode).
func (e *Engine) expireOrders(nowNs int64) {
	for _, id := range e.sortedOrderIDs() {
		o := e.orders[id]
		if o.ExpireTimeNs <= 0 || !o.Status.IsOpen() {
			continue
		}
		if o.TimeInForce == model.TIFGTD && !e.cfg.SupportGTD {
			continue
		}
		if nowNs < o.ExpireTimeNs {
			continue
		}
		e.core.DeleteOrder(id)
		_ = e.transition(o, model.StatusExpired)
		e.publish(model.EventOrderExpired, o, o.ExpireTimeNs, nowNs)
		e.handleCancelContingencies(o, o.ExpireTimeNs, nowNs)
	}
}
