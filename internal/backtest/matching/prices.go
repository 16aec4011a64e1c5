package matching

import (
	"github.com/shopspring/decimal"

	"github.com/abdoElHodaky/backtestcore/internal/backtest/matchcore"
	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

// ProcessOrderBookDelta applies a single delta to the book, then iterates
// the matching core.
func (e *Engine) ProcessOrderBookDelta(d model.OrderBookDelta) {
	e.book.Apply(d)
	e.refreshTouch()
	e.iterateCore(d.TsEvent, d.TsInit)
}

// ProcessOrderBookDeltas applies a batch sharing one ts_event before a single
// iterate() pass, matching the source's Deltas/snapshot semantics.
func (e *Engine) ProcessOrderBookDeltas(ds model.Deltas) {
	for _, d := range ds.Deltas {
		e.book.Apply(d)
	}
	e.refreshTouch()
	e.iterateCore(ds.TsEvent, ds.TsInit)
}

// ProcessQuoteTick updates the book's top of book for L1_TBBO books, then
// iterates.
func (e *Engine) ProcessQuoteTick(t model.QuoteTick) {
	if e.cfg.BookType == model.BookL1TBBO {
		e.book.SetTop(t.Bid, t.Ask)
	}
	e.refreshTouch()
	e.iterateCore(t.TsEvent, t.TsInit)
}

// ProcessTradeTick updates the book's last price, then iterates.
func (e *Engine) ProcessTradeTick(t model.TradeTick) {
	e.book.SetLast(t.Price)
	e.refreshTouch()
	e.core.SetLast(t.Price)
	e.iterateCore(t.TsEvent, t.TsInit)
}

// ProcessBar derives synthetic quote/trade ticks from OHLCV data, only for
// L1_TBBO books. BID-typed bars are cached until the
// matching ASK-typed bar of the same ts_event arrives; LAST/MID bars
// synthesize trade ticks directly.
func (e *Engine) ProcessBar(b model.Bar) {
	if e.cfg.BookType != model.BookL1TBBO {
		return
	}
	switch b.BarType.PriceType {
	case model.BarPriceBid:
		bar := b
		e.pendingBidBar = &bar
		e.lastBidBarTs = b.TsEvent
		return
	case model.BarPriceAsk:
		if e.pendingBidBar == nil || e.lastBidBarTs != b.TsEvent {
			return
		}
		bidSeq := ohlcSequence(*e.pendingBidBar, e.cfg.AdaptiveBarOrder)
		askSeq := ohlcSequence(b, e.cfg.AdaptiveBarOrder)
		e.pendingBidBar = nil
		n := len(bidSeq)
		if len(askSeq) < n {
			n = len(askSeq)
		}
		for i := 0; i < n; i++ {
			e.ProcessQuoteTick(model.QuoteTick{
				InstrumentID: e.instrument.ID,
				Bid:          bidSeq[i],
				Ask:          askSeq[i],
				BidSize:      model.NewQuantity(0, e.instrument.SizePrecision),
				AskSize:      model.NewQuantity(0, e.instrument.SizePrecision),
				TsEvent:      b.TsEvent,
				TsInit:       b.TsInit,
			})
		}
	case model.BarPriceLast, model.BarPriceMid:
		seq := ohlcSequence(b, e.cfg.AdaptiveBarOrder)
		qtyShare := QuantityDivInt(b.Volume, 4)
		for _, px := range seq {
			side := model.AggressorBuy
			if last, ok := e.book.LastPrice(); ok && px.LessThan(last) {
				side = model.AggressorSell
			}
			e.ProcessTradeTick(model.TradeTick{
				InstrumentID:  e.instrument.ID,
				Price:         px,
				Size:          qtyShare,
				AggressorSide: side,
				TradeID:       e.nextTradeID(),
				TsEvent:       b.TsEvent,
				TsInit:        b.TsInit,
			})
		}
	}
}

// QuantityDivInt divides a Quantity by a positive integer divisor, used to
// split one bar's volume across its four synthesised ticks.
func QuantityDivInt(q model.Quantity, divisor int64) model.Quantity {
	d := q.Decimal().DivRound(decimal.NewFromInt(divisor), int32(q.Precision()))
	return model.QuantityFromDecimal(d, q.Precision())
}

// ohlcSequence returns a bar's four prices in open->high->low->close order
// when adaptive is false, or open->low->high->close when true.
func ohlcSequence(b model.Bar, adaptive bool) []model.Price {
	if adaptive {
		return []model.Price{b.Open, b.Low, b.High, b.Close}
	}
	return []model.Price{b.Open, b.High, b.Low, b.Close}
}

// refreshTouch copies the book's current top-of-book/last into the matching
// core's trackers, which is what is_limit_matched/is_stop_triggered read.
func (e *Engine) refreshTouch() {
	if bid, ok := e.book.BestBidPrice(); ok {
		e.core.SetBid(bid)
	}
	if ask, ok := e.book.BestAskPrice(); ok {
		e.core.SetAsk(ask)
	}
	if last, ok := e.book.LastPrice(); ok {
		e.core.SetLast(last)
	}
}

func (e *Engine) iterateCore(tsEvent, tsInit int64) {
	e.expireOrders(tsInit)
	e.core.Iterate(matchcore.Callbacks{
		TriggerStopOrder: func(o *model.Order) bool { return e.onTriggerStop(o, tsEvent, tsInit) },
		FillMarketOrder:  func(o *model.Order) bool { return e.onFillMarket(o, tsEvent, tsInit) },
		FillLimitOrder:   func(o *model.Order) bool { return e.onFillLimit(o, tsEvent, tsInit) },
	})
}
