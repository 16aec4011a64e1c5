// Package producer implements the data producer: a one-time
// integrity-checked setup over heterogeneous market-data tables, followed by
// a three-cursor, time-sorted merge exposed as HasData/Next.
package producer

import (
	"sort"

	"github.com/shopspring/decimal"

	coreerrors "github.com/abdoElHodaky/backtestcore/pkg/errors"
	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

var decimalFour = decimal.NewFromInt(4)

// GenericData is an opaque, instrument-scoped-or-not payload routed to the
// message bus rather than a matching engine.
type GenericData struct {
	InstrumentID model.InstrumentId
	HasInstrument bool
	Payload      interface{}
	TsEvent      int64
	TsInit       int64
}

// StreamItem is one entry of the combined generic-data + order-book-delta
// stream, the producer's first-priority cursor.
type StreamItem struct {
	Generic    *GenericData
	BookDeltas *model.Deltas
	TsInit     int64
}

// ItemKind discriminates the tagged union Next() returns.
type ItemKind int

const (
	ItemGeneric ItemKind = iota
	ItemBookDeltas
	ItemQuote
	ItemTrade
)

// Item is one replay step, ordered by TsInit across all three streams.
type Item struct {
	Kind       ItemKind
	Generic    *GenericData
	BookDeltas *model.Deltas
	Quote      *model.QuoteTick
	Trade      *model.TradeTick
	TsInit     int64
}

// replayBufferNs is the 1ms buffer applied to the left edge of the replay
// window so a bar-synthesised tick coinciding with start_ns is not
// replayed twice across overlapping runs.
const replayBufferNs = 1_000_000

// Input bundles everything the producer's setup wrangles into merged
// streams.
type Input struct {
	Instruments   map[model.InstrumentId]model.Instrument
	GenericData   []GenericData
	OrderBookData []model.Deltas
	QuoteTicks    map[model.InstrumentId][]model.QuoteTick
	TradeTicks    map[model.InstrumentId][]model.TradeTick
	BarsBid       map[model.InstrumentId]map[model.BarAggregation][]model.Bar
	BarsAsk       map[model.InstrumentId]map[model.BarAggregation][]model.Bar
}

// Producer is the non-cached Data Producer: a merged, time-sorted view over
// Input built once at construction and iterated by repeated Next() calls.
type Producer struct {
	streamItems []StreamItem
	quoteItems  []model.QuoteTick
	tradeItems  []model.TradeTick

	minTsNs, maxTsNs int64

	stopNs                     int64
	streamIdx, quoteIdx, tradeIdx int
}

// New runs setup's integrity checks and builds the three merged streams.
func New(in Input) (*Producer, error) {
	if err := validateIntegrity(in); err != nil {
		return nil, err
	}

	p := &Producer{}

	for _, ds := range in.OrderBookData {
		id := ds
		p.streamItems = append(p.streamItems, StreamItem{BookDeltas: &id, TsInit: ds.TsInit})
	}
	for i := range in.GenericData {
		g := in.GenericData[i]
		p.streamItems = append(p.streamItems, StreamItem{Generic: &g, TsInit: g.TsInit})
	}
	sort.SliceStable(p.streamItems, func(i, j int) bool { return p.streamItems[i].TsInit < p.streamItems[j].TsInit })

	// Instruments are visited in id order so equal-timestamp ticks across
	// instruments land in the same merged order every run.
	ids := make([]model.InstrumentId, 0, len(in.Instruments))
	for id := range in.Instruments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	for _, id := range ids {
		if ticks, ok := in.QuoteTicks[id]; ok {
			p.quoteItems = append(p.quoteItems, ticks...)
		} else if bid, ok := in.BarsBid[id]; ok {
			p.quoteItems = append(p.quoteItems, synthesizeQuotesFromBars(id, bid, in.BarsAsk[id])...)
		}
		p.tradeItems = append(p.tradeItems, in.TradeTicks[id]...)
	}
	// The iteration cursors slice and merge on ts_init, so the sort key here
	// must be ts_init too (ts_event order is preserved within ties by the
	// stable sort).
	sort.SliceStable(p.quoteItems, func(i, j int) bool { return p.quoteItems[i].TsInit < p.quoteItems[j].TsInit })
	sort.SliceStable(p.tradeItems, func(i, j int) bool { return p.tradeItems[i].TsInit < p.tradeItems[j].TsInit })

	p.minTsNs, p.maxTsNs = computeTsRange(p.streamItems, p.quoteItems, p.tradeItems)
	return p, nil
}

// MinMaxTsNs returns the full timestamp span covered by every input stream.
func (p *Producer) MinMaxTsNs() (int64, int64) { return p.minTsNs, p.maxTsNs }

func computeTsRange(streams []StreamItem, quotes []model.QuoteTick, trades []model.TradeTick) (int64, int64) {
	min, max := int64(0), int64(0)
	first := true
	observe := func(ts int64) {
		if first || ts < min {
			min = ts
		}
		if first || ts > max {
			max = ts
		}
		first = false
	}
	for _, s := range streams {
		observe(s.TsInit)
	}
	for _, q := range quotes {
		observe(q.TsInit)
	}
	for _, t := range trades {
		observe(t.TsInit)
	}
	return min, max
}

// validateIntegrity runs the one-time setup checks: every instrument-keyed
// data stream must name a known instrument,
// and bid/ask bar dictionaries for one instrument must share aggregation
// keys and per-key lengths (so quote synthesis can pair them one-to-one).
func validateIntegrity(in Input) error {
	for id := range in.QuoteTicks {
		if _, ok := in.Instruments[id]; !ok {
			return coreerrors.Newf(coreerrors.ErrMissingInstrument, "quote ticks reference unknown instrument %s", id.String())
		}
	}
	for id := range in.TradeTicks {
		if _, ok := in.Instruments[id]; !ok {
			return coreerrors.Newf(coreerrors.ErrMissingInstrument, "trade ticks reference unknown instrument %s", id.String())
		}
	}
	for _, ds := range in.OrderBookData {
		if _, ok := in.Instruments[ds.InstrumentID]; !ok {
			return coreerrors.Newf(coreerrors.ErrMissingInstrument, "order book data references unknown instrument %s", ds.InstrumentID.String())
		}
	}
	for _, g := range in.GenericData {
		if g.HasInstrument {
			if _, ok := in.Instruments[g.InstrumentID]; !ok {
				return coreerrors.Newf(coreerrors.ErrMissingInstrument, "generic data references unknown instrument %s", g.InstrumentID.String())
			}
		}
	}
	for id, bid := range in.BarsBid {
		if _, ok := in.Instruments[id]; !ok {
			return coreerrors.Newf(coreerrors.ErrMissingInstrument, "bid bars reference unknown instrument %s", id.String())
		}
		ask, ok := in.BarsAsk[id]
		if !ok || len(ask) != len(bid) {
			return coreerrors.Newf(coreerrors.ErrAsymmetricBars, "instrument %s: bid/ask bar aggregation sets differ", id.String())
		}
		for agg, bidSeries := range bid {
			askSeries, ok := ask[agg]
			if !ok {
				return coreerrors.Newf(coreerrors.ErrAsymmetricBars, "instrument %s aggregation %s: missing ask series", id.String(), agg)
			}
			if len(askSeries) != len(bidSeries) {
				return coreerrors.Newf(coreerrors.ErrBarShapeMismatch, "instrument %s aggregation %s: bid/ask bar series length mismatch", id.String(), agg)
			}
			for i := range bidSeries {
				if bidSeries[i].TsEvent != askSeries[i].TsEvent {
					return coreerrors.Newf(coreerrors.ErrBarShapeMismatch, "instrument %s aggregation %s: bid/ask bar index %d ts_event mismatch", id.String(), agg, i)
				}
				if bidSeries[i].BarType.PriceType == model.BarPriceLast || askSeries[i].BarType.PriceType == model.BarPriceLast {
					return coreerrors.New(coreerrors.ErrInvalidBarPriceType, "LAST-priced bar cannot be added to a bid/ask bar series")
				}
			}
		}
	}
	return nil
}

// synthesizeQuotesFromBars pairs each BID bar with its matching ASK bar
// (identical ts_event) and walks open->high->low->close (4 synthetic quote
// ticks per pair, each 1/4 the bar's reported volume). This is the matching
// engine's bar-to-tick order when AdaptiveBarOrder is off; with it on, the
// engine walks open->low->high->close instead.
func synthesizeQuotesFromBars(id model.InstrumentId, bid, ask map[model.BarAggregation][]model.Bar) []model.QuoteTick {
	aggs := make([]model.BarAggregation, 0, len(bid))
	for agg := range bid {
		aggs = append(aggs, agg)
	}
	sort.Slice(aggs, func(i, j int) bool { return aggs[i] < aggs[j] })

	var out []model.QuoteTick
	for _, agg := range aggs {
		bidSeries := bid[agg]
		askSeries := ask[agg]
		for i := range bidSeries {
			b, a := bidSeries[i], askSeries[i]
			bidPath := []model.Price{b.Open, b.High, b.Low, b.Close}
			askPath := []model.Price{a.Open, a.High, a.Low, a.Close}
			qty := model.QuantityFromDecimal(b.Volume.Decimal().Div(decimalFour), b.VolumePrecision)
			for step := 0; step < 4; step++ {
				out = append(out, model.QuoteTick{
					InstrumentID: id,
					Bid:          bidPath[step],
					Ask:          askPath[step],
					BidSize:      qty,
					AskSize:      qty,
					TsEvent:      b.TsEvent,
					TsInit:       b.TsInit,
				})
			}
		}
	}
	return out
}
