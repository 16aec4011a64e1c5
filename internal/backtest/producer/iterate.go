package producer

import (
	"sort"

	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

// Setup slices each stream to [start_ns + 1ms buffer, stop_ns] via binary
// search, and resets the cursors to the start of that window.
func (p *Producer) Setup(startNs, stopNs int64) {
	from := startNs + replayBufferNs
	p.stopNs = stopNs
	p.streamIdx = sort.Search(len(p.streamItems), func(i int) bool { return p.streamItems[i].TsInit >= from })
	p.quoteIdx = sort.Search(len(p.quoteItems), func(i int) bool { return p.quoteItems[i].TsInit >= from })
	p.tradeIdx = sort.Search(len(p.tradeItems), func(i int) bool { return p.tradeItems[i].TsInit >= from })
}

// HasData reports whether any of the three cursors still has an item within
// [start, stop_ns].
func (p *Producer) HasData() bool {
	return p.peekStream() != nil || p.peekQuote() != nil || p.peekTrade() != nil
}

func (p *Producer) peekStream() *StreamItem {
	if p.streamIdx >= len(p.streamItems) || p.streamItems[p.streamIdx].TsInit > p.stopNs {
		return nil
	}
	return &p.streamItems[p.streamIdx]
}

func (p *Producer) peekQuote() *model.QuoteTick {
	if p.quoteIdx >= len(p.quoteItems) || p.quoteItems[p.quoteIdx].TsInit > p.stopNs {
		return nil
	}
	return &p.quoteItems[p.quoteIdx]
}

func (p *Producer) peekTrade() *model.TradeTick {
	if p.tradeIdx >= len(p.tradeItems) || p.tradeItems[p.tradeIdx].TsInit > p.stopNs {
		return nil
	}
	return &p.tradeItems[p.tradeIdx]
}

// Next chooses the smallest ts_init across the three buffered cursor
// heads, breaking ties by the fixed priority (generic/book, quote, trade),
// then advances that cursor.
func (p *Producer) Next() (Item, bool) {
	s, q, t := p.peekStream(), p.peekQuote(), p.peekTrade()
	if s == nil && q == nil && t == nil {
		return Item{}, false
	}

	// Fixed tie-break priority: stream (generic/book), then quote, then
	// trade.
	if s != nil && (q == nil || s.TsInit <= q.TsInit) && (t == nil || s.TsInit <= t.TsInit) {
		item := streamToItem(*s)
		p.streamIdx++
		return item, true
	}
	if q != nil && (t == nil || q.TsInit <= t.TsInit) {
		item := Item{Kind: ItemQuote, Quote: q, TsInit: q.TsInit}
		p.quoteIdx++
		return item, true
	}
	item := Item{Kind: ItemTrade, Trade: t, TsInit: t.TsInit}
	p.tradeIdx++
	return item, true
}

func streamToItem(s StreamItem) Item {
	if s.Generic != nil {
		return Item{Kind: ItemGeneric, Generic: s.Generic, TsInit: s.TsInit}
	}
	return Item{Kind: ItemBookDeltas, BookDeltas: s.BookDeltas, TsInit: s.TsInit}
}
